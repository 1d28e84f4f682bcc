// Package bridge is a dialect-agnostic SQL execution facade. It turns
// parameterized statements into ordered records and back, and owns the
// transactional schema bootstrap services run at construction time. It
// carries zero business semantics.
package bridge

import (
	"context"
	"errors"
	"strings"

	"github.com/lib/pq"
)

// Flavor identifies the SQL engine behind a bridge. Callers that build DDL
// use it to pick engine-specific fragments.
type Flavor string

const (
	FlavorSQLite   Flavor = "sqlite"
	FlavorPostgres Flavor = "postgres"
)

var (
	// ErrNoRows signals an empty result from QueryOne. It is a legitimate
	// outcome, not a failure; callers must treat it separately from I/O
	// errors.
	ErrNoRows = errors.New("bridge: no rows in result set")

	// ErrNoRowsAffected reports an insert the engine rejected without
	// raising a statement error (e.g. a conflict the statement ignores).
	ErrNoRowsAffected = errors.New("bridge: insert affected no rows")

	// ErrNoGeneratedKey reports a successful insert on a statement or
	// schema that exposes no auto-generated key.
	ErrNoGeneratedKey = errors.New("bridge: no generated key available")
)

// Bridge executes parameterized SQL against a pooled connection. Statements
// use `?` placeholders bound positionally in call order; drivers that number
// their placeholders get them rebound internally. Parameter values may be
// string, integer, float or boolean and are never coerced.
type Bridge interface {
	// TableExists reports whether a table with the given name exists.
	// Connectivity failures are logged and reported as absence; the check
	// never fails the caller.
	TableExists(ctx context.Context, table string) bool

	// CreateTable executes the table statement followed by the index
	// statements as a single transaction. Any failure rolls the whole
	// batch back, leaving no partial schema.
	CreateTable(ctx context.Context, createSQL string, indexSQL ...string) error

	// QueryOne runs a read expected to return zero or one row. An empty
	// result yields ErrNoRows.
	QueryOne(ctx context.Context, query string, args ...any) (Record, error)

	// QueryMany runs a read and returns all rows in result order. An empty
	// result is a valid empty slice.
	QueryMany(ctx context.Context, query string, args ...any) ([]Record, error)

	// Insert runs an insert and returns the engine-generated key.
	// ErrNoRowsAffected and ErrNoGeneratedKey let callers tell a rejected
	// insert apart from a keyless schema.
	Insert(ctx context.Context, query string, args ...any) (int64, error)

	// Update runs an update or delete and returns the affected row count.
	// Zero is a valid, non-error result.
	Update(ctx context.Context, query string, args ...any) (int64, error)

	// Flavor identifies the underlying engine.
	Flavor() Flavor

	// Ping verifies the underlying pool is still reachable.
	Ping(ctx context.Context) error

	// Close releases the underlying pool.
	Close() error
}

// IsUniqueViolation reports whether err is the engine's unique-constraint
// violation. Writers racing a check-then-insert rely on this to turn the
// violation into a business outcome instead of an internal error.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505" // unique_violation
	}
	// modernc.org/sqlite surfaces SQLITE_CONSTRAINT_UNIQUE as a plain
	// error string.
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
