package bridge

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// dialect captures the engine-specific corners of SQL execution: driver
// registration name, catalog lookup, placeholder style and generated-key
// retrieval.
type dialect struct {
	flavor      Flavor
	driverName  string
	existsQuery string // one parameter: the table name
	rebind      func(query string) string
	insert      func(ctx context.Context, db *sql.DB, query string, args []any) (int64, error)
}

func dialectFor(flavor Flavor) (dialect, error) {
	switch flavor {
	case FlavorSQLite:
		return dialect{
			flavor:      FlavorSQLite,
			driverName:  "sqlite",
			existsQuery: `SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`,
			rebind:      func(q string) string { return q },
			insert:      insertSQLite,
		}, nil
	case FlavorPostgres:
		return dialect{
			flavor:      FlavorPostgres,
			driverName:  "postgres",
			existsQuery: `SELECT tablename FROM pg_tables WHERE schemaname = current_schema() AND tablename = ?`,
			rebind:      rebindDollar,
			insert:      insertPostgres,
		}, nil
	default:
		return dialect{}, fmt.Errorf("bridge: unknown flavor %q", flavor)
	}
}

// rebindDollar rewrites `?` placeholders to the `$n` style lib/pq expects.
// Placeholders inside string literals are not supported; parameter values
// belong in args, never in the statement text.
func rebindDollar(query string) string {
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] != '?' {
			b.WriteByte(query[i])
			continue
		}
		n++
		b.WriteByte('$')
		b.WriteString(strconv.Itoa(n))
	}
	return b.String()
}

// insertSQLite executes the insert and reads the rowid the engine assigned.
func insertSQLite(ctx context.Context, db *sql.DB, query string, args []any) (int64, error) {
	res, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if affected == 0 {
		return 0, ErrNoRowsAffected
	}
	id, err := res.LastInsertId()
	if err != nil || id == 0 {
		return 0, ErrNoGeneratedKey
	}
	return id, nil
}

// insertPostgres retrieves the generated key by scanning the statement's
// RETURNING clause; lib/pq does not implement LastInsertId. Statements
// without RETURNING execute fine but yield ErrNoGeneratedKey.
func insertPostgres(ctx context.Context, db *sql.DB, query string, args []any) (int64, error) {
	if !strings.Contains(strings.ToUpper(query), "RETURNING") {
		res, err := db.ExecContext(ctx, query, args...)
		if err != nil {
			return 0, err
		}
		if affected, err := res.RowsAffected(); err == nil && affected == 0 {
			return 0, ErrNoRowsAffected
		}
		return 0, ErrNoGeneratedKey
	}

	var id int64
	err := db.QueryRowContext(ctx, query, args...).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		// RETURNING produced no row, so the engine rejected the insert.
		return 0, ErrNoRowsAffected
	}
	if err != nil {
		return 0, err
	}
	return id, nil
}
