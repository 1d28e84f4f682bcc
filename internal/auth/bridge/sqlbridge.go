package bridge

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
)

// SQLBridge implements Bridge over database/sql. The *sql.DB is the
// externally managed pool: every operation acquires a pooled connection for
// its own duration and releases it on all exit paths.
type SQLBridge struct {
	db      *sql.DB
	dialect dialect
	logger  *slog.Logger
}

var _ Bridge = (*SQLBridge)(nil)

// Open opens a bridge for the given engine flavor and DSN. The logger is
// used for the non-fatal diagnostics the bridge is allowed to swallow
// (table-existence probes); pass nil to use the default logger.
func Open(flavor Flavor, dsn string, logger *slog.Logger) (*SQLBridge, error) {
	d, err := dialectFor(flavor)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open(d.driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("bridge: open %s: %w", flavor, err)
	}
	if flavor == FlavorSQLite {
		// Each sqlite connection sees its own :memory: database, so the
		// pool must stay at one connection for in-memory DSNs to behave.
		db.SetMaxOpenConns(1)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SQLBridge{db: db, dialect: d, logger: logger}, nil
}

func (b *SQLBridge) Flavor() Flavor { return b.dialect.flavor }

func (b *SQLBridge) Ping(ctx context.Context) error { return b.db.PingContext(ctx) }

func (b *SQLBridge) Close() error { return b.db.Close() }

// TableExists probes the engine catalog for the table. A connectivity
// failure is logged and reported as absence rather than crashing the
// caller.
func (b *SQLBridge) TableExists(ctx context.Context, table string) bool {
	query := b.dialect.rebind(b.dialect.existsQuery)

	var name string
	err := b.db.QueryRowContext(ctx, query, table).Scan(&name)
	switch {
	case err == nil:
		return true
	case errors.Is(err, sql.ErrNoRows):
		return false
	default:
		b.logger.Warn("table existence check failed", "table", table, "error", err)
		return false
	}
}

// CreateTable runs the create statement and every index statement in one
// transaction. Rolling the tx back (or committing it) returns the
// connection to the pool in its default auto-commit state.
func (b *SQLBridge) CreateTable(ctx context.Context, createSQL string, indexSQL ...string) error {
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("bridge: begin schema tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }() // no-op once committed

	if _, err := tx.ExecContext(ctx, createSQL); err != nil {
		return fmt.Errorf("bridge: create table: %w", err)
	}
	for _, stmt := range indexSQL {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("bridge: create index: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("bridge: commit schema tx: %w", err)
	}
	return nil
}

func (b *SQLBridge) QueryOne(ctx context.Context, query string, args ...any) (Record, error) {
	if err := checkArgs(args); err != nil {
		return Record{}, err
	}
	rows, err := b.db.QueryContext(ctx, b.dialect.rebind(query), args...)
	if err != nil {
		return Record{}, fmt.Errorf("bridge: query: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return Record{}, fmt.Errorf("bridge: columns: %w", err)
	}
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return Record{}, fmt.Errorf("bridge: query: %w", err)
		}
		return Record{}, ErrNoRows
	}
	return scanRecord(rows, cols)
}

func (b *SQLBridge) QueryMany(ctx context.Context, query string, args ...any) ([]Record, error) {
	if err := checkArgs(args); err != nil {
		return nil, err
	}
	rows, err := b.db.QueryContext(ctx, b.dialect.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("bridge: query: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("bridge: columns: %w", err)
	}

	records := make([]Record, 0)
	for rows.Next() {
		rec, err := scanRecord(rows, cols)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("bridge: query: %w", err)
	}
	return records, nil
}

func (b *SQLBridge) Insert(ctx context.Context, query string, args ...any) (int64, error) {
	if err := checkArgs(args); err != nil {
		return 0, err
	}
	id, err := b.dialect.insert(ctx, b.db, b.dialect.rebind(query), args)
	if err != nil && !errors.Is(err, ErrNoRowsAffected) && !errors.Is(err, ErrNoGeneratedKey) {
		return 0, fmt.Errorf("bridge: insert: %w", err)
	}
	return id, err
}

func (b *SQLBridge) Update(ctx context.Context, query string, args ...any) (int64, error) {
	if err := checkArgs(args); err != nil {
		return 0, err
	}
	res, err := b.db.ExecContext(ctx, b.dialect.rebind(query), args...)
	if err != nil {
		return 0, fmt.Errorf("bridge: exec: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("bridge: rows affected: %w", err)
	}
	return affected, nil
}

func scanRecord(rows *sql.Rows, cols []string) (Record, error) {
	raw := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range raw {
		ptrs[i] = &raw[i]
	}
	if err := rows.Scan(ptrs...); err != nil {
		return Record{}, fmt.Errorf("bridge: scan: %w", err)
	}

	rec := NewRecord()
	for i, col := range cols {
		rec.Set(col, fromDriver(raw[i]))
	}
	return rec, nil
}

// checkArgs enforces the closed parameter contract: string, integer, float
// or boolean, bound as-is with no silent coercion.
func checkArgs(args []any) error {
	for i, a := range args {
		switch a.(type) {
		case nil, string, bool,
			int, int32, int64,
			float32, float64:
		default:
			return fmt.Errorf("bridge: unsupported parameter %d of type %T", i+1, a)
		}
	}
	return nil
}
