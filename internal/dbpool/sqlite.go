package dbpool

import (
	"context"
	"database/sql"

	_ "modernc.org/sqlite"
)

// sqlitePool adapts *sql.DB (driven by modernc.org/sqlite, pure Go, no cgo)
// to the Pool interface.
type sqlitePool struct {
	db *sql.DB
}

// OpenSQLite builds a database/sql pool against dsn (a file path or
// "file::memory:?cache=shared"), applying tuning.
func OpenSQLite(ctx context.Context, dsn string, tuning Tuning) (Pool, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(int(tuning.MaxSize))
	db.SetMaxIdleConns(int(tuning.MinIdle))
	db.SetConnMaxLifetime(tuning.MaxLifetime)
	db.SetConnMaxIdleTime(tuning.IdleTimeout)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return &sqlitePool{db: db}, nil
}

func (p *sqlitePool) Query(ctx context.Context, sqlText string, args ...any) (Rows, error) {
	rows, err := p.db.QueryContext(ctx, sqlText, args...)
	if err != nil {
		return nil, err
	}
	return &sqlRows{rows: rows}, nil
}

func (p *sqlitePool) QueryRow(ctx context.Context, sqlText string, args ...any) Row {
	return p.db.QueryRowContext(ctx, sqlText, args...)
}

func (p *sqlitePool) Exec(ctx context.Context, sqlText string, args ...any) error {
	_, err := p.db.ExecContext(ctx, sqlText, args...)
	return err
}

func (p *sqlitePool) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

func (p *sqlitePool) Stats() Stats {
	s := p.db.Stats()
	return Stats{
		AcquiredConns: int32(s.InUse),
		IdleConns:     int32(s.Idle),
		MaxConns:      int32(s.MaxOpenConnections),
	}
}

func (p *sqlitePool) Close() {
	p.db.Close()
}

type sqlRows struct {
	rows *sql.Rows
}

func (r *sqlRows) Next() bool           { return r.rows.Next() }
func (r *sqlRows) Scan(dest ...any) error { return r.rows.Scan(dest...) }
func (r *sqlRows) Err() error           { return r.rows.Err() }
func (r *sqlRows) Close() error         { return r.rows.Close() }
func (r *sqlRows) Columns() ([]string, error) {
	return r.rows.Columns()
}
