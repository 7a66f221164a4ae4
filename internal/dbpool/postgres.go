package dbpool

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// pgxIface is the subset of *pgxpool.Pool that postgresPool depends on. It
// exists so tests can substitute pgxmock's mock pool without postgresPool
// needing to know the difference.
type pgxIface interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Ping(ctx context.Context) error
	Stat() *pgxpool.Stat
	Close()
}

// postgresPool adapts a pgx connection pool to the Pool interface.
type postgresPool struct {
	pool pgxIface
}

// OpenPostgres builds a pgx connection pool for dsn, applying tuning.
func OpenPostgres(ctx context.Context, dsn string, tuning Tuning) (Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	cfg.MaxConns = tuning.MaxSize
	cfg.MinConns = tuning.MinIdle
	cfg.MaxConnLifetime = tuning.MaxLifetime
	cfg.MaxConnIdleTime = tuning.IdleTimeout
	cfg.HealthCheckPeriod = tuning.IdleTimeout

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return &postgresPool{pool: pool}, nil
}

func (p *postgresPool) Query(ctx context.Context, sql string, args ...any) (Rows, error) {
	rows, err := p.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	return &pgxRows{rows: rows}, nil
}

func (p *postgresPool) QueryRow(ctx context.Context, sql string, args ...any) Row {
	return p.pool.QueryRow(ctx, sql, args...)
}

func (p *postgresPool) Exec(ctx context.Context, sql string, args ...any) error {
	_, err := p.pool.Exec(ctx, sql, args...)
	return err
}

func (p *postgresPool) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

func (p *postgresPool) Stats() Stats {
	s := p.pool.Stat()
	return Stats{
		AcquiredConns: s.AcquiredConns(),
		IdleConns:     s.IdleConns(),
		MaxConns:      s.MaxConns(),
	}
}

func (p *postgresPool) Close() {
	p.pool.Close()
}

// pgxRows adapts pgx.Rows to the Rows interface, which additionally exposes
// Columns() the way database/sql does (pgx names it FieldDescriptions).
type pgxRows struct {
	rows pgx.Rows
}

func (r *pgxRows) Next() bool       { return r.rows.Next() }
func (r *pgxRows) Scan(dest ...any) error { return r.rows.Scan(dest...) }
func (r *pgxRows) Err() error       { return r.rows.Err() }
func (r *pgxRows) Close() error     { r.rows.Close(); return nil }

func (r *pgxRows) Columns() ([]string, error) {
	fields := r.rows.FieldDescriptions()
	cols := make([]string, len(fields))
	for i, f := range fields {
		cols[i] = f.Name
	}
	return cols, nil
}
