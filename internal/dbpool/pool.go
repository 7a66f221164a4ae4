// Package dbpool manages one connection pool per registry.DatabaseConfig,
// tracking per-pool availability the way the registry's state machine
// describes: UNKNOWN until first use, UP or DOWN afterwards, never
// rebuilding a pool on its own — only HealthMonitor and Acquire observe it.
package dbpool

import (
	"context"
	"time"
)

// Availability is the cached last-known state of a pool.
type Availability string

const (
	Unknown Availability = "UNKNOWN"
	Up      Availability = "UP"
	Down    Availability = "DOWN"
)

// Row is the capability Repository needs out of a single-row query result.
type Row interface {
	Scan(dest ...any) error
}

// Rows is the capability Repository needs out of a multi-row query result.
type Rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
	Columns() ([]string, error)
	Close() error
}

// Stats reports point-in-time pool occupancy, used by the management API
// and by HealthMonitor's dashboard aggregation.
type Stats struct {
	AcquiredConns int32
	IdleConns     int32
	MaxConns      int32
}

// Pool is the minimal capability set a driver-specific pool must provide.
// Repository and HealthMonitor are written entirely against this
// interface; they never see *pgxpool.Pool or *sql.DB directly.
type Pool interface {
	Query(ctx context.Context, sql string, args ...any) (Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) Row
	Exec(ctx context.Context, sql string, args ...any) error
	Ping(ctx context.Context) error
	Stats() Stats
	Close()
}

// Opener builds a Pool for one DatabaseConfig. Each supported driver
// registers one Opener in the Manager.
type Opener func(ctx context.Context, dsn string, tuning Tuning) (Pool, error)

// Tuning carries the pool-sizing knobs derived from registry.PoolConfig,
// with defaults already filled in.
type Tuning struct {
	MaxSize             int32
	MinIdle             int32
	ConnectionTimeout   time.Duration
	IdleTimeout         time.Duration
	MaxLifetime         time.Duration
	TestQuery           string
}

// DefaultTuning returns the tuning applied when a DatabaseConfig declares
// no pool block at all.
func DefaultTuning() Tuning {
	return Tuning{
		MaxSize:           10,
		MinIdle:           2,
		ConnectionTimeout: 30 * time.Second,
		IdleTimeout:       10 * time.Minute,
		MaxLifetime:       time.Hour,
		TestQuery:         "SELECT 1",
	}
}
