package dbpool

import (
	"context"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/vitaliisemenov/sql-gateway/internal/registry"
)

// poolState is the per-database mutable pool record tracked by Manager.
type poolState struct {
	pool         Pool
	availability Availability
	lastError    string
	lastProbe    time.Time
}

// Manager maintains one Pool per registry.DatabaseConfig name, built lazily
// on first Acquire and guarded by a single-flight group so concurrent
// first-use callers never race to build two pools for the same name.
type Manager struct {
	registry *registry.Registry
	logger   *slog.Logger

	openers map[string]Opener

	mu    sync.RWMutex
	pools map[string]*poolState

	group singleflight.Group
}

// NewManager builds a Manager bound to reg, with the postgres and sqlite
// drivers registered.
func NewManager(reg *registry.Registry, logger *slog.Logger) *Manager {
	return NewManagerWithOpeners(reg, logger, map[string]Opener{
		"postgres": OpenPostgres,
		"sqlite":   OpenSQLite,
	})
}

// NewManagerWithOpeners builds a Manager with a caller-supplied driver
// table, used by tests to substitute fake Openers for the real drivers.
func NewManagerWithOpeners(reg *registry.Registry, logger *slog.Logger, openers map[string]Opener) *Manager {
	return &Manager{
		registry: reg,
		logger:   logger,
		openers:  openers,
		pools:    make(map[string]*poolState),
	}
}

// Acquire returns the live Pool for name, building it on first use. On
// failure the pool is marked DOWN and an *UnavailableError is returned.
func (m *Manager) Acquire(ctx context.Context, name string) (Pool, error) {
	m.mu.RLock()
	state, ok := m.pools[name]
	m.mu.RUnlock()
	if ok && state.availability == Up {
		return state.pool, nil
	}

	result, err, _ := m.group.Do(name, func() (interface{}, error) {
		return m.open(ctx, name)
	})
	if err != nil {
		return nil, err
	}
	return result.(Pool), nil
}

func (m *Manager) open(ctx context.Context, name string) (Pool, error) {
	m.mu.RLock()
	if state, ok := m.pools[name]; ok && state.availability == Up {
		m.mu.RUnlock()
		return state.pool, nil
	}
	m.mu.RUnlock()

	db, ok := m.registry.Database(name)
	if !ok {
		return nil, &UnavailableError{Database: name, Reason: "no such database in registry"}
	}

	opener, ok := m.openers[db.Driver]
	if !ok {
		reason := (&UnknownDriverError{Driver: db.Driver}).Error()
		m.markDown(name, reason)
		return nil, &UnavailableError{Database: name, Reason: reason}
	}

	tuning := tuningFor(db)
	dsn := dsnFor(db)

	openCtx, cancel := context.WithTimeout(ctx, tuning.ConnectionTimeout)
	defer cancel()

	pool, err := opener(openCtx, dsn, tuning)
	if err != nil {
		reason := err.Error()
		m.logger.Error("failed to open pool", "database", name, "error", err)
		m.markDown(name, reason)
		return nil, &UnavailableError{Database: name, Reason: reason}
	}

	m.mu.Lock()
	m.pools[name] = &poolState{pool: pool, availability: Up, lastProbe: time.Now()}
	m.mu.Unlock()
	m.logger.Info("pool opened", "database", name, "driver", db.Driver)

	return pool, nil
}

// markDown records a pool as DOWN with reason, closing and discarding any
// previously-open pool for the same name.
func (m *Manager) markDown(name, reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.pools[name]; ok && existing.pool != nil {
		existing.pool.Close()
	}
	m.pools[name] = &poolState{availability: Down, lastError: reason, lastProbe: time.Now()}
}

// MarkDown is used by HealthMonitor to report a probe failure against an
// already-open pool without going through Acquire.
func (m *Manager) MarkDown(name, reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	state, ok := m.pools[name]
	if !ok {
		m.pools[name] = &poolState{availability: Down, lastError: reason, lastProbe: time.Now()}
		return
	}
	state.availability = Down
	state.lastError = reason
	state.lastProbe = time.Now()
}

// MarkUp is used by HealthMonitor to report a successful probe.
func (m *Manager) MarkUp(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	state, ok := m.pools[name]
	if !ok {
		return
	}
	state.availability = Up
	state.lastError = ""
	state.lastProbe = time.Now()
}

// IsAvailable reports the cached availability of name. A database that has
// never been acquired reports false (UNKNOWN is not available).
func (m *Manager) IsAvailable(name string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	state, ok := m.pools[name]
	return ok && state.availability == Up
}

// FailureReason returns the last recorded failure for name, or "" if none.
func (m *Manager) FailureReason(name string) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if state, ok := m.pools[name]; ok {
		return state.lastError
	}
	return ""
}

// PoolFor returns the live pool for name if one is currently open, without
// attempting to build it.
func (m *Manager) PoolFor(name string) (Pool, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	state, ok := m.pools[name]
	if !ok || state.pool == nil {
		return nil, false
	}
	return state.pool, true
}

// Names returns every database name the registry declares, regardless of
// whether a pool has been opened for it yet.
func (m *Manager) Names() []string {
	names := make([]string, 0, len(m.registry.Databases()))
	for name := range m.registry.Databases() {
		names = append(names, name)
	}
	return names
}

// Close idempotently closes every open pool.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for name, state := range m.pools {
		if state.pool != nil {
			state.pool.Close()
		}
		delete(m.pools, name)
	}
}

func tuningFor(db registry.DatabaseConfig) Tuning {
	t := DefaultTuning()
	if db.Pool == nil {
		return t
	}
	p := db.Pool
	if p.MaxSize > 0 {
		t.MaxSize = p.MaxSize
	}
	if p.MinIdle > 0 {
		t.MinIdle = p.MinIdle
	}
	if p.ConnectionTimeoutMs > 0 {
		t.ConnectionTimeout = time.Duration(p.ConnectionTimeoutMs) * time.Millisecond
	}
	if p.IdleTimeoutMs > 0 {
		t.IdleTimeout = time.Duration(p.IdleTimeoutMs) * time.Millisecond
	}
	if p.MaxLifetimeMs > 0 {
		t.MaxLifetime = time.Duration(p.MaxLifetimeMs) * time.Millisecond
	}
	if p.TestQuery != "" {
		t.TestQuery = p.TestQuery
	}
	return t
}

// dsnFor builds the driver-appropriate connection string for db, injecting
// username/password into a postgres URL when they are declared separately
// rather than embedded in the URL itself.
func dsnFor(db registry.DatabaseConfig) string {
	if db.Driver != "postgres" {
		return db.URL
	}
	if db.Username == "" && db.Password == "" {
		return db.URL
	}
	u, err := url.Parse(db.URL)
	if err != nil || u.User != nil {
		return db.URL
	}
	u.User = url.UserPassword(db.Username, db.Password)
	return u.String()
}

// TestQueryFor returns the configured probe statement for a database, or
// the library default when none was declared.
func TestQueryFor(db registry.DatabaseConfig) string {
	if db.Pool != nil && db.Pool.TestQuery != "" {
		return db.Pool.TestQuery
	}
	return "SELECT 1"
}
