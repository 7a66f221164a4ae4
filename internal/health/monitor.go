// Package health probes each open pool with its database's configured test
// query, caches the result with a TTL, and classifies overall status as
// UP, DEGRADED or DOWN. It never rebuilds a pool itself — only
// dbpool.Manager does that, on first Acquire.
package health

import (
	"context"
	"log/slog"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/vitaliisemenov/sql-gateway/internal/dbpool"
	"github.com/vitaliisemenov/sql-gateway/internal/registry"
)

// Status is the classification of a single pool's last probe.
type Status string

const (
	StatusUnknown Status = "UNKNOWN"
	StatusUp      Status = "UP"
	StatusDown    Status = "DOWN"
)

// Overall is the classification of the whole system's health.
type Overall string

const (
	OverallUp       Overall = "UP"
	OverallDegraded Overall = "DEGRADED"
	OverallDown     Overall = "DOWN"
)

// Result is one pool's cached probe outcome.
type Result struct {
	Database     string
	Status       Status
	Message      string
	ResponseTime time.Duration
	CheckedAt    time.Time
}

// Monitor periodically probes every database the registry declares.
type Monitor struct {
	registry *registry.Registry
	pools    *dbpool.Manager
	logger   *slog.Logger

	probeTimeout time.Duration

	mu     sync.RWMutex
	cache  *lru.LRU[string, Result]
	loaded bool

	stop chan struct{}
	done chan struct{}
}

// New builds a Monitor. cacheTTL bounds how long a probe result is reused
// before the next tick re-probes that pool; probeTimeout bounds each probe.
func New(reg *registry.Registry, pools *dbpool.Manager, logger *slog.Logger, cacheTTL, probeTimeout time.Duration) *Monitor {
	databases := reg.Databases()
	return &Monitor{
		registry:     reg,
		pools:        pools,
		logger:       logger,
		probeTimeout: probeTimeout,
		cache:        lru.NewLRU[string, Result](len(databases)+1, nil, cacheTTL),
	}
}

// Start launches the background probe loop on interval, until Stop is
// called. It performs one synchronous Refresh before returning so callers
// observe an initial health snapshot immediately.
func (m *Monitor) Start(ctx context.Context, interval time.Duration) {
	m.Refresh(ctx)

	m.stop = make(chan struct{})
	m.done = make(chan struct{})
	go func() {
		defer close(m.done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-m.stop:
				return
			case <-ticker.C:
				m.Refresh(ctx)
			}
		}
	}()
}

// Stop terminates the background probe loop and waits for it to exit.
func (m *Monitor) Stop() {
	if m.stop == nil {
		return
	}
	close(m.stop)
	<-m.done
}

// Refresh probes every database once, synchronously.
func (m *Monitor) Refresh(ctx context.Context) {
	for name, db := range m.registry.Databases() {
		m.probeOne(ctx, name, db)
	}
	m.mu.Lock()
	m.loaded = true
	m.mu.Unlock()
}

func (m *Monitor) probeOne(ctx context.Context, name string, db registry.DatabaseConfig) {
	pool, open := m.pools.PoolFor(name)
	if !open {
		m.mu.Lock()
		m.cache.Add(name, Result{Database: name, Status: StatusUnknown, CheckedAt: time.Now()})
		m.mu.Unlock()
		return
	}

	probeCtx, cancel := context.WithTimeout(ctx, m.probeTimeout)
	defer cancel()

	start := time.Now()
	rows, err := pool.Query(probeCtx, dbpool.TestQueryFor(db))
	if err == nil {
		rows.Close()
	}
	elapsed := time.Since(start)

	var result Result
	if err != nil {
		m.pools.MarkDown(name, err.Error())
		result = Result{Database: name, Status: StatusDown, Message: err.Error(), ResponseTime: elapsed, CheckedAt: time.Now()}
		m.logger.Warn("pool probe failed", "database", name, "error", err)
	} else {
		m.pools.MarkUp(name)
		result = Result{Database: name, Status: StatusUp, ResponseTime: elapsed, CheckedAt: time.Now()}
	}

	m.mu.Lock()
	m.cache.Add(name, result)
	m.mu.Unlock()
}

// Result returns the cached probe result for name, if one has been taken.
func (m *Monitor) Result(name string) (Result, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cache.Get(name)
}

// All returns the cached probe result for every known database.
func (m *Monitor) All() map[string]Result {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]Result)
	for _, name := range m.cache.Keys() {
		if r, ok := m.cache.Peek(name); ok {
			out[name] = r
		}
	}
	return out
}

// Overall classifies the whole system: DOWN if no pass has completed yet,
// DEGRADED if at least one pool reports DOWN, UP otherwise.
func (m *Monitor) Overall() Overall {
	m.mu.RLock()
	loaded := m.loaded
	m.mu.RUnlock()
	if !loaded {
		return OverallDown
	}

	degraded := false
	for _, r := range m.All() {
		if r.Status == StatusDown {
			degraded = true
		}
	}
	if degraded {
		return OverallDegraded
	}
	return OverallUp
}
