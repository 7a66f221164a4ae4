package health

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitaliisemenov/sql-gateway/internal/dbpool"
	"github.com/vitaliisemenov/sql-gateway/internal/registry"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func buildOneDBRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	r, err := registry.Build(map[string]registry.DatabaseConfig{
		"d1": {URL: "whatever", Driver: "postgres"},
	}, nil, nil)
	require.NoError(t, err)
	return r
}

func TestMonitor_OverallDownBeforeFirstRefresh(t *testing.T) {
	reg := buildOneDBRegistry(t)
	pools := dbpool.NewManagerWithOpeners(reg, testLogger(), map[string]dbpool.Opener{})
	m := New(reg, pools, testLogger(), time.Minute, time.Second)

	assert.Equal(t, OverallDown, m.Overall())
}

func TestMonitor_UnknownWhenPoolNeverOpened(t *testing.T) {
	reg := buildOneDBRegistry(t)
	pools := dbpool.NewManagerWithOpeners(reg, testLogger(), map[string]dbpool.Opener{})
	m := New(reg, pools, testLogger(), time.Minute, time.Second)

	m.Refresh(context.Background())

	result, ok := m.Result("d1")
	require.True(t, ok)
	assert.Equal(t, StatusUnknown, result.Status)
	assert.Equal(t, OverallUp, m.Overall())
}

func TestMonitor_DegradedWhenProbeFails(t *testing.T) {
	reg := buildOneDBRegistry(t)
	opener := func(ctx context.Context, dsn string, tuning dbpool.Tuning) (dbpool.Pool, error) {
		return &failingPool{}, nil
	}
	pools := dbpool.NewManagerWithOpeners(reg, testLogger(), map[string]dbpool.Opener{"postgres": opener})
	_, err := pools.Acquire(context.Background(), "d1")
	require.NoError(t, err)

	m := New(reg, pools, testLogger(), time.Minute, time.Second)
	m.Refresh(context.Background())

	result, ok := m.Result("d1")
	require.True(t, ok)
	assert.Equal(t, StatusDown, result.Status)
	assert.Equal(t, OverallDegraded, m.Overall())
	assert.False(t, pools.IsAvailable("d1"))
}

type failingPool struct{}

func (p *failingPool) Query(ctx context.Context, sql string, args ...any) (dbpool.Rows, error) {
	return nil, assertError{}
}
func (p *failingPool) QueryRow(ctx context.Context, sql string, args ...any) dbpool.Row { return nil }
func (p *failingPool) Exec(ctx context.Context, sql string, args ...any) error          { return assertError{} }
func (p *failingPool) Ping(ctx context.Context) error                                  { return assertError{} }
func (p *failingPool) Stats() dbpool.Stats                                             { return dbpool.Stats{} }
func (p *failingPool) Close()                                                          {}

type assertError struct{}

func (assertError) Error() string { return "probe failed" }
