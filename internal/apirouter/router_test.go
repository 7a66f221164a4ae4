package apirouter

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitaliisemenov/sql-gateway/internal/dbpool"
	"github.com/vitaliisemenov/sql-gateway/internal/dispatcher"
	"github.com/vitaliisemenov/sql-gateway/internal/health"
	"github.com/vitaliisemenov/sql-gateway/internal/registry"
	"github.com/vitaliisemenov/sql-gateway/internal/repository"
)

type stubRows struct {
	cols []string
	data [][]any
	idx  int
}

func (r *stubRows) Next() bool { return r.idx < len(r.data) }
func (r *stubRows) Scan(dest ...any) error {
	row := r.data[r.idx]
	r.idx++
	for i, d := range dest {
		*d.(*any) = row[i]
	}
	return nil
}
func (r *stubRows) Err() error                 { return nil }
func (r *stubRows) Close() error               { return nil }
func (r *stubRows) Columns() ([]string, error) { return r.cols, nil }

type stubPool struct {
	rows *stubRows
}

// Query returns a fresh cursor over the same fixture data every call, since
// the health monitor and the endpoint handler both query the same pool.
func (p *stubPool) Query(ctx context.Context, sql string, args ...any) (dbpool.Rows, error) {
	return &stubRows{cols: p.rows.cols, data: p.rows.data}, nil
}
func (p *stubPool) QueryRow(ctx context.Context, sql string, args ...any) dbpool.Row { return nil }
func (p *stubPool) Exec(ctx context.Context, sql string, args ...any) error          { return nil }
func (p *stubPool) Ping(ctx context.Context) error                                  { return nil }
func (p *stubPool) Stats() dbpool.Stats                                             { return dbpool.Stats{} }
func (p *stubPool) Close()                                                          {}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func buildTestRouter(t *testing.T) http.Handler {
	t.Helper()
	reg, err := registry.Build(
		map[string]registry.DatabaseConfig{"orders_db": {URL: "x", Driver: "postgres"}},
		map[string]registry.QueryConfig{
			"find_order": {Database: "orders_db", SQL: "SELECT * FROM orders WHERE id = ?", Parameters: []registry.QueryParameter{
				{Name: "id", Type: registry.TypeLong, Required: true},
			}},
		},
		map[string]registry.EndpointConfig{
			"get_order": {Path: "/orders/{id}", Method: "GET", Query: "find_order", Parameters: []registry.EndpointParameter{
				{Name: "id", Source: registry.SourcePath, Type: registry.TypeLong, Required: true},
			}},
		},
	)
	require.NoError(t, err)

	pool := &stubPool{rows: &stubRows{cols: []string{"id", "status"}, data: [][]any{{int64(42), "shipped"}}}}
	opener := func(ctx context.Context, dsn string, tuning dbpool.Tuning) (dbpool.Pool, error) {
		return pool, nil
	}
	pools := dbpool.NewManagerWithOpeners(reg, testLogger(), map[string]dbpool.Opener{"postgres": opener})
	_, err = pools.Acquire(context.Background(), "orders_db")
	require.NoError(t, err)
	repo := repository.New(pools)
	disp := dispatcher.New(reg, pools, repo)

	monitor := health.New(reg, pools, testLogger(), time.Minute, time.Second)
	monitor.Start(context.Background(), time.Hour)
	t.Cleanup(monitor.Stop)

	cfg := DefaultConfig()
	cfg.EnableCompression = false
	return New(reg, disp, monitor, testLogger(), cfg)
}

func TestRouter_DispatchesRegisteredEndpoint(t *testing.T) {
	router := buildTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/orders/42", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Type string         `json:"type"`
		Data map[string]any `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "SINGLE", body.Type)
	assert.EqualValues(t, 42, body.Data["id"])
}

func TestRouter_UnknownRouteReturns404(t *testing.T) {
	router := buildTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/does-not-exist", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRouter_HealthRoute(t *testing.T) {
	router := buildTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRouter_MetricsRouteExposed(t *testing.T) {
	router := buildTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}
