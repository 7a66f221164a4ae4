package configsource

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitaliisemenov/sql-gateway/internal/dbpool"
)

// fakeDbRows scans each stored row into whatever concrete pointer types a
// caller passes, via reflection, so it can stand in for both pgx.Rows and
// database/sql.Rows scanning against the same table fixtures.
type fakeDbRows struct {
	rows [][]any
	idx  int
}

func (r *fakeDbRows) Next() bool { return r.idx < len(r.rows) }

func (r *fakeDbRows) Scan(dest ...any) error {
	row := r.rows[r.idx]
	r.idx++
	for i, d := range dest {
		reflect.ValueOf(d).Elem().Set(reflect.ValueOf(row[i]))
	}
	return nil
}

func (r *fakeDbRows) Err() error                 { return nil }
func (r *fakeDbRows) Close() error               { return nil }
func (r *fakeDbRows) Columns() ([]string, error) { return nil, nil }

type fakeMetadataPool struct {
	rows    map[string]*fakeDbRows
	queryErr error
}

func (p *fakeMetadataPool) Query(ctx context.Context, sql string, args ...any) (dbpool.Rows, error) {
	if p.queryErr != nil {
		return nil, p.queryErr
	}
	switch {
	case strings.Contains(sql, "config_databases"):
		return p.rows["databases"], nil
	case strings.Contains(sql, "config_queries"):
		return p.rows["queries"], nil
	case strings.Contains(sql, "config_endpoints"):
		return p.rows["endpoints"], nil
	}
	return &fakeDbRows{}, nil
}
func (p *fakeMetadataPool) QueryRow(ctx context.Context, sql string, args ...any) dbpool.Row { return nil }
func (p *fakeMetadataPool) Exec(ctx context.Context, sql string, args ...any) error           { return nil }
func (p *fakeMetadataPool) Ping(ctx context.Context) error                                    { return nil }
func (p *fakeMetadataPool) Stats() dbpool.Stats                                               { return dbpool.Stats{} }
func (p *fakeMetadataPool) Close()                                                            {}

func strPtr(s string) *string { return &s }

func TestDbLoader_LoadDatabases(t *testing.T) {
	pool := &fakeMetadataPool{rows: map[string]*fakeDbRows{
		"databases": {rows: [][]any{
			{"orders_db", "orders", "postgres://host/orders", "u", "p", "postgres", strPtr(`{"maxSize":10}`)},
			{"broken_db", "", "", "", "", "", (*string)(nil)},
		}},
	}}

	loader := NewDbLoader(pool)
	databases, err := loader.LoadDatabases(context.Background())
	require.NoError(t, err)

	require.Contains(t, databases, "orders_db")
	assert.Equal(t, "postgres://host/orders", databases["orders_db"].URL)
	require.NotNil(t, databases["orders_db"].Pool)
	assert.Equal(t, int32(10), databases["orders_db"].Pool.MaxSize)

	assert.NotContains(t, databases, "broken_db")
	require.Len(t, loader.Warnings(), 1)
}

func TestDbLoader_LoadQueries(t *testing.T) {
	pool := &fakeMetadataPool{rows: map[string]*fakeDbRows{
		"queries": {rows: [][]any{
			{"find_order", "desc", "orders_db", "SELECT * FROM orders WHERE id = ?", strPtr(`[{"name":"id","type":"LONG","required":true}]`)},
		}},
	}}

	loader := NewDbLoader(pool)
	queries, err := loader.LoadQueries(context.Background())
	require.NoError(t, err)

	require.Contains(t, queries, "find_order")
	require.Len(t, queries["find_order"].Parameters, 1)
	assert.Equal(t, "id", queries["find_order"].Parameters[0].Name)
}

func TestDbLoader_LoadEndpoints(t *testing.T) {
	pool := &fakeMetadataPool{rows: map[string]*fakeDbRows{
		"endpoints": {rows: [][]any{
			{
				"get_order", "/orders/{id}", "GET", "desc", "find_order",
				(*string)(nil),
				strPtr(`{"enabled":true,"defaultSize":20,"maxSize":100}`),
				strPtr(`[{"name":"id","source":"path","type":"LONG","required":true}]`),
				(*string)(nil),
			},
		}},
	}}

	loader := NewDbLoader(pool)
	endpoints, err := loader.LoadEndpoints(context.Background())
	require.NoError(t, err)

	require.Contains(t, endpoints, "get_order")
	ep := endpoints["get_order"]
	assert.Equal(t, "/orders/{id}", ep.Path)
	require.NotNil(t, ep.Pagination)
	assert.True(t, ep.Pagination.Enabled)
	require.Len(t, ep.Parameters, 1)
}

func TestDbLoader_QueryErrorPropagates(t *testing.T) {
	pool := &fakeMetadataPool{queryErr: errors.New("connection refused")}
	loader := NewDbLoader(pool)

	_, err := loader.LoadDatabases(context.Background())
	require.Error(t, err)
}
