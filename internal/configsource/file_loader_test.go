package configsource

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestFileLoader_LoadsAndMergesAcrossDirectories(t *testing.T) {
	dirA := t.TempDir()
	dirB := t.TempDir()

	writeFile(t, dirA, "primary-database.yml", `
databases:
  orders_db:
    url: "postgres://localhost/orders"
    driver: postgres
`)
	writeFile(t, dirB, "override-database.yml", `
databases:
  orders_db:
    url: "postgres://localhost/orders_v2"
    driver: postgres
  customers_db:
    url: "postgres://localhost/customers"
    driver: postgres
`)

	loader := NewFileLoader([]string{dirA, dirB}, "", "", "")
	databases, err := loader.LoadDatabases(context.Background())
	require.NoError(t, err)

	require.Len(t, databases, 2)
	assert.Equal(t, "postgres://localhost/orders_v2", databases["orders_db"].URL)
	assert.Equal(t, "postgres://localhost/customers", databases["customers_db"].URL)

	warnings := loader.Warnings()
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "orders_db")
}

func TestFileLoader_MissingDirectorySkippedWithWarning(t *testing.T) {
	existing := t.TempDir()
	loader := NewFileLoader([]string{existing, "/does/not/exist"}, "", "", "")

	databases, err := loader.LoadDatabases(context.Background())
	require.NoError(t, err)
	assert.Empty(t, databases)

	warnings := loader.Warnings()
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "does/not/exist")
}

func TestFileLoader_MalformedYAMLReturnsLoadError(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "broken-database.yml", "databases: [this is not a map")

	loader := NewFileLoader([]string{dir}, "", "", "")
	_, err := loader.LoadDatabases(context.Background())
	require.Error(t, err)

	var loadErr *LoadError
	require.ErrorAs(t, err, &loadErr)
	assert.Contains(t, loadErr.File, "broken-database.yml")
}

func TestFileLoader_LoadsQueriesAndEndpoints(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "orders-query.yml", `
queries:
  find_order:
    database: orders_db
    sql: "SELECT * FROM orders WHERE id = ?"
    parameters:
      - name: id
        type: LONG
        required: true
`)
	writeFile(t, dir, "orders-endpoint.yml", `
endpoints:
  get_order:
    path: /orders/{id}
    method: GET
    query: find_order
    parameters:
      - name: id
        source: path
        type: LONG
        required: true
`)

	loader := NewFileLoader([]string{dir}, "", "", "")

	queries, err := loader.LoadQueries(context.Background())
	require.NoError(t, err)
	require.Contains(t, queries, "find_order")
	assert.Equal(t, "orders_db", queries["find_order"].Database)

	endpoints, err := loader.LoadEndpoints(context.Background())
	require.NoError(t, err)
	require.Contains(t, endpoints, "get_order")
	assert.Equal(t, "/orders/{id}", endpoints["get_order"].Path)
}
