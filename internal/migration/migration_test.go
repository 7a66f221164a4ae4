package migration

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitaliisemenov/sql-gateway/internal/registry"
)

// fakeSource is an in-memory configsource.Source/Writer used to exercise
// Service without a real FileLoader or DbLoader.
type fakeSource struct {
	databases map[string]registry.DatabaseConfig
	queries   map[string]registry.QueryConfig
	endpoints map[string]registry.EndpointConfig
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		databases: make(map[string]registry.DatabaseConfig),
		queries:   make(map[string]registry.QueryConfig),
		endpoints: make(map[string]registry.EndpointConfig),
	}
}

func (f *fakeSource) LoadDatabases(ctx context.Context) (map[string]registry.DatabaseConfig, error) {
	out := make(map[string]registry.DatabaseConfig, len(f.databases))
	for k, v := range f.databases {
		out[k] = v
	}
	return out, nil
}

func (f *fakeSource) LoadQueries(ctx context.Context) (map[string]registry.QueryConfig, error) {
	out := make(map[string]registry.QueryConfig, len(f.queries))
	for k, v := range f.queries {
		out[k] = v
	}
	return out, nil
}

func (f *fakeSource) LoadEndpoints(ctx context.Context) (map[string]registry.EndpointConfig, error) {
	out := make(map[string]registry.EndpointConfig, len(f.endpoints))
	for k, v := range f.endpoints {
		out[k] = v
	}
	return out, nil
}

func (f *fakeSource) Warnings() []string { return nil }

func (f *fakeSource) UpsertDatabase(ctx context.Context, name string, cfg registry.DatabaseConfig) (bool, error) {
	_, existed := f.databases[name]
	f.databases[name] = cfg
	return !existed, nil
}

func (f *fakeSource) UpsertQuery(ctx context.Context, name string, cfg registry.QueryConfig) (bool, error) {
	_, existed := f.queries[name]
	f.queries[name] = cfg
	return !existed, nil
}

func (f *fakeSource) UpsertEndpoint(ctx context.Context, name string, cfg registry.EndpointConfig) (bool, error) {
	_, existed := f.endpoints[name]
	f.endpoints[name] = cfg
	return !existed, nil
}

func fixedClock() string { return "2026-07-31T00:00:00Z" }

func TestService_Migrate_CreatesAndUpdates(t *testing.T) {
	src := newFakeSource()
	src.databases["orders_db"] = registry.DatabaseConfig{Driver: "postgres", URL: "postgres://x"}
	src.queries["find_order"] = registry.QueryConfig{Database: "orders_db", SQL: "SELECT 1"}
	src.endpoints["get_order"] = registry.EndpointConfig{Path: "/orders/{id}", Method: "GET", Query: "find_order"}

	dst := newFakeSource()
	dst.databases["orders_db"] = registry.DatabaseConfig{Driver: "postgres", URL: "postgres://stale"}

	svc := New(fixedClock)
	report, err := svc.Migrate(context.Background(), src, dst)
	require.NoError(t, err)

	assert.Equal(t, 0, report.Databases.Created)
	assert.Equal(t, 1, report.Databases.Updated)
	assert.Equal(t, 1, report.Queries.Created)
	assert.Equal(t, 1, report.Endpoints.Created)
	assert.Equal(t, "postgres://x", dst.databases["orders_db"].URL)
	assert.Equal(t, fixedClock(), report.StartedAt)
	assert.Equal(t, fixedClock(), report.CompletedAt)
}

func TestService_Export_ProducesThreeDocuments(t *testing.T) {
	src := newFakeSource()
	src.databases["orders_db"] = registry.DatabaseConfig{Driver: "postgres", URL: "postgres://x"}
	src.queries["find_order"] = registry.QueryConfig{Database: "orders_db", SQL: "SELECT 1"}
	src.endpoints["get_order"] = registry.EndpointConfig{Path: "/orders/{id}", Method: "GET", Query: "find_order"}

	svc := New(fixedClock)
	triple, err := svc.Export(context.Background(), src)
	require.NoError(t, err)

	assert.Contains(t, triple.Databases, "orders_db")
	assert.Contains(t, triple.Queries, "find_order")
	assert.Contains(t, triple.Endpoints, "get_order")
}

func TestService_Compare_ReportsSetDifference(t *testing.T) {
	a := newFakeSource()
	a.databases["orders_db"] = registry.DatabaseConfig{Driver: "postgres"}
	a.databases["shared_db"] = registry.DatabaseConfig{Driver: "postgres"}

	b := newFakeSource()
	b.databases["shared_db"] = registry.DatabaseConfig{Driver: "postgres"}
	b.databases["customers_db"] = registry.DatabaseConfig{Driver: "postgres"}

	svc := New(fixedClock)
	comparison, err := svc.Compare(context.Background(), a, b)
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"orders_db"}, comparison.Databases.OnlyInA)
	assert.ElementsMatch(t, []string{"customers_db"}, comparison.Databases.OnlyInB)
	assert.ElementsMatch(t, []string{"shared_db"}, comparison.Databases.InBoth)
}

func TestService_Status_CountsAndLabelsSource(t *testing.T) {
	src := newFakeSource()
	src.databases["orders_db"] = registry.DatabaseConfig{Driver: "postgres"}
	src.queries["find_order"] = registry.QueryConfig{Database: "orders_db"}

	svc := New(fixedClock)
	status, err := svc.Status(context.Background(), src, "files")
	require.NoError(t, err)

	assert.Equal(t, 1, status.Databases)
	assert.Equal(t, 1, status.Queries)
	assert.Equal(t, 0, status.Endpoints)
	assert.Equal(t, "files", status.Source)
}

func TestService_Migrate_PartialFailureDoesNotAbortOtherKinds(t *testing.T) {
	src := newFakeSource()
	src.databases["orders_db"] = registry.DatabaseConfig{Driver: "postgres"}
	src.queries["find_order"] = registry.QueryConfig{Database: "orders_db"}

	dst := &failingDatabaseWriter{fakeSource: newFakeSource()}

	svc := New(fixedClock)
	report, err := svc.Migrate(context.Background(), src, dst)
	require.NoError(t, err)

	assert.Equal(t, 1, report.Databases.Failed)
	require.Len(t, report.Databases.Errors, 1)
	assert.Equal(t, 1, report.Queries.Created)
}

// failingDatabaseWriter fails every database upsert but otherwise behaves
// like fakeSource, to prove one kind's failure doesn't prevent the others
// from running.
type failingDatabaseWriter struct {
	*fakeSource
}

func (f *failingDatabaseWriter) UpsertDatabase(ctx context.Context, name string, cfg registry.DatabaseConfig) (bool, error) {
	return false, assertErr
}

var assertErr = errUpsertFailed{}

type errUpsertFailed struct{}

func (errUpsertFailed) Error() string { return "upsert failed" }
