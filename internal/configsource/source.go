// Package configsource provides the two interchangeable ways to populate a
// registry.Registry: FileLoader (YAML files on disk) and DbLoader (the
// metadata database tables). Both implement Source.
package configsource

import (
	"context"
	"strconv"

	"github.com/vitaliisemenov/sql-gateway/internal/registry"
)

// Source is the capability set a registry loader must provide.
type Source interface {
	LoadDatabases(ctx context.Context) (map[string]registry.DatabaseConfig, error)
	LoadQueries(ctx context.Context) (map[string]registry.QueryConfig, error)
	LoadEndpoints(ctx context.Context) (map[string]registry.EndpointConfig, error)
	Warnings() []string
}

// Writer is the write-capable half of a Source, used as a migration
// destination. UpsertX reports whether the entry was newly created
// (true) or overwrote an existing one (false).
type Writer interface {
	Source
	UpsertDatabase(ctx context.Context, name string, cfg registry.DatabaseConfig) (created bool, err error)
	UpsertQuery(ctx context.Context, name string, cfg registry.QueryConfig) (created bool, err error)
	UpsertEndpoint(ctx context.Context, name string, cfg registry.EndpointConfig) (created bool, err error)
}

// LoadError is returned by FileLoader when a config document cannot be
// parsed, pointing at the offending file. FileLoader sets File and Err
// only; a line number, when the YAML decoder reports one, appears in Err's
// message and Line stays zero.
type LoadError struct {
	File string
	Line int
	Err  error
}

func (e *LoadError) Error() string {
	if e.Line > 0 {
		return e.File + ": line " + strconv.Itoa(e.Line) + ": " + e.Err.Error()
	}
	return e.File + ": " + e.Err.Error()
}

func (e *LoadError) Unwrap() error { return e.Err }
