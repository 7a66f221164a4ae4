// Package migration copies registry definitions between two ConfigSources
// (YAML files and the metadata database, in either direction), and reports
// what it found: what it moved, what already matched, and what diverges.
package migration

import (
	"context"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/vitaliisemenov/sql-gateway/internal/configsource"
	"github.com/vitaliisemenov/sql-gateway/internal/registry"
)

// KindResult is one kind's (databases/queries/endpoints) tally from a
// Migrate run.
type KindResult struct {
	Created int      `json:"created"`
	Updated int      `json:"updated"`
	Failed  int      `json:"failed"`
	Errors  []string `json:"errors,omitempty"`
}

// Report is the outcome of one Migrate call, timestamped so callers can
// tell how long the copy took.
type Report struct {
	Databases   KindResult `json:"databases"`
	Queries     KindResult `json:"queries"`
	Endpoints   KindResult `json:"endpoints"`
	StartedAt   string     `json:"startedAt"`
	CompletedAt string     `json:"completedAt"`
}

// Clock abstracts the wall-clock timestamps a Report carries, so callers can
// inject a fixed clock in tests.
type Clock func() string

// YAMLTriple is the three-document YAML export of a source's full
// configuration.
type YAMLTriple struct {
	Databases string
	Queries   string
	Endpoints string
}

// NameDiff is the set difference between two sources' definitions for one
// kind, by name.
type NameDiff struct {
	OnlyInA []string `json:"onlyInA"`
	OnlyInB []string `json:"onlyInB"`
	InBoth  []string `json:"inBoth"`
}

// ComparisonReport is the per-kind NameDiff between two sources.
type ComparisonReport struct {
	Databases NameDiff `json:"databases"`
	Queries   NameDiff `json:"queries"`
	Endpoints NameDiff `json:"endpoints"`
}

// StatusReport counts the current source's definitions per kind.
type StatusReport struct {
	Databases int    `json:"databases"`
	Queries   int    `json:"queries"`
	Endpoints int    `json:"endpoints"`
	Source    string `json:"currentSource"`
}

// Service implements the gateway's migration operations. Destination
// (the writable half of a migration) is either a DbLoader, which supports
// upsert writes, or a FileLoader, which supports merged-document writes.
type Service struct {
	clock Clock
}

// New builds a Service. clock supplies the Report timestamps; pass a fixed
// function in tests.
func New(clock Clock) *Service {
	return &Service{clock: clock}
}

// Migrate reads all three maps from src and upserts each into dst. A
// failure against one kind does not abort the others; within a kind, each
// entry is written independently.
func (s *Service) Migrate(ctx context.Context, src configsource.Source, dst configsource.Writer) (*Report, error) {
	report := &Report{StartedAt: s.clock()}

	databases, err := src.LoadDatabases(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading source databases: %w", err)
	}
	report.Databases = upsertDatabases(ctx, dst, databases)

	queries, err := src.LoadQueries(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading source queries: %w", err)
	}
	report.Queries = upsertQueries(ctx, dst, queries)

	endpoints, err := src.LoadEndpoints(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading source endpoints: %w", err)
	}
	report.Endpoints = upsertEndpoints(ctx, dst, endpoints)

	report.CompletedAt = s.clock()
	return report, nil
}

func upsertDatabases(ctx context.Context, dst configsource.Writer, databases map[string]registry.DatabaseConfig) KindResult {
	result := KindResult{}
	for name, cfg := range databases {
		created, err := dst.UpsertDatabase(ctx, name, cfg)
		if err != nil {
			result.Failed++
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %s", name, err))
			continue
		}
		if created {
			result.Created++
		} else {
			result.Updated++
		}
	}
	return result
}

func upsertQueries(ctx context.Context, dst configsource.Writer, queries map[string]registry.QueryConfig) KindResult {
	result := KindResult{}
	for name, cfg := range queries {
		created, err := dst.UpsertQuery(ctx, name, cfg)
		if err != nil {
			result.Failed++
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %s", name, err))
			continue
		}
		if created {
			result.Created++
		} else {
			result.Updated++
		}
	}
	return result
}

func upsertEndpoints(ctx context.Context, dst configsource.Writer, endpoints map[string]registry.EndpointConfig) KindResult {
	result := KindResult{}
	for name, cfg := range endpoints {
		created, err := dst.UpsertEndpoint(ctx, name, cfg)
		if err != nil {
			result.Failed++
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %s", name, err))
			continue
		}
		if created {
			result.Created++
		} else {
			result.Updated++
		}
	}
	return result
}

// Export serializes src's full configuration as three standalone YAML
// documents, in the same {kind: {name: cfg}} shape FileLoader reads.
func (s *Service) Export(ctx context.Context, src configsource.Source) (*YAMLTriple, error) {
	databases, err := src.LoadDatabases(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading databases for export: %w", err)
	}
	queries, err := src.LoadQueries(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading queries for export: %w", err)
	}
	endpoints, err := src.LoadEndpoints(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading endpoints for export: %w", err)
	}

	dbDoc, err := yaml.Marshal(struct {
		Databases map[string]registry.DatabaseConfig `yaml:"databases"`
	}{databases})
	if err != nil {
		return nil, fmt.Errorf("marshaling databases document: %w", err)
	}
	queryDoc, err := yaml.Marshal(struct {
		Queries map[string]registry.QueryConfig `yaml:"queries"`
	}{queries})
	if err != nil {
		return nil, fmt.Errorf("marshaling queries document: %w", err)
	}
	endpointDoc, err := yaml.Marshal(struct {
		Endpoints map[string]registry.EndpointConfig `yaml:"endpoints"`
	}{endpoints})
	if err != nil {
		return nil, fmt.Errorf("marshaling endpoints document: %w", err)
	}

	return &YAMLTriple{
		Databases: string(dbDoc),
		Queries:   string(queryDoc),
		Endpoints: string(endpointDoc),
	}, nil
}

// Compare loads both sources and returns the per-kind name set difference.
func (s *Service) Compare(ctx context.Context, a, b configsource.Source) (*ComparisonReport, error) {
	aDatabases, err := a.LoadDatabases(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading source A databases: %w", err)
	}
	bDatabases, err := b.LoadDatabases(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading source B databases: %w", err)
	}

	aQueries, err := a.LoadQueries(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading source A queries: %w", err)
	}
	bQueries, err := b.LoadQueries(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading source B queries: %w", err)
	}

	aEndpoints, err := a.LoadEndpoints(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading source A endpoints: %w", err)
	}
	bEndpoints, err := b.LoadEndpoints(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading source B endpoints: %w", err)
	}

	return &ComparisonReport{
		Databases: diffNames(keysOf(aDatabases), keysOf(bDatabases)),
		Queries:   diffNames(keysOf(aQueries), keysOf(bQueries)),
		Endpoints: diffNames(keysOf(aEndpoints), keysOf(bEndpoints)),
	}, nil
}

// Status loads src once and reports per-kind counts.
func (s *Service) Status(ctx context.Context, src configsource.Source, sourceLabel string) (*StatusReport, error) {
	databases, err := src.LoadDatabases(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading databases for status: %w", err)
	}
	queries, err := src.LoadQueries(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading queries for status: %w", err)
	}
	endpoints, err := src.LoadEndpoints(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading endpoints for status: %w", err)
	}

	return &StatusReport{
		Databases: len(databases),
		Queries:   len(queries),
		Endpoints: len(endpoints),
		Source:    sourceLabel,
	}, nil
}

func keysOf[T any](m map[string]T) map[string]struct{} {
	out := make(map[string]struct{}, len(m))
	for k := range m {
		out[k] = struct{}{}
	}
	return out
}

func diffNames(a, b map[string]struct{}) NameDiff {
	diff := NameDiff{}
	for name := range a {
		if _, ok := b[name]; ok {
			diff.InBoth = append(diff.InBoth, name)
		} else {
			diff.OnlyInA = append(diff.OnlyInA, name)
		}
	}
	for name := range b {
		if _, ok := a[name]; !ok {
			diff.OnlyInB = append(diff.OnlyInB, name)
		}
	}
	return diff
}
