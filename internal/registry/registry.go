package registry

import "fmt"

// ValidationReport aggregates the structural, referential and pagination
// checks run by Build. Errors halt startup; Warnings are retained on the
// constructed Registry and surfaced through the management API.
type ValidationReport struct {
	Errors   []string
	Warnings []string
}

// ConfigurationError is returned by Build when a ValidationReport carries at
// least one error; it is never raised once the process is serving traffic.
type ConfigurationError struct {
	Report ValidationReport
}

func (e *ConfigurationError) Error() string {
	if len(e.Report.Errors) == 1 {
		return fmt.Sprintf("configuration error: %s", e.Report.Errors[0])
	}
	return fmt.Sprintf("configuration error: %d issues found, first: %s", len(e.Report.Errors), e.Report.Errors[0])
}

// Registry is the immutable, validated set of databases, queries and
// endpoints the gateway serves from. Construct with Build; a Registry is
// safe for concurrent reads without synchronization.
type Registry struct {
	databases map[string]DatabaseConfig
	queries   map[string]QueryConfig
	endpoints map[string]EndpointConfig

	databaseToQueries map[string][]string
	queryToEndpoints  map[string][]string

	warnings []string
}

// Build validates the three maps and constructs an immutable Registry. The
// input maps are copied; name fields are populated from the map keys.
func Build(databases map[string]DatabaseConfig, queries map[string]QueryConfig, endpoints map[string]EndpointConfig) (*Registry, error) {
	r := &Registry{
		databases:         make(map[string]DatabaseConfig, len(databases)),
		queries:           make(map[string]QueryConfig, len(queries)),
		endpoints:         make(map[string]EndpointConfig, len(endpoints)),
		databaseToQueries: make(map[string][]string),
		queryToEndpoints:  make(map[string][]string),
	}

	for name, db := range databases {
		db.Name = name
		r.databases[name] = db
	}
	for name, q := range queries {
		q.Name = name
		r.queries[name] = q
	}
	for name, ep := range endpoints {
		ep.Name = name
		r.endpoints[name] = ep
	}

	report := r.validate()
	if len(report.Errors) > 0 {
		return nil, &ConfigurationError{Report: report}
	}
	r.warnings = report.Warnings

	for _, q := range r.queries {
		r.databaseToQueries[q.Database] = append(r.databaseToQueries[q.Database], q.Name)
	}
	for _, ep := range r.endpoints {
		r.queryToEndpoints[ep.Query] = append(r.queryToEndpoints[ep.Query], ep.Name)
		if ep.CountQuery != "" {
			r.queryToEndpoints[ep.CountQuery] = append(r.queryToEndpoints[ep.CountQuery], ep.Name)
		}
	}

	return r, nil
}

func (r *Registry) validate() ValidationReport {
	var report ValidationReport

	seenPaths := make(map[string]bool)

	for name, db := range r.databases {
		if name == "" {
			report.Errors = append(report.Errors, "database entry has empty name")
			continue
		}
		if db.URL == "" {
			report.Errors = append(report.Errors, fmt.Sprintf("database %q: url is required", name))
		}
		if db.Driver == "" {
			report.Errors = append(report.Errors, fmt.Sprintf("database %q: driver is required", name))
		}
	}

	for name, q := range r.queries {
		if q.SQL == "" {
			report.Errors = append(report.Errors, fmt.Sprintf("query %q: sql is required", name))
		}
		if q.Database == "" {
			report.Errors = append(report.Errors, fmt.Sprintf("query %q: database is required", name))
		} else if _, ok := r.databases[q.Database]; !ok {
			report.Errors = append(report.Errors, fmt.Sprintf("query %q references non-existent database: %s", name, q.Database))
		}
		seenParams := make(map[string]bool, len(q.Parameters))
		for _, p := range q.Parameters {
			if p.Name == "" {
				report.Errors = append(report.Errors, fmt.Sprintf("query %q: parameter has empty name", name))
				continue
			}
			if seenParams[p.Name] {
				report.Errors = append(report.Errors, fmt.Sprintf("query %q: duplicate parameter name: %s", name, p.Name))
			}
			seenParams[p.Name] = true
			if !p.Type.Valid() {
				report.Errors = append(report.Errors, fmt.Sprintf("query %q: parameter %q has invalid type: %s", name, p.Name, p.Type))
			}
		}
	}

	for name, ep := range r.endpoints {
		if ep.Path == "" {
			report.Errors = append(report.Errors, fmt.Sprintf("endpoint %q: path is required", name))
		}
		if ep.Method != "GET" {
			report.Errors = append(report.Errors, fmt.Sprintf("endpoint %q: method must be GET, got %q", name, ep.Method))
		}
		key := ep.Method + " " + ep.Path
		if seenPaths[key] {
			report.Errors = append(report.Errors, fmt.Sprintf("endpoint %q: duplicate route %s", name, key))
		}
		seenPaths[key] = true

		if ep.Query == "" {
			report.Errors = append(report.Errors, fmt.Sprintf("endpoint %q: query is required", name))
		} else if _, ok := r.queries[ep.Query]; !ok {
			report.Errors = append(report.Errors, fmt.Sprintf("endpoint %q references non-existent query: %s", name, ep.Query))
		}
		if ep.CountQuery != "" {
			if _, ok := r.queries[ep.CountQuery]; !ok {
				report.Errors = append(report.Errors, fmt.Sprintf("endpoint %q references non-existent count query: %s", name, ep.CountQuery))
			}
		}

		for _, p := range ep.Parameters {
			if !p.Source.Valid() {
				report.Errors = append(report.Errors, fmt.Sprintf("endpoint %q: parameter %q has invalid source: %s", name, p.Name, p.Source))
			}
			if !p.Type.Valid() {
				report.Errors = append(report.Errors, fmt.Sprintf("endpoint %q: parameter %q has invalid type: %s", name, p.Name, p.Type))
			}
		}

		if ep.Pagination != nil && ep.Pagination.Enabled {
			if ep.Pagination.MaxSize <= 0 {
				report.Errors = append(report.Errors, fmt.Sprintf("endpoint %q: pagination.maxSize must be > 0", name))
			}
			if ep.Pagination.DefaultSize <= 0 {
				report.Errors = append(report.Errors, fmt.Sprintf("endpoint %q: pagination.defaultSize must be > 0", name))
			}
			if ep.Pagination.DefaultSize > ep.Pagination.MaxSize {
				report.Errors = append(report.Errors, fmt.Sprintf("endpoint %q: pagination.defaultSize must be <= maxSize", name))
			}
			if ep.CountQuery == "" {
				report.Warnings = append(report.Warnings, fmt.Sprintf("endpoint %q: pagination enabled without countQuery, totalElements will equal the page length", name))
			}
		}
	}

	return report
}

// Database looks up a DatabaseConfig by name.
func (r *Registry) Database(name string) (DatabaseConfig, bool) {
	db, ok := r.databases[name]
	return db, ok
}

// Query looks up a QueryConfig by name.
func (r *Registry) Query(name string) (QueryConfig, bool) {
	q, ok := r.queries[name]
	return q, ok
}

// Endpoint looks up an EndpointConfig by name.
func (r *Registry) Endpoint(name string) (EndpointConfig, bool) {
	ep, ok := r.endpoints[name]
	return ep, ok
}

// Databases returns a copy of the database map, keyed by name.
func (r *Registry) Databases() map[string]DatabaseConfig {
	out := make(map[string]DatabaseConfig, len(r.databases))
	for k, v := range r.databases {
		out[k] = v
	}
	return out
}

// Queries returns a copy of the query map, keyed by name.
func (r *Registry) Queries() map[string]QueryConfig {
	out := make(map[string]QueryConfig, len(r.queries))
	for k, v := range r.queries {
		out[k] = v
	}
	return out
}

// Endpoints returns a copy of the endpoint map, keyed by name.
func (r *Registry) Endpoints() map[string]EndpointConfig {
	out := make(map[string]EndpointConfig, len(r.endpoints))
	for k, v := range r.endpoints {
		out[k] = v
	}
	return out
}

// RelatedQueries returns the names of queries that reference databaseName.
func (r *Registry) RelatedQueries(databaseName string) []string {
	return append([]string(nil), r.databaseToQueries[databaseName]...)
}

// RelatedEndpoints returns the names of endpoints that reference queryName
// as either their query or their count query.
func (r *Registry) RelatedEndpoints(queryName string) []string {
	return append([]string(nil), r.queryToEndpoints[queryName]...)
}

// Warnings returns the non-fatal issues surfaced during validation.
func (r *Registry) Warnings() []string {
	return append([]string(nil), r.warnings...)
}

// Counts returns the number of entries of each kind, in databases, queries,
// endpoints order, matching the ordering used by end-to-end test fixtures.
func (r *Registry) Counts() (databases, queries, endpoints int) {
	return len(r.databases), len(r.queries), len(r.endpoints)
}
