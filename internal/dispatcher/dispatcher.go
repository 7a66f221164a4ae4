package dispatcher

import (
	"context"
	"fmt"

	"github.com/vitaliisemenov/sql-gateway/internal/apierrors"
	"github.com/vitaliisemenov/sql-gateway/internal/dbpool"
	"github.com/vitaliisemenov/sql-gateway/internal/registry"
	"github.com/vitaliisemenov/sql-gateway/internal/repository"
)

// Dispatcher resolves one endpoint invocation: registry lookup, pool
// availability, parameter coercion, pagination arithmetic, query execution
// and response shaping. It is deterministic and side-effect-free beyond
// the single query (and optional count query) execution.
type Dispatcher struct {
	registry *registry.Registry
	pools    *dbpool.Manager
	repo     *repository.Repository
}

// New builds a Dispatcher.
func New(reg *registry.Registry, pools *dbpool.Manager, repo *repository.Repository) *Dispatcher {
	return &Dispatcher{registry: reg, pools: pools, repo: repo}
}

// Dispatch runs the full pipeline for endpointName against raw.
func (d *Dispatcher) Dispatch(ctx context.Context, endpointName string, raw RawParameters) (Response, error) {
	endpoint, ok := d.registry.Endpoint(endpointName)
	if !ok {
		return Response{}, apierrors.NewNotFound(fmt.Sprintf("endpoint %q not found", endpointName))
	}

	query, ok := d.registry.Query(endpoint.Query)
	if !ok {
		return Response{}, apierrors.NewInternalError(fmt.Sprintf("endpoint %q references unresolvable query %q", endpointName, endpoint.Query))
	}

	if !d.pools.IsAvailable(query.Database) {
		return Response{}, apierrors.NewServiceUnavailable(query.Database, d.pools.FailureReason(query.Database))
	}

	working := d.buildWorkingMap(endpoint, raw)

	paginated := endpoint.Pagination != nil && endpoint.Pagination.Enabled
	var page, size int
	if paginated {
		p, s, limit, offset, err := resolvePaging(*endpoint.Pagination, raw)
		if err != nil {
			return Response{}, err
		}
		page, size = p, s
		working["limit"] = limit
		working["offset"] = offset
	}

	params, err := bindParameters(query.Parameters, working)
	if err != nil {
		return Response{}, err
	}

	records, err := d.repo.ExecuteQuery(ctx, query, params)
	if err != nil {
		return Response{}, apierrors.NewInternalError(err.Error())
	}

	if !paginated {
		if len(records) == 0 {
			return Response{}, apierrors.NewNotFound("No data found")
		}
		return shapeNonPaginated(records), nil
	}

	var totalElements int64
	hasCountQuery := endpoint.CountQuery != ""
	if hasCountQuery {
		countQuery, ok := d.registry.Query(endpoint.CountQuery)
		if !ok {
			return Response{}, apierrors.NewInternalError(fmt.Sprintf("endpoint %q references unresolvable count query %q", endpointName, endpoint.CountQuery))
		}
		countParams := excludePagingParams(params)
		totalElements, err = d.repo.ExecuteCountQuery(ctx, countQuery, countParams)
		if err != nil {
			return Response{}, apierrors.NewInternalError(err.Error())
		}
	}

	meta := paginationMeta(page, size, totalElements, len(records), hasCountQuery)
	return newResponse(Paged, records, &meta), nil
}

func shapeNonPaginated(records []repository.Record) Response {
	if len(records) == 1 {
		return newResponse(Single, records[0], nil)
	}
	return newResponse(List, records, nil)
}

// buildWorkingMap merges body fields, query string and path vars into a
// single name -> raw value map, unconditionally — a value present on the
// request enters the map whether or not endpoint.Parameters declares it,
// since that list is optional. Path vars take precedence over query string,
// which takes precedence over body fields, mirroring the most-specific-wins
// convention of nested route scoping; endpoint.Parameters.Source is
// consulted only to resolve a same-name conflict across sources in favor of
// the source the query parameter actually declares.
func (d *Dispatcher) buildWorkingMap(endpoint registry.EndpointConfig, raw RawParameters) map[string]any {
	working := make(map[string]any)
	for k, v := range raw.BodyFields {
		working[k] = v
	}
	for k, values := range raw.QueryValue {
		if len(values) > 0 {
			working[k] = values[0]
		}
	}
	for k, v := range raw.PathVars {
		working[k] = v
	}

	for _, p := range endpoint.Parameters {
		switch p.Source {
		case registry.SourceBodyField:
			if v, ok := raw.BodyFields[p.Name]; ok {
				working[p.Name] = v
			}
		case registry.SourceQuery:
			if v := raw.QueryValue.Get(p.Name); v != "" {
				working[p.Name] = v
			}
		case registry.SourcePath:
			if v, ok := raw.PathVars[p.Name]; ok {
				working[p.Name] = v
			}
		}
	}
	return working
}

// bindParameters walks declaredParams in order, resolving each by name from
// working and coercing it to its declared type. Positions are 1-based and
// contiguous, skipping optional parameters that were not supplied.
func bindParameters(declaredParams []registry.QueryParameter, working map[string]any) ([]repository.BoundParameter, error) {
	bound := make([]repository.BoundParameter, 0, len(declaredParams))
	position := 1
	for _, decl := range declaredParams {
		raw, present := working[decl.Name]
		if !present {
			if decl.Required {
				return nil, apierrors.NewBadRequest(fmt.Sprintf("missing required parameter: %s", decl.Name))
			}
			continue
		}
		value, err := coerce(decl.Name, decl.Type, raw)
		if err != nil {
			return nil, err
		}
		bound = append(bound, repository.BoundParameter{
			Name:       decl.Name,
			Type:       decl.Type,
			Position:   position,
			TypedValue: value,
		})
		position++
	}
	return bound, nil
}

// excludePagingParams strips the trailing limit/offset entries a paginated
// query's bound parameter list carries, renumbering the remainder so the
// count query (which has no limit/offset placeholders) sees contiguous
// positions.
func excludePagingParams(params []repository.BoundParameter) []repository.BoundParameter {
	out := make([]repository.BoundParameter, 0, len(params))
	position := 1
	for _, p := range params {
		if p.Name == "limit" || p.Name == "offset" {
			continue
		}
		p.Position = position
		out = append(out, p)
		position++
	}
	return out
}
