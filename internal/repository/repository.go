package repository

import (
	"context"
	"sort"

	"github.com/vitaliisemenov/sql-gateway/internal/dbpool"
	"github.com/vitaliisemenov/sql-gateway/internal/registry"
)

// Repository executes QueryConfig statements against the pool a database
// name resolves to. It performs no parameter name resolution — that is the
// Dispatcher's job; Repository receives already-bound, ordered parameters.
type Repository struct {
	pools *dbpool.Manager
}

// New builds a Repository backed by pools.
func New(pools *dbpool.Manager) *Repository {
	return &Repository{pools: pools}
}

// ExecuteQuery acquires the pool named by query.Database, binds params in
// position order and projects every returned row into a Record.
func (r *Repository) ExecuteQuery(ctx context.Context, query registry.QueryConfig, params []BoundParameter) ([]Record, error) {
	pool, err := r.pools.Acquire(ctx, query.Database)
	if err != nil {
		return nil, err
	}

	ordered := orderedByPosition(params)
	rows, err := pool.Query(ctx, query.SQL, driverArgs(ordered)...)
	if err != nil {
		return nil, &QueryExecutionError{Query: query.Name, Err: err}
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, &QueryExecutionError{Query: query.Name, Err: err}
	}

	var records []Record
	for rows.Next() {
		values := make([]any, len(cols))
		dest := make([]any, len(cols))
		for i := range values {
			dest[i] = &values[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, &QueryExecutionError{Query: query.Name, Err: err}
		}
		records = append(records, Record{Columns: cols, Values: values})
	}
	if err := rows.Err(); err != nil {
		return nil, &QueryExecutionError{Query: query.Name, Err: err}
	}

	return records, nil
}

// ExecuteCountQuery runs query the same way as ExecuteQuery and reads
// column 1 of the first row as a 64-bit count, returning 0 if no rows came
// back.
func (r *Repository) ExecuteCountQuery(ctx context.Context, query registry.QueryConfig, params []BoundParameter) (int64, error) {
	pool, err := r.pools.Acquire(ctx, query.Database)
	if err != nil {
		return 0, err
	}

	ordered := orderedByPosition(params)
	row := pool.QueryRow(ctx, query.SQL, driverArgs(ordered)...)

	var count int64
	if err := row.Scan(&count); err != nil {
		if err.Error() == "no rows in result set" || err.Error() == "sql: no rows in result set" {
			return 0, nil
		}
		return 0, &QueryExecutionError{Query: query.Name, Err: err}
	}
	return count, nil
}

func orderedByPosition(params []BoundParameter) []BoundParameter {
	ordered := make([]BoundParameter, len(params))
	copy(ordered, params)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Position < ordered[j].Position })
	return ordered
}
