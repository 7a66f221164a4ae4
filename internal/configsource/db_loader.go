package configsource

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/vitaliisemenov/sql-gateway/internal/dbpool"
	"github.com/vitaliisemenov/sql-gateway/internal/registry"
)

// DbLoader reads the three registry tables from the metadata database
// instead of from YAML files on disk. It is the Source implementation
// backing RegistryConfig.Source == "database".
type DbLoader struct {
	pool dbpool.Pool

	warnings []string
}

// NewDbLoader wraps an already-open pool to the metadata database.
func NewDbLoader(pool dbpool.Pool) *DbLoader {
	return &DbLoader{pool: pool}
}

func (l *DbLoader) Warnings() []string {
	return append([]string(nil), l.warnings...)
}

func (l *DbLoader) warn(msg string) {
	l.warnings = append(l.warnings, msg)
}

func (l *DbLoader) LoadDatabases(ctx context.Context) (map[string]registry.DatabaseConfig, error) {
	rows, err := l.pool.Query(ctx, `
		SELECT name, description, url, username, password, driver, pool_config
		FROM config_databases
	`)
	if err != nil {
		return nil, fmt.Errorf("loading config_databases: %w", err)
	}
	defer rows.Close()

	out := make(map[string]registry.DatabaseConfig)
	for rows.Next() {
		var (
			name, description, url, username, password, driver string
			poolJSON                                            *string
		)
		if err := rows.Scan(&name, &description, &url, &username, &password, &driver, &poolJSON); err != nil {
			return nil, fmt.Errorf("scanning config_databases row: %w", err)
		}

		cfg := registry.DatabaseConfig{
			Description: description,
			URL:         url,
			Username:    username,
			Password:    password,
			Driver:      driver,
		}
		if poolJSON != nil && *poolJSON != "" {
			var pool registry.PoolConfig
			if err := json.Unmarshal([]byte(*poolJSON), &pool); err != nil {
				l.warn(fmt.Sprintf("database %q has an unparseable pool_config, ignoring: %v", name, err))
			} else {
				cfg.Pool = &pool
			}
		}
		if url == "" || driver == "" {
			l.warn(fmt.Sprintf("database %q is missing url or driver, row skipped", name))
			continue
		}
		out[name] = cfg
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating config_databases: %w", err)
	}
	return out, nil
}

func (l *DbLoader) LoadQueries(ctx context.Context) (map[string]registry.QueryConfig, error) {
	rows, err := l.pool.Query(ctx, `
		SELECT name, description, database, sql, parameters
		FROM config_queries
	`)
	if err != nil {
		return nil, fmt.Errorf("loading config_queries: %w", err)
	}
	defer rows.Close()

	out := make(map[string]registry.QueryConfig)
	for rows.Next() {
		var (
			name, description, database, sqlText string
			paramsJSON                            *string
		)
		if err := rows.Scan(&name, &description, &database, &sqlText, &paramsJSON); err != nil {
			return nil, fmt.Errorf("scanning config_queries row: %w", err)
		}

		cfg := registry.QueryConfig{
			Description: description,
			Database:    database,
			SQL:         sqlText,
		}
		if paramsJSON != nil && *paramsJSON != "" {
			var params []registry.QueryParameter
			if err := json.Unmarshal([]byte(*paramsJSON), &params); err != nil {
				l.warn(fmt.Sprintf("query %q has unparseable parameters, treating as none: %v", name, err))
			} else {
				cfg.Parameters = params
			}
		}
		if database == "" || sqlText == "" {
			l.warn(fmt.Sprintf("query %q is missing database or sql, row skipped", name))
			continue
		}
		out[name] = cfg
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating config_queries: %w", err)
	}
	return out, nil
}

func (l *DbLoader) LoadEndpoints(ctx context.Context) (map[string]registry.EndpointConfig, error) {
	rows, err := l.pool.Query(ctx, `
		SELECT name, path, method, description, query, count_query, pagination, parameters, response
		FROM config_endpoints
	`)
	if err != nil {
		return nil, fmt.Errorf("loading config_endpoints: %w", err)
	}
	defer rows.Close()

	out := make(map[string]registry.EndpointConfig)
	for rows.Next() {
		var (
			name, path, method, description, query string
			countQuery                              *string
			paginationJSON, paramsJSON, responseJSON *string
		)
		if err := rows.Scan(&name, &path, &method, &description, &query, &countQuery, &paginationJSON, &paramsJSON, &responseJSON); err != nil {
			return nil, fmt.Errorf("scanning config_endpoints row: %w", err)
		}

		if path == "" || method == "" || query == "" {
			l.warn(fmt.Sprintf("endpoint %q is missing path, method or query, row skipped", name))
			continue
		}

		cfg := registry.EndpointConfig{
			Path:        path,
			Method:      method,
			Description: description,
			Query:       query,
		}
		if countQuery != nil {
			cfg.CountQuery = *countQuery
		}
		if paginationJSON != nil && *paginationJSON != "" {
			var pagination registry.Pagination
			if err := json.Unmarshal([]byte(*paginationJSON), &pagination); err != nil {
				l.warn(fmt.Sprintf("endpoint %q has an unparseable pagination column, ignoring: %v", name, err))
			} else {
				cfg.Pagination = &pagination
			}
		}
		if paramsJSON != nil && *paramsJSON != "" {
			var params []registry.EndpointParameter
			if err := json.Unmarshal([]byte(*paramsJSON), &params); err != nil {
				l.warn(fmt.Sprintf("endpoint %q has unparseable parameters, treating as none: %v", name, err))
			} else {
				cfg.Parameters = params
			}
		}
		if responseJSON != nil && *responseJSON != "" {
			var response registry.ResponseShape
			if err := json.Unmarshal([]byte(*responseJSON), &response); err != nil {
				l.warn(fmt.Sprintf("endpoint %q has an unparseable response column, ignoring: %v", name, err))
			} else {
				cfg.Response = &response
			}
		}
		out[name] = cfg
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating config_endpoints: %w", err)
	}
	return out, nil
}

// UpsertDatabase inserts or overwrites a row in config_databases. Whether
// the row previously existed is determined with a preceding existence
// check, since the pool's upsert affects the same row either way.
func (l *DbLoader) UpsertDatabase(ctx context.Context, name string, cfg registry.DatabaseConfig) (bool, error) {
	existed, err := l.rowExists(ctx, "config_databases", name)
	if err != nil {
		return false, err
	}

	var poolJSON *string
	if cfg.Pool != nil {
		data, err := json.Marshal(cfg.Pool)
		if err != nil {
			return false, fmt.Errorf("marshaling pool_config for %q: %w", name, err)
		}
		s := string(data)
		poolJSON = &s
	}

	_, err = l.pool.Exec(ctx, `
		INSERT INTO config_databases (name, description, url, username, password, driver, pool_config, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, CURRENT_TIMESTAMP)
		ON CONFLICT (name) DO UPDATE SET
			description = EXCLUDED.description,
			url = EXCLUDED.url,
			username = EXCLUDED.username,
			password = EXCLUDED.password,
			driver = EXCLUDED.driver,
			pool_config = EXCLUDED.pool_config,
			updated_at = CURRENT_TIMESTAMP
	`, name, cfg.Description, cfg.URL, cfg.Username, cfg.Password, cfg.Driver, poolJSON)
	if err != nil {
		return false, fmt.Errorf("upserting database %q: %w", name, err)
	}
	return !existed, nil
}

// UpsertQuery inserts or overwrites a row in config_queries.
func (l *DbLoader) UpsertQuery(ctx context.Context, name string, cfg registry.QueryConfig) (bool, error) {
	existed, err := l.rowExists(ctx, "config_queries", name)
	if err != nil {
		return false, err
	}

	var paramsJSON *string
	if len(cfg.Parameters) > 0 {
		data, err := json.Marshal(cfg.Parameters)
		if err != nil {
			return false, fmt.Errorf("marshaling parameters for %q: %w", name, err)
		}
		s := string(data)
		paramsJSON = &s
	}

	_, err = l.pool.Exec(ctx, `
		INSERT INTO config_queries (name, description, database, sql, parameters, updated_at)
		VALUES ($1, $2, $3, $4, $5, CURRENT_TIMESTAMP)
		ON CONFLICT (name) DO UPDATE SET
			description = EXCLUDED.description,
			database = EXCLUDED.database,
			sql = EXCLUDED.sql,
			parameters = EXCLUDED.parameters,
			updated_at = CURRENT_TIMESTAMP
	`, name, cfg.Description, cfg.Database, cfg.SQL, paramsJSON)
	if err != nil {
		return false, fmt.Errorf("upserting query %q: %w", name, err)
	}
	return !existed, nil
}

// UpsertEndpoint inserts or overwrites a row in config_endpoints.
func (l *DbLoader) UpsertEndpoint(ctx context.Context, name string, cfg registry.EndpointConfig) (bool, error) {
	existed, err := l.rowExists(ctx, "config_endpoints", name)
	if err != nil {
		return false, err
	}

	marshalOptional := func(v interface{}) (*string, error) {
		if v == nil {
			return nil, nil
		}
		data, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		s := string(data)
		return &s, nil
	}

	var paginationJSON *string
	if cfg.Pagination != nil {
		var err error
		paginationJSON, err = marshalOptional(cfg.Pagination)
		if err != nil {
			return false, fmt.Errorf("marshaling pagination for %q: %w", name, err)
		}
	}
	var paramsJSON *string
	if len(cfg.Parameters) > 0 {
		var err error
		paramsJSON, err = marshalOptional(cfg.Parameters)
		if err != nil {
			return false, fmt.Errorf("marshaling parameters for %q: %w", name, err)
		}
	}
	var responseJSON *string
	if cfg.Response != nil {
		var err error
		responseJSON, err = marshalOptional(cfg.Response)
		if err != nil {
			return false, fmt.Errorf("marshaling response for %q: %w", name, err)
		}
	}
	var countQuery *string
	if cfg.CountQuery != "" {
		countQuery = &cfg.CountQuery
	}

	_, err = l.pool.Exec(ctx, `
		INSERT INTO config_endpoints (name, path, method, description, query, count_query, pagination, parameters, response, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, CURRENT_TIMESTAMP)
		ON CONFLICT (name) DO UPDATE SET
			path = EXCLUDED.path,
			method = EXCLUDED.method,
			description = EXCLUDED.description,
			query = EXCLUDED.query,
			count_query = EXCLUDED.count_query,
			pagination = EXCLUDED.pagination,
			parameters = EXCLUDED.parameters,
			response = EXCLUDED.response,
			updated_at = CURRENT_TIMESTAMP
	`, name, cfg.Path, cfg.Method, cfg.Description, cfg.Query, countQuery, paginationJSON, paramsJSON, responseJSON)
	if err != nil {
		return false, fmt.Errorf("upserting endpoint %q: %w", name, err)
	}
	return !existed, nil
}

func (l *DbLoader) rowExists(ctx context.Context, table, name string) (bool, error) {
	var exists bool
	err := l.pool.QueryRow(ctx, fmt.Sprintf("SELECT EXISTS(SELECT 1 FROM %s WHERE name = $1)", table), name).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("checking existence of %s %q: %w", table, name, err)
	}
	return exists, nil
}
