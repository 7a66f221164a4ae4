package configsource

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/vitaliisemenov/sql-gateway/internal/registry"
)

// FileLoader scans an ordered list of directories for YAML documents
// matching the configured glob patterns and merges them into the three
// registry maps. Later directories (and, within a directory, later files
// in lexical order) override entries from earlier ones.
type FileLoader struct {
	Directories     []string
	DatabasePattern string
	QueryPattern    string
	EndpointPattern string

	warnings []string
}

type databaseDocument struct {
	Databases map[string]registry.DatabaseConfig `yaml:"databases"`
}

type queryDocument struct {
	Queries map[string]registry.QueryConfig `yaml:"queries"`
}

type endpointDocument struct {
	Endpoints map[string]registry.EndpointConfig `yaml:"endpoints"`
}

// NewFileLoader builds a FileLoader with the gateway's default glob
// patterns applied where a caller leaves a pattern empty.
func NewFileLoader(directories []string, databasePattern, queryPattern, endpointPattern string) *FileLoader {
	if databasePattern == "" {
		databasePattern = "*-database.yml"
	}
	if queryPattern == "" {
		queryPattern = "*-query.yml"
	}
	if endpointPattern == "" {
		endpointPattern = "*-endpoint.yml"
	}
	return &FileLoader{
		Directories:     directories,
		DatabasePattern: databasePattern,
		QueryPattern:    queryPattern,
		EndpointPattern: endpointPattern,
	}
}

func (l *FileLoader) LoadDatabases(ctx context.Context) (map[string]registry.DatabaseConfig, error) {
	merged := make(map[string]registry.DatabaseConfig)
	err := l.forEachMatch(l.DatabasePattern, func(path string) error {
		var doc databaseDocument
		if err := decodeYAML(path, &doc); err != nil {
			return err
		}
		for name, cfg := range doc.Databases {
			if _, exists := merged[name]; exists {
				l.warn(fmt.Sprintf("database %q redefined in %s, overriding earlier definition", name, path))
			}
			merged[name] = cfg
		}
		return nil
	})
	return merged, err
}

func (l *FileLoader) LoadQueries(ctx context.Context) (map[string]registry.QueryConfig, error) {
	merged := make(map[string]registry.QueryConfig)
	err := l.forEachMatch(l.QueryPattern, func(path string) error {
		var doc queryDocument
		if err := decodeYAML(path, &doc); err != nil {
			return err
		}
		for name, cfg := range doc.Queries {
			if _, exists := merged[name]; exists {
				l.warn(fmt.Sprintf("query %q redefined in %s, overriding earlier definition", name, path))
			}
			merged[name] = cfg
		}
		return nil
	})
	return merged, err
}

func (l *FileLoader) LoadEndpoints(ctx context.Context) (map[string]registry.EndpointConfig, error) {
	merged := make(map[string]registry.EndpointConfig)
	err := l.forEachMatch(l.EndpointPattern, func(path string) error {
		var doc endpointDocument
		if err := decodeYAML(path, &doc); err != nil {
			return err
		}
		for name, cfg := range doc.Endpoints {
			if _, exists := merged[name]; exists {
				l.warn(fmt.Sprintf("endpoint %q redefined in %s, overriding earlier definition", name, path))
			}
			merged[name] = cfg
		}
		return nil
	})
	return merged, err
}

// Warnings returns the non-fatal issues accumulated across every Load call
// so far (duplicate overrides, skipped directories).
func (l *FileLoader) Warnings() []string {
	return append([]string(nil), l.warnings...)
}

func (l *FileLoader) warn(msg string) {
	l.warnings = append(l.warnings, msg)
}

func (l *FileLoader) forEachMatch(pattern string, fn func(path string) error) error {
	for _, dir := range l.Directories {
		info, err := os.Stat(dir)
		if err != nil || !info.IsDir() {
			l.warn(fmt.Sprintf("config directory %q is missing, skipping", dir))
			continue
		}

		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return fmt.Errorf("invalid glob pattern %q: %w", pattern, err)
		}
		sort.Strings(matches)

		for _, path := range matches {
			if err := fn(path); err != nil {
				return err
			}
		}
	}
	return nil
}

const migratedFileName = "migrated"

// UpsertDatabase merges cfg into the generated migrated-database.yml file
// in the first configured directory, relying on FileLoader's own
// later-file-wins rule: an entry in the generated file overrides the same
// name only in same-kind files of that directory that sort before it
// lexically; files that sort after it, and files in later directories,
// override it.
func (l *FileLoader) UpsertDatabase(ctx context.Context, name string, cfg registry.DatabaseConfig) (bool, error) {
	doc := databaseDocument{}
	path, err := l.loadMigratedDocument(l.DatabasePattern, &doc)
	if err != nil {
		return false, err
	}
	if doc.Databases == nil {
		doc.Databases = make(map[string]registry.DatabaseConfig)
	}
	_, existed := doc.Databases[name]
	doc.Databases[name] = cfg
	if err := writeYAML(path, doc); err != nil {
		return false, err
	}
	return !existed, nil
}

// UpsertQuery merges cfg into the generated migrated-query.yml file.
func (l *FileLoader) UpsertQuery(ctx context.Context, name string, cfg registry.QueryConfig) (bool, error) {
	doc := queryDocument{}
	path, err := l.loadMigratedDocument(l.QueryPattern, &doc)
	if err != nil {
		return false, err
	}
	if doc.Queries == nil {
		doc.Queries = make(map[string]registry.QueryConfig)
	}
	_, existed := doc.Queries[name]
	doc.Queries[name] = cfg
	if err := writeYAML(path, doc); err != nil {
		return false, err
	}
	return !existed, nil
}

// UpsertEndpoint merges cfg into the generated migrated-endpoint.yml file.
func (l *FileLoader) UpsertEndpoint(ctx context.Context, name string, cfg registry.EndpointConfig) (bool, error) {
	doc := endpointDocument{}
	path, err := l.loadMigratedDocument(l.EndpointPattern, &doc)
	if err != nil {
		return false, err
	}
	if doc.Endpoints == nil {
		doc.Endpoints = make(map[string]registry.EndpointConfig)
	}
	_, existed := doc.Endpoints[name]
	doc.Endpoints[name] = cfg
	if err := writeYAML(path, doc); err != nil {
		return false, err
	}
	return !existed, nil
}

// loadMigratedDocument resolves the generated file's path for pattern
// within the first configured directory and decodes it into out if it
// already exists, so repeated upserts accumulate rather than clobber.
func (l *FileLoader) loadMigratedDocument(pattern string, out interface{}) (string, error) {
	if len(l.Directories) == 0 {
		return "", fmt.Errorf("no configured directory to write migrated config into")
	}
	path := filepath.Join(l.Directories[0], migratedFilename(pattern))

	if _, err := os.Stat(path); err == nil {
		if err := decodeYAML(path, out); err != nil {
			return "", err
		}
	} else if !os.IsNotExist(err) {
		return "", fmt.Errorf("checking %s: %w", path, err)
	}
	return path, nil
}

// migratedFilename turns a glob pattern like "*-database.yml" into the
// concrete generated filename "migrated-database.yml".
func migratedFilename(pattern string) string {
	return strings.Replace(pattern, "*", migratedFileName, 1)
}

func writeYAML(path string, doc interface{}) error {
	data, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshaling %s: %w", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

func decodeYAML(path string, out interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return &LoadError{File: path, Err: err}
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return &LoadError{File: path, Err: err}
	}
	return nil
}
