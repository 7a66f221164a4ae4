// Package procconfig loads the process-level configuration for the gateway
// server: where the declarative registry comes from, how it is loaded, and
// the ambient server/metrics/logging knobs around it.
package procconfig

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Source selects where the three registries (databases, queries, endpoints)
// are loaded from.
type Source string

const (
	// SourceFile loads the registry from YAML files on disk.
	SourceFile Source = "file"
	// SourceDatabase loads the registry from the metadata database tables.
	SourceDatabase Source = "database"
)

// Config is the root process configuration, unmarshalled by viper from a
// YAML file and environment overrides.
type Config struct {
	Config    RegistryConfig  `mapstructure:"config"`
	Server    ServerConfig    `mapstructure:"server"`
	Metadata  MetadataConfig  `mapstructure:"metadata"`
	Health    HealthConfig    `mapstructure:"health"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Log       LogConfig       `mapstructure:"log"`
}

// RegistryConfig controls how the three registries are sourced.
type RegistryConfig struct {
	Source             Source   `mapstructure:"source"`
	Directories         []string `mapstructure:"directories"`
	DatabasePattern     string   `mapstructure:"database_pattern"`
	QueryPattern        string   `mapstructure:"query_pattern"`
	EndpointPattern     string   `mapstructure:"endpoint_pattern"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Host                    string        `mapstructure:"host"`
	Port                    int           `mapstructure:"port"`
	ReadTimeout             time.Duration `mapstructure:"read_timeout"`
	WriteTimeout            time.Duration `mapstructure:"write_timeout"`
	IdleTimeout             time.Duration `mapstructure:"idle_timeout"`
	GracefulShutdownTimeout time.Duration `mapstructure:"graceful_shutdown_timeout"`
}

// MetadataConfig describes the connection the gateway uses to reach its own
// bookkeeping database: the config_databases/config_queries/config_endpoints
// tables DbLoader reads from and goose migrates. It is configured directly,
// independent of the registry, because when config.source is "database" the
// registry itself doesn't exist yet until this connection opens it.
type MetadataConfig struct {
	DatabaseName string `mapstructure:"database_name"`
	Driver       string `mapstructure:"driver"`
	URL          string `mapstructure:"url"`
	Username     string `mapstructure:"username"`
	Password     string `mapstructure:"password"`
	MigrationDir string `mapstructure:"migration_dir"`
}

// HealthConfig controls the background pool prober.
type HealthConfig struct {
	ProbeInterval  time.Duration `mapstructure:"probe_interval"`
	ProbeTimeout   time.Duration `mapstructure:"probe_timeout"`
	CacheTTL       time.Duration `mapstructure:"cache_ttl"`
}

// MetricsConfig controls the Prometheus exposition endpoint.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// LogConfig mirrors pkg/logger.Config, duplicated here as the mapstructure
// decode target; procconfig has no dependency on pkg/logger.
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Output     string `mapstructure:"output"`
	Filename   string `mapstructure:"filename"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
	Compress   bool   `mapstructure:"compress"`
}

// Load reads configPath (if non-empty) and environment overrides into a
// validated Config. Environment variables replace "." with "_", e.g.
// SERVER_PORT overrides server.port.
func Load(configPath string) (*Config, error) {
	setDefaults()

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if configPath != "" {
		viper.SetConfigFile(configPath)
		viper.SetConfigType("yaml")
		if err := viper.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

func setDefaults() {
	viper.SetDefault("config.source", "file")
	viper.SetDefault("config.directories", []string{"./config"})
	viper.SetDefault("config.database_pattern", "*-database.yml")
	viper.SetDefault("config.query_pattern", "*-query.yml")
	viper.SetDefault("config.endpoint_pattern", "*-endpoint.yml")

	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", "30s")
	viper.SetDefault("server.write_timeout", "30s")
	viper.SetDefault("server.idle_timeout", "120s")
	viper.SetDefault("server.graceful_shutdown_timeout", "30s")

	viper.SetDefault("metadata.database_name", "_metadata")
	viper.SetDefault("metadata.driver", "sqlite")
	viper.SetDefault("metadata.url", "file:metadata.db?_pragma=foreign_keys(1)")
	viper.SetDefault("metadata.migration_dir", "migrations/sqlite")

	viper.SetDefault("health.probe_interval", "30s")
	viper.SetDefault("health.probe_timeout", "5s")
	viper.SetDefault("health.cache_ttl", "30s")

	viper.SetDefault("metrics.enabled", true)
	viper.SetDefault("metrics.path", "/metrics")

	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "json")
	viper.SetDefault("log.output", "stdout")
	viper.SetDefault("log.max_size", 100)
	viper.SetDefault("log.max_backups", 3)
	viper.SetDefault("log.max_age", 28)
	viper.SetDefault("log.compress", true)
}

// Validate checks cross-field invariants that viper's defaults alone cannot
// guarantee (e.g. config.directories must be set when config.source is
// "file").
func (c *Config) Validate() error {
	switch c.Config.Source {
	case SourceFile, SourceDatabase:
	default:
		return fmt.Errorf("config.source must be %q or %q, got %q", SourceFile, SourceDatabase, c.Config.Source)
	}
	if c.Config.Source == SourceFile && len(c.Config.Directories) == 0 {
		return fmt.Errorf("config.directories must not be empty when config.source is %q", SourceFile)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}
	if c.Metadata.DatabaseName == "" {
		return fmt.Errorf("metadata.database_name is required")
	}
	if c.Metadata.Driver == "" || c.Metadata.URL == "" {
		return fmt.Errorf("metadata.driver and metadata.url are required")
	}
	if c.Health.ProbeInterval <= 0 {
		return fmt.Errorf("health.probe_interval must be greater than 0")
	}
	if c.Health.ProbeTimeout <= 0 {
		return fmt.Errorf("health.probe_timeout must be greater than 0")
	}
	if c.Health.CacheTTL <= 0 {
		return fmt.Errorf("health.cache_ttl must be greater than 0")
	}
	return nil
}

// Addr returns the host:port pair the HTTP server should bind to.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
