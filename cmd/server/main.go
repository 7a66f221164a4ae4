// Package main is the entry point for the SQL gateway server.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"

	"github.com/vitaliisemenov/sql-gateway/internal/apimetrics"
	"github.com/vitaliisemenov/sql-gateway/internal/apirouter"
	"github.com/vitaliisemenov/sql-gateway/internal/configsource"
	"github.com/vitaliisemenov/sql-gateway/internal/dbpool"
	"github.com/vitaliisemenov/sql-gateway/internal/dispatcher"
	"github.com/vitaliisemenov/sql-gateway/internal/health"
	"github.com/vitaliisemenov/sql-gateway/internal/management"
	"github.com/vitaliisemenov/sql-gateway/internal/metadataschema"
	"github.com/vitaliisemenov/sql-gateway/internal/procconfig"
	"github.com/vitaliisemenov/sql-gateway/internal/registry"
	"github.com/vitaliisemenov/sql-gateway/internal/repository"
	"github.com/vitaliisemenov/sql-gateway/pkg/logger"
)

const (
	serviceName    = "sql-gateway"
	serviceVersion = "1.0.0"
)

func main() {
	var showVersion = flag.Bool("version", false, "Show version information")
	var showHelp = flag.Bool("help", false, "Show help information")
	var configPath = flag.String("config", os.Getenv("GATEWAY_CONFIG"), "Path to the gateway's YAML config file")
	flag.Parse()

	if *showVersion {
		fmt.Printf("%s version %s\n", serviceName, serviceVersion)
		os.Exit(0)
	}
	if *showHelp {
		fmt.Printf("SQL Gateway - config-driven SQL API gateway\n\n")
		fmt.Printf("Usage: %s [options]\n\n", os.Args[0])
		fmt.Printf("Options:\n")
		fmt.Printf("  -config     Path to the gateway's YAML config file\n")
		fmt.Printf("  -version    Show version information\n")
		fmt.Printf("  -help       Show this help message\n\n")
		os.Exit(0)
	}

	cfg, err := procconfig.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "loading configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.NewLogger(logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		Filename:   cfg.Log.Filename,
		MaxSize:    cfg.Log.MaxSize,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAge:     cfg.Log.MaxAge,
		Compress:   cfg.Log.Compress,
	})
	slog.SetDefault(log)

	log.Info("starting sql gateway", "service", serviceName, "version", serviceVersion)

	ctx := context.Background()

	reg, pools, err := buildRegistry(ctx, cfg, log)
	if err != nil {
		log.Error("failed to build registry", "error", err)
		os.Exit(1)
	}
	defer pools.Close()

	for _, warning := range reg.Warnings() {
		log.Warn("registry warning", "warning", warning)
	}

	repo := repository.New(pools)
	disp := dispatcher.New(reg, pools, repo)

	monitor := health.New(reg, pools, log, cfg.Health.CacheTTL, cfg.Health.ProbeTimeout)
	monitor.Start(ctx, cfg.Health.ProbeInterval)
	defer monitor.Stop()

	metrics := apimetrics.NewRecorder()
	mgmt := management.New(reg, monitor, metrics)

	routerCfg := apirouter.DefaultConfig()
	routerCfg.EnableMetrics = cfg.Metrics.Enabled
	if cfg.Metrics.Path != "" {
		routerCfg.MetricsPath = cfg.Metrics.Path
	}
	routerCfg.Management = mgmt
	routerCfg.Metrics = metrics

	handler := apirouter.New(reg, disp, monitor, log, routerCfg)

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		log.Info("http server starting", "addr", cfg.Addr())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("http server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	<-quit
	log.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	log.Info("server exited")
}

// buildRegistry resolves cfg.Config.Source into a live Registry and the
// pool Manager backing it. When the source is the metadata database, the
// connection to reach it is taken directly from cfg.Metadata rather than
// from the registry, since the registry doesn't exist until that
// connection has loaded it.
func buildRegistry(ctx context.Context, cfg *procconfig.Config, log *slog.Logger) (*registry.Registry, *dbpool.Manager, error) {
	var (
		source    configsource.Source
		bootstrap *dbpool.Manager
	)

	switch cfg.Config.Source {
	case procconfig.SourceFile:
		source = configsource.NewFileLoader(cfg.Config.Directories, cfg.Config.DatabasePattern, cfg.Config.QueryPattern, cfg.Config.EndpointPattern)

	case procconfig.SourceDatabase:
		metadataDB := registry.DatabaseConfig{
			Driver:   cfg.Metadata.Driver,
			URL:      cfg.Metadata.URL,
			Username: cfg.Metadata.Username,
			Password: cfg.Metadata.Password,
		}
		bootstrapReg, err := registry.Build(
			map[string]registry.DatabaseConfig{cfg.Metadata.DatabaseName: metadataDB},
			nil, nil,
		)
		if err != nil {
			return nil, nil, fmt.Errorf("building bootstrap registry for metadata database: %w", err)
		}

		bootstrap = dbpool.NewManager(bootstrapReg, log)
		pool, err := bootstrap.Acquire(ctx, cfg.Metadata.DatabaseName)
		if err != nil {
			return nil, nil, fmt.Errorf("connecting to metadata database: %w", err)
		}

		dsn := metadataDSN(cfg)
		if cfg.Metadata.MigrationDir != "" {
			if err := metadataschema.Up(dsn, cfg.Metadata.Driver, cfg.Metadata.MigrationDir, log); err != nil {
				return nil, nil, fmt.Errorf("applying metadata schema migrations: %w", err)
			}
		}

		source = configsource.NewDbLoader(pool)

	default:
		return nil, nil, fmt.Errorf("unsupported config.source %q", cfg.Config.Source)
	}

	databases, err := source.LoadDatabases(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("loading databases: %w", err)
	}
	queries, err := source.LoadQueries(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("loading queries: %w", err)
	}
	endpoints, err := source.LoadEndpoints(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("loading endpoints: %w", err)
	}
	for _, warning := range source.Warnings() {
		log.Warn("config source warning", "warning", warning)
	}

	if cfg.Config.Source == procconfig.SourceDatabase {
		if _, exists := databases[cfg.Metadata.DatabaseName]; !exists {
			databases[cfg.Metadata.DatabaseName] = registry.DatabaseConfig{
				Driver:   cfg.Metadata.Driver,
				URL:      cfg.Metadata.URL,
				Username: cfg.Metadata.Username,
				Password: cfg.Metadata.Password,
			}
		}
	}

	reg, err := registry.Build(databases, queries, endpoints)
	if err != nil {
		return nil, nil, err
	}

	var pools *dbpool.Manager
	if bootstrap != nil {
		bootstrap.Close()
	}
	pools = dbpool.NewManager(reg, log)

	warmUp(ctx, pools, reg, log)

	return reg, pools, nil
}

// warmUp opens every configured database's pool eagerly at startup so a
// database's availability is known before the first request touches it,
// rather than left UNKNOWN until first use.
func warmUp(ctx context.Context, pools *dbpool.Manager, reg *registry.Registry, log *slog.Logger) {
	for name := range reg.Databases() {
		if _, err := pools.Acquire(ctx, name); err != nil {
			log.Warn("database unavailable at startup", "database", name, "error", err)
		}
	}
}

// metadataDSN mirrors dbpool's credential-injection rule for postgres URLs,
// since metadataschema opens its own database/sql connection outside the
// pool Manager.
func metadataDSN(cfg *procconfig.Config) string {
	if cfg.Metadata.Driver != "postgres" || (cfg.Metadata.Username == "" && cfg.Metadata.Password == "") {
		return cfg.Metadata.URL
	}
	u, err := url.Parse(cfg.Metadata.URL)
	if err != nil || u.User != nil {
		return cfg.Metadata.URL
	}
	u.User = url.UserPassword(cfg.Metadata.Username, cfg.Metadata.Password)
	return u.String()
}
