// Package main is the CLI for moving registry configuration between YAML
// files and the metadata database.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/vitaliisemenov/sql-gateway/internal/configsource"
	"github.com/vitaliisemenov/sql-gateway/internal/dbpool"
	"github.com/vitaliisemenov/sql-gateway/internal/migration"
	"github.com/vitaliisemenov/sql-gateway/internal/registry"
)

// endpointFlags names one side of a migrate/compare/status invocation:
// either a directory set (file source) or a database connection.
type endpointFlags struct {
	kind         string
	directories  []string
	dbDriver     string
	dbURL        string
	dbUsername   string
	dbPassword   string
	databaseName string
}

func (f *endpointFlags) register(fs *pflag.FlagSet, prefix string) {
	fs.StringVar(&f.kind, prefix+"-kind", "file", "source kind: file or database")
	fs.StringSliceVar(&f.directories, prefix+"-dir", nil, "config directories (file kind)")
	fs.StringVar(&f.dbDriver, prefix+"-db-driver", "postgres", "metadata database driver (database kind)")
	fs.StringVar(&f.dbURL, prefix+"-db-url", "", "metadata database URL (database kind)")
	fs.StringVar(&f.dbUsername, prefix+"-db-username", "", "metadata database username (database kind)")
	fs.StringVar(&f.dbPassword, prefix+"-db-password", "", "metadata database password (database kind)")
	fs.StringVar(&f.databaseName, prefix+"-db-name", "_metadata", "name the metadata database is registered under")
}

func (f *endpointFlags) build(ctx context.Context, logger *slog.Logger) (configsource.Writer, func(), error) {
	switch f.kind {
	case "file":
		loader := configsource.NewFileLoader(f.directories, "", "", "")
		return loader, func() {}, nil

	case "database":
		if f.dbURL == "" {
			return nil, nil, fmt.Errorf("--*-db-url is required for a database endpoint")
		}
		dbCfg := registry.DatabaseConfig{
			Driver:   f.dbDriver,
			URL:      f.dbURL,
			Username: f.dbUsername,
			Password: f.dbPassword,
		}
		reg, err := registry.Build(map[string]registry.DatabaseConfig{f.databaseName: dbCfg}, nil, nil)
		if err != nil {
			return nil, nil, fmt.Errorf("building bootstrap registry: %w", err)
		}
		pools := dbpool.NewManager(reg, logger)
		pool, err := pools.Acquire(ctx, f.databaseName)
		if err != nil {
			pools.Close()
			return nil, nil, fmt.Errorf("connecting to metadata database: %w", err)
		}
		return configsource.NewDbLoader(pool), pools.Close, nil

	default:
		return nil, nil, fmt.Errorf("unknown endpoint kind %q, want \"file\" or \"database\"", f.kind)
	}
}

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	root := &cobra.Command{
		Use:   "gateway-migrate",
		Short: "Move registry configuration between YAML files and the metadata database",
	}

	root.AddCommand(newMigrateCmd(logger))
	root.AddCommand(newExportCmd(logger))
	root.AddCommand(newCompareCmd(logger))
	root.AddCommand(newStatusCmd(logger))

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newMigrateCmd(logger *slog.Logger) *cobra.Command {
	var from, to endpointFlags

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Copy all databases, queries and endpoints from one source into another",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			src, closeSrc, err := from.build(ctx, logger)
			if err != nil {
				return fmt.Errorf("resolving --from endpoint: %w", err)
			}
			defer closeSrc()

			dst, closeDst, err := to.build(ctx, logger)
			if err != nil {
				return fmt.Errorf("resolving --to endpoint: %w", err)
			}
			defer closeDst()

			svc := migration.New(rfc3339Now)
			report, err := svc.Migrate(ctx, src, dst)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), report)
		},
	}

	from.register(cmd.Flags(), "from")
	to.register(cmd.Flags(), "to")
	return cmd
}

func newExportCmd(logger *slog.Logger) *cobra.Command {
	var from endpointFlags

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Print the source's configuration as three YAML documents",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			src, closeSrc, err := from.build(ctx, logger)
			if err != nil {
				return fmt.Errorf("resolving --from endpoint: %w", err)
			}
			defer closeSrc()

			svc := migration.New(rfc3339Now)
			triple, err := svc.Export(ctx, src)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "---")
			fmt.Fprintln(out, triple.Databases)
			fmt.Fprintln(out, "---")
			fmt.Fprintln(out, triple.Queries)
			fmt.Fprintln(out, "---")
			fmt.Fprintln(out, triple.Endpoints)
			return nil
		},
	}

	from.register(cmd.Flags(), "from")
	return cmd
}

func newCompareCmd(logger *slog.Logger) *cobra.Command {
	var a, b endpointFlags

	cmd := &cobra.Command{
		Use:   "compare",
		Short: "Show which databases, queries and endpoints differ between two sources",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			srcA, closeA, err := a.build(ctx, logger)
			if err != nil {
				return fmt.Errorf("resolving --a endpoint: %w", err)
			}
			defer closeA()

			srcB, closeB, err := b.build(ctx, logger)
			if err != nil {
				return fmt.Errorf("resolving --b endpoint: %w", err)
			}
			defer closeB()

			svc := migration.New(rfc3339Now)
			comparison, err := svc.Compare(ctx, srcA, srcB)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), comparison)
		},
	}

	a.register(cmd.Flags(), "a")
	b.register(cmd.Flags(), "b")
	return cmd
}

func newStatusCmd(logger *slog.Logger) *cobra.Command {
	var from endpointFlags

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Report how many databases, queries and endpoints a source currently holds",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			src, closeSrc, err := from.build(ctx, logger)
			if err != nil {
				return fmt.Errorf("resolving --from endpoint: %w", err)
			}
			defer closeSrc()

			svc := migration.New(rfc3339Now)
			status, err := svc.Status(ctx, src, from.kind)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), status)
		},
	}

	from.register(cmd.Flags(), "from")
	return cmd
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// rfc3339Now is the migration.Clock passed to every migration.Service built
// by this CLI.
func rfc3339Now() string {
	return time.Now().UTC().Format(time.RFC3339)
}
