// Package metadataschema runs the goose migrations that create and evolve
// the metadata database's own config_databases/config_queries/config_endpoints
// tables — the storage DbLoader reads from and MigrationService writes to.
// It never touches the gateway's target databases, only its own bookkeeping
// schema.
package metadataschema

import (
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/pressly/goose/v3"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// Up applies every pending migration under dir against dsn, using driver's
// goose dialect ("postgres" or "sqlite3").
func Up(dsn, driver, dir string, logger *slog.Logger) error {
	db, dialect, err := open(dsn, driver)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := goose.SetDialect(dialect); err != nil {
		return fmt.Errorf("setting goose dialect %q: %w", dialect, err)
	}
	if err := goose.Up(db, dir); err != nil {
		return fmt.Errorf("running metadata schema migrations: %w", err)
	}
	logger.Info("metadata schema migrations applied", "dir", dir)
	return nil
}

// Status reports the applied/pending state of every migration under dir.
func Status(dsn, driver, dir string) error {
	db, dialect, err := open(dsn, driver)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := goose.SetDialect(dialect); err != nil {
		return fmt.Errorf("setting goose dialect %q: %w", dialect, err)
	}
	return goose.Status(db, dir)
}

// DownTo rolls back dir's migrations to version.
func DownTo(dsn, driver, dir string, version int64, logger *slog.Logger) error {
	db, dialect, err := open(dsn, driver)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := goose.SetDialect(dialect); err != nil {
		return fmt.Errorf("setting goose dialect %q: %w", dialect, err)
	}
	if err := goose.DownTo(db, dir, version); err != nil {
		return fmt.Errorf("rolling back metadata schema migrations: %w", err)
	}
	logger.Info("metadata schema migrations rolled back", "dir", dir, "version", version)
	return nil
}

func open(dsn, driver string) (*sql.DB, string, error) {
	var sqlDriver, dialect string
	switch driver {
	case "postgres":
		sqlDriver, dialect = "pgx", "postgres"
	case "sqlite":
		sqlDriver, dialect = "sqlite", "sqlite3"
	default:
		return nil, "", fmt.Errorf("unsupported metadata database driver %q", driver)
	}

	db, err := sql.Open(sqlDriver, dsn)
	if err != nil {
		return nil, "", fmt.Errorf("opening metadata database: %w", err)
	}
	return db, dialect, nil
}
