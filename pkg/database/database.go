package database

import (
	"database/sql"
	"embed"
	"fmt"
	"net/url"
	"sort"
	"time"

	_ "github.com/marcboeker/go-duckdb"

	"github.com/communitystats/statspipe/pkg/config"
	"github.com/communitystats/statspipe/pkg/logger"
)

//go:embed migrations/*.sql
var migrations embed.FS

var DB *sql.DB

// Init opens the warehouse connection for the selected destination and
// creates schemas and tables if they are missing.
func Init(dest config.Destination, cfg config.WarehouseConfig) error {
	dsn, err := DSN(dest, cfg)
	if err != nil {
		return err
	}

	DB, err = sql.Open("duckdb", dsn)
	if err != nil {
		return fmt.Errorf("failed to open warehouse: %w", err)
	}

	// Pipelines run strictly sequentially, one writer is enough.
	DB.SetMaxOpenConns(1)
	DB.SetConnMaxLifetime(time.Hour)

	if err = DB.Ping(); err != nil {
		return fmt.Errorf("failed to connect to warehouse: %w", err)
	}

	if err = RunSQLScripts(DB); err != nil {
		return err
	}

	logger.WithField("destination", string(dest)).Infof("Warehouse connected")
	return nil
}

// DSN builds the DuckDB connection string for a destination.
func DSN(dest config.Destination, cfg config.WarehouseConfig) (string, error) {
	switch dest {
	case config.DestinationMotherDuck:
		if cfg.Database == "" || cfg.Token == "" {
			return "", fmt.Errorf("motherduck destination requires MOTHERDUCK_DATABASE and MOTHERDUCK_TOKEN")
		}
		return fmt.Sprintf("md:%s?motherduck_token=%s", cfg.Database, url.QueryEscape(cfg.Token)), nil
	case config.DestinationDuckDB:
		return cfg.Path, nil
	default:
		return "", fmt.Errorf("unknown destination %q", dest)
	}
}

// Close closes the database connection
func Close() error {
	if DB != nil {
		return DB.Close()
	}
	return nil
}

// RunSQLScripts executes the embedded schema scripts in lexical order.
// Every statement is IF NOT EXISTS, so re-running is harmless.
func RunSQLScripts(db *sql.DB) error {
	entries, err := migrations.ReadDir("migrations")
	if err != nil {
		return err
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)

	for _, name := range names {
		script, err := migrations.ReadFile("migrations/" + name)
		if err != nil {
			return err
		}
		if _, err = db.Exec(string(script)); err != nil {
			return fmt.Errorf("failed to execute %s: %w", name, err)
		}
		logger.Debugf("Executed SQL script: %s", name)
	}

	return nil
}
