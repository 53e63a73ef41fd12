package database

import (
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/communitystats/statspipe/pkg/config"
)

func TestDSN(t *testing.T) {
	dsn, err := DSN(config.DestinationMotherDuck, config.WarehouseConfig{
		Database: "stats_db",
		Token:    "tok/en",
	})
	require.NoError(t, err)
	assert.Equal(t, "md:stats_db?motherduck_token=tok%2Fen", dsn)

	dsn, err = DSN(config.DestinationDuckDB, config.WarehouseConfig{Path: "./stats.duckdb"})
	require.NoError(t, err)
	assert.Equal(t, "./stats.duckdb", dsn)
}

func TestDSNMotherDuckRequiresCredentials(t *testing.T) {
	_, err := DSN(config.DestinationMotherDuck, config.WarehouseConfig{})
	assert.Error(t, err)
}

func TestRunSQLScriptsIsIdempotent(t *testing.T) {
	db, err := sql.Open("duckdb", "")
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, RunSQLScripts(db))
	require.NoError(t, RunSQLScripts(db))

	// Every schema must exist afterwards.
	for _, table := range []string{
		"github.traffic_stats", "github.contributor_stats", "github.issue_stats",
		"github.org_members", "github.nfcore_pipelines", "github.ingestion_runs",
		"slack.workspace_stats", "twitter.account_stats",
	} {
		var count int
		err := db.QueryRow("SELECT COUNT(*) FROM " + table).Scan(&count)
		assert.NoError(t, err, table)
	}
}
