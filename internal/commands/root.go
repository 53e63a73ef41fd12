// Package commands wires the CLI surface. Every pipeline command follows
// the same shape: load config, open the warehouse for the selected
// destination, run the pipeline, ping the healthcheck, exit with the run's
// status code.
package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/communitystats/statspipe/internal/pipeline"
	"github.com/communitystats/statspipe/pkg/config"
	"github.com/communitystats/statspipe/pkg/database"
	"github.com/communitystats/statspipe/pkg/logger"
)

var (
	verbose     bool
	destination string

	// exitCode carries the run outcome out of the command handlers.
	// Partial runs exit non-zero without being usage errors, which cobra's
	// error return cannot express.
	exitCode int
)

var rootCmd = &cobra.Command{
	Use:   "statspipe",
	Short: "Community statistics ingestion pipelines",
	Long: `statspipe ingests community activity metrics from GitHub, Slack and
X into a DuckDB or MotherDuck warehouse, and renders per-pipeline reports
from the collected data.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if verbose {
			logger.SetDebug()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&destination, "destination", "motherduck", "warehouse destination (motherduck or duckdb)")

	rootCmd.AddCommand(githubCmd)
	rootCmd.AddCommand(slackCmd)
	rootCmd.AddCommand(twitterCmd)
	rootCmd.AddCommand(reportCmd)
}

// Execute runs the CLI and returns the process exit code.
func Execute() int {
	if err := rootCmd.Execute(); err != nil {
		return pipeline.ExitFailed
	}
	return exitCode
}

// openWarehouse loads configuration and connects to the selected warehouse
// destination.
func openWarehouse() error {
	if err := config.Load(); err != nil {
		return err
	}
	logger.Init(config.AppConfig.Log.Level, config.AppConfig.Log.Format)
	if verbose {
		logger.SetDebug()
	}

	dest, err := config.ParseDestination(destination)
	if err != nil {
		return err
	}

	if err := database.Init(dest, config.AppConfig.Warehouse); err != nil {
		return fmt.Errorf("warehouse setup failed: %w", err)
	}
	return nil
}
