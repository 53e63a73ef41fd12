package commands

import (
	"github.com/spf13/cobra"

	"github.com/communitystats/statspipe/internal/pipeline"
	"github.com/communitystats/statspipe/internal/repositories"
	"github.com/communitystats/statspipe/internal/resources"
	"github.com/communitystats/statspipe/internal/twitterstats"
	"github.com/communitystats/statspipe/pkg/config"
	"github.com/communitystats/statspipe/pkg/database"
	"github.com/communitystats/statspipe/pkg/logger"
)

var twitterCmd = &cobra.Command{
	Use:   "twitter",
	Short: "Snapshot X account metrics",
	RunE:  runTwitter,
}

func runTwitter(cmd *cobra.Command, args []string) error {
	if err := openWarehouse(); err != nil {
		return err
	}
	defer database.Close()

	ctx := cmd.Context()
	cfg := config.AppConfig

	if cfg.Twitter.BearerToken == "" {
		logger.Errorf("X bearer token is not configured, set %s", config.EnvTwitterBearer)
		exitCode = pipeline.ExitFailed
		pipeline.PingHealthcheck(ctx, cfg.HealthcheckURL, exitCode)
		return nil
	}

	db := database.DB
	runRepo, err := repositories.NewRunRepository(db, "twitter")
	if err != nil {
		return err
	}

	selected := []resources.Resource{
		twitterstats.NewAccountResource(cfg.Twitter.BearerToken, cfg.Twitter.Username,
			repositories.NewAccountStatRepository(db)),
	}

	result := pipeline.NewRunner("twitter", runRepo).Run(ctx, selected, &resources.Watermark{})
	exitCode = result.ExitCode()
	pipeline.PingHealthcheck(ctx, cfg.HealthcheckURL, exitCode)
	return nil
}
