package commands

import (
	"github.com/slack-go/slack"
	"github.com/spf13/cobra"

	"github.com/communitystats/statspipe/internal/pipeline"
	"github.com/communitystats/statspipe/internal/repositories"
	"github.com/communitystats/statspipe/internal/resources"
	"github.com/communitystats/statspipe/internal/slackstats"
	"github.com/communitystats/statspipe/pkg/config"
	"github.com/communitystats/statspipe/pkg/database"
	"github.com/communitystats/statspipe/pkg/logger"
)

var slackCmd = &cobra.Command{
	Use:   "slack",
	Short: "Snapshot Slack workspace membership and activity",
	RunE:  runSlack,
}

func runSlack(cmd *cobra.Command, args []string) error {
	if err := openWarehouse(); err != nil {
		return err
	}
	defer database.Close()

	ctx := cmd.Context()
	cfg := config.AppConfig

	if cfg.Slack.APIToken == "" {
		logger.Errorf("Slack API token is not configured, set %s", config.EnvSlackToken)
		exitCode = pipeline.ExitFailed
		pipeline.PingHealthcheck(ctx, cfg.HealthcheckURL, exitCode)
		return nil
	}

	api := slack.New(cfg.Slack.APIToken)
	db := database.DB

	runRepo, err := repositories.NewRunRepository(db, "slack")
	if err != nil {
		return err
	}

	selected := []resources.Resource{
		slackstats.NewWorkspaceResource(api, repositories.NewWorkspaceStatRepository(db)),
	}

	result := pipeline.NewRunner("slack", runRepo).Run(ctx, selected, &resources.Watermark{})
	exitCode = result.ExitCode()
	pipeline.PingHealthcheck(ctx, cfg.HealthcheckURL, exitCode)
	return nil
}
