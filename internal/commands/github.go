package commands

import (
	"github.com/spf13/cobra"

	"github.com/communitystats/statspipe/internal/githubapi"
	"github.com/communitystats/statspipe/internal/pipeline"
	"github.com/communitystats/statspipe/internal/repositories"
	"github.com/communitystats/statspipe/internal/resources"
	"github.com/communitystats/statspipe/pkg/config"
	"github.com/communitystats/statspipe/pkg/database"
	"github.com/communitystats/statspipe/pkg/logger"
)

var githubResources []string

var githubCmd = &cobra.Command{
	Use:   "github",
	Short: "Ingest GitHub organization activity",
	Long: `Collects member counts, repository metadata, traffic, issue and
contributor statistics for the configured organization. Resources run in a
fixed order, cheapest first, so quota exhaustion late in a run cannot undo
the rows already committed.`,
	RunE: runGitHub,
}

func init() {
	githubCmd.Flags().StringSliceVar(&githubResources, "resources", nil,
		"subset of resources to run (default: all)")
}

func runGitHub(cmd *cobra.Command, args []string) error {
	if err := openWarehouse(); err != nil {
		return err
	}
	defer database.Close()

	ctx := cmd.Context()
	cfg := config.AppConfig

	client, err := githubapi.NewClient(cfg.GitHub.APIToken)
	if err != nil {
		return err
	}

	login, err := client.Validate(ctx)
	if err != nil {
		logger.WithError(err).Error("GitHub credential check failed")
		exitCode = pipeline.ExitFailed
		pipeline.PingHealthcheck(ctx, cfg.HealthcheckURL, exitCode)
		return nil
	}
	logger.Infof("Authenticated as %s", login)

	if err := client.SeedQuota(ctx); err != nil {
		logger.WithError(err).Warn("Could not seed quota state, relying on response headers")
	}

	org := cfg.GitHub.Organization
	repos, err := client.ListOrgRepos(ctx, org)
	if err != nil {
		logger.WithError(err).Errorf("Could not list repositories of %s", org)
		exitCode = pipeline.ExitFailed
		pipeline.PingHealthcheck(ctx, cfg.HealthcheckURL, exitCode)
		return nil
	}
	logger.Infof("Organization %s has %d repositories", org, len(repos))

	db := database.DB
	trafficRepo := repositories.NewTrafficStatRepository(db)
	issueRepo := repositories.NewIssueStatRepository(db)

	registry := resources.NewRegistry(
		resources.NewOrgMembersResource(client, repositories.NewOrgMemberRepository(db), org),
		resources.NewPipelinesResource(client, repositories.NewPipelineRepository(db), org, repos),
		resources.NewTrafficResource(client, trafficRepo, org, repos, cfg.GitHub.TrafficTopRepos),
		resources.NewIssuesResource(client, issueRepo, client.Limiter(), org, repos),
		resources.NewContributorsResource(client, repositories.NewContributorStatRepository(db), org, repos),
	)

	selected, err := registry.Select(githubResources)
	if err != nil {
		return err
	}

	wm, err := pipeline.ComputeWatermark(trafficRepo, issueRepo)
	if err != nil {
		logger.WithError(err).Error("Could not compute watermark")
		exitCode = pipeline.ExitFailed
		pipeline.PingHealthcheck(ctx, cfg.HealthcheckURL, exitCode)
		return nil
	}

	runRepo, err := repositories.NewRunRepository(db, "github")
	if err != nil {
		return err
	}

	result := pipeline.NewRunner("github", runRepo).Run(ctx, selected, wm)
	exitCode = result.ExitCode()
	pipeline.PingHealthcheck(ctx, cfg.HealthcheckURL, exitCode)
	return nil
}
