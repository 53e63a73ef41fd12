package pipeline

import (
	"context"
	"time"

	"github.com/communitystats/statspipe/internal/models"
	"github.com/communitystats/statspipe/internal/resources"
	"github.com/communitystats/statspipe/internal/source"
	"github.com/communitystats/statspipe/pkg/logger"
)

// Exit codes reported by the CLI.
const (
	ExitSuccess = 0
	ExitFailed  = 1
	ExitPartial = 3
)

// runLog records the start and end of a run in the warehouse.
type runLog interface {
	Create(run *models.IngestionRun) error
	Finish(run *models.IngestionRun) error
}

// Result is the aggregate outcome of one pipeline run.
type Result struct {
	RunID            string
	Outcome          models.RunOutcome
	RowsWritten      int
	AbortedResources []string
}

// ExitCode maps the run outcome onto the process exit code.
func (r *Result) ExitCode() int {
	switch r.Outcome {
	case models.RunOutcomeSuccess:
		return ExitSuccess
	case models.RunOutcomePartial:
		return ExitPartial
	default:
		return ExitFailed
	}
}

// Runner drives one pipeline invocation through its resources in registry
// order. Each resource moves through fetch and write independently, so an
// expensive resource failing late cannot undo the cheap ones committed
// before it.
type Runner struct {
	pipeline string
	runs     runLog
}

func NewRunner(pipeline string, runs runLog) *Runner {
	return &Runner{pipeline: pipeline, runs: runs}
}

// Run executes the selected resources against the shared watermark. An
// authentication failure aborts the whole run; quota exhaustion commits the
// partial batch, abandons the resource and lets the limiter carry the rest.
func (r *Runner) Run(ctx context.Context, selected []resources.Resource, wm *resources.Watermark) *Result {
	run := models.NewIngestionRun(r.pipeline)
	if err := r.runs.Create(run); err != nil {
		logger.WithError(err).Warn("Could not record run start")
	}

	logger.WithFields(map[string]interface{}{
		"run_id":    run.ID,
		"pipeline":  r.pipeline,
		"resources": len(selected),
	}).Info("Run started")

	authFailed := false
	for _, res := range selected {
		if authFailed {
			run.AbortedResources = append(run.AbortedResources, res.Name())
			continue
		}

		start := time.Now()
		written, err := r.runResource(ctx, res, wm, run)
		run.RowsWritten += written

		entry := logger.WithFields(map[string]interface{}{
			"resource":    res.Name(),
			"disposition": string(res.Disposition()),
			"rows":        written,
			"duration":    time.Since(start).Round(time.Millisecond).String(),
		})

		switch {
		case err == nil:
			entry.Info("Resource completed")
		case source.IsAuth(err):
			entry.WithError(err).Error("Credentials rejected, aborting run")
			authFailed = true
		case source.IsQuotaExhausted(err):
			entry.WithError(err).Error("Quota exhausted, resource aborted")
		default:
			entry.WithError(err).Error("Resource aborted")
		}
	}

	run.Finish(outcome(len(selected), run.AbortedResources, authFailed))
	if err := r.runs.Finish(run); err != nil {
		logger.WithError(err).Warn("Could not record run outcome")
	}

	logger.WithFields(map[string]interface{}{
		"run_id":  run.ID,
		"outcome": string(run.Outcome),
		"rows":    run.RowsWritten,
		"aborted": run.AbortedResources,
	}).Info("Run finished")

	return &Result{
		RunID:            run.ID,
		Outcome:          run.Outcome,
		RowsWritten:      run.RowsWritten,
		AbortedResources: run.AbortedResources,
	}
}

// runResource fetches and commits one resource. A partial batch returned
// alongside a fetch error is still committed before the error is reported,
// unless the credential itself was rejected: an auth failure stops the run
// with nothing committed beyond what earlier resources already wrote.
func (r *Runner) runResource(ctx context.Context, res resources.Resource, wm *resources.Watermark, run *models.IngestionRun) (int, error) {
	logger.WithField("resource", res.Name()).Info("Fetching")

	batch, fetchErr := res.Fetch(ctx, wm)
	if fetchErr != nil {
		run.AbortedResources = append(run.AbortedResources, res.Name())
	}

	if batch.Len() == 0 || source.IsAuth(fetchErr) {
		return 0, fetchErr
	}

	written, err := batch.Write()
	if err != nil {
		logger.WithError(err).Errorf("Write for %s failed", res.Name())
		if fetchErr == nil {
			run.AbortedResources = append(run.AbortedResources, res.Name())
			return written, err
		}
		return written, fetchErr
	}

	return written, fetchErr
}

func outcome(total int, aborted []string, authFailed bool) models.RunOutcome {
	switch {
	case authFailed, len(aborted) >= total && total > 0:
		return models.RunOutcomeFailed
	case len(aborted) > 0:
		return models.RunOutcomePartial
	default:
		return models.RunOutcomeSuccess
	}
}
