// Package usecases contains the application's business logic
package usecases

import (
	"context"
	"log/slog"
	"time"

	"github.com/abelzeko/allerta-bot/internal/entities"
	"github.com/abelzeko/allerta-bot/internal/metrics"
	"github.com/abelzeko/allerta-bot/internal/monitoring"
	"github.com/google/uuid"
)

// Job is a single run-to-completion unit of work. It returns the outcome
// (entities.OutcomeOK or entities.OutcomeSkipped) when it does not fail.
type Job func(ctx context.Context) (string, error)

// RunStore keeps the run log
type RunStore interface {
	SaveRun(run entities.Run) error
}

// Runner executes jobs and records every run in the run log, the metrics
// and, for failures, Sentry. Any of its dependencies may be nil.
type Runner struct {
	store    RunStore
	metrics  *metrics.Metrics
	reporter *monitoring.Reporter
	now      func() time.Time
}

// NewRunner creates a new job runner
func NewRunner(store RunStore, m *metrics.Metrics, reporter *monitoring.Reporter) *Runner {
	return &Runner{
		store:    store,
		metrics:  m,
		reporter: reporter,
		now:      time.Now,
	}
}

// Do runs job under the given name and returns its error
func (r *Runner) Do(ctx context.Context, name string, job Job) error {
	run := entities.Run{
		ID:        uuid.NewString(),
		Job:       name,
		StartedAt: r.now(),
	}
	logger := slog.With("job", name, "run_id", run.ID)
	logger.Info("run started")

	outcome, err := job(ctx)
	run.FinishedAt = r.now()
	switch {
	case err != nil:
		run.Outcome = entities.OutcomeFailed
		run.Error = err.Error()
	case outcome == "":
		run.Outcome = entities.OutcomeOK
	default:
		run.Outcome = outcome
	}

	r.metrics.ObserveRun(name, run.Outcome, run.StartedAt, run.FinishedAt)
	if err != nil {
		r.reporter.Capture(err, map[string]string{"job": name, "run_id": run.ID})
		logger.Error("run failed", "error", err, "took", run.FinishedAt.Sub(run.StartedAt).Round(time.Millisecond))
	} else {
		logger.Info("run finished", "outcome", run.Outcome, "took", run.FinishedAt.Sub(run.StartedAt).Round(time.Millisecond))
	}

	if r.store != nil {
		if serr := r.store.SaveRun(run); serr != nil {
			logger.Warn("failed to save run", "error", serr)
		}
	}
	return err
}
