// Package deploy implements the deployment pipeline of the platform:
// an ordered, fail-fast sequence of stages that lints the backend,
// builds the frontend bundle, ships it to the production host and
// rebuilds the container topology there.
package deploy

import (
	"context"
	"log/slog"
	"time"

	"github.com/cappuccinotm/slogx"
	"github.com/google/uuid"
	"github.com/samber/lo"
)

// Status of a run or a single stage.
type Status string

// Possible statuses.
const (
	StatusPending Status = "pending"
	StatusRunning Status = "running"
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
)

// Stage is a single unit of the pipeline.
type Stage interface {
	// Name returns the name of the stage.
	Name() string

	// Run executes the stage. Returning an error marks the run failed
	// and skips all subsequent stages.
	Run(ctx context.Context) error
}

// StageResult records the outcome of one stage within a run.
type StageResult struct {
	Name       string
	Status     Status
	StartedAt  time.Time
	FinishedAt time.Time
	Err        string
}

// Run is a single execution of the pipeline. It exists only for the
// duration of the run; no history is persisted beyond the logs.
type Run struct {
	ID         string
	Ref        string
	Status     Status
	StartedAt  time.Time
	FinishedAt time.Time
	Stages     []StageResult
}

// Pipeline is the ordered list of stages. Any stage failure aborts
// the subsequent stages; there is no automatic rollback, a failure
// after the remote teardown leaves the service down until the next
// successful run.
type Pipeline struct {
	Stages []Stage
}

// Execute runs the pipeline once for the given ref. The returned Run
// always carries a result for every stage; the error is the failure
// of the first broken stage, if any.
func (p *Pipeline) Execute(ctx context.Context, ref string) (*Run, error) {
	run := &Run{
		ID:        uuid.NewString(),
		Ref:       ref,
		Status:    StatusRunning,
		StartedAt: time.Now(),
		Stages: lo.Map(p.Stages, func(s Stage, _ int) StageResult {
			return StageResult{Name: s.Name(), Status: StatusPending}
		}),
	}

	slog.InfoContext(ctx, "pipeline run started",
		slog.String("run_id", run.ID), slog.String("ref", ref))

	var failure error
	for i, st := range p.Stages {
		res := &run.Stages[i]

		if failure != nil || ctx.Err() != nil {
			res.Status = StatusSkipped
			continue
		}

		res.Status = StatusRunning
		res.StartedAt = time.Now()
		slog.InfoContext(ctx, "stage started",
			slog.String("run_id", run.ID), slog.String("stage", st.Name()))

		err := st.Run(ctx)
		res.FinishedAt = time.Now()

		if err != nil {
			res.Status = StatusFailed
			res.Err = err.Error()
			failure = err
			slog.ErrorContext(ctx, "stage failed",
				slog.String("run_id", run.ID),
				slog.String("stage", st.Name()),
				slog.Duration("elapsed", res.FinishedAt.Sub(res.StartedAt)),
				slogx.Error(err))
			continue
		}

		res.Status = StatusSuccess
		slog.InfoContext(ctx, "stage finished",
			slog.String("run_id", run.ID),
			slog.String("stage", st.Name()),
			slog.Duration("elapsed", res.FinishedAt.Sub(res.StartedAt)))
	}

	if failure == nil && ctx.Err() != nil {
		failure = ctx.Err()
	}

	run.FinishedAt = time.Now()
	run.Status = StatusSuccess
	if failure != nil {
		run.Status = StatusFailed
	}

	slog.InfoContext(ctx, "pipeline run finished",
		slog.String("run_id", run.ID),
		slog.String("status", string(run.Status)),
		slog.Duration("elapsed", run.FinishedAt.Sub(run.StartedAt)))

	return run, failure
}
