package deploy

import (
	"context"
	"log/slog"
	"sync"

	"github.com/cappuccinotm/slogx"
)

// Runner executes pipeline runs strictly one at a time. A trigger
// arriving while a run is in progress queues behind it; only the
// latest queued trigger is retained, so two teardown/rebuild
// sequences never race on the same container topology.
type Runner struct {
	Pipeline *Pipeline

	// OnFinish, if set, is called with every completed run.
	OnFinish func(*Run)

	mu      sync.Mutex
	pending string
	queued  bool
	kick    chan struct{}
}

// NewRunner creates a runner over the pipeline.
func NewRunner(p *Pipeline) *Runner {
	return &Runner{Pipeline: p, kick: make(chan struct{}, 1)}
}

// Trigger requests a run for the given ref. Never blocks; if a run
// is queued already, the newer ref replaces it.
func (r *Runner) Trigger(ref string) {
	r.mu.Lock()
	r.pending, r.queued = ref, true
	r.mu.Unlock()

	select {
	case r.kick <- struct{}{}:
	default:
	}
}

// Run starts a blocking loop that executes queued runs until the
// context is cancelled. Stage failures don't stop the loop: the next
// push gets its chance to fix the build.
func (r *Runner) Run(ctx context.Context) (err error) {
	slog.InfoContext(ctx, "starting deploy runner")
	defer func() { slog.WarnContext(ctx, "deploy runner stopped", slogx.Error(err)) }()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-r.kick:
		}

		for {
			r.mu.Lock()
			if !r.queued {
				r.mu.Unlock()
				break
			}
			ref := r.pending
			r.queued = false
			r.mu.Unlock()

			run, err := r.Pipeline.Execute(ctx, ref)
			if err != nil && ctx.Err() != nil {
				return ctx.Err()
			}

			if r.OnFinish != nil {
				r.OnFinish(run)
			}
		}
	}
}
