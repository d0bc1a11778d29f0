package deploy

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cappuccinotm/slogx"
)

// Watcher polls the tracked branch of the repository and emits the
// new head commit whenever the remote moves. The first successful
// poll emits as well, so a deployer started after a missed push
// catches up immediately.
type Watcher struct {
	Dir      string
	Branch   string
	Interval time.Duration
}

// Name returns the name of the watcher.
func (w *Watcher) Name() string {
	return fmt.Sprintf("git:%s@%s", w.Dir, w.Branch)
}

// Events returns a channel of head commits of the tracked branch.
func (w *Watcher) Events(ctx context.Context) <-chan string {
	res := make(chan string)

	trySubmit := func(sha string) bool {
		select {
		case res <- sha:
			return true
		default:
			return false
		}
	}

	go func() {
		ticker := time.NewTicker(w.Interval)
		defer close(res)
		defer ticker.Stop()

		var last, head string
		var ok bool

		if head, ok = w.head(ctx); ok { // poll for the first time
			select {
			case res <- head:
				last = head
			case <-ctx.Done():
				return
			}
		}

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if head, ok = w.head(ctx); !ok || head == last {
					continue
				}

				slog.DebugContext(ctx, "branch moved",
					slog.String("branch", w.Branch),
					slog.String("last", last),
					slog.String("head", head))

				if trySubmit(head) {
					last = head
				}
			}
		}
	}()

	return res
}

func (w *Watcher) head(ctx context.Context) (sha string, ok bool) {
	if err := command(ctx, w.Dir, "git fetch -q --force origin "+shellQuote(w.Branch)); err != nil {
		slog.WarnContext(ctx, "failed to fetch", slog.String("branch", w.Branch), slogx.Error(err))
		return "", false
	}

	sha, err := output(ctx, w.Dir, "git rev-parse "+shellQuote("origin/"+w.Branch))
	if err != nil {
		slog.WarnContext(ctx, "failed to resolve head", slog.String("branch", w.Branch), slogx.Error(err))
		return "", false
	}

	return sha, true
}
