package orchestrator

import (
	"context"
	"log/slog"
	"time"

	"github.com/recruitpipe/recruitpipe/internal/channels"
)

// DefaultPollInterval matches the original five-minute check cycle.
const DefaultPollInterval = 5 * time.Minute

// Runner drives the channel processors on a fixed interval. Channels are
// polled strictly in order: one processor's batch runs to completion before
// the next starts, so a given thread is never mutated concurrently.
type Runner struct {
	pollers  []channels.Poller
	interval time.Duration
}

// NewRunner creates a poll loop over the given processors. interval <= 0
// selects DefaultPollInterval.
func NewRunner(pollers []channels.Poller, interval time.Duration) *Runner {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Runner{pollers: pollers, interval: interval}
}

// PollOnce runs every processor for one cycle and returns the total number
// of messages processed. Processor failures are logged and do not stop the
// cycle.
func (r *Runner) PollOnce(ctx context.Context) int {
	total := 0
	for _, p := range r.pollers {
		n, err := p.Poll(ctx)
		if err != nil {
			slog.Error("Runner: poll failed", "processor", p.Name(), "error", err)
			continue
		}
		total += n
	}
	return total
}

// Run polls until the context is canceled. The first cycle runs immediately.
func (r *Runner) Run(ctx context.Context) {
	slog.Info("Runner: starting poll loop", "interval", r.interval, "processors", len(r.pollers))
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		n := r.PollOnce(ctx)
		slog.Info("Runner: poll cycle complete", "processed", n)

		select {
		case <-ctx.Done():
			slog.Info("Runner: poll loop stopped", "reason", ctx.Err())
			return
		case <-ticker.C:
		}
	}
}
