package orchestrator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/recruitpipe/recruitpipe/internal/channels"
)

type fakePoller struct {
	name  string
	count int
	err   error
	polls int
}

func (f *fakePoller) Name() string { return f.name }

func (f *fakePoller) Poll(ctx context.Context) (int, error) {
	f.polls++
	return f.count, f.err
}

func TestRunnerPollOnce(t *testing.T) {
	good := &fakePoller{name: "email", count: 3}
	bad := &fakePoller{name: "sms", err: errors.New("provider down")}
	after := &fakePoller{name: "voice", count: 1}

	r := NewRunner([]channels.Poller{good, bad, after}, time.Minute)
	total := r.PollOnce(context.Background())

	if total != 4 {
		t.Errorf("total = %d, want 4", total)
	}
	// A failing processor must not stop the cycle.
	if after.polls != 1 {
		t.Error("processor after a failure was not polled")
	}
}

func TestRunnerRunStopsOnCancel(t *testing.T) {
	p := &fakePoller{name: "email"}
	r := NewRunner([]channels.Poller{p}, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(done)
	}()

	time.Sleep(25 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not stop after cancel")
	}
	if p.polls == 0 {
		t.Error("expected at least one poll cycle")
	}
}
