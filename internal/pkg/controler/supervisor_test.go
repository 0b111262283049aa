package controler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sourcerie/affut/internal/pkg/log"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newTestSupervisor(run func(context.Context), maxRestarts int, onGiveUp func()) *supervisor {
	return &supervisor{
		run:         run,
		cooldown:    time.Millisecond,
		maxRestarts: maxRestarts,
		onGiveUp:    onGiveUp,
		logger: log.NewFieldedLogger(&log.Fields{
			"component": "controler.supervisor",
		}),
	}
}

func TestSupervisorRestartsCrashedTask(t *testing.T) {
	var calls atomic.Int32
	settled := make(chan struct{})

	run := func(ctx context.Context) {
		if calls.Add(1) <= 2 {
			panic("boom")
		}
		close(settled)
		<-ctx.Done()
	}

	ctx, cancel := context.WithCancel(context.Background())
	sup := newTestSupervisor(run, 5, func() { t.Error("gave up with budget remaining") })

	done := make(chan struct{})
	go func() {
		defer close(done)
		sup.loop(ctx)
	}()

	select {
	case <-settled:
	case <-time.After(5 * time.Second):
		t.Fatal("task was not restarted after crashing")
	}

	cancel()
	<-done

	if got := calls.Load(); got != 3 {
		t.Errorf("expected 3 runs (1 start + 2 restarts), got %d", got)
	}
}

func TestSupervisorSpendsRestartBudgetAndGivesUp(t *testing.T) {
	var calls atomic.Int32
	gaveUp := make(chan struct{})

	// Returning while the context is still live counts as an unexpected
	// exit, same as a panic.
	run := func(ctx context.Context) {
		calls.Add(1)
	}

	sup := newTestSupervisor(run, 2, func() { close(gaveUp) })

	done := make(chan struct{})
	go func() {
		defer close(done)
		sup.loop(context.Background())
	}()

	select {
	case <-gaveUp:
	case <-time.After(5 * time.Second):
		t.Fatal("supervisor never gave up")
	}
	<-done

	if got := calls.Load(); got != 3 {
		t.Errorf("expected 3 runs (1 start + 2 restarts), got %d", got)
	}
}

func TestSupervisorReturnsQuietlyOnShutdown(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	sup := newTestSupervisor(func(ctx context.Context) {
		<-ctx.Done()
	}, 5, func() { t.Error("gave up on a clean shutdown") })

	done := make(chan struct{})
	go func() {
		defer close(done)
		sup.loop(ctx)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("supervisor did not return after cancellation")
	}
}
