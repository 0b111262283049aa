// Package orchestrator owns the collection loop: it decides when a cycle
// may run, runs it stage by stage, and feeds every outcome back into the
// collaborators that decide what the next cycle looks like. Exactly one
// cycle runs at a time, pause is honored at every suspension point, and
// no sleep lasts longer than a quarter second without checking whether it
// should stop.
package orchestrator

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/sourcerie/affut/internal/pkg/alerts"
	"github.com/sourcerie/affut/internal/pkg/config"
	"github.com/sourcerie/affut/internal/pkg/controler/pause"
	"github.com/sourcerie/affut/internal/pkg/dedup"
	"github.com/sourcerie/affut/internal/pkg/fetcher"
	"github.com/sourcerie/affut/internal/pkg/log"
	"github.com/sourcerie/affut/internal/pkg/pacing"
	"github.com/sourcerie/affut/internal/pkg/qualify"
	"github.com/sourcerie/affut/internal/pkg/repository"
	"github.com/sourcerie/affut/internal/pkg/risk"
	"github.com/sourcerie/affut/internal/pkg/schedule"
	"github.com/sourcerie/affut/internal/pkg/selectors"
	"github.com/sourcerie/affut/pkg/models"
)

// pollQuantum bounds every wait: pause, shutdown and manual triggers are
// noticed within this much time no matter how long the sleep.
const pollQuantum = 250 * time.Millisecond

// Deps carries everything one orchestrator needs. All fields except Flags
// are required.
type Deps struct {
	Config   *config.Config
	Clock    clockwork.Clock
	Fetcher  fetcher.Fetcher
	Store    *repository.Store
	Dedup    *dedup.Store
	Quota    *qualify.QuotaKeeper
	Scorer   qualify.Scorer
	Lexicon  *qualify.Lexicon
	Schedule *schedule.Controller
	Registry *selectors.Registry
	Risk     *risk.Governor
	Pacer    *pacing.Pacer
	Alerts   *alerts.Dispatcher

	// Flags returns the runtime flags snapshot for a cycle. Defaults to
	// config.Runtime; tests substitute their own.
	Flags func() *config.RuntimeFlags
}

type triggerRequest struct {
	relaxedQuota bool
}

// Orchestrator runs the collection loop. Run owns the cycle goroutine;
// TriggerNow and Status may be called concurrently from the control plane.
type Orchestrator struct {
	cfg      *config.Config
	clk      clockwork.Clock
	fetcher  fetcher.Fetcher
	store    *repository.Store
	dedup    *dedup.Store
	quota    *qualify.QuotaKeeper
	scorer   qualify.Scorer
	lexicon  *qualify.Lexicon
	schedule *schedule.Controller
	registry *selectors.Registry
	risk     *risk.Governor
	pacer    *pacing.Pacer
	alerts   *alerts.Dispatcher
	flags    func() *config.RuntimeFlags

	running  atomic.Bool
	cycleSeq atomic.Uint64
	trigger  chan triggerRequest

	mu         sync.Mutex
	lastResult *models.CycleResult
	nextRunAt  time.Time

	logger *log.FieldedLogger
}

func New(deps Deps) *Orchestrator {
	o := &Orchestrator{
		cfg:      deps.Config,
		clk:      deps.Clock,
		fetcher:  deps.Fetcher,
		store:    deps.Store,
		dedup:    deps.Dedup,
		quota:    deps.Quota,
		scorer:   deps.Scorer,
		lexicon:  deps.Lexicon,
		schedule: deps.Schedule,
		registry: deps.Registry,
		risk:     deps.Risk,
		pacer:    deps.Pacer,
		alerts:   deps.Alerts,
		flags:    deps.Flags,
		trigger:  make(chan triggerRequest, 1),
		logger: log.NewFieldedLogger(&log.Fields{
			"component": "orchestrator",
		}),
	}

	if o.flags == nil {
		o.flags = config.Runtime
	}

	// Cycle numbering continues from persisted rotation state so keyword
	// staleness never resets on restart.
	o.cycleSeq.Store(deps.Schedule.CurrentCycle())

	return o
}

// Run is the main loop: wait for the next slot or a manual trigger, run
// one cycle, adapt, repeat. It returns when ctx ends.
func (o *Orchestrator) Run(ctx context.Context) {
	chans := pause.Subscribe()
	defer pause.Unsubscribe(chans)

	o.logger.Info("orchestrator running",
		"mode", o.risk.Mode().String(), "interval", o.schedule.NextInterval().String())

	for {
		interval := o.schedule.NextInterval()
		deadline := o.clk.Now().Add(interval)
		o.setNextRun(deadline)

		req, err := o.waitUntil(ctx, chans, deadline)
		if err != nil {
			o.logger.Info("orchestrator stopping")
			return
		}

		manual := req != nil
		relaxed := manual && req.relaxedQuota
		if manual {
			o.logger.Info("manual cycle requested", "relaxed_quota", relaxed)
		}

		o.runCycle(ctx, chans, manual, relaxed)
	}
}

// TriggerNow requests an immediate cycle, waiving the daily cap for that
// one cycle when relaxed is set. At most one trigger can be pending.
func (o *Orchestrator) TriggerNow(relaxed bool) error {
	select {
	case o.trigger <- triggerRequest{relaxedQuota: relaxed}:
		return nil
	default:
		return ErrTriggerPending
	}
}

// waitUntil sleeps until deadline in sub-second slices. It returns early
// with the request when a manual trigger arrives, nil at the deadline,
// and an error when ctx ends. Pause suspends the wait without consuming
// it: after a resume, a deadline already passed starts the cycle
// immediately.
func (o *Orchestrator) waitUntil(ctx context.Context, chans *pause.ControlChans, deadline time.Time) (*triggerRequest, error) {
	for {
		now := o.clk.Now()
		if !now.Before(deadline) {
			return nil, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case msg := <-chans.PauseCh:
			if err := o.holdForResume(ctx, chans, msg); err != nil {
				return nil, err
			}
		case req := <-o.trigger:
			return &req, nil
		case <-o.clk.After(min(pollQuantum, deadline.Sub(now))):
		}
	}
}

// checkpoint is the suspension-point poll between units of work inside a
// cycle. A pause suspends right here until resume, then reports paused so
// the cycle ends cleanly instead of resuming against a stale page.
func (o *Orchestrator) checkpoint(ctx context.Context, chans *pause.ControlChans) (paused bool, err error) {
	select {
	case <-ctx.Done():
		return false, ctx.Err()
	case msg := <-chans.PauseCh:
		if err := o.holdForResume(ctx, chans, msg); err != nil {
			return false, err
		}
		return true, nil
	default:
		return false, nil
	}
}

// rest sleeps d in sub-second slices, servicing shutdown and pause. Like
// checkpoint, a pause that interrupts the rest ends the cycle.
func (o *Orchestrator) rest(ctx context.Context, chans *pause.ControlChans, d time.Duration) (paused bool, err error) {
	deadline := o.clk.Now().Add(d)

	for {
		now := o.clk.Now()
		if !now.Before(deadline) {
			return false, nil
		}

		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case msg := <-chans.PauseCh:
			if err := o.holdForResume(ctx, chans, msg); err != nil {
				return false, err
			}
			return true, nil
		case <-o.clk.After(min(pollQuantum, deadline.Sub(now))):
		}
	}
}

// holdForResume completes the pause handshake, blocking until the
// operator resumes or the process stops.
func (o *Orchestrator) holdForResume(ctx context.Context, chans *pause.ControlChans, msg string) error {
	o.logger.Info("paused", "message", msg)

	select {
	case chans.ResumeCh <- struct{}{}:
		o.logger.Info("resumed")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (o *Orchestrator) setNextRun(at time.Time) {
	o.mu.Lock()
	o.nextRunAt = at
	o.mu.Unlock()
}

func (o *Orchestrator) storeResult(result models.CycleResult) {
	o.mu.Lock()
	o.lastResult = &result
	o.mu.Unlock()
}
