// Package pacing decides how long the agent waits between actions so its
// activity resembles a person browsing, not a tight loop. All methods are
// called from the cycle goroutine only; the pacer owns no goroutine and no
// time source, it just turns configuration and randomness into durations.
package pacing

import (
	"math/rand"
	"time"

	"github.com/sourcerie/affut/internal/pkg/config"
	"github.com/sourcerie/affut/pkg/models"
)

// Range bounds a delay draw.
type Range struct {
	Min time.Duration
	Max time.Duration
}

// Pacer draws humanized delays and tracks the session-break budget.
type Pacer struct {
	cfg *config.Config
	rng *rand.Rand

	loc *time.Location

	safety    float64
	mode      models.ProgressiveMode
	actions   int
	threshold int
}

// New builds a pacer. The rand source is injected so tests can pin the
// sequence. The active-hours zone was validated at startup, an error here
// means the config was never validated.
func New(cfg *config.Config, rng *rand.Rand) (*Pacer, error) {
	loc, err := time.LoadLocation(cfg.ActiveHoursZone)
	if err != nil {
		return nil, err
	}

	p := &Pacer{
		cfg:    cfg,
		rng:    rng,
		loc:    loc,
		safety: cfg.SafetyFactor,
		mode:   models.ParseMode(cfg.StartMode),
	}
	p.rollBreakThreshold()
	return p, nil
}

// BeginCycle captures the per-cycle inputs: the mode the cycle runs under
// and the operator-adjustable safety factor, so one cycle never sees a
// half-applied flag change.
func (p *Pacer) BeginCycle(mode models.ProgressiveMode, flags *config.RuntimeFlags) {
	p.mode = mode
	if flags != nil && flags.SafetyFactor >= 1.0 {
		p.safety = flags.SafetyFactor
	}
}

// NextDelay draws from a truncated normal distribution centered between the
// range bounds, then scales by the safety factor and the mode multiplier.
// The draw before scaling always lands inside [Min, Max].
func (p *Pacer) NextDelay(r Range, mode models.ProgressiveMode) time.Duration {
	center := float64(r.Min+r.Max) / 2
	spread := float64(r.Max-r.Min) / 2

	n := p.rng.NormFloat64() / 2
	if n > 1 {
		n = 1
	} else if n < -1 {
		n = -1
	}

	base := center + n*spread
	return time.Duration(base * p.safety * models.LimitsFor(mode).DelayMultiplier)
}

// NavDelay is the wait before a page navigation.
func (p *Pacer) NavDelay() time.Duration {
	return p.NextDelay(Range{Min: p.cfg.NavDelayMin, Max: p.cfg.NavDelayMax}, p.mode)
}

// ScrollDelay is the wait between feed scrolls.
func (p *Pacer) ScrollDelay() time.Duration {
	return p.NextDelay(Range{Min: p.cfg.ScrollDelayMin, Max: p.cfg.ScrollDelayMax}, p.mode)
}

// RecordAction counts one user-visible action (navigation, scroll, expand)
// toward the session-break budget.
func (p *Pacer) RecordAction() {
	p.actions++
}

// ShouldBreak reports whether enough actions accumulated to warrant a
// session break. The orchestrator enforces it; the pacer only advises.
func (p *Pacer) ShouldBreak() bool {
	return p.threshold > 0 && p.actions >= p.threshold
}

// BreakDuration draws the session-break length, resets the action budget
// and rolls a fresh threshold so breaks don't land on a fixed count.
func (p *Pacer) BreakDuration() time.Duration {
	p.actions = 0
	p.rollBreakThreshold()

	center := float64(p.cfg.BreakMin+p.cfg.BreakMax) / 2
	spread := float64(p.cfg.BreakMax-p.cfg.BreakMin) / 2
	n := p.rng.NormFloat64() / 2
	if n > 1 {
		n = 1
	} else if n < -1 {
		n = -1
	}
	return time.Duration(center + n*spread)
}

// rollBreakThreshold jitters the configured action count by ±25% so the
// break pattern is not periodic.
func (p *Pacer) rollBreakThreshold() {
	base := p.cfg.BreakAfterActions
	if base <= 0 {
		p.threshold = 0
		return
	}
	jitter := base / 4
	if jitter > 0 {
		p.threshold = base - jitter + p.rng.Intn(2*jitter+1)
	} else {
		p.threshold = base
	}
}
