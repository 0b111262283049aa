// Package risk keeps the collection posture proportional to how the
// platform has been reacting. It counts suspicious observations, imposes
// cooldowns when they accumulate, and walks the progressive mode ladder
// one step at a time in both directions.
package risk

import (
	"math/rand"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/sourcerie/affut/internal/pkg/config"
	"github.com/sourcerie/affut/internal/pkg/log"
	"github.com/sourcerie/affut/internal/pkg/stats"
	"github.com/sourcerie/affut/pkg/models"
)

// Governor owns the risk state. All methods are safe for concurrent use.
type Governor struct {
	mu  sync.Mutex
	clk clockwork.Clock
	rng *rand.Rand

	authThreshold   int
	emptyThreshold  int
	cooldownMin     time.Duration
	cooldownMax     time.Duration
	promotionStreak int

	state  models.RiskState
	logger *log.FieldedLogger
}

// New builds a Governor starting in the configured mode with zeroed
// counters. Restore overrides this with persisted state when one exists.
func New(cfg *config.Config, clk clockwork.Clock, rng *rand.Rand) *Governor {
	return &Governor{
		clk:             clk,
		rng:             rng,
		authThreshold:   cfg.AuthSuspectThreshold,
		emptyThreshold:  cfg.EmptyResultThreshold,
		cooldownMin:     cfg.CooldownMin,
		cooldownMax:     cfg.CooldownMax,
		promotionStreak: cfg.PromotionStreak,
		state: models.RiskState{
			Mode:      models.ParseMode(cfg.StartMode),
			UpdatedAt: clk.Now(),
		},
		logger: log.NewFieldedLogger(&log.Fields{"component": "risk"}),
	}
}

// Observe feeds one signal into the ladder.
//
// A clean cycle zeroes both consecutive counters and advances the promotion
// streak. Auth-suspect and empty-result observations advance their own
// counter, saturating at the configured threshold, and entering a cooldown
// drawn from the configured range once the threshold is reached. A
// restriction skips the counters entirely: maximum cooldown, one mode step
// down, immediately.
func (g *Governor) Observe(sig models.RiskSignal) {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.clk.Now()

	switch sig {
	case models.SignalCleanCycle:
		g.state.AuthSuspect = 0
		g.state.EmptyResults = 0
		g.state.CleanCycles++
		if g.state.CleanCycles >= g.promotionStreak {
			g.promote()
		}
	case models.SignalEmptyResult:
		g.state.CleanCycles = 0
		g.state.EmptyResults = saturate(g.state.EmptyResults+1, g.emptyThreshold)
		if g.state.EmptyResults >= g.emptyThreshold {
			g.enterCooldown(now, g.drawCooldown(), sig)
		}
	case models.SignalAuthSuspect:
		g.state.CleanCycles = 0
		g.state.AuthSuspect = saturate(g.state.AuthSuspect+1, g.authThreshold)
		if g.state.AuthSuspect >= g.authThreshold {
			g.enterCooldown(now, g.drawCooldown(), sig)
		}
	case models.SignalRestriction:
		stats.RestrictionIncr()

		g.state.CleanCycles = 0
		g.state.LastRestriction = now

		prev := g.state.Mode
		g.state.Mode = prev.Demote()
		if g.state.Mode != prev {
			g.logger.Warn("mode demoted after restriction", "from", prev.String(), "to", g.state.Mode.String())
		}

		g.enterCooldown(now, g.cooldownMax, sig)
	}

	g.state.UpdatedAt = now
}

// IsAllowed reports whether activity is permitted at now.
func (g *Governor) IsAllowed(now time.Time) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	return !g.state.InCooldown(now)
}

// Mode returns the current progressive mode.
func (g *Governor) Mode() models.ProgressiveMode {
	g.mu.Lock()
	defer g.mu.Unlock()

	return g.state.Mode
}

// Snapshot returns a copy of the current state, for status reporting and
// persistence.
func (g *Governor) Snapshot() models.RiskState {
	g.mu.Lock()
	defer g.mu.Unlock()

	return g.state
}

// Restore adopts a persisted state wholesale, with sanity clamps so a
// corrupt record cannot wedge the ladder. Meant to be called once at
// startup, before any Observe.
func (g *Governor) Restore(st models.RiskState) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if st.Mode < models.ModeConservative || st.Mode > models.ModeAggressive {
		st.Mode = g.state.Mode
	}
	if st.AuthSuspect < 0 {
		st.AuthSuspect = 0
	}
	if st.EmptyResults < 0 {
		st.EmptyResults = 0
	}
	if st.CleanCycles < 0 {
		st.CleanCycles = 0
	}

	g.state = st

	if g.state.InCooldown(g.clk.Now()) {
		g.logger.Info("restored active cooldown", "until", g.state.CooldownUntil.Format(time.RFC3339))
	}
}

// promote walks one mode step up and restarts the streak. Caller must hold mu.
func (g *Governor) promote() {
	prev := g.state.Mode
	g.state.Mode = prev.Promote()
	g.state.CleanCycles = 0

	if g.state.Mode != prev {
		g.logger.Info("mode promoted", "from", prev.String(), "to", g.state.Mode.String(), "after-cycles", g.promotionStreak)
	}
}

// enterCooldown suspends activity for d from now. A longer cooldown already
// in progress is never shortened. Caller must hold mu.
func (g *Governor) enterCooldown(now time.Time, d time.Duration, trigger models.RiskSignal) {
	until := now.Add(d)
	if until.Before(g.state.CooldownUntil) {
		return
	}

	g.state.CooldownUntil = until
	g.logger.Info("entering cooldown", "trigger", trigger.String(), "duration", d.String(), "until", until.Format(time.RFC3339))
}

// drawCooldown picks a duration uniformly from the configured range.
func (g *Governor) drawCooldown() time.Duration {
	if g.cooldownMax <= g.cooldownMin {
		return g.cooldownMin
	}

	return g.cooldownMin + time.Duration(g.rng.Int63n(int64(g.cooldownMax-g.cooldownMin)+1))
}

// saturate pins a consecutive counter at its threshold so repeated
// observations cannot overflow it. The counter only exists to be compared
// against the threshold, so nothing past it carries information.
func saturate(n, ceiling int) int {
	if n > ceiling {
		return ceiling
	}

	return n
}
