package risk

import (
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/sourcerie/affut/internal/pkg/config"
	"github.com/sourcerie/affut/internal/pkg/stats"
	"github.com/sourcerie/affut/pkg/models"
)

func testConfig() *config.Config {
	return &config.Config{
		StartMode:            "moderate",
		AuthSuspectThreshold: 3,
		EmptyResultThreshold: 4,
		CooldownMin:          10 * time.Minute,
		CooldownMax:          30 * time.Minute,
		PromotionStreak:      2,
	}
}

func newTestGovernor(t *testing.T, cfg *config.Config) (*Governor, clockwork.FakeClock) {
	t.Helper()

	if err := stats.Init(); err != nil && !errors.Is(err, stats.ErrStatsAlreadyInitialized) {
		t.Fatalf("stats.Init: %v", err)
	}

	clk := clockwork.NewFakeClockAt(time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC))

	return New(cfg, clk, rand.New(rand.NewSource(1))), clk
}

func TestCleanCyclesPromote(t *testing.T) {
	g, _ := newTestGovernor(t, testConfig())

	if got := g.Mode(); got != models.ModeModerate {
		t.Fatalf("start mode = %s, want moderate", got)
	}

	g.Observe(models.SignalCleanCycle)
	if got := g.Mode(); got != models.ModeModerate {
		t.Fatalf("mode after 1 clean cycle = %s, want moderate", got)
	}

	g.Observe(models.SignalCleanCycle)
	if got := g.Mode(); got != models.ModeAggressive {
		t.Fatalf("mode after 2 clean cycles = %s, want aggressive", got)
	}

	// Already at the top: further streaks keep the mode in place.
	g.Observe(models.SignalCleanCycle)
	g.Observe(models.SignalCleanCycle)
	if got := g.Mode(); got != models.ModeAggressive {
		t.Fatalf("mode after further clean cycles = %s, want aggressive", got)
	}
}

func TestPromotionIsAdjacentOnly(t *testing.T) {
	cfg := testConfig()
	cfg.StartMode = "conservative"
	cfg.PromotionStreak = 1

	g, _ := newTestGovernor(t, cfg)

	g.Observe(models.SignalCleanCycle)
	if got := g.Mode(); got != models.ModeModerate {
		t.Fatalf("mode after first streak = %s, want moderate", got)
	}

	g.Observe(models.SignalCleanCycle)
	if got := g.Mode(); got != models.ModeAggressive {
		t.Fatalf("mode after second streak = %s, want aggressive", got)
	}
}

func TestEmptyResultsTriggerCooldown(t *testing.T) {
	g, clk := newTestGovernor(t, testConfig())
	now := clk.Now()

	for i := 0; i < 3; i++ {
		g.Observe(models.SignalEmptyResult)
		if !g.IsAllowed(clk.Now()) {
			t.Fatalf("cooldown entered after %d empty results, threshold is 4", i+1)
		}
	}

	g.Observe(models.SignalEmptyResult)
	if g.IsAllowed(clk.Now()) {
		t.Fatal("still allowed after crossing the empty-result threshold")
	}

	until := g.Snapshot().CooldownUntil
	if until.Before(now.Add(10*time.Minute)) || until.After(now.Add(30*time.Minute)) {
		t.Fatalf("cooldown until %v, want within [now+10m, now+30m]", until)
	}

	if !g.IsAllowed(until.Add(time.Second)) {
		t.Fatal("not allowed after cooldown expiry")
	}
}

func TestCleanCycleResetsCounters(t *testing.T) {
	g, clk := newTestGovernor(t, testConfig())

	for i := 0; i < 3; i++ {
		g.Observe(models.SignalEmptyResult)
	}
	g.Observe(models.SignalCleanCycle)
	for i := 0; i < 3; i++ {
		g.Observe(models.SignalEmptyResult)
	}

	if !g.IsAllowed(clk.Now()) {
		t.Fatal("cooldown entered even though a clean cycle reset the streak")
	}
	if got := g.Snapshot().EmptyResults; got != 3 {
		t.Fatalf("EmptyResults = %d, want 3", got)
	}
}

func TestAuthSuspectTriggerCooldown(t *testing.T) {
	g, clk := newTestGovernor(t, testConfig())

	g.Observe(models.SignalAuthSuspect)
	g.Observe(models.SignalAuthSuspect)
	if !g.IsAllowed(clk.Now()) {
		t.Fatal("cooldown entered below the auth-suspect threshold")
	}

	g.Observe(models.SignalAuthSuspect)
	if g.IsAllowed(clk.Now()) {
		t.Fatal("still allowed after crossing the auth-suspect threshold")
	}
}

func TestCountersSaturate(t *testing.T) {
	g, _ := newTestGovernor(t, testConfig())

	for i := 0; i < 50; i++ {
		g.Observe(models.SignalAuthSuspect)
	}

	if got := g.Snapshot().AuthSuspect; got != 3 {
		t.Fatalf("AuthSuspect = %d, want saturation at 3", got)
	}
}

func TestRestrictionForcesMaxCooldownAndDemotes(t *testing.T) {
	g, clk := newTestGovernor(t, testConfig())
	now := clk.Now()

	before := stats.RestrictionGet()

	g.Observe(models.SignalRestriction)

	st := g.Snapshot()
	if st.Mode != models.ModeConservative {
		t.Fatalf("mode after restriction = %s, want conservative", st.Mode)
	}
	if !st.CooldownUntil.Equal(now.Add(30 * time.Minute)) {
		t.Fatalf("cooldown until %v, want now+30m exactly", st.CooldownUntil)
	}
	if !st.LastRestriction.Equal(now) {
		t.Fatalf("LastRestriction = %v, want %v", st.LastRestriction, now)
	}
	if got := stats.RestrictionGet(); got != before+1 {
		t.Fatalf("restriction counter = %d, want %d", got, before+1)
	}
}

func TestRestrictionAtConservativeStaysConservative(t *testing.T) {
	cfg := testConfig()
	cfg.StartMode = "conservative"

	g, _ := newTestGovernor(t, cfg)

	g.Observe(models.SignalRestriction)
	if got := g.Mode(); got != models.ModeConservative {
		t.Fatalf("mode = %s, want conservative", got)
	}
}

func TestCooldownNeverShortened(t *testing.T) {
	g, clk := newTestGovernor(t, testConfig())
	now := clk.Now()

	g.Observe(models.SignalRestriction)
	want := now.Add(30 * time.Minute)

	// Crossing a counter threshold draws a shorter cooldown; the running
	// one must stand.
	for i := 0; i < 4; i++ {
		g.Observe(models.SignalEmptyResult)
	}

	if got := g.Snapshot().CooldownUntil; got.Before(want) {
		t.Fatalf("cooldown shortened to %v, want at least %v", got, want)
	}
}

func TestRestoreSanity(t *testing.T) {
	g, clk := newTestGovernor(t, testConfig())

	g.Restore(models.RiskState{
		Mode:          models.ProgressiveMode(99),
		AuthSuspect:   -5,
		EmptyResults:  -1,
		CleanCycles:   -2,
		CooldownUntil: clk.Now().Add(time.Hour),
	})

	st := g.Snapshot()
	if st.Mode != models.ModeModerate {
		t.Fatalf("mode after corrupt restore = %s, want moderate kept", st.Mode)
	}
	if st.AuthSuspect != 0 || st.EmptyResults != 0 || st.CleanCycles != 0 {
		t.Fatalf("negative counters not clamped: %+v", st)
	}
	if g.IsAllowed(clk.Now()) {
		t.Fatal("restored cooldown not honored")
	}
	if !g.IsAllowed(clk.Now().Add(2 * time.Hour)) {
		t.Fatal("restored cooldown never expires")
	}
}

func TestSuspectSignalsBreakPromotionStreak(t *testing.T) {
	g, _ := newTestGovernor(t, testConfig())

	g.Observe(models.SignalCleanCycle)
	g.Observe(models.SignalEmptyResult)
	g.Observe(models.SignalCleanCycle)

	if got := g.Mode(); got != models.ModeModerate {
		t.Fatalf("mode = %s, want moderate (streak was broken)", got)
	}
	if got := g.Snapshot().CleanCycles; got != 1 {
		t.Fatalf("CleanCycles = %d, want 1", got)
	}
}
