package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/spf13/afero"
	"go.uber.org/goleak"

	"github.com/sourcerie/affut/internal/pkg/alerts"
	"github.com/sourcerie/affut/internal/pkg/config"
	"github.com/sourcerie/affut/internal/pkg/controler/pause"
	"github.com/sourcerie/affut/internal/pkg/dedup"
	"github.com/sourcerie/affut/internal/pkg/fetcher"
	"github.com/sourcerie/affut/internal/pkg/pacing"
	"github.com/sourcerie/affut/internal/pkg/qualify"
	"github.com/sourcerie/affut/internal/pkg/repository"
	"github.com/sourcerie/affut/internal/pkg/risk"
	"github.com/sourcerie/affut/internal/pkg/schedule"
	"github.com/sourcerie/affut/internal/pkg/selectors"
	"github.com/sourcerie/affut/internal/pkg/stats"
	"github.com/sourcerie/affut/pkg/models"
)

func TestMain(m *testing.M) {
	stats.Init()
	goleak.VerifyTestMain(m)
}

// fakeFetcher scripts keyword visits. The script receives the 1-based
// call number so tests can vary behavior per visit.
type fakeFetcher struct {
	mu     sync.Mutex
	calls  []string
	script func(call int, req *fetcher.Request) (*fetcher.Result, error)
}

func (f *fakeFetcher) FetchCandidates(_ context.Context, req *fetcher.Request) (*fetcher.Result, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req.Keyword.Term)
	call := len(f.calls)
	f.mu.Unlock()

	if f.script == nil {
		return &fetcher.Result{}, nil
	}
	return f.script(call, req)
}

func (f *fakeFetcher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func testConfig() *config.Config {
	return &config.Config{
		Keywords:         []string{"assistante dentaire", "recrute assistante dentaire"},
		KeywordBatchSize: 2,
		ExploreCount:     1,
		ExploreStaleness: 5,
		YieldWindow:      3,

		DailyQuota:       5,
		DomainThreshold:  3.0,
		IntentThreshold:  2.0,
		LanguageRatio:    0.15,
		ExcludeContracts: []string{"interim", "cdd", "alternance", "apprentissage", "stage"},

		SafetyFactor:      1.0,
		NavDelayMin:       time.Millisecond,
		NavDelayMax:       2 * time.Millisecond,
		ScrollDelayMin:    time.Millisecond,
		ScrollDelayMax:    2 * time.Millisecond,
		BreakAfterActions: 10000,
		BreakMin:          time.Minute,
		BreakMax:          2 * time.Minute,
		ActiveHoursStart:  0,
		ActiveHoursEnd:    24,
		ActiveHoursZone:   "UTC",

		IntervalFloor:   time.Minute,
		IntervalCeiling: 4 * time.Minute,
		IntervalShrink:  0.8,
		IntervalGrow:    1.5,
		YieldTarget:     3,

		StartMode:            "conservative",
		AuthSuspectThreshold: 2,
		EmptyResultThreshold: 3,
		CooldownMin:          30 * time.Minute,
		CooldownMax:          time.Hour,
		PromotionStreak:      3,

		DedupCacheSize: 128,
		DedupRetention: 90 * 24 * time.Hour,

		FetchTimeout:    10 * time.Second,
		PersistTimeout:  5 * time.Second,
		MaxFetchRetries: 1,
		EmptyFetchLimit: 2,
	}
}

type harness struct {
	o     *Orchestrator
	fetch *fakeFetcher
	cfg   *config.Config
	clk   clockwork.FakeClock
	store *repository.Store
	dedup *dedup.Store
	gov   *risk.Governor
	flags *config.RuntimeFlags
}

func newHarness(t *testing.T, mutate func(*config.Config)) *harness {
	t.Helper()

	cfg := testConfig()
	if mutate != nil {
		mutate(cfg)
	}

	clk := clockwork.NewFakeClockAt(time.Date(2026, time.June, 15, 12, 0, 0, 0, time.UTC))
	rng := rand.New(rand.NewSource(7))

	store, err := repository.New(t.TempDir(), clk)
	if err != nil {
		t.Fatalf("opening repository: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	dd, err := dedup.New(t.TempDir(), cfg.DedupCacheSize, clk)
	if err != nil {
		t.Fatalf("opening dedup store: %v", err)
	}
	t.Cleanup(func() { dd.Close() })

	lex, err := qualify.Load(afero.NewMemMapFs(), "")
	if err != nil {
		t.Fatalf("loading lexicon: %v", err)
	}

	reg, err := selectors.New(clk, 3, nil)
	if err != nil {
		t.Fatalf("building registry: %v", err)
	}

	pac, err := pacing.New(cfg, rng)
	if err != nil {
		t.Fatalf("building pacer: %v", err)
	}

	disp := alerts.NewDispatcher(alerts.NewLog(), 16, 2)
	disp.Start()
	t.Cleanup(disp.Stop)

	gov := risk.New(cfg, clk, rng)
	ff := &fakeFetcher{}
	flags := &config.RuntimeFlags{
		DailyQuota:      cfg.DailyQuota,
		DomainThreshold: cfg.DomainThreshold,
		IntentThreshold: cfg.IntentThreshold,
		SafetyFactor:    cfg.SafetyFactor,
	}

	o := New(Deps{
		Config:   cfg,
		Clock:    clk,
		Fetcher:  ff,
		Store:    store,
		Dedup:    dd,
		Quota:    qualify.NewQuotaKeeper(store, clk),
		Scorer:   qualify.NewRuleScorer(cfg),
		Lexicon:  lex,
		Schedule: schedule.New(cfg),
		Registry: reg,
		Risk:     gov,
		Pacer:    pac,
		Alerts:   disp,
		Flags:    func() *config.RuntimeFlags { return flags },
	})

	return &harness{o: o, fetch: ff, cfg: cfg, clk: clk, store: store, dedup: dd, gov: gov, flags: flags}
}

func freshChans() *pause.ControlChans {
	return &pause.ControlChans{
		PauseCh:  make(chan string, 1),
		ResumeCh: make(chan struct{}),
	}
}

func acceptingItem(keyword string, n int) *models.CandidateItem {
	item := models.NewCandidateItem(keyword)
	item.Text = "Bonjour, notre cabinet dentaire situé à Lyon recrute une assistante dentaire qualifiée en CDI. " +
		"Poste à pourvoir dès que possible, envoyez votre CV en message privé."
	item.Author = "Cabinet Dentaire des Brotteaux"
	item.AuthorURL = "https://www.platform.example/cabinet.brotteaux"
	item.Permalink = fmt.Sprintf("https://www.platform.example/groups/1/posts/%d", n)
	return item
}

func chatterItem(keyword string, n int) *models.CandidateItem {
	item := models.NewCandidateItem(keyword)
	item.Text = "On se retrouve ce soir pour le match au stade avec toute la bande, qui vient avec nous ?"
	item.Author = "Club des Supporters"
	item.Permalink = fmt.Sprintf("https://www.platform.example/groups/1/posts/%d", n)
	return item
}

func lastReason(t *testing.T, h *harness) string {
	t.Helper()

	st := h.o.Status()
	if st.LastCycle == nil {
		t.Fatal("no cycle recorded")
	}
	return st.LastCycle.Reason
}

func TestCycleAcceptsDeduplicatesAndPersists(t *testing.T) {
	h := newHarness(t, nil)

	h.fetch.script = func(call int, req *fetcher.Request) (*fetcher.Result, error) {
		switch call {
		case 1:
			return &fetcher.Result{Items: []*models.CandidateItem{
				acceptingItem(req.Keyword.Term, 101),
				chatterItem(req.Keyword.Term, 102),
			}}, nil
		default:
			// Same post surfacing under the second keyword.
			return &fetcher.Result{Items: []*models.CandidateItem{
				acceptingItem(req.Keyword.Term, 101),
			}}, nil
		}
	}

	h.o.runCycle(context.Background(), freshChans(), false, false)

	st := h.o.Status()
	if st.LastCycle == nil {
		t.Fatal("no cycle recorded")
	}
	lc := st.LastCycle
	if lc.Reason != string(models.EndCompleted) {
		t.Fatalf("reason = %s, want completed", lc.Reason)
	}
	if lc.ItemsSeen != 3 || lc.ItemsAccepted != 1 || lc.ItemsDuplicate != 1 {
		t.Fatalf("seen/accepted/duplicate = %d/%d/%d, want 3/1/1",
			lc.ItemsSeen, lc.ItemsAccepted, lc.ItemsDuplicate)
	}
	if len(lc.KeywordsUsed) != 2 {
		t.Fatalf("keywords used = %v, want both", lc.KeywordsUsed)
	}

	count, err := h.store.CountAcceptedSince(context.Background(), time.Time{})
	if err != nil {
		t.Fatalf("counting accepted: %v", err)
	}
	if count != 1 {
		t.Fatalf("accepted rows = %d, want 1", count)
	}

	// The rejected post is remembered so it is never rescored.
	rejected := chatterItem("assistante dentaire", 102)
	if !h.dedup.Seen(string(models.FingerprintOf(rejected))) {
		t.Fatal("rejected item not remembered in dedup store")
	}

	if st.Quota.Accepted != 1 {
		t.Fatalf("quota accepted = %d, want 1", st.Quota.Accepted)
	}
}

func TestLateDuplicateBackfillsCacheWithoutDoubleCount(t *testing.T) {
	h := newHarness(t, nil)

	// A row from a previous run whose dedup cache did not survive.
	prior := acceptingItem("assistante dentaire", 501)
	fp := string(models.FingerprintOf(prior))
	_, err := h.store.InsertAccepted(context.Background(), prior, fp, models.QualificationResult{
		Accepted: true,
		Scores:   models.Scores{Domain: 5, Intent: 4, LocationOK: true},
		Category: models.IntentSeekingCandidate,
	})
	if err != nil {
		t.Fatalf("seeding accepted row: %v", err)
	}

	h.fetch.script = func(call int, req *fetcher.Request) (*fetcher.Result, error) {
		if call > 1 {
			return &fetcher.Result{}, nil
		}
		return &fetcher.Result{Items: []*models.CandidateItem{
			acceptingItem(req.Keyword.Term, 501),
			acceptingItem(req.Keyword.Term, 502),
		}}, nil
	}

	h.o.runCycle(context.Background(), freshChans(), false, false)

	st := h.o.Status()
	if st.LastCycle.Reason != string(models.EndCompleted) {
		t.Fatalf("reason = %s, want completed", st.LastCycle.Reason)
	}
	if st.LastCycle.ItemsDuplicate != 1 || st.LastCycle.ItemsAccepted != 1 {
		t.Fatalf("duplicate/accepted = %d/%d, want 1/1",
			st.LastCycle.ItemsDuplicate, st.LastCycle.ItemsAccepted)
	}

	// One row for the seed, one for the fresh post. The collision must not
	// count against the quota a second time.
	count, err := h.store.CountAcceptedSince(context.Background(), time.Time{})
	if err != nil {
		t.Fatalf("counting accepted: %v", err)
	}
	if count != 2 {
		t.Fatalf("accepted rows = %d, want 2", count)
	}
	if st.Quota.Accepted != 2 {
		t.Fatalf("quota accepted = %d, want seed plus one", st.Quota.Accepted)
	}

	if !h.dedup.Seen(fp) {
		t.Fatal("colliding fingerprint not backfilled into the dedup store")
	}
}

func TestQuotaReachedEndsCycleAndGatesTheNext(t *testing.T) {
	h := newHarness(t, nil)
	h.flags.DailyQuota = 2

	h.fetch.script = func(call int, req *fetcher.Request) (*fetcher.Result, error) {
		return &fetcher.Result{Items: []*models.CandidateItem{
			acceptingItem(req.Keyword.Term, 201),
			acceptingItem(req.Keyword.Term, 202),
			acceptingItem(req.Keyword.Term, 203),
		}}, nil
	}

	h.o.runCycle(context.Background(), freshChans(), false, false)

	if got := lastReason(t, h); got != string(models.EndQuotaReached) {
		t.Fatalf("reason = %s, want quota_reached", got)
	}
	if h.fetch.count() != 1 {
		t.Fatalf("visits = %d, want cycle to stop after the first keyword", h.fetch.count())
	}

	st := h.o.Status()
	if st.LastCycle.ItemsAccepted != 2 {
		t.Fatalf("accepted = %d, want the cap", st.LastCycle.ItemsAccepted)
	}
	if st.Quota.Remaining != 0 {
		t.Fatalf("quota remaining = %d, want 0", st.Quota.Remaining)
	}

	// The next scheduled cycle stands down at the gate without visiting.
	h.o.runCycle(context.Background(), freshChans(), false, false)

	if got := lastReason(t, h); got != string(models.EndQuotaReached) {
		t.Fatalf("gated reason = %s, want quota_reached", got)
	}
	if h.fetch.count() != 1 {
		t.Fatalf("visits = %d after gated cycle, want still 1", h.fetch.count())
	}
}

func TestRelaxedManualCycleWaivesQuota(t *testing.T) {
	h := newHarness(t, nil)
	h.flags.DailyQuota = 1

	h.fetch.script = func(call int, req *fetcher.Request) (*fetcher.Result, error) {
		if call > 1 {
			return &fetcher.Result{}, nil
		}
		return &fetcher.Result{Items: []*models.CandidateItem{
			acceptingItem(req.Keyword.Term, 301),
			acceptingItem(req.Keyword.Term, 302),
		}}, nil
	}

	h.o.runCycle(context.Background(), freshChans(), true, true)

	st := h.o.Status()
	if st.LastCycle.Reason != string(models.EndCompleted) {
		t.Fatalf("reason = %s, want completed", st.LastCycle.Reason)
	}
	if st.LastCycle.ItemsAccepted != 2 {
		t.Fatalf("accepted = %d, want 2 with the cap waived", st.LastCycle.ItemsAccepted)
	}
}

func TestRestrictionEndsCycleAndOpensCooldown(t *testing.T) {
	h := newHarness(t, func(cfg *config.Config) {
		cfg.StartMode = "moderate"
	})

	h.fetch.script = func(call int, req *fetcher.Request) (*fetcher.Result, error) {
		return &fetcher.Result{
			Restricted:     true,
			ScreenshotPath: "restriction_2026-06-15_12-00-00.png",
		}, fetcher.ErrRestricted
	}

	h.o.runCycle(context.Background(), freshChans(), false, false)

	st := h.o.Status()
	if st.LastCycle.Reason != string(models.EndRestriction) {
		t.Fatalf("reason = %s, want restriction", st.LastCycle.Reason)
	}
	if !st.LastCycle.Restricted {
		t.Fatal("restriction not flagged on the cycle summary")
	}
	if h.fetch.count() != 1 {
		t.Fatalf("visits = %d, want restriction to end the cycle", h.fetch.count())
	}

	if got := h.gov.Mode(); got != models.ModeConservative {
		t.Fatalf("mode = %s after restriction, want conservative", got)
	}
	if h.gov.IsAllowed(h.clk.Now()) {
		t.Fatal("no cooldown after restriction")
	}

	// While the cooldown holds, cycles stop at the gate.
	h.o.runCycle(context.Background(), freshChans(), false, false)

	if got := lastReason(t, h); got != string(models.EndCooldown) {
		t.Fatalf("gated reason = %s, want cooldown", got)
	}
	if h.fetch.count() != 1 {
		t.Fatalf("visits = %d during cooldown, want still 1", h.fetch.count())
	}
}

func TestConsecutiveEmptyFetchesEndCycle(t *testing.T) {
	h := newHarness(t, nil)

	h.o.runCycle(context.Background(), freshChans(), false, false)

	if got := lastReason(t, h); got != string(models.EndEmptyBatch) {
		t.Fatalf("reason = %s, want empty_batch", got)
	}
	if h.fetch.count() != 2 {
		t.Fatalf("visits = %d, want the streak to trip after two", h.fetch.count())
	}

	if got := h.gov.Snapshot().EmptyResults; got != 2 {
		t.Fatalf("empty-result counter = %d, want 2", got)
	}
}

func TestFetchRetriesTransientThenSucceeds(t *testing.T) {
	h := newHarness(t, nil)

	h.fetch.script = func(call int, req *fetcher.Request) (*fetcher.Result, error) {
		switch call {
		case 1:
			return nil, fmt.Errorf("%w: navigation timed out", fetcher.ErrTransient)
		case 2:
			return &fetcher.Result{Items: []*models.CandidateItem{
				acceptingItem(req.Keyword.Term, 401),
			}}, nil
		default:
			return &fetcher.Result{}, nil
		}
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		h.o.runCycle(context.Background(), freshChans(), false, false)
	}()

	h.clk.BlockUntil(1) // backoff armed
	h.clk.Advance(retryBackoff)
	<-done

	st := h.o.Status()
	if st.LastCycle.Reason != string(models.EndCompleted) {
		t.Fatalf("reason = %s, want completed", st.LastCycle.Reason)
	}
	if st.LastCycle.ItemsAccepted != 1 {
		t.Fatalf("accepted = %d, want the retried visit to land", st.LastCycle.ItemsAccepted)
	}
	if h.fetch.count() != 3 {
		t.Fatalf("visits = %d, want fail, retry, second keyword", h.fetch.count())
	}
}

func TestFetchRetriesExhaustedFailCycle(t *testing.T) {
	h := newHarness(t, nil)

	h.fetch.script = func(call int, req *fetcher.Request) (*fetcher.Result, error) {
		return nil, fmt.Errorf("%w: browser crashed", fetcher.ErrTransient)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		h.o.runCycle(context.Background(), freshChans(), false, false)
	}()

	h.clk.BlockUntil(1)
	h.clk.Advance(retryBackoff)
	<-done

	if got := lastReason(t, h); got != string(models.EndFetchFailed) {
		t.Fatalf("reason = %s, want fetch_failed", got)
	}
	if h.fetch.count() != 2 {
		t.Fatalf("attempts = %d, want initial plus one retry", h.fetch.count())
	}
}

func TestPausePreemptsCycleBetweenKeywords(t *testing.T) {
	h := newHarness(t, nil)
	chans := freshChans()

	resumed := make(chan struct{})
	go func() {
		<-chans.ResumeCh
		close(resumed)
	}()

	h.fetch.script = func(call int, req *fetcher.Request) (*fetcher.Result, error) {
		if call == 1 {
			chans.PauseCh <- "operator pause"
		}
		return &fetcher.Result{}, nil
	}

	h.o.runCycle(context.Background(), chans, false, false)
	<-resumed

	if got := lastReason(t, h); got != string(models.EndPaused) {
		t.Fatalf("reason = %s, want paused", got)
	}
	if h.fetch.count() != 1 {
		t.Fatalf("visits = %d, want the pause to stop the second keyword", h.fetch.count())
	}
}

func TestShutdownMidCycleStillPersistsState(t *testing.T) {
	h := newHarness(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h.fetch.script = func(call int, req *fetcher.Request) (*fetcher.Result, error) {
		cancel()
		return nil, context.Canceled
	}

	h.o.runCycle(ctx, freshChans(), false, false)

	if got := lastReason(t, h); got != string(models.EndShutdown) {
		t.Fatalf("reason = %s, want shutdown", got)
	}

	// The visited keyword's rotation state must have reached the store.
	keywords, err := h.store.LoadKeywords(context.Background())
	if err != nil {
		t.Fatalf("loading keywords: %v", err)
	}
	var used int
	for _, kw := range keywords {
		if kw.LastUsedCycle == 1 {
			used++
		}
	}
	if used != 1 {
		t.Fatalf("keywords marked used = %d, want 1", used)
	}
}

func TestScheduledCycleOutsideWindowStandsDown(t *testing.T) {
	h := newHarness(t, func(cfg *config.Config) {
		cfg.ActiveHoursStart = 13
		cfg.ActiveHoursEnd = 14
	})

	h.o.runCycle(context.Background(), freshChans(), false, false)

	if got := lastReason(t, h); got != string(models.EndOutsideWindow) {
		t.Fatalf("reason = %s, want outside_window", got)
	}
	if h.fetch.count() != 0 {
		t.Fatalf("visits = %d outside the window, want 0", h.fetch.count())
	}

	// A manual trigger runs regardless of the window.
	h.o.runCycle(context.Background(), freshChans(), true, false)

	if h.fetch.count() == 0 {
		t.Fatal("manual cycle did not run outside the window")
	}
}

func TestTriggerNowSingleSlot(t *testing.T) {
	h := newHarness(t, nil)

	if err := h.o.TriggerNow(false); err != nil {
		t.Fatalf("first trigger: %v", err)
	}
	if err := h.o.TriggerNow(true); !errors.Is(err, ErrTriggerPending) {
		t.Fatalf("second trigger err = %v, want ErrTriggerPending", err)
	}
}

func TestRunLoopServesManualTrigger(t *testing.T) {
	h := newHarness(t, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		h.o.Run(ctx)
	}()

	h.clk.BlockUntil(1) // the loop is waiting for its slot

	if err := h.o.TriggerNow(false); err != nil {
		t.Fatalf("trigger: %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for h.fetch.count() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("manual trigger never started a cycle")
		}
		time.Sleep(5 * time.Millisecond)
	}

	cancel()
	<-done

	if h.o.Status().LastCycle == nil {
		t.Fatal("no cycle recorded after manual trigger")
	}
}

func TestStatusBeforeFirstCycle(t *testing.T) {
	h := newHarness(t, nil)

	st := h.o.Status()
	if st.Running {
		t.Fatal("running before any cycle")
	}
	if st.LastCycle != nil {
		t.Fatal("last cycle set before any cycle")
	}
	if st.Mode != "conservative" {
		t.Fatalf("mode = %s, want conservative", st.Mode)
	}
	if st.Interval != (4 * time.Minute).String() {
		t.Fatalf("interval = %s, want the ceiling", st.Interval)
	}
	if len(st.Selectors) != 8 {
		t.Fatalf("selector health entries = %d, want one per element", len(st.Selectors))
	}
}
