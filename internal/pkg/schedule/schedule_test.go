package schedule

import (
	"testing"
	"time"

	"github.com/sourcerie/affut/internal/pkg/config"
	"github.com/sourcerie/affut/pkg/models"
)

func testConfig() *config.Config {
	return &config.Config{
		Keywords: []string{
			"assistante dentaire",
			"assistant dentaire",
			"cabinet dentaire recrute",
			"recrutement assistante dentaire",
			"secrétaire médicale dentaire",
			"aide dentaire",
		},
		KeywordBatchSize: 4,
		ExploreCount:     1,
		ExploreStaleness: 3,
		YieldWindow:      5,
		IntervalFloor:    10 * time.Minute,
		IntervalCeiling:  60 * time.Minute,
		IntervalShrink:   0.8,
		IntervalGrow:     1.5,
		YieldTarget:      3,
	}
}

func stored(term string, lastUsed uint64, recent ...int) models.Keyword {
	return models.Keyword{
		Normalized:    models.NormalizeKeyword(term),
		Enabled:       true,
		LastUsedCycle: lastUsed,
		RecentYield:   recent,
	}
}

func completed(id uint64, accepted int, keywords ...string) models.CycleResult {
	return models.CycleResult{
		ID:            id,
		Reason:        models.EndCompleted,
		ItemsAccepted: accepted,
		KeywordsUsed:  keywords,
	}
}

func batchTerms(batch []models.Keyword) []string {
	terms := make([]string, 0, len(batch))
	for _, kw := range batch {
		terms = append(terms, kw.Term)
	}

	return terms
}

func TestNextBatchExploreExploitSplit(t *testing.T) {
	c := New(testConfig())
	c.Load([]models.Keyword{
		stored("assistante dentaire", 10, 0),
		stored("assistant dentaire", 10, 2),
		stored("cabinet dentaire recrute", 9, 1),
		stored("recrutement assistante dentaire", 10, 5),
		stored("aide dentaire", 3, 1),
	})

	got := batchTerms(c.NextBatch(4))
	want := []string{
		// Exploit slots, lowest recent yield first, position breaking ties.
		"assistante dentaire",
		"cabinet dentaire recrute",
		"aide dentaire",
		// Explore slot: never used.
		"secrétaire médicale dentaire",
	}

	if len(got) != len(want) {
		t.Fatalf("batch = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("batch[%d] = %q, want %q (full batch %v)", i, got[i], want[i], got)
		}
	}
}

func TestNextBatchFreshControllerIsDeterministic(t *testing.T) {
	c := New(testConfig())

	first := batchTerms(c.NextBatch(4))
	second := batchTerms(c.NextBatch(4))

	if len(first) != 4 {
		t.Fatalf("batch size = %d, want 4", len(first))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("same state produced different batches: %v vs %v", first, second)
		}
	}
}

func TestNextBatchSkipsDisabledKeywords(t *testing.T) {
	c := New(testConfig())

	disabled := stored("assistante dentaire", 0)
	disabled.Enabled = false
	c.Load([]models.Keyword{disabled})

	for _, term := range batchTerms(c.NextBatch(5)) {
		if term == "assistante dentaire" {
			t.Fatal("disabled keyword picked")
		}
	}
}

func TestNextBatchSmallerPool(t *testing.T) {
	cfg := testConfig()
	cfg.Keywords = []string{"assistante dentaire", "aide dentaire"}

	c := New(cfg)
	got := batchTerms(c.NextBatch(4))

	if len(got) != 2 {
		t.Fatalf("batch = %v, want both keywords exactly once", got)
	}
	if got[0] == got[1] {
		t.Fatalf("duplicate keyword in batch: %v", got)
	}
}

func TestIntervalShrinksToFloorOnQuietCycles(t *testing.T) {
	c := New(testConfig())

	if got := c.NextInterval(); got != 60*time.Minute {
		t.Fatalf("initial interval = %v, want the ceiling", got)
	}

	c.RecordCycle(completed(1, 1), nil)
	if got := c.NextInterval(); got != 48*time.Minute {
		t.Fatalf("interval after one quiet cycle = %v, want 48m", got)
	}

	c.RecordCycle(completed(2, 1), nil)
	if got := c.NextInterval(); got != 38*time.Minute+24*time.Second {
		t.Fatalf("interval after two quiet cycles = %v, want 38m24s", got)
	}

	for id := uint64(3); id < 30; id++ {
		c.RecordCycle(completed(id, 0), nil)
	}
	if got := c.NextInterval(); got != 10*time.Minute {
		t.Fatalf("interval = %v, want clamped at the floor", got)
	}
}

func TestIntervalGrowsOnRestriction(t *testing.T) {
	c := New(testConfig())
	c.RecordCycle(completed(1, 1), nil)
	c.RecordCycle(completed(2, 1), nil)

	c.RecordCycle(models.CycleResult{ID: 3, Reason: models.EndRestriction, RestrictionDetected: true}, nil)
	if got := c.NextInterval(); got != 57*time.Minute+36*time.Second {
		t.Fatalf("interval after restriction = %v, want 57m36s", got)
	}

	c.RecordCycle(models.CycleResult{ID: 4, Reason: models.EndRestriction, RestrictionDetected: true}, nil)
	if got := c.NextInterval(); got != 60*time.Minute {
		t.Fatalf("interval = %v, want clamped at the ceiling", got)
	}
}

func TestIntervalGrowsOnQuotaExhaustion(t *testing.T) {
	c := New(testConfig())
	c.RecordCycle(completed(1, 1), nil)

	c.RecordCycle(models.CycleResult{ID: 2, Reason: models.EndQuotaReached, ItemsAccepted: 8}, nil)
	if got := c.NextInterval(); got != 60*time.Minute {
		t.Fatalf("interval after quota exhaustion = %v, want back at the ceiling", got)
	}
}

func TestIntervalUnchangedOnFetchFailure(t *testing.T) {
	c := New(testConfig())
	c.RecordCycle(completed(1, 1), nil)

	c.RecordCycle(models.CycleResult{ID: 2, Reason: models.EndFetchFailed}, nil)
	if got := c.NextInterval(); got != 48*time.Minute {
		t.Fatalf("interval after fetch failure = %v, want unchanged 48m", got)
	}
}

func TestShrinkWaitsForCleanWindow(t *testing.T) {
	c := New(testConfig())
	c.RecordCycle(completed(1, 1), nil)
	c.RecordCycle(completed(2, 1), nil)
	c.RecordCycle(models.CycleResult{ID: 3, Reason: models.EndRestriction, RestrictionDetected: true}, nil)

	want := 57*time.Minute + 36*time.Second

	// The restriction stays inside the look-back window for two more
	// cycles; no shrinking until it ages out.
	c.RecordCycle(completed(4, 1), nil)
	if got := c.NextInterval(); got != want {
		t.Fatalf("interval = %v, want held at %v", got, want)
	}
	c.RecordCycle(completed(5, 1), nil)
	if got := c.NextInterval(); got != want {
		t.Fatalf("interval = %v, want held at %v", got, want)
	}

	c.RecordCycle(completed(6, 1), nil)
	if got := c.NextInterval(); got != 46*time.Minute+4*time.Second+800*time.Millisecond {
		t.Fatalf("interval = %v, want shrinking resumed", got)
	}
}

func TestRecordCycleUpdatesKeywordStats(t *testing.T) {
	c := New(testConfig())

	yield := map[string]int{
		models.NormalizeKeyword("assistante dentaire"): 2,
		models.NormalizeKeyword("aide dentaire"):       0,
	}
	c.RecordCycle(completed(7, 2, "assistante dentaire", "aide dentaire"), yield)

	var found bool
	for _, kw := range c.Export() {
		if kw.Normalized != "assistante dentaire" {
			continue
		}

		found = true
		if kw.LastUsedCycle != 7 {
			t.Fatalf("LastUsedCycle = %d, want 7", kw.LastUsedCycle)
		}
		if kw.TotalYield != 2 {
			t.Fatalf("TotalYield = %d, want 2", kw.TotalYield)
		}
		if len(kw.RecentYield) != 1 || kw.RecentYield[0] != 2 {
			t.Fatalf("RecentYield = %v, want [2]", kw.RecentYield)
		}
	}
	if !found {
		t.Fatal("keyword missing from Export")
	}
}

func TestRecentYieldWindowTrims(t *testing.T) {
	c := New(testConfig())

	for id := uint64(1); id <= 8; id++ {
		c.RecordCycle(completed(id, 1, "assistante dentaire"),
			map[string]int{models.NormalizeKeyword("assistante dentaire"): int(id)})
	}

	for _, kw := range c.Export() {
		if kw.Normalized == "assistante dentaire" {
			if len(kw.RecentYield) != 5 {
				t.Fatalf("RecentYield kept %d entries, want the window of 5", len(kw.RecentYield))
			}
			if kw.RecentYield[4] != 8 {
				t.Fatalf("RecentYield = %v, want newest last", kw.RecentYield)
			}
		}
	}
}

func TestLoadIgnoresDroppedTerms(t *testing.T) {
	c := New(testConfig())
	c.Load([]models.Keyword{stored("vieux terme abandonné", 4, 9)})

	for _, kw := range c.Export() {
		if kw.Normalized == "vieux terme abandonné" {
			t.Fatal("dropped term resurrected by Load")
		}
	}
}

func TestLoadAdvancesCurrentCycle(t *testing.T) {
	c := New(testConfig())

	if c.CurrentCycle() != 0 {
		t.Fatalf("fresh controller at cycle %d, want 0", c.CurrentCycle())
	}

	c.Load([]models.Keyword{
		stored("assistante dentaire", 41, 2),
		stored("aide dentaire", 57, 0),
	})

	if c.CurrentCycle() != 57 {
		t.Fatalf("CurrentCycle = %d, want 57", c.CurrentCycle())
	}
}

func TestHistoryBounded(t *testing.T) {
	c := New(testConfig())

	for id := uint64(1); id <= 20; id++ {
		c.RecordCycle(completed(id, 0), nil)
	}

	h := c.History()
	if len(h) != historyKeep {
		t.Fatalf("history length = %d, want %d", len(h), historyKeep)
	}
	if h[0].ID != 9 || h[len(h)-1].ID != 20 {
		t.Fatalf("history window [%d..%d], want [9..20]", h[0].ID, h[len(h)-1].ID)
	}
}
