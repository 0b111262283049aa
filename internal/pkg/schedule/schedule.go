// Package schedule decides when the next cycle runs and which keywords it
// searches. The interval adapts between a floor and a ceiling from recent
// cycle outcomes; keyword batches balance under-tried terms against the
// rotation's recent yield so no keyword's inventory is farmed repeatedly
// while others go stale.
package schedule

import (
	"sort"
	"sync"
	"time"

	"github.com/sourcerie/affut/internal/pkg/config"
	"github.com/sourcerie/affut/internal/pkg/log"
	"github.com/sourcerie/affut/pkg/models"
)

// shrinkWindow is how many recent cycles must all be quiet (restriction
// free, completed, under the yield target) before the interval shrinks.
const shrinkWindow = 3

// historyKeep bounds the retained cycle history.
const historyKeep = 12

// Controller owns keyword rotation state and the cycle interval. All
// methods are safe for concurrent use.
type Controller struct {
	mu sync.Mutex

	floor       time.Duration
	ceiling     time.Duration
	shrink      float64
	grow        float64
	yieldTarget int
	exploreMax  int
	staleness   uint64
	yieldWindow int

	interval time.Duration
	keywords []*models.Keyword
	byNorm   map[string]*models.Keyword
	history  []models.CycleResult
	cycle    uint64

	logger *log.FieldedLogger
}

// New seeds the rotation from the configured keyword list, in order. The
// interval starts at the ceiling: the controller earns its way down with
// quiet cycles rather than starting fast.
func New(cfg *config.Config) *Controller {
	c := &Controller{
		floor:       cfg.IntervalFloor,
		ceiling:     cfg.IntervalCeiling,
		shrink:      cfg.IntervalShrink,
		grow:        cfg.IntervalGrow,
		yieldTarget: cfg.YieldTarget,
		exploreMax:  cfg.ExploreCount,
		staleness:   uint64(cfg.ExploreStaleness),
		yieldWindow: cfg.YieldWindow,
		interval:    cfg.IntervalCeiling,
		byNorm:      make(map[string]*models.Keyword),
		logger:      log.NewFieldedLogger(&log.Fields{"component": "schedule"}),
	}

	for i, term := range cfg.Keywords {
		kw := models.NewKeyword(term, i)
		if _, dup := c.byNorm[kw.Normalized]; dup {
			continue
		}

		c.keywords = append(c.keywords, kw)
		c.byNorm[kw.Normalized] = kw
	}

	return c
}

// NextInterval returns the wait before the next scheduled cycle.
func (c *Controller) NextInterval() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.interval
}

// CurrentCycle returns the highest cycle number the controller has seen,
// from records or from loaded state. The orchestrator seeds its cycle
// counter from it so numbering keeps rising across restarts.
func (c *Controller) CurrentCycle() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.cycle
}

// NextBatch picks up to size keywords for the coming cycle: a minority of
// explore slots for terms unused for the staleness span (never-used terms
// count as stale), the rest filled by the lowest recent yield among the
// remaining enabled terms. All ties break on insertion order, so the same
// state always produces the same batch.
func (c *Controller) NextBatch(size int) []models.Keyword {
	c.mu.Lock()
	defer c.mu.Unlock()

	next := c.cycle + 1
	picked := make(map[string]bool, size)
	batch := make([]models.Keyword, 0, size)

	var explore []models.Keyword
	for _, kw := range c.keywords {
		if len(explore) == c.exploreMax {
			break
		}

		if kw.Enabled && kw.UnusedFor(next, c.staleness) {
			explore = append(explore, *kw)
			picked[kw.Normalized] = true
		}
	}

	var pool []*models.Keyword
	for _, kw := range c.keywords {
		if kw.Enabled && !picked[kw.Normalized] {
			pool = append(pool, kw)
		}
	}

	sort.SliceStable(pool, func(i, j int) bool {
		si, sj := pool[i].RecentYieldSum(), pool[j].RecentYieldSum()
		if si != sj {
			return si < sj
		}

		return pool[i].Position < pool[j].Position
	})

	for _, kw := range pool {
		if len(batch)+len(explore) == size {
			break
		}

		batch = append(batch, *kw)
	}

	return append(batch, explore...)
}

// RecordCycle folds one finished cycle back into the rotation and adapts
// the interval. Only cycles that actually ran should be recorded.
func (c *Controller) RecordCycle(result models.CycleResult, perKeywordYield map[string]int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if result.ID > c.cycle {
		c.cycle = result.ID
	}

	for _, term := range result.KeywordsUsed {
		kw, ok := c.byNorm[models.NormalizeKeyword(term)]
		if !ok {
			continue
		}

		kw.RecordUse(result.ID, perKeywordYield[kw.Normalized], c.yieldWindow)
	}

	c.history = append(c.history, result)
	if len(c.history) > historyKeep {
		c.history = c.history[len(c.history)-historyKeep:]
	}

	c.adaptInterval(result)
}

// History returns a copy of the retained cycle results, oldest first.
func (c *Controller) History() []models.CycleResult {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]models.CycleResult, len(c.history))
	copy(out, c.history)

	return out
}

// Export returns a copy of every keyword for persistence.
func (c *Controller) Export() []models.Keyword {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]models.Keyword, 0, len(c.keywords))
	for _, kw := range c.keywords {
		cp := *kw
		cp.RecentYield = append([]int(nil), kw.RecentYield...)
		out = append(out, cp)
	}

	return out
}

// Load merges persisted rotation stats onto the configured keyword list.
// The configured list decides which terms rotate; stats for terms no
// longer configured stay in the store but are not loaded.
func (c *Controller) Load(stored []models.Keyword) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, st := range stored {
		kw, ok := c.byNorm[st.Normalized]
		if !ok {
			continue
		}

		kw.Enabled = st.Enabled
		kw.LastUsedCycle = st.LastUsedCycle
		kw.TotalYield = st.TotalYield
		kw.RecentYield = append([]int(nil), st.RecentYield...)

		if st.LastUsedCycle > c.cycle {
			c.cycle = st.LastUsedCycle
		}
	}
}

// adaptInterval applies the grow/shrink rules. Caller must hold mu.
func (c *Controller) adaptInterval(result models.CycleResult) {
	previous := c.interval

	switch {
	case result.RestrictionDetected || result.Reason == models.EndQuotaReached:
		c.interval = min(c.ceiling, time.Duration(float64(c.interval)*c.grow))
	case c.recentCyclesQuiet():
		c.interval = max(c.floor, time.Duration(float64(c.interval)*c.shrink))
	}

	if c.interval != previous {
		c.logger.Debug("cycle interval adapted",
			"from", previous.String(), "to", c.interval.String(), "reason", string(result.Reason))
	}
}

// recentCyclesQuiet reports whether the last shrinkWindow recorded cycles
// were all restriction free, completed and under the yield target. Caller
// must hold mu.
func (c *Controller) recentCyclesQuiet() bool {
	if len(c.history) == 0 {
		return false
	}

	window := c.history
	if len(window) > shrinkWindow {
		window = window[len(window)-shrinkWindow:]
	}

	for _, r := range window {
		if r.RestrictionDetected || r.Reason != models.EndCompleted || r.ItemsAccepted >= c.yieldTarget {
			return false
		}
	}

	return true
}
