// Package selectors keeps the page-element extraction strategies alive as
// the platform's markup drifts. Every element the fetcher must locate has
// an ordered list of candidate strategies with live statistics; the
// registry reorders them as outcomes come in and escalates when a whole
// element becomes unextractable.
package selectors

import (
	"sort"
	"sync"

	"github.com/jonboulle/clockwork"
	"github.com/sourcerie/affut/internal/pkg/log"
	"github.com/sourcerie/affut/pkg/models"
)

// OnAllFailedFunc is invoked the first time every known strategy for an
// element fails within one cycle. At most one invocation per element per
// cycle.
type OnAllFailedFunc func(element models.ElementKind, cycleID uint64)

type profileState struct {
	profile         *models.SelectorProfile
	failedThisCycle map[string]bool
	exhaustedFired  bool
}

// Registry owns the selector profiles. Mutations arrive from the cycle
// goroutine; Snapshot may be called concurrently from the control plane.
type Registry struct {
	mu            sync.Mutex
	profiles      map[models.ElementKind]*profileState
	clk           clockwork.Clock
	onAllFailed   OnAllFailedFunc
	failsToDemote int
	cycleID       uint64
	logger        *log.FieldedLogger
}

// New seeds a registry from the embedded defaults. failsToDemote is the
// consecutive-failure count that demotes a leading strategy.
func New(clk clockwork.Clock, failsToDemote int, onAllFailed OnAllFailedFunc) (*Registry, error) {
	seeded, err := defaultProfiles()
	if err != nil {
		return nil, err
	}

	r := &Registry{
		profiles:      make(map[models.ElementKind]*profileState, len(seeded)),
		clk:           clk,
		onAllFailed:   onAllFailed,
		failsToDemote: failsToDemote,
		logger: log.NewFieldedLogger(&log.Fields{
			"component": "selectors",
		}),
	}
	for _, p := range seeded {
		r.profiles[p.Element] = &profileState{
			profile:         p,
			failedThisCycle: make(map[string]bool),
		}
	}
	return r, nil
}

// BeginCycle resets the per-cycle exhaustion tracking.
func (r *Registry) BeginCycle(cycleID uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.cycleID = cycleID
	for _, ps := range r.profiles {
		ps.failedThisCycle = make(map[string]bool)
		ps.exhaustedFired = false
	}
}

// Resolve returns the element's strategies in try-order: healthiest state
// first, then highest success rate, then declared priority. The returned
// slice is a copy, callers may not mutate registry state through it.
func (r *Registry) Resolve(element models.ElementKind) []models.Strategy {
	r.mu.Lock()
	defer r.mu.Unlock()

	ps, ok := r.profiles[element]
	if !ok {
		return nil
	}

	ordered := orderStrategies(ps.profile.Strategies)
	out := make([]models.Strategy, len(ordered))
	for i, s := range ordered {
		out[i] = *s
	}
	return out
}

// RecordOutcome updates one strategy's statistics and recomputes states per
// the transition rules. Unknown elements or strategy IDs are ignored with a
// warning, a drifting fetcher build must not crash the registry.
func (r *Registry) RecordOutcome(element models.ElementKind, strategyID string, success bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ps, ok := r.profiles[element]
	if !ok {
		r.logger.Warn("outcome for unknown element", "element", element)
		return
	}

	var target *models.Strategy
	for _, s := range ps.profile.Strategies {
		if s.ID == strategyID {
			target = s
			break
		}
	}
	if target == nil {
		r.logger.Warn("outcome for unknown strategy", "element", element, "strategy", strategyID)
		return
	}

	leading := orderStrategies(ps.profile.Strategies)[0]

	target.Attempts++
	if success {
		target.Successes++
		target.ConsecutiveFails = 0
		target.LastSuccessAt = r.clk.Now()
		target.State = models.SelectorActive
		ps.profile.State = models.SelectorActive
		// A success means the element is extractable again this cycle.
		ps.failedThisCycle = make(map[string]bool)
		return
	}

	target.ConsecutiveFails++
	ps.failedThisCycle[strategyID] = true

	// N consecutive failures on the strategy currently leading the order
	// demote it, so the next resolve leads with the fallback.
	if target == leading && target.State == models.SelectorActive && target.ConsecutiveFails >= r.failsToDemote {
		target.State = models.SelectorDegraded
		r.logger.Info("strategy demoted", "element", element, "strategy", strategyID, "consecutive_fails", target.ConsecutiveFails)
	}

	if len(ps.failedThisCycle) == len(ps.profile.Strategies) {
		ps.profile.State = models.SelectorFailed
		if !ps.exhaustedFired {
			ps.exhaustedFired = true
			r.logger.Warn("all strategies failed", "element", element, "cycle", r.cycleID)
			if r.onAllFailed != nil {
				r.onAllFailed(element, r.cycleID)
			}
		}
		return
	}

	ps.profile.State = orderStrategies(ps.profile.Strategies)[0].State
}

// Snapshot returns the per-element health view for the status surface.
func (r *Registry) Snapshot() []models.SelectorHealth {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]models.SelectorHealth, 0, len(r.profiles))
	for _, ps := range r.profiles {
		leading := orderStrategies(ps.profile.Strategies)[0]
		out = append(out, models.SelectorHealth{
			Element:     ps.profile.Element,
			State:       ps.profile.State.String(),
			Leading:     leading.ID,
			SuccessRate: leading.SuccessRate(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Element < out[j].Element })
	return out
}

// Load merges persisted statistics into the seeded profiles. Statistics
// match on (element, strategy ID); expressions and priorities always come
// from the embedded defaults, so a shipped selector fix wins over stale
// stored expressions. Persisted strategies that no longer exist are
// dropped.
func (r *Registry) Load(persisted []models.SelectorProfile) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, pp := range persisted {
		ps, ok := r.profiles[pp.Element]
		if !ok {
			r.logger.Debug("dropping persisted stats for unknown element", "element", pp.Element)
			continue
		}
		ps.profile.State = pp.State
		for _, stored := range pp.Strategies {
			for _, s := range ps.profile.Strategies {
				if s.ID == stored.ID {
					s.State = stored.State
					s.Attempts = stored.Attempts
					s.Successes = stored.Successes
					s.ConsecutiveFails = stored.ConsecutiveFails
					s.LastSuccessAt = stored.LastSuccessAt
					break
				}
			}
		}
	}
}

// Export returns a deep copy of every profile for persistence.
func (r *Registry) Export() []models.SelectorProfile {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]models.SelectorProfile, 0, len(r.profiles))
	for _, ps := range r.profiles {
		cp := models.SelectorProfile{
			Element:    ps.profile.Element,
			State:      ps.profile.State,
			Strategies: make([]*models.Strategy, len(ps.profile.Strategies)),
		}
		for i, s := range ps.profile.Strategies {
			dup := *s
			cp.Strategies[i] = &dup
		}
		out = append(out, cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Element < out[j].Element })
	return out
}

// orderStrategies sorts by state rank, then success rate descending, then
// declared priority. The sort is stable so equal strategies keep their
// declared order.
func orderStrategies(strategies []*models.Strategy) []*models.Strategy {
	ordered := make([]*models.Strategy, len(strategies))
	copy(ordered, strategies)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].State != ordered[j].State {
			return ordered[i].State < ordered[j].State
		}
		ri, rj := ordered[i].SuccessRate(), ordered[j].SuccessRate()
		if ri != rj {
			return ri > rj
		}
		return ordered[i].Priority < ordered[j].Priority
	})
	return ordered
}
