package models

import "strings"

// Keyword is one search term with the bookkeeping the rotation policy needs.
type Keyword struct {
	Term       string // term as configured, displayed as-is
	Normalized string // lowercased, space-collapsed form used as identity
	Position   int    // insertion order, used as the final tie-breaker
	Enabled    bool

	LastUsedCycle uint64 // 0 when never used
	TotalYield    uint64 // accepted items over the keyword's lifetime
	RecentYield   []int  // accepted items for the most recent uses, newest last
}

// NormalizeKeyword folds a raw term to its identity form.
func NormalizeKeyword(term string) string {
	return strings.Join(strings.Fields(strings.ToLower(term)), " ")
}

// NewKeyword builds an enabled keyword at the given insertion position.
func NewKeyword(term string, position int) *Keyword {
	return &Keyword{
		Term:       term,
		Normalized: NormalizeKeyword(term),
		Position:   position,
		Enabled:    true,
	}
}

// RecordUse appends one use's accepted count, keeping at most window entries.
func (k *Keyword) RecordUse(cycle uint64, accepted int, window int) {
	k.LastUsedCycle = cycle
	k.TotalYield += uint64(accepted)
	k.RecentYield = append(k.RecentYield, accepted)
	if window > 0 && len(k.RecentYield) > window {
		k.RecentYield = k.RecentYield[len(k.RecentYield)-window:]
	}
}

// RecentYieldSum is the accepted count across the retained window.
func (k *Keyword) RecentYieldSum() int {
	var sum int
	for _, n := range k.RecentYield {
		sum += n
	}
	return sum
}

// UnusedFor reports whether the keyword has not been picked for at least
// span cycles as of currentCycle. A never-used keyword is always stale.
func (k *Keyword) UnusedFor(currentCycle, span uint64) bool {
	if k.LastUsedCycle == 0 {
		return true
	}
	return currentCycle-k.LastUsedCycle >= span
}
