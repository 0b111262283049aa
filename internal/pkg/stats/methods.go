package stats

import "github.com/sourcerie/affut/internal/pkg/config"

func job() string {
	if c := config.Get(); c != nil {
		return c.Job
	}
	return ""
}

/////////////////////////
//       Cycles        //
/////////////////////////

// CyclesStartedIncr increments the CyclesStarted counter by 1.
func CyclesStartedIncr() {
	globalStats.CyclesStarted.incr(1)
	globalPromStats.cyclesStarted.WithLabelValues(job(), hostname, version).Inc()
}

// CyclesStartedGet returns the current value of the CyclesStarted counter.
func CyclesStartedGet() uint64 { return globalStats.CyclesStarted.get() }

// CyclesFinishedIncr increments the CyclesFinished counter by 1.
func CyclesFinishedIncr() {
	globalStats.CyclesFinished.incr(1)
	globalPromStats.cyclesFinished.WithLabelValues(job(), hostname, version).Inc()
}

// CyclesFinishedGet returns the current value of the CyclesFinished counter.
func CyclesFinishedGet() uint64 { return globalStats.CyclesFinished.get() }

// CycleEndIncr tallies the end reason of a finished cycle.
func CycleEndIncr(reason string) {
	globalStats.CycleEnds.incr(reason, 1)
	globalPromStats.cycleEnds.WithLabelValues(job(), hostname, version, reason).Inc()
}

// CycleEndGet returns the tally for one end reason.
func CycleEndGet(reason string) uint64 { return globalStats.CycleEnds.get(reason) }

// LastCycleSet records the identifier of the most recent cycle.
func LastCycleSet(id uint64) { globalStats.LastCycleID.Store(id) }

// LastCycleGet returns the identifier of the most recent cycle.
func LastCycleGet() uint64 { return globalStats.LastCycleID.Load() }

/////////////////////////
//        Items        //
/////////////////////////

// ItemsSeenIncr increments the ItemsSeen rate by step.
func ItemsSeenIncr(step uint64) {
	globalStats.ItemsSeen.incr(step)
	globalPromStats.itemsSeen.WithLabelValues(job(), hostname, version).Add(float64(step))
}

// ItemsSeenGet returns the total number of items seen.
func ItemsSeenGet() uint64 { return globalStats.ItemsSeen.getTotal() }

// ItemsAcceptedIncr increments the ItemsAccepted rate by 1.
func ItemsAcceptedIncr() {
	globalStats.ItemsAccepted.incr(1)
	globalPromStats.itemsAccepted.WithLabelValues(job(), hostname, version).Inc()
}

// ItemsAcceptedGet returns the total number of items accepted.
func ItemsAcceptedGet() uint64 { return globalStats.ItemsAccepted.getTotal() }

// ItemsDuplicateIncr increments the in-cycle duplicate counter by 1.
func ItemsDuplicateIncr() {
	globalStats.ItemsDuplicate.incr(1)
	globalPromStats.itemsDuplicate.WithLabelValues(job(), hostname, version).Inc()
}

// ItemsDuplicateGet returns the in-cycle duplicate count.
func ItemsDuplicateGet() uint64 { return globalStats.ItemsDuplicate.get() }

// LateDuplicateIncr increments the late-duplicate counter by 1. A late
// duplicate is an accepted item the durable store already held.
func LateDuplicateIncr() {
	globalStats.LateDuplicates.incr(1)
	globalPromStats.lateDuplicates.WithLabelValues(job(), hostname, version).Inc()
}

// LateDuplicateGet returns the late-duplicate count.
func LateDuplicateGet() uint64 { return globalStats.LateDuplicates.get() }

/////////////////////////
//     Rejections      //
/////////////////////////

// RejectionIncr increments the rejection tally for the given reason code.
func RejectionIncr(reason string) {
	globalStats.Rejections.incr(reason, 1)
	globalPromStats.rejections.WithLabelValues(job(), hostname, version, reason).Inc()
}

// RejectionGet returns the rejection tally for the given reason code.
func RejectionGet(reason string) uint64 { return globalStats.Rejections.get(reason) }

// RejectionsGetAll returns all rejection tallies keyed by reason code.
func RejectionsGetAll() map[string]uint64 { return globalStats.Rejections.getAll() }

/////////////////////////
//     Governance      //
/////////////////////////

// RestrictionIncr increments the restrictions-detected counter by 1.
func RestrictionIncr() {
	globalStats.Restrictions.incr(1)
	globalPromStats.restrictions.WithLabelValues(job(), hostname, version).Inc()
}

// RestrictionGet returns the restrictions-detected count.
func RestrictionGet() uint64 { return globalStats.Restrictions.get() }

// SelectorExhaustedIncr increments the selector-exhaustion counter by 1.
func SelectorExhaustedIncr() {
	globalStats.SelectorExhausted.incr(1)
	globalPromStats.selectorExhausted.WithLabelValues(job(), hostname, version).Inc()
}

// SelectorExhaustedGet returns the selector-exhaustion count.
func SelectorExhaustedGet() uint64 { return globalStats.SelectorExhausted.get() }

// QuotaReachedIncr increments the quota-reached counter by 1.
func QuotaReachedIncr() {
	globalStats.QuotaReached.incr(1)
	globalPromStats.quotaReached.WithLabelValues(job(), hostname, version).Inc()
}

// QuotaReachedGet returns the quota-reached count.
func QuotaReachedGet() uint64 { return globalStats.QuotaReached.get() }

// AlertsDroppedIncr increments the dropped-alert counter by 1.
func AlertsDroppedIncr() {
	globalStats.AlertsDropped.incr(1)
	globalPromStats.alertsDropped.WithLabelValues(job(), hostname, version).Inc()
}

// AlertsDroppedGet returns the dropped-alert count.
func AlertsDroppedGet() uint64 { return globalStats.AlertsDropped.get() }

/////////////////////////
//        Paused       //
/////////////////////////

// PausedSet sets the Paused flag to true.
func PausedSet() {
	swapped := globalStats.Paused.CompareAndSwap(false, true)
	if swapped {
		globalPromStats.paused.WithLabelValues(job(), hostname, version).Set(1)
	}
}

// PausedUnset sets the Paused flag to false.
func PausedUnset() {
	swapped := globalStats.Paused.CompareAndSwap(true, false)
	if swapped {
		globalPromStats.paused.WithLabelValues(job(), hostname, version).Set(0)
	}
}

// PausedGet returns the current value of the Paused flag.
func PausedGet() bool { return globalStats.Paused.Load() }
