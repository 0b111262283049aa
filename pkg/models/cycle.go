package models

import "time"

// EndReason explains why a collection cycle stopped.
type EndReason string

const (
	EndCompleted     EndReason = "completed"      // ran the full keyword plan
	EndQuotaReached  EndReason = "quota_reached"  // daily cap hit mid-cycle
	EndRestriction   EndReason = "restriction"    // platform restriction detected
	EndCooldown      EndReason = "cooldown"       // risk cooldown was active at start
	EndOutsideWindow EndReason = "outside_window" // outside the configured active window
	EndPaused        EndReason = "paused"         // operator pause preempted the cycle
	EndEmptyBatch    EndReason = "empty_batch"    // consecutive empty fetches tripped the guard
	EndFetchFailed   EndReason = "fetch_failed"   // fetch retries exhausted
	EndFailed        EndReason = "failed"         // internal error, see logs
	EndShutdown      EndReason = "shutdown"       // process stopping
)

// CycleResult summarizes one orchestrator cycle for logs, status and stats.
type CycleResult struct {
	ID                  uint64
	StartedAt           time.Time
	Duration            time.Duration
	Mode                ProgressiveMode
	KeywordsUsed        []string
	ItemsSeen           int
	ItemsAccepted       int
	ItemsDuplicate      int
	UnknownAuthorCount  int
	RestrictionDetected bool
	Reason              EndReason
}
