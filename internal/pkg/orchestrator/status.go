package orchestrator

import (
	"time"

	"github.com/sourcerie/affut/internal/pkg/controler/pause"
	"github.com/sourcerie/affut/pkg/models"
)

// Status is the control-plane view of the orchestrator, shaped for the
// HTTP API.
type Status struct {
	Running       bool                    `json:"running"`
	Paused        bool                    `json:"paused"`
	PauseMessage  string                  `json:"pause_message,omitempty"`
	Mode          string                  `json:"mode"`
	Interval      string                  `json:"interval"`
	NextRunAt     string                  `json:"next_run_at,omitempty"`
	CooldownUntil string                  `json:"cooldown_until,omitempty"`
	Quota         QuotaStatus             `json:"quota"`
	Selectors     []models.SelectorHealth `json:"selectors"`
	LastCycle     *CycleSummary           `json:"last_cycle,omitempty"`
}

type QuotaStatus struct {
	Date      string `json:"date"`
	Accepted  int    `json:"accepted"`
	Cap       int    `json:"cap"`
	Remaining int    `json:"remaining"`
}

type CycleSummary struct {
	ID             uint64   `json:"id"`
	StartedAt      string   `json:"started_at"`
	DurationMS     int64    `json:"duration_ms"`
	Mode           string   `json:"mode"`
	Reason         string   `json:"reason"`
	KeywordsUsed   []string `json:"keywords_used,omitempty"`
	ItemsSeen      int      `json:"items_seen"`
	ItemsAccepted  int      `json:"items_accepted"`
	ItemsDuplicate int      `json:"items_duplicate"`
	UnknownAuthors int      `json:"unknown_authors"`
	Restricted     bool     `json:"restricted"`
}

// Keywords exposes the rotation state for the control plane.
func (o *Orchestrator) Keywords() []models.Keyword {
	return o.schedule.Export()
}

// Status assembles a point-in-time snapshot. Safe to call from any
// goroutine.
func (o *Orchestrator) Status() Status {
	o.mu.Lock()
	last := o.lastResult
	next := o.nextRunAt
	o.mu.Unlock()

	now := o.clk.Now()
	rs := o.risk.Snapshot()
	dq := o.quota.Snapshot()

	st := Status{
		Running:      o.running.Load(),
		Paused:       pause.IsPaused(),
		PauseMessage: pause.GetMessage(),
		Mode:         rs.Mode.String(),
		Interval:     o.schedule.NextInterval().String(),
		Quota: QuotaStatus{
			Date:      dq.Date,
			Accepted:  dq.Accepted,
			Cap:       dq.Cap,
			Remaining: dq.Remaining(),
		},
		Selectors: o.registry.Snapshot(),
	}

	if rs.InCooldown(now) {
		st.CooldownUntil = rs.CooldownUntil.UTC().Format(time.RFC3339)
	}
	if !next.IsZero() {
		st.NextRunAt = next.UTC().Format(time.RFC3339)
	}
	if last != nil {
		st.LastCycle = &CycleSummary{
			ID:             last.ID,
			StartedAt:      last.StartedAt.Format(time.RFC3339),
			DurationMS:     last.Duration.Milliseconds(),
			Mode:           last.Mode.String(),
			Reason:         string(last.Reason),
			KeywordsUsed:   last.KeywordsUsed,
			ItemsSeen:      last.ItemsSeen,
			ItemsAccepted:  last.ItemsAccepted,
			ItemsDuplicate: last.ItemsDuplicate,
			UnknownAuthors: last.UnknownAuthorCount,
			Restricted:     last.RestrictionDetected,
		}
	}

	return st
}
