package qualify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/sourcerie/affut/internal/pkg/log"
	"github.com/sourcerie/affut/pkg/models"
)

// QuotaStore is the durable side of quota accounting, implemented by the
// repository. The accepted-post count is the source of truth; the per-day
// row only carries the audit counters.
type QuotaStore interface {
	CountAcceptedSince(ctx context.Context, since time.Time) (int, error)
	LoadQuotaDay(ctx context.Context, date string) (models.DailyQuota, bool, error)
}

// QuotaKeeper enforces the rolling daily acceptance cap. At the first check
// of each UTC day (including the first after a restart) it re-derives the
// accepted count from the durable store instead of trusting memory, so the
// cap cannot drift after a crash or an out-of-band edit.
type QuotaKeeper struct {
	mu    sync.Mutex
	clk   clockwork.Clock
	store QuotaStore
	state models.DailyQuota

	logger *log.FieldedLogger
}

func NewQuotaKeeper(store QuotaStore, clk clockwork.Clock) *QuotaKeeper {
	return &QuotaKeeper{
		clk:    clk,
		store:  store,
		logger: log.NewFieldedLogger(&log.Fields{"component": "quota"}),
	}
}

// Check reports whether another acceptance is allowed right now. The cap
// comes from the caller's flags snapshot so a runtime change applies on the
// next cycle. With relaxed set (operator-triggered cycle) the cap is waived
// but accounting still runs.
func (qk *QuotaKeeper) Check(ctx context.Context, cap int, relaxed bool) (bool, error) {
	qk.mu.Lock()
	defer qk.mu.Unlock()

	if err := qk.rollover(ctx, cap); err != nil {
		return false, err
	}

	qk.state.Cap = cap

	if relaxed {
		return true, nil
	}

	return !qk.state.Reached(), nil
}

// NoteAccepted records one accepted item against today's cap.
func (qk *QuotaKeeper) NoteAccepted() {
	qk.mu.Lock()
	defer qk.mu.Unlock()

	qk.state.Accepted++
}

// NoteRejected records a rejection in the day's audit counters. Only
// location and intent-class rejections are tracked per day; the full
// breakdown lives in stats.
func (qk *QuotaKeeper) NoteRejected(reason models.RejectionReason) {
	qk.mu.Lock()
	defer qk.mu.Unlock()

	switch reason {
	case models.ReasonForeignLocation:
		qk.state.RejectedLocation++
	case models.ReasonLowDomainScore, models.ReasonLowIntentScore, models.ReasonIntentCategory:
		qk.state.RejectedIntent++
	}
}

// Snapshot returns a copy of today's quota state.
func (qk *QuotaKeeper) Snapshot() models.DailyQuota {
	qk.mu.Lock()
	defer qk.mu.Unlock()

	return qk.state
}

// rollover re-seeds the day state when the UTC date changed since the last
// check. Caller must hold mu.
func (qk *QuotaKeeper) rollover(ctx context.Context, cap int) error {
	today := models.QuotaDate(qk.clk.Now())
	if qk.state.Date == today {
		return nil
	}

	dayStart, err := time.ParseInLocation(models.QuotaDateLayout, today, time.UTC)
	if err != nil {
		return fmt.Errorf("qualify: parsing day %s: %w", today, err)
	}

	accepted, err := qk.store.CountAcceptedSince(ctx, dayStart)
	if err != nil {
		return fmt.Errorf("qualify: reconciling quota for %s: %w", today, err)
	}

	fresh := models.DailyQuota{Date: today, Accepted: accepted, Cap: cap}

	if row, ok, err := qk.store.LoadQuotaDay(ctx, today); err != nil {
		return fmt.Errorf("qualify: loading quota day %s: %w", today, err)
	} else if ok {
		fresh.RejectedIntent = row.RejectedIntent
		fresh.RejectedLocation = row.RejectedLocation

		if row.Accepted != accepted {
			qk.logger.Warn("quota drift reconciled from durable count",
				"date", today, "recorded", row.Accepted, "durable", accepted)
		}
	}

	qk.state = fresh
	qk.logger.Info("quota day started", "date", today, "accepted", accepted, "cap", cap)

	return nil
}
