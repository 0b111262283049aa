package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/sourcerie/affut/pkg/models"
)

// LoadQuotaDay reads the audit row for one UTC date. found is false when
// the day has no row yet.
func (s *Store) LoadQuotaDay(ctx context.Context, date string) (models.DailyQuota, bool, error) {
	ctx, cancel := opCtx(ctx)
	defer cancel()

	var q models.DailyQuota
	err := s.db.QueryRowContext(ctx,
		`SELECT date, accepted, rejected_intent, rejected_location, cap FROM quota_days WHERE date = ?`, date).
		Scan(&q.Date, &q.Accepted, &q.RejectedIntent, &q.RejectedLocation, &q.Cap)
	if errors.Is(err, sql.ErrNoRows) {
		return models.DailyQuota{}, false, nil
	}
	if err != nil {
		return models.DailyQuota{}, false, err
	}

	return q, true, nil
}

// UpsertQuotaDay writes the audit row for q's date, latest wins.
func (s *Store) UpsertQuotaDay(ctx context.Context, q models.DailyQuota) error {
	ctx, cancel := opCtx(ctx)
	defer cancel()

	_, err := s.db.ExecContext(ctx, `INSERT INTO quota_days (date, accepted, rejected_intent, rejected_location, cap)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(date) DO UPDATE SET
			accepted          = excluded.accepted,
			rejected_intent   = excluded.rejected_intent,
			rejected_location = excluded.rejected_location,
			cap               = excluded.cap`,
		q.Date, q.Accepted, q.RejectedIntent, q.RejectedLocation, q.Cap)

	return err
}
