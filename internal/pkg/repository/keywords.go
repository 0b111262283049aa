package repository

import (
	"context"
	"encoding/json"

	"github.com/sourcerie/affut/pkg/models"
)

// UpsertKeywords writes rotation stats for every keyword in one
// transaction. Terms no longer configured keep their rows; the schedule
// controller simply ignores them on load.
func (s *Store) UpsertKeywords(ctx context.Context, keywords []models.Keyword) error {
	ctx, cancel := opCtx(ctx)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, kw := range keywords {
		recent, err := json.Marshal(kw.RecentYield)
		if err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, `INSERT INTO keywords
			(normalized, term, position, enabled, last_used_cycle, total_yield, recent_yield)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(normalized) DO UPDATE SET
				term            = excluded.term,
				position        = excluded.position,
				enabled         = excluded.enabled,
				last_used_cycle = excluded.last_used_cycle,
				total_yield     = excluded.total_yield,
				recent_yield    = excluded.recent_yield`,
			kw.Normalized, kw.Term, kw.Position, kw.Enabled,
			int64(kw.LastUsedCycle), int64(kw.TotalYield), string(recent)); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// LoadKeywords returns every stored keyword row ordered by position.
func (s *Store) LoadKeywords(ctx context.Context) ([]models.Keyword, error) {
	ctx, cancel := opCtx(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx,
		`SELECT normalized, term, position, enabled, last_used_cycle, total_yield, recent_yield FROM keywords ORDER BY position`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Keyword
	for rows.Next() {
		var kw models.Keyword
		var lastUsed, total int64
		var recent string
		if err := rows.Scan(&kw.Normalized, &kw.Term, &kw.Position, &kw.Enabled, &lastUsed, &total, &recent); err != nil {
			return nil, err
		}

		kw.LastUsedCycle = uint64(lastUsed)
		kw.TotalYield = uint64(total)
		if err := json.Unmarshal([]byte(recent), &kw.RecentYield); err != nil {
			s.logger.Warn("skipping undecodable keyword yield window", "keyword", kw.Normalized, "err", err.Error())
			kw.RecentYield = nil
		}

		out = append(out, kw)
	}

	return out, rows.Err()
}
