package repository

import (
	"context"
	"encoding/json"

	"github.com/sourcerie/affut/pkg/models"
)

// SaveSelectorStats persists every profile in one transaction, replacing
// whatever was stored for the same element. Selector drift develops over
// days, so these rows have to survive restarts.
func (s *Store) SaveSelectorStats(ctx context.Context, profiles []models.SelectorProfile) error {
	ctx, cancel := opCtx(ctx)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, p := range profiles {
		strategies, err := json.Marshal(p.Strategies)
		if err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, `INSERT INTO selector_stats (element, state, strategies)
			VALUES (?, ?, ?)
			ON CONFLICT(element) DO UPDATE SET state = excluded.state, strategies = excluded.strategies`,
			string(p.Element), int(p.State), string(strategies)); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// LoadSelectorStats returns every stored profile. A row that fails to
// decode is skipped with a warning so one corrupt record cannot block
// startup.
func (s *Store) LoadSelectorStats(ctx context.Context) ([]models.SelectorProfile, error) {
	ctx, cancel := opCtx(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `SELECT element, state, strategies FROM selector_stats ORDER BY element`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.SelectorProfile
	for rows.Next() {
		var element, strategies string
		var state int
		if err := rows.Scan(&element, &state, &strategies); err != nil {
			return nil, err
		}

		p := models.SelectorProfile{
			Element: models.ElementKind(element),
			State:   models.SelectorState(state),
		}
		if err := json.Unmarshal([]byte(strategies), &p.Strategies); err != nil {
			s.logger.Warn("skipping undecodable selector record", "element", element, "err", err.Error())
			continue
		}

		out = append(out, p)
	}

	return out, rows.Err()
}
