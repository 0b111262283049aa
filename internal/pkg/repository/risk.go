package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/sourcerie/affut/pkg/models"
)

// SaveRiskState writes the singleton risk record, latest wins.
func (s *Store) SaveRiskState(ctx context.Context, st models.RiskState) error {
	ctx, cancel := opCtx(ctx)
	defer cancel()

	_, err := s.db.ExecContext(ctx, `INSERT INTO risk_state
		(id, mode, cooldown_until, auth_suspect, empty_results, clean_cycles, last_restriction, updated_at)
		VALUES (1, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			mode             = excluded.mode,
			cooldown_until   = excluded.cooldown_until,
			auth_suspect     = excluded.auth_suspect,
			empty_results    = excluded.empty_results,
			clean_cycles     = excluded.clean_cycles,
			last_restriction = excluded.last_restriction,
			updated_at       = excluded.updated_at`,
		st.Mode.String(), encodeTime(st.CooldownUntil), st.AuthSuspect, st.EmptyResults,
		st.CleanCycles, encodeTime(st.LastRestriction), encodeTime(st.UpdatedAt))

	return err
}

// LoadRiskState reads the singleton risk record. found is false on a
// fresh database.
func (s *Store) LoadRiskState(ctx context.Context) (models.RiskState, bool, error) {
	ctx, cancel := opCtx(ctx)
	defer cancel()

	var mode, cooldownUntil, lastRestriction, updatedAt string
	var st models.RiskState
	err := s.db.QueryRowContext(ctx,
		`SELECT mode, cooldown_until, auth_suspect, empty_results, clean_cycles, last_restriction, updated_at
		 FROM risk_state WHERE id = 1`).
		Scan(&mode, &cooldownUntil, &st.AuthSuspect, &st.EmptyResults, &st.CleanCycles, &lastRestriction, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.RiskState{}, false, nil
	}
	if err != nil {
		return models.RiskState{}, false, err
	}

	st.Mode = models.ParseMode(mode)
	st.CooldownUntil = decodeTime(cooldownUntil)
	st.LastRestriction = decodeTime(lastRestriction)
	st.UpdatedAt = decodeTime(updatedAt)

	return st, true, nil
}
