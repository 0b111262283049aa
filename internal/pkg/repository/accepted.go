package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/sourcerie/affut/pkg/models"
)

// InsertAccepted persists one accepted post and returns its id. Inserting
// a fingerprint already present returns ErrDuplicate with nothing written.
func (s *Store) InsertAccepted(ctx context.Context, item *models.CandidateItem, fingerprint string, result models.QualificationResult) (string, error) {
	ctx, cancel := opCtx(ctx)
	defer cancel()

	terms, err := json.Marshal(result.MatchedTerms)
	if err != nil {
		return "", err
	}

	_, err = s.db.ExecContext(ctx, `INSERT INTO accepted_posts
		(id, fingerprint, text, author, author_url, permalink, keyword, declared_at, domain_score, intent_score, matched_terms, accepted_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		item.ID, fingerprint, item.Text, item.Author, item.AuthorURL, item.Permalink, item.Keyword,
		encodeTime(item.DeclaredAt), result.Scores.Domain, result.Scores.Intent, string(terms),
		s.clk.Now().UTC().Format(time.RFC3339))
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed: accepted_posts.fingerprint") {
			return "", ErrDuplicate
		}
		return "", err
	}

	return item.ID, nil
}

// ExistsFingerprint checks the durable side of the dedup chain.
func (s *Store) ExistsFingerprint(ctx context.Context, fingerprint string) (bool, error) {
	ctx, cancel := opCtx(ctx)
	defer cancel()

	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM accepted_posts WHERE fingerprint = ?`, fingerprint).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	return true, nil
}

// CountAcceptedSince counts posts accepted at or after since. This is the
// count the quota keeper reconciles against at the start of each day.
func (s *Store) CountAcceptedSince(ctx context.Context, since time.Time) (int, error) {
	ctx, cancel := opCtx(ctx)
	defer cancel()

	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM accepted_posts WHERE accepted_at >= ?`,
		since.UTC().Format(time.RFC3339)).Scan(&n)

	return n, err
}

// PurgeAcceptedBefore drops posts accepted strictly before cutoff and
// reports how many went. The fingerprint index only needs to cover the
// window the dedup store itself retains.
func (s *Store) PurgeAcceptedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	ctx, cancel := opCtx(ctx)
	defer cancel()

	res, err := s.db.ExecContext(ctx, `DELETE FROM accepted_posts WHERE accepted_at < ?`,
		cutoff.UTC().Format(time.RFC3339))
	if err != nil {
		return 0, err
	}

	return res.RowsAffected()
}
