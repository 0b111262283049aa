// Package repository is the durable store behind the collection core. One
// sqlite database holds accepted posts, quota day audit rows, selector
// statistics, the risk record and keyword rotation state.
//
// The schema is versioned: pending migrations run in order exactly once at
// startup, tracked in a migrations table. Nothing probes the schema per
// read.
package repository

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"path"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/jonboulle/clockwork"
	"github.com/sourcerie/affut/internal/pkg/log"
)

// opTimeout bounds every statement so a wedged database cannot stall a
// cycle indefinitely.
const opTimeout = 5 * time.Second

//go:embed schema.sql
var schemaV1 string

type migration struct {
	version int
	ddl     string
}

var migrations = []migration{
	{version: 1, ddl: schemaV1},
}

// Store wraps the sqlite database. sqlite wants a single writer, so the
// pool is capped at one connection; every method is safe for concurrent
// use.
type Store struct {
	db     *sql.DB
	clk    clockwork.Clock
	logger *log.FieldedLogger
}

// New opens (or creates) the database under dataPath and brings the
// schema up to date. A migration failure is fatal to the caller: a
// half-migrated store must not serve a run.
func New(dataPath string, clk clockwork.Clock) (*Store, error) {
	db, err := sql.Open("sqlite3", "file:"+path.Join(dataPath, "affut.db"))
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	s := &Store{
		db:  db,
		clk: clk,
		logger: log.NewFieldedLogger(&log.Fields{
			"component": "repository",
		}),
	}

	if err := s.migrate(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating schema: %w", err)
	}

	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Vacuum compacts the database file. Meant for the maintenance loop, not
// the cycle path.
func (s *Store) Vacuum(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, "VACUUM;")
	return err
}

func (s *Store) migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version    INTEGER PRIMARY KEY,
		applied_at TEXT NOT NULL
	)`)
	if err != nil {
		return err
	}

	var current int
	if err := s.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(version), 0) FROM schema_migrations`).Scan(&current); err != nil {
		return err
	}

	for _, m := range migrations {
		if m.version <= current {
			continue
		}

		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, m.ddl); err != nil {
			tx.Rollback()
			return fmt.Errorf("applying migration %d: %w", m.version, err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations (version, applied_at) VALUES (?, ?)`,
			m.version, s.clk.Now().UTC().Format(time.RFC3339)); err != nil {
			tx.Rollback()
			return fmt.Errorf("recording migration %d: %w", m.version, err)
		}
		if err := tx.Commit(); err != nil {
			return err
		}

		s.logger.Info("schema migration applied", "version", m.version)
	}

	return nil
}

// opCtx derives the bounded context every statement runs under.
func opCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, opTimeout)
}

// encodeTime keeps zero times as empty strings so a fresh record does not
// come back as year one.
func encodeTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func decodeTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
