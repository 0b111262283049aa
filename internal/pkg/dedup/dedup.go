// Package dedup tracks fingerprints of previously collected posts so the
// same logical post is never processed twice, within a run or across runs.
//
// It layers a bounded most-recently-used cache over a durable leveldb set.
// The cache answers the common case without touching disk; the durable set
// survives restarts and is the authority on whether a fingerprint was seen.
package dedup

import (
	"container/list"
	"fmt"
	"path"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/philippgille/gokv/leveldb"

	"github.com/sourcerie/affut/internal/pkg/log"
	"github.com/sourcerie/affut/internal/pkg/utils"
	"github.com/sourcerie/affut/pkg/models"
)

// Fingerprints are grouped into per-day buckets keyed by their first-seen
// date so Sweep can purge old entries without iterating the whole set.
const (
	dayKeyPrefix = "day:"
	dayIndexKey  = "day-index"
)

// Store is the two-layer dedup set. All methods are safe for concurrent use.
type Store struct {
	mu    sync.Mutex
	db    leveldb.Store
	clk   clockwork.Clock
	cap   int
	order *list.List               // front = most recently used
	index map[string]*list.Element // fingerprint -> node in order
	adds  atomic.Int64

	logger *log.FieldedLogger
}

// New opens (or creates) the durable set under dataPath and fronts it with a
// cache of at most cacheSize fingerprints.
func New(dataPath string, cacheSize int, clk clockwork.Clock) (*Store, error) {
	db, err := leveldb.NewStore(leveldb.Options{Path: path.Join(dataPath, "dedup")})
	if err != nil {
		return nil, fmt.Errorf("dedup: opening store: %w", err)
	}

	return &Store{
		db:     db,
		clk:    clk,
		cap:    cacheSize,
		order:  list.New(),
		index:  make(map[string]*list.Element),
		logger: log.NewFieldedLogger(&log.Fields{"component": "dedup"}),
	}, nil
}

// Seen reports whether fp was recorded before, consulting the cache first
// and falling back to the durable set. A durable read error is logged and
// treated as unseen; the repository's unique index catches the rare
// duplicate that would slip through.
func (s *Store) Seen(fp string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if el, ok := s.index[fp]; ok {
		s.order.MoveToFront(el)
		return true
	}

	var firstSeen string
	found, err := s.db.Get(fp, &firstSeen)
	if err != nil {
		s.logger.Error("durable read failed", "fingerprint", fp, "err", err.Error())
		return false
	}

	if found {
		s.insert(fp)
	}

	return found
}

// Remember records fp as seen, stamped with the current UTC date. Calling it
// again for the same fingerprint is a no-op, including across restarts.
func (s *Store) Remember(fp string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if el, ok := s.index[fp]; ok {
		s.order.MoveToFront(el)
		return nil
	}

	var firstSeen string
	found, err := s.db.Get(fp, &firstSeen)
	if err != nil {
		return fmt.Errorf("dedup: reading %q: %w", fp, err)
	}

	if found {
		s.insert(fp)
		return nil
	}

	date := s.clk.Now().UTC().Format(models.QuotaDateLayout)
	if err := s.db.Set(fp, date); err != nil {
		return fmt.Errorf("dedup: writing %q: %w", fp, err)
	}

	if err := s.appendToDay(date, fp); err != nil {
		return err
	}

	s.insert(fp)
	s.adds.Add(1)

	return nil
}

// Sweep deletes durable entries whose first-seen date is strictly older than
// maxAge, keeping the set bounded to the window in which a post could still
// resurface in search results. It returns the number of fingerprints removed.
func (s *Store) Sweep(maxAge time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.clk.Now().UTC().Add(-maxAge).Format(models.QuotaDateLayout)

	var days []string
	if _, err := s.db.Get(dayIndexKey, &days); err != nil {
		return 0, fmt.Errorf("dedup: reading day index: %w", err)
	}

	removed := 0
	kept := make([]string, 0, len(days))

	for _, date := range days {
		if date >= cutoff {
			kept = append(kept, date)
			continue
		}

		key := dayKeyPrefix + date

		var fps []string
		if _, err := s.db.Get(key, &fps); err != nil {
			s.logger.Error("reading day bucket", "date", date, "err", err.Error())
			kept = append(kept, date)
			continue
		}

		for _, fp := range fps {
			if err := s.db.Delete(fp); err != nil {
				s.logger.Error("deleting fingerprint", "fingerprint", fp, "err", err.Error())
				continue
			}

			if el, ok := s.index[fp]; ok {
				s.order.Remove(el)
				delete(s.index, fp)
			}

			removed++
		}

		if err := s.db.Delete(key); err != nil {
			s.logger.Error("deleting day bucket", "date", date, "err", err.Error())
		}
	}

	if len(kept) != len(days) {
		if err := s.db.Set(dayIndexKey, kept); err != nil {
			return removed, fmt.Errorf("dedup: writing day index: %w", err)
		}
	}

	if removed > 0 {
		s.logger.Info("swept old fingerprints", "removed", removed, "cutoff", cutoff)
	}

	return removed, nil
}

// CacheLen returns the number of fingerprints currently held in memory.
func (s *Store) CacheLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.order.Len()
}

// DurableAdds returns the number of new fingerprints written since open.
func (s *Store) DurableAdds() int64 {
	return s.adds.Load()
}

// Close releases the underlying leveldb handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// insert puts fp at the front of the cache, evicting from the back when the
// cache is over capacity. Caller must hold mu.
func (s *Store) insert(fp string) {
	if el, ok := s.index[fp]; ok {
		s.order.MoveToFront(el)
		return
	}

	s.index[fp] = s.order.PushFront(fp)

	for s.cap > 0 && s.order.Len() > s.cap {
		oldest := s.order.Back()
		s.order.Remove(oldest)
		delete(s.index, oldest.Value.(string))
	}
}

// appendToDay adds fp to the bucket of fingerprints first seen on date, and
// registers the date in the day index when the bucket is new. Caller must
// hold mu.
func (s *Store) appendToDay(date, fp string) error {
	key := dayKeyPrefix + date

	var fps []string
	if _, err := s.db.Get(key, &fps); err != nil {
		return fmt.Errorf("dedup: reading day bucket %s: %w", date, err)
	}

	fps = append(fps, fp)
	if err := s.db.Set(key, fps); err != nil {
		return fmt.Errorf("dedup: writing day bucket %s: %w", date, err)
	}

	var days []string
	if _, err := s.db.Get(dayIndexKey, &days); err != nil {
		return fmt.Errorf("dedup: reading day index: %w", err)
	}

	if !utils.StringInSlice(date, days) {
		days = append(days, date)
		if err := s.db.Set(dayIndexKey, days); err != nil {
			return fmt.Errorf("dedup: writing day index: %w", err)
		}
	}

	return nil
}
