package stats

import (
	"sync"
	"testing"
)

func initForTest(t *testing.T) {
	t.Helper()
	if err := Init(); err != nil && err != ErrStatsAlreadyInitialized {
		t.Fatalf("Init: %v", err)
	}
	Reset()
}

func TestCounters(t *testing.T) {
	initForTest(t)

	CyclesStartedIncr()
	CyclesStartedIncr()
	if got := CyclesStartedGet(); got != 2 {
		t.Errorf("CyclesStarted = %d, want 2", got)
	}

	ItemsSeenIncr(5)
	ItemsAcceptedIncr()
	if ItemsSeenGet() != 5 || ItemsAcceptedGet() != 1 {
		t.Errorf("items: seen=%d accepted=%d", ItemsSeenGet(), ItemsAcceptedGet())
	}

	LateDuplicateIncr()
	if LateDuplicateGet() != 1 {
		t.Errorf("LateDuplicates = %d", LateDuplicateGet())
	}
}

func TestRejectionBucket(t *testing.T) {
	initForTest(t)

	RejectionIncr("foreign_location")
	RejectionIncr("foreign_location")
	RejectionIncr("quota_reached")

	if got := RejectionGet("foreign_location"); got != 2 {
		t.Errorf("foreign_location = %d, want 2", got)
	}
	all := RejectionsGetAll()
	if all["quota_reached"] != 1 {
		t.Errorf("getAll = %v", all)
	}
	if RejectionGet("never_seen") != 0 {
		t.Error("unknown reason should read 0")
	}
}

func TestBucketConcurrentIncr(t *testing.T) {
	initForTest(t)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			RejectionIncr("contract_type")
		}()
	}
	wg.Wait()

	if got := RejectionGet("contract_type"); got != 50 {
		t.Errorf("concurrent incr lost updates: %d, want 50", got)
	}
}

func TestPaused(t *testing.T) {
	initForTest(t)

	if PausedGet() {
		t.Error("should start unpaused")
	}
	PausedSet()
	PausedSet() // idempotent
	if !PausedGet() {
		t.Error("should be paused")
	}
	PausedUnset()
	if PausedGet() {
		t.Error("should be unpaused")
	}
}

func TestGetMapKeys(t *testing.T) {
	initForTest(t)

	m := GetMap()
	for _, key := range []string{
		"Cycles started", "Items seen", "Items accepted", "Rejections",
		"Late duplicates", "Restrictions detected", "Is paused?",
	} {
		if _, ok := m[key]; !ok {
			t.Errorf("GetMap missing key %q", key)
		}
	}
}
