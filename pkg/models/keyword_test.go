package models

import "testing"

func TestKeywordRecordUse(t *testing.T) {
	k := NewKeyword("  Assistante   Dentaire ", 0)
	if k.Normalized != "assistante dentaire" {
		t.Errorf("Normalized = %q", k.Normalized)
	}

	k.RecordUse(1, 2, 3)
	k.RecordUse(2, 0, 3)
	k.RecordUse(3, 1, 3)
	k.RecordUse(4, 4, 3)

	if k.LastUsedCycle != 4 {
		t.Errorf("LastUsedCycle = %d", k.LastUsedCycle)
	}
	if k.TotalYield != 7 {
		t.Errorf("TotalYield = %d", k.TotalYield)
	}
	if len(k.RecentYield) != 3 {
		t.Fatalf("window should retain 3 entries, got %d", len(k.RecentYield))
	}
	if got := k.RecentYieldSum(); got != 5 {
		t.Errorf("RecentYieldSum = %d, want 5 (oldest entry evicted)", got)
	}
}

func TestKeywordUnusedFor(t *testing.T) {
	k := NewKeyword("orthodontiste", 1)
	if !k.UnusedFor(10, 4) {
		t.Error("never-used keyword should count as stale")
	}
	k.LastUsedCycle = 8
	if k.UnusedFor(10, 4) {
		t.Error("used 2 cycles ago should not be stale for span 4")
	}
	if !k.UnusedFor(12, 4) {
		t.Error("used 4 cycles ago should be stale for span 4")
	}
}
