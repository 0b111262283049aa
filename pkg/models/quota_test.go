package models

import (
	"testing"
	"time"
)

func TestQuotaDate(t *testing.T) {
	// 00:30 in Paris on March 15 is still March 14 in UTC, and quota days
	// are UTC days.
	paris, err := time.LoadLocation("Europe/Paris")
	if err != nil {
		t.Fatal(err)
	}
	late := time.Date(2026, 3, 15, 0, 30, 0, 0, paris)
	if got := QuotaDate(late); got != "2026-03-14" {
		t.Errorf("QuotaDate = %q, want 2026-03-14", got)
	}
}

func TestDailyQuota(t *testing.T) {
	q := &DailyQuota{Date: "2026-03-14", Cap: 3}

	if q.Reached() {
		t.Error("fresh quota should not be reached")
	}
	if got := q.Remaining(); got != 3 {
		t.Errorf("Remaining = %d, want 3", got)
	}

	q.Accepted = 3
	if !q.Reached() {
		t.Error("quota at cap should be reached")
	}
	if got := q.Remaining(); got != 0 {
		t.Errorf("Remaining = %d, want 0", got)
	}

	q.Accepted = 5
	if got := q.Remaining(); got != 0 {
		t.Errorf("Remaining must not go negative, got %d", got)
	}

	// Cap 0 disables the quota entirely.
	unlimited := &DailyQuota{Date: "2026-03-14", Cap: 0, Accepted: 1000}
	if unlimited.Reached() {
		t.Error("cap 0 should never report reached")
	}
}
