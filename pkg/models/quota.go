package models

import "time"

// QuotaDateLayout is the UTC day key used for quota records.
const QuotaDateLayout = "2006-01-02"

// DailyQuota tracks acceptance against the rolling daily cap. The in-memory
// value is a cache: the durable accepted count is the source of truth and the
// keeper reconciles against it at the first classification of each UTC day.
type DailyQuota struct {
	Date             string // UTC day in QuotaDateLayout form
	Accepted         int    // accepted items today, monotonically non-decreasing
	RejectedIntent   int    // rejected for intent/score reasons today
	RejectedLocation int    // rejected for location today
	Cap              int    // maximum accepted items per UTC day
}

// QuotaDate formats a time as the UTC day key.
func QuotaDate(t time.Time) string {
	return t.UTC().Format(QuotaDateLayout)
}

// Reached reports whether the day's cap has been consumed.
func (q *DailyQuota) Reached() bool {
	return q.Cap > 0 && q.Accepted >= q.Cap
}

// Remaining returns how many acceptances are left today, never negative.
func (q *DailyQuota) Remaining() int {
	if q.Cap <= 0 {
		return 0
	}
	if left := q.Cap - q.Accepted; left > 0 {
		return left
	}
	return 0
}
