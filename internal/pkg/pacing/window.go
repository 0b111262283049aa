package pacing

import "time"

// ActiveWindow reports whether now falls inside the configured active hours
// in the configured zone. When outside, the second return value is the next
// window start, so the caller sleeps instead of failing. Windows may wrap
// midnight (start 21, end 6).
func (p *Pacer) ActiveWindow(now time.Time) (bool, time.Time) {
	local := now.In(p.loc)
	hour := local.Hour()
	start, end := p.cfg.ActiveHoursStart, p.cfg.ActiveHoursEnd

	var within bool
	if start < end {
		within = hour >= start && hour < end
	} else {
		within = hour >= start || hour < end
	}
	if within {
		return true, time.Time{}
	}

	next := time.Date(local.Year(), local.Month(), local.Day(), start, 0, 0, 0, p.loc)
	if !next.After(local) {
		next = next.AddDate(0, 0, 1)
	}
	return false, next
}
