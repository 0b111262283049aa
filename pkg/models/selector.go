package models

import "time"

// ElementKind names one logical page element the fetcher needs to locate.
type ElementKind string

const (
	ElementPost       ElementKind = "post"        // one post container in the result feed
	ElementAuthor     ElementKind = "author"      // author label inside a post
	ElementTimestamp  ElementKind = "timestamp"   // declared post timestamp
	ElementPermalink  ElementKind = "permalink"   // canonical link to the post
	ElementBody       ElementKind = "body"        // post text body
	ElementExpand     ElementKind = "expand"      // the "see more" control that unfolds truncated text
	ElementRestricted ElementKind = "restricted"  // restriction / rate-limit interstitial
	ElementCheckpoint ElementKind = "checkpoint"  // authentication checkpoint page marker
)

// SelectorState qualifies the health of one element's extraction.
type SelectorState int

const (
	// SelectorActive means the preferred strategy works
	SelectorActive SelectorState = iota
	// SelectorDegraded means the preferred strategy keeps failing and a fallback leads
	SelectorDegraded
	// SelectorFailed means every known strategy failed within one cycle
	SelectorFailed
)

func (s SelectorState) String() string {
	switch s {
	case SelectorActive:
		return "active"
	case SelectorDegraded:
		return "degraded"
	case SelectorFailed:
		return "failed"
	}
	return "unknown"
}

// Strategy is one way of locating an element, with its live statistics.
type Strategy struct {
	ID               string        // stable identifier, also the persistence key
	Expression       string        // CSS selector or locator expression handed to the browser driver
	Priority         int           // declared order, lower is preferred
	State            SelectorState // drives resolve ordering ahead of success rate
	Attempts         uint64
	Successes        uint64
	ConsecutiveFails int       // failures since the last success
	LastSuccessAt    time.Time // zero when the strategy never succeeded
}

// SuccessRate is successes/attempts bounded to [0,1]. A strategy that was
// never tried rates 0.
func (s *Strategy) SuccessRate() float64 {
	if s.Attempts == 0 {
		return 0
	}
	rate := float64(s.Successes) / float64(s.Attempts)
	if rate > 1 {
		return 1
	}
	return rate
}

// SelectorProfile is the registry record for one logical element.
type SelectorProfile struct {
	Element    ElementKind
	State      SelectorState
	Strategies []*Strategy
}

// SelectorHealth is the compact per-element view exposed on the status
// surface.
type SelectorHealth struct {
	Element     ElementKind `json:"element"`
	State       string      `json:"state"`
	Leading     string      `json:"leading_strategy"`
	SuccessRate float64     `json:"success_rate"`
}
