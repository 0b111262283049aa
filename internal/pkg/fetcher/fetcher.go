// Package fetcher is the seam between the cycle orchestrator and the
// browser collaborator that actually visits the platform. The core only
// knows this interface; the playwright implementation is wired in at
// startup, and tests substitute a fake.
package fetcher

import (
	"context"
	"time"

	"github.com/sourcerie/affut/pkg/models"
)

// Pacer is the slice of pacing the fetcher drives between browser
// actions. Sleeping happens inside the fetcher, bounded by the call's
// context.
type Pacer interface {
	NavDelay() time.Duration
	ScrollDelay() time.Duration
	RecordAction()
}

// Request carries everything one keyword visit needs.
type Request struct {
	Keyword  models.Keyword
	MaxItems int // per-mode extraction bound

	// Plans holds the resolved strategy order per element, best first.
	Plans map[models.ElementKind][]models.Strategy

	Pacer Pacer
}

// Outcome reports one strategy attempt so the selector registry can keep
// score.
type Outcome struct {
	Element    models.ElementKind
	StrategyID string
	Success    bool
}

// Result is what one keyword visit produced. It can come back non-nil
// alongside ErrRestricted, carrying whatever was gathered before the
// restriction appeared.
type Result struct {
	Items          []*models.CandidateItem
	Outcomes       []Outcome
	Restricted     bool   // restriction interstitial or banner was seen
	AuthSuspect    bool   // authentication checkpoint was seen
	UnknownAuthors int    // items extracted without a usable author label
	ScreenshotPath string // capture taken when a restriction was seen, empty otherwise
}

// Fetcher visits the platform for one keyword and extracts raw candidate
// items. Implementations must honor ctx cancellation promptly.
type Fetcher interface {
	FetchCandidates(ctx context.Context, req *Request) (*Result, error)
}
