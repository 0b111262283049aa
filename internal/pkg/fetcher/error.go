package fetcher

import "errors"

var (
	// ErrTransient marks a navigation or extraction failure worth retrying
	// within the same cycle, a bounded number of times.
	ErrTransient = errors.New("transient fetch failure")

	// ErrRestricted means the platform answered with a restriction page or
	// banner. The cycle stops and the risk governor takes over.
	ErrRestricted = errors.New("platform restriction detected")
)
