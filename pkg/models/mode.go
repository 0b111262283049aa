package models

import "strings"

// ProgressiveMode is the aggressiveness tier the agent currently operates
// under. It governs per-cycle limits and delay multipliers. Transitions are
// always to an adjacent tier, one step per update.
type ProgressiveMode int

const (
	// ModeConservative is the slowest tier, used after restrictions or on fresh identities
	ModeConservative ProgressiveMode = iota
	// ModeModerate is the default tier
	ModeModerate
	// ModeAggressive is the fastest tier, only reached after a sustained clean streak
	ModeAggressive
)

func (m ProgressiveMode) String() string {
	switch m {
	case ModeConservative:
		return "conservative"
	case ModeModerate:
		return "moderate"
	case ModeAggressive:
		return "aggressive"
	}
	return "unknown"
}

// ParseMode maps a stored string back to a mode, defaulting to conservative
// for anything unrecognized.
func ParseMode(s string) ProgressiveMode {
	switch strings.ToLower(s) {
	case "moderate":
		return ModeModerate
	case "aggressive":
		return ModeAggressive
	default:
		return ModeConservative
	}
}

// Demote returns the next tier down. Demoting conservative stays conservative.
func (m ProgressiveMode) Demote() ProgressiveMode {
	if m > ModeConservative {
		return m - 1
	}
	return ModeConservative
}

// Promote returns the next tier up. Promoting aggressive stays aggressive.
func (m ProgressiveMode) Promote() ProgressiveMode {
	if m < ModeAggressive {
		return m + 1
	}
	return ModeAggressive
}

// ModeLimits are the per-cycle bounds a tier imposes.
type ModeLimits struct {
	MaxItemsPerKeyword  int     // maximum items extracted for one keyword
	MaxKeywordsPerCycle int     // maximum keywords visited in one cycle
	DelayMultiplier     float64 // multiplier applied on top of the paced delay
}

// LimitsFor returns the bounds for a tier. Conservative moves slowest and
// takes the least, aggressive the opposite.
func LimitsFor(m ProgressiveMode) ModeLimits {
	switch m {
	case ModeAggressive:
		return ModeLimits{MaxItemsPerKeyword: 25, MaxKeywordsPerCycle: 6, DelayMultiplier: 1.0}
	case ModeModerate:
		return ModeLimits{MaxItemsPerKeyword: 15, MaxKeywordsPerCycle: 4, DelayMultiplier: 1.5}
	default:
		return ModeLimits{MaxItemsPerKeyword: 8, MaxKeywordsPerCycle: 2, DelayMultiplier: 2.5}
	}
}
