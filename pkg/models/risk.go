package models

import "time"

// RiskSignal is one observation fed to the risk ladder.
type RiskSignal int

const (
	// SignalCleanCycle is a cycle that completed without any suspect outcome
	SignalCleanCycle RiskSignal = iota
	// SignalEmptyResult is a fetch that returned no items where items were expected
	SignalEmptyResult
	// SignalAuthSuspect is a page state suggesting the session is challenged
	SignalAuthSuspect
	// SignalRestriction is an explicit restriction or rate-limit interstitial
	SignalRestriction
)

func (s RiskSignal) String() string {
	switch s {
	case SignalCleanCycle:
		return "clean_cycle"
	case SignalEmptyResult:
		return "empty_result"
	case SignalAuthSuspect:
		return "auth_suspect"
	case SignalRestriction:
		return "restriction"
	}
	return "unknown"
}

// RiskState is the persisted risk posture. A single row survives restarts so
// a cooldown cannot be escaped by bouncing the process.
type RiskState struct {
	Mode            ProgressiveMode
	CooldownUntil   time.Time // zero when no cooldown is active
	AuthSuspect     int       // consecutive auth-challenge observations, saturating
	EmptyResults    int       // consecutive empty-result observations, saturating
	CleanCycles     int       // consecutive restriction-free cycles with at least one accept
	LastRestriction time.Time // zero when never restricted
	UpdatedAt       time.Time
}

// InCooldown reports whether the cooldown is still running at now.
func (r *RiskState) InCooldown(now time.Time) bool {
	return !r.CooldownUntil.IsZero() && now.Before(r.CooldownUntil)
}
