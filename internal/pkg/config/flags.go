package config

import (
	"fmt"
	"sync/atomic"

	"github.com/spf13/cast"
)

// RuntimeFlags is the small subset of configuration an operator may adjust
// while the agent runs. Snapshots are immutable: readers take one snapshot
// per cycle and never observe a half-applied change.
type RuntimeFlags struct {
	DailyQuota      int     `json:"daily_quota"`
	DomainThreshold float64 `json:"domain_threshold"`
	IntentThreshold float64 `json:"intent_threshold"`
	SafetyFactor    float64 `json:"safety_factor"`
	Paused          bool    `json:"paused"`
}

var runtime atomic.Pointer[RuntimeFlags]

func initRuntime(c *Config) {
	runtime.Store(&RuntimeFlags{
		DailyQuota:      c.DailyQuota,
		DomainThreshold: c.DomainThreshold,
		IntentThreshold: c.IntentThreshold,
		SafetyFactor:    c.SafetyFactor,
		Paused:          c.StartPaused,
	})
}

// Runtime returns the current flags snapshot. Never nil after
// GenerateAgentConfig has run.
func Runtime() *RuntimeFlags {
	return runtime.Load()
}

// SetFlags applies the given flag values copy-on-write. Values arrive
// untyped from the control plane, so they are coerced with cast. Either all
// flags apply or none do.
func SetFlags(values map[string]any) (*RuntimeFlags, error) {
	current := runtime.Load()
	if current == nil {
		return nil, fmt.Errorf("runtime flags not initialized")
	}
	next := *current

	for name, raw := range values {
		switch name {
		case "daily_quota":
			v, err := cast.ToIntE(raw)
			if err != nil || v < 0 {
				return nil, fmt.Errorf("%w: daily_quota: %v", ErrInvalidRange, raw)
			}
			next.DailyQuota = v
		case "domain_threshold":
			v, err := cast.ToFloat64E(raw)
			if err != nil || v <= 0 {
				return nil, fmt.Errorf("%w: domain_threshold: %v", ErrInvalidThreshold, raw)
			}
			next.DomainThreshold = v
		case "intent_threshold":
			v, err := cast.ToFloat64E(raw)
			if err != nil || v <= 0 {
				return nil, fmt.Errorf("%w: intent_threshold: %v", ErrInvalidThreshold, raw)
			}
			next.IntentThreshold = v
		case "safety_factor":
			v, err := cast.ToFloat64E(raw)
			if err != nil || v < 1.0 {
				return nil, fmt.Errorf("%w: safety_factor: %v", ErrInvalidRange, raw)
			}
			next.SafetyFactor = v
		case "paused":
			v, err := cast.ToBoolE(raw)
			if err != nil {
				return nil, fmt.Errorf("%w: paused: %v", ErrInvalidRange, raw)
			}
			next.Paused = v
		default:
			return nil, fmt.Errorf("%w: %s", ErrUnknownFlag, name)
		}
	}

	runtime.Store(&next)
	return &next, nil
}
