package config

import (
	"errors"
	"testing"
	"time"
)

func validConfig() *Config {
	return &Config{
		Keywords:             []string{"assistante dentaire", "secrétaire médicale"},
		KeywordBatchSize:     4,
		ExploreCount:         1,
		ExploreStaleness:     6,
		YieldWindow:          5,
		DailyQuota:           8,
		DomainThreshold:      3.0,
		IntentThreshold:      2.0,
		LanguageRatio:        0.3,
		SafetyFactor:         3.0,
		NavDelayMin:          2 * time.Second,
		NavDelayMax:          6 * time.Second,
		ScrollDelayMin:       800 * time.Millisecond,
		ScrollDelayMax:       3 * time.Second,
		BreakAfterActions:    40,
		BreakMin:             5 * time.Minute,
		BreakMax:             15 * time.Minute,
		ActiveHoursStart:     9,
		ActiveHoursEnd:       21,
		ActiveHoursZone:      "Europe/Paris",
		IntervalFloor:        45 * time.Minute,
		IntervalCeiling:      4 * time.Hour,
		IntervalShrink:       0.8,
		IntervalGrow:         1.5,
		YieldTarget:          3,
		StartMode:            "conservative",
		AuthSuspectThreshold: 2,
		EmptyResultThreshold: 3,
		CooldownMin:          30 * time.Minute,
		CooldownMax:          6 * time.Hour,
		PromotionStreak:      5,
		DedupCacheSize:       2048,
		DedupRetention:       30 * 24 * time.Hour,
		FetchTimeout:         3 * time.Minute,
		PersistTimeout:       10 * time.Second,
	}
}

func TestValidate(t *testing.T) {
	if err := validate(validConfig()); err != nil {
		t.Fatalf("valid config rejected: %s", err)
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{"no keywords", func(c *Config) { c.Keywords = nil }, ErrNoKeywords},
		{"zero batch", func(c *Config) { c.KeywordBatchSize = 0 }, ErrInvalidRange},
		{"explore >= batch", func(c *Config) { c.ExploreCount = 4 }, ErrInvalidRange},
		{"negative quota", func(c *Config) { c.DailyQuota = -1 }, ErrInvalidRange},
		{"zero domain threshold", func(c *Config) { c.DomainThreshold = 0 }, ErrInvalidThreshold},
		{"language ratio above 1", func(c *Config) { c.LanguageRatio = 1.2 }, ErrInvalidThreshold},
		{"safety factor below floor", func(c *Config) { c.SafetyFactor = 0.5 }, ErrInvalidRange},
		{"inverted nav range", func(c *Config) { c.NavDelayMax = time.Second; c.NavDelayMin = 2 * time.Second }, ErrInvalidRange},
		{"inverted cooldown range", func(c *Config) { c.CooldownMax = time.Minute }, ErrInvalidRange},
		{"hour out of bounds", func(c *Config) { c.ActiveHoursStart = 24 }, ErrInvalidActiveWindow},
		{"empty window", func(c *Config) { c.ActiveHoursEnd = c.ActiveHoursStart }, ErrInvalidActiveWindow},
		{"bad zone", func(c *Config) { c.ActiveHoursZone = "Mars/Olympus" }, ErrInvalidActiveWindow},
		{"shrink not shrinking", func(c *Config) { c.IntervalShrink = 1.0 }, ErrInvalidRange},
		{"grow not growing", func(c *Config) { c.IntervalGrow = 1.0 }, ErrInvalidRange},
		{"zero promotion streak", func(c *Config) { c.PromotionStreak = 0 }, ErrInvalidRange},
		{"zero dedup cache", func(c *Config) { c.DedupCacheSize = 0 }, ErrInvalidRange},
		{"zero fetch timeout", func(c *Config) { c.FetchTimeout = 0 }, ErrInvalidRange},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validConfig()
			tt.mutate(c)
			err := validate(c)
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestSetFlags(t *testing.T) {
	initRuntime(validConfig())

	before := Runtime()

	// JSON numbers arrive as float64, make sure coercion holds
	after, err := SetFlags(map[string]any{
		"daily_quota":      float64(12),
		"intent_threshold": "2.5",
		"paused":           true,
	})
	if err != nil {
		t.Fatalf("SetFlags: %s", err)
	}
	if after.DailyQuota != 12 || after.IntentThreshold != 2.5 || !after.Paused {
		t.Errorf("flags not applied: %+v", after)
	}

	// The previous snapshot must be untouched (copy-on-write)
	if before.DailyQuota != 8 || before.Paused {
		t.Errorf("old snapshot mutated: %+v", before)
	}
	if Runtime() != after {
		t.Error("Runtime() should return the new snapshot")
	}
}

func TestSetFlagsRejectsAtomically(t *testing.T) {
	initRuntime(validConfig())

	_, err := SetFlags(map[string]any{
		"daily_quota": 20,
		"bogus_flag":  1,
	})
	if !errors.Is(err, ErrUnknownFlag) {
		t.Fatalf("expected ErrUnknownFlag, got %v", err)
	}
	// Nothing from the rejected batch may leak through
	if Runtime().DailyQuota != 8 {
		t.Errorf("rejected batch partially applied: %+v", Runtime())
	}

	if _, err := SetFlags(map[string]any{"safety_factor": 0.2}); !errors.Is(err, ErrInvalidRange) {
		t.Errorf("expected ErrInvalidRange for sub-floor safety factor, got %v", err)
	}
}
