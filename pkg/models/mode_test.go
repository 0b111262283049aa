package models

import "testing"

func TestModeAdjacency(t *testing.T) {
	if got := ModeConservative.Demote(); got != ModeConservative {
		t.Errorf("demoting conservative should clamp, got %s", got)
	}
	if got := ModeAggressive.Promote(); got != ModeAggressive {
		t.Errorf("promoting aggressive should clamp, got %s", got)
	}
	if got := ModeAggressive.Demote(); got != ModeModerate {
		t.Errorf("aggressive should demote to moderate, got %s", got)
	}
	if got := ModeConservative.Promote(); got != ModeModerate {
		t.Errorf("conservative should promote to moderate, got %s", got)
	}
	// No jump of two steps in either direction.
	if got := ModeAggressive.Demote().Demote(); got != ModeConservative {
		t.Errorf("two demotions should land on conservative, got %s", got)
	}
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		in   string
		want ProgressiveMode
	}{
		{"conservative", ModeConservative},
		{"moderate", ModeModerate},
		{"AGGRESSIVE", ModeAggressive},
		{"bogus", ModeConservative},
		{"", ModeConservative},
	}
	for _, tt := range tests {
		if got := ParseMode(tt.in); got != tt.want {
			t.Errorf("ParseMode(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}
