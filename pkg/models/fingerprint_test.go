package models

import (
	"strings"
	"testing"
	"time"
)

func TestCanonicalPermalink(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{
			name: "strips tracking params and fragment",
			raw:  "https://Example.com/posts/123?utm_source=share&utm_medium=web&ref=feed#comments",
			want: "https://example.com/posts/123",
		},
		{
			name: "keeps meaningful params sorted",
			raw:  "https://example.com/p?b=2&a=1",
			want: "https://example.com/p?a=1&b=2",
		},
		{
			name: "trailing slash trimmed",
			raw:  "https://example.com/posts/123/",
			want: "https://example.com/posts/123",
		},
		{
			name: "mixed case host lowered, path preserved",
			raw:  "HTTPS://EXAMPLE.com/Posts/ABC",
			want: "https://example.com/Posts/ABC",
		},
		{
			name: "fbclid removed",
			raw:  "https://example.com/p/9?fbclid=IwAR12345",
			want: "https://example.com/p/9",
		},
		{
			name: "not a URL",
			raw:  "::::not-a-url",
			want: "",
		},
		{
			name: "empty",
			raw:  "",
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CanonicalPermalink(tt.raw); got != tt.want {
				t.Errorf("CanonicalPermalink(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}

func TestFingerprintPermalinkStability(t *testing.T) {
	// Two sightings of the same post must collapse to one fingerprint even
	// when author casing and tracking params differ between captures.
	a := &CandidateItem{
		Author:     "Cabinet Dentaire Martin",
		Permalink:  "https://example.com/groups/42/posts/777?utm_source=share",
		DeclaredAt: time.Date(2026, 3, 14, 10, 30, 0, 0, time.UTC),
		Text:       "Recherche assistante dentaire CDI Paris 15e",
	}
	b := &CandidateItem{
		Author:     "cabinet dentaire MARTIN",
		Permalink:  "https://EXAMPLE.com/groups/42/posts/777/",
		DeclaredAt: time.Date(2026, 3, 14, 10, 31, 0, 0, time.UTC),
		Text:       "Recherche assistante dentaire CDI Paris 15e (urgent)",
	}

	fa, fb := FingerprintOf(a), FingerprintOf(b)
	if fa == "" || fb == "" {
		t.Fatalf("expected non-empty fingerprints, got %q and %q", fa, fb)
	}
	if fa != fb {
		t.Errorf("same permalink should fingerprint equal: %q != %q", fa, fb)
	}
	if !strings.HasPrefix(string(fa), "pl:") {
		t.Errorf("permalink fingerprint should carry pl: prefix, got %q", fa)
	}
}

func TestFingerprintPriorityChain(t *testing.T) {
	declared := time.Date(2026, 3, 14, 10, 30, 0, 0, time.FixedZone("CET", 3600))

	t.Run("author and timestamp without permalink", func(t *testing.T) {
		item := &CandidateItem{
			Author:     "Dr. Dupont",
			DeclaredAt: declared,
			Text:       "On recrute !",
		}
		fp := FingerprintOf(item)
		if !strings.HasPrefix(string(fp), "at:") {
			t.Fatalf("expected at: fingerprint, got %q", fp)
		}
		// The timestamp component is UTC so zone representation cannot split
		// one post into two identities.
		utc := &CandidateItem{
			Author:     "dr. dupont",
			DeclaredAt: declared.UTC(),
			Text:       "different text entirely",
		}
		if FingerprintOf(utc) != fp {
			t.Errorf("author+timestamp fingerprint should be zone and case insensitive")
		}
	})

	t.Run("content hash fallback", func(t *testing.T) {
		item := &CandidateItem{
			Author: "Dr. Dupont",
			Text:   "Recherche assistant(e) dentaire qualifié(e)",
		}
		fp := FingerprintOf(item)
		if !strings.HasPrefix(string(fp), "ch:") {
			t.Fatalf("expected ch: fingerprint, got %q", fp)
		}
		// Case and whitespace variance fold away in the content hash.
		folded := &CandidateItem{
			Author: "DR. DUPONT",
			Text:   "  Recherche   assistant(e) dentaire qualifié(e) ",
		}
		if FingerprintOf(folded) != fp {
			t.Errorf("content fingerprint should survive case and spacing changes")
		}
	})

	t.Run("no identity at all", func(t *testing.T) {
		if fp := FingerprintOf(&CandidateItem{}); fp != "" {
			t.Errorf("item without identity should produce empty fingerprint, got %q", fp)
		}
	})

	t.Run("permalink wins over author+timestamp", func(t *testing.T) {
		item := &CandidateItem{
			Author:     "Dr. Dupont",
			DeclaredAt: declared,
			Permalink:  "https://example.com/p/1",
			Text:       "On recrute !",
		}
		if fp := FingerprintOf(item); !strings.HasPrefix(string(fp), "pl:") {
			t.Errorf("permalink should take priority, got %q", fp)
		}
	})
}

func TestNormalizeAuthor(t *testing.T) {
	if got := NormalizeAuthor("  Cabinet   DENTAIRE  Martin "); got != "cabinet dentaire martin" {
		t.Errorf("NormalizeAuthor = %q", got)
	}
}
