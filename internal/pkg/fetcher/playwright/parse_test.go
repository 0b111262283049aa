package playwright

import (
	"testing"
	"time"
)

func TestParseDeclaredAt(t *testing.T) {
	now := time.Date(2026, time.June, 15, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		label string
		want  time.Time
	}{
		{"just now", "À l'instant", now},
		{"maintenant", "maintenant", now},
		{"minutes ago", "il y a 5 min", now.Add(-5 * time.Minute)},
		{"hours ago bare", "2 h", now.Add(-2 * time.Hour)},
		{"days ago capitalized", "Il y a 3 j", now.AddDate(0, 0, -3)},
		{"weeks ago", "1 sem", now.AddDate(0, 0, -7)},
		{"yesterday with colon clock", "Hier à 21:30", time.Date(2026, time.June, 14, 21, 30, 0, 0, time.UTC)},
		{"yesterday with h clock", "hier à 21 h 30", time.Date(2026, time.June, 14, 21, 30, 0, 0, time.UTC)},
		{"bare clock is today", "15 h 04", time.Date(2026, time.June, 15, 15, 4, 0, 0, time.UTC)},
		{"today with clock", "Aujourd'hui à 09 h 15", time.Date(2026, time.June, 15, 9, 15, 0, 0, time.UTC)},
		{"day month this year", "12 juin", time.Date(2026, time.June, 12, 0, 0, 0, 0, time.UTC)},
		{"future day month rolls back", "25 décembre", time.Date(2025, time.December, 25, 0, 0, 0, 0, time.UTC)},
		{"explicit year", "3 mars 2024", time.Date(2024, time.March, 3, 0, 0, 0, 0, time.UTC)},
		{"first of month", "1er août", time.Date(2025, time.August, 1, 0, 0, 0, 0, time.UTC)},
		{"unknown label", "contenu sponsorisé", time.Time{}},
		{"empty label", "", time.Time{}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := parseDeclaredAt(tc.label, now)
			if !got.Equal(tc.want) {
				t.Errorf("parseDeclaredAt(%q) = %v, want %v", tc.label, got, tc.want)
			}
		})
	}
}

func TestCanonicalPermalink(t *testing.T) {
	base := "https://www.platform.example"

	tests := []struct {
		name string
		href string
		want string
	}{
		{
			"relative with tracking params",
			"/groups/123/posts/456/?__cft__=AZXb12&__tn__=%2CO#comments",
			"https://www.platform.example/groups/123/posts/456",
		},
		{
			"identity params survive",
			"https://www.platform.example/permalink.php?story_fbid=789&id=42&__tn__=r",
			"https://www.platform.example/permalink.php?id=42&story_fbid=789",
		},
		{
			"absolute already clean",
			"https://www.platform.example/user/posts/99",
			"https://www.platform.example/user/posts/99",
		},
		{"empty href", "", ""},
		{
			"trailing slash dropped",
			"/recruteur.dentaire/posts/5551212/",
			"https://www.platform.example/recruteur.dentaire/posts/5551212",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := canonicalPermalink(base, tc.href); got != tc.want {
				t.Errorf("canonicalPermalink(%q) = %q, want %q", tc.href, got, tc.want)
			}
		})
	}
}

func TestCanonicalPermalinkSamePostTwoRenders(t *testing.T) {
	base := "https://www.platform.example"

	a := canonicalPermalink(base, "/cabinet.sourire/posts/10203/?__cft__=AAA&ref=search")
	b := canonicalPermalink(base, "/cabinet.sourire/posts/10203/?__cft__=BBB&ref=feed#reactions")

	if a != b {
		t.Errorf("two renders of the same post canonicalized differently: %q vs %q", a, b)
	}
}

func TestBuildSearchURL(t *testing.T) {
	got := buildSearchURL("https://www.platform.example/", "assistante dentaire")
	want := "https://www.platform.example/search/posts/?q=assistante+dentaire&filters=recent"

	if got != want {
		t.Errorf("buildSearchURL = %q, want %q", got, want)
	}
}
