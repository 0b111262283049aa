package playwright

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// buildSearchURL is the recent-posts search for one keyword.
func buildSearchURL(base, term string) string {
	return strings.TrimRight(base, "/") + "/search/posts/?q=" + url.QueryEscape(term) + "&filters=recent"
}

// identityParams are the query parameters that name a post rather than a
// render. Everything else is per-visit tracking noise.
var identityParams = []string{"story_fbid", "id"}

// canonicalPermalink absolutizes href against the platform origin and
// strips the tracking parameters the platform appends on every render,
// which would otherwise make one post look like many.
func canonicalPermalink(base, href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}

	if strings.HasPrefix(href, "/") {
		href = strings.TrimRight(base, "/") + href
	}

	u, err := url.Parse(href)
	if err != nil {
		return href
	}

	q := u.Query()
	kept := url.Values{}
	for _, k := range identityParams {
		if v := q.Get(k); v != "" {
			kept.Set(k, v)
		}
	}
	u.RawQuery = kept.Encode()
	u.Fragment = ""

	return strings.TrimRight(u.String(), "/")
}

var (
	relativeRe   = regexp.MustCompile(`^(?:il y a\s*)?(\d+)\s*(min|h|j|sem)\b`)
	clockRe      = regexp.MustCompile(`(\d{1,2})\s*[h:]\s*(\d{2})`)
	todayClockRe = regexp.MustCompile(`^(\d{1,2})\s*[h:]\s*(\d{2})$`)
	dayMonthRe   = regexp.MustCompile(`^(\d{1,2})(?:er)?\s+([a-zéèêûôî]+)(?:\s+(\d{4}))?`)
)

var frenchMonths = map[string]time.Month{
	"janvier":   time.January,
	"février":   time.February,
	"mars":      time.March,
	"avril":     time.April,
	"mai":       time.May,
	"juin":      time.June,
	"juillet":   time.July,
	"août":      time.August,
	"septembre": time.September,
	"octobre":   time.October,
	"novembre":  time.November,
	"décembre":  time.December,
}

// parseDeclaredAt turns the platform's French display timestamp into an
// absolute time relative to now. Zero means the label was not understood,
// downstream treats that as an unknown publication time.
func parseDeclaredAt(label string, now time.Time) time.Time {
	label = strings.ToLower(strings.TrimSpace(label))
	if label == "" {
		return time.Time{}
	}

	if strings.Contains(label, "instant") || label == "maintenant" {
		return now
	}

	if rest, ok := strings.CutPrefix(label, "hier"); ok {
		yesterday := now.AddDate(0, 0, -1)
		if m := clockRe.FindStringSubmatch(rest); m != nil {
			return atClock(yesterday, m)
		}
		return yesterday
	}

	if rest, ok := strings.CutPrefix(label, "aujourd'hui"); ok {
		if m := clockRe.FindStringSubmatch(rest); m != nil {
			return atClock(now, m)
		}
		return now
	}

	// A bare "15 h 04" is today's clock, not a 15 hour offset, so it has
	// to be checked before the relative form.
	if m := todayClockRe.FindStringSubmatch(label); m != nil {
		return atClock(now, m)
	}

	if m := relativeRe.FindStringSubmatch(label); m != nil {
		n, _ := strconv.Atoi(m[1])
		switch m[2] {
		case "min":
			return now.Add(-time.Duration(n) * time.Minute)
		case "h":
			return now.Add(-time.Duration(n) * time.Hour)
		case "j":
			return now.AddDate(0, 0, -n)
		case "sem":
			return now.AddDate(0, 0, -7*n)
		}
	}

	if m := dayMonthRe.FindStringSubmatch(label); m != nil {
		month, ok := frenchMonths[m[2]]
		if !ok {
			return time.Time{}
		}
		day, _ := strconv.Atoi(m[1])

		year := now.Year()
		if m[3] != "" {
			year, _ = strconv.Atoi(m[3])
		}

		ts := time.Date(year, month, day, 0, 0, 0, 0, now.Location())
		// A yearless date in the future can only mean last year.
		if m[3] == "" && ts.After(now) {
			ts = ts.AddDate(-1, 0, 0)
		}
		return ts
	}

	return time.Time{}
}

func atClock(day time.Time, m []string) time.Time {
	hour, _ := strconv.Atoi(m[1])
	minute, _ := strconv.Atoi(m[2])
	return time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, day.Location())
}
