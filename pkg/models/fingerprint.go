package models

import (
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/asaskevich/govalidator"
	"github.com/zeebo/xxh3"
)

// FingerprintVersion identifies the fingerprint computation. Two runs of the
// process MUST produce the same fingerprint for the same logical post, so any
// change to the computation below requires bumping this constant and running a
// migration on the durable fingerprint set, never a silent change.
const FingerprintVersion = 1

// Fingerprint is the derived identity of a CandidateItem, used to detect
// repeat content across cycles and across runs.
type Fingerprint string

// trackingParams are query parameters that vary between views of the same
// post and must not influence the fingerprint.
var trackingParams = map[string]bool{
	"utm_source":   true,
	"utm_medium":   true,
	"utm_campaign": true,
	"utm_term":     true,
	"utm_content":  true,
	"fbclid":       true,
	"igshid":       true,
	"mibextid":     true,
	"rdid":         true,
	"ref":          true,
	"refsrc":       true,
}

// FingerprintOf derives the identity of an item with a priority chain:
// canonical permalink when present, else author + declared timestamp, else
// author + content hash. Items with equal fingerprints are the same logical
// post regardless of which cycle extracted them.
func FingerprintOf(item *CandidateItem) Fingerprint {
	if canonical := CanonicalPermalink(item.Permalink); canonical != "" {
		return Fingerprint("pl:" + canonical)
	}

	author := NormalizeAuthor(item.Author)
	if !item.DeclaredAt.IsZero() {
		return Fingerprint("at:" + author + "|" + strconv.FormatInt(item.DeclaredAt.UTC().Unix(), 10))
	}

	return Fingerprint("ch:" + author + "|" + hashText(item.Text))
}

// CanonicalPermalink normalizes a permalink so that equivalent links to the
// same post map to one string: lowercased scheme and host, fragment and
// tracking parameters removed, remaining query sorted, trailing slash
// dropped. Returns "" when the input is empty or not a valid absolute URL.
func CanonicalPermalink(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" || !govalidator.IsURL(raw) {
		return ""
	}

	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return ""
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""

	if u.RawQuery != "" {
		values := u.Query()
		for param := range values {
			if trackingParams[strings.ToLower(param)] {
				values.Del(param)
			}
		}
		keys := make([]string, 0, len(values))
		for k := range values {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		var sb strings.Builder
		for _, k := range keys {
			for _, v := range values[k] {
				if sb.Len() > 0 {
					sb.WriteByte('&')
				}
				sb.WriteString(url.QueryEscape(k))
				sb.WriteByte('=')
				sb.WriteString(url.QueryEscape(v))
			}
		}
		u.RawQuery = sb.String()
	}

	u.Path = strings.TrimSuffix(u.Path, "/")

	return u.String()
}

// NormalizeAuthor folds an author label so display variations (casing,
// doubled spaces) do not split one author into several identities.
func NormalizeAuthor(author string) string {
	return strings.Join(strings.Fields(strings.ToLower(author)), " ")
}

func hashText(text string) string {
	folded := strings.Join(strings.Fields(strings.ToLower(text)), " ")
	return strconv.FormatUint(xxh3.HashString(folded), 10)
}
