package qualify

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Fold lowers s, strips diacritics and collapses whitespace so lexicon
// matching is insensitive to accents and typography. Applied once per item
// and to every lexicon entry at load time.
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}

	out = strings.ReplaceAll(out, "’", "'")

	return strings.Join(strings.Fields(strings.ToLower(out)), " ")
}

// tokenize splits folded text into letter/digit runs.
func tokenize(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}

// matchTerm reports whether term occurs in text on word boundaries. Both
// inputs must already be folded.
func matchTerm(text, term string) bool {
	if term == "" {
		return false
	}

	for i := 0; ; {
		j := strings.Index(text[i:], term)
		if j < 0 {
			return false
		}

		start := i + j
		end := start + len(term)
		if boundaryBefore(text, start) && boundaryAfter(text, end) {
			return true
		}

		i = start + 1
	}
}

func boundaryBefore(s string, idx int) bool {
	if idx <= 0 {
		return true
	}

	r, _ := utf8.DecodeLastRuneInString(s[:idx])

	return !unicode.IsLetter(r) && !unicode.IsNumber(r)
}

func boundaryAfter(s string, idx int) bool {
	if idx >= len(s) {
		return true
	}

	r, _ := utf8.DecodeRuneInString(s[idx:])

	return !unicode.IsLetter(r) && !unicode.IsNumber(r)
}
