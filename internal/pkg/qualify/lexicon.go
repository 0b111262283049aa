package qualify

import (
	_ "embed"
	"fmt"
	"regexp"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

//go:embed lexicon.yaml
var defaultLexicon []byte

// WeightedTerm is one scoring entry: a literal term and the evidence weight
// it contributes when matched.
type WeightedTerm struct {
	Term   string  `yaml:"term"`
	Weight float64 `yaml:"weight"`
}

// LocationMarker is a place reference with a strength used to arbitrate
// foreign against domestic evidence.
type LocationMarker struct {
	Term     string `yaml:"term"`
	Strength int    `yaml:"strength"`
}

// IntentPattern is a compiled recruitment phrasing. Patterns run against
// folded text, so they must be written lowercase and accent free.
type IntentPattern struct {
	Pattern string  `yaml:"pattern"`
	Weight  float64 `yaml:"weight"`

	re *regexp.Regexp
}

// Lexicon is the full matching vocabulary of the qualification pipeline.
// The zero value is unusable: always obtain one through Load.
type Lexicon struct {
	DomainTerms      []WeightedTerm      `yaml:"domain-terms"`
	IntentTerms      []WeightedTerm      `yaml:"intent-terms"`
	IntentPatterns   []IntentPattern     `yaml:"intent-patterns"`
	ForeignMarkers   []LocationMarker    `yaml:"foreign-markers"`
	DomesticMarkers  []LocationMarker    `yaml:"domestic-markers"`
	AgencyMarkers    []string            `yaml:"agency-markers"`
	JobBoardHosts    []string            `yaml:"job-board-hosts"`
	CandidateMarkers []string            `yaml:"candidate-markers"`
	PromoMarkers     []string            `yaml:"promo-markers"`
	ContractTerms    map[string][]string `yaml:"contract-terms"`
	Stopwords        []string            `yaml:"stopwords"`

	stopwords mapset.Set[string]
}

// Load reads a lexicon from path on fs, falling back to the embedded
// defaults when path is empty. Terms arrive written in natural French and
// are folded here, once, so matching never folds twice.
func Load(fs afero.Fs, path string) (*Lexicon, error) {
	raw := defaultLexicon
	if path != "" {
		b, err := afero.ReadFile(fs, path)
		if err != nil {
			return nil, fmt.Errorf("qualify: reading lexicon %s: %w", path, err)
		}
		raw = b
	}

	lex := new(Lexicon)
	if err := yaml.Unmarshal(raw, lex); err != nil {
		return nil, fmt.Errorf("qualify: parsing lexicon: %w", err)
	}

	if err := lex.prepare(); err != nil {
		return nil, err
	}

	return lex, nil
}

func (l *Lexicon) prepare() error {
	if len(l.DomainTerms) == 0 || len(l.IntentTerms) == 0 {
		return ErrEmptyLexicon
	}

	for i := range l.DomainTerms {
		l.DomainTerms[i].Term = Fold(l.DomainTerms[i].Term)
	}
	for i := range l.IntentTerms {
		l.IntentTerms[i].Term = Fold(l.IntentTerms[i].Term)
	}
	for i := range l.ForeignMarkers {
		l.ForeignMarkers[i].Term = Fold(l.ForeignMarkers[i].Term)
	}
	for i := range l.DomesticMarkers {
		l.DomesticMarkers[i].Term = Fold(l.DomesticMarkers[i].Term)
	}

	foldSlice(l.AgencyMarkers)
	foldSlice(l.CandidateMarkers)
	foldSlice(l.PromoMarkers)
	for _, terms := range l.ContractTerms {
		foldSlice(terms)
	}

	for i := range l.IntentPatterns {
		re, err := regexp.Compile(l.IntentPatterns[i].Pattern)
		if err != nil {
			return fmt.Errorf("%w: %q: %v", ErrBadPattern, l.IntentPatterns[i].Pattern, err)
		}
		l.IntentPatterns[i].re = re
	}

	l.stopwords = mapset.NewSet[string]()
	for _, w := range l.Stopwords {
		l.stopwords.Add(Fold(w))
	}

	return nil
}

func foldSlice(terms []string) {
	for i := range terms {
		terms[i] = Fold(terms[i])
	}
}
