// Package qualify decides, for every extracted post, whether it is a
// recruitment post worth keeping: a French dental practice looking for
// staff, in France, with a wanted contract type, under the daily quota.
//
// Classification runs fixed stages that each short-circuit on a definitive
// rejection, so every rejected item carries exactly one reason code plus
// the literal lexicon terms that triggered it.
package qualify

import (
	"net/url"
	"regexp"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"
	"mvdan.cc/xurls/v2"

	"github.com/sourcerie/affut/internal/pkg/config"
	"github.com/sourcerie/affut/pkg/models"
)

// Texts shorter than this are not judged on stopword ratio: there is not
// enough signal, and the scoring stages reject empty evidence anyway.
const minLanguageTokens = 6

// Scorer classifies one candidate item against a lexicon and the current
// runtime flags. Implementations must be pure: same inputs, same result.
type Scorer interface {
	Classify(item *models.CandidateItem, lex *Lexicon, flags *config.RuntimeFlags) models.QualificationResult
}

// RuleScorer is the default engine: weighted lexicon matches plus compiled
// phrasing patterns over folded text.
type RuleScorer struct {
	languageRatio float64
	excluded      map[string]bool
	urlRe         *regexp.Regexp
}

func NewRuleScorer(cfg *config.Config) *RuleScorer {
	excluded := make(map[string]bool, len(cfg.ExcludeContracts))
	for _, category := range cfg.ExcludeContracts {
		excluded[Fold(category)] = true
	}

	return &RuleScorer{
		languageRatio: cfg.LanguageRatio,
		excluded:      excluded,
		urlRe:         xurls.Relaxed(),
	}
}

// Classify runs the full stage pipeline on one item.
func (rs *RuleScorer) Classify(item *models.CandidateItem, lex *Lexicon, flags *config.RuntimeFlags) models.QualificationResult {
	text := Fold(item.Text)
	author := Fold(item.Author)
	matched := mapset.NewThreadUnsafeSet[string]()

	res := models.QualificationResult{Category: models.IntentOther}

	// Stage 1: the post must read as French.
	if !rs.frenchEnough(text, lex) {
		return finish(res, models.ReasonLanguage, models.IntentOther, matched)
	}

	// Stage 2: foreign-location evidence rejects unless strictly stronger
	// domestic evidence is present. Domestic evidence comes from location
	// markers only, never from contract wording.
	foreign := strongestMarker(text, lex.ForeignMarkers, matched)
	domestic := strongestMarker(text, lex.DomesticMarkers, matched)
	if foreign > 0 && domestic <= foreign {
		return finish(res, models.ReasonForeignLocation, models.IntentOther, matched)
	}
	res.Scores.LocationOK = true

	// Stage 3: excluded contract categories.
	if hit := rs.matchContracts(text, lex, matched); hit {
		return finish(res, models.ReasonContractType, models.IntentOther, matched)
	}

	// Stage 4: agencies, intermediaries and job-board reposts.
	if rs.matchAgency(item, text, author, lex, matched) {
		return finish(res, models.ReasonAuthorCategory, models.IntentOther, matched)
	}

	// Stage 5: both scores must clear their threshold independently.
	res.Scores.Domain = scoreTerms(text, lex.DomainTerms, matched)
	if res.Scores.Domain < flags.DomainThreshold {
		return finish(res, models.ReasonLowDomainScore, models.IntentOther, matched)
	}

	res.Scores.Intent = scoreTerms(text, lex.IntentTerms, matched)
	for _, p := range lex.IntentPatterns {
		if hit := p.re.FindString(text); hit != "" {
			res.Scores.Intent += p.Weight
			matched.Add(hit)
		}
	}
	if res.Scores.Intent < flags.IntentThreshold {
		return finish(res, models.ReasonLowIntentScore, models.IntentInformational, matched)
	}

	// Stage 6: strong recruitment phrasing can still be the wrong speaker.
	if matchAny(text, lex.CandidateMarkers, matched) {
		return finish(res, models.ReasonIntentCategory, models.IntentCandidateAvailable, matched)
	}
	if matchAny(text, lex.PromoMarkers, matched) {
		return finish(res, models.ReasonIntentCategory, models.IntentPromotional, matched)
	}

	res.Accepted = true
	res.Category = models.IntentSeekingCandidate
	res.MatchedTerms = mapset.Sorted(matched)

	return res
}

func (rs *RuleScorer) frenchEnough(text string, lex *Lexicon) bool {
	tokens := tokenize(text)
	if len(tokens) < minLanguageTokens {
		return true
	}

	hits := 0
	for _, tok := range tokens {
		if lex.stopwords.Contains(tok) {
			hits++
		}
	}

	return float64(hits)/float64(len(tokens)) >= rs.languageRatio
}

func (rs *RuleScorer) matchContracts(text string, lex *Lexicon, matched mapset.Set[string]) bool {
	hit := false
	for category, terms := range lex.ContractTerms {
		if !rs.excluded[category] {
			continue
		}

		for _, term := range terms {
			if matchTerm(text, term) {
				matched.Add(term)
				hit = true
			}
		}
	}

	return hit
}

func (rs *RuleScorer) matchAgency(item *models.CandidateItem, text, author string, lex *Lexicon, matched mapset.Set[string]) bool {
	hit := false
	for _, marker := range lex.AgencyMarkers {
		if matchTerm(author, marker) || matchTerm(text, marker) {
			matched.Add(marker)
			hit = true
		}
	}

	// A link to a job board marks a repost or an aggregator, not a
	// practice writing its own post.
	for _, raw := range rs.urlRe.FindAllString(item.Text, -1) {
		host := hostOf(raw)
		if host == "" {
			continue
		}

		for _, board := range lex.JobBoardHosts {
			if host == board || strings.HasSuffix(host, "."+board) {
				matched.Add(host)
				hit = true
			}
		}
	}

	return hit
}

func hostOf(raw string) string {
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}

	return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
}

func scoreTerms(text string, terms []WeightedTerm, matched mapset.Set[string]) float64 {
	score := 0.0
	for _, wt := range terms {
		if matchTerm(text, wt.Term) {
			score += wt.Weight
			matched.Add(wt.Term)
		}
	}

	return score
}

func strongestMarker(text string, markers []LocationMarker, matched mapset.Set[string]) int {
	strength := 0
	for _, m := range markers {
		if matchTerm(text, m.Term) {
			matched.Add(m.Term)
			if m.Strength > strength {
				strength = m.Strength
			}
		}
	}

	return strength
}

func matchAny(text string, terms []string, matched mapset.Set[string]) bool {
	hit := false
	for _, term := range terms {
		if matchTerm(text, term) {
			matched.Add(term)
			hit = true
		}
	}

	return hit
}

func finish(res models.QualificationResult, reason models.RejectionReason, cat models.IntentCategory, matched mapset.Set[string]) models.QualificationResult {
	res.Reason = reason
	res.Category = cat
	res.MatchedTerms = mapset.Sorted(matched)

	return res
}
