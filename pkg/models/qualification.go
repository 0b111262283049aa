package models

// IntentCategory is the communicative intent the qualification pipeline
// assigns to a post. Only IntentSeekingCandidate is acceptable.
type IntentCategory int

const (
	// IntentSeekingCandidate is an employer looking for staff
	IntentSeekingCandidate IntentCategory = iota
	// IntentCandidateAvailable is a person offering their own services
	IntentCandidateAvailable
	// IntentPromotional is an ad for a product, training or service
	IntentPromotional
	// IntentInformational is news, discussion or general chatter
	IntentInformational
	// IntentOther is everything that fits no category above
	IntentOther
)

func (c IntentCategory) String() string {
	switch c {
	case IntentSeekingCandidate:
		return "seeking_candidate"
	case IntentCandidateAvailable:
		return "candidate_available"
	case IntentPromotional:
		return "promotional"
	case IntentInformational:
		return "informational"
	}
	return "other"
}

// RejectionReason is the single machine-readable code attached to every
// rejected item, for auditability.
type RejectionReason string

const (
	ReasonNone            RejectionReason = ""
	ReasonLanguage        RejectionReason = "language"
	ReasonForeignLocation RejectionReason = "foreign_location"
	ReasonContractType    RejectionReason = "contract_type"
	ReasonAuthorCategory  RejectionReason = "author_category"
	ReasonLowDomainScore  RejectionReason = "low_domain_score"
	ReasonLowIntentScore  RejectionReason = "low_intent_score"
	ReasonIntentCategory  RejectionReason = "intent_category"
	ReasonQuotaReached    RejectionReason = "quota_reached"
)

// Scores carries the three qualification verdict axes.
type Scores struct {
	Domain     float64 `json:"domain"`      // relevance to the professional domain
	Intent     float64 `json:"intent"`      // strength of the recruitment signal
	LocationOK bool    `json:"location_ok"` // no unrebutted foreign-location evidence
}

// QualificationResult is the pure outcome of classifying one CandidateItem
// against the current configuration. It is not persisted, only accepted
// items are.
type QualificationResult struct {
	Accepted     bool
	Scores       Scores
	Category     IntentCategory
	Reason       RejectionReason // empty when accepted
	MatchedTerms []string        // literal lexicon terms that triggered the decision
}
