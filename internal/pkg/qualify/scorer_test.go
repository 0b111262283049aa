package qualify

import (
	"sort"
	"testing"

	"github.com/spf13/afero"

	"github.com/sourcerie/affut/internal/pkg/config"
	"github.com/sourcerie/affut/internal/pkg/utils"
	"github.com/sourcerie/affut/pkg/models"
)

func testScorer(t *testing.T) (*RuleScorer, *Lexicon, *config.RuntimeFlags) {
	t.Helper()

	lex, err := Load(afero.NewMemMapFs(), "")
	if err != nil {
		t.Fatalf("loading embedded lexicon: %v", err)
	}

	cfg := &config.Config{
		LanguageRatio:    0.15,
		ExcludeContracts: []string{"interim", "cdd", "alternance", "apprentissage", "stage"},
	}

	flags := &config.RuntimeFlags{
		DomainThreshold: 3.0,
		IntentThreshold: 2.0,
	}

	return NewRuleScorer(cfg), lex, flags
}

func classify(t *testing.T, text, author string) models.QualificationResult {
	t.Helper()

	rs, lex, flags := testScorer(t)
	item := models.NewCandidateItem("assistante dentaire")
	item.Text = text
	item.Author = author

	return rs.Classify(item, lex, flags)
}

func TestAcceptsSeekingCandidatePost(t *testing.T) {
	res := classify(t,
		"Bonjour, notre cabinet dentaire situé à Lyon recrute une assistante dentaire qualifiée en CDI. "+
			"Poste à pourvoir dès que possible, envoyez votre CV en message privé.",
		"Cabinet Dentaire des Brotteaux")

	if !res.Accepted {
		t.Fatalf("post not accepted: reason=%s matched=%v", res.Reason, res.MatchedTerms)
	}
	if res.Category != models.IntentSeekingCandidate {
		t.Fatalf("category = %s, want seeking_candidate", res.Category)
	}
	if res.Reason != models.ReasonNone {
		t.Fatalf("accepted item carries reason %q", res.Reason)
	}
	if !res.Scores.LocationOK {
		t.Fatal("LocationOK = false for a domestic post")
	}
	if res.Scores.Domain < 3.0 || res.Scores.Intent < 2.0 {
		t.Fatalf("scores too low: %+v", res.Scores)
	}
	if !utils.StringInSlice("assistante dentaire", res.MatchedTerms) {
		t.Fatalf("matched terms %v missing the domain anchor", res.MatchedTerms)
	}
}

// A domestic contract term must never stand in for domestic location: CDI
// plus Abidjan is a foreign post, full stop.
func TestContractTermNeverImpliesDomesticLocation(t *testing.T) {
	res := classify(t,
		"Cabinet dentaire moderne situé à Abidjan recrute une assistante dentaire qualifiée. "+
			"CDI, salaire motivant. Rejoignez notre équipe !",
		"Clinique Dentaire Plateau")

	if res.Accepted {
		t.Fatal("foreign post accepted because of its contract term")
	}
	if res.Reason != models.ReasonForeignLocation {
		t.Fatalf("reason = %q, want foreign_location", res.Reason)
	}
	if !utils.StringInSlice("abidjan", res.MatchedTerms) {
		t.Fatalf("matched terms %v missing the foreign marker", res.MatchedTerms)
	}
}

func TestStrongerDomesticMarkerOutweighsForeign(t *testing.T) {
	res := classify(t,
		"Notre cabinet dentaire à Paris recrute une assistante dentaire en CDI. "+
			"Une expérience à Genève est appréciée. Envoyez votre candidature !",
		"")

	if !res.Accepted {
		t.Fatalf("post rejected: reason=%s matched=%v", res.Reason, res.MatchedTerms)
	}
	if !res.Scores.LocationOK {
		t.Fatal("LocationOK = false despite a stronger domestic marker")
	}
}

func TestEqualStrengthLocationEvidenceRejects(t *testing.T) {
	res := classify(t,
		"Notre cabinet recrute une assistante dentaire pour nos sites de Paris et Abidjan.",
		"")

	if res.Accepted {
		t.Fatal("ambiguous location accepted")
	}
	if res.Reason != models.ReasonForeignLocation {
		t.Fatalf("reason = %q, want foreign_location", res.Reason)
	}
}

func TestRejectsExcludedContract(t *testing.T) {
	res := classify(t,
		"Cabinet dentaire à Lyon recherche une assistante dentaire en contrat d'apprentissage pour la rentrée.",
		"")

	if res.Accepted {
		t.Fatal("excluded contract category accepted")
	}
	if res.Reason != models.ReasonContractType {
		t.Fatalf("reason = %q, want contract_type", res.Reason)
	}
	if !utils.StringInSlice("apprentissage", res.MatchedTerms) {
		t.Fatalf("matched terms %v missing the contract term", res.MatchedTerms)
	}
}

func TestRejectsAgencyAuthor(t *testing.T) {
	res := classify(t,
		"Nous recrutons une assistante dentaire qualifiée pour un cabinet dentaire sur Lyon. CDI, poste à pourvoir.",
		"Appel Médical Lyon")

	if res.Accepted {
		t.Fatal("agency post accepted")
	}
	if res.Reason != models.ReasonAuthorCategory {
		t.Fatalf("reason = %q, want author_category", res.Reason)
	}
}

func TestRejectsIntermediaryPhrasing(t *testing.T) {
	res := classify(t,
		"Pour notre client, un cabinet dentaire situé à Bordeaux, nous recherchons une assistante dentaire en CDI.",
		"Recrut Santé Conseil")

	if res.Accepted {
		t.Fatal("intermediary post accepted")
	}
	if res.Reason != models.ReasonAuthorCategory {
		t.Fatalf("reason = %q, want author_category", res.Reason)
	}
	if !utils.StringInSlice("pour notre client", res.MatchedTerms) {
		t.Fatalf("matched terms %v missing the intermediary marker", res.MatchedTerms)
	}
}

func TestRejectsJobBoardLink(t *testing.T) {
	res := classify(t,
		"Offre d'emploi : assistante dentaire en cabinet dentaire à Nantes. "+
			"Toutes les infos sur https://www.indeed.fr/voir-emploi/assistante-dentaire-nantes",
		"")

	if res.Accepted {
		t.Fatal("job board repost accepted")
	}
	if res.Reason != models.ReasonAuthorCategory {
		t.Fatalf("reason = %q, want author_category", res.Reason)
	}
	if !utils.StringInSlice("indeed.fr", res.MatchedTerms) {
		t.Fatalf("matched terms %v missing the job board host", res.MatchedTerms)
	}
}

func TestRejectsCandidateAvailablePost(t *testing.T) {
	res := classify(t,
		"Bonjour, je recherche un poste d'assistante dentaire en CDI sur Lyon ou alentours. "+
			"Je suis disponible rapidement, mon CV est à jour.",
		"Julie M.")

	if res.Accepted {
		t.Fatal("candidate post accepted")
	}
	if res.Reason != models.ReasonIntentCategory {
		t.Fatalf("reason = %q, want intent_category", res.Reason)
	}
	if res.Category != models.IntentCandidateAvailable {
		t.Fatalf("category = %s, want candidate_available", res.Category)
	}
}

func TestRejectsTrainingAd(t *testing.T) {
	res := classify(t,
		"Devenez assistante dentaire ! Nos cabinets partenaires recrutent dans toute la France. "+
			"Centre de formation éligible CPF, inscrivez-vous vite.",
		"Formasanté")

	if res.Accepted {
		t.Fatal("training ad accepted")
	}
	if res.Reason != models.ReasonIntentCategory {
		t.Fatalf("reason = %q, want intent_category", res.Reason)
	}
	if res.Category != models.IntentPromotional {
		t.Fatalf("category = %s, want promotional", res.Category)
	}
}

func TestRejectsNonFrenchPost(t *testing.T) {
	res := classify(t,
		"Dental assistant needed for a modern practice in London, send your CV today please.",
		"Smile Clinic")

	if res.Accepted {
		t.Fatal("English post accepted")
	}
	if res.Reason != models.ReasonLanguage {
		t.Fatalf("reason = %q, want language", res.Reason)
	}
}

func TestRejectsOffDomainPost(t *testing.T) {
	res := classify(t,
		"Bonjour à tous, quelqu'un recrute dans le coin pour un poste de vendeuse en boulangerie ?",
		"")

	if res.Accepted {
		t.Fatal("off-domain post accepted")
	}
	if res.Reason != models.ReasonLowDomainScore {
		t.Fatalf("reason = %q, want low_domain_score", res.Reason)
	}
	if res.Scores.Intent != 0 {
		t.Fatalf("intent scored %f after a domain short-circuit", res.Scores.Intent)
	}
}

func TestRejectsChatterWithoutRecruitmentSignal(t *testing.T) {
	res := classify(t,
		"Retour d'expérience : notre cabinet dentaire a changé de logiciel cette année, "+
			"la stérilisation est devenue plus simple pour notre assistante dentaire.",
		"")

	if res.Accepted {
		t.Fatal("informational post accepted")
	}
	if res.Reason != models.ReasonLowIntentScore {
		t.Fatalf("reason = %q, want low_intent_score", res.Reason)
	}
	if res.Category != models.IntentInformational {
		t.Fatalf("category = %s, want informational", res.Category)
	}
}

func TestShortTextSkipsLanguageStage(t *testing.T) {
	res := classify(t, "Recrute assistante dentaire Lyon CDI", "")

	if !res.Accepted {
		t.Fatalf("short post rejected: reason=%s", res.Reason)
	}
}

func TestMatchedTermsAreSorted(t *testing.T) {
	res := classify(t,
		"Notre cabinet dentaire de Lille recrute une assistante dentaire qualifiée, CDI temps plein, "+
			"poste à pourvoir en janvier. Envoyez votre candidature !",
		"")

	if !res.Accepted {
		t.Fatalf("post rejected: reason=%s", res.Reason)
	}
	if len(res.MatchedTerms) < 3 {
		t.Fatalf("matched terms %v, want the full evidence trail", res.MatchedTerms)
	}
	if !sort.StringsAreSorted(res.MatchedTerms) {
		t.Fatalf("matched terms not sorted: %v", res.MatchedTerms)
	}
}

func TestFold(t *testing.T) {
	cases := map[string]string{
		"Assistante QUALIFIÉE":   "assistante qualifiee",
		"  espaces   multiples ": "espaces multiples",
		"offre d’emploi":    "offre d'emploi",
		"contrôle où ça crée":    "controle ou ca cree",
	}

	for in, want := range cases {
		if got := Fold(in); got != want {
			t.Errorf("Fold(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestMatchTermBoundaries(t *testing.T) {
	if !matchTerm("fin de cdi.", "cdi") {
		t.Error("cdi not matched at punctuation boundary")
	}
	if matchTerm("acdique", "cdi") {
		t.Error("cdi matched inside a word")
	}
	if !matchTerm("poste d'assistante dentaire ici", "assistante dentaire") {
		t.Error("multi-word term not matched")
	}
	if matchTerm("", "cdi") || matchTerm("texte", "") {
		t.Error("empty input matched")
	}
}
