package api

import (
	"encoding/json"
	"net/http"

	"github.com/sourcerie/affut/pkg/models"
)

// KeywordStatus is one rotation entry as served by GET /keywords.
type KeywordStatus struct {
	Term          string `json:"term"`
	Enabled       bool   `json:"enabled"`
	LastUsedCycle uint64 `json:"last_used_cycle"`
	TotalYield    uint64 `json:"total_yield"`
	RecentYield   []int  `json:"recent_yield,omitempty"`
}

// GET /keywords exposes the rotation state, the way an operator checks
// which terms still earn their slot.
func keywordsHandler(w http.ResponseWriter, _ *http.Request) {
	var out []KeywordStatus
	for _, kw := range orch.Keywords() {
		out = append(out, keywordStatus(kw))
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(out); err != nil {
		http.Error(w, "failed to encode JSON", http.StatusInternalServerError)
	}
}

func keywordStatus(kw models.Keyword) KeywordStatus {
	return KeywordStatus{
		Term:          kw.Term,
		Enabled:       kw.Enabled,
		LastUsedCycle: kw.LastUsedCycle,
		TotalYield:    kw.TotalYield,
		RecentYield:   kw.RecentYield,
	}
}
