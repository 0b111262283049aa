package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/sourcerie/affut/internal/pkg/orchestrator"
)

// POST /trigger requests an immediate cycle. ?relaxed=true waives the
// daily cap for that one cycle.
func triggerHandler(w http.ResponseWriter, r *http.Request) {
	relaxed := r.URL.Query().Get("relaxed") == "true"

	if err := orch.TriggerNow(relaxed); err != nil {
		if errors.Is(err, orchestrator.ErrTriggerPending) {
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]any{
		"triggered":     true,
		"relaxed_quota": relaxed,
	})
}
