package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/sourcerie/affut/internal/pkg/config"
	"github.com/sourcerie/affut/internal/pkg/controler/pause"
)

// GET /flags
func GetFlags(w http.ResponseWriter, _ *http.Request) {
	flags := config.Runtime()
	if flags == nil {
		http.Error(w, "runtime flags not initialized", http.StatusServiceUnavailable)
		return
	}
	json.NewEncoder(w).Encode(flags)
}

// PATCH /flags applies a partial update. Unknown names or out-of-range
// values reject the whole patch.
func PatchFlags(w http.ResponseWriter, r *http.Request) {
	var values map[string]any
	if err := json.NewDecoder(r.Body).Decode(&values); err != nil {
		http.Error(w, "body must be a JSON object of flag values", http.StatusBadRequest)
		return
	}

	prev := config.Runtime()

	next, err := config.SetFlags(values)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	// The paused flag drives the pause manager, same as PATCH /pause.
	if prev != nil && prev.Paused != next.Paused {
		if next.Paused {
			pause.Pause("paused via flags")
		} else {
			pause.Resume()
		}
	}

	json.NewEncoder(w).Encode(next)
}
