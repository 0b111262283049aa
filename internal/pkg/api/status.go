package api

import (
	"encoding/json"
	"net/http"
	"os"
	"time"

	"github.com/sourcerie/affut/internal/pkg/orchestrator"
	"github.com/sourcerie/affut/internal/pkg/stats"
	"github.com/sourcerie/affut/internal/pkg/utils"
)

// StatusResponse is what GET /status serves: process identity, the
// orchestrator snapshot and the raw counters.
type StatusResponse struct {
	Role      string              `json:"role"`
	Version   string              `json:"version"`
	Host      string              `json:"host"`
	StartTime string              `json:"start_time"`
	Agent     orchestrator.Status `json:"agent"`
	Stats     map[string]any      `json:"stats"`
}

var startTime = time.Now()

func healthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

func statusHandler(w http.ResponseWriter, _ *http.Request) {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}

	response := StatusResponse{
		Role:      "affut",
		Version:   utils.GetVersion().Version,
		Host:      hostname,
		StartTime: startTime.UTC().Format(time.RFC3339),
		Agent:     orch.Status(),
		Stats:     stats.GetMap(),
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, "failed to encode JSON", http.StatusInternalServerError)
	}
}
