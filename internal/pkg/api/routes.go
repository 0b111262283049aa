package api

import (
	"net/http"

	"github.com/sourcerie/affut/internal/pkg/api/handlers"
	"github.com/sourcerie/affut/internal/pkg/api/handlers/live"
	"github.com/sourcerie/affut/internal/pkg/config"
	"github.com/sourcerie/affut/internal/pkg/stats"
)

// registerRoutes attaches all API handlers to mux.
func registerRoutes(mux *http.ServeMux) {
	if config.Get().Prometheus {
		mux.Handle("GET /metrics", stats.PrometheusHandler())
	}
	mux.HandleFunc("GET /health", healthHandler)
	mux.HandleFunc("GET /status", statusHandler)
	mux.HandleFunc("GET /keywords", keywordsHandler)
	mux.HandleFunc("GET /live", live.Handler)
	mux.HandleFunc("POST /trigger", triggerHandler)
	mux.HandleFunc("GET /pause", handlers.GetPause)
	mux.HandleFunc("PATCH /pause", handlers.PatchPause)
	mux.HandleFunc("GET /flags", handlers.GetFlags)
	mux.HandleFunc("PATCH /flags", handlers.PatchFlags)
}
