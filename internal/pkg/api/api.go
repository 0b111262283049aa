// Package api is the local control plane: status, pause, manual trigger
// and runtime flags over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/sourcerie/affut/internal/pkg/api/handlers/live"
	"github.com/sourcerie/affut/internal/pkg/config"
	"github.com/sourcerie/affut/internal/pkg/log"
	"github.com/sourcerie/affut/internal/pkg/orchestrator"
	"github.com/sourcerie/affut/internal/pkg/stats"
)

var (
	server *http.Server
	once   sync.Once
	orch   *orchestrator.Orchestrator

	// ErrAlreadyStarted is returned when the API server was already started.
	ErrAlreadyStarted = errors.New("API server already started")
)

// Start begins serving HTTP requests in a separate goroutine. The
// orchestrator backs the status, trigger and keywords endpoints.
func Start(o *orchestrator.Orchestrator) error {
	var done bool

	once.Do(func() {
		logger := log.NewFieldedLogger(&log.Fields{
			"component": "api",
		})

		orch = o

		live.SetSource(func() ([]byte, error) {
			return json.Marshal(map[string]any{
				"agent": orch.Status(),
				"stats": stats.GetMap(),
			})
		})

		mux := http.NewServeMux()
		registerRoutes(mux)

		server = &http.Server{
			Addr:    fmt.Sprintf(":%d", config.Get().APIPort),
			Handler: mux,
		}

		go func() {
			logger.Info("API server listening", "addr", server.Addr)
			// ListenAndServe returns http.ErrServerClosed when Stop is called.
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("API server failed", "err", err.Error())
			}
		}()

		done = true
	})

	if !done {
		return ErrAlreadyStarted
	}

	return nil
}

// Stop gracefully shuts down the server within the provided timeout.
func Stop(timeout time.Duration) error {
	if server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return server.Shutdown(ctx)
}
