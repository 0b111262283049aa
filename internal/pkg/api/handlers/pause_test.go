package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/goleak"

	"github.com/sourcerie/affut/internal/pkg/controler/pause"
	"github.com/sourcerie/affut/internal/pkg/stats"
)

func TestMain(m *testing.M) {
	stats.Init()
	goleak.VerifyTestMain(m)
}

func getState(t *testing.T) PauseState {
	t.Helper()

	rec := httptest.NewRecorder()
	GetPause(rec, httptest.NewRequest(http.MethodGet, "/pause", nil))

	var state PauseState
	if err := json.NewDecoder(rec.Body).Decode(&state); err != nil {
		t.Fatalf("decoding state: %v", err)
	}
	return state
}

func TestPauseRoundTrip(t *testing.T) {
	defer pause.Resume()

	rec := httptest.NewRecorder()
	PatchPause(rec, httptest.NewRequest(http.MethodPatch, "/pause",
		strings.NewReader(`{"paused":true,"message":"maintenance"}`)))
	if rec.Code != http.StatusOK {
		t.Fatalf("patch status = %d", rec.Code)
	}

	state := getState(t)
	if !state.Paused || state.Message != "maintenance" {
		t.Fatalf("state after pause = %+v", state)
	}

	rec = httptest.NewRecorder()
	PatchPause(rec, httptest.NewRequest(http.MethodPatch, "/pause",
		strings.NewReader(`{"paused":false}`)))
	if rec.Code != http.StatusOK {
		t.Fatalf("patch status = %d", rec.Code)
	}

	state = getState(t)
	if state.Paused || state.Message != "" {
		t.Fatalf("state after resume = %+v", state)
	}
}

func TestPatchPauseRejectsBadBody(t *testing.T) {
	rec := httptest.NewRecorder()
	PatchPause(rec, httptest.NewRequest(http.MethodPatch, "/pause", strings.NewReader("not json")))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if pause.IsPaused() {
		t.Fatal("bad body changed the pause state")
	}
}
