package log

import (
	"log/slog"
	"sync"
	"testing"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// silentConfig drops everything so tests don't spam the terminal
func silentConfig() *Config {
	return &Config{
		StdoutEnabled: false,
		StderrEnabled: false,
		FileConfig:    nil,
	}
}

func TestLoggerRaceCondition(t *testing.T) {
	// ensure logger is stopped before starting
	Stop()

	if err := Start(silentConfig()); err != nil {
		t.Fatalf("Failed to start logger: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(4)
		go func() { defer wg.Done(); Debug("message") }()
		go func() { defer wg.Done(); Info("message") }()
		go func() { defer wg.Done(); Warn("message") }()
		go func() { defer wg.Done(); Error("message") }()
	}

	stopped := make(chan struct{})
	go func() {
		Stop()
		close(stopped)
	}()

	wg.Wait()
	<-stopped

	queueMu.RLock()
	defer queueMu.RUnlock()
	if logQueue != nil {
		t.Error("Log queue should be nil after Stop()")
	}
}

func TestLoggerNilSafety(t *testing.T) {
	Stop()

	Debug("Should not panic when logger is stopped")
	Info("Should not panic when logger is stopped")
	Warn("Should not panic when logger is stopped")
	Error("Should not panic when logger is stopped")

	if err := Start(silentConfig()); err != nil {
		t.Fatalf("Failed to start logger: %v", err)
	}

	Debug("Should log when logger is initialized")
	Info("Should log when logger is initialized")
	Warn("Should log when logger is initialized")
	Error("Should log when logger is initialized")

	Stop()
}

func TestStartTwice(t *testing.T) {
	Stop()

	if err := Start(silentConfig()); err != nil {
		t.Fatalf("first Start: %v", err)
	}
	if err := Start(silentConfig()); err != ErrLoggerAlreadyInitialized {
		t.Errorf("second Start should be rejected, got %v", err)
	}

	Stop()
}

func TestFieldedLoggerSortsFields(t *testing.T) {
	fl := NewFieldedLogger(&Fields{
		"component": "orchestrator",
		"cycle":     uint64(7),
		"author":    "x",
	})

	want := []any{"author", "x", "component", "orchestrator", "cycle", uint64(7)}
	got := *fl.fields
	if len(got) != len(want) {
		t.Fatalf("fields length = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("fields[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestParseLevel(t *testing.T) {
	if parseLevel("debug") != slog.LevelDebug || parseLevel("ERROR") != slog.LevelError {
		t.Error("parseLevel should be case-insensitive")
	}
	if parseLevel("nonsense") != slog.LevelInfo {
		t.Error("unknown level should fall back to info")
	}
}
