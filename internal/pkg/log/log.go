// log.go
package log

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Global variables
var (
	logCfg     *Config
	logQueue   chan *logEntry
	queueMu    sync.RWMutex
	once       sync.Once
	wg         sync.WaitGroup
	cancelFunc context.CancelFunc
)

// Start initializes the logging package with the given configuration.
// If no configuration is provided, it is derived from the main config.
func Start(cfgs ...*Config) error {
	var done = false

	once.Do(func() {
		if len(cfgs) > 0 && cfgs[0] != nil {
			logCfg = cfgs[0]
		} else {
			logCfg = makeConfig()
		}
		setupLogger()
		done = true
	})

	if !done {
		return ErrLoggerAlreadyInitialized
	}

	return nil
}

// Public logging methods
func Debug(msg string, args ...any) {
	logWithLevel(slog.LevelDebug, msg, args...)
}

func Info(msg string, args ...any) {
	logWithLevel(slog.LevelInfo, msg, args...)
}

func Warn(msg string, args ...any) {
	logWithLevel(slog.LevelWarn, msg, args...)
}

func Error(msg string, args ...any) {
	logWithLevel(slog.LevelError, msg, args...)
}

// logWithLevel sends the log entry to the logQueue. Logging never blocks the
// caller: when the queue is full or the logger is stopped, the entry is
// dropped with a note on the default slog output.
func logWithLevel(level slog.Level, msg string, args ...any) {
	entry := &logEntry{
		timestamp: time.Now(),
		level:     level,
		msg:       msg,
		args:      args,
	}

	queueMu.RLock()
	defer queueMu.RUnlock()

	// A nil queue (logger stopped) makes the send case never ready, so the
	// entry falls through to the drop branch instead of panicking.
	select {
	case logQueue <- entry:
	default:
		if logQueue != nil {
			slog.Error("Log queue is full, dropping log entry from logger", "msg", msg, "args", args)
		}
	}
}

// Stop gracefully shuts down the logging system, draining the queue first.
// The package can be started again afterwards, which the tests rely on.
func Stop() {
	if cancelFunc != nil {
		cancelFunc()
		cancelFunc = nil
	}
	wg.Wait()

	queueMu.Lock()
	if logQueue != nil {
		close(logQueue)
		logQueue = nil
	}
	queueMu.Unlock()

	once = sync.Once{}
}
