// logger.go
package log

import (
	"context"
	"log/slog"
	"time"
)

type logEntry struct {
	timestamp time.Time
	level     slog.Level
	msg       string
	args      []any
}

// record converts the queued entry back into a slog.Record for the
// destination handlers.
func (e *logEntry) record() slog.Record {
	r := slog.NewRecord(e.timestamp, e.level, e.msg, 0)
	r.Add(e.args...)
	return r
}

func setupLogger() {
	// Initialize the log queue
	queueMu.Lock()
	logQueue = make(chan *logEntry, 10000)
	queueMu.Unlock()

	// Create a cancellable context
	var ctx context.Context
	ctx, cancelFunc = context.WithCancel(context.Background())

	// Start the log processing goroutine
	wg.Add(1)
	go processLogQueue(ctx)
}

func processLogQueue(ctx context.Context) {
	defer wg.Done()

	// Initialize log destinations
	destinations := initDestinations()

	dispatch := func(entry *logEntry) {
		for _, dest := range destinations {
			if dest.Enabled() && entry.level >= dest.Level() {
				dest.Write(entry)
			}
		}
	}

	for {
		select {
		case entry := <-logQueue:
			dispatch(entry)
		case <-ctx.Done():
			// Drain the log queue before exiting
			for {
				select {
				case entry := <-logQueue:
					dispatch(entry)
				default:
					// Close destinations
					for _, dest := range destinations {
						dest.Close()
					}
					return
				}
			}
		}
	}
}
