// file_destination.go
package log

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"
)

// FileDestination logs to a file with time-based rotation
type FileDestination struct {
	level     slog.Level
	config    *LogfileConfig
	file      *os.File
	handler   slog.Handler
	mu        sync.Mutex
	ticker    *time.Ticker
	closeChan chan struct{}
}

func NewFileDestination(cfg *LogfileConfig) *FileDestination {
	fd := &FileDestination{
		level:     cfg.Level,
		config:    cfg,
		closeChan: make(chan struct{}),
	}

	fd.rotateFile()
	if cfg.Rotate && cfg.RotatePeriod > 0 {
		fd.ticker = time.NewTicker(cfg.RotatePeriod)
		wg.Add(1)
		go fd.rotationWorker()
	}

	return fd
}

func (d *FileDestination) Enabled() bool {
	return true
}

func (d *FileDestination) Level() slog.Level {
	return d.level
}

func (d *FileDestination) Write(entry *logEntry) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.handler != nil {
		d.handler.Handle(context.Background(), entry.record())
	}
}

func (d *FileDestination) Close() {
	if d.ticker != nil {
		d.ticker.Stop()
	}
	close(d.closeChan)
	d.mu.Lock()
	if d.file != nil {
		fmt.Fprintln(d.file, "Log file closed")
		d.file.Close()
		d.file = nil
		d.handler = nil
	}
	d.mu.Unlock()
}

func (d *FileDestination) rotateFile() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.file != nil {
		d.file.Close()
	}

	// Check if the directory exists, if not create it
	if _, err := os.Stat(d.config.Dir); os.IsNotExist(err) {
		if err := os.MkdirAll(d.config.Dir, 0755); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to create log directory: %v\n", err)
			return
		}
	}

	filename := fmt.Sprintf("%s/%s-%s.log", d.config.Dir, d.config.Prefix, time.Now().Format("2006.01.02T15-04"))
	file, err := os.OpenFile(filename, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open log file: %v\n", err)
		return
	}
	d.file = file
	d.handler = slog.NewTextHandler(file, &slog.HandlerOptions{Level: d.level})
}

func (d *FileDestination) rotationWorker() {
	defer wg.Done()
	for {
		select {
		case <-d.ticker.C:
			d.rotateFile()
		case <-d.closeChan:
			return
		}
	}
}
