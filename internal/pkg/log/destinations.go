// destinations.go
package log

import (
	"context"
	"log/slog"
	"os"
)

// Destination interface
type Destination interface {
	Enabled() bool
	Level() slog.Level
	Write(entry *logEntry)
	Close()
}

func initDestinations() []Destination {
	var destinations []Destination

	if logCfg.StdoutEnabled {
		destinations = append(destinations, &StdoutDestination{
			level:   logCfg.StdoutLevel,
			handler: logCfg.newHandler(os.Stdout, logCfg.StdoutLevel),
		})
	}

	if logCfg.StderrEnabled {
		destinations = append(destinations, &StderrDestination{
			level:   logCfg.StderrLevel,
			handler: logCfg.newHandler(os.Stderr, logCfg.StderrLevel),
		})
	}

	if logCfg.FileConfig != nil {
		destinations = append(destinations, NewFileDestination(logCfg.FileConfig))
	}

	return destinations
}

// StdoutDestination logs to stdout
type StdoutDestination struct {
	level   slog.Level
	handler slog.Handler
}

func (d *StdoutDestination) Enabled() bool {
	return true
}

func (d *StdoutDestination) Level() slog.Level {
	return d.level
}

// Write skips entries the stderr destination takes, so a message never
// prints twice on a terminal showing both streams.
func (d *StdoutDestination) Write(entry *logEntry) {
	if logCfg.StderrEnabled && entry.level >= logCfg.StderrLevel {
		return
	}
	d.handler.Handle(context.Background(), entry.record())
}

func (d *StdoutDestination) Close() {}

// StderrDestination logs to stderr
type StderrDestination struct {
	level   slog.Level
	handler slog.Handler
}

func (d *StderrDestination) Enabled() bool {
	return true
}

func (d *StderrDestination) Level() slog.Level {
	return d.level
}

func (d *StderrDestination) Write(entry *logEntry) {
	d.handler.Handle(context.Background(), entry.record())
}

func (d *StderrDestination) Close() {}
