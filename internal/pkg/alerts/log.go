package alerts

import (
	"github.com/sourcerie/affut/internal/pkg/log"
)

// Log writes events to the process log. It is the notifier of last
// resort, wired when no telegram credentials are configured so events
// always land somewhere.
type Log struct {
	logger *log.FieldedLogger
}

func NewLog() *Log {
	return &Log{
		logger: log.NewFieldedLogger(&log.Fields{
			"component": "alerts",
		}),
	}
}

func (l *Log) Notify(ev Event) error {
	args := []any{"kind", string(ev.Kind)}
	for _, k := range sortedFieldKeys(ev.Fields) {
		args = append(args, k, ev.Fields[k])
	}

	switch ev.Severity {
	case SeverityInfo:
		l.logger.Info(ev.Message, args...)
	default:
		l.logger.Warn(ev.Message, args...)
	}

	return nil
}
