package controler

import (
	"context"
	"fmt"
	"time"

	"github.com/sourcerie/affut/internal/pkg/log"
)

// supervisor keeps a blocking task alive. The task is expected to run until
// its context is cancelled; any earlier return (or panic) is treated as a
// crash and the task is restarted after a cooldown. The cooldown and the
// restart budget keep a persistently crashing task from tight-looping.
type supervisor struct {
	run         func(context.Context)
	cooldown    time.Duration
	maxRestarts int
	onGiveUp    func()
	logger      *log.FieldedLogger
}

func (s *supervisor) loop(ctx context.Context) {
	restarts := 0
	for {
		err := s.runOnce(ctx)
		if ctx.Err() != nil {
			return
		}

		if err != nil {
			s.logger.Error("task crashed", "err", err.Error())
		} else {
			s.logger.Error("task exited unexpectedly")
		}

		if s.maxRestarts > 0 && restarts >= s.maxRestarts {
			s.logger.Error("restart budget spent, shutting down", "restarts", restarts)
			if s.onGiveUp != nil {
				s.onGiveUp()
			}
			return
		}
		restarts++

		s.logger.Warn("restarting after cooldown", "restart", restarts, "cooldown", s.cooldown.String())
		select {
		case <-ctx.Done():
			return
		case <-time.After(s.cooldown):
		}
	}
}

func (s *supervisor) runOnce(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	s.run(ctx)
	return nil
}
