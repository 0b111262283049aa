package controler

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/sourcerie/affut/internal/pkg/log"
)

var signalWatcherCtx, signalWatcherCancel = context.WithCancel(context.Background())
var SignalChan = make(chan os.Signal, 1)

// WatchSignals blocks until the agent shuts down, either from an OS signal
// or because stopAgent ran for another reason (supervisor give-up).
func WatchSignals() {
	logger := log.NewFieldedLogger(&log.Fields{
		"component": "controler.signalWatcher",
	})

	signal.Notify(SignalChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-signalWatcherCtx.Done():
		return
	case <-SignalChan:
		logger.Info("received shutdown signal, stopping the agent...")
		// Catch a second signal to force exit
		go func() {
			<-SignalChan
			logger.Info("received second shutdown signal, forcing exit...")
			os.Exit(1)
		}()

		Stop()
	}
}
