package watchers

import (
	"context"
	"sync"
	"time"

	"github.com/sourcerie/affut/internal/pkg/dedup"
	"github.com/sourcerie/affut/internal/pkg/log"
	"github.com/sourcerie/affut/internal/pkg/repository"
)

var (
	maintenanceCtx, maintenanceCancel = context.WithCancel(context.Background())
	maintenanceWg                     sync.WaitGroup
)

// StartMaintenance runs periodic housekeeping on the durable stores: the
// dedup fingerprints and the accepted rows older than the retention window
// are purged together, so both layers forget a post at the same time and
// a re-published old post is treated as new everywhere at once. A pass
// runs at startup to clear any backlog from downtime.
func StartMaintenance(store *repository.Store, fins *dedup.Store, interval, retention time.Duration) {
	maintenanceWg.Add(1)
	go func() {
		defer maintenanceWg.Done()

		logger := log.NewFieldedLogger(&log.Fields{
			"component": "controler.maintenance",
		})
		defer logger.Debug("closed")

		if retention <= 0 {
			logger.Warn("retention disabled, stores will grow unbounded")
			return
		}

		runMaintenance(store, fins, retention, logger)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-maintenanceCtx.Done():
				return
			case <-ticker.C:
				runMaintenance(store, fins, retention, logger)
			}
		}
	}()
}

func runMaintenance(store *repository.Store, fins *dedup.Store, retention time.Duration, logger *log.FieldedLogger) {
	swept, err := fins.Sweep(retention)
	if err != nil {
		logger.Error("dedup sweep failed", "err", err.Error())
	} else if swept > 0 {
		logger.Info("swept expired fingerprints", "count", swept)
	}

	ctx, cancel := context.WithTimeout(maintenanceCtx, time.Minute)
	defer cancel()

	cutoff := time.Now().UTC().Add(-retention)
	purged, err := store.PurgeAcceptedBefore(ctx, cutoff)
	if err != nil {
		logger.Error("accepted purge failed", "err", err.Error())
		return
	}
	if purged > 0 {
		logger.Info("purged accepted rows past retention", "count", purged, "cutoff", cutoff.Format(time.RFC3339))
		if err := store.Vacuum(ctx); err != nil {
			logger.Error("vacuum failed", "err", err.Error())
		}
	}
}

// StopMaintenance stops the maintenance watcher and waits for an in-flight
// pass to finish.
func StopMaintenance() {
	maintenanceCancel()
	maintenanceWg.Wait()
}
