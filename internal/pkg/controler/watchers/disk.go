// Package watchers holds the background loops the controler runs next to
// the agent: disk-space supervision and durable-store maintenance.
package watchers

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sourcerie/affut/internal/pkg/controler/pause"
	"github.com/sourcerie/affut/internal/pkg/log"
)

var (
	diskWatcherCtx, diskWatcherCancel = context.WithCancel(context.Background())
	diskWatcherWg                     sync.WaitGroup
)

// Implements f(x)={ if total <= 256GB then threshold = 10GB * (total / 256GB) else threshold = 10GB }
func checkThreshold(total, free uint64, minSpaceRequired int) error {
	const (
		GB = 1024 * 1024 * 1024
	)
	var threshold float64

	if minSpaceRequired > 0 {
		threshold = float64(minSpaceRequired) * float64(GB)
	} else {
		if total <= 256*GB {
			threshold = float64(10*GB) * (float64(total) / float64(256*GB))
		} else {
			threshold = 10 * GB
		}
	}

	// Compare free space with threshold
	if free < uint64(threshold) {
		return fmt.Errorf("low disk space: free=%.2f GB, threshold=%.2f GB", float64(free)/1e9, float64(threshold)/1e9)
	}

	return nil
}

// WatchDiskSpace watches the job directory's disk space and pauses the
// agent while it is low. The dedup store, the repository, the logs and the
// restriction screenshots all live there; collecting with no room to
// persist would lose work.
func WatchDiskSpace(path string, interval time.Duration) {
	diskWatcherWg.Add(1)
	defer diskWatcherWg.Done()

	logger := log.NewFieldedLogger(&log.Fields{
		"component": "controler.diskWatcher",
	})

	paused := false
	returnASAP := false
	backoffMultiplier := 0
	maxInterval := 10 * interval

	for {
		select {
		case <-diskWatcherCtx.Done():
			defer logger.Debug("closed")
			if paused {
				logger.Info("returning after resume")
				returnASAP = true
			}
			return
		default:
			err := CheckDiskUsage(path)

			if err != nil && !paused {
				logger.Warn("low disk space, pausing the agent", "err", err.Error())
				pause.Pause("Not enough disk space")
				paused = true
				backoffMultiplier++
			} else if err == nil && paused {
				logger.Info("disk space is sufficient, resuming the agent")
				pause.Resume()
				paused = false
				backoffMultiplier = 0
				if returnASAP {
					return
				}
			} else if err != nil {
				backoffMultiplier++
			} else {
				backoffMultiplier = 0
			}

			sleep := interval * (1 << backoffMultiplier) // exponential backoff
			if sleep > maxInterval {
				sleep = maxInterval
			}
			time.Sleep(sleep)
		}
	}
}

// StopDiskWatcher stops the disk watcher by canceling the context and waiting for the goroutine to finish.
func StopDiskWatcher() {
	diskWatcherCancel()
	diskWatcherWg.Wait()
}
