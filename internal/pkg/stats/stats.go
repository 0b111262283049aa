package stats

import (
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sourcerie/affut/internal/pkg/config"
	"github.com/sourcerie/affut/internal/pkg/utils"
)

type stats struct {
	CyclesStarted     *counter
	CyclesFinished    *counter
	ItemsSeen         *rate
	ItemsAccepted     *rate
	ItemsDuplicate    *counter
	LateDuplicates    *counter
	Rejections        *counterBucket
	CycleEnds         *counterBucket
	Restrictions      *counter
	SelectorExhausted *counter
	QuotaReached      *counter
	AlertsDropped     *counter
	Paused            atomic.Bool
	LastCycleID       atomic.Uint64
}

var (
	globalStats     *stats
	globalPromStats *prometheusStats
	hostname        string
	version         string
	doOnce          sync.Once
)

func Init() error {
	var done = false

	doOnce.Do(func() {
		hostname, _ = os.Hostname()
		version = utils.GetVersion().Version

		globalStats = &stats{
			CyclesStarted:     &counter{},
			CyclesFinished:    &counter{},
			ItemsSeen:         newRate(time.Minute),
			ItemsAccepted:     newRate(time.Minute),
			ItemsDuplicate:    &counter{},
			LateDuplicates:    &counter{},
			Rejections:        newCounterBucket(),
			CycleEnds:         newCounterBucket(),
			Restrictions:      &counter{},
			SelectorExhausted: &counter{},
			QuotaReached:      &counter{},
			AlertsDropped:     &counter{},
		}

		globalPromStats = newPrometheusStats()
		if config.Get() != nil && config.Get().Prometheus {
			registerPrometheusMetrics()
		}

		done = true
	})

	if !done {
		return ErrStatsAlreadyInitialized
	}

	return nil
}

func Reset() {
	globalStats.CyclesStarted.reset()
	globalStats.CyclesFinished.reset()
	globalStats.ItemsSeen.reset()
	globalStats.ItemsAccepted.reset()
	globalStats.ItemsDuplicate.reset()
	globalStats.LateDuplicates.reset()
	globalStats.Rejections.resetAll()
	globalStats.CycleEnds.resetAll()
	globalStats.Restrictions.reset()
	globalStats.SelectorExhausted.reset()
	globalStats.QuotaReached.reset()
	globalStats.AlertsDropped.reset()
	globalStats.Paused.Store(false)
	globalStats.LastCycleID.Store(0)
}

// GetMap returns a map of the current stats.
// This is what the status endpoint serves.
func GetMap() map[string]interface{} {
	return map[string]interface{}{
		"Cycles started":        globalStats.CyclesStarted.get(),
		"Cycles finished":       globalStats.CyclesFinished.get(),
		"Last cycle":            globalStats.LastCycleID.Load(),
		"Items seen":            globalStats.ItemsSeen.getTotal(),
		"Items seen/min":        globalStats.ItemsSeen.get(),
		"Items accepted":        globalStats.ItemsAccepted.getTotal(),
		"Items accepted/min":    globalStats.ItemsAccepted.get(),
		"In-cycle duplicates":   globalStats.ItemsDuplicate.get(),
		"Late duplicates":       globalStats.LateDuplicates.get(),
		"Rejections":            globalStats.Rejections.getAll(),
		"Cycle end reasons":     globalStats.CycleEnds.getAll(),
		"Restrictions detected": globalStats.Restrictions.get(),
		"Selector exhaustion":   globalStats.SelectorExhausted.get(),
		"Quota reached events":  globalStats.QuotaReached.get(),
		"Alerts dropped":        globalStats.AlertsDropped.get(),
		"Is paused?":            globalStats.Paused.Load(),
	}
}
