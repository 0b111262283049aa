package stats

import (
	"sync/atomic"
	"time"

	"github.com/paulbellamy/ratecounter"
)

// rate tracks a lifetime total plus a sliding-window rate.
type rate struct {
	total uint64
	rc    *ratecounter.RateCounter
}

func newRate(interval time.Duration) *rate {
	return &rate{
		rc: ratecounter.NewRateCounter(interval),
	}
}

func (r *rate) incr(step uint64) {
	atomic.AddUint64(&r.total, step)
	r.rc.Incr(int64(step))
}

// get returns the count over the sliding window.
func (r *rate) get() int64 {
	return r.rc.Rate()
}

func (r *rate) getTotal() uint64 {
	return atomic.LoadUint64(&r.total)
}

// reset clears the total. The window count decays on its own.
func (r *rate) reset() {
	atomic.StoreUint64(&r.total, 0)
}
