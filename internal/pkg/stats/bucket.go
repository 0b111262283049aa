package stats

import "sync"

// counterBucket is a set of counters keyed by a small string code, used for
// the per-reason rejection and cycle-end tallies.
type counterBucket struct {
	data sync.Map // key: string, value: *counter
}

func newCounterBucket() *counterBucket {
	return &counterBucket{}
}

func (cb *counterBucket) incr(key string, step uint64) {
	if v, ok := cb.data.Load(key); ok {
		v.(*counter).incr(step)
		return
	}
	c := &counter{}
	c.incr(step)
	if actual, loaded := cb.data.LoadOrStore(key, c); loaded {
		actual.(*counter).incr(step)
	}
}

func (cb *counterBucket) get(key string) uint64 {
	if v, ok := cb.data.Load(key); ok {
		return v.(*counter).get()
	}
	return 0
}

func (cb *counterBucket) getAll() map[string]uint64 {
	m := make(map[string]uint64)
	cb.data.Range(func(k, v any) bool {
		m[k.(string)] = v.(*counter).get()
		return true
	})
	return m
}

func (cb *counterBucket) resetAll() {
	cb.data.Range(func(_, v any) bool {
		v.(*counter).reset()
		return true
	})
}
