// Package pause coordinates suspending every long-running worker in the
// agent at once: the orchestrator loop, the watchers, anything that
// subscribes. Pause is broadcast; resume is a blocking handshake so the
// caller knows every subscriber actually stopped where it was.
package pause

import (
	"sync"
	"sync/atomic"

	"github.com/sourcerie/affut/internal/pkg/stats"
)

// ControlChans is one subscriber's pair of control channels. PauseCh
// carries the pause message; the subscriber acknowledges a resume by
// sending on ResumeCh.
type ControlChans struct {
	PauseCh  chan string
	ResumeCh chan struct{}
}

type pauseManager struct {
	subscribers sync.Map // *ControlChans -> struct{}
	isPaused    atomic.Bool
	mu          sync.RWMutex
	message     string
}

var manager = &pauseManager{}

// notify delivers the pause message without blocking. PauseCh holds one
// message; a subscriber that has not drained the previous signal keeps it.
func notify(chans *ControlChans, msg string) {
	select {
	case chans.PauseCh <- msg:
	default:
	}
}

// Subscribe registers a worker with the pause manager. A worker joining
// while the agent is paused gets the pause signal right away, so late
// starters stop with everyone else.
func Subscribe() *ControlChans {
	chans := &ControlChans{
		PauseCh:  make(chan string, 1),
		ResumeCh: make(chan struct{}), // unbuffered, the resume handshake blocks on it
	}
	manager.subscribers.Store(chans, struct{}{})

	if manager.isPaused.Load() {
		notify(chans, GetMessage())
	}

	return chans
}

// Unsubscribe removes the worker and closes its channels. Closing may race
// a concurrent Resume, so a double close is swallowed.
func Unsubscribe(chans *ControlChans) {
	manager.subscribers.Delete(chans)

	defer func() {
		recover()
	}()
	close(chans.PauseCh)
	close(chans.ResumeCh)
}

// Pause suspends every subscriber. The optional message tells the operator
// why, it travels with the signal and shows up in pause status. Pausing an
// already paused agent does nothing.
func Pause(message ...string) {
	if !manager.isPaused.CompareAndSwap(false, true) {
		return
	}

	msg := "Paused"
	if len(message) > 0 {
		msg = message[0]
	}

	manager.mu.Lock()
	manager.message = msg
	manager.mu.Unlock()

	manager.subscribers.Range(func(key, _ any) bool {
		notify(key.(*ControlChans), msg)
		return true
	})
	stats.PausedSet()
}

// Resume unblocks every subscriber and waits until each one has
// acknowledged, so the caller knows the whole agent is running again.
// Subscribers that unsubscribed mid-pause are skipped via their closed
// channel.
func Resume() {
	var wg sync.WaitGroup
	manager.subscribers.Range(func(key, _ any) bool {
		chans := key.(*ControlChans)
		wg.Add(1)
		go func(chans *ControlChans) {
			defer wg.Done()
			<-chans.ResumeCh
		}(chans)
		return true
	})
	wg.Wait()

	if !manager.isPaused.CompareAndSwap(true, false) {
		return
	}

	manager.mu.Lock()
	manager.message = ""
	manager.mu.Unlock()

	stats.PausedUnset()
}

// IsPaused reports whether the agent is currently paused.
func IsPaused() bool {
	return manager.isPaused.Load()
}

// GetMessage returns the current pause message, empty when running.
func GetMessage() string {
	manager.mu.RLock()
	defer manager.mu.RUnlock()
	return manager.message
}
