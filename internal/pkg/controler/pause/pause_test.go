package pause

import (
	"sync"
	"testing"
	"time"

	"github.com/sourcerie/affut/internal/pkg/stats"
)

func TestBasicPauseResume(t *testing.T) {
	stats.Init()
	manager = &pauseManager{}

	var wg sync.WaitGroup
	wg.Add(1)

	subscribed := make(chan struct{})
	pausedCh := make(chan struct{})
	resumedCh := make(chan struct{})

	go func() {
		defer wg.Done()
		controlChans := Subscribe()
		defer Unsubscribe(controlChans)

		subscribed <- struct{}{}

		for {
			select {
			case <-controlChans.PauseCh:
				// Signal that we have received the pause signal
				pausedCh <- struct{}{}
				// Attempt to send to ResumeCh; blocks until Resume() reads from it.
				controlChans.ResumeCh <- struct{}{}
				// Signal that we have resumed
				resumedCh <- struct{}{}
				return // Exit after resuming.
			default:
				time.Sleep(10 * time.Millisecond) // Simulate work.
			}
		}
	}()

	// Wait for the goroutine to subscribe
	<-subscribed

	// Pause the system.
	Pause()

	// Wait for the goroutine to signal that it has paused
	select {
	case <-pausedCh:
		// Paused successfully
	case <-time.After(200 * time.Millisecond):
		t.Fatal("Subscriber did not receive pause signal")
	}

	// Resume the system.
	Resume()

	// Wait for the goroutine to signal that it has resumed
	select {
	case <-resumedCh:
		// Resumed successfully
	case <-time.After(200 * time.Millisecond):
		t.Fatal("Subscriber did not resume")
	}

	wg.Wait()
}

func TestMultipleSubscribers(t *testing.T) {
	stats.Init()
	manager = &pauseManager{}
	const numSubscribers = 10
	var wg sync.WaitGroup

	subscribedChans := make([]chan struct{}, numSubscribers)
	pausedChans := make([]chan struct{}, numSubscribers)
	resumedChans := make([]chan struct{}, numSubscribers)

	// Create multiple subscribers.
	for i := range numSubscribers {
		wg.Add(1)
		subscribedChans[i] = make(chan struct{})
		pausedChans[i] = make(chan struct{})
		resumedChans[i] = make(chan struct{})

		go func(idx int) {
			defer wg.Done()
			controlChans := Subscribe()
			defer Unsubscribe(controlChans)

			subscribedChans[idx] <- struct{}{}

			for {
				select {
				case <-controlChans.PauseCh:
					// Signal that we have paused
					pausedChans[idx] <- struct{}{}
					// Attempt to send to ResumeCh; blocks until Resume() reads from it.
					controlChans.ResumeCh <- struct{}{}
					// Signal that we have resumed
					resumedChans[idx] <- struct{}{}
					return // Exit after resuming.
				default:
					time.Sleep(10 * time.Millisecond) // Simulate work.
				}
			}
		}(i)
	}

	// Wait for all subscribers to subscribe
	for i := range numSubscribers {
		<-subscribedChans[i]
	}

	// Pause the system.
	Pause()

	// Wait for all subscribers to acknowledge the pause
	for i := range numSubscribers {
		select {
		case <-pausedChans[i]:
			// Subscriber paused
		case <-time.After(100 * time.Millisecond):
			t.Fatalf("Subscriber %d did not receive pause signal", i)
		}
	}

	// Resume the system.
	Resume()

	// Wait for all subscribers to acknowledge the resume
	for i := range numSubscribers {
		select {
		case <-resumedChans[i]:
			// Subscriber resumed
		case <-time.After(100 * time.Millisecond):
			t.Fatalf("Subscriber %d did not resume", i)
		}
	}

	wg.Wait()
}

func TestSubscriberUnsubscribeDuringPause(t *testing.T) {
	stats.Init()
	manager = &pauseManager{}
	var wg sync.WaitGroup
	wg.Add(1)

	subscribedCh := make(chan struct{})
	pausedCh := make(chan struct{})

	go func() {
		defer wg.Done()
		controlChans := Subscribe()
		defer Unsubscribe(controlChans)

		subscribedCh <- struct{}{}

		for {
			select {
			case <-controlChans.PauseCh:
				// Signal that we have paused
				pausedCh <- struct{}{}
				// Unsubscribe during pause.
				Unsubscribe(controlChans)
				return
			default:
				time.Sleep(10 * time.Millisecond) // Simulate work.
			}
		}
	}()

	// Wait for the subscriber to subscribe
	<-subscribedCh

	// Pause the system.
	Pause()

	// Wait for the subscriber to acknowledge the pause
	select {
	case <-pausedCh:
		// Subscriber paused and unsubscribed
	case <-time.After(100 * time.Millisecond):
		t.Fatal("Subscriber did not receive pause signal")
	}

	// Resume the system.
	Resume()
	time.Sleep(100 * time.Millisecond) // Allow any processing.

	wg.Wait()
}

func TestNoSubscribers(t *testing.T) {
	stats.Init()
	manager = &pauseManager{}
	// Call Pause() and Resume() when there are no subscribers.
	// If no panic occurs, the test passes.
	Pause()
	Resume()
}

func TestSubscribeAfterPause(t *testing.T) {
	// A subscriber arriving while the system is already paused must see
	// the pause immediately instead of running through it.
	stats.Init()
	manager = &pauseManager{}

	Pause("maintenance")

	if !IsPaused() {
		t.Fatal("manager should report paused")
	}
	if GetMessage() != "maintenance" {
		t.Fatalf("message = %q, want %q", GetMessage(), "maintenance")
	}

	controlChans := Subscribe()
	defer Unsubscribe(controlChans)

	var msg string
	select {
	case msg = <-controlChans.PauseCh:
		// Late subscriber got the buffered signal.
	case <-time.After(100 * time.Millisecond):
		t.Fatal("late subscriber did not receive the pause signal")
	}
	if msg != "maintenance" {
		t.Fatalf("pause message = %q, want %q", msg, "maintenance")
	}

	// Complete the handshake so Resume can finish.
	done := make(chan struct{})
	go func() {
		controlChans.ResumeCh <- struct{}{}
		close(done)
	}()

	Resume()
	<-done

	if IsPaused() {
		t.Fatal("manager should not report paused after Resume")
	}
	if GetMessage() != "" {
		t.Fatalf("message should clear on resume, got %q", GetMessage())
	}
}

func TestPauseTwiceKeepsFirstMessage(t *testing.T) {
	stats.Init()
	manager = &pauseManager{}

	Pause("first")
	Pause("second")

	if GetMessage() != "first" {
		t.Fatalf("message = %q, want %q", GetMessage(), "first")
	}

	Resume()
}
