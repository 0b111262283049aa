package alerts

import (
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/sourcerie/affut/internal/pkg/stats"
)

func TestMain(m *testing.M) {
	stats.Init()
	goleak.VerifyTestMain(m)
}

type captureNotifier struct {
	mu     sync.Mutex
	events []Event
	delay  time.Duration
}

func (c *captureNotifier) Notify(ev Event) error {
	if c.delay > 0 {
		time.Sleep(c.delay)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)

	return nil
}

func (c *captureNotifier) delivered() []Event {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]Event, len(c.events))
	copy(out, c.events)
	return out
}

func TestDispatcherDeliversPublishedEvents(t *testing.T) {
	capture := &captureNotifier{}
	d := NewDispatcher(capture, 8, 2)
	d.Start()

	d.Publish(QuotaReached("2026-06-15", 8))
	d.Publish(CycleFailed(3, errors.New("browser crashed")))
	d.Stop()

	got := capture.delivered()
	if len(got) != 2 {
		t.Fatalf("delivered %d events, want 2", len(got))
	}

	kinds := map[Kind]bool{}
	for _, ev := range got {
		kinds[ev.Kind] = true
	}
	if !kinds[KindQuotaReached] || !kinds[KindCycleFailed] {
		t.Errorf("unexpected kinds delivered: %v", kinds)
	}
}

func TestPublishDropsWhenQueueFull(t *testing.T) {
	capture := &captureNotifier{}
	// Not started: nothing drains, so the queue fills and overflow drops.
	d := NewDispatcher(capture, 2, 1)

	before := stats.AlertsDroppedGet()
	for i := uint64(0); i < 5; i++ {
		d.Publish(CycleFailed(i, errors.New("boom")))
	}

	if dropped := stats.AlertsDroppedGet() - before; dropped != 3 {
		t.Errorf("dropped %d events, want 3", dropped)
	}

	// The two queued events still go out once delivery starts.
	d.Start()
	d.Stop()

	if got := len(capture.delivered()); got != 2 {
		t.Errorf("delivered %d events after drain, want 2", got)
	}
}

func TestSelectorExhaustedDedupedWithinCycle(t *testing.T) {
	capture := &captureNotifier{}
	d := NewDispatcher(capture, 8, 1)
	d.Start()
	d.BeginCycle()

	d.Publish(SelectorExhausted("author"))
	d.Publish(SelectorExhausted("author"))
	d.Publish(SelectorExhausted("post"))
	d.Stop()

	if got := len(capture.delivered()); got != 2 {
		t.Errorf("delivered %d events, want 2 (one per element)", got)
	}
}

func TestBeginCycleResetsDedup(t *testing.T) {
	capture := &captureNotifier{}
	d := NewDispatcher(capture, 8, 1)
	d.Start()

	d.BeginCycle()
	d.Publish(SelectorExhausted("author"))
	d.BeginCycle()
	d.Publish(SelectorExhausted("author"))
	d.Stop()

	if got := len(capture.delivered()); got != 2 {
		t.Errorf("delivered %d events across two cycles, want 2", got)
	}
}

func TestStopWaitsForInFlightDelivery(t *testing.T) {
	capture := &captureNotifier{delay: 50 * time.Millisecond}
	d := NewDispatcher(capture, 8, 2)
	d.Start()

	d.Publish(StoreDegraded(errors.New("disk full")))
	d.Stop()

	if got := len(capture.delivered()); got != 1 {
		t.Errorf("Stop returned before delivery finished, delivered %d", got)
	}
}

func TestPublishAfterStopIsDiscarded(t *testing.T) {
	capture := &captureNotifier{}
	d := NewDispatcher(capture, 8, 1)
	d.Start()
	d.Stop()

	d.Publish(QuotaReached("2026-06-15", 8))

	if got := len(capture.delivered()); got != 0 {
		t.Errorf("delivered %d events after Stop, want 0", got)
	}
}

func TestFormatHTML(t *testing.T) {
	got := formatHTML(Event{
		Kind:     KindQuotaReached,
		Severity: SeverityInfo,
		Message:  "Daily acceptance quota reached, collection resumes tomorrow.",
		Fields:   map[string]string{"date": "2026-06-15", "accepted": "8"},
	})

	want := "ℹ️ <b>Daily quota reached</b>\n" +
		"Daily acceptance quota reached, collection resumes tomorrow.\n" +
		"<b>accepted</b>: 8\n" +
		"<b>date</b>: 2026-06-15"

	if got != want {
		t.Errorf("formatHTML:\n%s\nwant:\n%s", got, want)
	}
}

func TestFormatHTMLEscapesUserText(t *testing.T) {
	got := formatHTML(Event{
		Kind:     KindCycleFailed,
		Severity: SeverityWarning,
		Message:  "selector <post> failed & retried",
	})

	if want := "selector &lt;post&gt; failed &amp; retried"; !strings.Contains(got, want) {
		t.Errorf("formatHTML did not escape markup: %s", got)
	}
}
