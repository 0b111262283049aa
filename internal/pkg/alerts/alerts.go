// Package alerts carries operator notifications out of the agent. The
// orchestrator publishes events, a bounded dispatcher delivers them
// through whichever notifier is configured, and a saturated queue drops
// rather than stalls the cycle.
package alerts

import (
	"fmt"
	"sync"

	"github.com/remeh/sizedwaitgroup"
	"github.com/sourcerie/affut/internal/pkg/log"
	"github.com/sourcerie/affut/internal/pkg/stats"
)

type Kind string

const (
	KindSelectorExhausted Kind = "selector_exhausted"
	KindRestriction       Kind = "restriction"
	KindQuotaReached      Kind = "quota_reached"
	KindCycleFailed       Kind = "cycle_failed"
	KindStoreDegraded     Kind = "store_degraded"
)

type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Event is one operator notification.
type Event struct {
	Kind     Kind
	Severity Severity
	Message  string
	Fields   map[string]string
}

// Notifier delivers one event to the operator. Implementations carry
// their own transport timeouts.
type Notifier interface {
	Notify(ev Event) error
}

// Dispatcher decouples the cycle from notifier latency: Publish never
// blocks, delivery runs on a bounded pool, and repeat selector
// exhaustion within one cycle collapses to a single event.
type Dispatcher struct {
	notifier Notifier
	queue    chan Event
	logger   *log.FieldedLogger

	wg   sync.WaitGroup
	swg  sizedwaitgroup.SizedWaitGroup
	stop chan struct{}
	once sync.Once

	mu   sync.Mutex
	seen map[string]struct{}
}

func NewDispatcher(notifier Notifier, queueSize, maxConcurrent int) *Dispatcher {
	if queueSize <= 0 {
		queueSize = 16
	}
	if maxConcurrent <= 0 {
		maxConcurrent = 2
	}

	return &Dispatcher{
		notifier: notifier,
		queue:    make(chan Event, queueSize),
		logger: log.NewFieldedLogger(&log.Fields{
			"component": "alerts.dispatcher",
		}),
		swg:  sizedwaitgroup.New(maxConcurrent),
		stop: make(chan struct{}),
		seen: make(map[string]struct{}),
	}
}

func (d *Dispatcher) Start() {
	d.wg.Add(1)
	go d.run()
}

// Stop drains the queue, waits for in-flight deliveries and returns.
// Events published after Stop are discarded.
func (d *Dispatcher) Stop() {
	d.once.Do(func() { close(d.stop) })
	d.wg.Wait()
}

// Publish enqueues an event without blocking. When the queue is full the
// event is dropped and counted, a slow notifier must never hold up a
// cycle.
func (d *Dispatcher) Publish(ev Event) {
	if d.duplicate(ev) {
		return
	}

	select {
	case <-d.stop:
		return
	default:
	}

	select {
	case d.queue <- ev:
	default:
		stats.AlertsDroppedIncr()
		d.logger.Warn("alert queue saturated, dropping event", "kind", string(ev.Kind))
	}
}

// BeginCycle resets the selector-exhaustion dedup window. The
// orchestrator calls it at the top of every cycle.
func (d *Dispatcher) BeginCycle() {
	d.mu.Lock()
	d.seen = make(map[string]struct{})
	d.mu.Unlock()
}

// duplicate reports whether this event already fired this cycle. Only
// selector exhaustion dedupes: one rotten element can fail on every
// keyword of a batch and the operator needs to hear it once.
func (d *Dispatcher) duplicate(ev Event) bool {
	if ev.Kind != KindSelectorExhausted {
		return false
	}

	key := ev.Fields["element"]

	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.seen[key]; ok {
		return true
	}
	d.seen[key] = struct{}{}

	return false
}

func (d *Dispatcher) run() {
	defer d.wg.Done()

	for {
		select {
		case ev := <-d.queue:
			d.dispatch(ev)
		case <-d.stop:
			for {
				select {
				case ev := <-d.queue:
					d.dispatch(ev)
				default:
					d.swg.Wait()
					return
				}
			}
		}
	}
}

func (d *Dispatcher) dispatch(ev Event) {
	d.swg.Add()
	go func(ev Event) {
		defer d.swg.Done()

		if err := d.notifier.Notify(ev); err != nil {
			d.logger.Warn("alert delivery failed", "kind", string(ev.Kind), "err", err.Error())
		}
	}(ev)
}

// Constructors below keep kinds, severities and field names consistent
// wherever events are raised.

func SelectorExhausted(element string) Event {
	return Event{
		Kind:     KindSelectorExhausted,
		Severity: SeverityCritical,
		Message:  "All extraction strategies failed, the page layout likely changed.",
		Fields:   map[string]string{"element": element},
	}
}

func RestrictionDetected(keyword, screenshot string) Event {
	fields := map[string]string{"keyword": keyword}
	if screenshot != "" {
		fields["screenshot"] = screenshot
	}

	return Event{
		Kind:     KindRestriction,
		Severity: SeverityCritical,
		Message:  "The platform is restricting the account, collection backs off.",
		Fields:   fields,
	}
}

func QuotaReached(date string, accepted int) Event {
	return Event{
		Kind:     KindQuotaReached,
		Severity: SeverityInfo,
		Message:  "Daily acceptance quota reached, collection resumes tomorrow.",
		Fields: map[string]string{
			"date":     date,
			"accepted": fmt.Sprintf("%d", accepted),
		},
	}
}

func CycleFailed(cycle uint64, err error) Event {
	return Event{
		Kind:     KindCycleFailed,
		Severity: SeverityWarning,
		Message:  "A collection cycle did not complete.",
		Fields: map[string]string{
			"cycle": fmt.Sprintf("%d", cycle),
			"err":   err.Error(),
		},
	}
}

func StoreDegraded(err error) Event {
	return Event{
		Kind:     KindStoreDegraded,
		Severity: SeverityCritical,
		Message:  "The store is failing writes, accepted posts may be lost.",
		Fields:   map[string]string{"err": err.Error()},
	}
}
