package live

import (
	"bytes"
	"sync"
	"time"
)

const pollInterval = time.Second

// Source produces one serialized snapshot frame.
type Source func() ([]byte, error)

var (
	sourceMu sync.RWMutex
	source   Source
)

// SetSource wires the snapshot producer. The API server sets it before
// the route is reachable.
func SetSource(s Source) {
	sourceMu.Lock()
	source = s
	sourceMu.Unlock()
}

func currentSource() Source {
	sourceMu.RLock()
	defer sourceMu.RUnlock()

	return source
}

// Poller drives the stream: while at least one client is connected it
// polls the source and broadcasts frames that differ from the previous
// one, so idle periods stay silent on the wire.
type Poller struct {
	hub      *Hub
	interval time.Duration

	mu   sync.Mutex
	stop chan struct{}
	last []byte
}

func NewPoller(hub *Hub, interval time.Duration) *Poller {
	return &Poller{
		hub:      hub,
		interval: interval,
	}
}

// Start begins the polling loop. Starting a running poller is a no-op.
func (p *Poller) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stop != nil {
		return
	}

	p.stop = make(chan struct{})
	go p.run(p.stop)
}

// Stop ends the polling loop.
func (p *Poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stop != nil {
		close(p.stop)
		p.stop = nil
	}
}

func (p *Poller) run(stop chan struct{}) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if p.hub.ClientCount() == 0 {
				continue
			}
			p.poll()
		}
	}
}

func (p *Poller) poll() {
	src := currentSource()
	if src == nil {
		return
	}

	frame, err := src()
	if err != nil {
		return
	}

	p.mu.Lock()
	same := bytes.Equal(frame, p.last)
	if !same {
		p.last = frame
	}
	p.mu.Unlock()

	if !same {
		p.hub.Send(frame)
	}
}

var (
	globalPoller *Poller
	pollerOnce   sync.Once
)

// GetPoller returns the process-wide poller.
func GetPoller() *Poller {
	pollerOnce.Do(func() {
		globalPoller = NewPoller(globalHub, pollInterval)
	})
	return globalPoller
}
