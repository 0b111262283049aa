// Package live streams agent state over WebSocket: one JSON frame each
// time the status snapshot changes, so a dashboard can follow the agent
// without hammering the status endpoint.
package live

import "sync"

// Hub fans frames out to connected clients. Sending never blocks: a slow
// client skips frames instead of stalling the poller.
type Hub struct {
	mu      sync.RWMutex
	clients map[chan []byte]struct{}

	frames chan []byte
	stop   chan struct{}
	once   sync.Once
	wg     sync.WaitGroup
}

func NewHub() *Hub {
	h := &Hub{
		clients: make(map[chan []byte]struct{}),
		frames:  make(chan []byte, 64),
		stop:    make(chan struct{}),
	}

	h.wg.Add(1)
	go h.run()
	return h
}

// Register adds a client and returns its frame channel.
func (h *Hub) Register() chan []byte {
	ch := make(chan []byte, 64)

	h.mu.Lock()
	h.clients[ch] = struct{}{}
	h.mu.Unlock()

	return ch
}

// Unregister removes a client and closes its channel.
func (h *Hub) Unregister(ch chan []byte) {
	h.mu.Lock()
	delete(h.clients, ch)
	h.mu.Unlock()

	close(ch)
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.clients)
}

// Send queues one frame for broadcast, dropping it when the queue is
// full.
func (h *Hub) Send(frame []byte) {
	select {
	case h.frames <- frame:
	default:
	}
}

func (h *Hub) run() {
	defer h.wg.Done()

	for {
		select {
		case <-h.stop:
			return
		case frame := <-h.frames:
			h.broadcast(frame)
		}
	}
}

func (h *Hub) broadcast(frame []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for ch := range h.clients {
		select {
		case ch <- frame:
		default:
		}
	}
}

// Close shuts the broadcaster down.
func (h *Hub) Close() {
	h.once.Do(func() {
		close(h.stop)
	})
	h.wg.Wait()
}

var globalHub = NewHub()

// GetHub returns the process-wide hub.
func GetHub() *Hub {
	return globalHub
}
