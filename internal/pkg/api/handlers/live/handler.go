package live

import (
	"net/http"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
)

// Handler upgrades the connection and streams frames until either side
// closes. The first client starts the poller, the last one leaving stops
// it.
func Handler(w http.ResponseWriter, r *http.Request) {
	conn, _, _, err := ws.UpgradeHTTP(r, w)
	if err != nil {
		http.Error(w, "WebSocket upgrade failed", http.StatusBadRequest)
		return
	}
	defer conn.Close()

	hub := GetHub()
	poller := GetPoller()

	ch := hub.Register()
	if hub.ClientCount() == 1 {
		poller.Start()
	}

	defer func() {
		hub.Unregister(ch)
		if hub.ClientCount() == 0 {
			poller.Stop()
		}
	}()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for frame := range ch {
			if err := wsutil.WriteServerMessage(conn, ws.OpText, frame); err != nil {
				return
			}
		}
	}()

	// Reads only to notice the client going away.
	go func() {
		for {
			if _, _, err := wsutil.ReadClientData(conn); err != nil {
				conn.Close()
				return
			}
		}
	}()

	<-done
}
