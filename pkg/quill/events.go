package quill

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The browser UI is served from the same origin in production; demo
	// setups connect from dev servers on other ports.
	CheckOrigin: func(r *http.Request) bool { return true },
}

const (
	writeWait  = 10 * time.Second
	pingPeriod = 30 * time.Second
)

// handleEvents upgrades to a websocket and forwards the notebook's
// reconciled change events to the UI as JSON. The stream carries only
// changes made by other sessions of the same user; the UI's own mutations
// are answered synchronously with a fresh list.
//
// Each connection registers its own event subscription, so several tabs of
// the same user all see every event.
func (a *App) handleEvents(w http.ResponseWriter, r *http.Request) {
	nb := a.requireNotebook(w)
	if nb == nil {
		return
	}

	events, cancel := nb.SubscribeEvents()
	defer cancel()

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		a.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	closed := make(chan struct{})
	go func() {
		// Drain client frames so close and ping/pong processing works;
		// the UI never sends application data.
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				// Notebook torn down, typically on sign-out.
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(ev); err != nil {
				a.log.Debug().Err(err).Msg("events connection write failed")
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-closed:
			return
		case <-r.Context().Done():
			return
		}
	}
}
