package handlers

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"server/internal/notify"
)

const (
	writeWait    = 10 * time.Second
	pingInterval = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// TargetEvents upgrades to a WebSocket and streams the target's change feed.
// The current state is sent first, so a client that connects mid-generation
// starts from truth; after that, every committed asset change arrives as the
// same document shape the status read returns.
func (a *App) TargetEvents(w http.ResponseWriter, r *http.Request) {
	target, err := a.loadOwned(r)
	if err != nil {
		a.domainError(w, err)
		return
	}

	// Subscribe before the snapshot read so no committed change can fall
	// between the two.
	events, cancel, err := a.Broker.Subscribe(r.Context(), target.ID)
	if err != nil {
		a.domainError(w, err)
		return
	}
	defer cancel()

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(notify.EventFromTarget(target)); err != nil {
		return
	}

	ping := time.NewTicker(pingInterval)
	defer ping.Stop()

	for {
		select {
		case <-closed:
			return
		case <-r.Context().Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}
