package server

import (
	"log"
	"net/http"
	"time"

	"github.com/ayusman/gesturecast/internal/overlay"
	"github.com/gorilla/websocket"
)

const (
	eventsWriteWait = 10 * time.Second
	eventsPongWait  = 60 * time.Second
	eventsPingEvery = (eventsPongWait * 9) / 10
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow local connections
	},
}

// EventsHandler pushes display snapshots to browsers over WebSocket.
type EventsHandler struct {
	display *overlay.Display
	done    <-chan struct{}
}

// NewEventsHandler creates an EventsHandler for display. Connections are
// closed when done is closed.
func NewEventsHandler(display *overlay.Display, done <-chan struct{}) *EventsHandler {
	return &EventsHandler{display: display, done: done}
}

// ServeHTTP upgrades the request and sends the current snapshot followed by
// every change. A slow client only ever receives the newest snapshot.
func (h *EventsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("websocket upgrade error: %v", err)
		return
	}
	defer conn.Close()

	updates := make(chan overlay.Snapshot, 1)
	unsubscribe := h.display.Subscribe(func(s overlay.Snapshot) {
		select {
		case updates <- s:
			return
		default:
		}
		// Replace the pending snapshot with the newer one.
		select {
		case <-updates:
		default:
		}
		select {
		case updates <- s:
		default:
		}
	})
	defer unsubscribe()

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		conn.SetReadDeadline(time.Now().Add(eventsPongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(eventsPongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	if err := writeSnapshot(conn, h.display.Snapshot()); err != nil {
		return
	}

	ping := time.NewTicker(eventsPingEvery)
	defer ping.Stop()

	for {
		select {
		case snap := <-updates:
			if err := writeSnapshot(conn, snap); err != nil {
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(eventsWriteWait)); err != nil {
				return
			}
		case <-closed:
			return
		case <-h.done:
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
				time.Now().Add(time.Second))
			return
		}
	}
}

func writeSnapshot(conn *websocket.Conn, s overlay.Snapshot) error {
	conn.SetWriteDeadline(time.Now().Add(eventsWriteWait))
	return conn.WriteJSON(s)
}
