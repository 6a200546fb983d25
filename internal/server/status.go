package server

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// statusHub fans log lines and periodic health snapshots out to every
// connected /ws/status client, generalizing the single-writer log
// bridge pattern to a broadcast registry.
type statusHub struct {
	mu      sync.Mutex
	clients map[*websocket.Conn]chan StatusEvent
	log     zerolog.Logger
}

func newStatusHub(log zerolog.Logger) *statusHub {
	return &statusHub{
		clients: make(map[*websocket.Conn]chan StatusEvent),
		log:     log,
	}
}

func (h *statusHub) broadcast(evt StatusEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.clients {
		select {
		case ch <- evt:
		default:
			// slow consumer, drop the event rather than block the feed
		}
	}
}

func (h *statusHub) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	ch := make(chan StatusEvent, 32)
	h.mu.Lock()
	h.clients[conn] = ch
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		delete(h.clients, conn)
		h.mu.Unlock()
		conn.Close()
	}()

	// drain incoming control frames (pings/close) on their own
	// goroutine so a silent client doesn't wedge the writer below.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case evt := <-ch:
			conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := conn.WriteJSON(evt); err != nil {
				return
			}
		case <-closed:
			return
		}
	}
}
