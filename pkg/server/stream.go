package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"nhooyr.io/websocket"

	"github.com/btriapitsyn/openchamber-sub004/pkg/logging"
	"github.com/btriapitsyn/openchamber-sub004/pkg/store"
)

const heartbeatInterval = 30 * time.Second

// handleEvents provides an SSE relay of store events.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	events, unsub := s.store.Hub().Subscribe()
	defer unsub()

	metricSSEStreams.Inc()
	defer metricSSEStreams.Dec()

	ctx := r.Context()

	// Initial connection event so clients can confirm the relay is live.
	connected := store.Event{Type: store.EventStatus, Timestamp: time.Now()}
	if !writeSSE(w, flusher, connected) {
		return
	}

	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			heartbeat := store.Event{Type: store.EventStatus, Timestamp: time.Now()}
			if !writeSSE(w, flusher, heartbeat) {
				return
			}
		case event, ok := <-events:
			if !ok {
				return
			}
			if !writeSSE(w, flusher, event) {
				return
			}
		}
	}
}

func writeSSE(w http.ResponseWriter, flusher http.Flusher, event store.Event) bool {
	data, err := json.Marshal(event)
	if err != nil {
		return true
	}
	if _, err := w.Write([]byte("data: " + string(data) + "\n\n")); err != nil {
		return false
	}
	flusher.Flush()
	return true
}

// handleWebSocket upgrades the connection and streams store events until the
// client goes away. Inbound frames are read and discarded to service pings.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		// Accept has already written its own error response.
		if s.log != nil {
			_ = s.log.Debug(logging.CategoryServer, "ws_accept_failed", err.Error(), nil)
		}
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "connection closed")

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	client := s.hub.register(conn)
	defer s.hub.removeClient(client)

	metricWSClients.Inc()
	defer metricWSClients.Dec()

	go func() {
		defer cancel()
		for {
			if _, _, err := conn.Read(ctx); err != nil {
				return
			}
		}
	}()

	if err := client.writeLoop(ctx); err != nil && ctx.Err() == nil && s.log != nil {
		_ = s.log.Debug(logging.CategoryServer, "ws_write_failed", err.Error(), nil)
	}
}
