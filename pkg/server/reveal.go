package server

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/btriapitsyn/openchamber-sub004/pkg/freshness"
	"github.com/btriapitsyn/openchamber-sub004/pkg/reveal"
	"github.com/btriapitsyn/openchamber-sub004/pkg/store"
	"github.com/btriapitsyn/openchamber-sub004/pkg/transcript"
)

// Reveal directives pushed to WebSocket clients. The browser executes the
// animation and reports ticks, completion, and heights back over HTTP.
const (
	eventRevealCandidate = store.EventType("reveal.candidate")
	eventRevealCancelled = store.EventType("reveal.cancelled")
	eventRevealReasoning = store.EventType("reveal.reasoning")
	eventRevealStart     = store.EventType("reveal.start")
	eventRevealChunk     = store.EventType("reveal.chunk")
	eventRevealComplete  = store.EventType("reveal.complete")
	eventRevealHeight    = store.EventType("reveal.height")
)

// revealDriver feeds the animation coordinator from store events and turns
// its callbacks into directives for connected clients.
type revealDriver struct {
	store *store.Store
	fresh *freshness.Service
	hub   *wsHub
	coord *reveal.Coordinator

	// current identifies the message being coordinated. The coordinator
	// invokes callbacks synchronously under its own lock, so the id set just
	// before a call is the one the callback reports.
	mu      sync.Mutex
	session string
	message string
}

func newRevealDriver(st *store.Store, fresh *freshness.Service, hub *wsHub) *revealDriver {
	d := &revealDriver{store: st, fresh: fresh, hub: hub}
	d.coord = reveal.NewCoordinator(reveal.ScrollCallbacks{
		StreamingCandidate:   func() { d.broadcast(eventRevealCandidate, nil) },
		ReservationCancelled: func() { d.broadcast(eventRevealCancelled, nil) },
		ReasoningBlock:       func() { d.broadcast(eventRevealReasoning, nil) },
		AnimationStart:       func() { d.broadcast(eventRevealStart, nil) },
		Chunk:                func() { d.broadcast(eventRevealChunk, nil) },
		Complete:             func() { d.broadcast(eventRevealComplete, nil) },
		AnimatedHeightChange: func(height int) {
			d.broadcast(eventRevealHeight, map[string]any{"height": height})
		},
	}, st)
	return d
}

func (d *revealDriver) broadcast(eventType store.EventType, data map[string]any) {
	d.mu.Lock()
	session, message := d.session, d.message
	d.mu.Unlock()
	d.hub.Broadcast(store.Event{
		Type:      eventType,
		Timestamp: time.Now(),
		SessionID: session,
		MessageID: message,
		Data:      data,
	})
}

func (d *revealDriver) setCurrent(sessionID, messageID string) {
	d.mu.Lock()
	d.session = sessionID
	d.message = messageID
	d.mu.Unlock()
}

// handleStoreEvent re-observes a message whenever its store snapshot changes.
func (d *revealDriver) handleStoreEvent(ev store.Event) {
	switch ev.Type {
	case store.EventMessageUpdated, store.EventPartUpdated:
	default:
		return
	}
	if ev.SessionID == "" || ev.MessageID == "" {
		return
	}
	d.observe(ev.SessionID, ev.MessageID)
}

func (d *revealDriver) observe(sessionID, messageID string) {
	msg, ok := d.store.Message(sessionID, messageID)
	if !ok {
		return
	}
	parts := d.store.Parts(sessionID, messageID)

	hasTool, hasReasoning := false, false
	for _, p := range parts {
		switch p.Kind {
		case transcript.PartTool:
			hasTool = true
		case transcript.PartReasoning:
			hasReasoning = true
		}
	}

	in := reveal.Input{
		SessionID:    sessionID,
		MessageID:    messageID,
		IsUser:       msg.Role == transcript.RoleUser || d.store.IsPendingUserMessage(messageID),
		Fresh:        d.fresh.ShouldAnimateMessage(msg, sessionID),
		HasToolParts: hasTool,
		Coordinating: transcript.ShouldCoordinate(parts),
		HasReasoning: hasReasoning,
		Phase:        d.store.StreamState(sessionID, messageID).Phase,
		Settled:      d.store.IsStreamSettled(messageID),
	}
	d.setCurrent(sessionID, messageID)
	d.coord.Observe(in)
}

func (d *revealDriver) chunk(sessionID, messageID string) {
	d.setCurrent(sessionID, messageID)
	d.coord.Chunk(messageID)
}

func (d *revealDriver) complete(sessionID, messageID string) {
	d.setCurrent(sessionID, messageID)
	d.coord.Complete(messageID)
}

func (d *revealDriver) height(sessionID, messageID string, height int) {
	d.setCurrent(sessionID, messageID)
	d.coord.NotifyHeight(messageID, height)
}

func (d *revealDriver) release(messageID string) {
	d.coord.Release(messageID)
}

func (d *revealDriver) close() {
	d.coord.Close()
}

func (s *Server) revealRoutes(r chi.Router) {
	r.Post("/{sessionID}/{messageID}/chunk", s.handleRevealChunk)
	r.Post("/{sessionID}/{messageID}/complete", s.handleRevealComplete)
	r.Post("/{sessionID}/{messageID}/height", s.handleRevealHeight)
	r.Delete("/{messageID}", s.handleRevealRelease)
}

func revealParams(r *http.Request) (sessionID, messageID string, ok bool) {
	sessionID = strings.TrimSpace(chi.URLParam(r, "sessionID"))
	messageID = strings.TrimSpace(chi.URLParam(r, "messageID"))
	return sessionID, messageID, sessionID != "" && messageID != ""
}

func (s *Server) handleRevealChunk(w http.ResponseWriter, r *http.Request) {
	sessionID, messageID, ok := revealParams(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "session and message ids required")
		return
	}
	s.reveal.chunk(sessionID, messageID)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRevealComplete(w http.ResponseWriter, r *http.Request) {
	sessionID, messageID, ok := revealParams(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "session and message ids required")
		return
	}
	s.reveal.complete(sessionID, messageID)
	w.WriteHeader(http.StatusNoContent)
}

type revealHeightRequest struct {
	Height int `json:"height"`
}

func (s *Server) handleRevealHeight(w http.ResponseWriter, r *http.Request) {
	sessionID, messageID, ok := revealParams(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "session and message ids required")
		return
	}
	var req revealHeightRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	s.reveal.height(sessionID, messageID, req.Height)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRevealRelease(w http.ResponseWriter, r *http.Request) {
	messageID := strings.TrimSpace(chi.URLParam(r, "messageID"))
	if messageID == "" {
		writeError(w, http.StatusBadRequest, "message id required")
		return
	}
	s.reveal.release(messageID)
	w.WriteHeader(http.StatusNoContent)
}
