// Package server exposes the session store over HTTP: rendered transcripts,
// a live event stream (SSE and WebSocket), optimistic message submission,
// push subscription management, and Prometheus metrics.
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	webpush "github.com/SherClockHolmes/webpush-go"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/btriapitsyn/openchamber-sub004/pkg/clipboard"
	"github.com/btriapitsyn/openchamber-sub004/pkg/freshness"
	"github.com/btriapitsyn/openchamber-sub004/pkg/logging"
	"github.com/btriapitsyn/openchamber-sub004/pkg/metadata"
	"github.com/btriapitsyn/openchamber-sub004/pkg/notify"
	"github.com/btriapitsyn/openchamber-sub004/pkg/store"
	"github.com/btriapitsyn/openchamber-sub004/pkg/theme"
	"github.com/btriapitsyn/openchamber-sub004/pkg/transcript"
)

// Config configures the web server.
type Config struct {
	// Address to listen on (default: :7673)
	Address string

	Store    *store.Store
	Resolver *metadata.Resolver
	Logger   *logging.Logger

	// Push manages browser push subscriptions (optional).
	Push *notify.WebPushAdapter

	// Clipboard enables host-side copy of message text (optional).
	Clipboard *clipboard.Writer

	// Theme drives the highlight style table. Defaults to the built-in theme.
	Theme *theme.Theme

	// Freshness decides which messages animate. Defaults to a fresh service.
	Freshness *freshness.Service

	// IncludeReasoning controls whether reasoning parts appear in rendered
	// transcripts.
	IncludeReasoning bool
}

// Server is the OpenChamber web server.
type Server struct {
	cfg        Config
	store      *store.Store
	resolver   *metadata.Resolver
	push       *notify.WebPushAdapter
	clip       *clipboard.Writer
	log        *logging.Logger
	hub        *wsHub
	reveal     *revealDriver
	markdown   goldmark.Markdown
	httpServer *http.Server

	themeMu sync.RWMutex
	theme   *theme.Theme
}

// New creates the server. Store and Resolver must be non-nil.
func New(cfg Config) (*Server, error) {
	if cfg.Store == nil || cfg.Resolver == nil {
		return nil, fmt.Errorf("server: store and resolver are required")
	}
	if cfg.Address == "" {
		cfg.Address = ":7673"
	}
	if cfg.Freshness == nil {
		cfg.Freshness = freshness.NewService()
	}
	if cfg.Theme == nil {
		cfg.Theme = theme.Default()
	}
	s := &Server{
		cfg:      cfg,
		store:    cfg.Store,
		resolver: cfg.Resolver,
		push:     cfg.Push,
		clip:     cfg.Clipboard,
		log:      cfg.Logger,
		hub:      newWSHub(),
		markdown: goldmark.New(goldmark.WithExtensions(extension.GFM)),
		theme:    cfg.Theme,
	}
	s.reveal = newRevealDriver(cfg.Store, cfg.Freshness, s.hub)
	s.httpServer = &http.Server{
		Addr:              cfg.Address,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s, nil
}

// Routes builds the chi router.
func (s *Server) Routes() http.Handler {
	router := chi.NewRouter()

	router.Get("/healthz", s.handleHealthz)
	router.Get("/metrics", s.handleMetrics)
	router.Get("/ws", s.handleWebSocket)

	router.Route("/api", func(r chi.Router) {
		r.Get("/events", s.handleEvents)
		r.Get("/sessions/{sessionID}/transcript", s.handleTranscript)
		r.Post("/sessions/{sessionID}/messages", s.handlePostMessage)
		r.Post("/sessions/{sessionID}/messages/{messageID}/copy", s.handleCopyMessage)
		r.Route("/push", func(r chi.Router) {
			r.Post("/subscriptions", s.handlePushSubscribe)
			r.Delete("/subscriptions/{id}", s.handlePushUnsubscribe)
		})
		r.Route("/reveal", s.revealRoutes)
		r.Post("/highlight", s.handleHighlight)
	})
	return router
}

// Start runs the HTTP server until ctx is cancelled, then shuts down
// gracefully. Store hub events are relayed to WebSocket clients for the
// lifetime of the server.
func (s *Server) Start(ctx context.Context) error {
	events, unsub := s.store.Hub().Subscribe()
	defer unsub()
	defer s.reveal.close()
	go func() {
		for ev := range events {
			s.hub.Broadcast(ev)
			s.reveal.handleStoreEvent(ev)
		}
	}()

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	}
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// transcriptMessage is one rendered message in the transcript response.
type transcriptMessage struct {
	ID         string                 `json:"id"`
	Role       transcript.Role        `json:"role"`
	IsUser     bool                   `json:"isUser"`
	AgentName  string                 `json:"agentName,omitempty"`
	ModelName  string                 `json:"modelName,omitempty"`
	ProviderID string                 `json:"providerId,omitempty"`
	Completed  bool                   `json:"completed"`
	Phase      transcript.Phase       `json:"phase"`
	Segments   []renderedSegment      `json:"segments"`
	CopyText   string                 `json:"copyText,omitempty"`
	Time       transcript.MessageTime `json:"time"`
}

// renderedSegment pairs a composed segment with its HTML rendering.
type renderedSegment struct {
	transcript.Segment
	HTML string `json:"html,omitempty"`
}

func (s *Server) handleTranscript(w http.ResponseWriter, r *http.Request) {
	sessionID := strings.TrimSpace(chi.URLParam(r, "sessionID"))
	if sessionID == "" {
		writeError(w, http.StatusBadRequest, "session id required")
		return
	}

	messages := s.store.Messages(sessionID)
	out := make([]transcriptMessage, 0, len(messages))
	for _, msg := range messages {
		parts := s.store.Parts(sessionID, msg.ID)
		visible := transcript.Visible(parts, transcript.VisibilityOptions{
			IncludeReasoning: s.cfg.IncludeReasoning,
		})
		completed := transcript.IsMessageCompleted(msg, parts)
		phase := s.store.StreamState(sessionID, msg.ID).Phase
		segments := transcript.Compose(visible, completed, phase, s.cfg.IncludeReasoning)

		var prev *transcript.Message
		if p, ok := s.store.PrecedingMessage(sessionID, msg.ID); ok {
			prev = &p
		}
		resolved := s.resolver.Resolve(msg, prev)

		rendered := make([]renderedSegment, 0, len(segments))
		for _, seg := range segments {
			rs := renderedSegment{Segment: seg}
			if seg.Part.Kind == transcript.PartText {
				rs.HTML = s.renderMarkdown(seg.Part.Text)
			}
			rendered = append(rendered, rs)
		}

		out = append(out, transcriptMessage{
			ID:         msg.ID,
			Role:       msg.Role,
			IsUser:     resolved.IsUser,
			AgentName:  resolved.AgentName,
			ModelName:  resolved.ModelName,
			ProviderID: resolved.ProviderID,
			Completed:  completed,
			Phase:      phase,
			Segments:   rendered,
			CopyText:   transcript.CopyText(visible),
			Time:       msg.Time,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"sessionId":          sessionID,
		"streamingMessageId": s.store.StreamingMessageID(),
		"messages":           out,
	})
}

func (s *Server) renderMarkdown(text string) string {
	var buf bytes.Buffer
	if err := s.markdown.Convert([]byte(text), &buf); err != nil {
		return text
	}
	return buf.String()
}

type postMessageRequest struct {
	Text string `json:"text"`
}

// handlePostMessage appends a locally echoed user message. The backend
// round-trip replaces the optimistic copy once it confirms.
func (s *Server) handlePostMessage(w http.ResponseWriter, r *http.Request) {
	sessionID := strings.TrimSpace(chi.URLParam(r, "sessionID"))
	if sessionID == "" {
		writeError(w, http.StatusBadRequest, "session id required")
		return
	}
	var req postMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeError(w, http.StatusBadRequest, "text required")
		return
	}

	msg := s.store.AppendLocalUserMessage(sessionID, req.Text)
	metricMessagesPosted.Inc()
	writeJSON(w, http.StatusAccepted, map[string]string{
		"id":        msg.ID,
		"sessionId": sessionID,
	})
}

// handleCopyMessage copies a message's text to the host clipboard. The copy
// is fire-and-forget; the response only confirms the payload existed.
func (s *Server) handleCopyMessage(w http.ResponseWriter, r *http.Request) {
	if s.clip == nil {
		writeError(w, http.StatusServiceUnavailable, "clipboard not available")
		return
	}
	sessionID := strings.TrimSpace(chi.URLParam(r, "sessionID"))
	messageID := strings.TrimSpace(chi.URLParam(r, "messageID"))
	if sessionID == "" || messageID == "" {
		writeError(w, http.StatusBadRequest, "session and message ids required")
		return
	}
	parts := s.store.Parts(sessionID, messageID)
	text := transcript.CopyText(transcript.Visible(parts, transcript.VisibilityOptions{
		IncludeReasoning: s.cfg.IncludeReasoning,
	}))
	if text == "" {
		writeError(w, http.StatusNotFound, "no text to copy")
		return
	}
	s.clip.Copy(text, nil)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handlePushSubscribe(w http.ResponseWriter, r *http.Request) {
	if s.push == nil {
		writeError(w, http.StatusServiceUnavailable, "push notifications not configured")
		return
	}
	var sub webpush.Subscription
	if err := json.NewDecoder(r.Body).Decode(&sub); err != nil {
		writeError(w, http.StatusBadRequest, "invalid subscription: "+err.Error())
		return
	}
	if sub.Endpoint == "" {
		writeError(w, http.StatusBadRequest, "subscription endpoint required")
		return
	}
	id := s.push.Register(&sub, uuid.NewString())
	s.logInfo("push_subscribed", map[string]any{"subscription": id})
	writeJSON(w, http.StatusCreated, map[string]string{"id": id})
}

func (s *Server) handlePushUnsubscribe(w http.ResponseWriter, r *http.Request) {
	if s.push == nil {
		writeError(w, http.StatusServiceUnavailable, "push notifications not configured")
		return
	}
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if id == "" {
		writeError(w, http.StatusBadRequest, "subscription id required")
		return
	}
	s.push.Unregister(id)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) logInfo(event string, data map[string]any) {
	if s.log == nil {
		return
	}
	_ = s.log.Info(logging.CategoryServer, event, "", data)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
