// Package store holds the per-session message and part state that the render
// pipeline reads. It is the single writer side of the UI: the backend event
// stream and local user actions mutate it, everything else takes snapshots.
package store

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/btriapitsyn/openchamber-sub004/pkg/metadata"
	"github.com/btriapitsyn/openchamber-sub004/pkg/transcript"
)

// StreamState is the per-message lifecycle the store tracks for assistant
// turns.
type StreamState struct {
	Phase transcript.Phase `json:"phase"`
}

type sessionData struct {
	order    []string // message ids in arrival order
	messages map[string]transcript.Message
	parts    map[string][]transcript.Part
	streams  map[string]StreamState

	currentAgent string
	currentModel metadata.Selection
	savedModel   metadata.Selection
}

// Store is an in-memory session/message store. Safe for concurrent use.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*sessionData
	pending  map[string]struct{} // locally echoed user message ids
	settled  map[string]struct{} // ids whose stream settle was already published

	streamingID string

	hub     *Hub
	entropy *ulid.MonotonicEntropy
	now     func() time.Time
}

// New creates an empty store.
func New() *Store {
	return &Store{
		sessions: make(map[string]*sessionData),
		pending:  make(map[string]struct{}),
		settled:  make(map[string]struct{}),
		hub:      NewHub(),
		entropy:  ulid.Monotonic(rand.Reader, 0),
		now:      time.Now,
	}
}

// Hub exposes the store's change event hub.
func (s *Store) Hub() *Hub {
	return s.hub
}

func (s *Store) session(id string) *sessionData {
	sess, ok := s.sessions[id]
	if !ok {
		sess = &sessionData{
			messages: make(map[string]transcript.Message),
			parts:    make(map[string][]transcript.Part),
			streams:  make(map[string]StreamState),
		}
		s.sessions[id] = sess
	}
	return sess
}

// UpsertMessage inserts or replaces a message snapshot, preserving arrival
// order for new ids. A backend-confirmed message clears its pending mark.
func (s *Store) UpsertMessage(msg transcript.Message) {
	if msg.ID == "" || msg.SessionID == "" {
		return
	}
	s.mu.Lock()
	sess := s.session(msg.SessionID)
	if _, known := sess.messages[msg.ID]; !known {
		sess.order = append(sess.order, msg.ID)
	}
	sess.messages[msg.ID] = msg
	if msg.Role == transcript.RoleUser {
		delete(s.pending, msg.ID)
	}
	s.mu.Unlock()

	s.hub.Publish(Event{Type: EventMessageUpdated, SessionID: msg.SessionID, MessageID: msg.ID})
}

// UpsertPart inserts or replaces a part, keyed by part id, keeping insertion
// order. Parts for unknown messages are accepted; the message snapshot often
// trails its first part on the wire.
func (s *Store) UpsertPart(sessionID string, part transcript.Part) {
	if part.ID == "" || part.MessageID == "" {
		return
	}
	s.mu.Lock()
	sess := s.session(sessionID)
	list := sess.parts[part.MessageID]
	replaced := false
	for i, existing := range list {
		if existing.ID == part.ID {
			list[i] = part
			replaced = true
			break
		}
	}
	if !replaced {
		list = append(list, part)
	}
	sess.parts[part.MessageID] = list
	s.mu.Unlock()

	s.hub.Publish(Event{Type: EventPartUpdated, SessionID: sessionID, MessageID: part.MessageID})
}

// Messages returns a snapshot of the session's messages in arrival order.
func (s *Store) Messages(sessionID string) []transcript.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return nil
	}
	out := make([]transcript.Message, 0, len(sess.order))
	for _, id := range sess.order {
		out = append(out, sess.messages[id])
	}
	return out
}

// Message returns one message snapshot.
func (s *Store) Message(sessionID, messageID string) (transcript.Message, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return transcript.Message{}, false
	}
	msg, ok := sess.messages[messageID]
	return msg, ok
}

// Parts returns a snapshot of a message's parts in insertion order.
func (s *Store) Parts(sessionID, messageID string) []transcript.Part {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return nil
	}
	list := sess.parts[messageID]
	out := make([]transcript.Part, len(list))
	copy(out, list)
	return out
}

// PrecedingMessage returns the message immediately before the given id in
// arrival order, or false at the head of the session.
func (s *Store) PrecedingMessage(sessionID, messageID string) (transcript.Message, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return transcript.Message{}, false
	}
	for i, id := range sess.order {
		if id == messageID {
			if i == 0 {
				return transcript.Message{}, false
			}
			return sess.messages[sess.order[i-1]], true
		}
	}
	return transcript.Message{}, false
}

// StreamState returns the lifecycle state for a message, defaulting to
// pending for unknown ids.
func (s *Store) StreamState(sessionID, messageID string) StreamState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return StreamState{Phase: transcript.PhasePending}
	}
	st, ok := sess.streams[messageID]
	if !ok {
		return StreamState{Phase: transcript.PhasePending}
	}
	return st
}

// AdvancePhase moves a message's lifecycle phase forward. Backward or unknown
// transitions are ignored; phases only reset when a new message id appears.
func (s *Store) AdvancePhase(sessionID, messageID string, phase transcript.Phase) {
	s.mu.Lock()
	sess := s.session(sessionID)
	current, ok := sess.streams[messageID]
	if !ok {
		current = StreamState{Phase: transcript.PhasePending}
	}
	if !transcript.PhaseAdvances(current.Phase, phase) {
		s.mu.Unlock()
		return
	}
	sess.streams[messageID] = StreamState{Phase: phase}
	if phase == transcript.PhaseStreaming {
		s.streamingID = messageID
	} else if s.streamingID == messageID && phase == transcript.PhaseCompleted {
		s.streamingID = ""
	}
	s.mu.Unlock()

	s.hub.Publish(Event{
		Type:      EventMessageUpdated,
		SessionID: sessionID,
		MessageID: messageID,
		Data:      map[string]any{"phase": string(phase)},
	})
}

// StreamingMessageID returns the id of the message currently streaming, if
// any.
func (s *Store) StreamingMessageID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.streamingID
}

// MarkMessageStreamSettled records that the reveal animation for a message
// finished. Idempotent: repeated calls after the first are no-ops and publish
// nothing.
func (s *Store) MarkMessageStreamSettled(sessionID, messageID string) {
	s.mu.Lock()
	if _, done := s.settled[messageID]; done {
		s.mu.Unlock()
		return
	}
	s.settled[messageID] = struct{}{}
	sess := s.session(sessionID)
	if st, ok := sess.streams[messageID]; !ok || transcript.PhaseAdvances(st.Phase, transcript.PhaseCompleted) {
		sess.streams[messageID] = StreamState{Phase: transcript.PhaseCompleted}
	}
	if s.streamingID == messageID {
		s.streamingID = ""
	}
	s.mu.Unlock()

	s.hub.Publish(Event{Type: EventMessageSettled, SessionID: sessionID, MessageID: messageID})
}

// IsStreamSettled reports whether the message's reveal already settled.
func (s *Store) IsStreamSettled(messageID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.settled[messageID]
	return ok
}

// AppendLocalUserMessage creates an optimistic local echo of a user message
// with a fresh ulid, marks it pending until the backend round-trips it, and
// returns the snapshot.
func (s *Store) AppendLocalUserMessage(sessionID, text string) transcript.Message {
	s.mu.Lock()
	now := s.now()
	id := ulid.MustNew(ulid.Timestamp(now), s.entropy).String()
	msg := transcript.Message{
		ID:        id,
		SessionID: sessionID,
		Role:      transcript.RoleUser,
		Time:      transcript.MessageTime{Created: now.UnixMilli()},
	}
	sess := s.session(sessionID)
	sess.order = append(sess.order, id)
	sess.messages[id] = msg
	sess.parts[id] = []transcript.Part{{
		ID:        id + "-text",
		MessageID: id,
		Kind:      transcript.PartText,
		Text:      text,
		Time:      transcript.Interval{Start: now.UnixMilli(), End: now.UnixMilli()},
	}}
	s.pending[id] = struct{}{}
	s.mu.Unlock()

	s.hub.Publish(Event{Type: EventMessageUpdated, SessionID: sessionID, MessageID: id})
	return msg
}

// IsPendingUserMessage implements metadata.Lookup.
func (s *Store) IsPendingUserMessage(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.pending[id]
	return ok
}

// CurrentAgent implements metadata.Lookup.
func (s *Store) CurrentAgent(sessionID string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if sess, ok := s.sessions[sessionID]; ok {
		return sess.currentAgent
	}
	return ""
}

// CurrentModel implements metadata.Lookup.
func (s *Store) CurrentModel(sessionID string) metadata.Selection {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if sess, ok := s.sessions[sessionID]; ok {
		return sess.currentModel
	}
	return metadata.Selection{}
}

// SavedModel implements metadata.Lookup.
func (s *Store) SavedModel(sessionID string) metadata.Selection {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if sess, ok := s.sessions[sessionID]; ok {
		return sess.savedModel
	}
	return metadata.Selection{}
}

// SetCurrentAgent records the live agent selection for a session.
func (s *Store) SetCurrentAgent(sessionID, agent string) {
	s.mu.Lock()
	s.session(sessionID).currentAgent = agent
	s.mu.Unlock()
}

// SetCurrentModel records the live model selection for a session.
func (s *Store) SetCurrentModel(sessionID string, sel metadata.Selection) {
	s.mu.Lock()
	s.session(sessionID).currentModel = sel
	s.mu.Unlock()
}

// SaveModelSelection persists the session's model selection as the fallback
// of last resort for metadata resolution.
func (s *Store) SaveModelSelection(sessionID string, sel metadata.Selection) {
	s.mu.Lock()
	s.session(sessionID).savedModel = sel
	s.mu.Unlock()
}

// PublishSessionIdle forwards a backend idle signal to subscribers.
func (s *Store) PublishSessionIdle(sessionID string) {
	s.hub.Publish(Event{Type: EventSessionIdle, SessionID: sessionID})
}

// PublishSessionError forwards a backend error signal to subscribers.
func (s *Store) PublishSessionError(sessionID, hint string) {
	s.hub.Publish(Event{
		Type:      EventSessionError,
		SessionID: sessionID,
		Data:      map[string]any{"hint": hint},
	})
}
