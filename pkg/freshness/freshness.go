// Package freshness records when the viewer started observing each session
// and decides whether a message is new enough to deserve a reveal animation.
package freshness

import (
	"sync"
	"time"

	"github.com/btriapitsyn/openchamber-sub004/pkg/transcript"
)

// Service tracks per-session view-start timestamps. One instance is shared by
// every mounted message view; construct it at composition time and inject it
// rather than reaching for package state. Reads are safe from any goroutine.
type Service struct {
	mu     sync.RWMutex
	starts map[string]int64 // sessionID -> view start, unix millis
	now    func() time.Time
}

// NewService creates a freshness service using the wall clock.
func NewService() *Service {
	return &Service{
		starts: make(map[string]int64),
		now:    time.Now,
	}
}

// NewServiceWithClock creates a service with an injected clock for tests.
func NewServiceWithClock(now func() time.Time) *Service {
	s := NewService()
	if now != nil {
		s.now = now
	}
	return s
}

// RecordSessionStart marks "now" as the moment the viewer started observing
// the session. First write wins: repeated calls for the same session are
// no-ops, so mounting several message views at once cannot shift the mark.
func (s *Service) RecordSessionStart(sessionID string) {
	if sessionID == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.starts[sessionID]; ok {
		return
	}
	s.starts[sessionID] = s.now().UnixMilli()
}

// SessionStart returns the recorded view-start for a session, or false when
// the session was never recorded.
func (s *Service) SessionStart(sessionID string) (int64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	start, ok := s.starts[sessionID]
	return start, ok
}

// ShouldAnimateMessage reports whether the message was created at or after
// the recorded view-start for its session. Messages that already existed when
// the viewer opened the session render instantly. With no record for the
// session the answer is false, so a first load never animates the whole
// historical backlog.
func (s *Service) ShouldAnimateMessage(msg transcript.Message, sessionID string) bool {
	start, ok := s.SessionStart(sessionID)
	if !ok {
		return false
	}
	return msg.Time.Created >= start
}
