// Package notify delivers completion and error notifications to the user's
// browser. Delivery failures are logged and swallowed: a dead notification
// channel must never reach the rendering core.
package notify

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/btriapitsyn/openchamber-sub004/pkg/metadata"
)

// EventType defines the type of notification event.
type EventType string

const (
	// EventAssistantReady is sent when an assistant turn completes.
	EventAssistantReady EventType = "assistant_ready"

	// EventSessionError is sent when the backend reports a session error.
	EventSessionError EventType = "session_error"
)

// Event is a notification event.
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	SessionID string    `json:"session_id"`
	MessageID string    `json:"message_id,omitempty"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	Timestamp time.Time `json:"timestamp"`
}

// Adapter sends notifications over a specific channel.
type Adapter interface {
	// Name returns the adapter name.
	Name() string

	// Send sends a notification.
	Send(ctx context.Context, event *Event) error
}

// AssistantReady builds the completion notification for a finished turn.
// Mode and model ids arrive raw and are formatted for display here.
func AssistantReady(sessionID, messageID, mode, modelID string) *Event {
	modeName := metadata.FormatModeName(mode)
	if modeName == "" {
		modeName = "Unknown mode"
	}
	modelName := metadata.FormatModelName(modelID)
	if modelName == "" {
		modelName = "Unknown model"
	}
	return &Event{
		ID:        uuid.NewString(),
		Type:      EventAssistantReady,
		SessionID: sessionID,
		MessageID: messageID,
		Title:     modeName + " agent is ready",
		Body:      modelName + " completed the task",
		Timestamp: time.Now(),
	}
}

// SessionError builds the notification for a backend session error.
func SessionError(sessionID, hint string) *Event {
	return &Event{
		ID:        uuid.NewString(),
		Type:      EventSessionError,
		SessionID: sessionID,
		Title:     "Session error",
		Body:      hint,
		Timestamp: time.Now(),
	}
}
