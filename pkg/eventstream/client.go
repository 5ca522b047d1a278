// Package eventstream maintains the SSE connection to the backend's global
// event feed and folds incoming events into the session store.
package eventstream

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/btriapitsyn/openchamber-sub004/pkg/logging"
	"github.com/btriapitsyn/openchamber-sub004/pkg/notify"
	"github.com/btriapitsyn/openchamber-sub004/pkg/store"
	"github.com/btriapitsyn/openchamber-sub004/pkg/transcript"
)

const (
	initialReconnectDelay = 500 * time.Millisecond
	maxReconnectDelay     = 8 * time.Second

	// replayBufferCap bounds the raw-event replay buffer used by the
	// debug endpoint and by late websocket joiners.
	replayBufferCap = 256

	maxLineSize = 10 * 1024 * 1024
)

// Config configures a Client.
type Config struct {
	// BaseURL is the backend root, e.g. http://127.0.0.1:4096.
	BaseURL string

	// Directory scopes the feed to one workspace. Optional.
	Directory string

	Store    *store.Store
	Notifier notify.Adapter
	Logger   *logging.Logger

	// HTTPClient overrides the default client. Its timeout must be zero;
	// SSE connections are long-lived.
	HTTPClient *http.Client
}

// Client consumes the backend event feed with automatic reconnection.
type Client struct {
	baseURL   string
	directory string
	http      *http.Client
	store     *store.Store
	notifier  notify.Adapter
	log       *logging.Logger

	mu            sync.Mutex
	lastEventID   string
	replay        []json.RawMessage
	notified      map[string]bool
	notifiedOrder []string
}

// New creates a client. Store must be non-nil; notifier and logger may be nil.
func New(cfg Config) (*Client, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("eventstream: store is required")
	}
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		return nil, fmt.Errorf("eventstream: base URL is required")
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{
		baseURL:   base,
		directory: cfg.Directory,
		http:      httpClient,
		store:     cfg.Store,
		notifier:  cfg.Notifier,
		log:       cfg.Logger,
		notified:  make(map[string]bool),
	}, nil
}

// Run connects and reconnects until ctx is cancelled. The reconnect delay
// starts at 500ms, doubles on consecutive failures, caps at 8s, and resets
// once a connection delivers at least one event.
func (c *Client) Run(ctx context.Context) error {
	delay := initialReconnectDelay
	for {
		delivered, err := c.connect(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if delivered {
			delay = initialReconnectDelay
		}
		if err != nil {
			c.logWarn("stream_disconnected", err.Error(), nil)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
		if delay > maxReconnectDelay {
			delay = maxReconnectDelay
		}
	}
}

func (c *Client) connect(ctx context.Context) (delivered bool, err error) {
	endpoint := c.baseURL + "/global/event"
	if c.directory != "" {
		endpoint += "?directory=" + url.QueryEscape(c.directory)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return false, err
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")
	c.mu.Lock()
	if c.lastEventID != "" {
		req.Header.Set("Last-Event-ID", c.lastEventID)
	}
	c.mu.Unlock()

	resp, err := c.http.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("event stream returned %s", resp.Status)
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)

	var data bytes.Buffer
	var eventID string
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			if data.Len() > 0 {
				c.handleRaw(ctx, data.Bytes(), eventID)
				delivered = true
			}
			data.Reset()
			eventID = ""
		case strings.HasPrefix(line, ":"):
			// Comment / keep-alive.
		case strings.HasPrefix(line, "id:"):
			eventID = strings.TrimSpace(line[len("id:"):])
		case strings.HasPrefix(line, "data:"):
			if data.Len() > 0 {
				data.WriteByte('\n')
			}
			data.WriteString(strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		}
	}
	return delivered, scanner.Err()
}

func (c *Client) handleRaw(ctx context.Context, raw []byte, eventID string) {
	payload := make(json.RawMessage, len(raw))
	copy(payload, raw)

	// The feed wraps each event in a {directory, payload} envelope when
	// serving multiple workspaces. Unwrap if present.
	var env envelope
	if err := json.Unmarshal(payload, &env); err == nil && len(env.Payload) > 0 {
		if c.directory != "" && env.Directory != "" && env.Directory != c.directory {
			return
		}
		payload = env.Payload
	}

	c.mu.Lock()
	if eventID != "" {
		c.lastEventID = eventID
	}
	c.replay = append(c.replay, payload)
	if len(c.replay) > replayBufferCap {
		c.replay = c.replay[len(c.replay)-replayBufferCap:]
	}
	c.mu.Unlock()

	var ev event
	if err := json.Unmarshal(payload, &ev); err != nil {
		c.logWarn("event_decode_failed", err.Error(), nil)
		return
	}
	c.dispatch(ctx, ev)
}

func (c *Client) dispatch(ctx context.Context, ev event) {
	switch ev.Type {
	case string(store.EventMessageUpdated):
		c.handleMessageUpdated(ctx, ev.Properties)
	case string(store.EventPartUpdated):
		c.handlePartUpdated(ctx, ev.Properties)
	case string(store.EventSessionIdle):
		var props sessionScoped
		if err := json.Unmarshal(ev.Properties, &props); err != nil {
			return
		}
		c.store.PublishSessionIdle(props.SessionID)
	case string(store.EventSessionError):
		c.handleSessionError(ctx, ev.Properties)
	}
}

func (c *Client) handleMessageUpdated(ctx context.Context, props json.RawMessage) {
	var upd messageUpdated
	if err := json.Unmarshal(props, &upd); err != nil {
		c.logWarn("message_decode_failed", err.Error(), nil)
		return
	}
	msg := upd.message()
	if msg.ID == "" {
		return
	}

	// Assistant updates with no content yet are backend heartbeats during
	// generation. Storing them would churn subscribers for nothing.
	if transcript.Role(msg.Role) == transcript.RoleAssistant &&
		len(upd.Parts) == 0 &&
		(msg.Time == nil || msg.Time.Completed == 0) &&
		len(c.store.Parts(msg.SessionID, msg.ID)) == 0 {
		return
	}

	c.store.UpsertMessage(msg.toTranscript())
	for _, wp := range upd.Parts {
		part := wp.toTranscript()
		if part.MessageID == "" {
			part.MessageID = msg.ID
		}
		c.store.UpsertPart(msg.SessionID, part)
	}

	completed := msg.Status == "completed" || (msg.Time != nil && msg.Time.Completed > 0)
	if !completed {
		for _, wp := range upd.Parts {
			if wp.isStopFinish() {
				completed = true
				break
			}
		}
	}
	if transcript.Role(msg.Role) == transcript.RoleAssistant {
		if completed {
			c.store.AdvancePhase(msg.SessionID, msg.ID, transcript.PhaseCompleted)
			c.notifyCompleted(ctx, msg.SessionID, msg.ID, msg.Mode, msg.ModelID)
		} else {
			c.store.AdvancePhase(msg.SessionID, msg.ID, transcript.PhaseStreaming)
		}
	}
}

func (c *Client) handlePartUpdated(ctx context.Context, props json.RawMessage) {
	var upd partUpdated
	if err := json.Unmarshal(props, &upd); err != nil {
		c.logWarn("part_decode_failed", err.Error(), nil)
		return
	}
	if upd.Part.ID == "" || upd.Part.MessageID == "" {
		return
	}
	c.store.UpsertPart(upd.Part.SessionID, upd.Part.toTranscript())

	if upd.Part.isStopFinish() {
		msg, ok := c.store.Message(upd.Part.SessionID, upd.Part.MessageID)
		mode, model := "", ""
		if ok {
			mode, model = msg.Mode, msg.ModelID
			c.store.AdvancePhase(upd.Part.SessionID, upd.Part.MessageID, transcript.PhaseCompleted)
		}
		c.notifyCompleted(ctx, upd.Part.SessionID, upd.Part.MessageID, mode, model)
	}
}

func (c *Client) handleSessionError(ctx context.Context, props json.RawMessage) {
	var scoped sessionScoped
	if err := json.Unmarshal(props, &scoped); err != nil {
		return
	}
	hint := "The session hit an error"
	if scoped.Error != nil && scoped.Error.Message != "" {
		hint = scoped.Error.Message
	}
	c.store.PublishSessionError(scoped.SessionID, hint)
	if c.notifier != nil {
		if err := c.notifier.Send(ctx, notify.SessionError(scoped.SessionID, hint)); err != nil {
			c.logWarn("notify_failed", err.Error(), map[string]any{"session": scoped.SessionID})
		}
	}
}

// notifyCompleted fires the completion notification at most once per message.
// The backend repeats completion markers on reconnect replay; users should
// not get a second buzz for the same turn.
func (c *Client) notifyCompleted(ctx context.Context, sessionID, messageID, mode, modelID string) {
	c.mu.Lock()
	if c.notified[messageID] {
		c.mu.Unlock()
		return
	}
	c.notified[messageID] = true
	c.notifiedOrder = append(c.notifiedOrder, messageID)
	if len(c.notifiedOrder) > replayBufferCap {
		delete(c.notified, c.notifiedOrder[0])
		c.notifiedOrder = c.notifiedOrder[1:]
	}
	c.mu.Unlock()

	if c.notifier == nil {
		return
	}
	if err := c.notifier.Send(ctx, notify.AssistantReady(sessionID, messageID, mode, modelID)); err != nil {
		c.logWarn("notify_failed", err.Error(), map[string]any{"message": messageID})
	}
}

// Replay returns a copy of the buffered raw events, oldest first.
func (c *Client) Replay() []json.RawMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]json.RawMessage, len(c.replay))
	copy(out, c.replay)
	return out
}

// LastEventID returns the most recent event id seen on the feed.
func (c *Client) LastEventID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastEventID
}

func (c *Client) logWarn(event, msg string, data map[string]any) {
	if c.log == nil {
		return
	}
	_ = c.log.Warn(logging.CategoryStream, event, msg, data)
}
