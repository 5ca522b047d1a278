package server

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"

	"github.com/btriapitsyn/openchamber-sub004/pkg/metadata"
	"github.com/btriapitsyn/openchamber-sub004/pkg/store"
	"github.com/btriapitsyn/openchamber-sub004/pkg/transcript"
)

func newTestServer(t *testing.T, includeReasoning bool) (*Server, *store.Store) {
	t.Helper()
	st := store.New()
	s, err := New(Config{
		Store:            st,
		Resolver:         metadata.NewResolver(st),
		IncludeReasoning: includeReasoning,
	})
	require.NoError(t, err)
	return s, st
}

func seedConversation(st *store.Store) {
	st.UpsertMessage(transcript.Message{
		ID:        "u1",
		SessionID: "s1",
		Role:      transcript.RoleUser,
		Time:      transcript.MessageTime{Created: 100},
	})
	st.UpsertPart("s1", transcript.Part{
		ID: "up1", MessageID: "u1", Kind: transcript.PartText,
		Text: "please fix the bug",
		Time: transcript.Interval{Start: 100, End: 100},
	})
	st.UpsertMessage(transcript.Message{
		ID:         "a1",
		SessionID:  "s1",
		Role:       transcript.RoleAssistant,
		Mode:       "build",
		ProviderID: "anthropic",
		ModelID:    "claude-sonnet-4-5",
		Time:       transcript.MessageTime{Created: 110, Completed: 200},
	})
	st.UpsertPart("s1", transcript.Part{
		ID: "ap1", MessageID: "a1", Kind: transcript.PartReasoning,
		Text: "thinking it through",
		Time: transcript.Interval{Start: 110, End: 120},
	})
	st.UpsertPart("s1", transcript.Part{
		ID: "ap2", MessageID: "a1", Kind: transcript.PartText,
		Text: "Fixed. The **root cause** was a nil map.",
		Time: transcript.Interval{Start: 120, End: 190},
	})
}

type transcriptResponse struct {
	SessionID string              `json:"sessionId"`
	Messages  []transcriptMessage `json:"messages"`
}

func getTranscript(t *testing.T, ts *httptest.Server, sessionID string) transcriptResponse {
	t.Helper()
	resp, err := http.Get(ts.URL + "/api/sessions/" + sessionID + "/transcript")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out transcriptResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestTranscript_RendersMessages(t *testing.T) {
	s, st := newTestServer(t, false)
	seedConversation(st)
	ts := httptest.NewServer(s.Routes())
	defer ts.Close()

	out := getTranscript(t, ts, "s1")
	require.Len(t, out.Messages, 2)

	user := out.Messages[0]
	assert.True(t, user.IsUser)
	assert.Empty(t, user.AgentName)

	asst := out.Messages[1]
	assert.False(t, asst.IsUser)
	assert.Equal(t, "Build", asst.AgentName)
	assert.Equal(t, "Claude Sonnet 4.5", asst.ModelName)
	assert.True(t, asst.Completed)

	// Reasoning hidden by default; only the text segment remains, rendered.
	require.Len(t, asst.Segments, 1)
	assert.Contains(t, asst.Segments[0].HTML, "<strong>root cause</strong>")
	assert.Contains(t, asst.CopyText, "nil map")
	assert.NotContains(t, asst.CopyText, "thinking it through")
}

func TestTranscript_IncludesReasoningWhenConfigured(t *testing.T) {
	s, st := newTestServer(t, true)
	seedConversation(st)
	ts := httptest.NewServer(s.Routes())
	defer ts.Close()

	out := getTranscript(t, ts, "s1")
	asst := out.Messages[1]
	require.Len(t, asst.Segments, 2)
	assert.Equal(t, transcript.PartReasoning, asst.Segments[0].Part.Kind)
	assert.Empty(t, asst.Segments[0].HTML, "reasoning is not rendered as markdown")
}

func TestTranscript_EmptySession(t *testing.T) {
	s, _ := newTestServer(t, false)
	ts := httptest.NewServer(s.Routes())
	defer ts.Close()

	out := getTranscript(t, ts, "nope")
	assert.Empty(t, out.Messages)
}

func TestPostMessage(t *testing.T) {
	s, st := newTestServer(t, false)
	ts := httptest.NewServer(s.Routes())
	defer ts.Close()

	body := bytes.NewBufferString(`{"text":"hello there"}`)
	resp, err := http.Post(ts.URL+"/api/sessions/s1/messages", "application/json", body)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	var out map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	require.NotEmpty(t, out["id"])

	assert.True(t, st.IsPendingUserMessage(out["id"]))
	msgs := st.Messages("s1")
	require.Len(t, msgs, 1)
	assert.Equal(t, transcript.RoleUser, msgs[0].Role)
}

func TestPostMessage_RejectsEmptyText(t *testing.T) {
	s, _ := newTestServer(t, false)
	ts := httptest.NewServer(s.Routes())
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/api/sessions/s1/messages", "application/json",
		bytes.NewBufferString(`{"text":"   "}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestPushEndpoints_UnavailableWithoutAdapter(t *testing.T) {
	s, _ := newTestServer(t, false)
	ts := httptest.NewServer(s.Routes())
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/api/push/subscriptions", "application/json",
		bytes.NewBufferString(`{"endpoint":"https://push.example.com/x"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestCopyMessage_UnavailableWithoutClipboard(t *testing.T) {
	s, st := newTestServer(t, false)
	seedConversation(st)
	ts := httptest.NewServer(s.Routes())
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/api/sessions/s1/messages/a1/copy", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestEvents_RelaysStoreEvents(t *testing.T) {
	s, st := newTestServer(t, false)
	ts := httptest.NewServer(s.Routes())
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/api/events", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	readEvent := func() store.Event {
		for {
			line, err := reader.ReadString('\n')
			require.NoError(t, err)
			if strings.HasPrefix(line, "data: ") {
				var ev store.Event
				require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(strings.TrimSpace(line), "data: ")), &ev))
				return ev
			}
		}
	}

	assert.Equal(t, store.EventStatus, readEvent().Type)

	st.PublishSessionIdle("s1")
	ev := readEvent()
	assert.Equal(t, store.EventSessionIdle, ev.Type)
	assert.Equal(t, "s1", ev.SessionID)
}

func TestWebSocket_ReceivesBroadcasts(t *testing.T) {
	s, _ := newTestServer(t, false)
	ts := httptest.NewServer(s.Routes())
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "done")

	require.Eventually(t, func() bool {
		return s.hub.clientCount() == 1
	}, 2*time.Second, 10*time.Millisecond)

	s.hub.Broadcast(store.Event{
		Type:      store.EventMessageSettled,
		Timestamp: time.Now(),
		SessionID: "s1",
		MessageID: "m1",
	})

	_, data, err := conn.Read(ctx)
	require.NoError(t, err)

	var ev store.Event
	require.NoError(t, json.Unmarshal(data, &ev))
	assert.Equal(t, store.EventMessageSettled, ev.Type)
	assert.Equal(t, "m1", ev.MessageID)
}

func TestHighlight_ReturnsTokensAndStyles(t *testing.T) {
	s, _ := newTestServer(t, false)
	ts := httptest.NewServer(s.Routes())
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/api/highlight", "application/json",
		bytes.NewBufferString(`{"code":"package main\nfunc main() {}","language":"go"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out struct {
		Lines  []map[string]any `json:"lines"`
		Styles map[string]any   `json:"styles"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Len(t, out.Lines, 2)
	assert.NotEmpty(t, out.Styles["keyword"])
}

func TestHealthz(t *testing.T) {
	s, _ := newTestServer(t, false)
	ts := httptest.NewServer(s.Routes())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
