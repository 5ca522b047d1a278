package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/btriapitsyn/openchamber-sub004/pkg/metadata"
	"github.com/btriapitsyn/openchamber-sub004/pkg/transcript"
)

func TestUpsertMessage_OrderAndReplace(t *testing.T) {
	s := New()
	s.UpsertMessage(transcript.Message{ID: "m1", SessionID: "s1", Role: transcript.RoleUser})
	s.UpsertMessage(transcript.Message{ID: "m2", SessionID: "s1", Role: transcript.RoleAssistant})
	s.UpsertMessage(transcript.Message{ID: "m1", SessionID: "s1", Role: transcript.RoleUser, Time: transcript.MessageTime{Created: 5}})

	msgs := s.Messages("s1")
	require.Len(t, msgs, 2)
	assert.Equal(t, "m1", msgs[0].ID)
	assert.Equal(t, int64(5), msgs[0].Time.Created)
	assert.Equal(t, "m2", msgs[1].ID)
}

func TestUpsertPart_PreservesInsertionOrder(t *testing.T) {
	s := New()
	s.UpsertPart("s1", transcript.Part{ID: "p1", MessageID: "m1", Kind: transcript.PartText, Text: "a"})
	s.UpsertPart("s1", transcript.Part{ID: "p2", MessageID: "m1", Kind: transcript.PartTool, Tool: &transcript.ToolCall{Name: "bash"}})
	// Replacing p1 must not move it.
	s.UpsertPart("s1", transcript.Part{ID: "p1", MessageID: "m1", Kind: transcript.PartText, Text: "a, revised"})

	parts := s.Parts("s1", "m1")
	require.Len(t, parts, 2)
	assert.Equal(t, "p1", parts[0].ID)
	assert.Equal(t, "a, revised", parts[0].Text)
	assert.Equal(t, "p2", parts[1].ID)
}

func TestPrecedingMessage(t *testing.T) {
	s := New()
	s.UpsertMessage(transcript.Message{ID: "m1", SessionID: "s1", Role: transcript.RoleUser})
	s.UpsertMessage(transcript.Message{ID: "m2", SessionID: "s1", Role: transcript.RoleAssistant})

	prev, ok := s.PrecedingMessage("s1", "m2")
	require.True(t, ok)
	assert.Equal(t, "m1", prev.ID)

	_, ok = s.PrecedingMessage("s1", "m1")
	assert.False(t, ok)
}

func TestAdvancePhase_MonotonicForward(t *testing.T) {
	s := New()

	s.AdvancePhase("s1", "m1", transcript.PhaseStreaming)
	assert.Equal(t, transcript.PhaseStreaming, s.StreamState("s1", "m1").Phase)
	assert.Equal(t, "m1", s.StreamingMessageID())

	// Backward transition is ignored.
	s.AdvancePhase("s1", "m1", transcript.PhasePending)
	assert.Equal(t, transcript.PhaseStreaming, s.StreamState("s1", "m1").Phase)

	s.AdvancePhase("s1", "m1", transcript.PhaseCompleted)
	assert.Equal(t, transcript.PhaseCompleted, s.StreamState("s1", "m1").Phase)
	assert.Empty(t, s.StreamingMessageID())

	// A new message id starts fresh.
	assert.Equal(t, transcript.PhasePending, s.StreamState("s1", "m2").Phase)
}

func TestMarkMessageStreamSettled_Idempotent(t *testing.T) {
	s := New()
	events, unsub := s.Hub().Subscribe()
	defer unsub()

	s.MarkMessageStreamSettled("s1", "m1")
	s.MarkMessageStreamSettled("s1", "m1")
	s.MarkMessageStreamSettled("s1", "m1")

	settledCount := 0
	deadline := time.After(200 * time.Millisecond)
drain:
	for {
		select {
		case ev := <-events:
			if ev.Type == EventMessageSettled {
				settledCount++
			}
		case <-deadline:
			break drain
		}
	}

	assert.Equal(t, 1, settledCount)
	assert.True(t, s.IsStreamSettled("m1"))
	assert.Equal(t, transcript.PhaseCompleted, s.StreamState("s1", "m1").Phase)
}

func TestAppendLocalUserMessage(t *testing.T) {
	s := New()
	msg := s.AppendLocalUserMessage("s1", "hello there")

	require.NotEmpty(t, msg.ID)
	assert.True(t, s.IsPendingUserMessage(msg.ID))

	parts := s.Parts("s1", msg.ID)
	require.Len(t, parts, 1)
	assert.Equal(t, transcript.PartText, parts[0].Kind)
	assert.Equal(t, "hello there", parts[0].Text)

	// Backend confirmation clears the pending mark.
	s.UpsertMessage(transcript.Message{ID: msg.ID, SessionID: "s1", Role: transcript.RoleUser})
	assert.False(t, s.IsPendingUserMessage(msg.ID))
}

func TestSelectionAccessors(t *testing.T) {
	s := New()
	s.SetCurrentAgent("s1", "build")
	s.SetCurrentModel("s1", metadata.Selection{ProviderID: "anthropic", ModelID: "claude"})
	s.SaveModelSelection("s1", metadata.Selection{ProviderID: "openai", ModelID: "gpt-5"})

	assert.Equal(t, "build", s.CurrentAgent("s1"))
	assert.Equal(t, "claude", s.CurrentModel("s1").ModelID)
	assert.Equal(t, "openai", s.SavedModel("s1").ProviderID)

	assert.Empty(t, s.CurrentAgent("other"))
}

func TestHub_PublishSubscribe(t *testing.T) {
	h := NewHub()
	ch, unsub := h.Subscribe()
	defer unsub()

	h.Publish(Event{Type: EventSessionIdle, SessionID: "s1"})

	select {
	case ev := <-ch:
		assert.Equal(t, EventSessionIdle, ev.Type)
		assert.Equal(t, "s1", ev.SessionID)
		assert.False(t, ev.Timestamp.IsZero())
	case <-time.After(100 * time.Millisecond):
		t.Fatal("timeout waiting for event")
	}
}

func TestHub_CloseStopsDelivery(t *testing.T) {
	h := NewHub()
	ch, _ := h.Subscribe()
	h.Close()
	h.Publish(Event{Type: EventStatus})

	_, open := <-ch
	assert.False(t, open)
}
