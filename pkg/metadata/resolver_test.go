package metadata

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/btriapitsyn/openchamber-sub004/pkg/transcript"
)

type fakeLookup struct {
	pending      map[string]bool
	currentAgent string
	currentModel Selection
	savedModel   Selection
}

func (f *fakeLookup) IsPendingUserMessage(id string) bool     { return f.pending[id] }
func (f *fakeLookup) CurrentAgent(sessionID string) string    { return f.currentAgent }
func (f *fakeLookup) CurrentModel(sessionID string) Selection { return f.currentModel }
func (f *fakeLookup) SavedModel(sessionID string) Selection   { return f.savedModel }

func TestResolve_UserRole(t *testing.T) {
	r := NewResolver(&fakeLookup{})
	msg := transcript.Message{ID: "m1", Role: transcript.RoleUser}

	got := r.Resolve(msg, nil)
	assert.True(t, got.IsUser)
	assert.Equal(t, transcript.RoleUser, got.Role)
	assert.Empty(t, got.ModelName)
}

func TestResolve_PendingIDCountsAsUser(t *testing.T) {
	// Optimistic local echo: the stored role has not round-tripped yet.
	r := NewResolver(&fakeLookup{pending: map[string]bool{"m1": true}})
	msg := transcript.Message{ID: "m1", Role: transcript.RoleAssistant}

	got := r.Resolve(msg, nil)
	assert.True(t, got.IsUser)
}

func TestResolve_OwnMetadataWins(t *testing.T) {
	r := NewResolver(&fakeLookup{
		savedModel: Selection{ProviderID: "openai", ModelID: "gpt-5"},
	})
	msg := transcript.Message{
		ID:         "m1",
		Role:       transcript.RoleAssistant,
		Mode:       "build",
		ProviderID: "anthropic",
		ModelID:    "claude-sonnet-4-5",
	}

	got := r.Resolve(msg, nil)
	assert.Equal(t, "anthropic", got.ProviderID)
	assert.Equal(t, "claude-sonnet-4-5", got.ModelID)
	assert.Equal(t, "Claude Sonnet 4.5", got.ModelName)
	assert.Equal(t, "Build", got.AgentName)
}

func TestResolve_FallsBackToPrecedingUserMessage(t *testing.T) {
	r := NewResolver(&fakeLookup{
		savedModel: Selection{ProviderID: "openai", ModelID: "gpt-5"},
	})
	prev := transcript.Message{
		ID:         "u1",
		Role:       transcript.RoleUser,
		Mode:       "plan",
		ProviderID: "anthropic",
		ModelID:    "claude",
	}
	msg := transcript.Message{ID: "m1", Role: transcript.RoleAssistant}

	got := r.Resolve(msg, &prev)
	// The in-flight turn inherits send-time metadata even when the session's
	// saved selection differs.
	assert.Equal(t, "anthropic", got.ProviderID)
	assert.Equal(t, "Claude", got.ModelName)
	assert.Equal(t, "Plan", got.AgentName)
}

func TestResolve_PrecedingAssistantIsIgnored(t *testing.T) {
	r := NewResolver(&fakeLookup{currentModel: Selection{ProviderID: "openai", ModelID: "gpt-5"}})
	prev := transcript.Message{ID: "a0", Role: transcript.RoleAssistant, ProviderID: "anthropic", ModelID: "claude"}
	msg := transcript.Message{ID: "m1", Role: transcript.RoleAssistant}

	got := r.Resolve(msg, &prev)
	assert.Equal(t, "openai", got.ProviderID)
}

func TestResolve_SessionSelectionFallback(t *testing.T) {
	lookup := &fakeLookup{
		currentAgent: "chat",
		currentModel: Selection{ProviderID: "anthropic", ModelID: "claude-haiku-4-5"},
	}
	r := NewResolver(lookup)
	msg := transcript.Message{ID: "m1", SessionID: "s1", Role: transcript.RoleAssistant}

	got := r.Resolve(msg, nil)
	assert.Equal(t, "Chat", got.AgentName)
	assert.Equal(t, "anthropic", got.ProviderID)
	assert.Equal(t, "Claude Haiku 4.5", got.ModelName)
}

func TestResolve_SavedSelectionIsLastResort(t *testing.T) {
	lookup := &fakeLookup{savedModel: Selection{ProviderID: "openai", ModelID: "gpt-5"}}
	r := NewResolver(lookup)
	msg := transcript.Message{ID: "m1", Role: transcript.RoleAssistant}

	got := r.Resolve(msg, nil)
	assert.Equal(t, "openai", got.ProviderID)
	assert.Equal(t, "Gpt 5", got.ModelName)
}

func TestResolve_StickyNonRegression(t *testing.T) {
	lookup := &fakeLookup{currentModel: Selection{ProviderID: "anthropic", ModelID: "claude"}}
	r := NewResolver(lookup)
	msg := transcript.Message{ID: "m1", Role: transcript.RoleAssistant}

	first := r.Resolve(msg, nil)
	require.Equal(t, "anthropic", first.ProviderID)
	require.Equal(t, "Claude", first.ModelName)

	// The live selection transiently clears; the header must not blank out.
	lookup.currentModel = Selection{}
	second := r.Resolve(msg, nil)
	assert.Equal(t, "anthropic", second.ProviderID)
	assert.Equal(t, "Claude", second.ModelName)
}

func TestResolve_ReleaseResetsSticky(t *testing.T) {
	lookup := &fakeLookup{currentModel: Selection{ProviderID: "anthropic", ModelID: "claude"}}
	r := NewResolver(lookup)
	msg := transcript.Message{ID: "m1", Role: transcript.RoleAssistant}

	_ = r.Resolve(msg, nil)
	lookup.currentModel = Selection{}
	r.Release("m1")

	got := r.Resolve(msg, nil)
	assert.Empty(t, got.ProviderID)
}
