// Package metadata classifies messages as user or assistant and resolves the
// display agent, provider, and model for assistant turns, smoothing over the
// windows where no source has written the values yet.
package metadata

import (
	"strings"
	"sync"

	"github.com/btriapitsyn/openchamber-sub004/pkg/transcript"
)

// Selection is a provider/model pair chosen for a session.
type Selection struct {
	ProviderID string
	ModelID    string
}

// Lookup supplies the session-level fallback sources. The store implements it.
type Lookup interface {
	// IsPendingUserMessage reports whether the id belongs to a locally echoed
	// user message the backend has not round-tripped yet.
	IsPendingUserMessage(id string) bool

	// CurrentAgent returns the live agent selection for the session.
	CurrentAgent(sessionID string) string

	// CurrentModel returns the live model selection for the session.
	CurrentModel(sessionID string) Selection

	// SavedModel returns the session's last saved model selection.
	SavedModel(sessionID string) Selection
}

// Resolved is the display identity of one message.
type Resolved struct {
	IsUser bool
	Role   transcript.Role

	// Assistant-only fields. Empty for user messages.
	AgentName  string
	ProviderID string
	ModelID    string
	ModelName  string
}

// Resolver derives message roles and assistant metadata. It keeps a sticky
// per-message cache so a header never blanks out once populated: resolution
// can legitimately flicker through empty values while the preceding-message
// lookup and the session-selection lookup race.
type Resolver struct {
	lookup Lookup

	mu     sync.Mutex
	sticky map[string]*stickyFields
}

// NewResolver creates a resolver backed by the given lookup.
func NewResolver(lookup Lookup) *Resolver {
	return &Resolver{
		lookup: lookup,
		sticky: make(map[string]*stickyFields),
	}
}

// Resolve classifies the message and, for assistant turns, resolves display
// metadata through the fallback chain: the message itself, the immediately
// preceding user message, the live session selection, then the saved one.
func (r *Resolver) Resolve(msg transcript.Message, prev *transcript.Message) Resolved {
	isUser := msg.Role == transcript.RoleUser || (r.lookup != nil && r.lookup.IsPendingUserMessage(msg.ID))
	if isUser {
		return Resolved{IsUser: true, Role: transcript.RoleUser}
	}

	out := Resolved{Role: transcript.RoleAssistant}

	var prevUser *transcript.Message
	if prev != nil && prev.Role == transcript.RoleUser {
		prevUser = prev
	}

	agent := firstNonEmpty(msg.Mode, fromPrev(prevUser, func(m *transcript.Message) string { return m.Mode }))
	provider := firstNonEmpty(msg.ProviderID, fromPrev(prevUser, func(m *transcript.Message) string { return m.ProviderID }))
	model := firstNonEmpty(msg.ModelID, fromPrev(prevUser, func(m *transcript.Message) string { return m.ModelID }))

	if r.lookup != nil {
		if agent == "" {
			agent = r.lookup.CurrentAgent(msg.SessionID)
		}
		if provider == "" || model == "" {
			current := r.lookup.CurrentModel(msg.SessionID)
			provider = firstNonEmpty(provider, current.ProviderID)
			model = firstNonEmpty(model, current.ModelID)
		}
		if provider == "" || model == "" {
			saved := r.lookup.SavedModel(msg.SessionID)
			provider = firstNonEmpty(provider, saved.ProviderID)
			model = firstNonEmpty(model, saved.ModelID)
		}
	}

	out.ModelID = model

	fields := r.fieldsFor(msg.ID)
	out.AgentName = fields.agent.observe(FormatModeName(agent))
	out.ProviderID = fields.provider.observe(provider)
	out.ModelName = fields.model.observe(FormatModelName(model))
	return out
}

// Release drops the sticky cache for a message id. Call it when the owning
// view unmounts or is remounted for a different message.
func (r *Resolver) Release(messageID string) {
	r.mu.Lock()
	delete(r.sticky, messageID)
	r.mu.Unlock()
}

func (r *Resolver) fieldsFor(messageID string) *stickyFields {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.sticky[messageID]
	if !ok {
		f = &stickyFields{}
		r.sticky[messageID] = f
	}
	return f
}

func fromPrev(prev *transcript.Message, get func(*transcript.Message) string) string {
	if prev == nil {
		return ""
	}
	return get(prev)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
