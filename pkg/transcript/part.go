// Package transcript models chat messages as ordered lists of typed parts and
// provides the pure stages of the render pipeline: visibility filtering,
// completion evaluation, and segment composition.
package transcript

// PartKind identifies the variant of a message part.
type PartKind string

const (
	PartText       PartKind = "text"
	PartReasoning  PartKind = "reasoning"
	PartTool       PartKind = "tool"
	PartStepStart  PartKind = "step-start"
	PartStepFinish PartKind = "step-finish"
)

// Interval records when a part opened and closed, in unix milliseconds.
// A zero End means the part is still open.
type Interval struct {
	Start int64 `json:"start,omitempty"`
	End   int64 `json:"end,omitempty"`
}

// Open reports whether the interval has not been closed yet.
func (i Interval) Open() bool {
	return i.End <= 0
}

// ToolCall carries the tool-specific payload of a tool part.
type ToolCall struct {
	Name   string `json:"name"`
	Status string `json:"status,omitempty"`
	Input  string `json:"input,omitempty"`
	Output string `json:"output,omitempty"`
}

// Part is one typed fragment of a message's content. Parts belong to exactly
// one message and keep their arrival order.
type Part struct {
	ID        string   `json:"id"`
	MessageID string   `json:"messageID"`
	Kind      PartKind `json:"type"`

	// Text holds content for text and reasoning parts.
	Text string `json:"text,omitempty"`

	// Tool is set only for tool parts.
	Tool *ToolCall `json:"tool,omitempty"`

	// Reason is set on step-finish parts ("stop", "tool-calls", ...).
	Reason string `json:"reason,omitempty"`

	Time Interval `json:"time,omitempty"`
}

// Role classifies who authored a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// MessageTime holds creation and finalization timestamps in unix milliseconds.
// Completed stays zero until the backend finalizes the turn.
type MessageTime struct {
	Created   int64 `json:"created,omitempty"`
	Completed int64 `json:"completed,omitempty"`
}

// Message is a snapshot of one conversation turn. The store owns the
// authoritative copy; everything in this package only reads it.
type Message struct {
	ID        string      `json:"id"`
	SessionID string      `json:"sessionID"`
	Role      Role        `json:"role"`
	Time      MessageTime `json:"time"`

	// Mode, ProviderID, and ModelID are captured at send or finalize time and
	// may be empty while a turn is in flight.
	Mode       string `json:"mode,omitempty"`
	ProviderID string `json:"providerID,omitempty"`
	ModelID    string `json:"modelID,omitempty"`
}

// Phase is the store-reported stage of an assistant message's generation.
type Phase string

const (
	PhasePending   Phase = "pending"
	PhaseStreaming Phase = "streaming"
	PhaseAnimating Phase = "animating"
	PhaseCompleted Phase = "completed"
)

// phaseRank orders phases for the monotonic-forward transition check.
func phaseRank(p Phase) int {
	switch p {
	case PhasePending:
		return 0
	case PhaseStreaming:
		return 1
	case PhaseAnimating:
		return 2
	case PhaseCompleted:
		return 3
	default:
		return -1
	}
}

// PhaseAdvances reports whether moving from one phase to next goes forward.
// Unknown phases never advance.
func PhaseAdvances(from, to Phase) bool {
	fr, tr := phaseRank(from), phaseRank(to)
	return tr >= 0 && tr > fr
}
