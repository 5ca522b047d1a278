// Package reveal coordinates the post-stream reveal animation of assistant
// messages with the scroll-anchoring layer: it reserves vertical space before
// content exists, reports animation lifecycle, and forwards height changes,
// all with at-most-once guarantees per message id.
package reveal

import (
	"sync"

	"github.com/btriapitsyn/openchamber-sub004/pkg/transcript"
)

// ScrollCallbacks is the contract with the scroll-anchoring subsystem. Every
// callback is optional; a nil entry is a no-op, not an error. Per message id
// the coordinator fires StreamingCandidate at most once and follows it with
// exactly one of AnimationStart, ReservationCancelled, or ReasoningBlock.
type ScrollCallbacks struct {
	// StreamingCandidate signals "reserve vertical space, content is coming".
	StreamingCandidate func()

	// ReservationCancelled fires when a reservation existed but the message
	// resolved to a shape that no longer needs it, and no reasoning block is
	// present.
	ReservationCancelled func()

	// ReasoningBlock fires instead of cancellation when the first visible
	// content turns out to be a reasoning block.
	ReasoningBlock func()

	// AnimationStart fires once per message id when animation is permitted.
	AnimationStart func()

	// Chunk fires on each animation tick. Ordering beyond "after start,
	// before complete" is not guaranteed.
	Chunk func()

	// Complete fires exactly once per message id when the reveal finishes.
	Complete func()

	// AnimatedHeightChange reports layout size changes while animating or
	// while a reservation is outstanding, coalesced to one delivery per
	// animation frame.
	AnimatedHeightChange func(height int)
}

// Settler marks a message's stream as settled in the store. The store side
// must be idempotent too.
type Settler interface {
	MarkMessageStreamSettled(sessionID, messageID string)
}

// State names one position of the per-message machine.
type State int

const (
	StateIdle State = iota
	StateReserved
	StateCancelled
	StateAnimating
	StateSettled
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateReserved:
		return "reserved"
	case StateCancelled:
		return "cancelled"
	case StateAnimating:
		return "animating"
	case StateSettled:
		return "settled"
	default:
		return "unknown"
	}
}

// Input is a snapshot of everything the machine needs for one observation.
// The caller computes it from store state on each re-render.
type Input struct {
	SessionID string
	MessageID string

	IsUser       bool
	Fresh        bool // freshness-eligible per the freshness service
	HasToolParts bool
	Coordinating bool // multi-part output coordination (open steps etc.)
	HasReasoning bool

	Phase   transcript.Phase
	Settled bool
}

// AllowAnimation reports whether the reveal animation may run: the message is
// fresh, not already settled, and content is no longer arriving. The reveal
// is a post-hoc presentation effect, never a live typewriter over the stream.
func AllowAnimation(in Input) bool {
	return in.Fresh && !in.Settled && in.Phase != transcript.PhaseStreaming
}

type messageState struct {
	sessionID string
	state     State
	heights   *heightNotifier
}

// Coordinator owns one named state machine per mounted message id. All
// transitions run under its lock, so callback ordering per id is strict.
type Coordinator struct {
	callbacks ScrollCallbacks
	settler   Settler

	mu     sync.Mutex
	states map[string]*messageState
}

// NewCoordinator creates a coordinator with the given scroll contract.
func NewCoordinator(callbacks ScrollCallbacks, settler Settler) *Coordinator {
	return &Coordinator{
		callbacks: callbacks,
		settler:   settler,
		states:    make(map[string]*messageState),
	}
}

// State returns the machine state for a message id.
func (c *Coordinator) State(messageID string) State {
	c.mu.Lock()
	defer c.mu.Unlock()
	if st, ok := c.states[messageID]; ok {
		return st.state
	}
	return StateIdle
}

// Observe drives the machine from a fresh snapshot. Safe to call on every
// re-render; transitions fire their callback at most once per message id.
func (c *Coordinator) Observe(in Input) {
	if in.MessageID == "" {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	st := c.stateLocked(in)

	eligible := !in.IsUser && in.Fresh && !in.HasToolParts && !in.Coordinating

	if st.state == StateIdle && eligible && !in.Settled {
		st.state = StateReserved
		metricReservations.Inc()
		invoke(c.callbacks.StreamingCandidate)
	}

	if st.state == StateReserved && !eligible {
		st.state = StateCancelled
		st.heights.stop()
		if in.HasReasoning {
			metricReasoningBlocks.Inc()
			invoke(c.callbacks.ReasoningBlock)
		} else {
			metricCancellations.Inc()
			invoke(c.callbacks.ReservationCancelled)
		}
		return
	}

	if (st.state == StateIdle || st.state == StateReserved) && AllowAnimation(in) {
		st.state = StateAnimating
		metricAnimations.Inc()
		invoke(c.callbacks.AnimationStart)
	}
}

// Chunk reports one animation tick for the message. Ignored outside the
// animating state.
func (c *Coordinator) Chunk(messageID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	st, ok := c.states[messageID]
	if !ok || st.state != StateAnimating {
		return
	}
	invoke(c.callbacks.Chunk)
}

// Complete finishes the reveal for a message. Only a running animation can
// complete; calls from any other state are ignored, so the completion callback
// and the store settle call each fire at most once per id, no matter how many
// late re-renders call this again.
func (c *Coordinator) Complete(messageID string) {
	c.mu.Lock()
	st, ok := c.states[messageID]
	if !ok || st.state != StateAnimating {
		c.mu.Unlock()
		return
	}
	sessionID := st.sessionID
	st.state = StateSettled
	st.heights.stop()
	metricCompletions.Inc()
	c.mu.Unlock()

	invoke(c.callbacks.Complete)
	if c.settler != nil {
		c.settler.MarkMessageStreamSettled(sessionID, messageID)
	}
}

// NotifyHeight reports a layout height change. Deliveries are coalesced to
// one per animation frame, the latest value superseding any undelivered one.
// Only meaningful while a reservation is outstanding or animation runs.
func (c *Coordinator) NotifyHeight(messageID string, height int) {
	c.mu.Lock()
	st, ok := c.states[messageID]
	if !ok || (st.state != StateReserved && st.state != StateAnimating) {
		c.mu.Unlock()
		return
	}
	n := st.heights
	c.mu.Unlock()

	n.notify(height)
}

// Release drops all per-message state for an id and cancels any scheduled
// height delivery. Call on unmount; the next Observe for the same id starts a
// fresh machine.
func (c *Coordinator) Release(messageID string) {
	c.mu.Lock()
	st, ok := c.states[messageID]
	if ok {
		st.heights.stop()
		delete(c.states, messageID)
	}
	c.mu.Unlock()
}

// Close releases every tracked message.
func (c *Coordinator) Close() {
	c.mu.Lock()
	for id, st := range c.states {
		st.heights.stop()
		delete(c.states, id)
	}
	c.mu.Unlock()
}

func (c *Coordinator) stateLocked(in Input) *messageState {
	st, ok := c.states[in.MessageID]
	if !ok {
		st = &messageState{
			sessionID: in.SessionID,
			state:     StateIdle,
			heights:   newHeightNotifier(c.callbacks.AnimatedHeightChange),
		}
		c.states[in.MessageID] = st
	}
	if st.sessionID == "" {
		st.sessionID = in.SessionID
	}
	return st
}

func invoke(fn func()) {
	if fn != nil {
		fn()
	}
}
