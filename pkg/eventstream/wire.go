package eventstream

import (
	"encoding/json"
	"strings"

	"github.com/btriapitsyn/openchamber-sub004/pkg/transcript"
)

// envelope is the outer frame of the backend's global event feed.
type envelope struct {
	Directory string          `json:"directory,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// event is one backend event after envelope unwrapping.
type event struct {
	Type       string          `json:"type"`
	Properties json.RawMessage `json:"properties"`
}

// wireTime carries part/message timestamps in unix milliseconds. The backend
// sends fractional values occasionally, so decode through float64.
type wireTime struct {
	Created   float64 `json:"created,omitempty"`
	Completed float64 `json:"completed,omitempty"`
	Start     float64 `json:"start,omitempty"`
	End       float64 `json:"end,omitempty"`
}

// wireMessage is the message snapshot nested under properties.info.
type wireMessage struct {
	ID         string    `json:"id"`
	SessionID  string    `json:"sessionID"`
	Role       string    `json:"role"`
	Time       *wireTime `json:"time,omitempty"`
	Mode       string    `json:"mode,omitempty"`
	ProviderID string    `json:"providerID,omitempty"`
	ModelID    string    `json:"modelID,omitempty"`
	Status     string    `json:"status,omitempty"`
}

// messageUpdated is the properties payload of message.updated. Older backends
// flatten the info fields to the top level, so both shapes are accepted.
type messageUpdated struct {
	wireMessage
	Info  *wireMessage `json:"info,omitempty"`
	Parts []wirePart   `json:"parts,omitempty"`
}

func (m *messageUpdated) message() wireMessage {
	if m.Info != nil && m.Info.ID != "" {
		return *m.Info
	}
	out := m.wireMessage
	if out.ID == "" && m.Info != nil {
		return *m.Info
	}
	return out
}

// wirePart is one content part on the wire.
type wirePart struct {
	ID        string    `json:"id"`
	MessageID string    `json:"messageID"`
	SessionID string    `json:"sessionID"`
	Type      string    `json:"type"`
	Text      string    `json:"text,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	Tool      string    `json:"tool,omitempty"`
	Time      *wireTime `json:"time,omitempty"`
	State     *struct {
		Status string `json:"status,omitempty"`
		Output string `json:"output,omitempty"`
		Time   *struct {
			Start float64 `json:"start,omitempty"`
			End   float64 `json:"end,omitempty"`
		} `json:"time,omitempty"`
	} `json:"state,omitempty"`
}

// partUpdated is the properties payload of message.part.updated.
type partUpdated struct {
	Part wirePart `json:"part"`
}

// sessionScoped covers session.idle and session.error properties.
type sessionScoped struct {
	SessionID string `json:"sessionID"`
	Error     *struct {
		Message string `json:"message,omitempty"`
	} `json:"error,omitempty"`
}

func (m wireMessage) toTranscript() transcript.Message {
	msg := transcript.Message{
		ID:         m.ID,
		SessionID:  m.SessionID,
		Role:       transcript.Role(m.Role),
		Mode:       m.Mode,
		ProviderID: m.ProviderID,
		ModelID:    m.ModelID,
	}
	if m.Time != nil {
		msg.Time = transcript.MessageTime{
			Created:   int64(m.Time.Created),
			Completed: int64(m.Time.Completed),
		}
	}
	return msg
}

func (p wirePart) toTranscript() transcript.Part {
	part := transcript.Part{
		ID:        p.ID,
		MessageID: p.MessageID,
		Kind:      transcript.PartKind(p.Type),
		Text:      p.Text,
		Reason:    p.Reason,
	}
	if p.Time != nil {
		part.Time = transcript.Interval{Start: int64(p.Time.Start), End: int64(p.Time.End)}
	}
	if part.Kind == transcript.PartTool {
		tool := &transcript.ToolCall{Name: p.Tool}
		if p.State != nil {
			tool.Status = p.State.Status
			tool.Output = p.State.Output
			// Tool timing lives under state for tool parts.
			if p.State.Time != nil && part.Time.Start == 0 && part.Time.End == 0 {
				part.Time = transcript.Interval{
					Start: int64(p.State.Time.Start),
					End:   int64(p.State.Time.End),
				}
			}
		}
		part.Tool = tool
	}
	return part
}

// isStopFinish reports whether the part is the terminal step marker of a turn.
func (p wirePart) isStopFinish() bool {
	return p.Type == string(transcript.PartStepFinish) && strings.EqualFold(p.Reason, "stop")
}
