package transcript

import "strings"

// Segment is one renderable unit of a message.
type Segment struct {
	Part Part `json:"part"`

	// HasPrevTool and HasNextTool mark adjacency within the tool-only
	// subsequence, for connector lines between consecutive tool invocations.
	HasPrevTool bool `json:"hasPrevTool,omitempty"`
	HasNextTool bool `json:"hasNextTool,omitempty"`

	// AsJustification subordinates assistant text that accompanies tool
	// calls: it explains the calls rather than being the primary answer.
	AsJustification bool `json:"asJustification,omitempty"`

	// Open marks a segment whose part has not closed while the message is
	// still streaming.
	Open bool `json:"open,omitempty"`
}

// Compose turns an already-filtered part list into ordered renderable
// segments. Step markers and unknown part kinds produce no segments.
func Compose(parts []Part, completed bool, phase Phase, includeReasoning bool) []Segment {
	hasTool := false
	for _, p := range parts {
		if p.Kind == PartTool {
			hasTool = true
			break
		}
	}

	segments := make([]Segment, 0, len(parts))
	lastTool := -1
	for _, p := range parts {
		switch p.Kind {
		case PartText, PartReasoning, PartTool:
		default:
			continue
		}
		seg := Segment{
			Part: p,
			Open: !completed && p.Time.Open() && phase != PhaseCompleted,
		}
		if p.Kind == PartText && hasTool && includeReasoning {
			seg.AsJustification = true
		}
		if p.Kind == PartTool {
			if lastTool >= 0 {
				seg.HasPrevTool = true
				segments[lastTool].HasNextTool = true
			}
			lastTool = len(segments)
		}
		segments = append(segments, seg)
	}
	return segments
}

// CopyText derives the plain-text clipboard payload: all text part contents
// concatenated, trimmed, with runs of blank lines collapsed to one.
func CopyText(parts []Part) string {
	var b strings.Builder
	for _, p := range parts {
		if p.Kind != PartText {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString(p.Text)
	}
	return collapseBlankLines(strings.TrimSpace(b.String()))
}

func collapseBlankLines(s string) string {
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	blank := false
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			if blank {
				continue
			}
			blank = true
			out = append(out, "")
			continue
		}
		blank = false
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}
