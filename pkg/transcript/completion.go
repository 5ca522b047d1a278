package transcript

import "strings"

// IsMessageCompleted reports whether a message's visible parts are fully
// settled and safe to treat as final.
//
// User messages are always complete. An assistant message is complete only if
// the backend has written time.completed and every tool, reasoning, and text
// part has a closed interval. The backend can flush time.completed slightly
// before trailing part-close events, so checking the parts as well keeps
// half-streamed tool output from rendering as final. A message with zero
// relevant parts is trivially complete. Missing timestamps count as "still
// streaming", never as errors.
func IsMessageCompleted(msg Message, parts []Part) bool {
	if msg.Role == RoleUser {
		return true
	}
	if msg.Time.Completed <= 0 {
		return false
	}
	for _, p := range parts {
		switch p.Kind {
		case PartText, PartReasoning, PartTool:
			if p.Time.Open() {
				return false
			}
		}
	}
	return true
}

// OpenStepCount returns how many step-start parts have no matching
// step-finish yet. Negative counts are clamped to zero.
func OpenStepCount(parts []Part) int {
	n := 0
	for _, p := range parts {
		switch p.Kind {
		case PartStepStart:
			n++
		case PartStepFinish:
			n--
		}
	}
	if n < 0 {
		n = 0
	}
	return n
}

// HasOpenStep reports whether the message is still inside a tool-coordination
// step, forcing "still coordinating" treatment even when the individual
// text and tool parts look closed.
func HasOpenStep(parts []Part) bool {
	return OpenStepCount(parts) > 0
}

// ShouldCoordinate reports whether the message is producing multi-part output
// that needs coordinated rendering: an open step, or tool parts interleaved
// with visible text.
func ShouldCoordinate(parts []Part) bool {
	if HasOpenStep(parts) {
		return true
	}
	var hasTool, hasText bool
	for _, p := range parts {
		switch p.Kind {
		case PartTool:
			hasTool = true
		case PartText:
			if strings.TrimSpace(p.Text) != "" {
				hasText = true
			}
		}
	}
	return hasTool && hasText
}
