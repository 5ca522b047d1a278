package transcript

import "strings"

// VisibilityOptions controls which parts survive filtering.
type VisibilityOptions struct {
	// IncludeReasoning keeps reasoning parts in the output. When false they
	// are stripped before any later stage sees them.
	IncludeReasoning bool
}

// Visible strips parts that should never render: text parts whose trimmed
// content is empty, and reasoning parts when reasoning display is off.
// Order is preserved. When nothing is dropped the input slice is returned
// as-is so callers can compare by identity across recomputes.
func Visible(parts []Part, opts VisibilityOptions) []Part {
	drop := func(p Part) bool {
		switch p.Kind {
		case PartText:
			return strings.TrimSpace(p.Text) == ""
		case PartReasoning:
			return !opts.IncludeReasoning
		}
		return false
	}

	keepAll := true
	for _, p := range parts {
		if drop(p) {
			keepAll = false
			break
		}
	}
	if keepAll {
		return parts
	}

	out := make([]Part, 0, len(parts))
	for _, p := range parts {
		if !drop(p) {
			out = append(out, p)
		}
	}
	return out
}
