package metadata

import "strings"

// FormatModeName renders an agent mode id for display: first letter upper,
// rest lower ("build" -> "Build").
func FormatModeName(mode string) string {
	mode = strings.TrimSpace(mode)
	if mode == "" {
		return ""
	}
	return capitalize(mode)
}

// FormatModelName renders a model id for display. Dash-separated words are
// capitalized, and a dash between two digits becomes a dot so version pairs
// read naturally: "claude-sonnet-4-5" -> "Claude Sonnet 4.5".
func FormatModelName(model string) string {
	model = strings.TrimSpace(model)
	if model == "" {
		return ""
	}

	var words []string
	var buf strings.Builder
	runes := []rune(model)
	for i, ch := range runes {
		if ch != '-' {
			buf.WriteRune(ch)
			continue
		}
		prevDigit := i > 0 && isASCIIDigit(runes[i-1])
		nextDigit := i+1 < len(runes) && isASCIIDigit(runes[i+1])
		if prevDigit && nextDigit {
			buf.WriteByte('.')
			continue
		}
		if buf.Len() > 0 {
			words = append(words, buf.String())
			buf.Reset()
		}
	}
	if buf.Len() > 0 {
		words = append(words, buf.String())
	}

	for i, w := range words {
		words[i] = capitalize(w)
	}
	return strings.Join(words, " ")
}

func capitalize(w string) string {
	r := []rune(w)
	if len(r) == 0 {
		return ""
	}
	return strings.ToUpper(string(r[0])) + strings.ToLower(string(r[1:]))
}

func isASCIIDigit(r rune) bool {
	return r >= '0' && r <= '9'
}
