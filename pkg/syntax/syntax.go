// Package syntax classifies code into style tokens for fenced code blocks in
// assistant messages. The output is an opaque token table plus styled spans;
// the render core only passes them through.
package syntax

import (
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/lexers"

	"github.com/btriapitsyn/openchamber-sub004/pkg/theme"
)

// TokenClass names one style slot of the token table.
type TokenClass string

const (
	ClassDefault     TokenClass = "default"
	ClassKeyword     TokenClass = "keyword"
	ClassTypeName    TokenClass = "type"
	ClassFunction    TokenClass = "function"
	ClassString      TokenClass = "string"
	ClassNumber      TokenClass = "number"
	ClassComment     TokenClass = "comment"
	ClassOperator    TokenClass = "operator"
	ClassPunctuation TokenClass = "punctuation"
	ClassBuiltin     TokenClass = "builtin"
	ClassVariable    TokenClass = "variable"
	ClassError       TokenClass = "error"
)

// TokenStyle is one resolved style of the table.
type TokenStyle struct {
	Color  string `json:"color"`
	Bold   bool   `json:"bold,omitempty"`
	Italic bool   `json:"italic,omitempty"`
}

// TokenTable maps token classes to theme-resolved styles.
type TokenTable map[TokenClass]TokenStyle

// Table builds the token table for a theme.
func Table(t *theme.Theme) TokenTable {
	if t == nil {
		t = theme.Default()
	}
	return TokenTable{
		ClassDefault:     {Color: t.TextPrimary},
		ClassKeyword:     {Color: t.CodeKeyword, Bold: true},
		ClassTypeName:    {Color: t.CodeType},
		ClassFunction:    {Color: t.CodeFunction},
		ClassString:      {Color: t.CodeString},
		ClassNumber:      {Color: t.CodeNumber},
		ClassComment:     {Color: t.CodeComment, Italic: true},
		ClassOperator:    {Color: t.CodeOperator},
		ClassPunctuation: {Color: t.TextMuted},
		ClassBuiltin:     {Color: t.CodeType},
		ClassVariable:    {Color: t.TextPrimary},
		ClassError:       {Color: t.CodeError, Bold: true},
	}
}

// Span is a run of code sharing one token class.
type Span struct {
	Text  string     `json:"text"`
	Class TokenClass `json:"class"`
}

// Line is one highlighted code line.
type Line struct {
	Spans []Span `json:"spans,omitempty"`
	Blank bool   `json:"blank,omitempty"`
}

// HighlightLines tokenizes code into classified lines. Unknown languages fall
// back to content analysis, then to a plain-text lexer; errors degrade to
// unstyled lines rather than failing.
func HighlightLines(code, language string) []Line {
	if code == "" {
		return []Line{{Blank: true}}
	}

	lexer := lexers.Get(language)
	if lexer == nil {
		lexer = lexers.Analyse(code)
	}
	if lexer == nil {
		lexer = lexers.Fallback
	}
	lexer = chroma.Coalesce(lexer)

	iter, err := lexer.Tokenise(nil, code)
	if err != nil {
		return plainLines(code)
	}

	var lines []Line
	var current Line
	flush := func(force bool) {
		if len(current.Spans) == 0 && !force {
			return
		}
		if len(current.Spans) == 0 {
			current.Blank = true
		}
		lines = append(lines, current)
		current = Line{}
	}

	for token := iter(); token != chroma.EOF; token = iter() {
		if token.Value == "" {
			continue
		}
		class := classForToken(token.Type)
		parts := strings.Split(token.Value, "\n")
		for i, part := range parts {
			if part != "" {
				appendSpan(&current.Spans, Span{Text: part, Class: class})
			}
			if i < len(parts)-1 {
				flush(true)
			}
		}
	}
	flush(false)

	if len(lines) == 0 {
		lines = append(lines, Line{Blank: true})
	}
	return lines
}

func classForToken(ttype chroma.TokenType) TokenClass {
	if ttype == chroma.Error {
		return ClassError
	}
	switch {
	case ttype.InCategory(chroma.Comment):
		return ClassComment
	case ttype.InCategory(chroma.Keyword):
		return ClassKeyword
	case ttype.InCategory(chroma.LiteralString):
		return ClassString
	case ttype.InCategory(chroma.LiteralNumber):
		return ClassNumber
	case ttype.InCategory(chroma.Operator):
		return ClassOperator
	case ttype.InCategory(chroma.Punctuation):
		return ClassPunctuation
	case ttype.InCategory(chroma.Name):
		switch ttype {
		case chroma.NameFunction, chroma.NameFunctionMagic:
			return ClassFunction
		case chroma.NameClass, chroma.NameNamespace:
			return ClassTypeName
		case chroma.NameBuiltin, chroma.NameBuiltinPseudo:
			return ClassBuiltin
		case chroma.NameVariable, chroma.NameVariableClass, chroma.NameVariableGlobal, chroma.NameVariableInstance, chroma.NameVariableMagic:
			return ClassVariable
		case chroma.NameConstant:
			return ClassNumber
		}
	}
	return ClassDefault
}

func appendSpan(spans *[]Span, span Span) {
	if span.Text == "" {
		return
	}
	if len(*spans) > 0 {
		last := &(*spans)[len(*spans)-1]
		if last.Class == span.Class {
			last.Text += span.Text
			return
		}
	}
	*spans = append(*spans, span)
}

func plainLines(code string) []Line {
	raw := strings.Split(code, "\n")
	lines := make([]Line, 0, len(raw))
	for _, l := range raw {
		if l == "" {
			lines = append(lines, Line{Blank: true})
			continue
		}
		lines = append(lines, Line{Spans: []Span{{Text: l, Class: ClassDefault}}})
	}
	return lines
}
