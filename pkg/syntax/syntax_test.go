package syntax

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/btriapitsyn/openchamber-sub004/pkg/theme"
)

func TestTable_CoversAllClasses(t *testing.T) {
	table := Table(theme.Default())
	for _, class := range []TokenClass{
		ClassDefault, ClassKeyword, ClassTypeName, ClassFunction, ClassString,
		ClassNumber, ClassComment, ClassOperator, ClassPunctuation,
		ClassBuiltin, ClassVariable, ClassError,
	} {
		style, ok := table[class]
		require.True(t, ok, "missing class %s", class)
		assert.NotEmpty(t, style.Color, "class %s has no color", class)
	}
}

func TestTable_NilThemeUsesDefault(t *testing.T) {
	assert.Equal(t, Table(theme.Default()), Table(nil))
}

func TestHighlightLines_Go(t *testing.T) {
	code := "package main\n\nfunc main() {\n\treturn\n}"
	lines := HighlightLines(code, "go")
	require.Len(t, lines, 5)

	assert.True(t, lines[1].Blank)

	classes := map[TokenClass]bool{}
	for _, line := range lines {
		for _, span := range line.Spans {
			classes[span.Class] = true
		}
	}
	assert.True(t, classes[ClassKeyword], "expected keyword tokens in %v", lines)
}

func TestHighlightLines_UnknownLanguageStillStyles(t *testing.T) {
	lines := HighlightLines("just some words", "no-such-language")
	require.NotEmpty(t, lines)

	var text strings.Builder
	for _, span := range lines[0].Spans {
		text.WriteString(span.Text)
	}
	assert.Equal(t, "just some words", text.String())
}

func TestHighlightLines_Empty(t *testing.T) {
	lines := HighlightLines("", "go")
	require.Len(t, lines, 1)
	assert.True(t, lines[0].Blank)
}
