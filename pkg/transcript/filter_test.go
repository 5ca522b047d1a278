package transcript

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVisible_DropsEmptyText(t *testing.T) {
	parts := []Part{
		{ID: "p1", Kind: PartText, Text: "hello"},
		{ID: "p2", Kind: PartText, Text: "   \n\t"},
		{ID: "p3", Kind: PartText, Text: ""},
		{ID: "p4", Kind: PartTool, Tool: &ToolCall{Name: "bash"}},
	}

	got := Visible(parts, VisibilityOptions{IncludeReasoning: true})
	require.Len(t, got, 2)
	assert.Equal(t, "p1", got[0].ID)
	assert.Equal(t, "p4", got[1].ID)
}

func TestVisible_ReasoningToggle(t *testing.T) {
	parts := []Part{
		{ID: "p1", Kind: PartReasoning, Text: "thinking..."},
		{ID: "p2", Kind: PartText, Text: "answer"},
	}

	hidden := Visible(parts, VisibilityOptions{IncludeReasoning: false})
	require.Len(t, hidden, 1)
	assert.Equal(t, "p2", hidden[0].ID)

	shown := Visible(parts, VisibilityOptions{IncludeReasoning: true})
	assert.Len(t, shown, 2)
}

func TestVisible_ReturnsSameSliceWhenNothingDropped(t *testing.T) {
	parts := []Part{
		{ID: "p1", Kind: PartText, Text: "a"},
		{ID: "p2", Kind: PartTool, Tool: &ToolCall{Name: "read"}},
		{ID: "p3", Kind: PartStepStart},
	}

	got := Visible(parts, VisibilityOptions{IncludeReasoning: true})
	// Referential stability: equal input must yield the identical slice so
	// downstream caches can compare by identity.
	assert.Same(t, &parts[0], &got[0])
	assert.Len(t, got, 3)
}

func TestVisible_PreservesOrder(t *testing.T) {
	parts := []Part{
		{ID: "a", Kind: PartText, Text: "first"},
		{ID: "b", Kind: PartReasoning, Text: "skip"},
		{ID: "c", Kind: PartText, Text: "second"},
		{ID: "d", Kind: PartText, Text: " "},
		{ID: "e", Kind: PartTool, Tool: &ToolCall{Name: "grep"}},
	}

	got := Visible(parts, VisibilityOptions{})
	ids := make([]string, 0, len(got))
	for _, p := range got {
		ids = append(ids, p.ID)
	}
	assert.Equal(t, []string{"a", "c", "e"}, ids)
}

func TestVisible_EmptyInput(t *testing.T) {
	assert.Empty(t, Visible(nil, VisibilityOptions{}))
	assert.Empty(t, Visible([]Part{}, VisibilityOptions{IncludeReasoning: true}))
}
