package render

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCardContent_ElementOrder(t *testing.T) {
	card := NewCard(
		NoteElement{Content: "searching: go"},
		TextElement{Content: "Go is a language."},
		ButtonElement{Text: "More", Value: "sr-123"},
	)

	content, err := card.Content()
	require.NoError(t, err)

	var body struct {
		Config   map[string]any   `json:"config"`
		Elements []map[string]any `json:"elements"`
	}
	require.NoError(t, json.Unmarshal([]byte(content), &body))

	assert.Equal(t, true, body.Config["wide_screen_mode"])
	require.Len(t, body.Elements, 3)
	assert.Equal(t, "note", body.Elements[0]["tag"])
	assert.Equal(t, "div", body.Elements[1]["tag"])
	assert.Equal(t, "action", body.Elements[2]["tag"])
}

func TestMarkdownElement(t *testing.T) {
	content, err := NewCard(MarkdownElement{Content: "**bold**"}).Content()
	require.NoError(t, err)
	assert.Contains(t, content, `"tag":"markdown"`)
	assert.Contains(t, content, "**bold**")
}
