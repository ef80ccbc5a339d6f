// Package render owns the lifecycle of one outgoing card message: create a
// placeholder, patch it as the answer grows, finalize it once.
package render

import "encoding/json"

// Element is one typed display block of a card. The concrete markup is the
// platform's; only the element sequence and update semantics matter here.
type Element interface {
	element() any
}

// TextElement is a plain-text block.
type TextElement struct {
	Content string
}

func (e TextElement) element() any {
	return map[string]any{
		"tag": "div",
		"text": map[string]any{
			"tag":     "plain_text",
			"content": e.Content,
		},
	}
}

// MarkdownElement is a rendered-markdown block.
type MarkdownElement struct {
	Content string
}

func (e MarkdownElement) element() any {
	return map[string]any{
		"tag":     "markdown",
		"content": e.Content,
	}
}

// NoteElement is a status annotation rendered in the card's note style.
type NoteElement struct {
	Content string
}

func (e NoteElement) element() any {
	return map[string]any{
		"tag": "note",
		"elements": []any{
			map[string]any{
				"tag":     "plain_text",
				"content": e.Content,
			},
		},
	}
}

// ButtonElement is an action button carrying an opaque value.
type ButtonElement struct {
	Text  string
	Value string
}

func (e ButtonElement) element() any {
	return map[string]any{
		"tag": "action",
		"actions": []any{
			map[string]any{
				"tag":   "button",
				"type":  "default",
				"text":  map[string]any{"tag": "plain_text", "content": e.Text},
				"value": map[string]any{"value": e.Value},
			},
		},
	}
}

// Card is an ordered list of elements.
type Card struct {
	Elements []Element
}

// NewCard builds a card from the given elements.
func NewCard(elements ...Element) Card {
	return Card{Elements: elements}
}

// Content marshals the card body for an interactive message.
func (c Card) Content() (string, error) {
	elements := make([]any, 0, len(c.Elements))
	for _, e := range c.Elements {
		elements = append(elements, e.element())
	}
	body := map[string]any{
		"config":   map[string]any{"wide_screen_mode": true},
		"elements": elements,
	}
	data, err := json.Marshal(body)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
