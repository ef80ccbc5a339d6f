// Package llm talks to an OpenAI-compatible chat completion endpoint and
// decodes its server-sent-event stream into cumulative answer text plus an
// optional function-call record.
package llm

import (
	"context"
	"encoding/json"

	"github.com/icymirror/larkgpt/internal/domain"
)

// Role constants for messages.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// DefaultModel is used when a request does not name a model.
const DefaultModel = "gpt-3.5-turbo"

// Message is a single turn sent to the completion API. Content is a pointer
// because function-call turns carry a null content on the wire.
type Message struct {
	Role         string               `json:"role"`
	Content      *string              `json:"content"`
	FunctionCall *domain.FunctionCall `json:"function_call,omitempty"`
}

// Text builds a plain text message.
func Text(role, content string) Message {
	return Message{Role: role, Content: &content}
}

// FunctionSchema describes a callable function to the model.
type FunctionSchema struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
}

// CompletionRequest is the body of a streaming chat completion call.
type CompletionRequest struct {
	Model        string           `json:"model"`
	Messages     []Message        `json:"messages"`
	Stream       bool             `json:"stream"`
	Functions    []FunctionSchema `json:"functions,omitempty"`
	FunctionCall any              `json:"function_call,omitempty"` // "auto" | "none" | {"name": ...}
}

// Event is one decoded value from a completion stream.
type Event struct {
	// Type is "text", "function_call" or "error".
	Type string

	// Text is the full answer-so-far, not a delta.
	Text string

	// FunctionCall is set once, after the stream ends, when the model
	// requested a function instead of answering directly.
	FunctionCall *domain.FunctionCall

	// Err is set on the terminal error event when the stream died before
	// reaching its sentinel. Values emitted before it stand.
	Err error
}

// Event types.
const (
	EventText         = "text"
	EventFunctionCall = "function_call"
	EventError        = "error"
)

// Completer issues streaming completion requests. The returned channel closes
// when the stream ends; a request-level failure surfaces as an error (an
// *APIError when the endpoint answered with a structured failure).
type Completer interface {
	StreamChat(ctx context.Context, req CompletionRequest) (<-chan Event, error)
}
