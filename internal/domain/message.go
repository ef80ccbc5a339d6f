// Package domain holds the shared types of the relay: inbound IM messages,
// persisted conversation turns, and search results.
package domain

import "time"

// ChatType classifies the conversation context.
type ChatType string

const (
	ChatTypeP2P   ChatType = "p2p"
	ChatTypeGroup ChatType = "group"
)

// Mention is a user referenced in a group message.
type Mention struct {
	Key  string `json:"key"`
	Name string `json:"name"`
}

// IncomingMessage is a chat message extracted from a webhook event.
type IncomingMessage struct {
	MessageID string    `json:"messageId"`
	ChatID    string    `json:"chatId"`
	ChatType  ChatType  `json:"chatType"`
	Text      string    `json:"text"`
	Mentions  []Mention `json:"mentions,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// FunctionCall is the model's structured request to invoke a named local
// capability with JSON-encoded arguments, in lieu of a direct text answer.
type FunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// Turn is one persisted question/answer (or question/function-call) pair.
// Immutable once stored; ordering by CreatedAt descending defines recency.
type Turn struct {
	ID           string        `json:"id"`
	User         string        `json:"user"`
	Sent         string        `json:"sent"`
	Answer       string        `json:"answer,omitempty"`
	FunctionCall *FunctionCall `json:"functionCall,omitempty"`
	CreatedAt    time.Time     `json:"createdAt"`
}
