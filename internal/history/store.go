// Package history persists conversation turns and search results, and
// reconstructs the bounded prior-context window fed to the completion API.
package history

import (
	"context"

	"github.com/icymirror/larkgpt/internal/domain"
	"github.com/icymirror/larkgpt/internal/llm"
)

// DefaultWindow is how many recent turns are replayed as prior context.
const DefaultWindow = 6

// Store is the conversation history collaborator. Turns are append-only;
// recency is defined by CreatedAt descending.
type Store interface {
	// AppendTurn persists a turn and returns its id.
	AppendTurn(ctx context.Context, turn domain.Turn) (string, error)

	// RecentTurns returns up to limit most recent turns for the user,
	// ordered oldest-first.
	RecentTurns(ctx context.Context, user string, limit int) ([]domain.Turn, error)

	// Clear removes all turns for the user.
	Clear(ctx context.Context, user string) error

	// AppendSearchResult persists a search result and returns its id.
	AppendSearchResult(ctx context.Context, result domain.SearchResult) (string, error)

	// GetSearchResult returns a persisted search result, or nil if unknown.
	GetSearchResult(ctx context.Context, id string) (*domain.SearchResult, error)
}

// Messages expands turns (oldest-first) into completion API messages,
// newest-last. A turn that recorded a function call expands into the user
// question plus the assistant's function-call message; a turn with an answer
// expands into question plus assistant answer.
func Messages(turns []domain.Turn) []llm.Message {
	msgs := make([]llm.Message, 0, 2*len(turns))
	for _, t := range turns {
		msgs = append(msgs, llm.Text(llm.RoleUser, t.Sent))
		if t.FunctionCall != nil {
			msgs = append(msgs, llm.Message{
				Role:         llm.RoleAssistant,
				FunctionCall: t.FunctionCall,
			})
		}
		if t.Answer != "" {
			msgs = append(msgs, llm.Text(llm.RoleAssistant, t.Answer))
		}
	}
	return msgs
}
