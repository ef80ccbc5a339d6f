package search

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/icymirror/larkgpt/internal/chat"
	"github.com/icymirror/larkgpt/internal/domain"
	"github.com/icymirror/larkgpt/internal/llm"
	"github.com/icymirror/larkgpt/internal/logging"
)

// ResultStore persists search results for later inspection. The history
// store satisfies this.
type ResultStore interface {
	AppendSearchResult(ctx context.Context, result domain.SearchResult) (string, error)
}

// FunctionName is the name the model uses to request a web search.
const FunctionName = "search_web"

// noResults is streamed when the search comes back empty.
const noResults = "I couldn't find anything on the web about that."

var parameters = json.RawMessage(`{
	"type": "object",
	"properties": {
		"keyword": {
			"type": "string",
			"description": "The keyword or phrase to search the web for."
		}
	},
	"required": ["keyword"]
}`)

// Streamer answers a question with a stream of answer-so-far values.
// *chat.Orchestrator satisfies this.
type Streamer interface {
	ChatStream(ctx context.Context, user, question, model string, fns []chat.FunctionDescriptor) <-chan string
}

// NewFunction builds the per-request search descriptor. announce is called
// with the keyword before the search runs, so the caller can surface what
// is happening while the answer is still empty. The follow-up answer is
// produced by a nested completion over the results, which records its own
// conversation turn.
func NewFunction(searcher Searcher, store ResultStore, streamer Streamer, user string, announce func(keyword string), log *logging.Logger) chat.FunctionDescriptor {
	slog := log.Sub("search")

	return chat.FunctionDescriptor{
		Schema: llm.FunctionSchema{
			Name:        FunctionName,
			Description: "Search the web for current information the assistant does not know.",
			Parameters:  parameters,
		},
		Handle: func(ctx context.Context, arguments string) <-chan string {
			out := make(chan string)
			go func() {
				defer close(out)

				var args struct {
					Keyword string `json:"keyword"`
				}
				if err := json.Unmarshal([]byte(arguments), &args); err != nil || strings.TrimSpace(args.Keyword) == "" {
					slog.Warn().Str("arguments", arguments).Msg("unusable search arguments")
					emit(ctx, out, noResults)
					return
				}

				if announce != nil {
					announce(args.Keyword)
				}

				items := searcher.Search(ctx, args.Keyword)
				if len(items) == 0 {
					emit(ctx, out, noResults)
					return
				}

				result := domain.SearchResult{
					ID:         uuid.NewString(),
					User:       user,
					Query:      args.Keyword,
					ResultType: "web",
					Items:      items,
					CreatedAt:  time.Now(),
				}
				if _, err := store.AppendSearchResult(ctx, result); err != nil {
					slog.Error().Err(err).Str("query", args.Keyword).Msg("persisting search result failed")
				}

				for v := range streamer.ChatStream(ctx, user, resultsPrompt(args.Keyword, items), "", nil) {
					if !emit(ctx, out, v) {
						return
					}
				}
			}()
			return out
		},
	}
}

func emit(ctx context.Context, out chan<- string, v string) bool {
	select {
	case out <- v:
		return true
	case <-ctx.Done():
		return false
	}
}

// resultsPrompt formats search results into a question the model can answer
// from, with links it can cite.
func resultsPrompt(keyword string, items []domain.SearchItem) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Here are web search results for %q:\n\n", keyword)
	for i, it := range items {
		fmt.Fprintf(&b, "%d. %s\n%s\n%s\n\n", i+1, it.Title, it.Snippet, it.Link)
	}
	fmt.Fprintf(&b, "Using the results above, answer the question %q. Mention the source link when it matters.", keyword)
	return b.String()
}
