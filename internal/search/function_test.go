package search

import (
	"context"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/icymirror/larkgpt/internal/chat"
	"github.com/icymirror/larkgpt/internal/domain"
	"github.com/icymirror/larkgpt/internal/logging"
)

type fakeSearcher struct {
	items   []domain.SearchItem
	queries []string
}

func (f *fakeSearcher) Search(_ context.Context, query string) []domain.SearchItem {
	f.queries = append(f.queries, query)
	return f.items
}

type fakeStreamer struct {
	questions []string
	values    []string
}

func (f *fakeStreamer) ChatStream(_ context.Context, _, question, _ string, _ []chat.FunctionDescriptor) <-chan string {
	f.questions = append(f.questions, question)
	ch := make(chan string, len(f.values))
	for _, v := range f.values {
		ch <- v
	}
	close(ch)
	return ch
}

type resultStore struct {
	mu      sync.Mutex
	results []domain.SearchResult
}

func (s *resultStore) AppendTurn(_ context.Context, t domain.Turn) (string, error) { return t.ID, nil }
func (s *resultStore) RecentTurns(_ context.Context, _ string, _ int) ([]domain.Turn, error) {
	return nil, nil
}
func (s *resultStore) Clear(_ context.Context, _ string) error { return nil }
func (s *resultStore) AppendSearchResult(_ context.Context, r domain.SearchResult) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results = append(s.results, r)
	return r.ID, nil
}
func (s *resultStore) GetSearchResult(_ context.Context, _ string) (*domain.SearchResult, error) {
	return nil, nil
}

func collect(ch <-chan string) []string {
	var out []string
	for v := range ch {
		out = append(out, v)
	}
	return out
}

func TestSearchFunctionHappyPath(t *testing.T) {
	searcher := &fakeSearcher{items: []domain.SearchItem{
		{Title: "Go", Link: "https://go.dev", Snippet: "The Go programming language."},
	}}
	streamer := &fakeStreamer{values: []string{"Go is", "Go is a language"}}
	store := &resultStore{}
	var announced string

	fn := NewFunction(searcher, store, streamer, "u1", func(keyword string) {
		announced = keyword
	}, logging.New(io.Discard, "silent"))

	assert.Equal(t, FunctionName, fn.Schema.Name)

	got := collect(fn.Handle(context.Background(), `{"keyword":"golang"}`))
	assert.Equal(t, []string{"Go is", "Go is a language"}, got)
	assert.Equal(t, "golang", announced)
	assert.Equal(t, []string{"golang"}, searcher.queries)

	// The nested question carries the results and the original keyword.
	require.Len(t, streamer.questions, 1)
	assert.Contains(t, streamer.questions[0], "https://go.dev")
	assert.Contains(t, streamer.questions[0], `"golang"`)

	require.Len(t, store.results, 1)
	assert.Equal(t, "u1", store.results[0].User)
	assert.Equal(t, "golang", store.results[0].Query)
	assert.Equal(t, "web", store.results[0].ResultType)
	require.Len(t, store.results[0].Items, 1)
}

func TestSearchFunctionEmptyResults(t *testing.T) {
	fn := NewFunction(&fakeSearcher{}, &resultStore{}, &fakeStreamer{}, "u1", nil, logging.New(io.Discard, "silent"))

	got := collect(fn.Handle(context.Background(), `{"keyword":"nothing"}`))
	assert.Equal(t, []string{noResults}, got)
}

func TestSearchFunctionBadArguments(t *testing.T) {
	searcher := &fakeSearcher{items: []domain.SearchItem{{Title: "x"}}}
	fn := NewFunction(searcher, &resultStore{}, &fakeStreamer{}, "u1", nil, logging.New(io.Discard, "silent"))

	for _, args := range []string{"not json", `{}`, `{"keyword":"  "}`} {
		got := collect(fn.Handle(context.Background(), args))
		assert.Equal(t, []string{noResults}, got, "args: %s", args)
	}
	assert.Empty(t, searcher.queries)
}

func TestResultsPromptNumbersItems(t *testing.T) {
	p := resultsPrompt("k", []domain.SearchItem{
		{Title: "a", Link: "la", Snippet: "sa"},
		{Title: "b", Link: "lb", Snippet: "sb"},
	})
	assert.True(t, strings.Contains(p, "1. a") && strings.Contains(p, "2. b"))
	assert.Contains(t, p, "la")
}
