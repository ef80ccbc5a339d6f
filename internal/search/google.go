// Package search provides the web-search capability the model can invoke:
// a Google Custom Search client behind a circuit breaker, and the function
// descriptor that turns results into a follow-up answer.
package search

import (
	"context"
	"fmt"
	"time"

	"github.com/sony/gobreaker/v2"
	"google.golang.org/api/customsearch/v1"
	"google.golang.org/api/option"

	"github.com/icymirror/larkgpt/internal/domain"
	"github.com/icymirror/larkgpt/internal/logging"
)

// Breaker settings. Search is an optional enrichment, so the breaker trips
// early and the bot degrades to answering without it.
const (
	breakerMaxFailures = 3
	breakerTimeout     = 60 * time.Second
)

// Config configures the Google Custom Search client.
type Config struct {
	APIKey   string
	EngineID string

	// MaxResults per query, capped at 10 by the API. Zero means 5.
	MaxResults int
}

// Searcher runs a web search. A failed or empty search returns nil; search
// failures never surface as errors to the conversation.
type Searcher interface {
	Search(ctx context.Context, query string) []domain.SearchItem
}

// GoogleClient is a Searcher backed by the Custom Search JSON API.
type GoogleClient struct {
	svc      *customsearch.Service
	engineID string
	num      int64
	breaker  *gobreaker.CircuitBreaker[[]domain.SearchItem]
	log      *logging.Logger
}

// NewGoogleClient builds the search client.
func NewGoogleClient(ctx context.Context, cfg Config, log *logging.Logger) (*GoogleClient, error) {
	svc, err := customsearch.NewService(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("creating customsearch service: %w", err)
	}

	num := int64(cfg.MaxResults)
	if num <= 0 {
		num = 5
	}

	slog := log.Sub("search")
	breaker := gobreaker.NewCircuitBreaker[[]domain.SearchItem](gobreaker.Settings{
		Name:        "google-search",
		MaxRequests: 1,
		Timeout:     breakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= breakerMaxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("circuit breaker state change")
		},
	})

	return &GoogleClient{
		svc:      svc,
		engineID: cfg.EngineID,
		num:      num,
		breaker:  breaker,
		log:      slog,
	}, nil
}

// Search implements Searcher. Failures, including an open breaker, are
// logged and reported as no results.
func (c *GoogleClient) Search(ctx context.Context, query string) []domain.SearchItem {
	items, err := c.breaker.Execute(func() ([]domain.SearchItem, error) {
		resp, err := c.svc.Cse.List().
			Context(ctx).
			Cx(c.engineID).
			Q(query).
			Num(c.num).
			Do()
		if err != nil {
			return nil, err
		}

		items := make([]domain.SearchItem, 0, len(resp.Items))
		for _, it := range resp.Items {
			items = append(items, domain.SearchItem{
				Title:   it.Title,
				Link:    it.Link,
				Snippet: it.Snippet,
			})
		}
		return items, nil
	})
	if err != nil {
		c.log.Warn().Err(err).Str("query", query).Msg("search failed")
		return nil
	}
	return items
}
