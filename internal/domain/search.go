package domain

import "time"

// SearchItem is a single result row from the search collaborator.
type SearchItem struct {
	Title   string `json:"title"`
	Link    string `json:"link"`
	Snippet string `json:"snippet,omitempty"`
}

// SearchResult is a persisted set of results for one query.
type SearchResult struct {
	ID         string       `json:"id"`
	User       string       `json:"user"`
	Query      string       `json:"query"`
	ResultType string       `json:"resultType"`
	Items      []SearchItem `json:"items"`
	CreatedAt  time.Time    `json:"createdAt"`
}
