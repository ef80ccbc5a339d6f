package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/icymirror/larkgpt/internal/logging"
)

// maxErrorBodyBytes caps how much of a failed response body is read.
const maxErrorBodyBytes = 64 * 1024

// ClientConfig configures the completion API client.
type ClientConfig struct {
	BaseURL string // defaults to https://api.openai.com/v1
	APIKey  string
	Proxy   string // optional HTTP proxy URL
}

// OpenAIClient is a streaming HTTP client for an OpenAI-compatible chat
// completion API. Constructed once at startup and shared read-only.
type OpenAIClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
	log     *logging.Logger
}

// NewOpenAIClient creates a completion API client.
func NewOpenAIClient(cfg ClientConfig, log *logging.Logger) (*OpenAIClient, error) {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if cfg.Proxy != "" {
		proxyURL, err := url.Parse(cfg.Proxy)
		if err != nil {
			return nil, fmt.Errorf("parsing proxy url: %w", err)
		}
		transport.Proxy = http.ProxyURL(proxyURL)
	}

	return &OpenAIClient{
		baseURL: baseURL,
		apiKey:  cfg.APIKey,
		// No overall timeout: a streaming response stays open for as long
		// as the model keeps producing tokens.
		client: &http.Client{Transport: transport},
		log:    log.Sub("llm"),
	}, nil
}

// StreamChat issues a streaming completion request and returns the decoded
// event stream. Endpoint failures are returned as *APIError.
func (c *OpenAIClient) StreamChat(ctx context.Context, req CompletionRequest) (<-chan Event, error) {
	if req.Model == "" {
		req.Model = DefaultModel
	}
	req.Stream = true

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshaling completion request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("creating completion request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Accept", "text/event-stream")

	start := time.Now()
	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("completion request failed: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		resp.Body.Close()
		apiErr := parseAPIError(resp.StatusCode, body)
		c.log.Warn().
			Int("status", apiErr.StatusCode).
			Str("code", apiErr.Code).
			Msg("completion request rejected")
		return nil, apiErr
	}

	c.log.Debug().
		Str("model", req.Model).
		Int("messages", len(req.Messages)).
		Dur("connectTime", time.Since(start)).
		Msg("completion stream opened")

	return Decode(ctx, resp.Body, c.log), nil
}
