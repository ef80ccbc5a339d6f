// Package lark is the outbound messenger client: tenant token management,
// card replies and in-place card patches, plus inbound webhook event parsing.
package lark

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/icymirror/larkgpt/internal/logging"
	"github.com/icymirror/larkgpt/internal/render"
)

// DefaultBaseURL is the platform's open API root.
const DefaultBaseURL = "https://open.feishu.cn/open-apis"

// tokenSlack renews the tenant token this long before its reported expiry.
const tokenSlack = 5 * time.Minute

// ClientConfig configures the messenger client.
type ClientConfig struct {
	BaseURL   string
	AppID     string
	AppSecret string

	// RateLimit caps outbound API calls per second. Zero means 5/s,
	// matching the platform's per-app message edit quota.
	RateLimit float64
}

// Client talks to the IM platform's HTTP API. Constructed once at startup
// and shared read-only; token refresh is internally synchronized.
type Client struct {
	baseURL   string
	appID     string
	appSecret string
	http      *http.Client
	limiter   *rate.Limiter
	log       *logging.Logger

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
}

// NewClient creates a messenger client.
func NewClient(cfg ClientConfig, log *logging.Logger) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	qps := cfg.RateLimit
	if qps <= 0 {
		qps = 5
	}
	return &Client{
		baseURL:   baseURL,
		appID:     cfg.AppID,
		appSecret: cfg.AppSecret,
		http:      &http.Client{Timeout: 30 * time.Second},
		limiter:   rate.NewLimiter(rate.Limit(qps), 1),
		log:       log.Sub("lark"),
	}
}

// apiResponse is the common envelope of platform API responses.
type apiResponse struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
	Data struct {
		MessageID string `json:"message_id"`
	} `json:"data"`
}

// tokenResponse is the tenant token endpoint's envelope.
type tokenResponse struct {
	Code              int    `json:"code"`
	Msg               string `json:"msg"`
	TenantAccessToken string `json:"tenant_access_token"`
	Expire            int    `json:"expire"` // seconds
}

// tenantToken returns a cached tenant access token, refreshing when stale.
func (c *Client) tenantToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && time.Now().Before(c.tokenExpiry) {
		return c.token, nil
	}

	payload, _ := json.Marshal(map[string]string{
		"app_id":     c.appID,
		"app_secret": c.appSecret,
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/auth/v3/tenant_access_token/internal", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("creating token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return "", fmt.Errorf("parsing token response: %w", err)
	}
	if tr.Code != 0 {
		return "", fmt.Errorf("token endpoint error (%d): %s", tr.Code, tr.Msg)
	}

	c.token = tr.TenantAccessToken
	c.tokenExpiry = time.Now().Add(time.Duration(tr.Expire)*time.Second - tokenSlack)
	c.log.Debug().Time("expiry", c.tokenExpiry).Msg("tenant token refreshed")
	return c.token, nil
}

// call issues one authenticated API request and decodes the envelope.
func (c *Client) call(ctx context.Context, method, path string, body any) (*apiResponse, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	token, err := c.tenantToken(ctx)
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	var ar apiResponse
	if err := json.Unmarshal(raw, &ar); err != nil {
		return nil, fmt.Errorf("parsing response (%d): %w", resp.StatusCode, err)
	}
	if ar.Code != 0 {
		return nil, fmt.Errorf("messenger API error (%d): %s", ar.Code, ar.Msg)
	}
	return &ar, nil
}

// Reply posts an interactive card as a reply and returns the new message id.
func (c *Client) Reply(ctx context.Context, messageID string, card render.Card) (string, error) {
	content, err := card.Content()
	if err != nil {
		return "", fmt.Errorf("rendering card: %w", err)
	}

	ar, err := c.call(ctx, http.MethodPost, "/im/v1/messages/"+messageID+"/reply", map[string]string{
		"msg_type": "interactive",
		"content":  content,
	})
	if err != nil {
		return "", err
	}
	return ar.Data.MessageID, nil
}

// Patch replaces the content of an already-sent card message.
func (c *Client) Patch(ctx context.Context, messageID string, card render.Card) error {
	content, err := card.Content()
	if err != nil {
		return fmt.Errorf("rendering card: %w", err)
	}

	_, err = c.call(ctx, http.MethodPatch, "/im/v1/messages/"+messageID, map[string]string{
		"content": content,
	})
	return err
}

// ReplyText posts a plain text reply, used for error notices.
func (c *Client) ReplyText(ctx context.Context, messageID, text string) error {
	content, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return fmt.Errorf("marshaling text content: %w", err)
	}

	_, err = c.call(ctx, http.MethodPost, "/im/v1/messages/"+messageID+"/reply", map[string]string{
		"msg_type": "text",
		"content":  string(content),
	})
	return err
}
