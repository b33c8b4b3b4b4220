// Package ai talks to an OpenAI-compatible chat-completion endpoint.
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/cppla/fallenleaves/metrics"
)

const (
	// DefaultMaxRetries is how many times a rate-limited call is repeated.
	DefaultMaxRetries = 3
	// DefaultSystemPrompt is sent as the system message of every request.
	DefaultSystemPrompt = "You are an assistant."
)

var (
	// ErrMissingAPIKey means no credential is configured; no request is sent.
	ErrMissingAPIKey = errors.New("completion API key is missing")
	// ErrRateLimited is returned once every retry was answered with 429.
	ErrRateLimited = errors.New("completion service rate limit exceeded")
	// ErrEmptyCompletion is returned when the service answers without any choice.
	ErrEmptyCompletion = errors.New("completion service returned no content")
)

// StatusError is a non-2xx, non-429 answer from the completion service.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("completion service status %d: %s", e.StatusCode, e.Body)
}

// Config holds the request parameters of the completion service.
type Config struct {
	BaseURL     string
	APIKey      string
	Model       string
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration
}

// Message is one chat message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Temperature float64   `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Client calls the chat-completions endpoint with a bounded retry on 429.
type Client struct {
	cfg        Config
	httpClient *http.Client
	maxRetries int
	backoff    func(attempt int) time.Duration
	sleep      func(ctx context.Context, d time.Duration) error
	log        *zap.Logger
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithMaxRetries sets how many times a rate-limited call is repeated.
func WithMaxRetries(n int) Option {
	return func(c *Client) { c.maxRetries = n }
}

// WithSleep replaces the wait used between retries.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(c *Client) { c.sleep = sleep }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.log = l }
}

// NewClient builds a Client. A missing API key is reported per call, not here.
func NewClient(cfg Config, opts ...Option) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	c := &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		maxRetries: DefaultMaxRetries,
		backoff:    LinearBackoff,
		sleep:      sleepContext,
		log:        zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Budget is the longest a single Complete call can take: every attempt timing out plus
// every backoff wait.
func (c *Client) Budget() time.Duration {
	total := time.Duration(c.maxRetries+1) * c.cfg.Timeout
	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		total += c.backoff(attempt)
	}
	return total
}

// LinearBackoff waits attempt*2 seconds before retry number attempt (1-based).
func LinearBackoff(attempt int) time.Duration {
	return time.Duration(attempt) * 2 * time.Second
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Complete sends a system/user message pair and returns the completion text.
func (c *Client) Complete(ctx context.Context, system, prompt string) (string, error) {
	if strings.TrimSpace(c.cfg.APIKey) == "" {
		return "", ErrMissingAPIKey
	}
	payload, err := json.Marshal(chatRequest{
		Model: c.cfg.Model,
		Messages: []Message{
			{Role: "system", Content: system},
			{Role: "user", Content: prompt},
		},
		MaxTokens:   c.cfg.MaxTokens,
		Temperature: c.cfg.Temperature,
	})
	if err != nil {
		return "", fmt.Errorf("encode completion request: %w", err)
	}

	for attempt := 0; ; attempt++ {
		text, status, err := c.do(ctx, payload)
		if status != http.StatusTooManyRequests {
			return text, err
		}
		if attempt >= c.maxRetries {
			c.log.Warn("completion rate limited, giving up", zap.Int("attempts", attempt+1))
			return "", ErrRateLimited
		}
		wait := c.backoff(attempt + 1)
		c.log.Info("completion rate limited, retrying",
			zap.Int("retry", attempt+1),
			zap.Duration("wait", wait),
		)
		metrics.CompletionRetry()
		if err := c.sleep(ctx, wait); err != nil {
			return "", fmt.Errorf("wait for completion retry: %w", err)
		}
	}
}

// do performs one HTTP call. status is 0 when no response was received.
func (c *Client) do(ctx context.Context, payload []byte) (string, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", 0, fmt.Errorf("build completion request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	started := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.CompletionRequest(0, time.Since(started).Seconds())
		return "", 0, fmt.Errorf("completion call: %w", err)
	}
	defer resp.Body.Close()
	metrics.CompletionRequest(resp.StatusCode, time.Since(started).Seconds())

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", resp.StatusCode, fmt.Errorf("read completion response: %w", err)
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		return "", resp.StatusCode, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", resp.StatusCode, &StatusError{StatusCode: resp.StatusCode, Body: truncate(string(body), 512)}
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", resp.StatusCode, fmt.Errorf("decode completion response: %w", err)
	}
	if len(parsed.Choices) == 0 || strings.TrimSpace(parsed.Choices[0].Message.Content) == "" {
		return "", resp.StatusCode, ErrEmptyCompletion
	}
	return parsed.Choices[0].Message.Content, resp.StatusCode, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
