// Package openaiclient builds rate-limited clients for OpenAI-compatible APIs
// (OpenAI, Gemini's compatibility endpoint, Ollama) shared by the embedding and
// generation providers.
package openaiclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"
)

// Config configures an OpenAI-compatible client.
type Config struct {
	BaseURL           string
	APIKeyEnv         string
	Timeout           time.Duration
	RequestsPerMinute int
	MaxRetries        int
	// KeyOptional allows an empty key, as local Ollama servers do not check it.
	KeyOptional bool
}

// Client wraps an openai.Client with a request limiter and retry policy.
type Client struct {
	api        *openai.Client
	limiter    *rate.Limiter
	maxRetries int
	sleep      func(context.Context, time.Duration) error
}

// New creates a client, reading the API key from the configured env var.
func New(cfg Config) (*Client, error) {
	key := os.Getenv(cfg.APIKeyEnv)
	if key == "" && !cfg.KeyOptional {
		return nil, fmt.Errorf("missing API key in env %s", cfg.APIKeyEnv)
	}
	clientCfg := openai.DefaultConfig(key)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	t := cfg.Timeout
	if t == 0 {
		t = 30 * time.Second
	}
	clientCfg.HTTPClient = &http.Client{Timeout: t}

	limit := rate.Inf
	if cfg.RequestsPerMinute > 0 {
		limit = rate.Limit(float64(cfg.RequestsPerMinute) / 60.0)
	}
	retries := cfg.MaxRetries
	if retries < 0 {
		retries = 0
	}
	return &Client{
		api:        openai.NewClientWithConfig(clientCfg),
		limiter:    rate.NewLimiter(limit, 1),
		maxRetries: retries,
		sleep:      sleepContext,
	}, nil
}

// API exposes the underlying client.
func (c *Client) API() *openai.Client { return c.api }

// Do runs fn under the rate limiter, retrying throttled and server-side failures
// with exponential backoff.
func (c *Client) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	var err error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if werr := c.limiter.Wait(ctx); werr != nil {
			return werr
		}
		err = fn(ctx)
		if err == nil {
			return nil
		}
		if !Retryable(err) || attempt == c.maxRetries {
			break
		}
		if serr := c.sleep(ctx, retryDelay(attempt)); serr != nil {
			return serr
		}
	}
	return err
}

// Retryable reports whether err is a rate limit, a 5xx response or a transport
// failure. Context cancellation is never retried.
func Retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return retryableStatus(apiErr.HTTPStatusCode)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return retryableStatus(reqErr.HTTPStatusCode)
	}
	return true
}

func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= 500
}

func retryDelay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	base := 200 * time.Millisecond
	// exponential backoff capped at 5s
	d := base << attempt
	if d > 5*time.Second {
		d = 5 * time.Second
	}
	return d
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
