package openai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"docqa/internal/openaiclient"
)

// Client generates answers through an OpenAI-compatible chat completions endpoint.
type Client struct {
	client      *openaiclient.Client
	model       string
	temperature float32
	maxTokens   int
}

// Config configures the OpenAI-compatible generation client.
type Config struct {
	BaseURL           string
	APIKeyEnv         string
	Model             string
	Temperature       float64
	MaxTokens         int
	Timeout           time.Duration
	RequestsPerMinute int
	MaxRetries        int
	KeyOptional       bool
}

func NewClient(cfg Config) (*Client, error) {
	if cfg.Model == "" {
		cfg.Model = openai.GPT4oMini
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 120 * time.Second
	}
	c, err := openaiclient.New(openaiclient.Config{
		BaseURL:           cfg.BaseURL,
		APIKeyEnv:         cfg.APIKeyEnv,
		Timeout:           cfg.Timeout,
		RequestsPerMinute: cfg.RequestsPerMinute,
		MaxRetries:        cfg.MaxRetries,
		KeyOptional:       cfg.KeyOptional,
	})
	if err != nil {
		return nil, err
	}
	return &Client{
		client:      c,
		model:       cfg.Model,
		temperature: float32(cfg.Temperature),
		maxTokens:   cfg.MaxTokens,
	}, nil
}

func (c *Client) Name() string { return "openai:" + c.model }

// Generate sends prompt as a single user message and returns the first choice.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	req := openai.ChatCompletionRequest{
		Model:       c.model,
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	}
	var resp openai.ChatCompletionResponse
	err := c.client.Do(ctx, func(ctx context.Context) error {
		var err error
		resp, err = c.client.API().CreateChatCompletion(ctx, req)
		return err
	})
	if err != nil {
		return "", fmt.Errorf("openai chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("openai chat completion returned no choices")
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", errors.New("openai chat completion returned empty content")
	}
	return text, nil
}
