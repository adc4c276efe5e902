package openaiclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, retries int) *Client {
	t.Helper()
	t.Setenv("DOCQA_TEST_KEY", "test-key")
	c, err := New(Config{APIKeyEnv: "DOCQA_TEST_KEY", MaxRetries: retries})
	require.NoError(t, err)
	c.sleep = func(context.Context, time.Duration) error { return nil }
	return c
}

func TestNew_MissingKey(t *testing.T) {
	t.Setenv("DOCQA_EMPTY_KEY", "")
	_, err := New(Config{APIKeyEnv: "DOCQA_EMPTY_KEY"})
	assert.ErrorContains(t, err, "DOCQA_EMPTY_KEY")

	c, err := New(Config{APIKeyEnv: "DOCQA_EMPTY_KEY", KeyOptional: true})
	require.NoError(t, err)
	assert.NotNil(t, c.API())
}

func TestRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"rate limited", &openai.APIError{HTTPStatusCode: http.StatusTooManyRequests}, true},
		{"server error", &openai.APIError{HTTPStatusCode: http.StatusBadGateway}, true},
		{"bad request", &openai.APIError{HTTPStatusCode: http.StatusBadRequest}, false},
		{"unauthorized request", &openai.RequestError{HTTPStatusCode: http.StatusUnauthorized}, false},
		{"wrapped server error", fmt.Errorf("embed: %w", &openai.RequestError{HTTPStatusCode: 503}), true},
		{"transport", errors.New("connection reset"), true},
		{"canceled", context.Canceled, false},
		{"deadline", fmt.Errorf("call: %w", context.DeadlineExceeded), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Retryable(tt.err))
		})
	}
}

func TestDo_RetriesUntilSuccess(t *testing.T) {
	c := newTestClient(t, 3)
	calls := 0
	err := c.Do(context.Background(), func(context.Context) error {
		calls++
		if calls < 3 {
			return &openai.APIError{HTTPStatusCode: http.StatusTooManyRequests}
		}
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDo_StopsOnPermanentError(t *testing.T) {
	c := newTestClient(t, 5)
	calls := 0
	err := c.Do(context.Background(), func(context.Context) error {
		calls++
		return &openai.APIError{HTTPStatusCode: http.StatusUnauthorized, Message: "bad key"}
	})
	assert.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestDo_GivesUpAfterMaxRetries(t *testing.T) {
	c := newTestClient(t, 2)
	calls := 0
	err := c.Do(context.Background(), func(context.Context) error {
		calls++
		return errors.New("connection refused")
	})
	assert.EqualError(t, err, "connection refused")
	assert.Equal(t, 3, calls)
}

func TestRetryDelay(t *testing.T) {
	assert.Equal(t, 200*time.Millisecond, retryDelay(0))
	assert.Equal(t, 800*time.Millisecond, retryDelay(2))
	assert.Equal(t, 5*time.Second, retryDelay(10))
}
