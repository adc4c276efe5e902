package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docqa/internal/domain"
)

var _ domain.Generator = (*Client)(nil)

type chatRequest struct {
	Model       string  `json:"model"`
	Temperature float64 `json:"temperature"`
	Messages    []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

func chatServer(t *testing.T, calls *atomic.Int32, reply func(n int32, w http.ResponseWriter, req chatRequest)) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		reply(n, w, req)
	}))
}

func writeChoice(w http.ResponseWriter, content string) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"id":     "chatcmpl-1",
		"object": "chat.completion",
		"choices": []map[string]any{{
			"index":         0,
			"message":       map[string]any{"role": "assistant", "content": content},
			"finish_reason": "stop",
		}},
	})
}

func newClient(t *testing.T, url string, retries int) *Client {
	t.Helper()
	t.Setenv("DOCQA_GEN_KEY", "test-key")
	c, err := NewClient(Config{
		BaseURL:     url + "/v1",
		APIKeyEnv:   "DOCQA_GEN_KEY",
		Model:       "test-chat",
		Temperature: 0.3,
		MaxRetries:  retries,
	})
	require.NoError(t, err)
	return c
}

func TestGenerate(t *testing.T) {
	var calls atomic.Int32
	srv := chatServer(t, &calls, func(_ int32, w http.ResponseWriter, req chatRequest) {
		assert.Equal(t, "test-chat", req.Model)
		assert.InDelta(t, 0.3, req.Temperature, 1e-6)
		require.Len(t, req.Messages, 1)
		assert.Equal(t, "user", req.Messages[0].Role)
		assert.Equal(t, "the prompt", req.Messages[0].Content)
		writeChoice(w, "  Refunds take 30 days.\n")
	})
	defer srv.Close()

	out, err := newClient(t, srv.URL, 0).Generate(context.Background(), "the prompt")
	require.NoError(t, err)
	assert.Equal(t, "Refunds take 30 days.", out)
}

func TestGenerate_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := chatServer(t, &calls, func(n int32, w http.ResponseWriter, _ chatRequest) {
		if n == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"error":{"message":"overloaded","type":"server_error"}}`))
			return
		}
		writeChoice(w, "ok")
	})
	defer srv.Close()

	out, err := newClient(t, srv.URL, 2).Generate(context.Background(), "p")
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	assert.Equal(t, int32(2), calls.Load())
}

func TestGenerate_EmptyContent(t *testing.T) {
	var calls atomic.Int32
	srv := chatServer(t, &calls, func(_ int32, w http.ResponseWriter, _ chatRequest) {
		writeChoice(w, "   ")
	})
	defer srv.Close()

	_, err := newClient(t, srv.URL, 0).Generate(context.Background(), "p")
	assert.Error(t, err)
}
