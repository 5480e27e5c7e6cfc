package anthropic_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/kiranshivaraju/medinventory/internal/ai/aierr"
	"github.com/kiranshivaraju/medinventory/internal/ai/anthropic"
	"github.com/kiranshivaraju/medinventory/internal/config"
	"github.com/kiranshivaraju/medinventory/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestProvider(t *testing.T, handler http.HandlerFunc) *anthropic.Provider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return anthropic.NewProvider(config.AnthropicConfig{
		APIKey:  "sk-ant-test",
		Model:   "claude-test",
		BaseURL: srv.URL,
	}, 5*time.Second)
}

func TestComplete_Success(t *testing.T) {
	var got map[string]any
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "sk-ant-test", r.Header.Get("X-Api-Key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "msg_01",
			"type": "message",
			"role": "assistant",
			"model": "claude-test",
			"content": [{"type": "text", "text": "Cleaning"}],
			"stop_reason": "end_turn",
			"usage": {"input_tokens": 30, "output_tokens": 2}
		}`))
	})

	c, err := p.Complete(context.Background(), models.CompletionRequest{
		System: "sys",
		User:   "Description: disinfectant wipes",
	})
	require.NoError(t, err)
	assert.Equal(t, "anthropic", p.Name())
	assert.Equal(t, "Cleaning", c.Text)
	assert.Equal(t, int64(32), c.Usage.Total())

	assert.Equal(t, "claude-test", got["model"])
	assert.EqualValues(t, 256, got["max_tokens"])
}

func TestComplete_StatusErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   error
	}{
		{"overloaded", http.StatusInternalServerError, aierr.ErrProviderUnavailable},
		{"rate limited", http.StatusTooManyRequests, aierr.ErrProviderUnavailable},
		{"bad request", http.StatusBadRequest, aierr.ErrInvalidResponse},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestProvider(t, func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(`{"type": "error", "error": {"type": "api_error", "message": "nope"}}`))
			})
			_, err := p.Complete(context.Background(), models.CompletionRequest{})
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestComplete_NoTextContent(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "msg_02",
			"type": "message",
			"role": "assistant",
			"model": "claude-test",
			"content": [],
			"usage": {"input_tokens": 1, "output_tokens": 0}
		}`))
	})
	_, err := p.Complete(context.Background(), models.CompletionRequest{})
	assert.ErrorIs(t, err, aierr.ErrInvalidResponse)
}
