package service

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"ielts_exam_backend/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenAIProvider_Generate(t *testing.T) {
	var got ChatCompletionRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer key-1", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"{\"ok\":true}"}}]}`))
	}))
	defer srv.Close()

	p := NewOpenAIProvider(config.AIConfig{BaseURL: srv.URL, Model: "test-model"}, srv.Client())
	out, err := p.Generate(context.Background(), ProviderRequest{
		Prompt:          "hello",
		SystemPreamble:  "be brief",
		Temperature:     0.7,
		MaxOutputTokens: 256,
	}, Credential{Slot: SlotPrimary, apiKey: "key-1"})
	require.NoError(t, err)
	assert.Equal(t, `{"ok":true}`, out)

	assert.Equal(t, "test-model", got.Model)
	assert.Equal(t, 256, got.MaxTokens)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Equal(t, "hello", got.Messages[1].Content)
}

func TestOpenAIProvider_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		check  func(t *testing.T, err error)
	}{
		{
			name:   "http status kept",
			status: http.StatusTooManyRequests,
			body:   `{"error":{"message":"quota"}}`,
			check: func(t *testing.T, err error) {
				var httpErr *ProviderHTTPError
				require.True(t, errors.As(err, &httpErr))
				assert.Equal(t, http.StatusTooManyRequests, httpErr.StatusCode)
				assert.Equal(t, FailureRateLimited, DefaultErrorClassifier(err))
			},
		},
		{
			name:   "empty choices",
			status: http.StatusOK,
			body:   `{"choices":[]}`,
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, errEmptyResponse)
			},
		},
		{
			name:   "error payload",
			status: http.StatusOK,
			body:   `{"choices":[],"error":{"message":"bad model"}}`,
			check: func(t *testing.T, err error) {
				assert.Contains(t, err.Error(), "bad model")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			p := NewOpenAIProvider(config.AIConfig{BaseURL: srv.URL}, srv.Client())
			_, err := p.Generate(context.Background(), ProviderRequest{Prompt: "x"}, Credential{Slot: SlotBackup, apiKey: "k"})
			require.Error(t, err)
			tt.check(t, err)
		})
	}
}

func TestNewProvider(t *testing.T) {
	p, err := NewProvider(config.AIConfig{Provider: config.ProviderGemini, Model: "m"})
	require.NoError(t, err)
	assert.IsType(t, &GeminiProvider{}, p)

	p, err = NewProvider(config.AIConfig{Provider: config.ProviderOpenAI})
	require.NoError(t, err)
	assert.IsType(t, &OpenAIProvider{}, p)

	_, err = NewProvider(config.AIConfig{Provider: "llama"})
	assert.Error(t, err)
}
