package service

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"google.golang.org/genai"
)

func TestDefaultErrorClassifier(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want FailureClass
	}{
		{"expired key text", errors.New("400 API key expired. Please renew the API key."), FailureInvalidKey},
		{"invalid key text", errors.New("Invalid API key provided"), FailureInvalidKey},
		{"reason code in text", errors.New("reason: API_KEY_INVALID"), FailureInvalidKey},
		{"429 text", errors.New("googleapi: Error 429"), FailureRateLimited},
		{"quota text", errors.New("You exceeded your current quota"), FailureRateLimited},
		{"rate limit text", errors.New("Rate limit reached for requests"), FailureRateLimited},
		{"generate is not rate", errors.New("failed to generate content: EOF"), FailureOther},
		{"timeout", errors.New("context deadline exceeded"), FailureOther},
		{"structured 429", genai.APIError{Code: 429, Status: "RESOURCE_EXHAUSTED"}, FailureRateLimited},
		{"structured reason", genai.APIError{Code: 400, Status: "INVALID_ARGUMENT", Details: []map[string]any{{"reason": "API_KEY_INVALID"}}}, FailureInvalidKey},
		{"structured 403", genai.APIError{Code: 403, Status: "PERMISSION_DENIED"}, FailureInvalidKey},
		{"structured 500", genai.APIError{Code: 500, Status: "INTERNAL", Message: "internal error"}, FailureOther},
		{"wrapped structured", fmt.Errorf("call failed: %w", genai.APIError{Code: 429}), FailureRateLimited},
		{"openai 401", &ProviderHTTPError{StatusCode: 401, Body: "{}"}, FailureInvalidKey},
		{"openai 429", &ProviderHTTPError{StatusCode: 429, Body: "{}"}, FailureRateLimited},
		{"nil", nil, FailureOther},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DefaultErrorClassifier(tt.err))
		})
	}
}
