package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"ielts_exam_backend/internal/config"
)

// OpenAIProvider 兼容 OpenAI chat/completions 接口的提供方
type OpenAIProvider struct {
	config config.AIConfig
	client *http.Client
}

func NewOpenAIProvider(cfg config.AIConfig, client *http.Client) *OpenAIProvider {
	if client == nil {
		client = &http.Client{}
	}
	return &OpenAIProvider{config: cfg, client: client}
}

type AIChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ChatCompletionRequest struct {
	Model       string          `json:"model"`
	Messages    []AIChatMessage `json:"messages"`
	Temperature float32         `json:"temperature"`
	MaxTokens   int             `json:"max_tokens,omitempty"`
}

type ChatCompletionResponse struct {
	Choices []struct {
		Message AIChatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// ProviderHTTPError 非 200 响应，保留状态码供错误分类使用
type ProviderHTTPError struct {
	StatusCode int
	Body       string
}

func (e *ProviderHTTPError) Error() string {
	return fmt.Sprintf("AI API error (status %d): %s", e.StatusCode, e.Body)
}

func (p *OpenAIProvider) Generate(ctx context.Context, req ProviderRequest, cred Credential) (string, error) {
	messages := []AIChatMessage{}
	if req.SystemPreamble != "" {
		messages = append(messages, AIChatMessage{
			Role:    "system",
			Content: req.SystemPreamble,
		})
	}
	messages = append(messages, AIChatMessage{
		Role:    "user",
		Content: req.Prompt,
	})

	reqBody := ChatCompletionRequest{
		Model:       p.config.Model,
		Messages:    messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxOutputTokens,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.config.BaseURL+"/chat/completions", bytes.NewBuffer(jsonData))
	if err != nil {
		return "", err
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+cred.apiKey)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return "", &ProviderHTTPError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var result ChatCompletionResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return "", err
	}
	if result.Error != nil {
		return "", fmt.Errorf("AI API error: %s", result.Error.Message)
	}

	if len(result.Choices) > 0 && result.Choices[0].Message.Content != "" {
		return result.Choices[0].Message.Content, nil
	}

	return "", errEmptyResponse
}

// NewProvider 按配置创建提供方
func NewProvider(cfg config.AIConfig) (Provider, error) {
	httpClient := &http.Client{Timeout: cfg.Timeout()}
	switch cfg.Provider {
	case "", config.ProviderGemini:
		return NewGeminiProvider(cfg.Model, httpClient), nil
	case config.ProviderOpenAI:
		return NewOpenAIProvider(cfg, httpClient), nil
	default:
		return nil, fmt.Errorf("unsupported AI provider %q", cfg.Provider)
	}
}
