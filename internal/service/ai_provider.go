package service

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"google.golang.org/genai"
)

// ProviderRequest 一次生成调用的参数
type ProviderRequest struct {
	Prompt          string
	SystemPreamble  string
	Temperature     float32
	MaxOutputTokens int
}

// Provider 生成服务提供方：提交提示词，返回文本或错误
type Provider interface {
	Generate(ctx context.Context, req ProviderRequest, cred Credential) (string, error)
}

var errEmptyResponse = errors.New("provider returned an empty response")

// GeminiProvider 基于 genai SDK，每把密钥复用一个客户端
type GeminiProvider struct {
	model      string
	httpClient *http.Client

	mu      sync.Mutex
	clients map[string]*genai.Client
}

func NewGeminiProvider(model string, httpClient *http.Client) *GeminiProvider {
	return &GeminiProvider{
		model:      model,
		httpClient: httpClient,
		clients:    make(map[string]*genai.Client),
	}
}

func (p *GeminiProvider) client(ctx context.Context, apiKey string) (*genai.Client, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if c, ok := p.clients[apiKey]; ok {
		return c, nil
	}
	c, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: p.httpClient,
	})
	if err != nil {
		return nil, err
	}
	p.clients[apiKey] = c
	return c, nil
}

func (p *GeminiProvider) Generate(ctx context.Context, req ProviderRequest, cred Credential) (string, error) {
	client, err := p.client(ctx, cred.apiKey)
	if err != nil {
		return "", err
	}

	cfg := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(req.Temperature),
		MaxOutputTokens: int32(req.MaxOutputTokens),
	}
	if req.SystemPreamble != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.SystemPreamble, genai.RoleUser)
	}

	resp, err := client.Models.GenerateContent(ctx, p.model, genai.Text(req.Prompt), cfg)
	if err != nil {
		return "", err
	}

	text := resp.Text()
	if text == "" {
		return "", errEmptyResponse
	}
	return text, nil
}
