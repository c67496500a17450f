package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"ielts_exam_backend/internal/config"
	"ielts_exam_backend/internal/util"
	"ielts_exam_backend/pkg/logger"
	"ielts_exam_backend/pkg/monitoring"
	"ielts_exam_backend/pkg/tracing"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

const (
	jsonOnlyInstruction   = "\n\nIMPORTANT: Return ONLY valid JSON, no markdown, no code blocks, no extra text."
	structuredTemperature = 0.3
	defaultTemperature    = 0.7
	defaultMaxTokens      = 8192
)

// TextRequest 文本生成请求，ForcedSlot 为 SlotAuto 时自动选择密钥
type TextRequest struct {
	Prompt         string
	SystemPreamble string
	Temperature    *float32 // nil 时使用默认温度，0 原样传递
	MaxTokens      int
	ForcedSlot     SlotID
}

func (r TextRequest) temperature() float32 {
	if r.Temperature == nil {
		return defaultTemperature
	}
	return *r.Temperature
}

// TextGenerator 生成网关对外能力，便于上层替换实现
type TextGenerator interface {
	GenerateText(ctx context.Context, req TextRequest) (string, error)
	GenerateStructured(ctx context.Context, prompt, systemPreamble string, forced SlotID) (json.RawMessage, error)
}

// GenerationGateway 所有生成调用的入口：选密钥、调用、分类失败、必要时换密钥重试一次
type GenerationGateway struct {
	rotator    *CredentialRotator
	provider   Provider
	Classifier ErrorClassifier
	timeout    time.Duration
	maxTokens  int
}

func NewGenerationGateway(rotator *CredentialRotator, provider Provider, cfg config.AIConfig) *GenerationGateway {
	maxTokens := cfg.MaxOutputTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	return &GenerationGateway{
		rotator:    rotator,
		provider:   provider,
		Classifier: DefaultErrorClassifier,
		timeout:    cfg.Timeout(),
		maxTokens:  maxTokens,
	}
}

func (g *GenerationGateway) GenerateText(ctx context.Context, req TextRequest) (string, error) {
	if req.MaxTokens <= 0 {
		req.MaxTokens = g.maxTokens
	}

	cred, err := g.rotator.Select(req.ForcedSlot)
	if err != nil {
		return "", err
	}

	text, err := g.call(ctx, cred, req)
	if err == nil {
		return text, nil
	}

	class := g.Classifier(err)
	if class == FailureInvalidKey {
		g.rotator.MarkInvalid(cred.Slot)
	}
	if class == FailureOther {
		return "", &GenerationError{Slot: cred.Slot, Class: class, Cause: err}
	}

	alt, ok := g.rotator.SelectAlternate(cred.Slot)
	if !ok {
		if g.rotator.AllInvalid() {
			return "", fmt.Errorf("%w: %v", util.ErrAllCredentialsInvalid, err)
		}
		return "", &GenerationError{Slot: cred.Slot, Class: class, Cause: err}
	}

	logger.Log.Warn("AI 调用失败，换用另一把密钥重试",
		zap.Int("failed_slot", int(cred.Slot)),
		zap.Int("retry_slot", int(alt.Slot)),
		zap.String("class", class.String()),
		zap.Error(err),
	)

	text, retryErr := g.call(ctx, alt, req)
	if retryErr == nil {
		return text, nil
	}

	retryClass := g.Classifier(retryErr)
	if retryClass == FailureInvalidKey {
		g.rotator.MarkInvalid(alt.Slot)
	}
	return "", &GenerationError{Slot: alt.Slot, Class: retryClass, Retried: true, Cause: retryErr}
}

func (g *GenerationGateway) call(ctx context.Context, cred Credential, req TextRequest) (string, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	ctx, span := tracing.StartSpan(ctx, "ai.generate", attribute.Int("ai.slot", int(cred.Slot)))
	start := time.Now()

	text, err := g.provider.Generate(ctx, ProviderRequest{
		Prompt:          req.Prompt,
		SystemPreamble:  req.SystemPreamble,
		Temperature:     req.temperature(),
		MaxOutputTokens: req.MaxTokens,
	}, cred)

	elapsed := time.Since(start)
	tracing.EndSpan(span, err)
	monitoring.AIRequestDuration.WithLabelValues(cred.Slot.String()).Observe(elapsed.Seconds())

	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	monitoring.AIRequestCounter.WithLabelValues(cred.Slot.String(), outcome).Inc()

	logger.Log.Debug("AI 调用完成",
		zap.Int("slot", int(cred.Slot)),
		zap.Duration("elapsed", elapsed),
		zap.Bool("ok", err == nil),
	)
	return text, err
}

// GenerateStructured 要求模型只返回 JSON，并从回复中提取
func (g *GenerationGateway) GenerateStructured(ctx context.Context, prompt, systemPreamble string, forced SlotID) (json.RawMessage, error) {
	temperature := float32(structuredTemperature)
	text, err := g.GenerateText(ctx, TextRequest{
		Prompt:         prompt + jsonOnlyInstruction,
		SystemPreamble: systemPreamble,
		Temperature:    &temperature,
		MaxTokens:      g.maxTokens,
		ForcedSlot:     forced,
	})
	if err != nil {
		return nil, err
	}
	return ExtractJSON(text)
}
