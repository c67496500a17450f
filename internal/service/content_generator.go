package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"ielts_exam_backend/internal/model"
	"ielts_exam_backend/pkg/logger"

	"go.uber.org/zap"
)

// ContentGenerator 按等级和阶段类型生成一套题目
type ContentGenerator struct {
	generator TextGenerator
}

func NewContentGenerator(generator TextGenerator) *ContentGenerator {
	return &ContentGenerator{generator: generator}
}

// Generate 返回原始 JSON 以便原样保存，同时校验题目结构
func (g *ContentGenerator) Generate(ctx context.Context, level model.Level, phase model.Phase) (json.RawMessage, error) {
	var prompt string
	switch phase {
	case model.PhaseListeningSpeaking:
		prompt = listeningSpeakingPrompt(level)
	case model.PhaseReadingWriting:
		prompt = readingWritingPrompt(level)
	default:
		return nil, fmt.Errorf("unknown phase %q", phase)
	}

	raw, err := g.generator.GenerateStructured(ctx, prompt, contentSystemPreamble, SlotAuto)
	if err != nil {
		return nil, err
	}

	if err := validateContent(phase, raw); err != nil {
		logger.Log.Warn("生成的题目结构不完整", zap.String("phase", string(phase)), zap.Error(err))
		return nil, &ParseError{Snippet: truncateRunes(string(raw), 200), Err: err}
	}
	return raw, nil
}

func validateContent(phase model.Phase, raw json.RawMessage) error {
	var c model.PhaseContent
	if err := json.Unmarshal(raw, &c); err != nil {
		return err
	}

	switch phase {
	case model.PhaseListeningSpeaking:
		if c.Listening == nil || len(c.Listening.Sections) == 0 {
			return errors.New("listening sections missing")
		}
		if c.Speaking == nil {
			return errors.New("speaking section missing")
		}
	case model.PhaseReadingWriting:
		if c.Reading == nil || len(c.Reading.Passages) == 0 {
			return errors.New("reading passages missing")
		}
		if c.Writing == nil {
			return errors.New("writing section missing")
		}
	}
	return nil
}
