package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"ielts_exam_backend/internal/model"
	"ielts_exam_backend/pkg/logger"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	sampleWords  = 15
	sampleRunes  = 80
	notAvailable = "N/A"
)

// AnalysisInput 生成详细分析所需的全部只读数据
type AnalysisInput struct {
	Phase1Scores  *model.PhaseScores
	Phase2Scores  *model.PhaseScores
	Phase1Answers model.Answers
	Phase2Answers model.Answers
	Final         *model.FinalResults
}

// AnalysisService 两次独立调用分别生成 IELTS 维度分析和语言迁移分析，
// 分别固定在 1 号和 2 号密钥上以分摊限流
type AnalysisService struct {
	generator TextGenerator
	language  string
}

func NewAnalysisService(generator TextGenerator, language string) *AnalysisService {
	if language == "" {
		language = "English"
	}
	return &AnalysisService{generator: generator, language: language}
}

// Generate 尽力生成，任一半失败时该半为空对象，从不返回错误
func (s *AnalysisService) Generate(ctx context.Context, in AnalysisInput) *model.DetailedAnalysis {
	digest := s.digest(in)
	preamble := analysisSystemPreamble(s.language)
	result := model.EmptyAnalysis()

	var g errgroup.Group
	g.Go(func() error {
		if part := s.generatePart(ctx, ieltsAnalysisPrompt(digest), preamble, SlotPrimary, "ielts_analysis"); part != nil {
			result.IELTSAnalysis = part
		}
		return nil
	})
	g.Go(func() error {
		if part := s.generatePart(ctx, beyondIELTSPrompt(digest), preamble, SlotBackup, "beyond_ielts"); part != nil {
			result.BeyondIELTS = part
		}
		return nil
	})
	_ = g.Wait()

	return result
}

func (s *AnalysisService) generatePart(ctx context.Context, prompt, preamble string, slot SlotID, key string) map[string]any {
	raw, err := s.generator.GenerateStructured(ctx, prompt, preamble, slot)
	if err != nil {
		logger.Log.Warn("详细分析生成失败", zap.String("part", key), zap.Int("slot", int(slot)), zap.Error(err))
		return nil
	}

	var wrapper map[string]json.RawMessage
	if err := json.Unmarshal(raw, &wrapper); err != nil {
		logger.Log.Warn("详细分析结果不是 JSON 对象", zap.String("part", key), zap.Error(err))
		return nil
	}

	var part map[string]any
	if err := json.Unmarshal(wrapper[key], &part); err != nil || part == nil {
		logger.Log.Warn("详细分析结果缺少字段", zap.String("part", key))
		return nil
	}
	return part
}

func (s *AnalysisService) digest(in AnalysisInput) analysisDigest {
	d := analysisDigest{ResponseLanguage: s.language}
	if in.Final != nil {
		d.Scores = fmt.Sprintf("L=%.1f R=%.1f W=%.1f S=%.1f O=%.1f",
			in.Final.Listening, in.Final.Reading, in.Final.Writing, in.Final.Speaking, in.Final.Overall)
	}

	var listening, reading, writing, speaking []string
	for i, p := range []*model.PhaseScores{in.Phase1Scores, in.Phase2Scores} {
		if p == nil {
			continue
		}
		tag := fmt.Sprintf("P%d:", i+1)
		if p.Listening != nil {
			listening = append(listening, tag+objectiveSummary(p.Listening))
		}
		if p.Reading != nil {
			reading = append(reading, tag+objectiveSummary(p.Reading))
		}
		if p.Writing != nil {
			writing = append(writing, fmt.Sprintf("%sT1=%.1f T2=%.1f O=%.1f",
				tag, p.Writing.Task1.OverallBand, p.Writing.Task2.OverallBand, p.Writing.OverallBand))
		}
		if p.Speaking != nil {
			speaking = append(speaking, fmt.Sprintf("%sFC=%.1f LR=%.1f GR=%.1f P=%.1f O=%.1f",
				tag, p.Speaking.FluencyCoherence, p.Speaking.LexicalResource, p.Speaking.GrammaticalRange,
				p.Speaking.Pronunciation, p.Speaking.OverallBand))
		}
	}
	d.Listening = orNA(strings.Join(listening, " "))
	d.Reading = orNA(strings.Join(reading, " "))
	d.Writing = orNA(strings.Join(writing, " "))
	d.Speaking = orNA(strings.Join(speaking, " "))

	var writingSamples []string
	for i, answers := range []model.Answers{in.Phase1Answers, in.Phase2Answers} {
		if text := strings.TrimSpace(answers[model.WritingTask2Key].String()); text != "" {
			writingSamples = append(writingSamples, fmt.Sprintf("W%d:%s", i+1, truncateWords(text, sampleWords)))
		}
	}
	d.WritingSample = orNA(truncateRunes(strings.Join(writingSamples, " "), sampleRunes))
	d.SpeakingSample = orNA(truncateRunes(speakingSample(in.Phase1Answers, in.Phase2Answers), sampleRunes))
	return d
}

func objectiveSummary(s *model.ObjectiveScore) string {
	return fmt.Sprintf("%d/%d=%.1f", s.RawScore, s.TotalQuestions, s.Band)
}

// speakingSample 只取一条口语回答作为样本
func speakingSample(phases ...model.Answers) string {
	for i, answers := range phases {
		keys := make([]string, 0, len(answers))
		for k := range answers {
			if strings.HasPrefix(k, "speaking_") && strings.TrimSpace(answers[k].String()) != "" {
				keys = append(keys, k)
			}
		}
		if len(keys) == 0 {
			continue
		}
		sort.Strings(keys)
		return fmt.Sprintf("S%d:%s", i+1, truncateWords(answers[keys[0]].String(), sampleWords))
	}
	return ""
}

func orNA(s string) string {
	if s == "" {
		return notAvailable
	}
	return s
}
