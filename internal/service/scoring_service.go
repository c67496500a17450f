package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"ielts_exam_backend/internal/model"
	"ielts_exam_backend/pkg/logger"

	"go.uber.org/zap"
)

const (
	fallbackBand     = 5.0
	noAnswerFeedback = "No answers provided"
	fallbackFeedback = "Could not evaluate automatically"

	maxSubQuestions    = 4
	maxQuestionRunes   = 100
	maxTaskCardRunes   = 200
	speakingPart1Words = 50
	speakingPart2Words = 200
	speakingPart3Words = 80
	writingTask1Words  = 100
	writingTask2Words  = 150
)

var ErrIncompleteScores = errors.New("phase scores are incomplete")

// ScoringService 客观题查表判分，主观题交给模型评分并在失败时给出中性分
type ScoringService struct {
	generator TextGenerator
	tables    map[model.Skill]*BandTable
}

func NewScoringService(generator TextGenerator) *ScoringService {
	return &ScoringService{
		generator: generator,
		tables:    defaultBandTables,
	}
}

// ScorePhase 按阶段类型对两个技能评分
func (s *ScoringService) ScorePhase(ctx context.Context, phase model.Phase, content *model.PhaseContent, answers model.Answers) (*model.PhaseScores, error) {
	if content == nil {
		return nil, fmt.Errorf("%w: phase content is empty", ErrIncompleteScores)
	}

	switch phase {
	case model.PhaseListeningSpeaking:
		if content.Listening == nil || content.Speaking == nil {
			return nil, fmt.Errorf("%w: listening/speaking content missing", ErrIncompleteScores)
		}
		return &model.PhaseScores{
			Listening: s.ScoreListening(content.Listening, answers),
			Speaking:  s.ScoreSpeaking(ctx, content.Speaking, answers),
		}, nil
	case model.PhaseReadingWriting:
		if content.Reading == nil || content.Writing == nil {
			return nil, fmt.Errorf("%w: reading/writing content missing", ErrIncompleteScores)
		}
		return &model.PhaseScores{
			Reading: s.ScoreReading(content.Reading, answers),
			Writing: s.ScoreWriting(ctx, content.Writing, answers),
		}, nil
	}
	return nil, fmt.Errorf("unknown phase %q", phase)
}

func (s *ScoringService) ScoreListening(content *model.ListeningContent, answers model.Answers) *model.ObjectiveScore {
	var results []model.QuestionResult
	for _, section := range content.Sections {
		for _, q := range section.Questions {
			r := judge(q, answers[model.ListeningAnswerKey(section.ID, q.ID)])
			r.SectionID = section.ID.String()
			results = append(results, r)
		}
	}
	return s.objectiveScore(model.SkillListening, results)
}

func (s *ScoringService) ScoreReading(content *model.ReadingContent, answers model.Answers) *model.ObjectiveScore {
	var results []model.QuestionResult
	for _, passage := range content.Passages {
		for _, q := range passage.Questions {
			r := judge(q, answers[model.ReadingAnswerKey(passage.ID, q.ID)])
			r.PassageID = passage.ID.String()
			results = append(results, r)
		}
	}
	return s.objectiveScore(model.SkillReading, results)
}

func judge(q model.Question, answer model.FlexString) model.QuestionResult {
	user := answer.Normalized()
	return model.QuestionResult{
		QuestionID:    q.ID.String(),
		UserAnswer:    strings.TrimSpace(answer.String()),
		CorrectAnswer: q.CorrectAnswer.String(),
		IsCorrect:     user != "" && user == q.CorrectAnswer.Normalized(),
	}
}

func (s *ScoringService) objectiveScore(skill model.Skill, results []model.QuestionResult) *model.ObjectiveScore {
	raw, answered := 0, false
	for _, r := range results {
		if r.UserAnswer != "" {
			answered = true
		}
		if r.IsCorrect {
			raw++
		}
	}
	if results == nil {
		results = []model.QuestionResult{}
	}

	// 未作答与全错都记 0 分，不走换算表
	band := 0.0
	if answered && raw > 0 {
		band = s.tables[skill].Band(raw)
	}

	return &model.ObjectiveScore{
		RawScore:        raw,
		TotalQuestions:  len(results),
		Band:            band,
		DetailedResults: results,
	}
}

func (s *ScoringService) ScoreSpeaking(ctx context.Context, content *model.SpeakingContent, answers model.Answers) *model.SpeakingScore {
	keys := []string{model.SpeakingPart2Key}
	for _, q := range content.Part1 {
		keys = append(keys, model.SpeakingPart1Key(q.ID))
	}
	for _, q := range content.Part3 {
		keys = append(keys, model.SpeakingPart3Key(q.ID))
	}
	if !answers.HasAny(keys...) {
		return &model.SpeakingScore{Feedback: noAnswerFeedback}
	}

	prompt := speakingScorePrompt(
		speakingItems(content.Part1, answers, model.SpeakingPart1Key, speakingPart1Words),
		truncateRunes(content.Part2.TaskCard, maxTaskCardRunes),
		truncateWords(answers[model.SpeakingPart2Key].String(), speakingPart2Words),
		speakingItems(content.Part3, answers, model.SpeakingPart3Key, speakingPart3Words),
	)

	raw, err := s.generator.GenerateStructured(ctx, prompt, speakingSystemPreamble, SlotAuto)
	var result map[string]any
	if err == nil {
		err = json.Unmarshal(raw, &result)
	}
	if err != nil {
		logger.Log.Warn("口语自动评分失败，使用默认分", zap.Error(err))
		return &model.SpeakingScore{
			FluencyCoherence: fallbackBand,
			LexicalResource:  fallbackBand,
			GrammaticalRange: fallbackBand,
			Pronunciation:    fallbackBand,
			OverallBand:      fallbackBand,
			Feedback:         fallbackFeedback,
		}
	}

	return &model.SpeakingScore{
		FluencyCoherence: numberOr(result, "fluency_coherence", fallbackBand),
		LexicalResource:  numberOr(result, "lexical_resource", fallbackBand),
		GrammaticalRange: numberOr(result, "grammatical_range", fallbackBand),
		Pronunciation:    numberOr(result, "pronunciation", fallbackBand),
		OverallBand:      numberOr(result, "overall_band", fallbackBand),
		Feedback:         stringOr(result, "feedback"),
	}
}

func speakingItems(questions []model.SpeakingQuestion, answers model.Answers, key func(model.FlexString) string, maxWords int) string {
	if len(questions) > maxSubQuestions {
		questions = questions[:maxSubQuestions]
	}
	items := make([]string, 0, len(questions))
	for _, q := range questions {
		items = append(items, fmt.Sprintf("Q%s: %s\nA: %s",
			q.ID, truncateRunes(q.Question, maxQuestionRunes), truncateWords(answers[key(q.ID)].String(), maxWords)))
	}
	return strings.Join(items, "\n")
}

func (s *ScoringService) ScoreWriting(ctx context.Context, content *model.WritingContent, answers model.Answers) *model.WritingScore {
	if !answers.HasAny(model.WritingTask1Key, model.WritingTask2Key) {
		return &model.WritingScore{Feedback: noAnswerFeedback}
	}

	prompt := writingScorePrompt(
		content.Task1.Instructions,
		truncateWords(strings.TrimSpace(answers[model.WritingTask1Key].String()), writingTask1Words),
		content.Task2.Question,
		truncateWords(strings.TrimSpace(answers[model.WritingTask2Key].String()), writingTask2Words),
	)

	raw, err := s.generator.GenerateStructured(ctx, prompt, writingSystemPreamble, SlotAuto)
	var result map[string]any
	if err == nil {
		err = json.Unmarshal(raw, &result)
	}
	if err != nil {
		logger.Log.Warn("写作自动评分失败，使用默认分", zap.Error(err))
		return fallbackWritingScore()
	}

	task1, _ := result["task1"].(map[string]any)
	task2, _ := result["task2"].(map[string]any)
	return &model.WritingScore{
		Task1: model.WritingTask1Score{
			TaskAchievement:   numberOr(task1, "task_achievement", fallbackBand),
			CoherenceCohesion: numberOr(task1, "coherence_cohesion", fallbackBand),
			LexicalResource:   numberOr(task1, "lexical_resource", fallbackBand),
			GrammaticalRange:  numberOr(task1, "grammatical_range", fallbackBand),
			OverallBand:       numberOr(task1, "overall_band", fallbackBand),
		},
		Task2: model.WritingTask2Score{
			TaskResponse:      numberOr(task2, "task_response", fallbackBand),
			CoherenceCohesion: numberOr(task2, "coherence_cohesion", fallbackBand),
			LexicalResource:   numberOr(task2, "lexical_resource", fallbackBand),
			GrammaticalRange:  numberOr(task2, "grammatical_range", fallbackBand),
			OverallBand:       numberOr(task2, "overall_band", fallbackBand),
		},
		OverallBand: numberOr(result, "overall_band", fallbackBand),
		Feedback:    stringOr(result, "feedback"),
	}
}

func fallbackWritingScore() *model.WritingScore {
	return &model.WritingScore{
		Task1: model.WritingTask1Score{
			TaskAchievement:   fallbackBand,
			CoherenceCohesion: fallbackBand,
			LexicalResource:   fallbackBand,
			GrammaticalRange:  fallbackBand,
			OverallBand:       fallbackBand,
		},
		Task2: model.WritingTask2Score{
			TaskResponse:      fallbackBand,
			CoherenceCohesion: fallbackBand,
			LexicalResource:   fallbackBand,
			GrammaticalRange:  fallbackBand,
			OverallBand:       fallbackBand,
		},
		OverallBand: fallbackBand,
		Feedback:    fallbackFeedback,
	}
}

// Aggregate 从两个阶段中取出四项技能分，取平均并保留一位小数（四舍五入）
func Aggregate(phase1, phase2 *model.PhaseScores) (*model.FinalResults, error) {
	if phase1 == nil || phase2 == nil {
		return nil, ErrIncompleteScores
	}

	pick := func(skill model.Skill) (float64, bool) {
		for _, p := range []*model.PhaseScores{phase1, phase2} {
			switch {
			case skill == model.SkillListening && p.Listening != nil:
				return p.Listening.Band, true
			case skill == model.SkillReading && p.Reading != nil:
				return p.Reading.Band, true
			case skill == model.SkillWriting && p.Writing != nil:
				return p.Writing.OverallBand, true
			case skill == model.SkillSpeaking && p.Speaking != nil:
				return p.Speaking.OverallBand, true
			}
		}
		return 0, false
	}

	var bands [4]float64
	for i, skill := range []model.Skill{model.SkillListening, model.SkillReading, model.SkillWriting, model.SkillSpeaking} {
		band, ok := pick(skill)
		if !ok {
			return nil, fmt.Errorf("%w: no %s score", ErrIncompleteScores, skill)
		}
		bands[i] = band
	}

	return &model.FinalResults{
		Listening: bands[0],
		Reading:   bands[1],
		Writing:   bands[2],
		Speaking:  bands[3],
		Overall:   RoundBand((bands[0] + bands[1] + bands[2] + bands[3]) / 4),
	}, nil
}

// RoundBand 保留一位小数，.x5 向上进位
func RoundBand(v float64) float64 {
	return math.Round(v*10) / 10
}

func truncateWords(text string, maxWords int) string {
	words := strings.Fields(text)
	if len(words) <= maxWords {
		return text
	}
	return strings.Join(words[:maxWords], " ") + "..."
}

// numberOr 读取模型返回的数值，兼容字符串形式，缺失或非法时返回默认值
func numberOr(m map[string]any, key string, def float64) float64 {
	switch v := m[key].(type) {
	case float64:
		return v
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			return f
		}
	}
	return def
}

func stringOr(m map[string]any, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}
