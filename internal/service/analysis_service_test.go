package service

import (
	"context"
	"errors"
	"testing"

	"ielts_exam_backend/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

// 两份提示词各自独有的片段
const (
	ieltsMarker  = "question_type_analysis"
	beyondMarker = "mother_tongue_influence"
)

func analysisInput() AnalysisInput {
	return AnalysisInput{
		Phase1Scores: &model.PhaseScores{
			Reading: &model.ObjectiveScore{RawScore: 7, TotalQuestions: 10, Band: 3.5},
			Writing: &model.WritingScore{OverallBand: 5.5},
		},
		Phase2Scores: &model.PhaseScores{
			Listening: &model.ObjectiveScore{RawScore: 12, TotalQuestions: 20, Band: 4.0},
			Speaking:  &model.SpeakingScore{OverallBand: 6.0},
		},
		Phase1Answers: model.Answers{"writing_task2": "Many people believe that working from home improves productivity because employees save time on commuting every day"},
		Phase2Answers: model.Answers{"speaking_part2": "I went to Da Lat last year"},
		Final:         &model.FinalResults{Listening: 4.0, Reading: 3.5, Writing: 5.5, Speaking: 6.0, Overall: 4.8},
	}
}

// ignoreBackgroundWorkers 排除 genai 依赖在 init 时启动的 opencensus worker
func ignoreBackgroundWorkers() []goleak.Option {
	return []goleak.Option{
		goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start"),
		goleak.IgnoreCurrent(),
	}
}

func TestAnalysisService_BothParts(t *testing.T) {
	defer goleak.VerifyNone(t, ignoreBackgroundWorkers()...)

	gen := newFakeGenerator().
		on(ieltsMarker, `{"ielts_analysis": {"reading": {"strengths": ["skimming"]}}}`).
		on(beyondMarker, `{"beyond_ielts": {"reflex_level": "medium"}}`)

	got := NewAnalysisService(gen, "Vietnamese").Generate(context.Background(), analysisInput())
	assert.Equal(t, "medium", got.BeyondIELTS["reflex_level"])
	assert.Contains(t, got.IELTSAnalysis, "reading")

	ielts := gen.callsMatching(ieltsMarker)
	require.Len(t, ielts, 1)
	assert.Equal(t, SlotPrimary, ielts[0].Forced)
	assert.Contains(t, ielts[0].Prompt, "answer in Vietnamese")
	assert.Contains(t, ielts[0].Prompt, "R:P1:7/10=3.5")
	assert.Contains(t, ielts[0].Prompt, "W:W1:Many people believe")

	beyond := gen.callsMatching(beyondMarker)
	require.Len(t, beyond, 1)
	assert.Equal(t, SlotBackup, beyond[0].Forced)
	assert.Contains(t, beyond[0].Prompt, "S:S2:I went to Da Lat last year")
}

func TestAnalysisService_PartialFailure(t *testing.T) {
	defer goleak.VerifyNone(t, ignoreBackgroundWorkers()...)

	gen := newFakeGenerator().
		fail(beyondMarker, errors.New("429 quota")).
		on(ieltsMarker, `{"ielts_analysis": {"overall": "ok"}}`)

	got := NewAnalysisService(gen, "").Generate(context.Background(), analysisInput())
	assert.Equal(t, map[string]any{"overall": "ok"}, got.IELTSAnalysis)
	assert.NotNil(t, got.BeyondIELTS)
	assert.Empty(t, got.BeyondIELTS)
}

func TestAnalysisService_MissingKeyYieldsEmpty(t *testing.T) {
	gen := newFakeGenerator().
		on(ieltsMarker, `{"something_else": {}}`).
		on(beyondMarker, `{"beyond_ielts": "not an object"}`)

	got := NewAnalysisService(gen, "").Generate(context.Background(), analysisInput())
	assert.True(t, got.IsEmpty())
}
