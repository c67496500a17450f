package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

func TestPhaseComplement(t *testing.T) {
	assert.Equal(t, PhaseReadingWriting, PhaseListeningSpeaking.Complement())
	assert.Equal(t, PhaseListeningSpeaking, PhaseReadingWriting.Complement())

	assert.False(t, Phase("speaking_only").Valid())
}

func TestStatusRankIsStrictlyIncreasing(t *testing.T) {
	for i := 1; i < len(statusOrder); i++ {
		assert.Greater(t, statusOrder[i].Rank(), statusOrder[i-1].Rank())
	}
	assert.Equal(t, -1, SessionStatus("archived").Rank())
}

func TestStatusCanAdvanceTo(t *testing.T) {
	tests := []struct {
		from, to SessionStatus
		want     bool
	}{
		{StatusInitialized, StatusPhase1Selected, true},
		{StatusPhase1Completed, StatusPhase2Generated, true},
		{StatusCompleted, StatusCompleted, true},
		{StatusPhase1Completed, StatusPhase1Selected, false},
		{StatusCompleted, StatusPhase2Completed, false},
		{SessionStatus("archived"), StatusCompleted, false},
		{StatusInitialized, SessionStatus("archived"), false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.from.CanAdvanceTo(tt.to), "%s -> %s", tt.from, tt.to)
	}
}

func TestLevelBandRange(t *testing.T) {
	assert.Equal(t, "3.0-4.0", LevelBeginner.BandRange())
	assert.Equal(t, "5.0-5.5", LevelIntermediate.BandRange())
	assert.Equal(t, "7.0-8.0", LevelAdvanced.BandRange())
	assert.False(t, Level("expert").Valid())
}

func TestFlexStringAcceptsScalars(t *testing.T) {
	var q struct {
		ID     FlexString `json:"id"`
		Answer FlexString `json:"correct_answer"`
		Flag   FlexString `json:"flag"`
		Empty  FlexString `json:"empty"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"id": 3, "correct_answer": " True ", "flag": false, "empty": null}`), &q))

	assert.Equal(t, "3", q.ID.String())
	assert.Equal(t, "true", q.Answer.Normalized())
	assert.Equal(t, "false", q.Flag.String())
	assert.Equal(t, "", q.Empty.String())

	var bad FlexString
	assert.Error(t, json.Unmarshal([]byte(`{"nested": 1}`), &bad))
}

func TestAnswerKeys(t *testing.T) {
	assert.Equal(t, "listening_s2_q7", ListeningAnswerKey("2", "7"))
	assert.Equal(t, "reading_p1_q13", ReadingAnswerKey("1", "13"))
	assert.Equal(t, "speaking_part1_4", SpeakingPart1Key("4"))
	assert.Equal(t, "speaking_part3_2", SpeakingPart3Key("2"))
}

func TestStatusView(t *testing.T) {
	phase := PhaseReadingWriting
	s := &ExamSession{
		UUIDBase:      UUIDBase{ID: "abc"},
		Level:         LevelAdvanced,
		SelectedPhase: &phase,
		Status:        StatusPhase1Completed,
		Phase1Content: datatypes.JSON(`{"reading":{}}`),
		Phase1Scores:  datatypes.JSON(`{"reading":{"band":6}}`),
		Phase2Content: datatypes.JSON("null"),
	}

	view := s.StatusView()
	assert.True(t, view.Phase1Available)
	assert.True(t, view.Phase1Completed)
	assert.False(t, view.Phase2Available)
	assert.False(t, view.Phase2Completed)

	p2, ok := s.Phase2Type()
	require.True(t, ok)
	assert.Equal(t, PhaseListeningSpeaking, p2)
}

func TestDetailedAnalysisIsEmpty(t *testing.T) {
	var nilAnalysis *DetailedAnalysis
	assert.True(t, nilAnalysis.IsEmpty())
	assert.True(t, EmptyAnalysis().IsEmpty())
	assert.False(t, (&DetailedAnalysis{IELTSAnalysis: map[string]any{"x": 1}}).IsEmpty())
}
