package service

import (
	"context"
	"testing"

	"ielts_exam_backend/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContentGenerator_Generate(t *testing.T) {
	gen := newFakeGenerator().
		on("Reading & Writing", readingWritingFixture).
		on("Listening & Speaking", listeningSpeakingFixture)
	g := NewContentGenerator(gen)

	raw, err := g.Generate(context.Background(), model.LevelIntermediate, model.PhaseReadingWriting)
	require.NoError(t, err)
	assert.JSONEq(t, readingWritingFixture, string(raw))

	calls := gen.callsMatching("Reading & Writing")
	require.Len(t, calls, 1)
	assert.Contains(t, calls[0].Prompt, "intermediate level (estimated band 5.0-5.5)")
	assert.Equal(t, SlotAuto, calls[0].Forced)

	raw, err = g.Generate(context.Background(), model.LevelAdvanced, model.PhaseListeningSpeaking)
	require.NoError(t, err)
	assert.JSONEq(t, listeningSpeakingFixture, string(raw))
}

func TestContentGenerator_WrongShape(t *testing.T) {
	gen := newFakeGenerator().on("Reading & Writing", listeningSpeakingFixture)

	_, err := NewContentGenerator(gen).Generate(context.Background(), model.LevelBeginner, model.PhaseReadingWriting)
	var perr *ParseError
	require.ErrorAs(t, err, &perr)
	assert.Contains(t, perr.Error(), "reading passages missing")
}

func TestContentGenerator_UnknownPhase(t *testing.T) {
	_, err := NewContentGenerator(newFakeGenerator()).Generate(context.Background(), model.LevelBeginner, model.Phase("mixed"))
	assert.Error(t, err)
}
