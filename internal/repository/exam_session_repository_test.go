package repository

import (
	"context"
	"errors"
	"testing"

	"ielts_exam_backend/internal/config"
	"ielts_exam_backend/internal/model"
	"ielts_exam_backend/pkg/database"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestRepo(t *testing.T) *ExamSessionRepository {
	t.Helper()
	db, err := database.InitDB(&config.DatabaseConfig{
		Driver:     config.DriverSQLite,
		SQLitePath: "file:" + uuid.NewString() + "?mode=memory&cache=shared",
	}, logger.Silent)
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	return NewExamSessionRepository(db)
}

func TestExamSessionRepository_CreateAndFind(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	s := &model.ExamSession{Level: model.LevelIntermediate, Status: model.StatusInitialized}
	require.NoError(t, repo.Create(ctx, s))
	require.NotEmpty(t, s.ID)

	got, err := repo.FindByID(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, model.LevelIntermediate, got.Level)
	assert.Equal(t, model.StatusInitialized, got.Status)
	assert.Nil(t, got.SelectedPhase)
	assert.False(t, model.HasJSON(got.Phase1Content))

	_, err = repo.FindByID(ctx, "missing")
	assert.True(t, errors.Is(err, gorm.ErrRecordNotFound))
}

func TestExamSessionRepository_UpdateIfCurrent(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	s := &model.ExamSession{Level: model.LevelAdvanced, Status: model.StatusPhase1Selected}
	require.NoError(t, repo.Create(ctx, s))

	stale := *s

	err := repo.UpdateIfCurrent(ctx, s, map[string]interface{}{
		"status":         model.StatusPhase1Generated,
		"phase1_content": datatypes.JSON(`{"reading":{"passages":[]}}`),
	})
	require.NoError(t, err)

	got, err := repo.FindByID(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPhase1Generated, got.Status)
	assert.Equal(t, 1, got.Revision)
	assert.JSONEq(t, `{"reading":{"passages":[]}}`, string(got.Phase1Content))

	// 基于旧快照的第二次写入必须失败，且不改变任何字段
	err = repo.UpdateIfCurrent(ctx, &stale, map[string]interface{}{
		"status":         model.StatusPhase1Generated,
		"phase1_content": datatypes.JSON(`{"reading":{"passages":[{"id":1}]}}`),
	})
	assert.ErrorIs(t, err, ErrStaleSession)

	again, err := repo.FindByID(ctx, s.ID)
	require.NoError(t, err)
	assert.JSONEq(t, `{"reading":{"passages":[]}}`, string(again.Phase1Content))
	assert.Equal(t, 1, again.Revision)
}
