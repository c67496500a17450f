package repository

import (
	"context"
	"errors"

	"ielts_exam_backend/internal/model"

	"gorm.io/gorm"
)

// ErrStaleSession 条件更新未命中：会话已被其他请求推进
var ErrStaleSession = errors.New("exam session was modified concurrently")

type ExamSessionRepository struct {
	DB *gorm.DB
}

func NewExamSessionRepository(db *gorm.DB) *ExamSessionRepository {
	return &ExamSessionRepository{DB: db}
}

func (r *ExamSessionRepository) Create(ctx context.Context, session *model.ExamSession) error {
	return r.DB.WithContext(ctx).Create(session).Error
}

func (r *ExamSessionRepository) FindByID(ctx context.Context, id string) (*model.ExamSession, error) {
	var s model.ExamSession
	err := r.DB.WithContext(ctx).Where("id = ?", id).First(&s).Error
	return &s, err
}

// UpdateIfCurrent 仅当会话仍处于读取时的状态和版本时才写入 fields，
// 所有字段在一条 UPDATE 中提交
func (r *ExamSessionRepository) UpdateIfCurrent(ctx context.Context, session *model.ExamSession, fields map[string]interface{}) error {
	fields["revision"] = session.Revision + 1

	result := r.DB.WithContext(ctx).
		Model(&model.ExamSession{}).
		Where("id = ? AND status = ? AND revision = ?", session.ID, session.Status, session.Revision).
		Updates(fields)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrStaleSession
	}
	return nil
}
