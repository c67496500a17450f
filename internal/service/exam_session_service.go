package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"ielts_exam_backend/internal/config"
	"ielts_exam_backend/internal/model"
	"ielts_exam_backend/internal/repository"
	"ielts_exam_backend/internal/util"
	"ielts_exam_backend/pkg/logger"
	"ielts_exam_backend/pkg/monitoring"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// phaseSlot 描述第一/第二阶段各自的状态和列名
type phaseSlot struct {
	n          int
	generated  model.SessionStatus
	inProgress model.SessionStatus
	completed  model.SessionStatus
}

var (
	phaseOne = phaseSlot{1, model.StatusPhase1Generated, model.StatusPhase1InProgress, model.StatusPhase1Completed}
	phaseTwo = phaseSlot{2, model.StatusPhase2Generated, model.StatusPhase2InProgress, model.StatusPhase2Completed}
)

func (p phaseSlot) column(name string) string {
	return fmt.Sprintf("phase%d_%s", p.n, name)
}

func (p phaseSlot) content(s *model.ExamSession) datatypes.JSON {
	if p.n == 1 {
		return s.Phase1Content
	}
	return s.Phase2Content
}

func (p phaseSlot) startedAt(s *model.ExamSession) *time.Time {
	if p.n == 1 {
		return s.Phase1StartedAt
	}
	return s.Phase2StartedAt
}

// phaseType 第一阶段为所选类型，第二阶段为其互补类型
func (p phaseSlot) phaseType(s *model.ExamSession) (model.Phase, bool) {
	if p.n == 1 {
		if s.SelectedPhase == nil {
			return "", false
		}
		return *s.SelectedPhase, true
	}
	return s.Phase2Type()
}

// ExamSessionService 考试会话状态机，每次迁移通过一次条件更新原子提交
type ExamSessionService struct {
	repo     *repository.ExamSessionRepository
	content  *ContentGenerator
	scoring  *ScoringService
	analysis *AnalysisService
	archiver *ReportArchiver
	cache    *StatusCache
	config   config.ExamConfig
	now      func() time.Time
}

func NewExamSessionService(
	repo *repository.ExamSessionRepository,
	content *ContentGenerator,
	scoring *ScoringService,
	analysis *AnalysisService,
	archiver *ReportArchiver,
	cache *StatusCache,
	cfg config.ExamConfig,
) *ExamSessionService {
	return &ExamSessionService{
		repo:     repo,
		content:  content,
		scoring:  scoring,
		analysis: analysis,
		archiver: archiver,
		cache:    cache,
		config:   cfg,
		now:      time.Now,
	}
}

func (s *ExamSessionService) Create(ctx context.Context, level model.Level) (*model.ExamSession, error) {
	if !level.Valid() {
		return nil, fmt.Errorf("%w: %q", util.ErrInvalidLevel, level)
	}

	session := &model.ExamSession{
		Level:  level,
		Status: model.StatusInitialized,
	}
	if err := s.repo.Create(ctx, session); err != nil {
		return nil, err
	}

	monitoring.SessionTransitionCounter.WithLabelValues(string(model.StatusInitialized)).Inc()
	logger.Log.Info("创建考试会话", zap.String("session_id", session.ID), zap.String("level", string(level)))
	return session, nil
}

func (s *ExamSessionService) GetSession(ctx context.Context, id string) (*model.ExamSession, error) {
	session, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrSessionNotFound
		}
		return nil, err
	}
	return session, nil
}

func (s *ExamSessionService) GetStatus(ctx context.Context, id string) (*model.SessionStatusView, error) {
	if view, ok := s.cache.Get(ctx, id); ok {
		return view, nil
	}

	session, err := s.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}
	view := session.StatusView()
	s.cache.Set(ctx, view, session.Revision)
	return &view, nil
}

func (s *ExamSessionService) SelectPhase(ctx context.Context, id string, phase model.Phase) (*model.ExamSession, error) {
	if !phase.Valid() {
		return nil, fmt.Errorf("%w: %q", util.ErrInvalidPhase, phase)
	}

	session, err := s.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}
	if session.Status != model.StatusInitialized {
		return nil, invalidTransition("select phase", session.Status)
	}

	return s.commit(ctx, session, model.StatusPhase1Selected, map[string]interface{}{
		"selected_phase": phase,
	})
}

func (s *ExamSessionService) GeneratePhase1(ctx context.Context, id string) (*model.ExamSession, error) {
	return s.generatePhase(ctx, id, phaseOne, model.StatusPhase1Selected)
}

func (s *ExamSessionService) GeneratePhase2(ctx context.Context, id string) (*model.ExamSession, error) {
	return s.generatePhase(ctx, id, phaseTwo, model.StatusPhase1Completed)
}

// generatePhase 内容已存在时直接返回，不再调用模型
func (s *ExamSessionService) generatePhase(ctx context.Context, id string, p phaseSlot, from model.SessionStatus) (*model.ExamSession, error) {
	session, err := s.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}
	if model.HasJSON(p.content(session)) {
		return session, nil
	}

	phase, ok := p.phaseType(session)
	if !ok || session.Status != from {
		return nil, invalidTransition(fmt.Sprintf("generate phase %d", p.n), session.Status)
	}

	content, err := s.content.Generate(ctx, session.Level, phase)
	if err != nil {
		logger.Log.Error("生成考试内容失败",
			zap.String("session_id", id),
			zap.Int("phase", p.n),
			zap.Error(err),
		)
		return nil, err
	}

	updated, err := s.commit(ctx, session, p.generated, map[string]interface{}{
		p.column("content"): datatypes.JSON(content),
	})
	if errors.Is(err, util.ErrInvalidStateTransition) {
		// 并发请求已先一步写入内容
		if latest, lerr := s.GetSession(ctx, id); lerr == nil && model.HasJSON(p.content(latest)) {
			return latest, nil
		}
	}
	return updated, err
}

func (s *ExamSessionService) StartPhase1(ctx context.Context, id string) (*model.ExamSession, error) {
	return s.startPhase(ctx, id, phaseOne)
}

func (s *ExamSessionService) StartPhase2(ctx context.Context, id string) (*model.ExamSession, error) {
	return s.startPhase(ctx, id, phaseTwo)
}

func (s *ExamSessionService) startPhase(ctx context.Context, id string, p phaseSlot) (*model.ExamSession, error) {
	session, err := s.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}
	if !model.HasJSON(p.content(session)) {
		return nil, invalidTransition(fmt.Sprintf("start phase %d", p.n), session.Status)
	}
	if session.Status == p.inProgress {
		return session, nil
	}
	if session.Status != p.generated {
		return nil, invalidTransition(fmt.Sprintf("start phase %d", p.n), session.Status)
	}

	return s.commit(ctx, session, p.inProgress, map[string]interface{}{
		p.column("started_at"): s.now(),
	})
}

func (s *ExamSessionService) SubmitPhase1(ctx context.Context, id string, answers model.Answers) (*model.ExamSession, error) {
	return s.submitPhase(ctx, id, phaseOne, answers)
}

func (s *ExamSessionService) SubmitPhase2(ctx context.Context, id string, answers model.Answers) (*model.ExamSession, error) {
	return s.submitPhase(ctx, id, phaseTwo, answers)
}

// submitPhase 先完成评分，再把答案、成绩和完成时间一次提交
func (s *ExamSessionService) submitPhase(ctx context.Context, id string, p phaseSlot, answers model.Answers) (*model.ExamSession, error) {
	session, err := s.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}

	raw := p.content(session)
	phase, ok := p.phaseType(session)
	if !model.HasJSON(raw) || !ok || (session.Status != p.generated && session.Status != p.inProgress) {
		return nil, invalidTransition(fmt.Sprintf("submit phase %d", p.n), session.Status)
	}

	var content model.PhaseContent
	if err := json.Unmarshal(raw, &content); err != nil {
		return nil, fmt.Errorf("decode phase %d content: %w", p.n, err)
	}
	if answers == nil {
		answers = model.Answers{}
	}

	scores, err := s.scoring.ScorePhase(ctx, phase, &content, answers)
	if err != nil {
		return nil, err
	}

	answersJSON, err := json.Marshal(answers)
	if err != nil {
		return nil, err
	}
	scoresJSON, err := json.Marshal(scores)
	if err != nil {
		return nil, err
	}

	now := s.now()
	fields := map[string]interface{}{
		p.column("answers"):      datatypes.JSON(answersJSON),
		p.column("scores"):       datatypes.JSON(scoresJSON),
		p.column("completed_at"): now,
	}
	if p.startedAt(session) == nil {
		fields[p.column("started_at")] = now
	}
	return s.commit(ctx, session, p.completed, fields)
}

// Aggregate 计算最终成绩并尽力生成详细分析，最终结果已存在时直接返回
func (s *ExamSessionService) Aggregate(ctx context.Context, id string) (*model.ExamSession, error) {
	session, err := s.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}
	if model.HasJSON(session.FinalResults) {
		return session, nil
	}
	if session.Status != model.StatusPhase2Completed {
		return nil, invalidTransition("aggregate", session.Status)
	}

	in, err := analysisInputOf(session)
	if err != nil {
		return nil, err
	}
	final, err := Aggregate(in.Phase1Scores, in.Phase2Scores)
	if err != nil {
		return nil, err
	}

	final.DetailedAnalysis = model.EmptyAnalysis()
	if s.config.AnalysisOnAggregate {
		in.Final = final
		final.DetailedAnalysis = s.analysis.Generate(ctx, in)
	}

	finalJSON, err := json.Marshal(final)
	if err != nil {
		return nil, err
	}

	updated, err := s.commit(ctx, session, model.StatusCompleted, map[string]interface{}{
		"final_results": datatypes.JSON(finalJSON),
	})
	if err != nil {
		return nil, err
	}

	s.archive(ctx, updated)
	return updated, nil
}

// GenerateDetailedAnalysis 为已有最终成绩补充详细分析，不改变状态，失败时原样返回会话
func (s *ExamSessionService) GenerateDetailedAnalysis(ctx context.Context, id string) (*model.ExamSession, error) {
	session, err := s.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}
	if !model.HasJSON(session.FinalResults) {
		return nil, invalidTransition("generate detailed analysis", session.Status)
	}

	var final model.FinalResults
	if err := json.Unmarshal(session.FinalResults, &final); err != nil {
		return nil, fmt.Errorf("decode final results: %w", err)
	}
	if !final.DetailedAnalysis.IsEmpty() {
		return session, nil
	}

	in, err := analysisInputOf(session)
	if err != nil {
		logger.Log.Warn("无法读取阶段成绩，跳过详细分析", zap.String("session_id", id), zap.Error(err))
		return session, nil
	}
	in.Final = &final

	analysis := s.analysis.Generate(ctx, in)
	if analysis.IsEmpty() {
		return session, nil
	}
	final.DetailedAnalysis = analysis

	finalJSON, err := json.Marshal(final)
	if err != nil {
		return session, nil
	}

	updated, err := s.commit(ctx, session, session.Status, map[string]interface{}{
		"final_results": datatypes.JSON(finalJSON),
	})
	if err != nil {
		logger.Log.Warn("保存详细分析失败", zap.String("session_id", id), zap.Error(err))
		return session, nil
	}
	return updated, nil
}

// commit 以读取时的状态和版本为条件写入，并返回最新会话
func (s *ExamSessionService) commit(ctx context.Context, session *model.ExamSession, to model.SessionStatus, fields map[string]interface{}) (*model.ExamSession, error) {
	from := session.Status
	if !from.CanAdvanceTo(to) {
		return nil, invalidTransition("move to "+string(to), from)
	}
	fields["status"] = to

	if err := s.repo.UpdateIfCurrent(ctx, session, fields); err != nil {
		if errors.Is(err, repository.ErrStaleSession) {
			return nil, fmt.Errorf("%w: session %s changed concurrently", util.ErrInvalidStateTransition, session.ID)
		}
		return nil, err
	}

	if from != to {
		monitoring.SessionTransitionCounter.WithLabelValues(string(to)).Inc()
		logger.Log.Info("考试会话状态迁移",
			zap.String("session_id", session.ID),
			zap.String("from", string(from)),
			zap.String("to", string(to)),
		)
	}

	updated, err := s.GetSession(ctx, session.ID)
	if err != nil {
		s.cache.Invalidate(ctx, session.ID)
		return nil, err
	}
	// 提交方直接写入新版本，读路径的回填不会覆盖它
	s.cache.Set(ctx, updated.StatusView(), updated.Revision)
	return updated, nil
}

func (s *ExamSessionService) archive(ctx context.Context, session *model.ExamSession) {
	if s.archiver == nil || !s.config.ArchiveReports {
		return
	}
	url, err := s.archiver.Archive(ctx, session)
	if err != nil {
		logger.Log.Warn("成绩报告归档失败", zap.String("session_id", session.ID), zap.Error(err))
		return
	}
	logger.Log.Info("成绩报告已归档", zap.String("session_id", session.ID), zap.String("url", url))
}

func invalidTransition(op string, status model.SessionStatus) error {
	return fmt.Errorf("%w: cannot %s in status %s", util.ErrInvalidStateTransition, op, status)
}

func analysisInputOf(session *model.ExamSession) (AnalysisInput, error) {
	var in AnalysisInput
	if err := decodeJSONColumn(session.Phase1Scores, &in.Phase1Scores); err != nil {
		return in, err
	}
	if err := decodeJSONColumn(session.Phase2Scores, &in.Phase2Scores); err != nil {
		return in, err
	}
	if err := decodeJSONColumn(session.Phase1Answers, &in.Phase1Answers); err != nil {
		return in, err
	}
	if err := decodeJSONColumn(session.Phase2Answers, &in.Phase2Answers); err != nil {
		return in, err
	}
	return in, nil
}

// decodeJSONColumn 列为空时保持 v 不变
func decodeJSONColumn(j datatypes.JSON, v interface{}) error {
	if !model.HasJSON(j) {
		return nil
	}
	return json.Unmarshal(j, v)
}

type SessionCreateRequest struct {
	Level model.Level `json:"level" binding:"required"`
}

type PhaseSelectRequest struct {
	Phase model.Phase `json:"phase" binding:"required"`
}

type AnswersSubmitRequest struct {
	Answers model.Answers `json:"answers" binding:"required"`
}
