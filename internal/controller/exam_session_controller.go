package controller

import (
	"context"
	"errors"
	"net/http"

	"ielts_exam_backend/internal/model"
	"ielts_exam_backend/internal/service"
	"ielts_exam_backend/internal/util"
	"ielts_exam_backend/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type ExamSessionController struct {
	ExamSessionService *service.ExamSessionService
}

func NewExamSessionController(examSessionService *service.ExamSessionService) *ExamSessionController {
	return &ExamSessionController{ExamSessionService: examSessionService}
}

// @Summary 创建考试会话
// @Tags 考试会话
// @Accept json
// @Produce json
// @Param session body service.SessionCreateRequest true "考试等级"
// @Success 201 {object} util.Response{data=model.ExamSession}
// @Failure 400 {object} util.Response
// @Router /api/sessions [post]
func (c *ExamSessionController) CreateSession(ctx *gin.Context) {
	var req service.SessionCreateRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	session, err := c.ExamSessionService.Create(ctx.Request.Context(), req.Level)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Created(ctx, session)
}

// @Summary 获取考试会话详情
// @Tags 考试会话
// @Produce json
// @Param id path string true "会话ID"
// @Success 200 {object} util.Response{data=model.ExamSession}
// @Failure 404 {object} util.Response
// @Router /api/sessions/{id} [get]
func (c *ExamSessionController) GetSession(ctx *gin.Context) {
	c.run(ctx, c.ExamSessionService.GetSession)
}

// @Summary 获取考试会话状态
// @Tags 考试会话
// @Produce json
// @Param id path string true "会话ID"
// @Success 200 {object} util.Response{data=model.SessionStatusView}
// @Failure 404 {object} util.Response
// @Router /api/sessions/{id}/status [get]
func (c *ExamSessionController) GetStatus(ctx *gin.Context) {
	view, err := c.ExamSessionService.GetStatus(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, view)
}

// @Summary 选择第一阶段类型
// @Tags 考试会话
// @Accept json
// @Produce json
// @Param id path string true "会话ID"
// @Param phase body service.PhaseSelectRequest true "阶段类型"
// @Success 200 {object} util.Response{data=model.ExamSession}
// @Failure 400 {object} util.Response
// @Router /api/sessions/{id}/select-phase [post]
func (c *ExamSessionController) SelectPhase(ctx *gin.Context) {
	var req service.PhaseSelectRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	session, err := c.ExamSessionService.SelectPhase(ctx.Request.Context(), ctx.Param("id"), req.Phase)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, session)
}

// @Summary 生成第一阶段题目
// @Tags 考试会话
// @Produce json
// @Param id path string true "会话ID"
// @Success 200 {object} util.Response{data=model.ExamSession}
// @Failure 400 {object} util.Response
// @Failure 500 {object} util.Response
// @Router /api/sessions/{id}/generate [post]
func (c *ExamSessionController) GeneratePhase1(ctx *gin.Context) {
	c.run(ctx, c.ExamSessionService.GeneratePhase1)
}

// @Summary 开始第一阶段
// @Tags 考试会话
// @Produce json
// @Param id path string true "会话ID"
// @Success 200 {object} util.Response{data=model.ExamSession}
// @Router /api/sessions/{id}/start-phase1 [post]
func (c *ExamSessionController) StartPhase1(ctx *gin.Context) {
	c.run(ctx, c.ExamSessionService.StartPhase1)
}

// @Summary 提交第一阶段答案
// @Tags 考试会话
// @Accept json
// @Produce json
// @Param id path string true "会话ID"
// @Param answers body service.AnswersSubmitRequest true "答案"
// @Success 200 {object} util.Response{data=model.ExamSession}
// @Router /api/sessions/{id}/submit-phase1 [post]
func (c *ExamSessionController) SubmitPhase1(ctx *gin.Context) {
	c.submit(ctx, c.ExamSessionService.SubmitPhase1)
}

// @Summary 生成第二阶段题目
// @Tags 考试会话
// @Produce json
// @Param id path string true "会话ID"
// @Success 200 {object} util.Response{data=model.ExamSession}
// @Router /api/sessions/{id}/generate-phase2 [post]
func (c *ExamSessionController) GeneratePhase2(ctx *gin.Context) {
	c.run(ctx, c.ExamSessionService.GeneratePhase2)
}

// @Summary 开始第二阶段
// @Tags 考试会话
// @Produce json
// @Param id path string true "会话ID"
// @Success 200 {object} util.Response{data=model.ExamSession}
// @Router /api/sessions/{id}/start-phase2 [post]
func (c *ExamSessionController) StartPhase2(ctx *gin.Context) {
	c.run(ctx, c.ExamSessionService.StartPhase2)
}

// @Summary 提交第二阶段答案
// @Tags 考试会话
// @Accept json
// @Produce json
// @Param id path string true "会话ID"
// @Param answers body service.AnswersSubmitRequest true "答案"
// @Success 200 {object} util.Response{data=model.ExamSession}
// @Router /api/sessions/{id}/submit-phase2 [post]
func (c *ExamSessionController) SubmitPhase2(ctx *gin.Context) {
	c.submit(ctx, c.ExamSessionService.SubmitPhase2)
}

// @Summary 汇总最终成绩
// @Description 计算四项技能及总分，并尽力生成详细分析
// @Tags 考试会话
// @Produce json
// @Param id path string true "会话ID"
// @Success 200 {object} util.Response{data=model.ExamSession}
// @Router /api/sessions/{id}/aggregate [post]
func (c *ExamSessionController) Aggregate(ctx *gin.Context) {
	c.run(ctx, c.ExamSessionService.Aggregate)
}

// @Summary 生成详细分析
// @Tags 考试会话
// @Produce json
// @Param id path string true "会话ID"
// @Success 200 {object} util.Response{data=model.ExamSession}
// @Router /api/sessions/{id}/generate-analysis [post]
func (c *ExamSessionController) GenerateAnalysis(ctx *gin.Context) {
	c.run(ctx, c.ExamSessionService.GenerateDetailedAnalysis)
}

type sessionOp func(ctx context.Context, id string) (*model.ExamSession, error)

func (c *ExamSessionController) run(ctx *gin.Context, op sessionOp) {
	session, err := op(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, session)
}

func (c *ExamSessionController) submit(ctx *gin.Context, op func(context.Context, string, model.Answers) (*model.ExamSession, error)) {
	var req service.AnswersSubmitRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	session, err := op(ctx.Request.Context(), ctx.Param("id"), req.Answers)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, session)
}

// respondError 将领域错误映射为 HTTP 状态码
func respondError(ctx *gin.Context, err error) {
	var genErr *service.GenerationError
	var parseErr *service.ParseError

	switch {
	case errors.Is(err, util.ErrSessionNotFound):
		util.NotFoundWithMessage(ctx, err.Error())
	case errors.Is(err, util.ErrInvalidStateTransition),
		errors.Is(err, util.ErrInvalidLevel),
		errors.Is(err, util.ErrInvalidPhase):
		util.BadRequest(ctx, err.Error())
	case errors.Is(err, util.ErrAllCredentialsInvalid), errors.Is(err, util.ErrConfiguration):
		logger.Log.Error("AI 凭证不可用", zap.Error(err))
		util.ServiceUnavailable(ctx, err.Error())
	case errors.As(err, &genErr), errors.As(err, &parseErr):
		logger.Log.Error("AI 生成失败", zap.String("path", ctx.FullPath()), zap.Error(err))
		util.Error(ctx, http.StatusInternalServerError, "Generation error: "+err.Error())
	default:
		util.LogInternalError(ctx, err)
	}
}
