package handler

import (
	"context"
	"encoding/json"
	"errors"

	"recruit-agent-go/internal/application"
	"recruit-agent-go/internal/logger"
	"recruit-agent-go/internal/storage"
	"recruit-agent-go/internal/storage/models"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/rs/zerolog"
)

// ApplicationHandler 申请提交与查询
type ApplicationHandler struct {
	service *application.Service
	log     zerolog.Logger
}

// NewApplicationHandler 创建申请处理器
func NewApplicationHandler(service *application.Service) *ApplicationHandler {
	return &ApplicationHandler{
		service: service,
		log:     logger.Component("application-handler"),
	}
}

// SubmitRequest 提交申请请求体
type SubmitRequest struct {
	CandidateID string `json:"candidate_id"`
	JobID       string `json:"job_id"`
}

// ApplicationView 对外暴露的申请视图
type ApplicationView struct {
	ApplicationID      string          `json:"application_id"`
	CandidateID        string          `json:"candidate_id"`
	JobID              string          `json:"job_id"`
	Status             string          `json:"status"`
	AppliedAt          string          `json:"applied_at"`
	AnalyzedAt         string          `json:"analyzed_at,omitempty"`
	Analysis           json.RawMessage `json:"analysis,omitempty"`
	PotentialSalaryMin int             `json:"potential_salary_min,omitempty"`
	PotentialSalaryMax int             `json:"potential_salary_max,omitempty"`
	StatusNote         string          `json:"status_note,omitempty"`
}

func applicationView(app *models.Application) *ApplicationView {
	view := &ApplicationView{
		ApplicationID:      app.ApplicationID,
		CandidateID:        app.CandidateID,
		JobID:              app.JobID,
		Status:             app.Status,
		AppliedAt:          app.AppliedAt.Format("2006-01-02T15:04:05Z07:00"),
		PotentialSalaryMin: app.PotentialSalaryMin,
		PotentialSalaryMax: app.PotentialSalaryMax,
		StatusNote:         app.StatusNote,
	}
	if app.AnalyzedAt != nil {
		view.AnalyzedAt = app.AnalyzedAt.Format("2006-01-02T15:04:05Z07:00")
	}
	if len(app.AnalysisJSON) > 0 {
		view.Analysis = json.RawMessage(app.AnalysisJSON)
	}
	return view
}

// HandleSubmit POST /api/v1/applications
// 重复的(candidate, job)返回409，实体不存在返回404
func (h *ApplicationHandler) HandleSubmit(c context.Context, ctx *app.RequestContext) {
	var req SubmitRequest
	if err := json.Unmarshal(ctx.Request.Body(), &req); err != nil {
		respondError(ctx, consts.StatusBadRequest, "请求体解析失败")
		return
	}
	if req.CandidateID == "" || req.JobID == "" {
		respondError(ctx, consts.StatusBadRequest, "candidate_id和job_id不能为空")
		return
	}

	app, err := h.service.Create(c, req.CandidateID, req.JobID)
	if errors.Is(err, storage.ErrDuplicateApplication) {
		respondError(ctx, consts.StatusConflict, "该候选人已申请过此岗位")
		return
	}
	if errors.Is(err, storage.ErrNotFound) {
		respondError(ctx, consts.StatusNotFound, "候选人或岗位不存在")
		return
	}
	if err != nil {
		h.log.Error().Err(err).Msg("申请提交失败")
		respondError(ctx, consts.StatusInternalServerError, "申请提交失败")
		return
	}

	respondOK(ctx, consts.StatusCreated, "申请已提交，分析将异步进行", applicationView(app))
}

// HandleGet GET /api/v1/applications/:id
func (h *ApplicationHandler) HandleGet(c context.Context, ctx *app.RequestContext) {
	applicationID := ctx.Param("id")
	if applicationID == "" {
		respondError(ctx, consts.StatusBadRequest, "缺少申请ID")
		return
	}

	app, err := h.service.Get(c, applicationID)
	if errors.Is(err, storage.ErrNotFound) {
		respondError(ctx, consts.StatusNotFound, "申请不存在")
		return
	}
	if err != nil {
		h.log.Error().Err(err).Str("application_id", applicationID).Msg("申请查询失败")
		respondError(ctx, consts.StatusInternalServerError, "申请查询失败")
		return
	}

	respondOK(ctx, consts.StatusOK, "ok", applicationView(app))
}
