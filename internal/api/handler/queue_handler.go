package handler

import (
	"context"

	"recruit-agent-go/internal/logger"
	"recruit-agent-go/internal/maintenance"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/rs/zerolog"
)

// QueueHandler 队列运维面：状态、清扫、暂停/恢复
type QueueHandler struct {
	maint *maintenance.Service
	log   zerolog.Logger
}

// NewQueueHandler 创建队列运维处理器
func NewQueueHandler(maint *maintenance.Service) *QueueHandler {
	return &QueueHandler{
		maint: maint,
		log:   logger.Component("queue-handler"),
	}
}

// HandleStats GET /api/v1/queue-management/stats
func (h *QueueHandler) HandleStats(c context.Context, ctx *app.RequestContext) {
	stats, err := h.maint.GetStats(c)
	if err != nil {
		h.log.Error().Err(err).Msg("队列状态查询失败")
		respondError(ctx, consts.StatusInternalServerError, "队列状态查询失败")
		return
	}
	respondOK(ctx, consts.StatusOK, "ok", stats)
}

// HandleCleanup POST /api/v1/queue-management/cleanup
// 按需触发一次清扫，返回汇总报告（清扫本身不失败，单项错误在报告里）
func (h *QueueHandler) HandleCleanup(c context.Context, ctx *app.RequestContext) {
	report := h.maint.CleanupProblematicJobs(c)
	respondOK(ctx, consts.StatusOK, "清扫完成", report)
}

// HandlePause POST /api/v1/queue-management/pause
func (h *QueueHandler) HandlePause(c context.Context, ctx *app.RequestContext) {
	if err := h.maint.Pause(c); err != nil {
		h.log.Error().Err(err).Msg("队列暂停失败")
		respondError(ctx, consts.StatusInternalServerError, "队列暂停失败")
		return
	}
	respondOK(ctx, consts.StatusOK, "队列已暂停", nil)
}

// HandleResume POST /api/v1/queue-management/resume
func (h *QueueHandler) HandleResume(c context.Context, ctx *app.RequestContext) {
	if err := h.maint.Resume(c); err != nil {
		h.log.Error().Err(err).Msg("队列恢复失败")
		respondError(ctx, consts.StatusInternalServerError, "队列恢复失败")
		return
	}
	respondOK(ctx, consts.StatusOK, "队列已恢复", nil)
}
