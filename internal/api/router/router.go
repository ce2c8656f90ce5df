package router

import (
	"context"

	"recruit-agent-go/internal/api/handler"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
)

// RegisterRoutes 注册 API 路由
func RegisterRoutes(h *server.Hertz, appHandler *handler.ApplicationHandler, queueHandler *handler.QueueHandler) {
	api := h.Group("/api/v1")

	api.POST("/applications", appHandler.HandleSubmit)
	api.GET("/applications/:id", appHandler.HandleGet)

	qm := api.Group("/queue-management")
	qm.GET("/stats", queueHandler.HandleStats)
	qm.POST("/cleanup", queueHandler.HandleCleanup)
	qm.POST("/pause", queueHandler.HandlePause)
	qm.POST("/resume", queueHandler.HandleResume)

	// 健康检查
	h.GET("/health", func(c context.Context, ctx *app.RequestContext) {
		ctx.JSON(consts.StatusOK, utils.H{"status": "ok"})
	})
}
