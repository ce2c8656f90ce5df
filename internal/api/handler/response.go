package handler

import "github.com/cloudwego/hertz/pkg/app"

// Response 统一响应信封
type Response struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func respondOK(ctx *app.RequestContext, status int, message string, data interface{}) {
	ctx.JSON(status, Response{Success: true, Message: message, Data: data})
}

func respondError(ctx *app.RequestContext, status int, message string) {
	ctx.JSON(status, Response{Success: false, Message: message})
}
