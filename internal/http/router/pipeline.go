package router

import (
	"github.com/gin-gonic/gin"

	"lighthouse.app/cityintel/internal/http/handler"
)

func PipelineRouter(rg *gin.RouterGroup, h *handler.PipelineHandler) {
	rg.GET("", h.Get)
	rg.POST("/start", h.Start)
	rg.POST("/stop", h.Stop)
	rg.GET("/stream", h.Stream)
	rg.GET("/ws", h.Socket)
}
