package router

import (
	"github.com/gin-gonic/gin"

	"lighthouse.app/cityintel/internal/http/handler"
)

func VideoRouter(rg *gin.RouterGroup, h *handler.VideoHandler) {
	rg.POST("", h.Create)
	rg.GET("/:id", h.Get)
}
