package router

import (
	"github.com/gin-gonic/gin"

	"lighthouse.app/cityintel/internal/http/handler"
)

func IssueRouter(rg *gin.RouterGroup, h *handler.IssueHandler) {
	rg.GET("", h.List)
	rg.PATCH("/:id/status", h.UpdateStatus)
	rg.DELETE("/:id", h.Delete)
}

func HistoryRouter(rg *gin.RouterGroup, h *handler.HistoryHandler) {
	rg.GET("", h.List)
	rg.PATCH("/:id/status", h.UpdateStatus)
}
