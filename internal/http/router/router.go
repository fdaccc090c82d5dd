package router

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"lighthouse.app/cityintel/internal/http/handler"
)

type Handlers struct {
	Pipeline *handler.PipelineHandler
	Issues   *handler.IssueHandler
	History  *handler.HistoryHandler
	Video    *handler.VideoHandler
}

type RouterConfig struct {
	// Metrics serves /metrics when set.
	Metrics http.Handler
}

func SetupRoutes(router *gin.Engine, h Handlers, cfg RouterConfig) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if cfg.Metrics != nil {
		router.GET("/metrics", gin.WrapH(cfg.Metrics))
	}

	v1 := router.Group("/api/v1")
	{
		PipelineRouter(v1.Group("/pipeline"), h.Pipeline)
		IssueRouter(v1.Group("/issues"), h.Issues)
		HistoryRouter(v1.Group("/history"), h.History)
		VideoRouter(v1.Group("/video"), h.Video)
	}
}
