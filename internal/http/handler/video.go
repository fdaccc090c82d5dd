package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"lighthouse.app/cityintel/internal/http/dto"
	"lighthouse.app/cityintel/internal/pipeline"
	"lighthouse.app/cityintel/internal/video"
)

type SnapshotSource interface {
	Snapshot() pipeline.Snapshot
}

type VideoHandler struct {
	videos    VideoService
	snapshots SnapshotSource
}

// NewVideoHandler wires the video endpoints. videos may be nil when rendering is not configured.
func NewVideoHandler(videos VideoService, snapshots SnapshotSource) *VideoHandler {
	return &VideoHandler{videos: videos, snapshots: snapshots}
}

// Create starts a storyboard job for the current cycle's top card.
func (h *VideoHandler) Create(c *gin.Context) {
	ctx := c.Request.Context()
	if h.videos == nil {
		c.JSON(http.StatusServiceUnavailable, dto.ErrorResponse{Error: "video rendering not configured"})
		return
	}

	snap := h.snapshots.Snapshot()
	job, err := h.videos.Start(ctx, snap.CycleID, snap.Stage, snap.Cards)
	if err != nil {
		if errors.Is(err, video.ErrNotReady) || errors.Is(err, video.ErrNoCards) {
			c.JSON(http.StatusConflict, dto.ErrorResponse{Error: err.Error()})
			return
		}
		slog.ErrorContext(ctx, "failed to start video job", "error", err)
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "failed to start video job"})
		return
	}

	c.JSON(http.StatusAccepted, job)
}

func (h *VideoHandler) Get(c *gin.Context) {
	if h.videos == nil {
		c.JSON(http.StatusServiceUnavailable, dto.ErrorResponse{Error: "video rendering not configured"})
		return
	}

	job, err := h.videos.Get(c.Param("id"))
	if err != nil {
		if errors.Is(err, video.ErrJobNotFound) {
			c.JSON(http.StatusNotFound, dto.ErrorResponse{Error: "video job not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "failed to load video job"})
		return
	}

	c.JSON(http.StatusOK, job)
}
