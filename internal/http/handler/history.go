package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"lighthouse.app/cityintel/internal/http/dto"
	"lighthouse.app/cityintel/internal/store"
)

type HistoryHandler struct {
	history PastIssueService
}

func NewHistoryHandler(history PastIssueService) *HistoryHandler {
	return &HistoryHandler{history: history}
}

func (h *HistoryHandler) List(c *gin.Context) {
	ctx := c.Request.Context()

	issues, err := h.history.Load(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "failed to load past issues", "error", err)
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "failed to load past issues"})
		return
	}

	c.JSON(http.StatusOK, dto.ToPastIssueList(issues))
}

func (h *HistoryHandler) UpdateStatus(c *gin.Context) {
	ctx := c.Request.Context()

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "invalid issue id"})
		return
	}

	var req dto.UpdatePastIssueStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: err.Error()})
		return
	}
	if !req.Status.IsValid() {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "status must be monitoring, escalated, resolved or stagnant"})
		return
	}

	if err := h.history.UpdateStatus(ctx, id, req.Status); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, dto.ErrorResponse{Error: "past issue not found"})
			return
		}
		slog.ErrorContext(ctx, "failed to update past issue", "error", err, "issue_id", id)
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "failed to update past issue"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"id": id, "status": req.Status})
}
