package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"lighthouse.app/cityintel/internal/http/dto"
	"lighthouse.app/cityintel/internal/store"
)

type IssueHandler struct {
	archive store.IssueArchive
	counter ArchiveCounter
}

func NewIssueHandler(archive store.IssueArchive, counter ArchiveCounter) *IssueHandler {
	return &IssueHandler{archive: archive, counter: counter}
}

// List returns archived issues newest first. ?raw=true includes the agents' raw payloads.
func (h *IssueHandler) List(c *gin.Context) {
	ctx := c.Request.Context()

	records, err := h.archive.LoadAll(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "failed to load archive", "error", err)
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "failed to load archived issues"})
		return
	}

	c.JSON(http.StatusOK, dto.ToArchivedIssueList(records, c.Query("raw") == "true"))
}

func (h *IssueHandler) UpdateStatus(c *gin.Context) {
	ctx := c.Request.Context()
	docID := c.Param("id")

	var req dto.UpdateIssueStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: err.Error()})
		return
	}
	if !req.Status.IsValid() {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "status must be active, resolved or monitoring"})
		return
	}

	if err := h.archive.UpdateStatus(ctx, docID, req.Status); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, dto.ErrorResponse{Error: "issue not found"})
			return
		}
		slog.ErrorContext(ctx, "failed to update issue status", "error", err, "doc_id", docID)
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "failed to update issue"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"doc_id": docID, "status": req.Status})
}

func (h *IssueHandler) Delete(c *gin.Context) {
	ctx := c.Request.Context()
	docID := c.Param("id")

	if err := h.archive.Delete(ctx, docID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, dto.ErrorResponse{Error: "issue not found"})
			return
		}
		slog.ErrorContext(ctx, "failed to delete issue", "error", err, "doc_id", docID)
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "failed to delete issue"})
		return
	}

	if h.counter != nil {
		if records, err := h.archive.LoadAll(ctx); err == nil {
			h.counter.SetArchiveCount(len(records))
		}
	}
	c.Status(http.StatusNoContent)
}
