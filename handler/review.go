package handler

import (
	"net/http"

	"github.com/CharlyTlelo/abc-exprezo-contratos/middleware"
	"github.com/CharlyTlelo/abc-exprezo-contratos/model"
	"github.com/CharlyTlelo/abc-exprezo-contratos/service"
	"github.com/gin-gonic/gin"
)

type ReviewHandler struct {
	workflow *service.Workflow
}

func NewReviewHandler(workflow *service.Workflow) *ReviewHandler {
	return &ReviewHandler{workflow: workflow}
}

type SubmitReviewRequest struct {
	Decisions []model.Decision `json:"decisions" binding:"required"`
}

type DraftRequest struct {
	Reason string `json:"reason"`
}

// Submit records the reviewer's decisions on documents of a contract
func (h *ReviewHandler) Submit(c *gin.Context) {
	var req SubmitReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	result, err := h.workflow.SubmitReview(c.Request.Context(), c.Param("folio"), middleware.GetUsername(c), req.Decisions)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// List returns the review ledger of a contract
func (h *ReviewHandler) List(c *gin.Context) {
	entries, err := h.workflow.Reviews(c.Request.Context(), c.Param("folio"))
	if err != nil {
		respondError(c, err)
		return
	}
	if entries == nil {
		entries = []model.ReviewEntry{}
	}

	c.JSON(http.StatusOK, gin.H{"reviews": entries})
}

// GetDraft returns the unsent reason for a document
func (h *ReviewHandler) GetDraft(c *gin.Context) {
	id := c.Param("id")
	reason, ok, err := h.workflow.Draft(c.Request.Context(), c.Param("folio"), id)
	if err != nil {
		respondError(c, err)
		return
	}
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Draft not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"id": id, "reason": reason})
}

// SaveDraft stores the unsent reason for a document; an empty one drops it
func (h *ReviewHandler) SaveDraft(c *gin.Context) {
	var req DraftRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	draft, err := h.workflow.SaveDraft(c.Request.Context(), c.Param("folio"), c.Param("id"), req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, draft)
}
