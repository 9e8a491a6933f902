package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/GTDGit/onhand_api/internal/service"
	"github.com/GTDGit/onhand_api/internal/utils"
)

type FeedbackHandler struct {
	feedback *service.FeedbackService
}

func NewFeedbackHandler(feedback *service.FeedbackService) *FeedbackHandler {
	return &FeedbackHandler{feedback: feedback}
}

// List handles GET /v1/feedback
func (h *FeedbackHandler) List(c *gin.Context) {
	list, err := h.feedback.List(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	utils.Success(c, http.StatusOK, "Feedback retrieved", list)
}

// Post handles POST /v1/feedback
func (h *FeedbackHandler) Post(c *gin.Context) {
	var req struct {
		Content string `json:"content" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	f, err := h.feedback.Post(c.Request.Context(), req.Content)
	if err != nil {
		respondError(c, err)
		return
	}
	utils.Success(c, http.StatusCreated, "Thanks for the feedback", f)
}
