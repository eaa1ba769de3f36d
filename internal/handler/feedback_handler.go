package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/unifyp/fyp-api/internal/service"
	appErrors "github.com/unifyp/fyp-api/pkg/errors"
	"github.com/unifyp/fyp-api/pkg/response"
)

// FeedbackHandler exposes submission feedback endpoints.
type FeedbackHandler struct {
	feedback *service.FeedbackService
}

// NewFeedbackHandler constructs FeedbackHandler.
func NewFeedbackHandler(feedback *service.FeedbackService) *FeedbackHandler {
	return &FeedbackHandler{feedback: feedback}
}

// Create godoc
// @Summary Create feedback
// @Description Comment on (and optionally grade) a submitted document
// @Tags Feedback
// @Accept json
// @Produce json
// @Param id path string true "Submission ID"
// @Param payload body service.CreateFeedbackRequest true "Feedback payload"
// @Success 201 {object} response.Envelope
// @Router /submissions/{id}/feedback [post]
func (h *FeedbackHandler) Create(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.CreateFeedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	feedback, err := h.feedback.Create(c.Request.Context(), c.Param("id"), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, feedback)
}

// ListBySubmission godoc
// @Summary List submission feedback
// @Tags Feedback
// @Produce json
// @Param id path string true "Submission ID"
// @Success 200 {object} response.Envelope
// @Router /submissions/{id}/feedback [get]
func (h *FeedbackHandler) ListBySubmission(c *gin.Context) {
	feedback, err := h.feedback.ListBySubmission(c.Request.Context(), c.Param("id"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, feedback, nil)
}
