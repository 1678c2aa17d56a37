package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/aulagpt/aulagpt-backend/internal/logger"
	"github.com/aulagpt/aulagpt-backend/internal/middleware"
	apperrors "github.com/aulagpt/aulagpt-backend/internal/pkg/errors"
	"github.com/aulagpt/aulagpt-backend/internal/services"
)

type QueryHandler struct {
	log       *logger.Logger
	lifecycle services.QueryLifecycle
}

func NewQueryHandler(log *logger.Logger, lifecycle services.QueryLifecycle) *QueryHandler {
	return &QueryHandler{
		log:       log.With("handler", "QueryHandler"),
		lifecycle: lifecycle,
	}
}

type submitQueryRequest struct {
	AssistantID string `json:"assistant_id"`
	Question    string `json:"question"`
}

type submitQueryResponse struct {
	QueryID string `json:"query_id"`
	Status  string `json:"status"`
}

// Submit accepts a question and enqueues it. The answer is produced
// asynchronously; clients poll GetStatus until the query is terminal.
func (h *QueryHandler) Submit(c *gin.Context) {
	session := middleware.SessionFrom(c)
	if session == nil {
		RespondError(c, http.StatusUnauthorized, "UNAUTHENTICATED", errors.New("missing session"))
		return
	}

	var req submitQueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "BAD_REQUEST", err)
		return
	}

	query, err := h.lifecycle.Submit(c.Request.Context(), session.UserID, session.CourseID, req.AssistantID, req.Question)
	switch {
	case err == nil:
	case errors.Is(err, apperrors.ErrQuotaExceeded):
		RespondError(c, http.StatusTooManyRequests, "QUOTA_EXCEEDED", err)
		return
	case errors.Is(err, apperrors.ErrInvalidArgument):
		RespondError(c, http.StatusBadRequest, "INVALID_ARGUMENT", err)
		return
	case errors.Is(err, apperrors.ErrConfigurationMissing):
		RespondError(c, http.StatusUnprocessableEntity, "COURSE_NOT_CONFIGURED", err)
		return
	default:
		h.log.Error("Submit failed", "error", err)
		RespondError(c, http.StatusInternalServerError, "INTERNAL", errors.New("internal error"))
		return
	}

	RespondOK(c, submitQueryResponse{QueryID: query.ID, Status: query.Status})
}

// GetStatus reports the current state of a previously submitted query.
func (h *QueryHandler) GetStatus(c *gin.Context) {
	if middleware.SessionFrom(c) == nil {
		RespondError(c, http.StatusUnauthorized, "UNAUTHENTICATED", errors.New("missing session"))
		return
	}

	status, err := h.lifecycle.Status(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			RespondError(c, http.StatusNotFound, "NOT_FOUND", err)
			return
		}
		h.log.Error("Status lookup failed", "error", err)
		RespondError(c, http.StatusInternalServerError, "INTERNAL", errors.New("internal error"))
		return
	}
	RespondOK(c, status)
}
