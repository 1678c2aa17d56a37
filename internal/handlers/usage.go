package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/aulagpt/aulagpt-backend/internal/logger"
	"github.com/aulagpt/aulagpt-backend/internal/middleware"
	"github.com/aulagpt/aulagpt-backend/internal/services"
)

type UsageHandler struct {
	log     *logger.Logger
	limiter services.UsageLimiter
}

func NewUsageHandler(log *logger.Logger, limiter services.UsageLimiter) *UsageHandler {
	return &UsageHandler{
		log:     log.With("handler", "UsageHandler"),
		limiter: limiter,
	}
}

// Get reports how many queries the caller has left this month.
func (h *UsageHandler) Get(c *gin.Context) {
	session := middleware.SessionFrom(c)
	if session == nil {
		RespondError(c, http.StatusUnauthorized, "UNAUTHENTICATED", errors.New("missing session"))
		return
	}

	remaining, err := h.limiter.Remaining(c.Request.Context(), nil, session.UserID, session.CourseID)
	if err != nil {
		h.log.Error("Usage lookup failed", "error", err)
		RespondError(c, http.StatusInternalServerError, "INTERNAL", errors.New("internal error"))
		return
	}
	RespondOK(c, gin.H{"remaining": remaining})
}
