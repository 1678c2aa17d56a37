package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/aulagpt/aulagpt-backend/internal/logger"
	"github.com/aulagpt/aulagpt-backend/internal/middleware"
	"github.com/aulagpt/aulagpt-backend/internal/repos"
	"github.com/aulagpt/aulagpt-backend/internal/types"
)

type AssistantHandler struct {
	log           *logger.Logger
	assistantRepo repos.AssistantRepo
}

func NewAssistantHandler(log *logger.Logger, assistantRepo repos.AssistantRepo) *AssistantHandler {
	return &AssistantHandler{
		log:           log.With("handler", "AssistantHandler"),
		assistantRepo: assistantRepo,
	}
}

type assistantSummary struct {
	AssistantID string `json:"assistant_id"`
	Name        string `json:"name"`
}

// List returns the course-category assistants of the caller's course. The
// course always comes from the session; internal assistants are never shown.
func (h *AssistantHandler) List(c *gin.Context) {
	session := middleware.SessionFrom(c)
	if session == nil {
		RespondError(c, http.StatusUnauthorized, "UNAUTHENTICATED", errors.New("missing session"))
		return
	}

	assistants, err := h.assistantRepo.ListByCourseID(c.Request.Context(), nil, session.CourseID)
	if err != nil {
		h.log.Error("Assistant listing failed", "error", err)
		RespondError(c, http.StatusInternalServerError, "INTERNAL", errors.New("internal error"))
		return
	}

	out := make([]assistantSummary, 0, len(assistants))
	for _, a := range assistants {
		if a.Category != types.AssistantCategoryCourse {
			continue
		}
		out = append(out, assistantSummary{AssistantID: a.ID, Name: a.Name})
	}
	RespondOK(c, gin.H{"assistants": out})
}
