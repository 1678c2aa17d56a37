package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/aulagpt/aulagpt-backend/internal/logger"
	"github.com/aulagpt/aulagpt-backend/internal/middleware"
	apperrors "github.com/aulagpt/aulagpt-backend/internal/pkg/errors"
	"github.com/aulagpt/aulagpt-backend/internal/services"
)

type MindMapHandler struct {
	log     *logger.Logger
	mindMap services.MindMapService
}

func NewMindMapHandler(log *logger.Logger, mindMap services.MindMapService) *MindMapHandler {
	return &MindMapHandler{
		log:     log.With("handler", "MindMapHandler"),
		mindMap: mindMap,
	}
}

type mindMapRequest struct {
	Content string `json:"content"`
}

// Generate renders the posted content as a Mermaid diagram. Synchronous: the
// caller waits for the assistant run, unlike the query pipeline.
func (h *MindMapHandler) Generate(c *gin.Context) {
	if middleware.SessionFrom(c) == nil {
		RespondError(c, http.StatusUnauthorized, "UNAUTHENTICATED", errors.New("missing session"))
		return
	}

	var req mindMapRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "BAD_REQUEST", err)
		return
	}
	if strings.TrimSpace(req.Content) == "" {
		RespondError(c, http.StatusBadRequest, "INVALID_ARGUMENT", errors.New("content must not be empty"))
		return
	}

	diagram, err := h.mindMap.Generate(c.Request.Context(), req.Content)
	if err != nil {
		if errors.Is(err, apperrors.ErrConfigurationMissing) {
			RespondError(c, http.StatusUnprocessableEntity, "NOT_CONFIGURED", err)
			return
		}
		h.log.Error("Mind map generation failed", "error", err)
		RespondError(c, http.StatusInternalServerError, "INTERNAL", errors.New("internal error"))
		return
	}
	RespondOK(c, gin.H{"diagram": diagram})
}
