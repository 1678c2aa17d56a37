package services

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/aulagpt/aulagpt-backend/internal/clients/openai"
	"github.com/aulagpt/aulagpt-backend/internal/logger"
	"github.com/aulagpt/aulagpt-backend/internal/repos"
	"github.com/aulagpt/aulagpt-backend/internal/types"
)

// MindMapService renders course content as a Mermaid mind map through a
// dedicated internal assistant. One-shot: each request uses a fresh thread.
type MindMapService interface {
	Generate(ctx context.Context, content string) (string, error)
}

type mindMapService struct {
	db            *gorm.DB
	log           *logger.Logger
	assistantRepo repos.AssistantRepo
	ai            openai.Client

	pollInterval time.Duration
	pollTimeout  time.Duration
}

func NewMindMapService(db *gorm.DB, baseLog *logger.Logger, assistantRepo repos.AssistantRepo, ai openai.Client, pollInterval, pollTimeout time.Duration) MindMapService {
	if pollInterval <= 0 {
		pollInterval = DefaultRunPollInterval
	}
	if pollTimeout <= 0 {
		pollTimeout = DefaultRunPollTimeout
	}
	return &mindMapService{
		db:            db,
		log:           baseLog.With("service", "MindMapService"),
		assistantRepo: assistantRepo,
		ai:            ai,
		pollInterval:  pollInterval,
		pollTimeout:   pollTimeout,
	}
}

func (ms *mindMapService) Generate(ctx context.Context, content string) (string, error) {
	assistant, err := ms.assistantRepo.GetInternalBySubtype(ctx, nil, types.AssistantSubtypeMindMap)
	if err != nil {
		return "", err
	}

	threadID, err := ms.ai.CreateThread(ctx)
	if err != nil {
		return "", fmt.Errorf("create mind map thread: %w", err)
	}

	prompt := "Genera un mapa mental en formato Mermaid.js del siguiente contenido:\n\n" + content
	diagram, err := exchangeWithAssistant(ctx, ms.ai, threadID, assistant.ID, prompt, ms.pollInterval, ms.pollTimeout)
	if err != nil {
		return "", fmt.Errorf("generate mind map: %w", err)
	}
	return diagram, nil
}
