package services

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gorm.io/gorm"

	"github.com/aulagpt/aulagpt-backend/internal/clients/openai"
	"github.com/aulagpt/aulagpt-backend/internal/logger"
	"github.com/aulagpt/aulagpt-backend/internal/repos"
	"github.com/aulagpt/aulagpt-backend/internal/types"
)

// maxAnalyzableChars caps how much of a source file is sent to the analyzer
// assistant. Longer files are truncated, not rejected.
const maxAnalyzableChars = 100_000

// CodeAnalysisService turns a source file into a prose report by running it
// through the internal code-analyzer assistant. The report, not the raw
// code, is what gets indexed for retrieval.
type CodeAnalysisService interface {
	Analyze(ctx context.Context, path string) (string, error)
}

type codeAnalysisService struct {
	db            *gorm.DB
	log           *logger.Logger
	assistantRepo repos.AssistantRepo
	ai            openai.Client

	pollInterval time.Duration
	pollTimeout  time.Duration
}

func NewCodeAnalysisService(db *gorm.DB, baseLog *logger.Logger, assistantRepo repos.AssistantRepo, ai openai.Client, pollInterval, pollTimeout time.Duration) CodeAnalysisService {
	if pollInterval <= 0 {
		pollInterval = DefaultRunPollInterval
	}
	if pollTimeout <= 0 {
		pollTimeout = DefaultRunPollTimeout
	}
	return &codeAnalysisService{
		db:            db,
		log:           baseLog.With("service", "CodeAnalysisService"),
		assistantRepo: assistantRepo,
		ai:            ai,
		pollInterval:  pollInterval,
		pollTimeout:   pollTimeout,
	}
}

func (cas *codeAnalysisService) Analyze(ctx context.Context, path string) (string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read source file: %w", err)
	}

	content := string(raw)
	if len(content) > maxAnalyzableChars {
		content = content[:maxAnalyzableChars] + "\n\n... (contenido truncado)"
	}

	assistant, err := cas.assistantRepo.GetInternalBySubtype(ctx, nil, types.AssistantSubtypeCodeAnalyzer)
	if err != nil {
		return "", err
	}

	threadID, err := cas.ai.CreateThread(ctx)
	if err != nil {
		return "", fmt.Errorf("create analysis thread: %w", err)
	}

	cas.log.Info("Analyzing code file", "file", filepath.Base(path), "assistant_id", assistant.ID)

	prompt := "Por favor, analiza el siguiente código y genera un informe detallado:\n\n" + content
	report, err := exchangeWithAssistant(ctx, cas.ai, threadID, assistant.ID, prompt, cas.pollInterval, cas.pollTimeout)
	if err != nil {
		return "", fmt.Errorf("analyze code: %w", err)
	}
	return report, nil
}

// ReportFilename derives the index artifact name for a source file:
// "script.py" becomes "script_informe.txt".
func ReportFilename(path string) string {
	base := filepath.Base(path)
	name := base[:len(base)-len(filepath.Ext(base))]
	return name + "_informe.txt"
}
