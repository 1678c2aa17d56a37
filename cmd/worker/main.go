package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	canvasclient "github.com/aulagpt/aulagpt-backend/internal/clients/canvas"
	openaiclient "github.com/aulagpt/aulagpt-backend/internal/clients/openai"
	redisclient "github.com/aulagpt/aulagpt-backend/internal/clients/redis"
	"github.com/aulagpt/aulagpt-backend/internal/db"
	"github.com/aulagpt/aulagpt-backend/internal/logger"
	"github.com/aulagpt/aulagpt-backend/internal/repos"
	"github.com/aulagpt/aulagpt-backend/internal/services"
	"github.com/aulagpt/aulagpt-backend/internal/utils"
	"github.com/aulagpt/aulagpt-backend/internal/worker"
)

func main() {
	// Logger
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	// Postgres
	postgresService, err := db.NewPostgresService(log)
	if err != nil {
		log.Fatal("Postgres init failed", "error", err)
	}
	if err = postgresService.AutoMigrateAll(); err != nil {
		log.Fatal("Postgres auto migration failed", "error", err)
	}
	thePG := postgresService.DB()

	// Repos
	log.Info("Setting up Repos from main...")
	courseRepo := repos.NewCourseRepo(thePG, log)
	assistantRepo := repos.NewAssistantRepo(thePG, log)
	queryRepo := repos.NewQueryRepo(thePG, log)
	messageRepo := repos.NewMessageRepo(thePG, log)
	conversationRepo := repos.NewConversationRepo(thePG, log)
	monthlyUsageRepo := repos.NewMonthlyUsageRepo(thePG, log)
	processedFileRepo := repos.NewProcessedFileRepo(thePG, log)

	// Clients
	log.Info("Setting up Clients from main...")
	openaiClient, err := openaiclient.NewClient(log)
	if err != nil {
		log.Fatal("OpenAI client init failed", "error", err)
	}
	canvasClient, err := canvasclient.NewClient(log)
	if err != nil {
		log.Fatal("Canvas client init failed", "error", err)
	}
	var throttle redisclient.SyncThrottle
	if os.Getenv("REDIS_ADDR") != "" {
		throttle, err = redisclient.NewSyncThrottle(log)
		if err != nil {
			log.Fatal("Sync throttle init failed", "error", err)
		}
	} else {
		log.Warn("REDIS_ADDR unset, using in-memory sync throttle")
		throttle = redisclient.NewMemorySyncThrottle()
	}
	defer throttle.Close()

	// Services
	log.Info("Setting up Services from main...")
	tempDir := utils.GetEnv("WORKER_TEMP_DIR", os.TempDir(), log)
	pollInterval := utils.GetEnvAsDuration("RUN_POLL_INTERVAL", services.DefaultRunPollInterval, log)
	pollTimeout := utils.GetEnvAsDuration("RUN_POLL_TIMEOUT", services.DefaultRunPollTimeout, log)
	monthlyLimit := utils.GetEnvAsInt("QUERY_MONTHLY_LIMIT", services.DefaultMonthlyCeiling, log)
	limiter := services.NewUsageLimiter(thePG, log, monthlyUsageRepo, monthlyLimit)
	conversations := services.NewConversationStore(thePG, log, conversationRepo, openaiClient)
	lifecycle := services.NewQueryLifecycle(
		thePG, log,
		queryRepo, messageRepo, assistantRepo,
		conversations, limiter, openaiClient,
		pollInterval, pollTimeout,
	)
	codeAnalysis := services.NewCodeAnalysisService(thePG, log, assistantRepo, openaiClient, pollInterval, pollTimeout)
	ingestion := services.NewIngestionPipeline(thePG, log, processedFileRepo, codeAnalysis, openaiClient, tempDir)
	fileSync := services.NewFileSyncService(
		thePG, log,
		courseRepo, processedFileRepo,
		canvasClient, ingestion, throttle, openaiClient,
		0, tempDir,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	worker.New(log, queryRepo, lifecycle, fileSync).Run(ctx)
}
