package main

import (
	"fmt"
	"os"

	openaiclient "github.com/aulagpt/aulagpt-backend/internal/clients/openai"
	"github.com/aulagpt/aulagpt-backend/internal/db"
	"github.com/aulagpt/aulagpt-backend/internal/handlers"
	"github.com/aulagpt/aulagpt-backend/internal/logger"
	"github.com/aulagpt/aulagpt-backend/internal/repos"
	"github.com/aulagpt/aulagpt-backend/internal/server"
	"github.com/aulagpt/aulagpt-backend/internal/services"
	"github.com/aulagpt/aulagpt-backend/internal/utils"
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
	userRepo := repos.NewUserRepo(thePG, log)
	courseRepo := repos.NewCourseRepo(thePG, log)
	assistantRepo := repos.NewAssistantRepo(thePG, log)
	queryRepo := repos.NewQueryRepo(thePG, log)
	messageRepo := repos.NewMessageRepo(thePG, log)
	conversationRepo := repos.NewConversationRepo(thePG, log)
	monthlyUsageRepo := repos.NewMonthlyUsageRepo(thePG, log)

	// Clients
	log.Info("Setting up Clients from main...")
	openaiClient, err := openaiclient.NewClient(log)
	if err != nil {
		log.Fatal("OpenAI client init failed", "error", err)
	}

	// Services
	log.Info("Setting up Services from main...")
	authService, err := services.NewAuthService(log)
	if err != nil {
		log.Fatal("Auth service init failed", "error", err)
	}
	launchVerifier, err := services.NewLaunchVerifier(log)
	if err != nil {
		log.Fatal("Launch verifier init failed", "error", err)
	}
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
	mindMaps := services.NewMindMapService(thePG, log, assistantRepo, openaiClient, pollInterval, pollTimeout)

	// Handlers
	h := server.Handlers{
		Query:     handlers.NewQueryHandler(log, lifecycle),
		Assistant: handlers.NewAssistantHandler(log, assistantRepo),
		MindMap:   handlers.NewMindMapHandler(log, mindMaps),
		Usage:     handlers.NewUsageHandler(log, limiter),
		LTI:       handlers.NewLTIHandler(log, launchVerifier, authService, userRepo, courseRepo),
	}

	router := server.NewRouter(log, authService, h)
	if err := router.Run(); err != nil {
		log.Fatal("HTTP server exited", "error", err)
	}
}
