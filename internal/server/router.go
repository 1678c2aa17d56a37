package server

import (
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/aulagpt/aulagpt-backend/internal/handlers"
	"github.com/aulagpt/aulagpt-backend/internal/logger"
	"github.com/aulagpt/aulagpt-backend/internal/middleware"
	"github.com/aulagpt/aulagpt-backend/internal/services"
	"github.com/aulagpt/aulagpt-backend/internal/utils"
)

type Router struct {
	log    *logger.Logger
	engine *gin.Engine
}

type Handlers struct {
	Query     *handlers.QueryHandler
	Assistant *handlers.AssistantHandler
	MindMap   *handlers.MindMapHandler
	Usage     *handlers.UsageHandler
	LTI       *handlers.LTIHandler
}

func NewRouter(log *logger.Logger, auth services.AuthService, h Handlers) *Router {
	if utils.GetEnv("APP_MODE", "dev", log) == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())

	origins := strings.Split(utils.GetEnv("CORS_ALLOWED_ORIGINS", "*", log), ",")
	engine.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	engine.GET("/healthcheck", handlers.HealthCheck)

	lti := engine.Group("/lti")
	{
		lti.GET("/login", h.LTI.Login)
		lti.POST("/login", h.LTI.Login)
		lti.POST("/launch", h.LTI.Launch)
	}

	api := engine.Group("/api")
	api.Use(middleware.RequireSession(auth))
	{
		api.POST("/queries", h.Query.Submit)
		api.GET("/queries/:id", h.Query.GetStatus)
		api.GET("/assistants", h.Assistant.List)
		api.POST("/mindmaps", h.MindMap.Generate)
		api.GET("/usage", h.Usage.Get)
	}

	return &Router{log: log.With("component", "Router"), engine: engine}
}

func (r *Router) Run() error {
	addr := ":" + utils.GetEnv("PORT", "8080", r.log)
	r.log.Info("HTTP server listening", "addr", addr)
	return r.engine.Run(addr)
}
