package server

import (
	"net/http"
	"time"

	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/nulzo/llm-gateway/internal/config"
	"github.com/nulzo/llm-gateway/internal/gateway"
	"github.com/nulzo/llm-gateway/internal/server/middleware"
	v1 "github.com/nulzo/llm-gateway/internal/server/v1"
	"go.uber.org/zap"
)

type Server struct {
	router  *gin.Engine
	config  *config.Config
	logger  *zap.Logger
	service gateway.Service
}

func New(cfg *config.Config, logger *zap.Logger, service gateway.Service) *Server {
	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(ginzap.RecoveryWithZap(logger, true))
	engine.Use(ginzap.Ginzap(logger, time.RFC3339, true))

	s := &Server{
		router:  engine,
		config:  cfg,
		logger:  logger,
		service: service,
	}

	s.setupRoutes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupRoutes() {
	s.router.Use(middleware.RequestID())
	s.router.Use(middleware.ErrorHandler(s.logger))
	if s.config.Tracing.Enabled {
		s.router.Use(middleware.Tracing("llm-gateway"))
	}

	rl := middleware.NewRateLimiter(s.config.RateLimit.RequestsPerSecond, s.config.RateLimit.Burst, s.logger)
	s.router.Use(rl.Middleware())

	s.router.GET("/health", v1.NewHealthHandler(s.service).Health)

	api := s.router.Group("/api/v1")
	{
		chat := v1.NewChatHandler(s.service)
		api.POST("/chat", chat.Chat)

		conv := v1.NewConversationHandler(s.service)
		api.POST("/conversations", conv.Create)
		api.GET("/conversations", conv.List)
		api.GET("/conversations/:id", conv.Get)
		api.DELETE("/conversations/:id", conv.Delete)
		api.POST("/conversations/:id/chat", conv.Chat)

		models := v1.NewModelHandler(s.service)
		api.GET("/models", models.ListReady)
	}
}
