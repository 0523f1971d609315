package api

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/presshost/presshost/internal/api/handlers"
	"github.com/presshost/presshost/internal/api/middleware"
	"github.com/presshost/presshost/internal/config"
	"github.com/presshost/presshost/internal/db"
	"github.com/presshost/presshost/internal/metrics"
)

type Server struct {
	Config  *config.Config
	Router  *gin.Engine
	Repo    *db.Repository
	Queue   handlers.Dispatcher
	Metrics *metrics.Collector
	Logger  *zap.Logger
}

func NewServer(cfg *config.Config, repo *db.Repository, q handlers.Dispatcher, m *metrics.Collector, logger *zap.Logger) *Server {
	gin.SetMode(cfg.Server.Mode)
	router := gin.New()

	// Middleware
	router.Use(middleware.Logger(logger))
	router.Use(gin.Recovery())
	router.Use(middleware.CORS())

	server := &Server{
		Config:  cfg,
		Router:  router,
		Repo:    repo,
		Queue:   q,
		Metrics: m,
		Logger:  logger,
	}

	server.setupRoutes()
	return server
}

func (s *Server) setupRoutes() {
	s.Router.GET("/health", handlers.HealthCheck)
	s.Router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Auth routes
	authHandler := handlers.NewAuthHandler(s.Repo, s.Config)
	auth := s.Router.Group("/api/v1/auth")
	{
		auth.POST("/signup", authHandler.SignUp)
		auth.POST("/login", authHandler.Login)
		auth.POST("/refresh", authHandler.RefreshToken)
	}

	// API routes (protected)
	api := s.Router.Group("/api/v1")
	api.Use(middleware.AuthRequired(s.Config.Auth.JWTSecret))

	siteHandler := handlers.NewSiteHandler(s.Repo, s.Queue, s.Metrics, s.Config, s.Logger)
	{
		api.POST("/sites", siteHandler.CreateSite)
		api.GET("/sites", siteHandler.ListSites)
		api.GET("/sites/:id", siteHandler.GetSite)
		api.DELETE("/sites/:id", siteHandler.DeleteSite)
	}
}
