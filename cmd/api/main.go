package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/drewmudry/chatshorts-api/auth"
	"github.com/drewmudry/chatshorts-api/config"
	"github.com/drewmudry/chatshorts-api/internal/platform"
	"github.com/drewmudry/chatshorts-api/logging"
	"github.com/drewmudry/chatshorts-api/processing"
	"github.com/drewmudry/chatshorts-api/renders"
	"github.com/drewmudry/chatshorts-api/tasks"
	"github.com/drewmudry/chatshorts-api/voice"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

type Server struct {
	Config *config.Config
	DB     *gorm.DB
	Router *gin.Engine
	Logger zerolog.Logger
}

func NewServer(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*Server, error) {
	db, err := platform.NewDBConnection(cfg, logger)
	if err != nil {
		return nil, err
	}
	rdb, err := platform.NewRedisClient(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	services, err := platform.NewServices(cfg, logger)
	if err != nil {
		return nil, err
	}

	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(logger))

	// CORS for the editor frontend
	router.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", cfg.FrontendURL)
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	server := &Server{
		Config: cfg,
		DB:     db,
		Router: router,
		Logger: logger,
	}

	handler := &renders.Handler{
		Store:   renders.NewGormStore(db),
		Queue:   tasks.NewRedisQueue(rdb),
		Assets:  services.Assets,
		Voices:  voice.Directory{Client: services.Voices},
		Drafter: processing.NewDrafter(cfg.OpenAIAPIKey, services.Assets, services.Assets.SoundEffectNames(), logger),
		Logger:  logging.Component(logger, "renders"),
	}
	server.setupRoutes(handler)

	return server, nil
}

func (s *Server) setupRoutes(h *renders.Handler) {
	// Health check (no auth required)
	s.Router.GET("/health", func(c *gin.Context) {
		sqlDB, err := s.DB.DB()
		if err != nil {
			c.JSON(500, gin.H{"status": "unhealthy", "error": err.Error()})
			return
		}

		if err := sqlDB.Ping(); err != nil {
			c.JSON(500, gin.H{"status": "unhealthy", "error": err.Error()})
			return
		}

		c.JSON(200, gin.H{
			"status":   "healthy",
			"database": "connected",
		})
	})
	s.Router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	s.Router.GET("/", func(c *gin.Context) {
		c.JSON(200, gin.H{"message": "Chatshorts API v1"})
	})

	authHandler := auth.NewHandler(s.Config.JWTSecret)
	authRoutes := s.Router.Group("/auth")
	{
		authRoutes.POST("/logout", authHandler.Logout)
		authRoutes.GET("/me", auth.AuthMiddleware(s.Config.JWTSecret), authHandler.GetCurrentUser)
		authRoutes.POST("/refresh", auth.AuthMiddleware(s.Config.JWTSecret), authHandler.Refresh)
	}

	// Protected routes that require authentication
	protected := s.Router.Group("")
	protected.Use(auth.AuthMiddleware(s.Config.JWTSecret))
	{
		renderRoutes := protected.Group("/renders")
		{
			renderRoutes.POST("", h.CreateRender)
			renderRoutes.GET("", h.ListRenders)
			renderRoutes.GET("/:id", h.GetRender)
		}

		voiceRoutes := protected.Group("/voices")
		{
			voiceRoutes.POST("", h.ListVoices)
			voiceRoutes.POST("/validate", h.ValidateKey)
		}

		protected.POST("/drafts", h.CreateDraft)
	}
}

// Run serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    ":" + s.Config.Port,
		Handler: s.Router,
	}

	errCh := make(chan error, 1)
	go func() {
		s.Logger.Info().Str("port", s.Config.Port).Msg("server starting")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func requestLogger(logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info().
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Msg("request")
	}
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		boot := logging.New(logging.Config{Service: "api"})
		boot.Fatal().Err(err).Msg("failed to load config")
	}
	logger := logging.New(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat, Service: "api"})

	if cfg.JWTSecret == "" {
		logger.Fatal().Msg("JWT_SECRET must be set")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	server, err := NewServer(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create server")
	}

	if err := server.Run(ctx); err != nil {
		logger.Fatal().Err(err).Msg("failed to run server")
	}
}
