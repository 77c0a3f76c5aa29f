// @title Trivia Quiz API
// @version 1.0
// @description Timed multiple-choice trivia sessions backed by Open Trivia DB.
// @termsOfService http://swagger.io/terms/
// @contact.name API Support
// @contact.url http://www.swagger.io/support
// @contact.email support@swagger.io
// @license.name Apache 2.0
// @license.url http://www.apache.org/licenses/LICENSE-2.0.html
// @host localhost:8090
// @BasePath /api
// @schemes http https
package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"trivia-quiz/internal/adapter"
	"trivia-quiz/internal/adapter/opentdb"
	"trivia-quiz/internal/bank"
	"trivia-quiz/internal/cache"
	"trivia-quiz/internal/config"
	"trivia-quiz/internal/domain"
	"trivia-quiz/internal/handler"
	"trivia-quiz/internal/logger"
	"trivia-quiz/internal/middleware"
	"trivia-quiz/internal/service"
	"trivia-quiz/internal/util"

	_ "trivia-quiz/cmd/api/docs"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/swagger"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// requestLogger is a middleware that logs HTTP requests
func requestLogger() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		path := c.Path()
		method := c.Method()

		// Process request
		err := c.Next()

		// Log request details
		duration := time.Since(start)
		status := c.Response().StatusCode()

		logger.Get().Info("HTTP Request",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", status),
			zap.Duration("duration", duration),
			zap.String("ip", c.IP()),
			zap.String("user_agent", c.Get("User-Agent")),
		)

		return err
	}
}

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logger
	if err := logger.Initialize(cfg.Logger); err != nil {
		panic(err)
	}
	appLogger := logger.Get()
	defer func() { _ = logger.Sync() }()
	if cfg.File != "" {
		appLogger.Info("Using config file", zap.String("path", cfg.File))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rng := util.NewLockedRand(cfg.Quiz.Seed)

	questionBank, err := bank.Default()
	if err != nil {
		appLogger.Fatal("Failed to load fallback question bank", zap.Error(err))
	}
	appLogger.Info("Fallback question bank loaded", zap.Int("questions", questionBank.Size()))

	triviaClient, err := opentdb.NewClient(cfg.Trivia.BaseURL, cfg.Trivia.Timeout, rng, appLogger)
	if err != nil {
		appLogger.Fatal("Failed to create Open Trivia DB client", zap.Error(err))
	}

	// Redis is optional; without it records live in memory
	var cacheAdapter domain.Cache
	var health handler.HealthChecker
	if cfg.Redis.Enabled() {
		redisClient, err := cache.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			appLogger.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		defer func() { _ = redisClient.Close() }()
		appLogger.Info("Successfully connected to Redis", zap.String("address", cfg.Redis.Address))
		cacheAdapter = adapter.NewRedisCacheAdapter(redisClient)
		health = cacheAdapter
	} else {
		appLogger.Warn("Redis address not configured, game records will not survive a restart")
	}

	recordStore := service.NewRecordStore(cacheAdapter, cfg.Records.TTL)
	sessionManager := service.NewSessionManager(triviaClient, questionBank, recordStore, rng, service.ManagerConfig{
		TickInterval:    cfg.Quiz.TickInterval,
		IdleTTL:         cfg.Session.IdleTTL,
		JanitorInterval: cfg.Session.JanitorInterval,
	})
	defer sessionManager.Shutdown()

	sessionHandler := handler.NewSessionHandler(sessionManager, health)

	// Create Fiber app
	app := fiber.New(fiber.Config{
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  20 * time.Second,
		BodyLimit:    1 * 1024 * 1024,
		ErrorHandler: middleware.ErrorHandler(),
	})

	app.Use(requestLogger())
	app.Use(cors.New(cors.Config{AllowOrigins: "*", AllowMethods: "GET,POST,DELETE,OPTIONS", AllowHeaders: "Origin,Content-Type,Accept", MaxAge: 300}))
	app.Use(recover.New())

	// Swagger handler
	app.Get("/swagger/*", swagger.HandlerDefault)

	// API group
	apiGroup := app.Group("/api")
	sessionHandler.RegisterRoutes(apiGroup, middleware.NewValidationMiddleware())

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		appLogger.Info("Starting server", zap.Int("port", cfg.Server.Port), zap.String("env", cfg.Logger.Env))
		return app.Listen(":" + strconv.Itoa(cfg.Server.Port))
	})

	g.Go(func() error {
		return sessionManager.RunJanitor(gctx)
	})

	// Graceful shutdown
	g.Go(func() error {
		<-gctx.Done()
		appLogger.Info("Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return app.ShutdownWithContext(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		appLogger.Error("Server stopped with error", zap.Error(err))
		os.Exit(1)
	}
	appLogger.Info("Server exited gracefully")
}
