package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/data-agent/backend/internal/api/handlers"
	rediscache "github.com/data-agent/backend/internal/cache/redis"
	"github.com/data-agent/backend/internal/llm"
	"github.com/data-agent/backend/internal/metrics"
	"github.com/data-agent/backend/internal/middleware/ratelimit"
	"github.com/data-agent/backend/internal/middleware/security"
	"github.com/data-agent/backend/internal/middleware/validation"
	"github.com/data-agent/backend/internal/query"
	"github.com/data-agent/backend/internal/storage/sqlite"
	"github.com/data-agent/backend/pkg/config"
	appLogger "github.com/data-agent/backend/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	err = appLogger.Init(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.OutputPath)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer appLogger.Sync()

	appLogger.Info("Starting Data Agent API Server")

	metrics.Init()

	sqliteClient, err := sqlite.NewClient(cfg.SQLite.Path)
	if err != nil {
		appLogger.Fatal("Failed to create SQLite client", zap.Error(err))
	}
	defer sqliteClient.Close()

	err = sqliteClient.InitSchema()
	if err != nil {
		appLogger.Fatal("Failed to initialize schema", zap.Error(err))
	}

	var redisClient *rediscache.Client
	if cfg.Redis.Enabled {
		redisClient, err = rediscache.NewClient(
			cfg.Redis.Host,
			cfg.Redis.Port,
			cfg.Redis.Password,
			cfg.Redis.DB,
			time.Duration(cfg.Redis.TTLSec)*time.Second,
		)
		if err != nil {
			appLogger.Fatal("Failed to create Redis client", zap.Error(err))
		}
		defer redisClient.Close()
	}

	var llmClient *llm.Client
	if cfg.LLM.Enabled && cfg.LLM.APIKey != "" {
		llmClient = llm.NewClient(
			cfg.LLM.APIKey,
			cfg.LLM.Model,
			cfg.LLM.Temperature,
			cfg.LLM.MaxTokens,
		)
	} else {
		appLogger.Info("LLM narrative polish disabled; serving plain narratives")
	}

	engine := query.NewEngine(engineParams(cfg), nil, sqliteClient)
	registry := handlers.NewRegistry()

	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    cfg.Server.BodyLimit,
	})

	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-User-ID",
		AllowMethods: "GET, POST, PUT, DELETE, OPTIONS",
	}))
	app.Use(security.HeadersMiddleware(security.HeadersConfig{}))

	limiter := ratelimit.New(ratelimit.Config{
		MaxRequestsPerMinute: cfg.RateLimit.MaxRequestsPerMinute,
		Logger:               appLogger.GetLogger(),
	})
	defer limiter.Stop()

	queryHandler := handlers.NewQueryHandler(engine, registry, sqliteClient, redisClient, llmClient)
	datasetHandler := handlers.NewDatasetHandler(registry, sqliteClient, redisClient, llmClient)
	wsHandler := handlers.NewWebSocketHandler(engine, registry)

	api := app.Group("/api/v1", limiter.Middleware())

	api.Post("/query", validation.Middleware(validation.Config{
		Logger: appLogger.GetLogger(),
	}), queryHandler.HandleQuery)
	api.Get("/query/history", queryHandler.GetQueryHistory)
	api.Post("/feedback", queryHandler.HandleFeedback)

	api.Post("/datasets", datasetHandler.UploadDataset)
	api.Get("/datasets", datasetHandler.ListDatasets)
	api.Get("/datasets/:name", datasetHandler.GetDatasetProfile)
	api.Delete("/datasets/:name", datasetHandler.DeleteDataset)

	api.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "healthy",
			"time":   time.Now().Unix(),
		})
	})

	api.Get("/ready", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "ready",
		})
	})

	app.Get("/metrics", metrics.MetricsHandler())

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/chat", websocket.New(wsHandler.HandleConnection))

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	appLogger.Info("Server starting", zap.String("address", addr))

	go func() {
		if err := app.Listen(addr); err != nil {
			appLogger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	appLogger.Info("Server shutting down gracefully...")
	app.Shutdown()
	appLogger.Info("Server stopped")
}

func engineParams(cfg *config.Config) query.Params {
	params := query.DefaultParams()

	params.SamplingThreshold = cfg.Analysis.SamplingThreshold
	params.TargetSampleSize = cfg.Analysis.TargetSampleSize
	params.CacheCapacity = cfg.Analysis.CacheCapacity
	params.ConfidenceGate = cfg.Analysis.ConfidenceGate

	params.Outlier.ZThreshold = cfg.Analysis.ZScoreThreshold
	params.Outlier.IQRMultiplier = cfg.Analysis.IQRMultiplier
	params.Trend.WindowSize = cfg.Analysis.MovingAvgWindow
	params.Contribution.MinSharePct = cfg.Analysis.MinContributionPct
	params.Budget.OnTargetTolerance = cfg.Analysis.OnTargetTolerance

	return params
}
