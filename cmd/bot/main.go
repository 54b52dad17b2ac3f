package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/samuelgsrmgc/geminibot/internal/chat"
	"github.com/samuelgsrmgc/geminibot/internal/config"
	"github.com/samuelgsrmgc/geminibot/internal/db"
	apihttp "github.com/samuelgsrmgc/geminibot/internal/http"
	"github.com/samuelgsrmgc/geminibot/internal/llm"
	"github.com/samuelgsrmgc/geminibot/internal/repository"
	"github.com/samuelgsrmgc/geminibot/internal/service"
)

func main() {
	ctx := context.Background()

	if err := godotenv.Load(); err != nil {
		log.Printf("warning: loading .env: %v", err)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		panic(err)
	}

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	var (
		convRepo repository.ConversationRepository
		snapRepo repository.SnapshotRepository
		pinger   apihttp.Pinger
	)
	if cfg.DatabaseURL != "" {
		pool, err := db.NewPool(ctx, cfg)
		if err != nil {
			logger.Fatal("db connect", zap.Error(err))
		}
		defer pool.Close()
		if err := repository.InitPgSchema(ctx, pool); err != nil {
			logger.Fatal("db schema", zap.Error(err))
		}
		convRepo = repository.NewPgConversationRepository(pool)
		snapRepo = repository.NewPgSnapshotRepository(pool, logger)
		pinger = pool
	} else {
		store, err := repository.NewSQLiteStore(cfg.SQLitePath, logger)
		if err != nil {
			logger.Fatal("sqlite open", zap.Error(err))
		}
		defer store.Close()
		convRepo, snapRepo, pinger = store, store, store
	}

	safety, err := llm.LoadSafetySettings(cfg.SafetySettingsPath)
	if err != nil {
		logger.Fatal("safety settings", zap.Error(err))
	}
	if safety == nil {
		logger.Warn("safety settings file missing, continuing without",
			zap.String("path", cfg.SafetySettingsPath))
	}

	client := llm.NewHTTPClient(cfg.GeminiBaseURL, cfg.GeminiAPIKey, safety, logger)
	adapter := chat.NewAdapter(
		client,
		cfg.GeminiModel,
		cfg.GeminiVisionModel,
		time.Duration(cfg.ModelTimeoutSeconds)*time.Second,
		cfg.Language,
		logger,
	)

	var limiter service.ModelRateLimiter
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		ctxPing, cancel := context.WithTimeout(ctx, 2*time.Second)
		if err := redisClient.Ping(ctxPing).Err(); err != nil {
			logger.Warn("redis ping failed", zap.Error(err))
		} else {
			limiter = service.NewRedisModelRateLimiter(
				redisClient,
				time.Duration(cfg.RateLimitWindowSeconds)*time.Second,
				cfg.RateLimitMax,
			)
		}
		cancel()
	}

	controller := service.NewController(logger, convRepo, snapRepo, adapter, limiter, cfg.Language, cfg.HistoryPageSize)

	jwtSvc := service.NewJWTService(cfg.OpsJWTSecret, time.Duration(cfg.OpsTokenTTLMinutes)*time.Minute)
	if cfg.OpsJWTSecret == "" {
		logger.Warn("ops jwt secret not configured")
	}

	webhookH := apihttp.NewWebhookHandler(logger, controller)
	opsH := apihttp.NewOpsHandler(logger, convRepo, pinger, cfg.HistoryPageSize)
	router := apihttp.NewRouter(logger, webhookH, opsH, jwtSvc)

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	logger.Info("starting server",
		zap.String("port", cfg.HTTPPort),
		zap.String("language", cfg.Language),
	)

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatal("server error", zap.Error(err))
	}
}
