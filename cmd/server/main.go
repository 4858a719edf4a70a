package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nulzo/llm-gateway/internal/cache"
	"github.com/nulzo/llm-gateway/internal/config"
	"github.com/nulzo/llm-gateway/internal/conversation"
	"github.com/nulzo/llm-gateway/internal/gateway"
	"github.com/nulzo/llm-gateway/internal/llm"
	"github.com/nulzo/llm-gateway/internal/llm/bedrock"
	"github.com/nulzo/llm-gateway/internal/metrics"
	"github.com/nulzo/llm-gateway/internal/platform/logger"
	"github.com/nulzo/llm-gateway/internal/platform/otel"
	"github.com/nulzo/llm-gateway/internal/registry"
	"github.com/nulzo/llm-gateway/internal/server"
	"github.com/nulzo/llm-gateway/internal/server/validator"
	"github.com/nulzo/llm-gateway/internal/store"
	"github.com/nulzo/llm-gateway/internal/store/memory"
	"github.com/nulzo/llm-gateway/internal/store/sqlite"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	// Vendor adapters register themselves on import.
	_ "github.com/nulzo/llm-gateway/internal/llm/anthropic"
	_ "github.com/nulzo/llm-gateway/internal/llm/meta"
)

func main() {
	logger.Initialize(logger.DefaultConfig())
	log := logger.Get()
	defer logger.Sync()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("failed to load configuration", zap.Error(err))
	}

	validator.Init()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Tracing.Enabled {
		shutdown, err := otel.InitTracer("llm-gateway", log, os.Stdout)
		if err != nil {
			log.Fatal("failed to initialize tracing", zap.Error(err))
		}
		defer func() {
			if err := shutdown(context.Background()); err != nil {
				log.Warn("tracer shutdown failed", zap.Error(err))
			}
		}()
	}

	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			log.Fatal("failed to connect to redis", zap.Error(err))
		}
		defer func() { _ = redisClient.Close() }()
	}

	var repo store.Repository
	if cfg.Database.DSN == "" || cfg.Database.DSN == ":memory:" {
		repo = memory.NewRepository()
		log.Info("using in-memory conversation store")
	} else {
		repo, err = sqlite.NewSQLiteStorage(cfg.Database.DSN)
		if err != nil {
			log.Fatal("failed to open sqlite store", zap.Error(err))
		}
	}
	defer func() { _ = repo.Close() }()

	// The model cache has no expiry; descriptors only change on redeploy.
	// Ready-model results expire so readiness flips are picked up.
	var modelCache, readyCache cache.Cache
	if redisClient != nil {
		modelCache = cache.NewRedis(redisClient)
		readyCache = cache.NewRedis(redisClient)
	} else {
		modelCache = cache.NewMemory()
		readyCache = cache.NewMemory()
	}

	loader := registry.NewLoader(cfg.Registry.ConfigDir)
	reg := registry.NewRepository(loader, modelCache, readyCache, cfg.Registry.ReadyModelTTL, log)

	conversations := conversation.NewManager(repo, log)

	var sinks []metrics.Sink
	var storeSink *metrics.StoreSink
	if cfg.Metrics.StoreEnabled {
		storeSink = metrics.NewStoreSink(log, repo)
		storeSink.Start(ctx)
		sinks = append(sinks, storeSink)
	}
	if cfg.Metrics.QueueEnabled && redisClient != nil {
		sinks = append(sinks, metrics.NewQueueSink(redisClient, cfg.Metrics.QueueKey))
	}
	usage := metrics.NewManager(log, sinks...)

	invoker := bedrock.NewHTTPInvoker(cfg.Bedrock.BaseURL, cfg.Bedrock.APIKey)
	clients := []llm.Client{bedrock.NewClient(invoker, log)}

	service := gateway.NewService(log, reg, conversations, usage, clients...)

	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: server.New(cfg, log, service).Handler(),
	}

	go func() {
		log.Info("starting gateway", zap.String("port", cfg.Server.Port), zap.String("env", cfg.Server.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", zap.Error(err))
	}
	if storeSink != nil {
		storeSink.Stop()
	}
}
