// cmd/council-server/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"llm-council/internal/common/config"
	"llm-council/internal/common/database"
	"llm-council/internal/common/logger"
	"llm-council/internal/common/observability"
	"llm-council/internal/council"
	"llm-council/internal/providers"
	"llm-council/internal/server"
	"llm-council/internal/store"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	zapLog := logger.New("info", "console")
	defer zapLog.Sync()

	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting council server...")

	cfg, err := config.Load()
	if err != nil {
		zapLog.Fatal("config load failed", zap.Error(err))
	}

	obs := observability.New("council-server")
	defer obs.Shutdown()

	ctx := context.Background()

	// --- Init PostgreSQL with retry ---
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		return pg.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "PostgreSQL connection")

	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer pg.Close()
	zapLog.Info("PostgreSQL connected successfully")

	// --- Init Redis with retry ---
	var redisClient *database.RedisClient
	err = retryWithBackoff(func() error {
		var err error
		redisClient, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		return redisClient.Ping(ctx)
	}, 10, 2*time.Second, zapLog, "Redis connection")

	if err != nil {
		// The history cache is best-effort; a dead Redis only costs reads.
		zapLog.Warn("redis unavailable, running without history cache", zap.Error(err))
		redisClient = nil
	} else {
		defer redisClient.Close()
		zapLog.Info("Redis connected successfully")
	}

	// --- Storage ---
	threadStore := store.New(pg.DB, log)
	if err := threadStore.InitSchema(ctx); err != nil {
		zapLog.Fatal("schema bootstrap failed", zap.Error(err))
	}

	historyTTL := time.Duration(cfg.Database.Redis.HistoryTTL) * time.Second
	var cache *store.HistoryCache
	if redisClient != nil {
		cache = store.NewHistoryCache(redisClient.Client, historyTTL, log)
	} else {
		cache = store.NewHistoryCache(nil, historyTTL, log)
	}

	// --- Advisors and pipeline ---
	gpt := providers.NewOpenAIClient(cfg.Advisors.OpenAI, log)
	claude := providers.NewAnthropicClient(cfg.Advisors.Anthropic, log)

	pricing := council.Pricing{
		GPTBlendedRate:    cfg.Council.Pricing.AdvisorABlendedRate,
		ClaudeBlendedRate: cfg.Council.Pricing.AdvisorBBlendedRate,
	}
	pipelineTimeout := time.Duration(cfg.Council.PipelineTimeout) * time.Second

	pipeline := council.NewPipeline(
		council.NewDispatcher(gpt, claude, log),
		council.NewMerger(claude, log),
		council.NewArbiter(claude, log),
		pricing,
		obs,
		log,
		pipelineTimeout,
	)

	// --- HTTP server ---
	var redisHealth server.HealthChecker = disabledHealth{}
	if redisClient != nil {
		redisHealth = redisClient
	}
	srv := server.New(pipeline, threadStore, cache, pg, redisHealth, log)

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: srv.Routes(),
		// WriteTimeout must outlast the pipeline budget or responses get
		// cut off mid-synthesis.
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		zapLog.Info("HTTP server listening", zap.Int("port", cfg.Server.Port))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLog.Fatal("http server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, draining requests...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeout)*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("shutdown did not complete cleanly", zap.Error(err))
	}

	zapLog.Info("Council server stopped")
}

type disabledHealth struct{}

func (disabledHealth) Ping(ctx context.Context) error {
	return errors.New("history cache disabled")
}
