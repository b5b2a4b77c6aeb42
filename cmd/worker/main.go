package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"

	"github.com/noah-isme/backend-khana/internal/config"
	"github.com/noah-isme/backend-khana/internal/notify"
	"github.com/noah-isme/backend-khana/internal/obs"
	"github.com/noah-isme/backend-khana/internal/queue"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logFormat := envOrDefault("OBS_LOG_FORMAT", "json")
	logLevel := envOrDefault("OBS_LOG_LEVEL", "info")
	logger := obs.NewLogger(logFormat, logLevel).With().Str("component", "worker").Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url")
	}
	redisClient := redis.NewClient(redisOpts)
	if err := redisotel.InstrumentTracing(redisClient); err != nil {
		logger.Error().Err(err).Msg("instrument redis tracing")
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error().Err(err).Msg("close redis")
		}
	}()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Fatal().Err(err).Msg("ping redis")
	}

	worker := &notify.Worker{
		Q: queue.Queue{
			R:           redisClient,
			Prefix:      cfg.QueueRedisPrefix,
			DedupTTL:    cfg.IdempotencyTTL,
			MaxAttempts: cfg.QueueMaxAttempts,
		},
		Dispatcher: notify.NewDispatcher(cfg.PushGatewayURL, cfg.PushTimeout, logger),
		Log:        logger,
	}

	concurrency := cfg.NotifyWorkerConcurrency
	if concurrency < 1 {
		concurrency = 1
	}
	logger.Info().Int("concurrency", concurrency).Msg("worker starting")

	var wg sync.WaitGroup
	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error().Err(err).Msg("worker loop exited")
			}
		}()
	}
	wg.Wait()
	logger.Info().Msg("worker stopped")
}

func envOrDefault(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		trimmed := strings.TrimSpace(val)
		if trimmed != "" {
			return trimmed
		}
	}
	return fallback
}
