package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	validator "github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-khana/internal/app"
	"github.com/noah-isme/backend-khana/internal/common"
	"github.com/noah-isme/backend-khana/internal/config"
	"github.com/noah-isme/backend-khana/internal/earnings"
	"github.com/noah-isme/backend-khana/internal/events"
	"github.com/noah-isme/backend-khana/internal/health"
	"github.com/noah-isme/backend-khana/internal/lock"
	"github.com/noah-isme/backend-khana/internal/menu"
	"github.com/noah-isme/backend-khana/internal/notify"
	"github.com/noah-isme/backend-khana/internal/obs"
	"github.com/noah-isme/backend-khana/internal/order"
	"github.com/noah-isme/backend-khana/internal/partner"
	"github.com/noah-isme/backend-khana/internal/pricing"
	"github.com/noah-isme/backend-khana/internal/promo"
	"github.com/noah-isme/backend-khana/internal/queue"
	"github.com/noah-isme/backend-khana/internal/ratelimit"
	"github.com/noah-isme/backend-khana/internal/security"
	"github.com/noah-isme/backend-khana/internal/settlement"
	"github.com/noah-isme/backend-khana/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logFormat := envOrDefault("OBS_LOG_FORMAT", "json")
	logLevel := envOrDefault("OBS_LOG_LEVEL", "info")
	logger := obs.NewLogger(logFormat, logLevel).With().Str("env", cfg.AppEnv).Logger()

	metricsNamespace := envOrDefault("OBS_METRICS_NAMESPACE", "khana")
	metricsEnabled := envBool("OBS_ENABLE_PROMETHEUS", true)
	if metricsEnabled {
		obs.MustRegisterDomainMetrics(metricsNamespace, nil)
	}

	tracingEnabled := envBool("OBS_ENABLE_TRACING", true)
	if tracingEnabled {
		sampling := envFloat("OBS_TRACING_SAMPLING_RATIO", 1.0)
		shutdown, err := obs.InitTracer(context.Background(), obs.TracingConfig{
			ServiceName:   "khana-api",
			Endpoint:      envOrDefault("OBS_OTLP_ENDPOINT", ""),
			Exporter:      envOrDefault("OBS_TRACING_EXPORTER", "otlp"),
			SamplingRatio: sampling,
			Environment:   cfg.AppEnv,
		})
		if err != nil {
			logger.Error().Err(err).Msg("initialise tracing")
			tracingEnabled = false
		} else {
			defer func() {
				if err := shutdown(context.Background()); err != nil {
					logger.Error().Err(err).Msg("shutdown tracer")
				}
			}()
		}
	}

	if err := store.Migrate(cfg.DatabaseURL); err != nil {
		logger.Fatal().Err(err).Msg("apply migrations")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse database config")
	}
	poolConfig.ConnConfig.Tracer = obs.PGXTracer{}
	if poolConfig.ConnConfig.RuntimeParams == nil {
		poolConfig.ConnConfig.RuntimeParams = map[string]string{}
	}
	poolConfig.ConnConfig.RuntimeParams["application_name"] = "khana-api"

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect database")
	}
	defer pool.Close()
	if err := pool.Ping(ctx); err != nil {
		logger.Fatal().Err(err).Msg("ping database")
	}

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url")
	}
	redisClient := redis.NewClient(redisOpts)
	if tracingEnabled {
		if err := redisotel.InstrumentTracing(redisClient); err != nil {
			logger.Error().Err(err).Msg("instrument redis tracing")
		}
	}
	if metricsEnabled {
		if err := redisotel.InstrumentMetrics(redisClient); err != nil {
			logger.Error().Err(err).Msg("instrument redis metrics")
		}
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error().Err(err).Msg("close redis")
		}
	}()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Fatal().Err(err).Msg("ping redis")
	}

	dataStore := store.NewStore(pool)
	seedDriverSettings(ctx, dataStore, cfg, logger)
	seedDeliveryBands(ctx, dataStore, cfg, logger)

	taskQueue := queue.Queue{
		R:           redisClient,
		Prefix:      cfg.QueueRedisPrefix,
		DedupTTL:    cfg.IdempotencyTTL,
		MaxAttempts: cfg.QueueMaxAttempts,
	}
	bus := &events.Bus{
		Store:     dataStore.Queries,
		Notifiers: []events.Notifier{notify.NewQueueNotifier(taskQueue)},
	}

	engine := pricing.NewEngine(dataStore.Queries, pricing.ParamsFromConfig(cfg), logger)

	menuSvc, err := menu.NewService(dataStore.Queries, menu.NewCache(redisClient, cfg.MenuCacheTTL))
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise menu service")
	}

	summaryCache := earnings.NewSummaryCache(redisClient, cfg.EarningsCacheTTL)
	partnerSvc := &partner.Service{Store: dataStore, Bus: bus, Log: logger}
	earningsSvc := &earnings.Service{
		Store:   dataStore,
		Partner: partnerSvc,
		Bus:     bus,
		Cache:   summaryCache,
		Log:     logger,
	}
	settlementSvc := &settlement.Service{
		Store:   dataStore,
		Lock:    lock.Mutex{R: redisClient},
		LockTTL: cfg.SettleLockTTL,
		Bus:     bus,
		Cache:   summaryCache,
		Log:     logger,
	}
	orderSvc := &order.Service{
		Store:    dataStore,
		Menu:     menuSvc,
		Engine:   engine,
		Bus:      bus,
		Partner:  partnerSvc,
		Earnings: earningsSvc,
		Log:      logger,
	}

	var httpMetrics *obs.HTTPMetrics
	if metricsEnabled {
		buckets := obs.ParseBucketsCSV(envOrDefault("OBS_METRICS_BUCKETS_MS", ""))
		httpMetrics = obs.NewHTTPMetrics(metricsNamespace, buckets, nil)
	}

	router := app.Router{
		Log:            logger,
		CORSOrigins:    cfg.CORSAllowedOrigins,
		Metrics:        httpMetrics,
		TracingEnabled: tracingEnabled,
		Idem:           common.Idem{R: redisClient, TTL: cfg.IdempotencyTTL},
		Security:       security.Headers{Enable: cfg.SecurityHeadersEnabled, EnableHSTS: true},
		BodyLimit:      security.BodyLimit{Max: cfg.MaxBodyBytes},
		RateLimit: ratelimit.Guard{
			Limiter: ratelimit.Limiter{Client: redisClient},
			Window:  cfg.RateLimitWindow,
			Max:     cfg.RateLimitMax,
			Log:     logger,
		},
		Health: health.Handler{
			Checker:      health.Probes{Pool: pool, Redis: redisClient},
			DBTimeout:    envDurationMillis("HEALTH_READY_DB_TIMEOUT_MS", 500),
			RedisTimeout: envDurationMillis("HEALTH_READY_REDIS_TIMEOUT_MS", 300),
		},
		Orders:     &order.Handler{Svc: orderSvc, Validate: validator.New()},
		Menu:       &menu.Handler{Svc: menuSvc},
		Earnings:   &earnings.Handler{Svc: earningsSvc},
		Settings:   &earnings.SettingsHandler{Store: dataStore},
		Bands:      &pricing.BandsHandler{Store: dataStore},
		Promos:     &promo.Handler{Store: dataStore},
		Partner:    &partner.Handler{Svc: partnerSvc},
		Settlement: &settlement.Handler{Svc: settlementSvc},
	}

	srv := &http.Server{
		Addr:    cfg.HTTPAddr(),
		Handler: router.Handler(),
	}

	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server exited unexpectedly")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("shutdown server")
	}
	logger.Info().Msg("server stopped")
}

// seedDriverSettings writes the configured defaults once so earnings creation
// works out of the box. Existing settings are never overwritten.
func seedDriverSettings(ctx context.Context, s *store.Store, cfg *config.Config, logger zerolog.Logger) {
	if _, err := s.GetDriverSettings(ctx); err == nil {
		return
	} else if !errors.Is(err, pgx.ErrNoRows) {
		logger.Warn().Err(err).Msg("read driver settings")
		return
	}
	err := s.UpsertDriverSettings(ctx, store.DriverSettings{
		PerDeliveryAmount: cfg.DefaultPerDeliveryAmount,
		Bonus16th:         cfg.DefaultBonus16th,
		Bonus21st:         cfg.DefaultBonus21st,
	})
	if err != nil {
		logger.Warn().Err(err).Msg("seed driver settings")
	}
}

// seedDeliveryBands writes the configured band table once so quoting works on
// a fresh database. Existing bands are never overwritten.
func seedDeliveryBands(ctx context.Context, s *store.Store, cfg *config.Config, logger zerolog.Logger) {
	if _, err := s.GetDeliveryBands(ctx); err == nil {
		return
	} else if !errors.Is(err, pgx.ErrNoRows) {
		logger.Warn().Err(err).Msg("read delivery bands")
		return
	}
	if err := s.UpsertDeliveryBands(ctx, cfg.DeliveryBands); err != nil {
		logger.Warn().Err(err).Msg("seed delivery bands")
	}
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

func envBool(key string, fallback bool) bool {
	if val, ok := os.LookupEnv(key); ok {
		switch strings.ToLower(strings.TrimSpace(val)) {
		case "1", "t", "true", "yes", "on":
			return true
		case "0", "f", "false", "no", "off":
			return false
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.ParseFloat(strings.TrimSpace(val), 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.Atoi(strings.TrimSpace(val)); err == nil {
			return parsed
		}
	}
	return fallback
}

func envDurationMillis(key string, fallback int) time.Duration {
	return time.Duration(envInt(key, fallback)) * time.Millisecond
}
