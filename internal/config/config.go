package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"

	"github.com/noah-isme/backend-khana/internal/geo"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv      string
	Port        string
	DatabaseURL string
	RedisURL    string

	// Pricing knobs. Monetary values are integer paise, percentages are
	// basis points (500 bps = 5%).
	GSTBps                int
	GSTEnabled            bool
	PlatformFeeBps        int
	FreeDeliveryThreshold int64
	DriverBaseAllowance   int64

	// DeliveryBands seeds the band table singleton on first boot. Overridable
	// with a JSON array in PRICING_DELIVERY_BANDS.
	DeliveryBands []geo.Band

	// Defaults used to seed the DriverSettings singleton when absent.
	DefaultPerDeliveryAmount int64
	DefaultBonus16th         int64
	DefaultBonus21st         int64

	PushGatewayURL string
	PushTimeout    time.Duration

	QueueRedisPrefix string
	QueueMaxAttempts int
	IdempotencyTTL   time.Duration
	MenuCacheTTL     time.Duration
	EarningsCacheTTL time.Duration
	SettleLockTTL    time.Duration

	NotifyWorkerConcurrency int

	RateLimitWindow        time.Duration
	RateLimitMax           int
	MaxBodyBytes           int64
	SecurityHeadersEnabled bool

	CORSAllowedOrigins []string
}

// Load reads configuration from environment variables and optional .env files.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := &Config{
		AppEnv:      valueOrDefault(k.String("APP_ENV"), "development"),
		Port:        valueOrDefault(k.String("PORT"), "8080"),
		DatabaseURL: k.String("DATABASE_URL"),
		RedisURL:    k.String("REDIS_URL"),

		GSTBps:                parseInt(k.String("PRICING_GST_BPS"), 500),
		GSTEnabled:            parseBoolDefault(k.String("PRICING_GST_ENABLED"), true),
		PlatformFeeBps:        parseInt(k.String("PRICING_PLATFORM_FEE_BPS"), 200),
		FreeDeliveryThreshold: parseInt64(k.String("PRICING_FREE_DELIVERY_THRESHOLD"), 50000),
		DriverBaseAllowance:   parseInt64(k.String("DRIVER_BASE_ALLOWANCE"), 1000),

		DeliveryBands: parseBands(k.String("PRICING_DELIVERY_BANDS")),

		DefaultPerDeliveryAmount: parseInt64(k.String("DRIVER_PER_DELIVERY_AMOUNT"), 3000),
		DefaultBonus16th:         parseInt64(k.String("DRIVER_BONUS_16TH"), 10000),
		DefaultBonus21st:         parseInt64(k.String("DRIVER_BONUS_21ST"), 15000),

		PushGatewayURL: k.String("NOTIFY_PUSH_GATEWAY_URL"),
		PushTimeout:    parseDuration(k.String("NOTIFY_PUSH_TIMEOUT"), "5s"),

		QueueRedisPrefix: valueOrDefault(k.String("QUEUE_REDIS_PREFIX"), "khana"),
		QueueMaxAttempts: parseInt(k.String("QUEUE_MAX_ATTEMPTS"), 10),
		IdempotencyTTL:   parseDuration(k.String("IDEMPOTENCY_TTL"), "24h"),
		MenuCacheTTL:     parseDuration(k.String("MENU_CACHE_TTL"), "5m"),
		EarningsCacheTTL: parseDuration(k.String("EARNINGS_CACHE_TTL"), "1m"),
		SettleLockTTL:    parseDuration(k.String("SETTLE_LOCK_TTL"), "30s"),

		NotifyWorkerConcurrency: parseInt(k.String("NOTIFY_WORKER_CONCURRENCY"), 2),

		RateLimitWindow:        parseDuration(k.String("RATE_LIMIT_WINDOW"), "1m"),
		RateLimitMax:           parseInt(k.String("RATE_LIMIT_MAX"), 120),
		MaxBodyBytes:           parseInt64(k.String("HTTP_MAX_BODY_BYTES"), 1<<20),
		SecurityHeadersEnabled: parseBoolDefault(k.String("SECURITY_HEADERS_ENABLED"), true),

		CORSAllowedOrigins: splitAndTrim(k.String("CORS_ALLOWED_ORIGINS")),
	}

	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required")
	}
	if cfg.GSTBps < 0 || cfg.PlatformFeeBps < 0 {
		return nil, errors.New("pricing basis points must not be negative")
	}

	return cfg, nil
}

// HTTPAddr returns the address the HTTP server should bind to.
func (c *Config) HTTPAddr() string {
	port := strings.TrimSpace(c.Port)
	if port == "" {
		port = "8080"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return ":" + port
}

func splitAndTrim(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

// defaultBands mirrors the three-tier charge table the platform launched with.
// Prices are paise.
func defaultBands() []geo.Band {
	return []geo.Band{
		{MinKm: 0, MaxKm: 3, Price: 2000},
		{MinKm: 3, MaxKm: 6, Price: 3000},
		{MinKm: 6, MaxKm: 12, Price: 5000},
	}
}

func parseBands(value string) []geo.Band {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return defaultBands()
	}
	var bands []geo.Band
	if err := json.Unmarshal([]byte(trimmed), &bands); err != nil || len(bands) == 0 {
		return defaultBands()
	}
	return bands
}

func valueOrDefault(value, fallback string) string {
	if strings.TrimSpace(value) != "" {
		return value
	}
	return fallback
}

func parseDuration(value, fallback string) time.Duration {
	base := strings.TrimSpace(value)
	if base == "" {
		base = fallback
	}
	d, err := time.ParseDuration(base)
	if err != nil {
		d, _ = time.ParseDuration(fallback)
	}
	return d
}

func parseInt(value string, fallback int) int {
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func parseInt64(value string, fallback int64) int64 {
	n, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil {
		return fallback
	}
	return n
}

func parseBoolDefault(value string, fallback bool) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

// MustLoad behaves like Load but panics on error. Useful for tests and command entrypoints.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// LoadForTests allows tests to override environment variables without touching the real environment.
func LoadForTests(env map[string]string) (*Config, error) {
	original := make(map[string]string, len(env))
	for key := range env {
		original[key] = os.Getenv(key)
		if err := setEnvVar(key, env[key]); err != nil {
			return nil, err
		}
	}
	cfg, err := Load()
	restoreErr := restoreEnv(original)
	if err != nil {
		return nil, err
	}
	return cfg, restoreErr
}

func setEnvVar(key, value string) error {
	if value == "" {
		return os.Unsetenv(key)
	}
	return os.Setenv(key, value)
}

func restoreEnv(values map[string]string) error {
	var errs []string
	for key, value := range values {
		if err := setEnvVar(key, value); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", key, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("restore env: %s", strings.Join(errs, "; "))
	}
	return nil
}
