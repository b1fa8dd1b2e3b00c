package config

import (
	"context"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Env   string
	Port  int
	DBURL string

	// "postgres" or "memory"
	Store string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	SlotsCacheTTL time.Duration

	OTelEnabled  bool
	OTelEndpoint string

	CORSAllowedOrigins []string
	RateLimitPerMinute int
	MaxBodyBytes       int64

	SlotSeed SlotSeedConfig

	AuditInterval    time.Duration
	WorkerHealthPort int
}

// SlotSeedConfig describes the fixed set of slots created on first start.
type SlotSeedConfig struct {
	Start    time.Time
	Count    int
	Interval time.Duration
	Capacity int
}

func Load() Config {
	// a missing .env is fine, real env vars win either way
	_ = godotenv.Load()

	return Config{
		Env:                getEnv("APP_ENV", "dev"),
		Port:               getEnvInt("PORT", 5173),
		DBURL:              buildDBURL(),
		Store:              strings.ToLower(getEnv("STORE", "postgres")),
		RedisAddr:          getEnv("REDIS_ADDR", ""),
		RedisPassword:      getEnv("REDIS_PASSWORD", ""),
		RedisDB:            getEnvInt("REDIS_DB", 0),
		SlotsCacheTTL:      time.Duration(getEnvInt("SLOTS_CACHE_TTL_SECONDS", 5)) * time.Second,
		OTelEnabled:        getEnv("OTEL_ENABLED", "false") == "true",
		OTelEndpoint:       getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
		CORSAllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:5173"}),
		RateLimitPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 30),
		MaxBodyBytes:       int64(getEnvInt("MAX_BODY_BYTES", 64*1024)),
		SlotSeed: SlotSeedConfig{
			Start:    getEnvTime("SLOT_SEED_START", defaultSeedStart()),
			Count:    getEnvInt("SLOT_SEED_COUNT", 8),
			Interval: time.Duration(getEnvInt("SLOT_SEED_INTERVAL_MINUTES", 15)) * time.Minute,
			Capacity: getEnvInt("SLOT_SEED_CAPACITY", 3),
		},
		AuditInterval:    time.Duration(getEnvInt("AUDIT_INTERVAL_SECONDS", 60)) * time.Second,
		WorkerHealthPort: getEnvInt("WORKER_HEALTH_PORT", 8081),
	}
}

func buildDBURL() string {
	if v := os.Getenv("DATABASE_URL"); v != "" {
		return v
	}

	host := getEnv("DB_HOST", "127.0.0.1")
	port := getEnv("DB_PORT", "5432")
	user := getEnv("DB_USER", "demoslots")
	pass := getEnv("DB_PASSWORD", "demoslots")
	name := getEnv("DB_NAME", "demoslots")
	ssl := getEnv("DB_SSLMODE", "disable")

	return "postgres://" + user + ":" + pass + "@" + host + ":" + port + "/" + name + "?sslmode=" + ssl
}

// tomorrow at 09:00 UTC
func defaultSeedStart() time.Time {
	now := time.Now().UTC()
	return time.Date(now.Year(), now.Month(), now.Day()+1, 9, 0, 0, 0, time.UTC)
}

func WithTimeout(duration time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), duration)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}

	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		num, err := strconv.Atoi(v)

		if err != nil {
			slog.Warn("invalid integer env var, using default", "key", key, "value", v, "default", fallback)
			return fallback
		}

		return num
	}
	return fallback
}

func getEnvList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}

	out := make([]string, 0)
	for _, part := range strings.Split(v, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnvTime(key string, fallback time.Time) time.Time {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}

	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		slog.Warn("invalid RFC3339 env var, using default", "key", key, "value", v)
		return fallback
	}
	return t
}
