package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/smallbiznis/actionboard/pkg/db"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	HTTPPort    string

	OTLPEndpoint string

	Database db.Config

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	LockTTL       time.Duration

	SubmitRatePerSec float64
	SubmitBurst      int

	RabbitMQURL      string
	RabbitMQExchange string
	RelayInterval    time.Duration
	RelayBatchSize   int

	MigrateOnStart bool
	SeedSeasonSlug string
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		AppName:      getenv("APP_SERVICE", "actionboard"),
		AppVersion:   getenv("APP_VERSION", "0.1.0"),
		Environment:  getenv("ENVIRONMENT", "development"),
		HTTPPort:     getenv("HTTP_PORT", "8080"),
		OTLPEndpoint: getenv("OTLP_ENDPOINT", "localhost:4317"),
		Database: db.Config{
			Type:            strings.ToLower(getenv("DATABASE_TYPE", "postgres")),
			Host:            getenv("DATABASE_HOST", "localhost"),
			Port:            getenv("DATABASE_PORT", "5432"),
			Name:            getenv("DATABASE_NAME", "actionboard"),
			User:            getenv("DATABASE_USER", "postgres"),
			Password:        getenv("DATABASE_PASSWORD", ""),
			SSLMode:         getenv("DATABASE_SSLMODE", "disable"),
			Path:            getenv("DATABASE_PATH", "actionboard.db"),
			MaxIdleConn:     int(getenvInt64("DATABASE_MAX_IDLE_CONN", 5)),
			MaxOpenConn:     int(getenvInt64("DATABASE_MAX_OPEN_CONN", 20)),
			ConnMaxLifetime: int(getenvInt64("DATABASE_CONN_MAX_LIFETIME", 300)),
			ConnMaxIdleTime: int(getenvInt64("DATABASE_CONN_MAX_IDLE_TIME", 60)),
		},
		RedisAddr:        strings.TrimSpace(getenv("REDIS_ADDR", "")),
		RedisPassword:    getenv("REDIS_PASSWORD", ""),
		RedisDB:          int(getenvInt64("REDIS_DB", 0)),
		LockTTL:          time.Duration(getenvInt64("SUBMISSION_LOCK_TTL_MS", 10_000)) * time.Millisecond,
		SubmitRatePerSec: getenvFloat("SUBMIT_RATE_PER_SEC", 0),
		SubmitBurst:      int(getenvInt64("SUBMIT_BURST", 5)),
		RabbitMQURL:      strings.TrimSpace(getenv("RABBITMQ_URL", "")),
		RabbitMQExchange: getenv("RABBITMQ_EXCHANGE", "actionboard.events"),
		RelayInterval:    time.Duration(getenvInt64("OUTBOX_RELAY_INTERVAL_MS", 2_000)) * time.Millisecond,
		RelayBatchSize:   int(getenvInt64("OUTBOX_RELAY_BATCH_SIZE", 100)),
		MigrateOnStart:   getenvBool("MIGRATE_ON_START", true),
		SeedSeasonSlug:   strings.TrimSpace(getenv("SEED_SEASON_SLUG", "")),
	}

	return cfg
}

// IsProduction reports whether the service runs with production defaults.
func (c Config) IsProduction() bool {
	return strings.EqualFold(strings.TrimSpace(c.Environment), "production")
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getenvFloat(key string, def float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return def
	}
	return parsed
}

func getenvInt64(key string, def int64) int64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return def
	}
	return parsed
}
