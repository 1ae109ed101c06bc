package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Config holds application runtime configuration.
type Config struct {
	Env                string
	HTTPPort           string
	StoreDriver        string
	DatabaseURL        string
	AutoMigrate        bool
	SeedFile           string
	DefaultCurrency    string
	JWTSecret          string
	PassTokenSecret    string
	PublicBaseURL      string
	StorageDir         string
	AMQPURL            string
	AMQPExchange       string
	RateLimitPerMinute int
	LogFormat          string
	LogLevel           string
	ReadTimeout        time.Duration
	WriteTimeout       time.Duration
	IdleTimeout        time.Duration
	ShutdownTimeout    time.Duration
}

// Load reads environment variables and .env (if present).
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		Env:                getEnv("APP_ENV", "development"),
		HTTPPort:           getEnv("HTTP_PORT", "8080"),
		StoreDriver:        strings.ToLower(getEnv("STORE_DRIVER", DriverPostgres)),
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		AutoMigrate:        getBool("AUTO_MIGRATE", true),
		SeedFile:           os.Getenv("SEED_FILE"),
		DefaultCurrency:    getEnv("CURRENCY_CODE", "USD"),
		JWTSecret:          os.Getenv("JWT_SECRET"),
		PassTokenSecret:    os.Getenv("PASS_TOKEN_SECRET"),
		PublicBaseURL:      getEnv("PUBLIC_BASE_URL", ""),
		StorageDir:         getEnv("STORAGE_DIR", "uploads"),
		AMQPURL:            os.Getenv("AMQP_URL"),
		AMQPExchange:       getEnv("AMQP_EXCHANGE", "crowdstack.events"),
		RateLimitPerMinute: getInt("RATE_LIMIT_PER_MINUTE", 60),
		LogFormat:          getEnv("LOG_FORMAT", "text"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		ReadTimeout:        getDuration("HTTP_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:       getDuration("HTTP_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:        getDuration("HTTP_IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout:    getDuration("HTTP_SHUTDOWN_TIMEOUT", 10*time.Second),
	}

	switch cfg.StoreDriver {
	case DriverPostgres:
		if cfg.DatabaseURL == "" {
			return cfg, errors.New("DATABASE_URL is required")
		}
	case DriverMemory:
	default:
		return cfg, errors.New("STORE_DRIVER must be postgres or memory")
	}
	if cfg.JWTSecret == "" {
		return cfg, errors.New("JWT_SECRET is required")
	}
	if cfg.PassTokenSecret == "" {
		return cfg, errors.New("PASS_TOKEN_SECRET is required")
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	return val
}

func getInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return n
}

func getBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return b
}

func getDuration(key string, fallback time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		// Support seconds as integer without suffix.
		if secs, convErr := strconv.Atoi(val); convErr == nil {
			return time.Duration(secs) * time.Second
		}
		return fallback
	}
	return d
}
