package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Storage backends for experiment results
const (
	StoreSQL   = "sql"
	StoreRedis = "redis"
	StoreNone  = "none"
)

// Config holds application configuration
type Config struct {
	ServerPort      string
	DatabaseType    string
	DatabasePath    string
	DatabaseURL     string
	MigrationsPath  string // empty uses the embedded migrations
	StaticFilesPath string
	CatalogPath     string

	StoreBackend string
	RedisAddr    string
	RedisPrefix  string
	CounterKey   string

	// Session defaults, overridable per session by query parameters
	LocalMode    bool
	TestAll      bool
	SkipTutorial bool

	LogMode            string
	Debug              bool
	SessionSecret      string
	SessionTTL         time.Duration
	PreloadConcurrency int

	AWSRegion    string
	SESFromEmail string
	SESFromName  string
	NotifyEmail  string
}

// Load reads configuration from a .env file if present, then from
// environment variables with sensible defaults
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		ServerPort:      getEnv("PORT", "8080"),
		DatabaseType:    strings.ToLower(getEnv("DB_TYPE", "sqlite")),
		DatabasePath:    getEnv("DB_PATH", "./wordwatch.db"),
		DatabaseURL:     getEnv("DATABASE_URL", ""),
		MigrationsPath:  getEnv("MIGRATIONS_PATH", ""),
		StaticFilesPath: getEnv("STATIC_PATH", "./static"),
		CatalogPath:     getEnv("CATALOG_PATH", ""),

		StoreBackend: strings.ToLower(getEnv("STORE_BACKEND", StoreSQL)),
		RedisAddr:    getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPrefix:  getEnv("REDIS_PREFIX", "wordwatch:"),
		CounterKey:   getEnv("COUNTER_KEY", "stimuli_counter"),

		LocalMode:    getEnvBool("LOCAL_MODE", false),
		TestAll:      getEnvBool("TEST_ALL", false),
		SkipTutorial: getEnvBool("SKIP_TUTORIAL", false),

		LogMode:            getEnv("LOG_MODE", "development"),
		Debug:              getEnvBool("DEBUG", false),
		SessionSecret:      getEnv("SESSION_SECRET", ""),
		SessionTTL:         getEnvDuration("SESSION_TTL", 6*time.Hour),
		PreloadConcurrency: getEnvInt("PRELOAD_CONCURRENCY", 8),

		AWSRegion:    getEnv("AWS_REGION", "us-east-1"),
		SESFromEmail: getEnv("SES_FROM_EMAIL", ""),
		SESFromName:  getEnv("SES_FROM_NAME", "Word Watch"),
		NotifyEmail:  getEnv("NOTIFY_EMAIL", ""),
	}
}

// getEnv reads an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	v, err := strconv.ParseBool(getEnv(key, ""))
	if err != nil {
		return defaultValue
	}
	return v
}

func getEnvInt(key string, defaultValue int) int {
	v, err := strconv.Atoi(getEnv(key, ""))
	if err != nil || v <= 0 {
		return defaultValue
	}
	return v
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	v, err := time.ParseDuration(getEnv(key, ""))
	if err != nil || v <= 0 {
		return defaultValue
	}
	return v
}
