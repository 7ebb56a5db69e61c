package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"veritas.app/relay/core/db"
)

// Config holds all application configuration.
type Config struct {
	// Env is the environment name (development, staging, production)
	Env string

	// Port is the HTTP server port
	Port string

	// DB holds database configuration for the relational retrieval backend
	DB db.Config

	// Arango holds the graph backend connection configuration
	Arango ArangoConfig

	// Qdrant holds the vector backend connection configuration
	Qdrant QdrantConfig

	// Redis holds the optional progress-stream sink configuration
	Redis RedisConfig

	// LLM configures the provider shared by hypothesis generation and
	// re-ranking
	LLM LLMConfig

	// Scheduler carries the closed option set the plan scheduler accepts
	Scheduler SchedulerConfig

	// OTel holds OpenTelemetry exporter configuration
	OTel OTelConfig
}

// ArangoConfig configures the ArangoDB graph backend. An empty URL
// disables the backend.
type ArangoConfig struct {
	URL      string
	Username string
	Password string
	Database string

	DocumentCollection string
	EdgeCollection     string
}

func (c ArangoConfig) Enabled() bool {
	return c.URL != ""
}

// QdrantConfig configures the Qdrant vector backend. An empty host
// disables the backend.
type QdrantConfig struct {
	Host       string
	Port       int
	APIKey     string
	UseTLS     bool
	Collection string
}

func (c QdrantConfig) Enabled() bool {
	return c.Host != ""
}

// RedisConfig configures the optional Redis Streams progress sink. An
// empty address disables it.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Stream   string
}

func (c RedisConfig) Enabled() bool {
	return c.Addr != ""
}

// LLMConfig configures the LLM client used by the hypothesis service and
// the re-ranker.
type LLMConfig struct {
	Provider string
	APIKey   string
	BaseURL  string
	Model    string
	Timeout  time.Duration
}

// SchedulerConfig is the closed configuration set recognised by the plan
// scheduler.
type SchedulerConfig struct {
	MaxWorkers       int
	RetryFailed      bool
	UseAgents        bool
	EnableHypothesis bool
	EnableReranking  bool
}

// OTelConfig configures the OTLP trace and log exporters. An empty
// endpoint disables telemetry export.
type OTelConfig struct {
	Endpoint       string
	Headers        string
	ServiceName    string
	ServiceVersion string
}

func (c OTelConfig) Enabled() bool {
	return c.Endpoint != ""
}

// Load loads configuration from environment variables.
// It provides sensible defaults for development.
func Load() Config {
	return Config{
		Env:  getEnv("RELAY_ENV", "development"),
		Port: getEnv("PORT", "8080"),
		DB: db.Config{
			DSN:      buildDSN(),
			MaxConns: int32(getEnvInt("DB_MAX_CONNS", 10)),
			MinConns: int32(getEnvInt("DB_MIN_CONNS", 2)),
		},
		Arango: ArangoConfig{
			URL:                getEnv("ARANGODB_URL", ""),
			Username:           getEnv("ARANGODB_USERNAME", "root"),
			Password:           getEnv("ARANGODB_PASSWORD", ""),
			Database:           getEnv("ARANGODB_DATABASE", "veritas"),
			DocumentCollection: getEnv("ARANGODB_DOCUMENT_COLLECTION", "documents"),
			EdgeCollection:     getEnv("ARANGODB_EDGE_COLLECTION", "related_to"),
		},
		Qdrant: QdrantConfig{
			Host:       getEnv("QDRANT_HOST", ""),
			Port:       getEnvInt("QDRANT_PORT", 6334),
			APIKey:     getEnv("QDRANT_API_KEY", ""),
			UseTLS:     getEnvBool("QDRANT_USE_TLS", false),
			Collection: getEnv("QDRANT_COLLECTION", "documents"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
			Stream:   getEnv("REDIS_PROGRESS_STREAM", "relay:progress"),
		},
		LLM: LLMConfig{
			Provider: getEnv("LLM_PROVIDER", "openai"),
			APIKey:   getEnv("LLM_API_KEY", ""),
			BaseURL:  getEnv("LLM_BASE_URL", ""),
			Model:    getEnv("LLM_MODEL", ""),
			Timeout:  time.Duration(getEnvInt("LLM_TIMEOUT_SECONDS", 20)) * time.Second,
		},
		Scheduler: SchedulerConfig{
			MaxWorkers:       getEnvInt("SCHEDULER_MAX_WORKERS", 4),
			RetryFailed:      getEnvBool("SCHEDULER_RETRY_FAILED", false),
			UseAgents:        getEnvBool("SCHEDULER_USE_AGENTS", true),
			EnableHypothesis: getEnvBool("SCHEDULER_ENABLE_HYPOTHESIS", true),
			EnableReranking:  getEnvBool("SCHEDULER_ENABLE_RERANKING", true),
		},
		OTel: OTelConfig{
			Endpoint:       getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
			Headers:        getEnv("OTEL_EXPORTER_OTLP_HEADERS", ""),
			ServiceName:    getEnv("OTEL_SERVICE_NAME", "veritas-relay"),
			ServiceVersion: getEnv("OTEL_SERVICE_VERSION", "dev"),
		},
	}
}

// buildDSN constructs the database connection string from individual env vars.
func buildDSN() string {
	host := getEnv("DATABASE_HOST", "localhost")
	port := getEnv("DATABASE_PORT", "5432")
	user := getEnv("DATABASE_USER", "postgres")
	password := getEnv("DATABASE_PASSWORD", "postgres")
	name := getEnv("DATABASE_NAME", "veritas")
	sslMode := getEnv("DATABASE_SSLMODE", "disable")

	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		user, password, host, port, name, sslMode,
	)
}

// IsProduction returns true if running in production environment.
func (c Config) IsProduction() bool {
	return c.Env == "production"
}

// IsDevelopment returns true if running in development environment.
func (c Config) IsDevelopment() bool {
	return c.Env == "development"
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}
