package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the router, its API and its tools.
type Config struct {
	App            AppConfig
	Postgres       PostgresConfig
	Redis          RedisConfig
	Logger         LoggerConfig
	Auth           AuthConfig
	Notification   NotificationConfig
	LLM            LLMConfig
	Embedding      EmbeddingConfig
	VectorDB       VectorDBConfig
	RAG            RAGConfig
	Ingest         IngestConfig
	Batch          BatchConfig
	RouteTableFile string
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// PostgresConfig holds DB connection values for the dashboard ticket store.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values. An empty Addr disables the retrieval cache.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior. Output is a zap sink such as stdout or stderr.
type LoggerConfig struct {
	Level  string
	Output string
}

// AuthConfig defines staff token parameters.
type AuthConfig struct {
	JWTSecret             string
	AccessTokenTTLMinutes int
}

// NotificationConfig holds stub notification endpoints.
type NotificationConfig struct {
	EmailFrom  string
	WebhookURL string
}

// LLMConfig selects and tunes the chat model used for classification and generation.
type LLMConfig struct {
	Provider       string
	APIKey         string
	BaseURL        string
	Model          string
	Temperature    float64
	TimeoutSeconds int
}

// EmbeddingConfig configures the embedding endpoint.
type EmbeddingConfig struct {
	APIKey     string
	BaseURL    string
	Model      string
	Dimensions int
	BatchSize  int
}

// VectorDBConfig holds Milvus connection values and collection names.
type VectorDBConfig struct {
	Address             string
	Username            string
	Password            string
	Database            string
	DocsCollection      string
	DeveloperCollection string
	SearchEf            int
}

// RAGConfig tunes retrieval and generation.
type RAGConfig struct {
	TopK               int
	ContextTokenBudget int
	CacheTTLSeconds    int
}

// IngestConfig tunes document ingestion.
type IngestConfig struct {
	ChunkSize       int
	ChunkOverlap    int
	FetchTimeoutSec int
}

// BatchConfig tunes the bulk classification job.
type BatchConfig struct {
	Workers int
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}
	temperature, err := strconv.ParseFloat(getEnv("LLM_TEMPERATURE", "0"), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid LLM_TEMPERATURE: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "ticket-router"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 60),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
		Redis: RedisConfig{
			Addr:     os.Getenv("REDIS_ADDR"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Output: getEnv("LOG_OUTPUT", "stdout"),
		},
		Auth: AuthConfig{
			JWTSecret:             getEnv("AUTH_JWT_SECRET", "dev-secret"),
			AccessTokenTTLMinutes: getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 60),
		},
		Notification: NotificationConfig{
			EmailFrom:  getEnv("NOTIFY_EMAIL_FROM", "noreply@example.com"),
			WebhookURL: getEnv("NOTIFY_WEBHOOK_URL", ""),
		},
		LLM: LLMConfig{
			Provider:       strings.ToLower(getEnv("LLM_PROVIDER", ProviderOpenAI)),
			APIKey:         os.Getenv("LLM_API_KEY"),
			BaseURL:        os.Getenv("LLM_BASE_URL"),
			Model:          getEnv("LLM_MODEL", "gpt-4o-mini"),
			Temperature:    temperature,
			TimeoutSeconds: getEnvAsInt("LLM_TIMEOUT_SECONDS", 30),
		},
		Embedding: EmbeddingConfig{
			APIKey:     getEnv("EMBEDDING_API_KEY", os.Getenv("LLM_API_KEY")),
			BaseURL:    os.Getenv("EMBEDDING_BASE_URL"),
			Model:      getEnv("EMBEDDING_MODEL", "text-embedding-3-small"),
			Dimensions: getEnvAsInt("EMBEDDING_DIMENSIONS", 1536),
			BatchSize:  getEnvAsInt("EMBEDDING_BATCH_SIZE", 64),
		},
		VectorDB: VectorDBConfig{
			Address:             getEnv("MILVUS_ADDRESS", "localhost:19530"),
			Username:            os.Getenv("MILVUS_USERNAME"),
			Password:            os.Getenv("MILVUS_PASSWORD"),
			Database:            getEnv("MILVUS_DATABASE", "default"),
			DocsCollection:      getEnv("MILVUS_DOCS_COLLECTION", "docs"),
			DeveloperCollection: getEnv("MILVUS_DEVELOPER_COLLECTION", "developer"),
			SearchEf:            getEnvAsInt("MILVUS_SEARCH_EF", 64),
		},
		RAG: RAGConfig{
			TopK:               getEnvAsInt("RAG_TOP_K", 4),
			ContextTokenBudget: getEnvAsInt("RAG_CONTEXT_TOKEN_BUDGET", 6000),
			CacheTTLSeconds:    getEnvAsInt("RAG_CACHE_TTL_SECONDS", 600),
		},
		Ingest: IngestConfig{
			ChunkSize:       getEnvAsInt("INGEST_CHUNK_SIZE", 1000),
			ChunkOverlap:    getEnvAsInt("INGEST_CHUNK_OVERLAP", 200),
			FetchTimeoutSec: getEnvAsInt("INGEST_FETCH_TIMEOUT_SECONDS", 20),
		},
		Batch: BatchConfig{
			Workers: getEnvAsInt("BATCH_WORKERS", 4),
		},
		RouteTableFile: os.Getenv("ROUTE_TABLE_FILE"),
	}

	return cfg, nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// Timeout bounds a single model call. Zero means no bound.
func (l LLMConfig) Timeout() time.Duration {
	if l.TimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(l.TimeoutSeconds) * time.Second
}

// CacheTTL returns how long retrieval results stay cached.
func (r RAGConfig) CacheTTL() time.Duration {
	if r.CacheTTLSeconds <= 0 {
		return 0
	}
	return time.Duration(r.CacheTTLSeconds) * time.Second
}

// FetchTimeout bounds a single page download.
func (i IngestConfig) FetchTimeout() time.Duration {
	if i.FetchTimeoutSec <= 0 {
		return 20 * time.Second
	}
	return time.Duration(i.FetchTimeoutSec) * time.Second
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}
