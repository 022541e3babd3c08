package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration.
// Values are loaded from environment variables with sensible defaults.
type Config struct {
	// Server
	Port     int
	LogLevel string

	// External services
	IntegratorBaseURL string // bank-aggregation integrator (GoCardless proxy)
	GenAIBaseURL      string // embeddings + completions sidecar
	GenAIAPIKey       string

	// HTTP client
	HTTPTimeout time.Duration
	// ExternalCallTimeout bounds each single provider/model call inside a
	// sync run so a hung call cannot hold a worker forever.
	ExternalCallTimeout time.Duration

	// Resilience
	MaxRetries     int
	InitialBackoff time.Duration

	// Sync
	SyncWorkers  int
	SyncCooldown time.Duration

	// Semantic cache
	SimilarityThreshold float64
	SemanticNeighbors   int

	// Caching
	CategoryCacheTTL time.Duration
	BankListCacheTTL time.Duration

	// Supabase
	SupabaseURL        string
	SupabaseAnonKey    string
	SupabaseServiceKey string

	// JWT / Auth
	JWTSecret    string
	JWTAccessTTL time.Duration

	// Observability
	OTLPEndpoint string
}

// Load reads configuration from environment variables with defaults.
func Load() *Config {
	return &Config{
		Port:     getEnvInt("PORT", 8080),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		IntegratorBaseURL: getEnv("INTEGRATOR_BASE_URL", "http://localhost:8091"),
		GenAIBaseURL:      getEnv("GENAI_BASE_URL", "http://localhost:8092"),
		GenAIAPIKey:       getEnv("GENAI_API_KEY", ""),

		HTTPTimeout:         getEnvDuration("HTTP_TIMEOUT", 10*time.Second),
		ExternalCallTimeout: getEnvDuration("EXTERNAL_CALL_TIMEOUT", 30*time.Second),

		MaxRetries:     getEnvInt("MAX_RETRIES", 3),
		InitialBackoff: getEnvDuration("INITIAL_BACKOFF", 100*time.Millisecond),

		SyncWorkers:  getEnvInt("SYNC_WORKERS", 4),
		SyncCooldown: getEnvDuration("SYNC_COOLDOWN", 6*time.Hour),

		SimilarityThreshold: getEnvFloat("SEMANTIC_SIMILARITY_THRESHOLD", 0.85),
		SemanticNeighbors:   getEnvInt("SEMANTIC_NEIGHBORS", 1),

		CategoryCacheTTL: getEnvDuration("CATEGORY_CACHE_TTL", 5*time.Minute),
		BankListCacheTTL: getEnvDuration("BANK_LIST_CACHE_TTL", 12*time.Hour),

		SupabaseURL:        getEnv("SUPABASE_URL", ""),
		SupabaseAnonKey:    getEnv("SUPABASE_ANON_KEY", ""),
		SupabaseServiceKey: getEnv("SUPABASE_SERVICE_ROLE_KEY", ""),

		JWTSecret:    getEnv("JWT_SECRET", "nexabudget-default-dev-secret-change-me"),
		JWTAccessTTL: getEnvDuration("JWT_ACCESS_TTL", 24*time.Hour),

		OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
