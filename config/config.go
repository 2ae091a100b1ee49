package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config stores the application configuration. Values come from the
// environment (optionally via a .env file) with working defaults for local
// development.
type Config struct {
	HTTPAddr string

	// Library cache
	LibraryTTL      time.Duration
	LibraryBatch    int // tracks requested per refresh
	RemixHistoryLen int // remix-history entries derived per refresh
	DefaultLimit    int // query limit when the caller sends none

	// Audio fallback loader
	LoaderRetryDelay time.Duration
	MaxFallbackURLs  int

	// Generation service (empty base URL enables the built-in mock)
	GenerationAPIURL   string
	GenerationAPIKey   string
	GenerationCacheTTL time.Duration

	// Quality verification service
	VerifierAPIURL string

	// Base URL for canned sample audio (served from /samples via MinIO)
	SampleBaseURL string

	// Auth (mock: any username, one demo password)
	JWTSecret    string
	JWTTTL       time.Duration
	DemoPassword string

	// Redis
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int

	// MinIO (sample audio storage, optional)
	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioUseSSL    bool

	// Effect presets
	PresetDir string

	// Logging
	LogLevel string
	LogPath  string
}

// getEnv gets an environment variable or returns a default value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

// getEnvInt gets an environment variable as int or returns a default value.
func getEnvInt(key string, fallback int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return fallback
}

// getEnvBool gets an environment variable as bool or returns a default value.
func getEnvBool(key string, fallback bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return fallback
}

// getEnvDuration gets an environment variable as a duration or returns a
// default value.
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

// Load loads configuration from environment variables (via .env file) or defaults.
func Load() *Config {
	// godotenv.Load() will not override existing env vars.
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found or error loading .env, relying on existing environment variables and defaults.")
	}

	return &Config{
		HTTPAddr: getEnv("HTTP_ADDR", ":8080"),

		LibraryTTL:      getEnvDuration("LIBRARY_TTL", time.Hour),
		LibraryBatch:    getEnvInt("LIBRARY_BATCH", 16),
		RemixHistoryLen: getEnvInt("REMIX_HISTORY_LEN", 8),
		DefaultLimit:    getEnvInt("QUERY_DEFAULT_LIMIT", 20),

		LoaderRetryDelay: getEnvDuration("LOADER_RETRY_DELAY", time.Second),
		MaxFallbackURLs:  getEnvInt("LOADER_MAX_FALLBACKS", 4),

		GenerationAPIURL:   getEnv("GENERATION_API_URL", ""),
		GenerationAPIKey:   os.Getenv("GENERATION_API_KEY"),
		GenerationCacheTTL: getEnvDuration("GENERATION_CACHE_TTL", 10*time.Minute),

		VerifierAPIURL: getEnv("VERIFIER_API_URL", ""),

		SampleBaseURL: getEnv("SAMPLE_BASE_URL", "/samples"),

		JWTSecret:    getEnv("JWT_SECRET", "compconv-dev-secret"),
		JWTTTL:       getEnvDuration("JWT_TTL", 24*time.Hour),
		DemoPassword: getEnv("DEMO_PASSWORD", "letmein"),

		RedisHost:     getEnv("REDIS_HOST", "127.0.0.1"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		MinioEndpoint:  getEnv("MINIO_ENDPOINT", ""),
		MinioAccessKey: os.Getenv("MINIO_ACCESS_KEY"),
		MinioSecretKey: os.Getenv("MINIO_SECRET_KEY"),
		MinioBucket:    getEnv("MINIO_BUCKET", "compconv"),
		MinioUseSSL:    getEnvBool("MINIO_USE_SSL", false),

		PresetDir: getEnv("PRESET_DIR", "presets"),

		LogLevel: getEnv("LOG_LEVEL", "info"),
		LogPath:  getEnv("LOG_PATH", ""),
	}
}
