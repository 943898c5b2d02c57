package config

import (
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Server struct {
		Port     string
		GRPCPort string
		Env      string
		Timeout  time.Duration
		BaseURL  string

		// OpenAPISpec is the document requests are validated against. Empty disables validation.
		OpenAPISpec string
	}

	Database struct {
		Host     string
		Port     string
		User     string
		Password string
		Name     string
		SSLMode  string
		MaxConns int
		Timeout  time.Duration
	}

	Redis struct {
		URL      string
		Password string
		DB       int
	}

	JWT struct {
		Secret string
		Expiry time.Duration
	}

	Security struct {
		RateLimit      float64
		RateLimitBurst int
		AllowedOrigins []string
		MaxBodySize    int64
	}

	Logging struct {
		Level  string
		Format string
	}

	// Streams configures the resumable generation pipeline.
	Streams struct {
		Enabled           bool
		FreshnessWindow   time.Duration
		TTL               time.Duration
		IdleTimeout       time.Duration
		BlockTimeout      time.Duration
		GenerationTimeout time.Duration
		MaxLen            int64
	}

	LLM struct {
		Provider     string
		Model        string
		BaseURL      string
		APIKey       string
		SystemPrompt string
	}

	Storage struct {
		Bucket          string
		CredentialsFile string
		PublicBaseURL   string
		MaxUploadSize   int64
		AllowedTypes    []string
	}

	// Entitlements caps messages per rolling 24h by user type.
	Entitlements struct {
		GuestMessagesPerDay   int
		RegularMessagesPerDay int
	}

	Vault struct {
		Enabled    bool
		Address    string
		Token      string
		Mount      string
		SecretPath string
	}

	Observability struct {
		ServiceName string
		MetricsPort string
		Tracing     bool
	}
}

var (
	instance *Config
	once     sync.Once
)

// New loads the configuration once from the environment (and .env if present).
func New() *Config {
	once.Do(func() {
		_ = godotenv.Load()
		instance = Load()
	})
	return instance
}

// Get returns the singleton Config instance
func Get() *Config {
	if instance == nil {
		return New()
	}
	return instance
}

// Load reads a fresh Config from the current environment without touching
// the singleton.
func Load() *Config {
	c := &Config{}

	c.Server.Port = getEnvString("PORT", "8080")
	c.Server.GRPCPort = getEnvString("GRPC_PORT", "9090")
	c.Server.Env = getEnvString("APP_ENV", "development")
	c.Server.Timeout = getEnvDuration("SERVER_TIMEOUT", 30*time.Second)
	c.Server.BaseURL = getEnvString("BASE_URL", "http://localhost:"+c.Server.Port)
	c.Server.OpenAPISpec = getEnvString("OPENAPI_SPEC", "api/openapi.yaml")

	c.Database.Host = getEnvString("DB_HOST", "localhost")
	c.Database.Port = getEnvString("DB_PORT", "5432")
	c.Database.User = getEnvString("DB_USER", "postgres")
	c.Database.Password = getEnvString("DB_PASSWORD", "postgres")
	c.Database.Name = getEnvString("DB_NAME", "chat")
	c.Database.SSLMode = getEnvString("DB_SSL_MODE", "disable")
	c.Database.MaxConns = getEnvInt("DB_MAX_CONNS", 20)
	c.Database.Timeout = getEnvDuration("DB_TIMEOUT", 5*time.Second)

	c.Redis.URL = getEnvString("REDIS_URL", "")
	c.Redis.Password = getEnvString("REDIS_PASSWORD", "")
	c.Redis.DB = getEnvInt("REDIS_DB", 0)

	c.JWT.Secret = getEnvString("JWT_SECRET", "default-jwt-secret-do-not-use-in-production")
	c.JWT.Expiry = getEnvDuration("JWT_EXPIRY", 24*time.Hour)

	c.Security.RateLimit = getEnvFloat("RATE_LIMIT", 5)
	c.Security.RateLimitBurst = getEnvInt("RATE_LIMIT_BURST", 10)
	c.Security.AllowedOrigins = getEnvStringSlice("ALLOWED_ORIGINS", []string{"*"})
	c.Security.MaxBodySize = getEnvInt64("MAX_BODY_SIZE", 10<<20)

	c.Logging.Level = getEnvString("LOG_LEVEL", "info")
	c.Logging.Format = getEnvString("LOG_FORMAT", "json")

	c.Streams.Enabled = getEnvBool("ENABLE_RESUMABLE_STREAMS", true)
	c.Streams.FreshnessWindow = getEnvDuration("REPLAY_FRESHNESS_WINDOW", 15*time.Second)
	c.Streams.TTL = getEnvDuration("STREAM_TTL", 10*time.Minute)
	c.Streams.IdleTimeout = getEnvDuration("STREAM_IDLE_TIMEOUT", 60*time.Second)
	c.Streams.BlockTimeout = getEnvDuration("STREAM_BLOCK_TIMEOUT", 5*time.Second)
	c.Streams.GenerationTimeout = getEnvDuration("GENERATION_TIMEOUT", 5*time.Minute)
	c.Streams.MaxLen = getEnvInt64("STREAM_MAX_LEN", 10000)

	c.LLM.Provider = getEnvString("LLM_PROVIDER", "echo")
	c.LLM.Model = getEnvString("LLM_MODEL", "gpt-4o-mini")
	c.LLM.BaseURL = getEnvString("LLM_BASE_URL", "")
	c.LLM.APIKey = getEnvString("LLM_API_KEY", "")
	c.LLM.SystemPrompt = getEnvString("LLM_SYSTEM_PROMPT", "You are a friendly assistant. Keep your responses concise and helpful.")

	c.Storage.Bucket = getEnvString("GCS_BUCKET", "")
	c.Storage.CredentialsFile = getEnvString("GCS_CREDENTIALS_FILE", "")
	c.Storage.PublicBaseURL = getEnvString("STORAGE_PUBLIC_BASE_URL", "https://storage.googleapis.com")
	c.Storage.MaxUploadSize = getEnvInt64("MAX_UPLOAD_SIZE", 5<<20)
	c.Storage.AllowedTypes = getEnvStringSlice("UPLOAD_ALLOWED_TYPES", []string{"image/jpeg", "image/png", "application/pdf"})

	c.Entitlements.GuestMessagesPerDay = getEnvInt("GUEST_MESSAGES_PER_DAY", 20)
	c.Entitlements.RegularMessagesPerDay = getEnvInt("REGULAR_MESSAGES_PER_DAY", 100)

	c.Vault.Enabled = getEnvBool("VAULT_ENABLED", false)
	c.Vault.Address = getEnvString("VAULT_ADDR", "http://localhost:8200")
	c.Vault.Token = getEnvString("VAULT_TOKEN", "")
	c.Vault.Mount = getEnvString("VAULT_MOUNT", "secret")
	c.Vault.SecretPath = getEnvString("VAULT_SECRET_PATH", "chat")

	c.Observability.ServiceName = getEnvString("SERVICE_NAME", "chat-backend")
	c.Observability.MetricsPort = getEnvString("METRICS_PORT", "2112")
	c.Observability.Tracing = getEnvBool("ENABLE_TRACING", false)

	return c
}

// IsProduction reports whether APP_ENV is production.
func (c *Config) IsProduction() bool {
	return c.Server.Env == "production"
}

func getEnvString(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value, exists := os.LookupEnv(key); exists {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvStringSlice(key string, defaultValue []string) []string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		parts := strings.Split(value, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		return out
	}
	return defaultValue
}
