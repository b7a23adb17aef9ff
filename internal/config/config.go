// Package config provides environment configuration and secret resolution
// for the document assistant.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Response modes.
const (
	// ModeAssistant answers through the remote assistant with file search over
	// the session's vector store.
	ModeAssistant = "assistant"
	// ModeCompletion answers through chat completions with the combined
	// document text as system context.
	ModeCompletion = "completion"
)

// Config holds all configuration for the application.
type Config struct {
	// Server settings
	ServerPort         string
	ServerReadTimeout  time.Duration
	ServerWriteTimeout time.Duration

	// Session token settings
	JWTSecret     string
	JWTExpiration time.Duration
	SessionTTL    time.Duration

	// Secrets file (TOML) consulted before the environment.
	SecretsFile string

	// Backend settings
	OpenAIBaseURL string
	Model         string
	AssistantName string
	ResponseMode  string

	// Documents
	MediaDir       string
	MaxUploadBytes int64

	// Streaming
	StreamTick time.Duration

	// NATS transcript mirror, disabled when URL is empty.
	NATSURL       string
	NATSToken     string
	NATSCAFile    string
	NATSCertFile  string
	NATSKeyFile   string
	NATSRetention time.Duration

	// Rate limiting
	RateLimitRequests int
	RateLimitWindow   time.Duration

	// CORS origins, any http(s) origin when empty.
	AllowedOrigins []string

	// Logging
	LogLevel string
	LogFile  string

	// Tracing
	TracingEndpoint string
	TracingEnabled  bool
}

// Load reads configuration from environment variables, after loading a
// .env file from the working directory when one exists.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		// Server
		ServerPort:         getEnv("PORT", "8080"),
		ServerReadTimeout:  getDurationEnv("SERVER_READ_TIMEOUT", 30*time.Second),
		ServerWriteTimeout: getDurationEnv("SERVER_WRITE_TIMEOUT", 10*time.Minute),

		// Session token
		JWTSecret:     getEnv("JWT_SECRET", "development-secret-change-in-production"),
		JWTExpiration: getDurationEnv("JWT_EXPIRATION", 12*time.Hour),
		SessionTTL:    getDurationEnv("SESSION_TTL", 12*time.Hour),

		SecretsFile: getEnv("SECRETS_FILE", ".streamlit/secrets.toml"),

		// Backend
		OpenAIBaseURL: getEnv("OPENAI_BASE_URL", ""),
		Model:         getEnv("OPENAI_MODEL", "gpt-4o"),
		AssistantName: getEnv("ASSISTANT_NAME", "MIDA"),
		ResponseMode:  getEnv("RESPONSE_MODE", ModeAssistant),

		// Documents
		MediaDir:       getEnv("MEDIA_DIR", "media"),
		MaxUploadBytes: int64(getIntEnv("MAX_UPLOAD_MB", 50)) << 20,

		StreamTick: getDurationEnv("STREAM_TICK", 120*time.Millisecond),

		// NATS
		NATSURL:       getEnv("NATS_URL", ""),
		NATSToken:     getEnv("NATS_TOKEN", ""),
		NATSCAFile:    getEnv("NATS_CA_FILE", ""),
		NATSCertFile:  getEnv("NATS_CERT_FILE", ""),
		NATSKeyFile:   getEnv("NATS_KEY_FILE", ""),
		NATSRetention: getDurationEnv("NATS_RETENTION", 30*24*time.Hour),

		// Rate limiting
		RateLimitRequests: getIntEnv("RATE_LIMIT_REQUESTS", 60),
		RateLimitWindow:   getDurationEnv("RATE_LIMIT_WINDOW", time.Minute),

		AllowedOrigins: getListEnv("CORS_ALLOWED_ORIGINS"),

		// Logging
		LogLevel: getEnv("LOG_LEVEL", "info"),
		LogFile:  getEnv("LOG_FILE", ""),

		// Tracing
		TracingEndpoint: getEnv("TRACING_ENDPOINT", "localhost:4318"),
		TracingEnabled:  getBoolEnv("TRACING_ENABLED", false),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getListEnv(key string) []string {
	var out []string
	for _, v := range strings.Split(os.Getenv(key), ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
