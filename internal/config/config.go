package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server    ServerConfig
	Mongo     MongoConfig
	Auth      AuthConfig
	OTP       OTPConfig
	Email     EmailConfig
	OAuth     OAuthConfig
	AI        AIConfig
	RateLimit RateLimitConfig
	LogLevel  string
}

type ServerConfig struct {
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	AllowedOrigins  []string
}

type MongoConfig struct {
	URI      string
	Database string
}

type AuthConfig struct {
	BcryptCost int
}

type OTPConfig struct {
	TTL         time.Duration
	MaxAttempts int // 0 disables the lockout
}

type EmailConfig struct {
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	From         string
}

type OAuthConfig struct {
	GoogleClientID     string
	GoogleClientSecret string
	GoogleCallbackURL  string
	SessionKey         string
	SecureCookies      bool
}

type AIConfig struct {
	Provider     string // "ollama" or "googleai"
	OllamaURL    string
	Model        string
	GoogleAPIKey string
}

type RateLimitConfig struct {
	RequestsPerSecond float64 // 0 disables the limiter
	Burst             int
}

// Load reads configuration from the environment. A .env file in the working
// directory is applied first when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port:            getIntEnv("PORT", 5000),
			ReadTimeout:     getDurationEnv("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout:    getDurationEnv("SERVER_WRITE_TIMEOUT", 2*time.Minute),
			IdleTimeout:     getDurationEnv("SERVER_IDLE_TIMEOUT", time.Minute),
			ShutdownTimeout: getDurationEnv("SERVER_SHUTDOWN_TIMEOUT", 5*time.Second),
			AllowedOrigins:  getSliceEnv("ALLOWED_ORIGINS", []string{"http://localhost:5173"}),
		},
		Mongo: MongoConfig{
			URI:      getEnv("MONGO_URI", ""),
			Database: getEnv("MONGO_DATABASE", "studynotes"),
		},
		Auth: AuthConfig{
			BcryptCost: getIntEnv("BCRYPT_COST", 12),
		},
		OTP: OTPConfig{
			TTL:         getDurationEnv("OTP_TTL", 10*time.Minute),
			MaxAttempts: getIntEnv("OTP_MAX_ATTEMPTS", 0),
		},
		Email: EmailConfig{
			SMTPHost:     getEnv("SMTP_HOST", "smtp.gmail.com"),
			SMTPPort:     getIntEnv("SMTP_PORT", 587),
			SMTPUsername: getEnv("SMTP_USERNAME", ""),
			SMTPPassword: getEnv("SMTP_PASSWORD", ""),
			From:         getEnv("SMTP_FROM", getEnv("SMTP_USERNAME", "")),
		},
		OAuth: OAuthConfig{
			GoogleClientID:     getEnv("GOOGLE_CLIENT_ID", ""),
			GoogleClientSecret: getEnv("GOOGLE_CLIENT_SECRET", ""),
			GoogleCallbackURL:  getEnv("GOOGLE_CALLBACK_URL", "http://localhost:5000/api/auth/google/callback"),
			SessionKey:         getEnv("SESSION_KEY", ""),
			SecureCookies:      getBoolEnv("SECURE_COOKIES", false),
		},
		AI: AIConfig{
			Provider:     getEnv("AI_PROVIDER", "ollama"),
			OllamaURL:    getEnv("OLLAMA_URL", "http://localhost:11434"),
			Model:        getEnv("AI_MODEL", "gemma2:2b"),
			GoogleAPIKey: getEnv("API_KEY", ""),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: getFloatEnv("OTP_RATE_LIMIT_RPS", 0),
			Burst:             getIntEnv("OTP_RATE_LIMIT_BURST", 5),
		},
		LogLevel: getEnv("LOG_LEVEL", "info"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Mongo.URI == "" {
		return errors.New("MONGO_URI environment variable not set")
	}
	if c.Server.Port <= 0 {
		return errors.New("PORT must be a positive integer")
	}
	if c.Auth.BcryptCost < 4 || c.Auth.BcryptCost > 31 {
		return errors.New("BCRYPT_COST must be between 4 and 31")
	}
	if c.OTP.TTL <= 0 {
		return errors.New("OTP_TTL must be positive")
	}
	if c.OTP.MaxAttempts < 0 {
		return errors.New("OTP_MAX_ATTEMPTS must not be negative")
	}
	switch c.AI.Provider {
	case "ollama", "googleai":
	default:
		return errors.New("AI_PROVIDER must be either ollama or googleai")
	}
	return nil
}

// GoogleOAuthEnabled reports whether the server-side Google redirect flow can be offered.
func (c *OAuthConfig) GoogleOAuthEnabled() bool {
	return c.GoogleClientID != "" && c.GoogleClientSecret != ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	intValue, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return intValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return defaultValue
	}
	return f
}

func getBoolEnv(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return b
}

// getDurationEnv accepts Go duration strings ("90s", "10m") or a bare number of seconds.
func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	seconds, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return time.Duration(seconds) * time.Second
}

func getSliceEnv(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	if len(result) == 0 {
		return defaultValue
	}
	return result
}
