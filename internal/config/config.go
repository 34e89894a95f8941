package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration values.
type Config struct {
	Secret         string
	DatabaseDSN    string
	HTTPPort       string
	BackendURL     string
	BackendTimeout time.Duration
	RedisAddr      string
	RedisPassword  string
	AdminEmail     string
	AdminPassword  string
	AllowedOrigins []string
	LogLevel       string
	OpenAIBaseURL  string
	OpenAIAPIKey   string
	OpenAIModel    string
	Warnings       []string
}

// Load reads configuration from the environment, after merging an optional
// .env file, with reasonable defaults.
func Load() Config {
	_ = godotenv.Load()
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from an arbitrary lookup function.
func FromEnv(getenv func(string) string) Config {
	get := func(key, fallback string) string {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			return v
		}
		return fallback
	}

	cfg := Config{
		Secret:        get("SECRET", "dev_secret"),
		DatabaseDSN:   get("DATABASE_DSN", "file:pharmfinder.db?_pragma=busy_timeout(5000)"),
		HTTPPort:      get("HTTP_PORT", "8080"),
		BackendURL:    strings.TrimRight(get("BACKEND_URL", "http://127.0.0.1:3001/api"), "/"),
		RedisAddr:     get("REDIS_ADDR", ""),
		RedisPassword: get("REDIS_PASSWORD", ""),
		AdminEmail:    strings.ToLower(get("ADMIN_EMAIL", "")),
		AdminPassword: get("ADMIN_PASSWORD", ""),
		LogLevel:      get("LOG_LEVEL", "info"),
		OpenAIBaseURL: get("OPENAI_BASE_URL", ""),
		OpenAIAPIKey:  get("OPENAI_API_KEY", ""),
		OpenAIModel:   get("OPENAI_MODEL", "gpt-4o-mini"),
	}

	// Validate that port is numeric.
	if _, err := strconv.Atoi(cfg.HTTPPort); err != nil {
		cfg.Warnings = append(cfg.Warnings, "invalid HTTP_PORT value "+strconv.Quote(cfg.HTTPPort)+", defaulting to 8080")
		cfg.HTTPPort = "8080"
	}

	cfg.BackendTimeout = 30 * time.Second
	if raw := get("BACKEND_TIMEOUT", ""); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			cfg.Warnings = append(cfg.Warnings, "invalid BACKEND_TIMEOUT value "+strconv.Quote(raw)+", defaulting to 30s")
		} else {
			cfg.BackendTimeout = d
		}
	}

	for _, origin := range strings.Split(get("ALLOWED_ORIGINS", "*"), ",") {
		if o := strings.TrimSpace(origin); o != "" {
			cfg.AllowedOrigins = append(cfg.AllowedOrigins, o)
		}
	}

	return cfg
}

// AIEnabled reports whether an LLM endpoint is configured.
func (c Config) AIEnabled() bool {
	return c.OpenAIAPIKey != ""
}
