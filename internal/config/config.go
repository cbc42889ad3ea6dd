/*
Package config loads runtime settings for the API from the process environment.
Values are read once at startup; nothing else in the service touches os.Getenv.
*/
package config

import (
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/labstack/gommon/bytes"
	"github.com/spf13/viper"
)

// DefaultFallbackModels is the floor candidate list used when the capability
// listing cannot be fetched.
var DefaultFallbackModels = []string{"gemini-2.0-flash", "gemini-1.5-flash", "gemini-1.5-pro"}

// Config holds every setting the API needs.
type Config struct {
	Port int

	// Gemini
	GeminiAPIKey         string
	GeminiBaseURL        string
	GeminiModel          string
	GeminiFallbackModels []string
	GeminiTimeout        time.Duration
	GeminiMaxCandidates  int
	GeminiModelCacheTTL  time.Duration

	// Language used for prompts and user-facing fallback messages ("en" or "id").
	Language string

	// SessionSecret signs and verifies bearer tokens.
	SessionSecret string

	Database DatabaseConfig

	LogLevel  string
	LogFormat string

	// RateLimitRPS of 0 disables per-IP rate limiting.
	RateLimitRPS   float64
	RateLimitBurst int
	MaxUploadSize  string

	// TrustedProxies lists the CIDRs allowed to set X-Forwarded-For.
	// When empty the client address is taken from the connection only.
	TrustedProxies []string
}

// DatabaseConfig mirrors the BLUEPRINT_DB_* variables. An empty Host disables persistence.
type DatabaseConfig struct {
	Host     string
	Port     string
	Database string
	Username string
	Password string
	Schema   string
}

// Enabled reports whether a database was configured.
func (d DatabaseConfig) Enabled() bool {
	return d.Host != ""
}

// ConnString builds the pgx connection URL.
func (d DatabaseConfig) ConnString() string {
	schema := d.Schema
	if schema == "" {
		schema = "public"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable&search_path=%s",
		d.Username, d.Password, d.Host, d.Port, d.Database, schema)
}

// Load reads the environment and applies defaults.
func Load() (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("PORT", 8080)
	v.SetDefault("GEMINI_API_KEY", "")
	v.SetDefault("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com/v1beta")
	v.SetDefault("GEMINI_MODEL", "gemini-2.5-flash")
	v.SetDefault("GEMINI_FALLBACK_MODELS", strings.Join(DefaultFallbackModels, ","))
	v.SetDefault("GEMINI_TIMEOUT", "30s")
	v.SetDefault("GEMINI_MAX_CANDIDATES", 5)
	v.SetDefault("GEMINI_MODEL_CACHE_TTL", "10m")
	v.SetDefault("AI_LANGUAGE", "en")
	v.SetDefault("SESSION_SECRET", "")
	v.SetDefault("BLUEPRINT_DB_HOST", "")
	v.SetDefault("BLUEPRINT_DB_PORT", "5432")
	v.SetDefault("BLUEPRINT_DB_DATABASE", "")
	v.SetDefault("BLUEPRINT_DB_USERNAME", "")
	v.SetDefault("BLUEPRINT_DB_PASSWORD", "")
	v.SetDefault("BLUEPRINT_DB_SCHEMA", "public")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
	v.SetDefault("RATE_LIMIT_RPS", 2.0)
	v.SetDefault("RATE_LIMIT_BURST", 10)
	v.SetDefault("MAX_UPLOAD_SIZE", "10M")
	v.SetDefault("TRUSTED_PROXIES", "")

	cfg := &Config{
		Port:                 v.GetInt("PORT"),
		GeminiAPIKey:         strings.TrimSpace(v.GetString("GEMINI_API_KEY")),
		GeminiBaseURL:        strings.TrimRight(v.GetString("GEMINI_BASE_URL"), "/"),
		GeminiModel:          strings.TrimSpace(v.GetString("GEMINI_MODEL")),
		GeminiFallbackModels: splitList(v.GetString("GEMINI_FALLBACK_MODELS")),
		GeminiTimeout:        v.GetDuration("GEMINI_TIMEOUT"),
		GeminiMaxCandidates:  v.GetInt("GEMINI_MAX_CANDIDATES"),
		GeminiModelCacheTTL:  v.GetDuration("GEMINI_MODEL_CACHE_TTL"),
		Language:             strings.ToLower(strings.TrimSpace(v.GetString("AI_LANGUAGE"))),
		SessionSecret:        v.GetString("SESSION_SECRET"),
		Database: DatabaseConfig{
			Host:     v.GetString("BLUEPRINT_DB_HOST"),
			Port:     v.GetString("BLUEPRINT_DB_PORT"),
			Database: v.GetString("BLUEPRINT_DB_DATABASE"),
			Username: v.GetString("BLUEPRINT_DB_USERNAME"),
			Password: v.GetString("BLUEPRINT_DB_PASSWORD"),
			Schema:   v.GetString("BLUEPRINT_DB_SCHEMA"),
		},
		LogLevel:       strings.ToLower(v.GetString("LOG_LEVEL")),
		LogFormat:      strings.ToLower(v.GetString("LOG_FORMAT")),
		RateLimitRPS:   v.GetFloat64("RATE_LIMIT_RPS"),
		RateLimitBurst: v.GetInt("RATE_LIMIT_BURST"),
		MaxUploadSize:  strings.TrimSpace(v.GetString("MAX_UPLOAD_SIZE")),
		TrustedProxies: splitList(v.GetString("TRUSTED_PROXIES")),
	}

	if len(cfg.GeminiFallbackModels) == 0 {
		cfg.GeminiFallbackModels = append([]string(nil), DefaultFallbackModels...)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// AIConfigured reports whether the upstream API key is present.
func (c *Config) AIConfigured() bool {
	return c.GeminiAPIKey != ""
}

func (c *Config) validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid PORT %d", c.Port)
	}
	switch c.Language {
	case "en", "id":
	default:
		return fmt.Errorf("unsupported AI_LANGUAGE %q (want en or id)", c.Language)
	}
	if c.GeminiTimeout <= 0 {
		return fmt.Errorf("GEMINI_TIMEOUT must be positive")
	}
	if c.GeminiMaxCandidates <= 0 {
		return fmt.Errorf("GEMINI_MAX_CANDIDATES must be positive")
	}
	if c.GeminiModelCacheTTL < 0 {
		return fmt.Errorf("GEMINI_MODEL_CACHE_TTL cannot be negative")
	}
	if c.RateLimitRPS < 0 || c.RateLimitBurst < 0 {
		return fmt.Errorf("rate limit settings cannot be negative")
	}
	if c.MaxUploadSize != "" {
		if _, err := bytes.Parse(c.MaxUploadSize); err != nil {
			return fmt.Errorf("invalid MAX_UPLOAD_SIZE %q: %w", c.MaxUploadSize, err)
		}
	}
	for _, cidr := range c.TrustedProxies {
		if _, _, err := net.ParseCIDR(cidr); err != nil {
			return fmt.Errorf("invalid TRUSTED_PROXIES entry %q: %w", cidr, err)
		}
	}
	return nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
