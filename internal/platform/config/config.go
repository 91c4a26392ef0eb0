// Package config loads application configuration from environment variables.
// All variables use the MINDSHIFT_ prefix.
package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/crypto/blake2b"
)

// Config holds all application configuration.
type Config struct {
	Server      ServerConfig
	Database    DatabaseConfig
	Cache       CacheConfig
	AI          AIConfig
	Scraper     ScraperConfig
	Session     SessionConfig
	Log         LogConfig
	PromptsPath string
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int
	Host            string
	RateLimitPerMin int // generation requests per client IP per minute
}

// DatabaseConfig holds PostgreSQL connection settings for the analytics event sink.
// An empty URL disables the sink.
type DatabaseConfig struct {
	URL      string
	MaxConns int
	MinConns int
}

// CacheConfig holds Redis connection settings.
type CacheConfig struct {
	URL string
}

// AIConfig holds configuration for the generative-text providers.
type AIConfig struct {
	OpenAI             OpenAIConfig
	Ollama             OllamaConfig
	SessionTokenBudget int64 // 0 means unlimited
}

// OpenAIConfig holds OpenAI (or OpenAI-compatible) provider settings.
type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

// OllamaConfig holds self-hosted Ollama settings.
type OllamaConfig struct {
	Enabled bool
	URL     string
	Model   string
}

// ScraperConfig holds course page fetch settings.
type ScraperConfig struct {
	UserAgent         string
	Timeout           time.Duration
	RequestsPerSecond float64 // 0 means unlimited
	LearnSelector     string
	SkillsSelector    string
}

// SessionConfig holds learner session settings.
type SessionConfig struct {
	Store string // "memory" or "redis"
	TTL   time.Duration
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string
	Format string
	File   string
}

// LoadDotEnv loads variables from a .env file without overriding the
// environment. A missing file is not an error.
func LoadDotEnv(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}

// Load reads configuration from environment variables with MINDSHIFT_ prefix.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:            envInt("MINDSHIFT_SERVER_PORT", 8080),
			Host:            envStr("MINDSHIFT_SERVER_HOST", "0.0.0.0"),
			RateLimitPerMin: envInt("MINDSHIFT_SERVER_RATE_LIMIT_PER_MIN", 20),
		},
		Database: DatabaseConfig{
			URL:      envStr("MINDSHIFT_DATABASE_URL", ""),
			MaxConns: envInt("MINDSHIFT_DATABASE_MAX_CONNS", 10),
			MinConns: envInt("MINDSHIFT_DATABASE_MIN_CONNS", 1),
		},
		Cache: CacheConfig{
			URL: envStr("MINDSHIFT_CACHE_URL", "redis://localhost:6379"),
		},
		AI: AIConfig{
			OpenAI: OpenAIConfig{
				APIKey:  envStr("MINDSHIFT_AI_OPENAI_API_KEY", ""),
				BaseURL: envStr("MINDSHIFT_AI_OPENAI_BASE_URL", "https://api.openai.com/v1"),
				Model:   envStr("MINDSHIFT_AI_OPENAI_MODEL", "gpt-3.5-turbo"),
			},
			Ollama: OllamaConfig{
				Enabled: envBool("MINDSHIFT_AI_OLLAMA_ENABLED", false),
				URL:     envStr("MINDSHIFT_AI_OLLAMA_URL", "http://localhost:11434"),
				Model:   envStr("MINDSHIFT_AI_OLLAMA_MODEL", "llama3:8b"),
			},
			SessionTokenBudget: int64(envInt("MINDSHIFT_AI_SESSION_TOKEN_BUDGET", 0)),
		},
		Scraper: ScraperConfig{
			UserAgent:         envStr("MINDSHIFT_SCRAPER_USER_AGENT", "Mozilla/5.0"),
			Timeout:           envDuration("MINDSHIFT_SCRAPER_TIMEOUT", 20*time.Second),
			RequestsPerSecond: envFloat("MINDSHIFT_SCRAPER_RPS", 2),
			LearnSelector:     envStr("MINDSHIFT_SCRAPER_LEARN_SELECTOR", "section.css-1t957yb li"),
			SkillsSelector:    envStr("MINDSHIFT_SCRAPER_SKILLS_SELECTOR", "div.css-1m3kxpf span"),
		},
		Session: SessionConfig{
			Store: envStr("MINDSHIFT_SESSION_STORE", "memory"),
			TTL:   envDuration("MINDSHIFT_SESSION_TTL", 2*time.Hour),
		},
		Log: LogConfig{
			Level:  envStr("MINDSHIFT_LOG_LEVEL", "info"),
			Format: envStr("MINDSHIFT_LOG_FORMAT", "json"),
			File:   envStr("MINDSHIFT_LOG_FILE", ""),
		},
		PromptsPath: envStr("MINDSHIFT_PROMPTS_PATH", ""),
	}

	return cfg, nil
}

// Validate checks that configuration values are usable. A missing AI
// provider is not an error; callers warn about it via HasAIProvider.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("MINDSHIFT_SERVER_PORT must be between 1 and 65535, got %d", c.Server.Port)
	}

	if c.Session.Store != "memory" && c.Session.Store != "redis" {
		return fmt.Errorf("MINDSHIFT_SESSION_STORE must be 'memory' or 'redis', got %q", c.Session.Store)
	}

	if c.Session.TTL <= 0 {
		return fmt.Errorf("MINDSHIFT_SESSION_TTL must be positive")
	}

	if c.Log.Format != "json" && c.Log.Format != "text" {
		return fmt.Errorf("MINDSHIFT_LOG_FORMAT must be 'json' or 'text', got %q", c.Log.Format)
	}

	return nil
}

// HasAIProvider returns true if at least one AI provider is configured.
func (c *Config) HasAIProvider() bool {
	return c.AI.OpenAI.APIKey != "" || c.AI.Ollama.Enabled
}

// Fingerprint returns a short, non-reversible identifier for a secret so it
// can appear in logs.
func Fingerprint(secret string) string {
	if secret == "" {
		return ""
	}
	sum := blake2b.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:4])
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		return strings.EqualFold(v, "true") || v == "1"
	}
	return fallback
}

// envDuration accepts Go duration strings ("90s", "2h").
func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
