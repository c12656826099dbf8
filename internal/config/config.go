// Package config provides application configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Port        string
	APISecret   string // shared secret required on /api/v1 requests; empty disables auth
	FrontendURL string
	DBPath      string
	SessionTTL  time.Duration

	// Generation capability.
	GoogleAPIKey    string
	ModelName       string
	GenerateTimeout time.Duration

	// Final-report callback.
	CallbackURL    string
	CallbackAPIKey string

	// Engagement policy ceilings.
	StopThreshold int
	MaxTurns      int
	MaxEngagement time.Duration

	// PolicyPath optionally points at a YAML file overriding the built-in
	// persona catalog and keyword vocabulary.
	PolicyPath string

	Transcript TranscriptConfig
}

// TranscriptConfig controls NDJSON conversation logging.
type TranscriptConfig struct {
	Enabled   bool
	Dir       string
	QueueSize int
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	queueSize := getEnvInt("TRANSCRIPT_QUEUE_SIZE", 1000)
	if queueSize <= 0 {
		queueSize = 1000
	}

	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		APISecret:   getEnv("API_SECRET", ""),
		FrontendURL: getEnv("FRONTEND_URL", ""),
		DBPath:      getEnv("DB_PATH", "./data/honeytrap.db"),
		SessionTTL:  getEnvDuration("SESSION_TTL", 24*time.Hour),

		GoogleAPIKey:    getEnv("GOOGLE_API_KEY", ""),
		ModelName:       getEnv("MODEL_NAME", "gemini-2.0-flash"),
		GenerateTimeout: getEnvDuration("GENERATE_TIMEOUT", 20*time.Second),

		CallbackURL:    getEnv("CALLBACK_URL", ""),
		CallbackAPIKey: getEnv("CALLBACK_API_KEY", ""),

		StopThreshold: getEnvInt("STOP_THRESHOLD", 2),
		MaxTurns:      getEnvInt("MAX_TURNS", 15),
		MaxEngagement: getEnvDuration("MAX_ENGAGEMENT", 30*time.Minute),

		PolicyPath: getEnv("POLICY_PATH", ""),

		Transcript: TranscriptConfig{
			Enabled:   getEnvBool("TRANSCRIPT_ENABLED", true),
			Dir:       getEnv("TRANSCRIPT_DIR", "./data/logs/transcripts"),
			QueueSize: queueSize,
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.DBPath == "" {
		return fmt.Errorf("DB_PATH cannot be empty")
	}
	if c.ModelName == "" {
		return fmt.Errorf("MODEL_NAME cannot be empty")
	}
	if c.StopThreshold <= 0 {
		return fmt.Errorf("STOP_THRESHOLD must be > 0")
	}
	if c.MaxTurns <= 0 {
		return fmt.Errorf("MAX_TURNS must be > 0")
	}
	if c.MaxEngagement <= 0 {
		return fmt.Errorf("MAX_ENGAGEMENT must be > 0")
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("SESSION_TTL must be > 0")
	}
	if c.Transcript.Enabled && c.Transcript.Dir == "" {
		return fmt.Errorf("TRANSCRIPT_DIR cannot be empty")
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.FrontendURL == "" ||
		strings.Contains(c.FrontendURL, "localhost") ||
		strings.Contains(c.FrontendURL, "127.0.0.1")
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return d
}
