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
	FrontendURL string
	DBPath      string

	// ReferenceTTL is the inactivity horizon after which context
	// references are evicted.
	ReferenceTTL  time.Duration
	SweepInterval time.Duration

	// Automation engine (n8n) webhook endpoint.
	N8NWebhookBaseURL string
	N8NAPIKey         string

	DeepgramAPIKey   string
	GoogleMapsAPIKey string

	CORSOrigins []string

	CommandLog CommandLogConfig
}

// CommandLogConfig controls NDJSON command transcript logging.
type CommandLogConfig struct {
	Enabled   bool
	Dir       string
	QueueSize int
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	queueSize := getEnvInt("COMMAND_LOG_QUEUE_SIZE", 1000)
	if queueSize <= 0 {
		queueSize = 1000
	}

	cfg := &Config{
		Port:              getEnv("PORT", "8000"),
		FrontendURL:       getEnv("FRONTEND_URL", ""),
		DBPath:            getEnv("DB_PATH", "./data/nexus.db"),
		ReferenceTTL:      getEnvDuration("REFERENCE_TTL", 7*24*time.Hour),
		SweepInterval:     getEnvDuration("REFERENCE_SWEEP_INTERVAL", time.Hour),
		N8NWebhookBaseURL: getEnv("N8N_WEBHOOK_BASE_URL", "http://localhost:5678/webhook"),
		N8NAPIKey:         getEnv("N8N_API_KEY", ""),
		DeepgramAPIKey:    getEnv("DEEPGRAM_API_KEY", ""),
		GoogleMapsAPIKey:  getEnv("GOOGLE_MAPS_API_KEY", ""),
		CORSOrigins:       splitOrigins(getEnv("CORS_ORIGINS", "http://localhost:3000")),
		CommandLog: CommandLogConfig{
			Enabled:   getEnvBool("COMMAND_LOG_ENABLED", true),
			Dir:       getEnv("COMMAND_LOG_DIR", "./data/logs/commands"),
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
	if c.N8NWebhookBaseURL == "" {
		return fmt.Errorf("N8N_WEBHOOK_BASE_URL cannot be empty")
	}
	if c.ReferenceTTL <= 0 {
		return fmt.Errorf("REFERENCE_TTL must be > 0")
	}
	if c.SweepInterval <= 0 {
		return fmt.Errorf("REFERENCE_SWEEP_INTERVAL must be > 0")
	}
	if c.CommandLog.Enabled && c.CommandLog.Dir == "" {
		return fmt.Errorf("COMMAND_LOG_DIR cannot be empty")
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.FrontendURL == "" ||
		strings.Contains(c.FrontendURL, "localhost") ||
		strings.Contains(c.FrontendURL, "127.0.0.1")
}

func splitOrigins(raw string) []string {
	var origins []string
	for _, o := range strings.Split(raw, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
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
