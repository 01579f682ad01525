package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	DatabaseURI   string
	TelegramToken string

	AIAPIKey     string
	AIBaseURL    string
	AIModel      string
	AITimeout    time.Duration
	ModelCatalog string

	WebhookURL    string
	WebhookSecret string
	ListenAddr    string

	LogLevel  string
	LogFormat string
	DevMode   bool

	Timezone *time.Location

	HistoryStoreLimit   int
	HistoryRequestLimit int
	HistoryPolicy       string

	MaxMessageLength  int
	ReconcileInterval time.Duration
	NewsSweepInterval time.Duration
	NewsExactlyOnce   bool
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		// .env file is optional in production
	}

	cfg := &Config{
		DatabaseURI:   os.Getenv("DATABASE_URI"),
		TelegramToken: os.Getenv("TELEGRAM_TOKEN"),

		AIAPIKey:     getEnvOrDefault("AI_API_KEY", os.Getenv("PERPLEXITY_API_KEY")),
		AIBaseURL:    getEnvOrDefault("AI_BASE_URL", "https://api.perplexity.ai"),
		AIModel:      getEnvOrDefault("AI_MODEL", "sonar-pro"),
		ModelCatalog: os.Getenv("MODEL_CATALOG"),

		WebhookURL:    os.Getenv("WEBHOOK_URL"),
		WebhookSecret: os.Getenv("WEBHOOK_SECRET"),
		ListenAddr:    getEnvOrDefault("LISTEN_ADDR", ":8000"),

		LogLevel:  getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat: getEnvOrDefault("LOG_FORMAT", "text"),

		HistoryPolicy: strings.ToLower(getEnvOrDefault("HISTORY_POLICY", "replace")),
	}

	var err error
	if cfg.AITimeout, err = getEnvDuration("AI_TIMEOUT", 90*time.Second); err != nil {
		return nil, err
	}
	if cfg.DevMode, err = getEnvBool("DEV_MODE", false); err != nil {
		return nil, err
	}
	if cfg.HistoryStoreLimit, err = getEnvInt("HISTORY_STORE_LIMIT", 20); err != nil {
		return nil, err
	}
	if cfg.HistoryRequestLimit, err = getEnvInt("HISTORY_REQUEST_LIMIT", 10); err != nil {
		return nil, err
	}
	if cfg.MaxMessageLength, err = getEnvInt("MAX_MESSAGE_LENGTH", 4000); err != nil {
		return nil, err
	}
	if cfg.ReconcileInterval, err = getEnvDuration("RECONCILE_INTERVAL", 10*time.Minute); err != nil {
		return nil, err
	}
	if cfg.NewsSweepInterval, err = getEnvDuration("NEWS_SWEEP_INTERVAL", 5*time.Minute); err != nil {
		return nil, err
	}
	if cfg.NewsExactlyOnce, err = getEnvBool("NEWS_EXACTLY_ONCE", false); err != nil {
		return nil, err
	}

	tz := getEnvOrDefault("TIMEZONE", "UTC")
	if cfg.Timezone, err = time.LoadLocation(tz); err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE %q: %w", tz, err)
	}

	return cfg, nil
}

// Validate checks the settings the process cannot start without.
func (c *Config) Validate() error {
	if c.DatabaseURI == "" {
		return fmt.Errorf("DATABASE_URI is required")
	}
	if c.TelegramToken == "" {
		return fmt.Errorf("TELEGRAM_TOKEN is required")
	}
	if c.HistoryPolicy != "replace" && c.HistoryPolicy != "append" {
		return fmt.Errorf("HISTORY_POLICY must be replace or append, got %q", c.HistoryPolicy)
	}
	if c.HistoryStoreLimit < 1 || c.HistoryRequestLimit < 1 {
		return fmt.Errorf("history limits must be positive")
	}
	if c.MaxMessageLength < 100 || c.MaxMessageLength > 4096 {
		return fmt.Errorf("MAX_MESSAGE_LENGTH must be between 100 and 4096")
	}
	if c.WebhookURL != "" && !strings.HasPrefix(c.WebhookURL, "https://") {
		return fmt.Errorf("WEBHOOK_URL must use https")
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getEnvBool(key string, defaultValue bool) (bool, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
