package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/pulsewatch/social-ingest/internal/privacy"
)

// Config holds all configuration for the collector.
type Config struct {
	// Server configuration
	Port  string
	Debug bool

	// Platform credentials
	TwitterBearerToken   string
	RedditClientID       string
	RedditClientSecret   string
	YouTubeAPIKey        string
	InstagramAccessToken string
	TelegramBotToken     string

	// Privacy settings, shared by reference across all connectors
	Privacy *privacy.Config
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Port:  getEnv("PORT", "8080"),
		Debug: getBoolEnv("DEBUG", false),

		TwitterBearerToken:   getEnv("TWITTER_BEARER_TOKEN", ""),
		RedditClientID:       getEnv("REDDIT_CLIENT_ID", ""),
		RedditClientSecret:   getEnv("REDDIT_CLIENT_SECRET", ""),
		YouTubeAPIKey:        getEnv("YOUTUBE_API_KEY", ""),
		InstagramAccessToken: getEnv("INSTAGRAM_ACCESS_TOKEN", ""),
		TelegramBotToken:     getEnv("TELEGRAM_BOT_TOKEN", ""),

		Privacy: &privacy.Config{
			Salt:                   getEnv("PRIVACY_SALT", "default_salt_change_in_production"),
			LocationPrecisionKM:    getFloatEnv("LOCATION_PRECISION_KM", 10.0),
			RetentionPolicy:        getEnv("RETENTION_POLICY", "2_years"),
			FilterSensitiveContent: getBoolEnv("FILTER_SENSITIVE_CONTENT", true),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Privacy.Salt == "" {
		return fmt.Errorf("PRIVACY_SALT must not be empty")
	}
	if c.Privacy.LocationPrecisionKM <= 0 {
		return fmt.Errorf("LOCATION_PRECISION_KM must be positive")
	}
	return nil
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}
