// File: internal/config/config.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the client application.
type Config struct {
	// Application
	AppEnv string `mapstructure:"APP_ENV"`

	// Backend API
	APIBaseURL  string        `mapstructure:"API_BASE_URL"`
	HTTPTimeout time.Duration `mapstructure:"HTTP_TIMEOUT_SECONDS"`

	// Google OAuth
	GoogleClientID     string `mapstructure:"GOOGLE_CLIENT_ID"`
	GoogleClientSecret string `mapstructure:"GOOGLE_CLIENT_SECRET"`

	// Local state persistence
	StateDBPath string `mapstructure:"STATE_DB_PATH"`

	// Logging
	LogLevel  string `mapstructure:"LOG_LEVEL"`
	LogFormat string `mapstructure:"LOG_FORMAT"`

	// Field uniqueness checks
	EmailCheckDebounce time.Duration `mapstructure:"EMAIL_CHECK_DEBOUNCE_MS"`
	PhoneCheckDebounce time.Duration `mapstructure:"PHONE_CHECK_DEBOUNCE_MS"`

	// Background session refresh
	SessionRefreshSchedule string `mapstructure:"SESSION_REFRESH_SCHEDULE"`
}

// Load attempts to load configuration from a .env file (if present) and environment variables.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("error loading .env file: %w", err)
		}
	}

	v := viper.New()

	// Set default values
	v.SetDefault("APP_ENV", "development")

	v.SetDefault("API_BASE_URL", "http://127.0.0.1:8000")
	v.SetDefault("HTTP_TIMEOUT_SECONDS", 30)

	v.SetDefault("GOOGLE_CLIENT_ID", "")
	v.SetDefault("GOOGLE_CLIENT_SECRET", "")

	v.SetDefault("STATE_DB_PATH", defaultStateDBPath())

	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "console")

	v.SetDefault("EMAIL_CHECK_DEBOUNCE_MS", 800)
	v.SetDefault("PHONE_CHECK_DEBOUNCE_MS", 1000)

	v.SetDefault("SESSION_REFRESH_SCHEDULE", "@every 10m")

	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshalling configuration: %w", err)
	}

	// Convert duration fields from their integer env representations.
	cfg.HTTPTimeout = time.Duration(v.GetInt("HTTP_TIMEOUT_SECONDS")) * time.Second
	cfg.EmailCheckDebounce = time.Duration(v.GetInt("EMAIL_CHECK_DEBOUNCE_MS")) * time.Millisecond
	cfg.PhoneCheckDebounce = time.Duration(v.GetInt("PHONE_CHECK_DEBOUNCE_MS")) * time.Millisecond

	if cfg.APIBaseURL == "" {
		return nil, fmt.Errorf("FATAL: API_BASE_URL is not set")
	}

	return &cfg, nil
}

// defaultStateDBPath places the state database under the user config
// directory, falling back to the working directory when it is unavailable.
func defaultStateDBPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "servicebook_state.db"
	}
	return filepath.Join(dir, "servicebook", "state.db")
}
