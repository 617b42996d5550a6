// Package config loads application configuration from an optional YAML
// file overlaid by environment variables. Environment always wins.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	ServerAddress string `yaml:"server_address"`
	Environment   string `yaml:"environment"`

	// Identity provider
	IdentityAPIKey   string `yaml:"identity_api_key"`
	IdentityBaseURL  string `yaml:"identity_base_url"`
	IdentityTokenURL string `yaml:"identity_token_url"`

	// Profile store
	ProfileStoreURL string `yaml:"profile_store_url"`

	// Profile cache TTL in seconds
	ProfileTTLSeconds int `yaml:"profile_ttl_seconds"`

	// Logging
	LogLevel string `yaml:"log_level"`

	// Feature flags
	EnableMetrics bool     `yaml:"enable_metrics"`
	EnableCORS    bool     `yaml:"enable_cors"`
	CORSOrigins   []string `yaml:"cors_origins"`
}

// LoadConfig loads configuration. When CONFIG_FILE names a YAML file it
// is read first; environment variables override its values.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		ServerAddress:     ":8080",
		Environment:       "development",
		IdentityBaseURL:   "https://identitytoolkit.googleapis.com",
		IdentityTokenURL:  "https://securetoken.googleapis.com",
		ProfileStoreURL:   "https://us-central1-lifecal-backend.cloudfunctions.net",
		ProfileTTLSeconds: 120,
		LogLevel:          "info",
		EnableMetrics:     true,
		EnableCORS:        true,
		CORSOrigins:       []string{"http://localhost:3000"},
	}

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	cfg.ServerAddress = getEnv("SERVER_ADDRESS", cfg.ServerAddress)
	cfg.Environment = getEnv("ENVIRONMENT", cfg.Environment)
	cfg.IdentityAPIKey = getEnv("IDENTITY_API_KEY", cfg.IdentityAPIKey)
	cfg.IdentityBaseURL = getEnv("IDENTITY_BASE_URL", cfg.IdentityBaseURL)
	cfg.IdentityTokenURL = getEnv("IDENTITY_TOKEN_URL", cfg.IdentityTokenURL)
	cfg.ProfileStoreURL = getEnv("PROFILE_STORE_URL", cfg.ProfileStoreURL)
	cfg.ProfileTTLSeconds = getEnvInt("PROFILE_TTL_SECONDS", cfg.ProfileTTLSeconds)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
	cfg.EnableMetrics = getEnvBool("ENABLE_METRICS", cfg.EnableMetrics)
	cfg.EnableCORS = getEnvBool("ENABLE_CORS", cfg.EnableCORS)

	// Validate required configuration
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if all required configuration is present
func (c *Config) Validate() error {
	if c.Environment == "production" {
		if c.IdentityAPIKey == "" {
			return fmt.Errorf("IDENTITY_API_KEY is required in production")
		}
		if c.ProfileStoreURL == "" {
			return fmt.Errorf("PROFILE_STORE_URL is required")
		}
	}
	if c.ProfileTTLSeconds <= 0 {
		return fmt.Errorf("profile TTL must be positive")
	}
	return nil
}

// IsDevelopment checks if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction checks if running in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool gets a boolean environment variable with a default value
func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value == "true" || value == "1" || value == "yes"
}

// getEnvInt gets an integer environment variable with a default value
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}
