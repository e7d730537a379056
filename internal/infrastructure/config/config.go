// Package config provides centralized configuration management.
//
// Configuration can be loaded from:
//  1. YAML file (config.yaml)
//  2. Environment variables (fallback)
//
// Missing settings take their defaults in both cases.
//
// Example usage:
//
//	cfg := config.LoadOrEnv()
//	if err := cfg.Validate(); err != nil {
//		log.Fatal(err)
//	}
//	dbPath := cfg.Storage.DatabasePath
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/eshaffer321/expense-reconciler/internal/domain/categorizer"
	"github.com/eshaffer321/expense-reconciler/internal/domain/model"
)

// Config represents the entire application configuration
type Config struct {
	Storage        StorageConfig        `yaml:"storage"`
	Reconciliation ReconciliationConfig `yaml:"reconciliation"`
	Categorizer    CategorizerConfig    `yaml:"categorizer"`
	API            APIConfig            `yaml:"api"`
	Observability  ObservabilityConfig  `yaml:"observability"`
}

// StorageConfig holds database configuration
type StorageConfig struct {
	DatabasePath string `yaml:"database_path"`
}

// ReconciliationConfig holds the matching thresholds
type ReconciliationConfig struct {
	MinScoreThreshold      int `yaml:"min_score_threshold"`
	AutoReconcileThreshold int `yaml:"auto_reconcile_threshold"`
	FuzzyTokenMinLength    int `yaml:"fuzzy_token_min_length"`
	Workers                int `yaml:"workers"` // 0 = one per CPU
}

// CategorizerConfig holds the keyword rules used to tag records on import
type CategorizerConfig struct {
	Enabled       bool               `yaml:"enabled"`
	MinConfidence float64            `yaml:"min_confidence"`
	Rules         []categorizer.Rule `yaml:"rules"`
}

// APIConfig holds HTTP server settings
type APIConfig struct {
	Port           int      `yaml:"port"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	Logging LoggingConfig `yaml:"logging"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "text" or "json"
}

// Default returns the configuration used when nothing is set
func Default() *Config {
	return &Config{
		Storage: StorageConfig{
			DatabasePath: "reconcile.db",
		},
		Reconciliation: ReconciliationConfig{
			MinScoreThreshold:      model.DefaultMinScore,
			AutoReconcileThreshold: model.DefaultAutoThreshold,
			FuzzyTokenMinLength:    model.DefaultFuzzyTokenMinLength,
		},
		Categorizer: CategorizerConfig{
			MinConfidence: 0.8,
		},
		API: APIConfig{
			Port:           8085,
			AllowedOrigins: []string{"http://localhost:3000"},
		},
		Observability: ObservabilityConfig{
			Logging: LoggingConfig{
				Level:  "info",
				Format: "text",
			},
		},
	}
}

// Load reads and parses the config file. Keys absent from the file keep
// their default value.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Expand environment variables (e.g., ${RECONCILE_DB_PATH})
	expanded := os.ExpandEnv(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	return cfg, nil
}

// LoadFromEnv loads configuration from environment variables only
func LoadFromEnv() *Config {
	cfg := Default()
	cfg.Storage.DatabasePath = getEnv("RECONCILE_DB_PATH", cfg.Storage.DatabasePath)
	cfg.Reconciliation.MinScoreThreshold = getEnvInt("RECONCILE_MIN_SCORE", cfg.Reconciliation.MinScoreThreshold)
	cfg.Reconciliation.AutoReconcileThreshold = getEnvInt("RECONCILE_AUTO_THRESHOLD", cfg.Reconciliation.AutoReconcileThreshold)
	cfg.Reconciliation.FuzzyTokenMinLength = getEnvInt("RECONCILE_FUZZY_MIN_LENGTH", cfg.Reconciliation.FuzzyTokenMinLength)
	cfg.Reconciliation.Workers = getEnvInt("RECONCILE_WORKERS", cfg.Reconciliation.Workers)
	cfg.API.Port = getEnvInt("RECONCILE_API_PORT", cfg.API.Port)
	cfg.Observability.Logging.Level = getEnv("LOG_LEVEL", cfg.Observability.Logging.Level)
	cfg.Observability.Logging.Format = getEnv("LOG_FORMAT", cfg.Observability.Logging.Format)
	return cfg
}

// LoadOrEnv tries to load from config.yaml, falls back to environment variables
func LoadOrEnv() *Config {
	return LoadOrEnv_WithPath("config.yaml")
}

// LoadOrEnv_WithPath tries to load from specified path, falls back to environment variables
func LoadOrEnv_WithPath(path string) *Config {
	if cfg, err := Load(path); err == nil {
		return cfg
	}
	return LoadFromEnv()
}

// Validate checks the settings that would make a run meaningless.
// It returns a *model.ConfigurationError.
func (c *Config) Validate() error {
	r := c.Reconciliation
	if err := model.ValidateThresholds(r.MinScoreThreshold, r.AutoReconcileThreshold); err != nil {
		return err
	}
	if r.FuzzyTokenMinLength < 1 {
		return &model.ConfigurationError{Field: "fuzzy_token_min_length", Reason: "must be at least 1"}
	}
	if r.Workers < 0 {
		return &model.ConfigurationError{Field: "workers", Reason: "must not be negative"}
	}
	if c.Storage.DatabasePath == "" {
		return &model.ConfigurationError{Field: "database_path", Reason: "is required"}
	}
	if c.Categorizer.MinConfidence < 0 || c.Categorizer.MinConfidence > 1 {
		return &model.ConfigurationError{Field: "categorizer.min_confidence", Reason: "must be between 0 and 1"}
	}
	if c.API.Port < 0 || c.API.Port > 65535 {
		return &model.ConfigurationError{Field: "api.port", Reason: "must be a valid TCP port"}
	}
	return nil
}

// getEnv retrieves an environment variable with a fallback default
func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

// getEnvInt retrieves an integer environment variable with a fallback default
func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		var result int
		if _, err := fmt.Sscanf(val, "%d", &result); err == nil {
			return result
		}
	}
	return fallback
}
