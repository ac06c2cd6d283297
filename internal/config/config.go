// Package config holds the engine configuration, loaded from defaults,
// an optional YAML file and environment variables, in that order.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration.
type Config struct {
	Server   ServerConfig   `json:"server" yaml:"server"`
	Database DatabaseConfig `json:"database" yaml:"database"`
	OpenAI   OpenAIConfig   `json:"openai" yaml:"openai"`
	Session  SessionConfig  `json:"session" yaml:"session"`
	Search   SearchConfig   `json:"search" yaml:"search"`
	Logging  LoggingConfig  `json:"logging" yaml:"logging"`
}

// ServerConfig represents the MCP server and health endpoint configuration.
type ServerConfig struct {
	Name       string `json:"name" yaml:"name"`
	Version    string `json:"version" yaml:"version"`
	HealthHost string `json:"health_host" yaml:"health_host"`
	HealthPort int    `json:"health_port" yaml:"health_port"`
}

// DatabaseConfig represents the PostgreSQL connection and pool settings.
type DatabaseConfig struct {
	URL                 string `json:"-" yaml:"-"` // DSN carries credentials; never serialized
	MinConns            int    `json:"min_conns" yaml:"min_conns"`
	MaxConns            int    `json:"max_conns" yaml:"max_conns"`
	CommandTimeoutSecs  int    `json:"command_timeout_seconds" yaml:"command_timeout_seconds"`
	StatementTimeoutSec int    `json:"statement_timeout_seconds" yaml:"statement_timeout_seconds"`
	SchemaPrefix        string `json:"schema_prefix" yaml:"schema_prefix"`
	SystemSchema        string `json:"system_schema" yaml:"system_schema"`
}

// OpenAIConfig represents the embedding and LLM collaborator settings.
type OpenAIConfig struct {
	APIKey              string  `json:"-" yaml:"-"` // Never serialize API key
	BaseURL             string  `json:"base_url" yaml:"base_url"`
	EmbeddingModel      string  `json:"embedding_model" yaml:"embedding_model"`
	EmbeddingDimensions int     `json:"embedding_dimensions" yaml:"embedding_dimensions"`
	EmbeddingMaxChars   int     `json:"embedding_max_chars" yaml:"embedding_max_chars"`
	CompletionModel     string  `json:"completion_model" yaml:"completion_model"`
	Temperature         float64 `json:"temperature" yaml:"temperature"`
	MaxTokens           int     `json:"max_tokens" yaml:"max_tokens"`
	RequestTimeoutSecs  int     `json:"request_timeout_seconds" yaml:"request_timeout_seconds"`
	RateLimitRPM        int     `json:"rate_limit_rpm" yaml:"rate_limit_rpm"`
}

// SessionConfig represents session lifecycle settings.
type SessionConfig struct {
	HandoverCutoffMins  int `json:"handover_cutoff_minutes" yaml:"handover_cutoff_minutes"`
	CleanupIntervalMins int `json:"cleanup_interval_minutes" yaml:"cleanup_interval_minutes"`
	ExpiryMins          int `json:"expiry_minutes" yaml:"expiry_minutes"`
}

// SearchConfig represents search behavior settings.
type SearchConfig struct {
	DefaultLimit     int `json:"default_limit" yaml:"default_limit"`
	MaxLimit         int `json:"max_limit" yaml:"max_limit"`
	StalenessDays    int `json:"staleness_days" yaml:"staleness_days"`
	LockRetryBudget  int `json:"lock_retry_budget" yaml:"lock_retry_budget"`
	SemanticMergeTop int `json:"semantic_merge_top" yaml:"semantic_merge_top"`
}

// LoggingConfig represents logging configuration.
type LoggingConfig struct {
	Level  string `json:"level" yaml:"level"`
	Format string `json:"format" yaml:"format"`
}

// HandoverCutoff returns the configured current/packaged handover boundary.
func (s *SessionConfig) HandoverCutoff() time.Duration {
	return time.Duration(s.HandoverCutoffMins) * time.Minute
}

// CleanupInterval returns how often the background cleanup task scans.
func (s *SessionConfig) CleanupInterval() time.Duration {
	return time.Duration(s.CleanupIntervalMins) * time.Minute
}

// Expiry returns how long an idle session survives before cleanup removes it.
func (s *SessionConfig) Expiry() time.Duration {
	return time.Duration(s.ExpiryMins) * time.Minute
}

// CommandTimeout returns the pooled-connection command timeout.
func (d *DatabaseConfig) CommandTimeout() time.Duration {
	return time.Duration(d.CommandTimeoutSecs) * time.Second
}

// StatementTimeout returns the per-statement timeout.
func (d *DatabaseConfig) StatementTimeout() time.Duration {
	return time.Duration(d.StatementTimeoutSec) * time.Second
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Name:       "dementia",
			Version:    "1.0.0",
			HealthHost: "localhost",
			HealthPort: 9180,
		},
		Database: DatabaseConfig{
			MinConns:            2,
			MaxConns:            10,
			CommandTimeoutSecs:  60,
			StatementTimeoutSec: 30,
			SchemaPrefix:        "dementia_",
			SystemSchema:        "dementia_system",
		},
		OpenAI: OpenAIConfig{
			EmbeddingModel:      "text-embedding-3-small",
			EmbeddingDimensions: 1024,
			EmbeddingMaxChars:   1020,
			CompletionModel:     "gpt-4o-mini",
			Temperature:         0.0,
			MaxTokens:           1024,
			RequestTimeoutSecs:  60,
			RateLimitRPM:        60,
		},
		Session: SessionConfig{
			HandoverCutoffMins:  120,
			CleanupIntervalMins: 15,
			ExpiryMins:          1440,
		},
		Search: SearchConfig{
			DefaultLimit:     10,
			MaxLimit:         100,
			StalenessDays:    30,
			LockRetryBudget:  3,
			SemanticMergeTop: 5,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// LoadConfig loads configuration from defaults, an optional YAML file named
// by DEMENTIA_CONFIG_FILE, and environment variables.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("error loading .env file: %w", err)
	}

	cfg := DefaultConfig()

	if path := os.Getenv("DEMENTIA_CONFIG_FILE"); path != "" {
		if err := loadYAML(cfg, path); err != nil {
			return nil, err
		}
	}

	loadFromEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func loadYAML(cfg *Config, path string) error {
	data, err := os.ReadFile(path) // #nosec G304 - operator-supplied config path
	if err != nil {
		return fmt.Errorf("error reading config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("error parsing config file %s: %w", path, err)
	}
	return nil
}

func loadFromEnv(cfg *Config) {
	setString(&cfg.Server.Name, "DEMENTIA_SERVER_NAME")
	setString(&cfg.Server.Version, "DEMENTIA_SERVER_VERSION")
	setString(&cfg.Server.HealthHost, "DEMENTIA_HEALTH_HOST")
	setInt(&cfg.Server.HealthPort, "DEMENTIA_HEALTH_PORT")

	setString(&cfg.Database.URL, "DEMENTIA_DATABASE_URL")
	if cfg.Database.URL == "" {
		setString(&cfg.Database.URL, "DATABASE_URL")
	}
	setInt(&cfg.Database.MinConns, "DEMENTIA_DB_MIN_CONNS")
	setInt(&cfg.Database.MaxConns, "DEMENTIA_DB_MAX_CONNS")
	setInt(&cfg.Database.CommandTimeoutSecs, "DEMENTIA_DB_COMMAND_TIMEOUT_SECONDS")
	setInt(&cfg.Database.StatementTimeoutSec, "DEMENTIA_DB_STATEMENT_TIMEOUT_SECONDS")

	setString(&cfg.OpenAI.APIKey, "OPENAI_API_KEY")
	setString(&cfg.OpenAI.BaseURL, "OPENAI_BASE_URL")
	setString(&cfg.OpenAI.EmbeddingModel, "DEMENTIA_EMBEDDING_MODEL")
	setInt(&cfg.OpenAI.EmbeddingDimensions, "DEMENTIA_EMBEDDING_DIMENSIONS")
	setString(&cfg.OpenAI.CompletionModel, "DEMENTIA_COMPLETION_MODEL")
	setInt(&cfg.OpenAI.RequestTimeoutSecs, "DEMENTIA_OPENAI_TIMEOUT_SECONDS")
	setInt(&cfg.OpenAI.RateLimitRPM, "DEMENTIA_OPENAI_RPM")

	setInt(&cfg.Session.HandoverCutoffMins, "DEMENTIA_HANDOVER_CUTOFF_MINUTES")
	setInt(&cfg.Session.CleanupIntervalMins, "DEMENTIA_CLEANUP_INTERVAL_MINUTES")

	setInt(&cfg.Search.DefaultLimit, "DEMENTIA_SEARCH_DEFAULT_LIMIT")
	setInt(&cfg.Search.StalenessDays, "DEMENTIA_STALENESS_DAYS")

	setString(&cfg.Logging.Level, "LOG_LEVEL")
	setString(&cfg.Logging.Format, "LOG_FORMAT")
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			*dst = i
		}
	}
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	if c.Database.URL == "" {
		return errors.New("database URL is required (DEMENTIA_DATABASE_URL)")
	}
	if c.Database.MinConns < 0 || c.Database.MaxConns <= 0 ||
		c.Database.MinConns > c.Database.MaxConns {
		return fmt.Errorf("invalid pool bounds: min=%d max=%d",
			c.Database.MinConns, c.Database.MaxConns)
	}
	if c.Database.SchemaPrefix == "" {
		return errors.New("schema prefix must not be empty")
	}
	if c.Database.SystemSchema == "" {
		return errors.New("system schema must not be empty")
	}
	if c.OpenAI.EmbeddingDimensions <= 0 {
		return fmt.Errorf("embedding dimensions must be positive, got %d",
			c.OpenAI.EmbeddingDimensions)
	}
	if c.Session.HandoverCutoffMins <= 0 {
		return errors.New("handover cutoff must be positive")
	}
	if c.Search.DefaultLimit <= 0 || c.Search.DefaultLimit > c.Search.MaxLimit {
		return fmt.Errorf("invalid search limits: default=%d max=%d",
			c.Search.DefaultLimit, c.Search.MaxLimit)
	}
	if c.Search.LockRetryBudget < 1 {
		return errors.New("lock retry budget must be at least 1")
	}
	return nil
}

// EmbeddingsEnabled reports whether the embedding collaborator is
// configured. The engine degrades gracefully without it.
func (c *Config) EmbeddingsEnabled() bool {
	return c.OpenAI.APIKey != ""
}
