// Package config provides unified configuration for the tutorflow library.
// Precedence: defaults, then YAML file, then environment variables prefixed
// with TUTORFLOW_.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the complete tutorflow configuration.
type Config struct {
	// Retrieval controls memory ranking and the retrieval cache.
	Retrieval RetrievalConfig `yaml:"retrieval"`

	// ContextWindow controls token budgeting for model calls.
	ContextWindow ContextWindowConfig `yaml:"context_window"`

	// Significance controls which turns are persisted as memories.
	Significance SignificanceConfig `yaml:"significance"`

	// Compaction controls background memory summarization.
	Compaction CompactionConfig `yaml:"compaction"`

	// Database configures the persistent memory store.
	Database DatabaseConfig `yaml:"database"`

	// Redis configures the conversation history log store.
	Redis RedisConfig `yaml:"redis"`

	// Log configures the zap logger.
	Log LogConfig `yaml:"log"`
}

// RetrievalConfig holds memory retrieval scoring weights.
// The weights are empirically chosen; treat them as tunables, not invariants.
type RetrievalConfig struct {
	KeywordWeight     float64       `yaml:"keyword_weight"`
	RecencyWeight     float64       `yaml:"recency_weight"`
	ImportanceWeight  float64       `yaml:"importance_weight"`
	TypeWeight        float64       `yaml:"type_weight"`
	MaxMemories       int           `yaml:"max_memories"`
	MinRelevanceScore float64       `yaml:"min_relevance_score"`
	CacheTTL          time.Duration `yaml:"cache_ttl"`
}

// ContextWindowConfig holds token budget settings for one completion call.
type ContextWindowConfig struct {
	MaxTokens           int `yaml:"max_tokens"`
	ReservedTokens      int `yaml:"reserved_tokens"` // reserved for the model response
	MinMessagesRequired int `yaml:"min_messages_required"`
	FunctionToolTokens  int `yaml:"function_tool_tokens"` // estimated cost per tool schema
	MaxHistory          int `yaml:"max_history"`          // rolling window bound
}

// SignificanceConfig holds thresholds for the significance classifier.
type SignificanceConfig struct {
	Threshold         float64 `yaml:"threshold"`
	EmotionalWeight   float64 `yaml:"emotional_weight"`
	PersonalWeight    float64 `yaml:"personal_weight"`
	EducationalWeight float64 `yaml:"educational_weight"`
	QuestionWeight    float64 `yaml:"question_weight"`
	MinMessageLength  int     `yaml:"min_message_length"`
	MinResponseLength int     `yaml:"min_response_length"`
}

// CompactionConfig holds background summarization settings.
type CompactionConfig struct {
	BatchSize              int  `yaml:"batch_size"`
	AgeThresholdDays       int  `yaml:"age_threshold_days"`
	MinMemoriesForSummary  int  `yaml:"min_memories_for_summary"`
	PreserveHighImportance bool `yaml:"preserve_high_importance"`
	MaxSummaryLength       int  `yaml:"max_summary_length"`
}

// DatabaseConfig configures the GORM-backed memory store.
type DatabaseConfig struct {
	// Driver selects the dialect: sqlite, postgres, mysql.
	Driver          string        `yaml:"driver"`
	DSN             string        `yaml:"dsn"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// RedisConfig configures the Redis conversation history store.
type RedisConfig struct {
	Addr      string `yaml:"addr"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	PoolSize  int    `yaml:"pool_size"`
	KeyPrefix string `yaml:"key_prefix"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, console
}

// Default returns the default configuration.
func Default() Config {
	return Config{
		Retrieval: RetrievalConfig{
			KeywordWeight:     1.0,
			RecencyWeight:     0.8,
			ImportanceWeight:  1.2,
			TypeWeight:        0.6,
			MaxMemories:       5,
			MinRelevanceScore: 0.1,
			CacheTTL:          5 * time.Minute,
		},
		ContextWindow: ContextWindowConfig{
			MaxTokens:           8000,
			ReservedTokens:      1000,
			MinMessagesRequired: 3,
			FunctionToolTokens:  200,
			MaxHistory:          20,
		},
		Significance: SignificanceConfig{
			Threshold:         0.3,
			EmotionalWeight:   1.5,
			PersonalWeight:    1.3,
			EducationalWeight: 1.1,
			QuestionWeight:    1.2,
			MinMessageLength:  10,
			MinResponseLength: 20,
		},
		Compaction: CompactionConfig{
			BatchSize:              10,
			AgeThresholdDays:       30,
			MinMemoriesForSummary:  5,
			PreserveHighImportance: true,
			MaxSummaryLength:       500,
		},
		Database: DatabaseConfig{
			Driver:          "sqlite",
			DSN:             "tutorflow.db",
			MaxOpenConns:    10,
			MaxIdleConns:    2,
			ConnMaxLifetime: time.Hour,
		},
		Redis: RedisConfig{
			Addr:      "localhost:6379",
			DB:        0,
			PoolSize:  10,
			KeyPrefix: "tutorflow:",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load reads configuration from an optional YAML file and applies environment
// overrides on top of the defaults.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config file: %w", err)
		}
	}

	applyEnvOverrides(&cfg)

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks configuration invariants.
func (c Config) Validate() error {
	if c.ContextWindow.MaxTokens <= 0 {
		return fmt.Errorf("context_window.max_tokens must be positive")
	}
	if c.ContextWindow.ReservedTokens < 0 {
		return fmt.Errorf("context_window.reserved_tokens must be non-negative")
	}
	if c.ContextWindow.MaxHistory <= 0 {
		return fmt.Errorf("context_window.max_history must be positive")
	}
	if c.Retrieval.MaxMemories <= 0 {
		return fmt.Errorf("retrieval.max_memories must be positive")
	}
	if c.Compaction.BatchSize < c.Compaction.MinMemoriesForSummary {
		return fmt.Errorf("compaction.batch_size must be >= min_memories_for_summary")
	}
	switch c.Database.Driver {
	case "sqlite", "postgres", "mysql", "":
	default:
		return fmt.Errorf("database.driver %q not supported", c.Database.Driver)
	}
	return nil
}

// applyEnvOverrides overrides a small set of operational scalars from the
// environment. Scoring weights are file-only; they change together or not at
// all.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("TUTORFLOW_DATABASE_DRIVER"); v != "" {
		cfg.Database.Driver = v
	}
	if v := os.Getenv("TUTORFLOW_DATABASE_DSN"); v != "" {
		cfg.Database.DSN = v
	}
	if v := os.Getenv("TUTORFLOW_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("TUTORFLOW_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("TUTORFLOW_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("TUTORFLOW_MAX_TOKENS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.ContextWindow.MaxTokens = n
		}
	}
	if v := os.Getenv("TUTORFLOW_RESERVED_TOKENS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.ContextWindow.ReservedTokens = n
		}
	}
}
