package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config collects every tunable in one place. Values come from defaults,
// then an optional YAML file, then environment variables, later sources
// winning.
type Config struct {
	// Capture session limits.
	MaxImages       int           `yaml:"max_images"`
	MaxSessionBytes int64         `yaml:"max_session_bytes"`
	MemoryWarnRatio float64       `yaml:"memory_warn_ratio"`
	UndoTimeout     time.Duration `yaml:"undo_timeout"`

	// Upload broker.
	BrokerMaxSessions  int           `yaml:"broker_max_sessions"`
	BrokerRetention    time.Duration `yaml:"broker_retention"`
	BrokerUploadWindow time.Duration `yaml:"broker_upload_window"`
	SearchSnippetRunes int           `yaml:"search_snippet_runes"`

	// Recognition.
	RecognitionProvider string        `yaml:"recognition_provider"`
	RecognitionModel    string        `yaml:"recognition_model"`
	RecognitionTimeout  time.Duration `yaml:"recognition_timeout"`
	RecognitionMinDim   int           `yaml:"recognition_min_dim"`

	// Export.
	PageMargin   float64 `yaml:"page_margin"`
	MinPageW     float64 `yaml:"min_page_width"`
	MinPageH     float64 `yaml:"min_page_height"`
	MinWordBoxPt float64 `yaml:"min_word_box_pt"`

	// Misc.
	ThumbnailEdge int           `yaml:"thumbnail_edge"`
	PollInterval  time.Duration `yaml:"poll_interval"`
	PublicBaseURL string        `yaml:"public_base_url"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		MaxImages:       50,
		MaxSessionBytes: 100 << 20,
		MemoryWarnRatio: 0.8,
		UndoTimeout:     10 * time.Second,

		BrokerMaxSessions:  100,
		BrokerRetention:    7 * 24 * time.Hour,
		BrokerUploadWindow: 10 * time.Minute,
		SearchSnippetRunes: 80,

		RecognitionProvider: "ollama",
		RecognitionTimeout:  30 * time.Second,
		RecognitionMinDim:   300,

		PageMargin:   24,
		MinPageW:     595,
		MinPageH:     842,
		MinWordBoxPt: 2,

		ThumbnailEdge: 160,
		PollInterval:  3 * time.Second,
		PublicBaseURL: "http://localhost:8787",
	}
}

// Load builds the configuration from defaults, the YAML file at path (if
// non-empty), and environment variables.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}
	cfg.applyEnv()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	intVar(&c.MaxImages, "SNAPBINDER_MAX_IMAGES")
	int64Var(&c.MaxSessionBytes, "SNAPBINDER_MAX_SESSION_BYTES")
	durVar(&c.UndoTimeout, "SNAPBINDER_UNDO_TIMEOUT")
	intVar(&c.BrokerMaxSessions, "SNAPBINDER_BROKER_MAX_SESSIONS")
	durVar(&c.BrokerRetention, "SNAPBINDER_BROKER_RETENTION")
	durVar(&c.BrokerUploadWindow, "SNAPBINDER_BROKER_UPLOAD_WINDOW")
	strVar(&c.RecognitionProvider, "SNAPBINDER_RECOGNITION_PROVIDER")
	strVar(&c.RecognitionModel, "SNAPBINDER_RECOGNITION_MODEL")
	durVar(&c.RecognitionTimeout, "SNAPBINDER_RECOGNITION_TIMEOUT")
	intVar(&c.RecognitionMinDim, "SNAPBINDER_RECOGNITION_MIN_DIM")
	durVar(&c.PollInterval, "SNAPBINDER_POLL_INTERVAL")
	strVar(&c.PublicBaseURL, "SNAPBINDER_PUBLIC_BASE_URL")
}

func (c *Config) validate() error {
	if c.MaxImages <= 0 {
		return fmt.Errorf("max_images must be positive, got %d", c.MaxImages)
	}
	if c.MaxSessionBytes <= 0 {
		return fmt.Errorf("max_session_bytes must be positive, got %d", c.MaxSessionBytes)
	}
	if c.MemoryWarnRatio <= 0 || c.MemoryWarnRatio > 1 {
		return fmt.Errorf("memory_warn_ratio must be in (0,1], got %v", c.MemoryWarnRatio)
	}
	if c.BrokerMaxSessions <= 0 {
		return fmt.Errorf("broker_max_sessions must be positive, got %d", c.BrokerMaxSessions)
	}
	return nil
}

func strVar(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func intVar(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func int64Var(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func durVar(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
