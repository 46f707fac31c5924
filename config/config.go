// Package config loads runtime settings with priority env > file > defaults.
package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/meikuraledutech/splitflow/extract"
	"github.com/meikuraledutech/splitflow/graph"
	"github.com/meikuraledutech/splitflow/report"
)

// Config is the full runtime configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Documents DocumentsConfig `yaml:"documents"`
	Webhook   WebhookConfig   `yaml:"webhook"`
	Log       LogConfig       `yaml:"log"`
	Limits    graph.Limits    `yaml:"limits"`
	Traversal TraversalConfig `yaml:"traversal"`
	Routes    []extract.Slot  `yaml:"routes" validate:"len=3,dive"`
}

type ServerConfig struct {
	Addr      string `yaml:"addr" validate:"required"`
	BodyLimit int    `yaml:"body_limit" validate:"gte=0"`
}

type DatabaseConfig struct {
	URL string `yaml:"url"`
}

// DocumentsConfig selects where workflow documents are fetched from.
type DocumentsConfig struct {
	Source     string        `yaml:"source" validate:"oneof=dir http postgres"`
	Dir        string        `yaml:"dir" validate:"required_if=Source dir"`
	BaseURL    string        `yaml:"base_url" validate:"required_if=Source http,omitempty,url"`
	DefaultRef string        `yaml:"default_ref"`
	Timeout    time.Duration `yaml:"timeout" validate:"gte=0"`
}

// WebhookConfig is the delivery channel. An empty URL means reports are
// only logged.
type WebhookConfig struct {
	URL     string        `yaml:"url" validate:"omitempty,url"`
	Timeout time.Duration `yaml:"timeout" validate:"gte=0"`
}

type LogConfig struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" validate:"oneof=json text"`
}

type TraversalConfig struct {
	MaxDepth  int `yaml:"max_depth" validate:"gte=1"`
	MaxVisits int `yaml:"max_visits" validate:"gte=0"`
}

// Default returns the built-in configuration.
func Default() Config {
	slots := extract.DefaultSlots
	return Config{
		Server:    ServerConfig{Addr: ":3000", BodyLimit: 4 * 1024 * 1024},
		Documents: DocumentsConfig{Source: "dir", Dir: "documents", DefaultRef: "workflow", Timeout: 10 * time.Second},
		Webhook:   WebhookConfig{Timeout: 10 * time.Second},
		Log:       LogConfig{Level: "info", Format: "json"},
		Limits:    graph.DefaultLimits,
		Traversal: TraversalConfig{
			MaxDepth:  extract.DefaultOptions.MaxDepth,
			MaxVisits: extract.DefaultOptions.MaxVisits,
		},
		Routes: []extract.Slot{slots[0], slots[1], slots[2]},
	}
}

var validate = validator.New()

// Load reads path (optional, a missing file is not an error), applies
// environment overrides and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return cfg, fmt.Errorf("config: load %s: %w", path, err)
		}
	}
	loadEnv(&cfg)
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

func loadEnv(cfg *Config) {
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("SPLITFLOW_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("SPLITFLOW_DOCUMENT_SOURCE"); v != "" {
		cfg.Documents.Source = v
	}
	if v := os.Getenv("SPLITFLOW_DOCUMENT_DIR"); v != "" {
		cfg.Documents.Dir = v
	}
	if v := os.Getenv("SPLITFLOW_DOCUMENT_URL"); v != "" {
		cfg.Documents.BaseURL = v
	}
	if v := os.Getenv("SPLITFLOW_DEFAULT_DOCUMENT"); v != "" {
		cfg.Documents.DefaultRef = v
	}
	if v := os.Getenv("SPLITFLOW_WEBHOOK_URL"); v != "" {
		cfg.Webhook.URL = v
	}
	if v := os.Getenv("SPLITFLOW_LOG_LEVEL"); v != "" {
		cfg.Log.Level = strings.ToLower(v)
	}
	if v := os.Getenv("SPLITFLOW_MAX_NODES"); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			cfg.Limits.MaxNodes = i
		}
	}
	if v := os.Getenv("SPLITFLOW_MAX_VISITS"); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			cfg.Traversal.MaxVisits = i
		}
	}
	if v := os.Getenv("SPLITFLOW_MAX_EDGES"); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			cfg.Limits.MaxEdges = i
		}
	}
}

// Validate checks struct constraints.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config: invalid: %w", err)
	}
	return nil
}

// Slots returns the configured route slots.
func (c Config) Slots() extract.RouteSlots {
	var s extract.RouteSlots
	copy(s[:], c.Routes)
	return s
}

// RouteNames returns the display names of the route slots.
func (c Config) RouteNames() [3]string {
	n := c.Slots().Names()
	if n == ([3]string{}) {
		return report.DefaultRouteNames
	}
	return n
}

// ExtractOptions returns the traversal options.
func (c Config) ExtractOptions() extract.Options {
	return extract.Options{
		MaxDepth:  c.Traversal.MaxDepth,
		MaxVisits: c.Traversal.MaxVisits,
		Slots:     c.Slots(),
	}
}

// NewLogger builds a slog logger writing to w.
func (c LogConfig) NewLogger(w io.Writer) *slog.Logger {
	var level slog.Level
	switch c.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.Format == "text" {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}
