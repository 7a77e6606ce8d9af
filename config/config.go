// Package config loads the optional YAML tuning file. Every section
// defaults to the tuned constants of its package, so a file only needs
// the values it changes.
package config

import (
	"log/slog"
	"os"
	"strings"

	"github.com/solracnyc/gasrag"
	"github.com/solracnyc/gasrag/embed"
	"github.com/solracnyc/gasrag/migrate"
	"github.com/solracnyc/gasrag/semcache"
	"github.com/solracnyc/gasrag/vectorstore"
	"gopkg.in/yaml.v3"
)

// Config holds all tunable settings.
type Config struct {
	Chunk     ChunkConfig        `yaml:"chunk"`
	Embedding embed.Config       `yaml:"embedding"`
	Store     vectorstore.Config `yaml:"store"`
	Cache     semcache.Config    `yaml:"cache"`
	Migration migrate.Config     `yaml:"migration"`
	Models    ModelConfig        `yaml:"models"`
	Ingest    IngestConfig       `yaml:"ingest"`
	Logging   LoggingConfig      `yaml:"logging"`
}

// ChunkConfig holds chunk sizing in tokens.
type ChunkConfig struct {
	Size    int `yaml:"size"`
	Overlap int `yaml:"overlap"`
}

// ModelConfig names the remote models.
type ModelConfig struct {
	Embedding string `yaml:"embedding"`
	Answer    string `yaml:"answer"`
}

// IngestConfig bounds an ingest run.
type IngestConfig struct {
	// Concurrency is the number of pages chunked and embedded at once.
	Concurrency int `yaml:"concurrency"`

	// BatchSize is the number of chunks embedded per batch.
	BatchSize int `yaml:"batch_size"`

	// Dedup drops chunks whose content was already seen in the run.
	Dedup bool `yaml:"dedup"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Chunk:     ChunkConfig{Size: 450, Overlap: 67},
		Embedding: embed.DefaultConfig(),
		Store:     vectorstore.DefaultConfig(),
		Cache:     semcache.DefaultConfig(),
		Migration: migrate.DefaultConfig(),
		Models: ModelConfig{
			Embedding: "gemini-embedding-001",
			Answer:    "gemini-2.5-flash",
		},
		Ingest: IngestConfig{
			Concurrency: 4,
			BatchSize:   10,
			Dedup:       true,
		},
		Logging: LoggingConfig{Level: "info"},
	}
}

// Load loads configuration from a YAML file over the defaults. An empty
// path or a missing file returns the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, gasrag.Errorf(gasrag.EINVALID, "malformed config %s: %v", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate returns an error if settings are out of range.
func (c *Config) Validate() error {
	switch {
	case c.Chunk.Size <= 0:
		return gasrag.Errorf(gasrag.EINVALID, "chunk size must be positive")
	case c.Chunk.Overlap < 0 || c.Chunk.Overlap >= c.Chunk.Size:
		return gasrag.Errorf(gasrag.EINVALID, "chunk overlap must be in [0, size)")
	case c.Cache.Threshold <= 0 || c.Cache.Threshold > 1:
		return gasrag.Errorf(gasrag.EINVALID, "cache threshold must be in (0, 1]")
	case c.Store.BatchSize <= 0 || c.Migration.BatchSize <= 0:
		return gasrag.Errorf(gasrag.EINVALID, "batch sizes must be positive")
	case c.Ingest.Concurrency <= 0:
		return gasrag.Errorf(gasrag.EINVALID, "ingest concurrency must be positive")
	}
	return nil
}

// SlogLevel returns the configured slog level, defaulting to info.
func (c LoggingConfig) SlogLevel() slog.Level {
	switch strings.ToLower(c.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
