package main

import (
	"context"
	"io"
	"log/slog"

	"github.com/solracnyc/gasrag"
	"github.com/solracnyc/gasrag/config"
	"github.com/solracnyc/gasrag/embed"
	"github.com/solracnyc/gasrag/semcache"
)

// Dependencies holds all services and configuration for command execution.
type Dependencies struct {
	Ctx    context.Context
	Stdout io.Writer
	Stderr io.Writer
	Logger *slog.Logger
	Config *config.Config

	VectorDB    gasrag.VectorDatabase
	Store       gasrag.VectorStore
	Embedder    *embed.Pipeline
	Chunker     gasrag.Chunker
	Asker       gasrag.Asker
	Cache       *semcache.Cache
	Checkpoints gasrag.CheckpointStore

	// Snapshots returns the persisted semantic cache for a name.
	Snapshots func(name string) gasrag.CacheSnapshotStore

	// Quiet disables progress bars.
	Quiet bool
}

// CLI defines the command-line interface structure for Kong.
type CLI struct {
	Config       string `help:"YAML tuning file" env:"GASRAG_CONFIG" type:"path"`
	DB           string `name:"db" help:"Local SQLite database path" env:"GASRAG_DB" type:"path"`
	State        string `help:"bbolt file holding checkpoints and cache snapshots" env:"GASRAG_STATE" type:"path"`
	SupabaseURL  string `name:"supabase-url" help:"PostgREST project URL" env:"SUPABASE_URL"`
	SupabaseKey  string `name:"supabase-key" help:"PostgREST service key" env:"SUPABASE_KEY"`
	DatabaseURL  string `name:"database-url" help:"Postgres connection string" env:"DATABASE_URL"`
	GeminiAPIKey string `name:"gemini-api-key" help:"Gemini API key" env:"GEMINI_API_KEY"`
	Verbose      bool   `short:"v" help:"Log remote calls"`
	Quiet        bool   `short:"q" help:"Hide progress bars"`

	Ingest  IngestCmd  `cmd:"" help:"Chunk, embed and store crawled pages"`
	Migrate MigrateCmd `cmd:"" help:"Copy exported chunk records into the vector database"`
	Search  SearchCmd  `cmd:"" help:"Search stored chunks"`
	Ask     AskCmd     `cmd:"" help:"Answer a question from stored chunks"`
	Stats   StatsCmd   `cmd:"" help:"Show database statistics"`
	Health  HealthCmd  `cmd:"" help:"Check vector database health"`
}

// IngestCmd is the "ingest" subcommand.
type IngestCmd struct {
	Path        string `arg:"" help:"Page JSON file or directory of pages" type:"path"`
	Concurrency int    `short:"c" help:"Pages processed at once (default from config)"`
	BatchSize   int    `help:"Chunks embedded per batch (default from config)"`
	NoDedup     bool   `help:"Keep chunks whose content repeats across pages"`
}

// MigrateCmd is the "migrate" subcommand.
type MigrateCmd struct {
	Input      string `arg:"" help:"JSON array of chunk records" type:"existingfile"`
	Checkpoint string `help:"Checkpoint JSON file (default: state database)" type:"path"`
	BatchSize  int    `help:"Records per batch (default from config)"`
	Restart    bool   `help:"Discard an existing checkpoint"`
}

// SearchCmd is the "search" subcommand.
type SearchCmd struct {
	Query     string            `arg:"" help:"Search text"`
	Count     int               `short:"k" default:"5" help:"Maximum results"`
	Threshold float64           `short:"t" default:"0.7" help:"Minimum similarity"`
	Hybrid    bool              `help:"Combine full-text and vector scores"`
	Filter    map[string]string `short:"f" help:"Metadata filter key=value (repeatable)"`
	JSON      bool              `name:"json" help:"Print results as JSON"`
}

// AskCmd is the "ask" subcommand.
type AskCmd struct {
	Question  string  `arg:"" help:"Question about the documentation"`
	Count     int     `short:"k" default:"8" help:"Excerpts given to the model"`
	Threshold float64 `short:"t" default:"0.6" help:"Minimum similarity"`
}

// StatsCmd is the "stats" subcommand.
type StatsCmd struct {
	JSON bool `name:"json" help:"Print statistics as JSON"`
}

// HealthCmd is the "health" subcommand.
type HealthCmd struct{}
