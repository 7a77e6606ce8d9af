package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"
	"github.com/solracnyc/gasrag"
	"github.com/solracnyc/gasrag/bolt"
	"github.com/solracnyc/gasrag/chunk"
	"github.com/solracnyc/gasrag/config"
	"github.com/solracnyc/gasrag/embed"
	"github.com/solracnyc/gasrag/fs"
	"github.com/solracnyc/gasrag/gemini"
	"github.com/solracnyc/gasrag/goldmark"
	"github.com/solracnyc/gasrag/htmltomarkdown"
	gashttp "github.com/solracnyc/gasrag/http"
	"github.com/solracnyc/gasrag/postgres"
	"github.com/solracnyc/gasrag/semcache"
	gasslog "github.com/solracnyc/gasrag/slog"
	"github.com/solracnyc/gasrag/sqlite"
	"github.com/solracnyc/gasrag/vectorstore"
	"google.golang.org/genai"
)

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	m := NewMain()

	if err := m.Run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// Main represents the program.
type Main struct {
	// Default paths, overridden by --db and --state.
	DBPath    string
	StatePath string

	// Resources opened by Run, closed in reverse order by Close.
	closers []io.Closer

	// Gemini client, created on first use.
	genai *genai.Client
}

// NewMain returns a new instance of Main with defaults.
func NewMain() *Main {
	dir := defaultDir()
	return &Main{
		DBPath:    filepath.Join(dir, "gasrag.db"),
		StatePath: filepath.Join(dir, "state.db"),
	}
}

// Close gracefully stops the program.
func (m *Main) Close() error {
	var first error
	for i := len(m.closers) - 1; i >= 0; i-- {
		if err := m.closers[i].Close(); err != nil && first == nil {
			first = err
		}
	}
	m.closers = nil
	return first
}

// Run executes the CLI with the given arguments.
func (m *Main) Run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	deps := &Dependencies{
		Ctx:    ctx,
		Stdout: stdout,
		Stderr: stderr,
	}

	cli := &CLI{}
	parser, err := kong.New(cli,
		kong.Name("gasrag"),
		kong.Description("Ingest documentation into a vector database and search it."),
		kong.Writers(stdout, stderr),
		kong.Exit(func(int) {}),
		kong.Bind(deps),
	)
	if err != nil {
		return fmt.Errorf("failed to create parser: %w", err)
	}

	if len(args) == 0 {
		_, _ = parser.Parse([]string{"--help"})
		return fmt.Errorf("no command specified. Run 'gasrag --help' to see available commands")
	}
	if args[0] == "help" || args[0] == "--help" || args[0] == "-h" {
		_, _ = parser.Parse([]string{"--help"})
		return nil
	}

	kongCtx, err := parser.Parse(args)
	if err != nil {
		return err
	}
	cmd := kongCtx.Selected().Name

	cfg, err := config.Load(cli.Config)
	if err != nil {
		return err
	}
	level := cfg.Logging.SlogLevel()
	if cli.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))
	deps.Config = cfg
	deps.Logger = logger
	deps.Quiet = cli.Quiet
	defer m.Close()

	db, err := m.openVectorDatabase(ctx, cli, stderr)
	if err != nil {
		return err
	}
	deps.VectorDB = gasslog.NewLoggingVectorDatabase(db, logger)

	store := vectorstore.NewClient(deps.VectorDB, cfg.Store)
	store.Logger = logger
	deps.Store = store

	switch cmd {
	case "migrate":
		if cli.Migrate.Checkpoint != "" {
			deps.Checkpoints = fs.NewCheckpointFile(cli.Migrate.Checkpoint)
		} else {
			state, err := m.openState(cli)
			if err != nil {
				return err
			}
			deps.Checkpoints = bolt.NewCheckpointStore(state, "migrate:"+absPath(cli.Migrate.Input))
		}

	case "ingest", "search", "ask":
		client, err := m.geminiClient(ctx, cli, stderr)
		if err != nil {
			return err
		}
		embedder := gasslog.NewLoggingEmbedder(gemini.NewEmbedder(client, cfg.Models.Embedding), logger)
		deps.Embedder = embed.NewPipeline(embedder, cfg.Embedding)
		deps.Embedder.Logger = logger

		if cmd == "ingest" {
			deps.Chunker = m.newChunker(cfg, logger)
		} else {
			state, err := m.openState(cli)
			if err != nil {
				return err
			}
			deps.Cache = semcache.New(cfg.Cache)
			deps.Cache.Logger = logger
			deps.Snapshots = func(name string) gasrag.CacheSnapshotStore {
				return bolt.NewSnapshotStore(state, name)
			}
		}
		if cmd == "ask" {
			deps.Asker = gemini.NewAsker(client, cfg.Models.Answer)
		}
	}

	return kongCtx.Run(deps)
}

// openVectorDatabase selects the backend: PostgREST when a project URL is
// given, Postgres when a connection string is given, local SQLite otherwise.
func (m *Main) openVectorDatabase(ctx context.Context, cli *CLI, stderr io.Writer) (gasrag.VectorDatabase, error) {
	switch {
	case cli.SupabaseURL != "":
		if cli.SupabaseKey == "" {
			fmt.Fprintln(stderr, "Hint: Set SUPABASE_KEY to the project's service key")
			return nil, gasrag.Errorf(gasrag.EINVALID, "SUPABASE_KEY not set")
		}
		return gashttp.NewVectorDatabase(cli.SupabaseURL, cli.SupabaseKey), nil

	case cli.DatabaseURL != "":
		db := postgres.NewDB(cli.DatabaseURL)
		if err := db.Open(ctx); err != nil {
			return nil, fmt.Errorf("failed to connect to Postgres: %w", err)
		}
		m.closers = append(m.closers, db)
		if err := db.Migrate(ctx); err != nil {
			return nil, err
		}
		return postgres.NewChunkStore(db), nil

	default:
		path := m.DBPath
		if cli.DB != "" {
			path = cli.DB
		}
		db := sqlite.NewDB(path)
		if err := db.Open(); err != nil {
			fmt.Fprintf(stderr, "Hint: Set GASRAG_DB to use a different database path\n")
			return nil, fmt.Errorf("failed to open database at %q: %w", path, err)
		}
		m.closers = append(m.closers, db)
		return sqlite.NewChunkStore(db), nil
	}
}

func (m *Main) openState(cli *CLI) (*bolt.DB, error) {
	path := m.StatePath
	if cli.State != "" {
		path = cli.State
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db := bolt.NewDB(path)
	if err := db.Open(); err != nil {
		return nil, fmt.Errorf("failed to open state database at %q: %w", path, err)
	}
	m.closers = append(m.closers, db)
	return db, nil
}

func (m *Main) geminiClient(ctx context.Context, cli *CLI, stderr io.Writer) (*genai.Client, error) {
	if m.genai != nil {
		return m.genai, nil
	}
	if cli.GeminiAPIKey == "" {
		fmt.Fprintln(stderr, "GEMINI_API_KEY environment variable not set. Get an API key at https://aistudio.google.com/apikey")
		return nil, gasrag.Errorf(gasrag.EUNAUTHORIZED, "GEMINI_API_KEY not set")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cli.GeminiAPIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		fmt.Fprintln(stderr, "Hint: Check your GEMINI_API_KEY is valid")
		return nil, fmt.Errorf("failed to connect to Gemini API: %w", err)
	}
	m.genai = client
	return client, nil
}

func (m *Main) newChunker(cfg *config.Config, logger *slog.Logger) *chunk.Chunker {
	c := chunk.NewChunker(goldmark.NewSplitter())
	c.ChunkSize = cfg.Chunk.Size
	c.Overlap = cfg.Chunk.Overlap
	c.Converter = htmltomarkdown.NewConverter()
	c.Logger = logger

	tc, err := gemini.NewTokenCounter("")
	if err != nil {
		logger.Warn("token counter unavailable, estimating from length", "err", err)
	} else {
		c.TokenCounter = tc
	}
	return c
}

func defaultDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	dir := filepath.Join(home, ".gasrag")
	_ = os.MkdirAll(dir, 0o755)
	return dir
}

func absPath(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return path
}
