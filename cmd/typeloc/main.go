package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/jward/typeloc"
	"github.com/jward/typeloc/internal/config"
	"github.com/jward/typeloc/internal/logging"
)

var (
	flagDB       string
	flagFormat   string
	flagLogLevel string
	flagConfig   string
)

// errorHandled is set by outputError so main() doesn't double-print.
var errorHandled bool

func main() {
	if err := rootCmd.Execute(); err != nil {
		if !errorHandled {
			fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		}
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "typeloc",
	Short:         "Map Java binary type names to source locations and back",
	Long:          "Typeloc indexes Java workspaces and source archives, then resolves binary names such as pkg.Outer$1Local to the resources declaring them.",
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := validateFormat(flagFormat); err != nil {
			return err
		}
		if flagLogLevel != "" {
			if _, err := logging.ParseLevel(flagLogLevel); err != nil {
				return err
			}
		}
		return nil
	},
	// No Run; prints help by default.
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagDB, "db", "", "database path (default: .typeloc/index.db relative to repo root)")
	rootCmd.PersistentFlags().StringVar(&flagFormat, "format", "json", "output format: json|text")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "log level: debug|info|warn|error (overrides config)")
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "config file (default: .typeloc/config.yaml relative to repo root)")

	rootCmd.AddCommand(indexCmd)
	rootCmd.AddCommand(fqnCmd)
	rootCmd.AddCommand(findCmd)
	rootCmd.AddCommand(contentCmd)
}

// settings is the configuration resolved for one command invocation.
type settings struct {
	repoRoot string
	cfg      *config.Config
	logger   *slog.Logger
}

// loadSettings reads the config for repoRoot and builds the stderr logger.
// Flags override config values.
func loadSettings(repoRoot string) (*settings, error) {
	cfg, err := config.Load(repoRoot, flagConfig)
	if err != nil {
		return nil, err
	}
	levelName := cfg.Logging.Level
	if flagLogLevel != "" {
		levelName = flagLogLevel
	}
	level, err := logging.ParseLevel(levelName)
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(os.Stderr, level, cfg.Logging.Format)
	if err != nil {
		return nil, err
	}
	return &settings{repoRoot: repoRoot, cfg: cfg, logger: logger}, nil
}

// dbPath returns the database path from the --db flag or the config.
func (s *settings) dbPath() string {
	if flagDB != "" {
		if filepath.IsAbs(flagDB) {
			return flagDB
		}
		return filepath.Join(s.repoRoot, flagDB)
	}
	return s.cfg.DatabasePath(s.repoRoot)
}

var (
	flagForce     bool
	flagLibraries []string
	flagWorkers   int
)

var indexCmd = &cobra.Command{
	Use:   "index [path]",
	Short: "Index a Java workspace and source archives",
	Long:  "Parses Java sources with tree-sitter and records the top-level types each file or archive entry declares in the SQLite database.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runIndex,
}

func init() {
	indexCmd.Flags().BoolVar(&flagForce, "force", false, "delete database and reindex from scratch")
	indexCmd.Flags().StringSliceVar(&flagLibraries, "library", nil, "source archive to index as library (repeatable)")
	indexCmd.Flags().IntVar(&flagWorkers, "workers", 0, "concurrent parsers (default: config or one per CPU)")
}

func runIndex(cmd *cobra.Command, args []string) error {
	start := time.Now()

	targetDir, err := resolveTargetDir(args)
	if err != nil {
		return err
	}
	st, err := loadSettings(findRepoRoot(targetDir))
	if err != nil {
		return err
	}
	dbPath := st.dbPath()

	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Dir(dbPath), err)
	}

	if flagForce {
		if err := removeDatabase(dbPath); err != nil {
			return fmt.Errorf("removing database for --force: %w", err)
		}
		fmt.Fprintf(os.Stderr, "Cleared database: %s\n", dbPath)
	}

	workers := st.cfg.Index.Workers
	if flagWorkers > 0 {
		workers = flagWorkers
	}
	opts := []typeloc.Option{
		typeloc.WithLogger(st.logger),
		typeloc.WithWorkers(workers),
		typeloc.WithExcludes(st.cfg.Index.Exclude...),
	}

	engine, err := typeloc.New(dbPath, opts...)
	if err != nil {
		return fmt.Errorf("creating engine: %w", err)
	}
	defer func() { engine.Close() }()

	// An index built by another extractor version is rebuilt from scratch.
	if gen, _ := engine.Generation(); gen != "" && engine.IndexStale() {
		st.logger.Warn("extractor changed, rebuilding index", "db", dbPath)
		engine.Close()
		if err := removeDatabase(dbPath); err != nil {
			return fmt.Errorf("removing stale database: %w", err)
		}
		engine, err = typeloc.New(dbPath, opts...)
		if err != nil {
			return fmt.Errorf("creating engine: %w", err)
		}
	}

	ctx := context.Background()

	if err := engine.IndexDirectory(ctx, targetDir); err != nil {
		return fmt.Errorf("indexing: %w", err)
	}
	workspaceDuration := time.Since(start)

	libraries := append(append([]string{}, st.cfg.Index.Libraries...), flagLibraries...)
	for _, lib := range libraries {
		if !filepath.IsAbs(lib) {
			lib = filepath.Join(st.repoRoot, lib)
		}
		if err := engine.IndexArchive(ctx, lib); err != nil {
			return fmt.Errorf("indexing library %s: %w", lib, err)
		}
	}

	totalDuration := time.Since(start)
	fmt.Fprintf(os.Stderr, "Indexed %s in %s (workspace: %s, libraries: %d)\n",
		targetDir,
		totalDuration.Round(time.Millisecond),
		workspaceDuration.Round(time.Millisecond),
		len(libraries),
	)
	fmt.Fprintf(os.Stderr, "Database: %s\n", dbPath)
	return nil
}

// removeDatabase deletes the SQLite file and its WAL side files.
func removeDatabase(dbPath string) error {
	for _, p := range []string{dbPath, dbPath + "-wal", dbPath + "-shm"} {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return nil
}

// resolveTargetDir returns the absolute path of the directory to index.
func resolveTargetDir(args []string) (string, error) {
	dir := "."
	if len(args) > 0 {
		dir = args[0]
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolving path %q: %w", dir, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("directory not found: %s", abs)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("not a directory: %s", abs)
	}
	return abs, nil
}

// findRepoRoot walks up from startDir looking for a .git directory.
// Returns the directory containing .git, or startDir if not found.
func findRepoRoot(startDir string) string {
	dir := startDir
	for {
		if info, err := os.Stat(filepath.Join(dir, ".git")); err == nil && info.IsDir() {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached filesystem root without finding .git.
			return startDir
		}
		dir = parent
	}
}
