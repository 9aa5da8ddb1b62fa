package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/FreeworkEarth/neodepends"
	"github.com/FreeworkEarth/neodepends/internal/config"
	"github.com/FreeworkEarth/neodepends/internal/metrics"
)

var (
	flagDB      string
	flagFormat  string
	flagConfig  string
	flagVerbose bool
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
	Use:           "neodepends",
	Short:         "Typed cross-file dependency graphs for Python and Java",
	Long:          "neodepends resolves references across files with stack graphs, classifies them as Import, Extend, Call, Create or Use, lifts them onto entities and detects overrides.",
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return validateFormat(flagFormat)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagDB, "db", "", "database path (default: .neodepends.db)")
	rootCmd.PersistentFlags().StringVar(&flagFormat, "format", "json", "output format: json|text")
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "config file (default: "+config.DefaultFile+" if present)")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "log progress to stderr")

	rootCmd.AddCommand(resolveCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(overridesCmd)
	rootCmd.AddCommand(depsCmd)
}

var (
	flagMode       string
	flagLanguages  string
	flagCommit     string
	flagScriptsDir string
	flagParallel   int
	flagMetrics    bool
	flagForce      bool
)

var resolveCmd = &cobra.Command{
	Use:   "resolve [path]",
	Short: "Index a directory and resolve its dependencies",
	Long:  "Reads the Python and Java files under path, resolves references across them, stores the file-level deps and lifts them onto any imported entities.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runResolve,
}

func init() {
	resolveCmd.Flags().StringVar(&flagMode, "mode", "", "classification mode: ast|use-only")
	resolveCmd.Flags().StringVar(&flagLanguages, "languages", "", "comma-separated language filter (e.g. python,java)")
	resolveCmd.Flags().StringVar(&flagCommit, "commit", "", "commit id to stamp on edges (default: working directory)")
	resolveCmd.Flags().StringVar(&flagScriptsDir, "scripts-dir", "", "load graph scripts from disk path instead of embedded")
	resolveCmd.Flags().IntVar(&flagParallel, "parallel", 0, "files read and built at once (default: number of CPUs)")
	resolveCmd.Flags().BoolVar(&flagMetrics, "metrics", false, "print Prometheus metrics to stderr when done")
	resolveCmd.Flags().BoolVar(&flagForce, "force", false, "delete the database before resolving")
}

func runResolve(cmd *cobra.Command, args []string) error {
	start := time.Now()
	targetDir, err := resolveTargetDir(args)
	if err != nil {
		return outputError("resolve", err)
	}
	cfg, err := loadConfig(cmd)
	if err != nil {
		return outputError("resolve", err)
	}

	if flagForce {
		if err := os.Remove(cfg.DB); err != nil && !os.IsNotExist(err) {
			return outputError("resolve", fmt.Errorf("removing database for --force: %w", err))
		}
	}

	engine, err := newEngine(cfg)
	if err != nil {
		return outputError("resolve", err)
	}
	defer engine.Close()

	ctx := context.Background()
	if err := engine.IndexDirectory(ctx, targetDir); err != nil {
		// Files that could be read are still resolved.
		newLogger().Warn("resolve.index.partial", "err", err)
	}
	deps, err := engine.Resolve(ctx)
	if err != nil {
		return outputError("resolve", fmt.Errorf("resolving: %w", err))
	}
	lifted, err := engine.LiftAndStore(ctx)
	if err != nil {
		return outputError("resolve", fmt.Errorf("lifting: %w", err))
	}

	if flagMetrics {
		if err := metrics.WriteText(os.Stderr, prometheus.DefaultGatherer); err != nil {
			return outputError("resolve", err)
		}
	}

	return outputResult(CLIResult{
		Command: "resolve",
		Results: summarize(targetDir, cfg.DB, deps, lifted, time.Since(start)),
	})
}

var importCmd = &cobra.Command{
	Use:   "import FILE",
	Short: "Import entities and entity deps from a JSON model",
	Long:  "Loads a JSON model ({\"entities\": [...], \"deps\": [...]}) produced by an entity extractor, then lifts the stored file deps onto the new entities. Use - to read stdin.",
	Args:  cobra.ExactArgs(1),
	RunE:  runImport,
}

func init() {
	importCmd.Flags().StringVar(&flagCommit, "commit", "", "commit whose file deps are lifted (default: working directory)")
}

func runImport(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return outputError("import", err)
	}
	in := os.Stdin
	if args[0] != "-" {
		f, err := os.Open(args[0])
		if err != nil {
			return outputError("import", err)
		}
		defer f.Close()
		in = f
	}

	engine, err := newEngine(cfg)
	if err != nil {
		return outputError("import", err)
	}
	defer engine.Close()

	ctx := context.Background()
	entities, deps, err := engine.ImportModel(ctx, in)
	if err != nil {
		return outputError("import", err)
	}
	lifted, err := engine.LiftAndStore(ctx)
	if err != nil {
		return outputError("import", fmt.Errorf("lifting: %w", err))
	}
	return outputResult(CLIResult{
		Command: "import",
		Results: CLIImportSummary{Entities: entities, Deps: deps, Lifted: lifted},
	})
}

var (
	flagNotImplemented bool
	flagInferExtends   bool
)

var overridesCmd = &cobra.Command{
	Use:   "overrides",
	Short: "Detect Override edges between methods",
	Long:  "Derives Override edges from stored Extend edges, Python @abstractmethod markers and Java @Override annotations.",
	Args:  cobra.NoArgs,
	RunE:  runOverrides,
}

func init() {
	overridesCmd.Flags().BoolVar(&flagNotImplemented, "not-implemented", false, "treat Python methods raising NotImplementedError as abstract")
	overridesCmd.Flags().BoolVar(&flagInferExtends, "infer-extends", false, "infer Python Extend edges from class bases when none are stored")
}

func runOverrides(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return outputError("overrides", err)
	}
	engine, err := newEngine(cfg)
	if err != nil {
		return outputError("overrides", err)
	}
	defer engine.Close()

	n, err := engine.DetectOverrides(context.Background())
	if err != nil {
		return outputError("overrides", err)
	}
	return outputResult(CLIResult{Command: "overrides", Results: CLICount{Stored: n}})
}

var (
	flagKinds string
	flagFiles bool
)

var depsCmd = &cobra.Command{
	Use:   "deps",
	Short: "List stored dependencies",
	Long:  "Lists stored entity deps, or file-level deps with --files.",
	Args:  cobra.NoArgs,
	RunE:  runDeps,
}

func init() {
	depsCmd.Flags().StringVar(&flagKinds, "kind", "", "comma-separated kind filter (e.g. Call,Override)")
	depsCmd.Flags().BoolVar(&flagFiles, "files", false, "list file-level deps instead of entity deps")
	depsCmd.Flags().StringVar(&flagCommit, "commit", "", "commit of the file deps to list (default: working directory)")
}

func runDeps(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return outputError("deps", err)
	}
	kinds, err := parseKinds(flagKinds)
	if err != nil {
		return outputError("deps", err)
	}
	if _, err := os.Stat(cfg.DB); os.IsNotExist(err) {
		return outputError("deps", fmt.Errorf("database not found: %s (run 'neodepends resolve' first)", cfg.DB))
	}
	engine, err := newEngine(cfg)
	if err != nil {
		return outputError("deps", err)
	}
	defer engine.Close()

	if flagFiles {
		deps, err := engine.Store().FileDeps(engine.Commit())
		if err != nil {
			return outputError("deps", err)
		}
		return outputResult(CLIResult{Command: "deps", Results: toCLIFileDeps(deps, kinds)})
	}

	deps, err := engine.EntityDeps(kinds...)
	if err != nil {
		return outputError("deps", err)
	}
	entities, err := engine.Store().Entities()
	if err != nil {
		return outputError("deps", err)
	}
	return outputResult(CLIResult{Command: "deps", Results: toCLIEntityDeps(deps, entities)})
}

// loadConfig reads the config file and environment, then applies any flags
// set on cmd.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return nil, err
	}
	flags := cmd.Flags()
	if flagDB != "" {
		cfg.DB = flagDB
	}
	if flags.Changed("mode") {
		cfg.Mode = flagMode
	}
	if flags.Changed("languages") {
		cfg.Languages = config.SplitList(flagLanguages)
	}
	if flags.Changed("scripts-dir") {
		cfg.ScriptsDir = flagScriptsDir
	}
	if flags.Changed("parallel") {
		cfg.Parallel = flagParallel
	}
	if flags.Changed("not-implemented") {
		cfg.Overrides.NotImplementedIsAbstract = flagNotImplemented
	}
	if flags.Changed("infer-extends") {
		cfg.Overrides.InferExtends = flagInferExtends
	}
	if _, err := cfg.ClassifyMode(); err != nil {
		return nil, err
	}
	if _, err := cfg.Langs(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// engineOptions turns cfg and the --commit flag into Engine options.
func engineOptions(cfg *config.Config, logger *slog.Logger) []neodepends.Option {
	mode, _ := cfg.ClassifyMode()
	langs, _ := cfg.Langs()
	opts := []neodepends.Option{
		neodepends.WithCommit(flagCommit),
		neodepends.WithClassifyMode(mode),
		neodepends.WithLanguages(langs...),
		neodepends.WithParallel(cfg.Parallel),
		neodepends.WithStitchConfig(cfg.Stitch),
		neodepends.WithNotImplementedAbstract(cfg.Overrides.NotImplementedIsAbstract),
		neodepends.WithInferExtends(cfg.Overrides.InferExtends),
		neodepends.WithLogger(logger),
	}
	if cfg.ScriptsDir != "" {
		opts = append(opts, neodepends.WithScriptsDir(cfg.ScriptsDir))
	}
	return opts
}

func newEngine(cfg *config.Config) (*neodepends.Engine, error) {
	if dir := filepath.Dir(cfg.DB); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating %s: %w", dir, err)
		}
	}
	engine, err := neodepends.New(cfg.DB, engineOptions(cfg, newLogger())...)
	if err != nil {
		return nil, fmt.Errorf("creating engine: %w", err)
	}
	return engine, nil
}

func newLogger() *slog.Logger {
	level := slog.LevelWarn
	if flagVerbose {
		level = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// resolveTargetDir returns the absolute path of the directory to resolve.
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
