// Package main provides the CLI entry point for the respfilter runtime.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/respfilter/runtime/internal/cli"
	"github.com/respfilter/runtime/internal/config"
	"github.com/respfilter/runtime/internal/factory"
	"github.com/respfilter/runtime/internal/logger"
	"github.com/respfilter/runtime/internal/modules/filter"
	"github.com/respfilter/runtime/internal/modules/input"
	"github.com/respfilter/runtime/internal/modules/output"
	"github.com/respfilter/runtime/internal/registry"
	"github.com/respfilter/runtime/internal/runtime"
	"github.com/respfilter/runtime/pkg/chain"
)

// Exit codes
const (
	ExitSuccess         = 0
	ExitValidationError = 1
	ExitParseError      = 2
	ExitRuntimeError    = 3
)

// defaultEnvFile is read at startup when present.
const defaultEnvFile = ".env"

// Build information (set via ldflags during build)
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

// settings holds defaults taken from the environment (and .env).
// Command-line flags take precedence.
type settings struct {
	LogLevel     string `env:"RESPFILTER_LOG_LEVEL" envDefault:"info"`
	LogFormat    string `env:"RESPFILTER_LOG_FORMAT" envDefault:"json"`
	LogFile      string `env:"RESPFILTER_LOG_FILE"`
	LogMaxSizeMB int    `env:"RESPFILTER_LOG_MAX_SIZE_MB" envDefault:"10"`
	ConfigDir    string `env:"RESPFILTER_CONFIG_DIR"`
}

// loadSettings reads envFile (if it exists) into the process environment
// and parses the RESPFILTER_* variables. Variables already set win over
// the file.
func loadSettings(envFile string) (settings, error) {
	var s settings
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return s, fmt.Errorf("loading %s: %w", envFile, err)
		}
	}
	if err := env.Parse(&s); err != nil {
		return s, fmt.Errorf("parsing environment: %w", err)
	}
	return s, nil
}

// exitError carries a process exit code through cobra.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit code %d", e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error {
	return e.err
}

func exitWith(code int, err error) error {
	return &exitError{code: code, err: err}
}

// app holds the flags and writers of one CLI invocation.
type app struct {
	stdout io.Writer
	stderr io.Writer
	env    settings

	verbose   bool
	quiet     bool
	logFormat string
	logFile   string

	dryRun     bool
	inputPath  string
	outputPath string
	format     string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := execute(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// execute runs the CLI with args and returns the process exit code.
func execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	s, err := loadSettings(defaultEnvFile)
	if err != nil {
		fmt.Fprintf(stderr, "✗ %v\n", err)
		return ExitRuntimeError
	}

	a := &app{stdout: stdout, stderr: stderr, env: s}
	root := a.rootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err = root.ExecuteContext(ctx)
	logger.CloseLogFile()
	if err == nil {
		return ExitSuccess
	}

	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	// Usage errors: unknown flag, wrong argument count.
	fmt.Fprintf(stderr, "Error: %v\n", err)
	return ExitRuntimeError
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "respfilter",
		Short: "respfilter - Model response post-processing runtime",
		Long: `respfilter normalizes the free-form text a model produced for each
evaluation document before it is scored.

It reads a batch of responses (one set per document), applies an ordered
chain of filters such as lowercase, first_clause or map, and writes the
batch back with exactly the same shape.

Examples:
  # Validate a chain configuration
  respfilter validate chain.yaml

  # Run a chain, overriding its input and output
  respfilter run chain.yaml --input responses.jsonl --output filtered.jsonl

  # Apply filters without a configuration file
  respfilter apply first_clause lowercase < responses.json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			return a.configureLogging()
		},
	}

	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "Enable verbose output and debug logs")
	root.PersistentFlags().BoolVarP(&a.quiet, "quiet", "q", false, "Suppress non-error output")
	root.PersistentFlags().StringVar(&a.logFormat, "log-format", a.env.LogFormat, "Log format: json or human (env RESPFILTER_LOG_FORMAT)")
	root.PersistentFlags().StringVar(&a.logFile, "log-file", a.env.LogFile, "Also write JSON logs to this rotated file (env RESPFILTER_LOG_FILE)")

	root.AddCommand(a.validateCmd(), a.runCmd(), a.applyCmd(), a.filtersCmd(), a.versionCmd())
	return root
}

// configureLogging applies -v/-q and the log settings.
func (a *app) configureLogging() error {
	level, err := logger.ParseLevel(a.env.LogLevel)
	if err != nil {
		return exitWith(ExitRuntimeError, err)
	}
	switch {
	case a.verbose:
		level = slog.LevelDebug
	case a.quiet:
		level = slog.LevelError
	}

	format, err := logger.ParseFormat(a.logFormat)
	if err != nil {
		return exitWith(ExitRuntimeError, err)
	}

	logger.SetLevelAndFormat(level, format)
	if a.logFile != "" {
		opts := logger.FileOptions{MaxSizeMB: a.env.LogMaxSizeMB, MaxBackups: 3}
		if err := logger.SetLogFile(a.logFile, level, format, opts); err != nil {
			return exitWith(ExitRuntimeError, err)
		}
	}
	return nil
}

func (a *app) validateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <config-file>",
		Short: "Validate a chain configuration file",
		Long: `Validate a chain configuration file against the schema and check
that every filter it names is registered and correctly configured.

Supports both JSON and YAML formats. The format is auto-detected
based on file extension (.json, .yaml, .yml) or content.

Exit codes:
  0 - Configuration is valid
  1 - Validation errors (schema violations, unknown or misconfigured filters)
  2 - Parse errors (invalid JSON/YAML syntax)`,
		Args: cobra.ExactArgs(1),
		RunE: a.runValidate,
	}
}

func (a *app) runCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <config-file>",
		Short: "Run a chain from a configuration file",
		Long: `Run the chain defined in the configuration file.

The configuration is validated first; nothing runs if it is invalid.
--input and --output replace the configured modules with files
("-" for stdin/stdout).

Exit codes:
  0 - Chain executed successfully
  1 - Validation errors
  2 - Parse errors
  3 - Runtime errors`,
		Args: cobra.ExactArgs(1),
		RunE: a.runChain,
	}
	a.addIOFlags(cmd)
	return cmd
}

func (a *app) applyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "apply <filter-type>...",
		Short: "Apply filters to a batch without a configuration file",
		Long: `Apply the named filters, in order, to a batch read from --input
(stdin by default) and write the result to --output (stdout by default).

Only filters that take no configuration can be used here; use a chain
configuration for map, condition and script.

Example:
  respfilter apply vizwiz_vicuna_pretrain lowercase -i responses.jsonl`,
		Args: cobra.MinimumNArgs(1),
		RunE: a.runApply,
	}
	a.addIOFlags(cmd)
	return cmd
}

func (a *app) addIOFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&a.inputPath, "input", "i", "", `Read the batch from this file ("-" for stdin)`)
	cmd.Flags().StringVarP(&a.outputPath, "output", "o", "", `Write the batch to this file ("-" for stdout)`)
	cmd.Flags().StringVar(&a.format, "format", "", "Batch format for --input/--output: json or jsonl (default from extension)")
	cmd.Flags().BoolVar(&a.dryRun, "dry-run", false, "Run the filters and preview the result without writing output")
}

func (a *app) filtersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "filters",
		Short: "List the registered filter types",
		Args:  cobra.NoArgs,
		Run: func(_ *cobra.Command, _ []string) {
			cli.PrintFilterTypes(a.stdout, registry.ListFilterTypes())
		},
	}
}

func (a *app) versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Fprintf(a.stdout, "Version: %s\n", version)
			fmt.Fprintf(a.stdout, "Commit: %s\n", commit)
			fmt.Fprintf(a.stdout, "Build Date: %s\n", buildDate)
		},
	}
}

// loadChain parses, validates and converts a configuration file, printing
// any errors. The returned error carries the exit code.
func (a *app) loadChain(path string) (*chain.Chain, *config.Result, error) {
	loader := config.NewLoader(a.env.ConfigDir)
	ch, result, err := loader.Load(path)
	if err == nil {
		return ch, result, nil
	}

	if result != nil && len(result.ParseErrors) > 0 {
		cli.PrintParseErrors(a.stderr, result.ParseErrors, a.verbose)
		return nil, result, exitWith(ExitParseError, err)
	}
	if result != nil && len(result.ValidationErrors) > 0 {
		cli.PrintValidationErrors(a.stderr, result.ValidationErrors, a.verbose, a.quiet)
		return nil, result, exitWith(ExitValidationError, err)
	}
	fmt.Fprintf(a.stderr, "✗ %v\n", err)
	return nil, result, exitWith(ExitValidationError, err)
}

func (a *app) runValidate(_ *cobra.Command, args []string) error {
	if !a.quiet {
		fmt.Fprintf(a.stderr, "Validating configuration: %s\n", args[0])
	}

	ch, result, err := a.loadChain(args[0])
	if err != nil {
		return err
	}

	// Building the filters catches unknown types and bad filter configs.
	if _, err := factory.CreateFilterModules(ch.Filters); err != nil {
		fmt.Fprintf(a.stderr, "✗ Invalid filter configuration: %v\n", err)
		return exitWith(ExitValidationError, err)
	}

	if !a.quiet {
		fmt.Fprintf(a.stdout, "✓ Configuration is valid (format: %s)\n", result.Format)
		if a.verbose {
			cli.PrintConfigSummary(a.stdout, ch)
		}
	}
	return nil
}

func (a *app) runChain(cmd *cobra.Command, args []string) error {
	ch, _, err := a.loadChain(args[0])
	if err != nil {
		return err
	}
	a.overrideIO(ch)
	return a.execute(cmd.Context(), ch)
}

func (a *app) runApply(cmd *cobra.Command, args []string) error {
	ch := &chain.Chain{ID: "apply", Name: "apply", Version: version}
	for _, filterType := range args {
		if needsConfig(filterType) {
			return fmt.Errorf("filter %q needs configuration; use a chain file with 'respfilter run'", filterType)
		}
		ch.Filters = append(ch.Filters, chain.ModuleConfig{Type: filterType})
	}
	if a.inputPath == "" {
		a.inputPath = input.StdinPath
	}
	if a.outputPath == "" {
		a.outputPath = output.StdoutPath
	}
	a.overrideIO(ch)
	return a.execute(cmd.Context(), ch)
}

// needsConfig reports whether filterType cannot run with an empty config.
func needsConfig(filterType string) bool {
	switch filterType {
	case filter.TypeMap, filter.TypeCondition, filter.TypeScript:
		return true
	}
	return false
}

// overrideIO replaces the chain's input and output with --input/--output files.
func (a *app) overrideIO(ch *chain.Chain) {
	if a.inputPath != "" {
		ch.Input = &chain.ModuleConfig{
			Type:   input.TypeFile,
			Config: map[string]interface{}{"path": a.inputPath, "format": a.format},
		}
	}
	if a.outputPath != "" {
		ch.Output = &chain.ModuleConfig{
			Type:   output.TypeFile,
			Config: map[string]interface{}{"path": a.outputPath, "format": a.format},
		}
	}
}

// execute builds the chain's modules and runs it.
func (a *app) execute(ctx context.Context, ch *chain.Chain) error {
	modules, err := factory.CreateChainModules(ch)
	if err != nil {
		fmt.Fprintf(a.stderr, "✗ Failed to create modules: %v\n", err)
		return exitWith(ExitValidationError, err)
	}

	// Data goes to stdout when the output is "-"; status text then moves to stderr.
	status := a.stdout
	if writesStdout(ch.Output) {
		status = a.stderr
	}

	if !a.quiet {
		mode := ""
		if a.dryRun {
			mode = " (dry-run mode - output will not be written)"
		}
		fmt.Fprintf(status, "Executing chain %q%s...\n", ch.Name, mode)
	}

	executor := runtime.NewExecutorWithModules(modules.Input, modules.Filters, modules.Output, a.dryRun)
	result, err := executor.ExecuteWithContext(ctx, ch)

	if err != nil {
		cli.PrintExecutionResult(a.stderr, result, err, cli.OutputOptions{Verbose: a.verbose})
		return exitWith(ExitRuntimeError, err)
	}
	cli.PrintExecutionResult(status, result, nil, cli.OutputOptions{
		Verbose: a.verbose,
		Quiet:   a.quiet,
		DryRun:  a.dryRun,
	})
	return nil
}

func writesStdout(cfg *chain.ModuleConfig) bool {
	if cfg == nil {
		return false
	}
	if cfg.Type == output.TypeStdout {
		return true
	}
	path, _ := cfg.Config["path"].(string)
	return cfg.Type == output.TypeFile && (path == "" || path == output.StdoutPath)
}
