// Command aitokamak runs the Tokamak Network community assistant.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/tokamak-network/ai-tokamak/internal/config"
)

// main is intentionally minimal. It constructs the OS-level environment
// and delegates to [run] so the command tree can be driven from tests.
func main() {
	if err := run(context.Background(), os.Stdout, os.Stderr, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run executes the command tree with injected stdio and arguments.
func run(ctx context.Context, stdout, stderr io.Writer, args []string) error {
	root := newRootCmd(stdout, stderr)
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}

// globalFlags are the persistent flags shared by every subcommand.
type globalFlags struct {
	configPath string
	logLevel   string
	logFormat  string
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	flags := &globalFlags{}

	root := &cobra.Command{
		Use:   "aitokamak",
		Short: "Tokamak Network community assistant",
		Long: `aitokamak answers community questions about Tokamak Network on
Discord, MQTT and the web. It runs an LLM tool-calling loop over
per-conversation sessions and delivers replies through a message bus.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	root.PersistentFlags().StringVar(&flags.configPath, "config", "", "Path to config file (default: search standard locations)")
	root.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "Log level override: trace, debug, info, warn, error")
	root.PersistentFlags().StringVar(&flags.logFormat, "log-format", "", "Log format override: text or json")

	root.AddCommand(newServeCmd(flags))
	root.AddCommand(newAskCmd(flags))
	root.AddCommand(newInitCmd())
	root.AddCommand(newVersionCmd())

	return root
}

// newLogger creates a structured logger that writes to w at the given level
// and format. Format must be "text" or "json"; any other value defaults to
// text.
func newLogger(w io.Writer, level slog.Level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: config.ReplaceLogLevelNames,
	}
	var handler slog.Handler
	if format == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}

// loadConfig locates and parses the YAML configuration file, then applies
// the command-line logging overrides. Returns the parsed config and the
// path that was loaded.
func loadConfig(flags *globalFlags) (*config.Config, string, error) {
	cfgPath, err := config.FindConfig(flags.configPath)
	if err != nil {
		return nil, "", err
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, cfgPath, fmt.Errorf("load config %s: %w", cfgPath, err)
	}

	if flags.logLevel != "" {
		cfg.Logging.Level = flags.logLevel
	}
	if flags.logFormat != "" {
		cfg.Logging.Format = flags.logFormat
	}
	return cfg, cfgPath, nil
}

// loggerFor builds the logger described by cfg.Logging.
func loggerFor(w io.Writer, cfg *config.Config) (*slog.Logger, error) {
	level, err := config.ParseLogLevel(cfg.Logging.Level)
	if err != nil {
		return nil, err
	}
	return newLogger(w, level, cfg.Logging.Format), nil
}
