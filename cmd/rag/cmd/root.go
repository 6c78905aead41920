// Package cmd provides the CLI commands for rag.
package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"hybridrag/internal/config"
	"hybridrag/internal/logging"
	"hybridrag/internal/tui"
)

// rootOptions are the persistent flags shared by every command.
type rootOptions struct {
	configPath string
	debug      bool

	cfg     *config.AppConfig
	logger  *slog.Logger
	cleanup func()
}

// Execute runs the root command. The log file is closed whether or not the
// command succeeds; cobra skips post-run hooks after an error.
func Execute() error {
	cmd, opts := newRootCmd()
	return execute(cmd, opts, os.Args[1:])
}

func execute(cmd *cobra.Command, opts *rootOptions, args []string) error {
	defer opts.close()
	cmd.SetArgs(args)
	return cmd.Execute()
}

// NewRootCmd creates the root command for the rag CLI.
func NewRootCmd() *cobra.Command {
	cmd, _ := newRootCmd()
	return cmd
}

func newRootCmd() (*cobra.Command, *rootOptions) {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "rag [files...]",
		Short: "Hybrid vector + lexical search over local documents",
		Long: `rag chunks the given files, embeds every chunk and opens an interactive
search screen. Results are ranked by a weighted blend of cosine similarity
and token overlap.

Examples:
  rag notes/*.md
  rag --config config.yaml docs/*.txt
  rag search --query "replication lag" docs/*.md`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInteractive(cmd.Context(), opts, args)
		},
	}

	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "Path to YAML config file (default ./config.yaml or ~/.config/hybridrag/config.yaml)")
	cmd.PersistentFlags().BoolVar(&opts.debug, "debug", false, "Enable debug logging")

	cmd.PersistentPreRunE = func(cmd *cobra.Command, _ []string) error {
		return opts.load(cmd)
	}

	cmd.AddCommand(newSearchCmd(opts))
	cmd.AddCommand(newStrategiesCmd(opts))
	cmd.AddCommand(newDeleteCmd(opts))
	cmd.AddCommand(newClearCmd(opts))
	return cmd, opts
}

// close flushes and closes the log output opened by load.
func (o *rootOptions) close() {
	if o.cleanup != nil {
		o.cleanup()
		o.cleanup = nil
	}
}

// load reads .env and the config file, then sets up logging. The
// interactive screen owns the terminal, so without a log file it only
// receives errors.
func (o *rootOptions) load(cmd *cobra.Command) error {
	_ = godotenv.Load()

	var err error
	if o.configPath == "" {
		o.cfg, _, err = config.LoadDefault()
	} else {
		o.cfg, err = config.Load(o.configPath)
	}
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logCfg := logging.Config{
		Level:    o.cfg.Logging.Level,
		Format:   o.cfg.Logging.Format,
		FilePath: o.cfg.Logging.File,
		Output:   cmd.ErrOrStderr(),
	}
	if o.debug {
		logCfg.Level = "debug"
	}
	if cmd.Parent() == nil && logCfg.FilePath == "" {
		logCfg.Output = io.Discard
	}
	o.logger, o.cleanup, err = logging.Setup(logCfg)
	if err != nil {
		return fmt.Errorf("failed to set up logging: %w", err)
	}
	slog.SetDefault(o.logger)
	return nil
}

func runInteractive(ctx context.Context, opts *rootOptions, paths []string) error {
	a, err := buildApp(ctx, opts.cfg, opts.logger)
	if err != nil {
		return err
	}
	defer a.Close()

	report, err := a.service.IngestFiles(ctx, paths)
	if err != nil {
		return fmt.Errorf("ingest failed: %w", err)
	}
	summary, err := a.service.Summary()
	if err != nil {
		return fmt.Errorf("summarize failed: %w", err)
	}
	if len(report.Failed) > 0 {
		summary = fmt.Sprintf("%s\n(%d of %d chunks failed to index)", summary, len(report.Failed), report.Chunks)
	}

	m := tui.New(a.service, summary, opts.cfg.Search.HybridWeight, opts.cfg.Search.MaxResults)
	_, err = tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	return err
}
