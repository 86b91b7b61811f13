package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ectomigo/ectomigo/internal/config"
	"github.com/ectomigo/ectomigo/internal/parser"
	"github.com/ectomigo/ectomigo/internal/parser/patterns"
)

// app is the state shared by every subcommand once flags are parsed.
type app struct {
	root     string
	cfgFile  string
	logLevel string

	cfg      *config.Config
	project  *config.Project
	logger   *slog.Logger
	grammars *parser.Grammars
	registry *patterns.Registry
}

func newRootCmd() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:   "ectomigo",
		Short: "Find code affected by database migrations",
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "help" || cmd.Name() == "completion" {
				return nil
			}
			return a.init(cmd)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&a.root, "root", ".", "repository root")
	rootCmd.PersistentFlags().StringVar(&a.cfgFile, "config", "", "project config file (default: <root>/"+config.ProjectFile+")")
	rootCmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level (debug|info|warn|error)")
	rootCmd.PersistentFlags().StringP("output", "o", "-", "output file, - for stdout")
	rootCmd.PersistentFlags().Bool("upload", false, "also upload results to the artifact bucket")

	rootCmd.AddCommand(newIndexCmd(a))
	rootCmd.AddCommand(newMatchCmd(a))
	rootCmd.AddCommand(newWorkerCmd(a))
	return rootCmd
}

func (a *app) init(cmd *cobra.Command) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}
	logger, err := newLogger(cfg.Log)
	if err != nil {
		return err
	}

	root, err := filepath.Abs(a.root)
	if err != nil {
		return fmt.Errorf("resolve root: %w", err)
	}
	project, err := config.LoadProject(root, a.cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	a.grammars = parser.NewGrammars()
	a.registry, err = patterns.Default(a.grammars)
	if err != nil {
		return fmt.Errorf("build pattern registry: %w", err)
	}
	a.root, a.cfg, a.project, a.logger = root, cfg, project, logger
	return nil
}

func newLogger(cfg config.LogConfig) (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		return nil, fmt.Errorf("log level %q: %w", cfg.Level, err)
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "text" {
		return slog.New(slog.NewTextHandler(os.Stderr, opts)), nil
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, opts)), nil
}

// openOutput returns the writer for path, stdout for "-".
func openOutput(path string) (*os.File, func() error, error) {
	if path == "" || path == "-" {
		return os.Stdout, func() error { return nil }, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("create output: %w", err)
	}
	return f, f.Close, nil
}

// closeOutput runs closeFn and stores its error in *err unless an earlier
// error is already there.
func closeOutput(closeFn func() error, err *error) {
	if cerr := closeFn(); cerr != nil && *err == nil {
		*err = fmt.Errorf("close output: %w", cerr)
	}
}
