package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/MakeNowJust/heredoc/v2"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ShayCichocki/nodetree/internal/config"
	"github.com/ShayCichocki/nodetree/internal/history"
	"github.com/ShayCichocki/nodetree/internal/logging"
	"github.com/ShayCichocki/nodetree/internal/state"
)

// errReported marks a failure whose output was already written.
var errReported = errors.New("reported")

var (
	configPath string
	logLevel   string
	logFormat  string
)

// session is the state shared by subcommands for one invocation.
type session struct {
	cfg    *config.Config
	logger *zap.Logger
}

var current session

var rootCmd = newRootCmd()

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "nodetree",
		Short: "Problem decomposition with a persistent solution tree",
		Long: heredoc.Doc(`
			nodetree breaks a problem into subproblems, solves each one with a
			language model and stores every solution as a node in a history tree.

			A follow-up round names an earlier node with --parent. The chain of
			ancestors of that node is fed back into the prompts so later rounds
			build on earlier solutions.

			Round events are written to stdout as server-sent events; logs go to
			stderr.
		`),
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: loadSession,
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if current.logger != nil {
				_ = current.logger.Sync()
			}
		},
	}

	cmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default: XDG and project config)")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")
	cmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "Log format: console or json")

	cmd.AddCommand(solveCmd)
	cmd.AddCommand(historyCmd)
	cmd.AddCommand(showCmd)
	cmd.AddCommand(priorityCmd)
	cmd.AddCommand(configCmd)
	cmd.AddCommand(versionCmd)
	return cmd
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		if !errors.Is(err, errReported) {
			fmt.Fprintf(os.Stderr, "%s %v\n", color.RedString("Error:"), err)
		}
		os.Exit(1)
	}
}

func loadSession(cmd *cobra.Command, args []string) error {
	var (
		cfg *config.Config
		err error
	)
	if configPath != "" {
		cfg, err = config.LoadFromPath(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	level := cfg.Log.Level
	if logLevel != "" {
		level = logLevel
	}
	format := cfg.Log.Format
	if logFormat != "" {
		format = logFormat
	}
	logger, err := logging.New(logging.Config{Level: level, Format: format})
	if err != nil {
		return err
	}

	current = session{cfg: cfg, logger: logger}
	return nil
}

// openTree opens the configured store. The returned close func releases it.
func openTree(ctx context.Context, logger *zap.Logger) (*history.Tree, func(), error) {
	sc := current.cfg.Store
	backend, err := state.Open(ctx, state.Config{
		Driver:     sc.Driver,
		Path:       sc.Path,
		URI:        sc.URI,
		Database:   sc.Database,
		Collection: sc.Collection,
	}, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("opening store: %w", err)
	}
	closeFn := func() {
		if err := backend.Close(); err != nil {
			logger.Warn("closing store", zap.Error(err))
		}
	}
	return history.New(backend, logger), closeFn, nil
}
