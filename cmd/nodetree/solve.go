package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/ShayCichocki/nodetree/internal/config"
	"github.com/ShayCichocki/nodetree/internal/decompose"
	"github.com/ShayCichocki/nodetree/internal/llm"
	"github.com/ShayCichocki/nodetree/internal/observability"
	"github.com/ShayCichocki/nodetree/internal/orchestrator"
	"github.com/ShayCichocki/nodetree/internal/rag"
	"github.com/ShayCichocki/nodetree/internal/signals"
	"github.com/ShayCichocki/nodetree/internal/solver"
	"github.com/ShayCichocki/nodetree/internal/state"
	"github.com/ShayCichocki/nodetree/internal/stream"
	"github.com/ShayCichocki/nodetree/internal/tui"
	"github.com/ShayCichocki/nodetree/internal/version"
)

// stopPoll is how often the stop file is checked when fsnotify is unavailable.
const stopPoll = time.Second

var (
	solveFollowUp    string
	solveParent      string
	solveLanguage    string
	solveMode        string
	solveNoBreakdown bool
	solveTUI         bool
	solveMetricsFile string
)

var solveCmd = &cobra.Command{
	Use:   "solve [problem]",
	Short: "Decompose a problem and solve its subproblems",
	Long: `Decompose a problem into subproblems, solve each one and store the
solutions as nodes in the history tree.

Events are written to stdout as server-sent events:
  breakdown      the subproblems about to be solved
  solver_output  one per solved or failed subproblem
  complete       the round summary
  error          the round could not run

With --parent the round continues from an existing node. The problem may then
be omitted and is taken from the parent.

Touch <data dir>/signals/stop to cancel a running round.

Examples:
  nodetree solve "Build a to-do app tracker"
  nodetree solve --parent 550e8400-e29b-41d4-a716-446655440000 --follow-up "Add authentication"
  nodetree solve "Plan a data migration" --mode batch --tui`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSolve,
}

func init() {
	solveCmd.Flags().StringVar(&solveFollowUp, "follow-up", "", "Follow-up question for this round")
	solveCmd.Flags().StringVar(&solveParent, "parent", "", "ID of the node this round continues from")
	solveCmd.Flags().StringVar(&solveLanguage, "language", "", "Response language (default from config, parent, or English)")
	solveCmd.Flags().StringVar(&solveMode, "mode", "", "Delivery mode: stream or batch (default from config)")
	solveCmd.Flags().BoolVar(&solveNoBreakdown, "no-breakdown", false, "Do not emit the breakdown event")
	solveCmd.Flags().BoolVar(&solveTUI, "tui", false, "Show the round in a terminal UI instead of streaming events")
	solveCmd.Flags().StringVar(&solveMetricsFile, "metrics-file", "", "Write Prometheus metrics to this file on exit")
}

func runSolve(cmd *cobra.Command, args []string) error {
	cfg := current.cfg
	logger := current.logger
	if solveTUI {
		// Lower-level logs on stderr would tear the terminal view.
		logger = logger.WithOptions(zap.IncreaseLevel(zapcore.ErrorLevel))
	}

	req := orchestrator.Request{
		FollowUp: solveFollowUp,
		ParentID: solveParent,
		Language: solveLanguage,
	}
	if len(args) > 0 {
		req.Problem = args[0]
	}
	if req.Problem == "" && req.ParentID == "" {
		return errors.New("a problem is required unless --parent is set")
	}

	modeName := cfg.Round.StreamMode
	if solveMode != "" {
		modeName = solveMode
	}
	mode, err := orchestrator.ParseMode(modeName)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdown, err := observability.InitTracing(ctx, observability.TraceConfig{
		Exporter: cfg.Telemetry.Trace,
		Version:  version.Get(),
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := shutdown(context.Background()); err != nil {
			logger.Warn("flushing traces", zap.Error(err))
		}
	}()

	metrics := observability.NewMetrics(nil)
	if solveMetricsFile != "" {
		defer func() {
			if err := metrics.WriteTextfile(solveMetricsFile); err != nil {
				logger.Warn("writing metrics", zap.String("path", solveMetricsFile), zap.Error(err))
			}
		}()
	}

	provider, tracker, err := newProvider(ctx, cfg, logger)
	if err != nil {
		return err
	}
	provider = observability.InstrumentProvider(provider, cfg.Provider.Kind, metrics, observability.Tracer())
	defer func() {
		in, out := tracker.Total()
		logger.Info("token usage",
			zap.Int("calls", tracker.Calls()),
			zap.Int64("input_tokens", in),
			zap.Int64("output_tokens", out))
	}()

	tree, closeTree, err := openTree(ctx, logger)
	if err != nil {
		return err
	}
	defer closeTree()

	watcher, err := signals.New(state.DataDir(), logger)
	if err != nil {
		logger.Warn("stop file disabled", zap.Error(err))
	} else {
		defer watcher.Close()
		if err := watcher.Clear(); err != nil {
			logger.Warn("clearing stop file", zap.Error(err))
		}
		var cancel context.CancelFunc
		ctx, cancel = watcher.Bind(ctx, stopPoll)
		defer cancel()
	}

	slv := solver.New(provider, logger)
	slv.SetMaxTokens(cfg.Provider.MaxTokens)

	opts := []orchestrator.Option{
		orchestrator.WithMaxConcurrent(cfg.Round.MaxConcurrent),
		orchestrator.WithSolveTimeout(cfg.Round.SolveTimeout),
		orchestrator.WithExcerptLimit(cfg.Round.SolutionExcerpt),
		orchestrator.WithLanguage(cfg.Round.Language),
		orchestrator.WithMode(mode),
		// The terminal view needs the breakdown to lay out its rows.
		orchestrator.WithBreakdown(solveTUI || (cfg.Round.Breakdown && !solveNoBreakdown)),
		orchestrator.WithLogger(logger),
		orchestrator.WithMetrics(metrics),
	}
	if cfg.RAG.Enabled {
		retriever, err := rag.NewWeaviate(rag.WeaviateConfig{URL: cfg.RAG.WeaviateURL, Class: cfg.RAG.Class})
		if err != nil {
			return err
		}
		opts = append(opts, orchestrator.WithRetriever(retriever, cfg.RAG.TopK))
	}

	round, err := orchestrator.NewRound(orchestrator.RequiredConfig{
		Decomposer: decompose.New(provider, logger),
		Solver:     slv,
		Store:      tree,
	}, opts...)
	if err != nil {
		return err
	}

	if solveTUI {
		return runSolveTUI(ctx, round, req, mode)
	}

	_, err = round.Run(ctx, req, stream.NewEmitter(cmd.OutOrStdout()))
	return err
}

// newProvider builds the configured provider.
func newProvider(ctx context.Context, cfg *config.Config, logger *zap.Logger) (llm.Provider, *llm.TokenTracker, error) {
	pc := cfg.Provider
	key, err := config.GetAPIKey(cfg)
	if err != nil && !pc.Bedrock {
		return nil, nil, fmt.Errorf("%w: set %s or provider.api_key", err, config.APIKeyEnv(pc.Kind))
	}
	return llm.New(ctx, llm.Config{
		Provider:      pc.Kind,
		Model:         pc.Model,
		APIKey:        key,
		BaseURL:       pc.BaseURL,
		Temperature:   pc.Temperature,
		UseAWSBedrock: pc.Bedrock,
		AWSRegion:     pc.AWSRegion,
		AWSProfile:    pc.AWSProfile,
		RateLimit:     pc.RateLimit,
		Burst:         pc.Burst,
		Breaker:       pc.Breaker,
	}, logger)
}

// runSolveTUI runs rounds in the terminal view. Each follow-up submitted in
// the view starts a new round continuing from the last node of the previous
// one.
func runSolveTUI(ctx context.Context, round *orchestrator.Round, req orchestrator.Request, mode orchestrator.Mode) error {
	type outcome struct {
		res *orchestrator.Result
		err error
	}

	for {
		app := tui.NewRoundApp(req.Problem, req.FollowUp, mode == orchestrator.ModeStream)
		program := tea.NewProgram(app, tea.WithAltScreen(), tea.WithContext(ctx))

		roundCtx, cancel := context.WithCancel(ctx)
		done := make(chan outcome, 1)
		go func() {
			res, err := round.Run(roundCtx, req, tui.Sink(program))
			program.Send(tui.DoneMsg{Err: err})
			done <- outcome{res: res, err: err}
		}()

		_, runErr := program.Run()
		if app.Aborted() || runErr != nil {
			cancel()
		}
		out := <-done
		cancel()

		if runErr != nil && !errors.Is(runErr, tea.ErrProgramKilled) {
			return fmt.Errorf("running terminal view: %w", runErr)
		}
		if out.err != nil {
			return out.err
		}
		printSummary(os.Stderr, out.res.Summary)

		next := app.FollowUp()
		if next == "" {
			return nil
		}
		req = nextRequest(req, out.res.Summary, next)
	}
}

// nextRequest builds the follow-up round after prev. It continues from the
// last node stored by prev, or from prev's own parent when nothing was stored.
func nextRequest(prev orchestrator.Request, summary stream.Complete, followUp string) orchestrator.Request {
	next := orchestrator.Request{FollowUp: followUp, Language: prev.Language}
	if ids := summary.NodeIDs; len(ids) > 0 {
		next.ParentID = ids[len(ids)-1]
		return next
	}
	next.Problem = prev.Problem
	next.ParentID = prev.ParentID
	return next
}

func printSummary(w io.Writer, s stream.Complete) {
	status := color.GreenString("✓")
	if s.Failed > 0 || s.Degraded {
		status = color.YellowString("⚠")
	}
	fmt.Fprintf(w, "%s %d solved, %d failed", status, s.Solved, s.Failed)
	if s.Unsaved > 0 {
		fmt.Fprintf(w, ", %d not saved", s.Unsaved)
	}
	fmt.Fprintln(w)
	for _, id := range s.NodeIDs {
		fmt.Fprintf(w, "  %s\n", id)
	}
}
