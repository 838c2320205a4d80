package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/ShayCichocki/nodetree/internal/decompose"
	"github.com/ShayCichocki/nodetree/internal/history"
	"github.com/ShayCichocki/nodetree/internal/observability"
	"github.com/ShayCichocki/nodetree/internal/rag"
	"github.com/ShayCichocki/nodetree/internal/solver"
	"github.com/ShayCichocki/nodetree/internal/stream"
	"github.com/ShayCichocki/nodetree/pkg/models"
)

// Mode is a delivery policy.
type Mode string

const (
	// ModeStream solves one subproblem at a time and emits each result before
	// dispatching the next.
	ModeStream Mode = "stream"
	// ModeBatch solves all subproblems concurrently and emits the results in
	// declaration order once all are done.
	ModeBatch Mode = "batch"
)

// ParseMode converts a config or flag value to a Mode. Empty means stream.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeStream:
		return ModeStream, nil
	case ModeBatch:
		return ModeBatch, nil
	default:
		return "", fmt.Errorf("unknown mode %q (want stream or batch)", s)
	}
}

var (
	// ErrInvalidRequest is returned for a request that fails validation.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrParentNotFound is returned when the request names a missing parent node.
	ErrParentNotFound = errors.New("parent node not found")
	// ErrStoreUnavailable is returned when the store is unreachable at round start.
	ErrStoreUnavailable = errors.New("store unavailable")
)

// Decomposer splits a problem into subproblems.
type Decomposer interface {
	Decompose(ctx context.Context, req decompose.Request) (*models.Breakdown, error)
}

// Solver solves one subproblem.
type Solver interface {
	Solve(ctx context.Context, sp models.SubProblem, sc *solver.Context) models.SolverResult
}

// Store is the slice of the history tree a round uses.
type Store interface {
	Ping(ctx context.Context) error
	Get(ctx context.Context, id string) (*models.Node, error)
	Upsert(ctx context.Context, node *models.Node) (string, error)
	Ancestors(ctx context.Context, startID string) []*models.Node
}

var _ Store = (*history.Tree)(nil)

// Request is one round's input.
type Request struct {
	// Problem is the root problem. It may be omitted on a follow-up round, in
	// which case the parent's problem is reused.
	Problem  string `json:"problem" validate:"required_without=ParentID,max=20000"`
	FollowUp string `json:"followUpQuestion" validate:"max=20000"`
	ParentID string `json:"parentId" validate:"omitempty,max=64"`
	Language string `json:"language" validate:"omitempty,max=64"`
}

// Result is everything a round produced.
type Result struct {
	Breakdown *models.Breakdown
	// Results holds one entry per dispatched subproblem, in declaration order.
	Results []models.SolverResult
	// Nodes holds the persisted nodes in delivery order.
	Nodes   []*models.Node
	Summary stream.Complete
}

// Round wires the decomposer, scheduler, solver and history store together.
type Round struct {
	decomposer Decomposer
	solver     Solver
	store      Store
	scheduler  *Scheduler
	opts       roundOptions
	logger     *zap.Logger
	tracer     trace.Tracer
	validate   *validator.Validate
}

// NewRound creates a Round.
func NewRound(required RequiredConfig, opts ...Option) (*Round, error) {
	if required.Decomposer == nil {
		return nil, errors.New("decomposer is required")
	}
	if required.Solver == nil {
		return nil, errors.New("solver is required")
	}
	if required.Store == nil {
		return nil, errors.New("store is required")
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	if o.tracer == nil {
		o.tracer = observability.Tracer()
	}
	if o.validate == nil {
		o.validate = validator.New(validator.WithRequiredStructEnabled())
	}
	if _, err := ParseMode(string(o.mode)); err != nil {
		return nil, err
	}

	return &Round{
		decomposer: required.Decomposer,
		solver:     required.Solver,
		store:      required.Store,
		scheduler:  NewScheduler(o.maxConcurrent, o.solveTimeout),
		opts:       o,
		logger:     o.logger.Named("round"),
		tracer:     o.tracer,
		validate:   o.validate,
	}, nil
}

// roundState is the per-run working set.
type roundState struct {
	problem  string
	followUp string
	language string
	parentID *string
	subs     []models.SubProblem
	sc       *solver.Context
	result   *Result
}

// Run executes one round and sends its events to sink in order: an optional
// breakdown, one solver_output per dispatched subproblem whose result is
// deliverable, then exactly one terminal complete or error event.
//
// A structural failure (invalid request, unreachable store, missing parent,
// cancellation, a sink that stops accepting events) ends the round with an
// error event and is returned. Individual solve failures are not errors.
func (r *Round) Run(ctx context.Context, req Request, sink stream.Sink) (*Result, error) {
	if sink == nil {
		sink = stream.SinkFunc(func(stream.Event) error { return nil })
	}

	ctx, span := r.tracer.Start(ctx, "round.run", trace.WithAttributes(
		attribute.String("round.mode", string(r.opts.mode)),
		attribute.Bool("round.follow_up", req.FollowUp != ""),
		attribute.String("round.parent_id", req.ParentID),
	))
	defer span.End()

	start := time.Now()
	res, err := r.run(ctx, req, sink)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		r.opts.metrics.RoundFinished("error")
		r.logger.Error("round failed", zap.Duration("elapsed", time.Since(start)), zap.Error(err))
		if sendErr := sink.Send(stream.NewError(err, req.Problem, req.FollowUp)); sendErr != nil {
			r.logger.Debug("error event not delivered", zap.Error(sendErr))
		}
		return res, err
	}

	outcome := "complete"
	if res.Summary.Degraded {
		outcome = "degraded"
	}
	r.opts.metrics.RoundFinished(outcome)
	span.SetAttributes(
		attribute.Int("round.solved", res.Summary.Solved),
		attribute.Int("round.failed", res.Summary.Failed),
		attribute.Int("round.unsaved", res.Summary.Unsaved),
	)
	r.logger.Info("round complete",
		zap.Int("requested", res.Summary.Requested),
		zap.Int("dispatched", res.Summary.Dispatched),
		zap.Int("solved", res.Summary.Solved),
		zap.Int("failed", res.Summary.Failed),
		zap.Int("unsaved", res.Summary.Unsaved),
		zap.Duration("elapsed", time.Since(start)))
	return res, nil
}

func (r *Round) run(ctx context.Context, req Request, sink stream.Sink) (*Result, error) {
	st, err := r.prepare(ctx, req)
	if err != nil {
		return nil, err
	}
	res := st.result

	if r.opts.emitBreakdown {
		if err := sink.Send(stream.NewBreakdown(res.Breakdown)); err != nil {
			return res, fmt.Errorf("send breakdown: %w", err)
		}
	}

	solve := func(ctx context.Context, sp models.SubProblem) models.SolverResult {
		return r.solveOne(ctx, sp, st.sc)
	}

	var sendErr error
	switch r.opts.mode {
	case ModeBatch:
		results := r.scheduler.RunBatch(ctx, st.subs, solve)
		res.Summary.Dispatched = len(st.subs)
		for i, sr := range results {
			res.Results = append(res.Results, sr)
			if sendErr = r.deliver(ctx, st, st.subs[i], sr, sink); sendErr != nil {
				break
			}
		}
	default:
		res.Summary.Dispatched = r.scheduler.RunSequential(ctx, st.subs, solve, func(i int, sr models.SolverResult) bool {
			res.Results = append(res.Results, sr)
			sendErr = r.deliver(ctx, st, st.subs[i], sr, sink)
			return sendErr == nil
		})
	}
	if sendErr != nil {
		return res, sendErr
	}
	if ctx.Err() != nil {
		return res, fmt.Errorf("round cancelled: %w", context.Cause(ctx))
	}

	res.Summary.Degraded = res.Summary.Unsaved > 0
	if err := sink.Send(stream.NewComplete(res.Summary)); err != nil {
		return res, fmt.Errorf("send complete: %w", err)
	}
	return res, nil
}

// prepare validates the request, loads ancestor context and decomposes the
// problem into the bounded subproblem list.
func (r *Round) prepare(ctx context.Context, req Request) (*roundState, error) {
	if err := r.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}

	st := &roundState{
		problem:  strings.TrimSpace(req.Problem),
		followUp: strings.TrimSpace(req.FollowUp),
		language: firstNonEmpty(req.Language, r.opts.language, models.DefaultLanguage),
	}

	if err := r.store.Ping(ctx); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}

	var chain []*models.Node
	if req.ParentID != "" {
		parentID, err := models.CanonicalID(req.ParentID)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
		}
		parent, err := r.store.Get(ctx, parentID)
		if errors.Is(err, history.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrParentNotFound, parentID)
		}
		if err != nil {
			return nil, fmt.Errorf("load parent: %w", err)
		}
		st.parentID = &parentID
		if st.problem == "" {
			st.problem = parent.Problem
		}
		if req.Language == "" && r.opts.language == "" {
			st.language = parent.Language()
		}
		chain = r.store.Ancestors(ctx, parentID)
	}
	if st.problem == "" {
		return nil, fmt.Errorf("%w: problem is empty", ErrInvalidRequest)
	}

	ancestors := models.Summarize(chain, r.opts.excerptLimit)
	additional := r.retrieve(ctx, st.problem, st.followUp)

	bd := r.decompose(ctx, decompose.Request{
		Problem:           st.problem,
		FollowUp:          st.followUp,
		Ancestors:         ancestors,
		Language:          st.language,
		AdditionalContext: additional,
	})
	requested := len(bd.SubProblems)
	r.opts.metrics.Requested(requested)

	st.subs = r.scheduler.Prepare(bd.SubProblems, st.problem, st.followUp)
	if requested > len(st.subs) {
		r.logger.Info("subproblems truncated",
			zap.Int("requested", requested),
			zap.Int("max", r.scheduler.MaxConcurrent()))
	}
	bd.SubProblems = st.subs

	st.sc = &solver.Context{
		Problem:    st.problem,
		FollowUp:   st.followUp,
		Language:   st.language,
		Additional: additional,
		Ancestors:  ancestors,
	}
	st.result = &Result{
		Breakdown: bd,
		Summary: stream.Complete{
			ParentID:  st.parentID,
			Requested: requested,
			NodeIDs:   []string{},
		},
	}
	return st, nil
}

// decompose never fails: an unusable decomposition falls back to an empty
// breakdown, which the scheduler turns into the default subproblem.
func (r *Round) decompose(ctx context.Context, req decompose.Request) *models.Breakdown {
	ctx, span := r.tracer.Start(ctx, "round.decompose")
	defer span.End()

	bd, err := r.decomposer.Decompose(ctx, req)
	if err != nil || bd == nil {
		if err != nil {
			span.RecordError(err)
		}
		r.opts.metrics.DecomposeFailed()
		r.logger.Warn("decomposition failed, using default subproblem", zap.Error(err))
		bd = &models.Breakdown{}
	}
	bd.Problem = req.Problem
	bd.FollowUpQuestion = models.StringPtr(req.FollowUp)
	span.SetAttributes(attribute.Int("decompose.subproblems", len(bd.SubProblems)))
	return bd
}

func (r *Round) retrieve(ctx context.Context, problem, followUp string) string {
	if r.opts.retriever == nil {
		return ""
	}
	ctx, span := r.tracer.Start(ctx, "round.retrieve")
	defer span.End()

	query := strings.TrimSpace(problem + " " + followUp)
	docs, err := r.opts.retriever.Retrieve(ctx, query, r.opts.topK)
	if err != nil {
		span.RecordError(err)
		r.logger.Warn("retrieval failed, continuing without research context", zap.Error(err))
		return ""
	}
	span.SetAttributes(attribute.Int("rag.documents", len(docs)))
	return rag.FormatContext(docs)
}

func (r *Round) solveOne(ctx context.Context, sp models.SubProblem, sc *solver.Context) models.SolverResult {
	ctx, span := r.tracer.Start(ctx, "round.solve", trace.WithAttributes(
		attribute.String("subproblem.id", sp.ID),
		attribute.String("subproblem.title", sp.Title),
	))
	defer span.End()

	start := time.Now()
	res := r.solver.Solve(ctx, sp, sc)
	outcome := observability.OutcomeSuccess
	if !res.Success {
		outcome = observability.OutcomeFailure
		span.SetStatus(codes.Error, res.Content)
	}
	r.opts.metrics.SolveFinished(outcome, time.Since(start))
	return res
}

// deliver persists a successful result and emits its event. A failed solve is
// emitted as a failure. A node that could not be saved is counted as unsaved
// and not emitted.
func (r *Round) deliver(ctx context.Context, st *roundState, sp models.SubProblem, sr models.SolverResult, sink stream.Sink) error {
	sum := &st.result.Summary

	if !sr.Success {
		sum.Failed++
		if err := sink.Send(stream.NewSolverFailure(sr)); err != nil {
			return fmt.Errorf("send solver_output: %w", err)
		}
		return nil
	}
	sum.Solved++

	node := &models.Node{
		Title:            sp.Title,
		Description:      sp.Description,
		Objective:        sp.Objective,
		Solution:         sr.Content,
		Problem:          st.problem,
		FollowUpQuestion: models.StringPtr(st.followUp),
		Metadata:         map[string]any{models.MetadataLanguage: st.language},
	}
	if st.parentID != nil {
		parent := *st.parentID
		node.ParentID = &parent
	}

	id, err := r.store.Upsert(ctx, node)
	if err != nil {
		sum.Unsaved++
		r.opts.metrics.Unsaved()
		r.logger.Error("solution not persisted, skipping event",
			zap.String("subproblem", sp.ID),
			zap.String("title", sp.Title),
			zap.Error(err))
		return nil
	}

	sum.NodeIDs = append(sum.NodeIDs, id)
	st.result.Nodes = append(st.result.Nodes, node)
	if err := sink.Send(stream.NewSolverOutput(node, sp.ID)); err != nil {
		return fmt.Errorf("send solver_output: %w", err)
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
