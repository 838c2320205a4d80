package orchestrator

import (
	"time"

	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/ShayCichocki/nodetree/internal/observability"
	"github.com/ShayCichocki/nodetree/internal/rag"
	"github.com/ShayCichocki/nodetree/internal/solver"
)

// RequiredConfig contains the collaborators every Round needs.
// All fields are required and have no defaults.
type RequiredConfig struct {
	// Decomposer splits the problem into subproblems.
	Decomposer Decomposer
	// Solver solves one subproblem.
	Solver Solver
	// Store persists solved nodes and reads ancestor chains.
	Store Store
}

// Option configures a Round. Use With* functions to create Options.
type Option func(*roundOptions)

type roundOptions struct {
	maxConcurrent int
	solveTimeout  time.Duration
	excerptLimit  int
	language      string
	mode          Mode
	emitBreakdown bool

	retriever rag.Retriever
	topK      int

	logger   *zap.Logger
	metrics  *observability.Metrics
	tracer   trace.Tracer
	validate *validator.Validate
}

func defaultOptions() roundOptions {
	return roundOptions{
		maxConcurrent: DefaultMaxConcurrent,
		solveTimeout:  DefaultSolveTimeout,
		excerptLimit:  solver.SolutionExcerptLimit,
		mode:          ModeStream,
		emitBreakdown: true,
		topK:          rag.DefaultTopK,
	}
}

// WithMaxConcurrent sets how many subproblems a round solves at most.
func WithMaxConcurrent(n int) Option {
	return func(o *roundOptions) { o.maxConcurrent = n }
}

// WithSolveTimeout bounds each solver invocation. Zero disables the bound.
func WithSolveTimeout(d time.Duration) Option {
	return func(o *roundOptions) { o.solveTimeout = d }
}

// WithExcerptLimit caps ancestor solutions quoted in prompts, in runes.
func WithExcerptLimit(n int) Option {
	return func(o *roundOptions) { o.excerptLimit = n }
}

// WithLanguage sets the language used when a request names none.
func WithLanguage(lang string) Option {
	return func(o *roundOptions) { o.language = lang }
}

// WithMode selects the delivery policy.
func WithMode(m Mode) Option {
	return func(o *roundOptions) { o.mode = m }
}

// WithBreakdown controls whether the breakdown event is emitted.
func WithBreakdown(emit bool) Option {
	return func(o *roundOptions) { o.emitBreakdown = emit }
}

// WithRetriever enables retrieval-augmented context with the top k documents.
func WithRetriever(r rag.Retriever, topK int) Option {
	return func(o *roundOptions) {
		o.retriever = r
		if topK > 0 {
			o.topK = topK
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *roundOptions) { o.logger = l }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *observability.Metrics) Option {
	return func(o *roundOptions) { o.metrics = m }
}

// WithTracer sets the tracer. Defaults to the global nodetree tracer.
func WithTracer(t trace.Tracer) Option {
	return func(o *roundOptions) { o.tracer = t }
}
