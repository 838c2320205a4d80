package orchestrator

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ShayCichocki/nodetree/pkg/models"
)

const (
	// DefaultMaxConcurrent bounds the subproblems solved per round.
	DefaultMaxConcurrent = 10
	// DefaultSolveTimeout bounds one solver invocation.
	DefaultSolveTimeout = 2 * time.Minute
)

// SolveFunc solves one subproblem. It reports failure through the result,
// never by panicking.
type SolveFunc func(ctx context.Context, sp models.SubProblem) models.SolverResult

// Scheduler fans subproblems out to a SolveFunc under a concurrency bound and a
// per-solve timeout.
type Scheduler struct {
	// maxConcurrent is both the truncation bound and the worker limit.
	maxConcurrent int
	// timeout bounds each solve; zero disables it.
	timeout time.Duration
}

// NewScheduler creates a Scheduler. Non-positive values fall back to the defaults.
func NewScheduler(maxConcurrent int, timeout time.Duration) *Scheduler {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrent
	}
	if timeout < 0 {
		timeout = DefaultSolveTimeout
	}
	return &Scheduler{maxConcurrent: maxConcurrent, timeout: timeout}
}

// MaxConcurrent returns the scheduler bound.
func (s *Scheduler) MaxConcurrent() int {
	return s.maxConcurrent
}

// Bound keeps the first max subproblems in their original order. Excess
// entries are dropped, not queued.
func Bound(subs []models.SubProblem, max int) []models.SubProblem {
	if max <= 0 || len(subs) <= max {
		return subs
	}
	return subs[:max]
}

// EnsureOne returns subs unchanged when it is non-empty, otherwise a single
// default subproblem built from the raw problem.
func EnsureOne(subs []models.SubProblem, problem, followUp string) []models.SubProblem {
	if len(subs) > 0 {
		return subs
	}
	return []models.SubProblem{models.DefaultSubProblem(problem, followUp)}
}

// Prepare bounds subs and guarantees at least one entry.
func (s *Scheduler) Prepare(subs []models.SubProblem, problem, followUp string) []models.SubProblem {
	return EnsureOne(Bound(subs, s.maxConcurrent), problem, followUp)
}

// RunBatch dispatches every subproblem concurrently and waits for all of them.
// Results come back in declaration order. One failure never cancels its
// siblings; only ctx does.
func (s *Scheduler) RunBatch(ctx context.Context, subs []models.SubProblem, solve SolveFunc) []models.SolverResult {
	results := make([]models.SolverResult, len(subs))

	var g errgroup.Group
	g.SetLimit(s.maxConcurrent)
	for i, sp := range subs {
		g.Go(func() error {
			results[i] = s.run(ctx, sp, solve)
			return nil
		})
	}
	_ = g.Wait()

	return results
}

// RunSequential solves subproblems one at a time in declaration order and
// calls yield after each completes, before the next is dispatched. It stops
// dispatching when ctx is done or yield returns false, and returns the number
// of subproblems dispatched.
func (s *Scheduler) RunSequential(ctx context.Context, subs []models.SubProblem, solve SolveFunc, yield func(i int, r models.SolverResult) bool) int {
	dispatched := 0
	for i, sp := range subs {
		if ctx.Err() != nil {
			break
		}
		dispatched++
		if !yield(i, s.run(ctx, sp, solve)) {
			break
		}
	}
	return dispatched
}

func (s *Scheduler) run(ctx context.Context, sp models.SubProblem, solve SolveFunc) models.SolverResult {
	if err := ctx.Err(); err != nil {
		return models.SolverResult{
			Title:        sp.Title,
			SubProblemID: sp.ID,
			Content:      fmt.Sprintf("Solving %q was cancelled.", sp.Title),
			Err:          err,
		}
	}
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	r := solve(ctx, sp)
	if r.SubProblemID == "" {
		r.SubProblemID = sp.ID
	}
	return r
}
