package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ShayCichocki/nodetree/pkg/models"
)

func subproblems(n int) []models.SubProblem {
	subs := make([]models.SubProblem, n)
	for i := range subs {
		subs[i] = models.SubProblem{ID: fmt.Sprintf("sub-%d", i), Title: fmt.Sprintf("Task %d", i)}
	}
	return subs
}

func TestNewScheduler(t *testing.T) {
	s := NewScheduler(0, -1)
	if s.maxConcurrent != DefaultMaxConcurrent {
		t.Errorf("expected maxConcurrent %d, got %d", DefaultMaxConcurrent, s.maxConcurrent)
	}
	if s.timeout != DefaultSolveTimeout {
		t.Errorf("expected timeout %v, got %v", DefaultSolveTimeout, s.timeout)
	}

	s = NewScheduler(3, 0)
	if s.MaxConcurrent() != 3 || s.timeout != 0 {
		t.Errorf("unexpected scheduler %+v", s)
	}
}

func TestBound(t *testing.T) {
	subs := subproblems(12)

	bounded := Bound(subs, 10)
	if len(bounded) != 10 {
		t.Fatalf("expected 10 subproblems, got %d", len(bounded))
	}
	for i, sp := range bounded {
		if sp.ID != subs[i].ID {
			t.Errorf("position %d: expected %s, got %s", i, subs[i].ID, sp.ID)
		}
	}

	if got := Bound(subs[:3], 10); len(got) != 3 {
		t.Errorf("expected short list untouched, got %d", len(got))
	}
	if got := Bound(subs, 0); len(got) != 12 {
		t.Errorf("expected no bound for max 0, got %d", len(got))
	}
}

func TestEnsureOne(t *testing.T) {
	got := EnsureOne(nil, "Build a to-do app tracker", "")
	if len(got) != 1 {
		t.Fatalf("expected 1 default subproblem, got %d", len(got))
	}
	if got[0].Title != "Solution" || got[0].Description != "Build a to-do app tracker" {
		t.Errorf("unexpected default subproblem %+v", got[0])
	}
	if got[0].Objective != "Provide a complete solution" {
		t.Errorf("unexpected objective %q", got[0].Objective)
	}
	if got[0].ID == "" {
		t.Error("expected default subproblem to have an id")
	}

	got = EnsureOne(nil, "p", "add auth")
	if got[0].Objective != "add auth" {
		t.Errorf("expected follow-up as objective, got %q", got[0].Objective)
	}

	subs := subproblems(2)
	if got := EnsureOne(subs, "p", ""); len(got) != 2 {
		t.Errorf("expected non-empty list untouched, got %d", len(got))
	}
}

func TestRunBatch_DeclarationOrder(t *testing.T) {
	s := NewScheduler(10, time.Second)
	subs := subproblems(5)

	results := s.RunBatch(context.Background(), subs, func(ctx context.Context, sp models.SubProblem) models.SolverResult {
		// Later subproblems finish first.
		idx := 0
		fmt.Sscanf(sp.ID, "sub-%d", &idx)
		time.Sleep(time.Duration(5-idx) * 5 * time.Millisecond)
		return models.SolverResult{Success: true, Title: sp.Title, Content: sp.ID}
	})

	if len(results) != 5 {
		t.Fatalf("expected 5 results, got %d", len(results))
	}
	for i, r := range results {
		if r.SubProblemID != subs[i].ID || r.Content != subs[i].ID {
			t.Errorf("position %d: expected %s, got %+v", i, subs[i].ID, r)
		}
	}
}

func TestRunBatch_FailureIsolated(t *testing.T) {
	s := NewScheduler(10, time.Second)
	subs := subproblems(3)

	results := s.RunBatch(context.Background(), subs, func(ctx context.Context, sp models.SubProblem) models.SolverResult {
		if sp.ID == "sub-1" {
			return models.SolverResult{Title: sp.Title, Content: "failed", Err: errors.New("boom")}
		}
		select {
		case <-ctx.Done():
			return models.SolverResult{Title: sp.Title, Err: ctx.Err()}
		case <-time.After(20 * time.Millisecond):
		}
		return models.SolverResult{Success: true, Title: sp.Title}
	})

	if !results[0].Success || results[1].Success || !results[2].Success {
		t.Errorf("expected success, failure, success; got %+v", results)
	}
}

func TestRunBatch_RespectsLimit(t *testing.T) {
	s := NewScheduler(2, 0)
	var running, peak int32

	s.RunBatch(context.Background(), subproblems(6), func(ctx context.Context, sp models.SubProblem) models.SolverResult {
		n := atomic.AddInt32(&running, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		atomic.AddInt32(&running, -1)
		return models.SolverResult{Success: true}
	})

	if peak > 2 {
		t.Errorf("expected at most 2 concurrent solves, saw %d", peak)
	}
}

func TestRunSequential_OrderAndYield(t *testing.T) {
	s := NewScheduler(10, time.Second)
	subs := subproblems(3)

	var events []string
	n := s.RunSequential(context.Background(), subs, func(ctx context.Context, sp models.SubProblem) models.SolverResult {
		events = append(events, "solve:"+sp.ID)
		return models.SolverResult{Success: true}
	}, func(i int, r models.SolverResult) bool {
		events = append(events, "yield:"+r.SubProblemID)
		return true
	})

	want := []string{"solve:sub-0", "yield:sub-0", "solve:sub-1", "yield:sub-1", "solve:sub-2", "yield:sub-2"}
	if n != 3 {
		t.Errorf("expected 3 dispatched, got %d", n)
	}
	if fmt.Sprint(events) != fmt.Sprint(want) {
		t.Errorf("expected %v, got %v", want, events)
	}
}

func TestRunSequential_StopsWhenYieldDeclines(t *testing.T) {
	s := NewScheduler(10, 0)
	calls := 0
	n := s.RunSequential(context.Background(), subproblems(3), func(ctx context.Context, sp models.SubProblem) models.SolverResult {
		calls++
		return models.SolverResult{Success: true}
	}, func(i int, r models.SolverResult) bool { return false })

	if n != 1 || calls != 1 {
		t.Errorf("expected a single dispatch, got n=%d calls=%d", n, calls)
	}
}

func TestRunSequential_StopsOnCancel(t *testing.T) {
	s := NewScheduler(10, 0)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	calls := 0
	n := s.RunSequential(ctx, subproblems(3), func(ctx context.Context, sp models.SubProblem) models.SolverResult {
		calls++
		cancel()
		return models.SolverResult{Success: true}
	}, func(i int, r models.SolverResult) bool { return true })

	if n != 1 || calls != 1 {
		t.Errorf("expected no dispatch after cancel, got n=%d calls=%d", n, calls)
	}
}

func TestScheduler_PerSolveTimeout(t *testing.T) {
	s := NewScheduler(10, 10*time.Millisecond)
	results := s.RunBatch(context.Background(), subproblems(2), func(ctx context.Context, sp models.SubProblem) models.SolverResult {
		if sp.ID == "sub-0" {
			<-ctx.Done()
			return models.SolverResult{Title: sp.Title, Err: ctx.Err()}
		}
		return models.SolverResult{Success: true}
	})

	if !errors.Is(results[0].Err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", results[0].Err)
	}
	if !results[1].Success {
		t.Error("expected sibling to succeed")
	}
}

func TestScheduler_CancelledBeforeDispatch(t *testing.T) {
	s := NewScheduler(10, 0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	results := s.RunBatch(ctx, subproblems(1), func(ctx context.Context, sp models.SubProblem) models.SolverResult {
		called = true
		return models.SolverResult{Success: true}
	})
	if called {
		t.Error("expected solve not to run on a cancelled context")
	}
	if results[0].Success || !errors.Is(results[0].Err, context.Canceled) {
		t.Errorf("expected cancelled result, got %+v", results[0])
	}
}
