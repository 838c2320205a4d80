// Package solver turns one subproblem into one solution text.
package solver

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MakeNowJust/heredoc/v2"
	"go.uber.org/zap"

	"github.com/ShayCichocki/nodetree/internal/llm"
	"github.com/ShayCichocki/nodetree/pkg/models"
)

// SolutionExcerptLimit caps each ancestor solution quoted in a prompt, in runes.
const SolutionExcerptLimit = 1000

// DefaultMaxTokens bounds one solution.
const DefaultMaxTokens = 4096

// Context is the round-level information shared by every subproblem.
type Context struct {
	// Problem is the root problem text of the round.
	Problem  string
	FollowUp string
	Language string
	// Additional is opaque text prepended to the prompt, e.g. retrieved research.
	Additional string
	// Ancestors summarize prior solutions; their solution text is capped at
	// SolutionExcerptLimit by BuildPrompt.
	Ancestors []models.AncestorSummary
}

var systemPrompt = heredoc.Doc(`
	You are an expert problem solver and subject matter specialist. Your role is to:
	1. Analyze the given problem or subproblem carefully
	2. Provide comprehensive, detailed solutions
	3. Ensure solutions align with the overall context
	4. Present solutions in a clear, step-by-step format
	5. Include relevant code examples when necessary`)

// guidelines closes every prompt; it takes the response language.
var guidelines = heredoc.Doc(`

	Please provide a detailed solution following these guidelines:
	1. Carefully analyze the problem
	2. Ensure the solution is consistent with the overall context
	3. Provide step-by-step instructions
	4. Include relevant code examples if needed
	5. Response must be in %s

	Your solution should be thorough and practical.`)

// Solver solves subproblems with a generation provider.
type Solver struct {
	provider  llm.Provider
	logger    *zap.Logger
	maxTokens int
}

// New creates a Solver.
func New(provider llm.Provider, logger *zap.Logger) *Solver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Solver{
		provider:  provider,
		logger:    logger.Named("solver"),
		maxTokens: DefaultMaxTokens,
	}
}

// SetMaxTokens overrides the per-solution token bound. Values <= 0 are ignored.
func (s *Solver) SetMaxTokens(n int) {
	if n > 0 {
		s.maxTokens = n
	}
}

// Solve generates a solution for sp. It never returns an error: provider
// failures and timeouts produce a result with Success false and a readable
// message in Content.
func (s *Solver) Solve(ctx context.Context, sp models.SubProblem, sc *Context) models.SolverResult {
	if sc == nil {
		sc = &Context{}
	}
	result := models.SolverResult{
		Title:        sp.Title,
		SubProblemID: sp.ID,
	}

	start := time.Now()
	content, err := s.provider.Generate(ctx, llm.Request{
		Prompt:    BuildPrompt(sp, sc),
		System:    systemPrompt,
		MaxTokens: s.maxTokens,
	})
	if err != nil {
		result.Err = err
		result.Content = failureMessage(sp, err)
		s.logger.Warn("subproblem failed",
			zap.String("subproblem", sp.ID),
			zap.String("title", sp.Title),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
		return result
	}

	result.Success = true
	result.Content = content
	s.logger.Debug("subproblem solved",
		zap.String("subproblem", sp.ID),
		zap.Duration("elapsed", time.Since(start)))
	return result
}

func failureMessage(sp models.SubProblem, err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Sprintf("Solving %q timed out.", sp.Title)
	case errors.Is(err, context.Canceled):
		return fmt.Sprintf("Solving %q was cancelled.", sp.Title)
	case errors.Is(err, llm.ErrUnavailable):
		return fmt.Sprintf("Solving %q failed: the generation provider is temporarily unavailable.", sp.Title)
	default:
		return fmt.Sprintf("Solving %q failed: %v", sp.Title, err)
	}
}

// BuildPrompt renders the user prompt for one subproblem.
func BuildPrompt(sp models.SubProblem, sc *Context) string {
	if sc == nil {
		sc = &Context{}
	}
	language := sc.Language
	if language == "" {
		language = models.DefaultLanguage
	}

	var b strings.Builder
	if sc.Additional != "" {
		b.WriteString(strings.TrimRight(sc.Additional, "\n"))
		b.WriteString("\n\n")
	}

	if sc.Problem != "" {
		fmt.Fprintf(&b, "Original problem: %s\n", sc.Problem)
	}
	if sc.FollowUp != "" {
		fmt.Fprintf(&b, "Follow-up question: %s\n", sc.FollowUp)
	}

	if len(sc.Ancestors) > 0 {
		b.WriteString("\nContext Information (previous solutions):\n")
		for _, a := range sc.Ancestors {
			fmt.Fprintf(&b, "- %s (problem: %s): %s\n", a.Title, a.Problem, models.Truncate(a.Solution, SolutionExcerptLimit))
		}
	}

	fmt.Fprintf(&b, "\nSubproblem to solve: %s\n", sp.Title)
	if sp.Description != "" {
		fmt.Fprintf(&b, "Description: %s\n", sp.Description)
	}
	if sp.Objective != "" {
		fmt.Fprintf(&b, "Objective: %s\n", sp.Objective)
	}

	fmt.Fprintf(&b, guidelines, language)
	return b.String()
}
