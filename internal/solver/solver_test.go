package solver

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/ShayCichocki/nodetree/internal/llm"
	"github.com/ShayCichocki/nodetree/pkg/models"
)

var authSub = models.SubProblem{
	ID:          "sub-1",
	Title:       "Login flow",
	Description: "Email and password login",
	Objective:   "Authenticate users",
}

func TestBuildPrompt_ContainsRootAndFollowUp(t *testing.T) {
	prompt := BuildPrompt(authSub, &Context{
		Problem:  "Build a to-do app tracker",
		FollowUp: "add user authentication",
		Language: "German",
	})

	assert.Contains(t, prompt, "Original problem: Build a to-do app tracker")
	assert.Contains(t, prompt, "Follow-up question: add user authentication")
	assert.Contains(t, prompt, "Subproblem to solve: Login flow")
	assert.Contains(t, prompt, "Description: Email and password login")
	assert.Contains(t, prompt, "Objective: Authenticate users")
	assert.Contains(t, prompt, "Response must be in German")
}

func TestBuildPrompt_TruncatesAncestorSolutions(t *testing.T) {
	long := strings.Repeat("é", SolutionExcerptLimit+50)
	prompt := BuildPrompt(authSub, &Context{
		Ancestors: []models.AncestorSummary{{Title: "Data model", Problem: "p", Solution: long}},
	})

	assert.Contains(t, prompt, "Context Information (previous solutions):")
	assert.Contains(t, prompt, strings.Repeat("é", SolutionExcerptLimit))
	assert.NotContains(t, prompt, strings.Repeat("é", SolutionExcerptLimit+1))
}

func TestBuildPrompt_Defaults(t *testing.T) {
	prompt := BuildPrompt(models.SubProblem{Title: "Solution"}, nil)
	assert.Contains(t, prompt, "Response must be in English")
	assert.NotContains(t, prompt, "Original problem:")
	assert.NotContains(t, prompt, "Context Information")
	assert.NotContains(t, prompt, "%!")
}

func TestBuildPrompt_AdditionalContextFirst(t *testing.T) {
	prompt := BuildPrompt(authSub, &Context{Additional: "Research notes\n\n"})
	assert.True(t, strings.HasPrefix(prompt, "Research notes\n\n"))
}

func TestSolve_Success(t *testing.T) {
	var got llm.Request
	provider := llm.ProviderFunc(func(ctx context.Context, req llm.Request) (string, error) {
		got = req
		return "Use OAuth.", nil
	})
	s := New(provider, zaptest.NewLogger(t))

	result := s.Solve(context.Background(), authSub, &Context{Problem: "Build a to-do app tracker"})
	assert.True(t, result.Success)
	assert.Equal(t, "Use OAuth.", result.Content)
	assert.Equal(t, "Login flow", result.Title)
	assert.Equal(t, "sub-1", result.SubProblemID)
	assert.NoError(t, result.Err)

	assert.Equal(t, systemPrompt, got.System)
	assert.False(t, got.JSONMode)
	assert.Contains(t, got.Prompt, "Build a to-do app tracker")
}

func TestSolve_ProviderFailure(t *testing.T) {
	provider := llm.ProviderFunc(func(ctx context.Context, req llm.Request) (string, error) {
		return "", errors.New("upstream 500")
	})
	s := New(provider, nil)

	result := s.Solve(context.Background(), authSub, nil)
	assert.False(t, result.Success)
	assert.Equal(t, "sub-1", result.SubProblemID)
	assert.Contains(t, result.Content, "upstream 500")
	require.Error(t, result.Err)
}

func TestSolve_Timeout(t *testing.T) {
	provider := llm.ProviderFunc(func(ctx context.Context, req llm.Request) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	})
	s := New(provider, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	result := s.Solve(ctx, authSub, nil)

	assert.False(t, result.Success)
	assert.ErrorIs(t, result.Err, context.DeadlineExceeded)
	assert.Contains(t, result.Content, "timed out")
}

func TestSolve_Unavailable(t *testing.T) {
	provider := llm.ProviderFunc(func(ctx context.Context, req llm.Request) (string, error) {
		return "", llm.ErrUnavailable
	})
	result := New(provider, nil).Solve(context.Background(), authSub, nil)
	assert.Contains(t, result.Content, "temporarily unavailable")
}

func TestSetMaxTokens(t *testing.T) {
	var got llm.Request
	provider := llm.ProviderFunc(func(ctx context.Context, req llm.Request) (string, error) {
		got = req
		return "ok", nil
	})
	s := New(provider, nil)

	s.SetMaxTokens(0)
	s.Solve(context.Background(), authSub, nil)
	assert.Equal(t, DefaultMaxTokens, got.MaxTokens)

	s.SetMaxTokens(1024)
	s.Solve(context.Background(), authSub, nil)
	assert.Equal(t, 1024, got.MaxTokens)
}
