package decompose

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ShayCichocki/nodetree/internal/llm"
	"github.com/ShayCichocki/nodetree/pkg/models"
)

const todoResponse = `{
	"problem": "Build a to-do app tracker",
	"originalRequest": "Build a to-do app tracker",
	"followUpQuestion": "None",
	"mainObjective": "Ship a usable tracker",
	"subProblems": [
		{"title": "Data model", "description": "Tasks and lists", "objective": "Persist tasks"},
		{"title": "UI", "description": "Screens", "objective": "Let users manage tasks"}
	]
}`

// recordingProvider returns a canned response and keeps the last request.
type recordingProvider struct {
	response string
	err      error
	last     llm.Request
}

func (p *recordingProvider) Generate(ctx context.Context, req llm.Request) (string, error) {
	p.last = req
	return p.response, p.err
}

func TestNew(t *testing.T) {
	decomposer := New(nil, nil)
	if decomposer == nil {
		t.Fatal("New returned nil")
	}
}

func TestParseResponse_Valid(t *testing.T) {
	breakdown, err := ParseResponse(todoResponse)
	require.NoError(t, err)

	assert.Equal(t, "Ship a usable tracker", breakdown.MainObjective)
	require.Len(t, breakdown.SubProblems, 2)
	assert.Equal(t, "Data model", breakdown.SubProblems[0].Title)
	assert.Equal(t, "Screens", breakdown.SubProblems[1].Description)

	seen := map[string]bool{}
	for _, sp := range breakdown.SubProblems {
		_, err := uuid.Parse(sp.ID)
		assert.NoError(t, err)
		assert.False(t, seen[sp.ID], "duplicate id %s", sp.ID)
		seen[sp.ID] = true
	}
}

func TestParseResponse_WithExtraText(t *testing.T) {
	response := "Here is the breakdown:\n```json\n" + todoResponse + "\n```\nGood luck."

	breakdown, err := ParseResponse(response)
	require.NoError(t, err)
	assert.Len(t, breakdown.SubProblems, 2)
}

func TestParseResponse_EmptySubProblems(t *testing.T) {
	breakdown, err := ParseResponse(`{"problem": "p", "mainObjective": "o", "subProblems": []}`)
	require.NoError(t, err)
	assert.Empty(t, breakdown.SubProblems)
}

func TestParseResponse_SkipsBlankSubProblems(t *testing.T) {
	breakdown, err := ParseResponse(`{"subProblems": [{"title": " ", "description": ""}, {"title": "Real"}]}`)
	require.NoError(t, err)
	require.Len(t, breakdown.SubProblems, 1)
	assert.Equal(t, "Real", breakdown.SubProblems[0].Title)
}

func TestParseResponse_Invalid(t *testing.T) {
	tests := []struct {
		name     string
		response string
	}{
		{"empty", ""},
		{"no object", "I cannot help with that."},
		{"array only", `["x"]`},
		{"broken json", `{"subProblems": [}`},
		{"wrong type", `{"subProblems": "none"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseResponse(tt.response)
			assert.Error(t, err)
		})
	}
}

func TestDecompose(t *testing.T) {
	provider := &recordingProvider{response: todoResponse}
	d := New(provider, nil)

	breakdown, err := d.Decompose(context.Background(), Request{
		Problem:  "Build a to-do app tracker",
		Language: "French",
	})
	require.NoError(t, err)
	assert.Len(t, breakdown.SubProblems, 2)
	assert.Nil(t, breakdown.FollowUpQuestion)

	assert.True(t, provider.last.JSONMode)
	assert.Equal(t, DefaultMaxTokens, provider.last.MaxTokens)
	assert.Contains(t, provider.last.System, "entirely in French")
	assert.Contains(t, provider.last.System, `"followUpQuestion": "None"`)
	assert.Equal(t, "Original problem: Build a to-do app tracker", provider.last.Prompt)
}

func TestDecompose_FollowUpDominates(t *testing.T) {
	provider := &recordingProvider{response: todoResponse}
	d := New(provider, nil)

	breakdown, err := d.Decompose(context.Background(), Request{
		Problem:  "Build a to-do app tracker",
		FollowUp: "add user authentication",
		Ancestors: []models.AncestorSummary{
			{Title: "Data model", Problem: "Build a to-do app tracker", Solution: "Use a tasks table"},
		},
	})
	require.NoError(t, err)
	require.NotNil(t, breakdown.FollowUpQuestion)
	assert.Equal(t, "add user authentication", *breakdown.FollowUpQuestion)

	assert.Contains(t, provider.last.System, `"followUpQuestion": "add user authentication"`)
	assert.Contains(t, provider.last.System, "main focus of the problem decomposition")
	assert.Contains(t, provider.last.System, "entirely in English")
	assert.Contains(t, provider.last.Prompt, "Follow-up question:\nadd user authentication")
	assert.Contains(t, provider.last.Prompt, "Previous solutions in this thread:")
	assert.Contains(t, provider.last.Prompt, "Use a tasks table")
}

func TestDecompose_AdditionalContextFirst(t *testing.T) {
	provider := &recordingProvider{response: todoResponse}
	d := New(provider, nil)

	_, err := d.Decompose(context.Background(), Request{
		Problem:           "p",
		AdditionalContext: "Based on the following relevant research",
	})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(provider.last.Prompt, "Based on the following relevant research\n\n"))
}

func TestDecompose_ProviderError(t *testing.T) {
	provider := &recordingProvider{err: errors.New("rate limited")}
	d := New(provider, nil)

	_, err := d.Decompose(context.Background(), Request{Problem: "p"})
	var derr *DecompositionError
	require.ErrorAs(t, err, &derr)
	assert.Empty(t, derr.Response)
	assert.Contains(t, err.Error(), "rate limited")
}

func TestDecompose_Unparseable(t *testing.T) {
	provider := &recordingProvider{response: "sorry"}
	d := New(provider, nil)

	breakdown, err := d.Decompose(context.Background(), Request{Problem: "p"})
	assert.Nil(t, breakdown)
	var derr *DecompositionError
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, "sorry", derr.Response)
}

func TestDecompose_FillsMissingProblem(t *testing.T) {
	provider := &recordingProvider{response: `{"subProblems": []}`}
	d := New(provider, nil)

	breakdown, err := d.Decompose(context.Background(), Request{Problem: "raw problem"})
	require.NoError(t, err)
	assert.Equal(t, "raw problem", breakdown.Problem)
}

func TestBuildSystemPrompt_QuotesInput(t *testing.T) {
	prompt := BuildSystemPrompt(`say "hi" at 100%`, "", "")
	assert.Contains(t, prompt, `"originalRequest": "say \"hi\" at 100%"`)
	assert.Contains(t, prompt, "entirely in English")
	assert.NotContains(t, prompt, "%!")
}
