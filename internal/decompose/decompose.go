// Package decompose breaks a problem into a main objective and independent
// subproblems.
package decompose

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ShayCichocki/nodetree/internal/llm"
	"github.com/ShayCichocki/nodetree/pkg/models"
)

// DefaultMaxTokens bounds the breakdown response.
const DefaultMaxTokens = 2048

// DecompositionError reports provider output that could not be turned into a
// breakdown.
type DecompositionError struct {
	// Response is the raw provider output, empty when the call itself failed.
	Response string
	Err      error
}

func (e *DecompositionError) Error() string {
	return fmt.Sprintf("decomposition failed: %v", e.Err)
}

func (e *DecompositionError) Unwrap() error {
	return e.Err
}

// Request is the input of one decomposition.
type Request struct {
	Problem  string
	FollowUp string
	// Ancestors is prior context, already ordered and truncated.
	Ancestors []models.AncestorSummary
	Language  string
	// AdditionalContext is opaque text, e.g. retrieved research.
	AdditionalContext string
}

// decomposedProblem is the JSON structure returned by the provider.
type decomposedProblem struct {
	Problem          string `json:"problem"`
	OriginalRequest  string `json:"originalRequest"`
	FollowUpQuestion string `json:"followUpQuestion"`
	MainObjective    string `json:"mainObjective"`
	SubProblems      []struct {
		Title       string `json:"title"`
		Description string `json:"description"`
		Objective   string `json:"objective"`
	} `json:"subProblems"`
}

// Decomposer breaks problems into subproblems with a generation provider.
type Decomposer struct {
	provider  llm.Provider
	logger    *zap.Logger
	maxTokens int
}

// New creates a new Decomposer.
func New(provider llm.Provider, logger *zap.Logger) *Decomposer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Decomposer{
		provider:  provider,
		logger:    logger.Named("decompose"),
		maxTokens: DefaultMaxTokens,
	}
}

// Decompose asks the provider for a breakdown of req.Problem.
//
// A breakdown with no subproblems is returned as-is; callers synthesize the
// default subproblem. Failures yield a *DecompositionError.
func (d *Decomposer) Decompose(ctx context.Context, req Request) (*models.Breakdown, error) {
	language := req.Language
	if language == "" {
		language = models.DefaultLanguage
	}

	response, err := d.provider.Generate(ctx, llm.Request{
		Prompt:    BuildUserPrompt(req),
		System:    BuildSystemPrompt(req.Problem, req.FollowUp, language),
		MaxTokens: d.maxTokens,
		JSONMode:  true,
	})
	if err != nil {
		return nil, &DecompositionError{Err: fmt.Errorf("generate: %w", err)}
	}

	breakdown, err := ParseResponse(response)
	if err != nil {
		return nil, &DecompositionError{Response: response, Err: err}
	}
	if breakdown.Problem == "" {
		breakdown.Problem = req.Problem
	}
	breakdown.FollowUpQuestion = models.StringPtr(req.FollowUp)

	d.logger.Debug("problem decomposed",
		zap.Int("subproblems", len(breakdown.SubProblems)),
		zap.Bool("follow_up", req.FollowUp != ""))
	return breakdown, nil
}

// ParseResponse parses the provider's JSON object, tolerating surrounding
// prose or code fences, and mints an id for each subproblem.
func ParseResponse(response string) (*models.Breakdown, error) {
	jsonStart := strings.Index(response, "{")
	jsonEnd := strings.LastIndex(response, "}")
	if jsonStart == -1 || jsonEnd == -1 || jsonEnd <= jsonStart {
		responsePreview := response
		if len(responsePreview) > 500 {
			responsePreview = responsePreview[:500] + "... (truncated)"
		}
		return nil, fmt.Errorf("no valid JSON object found in response (got %d chars): %q", len(response), responsePreview)
	}
	jsonStr := response[jsonStart : jsonEnd+1]

	var decomposed decomposedProblem
	if err := json.Unmarshal([]byte(jsonStr), &decomposed); err != nil {
		return nil, fmt.Errorf("unmarshal JSON: %w", err)
	}

	breakdown := &models.Breakdown{
		Problem:       decomposed.Problem,
		MainObjective: decomposed.MainObjective,
		SubProblems:   make([]models.SubProblem, 0, len(decomposed.SubProblems)),
	}
	for _, sp := range decomposed.SubProblems {
		if strings.TrimSpace(sp.Title) == "" && strings.TrimSpace(sp.Description) == "" {
			continue
		}
		breakdown.SubProblems = append(breakdown.SubProblems, models.SubProblem{
			ID:          uuid.New().String(),
			Title:       sp.Title,
			Description: sp.Description,
			Objective:   sp.Objective,
		})
	}
	return breakdown, nil
}
