// Package llm provides the text generation backends used by the decomposer
// and the solver.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// DefaultMaxTokens bounds a generation when the request does not.
const DefaultMaxTokens = 4096

// ErrEmptyResponse is returned when a backend answers without any text.
var ErrEmptyResponse = errors.New("empty response from provider")

// Request is one stateless generation call.
type Request struct {
	// Prompt is the user turn.
	Prompt string
	// System is the optional system message.
	System string
	// MaxTokens caps the output; zero means DefaultMaxTokens.
	MaxTokens int
	// Stop lists optional stop sequences.
	Stop []string
	// JSONMode asks the backend to answer with a single JSON object.
	JSONMode bool
}

// Provider generates text for a prompt. Implementations must be safe for
// concurrent use.
type Provider interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// ProviderFunc adapts a function to the Provider interface.
type ProviderFunc func(ctx context.Context, req Request) (string, error)

// Generate calls f.
func (f ProviderFunc) Generate(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}

// Kind names a configured backend.
type Kind string

const (
	KindAnthropic Kind = "anthropic"
	KindOpenAI    Kind = "openai"
)

// ParseKind validates a backend name.
func ParseKind(s string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(s))) {
	case KindAnthropic, "":
		return KindAnthropic, nil
	case KindOpenAI:
		return KindOpenAI, nil
	default:
		return "", fmt.Errorf("unknown provider %q", s)
	}
}

// jsonInstruction is appended to the system message for backends without a
// native JSON response mode.
const jsonInstruction = "Respond with a single valid JSON object and nothing else."

func maxTokens(req Request) int {
	if req.MaxTokens > 0 {
		return req.MaxTokens
	}
	return DefaultMaxTokens
}
