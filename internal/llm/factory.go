package llm

import (
	"context"

	"github.com/anthropics/anthropic-sdk-go"
	"go.uber.org/zap"
)

// Config selects and tunes the generation backend.
type Config struct {
	Provider    string
	Model       string
	APIKey      string
	BaseURL     string
	Temperature *float64

	UseAWSBedrock bool
	AWSRegion     string
	AWSProfile    string

	// RateLimit is requests per second across the process; zero disables it.
	RateLimit float64
	Burst     int
	// Breaker enables the circuit breaker around the backend.
	Breaker bool
}

// New builds the configured backend wrapped in the rate limiter and breaker.
// Token usage of the backend is recorded in the returned tracker.
func New(ctx context.Context, cfg Config, logger *zap.Logger) (Provider, *TokenTracker, error) {
	kind, err := ParseKind(cfg.Provider)
	if err != nil {
		return nil, nil, err
	}

	tracker := NewTokenTracker()
	var p Provider
	switch kind {
	case KindOpenAI:
		p, err = NewOpenAI(OpenAIConfig{
			Model:       cfg.Model,
			APIKey:      cfg.APIKey,
			BaseURL:     cfg.BaseURL,
			Temperature: cfg.Temperature,
			Tracker:     tracker,
		})
	default:
		p, err = NewAnthropic(ctx, AnthropicConfig{
			Model:         anthropic.Model(cfg.Model),
			APIKey:        cfg.APIKey,
			UseAWSBedrock: cfg.UseAWSBedrock,
			AWSRegion:     cfg.AWSRegion,
			AWSProfile:    cfg.AWSProfile,
			Temperature:   cfg.Temperature,
			Tracker:       tracker,
		})
	}
	if err != nil {
		return nil, nil, err
	}

	p = WithRateLimit(p, cfg.RateLimit, cfg.Burst)
	if cfg.Breaker {
		p = WithBreaker(p, DefaultBreakerConfig(string(kind)), logger)
	}
	return p, tracker, nil
}
