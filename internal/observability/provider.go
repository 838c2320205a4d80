package observability

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ShayCichocki/nodetree/internal/llm"
)

// Provider call statuses.
const (
	StatusOK          = "ok"
	StatusError       = "error"
	StatusTimeout     = "timeout"
	StatusUnavailable = "unavailable"
)

type instrumentedProvider struct {
	next    llm.Provider
	name    string
	metrics *Metrics
	tracer  trace.Tracer
}

// InstrumentProvider wraps p so every Generate call gets a span and is
// counted under name. A nil tracer uses the global one.
func InstrumentProvider(p llm.Provider, name string, m *Metrics, tracer trace.Tracer) llm.Provider {
	if tracer == nil {
		tracer = Tracer()
	}
	return &instrumentedProvider{next: p, name: name, metrics: m, tracer: tracer}
}

func (p *instrumentedProvider) Generate(ctx context.Context, req llm.Request) (string, error) {
	ctx, span := p.tracer.Start(ctx, "llm.generate", trace.WithAttributes(
		attribute.String("llm.provider", p.name),
		attribute.Bool("llm.json_mode", req.JSONMode),
		attribute.Int("llm.prompt_chars", len(req.Prompt)),
	))
	defer span.End()

	start := time.Now()
	out, err := p.next.Generate(ctx, req)
	p.metrics.ProviderCall(p.name, CallStatus(err), time.Since(start))

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}
	span.SetAttributes(attribute.Int("llm.response_chars", len(out)))
	return out, nil
}

// CallStatus classifies a provider error into a metric label.
func CallStatus(err error) string {
	switch {
	case err == nil:
		return StatusOK
	case errors.Is(err, context.DeadlineExceeded):
		return StatusTimeout
	case errors.Is(err, llm.ErrUnavailable):
		return StatusUnavailable
	default:
		return StatusError
	}
}
