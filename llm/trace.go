package llm

import (
	"context"

	"github.com/mmuhlariholdings/hlavi-agent/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/mmuhlariholdings/hlavi-agent/llm"

type tracedProvider struct {
	next   Provider
	tracer trace.Tracer
}

// Traced wraps p so every Generate call is recorded as an llm.generate span.
// If tracer is nil the global provider is used.
func Traced(p Provider, tracer trace.Tracer) Provider {
	if p == nil {
		return nil
	}
	if _, ok := p.(*tracedProvider); ok {
		return p
	}
	if tracer == nil {
		tracer = otel.Tracer(tracerName)
	}
	return &tracedProvider{next: p, tracer: tracer}
}

func (t *tracedProvider) Generate(ctx context.Context, req Request) (*Response, error) {
	ctx, span := t.tracer.Start(ctx, "llm.generate")
	defer span.End()

	span.SetAttributes(
		attribute.Int("llm.messages", len(req.Messages)),
		attribute.Float64("llm.temperature", req.Temperature),
		attribute.Int("llm.max_tokens", req.maxTokens()),
	)

	resp, err := t.next.Generate(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if resp == nil {
		err := errors.PermanentModelAPI(nil, "provider returned no response")
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(
		attribute.String("llm.model", resp.Model),
		attribute.Int("llm.response_chars", len(resp.Text)),
	)
	span.SetStatus(codes.Ok, "")
	return resp, nil
}
