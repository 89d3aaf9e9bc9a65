package engine

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Tracer wraps Dispatch and fan-out in OpenTelemetry spans, grounded
// on the teacher's emit.OTelEmitter (graph/emit/otel.go) — but attached
// directly to the operations that take time, rather than translated
// through a generic event bus, since this engine's Emitter-equivalent
// (EventHook) is lifecycle-only and not a span source.
type Tracer struct {
	tracer trace.Tracer
}

// NewTracer wraps an OpenTelemetry Tracer obtained from a TracerProvider.
func NewTracer(t trace.Tracer) *Tracer {
	return &Tracer{tracer: t}
}

// noopTracer backs a nil *Tracer so every call site can unconditionally
// call t.startX without a nil check at each call site.
var noopTracer = noop.NewTracerProvider().Tracer("")

func (t *Tracer) resolve() trace.Tracer {
	if t == nil || t.tracer == nil {
		return noopTracer
	}
	return t.tracer
}

func (t *Tracer) startDispatch(ctx context.Context, caseID, pathName, stepName string) (context.Context, trace.Span) {
	return t.resolve().Start(ctx, "caseengine.dispatch",
		trace.WithAttributes(
			attribute.String("case_id", caseID),
			attribute.String("path", pathName),
			attribute.String("step", stepName),
		))
}

func (t *Tracer) startFanOut(ctx context.Context, caseID, parentName, route string) (context.Context, trace.Span) {
	return t.resolve().Start(ctx, "caseengine.fanout",
		trace.WithAttributes(
			attribute.String("case_id", caseID),
			attribute.String("parent", parentName),
			attribute.String("route", route),
		))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
