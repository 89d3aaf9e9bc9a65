package engine

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel/trace/noop"
)

func TestTracer_NilTracerFallsBackToNoop(t *testing.T) {
	var tr *Tracer
	ctx, span := tr.startDispatch(context.Background(), "case-1", ".", "work")
	if ctx == nil || span == nil {
		t.Fatal("expected a usable context and span even for a nil *Tracer")
	}
	endSpan(span, nil)
}

func TestTracer_StartDispatchAndFanOutDoNotPanic(t *testing.T) {
	tr := NewTracer(noop.NewTracerProvider().Tracer("test"))

	ctx, span := tr.startDispatch(context.Background(), "case-1", ".", "work")
	endSpan(span, nil)

	_, fanSpan := tr.startFanOut(ctx, "case-1", ".", "fanout")
	endSpan(fanSpan, errors.New("boom"))
}
