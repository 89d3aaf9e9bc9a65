package emit

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// OTelEmitter turns each Event into a zero-duration OpenTelemetry span
// event attached to the span active in the event's context, mirroring the
// teacher's OTelEmitter (graph/emit/otel.go) which promotes Emit calls to
// span annotations rather than full spans — full dispatch spans are
// produced separately by engine.Tracer, which wraps the call itself.
type OTelEmitter struct {
	tracer trace.Tracer
}

// NewOTelEmitter wraps an OpenTelemetry Tracer.
func NewOTelEmitter(tracer trace.Tracer) *OTelEmitter {
	return &OTelEmitter{tracer: tracer}
}

// Emit is a convenience no-context form; prefer EmitBatch when a context
// carrying an active span is available.
func (o *OTelEmitter) Emit(ev Event) {
	_ = o.EmitBatch(context.Background(), []Event{ev})
}

// EmitBatch attaches each event as a span event on the span active in ctx,
// if any.
func (o *OTelEmitter) EmitBatch(ctx context.Context, events []Event) error {
	span := trace.SpanFromContext(ctx)
	for _, ev := range events {
		attrs := []attribute.KeyValue{
			attribute.String("case_id", ev.CaseID),
			attribute.String("path", ev.PathName),
			attribute.String("step", ev.StepName),
			attribute.Int("attempt", ev.Attempt),
		}
		for k, v := range ev.Meta {
			attrs = append(attrs, attribute.String(k, toString(v)))
		}
		span.AddEvent(ev.Msg, trace.WithAttributes(attrs...))
	}
	return nil
}

// Flush is a no-op: span events are delivered with their parent span.
func (o *OTelEmitter) Flush(ctx context.Context) error { return nil }

func toString(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case error:
		return t.Error()
	default:
		return fmt.Sprintf("%v", t)
	}
}
