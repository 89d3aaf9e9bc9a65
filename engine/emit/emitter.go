package emit

import "context"

// Emitter receives observability events from case execution. Mirrors the
// teacher's emit.Emitter (graph/emit/emitter.go): non-blocking, thread-safe,
// resilient implementations expected; Emit itself must never panic or
// propagate a backend failure into the run loop.
type Emitter interface {
	// Emit records a single event. Implementations should not block.
	Emit(event Event)

	// EmitBatch records multiple events in one call.
	EmitBatch(ctx context.Context, events []Event) error

	// Flush blocks until any buffered events have been delivered.
	Flush(ctx context.Context) error
}
