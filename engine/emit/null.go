package emit

import "context"

// NullEmitter discards every event. Useful as the default when a caller
// does not wire an Emitter, mirroring the teacher's NullEmitter
// (graph/emit/null.go).
type NullEmitter struct{}

// NewNullEmitter constructs a NullEmitter.
func NewNullEmitter() *NullEmitter { return &NullEmitter{} }

// Emit is a no-op.
func (n *NullEmitter) Emit(Event) {}

// EmitBatch is a no-op.
func (n *NullEmitter) EmitBatch(ctx context.Context, events []Event) error { return nil }

// Flush is a no-op.
func (n *NullEmitter) Flush(ctx context.Context) error { return nil }
