package emit

import (
	"context"
	"sync"
)

// BufferedEmitter accumulates events in memory and forwards them to an
// underlying Emitter in batches, mirroring the teacher's BufferedEmitter
// (graph/emit/buffered.go). Useful when the downstream sink (a remote
// collector, a database) is cheaper to call with many events at once.
type BufferedEmitter struct {
	mu       sync.Mutex
	buf      []Event
	capacity int
	next     Emitter
}

// NewBufferedEmitter wraps next, flushing automatically once capacity
// events have accumulated. capacity <= 0 disables automatic flushing;
// callers must call Flush explicitly.
func NewBufferedEmitter(next Emitter, capacity int) *BufferedEmitter {
	return &BufferedEmitter{next: next, capacity: capacity}
}

// Emit buffers ev, flushing synchronously if capacity is reached.
func (b *BufferedEmitter) Emit(ev Event) {
	b.mu.Lock()
	b.buf = append(b.buf, ev)
	full := b.capacity > 0 && len(b.buf) >= b.capacity
	b.mu.Unlock()
	if full {
		_ = b.Flush(context.Background())
	}
}

// EmitBatch buffers every event in events.
func (b *BufferedEmitter) EmitBatch(ctx context.Context, events []Event) error {
	b.mu.Lock()
	b.buf = append(b.buf, events...)
	b.mu.Unlock()
	return nil
}

// Flush forwards every buffered event to the underlying Emitter and clears
// the buffer, even on error, to avoid an unbounded retry pile-up.
func (b *BufferedEmitter) Flush(ctx context.Context) error {
	b.mu.Lock()
	pending := b.buf
	b.buf = nil
	b.mu.Unlock()

	if len(pending) == 0 {
		return nil
	}
	if err := b.next.EmitBatch(ctx, pending); err != nil {
		return err
	}
	return b.next.Flush(ctx)
}
