package emit

import (
	"context"
	"log/slog"
)

// LogEmitter writes each event as a structured log/slog line, mirroring
// the shape of the teacher's emit.LogEmitter (graph/emit/log.go) but
// backed by the standard library's slog rather than a bespoke formatter —
// justified in DESIGN.md: the teacher's own engine core never imports a
// logging library, it only ever writes lines through this same kind of
// emit adapter, so reaching for anything beyond slog here would add a
// dependency the teacher itself avoids for this exact concern.
type LogEmitter struct {
	logger *slog.Logger
}

// NewLogEmitter wraps logger, or slog.Default() if nil.
func NewLogEmitter(logger *slog.Logger) *LogEmitter {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogEmitter{logger: logger}
}

// Emit writes one structured log line per event.
func (e *LogEmitter) Emit(ev Event) {
	attrs := []any{
		slog.String("case_id", ev.CaseID),
		slog.String("path", ev.PathName),
		slog.String("step", ev.StepName),
		slog.Int("attempt", ev.Attempt),
	}
	for k, v := range ev.Meta {
		attrs = append(attrs, slog.Any(k, v))
	}
	e.logger.Info(ev.Msg, attrs...)
}

// EmitBatch writes each event via Emit, in order.
func (e *LogEmitter) EmitBatch(ctx context.Context, events []Event) error {
	for _, ev := range events {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		e.Emit(ev)
	}
	return nil
}

// Flush is a no-op: slog writes synchronously.
func (e *LogEmitter) Flush(ctx context.Context) error { return nil }
