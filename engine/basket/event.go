// Package basket provides the structured pend-event payload delivered to
// an external Work-basket Sink (spec §6.2): the actual basket/queue
// storage is out of scope (spec.md Non-goals), but the event shape and a
// correlation-ID-bearing EventHook implementation live here.
package basket

import (
	"github.com/google/uuid"

	"github.com/caseflow-io/caseengine/engine"
)

// PendEvent is the structured record a Sink receives whenever a path
// enters a basket, grounded on the shape of CaseEvent plus a correlation
// ID external systems can thread through their own logs.
type PendEvent struct {
	CorrelationID string
	CaseID        string
	PathName      string
	StepName      string
	Basket        string
	ErrorCode     string
	ErrorDesc     string
}

// Sink receives pend events. Implementations route them to whatever
// external queue, ticket system, or notification channel backs a basket
// name.
type Sink interface {
	Deposit(PendEvent)
}

// Hook adapts a Sink to engine.EventHook, translating CASE_PEND and
// CASE_ERROR lifecycle events into PendEvent deposits and assigning each a
// fresh correlation ID via google/uuid — used by nearly every repo in the
// retrieval pack for this exact purpose.
type Hook struct {
	sink Sink
}

// NewHook wraps a Sink as an engine.EventHook.
func NewHook(sink Sink) *Hook {
	return &Hook{sink: sink}
}

// HandleCaseEvent implements engine.EventHook.
func (h *Hook) HandleCaseEvent(e engine.CaseEvent) {
	if e.Kind != engine.CaseEventPend && e.Kind != engine.CaseEventError {
		return
	}
	h.sink.Deposit(PendEvent{
		CorrelationID: uuid.NewString(),
		CaseID:        e.CaseID,
		PathName:      e.PathName,
		StepName:      e.StepName,
		Basket:        e.Basket,
		ErrorCode:     e.Code,
		ErrorDesc:     e.Message,
	})
}
