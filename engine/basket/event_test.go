package basket

import (
	"testing"

	"github.com/caseflow-io/caseengine/engine"
)

type fakeSink struct {
	deposits []PendEvent
}

func (s *fakeSink) Deposit(ev PendEvent) { s.deposits = append(s.deposits, ev) }

func TestHook_DepositsOnPendAndError(t *testing.T) {
	sink := &fakeSink{}
	h := NewHook(sink)

	h.HandleCaseEvent(engine.CaseEvent{
		Kind: engine.CaseEventPend, CaseID: "case-1", PathName: ".", StepName: "review", Basket: "manual_review",
	})
	h.HandleCaseEvent(engine.CaseEvent{
		Kind: engine.CaseEventError, CaseID: "case-1", PathName: ".", StepName: "charge",
		Basket: "workflow_temp_hold", Code: "E1", Message: "boom",
	})

	if len(sink.deposits) != 2 {
		t.Fatalf("expected 2 deposits, got %d", len(sink.deposits))
	}
	if sink.deposits[1].ErrorCode != "E1" || sink.deposits[1].ErrorDesc != "boom" {
		t.Errorf("expected error fields to carry through, got %+v", sink.deposits[1])
	}
}

func TestHook_IgnoresNonPendEvents(t *testing.T) {
	sink := &fakeSink{}
	h := NewHook(sink)

	h.HandleCaseEvent(engine.CaseEvent{Kind: engine.CaseEventStart, CaseID: "case-1"})
	h.HandleCaseEvent(engine.CaseEvent{Kind: engine.CaseEventComplete, CaseID: "case-1"})

	if len(sink.deposits) != 0 {
		t.Errorf("expected lifecycle events other than pend/error to be ignored, got %+v", sink.deposits)
	}
}

func TestHook_AssignsDistinctCorrelationIDs(t *testing.T) {
	sink := &fakeSink{}
	h := NewHook(sink)

	h.HandleCaseEvent(engine.CaseEvent{Kind: engine.CaseEventPend, CaseID: "case-1"})
	h.HandleCaseEvent(engine.CaseEvent{Kind: engine.CaseEventPend, CaseID: "case-1"})

	if len(sink.deposits) != 2 {
		t.Fatalf("expected 2 deposits, got %d", len(sink.deposits))
	}
	if sink.deposits[0].CorrelationID == "" || sink.deposits[0].CorrelationID == sink.deposits[1].CorrelationID {
		t.Error("expected each deposit to get a distinct, non-empty correlation ID")
	}
}
