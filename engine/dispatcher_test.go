package engine

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fakeRegistry struct {
	tasks  map[string]TaskBody
	routes map[string]RouteBody
}

func newFakeRegistry() *fakeRegistry {
	return &fakeRegistry{tasks: map[string]TaskBody{}, routes: map[string]RouteBody{}}
}

func (r *fakeRegistry) GetTask(name string) (TaskBody, bool)   { t, ok := r.tasks[name]; return t, ok }
func (r *fakeRegistry) GetRoute(name string) (RouteBody, bool) { b, ok := r.routes[name]; return b, ok }

func simpleDefinition() *WorkflowDefinition {
	return &WorkflowDefinition{
		Name: "t", Version: "v1", Start: "start",
		Steps: map[string]Step{
			"start":  {Name: "start", Kind: StepStart, Next: "work"},
			"work":   {Name: "work", Kind: StepTask, Capability: "work", Next: "end"},
			"end":    {Name: "end", Kind: StepEnd},
			"route":  {Name: "route", Kind: StepSerialRoute, Capability: "route"},
			"branchA": {Name: "branchA", Kind: StepTask, Capability: "work", Next: "end"},
			"branchB": {Name: "branchB", Kind: StepTask, Capability: "work", Next: "end"},
		},
	}
}

func parallelDefinition() *WorkflowDefinition {
	return &WorkflowDefinition{
		Name: "p", Version: "v1", Start: "start",
		Steps: map[string]Step{
			"start":            {Name: "start", Kind: StepStart, Next: "fanout"},
			"fanout":           {Name: "fanout", Kind: StepParallelRoute, Capability: "fanout", Join: "join"},
			"fanout.a":         {Name: "fanout.a", Kind: StepTask, Capability: "work", Next: "join"},
			"fanout.b":         {Name: "fanout.b", Kind: StepTask, Capability: "work", Next: "join"},
			"join":             {Name: "join", Kind: StepTask, Capability: "work", Next: "end"},
			"end":              {Name: "end", Kind: StepEnd},
			"cancelled":        {Name: "cancelled", Kind: StepTask, Capability: "work", Next: "end"},
		},
	}
}

func TestDispatch_OKProceedAdvancesStep(t *testing.T) {
	defn := simpleDefinition()
	reg := newFakeRegistry()
	reg.tasks["work"] = TaskFunc(func(_ context.Context, _ StepContext) Response {
		return Response{Kind: ResponseOKProceed}
	})
	d := NewDispatcher(defn, reg)
	vars := NewProcessVariables()

	p := ExecPath{Name: RootPathName, Status: PathStarted, Step: "work"}
	outcome, err := d.Dispatch(context.Background(), "case-1", p, &vars, 0, nil, nil, time.Time{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome.path.Step != "end" {
		t.Errorf("expected advance to end, got %q", outcome.path.Step)
	}
	if outcome.path.Status != PathCompleted {
		t.Errorf("root reaching END must complete, got status %v", outcome.path.Status)
	}
	if outcome.path.Attempt != 0 {
		t.Errorf("Attempt must reset to 0 on advance, got %d", outcome.path.Attempt)
	}
}

func TestDispatch_ErrorPendIncrementsAttempt(t *testing.T) {
	defn := simpleDefinition()
	reg := newFakeRegistry()
	reg.tasks["work"] = TaskFunc(func(_ context.Context, _ StepContext) Response {
		return Response{Kind: ResponseErrorPend, Basket: "hold", ErrorCode: "E1", ErrorDesc: "boom"}
	})
	d := NewDispatcher(defn, reg)
	vars := NewProcessVariables()

	p := ExecPath{Name: RootPathName, Status: PathStarted, Step: "work", Attempt: 2}
	outcome, err := d.Dispatch(context.Background(), "case-1", p, &vars, 2, nil, nil, time.Time{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome.path.Step != "work" {
		t.Errorf("ERROR_PEND must re-pend the same step, got %q", outcome.path.Step)
	}
	if outcome.path.Attempt != 3 {
		t.Errorf("Attempt must increment on ERROR_PEND, got %d", outcome.path.Attempt)
	}
	if outcome.path.PendBasket != "hold" {
		t.Errorf("expected PendBasket to be set, got %q", outcome.path.PendBasket)
	}
}

func TestDispatch_UnknownCapabilityIsFatal(t *testing.T) {
	defn := simpleDefinition()
	reg := newFakeRegistry()
	d := NewDispatcher(defn, reg)
	vars := NewProcessVariables()

	p := ExecPath{Name: RootPathName, Status: PathStarted, Step: "work"}
	_, err := d.Dispatch(context.Background(), "case-1", p, &vars, 0, nil, nil, time.Time{})
	var fe *FatalError
	if !errors.As(err, &fe) {
		t.Fatalf("expected *FatalError for unknown capability, got %v", err)
	}
}

func TestDispatch_SRouteUnknownBranchIsFatal(t *testing.T) {
	defn := simpleDefinition()
	reg := newFakeRegistry()
	reg.routes["route"] = RouteFunc(func(_ context.Context, _ StepContext) Response {
		return Response{Kind: ResponseOKProceed, Branch: "doesNotExist"}
	})
	d := NewDispatcher(defn, reg)
	vars := NewProcessVariables()

	p := ExecPath{Name: RootPathName, Status: PathStarted, Step: "route"}
	_, err := d.Dispatch(context.Background(), "case-1", p, &vars, 0, nil, nil, time.Time{})
	var fe *FatalError
	if !errors.As(err, &fe) {
		t.Fatalf("expected *FatalError for undeclared S_ROUTE branch, got %v", err)
	}
}

func TestDispatch_ParallelSetsWaitingOnRoute(t *testing.T) {
	defn := parallelDefinition()
	reg := newFakeRegistry()
	reg.routes["fanout"] = RouteFunc(func(_ context.Context, _ StepContext) Response {
		return Response{Kind: ResponseParallel, Branches: []string{"a", "b"}}
	})
	d := NewDispatcher(defn, reg)
	vars := NewProcessVariables()

	p := ExecPath{Name: RootPathName, Status: PathStarted, Step: "fanout"}
	outcome, err := d.Dispatch(context.Background(), "case-1", p, &vars, 0, nil, nil, time.Time{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome.path.WaitingOnRoute != "fanout" {
		t.Errorf("expected WaitingOnRoute=fanout, got %q", outcome.path.WaitingOnRoute)
	}
	if outcome.path.Step != "join" {
		t.Errorf("parent must park at the join step, got %q", outcome.path.Step)
	}
	if outcome.fanOut == nil || len(outcome.fanOut.branches) != 2 {
		t.Fatalf("expected fanOut request with 2 branches, got %+v", outcome.fanOut)
	}
}

func TestDispatch_TicketInsideOpenConstructIsRejected(t *testing.T) {
	defn := parallelDefinition()
	reg := newFakeRegistry()
	reg.tasks["work"] = TaskFunc(func(_ context.Context, _ StepContext) Response {
		return Response{Kind: ResponseOKProceed, TicketTarget: "fanout.b"}
	})
	d := NewDispatcher(defn, reg)
	vars := NewProcessVariables()

	// fanout.b is interior to the still-open "fanout" construct.
	p := ExecPath{Name: ".fanout.a.", Status: PathStarted, Step: "fanout.a"}
	openRoutes := map[string]bool{"fanout": true}
	_, err := d.Dispatch(context.Background(), "case-1", p, &vars, 0, openRoutes, nil, time.Time{})

	if !errors.Is(err, ErrTicketUnreachable) {
		t.Fatalf("expected ErrTicketUnreachable (I7), got %v", err)
	}
}

func TestDispatch_TicketToStepOutsideConstructIsAccepted(t *testing.T) {
	defn := parallelDefinition()
	reg := newFakeRegistry()
	reg.tasks["work"] = TaskFunc(func(_ context.Context, _ StepContext) Response {
		return Response{Kind: ResponseOKProceed, TicketTarget: "cancelled"}
	})
	d := NewDispatcher(defn, reg)
	vars := NewProcessVariables()

	p := ExecPath{Name: ".fanout.a.", Status: PathStarted, Step: "fanout.a"}
	openRoutes := map[string]bool{"fanout": true}
	outcome, err := d.Dispatch(context.Background(), "case-1", p, &vars, 0, openRoutes, nil, time.Time{})
	if err != nil {
		t.Fatalf("unexpected error for a ticket target outside the open construct: %v", err)
	}
	if outcome.path.Status != PathCompleted {
		t.Errorf("a path raising a ticket completes immediately, got %v", outcome.path.Status)
	}
}

// recordableTask wraps a TaskFunc and opts into SideEffectPolicy.Recordable,
// counting how many times the wrapped body actually ran.
type recordableTask struct {
	calls int
	fn    func(context.Context, StepContext) Response
}

func (r *recordableTask) RunTask(ctx context.Context, c StepContext) Response {
	r.calls++
	return r.fn(ctx, c)
}

func (r *recordableTask) SideEffectPolicy() SideEffectPolicy {
	return SideEffectPolicy{Recordable: true}
}

func TestDispatch_RecordableTaskIsReplayedNotReinvoked(t *testing.T) {
	defn := simpleDefinition()
	reg := newFakeRegistry()
	body := &recordableTask{fn: func(_ context.Context, _ StepContext) Response {
		return Response{Kind: ResponseOKProceed}
	}}
	reg.tasks["work"] = body
	d := NewDispatcher(defn, reg)
	vars := NewProcessVariables()

	p := ExecPath{Name: RootPathName, Status: PathStarted, Step: "work"}
	first, err := d.Dispatch(context.Background(), "case-1", p, &vars, 0, nil, nil, time.Time{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if body.calls != 1 {
		t.Fatalf("expected one real invocation, got %d", body.calls)
	}
	if first.newRecording == nil {
		t.Fatal("expected a fresh recording for a recordable task's first dispatch")
	}

	recorded := []RecordedIO{*first.newRecording}
	second, err := d.Dispatch(context.Background(), "case-1", p, &vars, 0, nil, recorded, time.Time{})
	if err != nil {
		t.Fatalf("unexpected error on replay: %v", err)
	}
	if body.calls != 1 {
		t.Errorf("replay must not re-invoke the task body, got %d calls", body.calls)
	}
	if second.newRecording != nil {
		t.Error("a replayed dispatch must not produce another recording")
	}
	if second.path.Step != "end" {
		t.Errorf("replayed response must still drive the path forward, got step %q", second.path.Step)
	}
}
