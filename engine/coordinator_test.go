package engine

import "testing"

func TestFanOutCreatesChildren(t *testing.T) {
	defn := parallelDefinition()
	coord := NewCoordinator(defn)
	cs := NewCaseState("case-1", defn, NewProcessVariables())

	err := coord.FanOut(&cs, RootPathName, fanOutRequest{route: "fanout", branches: []string{"a", "b"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := cs.ExecPaths[".fanout.a."]; !ok {
		t.Error("expected child .fanout.a. to be created")
	}
	if _, ok := cs.ExecPaths[".fanout.b."]; !ok {
		t.Error("expected child .fanout.b. to be created")
	}
}

func TestFanOutIsIdempotent(t *testing.T) {
	defn := parallelDefinition()
	coord := NewCoordinator(defn)
	cs := NewCaseState("case-1", defn, NewProcessVariables())

	req := fanOutRequest{route: "fanout", branches: []string{"a"}}
	if err := coord.FanOut(&cs, RootPathName, req); err != nil {
		t.Fatalf("first FanOut: %v", err)
	}
	cs.ExecPaths[".fanout.a."] = ExecPath{Name: ".fanout.a.", Status: PathCompleted, Step: "join"}

	if err := coord.FanOut(&cs, RootPathName, req); err != nil {
		t.Fatalf("second FanOut: %v", err)
	}
	if cs.ExecPaths[".fanout.a."].Status != PathCompleted {
		t.Error("re-applying FanOut must not clobber an already-progressed child")
	}
}

func TestJoinReady(t *testing.T) {
	defn := parallelDefinition()
	cs := NewCaseState("case-1", defn, NewProcessVariables())
	cs.ExecPaths[".fanout.a."] = ExecPath{Name: ".fanout.a.", Status: PathStarted, Step: "join"}
	cs.ExecPaths[".fanout.b."] = ExecPath{Name: ".fanout.b.", Status: PathStarted, Step: "join"}

	if JoinReady(&cs, RootPathName, "fanout") {
		t.Error("join must not be ready while children are still STARTED")
	}

	cs.ExecPaths[".fanout.a."] = ExecPath{Name: ".fanout.a.", Status: PathCompleted}
	cs.ExecPaths[".fanout.b."] = ExecPath{Name: ".fanout.b.", Status: PathCompleted}
	if !JoinReady(&cs, RootPathName, "fanout") {
		t.Error("join must be ready once every child is COMPLETED with no pend")
	}

	cs.ExecPaths[".fanout.b."] = ExecPath{Name: ".fanout.b.", Status: PathCompleted, PendBasket: "stuck"}
	if JoinReady(&cs, RootPathName, "fanout") {
		t.Error("a completed child with a non-empty PendBasket must block readiness")
	}
}

func TestAdvanceReadyJoinsClearsWaitingOnRoute(t *testing.T) {
	defn := parallelDefinition()
	coord := NewCoordinator(defn)
	cs := NewCaseState("case-1", defn, NewProcessVariables())

	cs.ExecPaths[RootPathName] = ExecPath{Name: RootPathName, Status: PathStarted, Step: "join", WaitingOnRoute: "fanout"}
	cs.ExecPaths[".fanout.a."] = ExecPath{Name: ".fanout.a.", Status: PathCompleted}
	cs.ExecPaths[".fanout.b."] = ExecPath{Name: ".fanout.b.", Status: PathCompleted}

	advanced, err := coord.AdvanceReadyJoins(&cs)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !advanced {
		t.Fatal("expected the join to advance")
	}
	root := cs.ExecPaths[RootPathName]
	if root.WaitingOnRoute != "" {
		t.Error("WaitingOnRoute must clear once the join advances")
	}
	if root.Step != "end" {
		t.Errorf("expected root to advance to join's successor 'end', got %q", root.Step)
	}
}

func TestPropagateTicket(t *testing.T) {
	defn := parallelDefinition()
	cs := NewCaseState("case-1", defn, NewProcessVariables())
	cs.Ticket = "cancelled"
	cs.ExecPaths[RootPathName] = ExecPath{Name: RootPathName, Status: PathStarted, Step: "join"}
	cs.ExecPaths[".fanout.a."] = ExecPath{Name: ".fanout.a.", Status: PathStarted, Step: "fanout.a"}
	cs.ExecPaths[".fanout.b."] = ExecPath{Name: ".fanout.b.", Status: PathCompleted}

	reroute, err := PropagateTicket(&cs)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reroute {
		t.Fatal("must not reroute while a sibling is still STARTED")
	}
	if cs.ExecPaths[".fanout.a."].Status != PathCompleted {
		t.Error("expected the STARTED sibling to be force-completed")
	}

	reroute, err = PropagateTicket(&cs)
	if err != nil {
		t.Fatalf("unexpected error on second pass: %v", err)
	}
	if !reroute {
		t.Fatal("expected reroute once no STARTED paths remain")
	}
	root := cs.ExecPaths[RootPathName]
	if root.Step != "cancelled" || root.Status != PathStarted {
		t.Errorf("expected root rerouted to cancelled/STARTED, got %+v", root)
	}
	if cs.Ticket != "" {
		t.Error("ticket must be cleared after reroute")
	}
}

func TestFirstTicket(t *testing.T) {
	_, _, ok := FirstTicket(nil)
	if ok {
		t.Error("expected ok=false for an empty candidate set")
	}

	path, ticket, ok := FirstTicket(map[string]string{
		".fanout.b.": "cancelled",
		".fanout.a.": "retry",
	})
	if !ok || path != ".fanout.a." || ticket != "retry" {
		t.Errorf("expected lexicographically-first candidate .fanout.a./retry, got %q/%q", path, ticket)
	}
}
