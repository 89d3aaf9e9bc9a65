package engine

import (
	"sort"
	"time"
)

// Coordinator implements fan-out at P_ROUTE steps and join-readiness /
// ticket-propagation across sibling paths (spec §4.3).
type Coordinator struct {
	definition *WorkflowDefinition
}

// NewCoordinator constructs a Coordinator bound to a single definition.
func NewCoordinator(defn *WorkflowDefinition) *Coordinator {
	return &Coordinator{definition: defn}
}

// FanOut materializes the child paths requested by a P_ROUTE response
// (spec §4.3 "Fan-out" steps 1-2). The parent's own Step/Status mutation
// (step 3) has already been applied by the Dispatcher before this is
// called; FanOut only inserts the new children.
func (c *Coordinator) FanOut(cs *CaseState, parentName string, req fanOutRequest) error {
	for _, branch := range req.branches {
		childName := ChildPathName(parentName, req.route, branch)
		if _, exists := cs.ExecPaths[childName]; exists {
			continue // idempotent re-application after sanitizer replay
		}
		startStep, err := c.branchStart(req.route, branch)
		if err != nil {
			return err
		}
		cs.ExecPaths[childName] = ExecPath{
			Name:   childName,
			Status: PathStarted,
			Step:   startStep,
		}
	}
	return nil
}

// branchStart resolves the starting step declared by a P_ROUTE's branch.
// Branch start steps are looked up as ordinary steps in the definition
// named "<route>.<branch>" by convention; WorkflowDefinition authors
// register them directly so no separate branch-target table is needed.
func (c *Coordinator) branchStart(route, branch string) (string, error) {
	name := route + "." + branch
	if _, ok := c.definition.Step(name); !ok {
		return "", &FatalError{Message: "branch start step not found: " + name, Code: "STEP_NOT_FOUND"}
	}
	return name, nil
}

// JoinReady reports whether every sibling of parent under route has
// completed with an empty PendBasket. cs.Ticket is not consulted here;
// driveLoop and Sanitize both reconcile a pending ticket before they
// advance any join.
func JoinReady(cs *CaseState, parentName, route string) bool {
	children := ChildrenOf(cs.ExecPaths, parentName, route)
	if len(children) == 0 {
		return false
	}
	for _, ch := range children {
		if ch.Status != PathCompleted {
			return false
		}
		if ch.PendBasket != "" {
			return false
		}
	}
	return true
}

// AdvancePastJoin is called once JoinReady holds: the parent's step moves
// from the join node to its declared successor and its response is marked
// OK_PROCEED, letting the next dispatch iteration run normally (spec §4.3
// "When readiness holds"). A root whose successor is END is completed
// there instead.
func (c *Coordinator) AdvancePastJoin(p ExecPath, joinStep string) (ExecPath, error) {
	step, ok := c.definition.Step(joinStep)
	if !ok {
		return p, &FatalError{Message: "join step not found: " + joinStep, Code: "STEP_NOT_FOUND"}
	}
	p.Step = step.Next
	p.LastResponse = ResponseOKProceed
	p.Status = PathStarted
	if p.Name == RootPathName && p.Step == StepEndName(c.definition) {
		p.Status = PathCompleted
	}
	p.WaitingOnRoute = ""
	p.WaitingSince = time.Time{}
	return p, nil
}

// AdvanceReadyJoins scans cs for paths parked at a join (WaitingOnRoute
// set) whose fan-out children have all completed, and advances each past
// its join. Returns true if any path advanced, so the caller can re-scan
// once more to pick up joins that only became ready as a result (nested
// parallel constructs converging in the same quantum).
//
// Safe to call unconditionally every driveLoop iteration and from the
// Sanitizer: recomputing join readiness from persisted ExecPaths alone is
// idempotent.
func (c *Coordinator) AdvanceReadyJoins(cs *CaseState) (bool, error) {
	advanced := false
	for name, p := range cs.ExecPaths {
		if p.Status != PathStarted || p.WaitingOnRoute == "" {
			continue
		}
		if !JoinReady(cs, name, p.WaitingOnRoute) {
			continue
		}
		next, err := c.AdvancePastJoin(p, p.Step)
		if err != nil {
			return advanced, err
		}
		cs.ExecPaths[name] = next
		advanced = true
	}
	return advanced, nil
}

// openParallelRoutes returns the set of P_ROUTE step names whose fan-out is
// still in flight: some parent path is parked at that route's join with
// WaitingOnRoute set. Used to enforce invariant I7 at the point a ticket is
// raised, since that is the only moment "currently open" needs resolving.
func openParallelRoutes(cs *CaseState) map[string]bool {
	open := make(map[string]bool)
	for _, p := range cs.ExecPaths {
		if p.Status == PathStarted && p.WaitingOnRoute != "" {
			open[p.WaitingOnRoute] = true
		}
	}
	return open
}

// PropagateTicket applies spec §4.3 "Ticket propagation" once cs.Ticket has
// been set by some path's dispatch: every still-STARTED path anywhere in
// the case is force-completed without further dispatch (cooperative
// cancellation), and — once no STARTED paths remain — the root is
// rerouted to the ticket target and the ticket is cleared.
//
// Returns true when the root was rerouted (the case is immediately
// driveable again); false when this pass force-completed STARTED paths
// (every one of them) and left the ticket set, so the caller's next call
// performs the reroute.
func PropagateTicket(cs *CaseState) (reroute bool, err error) {
	if cs.Ticket == "" {
		return false, nil
	}

	anyStarted := false
	for name, p := range cs.ExecPaths {
		if p.Status == PathStarted {
			p.Status = PathCompleted
			p.PendBasket = ""
			cs.ExecPaths[name] = p
			anyStarted = true
		}
	}

	if anyStarted {
		// Paths were just force-completed this pass; the root is rerouted
		// on the next call, once no STARTED path remains.
		return false, nil
	}

	root, ok := cs.ExecPaths[RootPathName]
	if !ok {
		return false, &FatalError{Message: "root path missing during ticket propagation", Code: "ROOT_MISSING"}
	}
	root.Step = cs.Ticket
	root.Status = PathStarted
	root.PendBasket = ""
	root.LastResponse = ""
	root.WaitingOnRoute = ""
	root.WaitingSince = time.Time{}
	cs.ExecPaths[RootPathName] = root
	cs.Ticket = ""
	return true, nil
}

// FirstTicket resolves a tie among multiple paths that set a ticket within
// one dispatch quantum: the first-write wins, with paths compared
// lexicographically by name as the deterministic tiebreak (spec §4.3
// "Ticket propagation", last paragraph). The caller is expected to only
// ever hold one ticket candidate per dispatch in the canonical
// single-threaded driver; this helper exists for implementations that
// parallelize sibling dispatch within one quantum.
func FirstTicket(candidates map[string]string) (pathName, ticket string, ok bool) {
	if len(candidates) == 0 {
		return "", "", false
	}
	names := make([]string, 0, len(candidates))
	for n := range candidates {
		names = append(names, n)
	}
	sort.Strings(names)
	return names[0], candidates[names[0]], true
}
