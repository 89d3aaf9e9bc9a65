package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// dispatchOutcome reports what happened to one runnable path from a single
// Dispatcher.Dispatch call. The caller (the run loop in driver.go) applies
// it to the CaseState — creating children, completing siblings, and so on —
// per spec §4.2/§4.3. Keeping "what the step said" separate from "what the
// case does about it" mirrors the teacher's split between nodeResult
// (engine.go) and the routing application that follows it in Run().
type dispatchOutcome struct {
	path     ExecPath
	response Response

	// fanOut is set when the dispatched step was a P_ROUTE that fired.
	fanOut *fanOutRequest

	// newRecording is set when the dispatched TASK opted into replay (spec
	// §9 "Replay") and this was a fresh invocation, not a replayed one. The
	// caller appends it to CaseState.RecordedIOs.
	newRecording *RecordedIO
}

type fanOutRequest struct {
	route    string
	branches []string
}

// Dispatcher invokes one task or route body and interprets its Response
// into the next ExecPath state (spec §4.2).
type Dispatcher struct {
	definition *WorkflowDefinition
	registry   CapabilityRegistry

	// interior maps each step name reachable only from inside a P_ROUTE's
	// fan-out branches to the route that owns it, precomputed once so
	// every ticket check is a map lookup rather than a graph walk (spec
	// invariant I7).
	interior map[string]string
}

// NewDispatcher constructs a Dispatcher bound to a single definition and
// capability registry.
func NewDispatcher(defn *WorkflowDefinition, registry CapabilityRegistry) *Dispatcher {
	return &Dispatcher{definition: defn, registry: registry, interior: branchInterior(defn)}
}

// branchInterior walks every P_ROUTE's branches (discovered by the
// "<route>.<branch>" naming convention Coordinator.branchStart relies on)
// following TASK/START Next edges and descending into nested P_ROUTEs past
// their own Join, stopping at the outer route's Join. Every step visited
// this way can only ever run while that route's fan-out is open.
func branchInterior(defn *WorkflowDefinition) map[string]string {
	owner := make(map[string]string)
	for _, step := range defn.Steps {
		if step.Kind != StepParallelRoute {
			continue
		}
		prefix := step.Name + "."
		for name := range defn.Steps {
			if len(name) > len(prefix) && name[:len(prefix)] == prefix {
				walkBranch(defn, name, step.Join, step.Name, owner)
			}
		}
	}
	return owner
}

func walkBranch(defn *WorkflowDefinition, start, join, route string, owner map[string]string) {
	visited := make(map[string]bool)
	var walk func(name string)
	walk = func(name string) {
		if name == "" || name == join || visited[name] {
			return
		}
		visited[name] = true
		owner[name] = route
		step, ok := defn.Step(name)
		if !ok {
			return
		}
		switch step.Kind {
		case StepTask, StepStart:
			walk(step.Next)
		case StepParallelRoute:
			// Nested fan-out: its branches are interior to the outer
			// route too; resume walking past its own join.
			walk(step.Join)
		case StepSerialRoute, StepEnd:
			// S_ROUTE successors are dynamic; END has none.
		}
	}
	walk(start)
}

// Dispatch resolves p.Step in the definition, invokes its body, and returns
// the outcome. p must be STARTED with an empty PendBasket (spec §4.2
// "Contract").
//
// Definition and capability faults are returned as *FatalError; everything
// else a task/route body raises (a non-Response error) is converted to an
// ERROR_PEND outcome per spec §4.2 "Failure semantics" — the dispatcher
// itself never lets a task's panic-as-error abort the case.
// recorded is the case's prior RecordedIOs (spec §9 "Replay"); a TASK body
// that opts into SideEffectPolicy.Recordable is replayed from it instead of
// re-invoked when a matching (pathName, stepName, attempt) entry exists.
// now stamps any new recording Dispatch produces.
func (d *Dispatcher) Dispatch(ctx context.Context, caseID string, p ExecPath, vars *ProcessVariables, attempt int, openRoutes map[string]bool, recorded []RecordedIO, now time.Time) (dispatchOutcome, error) {
	step, ok := d.definition.Step(p.Step)
	if !ok {
		return dispatchOutcome{}, &FatalError{
			CaseID:  caseID,
			Message: fmt.Sprintf("step %q not found in definition", p.Step),
			Code:    "STEP_NOT_FOUND",
		}
	}

	resp, newRecording, err := d.invoke(ctx, step, caseID, p, vars, attempt, recorded, now)
	if err != nil {
		var fe *FatalError
		if asFatal(err, &fe) {
			return dispatchOutcome{}, fe
		}
		// Task thrown fault (spec §4.2 "Failure semantics" / §7).
		resp = Response{
			Kind:      ResponseErrorPend,
			Basket:    "workflow_temp_hold",
			ErrorCode: "TASK_FAULT",
			ErrorDesc: err.Error(),
		}
	}

	outcome, err := d.apply(caseID, step, p, resp, attempt, openRoutes)
	outcome.newRecording = newRecording
	return outcome, err
}

func (d *Dispatcher) invoke(ctx context.Context, step Step, caseID string, p ExecPath, vars *ProcessVariables, attempt int, recorded []RecordedIO, now time.Time) (Response, *RecordedIO, error) {
	sc := StepContext{
		CaseID:     caseID,
		PathName:   p.Name,
		StepName:   step.Name,
		Attempt:    attempt,
		Definition: d.definition,
		Vars:       vars,
	}

	switch step.Kind {
	case StepStart:
		return Response{Kind: ResponseOKProceed}, nil, nil
	case StepEnd:
		return Response{Kind: ResponseOKProceed}, nil, nil
	case StepTask:
		body, ok := d.registry.GetTask(step.Capability)
		if !ok {
			return Response{}, nil, &FatalError{CaseID: caseID, Message: "unknown task capability: " + step.Capability, Code: "CAPABILITY_NOT_FOUND"}
		}
		return d.invokeTask(ctx, body, sc, recorded, now)
	case StepSerialRoute, StepParallelRoute:
		body, ok := d.registry.GetRoute(step.Capability)
		if !ok {
			return Response{}, nil, &FatalError{CaseID: caseID, Message: "unknown route capability: " + step.Capability, Code: "CAPABILITY_NOT_FOUND"}
		}
		return body.RunRoute(ctx, sc), nil, nil
	default:
		return Response{}, nil, &FatalError{CaseID: caseID, Message: "unknown step kind: " + string(step.Kind), Code: "BAD_STEP_KIND"}
	}
}

// invokeTask runs a TASK body, transparently replaying a prior recording
// for bodies that implement RecordableTask with Recordable set (spec §9).
func (d *Dispatcher) invokeTask(ctx context.Context, body TaskBody, sc StepContext, recorded []RecordedIO, now time.Time) (Response, *RecordedIO, error) {
	rec, ok := body.(RecordableTask)
	if !ok || !rec.SideEffectPolicy().Recordable {
		return body.RunTask(ctx, sc), nil, nil
	}

	if hit, found := LookupRecordedIO(recorded, sc.PathName, sc.StepName, sc.Attempt); found {
		var resp Response
		if err := json.Unmarshal(hit.Response, &resp); err != nil {
			return Response{}, nil, &FatalError{CaseID: sc.CaseID, Message: "corrupt recorded response: " + err.Error(), Code: "REPLAY_CORRUPT"}
		}
		return resp, nil, nil
	}

	resp := body.RunTask(ctx, sc)
	newRecording, err := RecordIO(sc.PathName, sc.StepName, sc.Attempt, sc.Vars, resp, now)
	if err != nil {
		return Response{}, nil, &FatalError{CaseID: sc.CaseID, Message: "record IO: " + err.Error(), Code: "REPLAY_RECORD_FAILED"}
	}
	return resp, &newRecording, nil
}

// apply interprets resp against step and p, producing the path's next state
// (spec §4.2 "Interpret the returned Response").
func (d *Dispatcher) apply(caseID string, step Step, p ExecPath, resp Response, attempt int, openRoutes map[string]bool) (dispatchOutcome, error) {
	// A ticket takes priority over any other field on the response: the
	// path completes immediately regardless of Kind (spec §4.2 "Ticket").
	if resp.TicketTarget != "" {
		if err := d.validateTicketTarget(caseID, resp.TicketTarget, openRoutes); err != nil {
			return dispatchOutcome{}, err
		}
		p.Status = PathCompleted
		p.LastResponse = resp.Kind
		p.PendBasket = ""
		p.Attempt = 0
		return dispatchOutcome{path: p, response: resp}, nil
	}

	switch resp.Kind {
	case ResponseOKProceed:
		return d.applyProceed(caseID, step, p, resp)

	case ResponseParallel:
		if step.Kind != StepParallelRoute {
			return dispatchOutcome{}, &FatalError{CaseID: caseID, Message: "parallel response from non-P_ROUTE step: " + step.Name, Code: "BAD_RESPONSE"}
		}
		if len(resp.Branches) == 0 {
			return dispatchOutcome{}, &FatalError{CaseID: caseID, Message: "P_ROUTE returned zero branches: " + step.Name, Code: "BAD_RESPONSE"}
		}
		p.Step = step.Join
		p.LastResponse = ResponseOKProceed
		p.Status = PathStarted
		p.WaitingOnRoute = step.Name
		p.Attempt = 0
		return dispatchOutcome{
			path:     p,
			response: resp,
			fanOut:   &fanOutRequest{route: step.Name, branches: resp.Branches},
		}, nil

	case ResponseOKPend:
		next, err := d.successorOf(caseID, step, "")
		if err != nil {
			return dispatchOutcome{}, err
		}
		p.Step = next
		p.LastResponse = ResponseOKPend
		p.PrevPendBasket = nonEmptyOr(resp.Basket, p.PrevPendBasket)
		p.PendBasket = resp.Basket
		p.Attempt = 0
		return dispatchOutcome{path: p, response: resp}, nil

	case ResponseOKPendEOR:
		p.LastResponse = ResponseOKPendEOR
		p.PrevPendBasket = nonEmptyOr(resp.Basket, p.PrevPendBasket)
		p.PendBasket = resp.Basket
		p.Attempt = attempt + 1
		return dispatchOutcome{path: p, response: resp}, nil

	case ResponseErrorPend:
		p.LastResponse = ResponseErrorPend
		p.PrevPendBasket = nonEmptyOr(resp.Basket, p.PrevPendBasket)
		p.PendBasket = resp.Basket
		p.ErrorCode = resp.ErrorCode
		p.ErrorDesc = resp.ErrorDesc
		p.Attempt = attempt + 1
		return dispatchOutcome{path: p, response: resp}, nil

	default:
		return dispatchOutcome{}, &FatalError{CaseID: caseID, Message: "unknown response kind: " + string(resp.Kind), Code: "BAD_RESPONSE"}
	}
}

func (d *Dispatcher) applyProceed(caseID string, step Step, p ExecPath, resp Response) (dispatchOutcome, error) {
	if step.Kind == StepEnd && p.Name == RootPathName {
		// END has no successor: the root dispatching END completes in place.
		p.LastResponse = ResponseOKProceed
		p.PendBasket = ""
		p.Attempt = 0
		p.Status = PathCompleted
		return dispatchOutcome{path: p, response: resp}, nil
	}
	next, err := d.successorOf(caseID, step, resp.Branch)
	if err != nil {
		return dispatchOutcome{}, err
	}
	p.Step = next
	p.LastResponse = ResponseOKProceed
	p.PendBasket = ""
	p.Attempt = 0

	if next == StepEndName(d.definition) && p.Name == RootPathName {
		p.Status = PathCompleted
	}
	if p.Name != RootPathName {
		parent := Parent(p.Name)
		route := lastRouteSegment(p.Name)
		if joinStep, ok := d.joinOf(route); ok && next == joinStep {
			p.Status = PathCompleted
		}
		_ = parent
	}
	return dispatchOutcome{path: p, response: resp}, nil
}

// successorOf resolves the next step name for a TASK (statically declared)
// or S_ROUTE (dynamically returned branch) step.
func (d *Dispatcher) successorOf(caseID string, step Step, branch string) (string, error) {
	switch step.Kind {
	case StepTask, StepStart:
		return step.Next, nil
	case StepSerialRoute:
		if branch == "" {
			return "", &FatalError{CaseID: caseID, Message: "S_ROUTE returned empty branch: " + step.Name, Code: "BAD_RESPONSE"}
		}
		if _, ok := d.definition.Step(branch); !ok {
			return "", &FatalError{CaseID: caseID, Message: "S_ROUTE branch does not exist: " + branch, Code: "STEP_NOT_FOUND"}
		}
		return branch, nil
	default:
		return "", &FatalError{CaseID: caseID, Message: "no successor rule for step kind: " + string(step.Kind), Code: "BAD_STEP_KIND"}
	}
}

func (d *Dispatcher) joinOf(route string) (string, bool) {
	step, ok := d.definition.Step(route)
	if !ok || step.Kind != StepParallelRoute {
		return "", false
	}
	return step.Join, true
}

// validateTicketTarget enforces invariant I7: target must name a declared
// step, and that step must not lie inside a parallel construct that is
// still open at the moment the ticket is raised.
func (d *Dispatcher) validateTicketTarget(caseID, target string, openRoutes map[string]bool) error {
	if _, ok := d.definition.Step(target); !ok {
		return &FatalError{CaseID: caseID, Message: "ticket target does not exist: " + target, Code: "STEP_NOT_FOUND"}
	}
	if route, inside := d.interior[target]; inside && openRoutes[route] {
		return &FatalError{
			CaseID:  caseID,
			Message: "ticket target " + target + " lies inside open parallel construct " + route,
			Code:    "TICKET_UNREACHABLE",
			Cause:   ErrTicketUnreachable,
		}
	}
	return nil
}

// StepEndName returns the definition's END step name. In this engine the
// kind, not a fixed identifier, marks completion, so callers look the step
// up by scanning for StepEnd; exposed as a helper to keep that scan in one
// place.
func StepEndName(defn *WorkflowDefinition) string {
	for _, s := range defn.Steps {
		if s.Kind == StepEnd {
			return s.Name
		}
	}
	return ""
}

func lastRouteSegment(name string) string {
	if name == RootPathName {
		return ""
	}
	trimmed := name[:len(name)-1]
	segs := splitPath(trimmed)
	if len(segs) < 2 {
		return ""
	}
	return segs[len(segs)-2]
}

func splitPath(trimmed string) []string {
	var out []string
	start := 0
	for i := 0; i < len(trimmed); i++ {
		if trimmed[i] == pathSeparator {
			out = append(out, trimmed[start:i])
			start = i + 1
		}
	}
	out = append(out, trimmed[start:])
	return out
}

func nonEmptyOr(v, fallback string) string {
	if v != "" {
		return v
	}
	return fallback
}

func asFatal(err error, target **FatalError) bool {
	fe, ok := err.(*FatalError)
	if ok {
		*target = fe
	}
	return ok
}
