// Package engine implements a crash-proof workflow execution kernel: a
// tree of named concurrent execution paths driven through a graph-defined
// case by a step-dispatch state machine, with durable persistence after
// every observable transition.
package engine

import "context"

// StepKind is a closed variant over the kinds of steps a WorkflowDefinition
// can declare.
type StepKind string

const (
	// StepTask invokes a task body and advances to a statically-named successor.
	StepTask StepKind = "TASK"
	// StepSerialRoute invokes a route body that returns exactly one branch name.
	StepSerialRoute StepKind = "S_ROUTE"
	// StepParallelRoute invokes a route body that returns a set of branch names.
	StepParallelRoute StepKind = "P_ROUTE"
	// StepStart is the degenerate entry node of a case.
	StepStart StepKind = "START"
	// StepEnd marks case completion on the root path.
	StepEnd StepKind = "END"
)

// Step is one node in a WorkflowDefinition's graph.
type Step struct {
	Name string
	Kind StepKind

	// Next is the statically declared successor for TASK and START steps;
	// END steps have none.
	Next string

	// Capability names the Task or Route body to resolve via the
	// CapabilityRegistry. Unused for START/END.
	Capability string

	// Join names the matching join step for a P_ROUTE. Ignored otherwise.
	Join string
}

// WorkflowDefinition is the immutable, externally supplied directed graph a
// case executes. It is never mutated by the engine.
type WorkflowDefinition struct {
	Name    string
	Version string
	Start   string
	Steps   map[string]Step
}

// Step looks up a step by name. The second return value is false when the
// step does not exist in the definition — a definition fault per spec §7.
func (d *WorkflowDefinition) Step(name string) (Step, bool) {
	s, ok := d.Steps[name]
	return s, ok
}

// ResponseKind is a closed variant over the outcomes a Task or Route body
// may return from a single dispatch.
type ResponseKind string

const (
	// ResponseOKProceed advances the path to a statically or dynamically
	// resolved successor.
	ResponseOKProceed ResponseKind = "OK_PROCEED"
	// ResponseOKPend suspends the path; resume starts at the advanced step.
	ResponseOKPend ResponseKind = "OK_PEND"
	// ResponseOKPendEOR suspends the path; resume re-executes the same step.
	ResponseOKPendEOR ResponseKind = "OK_PEND_EOR"
	// ResponseErrorPend suspends the path with an error recorded.
	ResponseErrorPend ResponseKind = "ERROR_PEND"
	// ResponseParallel reports the branch set chosen by a P_ROUTE body.
	ResponseParallel ResponseKind = "PARALLEL"
)

// Response is the tagged-variant result of invoking a Task or Route body.
// Exactly the fields relevant to Kind are meaningful; the dispatcher is the
// single source of truth for how each combination is interpreted (spec §4.2).
type Response struct {
	Kind ResponseKind

	// Branch is the single successor chosen by an S_ROUTE body.
	Branch string

	// Branches is the non-empty branch set chosen by a P_ROUTE body.
	Branches []string

	// Basket names the queue a pend is waiting in (OK_PEND, OK_PEND_EOR,
	// ERROR_PEND).
	Basket string

	// ErrorCode and ErrorDesc are populated iff Kind == ResponseErrorPend.
	ErrorCode string
	ErrorDesc string

	// TicketTarget, when non-empty, requests a non-local jump: the path
	// completes immediately and the case's ticket is set to this step name.
	TicketTarget string
}

// TaskBody is a user-supplied black box invoked for TASK steps.
type TaskBody interface {
	RunTask(ctx context.Context, c StepContext) Response
}

// RouteBody is a user-supplied black box invoked for S_ROUTE and P_ROUTE
// steps.
type RouteBody interface {
	RunRoute(ctx context.Context, c StepContext) Response
}

// TaskFunc adapts a plain function to TaskBody.
type TaskFunc func(ctx context.Context, c StepContext) Response

// RunTask implements TaskBody.
func (f TaskFunc) RunTask(ctx context.Context, c StepContext) Response { return f(ctx, c) }

// RouteFunc adapts a plain function to RouteBody.
type RouteFunc func(ctx context.Context, c StepContext) Response

// RunRoute implements RouteBody.
func (f RouteFunc) RunRoute(ctx context.Context, c StepContext) Response { return f(ctx, c) }

// StepContext is the immutable-view + mutating-handle context a dispatch
// invocation exposes to a Task or Route body (spec §4.2 step 3).
type StepContext struct {
	CaseID     string
	PathName   string
	StepName   string
	Attempt    int
	Definition *WorkflowDefinition
	Vars       *ProcessVariables
}

// CapabilityRegistry resolves a step's declared implementation name to a
// Task or Route body (spec §6.2).
type CapabilityRegistry interface {
	GetTask(name string) (TaskBody, bool)
	GetRoute(name string) (RouteBody, bool)
}
