// Package emit provides structured observability events for case execution,
// independent of the case-lifecycle EventHook in the engine package: these
// events are fine-grained dispatch telemetry (one per step attempt), not
// the coarse case-lifecycle notifications task authors react to.
package emit

// Event is one observability record emitted during case execution,
// mirroring the shape of the teacher's emit.Event (graph/emit/event.go)
// narrowed to this engine's unit of work: a path's dispatch of one step.
type Event struct {
	CaseID   string
	PathName string
	StepName string
	Attempt  int
	Msg      string
	Meta     map[string]interface{}
}
