package engine

import "errors"

// Sentinel errors returned by the Engine API, following the teacher's
// var Err... = errors.New(...) convention rather than a bespoke error
// hierarchy (spec §7 error taxonomy).
var (
	// ErrCaseNotFound is returned by Resume/Inspect when no snapshot exists
	// for the given case ID.
	ErrCaseNotFound = errors.New("case not found")

	// ErrCaseAlreadyExists is returned by Start when caseID already has a
	// snapshot in the durable store.
	ErrCaseAlreadyExists = errors.New("case already exists")

	// ErrCaseComplete is returned by Resume when the case has already
	// reached completion.
	ErrCaseComplete = errors.New("case is already complete")

	// ErrUnrepairable is returned by the Sanitizer when a loaded snapshot
	// violates an invariant it cannot restore (spec §7 "Unrepairable
	// snapshot").
	ErrUnrepairable = errors.New("case snapshot cannot be repaired")

	// ErrDefinitionFault is returned by Validate/RegisterDefinition for a
	// structurally faulty definition, and by Start/Resume when the named
	// definition is not registered (spec §7 "Definition / registry fault").
	// Unresolvable steps, capabilities and ticket targets met during
	// dispatch are reported as *FatalError instead.
	ErrDefinitionFault = errors.New("workflow definition or capability fault")

	// ErrTicketUnreachable is returned when a ticket target lies inside a
	// still-open parallel construct, violating invariant I7.
	ErrTicketUnreachable = errors.New("ticket target is not reachable from the root")

	// ErrNoProgress is returned by the Case Driver when the runnable set is
	// empty, no path is pended, and the case is not complete — a state the
	// sanitizer should have prevented, surfaced as a safety net.
	ErrNoProgress = errors.New("no progress: no runnable or pended paths remain")
)

// FatalError represents a definition- or registry-level fault: the case
// stops driving, its on-disk snapshot is left unchanged, and the caller
// must repair the definition or registry before resuming (spec §7, §4.5
// "Failure model").
type FatalError struct {
	CaseID  string
	Message string
	Code    string
	Cause   error
}

// Error implements the error interface.
func (e *FatalError) Error() string {
	if e.CaseID != "" {
		return "case " + e.CaseID + ": " + e.Message
	}
	return e.Message
}

// Unwrap exposes the underlying cause for errors.Is/As.
func (e *FatalError) Unwrap() error { return e.Cause }
