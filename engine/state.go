package engine

import "time"

// PathStatus is the closed variant over ExecPath lifecycle states (spec §3.1).
type PathStatus string

const (
	PathStarted   PathStatus = "STARTED"
	PathCompleted PathStatus = "COMPLETED"
)

// ExecPath is one concurrent thread of execution inside a case (spec §3.1, §3.2).
type ExecPath struct {
	Name string

	Status PathStatus

	// Step names the step this path most recently touched.
	Step string

	// LastResponse is the kind of the most recent Response applied to this
	// path, or "" if the step has not yet returned (mid-dispatch).
	LastResponse ResponseKind

	// PendBasket is non-empty iff the path is pended awaiting an external
	// signal.
	PendBasket string

	// PrevPendBasket remembers the last non-empty PendBasket for sanitizer
	// fallback (spec §4.4 S3).
	PrevPendBasket string

	ErrorCode string
	ErrorDesc string

	// WaitingOnRoute names the P_ROUTE step this path forked, while it sits
	// at that route's join step with its fan-out children still running.
	// Empty once the join is ready and AdvancePastJoin has fired. A path
	// with WaitingOnRoute set is never in the runnable set even though its
	// Status is STARTED and PendBasket is empty (spec §4.3 "Join readiness").
	WaitingOnRoute string

	// WaitingSince records when WaitingOnRoute was set, measured against
	// Config.Clock. Used to enforce Config.JoinTimeoutMs; zero value means
	// "not currently waiting" or "waiting since before this field existed".
	WaitingSince time.Time

	// Attempt counts dispatches of the current Step, starting at 0. It
	// resets to 0 whenever Step advances and increments each time the same
	// Step is re-dispatched after an OK_PEND_EOR or ERROR_PEND (spec §9
	// idempotency key material).
	Attempt int
}

// IsPended reports whether p is currently suspended awaiting an external
// signal.
func (p ExecPath) IsPended() bool {
	return p.PendBasket != ""
}

// CaseState is the per-case snapshot persisted atomically (spec §3.1, §6.3).
type CaseState struct {
	CaseID string

	DefinitionName    string
	DefinitionVersion string

	Vars ProcessVariables

	// ExecPaths is keyed by path name — a flat table, never a pointer graph
	// (spec §9 "Arena vs per-path allocation").
	ExecPaths map[string]ExecPath

	// PendExecPath names the canonical path at which an external observer
	// should resume, or "" if the case is running or complete (spec §4.4 S5).
	PendExecPath string

	// Ticket is an optional pending non-local jump target produced by a
	// child path and not yet consumed (spec §3.1, I7).
	Ticket string

	IsComplete bool

	Timestamp time.Time

	// LastExecutedStep and LastExecutedComponent are advisory-only fields
	// for operator diagnostics (spec §3.1).
	LastExecutedStep      string
	LastExecutedComponent string

	// RecordedIOs holds replayable external interactions keyed by
	// (PathName, StepName, Attempt); see replay.go.
	RecordedIOs []RecordedIO
}

// Clone returns a deep copy of s so callers (Inspect, the sanitizer) never
// alias the engine's working copy of a case's state.
func (s CaseState) Clone() CaseState {
	out := s
	out.Vars = s.Vars.Clone()
	out.ExecPaths = make(map[string]ExecPath, len(s.ExecPaths))
	for k, v := range s.ExecPaths {
		out.ExecPaths[k] = v
	}
	out.RecordedIOs = append([]RecordedIO(nil), s.RecordedIOs...)
	return out
}

// NewCaseState constructs the initial snapshot for a freshly started case:
// a single root path positioned at the definition's start step (spec §3.4
// "Case creation").
func NewCaseState(caseID string, defn *WorkflowDefinition, vars ProcessVariables) CaseState {
	return CaseState{
		CaseID:            caseID,
		DefinitionName:    defn.Name,
		DefinitionVersion: defn.Version,
		Vars:              vars.Clone(),
		ExecPaths: map[string]ExecPath{
			RootPathName: {
				Name:   RootPathName,
				Status: PathStarted,
				Step:   defn.Start,
			},
		},
	}
}
