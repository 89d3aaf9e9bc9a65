package engine

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/caseflow-io/caseengine/engine/emit"
)

// Engine is the Case Driver (spec §4.5) and the root of the Engine API
// (spec §6.1): Start, Resume, Inspect. It owns no case state itself —
// everything durable lives in Store — so an Engine is cheap to construct
// and safe to share across goroutines driving different cases, mirroring
// the teacher's stateless graph.Engine[S] (graph/engine.go).
type Engine struct {
	registry CapabilityRegistry
	store    Store
	cfg      Config

	definitions map[string]*WorkflowDefinition

	emitter emit.Emitter
}

// New constructs an Engine bound to a capability registry and durable
// store, applying opts over the package defaults.
func New(registry CapabilityRegistry, store Store, opts ...Option) *Engine {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Engine{
		registry:    registry,
		store:       store,
		cfg:         cfg,
		definitions: make(map[string]*WorkflowDefinition),
		emitter:     emit.NewNullEmitter(),
	}
}

// SetEmitter wires a structured observability sink. Defaults to a
// NullEmitter; not a functional Option because it belongs to the ambient
// observability stack rather than case-driving tunables (spec's Config
// covers the latter).
func (e *Engine) SetEmitter(em emit.Emitter) {
	if em != nil {
		e.emitter = em
	}
}

func defKey(name, version string) string { return name + "@" + version }

// RegisterDefinition validates defn (see Validate) and makes it resolvable
// by Start/Resume via its Name and Version.
func (e *Engine) RegisterDefinition(defn *WorkflowDefinition) error {
	if err := e.Validate(defn); err != nil {
		return err
	}
	e.definitions[defKey(defn.Name, defn.Version)] = defn
	return nil
}

func (e *Engine) lookupDefinition(name, version string) (*WorkflowDefinition, error) {
	defn, ok := e.definitions[defKey(name, version)]
	if !ok {
		return nil, fmt.Errorf("%w: definition %s@%s not registered", ErrDefinitionFault, name, version)
	}
	return defn, nil
}

// Validate walks defn and reports structural faults without executing
// anything (spec supplement, grounded on Engine.Add/Engine.Connect's
// registration-time checks in graph/engine.go): dangling step references,
// P_ROUTE steps with a missing or empty Join, and TASK/START steps whose
// Next is missing or not a declared step.
//
// Invariant I7 (a ticket target must not lie inside a still-open parallel
// construct) is not checked here: a ticket target is a runtime value a
// RouteBody returns, not something declared on the definition, so "open"
// can only be evaluated against a live CaseState. The Dispatcher enforces
// it at the point a ticket is actually raised (validateTicketTarget).
func (e *Engine) Validate(defn *WorkflowDefinition) error {
	if defn == nil {
		return fmt.Errorf("%w: nil definition", ErrDefinitionFault)
	}
	if _, ok := defn.Step(defn.Start); !ok {
		return fmt.Errorf("%w: start step %q not declared", ErrDefinitionFault, defn.Start)
	}
	if StepEndName(defn) == "" {
		return fmt.Errorf("%w: no END step declared", ErrDefinitionFault)
	}
	for name, step := range defn.Steps {
		if step.Name != name {
			return fmt.Errorf("%w: step key %q does not match Step.Name %q", ErrDefinitionFault, name, step.Name)
		}
		switch step.Kind {
		case StepTask, StepStart:
			if step.Next == "" {
				return fmt.Errorf("%w: step %q has no Next", ErrDefinitionFault, name)
			}
			if _, ok := defn.Step(step.Next); !ok {
				return fmt.Errorf("%w: step %q.Next %q not declared", ErrDefinitionFault, name, step.Next)
			}
		case StepParallelRoute:
			if step.Join == "" {
				return fmt.Errorf("%w: P_ROUTE %q has no Join", ErrDefinitionFault, name)
			}
			if _, ok := defn.Step(step.Join); !ok {
				return fmt.Errorf("%w: P_ROUTE %q.Join %q not declared", ErrDefinitionFault, name, step.Join)
			}
		case StepSerialRoute, StepEnd:
			// S_ROUTE resolves its successor dynamically; END has none.
		default:
			return fmt.Errorf("%w: step %q has unknown kind %q", ErrDefinitionFault, name, step.Kind)
		}
	}
	return nil
}

// Start creates a new case against the named/versioned definition,
// persists its initial snapshot, and drives it until it pends or
// completes (spec §6.1 "Start").
func (e *Engine) Start(ctx context.Context, caseID, defnName, defnVersion string, vars ProcessVariables) (CaseState, error) {
	if _, err := e.store.Get(ctx, caseID); err == nil {
		return CaseState{}, ErrCaseAlreadyExists
	}

	defn, err := e.lookupDefinition(defnName, defnVersion)
	if err != nil {
		return CaseState{}, err
	}

	cs := NewCaseState(caseID, defn, vars)
	cs.Timestamp = e.cfg.Clock()
	if err := e.store.Put(ctx, cs); err != nil {
		e.cfg.Metrics.observePersistFailure("put")
		return cs, err
	}

	e.cfg.Metrics.caseStarted()
	fireHook(e.cfg.EventHook, CaseEvent{Kind: CaseEventStart, CaseID: caseID})

	if err := e.driveLoop(ctx, defn, &cs); err != nil {
		e.cfg.Metrics.caseFinished()
		return cs, err
	}
	if cs.IsComplete {
		e.cfg.Metrics.caseFinished()
	}
	return cs, nil
}

// Resume loads a case, applies varOverrides (merged over existing
// variables, override keys replacing), sanitizes the snapshot, and drives
// it until it pends or completes (spec §6.1 "Resume").
func (e *Engine) Resume(ctx context.Context, caseID string, varOverrides []Var) (CaseState, error) {
	cs, err := e.store.Get(ctx, caseID)
	if err != nil {
		return CaseState{}, err
	}
	if cs.IsComplete {
		return cs, ErrCaseComplete
	}

	defn, err := e.lookupDefinition(cs.DefinitionName, cs.DefinitionVersion)
	if err != nil {
		return cs, err
	}

	if len(varOverrides) > 0 {
		cs.Vars.Merge(varOverrides)
	}

	if err := Sanitize(defn, &cs, e.cfg.Metrics); err != nil {
		return cs, err
	}
	if cs.IsComplete {
		cs.Timestamp = e.cfg.Clock()
		if putErr := e.store.Put(ctx, cs); putErr != nil {
			e.cfg.Metrics.observePersistFailure("put")
			return cs, putErr
		}
		return cs, nil
	}

	e.cfg.Metrics.caseStarted()
	if err := e.driveLoop(ctx, defn, &cs); err != nil {
		e.cfg.Metrics.caseFinished()
		return cs, err
	}
	if cs.IsComplete {
		e.cfg.Metrics.caseFinished()
	}
	return cs, nil
}

// ResolvePend clears the PendBasket of one path in a persisted case,
// representing the Work-basket Sink's external signal that whatever the
// path was waiting for has happened (spec §6.2). The path becomes
// runnable again on the next Resume; ResolvePend itself does not drive the
// case. Returns ErrCaseNotFound if the path does not exist.
func (e *Engine) ResolvePend(ctx context.Context, caseID, pathName string) error {
	cs, err := e.store.Get(ctx, caseID)
	if err != nil {
		return err
	}
	p, ok := cs.ExecPaths[pathName]
	if !ok {
		return fmt.Errorf("%w: path %q", ErrCaseNotFound, pathName)
	}
	p.PendBasket = ""
	p.ErrorCode = ""
	p.ErrorDesc = ""
	cs.ExecPaths[pathName] = p
	cs.Timestamp = e.cfg.Clock()
	if err := e.store.Put(ctx, cs); err != nil {
		e.cfg.Metrics.observePersistFailure("put")
		return err
	}
	return nil
}

// Inspect returns a deep-copied, read-only projection of a case's current
// snapshot (spec supplement, grounded on the teacher's copy-before-return
// checkpoint reads in graph/engine.go).
func (e *Engine) Inspect(ctx context.Context, caseID string) (CaseState, error) {
	cs, err := e.store.Get(ctx, caseID)
	if err != nil {
		return CaseState{}, err
	}
	return cs.Clone(), nil
}

// runnablePaths returns every STARTED path with an empty PendBasket and no
// open join wait, ordered by the picking policy of spec §5: smallest
// depth first, lexicographic name as tiebreak.
func runnablePaths(cs *CaseState) []string {
	var names []string
	for name, p := range cs.ExecPaths {
		if p.Status == PathStarted && p.PendBasket == "" && p.WaitingOnRoute == "" {
			names = append(names, name)
		}
	}
	sort.Slice(names, func(i, j int) bool {
		di, dj := Depth(names[i]), Depth(names[j])
		if di != dj {
			return di < dj
		}
		return names[i] < names[j]
	})
	return names
}

// driveLoop is the Case Driver's run loop: repeatedly pick the next
// runnable path, dispatch it, apply the outcome, and persist, until no
// path is runnable (spec §4.5). A *FatalError aborts the loop without
// touching the store, leaving the last persisted snapshot as the resume
// point once the definition or registry fault is fixed.
func (e *Engine) driveLoop(ctx context.Context, defn *WorkflowDefinition, cs *CaseState) error {
	dispatcher := NewDispatcher(defn, e.registry)
	coord := NewCoordinator(defn)

	steps := 0
	for {
		if e.cfg.MaxStepsPerDrive > 0 && steps >= e.cfg.MaxStepsPerDrive {
			break
		}

		runnable := runnablePaths(cs)
		if len(runnable) == 0 {
			// A pending ticket takes priority over join advancement: once
			// raised, cooperative cancellation must force-complete every
			// STARTED path — including one sitting at a now-ready join —
			// before the root reroutes, rather than letting that join
			// advance the case past the cancellation (spec §4.3 "Ticket
			// propagation").
			if cs.Ticket != "" {
				reroute, err := PropagateTicket(cs)
				if err != nil {
					return err
				}
				e.cfg.Metrics.observeTicket()
				// Either the root just rerouted, or some paths were
				// force-completed this pass and others remain STARTED
				// elsewhere; either way the loop must re-scan.
				_ = reroute
				continue
			}

			advanced, err := coord.AdvanceReadyJoins(cs)
			if err != nil {
				return err
			}
			if advanced {
				continue
			}

			break
		}

		pathName := runnable[0]
		p := cs.ExecPaths[pathName]

		ctx, span := e.cfg.Tracer.startDispatch(ctx, cs.CaseID, p.Name, p.Step)
		dispatchStart := e.cfg.Clock()
		outcome, err := dispatcher.Dispatch(ctx, cs.CaseID, p, &cs.Vars, p.Attempt, openParallelRoutes(cs), cs.RecordedIOs, dispatchStart)
		dispatchMs := e.cfg.Clock().Sub(dispatchStart).Seconds() * 1000
		endSpan(span, err)
		if err != nil {
			return err
		}
		if outcome.newRecording != nil {
			cs.RecordedIOs = append(cs.RecordedIOs, *outcome.newRecording)
		}

		stepKind := ""
		if step, ok := defn.Step(p.Step); ok {
			stepKind = string(step.Kind)
		}
		e.cfg.Metrics.observeDispatch(stepKind, dispatchMs)

		if outcome.path.WaitingOnRoute != "" && p.WaitingOnRoute == "" {
			outcome.path.WaitingSince = e.cfg.Clock()
		}
		cs.ExecPaths[outcome.path.Name] = outcome.path
		cs.LastExecutedStep = p.Step
		cs.LastExecutedComponent = pathName

		if outcome.fanOut != nil {
			_, fanSpan := e.cfg.Tracer.startFanOut(ctx, cs.CaseID, outcome.path.Name, outcome.fanOut.route)
			err := coord.FanOut(cs, outcome.path.Name, *outcome.fanOut)
			endSpan(fanSpan, err)
			if err != nil {
				return err
			}
		}

		if outcome.response.TicketTarget != "" {
			cs.Ticket = outcome.response.TicketTarget
			e.cfg.Metrics.observeTicket()
		}

		e.emitHookFor(cs, outcome)

		steps++

		if e.cfg.PersistAfterEachStep {
			cs.Timestamp = e.cfg.Clock()
			if err := e.store.Put(ctx, *cs); err != nil {
				e.cfg.Metrics.observePersistFailure("put")
				return err
			}
		}
	}

	e.surfaceStalledJoins(cs)

	cs.PendExecPath = selectPendPath(cs.ExecPaths)
	cs.Timestamp = e.cfg.Clock()

	if root, ok := cs.ExecPaths[RootPathName]; ok && root.Status == PathCompleted && root.Step == StepEndName(defn) {
		cs.IsComplete = true
		cs.PendExecPath = ""
		fireHook(e.cfg.EventHook, CaseEvent{Kind: CaseEventComplete, CaseID: cs.CaseID})
	} else if cs.PendExecPath != "" {
		pended := cs.ExecPaths[cs.PendExecPath]
		kind := CaseEventPend
		if pended.ErrorCode != "" {
			kind = CaseEventError
		}
		fireHook(e.cfg.EventHook, CaseEvent{
			Kind: kind, CaseID: cs.CaseID, PathName: pended.Name,
			StepName: pended.Step, Basket: pended.PendBasket,
			Code: pended.ErrorCode, Message: pended.ErrorDesc,
		})
	} else if !anyRunnable(cs.ExecPaths) && !anyWaitingOnJoin(cs.ExecPaths) {
		return ErrNoProgress
	}

	if err := e.store.Put(ctx, *cs); err != nil {
		e.cfg.Metrics.observePersistFailure("put")
		return err
	}
	return nil
}

// surfaceStalledJoins pends any path that has sat at WaitingOnRoute past
// Config.JoinTimeoutMs, turning a silent stall (siblings that will never
// finish) into a case an external operator can see and act on instead of
// one that looks merely slow. A no-op when JoinTimeoutMs is 0.
func (e *Engine) surfaceStalledJoins(cs *CaseState) {
	if e.cfg.JoinTimeoutMs <= 0 {
		return
	}
	limit := time.Duration(e.cfg.JoinTimeoutMs) * time.Millisecond
	now := e.cfg.Clock()
	for name, p := range cs.ExecPaths {
		if p.Status != PathStarted || p.WaitingOnRoute == "" || p.WaitingSince.IsZero() {
			continue
		}
		if now.Sub(p.WaitingSince) < limit {
			continue
		}
		p.PendBasket = "join_timeout"
		p.ErrorCode = "JOIN_TIMEOUT"
		p.ErrorDesc = fmt.Sprintf("join at step %q waited longer than %dms for route %q", p.Step, e.cfg.JoinTimeoutMs, p.WaitingOnRoute)
		cs.ExecPaths[name] = p
	}
}

func (e *Engine) emitHookFor(cs *CaseState, outcome dispatchOutcome) {
	if outcome.path.PendBasket != "" {
		e.cfg.Metrics.observePend(outcome.path.PendBasket)
	}
	e.emitter.Emit(emit.Event{
		CaseID:   cs.CaseID,
		PathName: outcome.path.Name,
		StepName: outcome.path.Step,
		Msg:      string(outcome.response.Kind),
	})
}
