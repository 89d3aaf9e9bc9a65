package engine

import "sort"

// Sanitize converts a possibly crash-inconsistent CaseState into a
// resumable configuration satisfying the invariants of spec §3.3, and
// computes the canonical pend-path (spec §4.4). It is invoked exactly once
// at the start of Resume, before normal driving resumes, and is idempotent
// (spec P6: Sanitize(Sanitize(s)) == Sanitize(s)).
//
// CaseState persists as a single atomic document, which rules out a single
// Put ever catching one path torn mid-write. It does not rule out a path
// caught mid-dispatch: Coordinator.FanOut inserts new children with
// LastResponse left at its zero value before any of them has run once, and
// under eager per-step persistence (driver.go's default PersistAfterEachStep
// mode) that batch — parent advanced past the route, brand-new children
// unset — is exactly what the next Put writes. A crash right after that Put
// leaves those children in the state S3 below repairs.
//
// metrics may be nil; every rule that actually mutates the snapshot reports
// itself via metrics.observeRepair so sanitize_repairs_total reflects real
// repair activity rather than every Resume call.
func Sanitize(defn *WorkflowDefinition, cs *CaseState, metrics *Metrics) error {
	// S1 — Completion check.
	if root, ok := cs.ExecPaths[RootPathName]; ok && root.Status == PathCompleted && root.Step == StepEndName(defn) {
		cs.IsComplete = true
		cs.PendExecPath = ""
		return nil
	}

	coord := NewCoordinator(defn)

	// S2 — Ticket reconciliation: drive PropagateTicket to a fixed point.
	// Each call force-completes whatever is still STARTED and, once nothing
	// is, reroutes the root; looping here means Sanitize alone can finish
	// a ticket that crashed mid-propagation without waiting for the next
	// driveLoop quantum.
	rerouted := false
	hadTicket := cs.Ticket != ""
	for i := 0; i < len(cs.ExecPaths)+1 && cs.Ticket != ""; i++ {
		reroute, err := PropagateTicket(cs)
		if err != nil {
			return err
		}
		if reroute {
			rerouted = true
			break
		}
	}
	if hadTicket {
		metrics.observeRepair("S2")
	}

	// S3 — Partially-executed path repair. A root S2 just rerouted is
	// deliberately left with lastResponse=="" by PropagateTicket to mark it
	// driveable from the ticket target (spec §4.4 S2, "thereby driveable
	// from the root") — that is a fresh start, not an unobserved crash, so
	// it is excluded here rather than immediately re-pended.
	if repairPartiallyExecutedPaths(defn, cs, rerouted) {
		metrics.observeRepair("S3")
	}

	// S4 — Join readiness recheck, repeated to a fixed point so nested
	// parallel constructs that converge together are fully unwound.
	for i := 0; i < len(cs.ExecPaths)+1; i++ {
		advanced, err := coord.AdvanceReadyJoins(cs)
		if err != nil {
			return err
		}
		if !advanced {
			break
		}
		metrics.observeRepair("S4")
	}

	// S4b — Re-check completion now that ticket propagation and join
	// advancement may have moved the root to END.
	if root, ok := cs.ExecPaths[RootPathName]; ok && root.Status == PathCompleted && root.Step == StepEndName(defn) {
		cs.IsComplete = true
		cs.PendExecPath = ""
		return nil
	}

	// S5 — Pend-path selection.
	cs.PendExecPath = selectPendPath(cs.ExecPaths)

	if cs.PendExecPath == "" && !anyRunnable(cs.ExecPaths) && !anyWaitingOnJoin(cs.ExecPaths) {
		return ErrUnrepairable
	}

	return nil
}

// repairPartiallyExecutedPaths implements spec §4.4 S3. It inspects every
// STARTED path and repairs the two shapes a crash can leave behind:
//
//   - lastResponse unset: the step's own effect was never observed (either
//     it never ran, or it ran and the response was lost before persisting).
//     The step is forced into OK_PEND_EOR so resume re-executes it under
//     the task-idempotency contract of spec §8, rather than driveLoop
//     treating the path as ordinary-runnable and re-entering it silently.
//     A P_ROUTE whose children already exist is the one case where the
//     fan-out is known to have actually happened; that path is marked
//     COMPLETED instead of re-dispatched, since re-running RunRoute could
//     return a different branch set and corrupt the already-created
//     children.
//   - lastResponse == OK_PROCEED left over from a step whose successor was
//     already recorded: canonicalized to OK_PEND (TASK) or OK_PEND_EOR
//     (S_ROUTE) so the resume cycle starts with a normal dispatch of the
//     step now current, rather than re-interpreting a stale OK_PROCEED.
//
// skipRoot suppresses the unset-lastResponse branch for the root path; set
// it when S2 just rerouted the root onto a ticket target this call, since
// that "" is a fresh start rather than a crash signature.
//
// Reports whether it mutated anything, for metrics.observeRepair.
func repairPartiallyExecutedPaths(defn *WorkflowDefinition, cs *CaseState, skipRoot bool) bool {
	repaired := false
	for name, p := range cs.ExecPaths {
		if p.Status != PathStarted {
			continue
		}
		if skipRoot && name == RootPathName && p.LastResponse == "" {
			continue
		}
		if p.WaitingOnRoute != "" {
			// Parked at a join, not mid-dispatch of its own step; S4
			// governs whether it may advance.
			continue
		}
		step, ok := defn.Step(p.Step)
		if !ok {
			continue
		}

		switch {
		case p.LastResponse == "":
			p.LastResponse = ResponseOKPendEOR
			if p.PrevPendBasket != "" {
				p.PendBasket = p.PrevPendBasket
			} else {
				p.PendBasket = "workflow_temp_hold"
			}
			if step.Kind == StepParallelRoute && len(ChildrenOf(cs.ExecPaths, name, step.Name)) > 0 {
				p.Status = PathCompleted
			}
			repaired = true

		case p.LastResponse == ResponseOKProceed && step.Kind == StepTask:
			p.LastResponse = ResponseOKPend
			repaired = true

		case p.LastResponse == ResponseOKProceed && step.Kind == StepSerialRoute:
			p.LastResponse = ResponseOKPendEOR
			repaired = true

		default:
			continue
		}

		cs.ExecPaths[name] = p
	}
	return repaired
}

// selectPendPath implements spec §4.4 S5 / §8.1 P8: among all paths with a
// non-empty PendBasket, pick the greatest depth, breaking ties
// lexicographically by name.
func selectPendPath(exec map[string]ExecPath) string {
	var candidates []string
	for name, p := range exec {
		if p.PendBasket != "" {
			candidates = append(candidates, name)
		}
	}
	if len(candidates) == 0 {
		return ""
	}
	sort.Slice(candidates, func(i, j int) bool {
		di, dj := Depth(candidates[i]), Depth(candidates[j])
		if di != dj {
			return di > dj
		}
		return candidates[i] < candidates[j]
	})
	return candidates[0]
}

func anyRunnable(exec map[string]ExecPath) bool {
	for _, p := range exec {
		if p.Status == PathStarted && p.PendBasket == "" && p.WaitingOnRoute == "" {
			return true
		}
	}
	return false
}

func anyWaitingOnJoin(exec map[string]ExecPath) bool {
	for _, p := range exec {
		if p.Status == PathStarted && p.WaitingOnRoute != "" {
			return true
		}
	}
	return false
}
