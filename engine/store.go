package engine

import "context"

// Store provides durable persistence for CaseState snapshots (spec §6.2
// "Durable Store"). Implementations must make Put atomic with respect to a
// concurrent Get/Put on the same caseID (spec's single-writer-per-case
// Non-goal means the engine never issues concurrent writes itself, but a
// Store is still expected to replace, not merge, on Put).
//
// Mirrors the shape of the teacher's store.Store[S] (graph/store/store.go),
// narrowed to this engine's three operations — no checkpoint labels, no
// idempotency-key ledger, no outbox: this engine persists exactly one
// mutable snapshot per case and relies on the Sanitizer, not the store, to
// repair crash-time inconsistency.
type Store interface {
	// Get loads the current snapshot for caseID. Returns ErrCaseNotFound if
	// none exists.
	Get(ctx context.Context, caseID string) (CaseState, error)

	// Put atomically replaces the snapshot for caseID.
	Put(ctx context.Context, state CaseState) error

	// Delete removes the snapshot for caseID. Deleting a case that does not
	// exist is not an error.
	Delete(ctx context.Context, caseID string) error
}
