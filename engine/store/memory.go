// Package store provides Store implementations for CaseState persistence,
// grounded on the teacher's graph/store package: the same three backends
// (in-memory, SQLite, MySQL), narrowed to this engine's single-document
// Get/Put/Delete contract rather than the teacher's step-history and
// checkpoint-label model.
package store

import (
	"context"
	"sync"

	"github.com/caseflow-io/caseengine/engine"
)

// MemStore is an in-memory Store, grounded on graph/store/memory.go.
// Thread-safe; data does not survive process exit.
type MemStore struct {
	mu    sync.RWMutex
	cases map[string]engine.CaseState
}

// NewMemStore constructs an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{cases: make(map[string]engine.CaseState)}
}

// Get returns a deep copy of the stored snapshot for caseID.
func (m *MemStore) Get(_ context.Context, caseID string) (engine.CaseState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cs, ok := m.cases[caseID]
	if !ok {
		return engine.CaseState{}, engine.ErrCaseNotFound
	}
	return cs.Clone(), nil
}

// Put atomically replaces the snapshot for state.CaseID.
func (m *MemStore) Put(_ context.Context, state engine.CaseState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cases[state.CaseID] = state.Clone()
	return nil
}

// Delete removes the snapshot for caseID, if present.
func (m *MemStore) Delete(_ context.Context, caseID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.cases, caseID)
	return nil
}
