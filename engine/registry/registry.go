// Package registry provides CapabilityRegistry implementations.
package registry

import (
	"sync"

	"github.com/caseflow-io/caseengine/engine"
)

// MapRegistry is a concrete, in-memory CapabilityRegistry backed by two
// maps, grounded on the teacher's node registration table in
// graph/engine.go (Engine.Add stores node bodies by ID in a map looked up
// at dispatch time).
type MapRegistry struct {
	mu     sync.RWMutex
	tasks  map[string]engine.TaskBody
	routes map[string]engine.RouteBody
}

// NewMapRegistry constructs an empty MapRegistry.
func NewMapRegistry() *MapRegistry {
	return &MapRegistry{
		tasks:  make(map[string]engine.TaskBody),
		routes: make(map[string]engine.RouteBody),
	}
}

// AddTask registers a TaskBody under name, the identifier a TASK step's
// Capability field references.
func (r *MapRegistry) AddTask(name string, body engine.TaskBody) *MapRegistry {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tasks[name] = body
	return r
}

// AddRoute registers a RouteBody under name, the identifier an S_ROUTE or
// P_ROUTE step's Capability field references.
func (r *MapRegistry) AddRoute(name string, body engine.RouteBody) *MapRegistry {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.routes[name] = body
	return r
}

// GetTask implements engine.CapabilityRegistry.
func (r *MapRegistry) GetTask(name string) (engine.TaskBody, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.tasks[name]
	return b, ok
}

// GetRoute implements engine.CapabilityRegistry.
func (r *MapRegistry) GetRoute(name string) (engine.RouteBody, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.routes[name]
	return b, ok
}
