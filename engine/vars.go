package engine

import "encoding/json"

// VarType is the closed taxonomy of process-variable value kinds (spec §6.3).
type VarType string

const (
	VarString     VarType = "STRING"
	VarLong       VarType = "LONG"
	VarDouble     VarType = "DOUBLE"
	VarBoolean    VarType = "BOOLEAN"
	VarObject     VarType = "OBJECT"
	VarListObject VarType = "LIST_OF_OBJECT"
)

// Var is one persisted process-variable record (spec §6.3: "list of
// {name, type, value} records").
type Var struct {
	Name  string
	Type  VarType
	Value interface{}
}

// ProcessVariables is the case-scoped typed key/value mapping mutable by
// task and route bodies, persisted as part of the CaseState snapshot (spec
// §3.1). The engine offers no automatic locking of this container (spec
// §5 "Shared resources"); task bodies that read-modify-write shared keys
// across concurrently dispatched sibling paths must synchronize externally.
type ProcessVariables struct {
	vars map[string]Var
}

// NewProcessVariables builds a ProcessVariables from an initial set of
// records, as supplied to Start (spec §6.1).
func NewProcessVariables(initial ...Var) ProcessVariables {
	pv := ProcessVariables{vars: make(map[string]Var, len(initial))}
	for _, v := range initial {
		pv.vars[v.Name] = v
	}
	return pv
}

// Get returns the named variable and whether it is present.
func (p *ProcessVariables) Get(name string) (Var, bool) {
	v, ok := p.vars[name]
	return v, ok
}

// Set inserts or replaces the named variable.
func (p *ProcessVariables) Set(v Var) {
	if p.vars == nil {
		p.vars = make(map[string]Var)
	}
	p.vars[v.Name] = v
}

// Delete removes the named variable, if present.
func (p *ProcessVariables) Delete(name string) {
	delete(p.vars, name)
}

// List returns all variable records. Order is unspecified (spec §3.1:
// "insertion order irrelevant").
func (p *ProcessVariables) List() []Var {
	out := make([]Var, 0, len(p.vars))
	for _, v := range p.vars {
		out = append(out, v)
	}
	return out
}

// Merge applies overrides on top of p: override keys replace existing
// values, all other keys are left untouched (spec §9 Open Question 4,
// resolved here as "merge, override keys replace").
func (p *ProcessVariables) Merge(overrides []Var) {
	if p.vars == nil {
		p.vars = make(map[string]Var, len(overrides))
	}
	for _, v := range overrides {
		p.vars[v.Name] = v
	}
}

// Clone returns a value copy whose backing map is independent of p's.
func (p ProcessVariables) Clone() ProcessVariables {
	out := make(map[string]Var, len(p.vars))
	for k, v := range p.vars {
		out[k] = v
	}
	return ProcessVariables{vars: out}
}

// MarshalJSON serializes the variable set as a flat array of records, the
// on-the-wire shape spec §6.3 describes, rather than leaking the internal
// map representation.
func (p ProcessVariables) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.List())
}

// UnmarshalJSON rebuilds the internal map from a flat array of records.
func (p *ProcessVariables) UnmarshalJSON(data []byte) error {
	var list []Var
	if err := json.Unmarshal(data, &list); err != nil {
		return err
	}
	p.vars = make(map[string]Var, len(list))
	for _, v := range list {
		p.vars[v.Name] = v
	}
	return nil
}
