// Package usage holds the per-function variable arena and the usage state
// machine. Variables are addressed by stable integer handles so alias
// edges never form reference cycles.
package usage

import (
	"github.com/varflow/varflow/pkg/ir"
)

// VarID is a stable handle into a function's variable arena.
type VarID uint32

// NoVar is the zero handle; it never addresses a variable.
const NoVar VarID = 0

// State is the path-sensitive usage state of a variable.
type State uint8

const (
	// StateUnknown: address escaped or construct unmodeled; assumed both
	// read and written for the rest of the function.
	StateUnknown State = iota
	StateDeclared
	StateAssigned
	StateRead
	StateAssignedThenRead
)

func (s State) String() string {
	switch s {
	case StateDeclared:
		return "declared"
	case StateAssigned:
		return "assigned"
	case StateRead:
		return "read"
	case StateAssignedThenRead:
		return "assigned-then-read"
	default:
		return "unknown"
	}
}

// Variable is one arena record. The monotone fact flags never revert once
// set, which keeps re-walks of loop bodies idempotent and makes the final
// classification independent of walk order.
type Variable struct {
	ID   VarID
	Decl *ir.VarDecl

	EverRead     bool
	EverWritten  bool
	AddressTaken bool
	Allocation   bool // initializer was an allocation primitive
	DerefRead    bool // read through dereference, subscript, or member
	Suppressed   bool // modeling gap: no diagnostics for this variable
	Reference    bool // reference-typed; bound permanently to its target

	FirstWrite ir.Position
	LastWrite  ir.Position
}

// Frozen reports whether events no longer change this variable's verdict.
func (v *Variable) Frozen() bool {
	return v.AddressTaken || v.Suppressed
}

// FinalState derives the five-state machine value from the monotone facts.
func (v *Variable) FinalState() State {
	switch {
	case v.Frozen():
		return StateUnknown
	case v.EverWritten && v.EverRead:
		return StateAssignedThenRead
	case v.EverWritten:
		return StateAssigned
	case v.EverRead:
		return StateRead
	default:
		return StateDeclared
	}
}

// Table is the arena of variables for one walked function.
type Table struct {
	vars []*Variable // index 0 unused so that NoVar stays invalid
}

// NewTable creates an empty arena.
func NewTable() *Table {
	return &Table{vars: make([]*Variable, 1)}
}

// Declare adds a variable and returns its handle.
func (t *Table) Declare(decl *ir.VarDecl) VarID {
	id := VarID(len(t.vars))
	v := &Variable{ID: id, Decl: decl}
	if decl.Type.Category == ir.TypeReference {
		v.Reference = true
	}
	t.vars = append(t.vars, v)
	return id
}

// Get returns the variable for a handle, or nil for NoVar.
func (t *Table) Get(id VarID) *Variable {
	if id == NoVar || int(id) >= len(t.vars) {
		return nil
	}
	return t.vars[id]
}

// All iterates the arena in declaration order.
func (t *Table) All() []*Variable {
	return t.vars[1:]
}

// Len returns the number of declared variables.
func (t *Table) Len() int { return len(t.vars) - 1 }

// States is the path-sensitive state map carried along a walk path.
type States map[VarID]State

// Clone copies the map for walking a branch arm from a snapshot.
func (s States) Clone() States {
	out := make(States, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// Merge combines the exit state of a branch arm into s. The merge is
// optimistic for read-before-write purposes: a write on any arm counts as
// a write, so a later read is not reported as unassigned unless no path
// could have assigned it. Pending unread decisions are not made here; they
// rest on the monotone arena flags.
func (s States) Merge(arm States) {
	for id, as := range arm {
		cur, ok := s[id]
		if !ok {
			s[id] = as
			continue
		}
		s[id] = mergeState(cur, as)
	}
}

func mergeState(a, b State) State {
	if a == b {
		return a
	}
	if a == StateUnknown || b == StateUnknown {
		return StateUnknown
	}
	// Order of progression: Declared < Assigned|Read < AssignedThenRead.
	rank := func(s State) int {
		switch s {
		case StateDeclared:
			return 0
		case StateAssigned, StateRead:
			return 1
		default:
			return 2
		}
	}
	if rank(a) >= rank(b) {
		if rank(a) == rank(b) {
			// Assigned vs Read on different arms: both a write and a
			// read happened somewhere; treat as fully used.
			return StateAssignedThenRead
		}
		return a
	}
	return b
}
