// Package aliasgraph tracks which local names currently denote the same
// storage. Edges carry arena handles rather than owning references, so
// resolution is a bounded handle-chase with a visited guard.
package aliasgraph

import (
	"github.com/varflow/varflow/internal/usage"
)

// TargetKind distinguishes what an alias edge points at.
type TargetKind uint8

const (
	// TargetVar aliases a whole local variable.
	TargetVar TargetKind = iota
	// TargetMember aliases one member of a record-typed local.
	TargetMember
)

// Target is the storage an alias denotes.
type Target struct {
	Kind   TargetKind
	Var    usage.VarID
	Member string // set for TargetMember
}

// Graph is the per-function alias graph. Not safe for concurrent use;
// each walked function owns one.
type Graph struct {
	edges map[usage.VarID][]Target
}

// New creates an empty graph.
func New() *Graph {
	return &Graph{edges: make(map[usage.VarID][]Target)}
}

// Bind replaces any existing edges from alias with a single new target.
// Reassignment to a different target drops the old edge; the new one
// covers all subsequent accesses.
func (g *Graph) Bind(alias usage.VarID, t Target) {
	g.edges[alias] = []Target{t}
}

// AddBind appends a target, keeping existing edges. Used when mutually
// exclusive control-flow paths merge two definitions of the same alias:
// subsequent accesses conservatively touch every recorded target.
func (g *Graph) AddBind(alias usage.VarID, t Target) {
	for _, e := range g.edges[alias] {
		if e == t {
			return
		}
	}
	g.edges[alias] = append(g.edges[alias], t)
}

// Unbind removes all edges from alias.
func (g *Graph) Unbind(alias usage.VarID) {
	delete(g.edges, alias)
}

// Bound reports whether alias currently has any edge.
func (g *Graph) Bound(alias usage.VarID) bool {
	return len(g.edges[alias]) > 0
}

// Resolve follows edges transitively to the ultimate storage targets.
// ok is false when a cycle was found; a cycle can only arise from
// unmodeled constructs and means "give up, assume read and written".
func (g *Graph) Resolve(alias usage.VarID) (targets []Target, ok bool) {
	visited := map[usage.VarID]bool{}
	return g.resolve(alias, visited)
}

func (g *Graph) resolve(alias usage.VarID, visited map[usage.VarID]bool) ([]Target, bool) {
	if visited[alias] {
		return nil, false
	}
	visited[alias] = true

	edges := g.edges[alias]
	if len(edges) == 0 {
		return nil, true
	}

	var out []Target
	for _, t := range edges {
		if t.Kind == TargetVar && g.Bound(t.Var) {
			sub, ok := g.resolve(t.Var, visited)
			if !ok {
				return nil, false
			}
			out = append(out, sub...)
			continue
		}
		out = append(out, t)
	}
	return out, true
}

// Clone copies the graph for walking a branch arm from a snapshot.
func (g *Graph) Clone() *Graph {
	out := New()
	for alias, targets := range g.edges {
		cp := make([]Target, len(targets))
		copy(cp, targets)
		out.edges[alias] = cp
	}
	return out
}

// MergeFrom unions an arm's edges into g. An alias bound to different
// targets on different arms keeps every target until reassigned.
func (g *Graph) MergeFrom(arm *Graph) {
	for alias, targets := range arm.edges {
		for _, t := range targets {
			g.AddBind(alias, t)
		}
	}
}
