// Package effects classifies functions as clean or side-effecting. A
// function's summary is computed at most once per translation unit;
// concurrent walkers block on an in-flight computation instead of
// duplicating it.
//
// Mutual recursion converges by computing whole strongly connected
// components of the call graph together: every member of a cycle is
// seeded optimistically clean and revised downward to a fixed point, so
// classification is deterministic regardless of which function is asked
// about first.
package effects

import (
	"sort"
	"sync"

	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"

	"github.com/varflow/varflow/internal/symbols"
	"github.com/varflow/varflow/pkg/ir"
)

// Classifier computes and memoizes call-site effect summaries.
type Classifier struct {
	syms *symbols.Table

	mu       sync.Mutex
	memo     map[uint64]Summary
	inflight map[int]chan struct{} // component index -> done signal

	compOf     map[uint64]int // function ID -> component index
	components [][]*ir.Function
}

// NewClassifier builds the unit's call graph, condenses it into strongly
// connected components, and returns a classifier ready for concurrent use.
func NewClassifier(syms *symbols.Table) *Classifier {
	c := &Classifier{
		syms:     syms,
		memo:     make(map[uint64]Summary),
		inflight: make(map[int]chan struct{}),
		compOf:   make(map[uint64]int),
	}
	c.buildComponents()
	return c
}

func (c *Classifier) buildComponents() {
	g := simple.NewDirectedGraph()

	// Stable node numbering: defined functions sorted by name.
	var defined []*ir.Function
	for _, f := range c.syms.Functions() {
		if f.Defined() {
			defined = append(defined, f)
		}
	}
	sort.Slice(defined, func(i, j int) bool { return defined[i].Name < defined[j].Name })

	nodeOf := make(map[uint64]int64, len(defined))
	fnOf := make(map[int64]*ir.Function, len(defined))
	for i, f := range defined {
		id := int64(i + 1)
		nodeOf[f.ID()] = id
		fnOf[id] = f
		g.AddNode(simple.Node(id))
	}

	for _, f := range defined {
		from := nodeOf[f.ID()]
		for _, callee := range calleeNames(f.Body) {
			cf, ok := c.syms.Function(callee)
			if !ok || !cf.Defined() {
				continue
			}
			to := nodeOf[cf.ID()]
			if from == to {
				continue // self edge: Tarjan keeps the node in its own SCC
			}
			if g.Edge(from, to) == nil {
				g.SetEdge(g.NewEdge(simple.Node(from), simple.Node(to)))
			}
		}
	}

	// TarjanSCC emits components in reverse topological order: callees
	// before callers, which is the order fixed points must resolve in.
	for idx, scc := range topo.TarjanSCC(g) {
		fns := make([]*ir.Function, 0, len(scc))
		for _, n := range scc {
			fns = append(fns, fnOf[n.ID()])
		}
		sort.Slice(fns, func(i, j int) bool { return fns[i].Name < fns[j].Name })
		c.components = append(c.components, fns)
		for _, f := range fns {
			c.compOf[f.ID()] = idx
		}
	}
}

// Classify returns the effect summary for a function. A function with no
// visible body yields the fail-safe not-clean summary.
func (c *Classifier) Classify(fn *ir.Function) Summary {
	if fn == nil || !fn.Defined() {
		return unclean()
	}
	return c.classifyID(fn.ID())
}

// ClassifyName resolves a callee by name first.
func (c *Classifier) ClassifyName(name string) Summary {
	fn, ok := c.syms.Function(name)
	if !ok {
		return unclean()
	}
	return c.Classify(fn)
}

func (c *Classifier) classifyID(id uint64) Summary {
	for {
		c.mu.Lock()
		if s, ok := c.memo[id]; ok {
			c.mu.Unlock()
			return s
		}
		comp, ok := c.compOf[id]
		if !ok {
			c.mu.Unlock()
			return unclean()
		}
		if done, busy := c.inflight[comp]; busy {
			c.mu.Unlock()
			<-done
			continue
		}
		done := make(chan struct{})
		c.inflight[comp] = done
		c.mu.Unlock()

		c.computeComponent(comp)

		c.mu.Lock()
		delete(c.inflight, comp)
		close(done)
		c.mu.Unlock()
	}
}

// computeComponent resolves every function in one SCC. Callee components
// are resolved first; waiting follows condensation edges, which form a
// DAG, so no deadlock is possible.
func (c *Classifier) computeComponent(comp int) {
	fns := c.components[comp]

	// Resolve cross-component callees up front.
	for _, f := range fns {
		for _, callee := range calleeNames(f.Body) {
			cf, ok := c.syms.Function(callee)
			if !ok || !cf.Defined() {
				continue
			}
			if c.compOf[cf.ID()] != comp {
				c.classifyID(cf.ID())
			}
		}
	}

	// Fixed point within the component, seeded optimistically.
	tentative := make(map[uint64]Summary, len(fns))
	for _, f := range fns {
		tentative[f.ID()] = optimistic()
	}

	lookup := func(name string) Summary {
		fn, ok := c.syms.Function(name)
		if !ok || !fn.Defined() {
			return unclean()
		}
		id := fn.ID()
		if s, ok := tentative[id]; ok {
			return s
		}
		c.mu.Lock()
		s, ok := c.memo[id]
		c.mu.Unlock()
		if ok {
			return s
		}
		return unclean()
	}

	// Revisions are monotone downward, so the iteration count is bounded
	// by the cycle depth.
	for changed := true; changed; {
		changed = false
		for _, f := range fns {
			next := evaluate(f, c.syms, lookup)
			if !equal(tentative[f.ID()], next) {
				tentative[f.ID()] = next
				changed = true
			}
		}
	}

	c.mu.Lock()
	for id, s := range tentative {
		c.memo[id] = s
	}
	c.mu.Unlock()
}

// calleeNames collects the names of direct calls in a body.
func calleeNames(body *ir.Block) []string {
	seen := map[string]bool{}
	var names []string
	var visitExpr func(e ir.Expr)
	var visitStmt func(s ir.Stmt)

	visitExpr = func(e ir.Expr) {
		switch x := e.(type) {
		case *ir.Call:
			if x.Name != "" && !seen[x.Name] {
				seen[x.Name] = true
				names = append(names, x.Name)
			}
			if x.Callee != nil {
				visitExpr(x.Callee)
			}
			for _, a := range x.Args {
				visitExpr(a)
			}
		case *ir.Unary:
			visitExpr(x.X)
		case *ir.Binary:
			visitExpr(x.X)
			visitExpr(x.Y)
		case *ir.Assign:
			visitExpr(x.LHS)
			visitExpr(x.RHS)
		case *ir.Member:
			visitExpr(x.X)
		case *ir.Index:
			visitExpr(x.X)
			visitExpr(x.Idx)
		case *ir.Cast:
			visitExpr(x.X)
		case *ir.Comma:
			visitExpr(x.X)
			visitExpr(x.Y)
		case *ir.Cond:
			visitExpr(x.C)
			visitExpr(x.T)
			visitExpr(x.F)
		}
	}
	visitStmt = func(s ir.Stmt) {
		switch x := s.(type) {
		case *ir.Block:
			for _, st := range x.Stmts {
				visitStmt(st)
			}
		case *ir.DeclStmt:
			if x.Init != nil {
				visitExpr(x.Init)
			}
		case *ir.ExprStmt:
			visitExpr(x.X)
		case *ir.If:
			visitExpr(x.Cond)
			visitStmt(x.Then)
			if x.Else != nil {
				visitStmt(x.Else)
			}
		case *ir.Switch:
			if x.Tag != nil {
				visitExpr(x.Tag)
			}
			for _, arm := range x.Cases {
				visitStmt(arm)
			}
		case *ir.Loop:
			if x.Init != nil {
				visitStmt(x.Init)
			}
			if x.Cond != nil {
				visitExpr(x.Cond)
			}
			if x.Post != nil {
				visitExpr(x.Post)
			}
			visitStmt(x.Body)
		case *ir.Return:
			if x.Result != nil {
				visitExpr(x.Result)
			}
		case *ir.Exit:
			if x.X != nil {
				visitExpr(x.X)
			}
		}
	}

	if body != nil {
		visitStmt(body)
	}
	return names
}
