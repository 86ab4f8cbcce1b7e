package effects

import (
	"github.com/varflow/varflow/internal/symbols"
	"github.com/varflow/varflow/pkg/ir"
)

// evaluator walks one function body deciding cleanliness. The walk is
// structural only; path sensitivity does not matter here because a write
// on any path already makes the function not clean.
//
// Pointer parameters carry a tri-state verdict: proven written, proven
// read-only, or escaped. Read-only must be affirmative, so any pointer
// whose provenance the model loses lands its possible parameters in the
// escaped set rather than defaulting to safe.
type evaluator struct {
	syms   *symbols.Table
	lookup func(name string) Summary

	params map[string]int // name -> parameter index
	byRef  map[string]int // pointer/reference parameters only
	refs   map[string]int // reference parameters only
	locals map[string]bool

	// aliasOf maps a local pointer to the parameter indices it may alias;
	// pure marks locals proven to point only at callee-owned storage.
	aliasOf map[string]map[int]bool
	pure    map[string]bool

	clean   bool
	writes  map[int]bool
	escaped map[int]bool
}

// evaluate computes the summary of one defined function against the given
// callee lookup.
func evaluate(fn *ir.Function, syms *symbols.Table, lookup func(string) Summary) Summary {
	ev := &evaluator{
		syms:    syms,
		lookup:  lookup,
		params:  make(map[string]int, len(fn.Params)),
		byRef:   make(map[string]int),
		refs:    make(map[string]int),
		locals:  make(map[string]bool),
		aliasOf: make(map[string]map[int]bool),
		pure:    make(map[string]bool),
		clean:   true,
		writes:  make(map[int]bool),
		escaped: make(map[int]bool),
	}
	for _, p := range fn.Params {
		ev.params[p.Name] = p.ParamIndex
		if p.Type.Category.IsPointerLike() {
			ev.byRef[p.Name] = p.ParamIndex
		}
		if p.Type.Category == ir.TypeReference {
			ev.refs[p.Name] = p.ParamIndex
		}
	}
	ev.stmt(fn.Body)

	params := make(map[int]ParamEffect, len(ev.writes)+len(ev.escaped))
	for idx := range ev.writes {
		params[idx] = ParamWritten
	}
	for idx := range ev.escaped {
		params[idx] = ParamEscaped
	}
	return Summary{IsClean: ev.clean, Params: params}
}

// markDirty records an externally observable effect.
func (ev *evaluator) markDirty() { ev.clean = false }

// writeThrough records a mutation reached through a parameter. Writing
// caller-owned storage is itself an observable effect.
func (ev *evaluator) writeThrough(idx int) {
	ev.writes[idx] = true
	ev.clean = false
}

// escapeParam abandons the proof for one parameter.
func (ev *evaluator) escapeParam(idx int) {
	ev.escaped[idx] = true
	ev.clean = false
}

// escapeParams abandons the proof for every pointer/reference parameter.
func (ev *evaluator) escapeParams() {
	for _, idx := range ev.byRef {
		ev.escaped[idx] = true
	}
	ev.clean = false
}

func (ev *evaluator) stmt(s ir.Stmt) {
	switch x := s.(type) {
	case nil:
	case *ir.Block:
		if x == nil {
			return
		}
		for _, st := range x.Stmts {
			ev.stmt(st)
		}
	case *ir.DeclStmt:
		ev.locals[x.Decl.Name] = true
		if x.Decl.Storage == ir.StorageStatic {
			// A function-local static survives the call; writes to it
			// are observable across invocations.
			delete(ev.locals, x.Decl.Name)
		}
		if x.Init != nil {
			if x.Decl.Type.Category.IsPointerLike() {
				ev.track(x.Decl.Name, x.Init)
			}
			ev.expr(x.Init, false)
		}
	case *ir.ExprStmt:
		ev.expr(x.X, false)
	case *ir.If:
		ev.expr(x.Cond, false)
		ev.stmt(x.Then)
		if x.Else != nil {
			ev.stmt(x.Else)
		}
	case *ir.Switch:
		if x.Tag != nil {
			ev.expr(x.Tag, false)
		}
		for _, arm := range x.Cases {
			ev.stmt(arm)
		}
	case *ir.Loop:
		if x.Init != nil {
			ev.stmt(x.Init)
		}
		if x.Cond != nil {
			ev.expr(x.Cond, false)
		}
		if x.Post != nil {
			ev.expr(x.Post, false)
		}
		ev.stmt(x.Body)
	case *ir.Return:
		if x.Result != nil {
			ev.expr(x.Result, false)
		}
	case *ir.Exit:
		if x.X != nil {
			ev.expr(x.X, false)
		}
	case *ir.Label:
	default:
		// Unmodeled statement: fail-safe, assume observable effects that
		// may reach any parameter.
		ev.markDirty()
		ev.escapeParams()
	}
}

// expr walks an expression. asWrite is true when the expression is the
// target of an assignment or increment.
func (ev *evaluator) expr(e ir.Expr, asWrite bool) {
	switch x := e.(type) {
	case nil:
	case *ir.Ident:
		if !asWrite {
			return
		}
		if idx, isRef := ev.refs[x.Name]; isRef {
			// A reference parameter is caller-owned storage.
			ev.writeThrough(idx)
			return
		}
		if ev.locals[x.Name] {
			return
		}
		if _, isParam := ev.params[x.Name]; isParam {
			// Overwriting a by-value parameter is local to the callee.
			return
		}
		// File-scope or unresolved name: observable write.
		ev.markDirty()
	case *ir.Literal, *ir.SizeOf:
	case *ir.Unary:
		switch x.Op {
		case ir.OpDeref:
			if asWrite {
				ev.derefWrite(x.X)
				return
			}
			ev.expr(x.X, false)
		case ir.OpAddrOf:
			ev.expr(x.X, false)
		case ir.OpPreInc, ir.OpPostInc:
			ev.expr(x.X, true)
			ev.expr(x.X, false)
		default:
			ev.expr(x.X, false)
		}
	case *ir.Binary:
		ev.expr(x.X, false)
		ev.expr(x.Y, false)
	case *ir.Assign:
		if lhs, ok := x.LHS.(*ir.Ident); ok && !x.Compound && ev.locals[lhs.Name] {
			// Rebinding a local pointer changes its provenance.
			ev.track(lhs.Name, x.RHS)
		}
		ev.expr(x.LHS, true)
		if x.Compound {
			ev.expr(x.LHS, false)
		}
		ev.expr(x.RHS, false)
	case *ir.Call:
		ev.call(x)
	case *ir.Member:
		if asWrite {
			ev.memberWrite(x)
			return
		}
		ev.expr(x.X, false)
	case *ir.Index:
		if asWrite {
			ev.derefWrite(x.X)
		} else {
			ev.expr(x.X, false)
		}
		ev.expr(x.Idx, false)
	case *ir.Cast:
		ev.expr(x.X, asWrite)
	case *ir.Comma:
		ev.expr(x.X, false)
		ev.expr(x.Y, asWrite)
	case *ir.Cond:
		ev.expr(x.C, false)
		ev.expr(x.T, asWrite)
		ev.expr(x.F, asWrite)
	default:
		// Unmodeled expression: fail-safe.
		ev.markDirty()
		ev.escapeParams()
	}
}

// track records the provenance of a local pointer after a declaration
// initializer or a rebinding assignment.
func (ev *evaluator) track(name string, rhs ir.Expr) {
	delete(ev.aliasOf, name)
	delete(ev.pure, name)

	if set := ev.paramAliases(rhs); len(set) > 0 {
		ev.aliasOf[name] = set
		return
	}
	if ev.localOrigin(rhs) {
		ev.pure[name] = true
	}
}

// paramAliases returns the parameter indices an expression's value may
// point into, or nil when it provably points elsewhere.
func (ev *evaluator) paramAliases(e ir.Expr) map[int]bool {
	switch x := e.(type) {
	case *ir.Ident:
		if idx, ok := ev.byRef[x.Name]; ok {
			return map[int]bool{idx: true}
		}
		if set, ok := ev.aliasOf[x.Name]; ok {
			out := make(map[int]bool, len(set))
			for idx := range set {
				out[idx] = true
			}
			return out
		}
	case *ir.Cast:
		return ev.paramAliases(x.X)
	case *ir.Binary:
		// Pointer arithmetic stays within the pointed-to object.
		out := ev.paramAliases(x.X)
		for idx := range ev.paramAliases(x.Y) {
			if out == nil {
				out = make(map[int]bool)
			}
			out[idx] = true
		}
		return out
	case *ir.Cond:
		out := ev.paramAliases(x.T)
		for idx := range ev.paramAliases(x.F) {
			if out == nil {
				out = make(map[int]bool)
			}
			out[idx] = true
		}
		return out
	}
	return nil
}

// localOrigin reports whether an initializer provably yields a pointer to
// callee-owned storage.
func (ev *evaluator) localOrigin(e ir.Expr) bool {
	switch x := e.(type) {
	case *ir.Literal:
		return true
	case *ir.Call:
		return x.Alloc
	case *ir.Cast:
		return ev.localOrigin(x.X)
	case *ir.Ident:
		return ev.pure[x.Name]
	case *ir.Unary:
		if x.Op != ir.OpAddrOf {
			return false
		}
		if id, ok := baseIdent(x.X); ok {
			// A parameter's own slot is callee-local storage.
			_, isParam := ev.params[id]
			return ev.locals[id] || isParam
		}
		return false
	}
	return false
}

// baseIdent unwraps casts down to a bare identifier.
func baseIdent(e ir.Expr) (string, bool) {
	switch x := e.(type) {
	case *ir.Ident:
		return x.Name, true
	case *ir.Cast:
		return baseIdent(x.X)
	}
	return "", false
}

// derefWrite handles `*base = ...` and `base[i] = ...`.
func (ev *evaluator) derefWrite(base ir.Expr) {
	if id, ok := baseIdent(base); ok {
		if idx, isRef := ev.byRef[id]; isRef {
			ev.writeThrough(idx)
			return
		}
		if set, ok := ev.aliasOf[id]; ok {
			for idx := range set {
				ev.writeThrough(idx)
			}
			return
		}
		if ev.pure[id] {
			// Points into callee-owned storage, but that storage may be
			// handed out later; the write stays observable.
			ev.markDirty()
			return
		}
		if ev.locals[id] {
			// Untracked provenance: the pointer may derive from a
			// parameter.
			ev.escapeParams()
			return
		}
	}
	ev.markDirty()
	ev.expr(base, false)
}

// memberWrite handles `x.f = ...` and `p->f = ...`.
func (ev *evaluator) memberWrite(m *ir.Member) {
	if id, ok := baseIdent(m.X); ok {
		if idx, isRef := ev.byRef[id]; isRef {
			ev.writeThrough(idx)
			return
		}
		if !m.Arrow && ev.locals[id] {
			// Writing a member of a local record object.
			return
		}
		if m.Arrow {
			if set, ok := ev.aliasOf[id]; ok {
				for idx := range set {
					ev.writeThrough(idx)
				}
				return
			}
			if ev.pure[id] {
				ev.markDirty()
				return
			}
			if ev.locals[id] {
				ev.escapeParams()
				return
			}
		}
		ev.markDirty()
		return
	}
	ev.markDirty()
	ev.expr(m.X, false)
}

// call applies a callee's summary at a call site.
func (ev *evaluator) call(x *ir.Call) {
	for _, a := range x.Args {
		ev.expr(a, false)
	}
	if x.Callee != nil {
		// Indirect call: target unknown; forwarded pointers are lost.
		ev.markDirty()
		for _, a := range x.Args {
			for idx := range ev.argParamSet(a) {
				ev.escapeParam(idx)
			}
		}
		return
	}
	if x.Dealloc {
		// Releasing caller-visible storage is observable.
		ev.markDirty()
		return
	}
	if x.Alloc {
		return
	}

	sum := ev.lookup(x.Name)
	if !sum.IsClean {
		ev.markDirty()
	}
	// Propagate per-parameter effects when one of our pointer/reference
	// parameters is forwarded into the callee.
	for i, a := range x.Args {
		set := ev.argParamSet(a)
		if len(set) == 0 {
			continue
		}
		switch {
		case sum.ParamUnknown(i):
			for idx := range set {
				ev.escapeParam(idx)
			}
		case sum.WritesParam(i):
			for idx := range set {
				ev.writeThrough(idx)
			}
		}
	}
}

// argParamSet returns the indices of our parameters whose storage a call
// argument hands to the callee.
func (ev *evaluator) argParamSet(a ir.Expr) map[int]bool {
	if u, ok := a.(*ir.Unary); ok && u.Op == ir.OpAddrOf {
		if id, ok := baseIdent(u.X); ok {
			if idx, isRef := ev.byRef[id]; isRef {
				return map[int]bool{idx: true}
			}
		}
		return nil
	}
	return ev.paramAliases(a)
}
