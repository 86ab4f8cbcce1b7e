package walker

import (
	"github.com/varflow/varflow/internal/aliasgraph"
	"github.com/varflow/varflow/internal/members"
	"github.com/varflow/varflow/internal/usage"
	"github.com/varflow/varflow/pkg/ir"
)

type accessCtx uint8

const (
	ctxRead accessCtx = iota
	ctxWrite
)

// readVar applies a read event. Reading a variable that no reaching path
// has assigned is a read-before-write candidate; the second loop pass
// withdraws candidates that a loop-carried write satisfies.
func (w *Walker) readVar(id usage.VarID, at ir.Position) {
	v := w.vars.Get(id)
	if v == nil || v.Frozen() {
		return
	}
	if v.Reference {
		w.forwardToTargets(id, ctxRead, at)
		return
	}

	key := unassignedKey{id: id, at: at}
	switch w.states[id] {
	case usage.StateDeclared:
		w.unassigned[key] = struct{}{}
	case usage.StateAssigned, usage.StateAssignedThenRead:
		// A loop-carried write satisfied this read; withdraw the
		// first-pass candidate.
		if w.revisit {
			delete(w.unassigned, key)
		}
	}

	v.EverRead = true
	switch w.states[id] {
	case usage.StateDeclared:
		w.states[id] = usage.StateRead
	case usage.StateAssigned:
		w.states[id] = usage.StateAssignedThenRead
	}
}

// writeVar applies a write event.
func (w *Walker) writeVar(id usage.VarID, at ir.Position) {
	v := w.vars.Get(id)
	if v == nil || v.Frozen() {
		return
	}
	if v.Reference {
		w.forwardToTargets(id, ctxWrite, at)
		return
	}

	v.EverWritten = true
	if v.FirstWrite == (ir.Position{}) {
		v.FirstWrite = at
	}
	v.LastWrite = at
	switch w.states[id] {
	case usage.StateDeclared:
		w.states[id] = usage.StateAssigned
	case usage.StateRead:
		w.states[id] = usage.StateAssignedThenRead
	}
}

// freezeVar handles an escape: the variable is assumed both read and
// written for the remainder of the function body.
func (w *Walker) freezeVar(id usage.VarID) {
	v := w.vars.Get(id)
	if v == nil {
		return
	}
	v.AddressTaken = true
	w.states[id] = usage.StateUnknown
}

// forwardToTargets routes an event through the alias graph. A resolution
// cycle can only arise from unmodeled constructs; give up and freeze.
func (w *Walker) forwardToTargets(id usage.VarID, ctx accessCtx, at ir.Position) {
	targets, ok := w.aliases.Resolve(id)
	if !ok {
		w.freezeVar(id)
		return
	}
	for _, t := range targets {
		w.applyTarget(t, ctx, at)
	}
}

func (w *Walker) applyTarget(t aliasgraph.Target, ctx accessCtx, at ir.Position) {
	switch t.Kind {
	case aliasgraph.TargetVar:
		if ctx == ctxWrite {
			w.writeVar(t.Var, at)
		} else {
			w.readVar(t.Var, at)
		}
	case aliasgraph.TargetMember:
		if ctx == ctxWrite {
			w.writeVar(t.Var, at)
		} else {
			w.readVar(t.Var, at)
		}
		if v := w.vars.Get(t.Var); v != nil && v.Decl.Type.Record != "" {
			kind := members.AccessRead
			if ctx == ctxWrite {
				kind = members.AccessWrite
			}
			w.tracker.RecordAccess(v.Decl.Type.Record, t.Member, kind)
		}
	}
}

// expr walks one expression, applying events for the given access context.
func (w *Walker) expr(e ir.Expr, ctx accessCtx) {
	switch x := e.(type) {
	case nil:
	case *ir.Ident:
		id := w.lookup(x.Name)
		if id == usage.NoVar {
			return
		}
		if ctx == ctxWrite {
			w.writeVar(id, x.At)
		} else {
			w.readVar(id, x.At)
		}
	case *ir.Literal, *ir.SizeOf:
		// sizeof/offsetof are layout-only; no access.
	case *ir.Unary:
		switch x.Op {
		case ir.OpDeref:
			w.derefAccess(x.X, ctx, x.At)
		case ir.OpAddrOf:
			// An address-of that survives to this point was not consumed
			// by a modeled alias binding or call; the pointer escapes.
			w.escape(x.X)
		case ir.OpPreInc, ir.OpPostInc:
			w.expr(x.X, ctxRead)
			w.expr(x.X, ctxWrite)
		default:
			w.expr(x.X, ctxRead)
		}
	case *ir.Binary:
		w.expr(x.X, ctxRead)
		w.expr(x.Y, ctxRead)
	case *ir.Assign:
		w.assign(x)
	case *ir.Call:
		w.call(x)
	case *ir.Member:
		w.memberAccess(x, ctx)
	case *ir.Index:
		w.derefAccess(x.X, ctx, x.At)
		w.expr(x.Idx, ctxRead)
	case *ir.Cast:
		if inner, ok := x.X.(*ir.Unary); ok && inner.Op == ir.OpAddrOf {
			// Casting an object's address can reach any member by
			// pointer arithmetic.
			w.escapeWholeObject(inner.X)
			return
		}
		w.expr(x.X, ctx)
	case *ir.Comma:
		w.expr(x.X, ctxRead)
		w.expr(x.Y, ctx)
	case *ir.Cond:
		w.expr(x.C, ctxRead)
		w.expr(x.T, ctx)
		w.expr(x.F, ctx)
	case *ir.UnknownExpr:
		for _, name := range x.Idents {
			if id := w.lookup(name); id != usage.NoVar {
				w.vars.Get(id).Suppressed = true
				w.states[id] = usage.StateUnknown
			}
		}
	default:
		// Fail-safe arm for future node kinds.
	}
}

// assign applies `lhs = rhs` / `lhs op= rhs`.
func (w *Walker) assign(x *ir.Assign) {
	if x.Compound {
		w.expr(x.LHS, ctxRead)
	}

	// Pointer rebinding: `p = &v`, `p = arr`, `p = q`. The right-hand
	// side is consumed by the binding, not walked as a general escape.
	if lhs, ok := x.LHS.(*ir.Ident); ok && !x.Compound {
		if id := w.lookup(lhs.Name); id != usage.NoVar {
			v := w.vars.Get(id)
			if v != nil && !v.Reference && v.Decl.Type.Category.IsPointerLike() {
				if w.bindAlias(id, x.RHS) {
					w.writeVar(id, x.At)
					return
				}
			}
			if v != nil && v.Decl.Type.Category.IsPointerLike() {
				if call, ok := x.RHS.(*ir.Call); ok && call.Alloc {
					v.Allocation = true
					w.aliases.Unbind(id)
				}
			}
		}
	}

	w.expr(x.RHS, ctxRead)
	w.expr(x.LHS, ctxWrite)
}

// bindAlias recognizes aliasable right-hand sides and records the edge.
// Returns true when the RHS was fully consumed by the binding.
func (w *Walker) bindAlias(alias usage.VarID, rhs ir.Expr) bool {
	switch src := rhs.(type) {
	case *ir.Unary:
		if src.Op != ir.OpAddrOf {
			return false
		}
		switch tgt := src.X.(type) {
		case *ir.Ident:
			if id := w.lookup(tgt.Name); id != usage.NoVar {
				w.aliases.Bind(alias, aliasgraph.Target{Kind: aliasgraph.TargetVar, Var: id})
				return true
			}
		case *ir.Member:
			if base, ok := tgt.X.(*ir.Ident); ok {
				if id := w.lookup(base.Name); id != usage.NoVar {
					w.aliases.Bind(alias, aliasgraph.Target{
						Kind:   aliasgraph.TargetMember,
						Var:    id,
						Member: tgt.Field,
					})
					return true
				}
			}
		}
		return false
	case *ir.Ident:
		id := w.lookup(src.Name)
		if id == usage.NoVar {
			return false
		}
		v := w.vars.Get(id)
		if v == nil {
			return false
		}
		if v.Decl.Type.Category == ir.TypeArray {
			// Array-to-pointer decay.
			w.readVar(id, src.At)
			w.aliases.Bind(alias, aliasgraph.Target{Kind: aliasgraph.TargetVar, Var: id})
			return true
		}
		if w.aliases.Bound(id) {
			// Copying an existing alias copies its targets.
			targets, ok := w.aliases.Resolve(id)
			if !ok {
				w.freezeVar(id)
				return false
			}
			w.readVar(id, src.At)
			w.aliases.Unbind(alias)
			for _, t := range targets {
				w.aliases.AddBind(alias, t)
			}
			return true
		}
		return false
	default:
		return false
	}
}

// derefAccess handles *base, base[i], and arrays accessed by subscript.
func (w *Walker) derefAccess(base ir.Expr, ctx accessCtx, at ir.Position) {
	id, ok := identID(w, base)
	if !ok {
		w.expr(base, ctxRead)
		return
	}
	v := w.vars.Get(id)
	if v == nil {
		return
	}

	if v.Decl.Type.Category == ir.TypeArray {
		// The array name is the storage itself.
		if ctx == ctxWrite {
			w.writeVar(id, at)
		} else {
			w.readVar(id, at)
		}
		return
	}

	// Using the pointer's value is a read of the pointer.
	w.readVar(id, at)
	v.DerefRead = true

	targets, okRes := w.aliases.Resolve(id)
	if !okRes {
		w.freezeVar(id)
		return
	}
	for _, t := range targets {
		w.applyTarget(t, ctx, at)
	}
}

// memberAccess handles s.f and p->f.
func (w *Walker) memberAccess(m *ir.Member, ctx accessCtx) {
	kind := members.AccessRead
	if ctx == ctxWrite {
		kind = members.AccessWrite
	}

	id, ok := identID(w, m.X)
	if !ok {
		// Nested or computed base: walk it as a read; the record type of
		// the intermediate expression is not resolved (fail-safe).
		w.expr(m.X, ctxRead)
		return
	}
	v := w.vars.Get(id)
	if v == nil {
		return
	}

	record := v.Decl.Type.Record
	if record != "" {
		w.tracker.RecordAccess(record, m.Field, kind)
	}

	if m.Arrow || v.Decl.Type.Category == ir.TypeRecordPointer || v.Decl.Type.Category == ir.TypePointer {
		w.readVar(id, m.At)
		v.DerefRead = true
		targets, okRes := w.aliases.Resolve(id)
		if !okRes {
			w.freezeVar(id)
			return
		}
		for _, t := range targets {
			if ctx == ctxWrite {
				w.writeVar(t.Var, m.At)
			} else {
				w.readVar(t.Var, m.At)
			}
		}
		return
	}

	if ctx == ctxWrite {
		w.writeVar(id, m.At)
	} else {
		w.readVar(id, m.At)
	}
}

// escape freezes a variable whose address reached code the analysis
// cannot model.
func (w *Walker) escape(e ir.Expr) {
	switch x := e.(type) {
	case *ir.Ident:
		id := w.lookup(x.Name)
		if id == usage.NoVar {
			return
		}
		w.escapeRecord(id)
		w.freezeVar(id)
	case *ir.Member:
		if base, ok := x.X.(*ir.Ident); ok {
			if id := w.lookup(base.Name); id != usage.NoVar {
				if v := w.vars.Get(id); v != nil && v.Decl.Type.Record != "" {
					w.tracker.RecordAccess(v.Decl.Type.Record, x.Field, members.AccessRead)
				}
				w.freezeVar(id)
				return
			}
		}
		// Nested chain: the escaping address still reaches the base object.
		w.escape(x.X)
	case *ir.Index:
		// &buf[i] escapes the whole array, not just one element.
		w.expr(x.Idx, ctxRead)
		w.escape(x.X)
	case *ir.Cast:
		w.escape(x.X)
	case *ir.Unary:
		if x.Op == ir.OpDeref {
			w.escape(x.X)
			return
		}
		w.expr(e, ctxRead)
	default:
		w.expr(e, ctxRead)
	}
}

// escapeWholeObject marks every member of a record reachable.
func (w *Walker) escapeWholeObject(e ir.Expr) {
	ident, ok := e.(*ir.Ident)
	if !ok {
		w.expr(e, ctxRead)
		return
	}
	id := w.lookup(ident.Name)
	if id == usage.NoVar {
		return
	}
	w.escapeRecord(id)
	w.freezeVar(id)
}

// escapeRecord conservatively marks all members of an escaping record read.
func (w *Walker) escapeRecord(id usage.VarID) {
	v := w.vars.Get(id)
	if v == nil || v.Decl.Type.Record == "" {
		return
	}
	rec, ok := w.syms.Record(v.Decl.Type.Record)
	if !ok {
		return
	}
	names := make([]string, len(rec.Members))
	for i, m := range rec.Members {
		names[i] = m.Name
	}
	w.tracker.MarkAllRead(rec.Name, names)
}

// identID unwraps a bare identifier (possibly parenthesized via Cast-free
// nesting) to a variable handle.
func identID(w *Walker, e ir.Expr) (usage.VarID, bool) {
	ident, ok := e.(*ir.Ident)
	if !ok {
		return usage.NoVar, false
	}
	id := w.lookup(ident.Name)
	if id == usage.NoVar {
		return usage.NoVar, false
	}
	return id, true
}
