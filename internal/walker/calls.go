package walker

import (
	"github.com/varflow/varflow/internal/aliasgraph"
	"github.com/varflow/varflow/internal/effects"
	"github.com/varflow/varflow/internal/members"
	"github.com/varflow/varflow/internal/usage"
	"github.com/varflow/varflow/pkg/ir"
)

// declStmt declares a local and applies its initializer.
func (w *Walker) declStmt(x *ir.DeclStmt) {
	id := w.declare(x.Decl)
	v := w.vars.Get(id)

	if v.Reference {
		w.bindReference(id, x.Init, x.Decl.At)
		return
	}
	if x.Init == nil {
		return
	}

	if call, ok := x.Init.(*ir.Call); ok && call.Alloc {
		v.Allocation = true
		for _, a := range call.Args {
			w.expr(a, ctxRead)
		}
		w.writeVar(id, x.Decl.At)
		return
	}

	if v.Decl.Type.Category.IsPointerLike() && w.bindAlias(id, x.Init) {
		w.writeVar(id, x.Decl.At)
		return
	}

	w.expr(x.Init, ctxRead)
	w.writeVar(id, x.Decl.At)
}

// bindReference binds a reference permanently to its initializer's storage.
// The reference has no identity of its own; its declaration site becomes an
// extra anchor on findings about the target.
func (w *Walker) bindReference(ref usage.VarID, init ir.Expr, at ir.Position) {
	switch tgt := init.(type) {
	case *ir.Ident:
		if id := w.lookup(tgt.Name); id != usage.NoVar {
			w.aliases.Bind(ref, aliasgraph.Target{Kind: aliasgraph.TargetVar, Var: id})
			w.refAnchors[id] = append(w.refAnchors[id], at)
			return
		}
	case *ir.Member:
		if base, ok := tgt.X.(*ir.Ident); ok {
			if id := w.lookup(base.Name); id != usage.NoVar {
				w.aliases.Bind(ref, aliasgraph.Target{
					Kind:   aliasgraph.TargetMember,
					Var:    id,
					Member: tgt.Field,
				})
				w.refAnchors[id] = append(w.refAnchors[id], at)
				return
			}
		}
	}
	// Bound to something the model cannot track (call result, global,
	// computed expression).
	w.vars.Get(ref).Suppressed = true
	w.expr(init, ctxRead)
}

// call applies one call site. The callee's effect summary decides what
// happens to address and pointer arguments.
func (w *Walker) call(x *ir.Call) {
	if x.Callee != nil {
		// A method call may mutate its receiver and retain references;
		// the receiver is out of the model from here on.
		if m, ok := x.Callee.(*ir.Member); ok {
			if base, ok := m.X.(*ir.Ident); ok {
				if id := w.lookup(base.Name); id != usage.NoVar {
					if v := w.vars.Get(id); v != nil && v.Decl.Type.Record != "" {
						w.tracker.RecordAccess(v.Decl.Type.Record, m.Field, members.AccessRead)
					}
					w.freezeVar(id)
					for i, a := range x.Args {
						w.callArg(i, a, nil, false, effects.Summary{})
					}
					return
				}
			}
		}
		w.expr(x.Callee, ctxRead)
		for i, a := range x.Args {
			w.callArg(i, a, nil, false, effects.Summary{})
		}
		return
	}

	if x.Dealloc {
		// Releasing storage is not a read of it; a freed-but-never-read
		// allocation stays reportable.
		for _, a := range x.Args {
			if _, ok := a.(*ir.Ident); ok {
				continue
			}
			w.expr(a, ctxRead)
		}
		return
	}

	fn, resolved := w.syms.Function(x.Name)
	known := resolved && fn.Defined() && !x.Alloc
	var sum effects.Summary
	if known {
		sum = w.cls.Classify(fn)
	}
	for i, a := range x.Args {
		w.callArg(i, a, fn, known, sum)
	}
}

// callArg applies the events for one argument. known is false when the
// callee's body is not visible; everything reachable from the argument is
// then assumed retained, read, and written.
func (w *Walker) callArg(i int, a ir.Expr, fn *ir.Function, known bool, sum effects.Summary) {
	switch arg := a.(type) {
	case *ir.Unary:
		if arg.Op != ir.OpAddrOf {
			w.expr(a, ctxRead)
			return
		}
		switch inner := arg.X.(type) {
		case *ir.Ident:
			id := w.lookup(inner.Name)
			if id == usage.NoVar {
				return
			}
			switch {
			case !known || sum.ParamUnknown(i):
				w.escapeRecord(id)
				w.freezeVar(id)
			case sum.WritesParam(i):
				w.writeVar(id, arg.At)
				w.readVar(id, arg.At)
			default:
				w.readVar(id, arg.At)
			}
		case *ir.Member:
			w.addrOfMemberArg(i, inner, arg.At, known, sum)
		default:
			// &buf[0] and deeper lvalue chains hand out the base object's
			// address; only a proven read-only parameter keeps it live.
			if known && !sum.ParamUnknown(i) && !sum.WritesParam(i) {
				w.expr(arg.X, ctxRead)
				return
			}
			w.escape(arg.X)
		}
	case *ir.Ident:
		id := w.lookup(arg.Name)
		if id == usage.NoVar {
			return
		}
		v := w.vars.Get(id)
		if v == nil {
			return
		}

		// C++ reference parameter: binding behaves like passing &arg.
		if known && fn != nil && i < len(fn.Params) &&
			fn.Params[i].Type.Category == ir.TypeReference {
			switch {
			case sum.ParamUnknown(i):
				w.escapeRecord(id)
				w.freezeVar(id)
				return
			case sum.WritesParam(i):
				w.writeVar(id, arg.At)
				w.readVar(id, arg.At)
				return
			}
		}

		w.readVar(id, arg.At)

		if v.Decl.Type.Category == ir.TypeArray {
			// Array decays to a pointer into the array's own storage.
			switch {
			case !known || sum.ParamUnknown(i):
				w.freezeVar(id)
			case sum.WritesParam(i):
				w.writeVar(id, arg.At)
			}
			return
		}
		if v.Decl.Type.Category == ir.TypePointer || v.Decl.Type.Category == ir.TypeRecordPointer {
			v.DerefRead = true
			targets, ok := w.aliases.Resolve(id)
			if !ok {
				w.freezeVar(id)
				return
			}
			for _, t := range targets {
				switch {
				case !known || sum.ParamUnknown(i):
					// The callee may retain the pointer; the pointee
					// escapes with it.
					w.freezeVar(t.Var)
				case sum.WritesParam(i):
					w.applyTarget(t, ctxWrite, arg.At)
					w.applyTarget(t, ctxRead, arg.At)
				default:
					w.applyTarget(t, ctxRead, arg.At)
				}
			}
		}
	default:
		w.expr(a, ctxRead)
	}
}

func (w *Walker) addrOfMemberArg(i int, m *ir.Member, at ir.Position, known bool, sum effects.Summary) {
	base, ok := m.X.(*ir.Ident)
	if !ok {
		// Nested chain: the address still reaches the base object.
		if known && !sum.ParamUnknown(i) && !sum.WritesParam(i) {
			w.expr(m.X, ctxRead)
			return
		}
		w.escape(m.X)
		return
	}
	id := w.lookup(base.Name)
	if id == usage.NoVar {
		return
	}
	v := w.vars.Get(id)
	record := ""
	if v != nil {
		record = v.Decl.Type.Record
	}

	switch {
	case !known || sum.ParamUnknown(i):
		if record != "" {
			w.tracker.RecordAccess(record, m.Field, members.AccessRead)
		}
		w.freezeVar(id)
	case sum.WritesParam(i):
		if record != "" {
			w.tracker.RecordAccess(record, m.Field, members.AccessWrite)
		}
		w.writeVar(id, at)
		w.readVar(id, at)
	default:
		if record != "" {
			w.tracker.RecordAccess(record, m.Field, members.AccessRead)
		}
		w.readVar(id, at)
	}
}
