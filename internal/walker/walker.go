// Package walker applies read/write events to variable and alias state
// while traversing a function body, respecting branch, loop, and
// non-local-exit semantics. It produces no diagnostics itself; the final
// classification is deferred to the diagnose package.
package walker

import (
	"github.com/varflow/varflow/internal/aliasgraph"
	"github.com/varflow/varflow/internal/effects"
	"github.com/varflow/varflow/internal/members"
	"github.com/varflow/varflow/internal/symbols"
	"github.com/varflow/varflow/internal/usage"
	"github.com/varflow/varflow/pkg/ir"
)

// Event is a read of a variable that had no assignment on any path
// reaching it.
type Event struct {
	Var usage.VarID
	At  ir.Position
}

// Result is the finalized state of one walked function.
type Result struct {
	Fn         *ir.Function
	Vars       *usage.Table
	Unassigned []Event
	// RefAnchors holds, per aliased target, the declaration positions of
	// references bound to it. Findings about the target carry these as
	// additional anchors.
	RefAnchors map[usage.VarID][]ir.Position
	// GapTypes maps unresolvable type names to the first declaration
	// that used them; reported as configuration gaps, not defects.
	GapTypes map[string]ir.Position
}

type unassignedKey struct {
	id usage.VarID
	at ir.Position
}

// Walker traverses one function body. Each function gets a fresh Walker;
// only the classifier and member tracker are shared across functions.
type Walker struct {
	syms    *symbols.Table
	cls     *effects.Classifier
	tracker *members.Tracker

	fn      *ir.Function
	vars    *usage.Table
	aliases *aliasgraph.Graph
	states  usage.States
	scopes  []map[string]usage.VarID

	unassigned map[unassignedKey]struct{}
	refAnchors map[usage.VarID][]ir.Position
	gapTypes   map[string]ir.Position

	// revisit marks the second, idempotent pass over a loop body, where
	// reads that now see an assigned state withdraw first-pass
	// read-before-write candidates (loop-carried writes).
	revisit bool

	// lastBreak records whether the most recent path termination was a
	// break. A break-ended switch arm still reaches the code after the
	// switch, so its state joins the merge.
	lastBreak bool
}

// New creates a walker bound to the unit's shared state.
func New(syms *symbols.Table, cls *effects.Classifier, tracker *members.Tracker) *Walker {
	return &Walker{
		syms:    syms,
		cls:     cls,
		tracker: tracker,
	}
}

// Walk analyzes one function body and returns its variable verdict state.
func (w *Walker) Walk(fn *ir.Function) *Result {
	w.fn = fn
	w.vars = usage.NewTable()
	w.aliases = aliasgraph.New()
	w.states = make(usage.States)
	w.scopes = []map[string]usage.VarID{make(map[string]usage.VarID)}
	w.unassigned = make(map[unassignedKey]struct{})
	w.refAnchors = make(map[usage.VarID][]ir.Position)
	w.gapTypes = make(map[string]ir.Position)
	w.revisit = false

	for _, p := range fn.Params {
		id := w.declare(p)
		// Parameters arrive assigned by the caller; the incoming value
		// is not a local write.
		w.states[id] = usage.StateAssigned
	}

	if fn.Body != nil {
		w.block(fn.Body)
	}

	res := &Result{
		Fn:         fn,
		Vars:       w.vars,
		RefAnchors: w.refAnchors,
		GapTypes:   w.gapTypes,
	}
	for key := range w.unassigned {
		res.Unassigned = append(res.Unassigned, Event{Var: key.id, At: key.at})
	}
	return res
}

// declare registers a variable in the current lexical scope.
func (w *Walker) declare(decl *ir.VarDecl) usage.VarID {
	id := w.vars.Declare(decl)
	w.scopes[len(w.scopes)-1][decl.Name] = id
	w.states[id] = usage.StateDeclared

	v := w.vars.Get(id)
	if !w.syms.TypeKnown(decl.Type) {
		// Modeling gap: suppress this variable rather than guess.
		v.Suppressed = true
		name := decl.Type.Name
		if decl.Type.Record != "" {
			name = decl.Type.Record
		}
		if _, seen := w.gapTypes[name]; !seen {
			w.gapTypes[name] = decl.At
		}
	}
	if decl.Storage == ir.StorageExtern {
		// Not function-owned storage.
		v.Suppressed = true
	}
	return id
}

// lookup resolves a name through the scope chain. NoVar means the name is
// file-scope or unknown to this function.
func (w *Walker) lookup(name string) usage.VarID {
	for i := len(w.scopes) - 1; i >= 0; i-- {
		if id, ok := w.scopes[i][name]; ok {
			return id
		}
	}
	return usage.NoVar
}

// block walks a statement list in its own scope. Returns true when every
// path through the block ends in a non-local exit.
func (w *Walker) block(b *ir.Block) bool {
	if b == nil {
		return false
	}
	w.scopes = append(w.scopes, make(map[string]usage.VarID))
	defer func() { w.scopes = w.scopes[:len(w.scopes)-1] }()

	for _, s := range b.Stmts {
		if w.stmt(s) {
			// State up to the exit is already merged into the arena
			// flags; nothing propagates past the exit on this path.
			return true
		}
	}
	return false
}

// stmt dispatches one statement. Returns true when the statement
// terminates the current path.
func (w *Walker) stmt(s ir.Stmt) bool {
	switch x := s.(type) {
	case *ir.Block:
		return w.block(x)
	case *ir.DeclStmt:
		w.declStmt(x)
		return false
	case *ir.ExprStmt:
		w.expr(x.X, ctxRead)
		return false
	case *ir.If:
		w.ifStmt(x)
		return false
	case *ir.Switch:
		w.switchStmt(x)
		return false
	case *ir.Loop:
		w.loopStmt(x)
		return false
	case *ir.Return:
		if x.Result != nil {
			w.expr(x.Result, ctxRead)
		}
		w.lastBreak = false
		return true
	case *ir.Exit:
		if x.X != nil {
			w.expr(x.X, ctxRead)
		}
		w.lastBreak = x.Kind == ir.ExitBreak
		return true
	case *ir.Label:
		return false
	case *ir.UnknownStmt:
		// Fail-safe arm: suppress every variable the unmodeled
		// construct mentions.
		for _, name := range x.Idents {
			if id := w.lookup(name); id != usage.NoVar {
				w.vars.Get(id).Suppressed = true
				w.states[id] = usage.StateUnknown
			}
		}
		return false
	default:
		return false
	}
}

// ifStmt walks each arm from the pre-branch snapshot and merges the
// reachable exits. A write on only some arms does not clear a pending
// unread determination; that decision rests with whatever follows.
func (w *Walker) ifStmt(x *ir.If) {
	w.expr(x.Cond, ctxRead)

	baseStates := w.states
	baseAliases := w.aliases

	w.states = baseStates.Clone()
	w.aliases = baseAliases.Clone()
	thenExited := w.block(x.Then)
	thenStates, thenAliases := w.states, w.aliases

	elseExited := false
	elseStates := baseStates
	elseAliases := baseAliases
	if x.Else != nil {
		w.states = baseStates.Clone()
		w.aliases = baseAliases.Clone()
		elseExited = w.stmt(x.Else)
		elseStates, elseAliases = w.states, w.aliases
	}

	w.states = baseStates
	w.aliases = baseAliases
	switch {
	case thenExited && elseExited:
		// No arm falls through; keep the pre-branch state.
	case thenExited:
		w.states = elseStates
		w.aliases = elseAliases
	case elseExited:
		w.states = thenStates
		w.aliases = thenAliases
	default:
		w.states = thenStates
		w.states.Merge(elseStates)
		w.aliases = thenAliases
		w.aliases.MergeFrom(elseAliases)
	}
}

// switchStmt walks each case arm independently from the pre-branch
// snapshot. Fallthrough between cases is not modeled; each arm is treated
// as exclusive, which under-reports rather than over-reports.
func (w *Walker) switchStmt(x *ir.Switch) {
	if x.Tag != nil {
		w.expr(x.Tag, ctxRead)
	}

	baseStates := w.states
	baseAliases := w.aliases

	var merged usage.States
	var mergedAliases *aliasgraph.Graph
	if !x.HasDefault {
		// Without a default arm the tag may match no case and the
		// pre-branch state falls through unchanged.
		merged = baseStates.Clone()
		mergedAliases = baseAliases.Clone()
	}

	for _, arm := range x.Cases {
		w.states = baseStates.Clone()
		w.aliases = baseAliases.Clone()
		w.lastBreak = false
		exited := w.block(arm)
		if !exited || w.lastBreak {
			// A break-terminated arm resumes after the switch.
			if merged == nil {
				merged = w.states
				mergedAliases = w.aliases
			} else {
				merged.Merge(w.states)
				mergedAliases.MergeFrom(w.aliases)
			}
		}
	}
	w.lastBreak = false

	if merged == nil {
		// Every arm left the function; keep the pre-branch state.
		merged = baseStates
		mergedAliases = baseAliases
	}
	w.states = merged
	w.aliases = mergedAliases
}

// loopStmt walks the body twice: once normally, then an idempotent second
// pass fed the exit state of the first, so a write in iteration N is seen
// by a read in iteration N+1 before the loop is finalized.
func (w *Walker) loopStmt(x *ir.Loop) {
	if x.Init != nil {
		w.stmt(x.Init)
	}

	pass := func() {
		if x.Kind == ir.LoopDoWhile {
			w.block(x.Body)
			if x.Cond != nil {
				w.expr(x.Cond, ctxRead)
			}
		} else {
			if x.Cond != nil {
				w.expr(x.Cond, ctxRead)
			}
			w.block(x.Body)
		}
		if x.Post != nil {
			w.expr(x.Post, ctxRead)
		}
	}

	pass()

	wasRevisit := w.revisit
	w.revisit = true
	pass()
	w.revisit = wasRevisit
	// A break inside the body bound to this loop, not to any enclosing
	// switch.
	w.lastBreak = false
}
