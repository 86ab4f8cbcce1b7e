package walker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/varflow/varflow/internal/effects"
	"github.com/varflow/varflow/internal/members"
	"github.com/varflow/varflow/internal/symbols"
	"github.com/varflow/varflow/internal/usage"
	"github.com/varflow/varflow/pkg/config"
	"github.com/varflow/varflow/pkg/ir"
)

func pos(line uint32) ir.Position {
	return ir.Position{File: "t.c", Line: line, Col: 1}
}

func intDecl(name string, line uint32) *ir.VarDecl {
	return &ir.VarDecl{
		Name: name,
		Type: ir.TypeInfo{Name: "int", Category: ir.TypeScalar},
		At:   pos(line),
	}
}

func ptrDecl(name string, line uint32) *ir.VarDecl {
	return &ir.VarDecl{
		Name: name,
		Type: ir.TypeInfo{Name: "int *", Category: ir.TypePointer},
		At:   pos(line),
	}
}

func ident(name string, line uint32) *ir.Ident {
	return &ir.Ident{Name: name, At: pos(line)}
}

func assign(lhs, rhs ir.Expr, line uint32) ir.Stmt {
	return &ir.ExprStmt{X: &ir.Assign{LHS: lhs, RHS: rhs, At: pos(line)}}
}

func walkUnit(unit *ir.TranslationUnit, name string) *Result {
	syms := symbols.Build(unit, config.DefaultConfig())
	cls := effects.NewClassifier(syms)
	tracker := members.NewTracker()
	fn, _ := unit.Function(name)
	return New(syms, cls, tracker).Walk(fn)
}

func walkFn(fn *ir.Function) *Result {
	return walkUnit(&ir.TranslationUnit{
		Path:      "t.c",
		Functions: []*ir.Function{fn},
		Records:   map[string]*ir.RecordType{},
	}, fn.Name)
}

func variable(t *testing.T, res *Result, name string) *usage.Variable {
	t.Helper()
	for _, v := range res.Vars.All() {
		if v.Decl.Name == name {
			return v
		}
	}
	t.Fatalf("variable %q not in arena", name)
	return nil
}

func TestUntouchedVariable(t *testing.T) {
	fn := &ir.Function{
		Name: "f",
		Body: &ir.Block{Stmts: []ir.Stmt{
			&ir.DeclStmt{Decl: intDecl("x", 2), At: pos(2)},
		}},
	}
	res := walkFn(fn)
	v := variable(t, res, "x")
	assert.False(t, v.EverRead)
	assert.False(t, v.EverWritten)
	assert.Equal(t, usage.StateDeclared, v.FinalState())
}

func TestWriteThenRead(t *testing.T) {
	fn := &ir.Function{
		Name: "f",
		Body: &ir.Block{Stmts: []ir.Stmt{
			&ir.DeclStmt{Decl: intDecl("x", 2), At: pos(2)},
			assign(ident("x", 3), &ir.Literal{At: pos(3)}, 3),
			&ir.Return{Result: ident("x", 4), At: pos(4)},
		}},
	}
	res := walkFn(fn)
	v := variable(t, res, "x")
	assert.Equal(t, usage.StateAssignedThenRead, v.FinalState())
	assert.Empty(t, res.Unassigned)
	assert.Equal(t, pos(3), v.LastWrite)
}

func TestReadBeforeWrite(t *testing.T) {
	fn := &ir.Function{
		Name: "f",
		Body: &ir.Block{Stmts: []ir.Stmt{
			&ir.DeclStmt{Decl: intDecl("x", 2), At: pos(2)},
			&ir.Return{Result: ident("x", 3), At: pos(3)},
		}},
	}
	res := walkFn(fn)
	require.Len(t, res.Unassigned, 1)
	assert.Equal(t, pos(3), res.Unassigned[0].At)
}

func TestInitializerCountsAsWrite(t *testing.T) {
	fn := &ir.Function{
		Name: "f",
		Body: &ir.Block{Stmts: []ir.Stmt{
			&ir.DeclStmt{Decl: intDecl("x", 2), Init: &ir.Literal{At: pos(2)}, At: pos(2)},
			&ir.Return{Result: ident("x", 3), At: pos(3)},
		}},
	}
	res := walkFn(fn)
	assert.Empty(t, res.Unassigned)
	assert.True(t, variable(t, res, "x").EverWritten)
}

func TestBranchAssignmentIsOptimistic(t *testing.T) {
	// if (c) x = 1;  return x;  -- one assigning path suffices to keep the
	// read off the unassigned list.
	fn := &ir.Function{
		Name:   "f",
		Params: []*ir.VarDecl{{Name: "c", IsParam: true, Type: ir.TypeInfo{Name: "int", Category: ir.TypeScalar}}},
		Body: &ir.Block{Stmts: []ir.Stmt{
			&ir.DeclStmt{Decl: intDecl("x", 2), At: pos(2)},
			&ir.If{
				Cond: ident("c", 3),
				Then: &ir.Block{Stmts: []ir.Stmt{assign(ident("x", 4), &ir.Literal{At: pos(4)}, 4)}},
				At:   pos(3),
			},
			&ir.Return{Result: ident("x", 5), At: pos(5)},
		}},
	}
	res := walkFn(fn)
	assert.Empty(t, res.Unassigned)
}

func TestExitingArmExcludedFromMerge(t *testing.T) {
	// if (c) return 0; else x = 1;  return x;  -- the returning arm does not
	// dilute the fall-through state.
	fn := &ir.Function{
		Name:   "f",
		Params: []*ir.VarDecl{{Name: "c", IsParam: true, Type: ir.TypeInfo{Name: "int", Category: ir.TypeScalar}}},
		Body: &ir.Block{Stmts: []ir.Stmt{
			&ir.DeclStmt{Decl: intDecl("x", 2), At: pos(2)},
			&ir.If{
				Cond: ident("c", 3),
				Then: &ir.Block{Stmts: []ir.Stmt{&ir.Return{Result: &ir.Literal{At: pos(3)}, At: pos(3)}}},
				Else: &ir.Block{Stmts: []ir.Stmt{assign(ident("x", 4), &ir.Literal{At: pos(4)}, 4)}},
				At:   pos(3),
			},
			&ir.Return{Result: ident("x", 5), At: pos(5)},
		}},
	}
	res := walkFn(fn)
	assert.Empty(t, res.Unassigned)
}

func TestLoopCarriedWriteWithdrawsCandidate(t *testing.T) {
	// while (c) { use(x) ... x = 1; }  -- the first pass flags the read, the
	// second pass sees the loop-carried assignment and withdraws it.
	fn := &ir.Function{
		Name:   "f",
		Params: []*ir.VarDecl{{Name: "c", IsParam: true, Type: ir.TypeInfo{Name: "int", Category: ir.TypeScalar}}},
		Body: &ir.Block{Stmts: []ir.Stmt{
			&ir.DeclStmt{Decl: intDecl("x", 2), At: pos(2)},
			&ir.Loop{
				Kind: ir.LoopWhile,
				Cond: ident("c", 3),
				Body: &ir.Block{Stmts: []ir.Stmt{
					&ir.ExprStmt{X: &ir.Binary{Op: "+", X: ident("x", 4), Y: &ir.Literal{At: pos(4)}, At: pos(4)}, At: pos(4)},
					assign(ident("x", 5), &ir.Literal{At: pos(5)}, 5),
				}},
				At: pos(3),
			},
		}},
	}
	res := walkFn(fn)
	assert.Empty(t, res.Unassigned, "loop-carried write satisfies the next iteration's read")
}

func TestLoopReadWithNoWriteStaysFlagged(t *testing.T) {
	fn := &ir.Function{
		Name:   "f",
		Params: []*ir.VarDecl{{Name: "c", IsParam: true, Type: ir.TypeInfo{Name: "int", Category: ir.TypeScalar}}},
		Body: &ir.Block{Stmts: []ir.Stmt{
			&ir.DeclStmt{Decl: intDecl("x", 2), At: pos(2)},
			&ir.Loop{
				Kind: ir.LoopWhile,
				Cond: ident("c", 3),
				Body: &ir.Block{Stmts: []ir.Stmt{
					&ir.ExprStmt{X: &ir.Binary{Op: "+", X: ident("x", 4), Y: &ir.Literal{At: pos(4)}, At: pos(4)}, At: pos(4)},
				}},
				At: pos(3),
			},
		}},
	}
	res := walkFn(fn)
	require.Len(t, res.Unassigned, 1)
	assert.Equal(t, pos(4), res.Unassigned[0].At)
}

func TestAddressTakenFreezes(t *testing.T) {
	fn := &ir.Function{
		Name: "f",
		Body: &ir.Block{Stmts: []ir.Stmt{
			&ir.DeclStmt{Decl: intDecl("x", 2), At: pos(2)},
			&ir.ExprStmt{X: &ir.Unary{Op: ir.OpAddrOf, X: ident("x", 3), At: pos(3)}, At: pos(3)},
		}},
	}
	res := walkFn(fn)
	v := variable(t, res, "x")
	assert.True(t, v.AddressTaken)
	assert.Equal(t, usage.StateUnknown, v.FinalState())
}

func TestPointerAliasWritesTarget(t *testing.T) {
	// int a; int *p = &a; *p = 1;  -- the write lands on a, and the deref
	// reads p.
	fn := &ir.Function{
		Name: "f",
		Body: &ir.Block{Stmts: []ir.Stmt{
			&ir.DeclStmt{Decl: intDecl("a", 2), At: pos(2)},
			&ir.DeclStmt{
				Decl: ptrDecl("p", 3),
				Init: &ir.Unary{Op: ir.OpAddrOf, X: ident("a", 3), At: pos(3)},
				At:   pos(3),
			},
			assign(&ir.Unary{Op: ir.OpDeref, X: ident("p", 4), At: pos(4)}, &ir.Literal{At: pos(4)}, 4),
		}},
	}
	res := walkFn(fn)

	a := variable(t, res, "a")
	assert.True(t, a.EverWritten, "write through the alias reaches the target")
	assert.False(t, a.AddressTaken, "a modeled alias binding is not an escape")

	p := variable(t, res, "p")
	assert.True(t, p.EverWritten)
	assert.True(t, p.EverRead, "dereference reads the pointer value")
	assert.True(t, p.DerefRead)
}

func TestUnknownCalleeFreezesAddressArg(t *testing.T) {
	fn := &ir.Function{
		Name: "f",
		Body: &ir.Block{Stmts: []ir.Stmt{
			&ir.DeclStmt{Decl: intDecl("a", 2), At: pos(2)},
			&ir.ExprStmt{X: &ir.Call{
				Name: "mystery",
				Args: []ir.Expr{&ir.Unary{Op: ir.OpAddrOf, X: ident("a", 3), At: pos(3)}},
				At:   pos(3),
			}, At: pos(3)},
		}},
	}
	res := walkFn(fn)
	assert.True(t, variable(t, res, "a").AddressTaken)
}

func TestKnownWritingCalleeAssignsArg(t *testing.T) {
	// void init(int *p) { *p = 0; }
	// void f() { int a; init(&a); use(a); }
	init := &ir.Function{
		Name: "init",
		Params: []*ir.VarDecl{{
			Name: "p", IsParam: true, ParamIndex: 0,
			Type: ir.TypeInfo{Name: "int *", Category: ir.TypePointer},
		}},
		Body: &ir.Block{Stmts: []ir.Stmt{
			assign(&ir.Unary{Op: ir.OpDeref, X: ident("p", 1), At: pos(1)}, &ir.Literal{At: pos(1)}, 1),
		}},
		At: pos(1),
	}
	f := &ir.Function{
		Name: "f",
		Body: &ir.Block{Stmts: []ir.Stmt{
			&ir.DeclStmt{Decl: intDecl("a", 4), At: pos(4)},
			&ir.ExprStmt{X: &ir.Call{
				Name: "init",
				Args: []ir.Expr{&ir.Unary{Op: ir.OpAddrOf, X: ident("a", 5), At: pos(5)}},
				At:   pos(5),
			}, At: pos(5)},
			&ir.Return{Result: ident("a", 6), At: pos(6)},
		}},
		At: pos(4),
	}
	res := walkUnit(&ir.TranslationUnit{
		Path:      "t.c",
		Functions: []*ir.Function{init, f},
		Records:   map[string]*ir.RecordType{},
	}, "f")

	a := variable(t, res, "a")
	assert.False(t, a.AddressTaken, "callee with a visible body does not force an escape")
	assert.True(t, a.EverWritten, "through-parameter write lands on the argument")
	assert.Empty(t, res.Unassigned)
}

func TestDeallocArgGetsNoEvents(t *testing.T) {
	// int *p = malloc(n); free(p);  -- freeing is not a use.
	fn := &ir.Function{
		Name: "f",
		Body: &ir.Block{Stmts: []ir.Stmt{
			&ir.DeclStmt{
				Decl: ptrDecl("p", 2),
				Init: &ir.Call{Name: "malloc", Alloc: true, Args: []ir.Expr{&ir.Literal{At: pos(2)}}, At: pos(2)},
				At:   pos(2),
			},
			&ir.ExprStmt{X: &ir.Call{Name: "free", Dealloc: true, Args: []ir.Expr{ident("p", 3)}, At: pos(3)}, At: pos(3)},
		}},
	}
	res := walkFn(fn)
	p := variable(t, res, "p")
	assert.True(t, p.Allocation)
	assert.False(t, p.EverRead)
	assert.False(t, p.DerefRead)
}

func TestUnknownStmtSuppresses(t *testing.T) {
	fn := &ir.Function{
		Name: "f",
		Body: &ir.Block{Stmts: []ir.Stmt{
			&ir.DeclStmt{Decl: intDecl("x", 2), At: pos(2)},
			&ir.UnknownStmt{Idents: []string{"x"}, At: pos(3)},
		}},
	}
	res := walkFn(fn)
	assert.True(t, variable(t, res, "x").Suppressed)
}

func TestUnknownTypeRecordsGap(t *testing.T) {
	fn := &ir.Function{
		Name: "f",
		Body: &ir.Block{Stmts: []ir.Stmt{
			&ir.DeclStmt{Decl: &ir.VarDecl{
				Name: "w",
				Type: ir.TypeInfo{Name: "Widget", Category: ir.TypeUnknown},
				At:   pos(2),
			}, At: pos(2)},
		}},
	}
	res := walkFn(fn)
	assert.True(t, variable(t, res, "w").Suppressed)
	require.Contains(t, res.GapTypes, "Widget")
	assert.Equal(t, pos(2), res.GapTypes["Widget"])
}

func TestSafeTypeIsNotAGap(t *testing.T) {
	fn := &ir.Function{
		Name: "f",
		Body: &ir.Block{Stmts: []ir.Stmt{
			&ir.DeclStmt{Decl: &ir.VarDecl{
				Name: "s",
				Type: ir.TypeInfo{Name: "std::string", Category: ir.TypeUnknown},
				At:   pos(2),
			}, At: pos(2)},
		}},
	}
	res := walkFn(fn)
	v := variable(t, res, "s")
	assert.False(t, v.Suppressed)
	assert.Empty(t, res.GapTypes)
	assert.Equal(t, usage.StateDeclared, v.FinalState())
}

func TestReferenceForwardsToTarget(t *testing.T) {
	// int a = 1; int &r = a; r = 2;  -- events on r land on a, and the
	// reference declaration becomes an extra anchor for a.
	fn := &ir.Function{
		Name: "f",
		Body: &ir.Block{Stmts: []ir.Stmt{
			&ir.DeclStmt{Decl: intDecl("a", 2), Init: &ir.Literal{At: pos(2)}, At: pos(2)},
			&ir.DeclStmt{Decl: &ir.VarDecl{
				Name: "r",
				Type: ir.TypeInfo{Name: "int &", Category: ir.TypeReference},
				At:   pos(3),
			}, Init: ident("a", 3), At: pos(3)},
			assign(ident("r", 4), &ir.Literal{At: pos(4)}, 4),
		}},
	}
	res := walkFn(fn)

	a := variable(t, res, "a")
	assert.True(t, a.EverWritten)
	assert.Equal(t, pos(4), a.LastWrite)

	r := variable(t, res, "r")
	assert.True(t, r.Reference)

	anchorsForA := res.RefAnchors[a.ID]
	require.Len(t, anchorsForA, 1)
	assert.Equal(t, pos(3), anchorsForA[0])
}

func TestMemberAccessFeedsTracker(t *testing.T) {
	rec := &ir.RecordType{
		Name: "S",
		Members: []ir.RecordMember{
			{Name: "x", Type: ir.TypeInfo{Name: "int", Category: ir.TypeScalar}},
			{Name: "y", Type: ir.TypeInfo{Name: "int", Category: ir.TypeScalar}},
		},
	}
	fn := &ir.Function{
		Name: "f",
		Body: &ir.Block{Stmts: []ir.Stmt{
			&ir.DeclStmt{Decl: &ir.VarDecl{
				Name: "s",
				Type: ir.TypeInfo{Name: "struct S", Category: ir.TypeRecord, Record: "S"},
				At:   pos(2),
			}, At: pos(2)},
			assign(&ir.Member{X: ident("s", 3), Field: "x", At: pos(3)}, &ir.Literal{At: pos(3)}, 3),
			&ir.Return{Result: &ir.Member{X: ident("s", 4), Field: "x", At: pos(4)}, At: pos(4)},
		}},
	}

	unit := &ir.TranslationUnit{
		Path:      "t.c",
		Functions: []*ir.Function{fn},
		Records:   map[string]*ir.RecordType{"S": rec},
	}
	syms := symbols.Build(unit, config.DefaultConfig())
	cls := effects.NewClassifier(syms)
	tracker := members.NewTracker()
	New(syms, cls, tracker).Walk(fn)

	verdicts := tracker.Finalize(unit.Records)
	used := map[string]bool{}
	for _, v := range verdicts {
		used[v.Member] = v.Used
	}
	assert.True(t, used["x"])
	assert.False(t, used["y"])
}
