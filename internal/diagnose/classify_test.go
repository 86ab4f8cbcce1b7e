package diagnose

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/varflow/varflow/internal/effects"
	"github.com/varflow/varflow/internal/members"
	"github.com/varflow/varflow/internal/symbols"
	"github.com/varflow/varflow/internal/walker"
	"github.com/varflow/varflow/pkg/config"
	"github.com/varflow/varflow/pkg/ir"
	"github.com/varflow/varflow/pkg/models"
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

func classify(fn *ir.Function, records map[string]*ir.RecordType) []models.Finding {
	if records == nil {
		records = map[string]*ir.RecordType{}
	}
	unit := &ir.TranslationUnit{Path: "t.c", Functions: []*ir.Function{fn}, Records: records}
	syms := symbols.Build(unit, config.DefaultConfig())
	cls := effects.NewClassifier(syms)
	tracker := members.NewTracker()
	res := walker.New(syms, cls, tracker).Walk(fn)
	return FromFunction(syms, res)
}

func kinds(fs []models.Finding) []models.FindingKind {
	out := make([]models.FindingKind, len(fs))
	for i, f := range fs {
		out[i] = f.Kind
	}
	return out
}

func TestUnusedVariable(t *testing.T) {
	fn := &ir.Function{
		Name: "f",
		Body: &ir.Block{Stmts: []ir.Stmt{
			&ir.DeclStmt{Decl: intDecl("x", 2), At: pos(2)},
		}},
	}
	fs := classify(fn, nil)
	require.Len(t, fs, 1)
	assert.Equal(t, models.UnusedVariable, fs[0].Kind)
	assert.Equal(t, models.SeverityStyle, fs[0].Severity)
	assert.Equal(t, "Unused variable: x", fs[0].Message)
	assert.Equal(t, pos(2), fs[0].Primary())
}

func TestUnreadVariableAnchoredAtLastWrite(t *testing.T) {
	fn := &ir.Function{
		Name: "f",
		Body: &ir.Block{Stmts: []ir.Stmt{
			&ir.DeclStmt{Decl: intDecl("x", 2), Init: &ir.Literal{At: pos(2)}, At: pos(2)},
			&ir.ExprStmt{X: &ir.Assign{LHS: &ir.Ident{Name: "x", At: pos(3)}, RHS: &ir.Literal{At: pos(3)}, At: pos(3)}, At: pos(3)},
		}},
	}
	fs := classify(fn, nil)
	require.Len(t, fs, 1)
	assert.Equal(t, models.UnreadVariable, fs[0].Kind)
	assert.Equal(t, "Variable 'x' is assigned a value that is never used.", fs[0].Message)
	assert.Equal(t, pos(3), fs[0].Primary(), "anchored at the last write, not the declaration")
}

func TestUnassignedVariable(t *testing.T) {
	fn := &ir.Function{
		Name: "f",
		Body: &ir.Block{Stmts: []ir.Stmt{
			&ir.DeclStmt{Decl: intDecl("x", 2), At: pos(2)},
			&ir.Return{Result: &ir.Ident{Name: "x", At: pos(3)}, At: pos(3)},
		}},
	}
	fs := classify(fn, nil)
	require.Len(t, fs, 1)
	assert.Equal(t, models.UnassignedVariable, fs[0].Kind)
	assert.Equal(t, "Variable 'x' is not assigned a value.", fs[0].Message)
	assert.Equal(t, pos(3), fs[0].Primary())
}

func TestStaticLocalSuppressed(t *testing.T) {
	// Static locals are zero-initialized and their value survives the call,
	// so neither unassigned nor unread applies.
	decl := intDecl("n", 2)
	decl.Storage = ir.StorageStatic
	fn := &ir.Function{
		Name: "f",
		Body: &ir.Block{Stmts: []ir.Stmt{
			&ir.DeclStmt{Decl: decl, At: pos(2)},
			&ir.ExprStmt{X: &ir.Binary{Op: "+", X: &ir.Ident{Name: "n", At: pos(3)}, Y: &ir.Literal{At: pos(3)}, At: pos(3)}, At: pos(3)},
			&ir.ExprStmt{X: &ir.Assign{LHS: &ir.Ident{Name: "n", At: pos(4)}, RHS: &ir.Literal{At: pos(4)}, At: pos(4)}, At: pos(4)},
		}},
	}
	fs := classify(fn, nil)
	assert.Empty(t, fs)
}

func TestParamsNeverFlagged(t *testing.T) {
	fn := &ir.Function{
		Name: "f",
		Params: []*ir.VarDecl{{
			Name: "unused", IsParam: true,
			Type: ir.TypeInfo{Name: "int", Category: ir.TypeScalar},
		}},
		Body: &ir.Block{},
	}
	fs := classify(fn, nil)
	assert.Empty(t, fs)
}

func TestUnusedAllocatedMemory(t *testing.T) {
	fn := &ir.Function{
		Name: "f",
		Body: &ir.Block{Stmts: []ir.Stmt{
			&ir.DeclStmt{
				Decl: &ir.VarDecl{Name: "p", Type: ir.TypeInfo{Name: "char *", Category: ir.TypePointer}, At: pos(2)},
				Init: &ir.Call{Name: "malloc", Alloc: true, Args: []ir.Expr{&ir.Literal{At: pos(2)}}, At: pos(2)},
				At:   pos(2),
			},
			&ir.ExprStmt{X: &ir.Call{Name: "free", Dealloc: true, Args: []ir.Expr{&ir.Ident{Name: "p", At: pos(3)}}, At: pos(3)}, At: pos(3)},
		}},
	}
	fs := classify(fn, nil)
	require.Len(t, fs, 1)
	assert.Equal(t, models.UnusedAllocatedMemory, fs[0].Kind)
	assert.Equal(t, "Variable 'p' is allocated memory that is never used.", fs[0].Message)
}

func TestAllocationDereferencedIsFine(t *testing.T) {
	fn := &ir.Function{
		Name: "f",
		Body: &ir.Block{Stmts: []ir.Stmt{
			&ir.DeclStmt{
				Decl: &ir.VarDecl{Name: "p", Type: ir.TypeInfo{Name: "char *", Category: ir.TypePointer}, At: pos(2)},
				Init: &ir.Call{Name: "malloc", Alloc: true, Args: []ir.Expr{&ir.Literal{At: pos(2)}}, At: pos(2)},
				At:   pos(2),
			},
			&ir.ExprStmt{X: &ir.Assign{
				LHS: &ir.Unary{Op: ir.OpDeref, X: &ir.Ident{Name: "p", At: pos(3)}, At: pos(3)},
				RHS: &ir.Literal{At: pos(3)}, At: pos(3),
			}, At: pos(3)},
		}},
	}
	fs := classify(fn, nil)
	assert.Empty(t, fs, "a dereferenced allocation is in use")
}

func TestCtorDtorExemption(t *testing.T) {
	records := map[string]*ir.RecordType{
		"Guard": {Name: "Guard", HasCtorDtor: true},
	}
	fn := &ir.Function{
		Name: "f",
		Body: &ir.Block{Stmts: []ir.Stmt{
			&ir.DeclStmt{Decl: &ir.VarDecl{
				Name: "g",
				Type: ir.TypeInfo{Name: "Guard", Category: ir.TypeRecord, Record: "Guard"},
				At:   pos(2),
			}, At: pos(2)},
		}},
	}
	fs := classify(fn, records)
	assert.Empty(t, fs, "construction alone can be the point of a RAII object")
}

func TestFromMembers(t *testing.T) {
	isUnion := func(name string) bool { return name == "U" }
	verdicts := []members.Verdict{
		{Record: "S", Member: "used", Used: true, At: pos(1)},
		{Record: "S", Member: "dead", Used: false, At: pos(2)},
		{Record: "U", Member: "pad", Used: false, At: pos(3)},
	}
	fs := FromMembers(isUnion, verdicts)
	require.Len(t, fs, 2)
	assert.Equal(t, "struct member 'S::dead' is never used.", fs[0].Message)
	assert.Equal(t, "union member 'U::pad' is never used.", fs[1].Message)
	assert.Equal(t, []models.FindingKind{models.UnusedStructMember, models.UnusedStructMember}, kinds(fs))
}

func TestFromGapsSortedAndInformational(t *testing.T) {
	fs := FromGaps(map[string]ir.Position{
		"Zeta":  pos(9),
		"Alpha": pos(4),
	})
	require.Len(t, fs, 2)
	assert.Equal(t, "Alpha", fs[0].Subject)
	assert.Equal(t, "Zeta", fs[1].Subject)
	for _, f := range fs {
		assert.Equal(t, models.MissingConfiguration, f.Kind)
		assert.Equal(t, models.SeverityInformation, f.Severity)
		assert.Contains(t, f.Message, "analysis.safe_types")
	}
}

func TestFromGapsEmpty(t *testing.T) {
	assert.Empty(t, FromGaps(nil))
}
