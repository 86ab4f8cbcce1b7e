package effects

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/varflow/varflow/internal/symbols"
	"github.com/varflow/varflow/pkg/config"
	"github.com/varflow/varflow/pkg/ir"
)

func pos(line uint32) ir.Position {
	return ir.Position{File: "t.c", Line: line, Col: 1}
}

func scalarParam(name string, idx int) *ir.VarDecl {
	return &ir.VarDecl{
		Name: name, IsParam: true, ParamIndex: idx,
		Type: ir.TypeInfo{Name: "int", Category: ir.TypeScalar},
	}
}

func ptrParam(name string, idx int) *ir.VarDecl {
	return &ir.VarDecl{
		Name: name, IsParam: true, ParamIndex: idx,
		Type: ir.TypeInfo{Name: "int *", Category: ir.TypePointer},
	}
}

func fn(name string, params []*ir.VarDecl, stmts ...ir.Stmt) *ir.Function {
	return &ir.Function{
		Name:   name,
		Params: params,
		Body:   &ir.Block{Stmts: stmts},
		At:     pos(1),
	}
}

func callStmt(name string, args ...ir.Expr) ir.Stmt {
	return &ir.ExprStmt{X: &ir.Call{Name: name, Args: args}}
}

func buildClassifier(fns ...*ir.Function) (*Classifier, *symbols.Table) {
	unit := &ir.TranslationUnit{
		Path:      "t.c",
		Functions: fns,
		Records:   map[string]*ir.RecordType{},
	}
	syms := symbols.Build(unit, config.DefaultConfig())
	return NewClassifier(syms), syms
}

func TestCleanLeaf(t *testing.T) {
	add := fn("add", []*ir.VarDecl{scalarParam("a", 0), scalarParam("b", 1)},
		&ir.Return{Result: &ir.Binary{Op: "+", X: &ir.Ident{Name: "a"}, Y: &ir.Ident{Name: "b"}}},
	)
	cls, _ := buildClassifier(add)

	sum := cls.Classify(add)
	assert.True(t, sum.IsClean)
	assert.Empty(t, sum.Params)
}

func TestLocalWritesStayClean(t *testing.T) {
	f := fn("f", nil,
		&ir.DeclStmt{Decl: &ir.VarDecl{Name: "x", Type: ir.TypeInfo{Name: "int", Category: ir.TypeScalar}}},
		&ir.ExprStmt{X: &ir.Assign{LHS: &ir.Ident{Name: "x"}, RHS: &ir.Literal{}}},
	)
	cls, _ := buildClassifier(f)
	assert.True(t, cls.Classify(f).IsClean)
}

func TestGlobalWriteIsDirty(t *testing.T) {
	f := fn("f", nil,
		&ir.ExprStmt{X: &ir.Assign{LHS: &ir.Ident{Name: "g"}, RHS: &ir.Literal{}}},
	)
	cls, _ := buildClassifier(f)
	assert.False(t, cls.Classify(f).IsClean)
}

func TestStaticLocalWriteIsDirty(t *testing.T) {
	f := fn("f", nil,
		&ir.DeclStmt{Decl: &ir.VarDecl{
			Name: "n", Storage: ir.StorageStatic,
			Type: ir.TypeInfo{Name: "int", Category: ir.TypeScalar},
		}},
		&ir.ExprStmt{X: &ir.Assign{LHS: &ir.Ident{Name: "n"}, RHS: &ir.Literal{}}},
	)
	cls, _ := buildClassifier(f)
	assert.False(t, cls.Classify(f).IsClean, "static locals survive the call")
}

func TestWritesThroughParam(t *testing.T) {
	set := fn("set", []*ir.VarDecl{ptrParam("p", 0)},
		&ir.ExprStmt{X: &ir.Assign{
			LHS: &ir.Unary{Op: ir.OpDeref, X: &ir.Ident{Name: "p"}},
			RHS: &ir.Literal{},
		}},
	)
	cls, _ := buildClassifier(set)

	sum := cls.Classify(set)
	assert.False(t, sum.IsClean)
	assert.True(t, sum.WritesParam(0))
}

func TestWritesParamPropagatesToForwardingCaller(t *testing.T) {
	set := fn("set", []*ir.VarDecl{ptrParam("p", 0)},
		&ir.ExprStmt{X: &ir.Assign{
			LHS: &ir.Unary{Op: ir.OpDeref, X: &ir.Ident{Name: "p"}},
			RHS: &ir.Literal{},
		}},
	)
	wrap := fn("wrap", []*ir.VarDecl{ptrParam("q", 0)},
		callStmt("set", &ir.Ident{Name: "q"}),
	)
	cls, _ := buildClassifier(set, wrap)

	sum := cls.ClassifyName("wrap")
	assert.True(t, sum.WritesParam(0))
}

func TestMutualRecursionClean(t *testing.T) {
	even := fn("even", []*ir.VarDecl{scalarParam("n", 0)},
		&ir.Return{Result: &ir.Call{Name: "odd", Args: []ir.Expr{&ir.Ident{Name: "n"}}}},
	)
	odd := fn("odd", []*ir.VarDecl{scalarParam("n", 0)},
		&ir.Return{Result: &ir.Call{Name: "even", Args: []ir.Expr{&ir.Ident{Name: "n"}}}},
	)
	cls, _ := buildClassifier(even, odd)

	assert.True(t, cls.Classify(even).IsClean)
	assert.True(t, cls.Classify(odd).IsClean)
}

func TestMutualRecursionDirtyPropagates(t *testing.T) {
	a := fn("a", nil, callStmt("b"))
	b := fn("b", nil,
		callStmt("a"),
		&ir.ExprStmt{X: &ir.Assign{LHS: &ir.Ident{Name: "g"}, RHS: &ir.Literal{}}},
	)
	cls, _ := buildClassifier(a, b)

	assert.False(t, cls.Classify(a).IsClean)
	assert.False(t, cls.Classify(b).IsClean)
}

func TestSelfRecursionClean(t *testing.T) {
	f := fn("f", []*ir.VarDecl{scalarParam("n", 0)},
		&ir.Return{Result: &ir.Call{Name: "f", Args: []ir.Expr{&ir.Ident{Name: "n"}}}},
	)
	cls, _ := buildClassifier(f)
	assert.True(t, cls.Classify(f).IsClean)
}

func TestUndefinedCalleeIsDirty(t *testing.T) {
	f := fn("f", nil, callStmt("external"))
	cls, _ := buildClassifier(f)
	assert.False(t, cls.Classify(f).IsClean)
}

func TestDeallocIsDirty(t *testing.T) {
	f := fn("f", []*ir.VarDecl{ptrParam("p", 0)},
		&ir.ExprStmt{X: &ir.Call{Name: "free", Dealloc: true, Args: []ir.Expr{&ir.Ident{Name: "p"}}}},
	)
	cls, _ := buildClassifier(f)
	assert.False(t, cls.Classify(f).IsClean)
}

func TestClassifyNameUnknown(t *testing.T) {
	cls, _ := buildClassifier()
	assert.False(t, cls.ClassifyName("nope").IsClean)
}

func TestOrderIndependence(t *testing.T) {
	build := func() (*Classifier, *ir.Function, *ir.Function) {
		set := fn("set", []*ir.VarDecl{ptrParam("p", 0)},
			&ir.ExprStmt{X: &ir.Assign{
				LHS: &ir.Unary{Op: ir.OpDeref, X: &ir.Ident{Name: "p"}},
				RHS: &ir.Literal{},
			}},
		)
		wrap := fn("wrap", []*ir.VarDecl{ptrParam("q", 0)},
			callStmt("set", &ir.Ident{Name: "q"}),
		)
		cls, _ := buildClassifier(set, wrap)
		return cls, set, wrap
	}

	c1, s1, w1 := build()
	first := c1.Classify(w1)
	_ = c1.Classify(s1)

	c2, s2, w2 := build()
	_ = c2.Classify(s2)
	second := c2.Classify(w2)

	assert.Equal(t, first.IsClean, second.IsClean)
	assert.Equal(t, first.Params, second.Params)
}

func TestWriteThroughLocalAliasOfParam(t *testing.T) {
	f := fn("f", []*ir.VarDecl{ptrParam("p", 0)},
		&ir.DeclStmt{
			Decl: &ir.VarDecl{Name: "q", Type: ir.TypeInfo{Name: "int *", Category: ir.TypePointer}},
			Init: &ir.Ident{Name: "p"},
		},
		&ir.ExprStmt{X: &ir.Assign{
			LHS: &ir.Unary{Op: ir.OpDeref, X: &ir.Ident{Name: "q"}},
			RHS: &ir.Literal{},
		}},
	)
	cls, _ := buildClassifier(f)

	sum := cls.Classify(f)
	assert.False(t, sum.IsClean)
	assert.True(t, sum.WritesParam(0), "write through the alias is a write through the parameter")
	assert.False(t, sum.ParamUnknown(0))
}

func TestReferenceParamBareWrite(t *testing.T) {
	setv := fn("setv", []*ir.VarDecl{{
		Name: "r", IsParam: true, ParamIndex: 0,
		Type: ir.TypeInfo{Name: "int &", Category: ir.TypeReference},
	}},
		&ir.ExprStmt{X: &ir.Assign{LHS: &ir.Ident{Name: "r"}, RHS: &ir.Literal{}}},
	)
	cls, _ := buildClassifier(setv)

	sum := cls.Classify(setv)
	assert.False(t, sum.IsClean)
	assert.True(t, sum.WritesParam(0))
}

func TestParamForwardedToUndefinedCalleeEscapes(t *testing.T) {
	f := fn("f", []*ir.VarDecl{ptrParam("p", 0)},
		callStmt("external", &ir.Ident{Name: "p"}),
	)
	cls, _ := buildClassifier(f)

	sum := cls.Classify(f)
	assert.False(t, sum.IsClean)
	assert.True(t, sum.ParamUnknown(0))
	assert.False(t, sum.WritesParam(0))
}

func TestDerefReadKeepsParamReadOnly(t *testing.T) {
	peek := fn("peek", []*ir.VarDecl{ptrParam("p", 0)},
		&ir.Return{Result: &ir.Unary{Op: ir.OpDeref, X: &ir.Ident{Name: "p"}}},
	)
	cls, _ := buildClassifier(peek)

	sum := cls.Classify(peek)
	assert.True(t, sum.IsClean)
	assert.False(t, sum.WritesParam(0))
	assert.False(t, sum.ParamUnknown(0))
}

func TestUntrackedLocalPointerWriteEscapesParams(t *testing.T) {
	// q's provenance is a call result the model cannot follow; writing
	// through it must not leave p proven read-only.
	f := fn("f", []*ir.VarDecl{ptrParam("p", 0)},
		&ir.DeclStmt{
			Decl: &ir.VarDecl{Name: "q", Type: ir.TypeInfo{Name: "int *", Category: ir.TypePointer}},
			Init: &ir.Call{Name: "pick", Args: []ir.Expr{&ir.Ident{Name: "p"}}},
		},
		&ir.ExprStmt{X: &ir.Assign{
			LHS: &ir.Unary{Op: ir.OpDeref, X: &ir.Ident{Name: "q"}},
			RHS: &ir.Literal{},
		}},
	)
	cls, _ := buildClassifier(f)

	sum := cls.Classify(f)
	assert.False(t, sum.IsClean)
	assert.True(t, sum.ParamUnknown(0))
}
