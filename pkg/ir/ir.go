// Package ir defines the lowered syntax-tree model consumed by the analysis
// engine. The node set is deliberately closed: walkers dispatch with an
// exhaustive type switch whose default arm is the fail-safe path for
// constructs the frontend could not model.
package ir

// Position is a location in a source file. Lines and columns are 1-based.
type Position struct {
	File string `json:"file"`
	Line uint32 `json:"line"`
	Col  uint32 `json:"col"`
}

// Before reports whether p sorts before q in (file, line, col) order.
func (p Position) Before(q Position) bool {
	if p.File != q.File {
		return p.File < q.File
	}
	if p.Line != q.Line {
		return p.Line < q.Line
	}
	return p.Col < q.Col
}

// Node is implemented by every statement and expression.
type Node interface {
	Pos() Position
}

// Stmt is the closed statement union.
type Stmt interface {
	Node
	stmtNode()
}

// Expr is the closed expression union.
type Expr interface {
	Node
	exprNode()
}

// Block is a brace-delimited statement sequence introducing a lexical scope.
type Block struct {
	Stmts []Stmt
	At    Position
}

// DeclStmt declares a local variable, optionally with an initializer.
type DeclStmt struct {
	Decl *VarDecl
	Init Expr // nil when the declaration has no initializer
	At   Position
}

// ExprStmt evaluates an expression for its effects.
type ExprStmt struct {
	X  Expr
	At Position
}

// If is an if/else branch. Else is nil, a *Block, or another *If.
type If struct {
	Cond Expr
	Then *Block
	Else Stmt
	At   Position
}

// Switch models a switch statement. Each case body is walked as an
// independent arm from the pre-branch snapshot.
type Switch struct {
	Tag        Expr
	Cases      []*Block
	HasDefault bool
	At         Position
}

// LoopKind distinguishes loop forms.
type LoopKind uint8

const (
	LoopFor LoopKind = iota
	LoopWhile
	LoopDoWhile
)

// Loop models for/while/do-while. Init and Post are nil except for `for`.
type Loop struct {
	Kind LoopKind
	Init Stmt
	Cond Expr
	Post Expr
	Body *Block
	At   Position
}

// Return terminates the current path, optionally yielding a value.
type Return struct {
	Result Expr // nil for bare return
	At     Position
}

// ExitKind classifies non-local exits other than return.
type ExitKind uint8

const (
	ExitBreak ExitKind = iota
	ExitContinue
	ExitGoto
	ExitThrow
)

// Exit is a break, continue, goto, or throw.
type Exit struct {
	Kind  ExitKind
	Label string // goto target, empty otherwise
	X     Expr   // thrown expression, nil otherwise
	At    Position
}

// Label marks a goto target.
type Label struct {
	Name string
	At   Position
}

// UnknownStmt stands in for a statement the frontend could not lower.
// Idents lists every identifier that occurs inside it so the walker can
// treat those variables conservatively.
type UnknownStmt struct {
	Idents []string
	At     Position
}

func (s *Block) stmtNode()       {}
func (s *DeclStmt) stmtNode()    {}
func (s *ExprStmt) stmtNode()    {}
func (s *If) stmtNode()          {}
func (s *Switch) stmtNode()      {}
func (s *Loop) stmtNode()        {}
func (s *Return) stmtNode()      {}
func (s *Exit) stmtNode()        {}
func (s *Label) stmtNode()       {}
func (s *UnknownStmt) stmtNode() {}

func (s *Block) Pos() Position       { return s.At }
func (s *DeclStmt) Pos() Position    { return s.At }
func (s *ExprStmt) Pos() Position    { return s.At }
func (s *If) Pos() Position          { return s.At }
func (s *Switch) Pos() Position      { return s.At }
func (s *Loop) Pos() Position        { return s.At }
func (s *Return) Pos() Position      { return s.At }
func (s *Exit) Pos() Position        { return s.At }
func (s *Label) Pos() Position       { return s.At }
func (s *UnknownStmt) Pos() Position { return s.At }

// Ident names a variable, parameter, or file-scope entity.
type Ident struct {
	Name string
	At   Position
}

// Literal is a constant with no variable effects.
type Literal struct {
	At Position
}

// UnaryOp enumerates the unary operators the engine distinguishes.
type UnaryOp uint8

const (
	OpDeref   UnaryOp = iota // *x
	OpAddrOf                 // &x
	OpPreInc                 // ++x, --x (read then write)
	OpPostInc                // x++, x-- (read then write)
	OpPlain                  // -x, !x, ~x: read only
)

// Unary is a unary operator application.
type Unary struct {
	Op UnaryOp
	X  Expr
	At Position
}

// Binary is a binary operator application; both operands are read.
type Binary struct {
	Op   string
	X, Y Expr
	At   Position
}

// Assign writes LHS. Compound assignment (+=, <<=, ...) also reads LHS.
type Assign struct {
	Compound bool
	LHS, RHS Expr
	At       Position
}

// Call is a function invocation. Name is the callee identifier when the
// callee is a plain name, empty for indirect calls (Callee set instead).
type Call struct {
	Name    string
	Callee  Expr // non-nil only for indirect calls
	Args    []Expr
	Alloc   bool // allocation primitive (malloc, calloc, new, ...)
	Dealloc bool // deallocation primitive (free, delete)
	At      Position
}

// Member accesses a field of a record-typed expression.
type Member struct {
	X     Expr
	Field string
	Arrow bool // x->f rather than x.f
	At    Position
}

// Index subscripts an array or pointer.
type Index struct {
	X, Idx Expr
	At     Position
}

// Cast converts X to TypeName. A cast of an object's address to an
// unrelated pointer type makes every member reachable.
type Cast struct {
	TypeName string
	X        Expr
	At       Position
}

// SizeOf is a layout-only expression; it never constitutes an access.
type SizeOf struct {
	X  Expr // nil for sizeof(type)
	At Position
}

// Comma evaluates X for effects, then Y.
type Comma struct {
	X, Y Expr
	At   Position
}

// Cond is the ternary operator; both arms are walked as branch arms.
type Cond struct {
	C, T, F Expr
	At      Position
}

// UnknownExpr stands in for an expression the frontend could not lower.
type UnknownExpr struct {
	Idents []string
	At     Position
}

func (e *Ident) exprNode()       {}
func (e *Literal) exprNode()     {}
func (e *Unary) exprNode()       {}
func (e *Binary) exprNode()      {}
func (e *Assign) exprNode()      {}
func (e *Call) exprNode()        {}
func (e *Member) exprNode()      {}
func (e *Index) exprNode()       {}
func (e *Cast) exprNode()        {}
func (e *SizeOf) exprNode()      {}
func (e *Comma) exprNode()       {}
func (e *Cond) exprNode()        {}
func (e *UnknownExpr) exprNode() {}

func (e *Ident) Pos() Position       { return e.At }
func (e *Literal) Pos() Position     { return e.At }
func (e *Unary) Pos() Position       { return e.At }
func (e *Binary) Pos() Position      { return e.At }
func (e *Assign) Pos() Position      { return e.At }
func (e *Call) Pos() Position        { return e.At }
func (e *Member) Pos() Position      { return e.At }
func (e *Index) Pos() Position       { return e.At }
func (e *Cast) Pos() Position        { return e.At }
func (e *SizeOf) Pos() Position      { return e.At }
func (e *Comma) Pos() Position       { return e.At }
func (e *Cond) Pos() Position        { return e.At }
func (e *UnknownExpr) Pos() Position { return e.At }
