package frontend

import (
	sitter "github.com/smacker/go-tree-sitter"

	"github.com/varflow/varflow/pkg/ir"
)

func (l *lowerer) lowerBlock(node *sitter.Node) *ir.Block {
	b := &ir.Block{At: l.pos(node)}
	for i := 0; i < int(node.NamedChildCount()); i++ {
		b.Stmts = append(b.Stmts, l.lowerStmts(node.NamedChild(i))...)
	}
	return b
}

// lowerStmts lowers one syntax statement into one or more model statements.
// A declaration with several declarators becomes several DeclStmts.
func (l *lowerer) lowerStmts(node *sitter.Node) []ir.Stmt {
	switch node.Type() {
	case "declaration":
		return l.lowerLocalDecl(node)
	case "labeled_statement":
		out := []ir.Stmt{&ir.Label{Name: l.labelName(node), At: l.pos(node)}}
		for i := 0; i < int(node.NamedChildCount()); i++ {
			c := node.NamedChild(i)
			if c.Type() == "statement_identifier" {
				continue
			}
			out = append(out, l.lowerStmts(c)...)
		}
		return out
	case "comment":
		return nil
	default:
		if s := l.lowerStmt(node); s != nil {
			return []ir.Stmt{s}
		}
		return nil
	}
}

func (l *lowerer) lowerStmt(node *sitter.Node) ir.Stmt {
	switch node.Type() {
	case "compound_statement":
		return l.lowerBlock(node)
	case "expression_statement":
		inner := firstNamedChild(node)
		if inner == nil {
			return nil
		}
		return &ir.ExprStmt{X: l.lowerExpr(inner), At: l.pos(node)}
	case "if_statement":
		return l.lowerIf(node)
	case "while_statement":
		return &ir.Loop{
			Kind: ir.LoopWhile,
			Cond: l.lowerCondition(node.ChildByFieldName("condition")),
			Body: l.asBlock(node.ChildByFieldName("body")),
			At:   l.pos(node),
		}
	case "do_statement":
		return &ir.Loop{
			Kind: ir.LoopDoWhile,
			Cond: l.lowerCondition(node.ChildByFieldName("condition")),
			Body: l.asBlock(node.ChildByFieldName("body")),
			At:   l.pos(node),
		}
	case "for_statement":
		return l.lowerFor(node)
	case "for_range_loop":
		return l.lowerForRange(node)
	case "switch_statement":
		return l.lowerSwitch(node)
	case "return_statement":
		r := &ir.Return{At: l.pos(node)}
		if v := firstNamedChild(node); v != nil && v.Type() != "comment" {
			r.Result = l.lowerExpr(v)
		}
		return r
	case "break_statement":
		return &ir.Exit{Kind: ir.ExitBreak, At: l.pos(node)}
	case "continue_statement":
		return &ir.Exit{Kind: ir.ExitContinue, At: l.pos(node)}
	case "goto_statement":
		return &ir.Exit{Kind: ir.ExitGoto, Label: l.labelName(node), At: l.pos(node)}
	case "throw_statement":
		t := &ir.Exit{Kind: ir.ExitThrow, At: l.pos(node)}
		if v := firstNamedChild(node); v != nil {
			t.X = l.lowerExpr(v)
		}
		return t
	case "declaration":
		// Single-statement position (for-init handles this path).
		stmts := l.lowerLocalDecl(node)
		if len(stmts) == 1 {
			return stmts[0]
		}
		return &ir.Block{Stmts: stmts, At: l.pos(node)}
	case "comment", ";":
		return nil
	default:
		return &ir.UnknownStmt{Idents: l.collectIdents(node), At: l.pos(node)}
	}
}

func (l *lowerer) lowerLocalDecl(node *sitter.Node) []ir.Stmt {
	typeNode := node.ChildByFieldName("type")
	if typeNode != nil {
		switch typeNode.Type() {
		case "struct_specifier", "union_specifier", "class_specifier":
			if typeNode.ChildByFieldName("body") != nil {
				l.lowerRecord(typeNode, "")
			}
		}
	}
	base := l.resolveType(typeNode)
	storage := declStorage(node, l.src)

	var out []ir.Stmt
	for i := 0; i < int(node.NamedChildCount()); i++ {
		d := node.NamedChild(i)
		switch d.Type() {
		case "init_declarator":
			inner := d.ChildByFieldName("declarator")
			name, ti, isFunc := l.applyDeclarator(base, inner)
			if isFunc || name == "" {
				continue
			}
			decl := &ir.VarDecl{Name: name, Type: ti, Storage: storage, At: l.pos(d)}
			var init ir.Expr
			if v := d.ChildByFieldName("value"); v != nil {
				init = l.lowerExpr(v)
			}
			out = append(out, &ir.DeclStmt{Decl: decl, Init: init, At: l.pos(d)})
		case "identifier", "pointer_declarator", "array_declarator", "reference_declarator":
			name, ti, isFunc := l.applyDeclarator(base, d)
			if isFunc || name == "" {
				continue
			}
			decl := &ir.VarDecl{Name: name, Type: ti, Storage: storage, At: l.pos(d)}
			out = append(out, &ir.DeclStmt{Decl: decl, At: l.pos(d)})
		}
	}
	return out
}

func (l *lowerer) lowerIf(node *sitter.Node) ir.Stmt {
	s := &ir.If{
		Cond: l.lowerCondition(node.ChildByFieldName("condition")),
		Then: l.asBlock(node.ChildByFieldName("consequence")),
		At:   l.pos(node),
	}
	if alt := node.ChildByFieldName("alternative"); alt != nil {
		if alt.Type() == "else_clause" {
			alt = firstNamedChild(alt)
		}
		if alt != nil {
			s.Else = l.lowerStmt(alt)
		}
	}
	return s
}

func (l *lowerer) lowerFor(node *sitter.Node) ir.Stmt {
	loop := &ir.Loop{Kind: ir.LoopFor, At: l.pos(node)}
	if init := node.ChildByFieldName("initializer"); init != nil {
		if init.Type() == "declaration" {
			loop.Init = l.lowerStmt(init)
		} else {
			loop.Init = &ir.ExprStmt{X: l.lowerExpr(init), At: l.pos(init)}
		}
	}
	if cond := node.ChildByFieldName("condition"); cond != nil {
		loop.Cond = l.lowerExpr(cond)
	}
	if upd := node.ChildByFieldName("update"); upd != nil {
		loop.Post = l.lowerExpr(upd)
	}
	loop.Body = l.asBlock(node.ChildByFieldName("body"))
	return loop
}

// lowerForRange models `for (T x : range)` as a loop whose induction
// variable is assigned each iteration from a read of the range.
func (l *lowerer) lowerForRange(node *sitter.Node) ir.Stmt {
	loop := &ir.Loop{Kind: ir.LoopFor, At: l.pos(node)}

	base := l.resolveType(node.ChildByFieldName("type"))
	if d := node.ChildByFieldName("declarator"); d != nil {
		name, ti, _ := l.applyDeclarator(base, d)
		if name != "" {
			decl := &ir.VarDecl{Name: name, Type: ti, At: l.pos(d)}
			var init ir.Expr
			if rng := node.ChildByFieldName("right"); rng != nil {
				init = l.lowerExpr(rng)
			}
			loop.Init = &ir.DeclStmt{Decl: decl, Init: init, At: l.pos(d)}
		}
	}
	loop.Body = l.asBlock(node.ChildByFieldName("body"))
	return loop
}

func (l *lowerer) lowerSwitch(node *sitter.Node) ir.Stmt {
	s := &ir.Switch{At: l.pos(node)}
	s.Tag = l.lowerCondition(node.ChildByFieldName("condition"))

	body := node.ChildByFieldName("body")
	if body == nil {
		return s
	}
	for i := 0; i < int(body.NamedChildCount()); i++ {
		c := body.NamedChild(i)
		if c.Type() != "case_statement" {
			continue
		}
		arm := &ir.Block{At: l.pos(c)}
		if c.ChildByFieldName("value") == nil {
			s.HasDefault = true
		}
		for j := 0; j < int(c.NamedChildCount()); j++ {
			sub := c.NamedChild(j)
			if sub == c.ChildByFieldName("value") {
				continue
			}
			arm.Stmts = append(arm.Stmts, l.lowerStmts(sub)...)
		}
		s.Cases = append(s.Cases, arm)
	}
	return s
}

// lowerCondition unwraps parenthesized and C++ condition-clause wrappers.
func (l *lowerer) lowerCondition(node *sitter.Node) ir.Expr {
	if node == nil {
		return nil
	}
	switch node.Type() {
	case "parenthesized_expression":
		return l.lowerCondition(firstNamedChild(node))
	case "condition_clause":
		if v := node.ChildByFieldName("value"); v != nil {
			return l.lowerCondition(v)
		}
		return l.lowerCondition(firstNamedChild(node))
	default:
		return l.lowerExpr(node)
	}
}

// asBlock wraps a non-block statement body in a Block.
func (l *lowerer) asBlock(node *sitter.Node) *ir.Block {
	if node == nil {
		return &ir.Block{}
	}
	if node.Type() == "compound_statement" {
		return l.lowerBlock(node)
	}
	b := &ir.Block{At: l.pos(node)}
	b.Stmts = append(b.Stmts, l.lowerStmts(node)...)
	return b
}

func (l *lowerer) labelName(node *sitter.Node) string {
	if lbl := node.ChildByFieldName("label"); lbl != nil {
		return l.text(lbl)
	}
	for i := 0; i < int(node.NamedChildCount()); i++ {
		if c := node.NamedChild(i); c.Type() == "statement_identifier" {
			return l.text(c)
		}
	}
	return ""
}
