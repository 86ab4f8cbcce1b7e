package frontend

import (
	sitter "github.com/smacker/go-tree-sitter"

	"github.com/varflow/varflow/pkg/ir"
)

// allocators and deallocators the engine recognizes as ownership
// primitives.
var (
	allocNames = map[string]bool{
		"malloc": true, "calloc": true, "realloc": true,
		"strdup": true, "strndup": true, "aligned_alloc": true,
	}
	deallocNames = map[string]bool{
		"free": true,
	}
)

func (l *lowerer) lowerExpr(node *sitter.Node) ir.Expr {
	if node == nil {
		return nil
	}
	switch node.Type() {
	case "identifier":
		return &ir.Ident{Name: l.text(node), At: l.pos(node)}
	case "number_literal", "string_literal", "char_literal", "raw_string_literal",
		"concatenated_string", "true", "false", "null", "nullptr", "this":
		return &ir.Literal{At: l.pos(node)}
	case "parenthesized_expression":
		return l.lowerExpr(firstNamedChild(node))
	case "assignment_expression":
		op := "="
		if o := node.ChildByFieldName("operator"); o != nil {
			op = l.text(o)
		}
		return &ir.Assign{
			Compound: op != "=",
			LHS:      l.lowerExpr(node.ChildByFieldName("left")),
			RHS:      l.lowerExpr(node.ChildByFieldName("right")),
			At:       l.pos(node),
		}
	case "binary_expression":
		op := ""
		if o := node.ChildByFieldName("operator"); o != nil {
			op = l.text(o)
		}
		return &ir.Binary{
			Op: op,
			X:  l.lowerExpr(node.ChildByFieldName("left")),
			Y:  l.lowerExpr(node.ChildByFieldName("right")),
			At: l.pos(node),
		}
	case "unary_expression":
		return &ir.Unary{
			Op: ir.OpPlain,
			X:  l.lowerExpr(node.ChildByFieldName("argument")),
			At: l.pos(node),
		}
	case "update_expression":
		op := ir.OpPostInc
		arg := node.ChildByFieldName("argument")
		if o := node.ChildByFieldName("operator"); o != nil && arg != nil && o.StartByte() < arg.StartByte() {
			op = ir.OpPreInc
		}
		return &ir.Unary{Op: op, X: l.lowerExpr(arg), At: l.pos(node)}
	case "pointer_expression":
		op := ir.OpDeref
		if o := node.ChildByFieldName("operator"); o != nil && l.text(o) == "&" {
			op = ir.OpAddrOf
		}
		return &ir.Unary{
			Op: op,
			X:  l.lowerExpr(node.ChildByFieldName("argument")),
			At: l.pos(node),
		}
	case "call_expression":
		return l.lowerCall(node)
	case "field_expression":
		arrow := false
		for i := 0; i < int(node.ChildCount()); i++ {
			if node.Child(i).Type() == "->" {
				arrow = true
				break
			}
		}
		return &ir.Member{
			X:     l.lowerExpr(node.ChildByFieldName("argument")),
			Field: l.text(node.ChildByFieldName("field")),
			Arrow: arrow,
			At:    l.pos(node),
		}
	case "subscript_expression":
		idx := node.ChildByFieldName("index")
		if idx == nil {
			idx = node.ChildByFieldName("indices")
		}
		return &ir.Index{
			X:   l.lowerExpr(node.ChildByFieldName("argument")),
			Idx: l.lowerExpr(idx),
			At:  l.pos(node),
		}
	case "cast_expression":
		typeName := ""
		if t := node.ChildByFieldName("type"); t != nil {
			typeName = l.text(t)
		}
		return &ir.Cast{
			TypeName: typeName,
			X:        l.lowerExpr(node.ChildByFieldName("value")),
			At:       l.pos(node),
		}
	case "sizeof_expression", "alignof_expression", "offsetof_expression":
		s := &ir.SizeOf{At: l.pos(node)}
		if v := node.ChildByFieldName("value"); v != nil {
			s.X = l.lowerExpr(v)
		}
		return s
	case "conditional_expression":
		return &ir.Cond{
			C:  l.lowerExpr(node.ChildByFieldName("condition")),
			T:  l.lowerExpr(node.ChildByFieldName("consequence")),
			F:  l.lowerExpr(node.ChildByFieldName("alternative")),
			At: l.pos(node),
		}
	case "comma_expression":
		return &ir.Comma{
			X:  l.lowerExpr(node.ChildByFieldName("left")),
			Y:  l.lowerExpr(node.ChildByFieldName("right")),
			At: l.pos(node),
		}
	case "initializer_list", "compound_literal_expression", "argument_list":
		return l.lowerList(node)
	case "new_expression":
		call := &ir.Call{Name: "new", Alloc: true, At: l.pos(node)}
		if args := node.ChildByFieldName("arguments"); args != nil {
			for i := 0; i < int(args.NamedChildCount()); i++ {
				call.Args = append(call.Args, l.lowerExpr(args.NamedChild(i)))
			}
		}
		return call
	case "delete_expression":
		call := &ir.Call{Name: "delete", Dealloc: true, At: l.pos(node)}
		if v := firstNamedChild(node); v != nil {
			call.Args = append(call.Args, l.lowerExpr(v))
		}
		return call
	default:
		return &ir.UnknownExpr{Idents: l.collectIdents(node), At: l.pos(node)}
	}
}

func (l *lowerer) lowerCall(node *sitter.Node) ir.Expr {
	call := &ir.Call{At: l.pos(node)}

	fn := node.ChildByFieldName("function")
	switch {
	case fn == nil:
	case fn.Type() == "identifier":
		call.Name = l.text(fn)
	case fn.Type() == "template_function":
		if n := fn.ChildByFieldName("name"); n != nil {
			call.Name = l.text(n)
		} else {
			call.Callee = l.lowerExpr(fn)
		}
	default:
		// Method calls, function pointers, qualified names: the walker
		// treats these as calls to unknown code.
		call.Callee = l.lowerExpr(fn)
	}

	if call.Name != "" {
		call.Alloc = allocNames[call.Name]
		call.Dealloc = deallocNames[call.Name]
	}

	if args := node.ChildByFieldName("arguments"); args != nil {
		for i := 0; i < int(args.NamedChildCount()); i++ {
			a := args.NamedChild(i)
			if a.Type() == "comment" {
				continue
			}
			call.Args = append(call.Args, l.lowerExpr(a))
		}
	}
	return call
}

// lowerList flattens an initializer list into a comma chain so every
// element is walked as a read.
func (l *lowerer) lowerList(node *sitter.Node) ir.Expr {
	var out ir.Expr
	for i := 0; i < int(node.NamedChildCount()); i++ {
		c := node.NamedChild(i)
		if c.Type() == "comment" {
			continue
		}
		e := l.lowerExpr(c)
		if out == nil {
			out = e
		} else {
			out = &ir.Comma{X: out, Y: e, At: l.pos(node)}
		}
	}
	if out == nil {
		return &ir.Literal{At: l.pos(node)}
	}
	return out
}
