// Package frontend lowers tree-sitter C/C++ syntax trees into the closed
// node model the engine walks. Lowering never fails: constructs outside
// the model become Unknown nodes carrying the identifiers they mention, so
// the walker can treat those variables conservatively.
package frontend

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/varflow/varflow/pkg/ir"
	"github.com/varflow/varflow/pkg/parser"
)

type lowerer struct {
	src  []byte
	path string
	lang parser.Language
	unit *ir.TranslationUnit

	typedefs map[string]ir.TypeInfo
	// packed is true inside an active #pragma pack region; records lowered
	// there have a load-bearing layout.
	packed bool
}

// Lower converts one parse result into a translation unit.
func Lower(res *parser.ParseResult) *ir.TranslationUnit {
	l := &lowerer{
		src:  res.Source,
		path: res.Path,
		lang: res.Language,
		unit: &ir.TranslationUnit{
			Path:    res.Path,
			Records: make(map[string]*ir.RecordType),
		},
		typedefs: make(map[string]ir.TypeInfo),
	}
	l.topLevel(res.Tree.RootNode())
	return l.unit
}

func (l *lowerer) topLevel(node *sitter.Node) {
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		switch child.Type() {
		case "function_definition":
			l.lowerFunction(child)
		case "declaration":
			l.topLevelDeclaration(child)
		case "type_definition":
			l.lowerTypedef(child)
		case "struct_specifier", "union_specifier", "class_specifier":
			l.lowerRecord(child, "")
		case "preproc_call":
			l.pragma(child)
		case "namespace_definition", "linkage_specification":
			if body := child.ChildByFieldName("body"); body != nil {
				l.topLevel(body)
			}
		case "template_declaration":
			l.topLevel(child)
		case "preproc_ifdef", "preproc_if":
			// Lower whichever branch the parser kept.
			l.topLevel(child)
		}
	}
}

// pragma tracks #pragma pack push/pop regions.
func (l *lowerer) pragma(node *sitter.Node) {
	text := l.text(node)
	if !strings.Contains(text, "pack") {
		return
	}
	switch {
	case strings.Contains(text, "pack(pop") || strings.Contains(text, "pack()"):
		l.packed = false
	default:
		l.packed = true
	}
}

// topLevelDeclaration handles file-scope declarations: globals, function
// prototypes, and record definitions attached to an instance.
func (l *lowerer) topLevelDeclaration(node *sitter.Node) {
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

	for i := 0; i < int(node.NamedChildCount()); i++ {
		d := node.NamedChild(i)
		switch d.Type() {
		case "init_declarator":
			inner := d.ChildByFieldName("declarator")
			name, ti, isFunc := l.applyDeclarator(base, inner)
			if isFunc || name == "" {
				continue
			}
			l.unit.Globals = append(l.unit.Globals, &ir.VarDecl{
				Name: name, Type: ti, Storage: storage, At: l.pos(d),
			})
		case "identifier", "pointer_declarator", "array_declarator", "function_declarator", "reference_declarator":
			name, ti, isFunc := l.applyDeclarator(base, d)
			if name == "" {
				continue
			}
			if isFunc {
				l.unit.Functions = append(l.unit.Functions, &ir.Function{
					Name:   name,
					Params: l.lowerParams(findFunctionDeclarator(d)),
					At:     l.pos(d),
				})
				continue
			}
			l.unit.Globals = append(l.unit.Globals, &ir.VarDecl{
				Name: name, Type: ti, Storage: storage, At: l.pos(d),
			})
		}
	}
}

func (l *lowerer) lowerTypedef(node *sitter.Node) {
	typeNode := node.ChildByFieldName("type")
	declNode := node.ChildByFieldName("declarator")
	if declNode == nil {
		return
	}

	aliasHint := ""
	if declNode.Type() == "type_identifier" {
		aliasHint = l.text(declNode)
	}

	if typeNode != nil && typeNode.ChildByFieldName("body") != nil {
		switch typeNode.Type() {
		case "struct_specifier", "union_specifier", "class_specifier":
			l.lowerRecord(typeNode, aliasHint)
		}
	}

	base := l.resolveType(typeNode)
	name, ti, isFunc := l.applyDeclarator(base, declNode)
	if name == "" || isFunc {
		return
	}
	l.typedefs[name] = ti
}

// lowerFunction lowers one function definition, body included.
func (l *lowerer) lowerFunction(node *sitter.Node) {
	declNode := node.ChildByFieldName("declarator")
	fnDecl := findFunctionDeclarator(declNode)
	if fnDecl == nil {
		return
	}
	name := l.declaratorName(fnDecl.ChildByFieldName("declarator"))
	if name == "" {
		return
	}

	fn := &ir.Function{
		Name:   name,
		Params: l.lowerParams(fnDecl),
		At:     l.pos(node),
	}
	if body := node.ChildByFieldName("body"); body != nil {
		fn.Body = l.lowerBlock(body)
	}
	l.unit.Functions = append(l.unit.Functions, fn)
}

func (l *lowerer) lowerParams(fnDecl *sitter.Node) []*ir.VarDecl {
	if fnDecl == nil {
		return nil
	}
	list := fnDecl.ChildByFieldName("parameters")
	if list == nil {
		return nil
	}

	var params []*ir.VarDecl
	idx := 0
	for i := 0; i < int(list.NamedChildCount()); i++ {
		p := list.NamedChild(i)
		if p.Type() != "parameter_declaration" && p.Type() != "optional_parameter_declaration" {
			continue
		}
		base := l.resolveType(p.ChildByFieldName("type"))
		name := ""
		ti := base
		if d := p.ChildByFieldName("declarator"); d != nil {
			name, ti, _ = l.applyDeclarator(base, d)
		}
		if name == "" {
			// Unnamed parameter: keep the slot so argument indices line up.
			name = "__unnamed" + itoa(idx)
		}
		params = append(params, &ir.VarDecl{
			Name: name, Type: ti, IsParam: true, ParamIndex: idx, At: l.pos(p),
		})
		idx++
	}
	return params
}

func (l *lowerer) pos(node *sitter.Node) ir.Position {
	pt := node.StartPoint()
	return ir.Position{File: l.path, Line: pt.Row + 1, Col: pt.Column + 1}
}

func (l *lowerer) text(node *sitter.Node) string {
	return parser.GetNodeText(node, l.src)
}

// collectIdents gathers every plain identifier under a node, deduplicated.
// Used for the Unknown fallback nodes.
func (l *lowerer) collectIdents(node *sitter.Node) []string {
	seen := map[string]bool{}
	var out []string
	parser.Walk(node, l.src, func(n *sitter.Node, src []byte) bool {
		if n.Type() == "identifier" {
			name := parser.GetNodeText(n, src)
			if name != "" && !seen[name] {
				seen[name] = true
				out = append(out, name)
			}
		}
		return true
	})
	return out
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	var b [8]byte
	i := len(b)
	for n > 0 {
		i--
		b[i] = byte('0' + n%10)
		n /= 10
	}
	return string(b[i:])
}
