package frontend

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/varflow/varflow/pkg/ir"
)

// lowerRecord lowers a struct/union/class definition. nameHint supplies the
// typedef alias for `typedef struct { ... } Name;`.
func (l *lowerer) lowerRecord(node *sitter.Node, nameHint string) {
	name := nameHint
	if n := node.ChildByFieldName("name"); n != nil {
		name = l.text(n)
	}
	if name == "" {
		return
	}

	body := node.ChildByFieldName("body")
	if body == nil {
		return
	}
	if prev, ok := l.unit.Records[name]; ok && len(prev.Members) > 0 {
		return
	}

	rec := &ir.RecordType{
		Name:        name,
		Union:       node.Type() == "union_specifier",
		FixedLayout: l.packed || hasPackedAttr(node, l.src),
		At:          l.pos(node),
	}

	for i := 0; i < int(body.NamedChildCount()); i++ {
		c := body.NamedChild(i)
		switch c.Type() {
		case "field_declaration":
			l.lowerField(rec, c)
		case "function_definition", "declaration":
			// In-class function: a constructor or destructor makes
			// instances self-justifying.
			if l.isCtorDtor(c, name) {
				rec.HasCtorDtor = true
			}
		}
	}

	if name != "" {
		// The bare tag name becomes usable as a type from here on.
		l.typedefs[name] = ir.TypeInfo{Name: name, Category: ir.TypeRecord, Record: name}
	}
	l.unit.Records[name] = rec
}

func (l *lowerer) lowerField(rec *ir.RecordType, node *sitter.Node) {
	base := l.resolveType(node.ChildByFieldName("type"))

	bitfield := false
	for i := 0; i < int(node.NamedChildCount()); i++ {
		if node.NamedChild(i).Type() == "bitfield_clause" {
			bitfield = true
			rec.FixedLayout = true
		}
	}

	declared := false
	for i := 0; i < int(node.NamedChildCount()); i++ {
		d := node.NamedChild(i)
		switch d.Type() {
		case "field_identifier", "pointer_declarator", "array_declarator":
			name, ti, isFunc := l.applyDeclarator(base, d)
			if isFunc || name == "" {
				continue
			}
			rec.Members = append(rec.Members, ir.RecordMember{
				Name: name, Type: ti, Bitfield: bitfield, At: l.pos(d),
			})
			declared = true
		case "function_declarator":
			// Method declaration inside a class body.
			if l.isCtorDtorDeclarator(d, rec.Name) {
				rec.HasCtorDtor = true
			}
			declared = true
		}
	}

	// Anonymous nested record: its members belong to the enclosing layout.
	if !declared {
		if t := node.ChildByFieldName("type"); t != nil && t.ChildByFieldName("body") != nil {
			inner := t.ChildByFieldName("body")
			for i := 0; i < int(inner.NamedChildCount()); i++ {
				if c := inner.NamedChild(i); c.Type() == "field_declaration" {
					l.lowerField(rec, c)
				}
			}
		}
	}
}

func (l *lowerer) isCtorDtor(node *sitter.Node, recordName string) bool {
	d := node.ChildByFieldName("declarator")
	if d == nil {
		return false
	}
	fn := findFunctionDeclarator(d)
	if fn == nil {
		return false
	}
	return l.isCtorDtorDeclarator(fn, recordName)
}

func (l *lowerer) isCtorDtorDeclarator(fnDecl *sitter.Node, recordName string) bool {
	name := l.declaratorName(fnDecl.ChildByFieldName("declarator"))
	if name == "" {
		return false
	}
	if strings.HasPrefix(name, "~") {
		return strings.TrimPrefix(name, "~") == recordName
	}
	return name == recordName
}

// hasPackedAttr detects __attribute__((packed)) and #pragma-equivalent
// attribute spellings attached to the record node.
func hasPackedAttr(node *sitter.Node, src []byte) bool {
	for i := 0; i < int(node.ChildCount()); i++ {
		c := node.Child(i)
		switch c.Type() {
		case "attribute_specifier", "attribute_declaration", "ms_declspec_modifier":
			if strings.Contains(string(src[c.StartByte():c.EndByte()]), "packed") {
				return true
			}
		}
	}
	if p := node.Parent(); p != nil {
		for i := 0; i < int(p.ChildCount()); i++ {
			c := p.Child(i)
			switch c.Type() {
			case "attribute_specifier", "attribute_declaration":
				if strings.Contains(string(src[c.StartByte():c.EndByte()]), "packed") {
					return true
				}
			}
		}
	}
	return false
}
