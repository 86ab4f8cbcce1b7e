package frontend

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/varflow/varflow/pkg/ir"
)

// builtinScalars are typedef names the engine treats as plain scalars even
// without a visible definition.
var builtinScalars = map[string]bool{
	"size_t": true, "ssize_t": true, "ptrdiff_t": true, "intptr_t": true,
	"uintptr_t": true, "int8_t": true, "int16_t": true, "int32_t": true,
	"int64_t": true, "uint8_t": true, "uint16_t": true, "uint32_t": true,
	"uint64_t": true, "bool": true, "wchar_t": true, "char16_t": true,
	"char32_t": true, "time_t": true, "off_t": true, "pid_t": true,
	"uid_t": true, "gid_t": true, "intmax_t": true, "uintmax_t": true,
}

// resolveType maps a type specifier node to a base TypeInfo, before any
// declarator shape is applied.
func (l *lowerer) resolveType(typeNode *sitter.Node) ir.TypeInfo {
	if typeNode == nil {
		return ir.TypeInfo{Category: ir.TypeUnknown}
	}

	switch typeNode.Type() {
	case "primitive_type", "sized_type_specifier":
		return ir.TypeInfo{Name: l.text(typeNode), Category: ir.TypeScalar}
	case "enum_specifier":
		return ir.TypeInfo{Name: l.text(typeNode), Category: ir.TypeScalar}
	case "struct_specifier", "union_specifier", "class_specifier":
		name := ""
		if n := typeNode.ChildByFieldName("name"); n != nil {
			name = l.text(n)
		}
		return ir.TypeInfo{Name: l.text(typeNode), Category: ir.TypeRecord, Record: name}
	case "type_identifier":
		name := l.text(typeNode)
		if ti, ok := l.typedefs[name]; ok {
			return ti
		}
		if builtinScalars[name] {
			return ir.TypeInfo{Name: name, Category: ir.TypeScalar}
		}
		if _, ok := l.unit.Records[name]; ok {
			return ir.TypeInfo{Name: name, Category: ir.TypeRecord, Record: name}
		}
		return ir.TypeInfo{Name: name, Category: ir.TypeUnknown}
	case "qualified_identifier", "template_type", "placeholder_type_specifier", "auto":
		return ir.TypeInfo{Name: l.text(typeNode), Category: ir.TypeUnknown}
	default:
		return ir.TypeInfo{Name: l.text(typeNode), Category: ir.TypeUnknown}
	}
}

// applyDeclarator walks a declarator chain, producing the declared name and
// the final type shape. isFunc is true for function declarators.
func (l *lowerer) applyDeclarator(base ir.TypeInfo, node *sitter.Node) (name string, ti ir.TypeInfo, isFunc bool) {
	pointers := 0
	isArray := false
	isRef := false

	for node != nil {
		switch node.Type() {
		case "identifier", "field_identifier", "type_identifier",
			"qualified_identifier", "destructor_name", "operator_name":
			name = l.text(node)
			node = nil
		case "pointer_declarator", "abstract_pointer_declarator":
			pointers++
			node = node.ChildByFieldName("declarator")
		case "array_declarator":
			isArray = true
			node = node.ChildByFieldName("declarator")
		case "reference_declarator":
			isRef = true
			node = firstNamedChild(node)
		case "init_declarator", "parenthesized_declarator":
			if d := node.ChildByFieldName("declarator"); d != nil {
				node = d
			} else {
				node = firstNamedChild(node)
			}
		case "function_declarator":
			isFunc = true
			node = node.ChildByFieldName("declarator")
		default:
			node = nil
		}
	}

	ti = shapeType(base, pointers, isArray, isRef)
	return name, ti, isFunc
}

func shapeType(base ir.TypeInfo, pointers int, isArray, isRef bool) ir.TypeInfo {
	ti := base
	switch {
	case isRef:
		ti.Category = ir.TypeReference
	case isArray:
		ti.Category = ir.TypeArray
	case pointers > 0:
		if base.Record != "" && pointers == 1 {
			ti.Category = ir.TypeRecordPointer
		} else {
			ti.Category = ir.TypePointer
		}
	}
	return ti
}

// declaratorName unwraps a declarator to its declared identifier.
func (l *lowerer) declaratorName(node *sitter.Node) string {
	name, _, _ := l.applyDeclarator(ir.TypeInfo{}, node)
	return name
}

// findFunctionDeclarator digs through pointer wrappers to the
// function_declarator node, if any.
func findFunctionDeclarator(node *sitter.Node) *sitter.Node {
	for node != nil {
		switch node.Type() {
		case "function_declarator":
			return node
		case "pointer_declarator", "reference_declarator", "parenthesized_declarator", "init_declarator":
			if d := node.ChildByFieldName("declarator"); d != nil {
				node = d
			} else {
				node = firstNamedChild(node)
			}
		default:
			return nil
		}
	}
	return nil
}

// declStorage reads the storage class specifier off a declaration node.
func declStorage(node *sitter.Node, src []byte) ir.StorageClass {
	for i := 0; i < int(node.ChildCount()); i++ {
		c := node.Child(i)
		if c.Type() != "storage_class_specifier" {
			continue
		}
		switch strings.TrimSpace(string(src[c.StartByte():c.EndByte()])) {
		case "static":
			return ir.StorageStatic
		case "extern":
			return ir.StorageExtern
		}
	}
	return ir.StorageAuto
}

func firstNamedChild(node *sitter.Node) *sitter.Node {
	if node.NamedChildCount() == 0 {
		return nil
	}
	return node.NamedChild(0)
}
