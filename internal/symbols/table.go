// Package symbols adapts the lowered translation unit into the scope and
// symbol queries the engine needs: function lookup, record lookup, linkage
// classification, and the side-effect-free type whitelist.
package symbols

import (
	"github.com/varflow/varflow/pkg/config"
	"github.com/varflow/varflow/pkg/ir"
)

// Table answers symbol queries for one translation unit.
type Table struct {
	unit      *ir.TranslationUnit
	funcs     map[string]*ir.Function
	globals   map[string]*ir.VarDecl
	safeTypes map[string]bool
}

// Build indexes a translation unit. Records with file-scope instances of
// external linkage are flagged so the member tracker can exempt them.
func Build(unit *ir.TranslationUnit, cfg *config.Config) *Table {
	t := &Table{
		unit:      unit,
		funcs:     make(map[string]*ir.Function, len(unit.Functions)),
		globals:   make(map[string]*ir.VarDecl, len(unit.Globals)),
		safeTypes: make(map[string]bool),
	}

	for _, f := range unit.Functions {
		// Prefer definitions over forward declarations.
		if prev, ok := t.funcs[f.Name]; !ok || (!prev.Defined() && f.Defined()) {
			t.funcs[f.Name] = f
		}
	}

	for _, g := range unit.Globals {
		t.globals[g.Name] = g
		if g.Storage != ir.StorageStatic && g.Type.Record != "" {
			if rec, ok := unit.Records[g.Type.Record]; ok {
				rec.ExternalInstances = true
			}
		}
	}

	if cfg != nil {
		for _, name := range cfg.Analysis.SafeTypes {
			t.safeTypes[name] = true
		}
	}

	return t
}

// Unit returns the underlying translation unit.
func (t *Table) Unit() *ir.TranslationUnit { return t.unit }

// Function looks up a function by name.
func (t *Table) Function(name string) (*ir.Function, bool) {
	f, ok := t.funcs[name]
	return f, ok
}

// Functions returns every indexed function.
func (t *Table) Functions() map[string]*ir.Function { return t.funcs }

// Record looks up a record type definition by name.
func (t *Table) Record(name string) (*ir.RecordType, bool) {
	r, ok := t.unit.Records[name]
	return r, ok
}

// Records returns all record definitions in the unit.
func (t *Table) Records() map[string]*ir.RecordType { return t.unit.Records }

// IsGlobal reports whether a name is a file-scope variable.
func (t *Table) IsGlobal(name string) bool {
	_, ok := t.globals[name]
	return ok
}

// IsSafeType reports whether a type name is whitelisted as free of
// construction and destruction side effects.
func (t *Table) IsSafeType(name string) bool {
	return t.safeTypes[name]
}

// TypeKnown reports whether the engine can reason about a declared type.
// Scalar and pointer categories are always modelable; record categories
// require a visible definition or a whitelist entry.
func (t *Table) TypeKnown(ti ir.TypeInfo) bool {
	switch ti.Category {
	case ir.TypeUnknown:
		return t.safeTypes[ti.Name]
	case ir.TypeRecord, ir.TypeRecordPointer:
		if _, ok := t.unit.Records[ti.Record]; ok {
			return true
		}
		return t.safeTypes[ti.Record] || t.safeTypes[ti.Name]
	default:
		return true
	}
}

// CtorDtorExempt reports whether instances of the declared type are exempt
// from unused/unread findings because construction or destruction alone
// justifies their existence.
func (t *Table) CtorDtorExempt(ti ir.TypeInfo) bool {
	if ti.Category != ir.TypeRecord {
		return false
	}
	rec, ok := t.unit.Records[ti.Record]
	if !ok {
		return false
	}
	return rec.HasCtorDtor && !t.safeTypes[rec.Name]
}
