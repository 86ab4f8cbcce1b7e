package ir

import (
	"fmt"

	"github.com/cespare/xxhash/v2"
)

// TypeCategory classifies a declared type for usage analysis.
type TypeCategory uint8

const (
	TypeScalar TypeCategory = iota
	TypePointer
	TypeReference
	TypeArray
	TypeRecord
	TypeRecordPointer
	TypeUnknown
)

func (c TypeCategory) String() string {
	switch c {
	case TypeScalar:
		return "scalar"
	case TypePointer:
		return "pointer"
	case TypeReference:
		return "reference"
	case TypeArray:
		return "array"
	case TypeRecord:
		return "record"
	case TypeRecordPointer:
		return "record-pointer"
	default:
		return "unknown"
	}
}

// IsPointerLike reports whether values of this category can alias storage.
func (c TypeCategory) IsPointerLike() bool {
	return c == TypePointer || c == TypeReference || c == TypeArray || c == TypeRecordPointer
}

// StorageClass is the declared storage duration.
type StorageClass uint8

const (
	StorageAuto StorageClass = iota
	StorageStatic
	StorageExtern
)

// TypeInfo describes the declared type of a variable or member.
type TypeInfo struct {
	Name     string // spelled type name, e.g. "int", "struct S"
	Category TypeCategory
	Record   string // record type name when Category is Record/RecordPointer
}

// VarDecl is a variable or parameter declaration.
type VarDecl struct {
	Name       string
	Type       TypeInfo
	Storage    StorageClass
	IsParam    bool
	ParamIndex int // valid when IsParam
	At         Position
}

// RecordMember is one data member of a record type.
type RecordMember struct {
	Name     string
	Type     TypeInfo
	Bitfield bool
	At       Position
}

// RecordType is a struct, class, or union definition.
type RecordType struct {
	Name    string
	Union   bool
	Members []RecordMember
	// FixedLayout is set when the in-memory layout is load-bearing:
	// bit-fields, packed attributes, or an active #pragma pack.
	FixedLayout bool
	// ExternalInstances is set when a file-scope instance with external
	// linkage exists, so members may be reached from other units.
	ExternalInstances bool
	// HasCtorDtor is set for C++ records with a user-declared constructor
	// or destructor; instances are exempt from unused/unread findings
	// unless the type is whitelisted as side-effect free.
	HasCtorDtor bool
	At          Position
}

// Member returns the named member, if declared.
func (r *RecordType) Member(name string) (*RecordMember, bool) {
	for i := range r.Members {
		if r.Members[i].Name == name {
			return &r.Members[i], true
		}
	}
	return nil, false
}

// Function is one function definition or declaration in a translation unit.
type Function struct {
	Name   string
	Params []*VarDecl
	Body   *Block // nil for forward declarations
	At     Position
}

// Defined reports whether a body is visible in this unit.
func (f *Function) Defined() bool { return f.Body != nil }

// ID returns a stable identity key for memoization, derived from the
// function's name and definition site.
func (f *Function) ID() uint64 {
	return xxhash.Sum64String(fmt.Sprintf("%s:%d:%d:%s", f.At.File, f.At.Line, f.At.Col, f.Name))
}

// TranslationUnit is the lowered form of one source file.
type TranslationUnit struct {
	Path      string
	Functions []*Function
	Records   map[string]*RecordType
	Globals   []*VarDecl // file-scope variables
}

// Function returns the first function with the given name that has a body,
// falling back to a bodiless declaration.
func (u *TranslationUnit) Function(name string) (*Function, bool) {
	var decl *Function
	for _, f := range u.Functions {
		if f.Name != name {
			continue
		}
		if f.Defined() {
			return f, true
		}
		if decl == nil {
			decl = f
		}
	}
	if decl != nil {
		return decl, true
	}
	return nil, false
}
