// Copyright (c) 2025 pk910
// SPDX-License-Identifier: Apache-2.0
// This file is part of the dynamic-vtable library.

package vttypes

import (
	"fmt"
	"reflect"

	"github.com/pk910/dynamic-vtable/vtutils"
)

// Category is the structural category of a described type.
type Category uint8

const (
	CategoryInvalid Category = iota
	CategoryStruct
	CategoryEnum
	CategoryUnion
	CategoryPointer
	CategoryOptional
	CategoryCollection
	CategoryVector
	CategoryOpaque
	CategoryFunction
	CategoryPrimitive
	CategoryVoid
	CategoryOther
)

var categoryNames = [...]string{
	CategoryInvalid:    "invalid",
	CategoryStruct:     "struct",
	CategoryEnum:       "enum",
	CategoryUnion:      "union",
	CategoryPointer:    "pointer",
	CategoryOptional:   "optional",
	CategoryCollection: "collection",
	CategoryVector:     "vector",
	CategoryOpaque:     "opaque",
	CategoryFunction:   "function",
	CategoryPrimitive:  "primitive",
	CategoryVoid:       "void",
	CategoryOther:      "other",
}

func (c Category) String() string {
	if int(c) < len(categoryNames) {
		return categoryNames[c]
	}
	return fmt.Sprintf("category(%d)", uint8(c))
}

// HasDeclarations reports whether types of this category carry fields or variants.
func (c Category) HasDeclarations() bool {
	return c == CategoryStruct || c == CategoryEnum || c == CategoryUnion
}

// TypeFlag is a flag describing additional properties of a type
type TypeFlag uint8

const (
	TypeFlagNamed       TypeFlag = 1 << iota // Whether the type is a defined (named) type
	TypeFlagErased                           // Whether the type erases all shape information (empty interface)
	TypeFlagHasPointers                      // Whether values of the type contain pointers
	TypeFlagStub                             // Whether the descriptor is still under construction
	TypeFlagGeneric                          // Whether the type is a type parameter or an uninstantiated generic
)

// TypeDescriptor is the cached structural summary of a type.
//
// Descriptors for the same type are shared: two lookups of one type return the
// same pointer, so identity comparisons can use either the pointer or Hash.
// Element, key and signature descriptors are full descriptors, while Fields
// only carry shallow references to avoid expanding the whole type graph.
type TypeDescriptor struct {
	Type        reflect.Type        `json:"-"`                   // Reflect type (runtime backend)
	CodegenInfo *any                `json:"-"`                   // Backend specific type information (go/types backend)
	Hash        uint64              `json:"hash"`                // Identity hash
	Size        uintptr             `json:"size"`                // Byte size (0 for unsized categories)
	Name        string              `json:"name"`                // Display name (short package names)
	FullName    string              `json:"full_name"`           // Canonical name (full package paths)
	PkgPath     string              `json:"pkg_path,omitempty"`  // Package path of named types
	TypeName    string              `json:"type_name,omitempty"` // Unqualified name of named types
	Kind        reflect.Kind        `json:"kind"`                // Go kind of the type
	Category    Category            `json:"category"`            // Structural category
	Flags       TypeFlag            `json:"flags"`               // Type flags
	Fields      []FieldDescriptor   `json:"fields,omitempty"`    // Fields (struct) or variants (union)
	Elem        *TypeDescriptor     `json:"-"`                   // Element for pointer, optional, collection and vector types
	ElemHash    uint64              `json:"elem_hash,omitempty"` // Identity hash of Elem
	Key         *TypeDescriptor     `json:"-"`                   // Key type of maps
	Len         int                 `json:"len,omitempty"`       // Length of arrays
	ChanDir     reflect.ChanDir     `json:"chan_dir,omitempty"`  // Direction of channel types
	Signature   *FunctionDescriptor `json:"-"`                   // Signature of function types (nil if it cannot be reflected)

	resolver  DeclarationResolver
	decls     map[string]*Declaration
	functions map[string]*functionEntry
}

type functionEntry struct {
	fn  *FunctionDescriptor
	err error
}

// TypeRef is a shallow reference to a type. It carries identity, name, size
// and category but never a recursively expanded field list. Use
// TypeDescriptor.Resolve to obtain the full descriptor.
type TypeRef struct {
	Type        reflect.Type `json:"-"`
	CodegenInfo *any         `json:"-"`
	Hash        uint64       `json:"hash"`
	Name        string       `json:"name"`
	FullName    string       `json:"full_name"`
	Size        uintptr      `json:"size"`
	Category    Category     `json:"category"`
	Flags       TypeFlag     `json:"flags"`
	ElemHash    uint64       `json:"elem_hash,omitempty"`
}

// FieldDescriptor describes one struct field or union variant.
type FieldDescriptor struct {
	Name     string            `json:"name"`
	Index    int               `json:"index"`
	Offset   uintptr           `json:"offset"`
	Embedded bool              `json:"embedded,omitempty"`
	Exported bool              `json:"exported"`
	Tag      reflect.StructTag `json:"tag,omitempty"`
	Type     TypeRef           `json:"type"`
	Owner    TypeRef           `json:"owner"`
}

// DeclarationKind classifies a named declaration of a type.
type DeclarationKind uint8

const (
	DeclarationField DeclarationKind = iota
	DeclarationMethod
	DeclarationVariant
)

func (k DeclarationKind) String() string {
	switch k {
	case DeclarationField:
		return "field"
	case DeclarationMethod:
		return "method"
	case DeclarationVariant:
		return "variant"
	default:
		return fmt.Sprintf("declaration(%d)", uint8(k))
	}
}

// Declaration is a single named member of a type, returned by lazy lookups.
type Declaration struct {
	Name            string           `json:"name"`
	Kind            DeclarationKind  `json:"kind"`
	Field           *FieldDescriptor `json:"field,omitempty"` // fields and variants
	PointerReceiver bool             `json:"pointer_receiver,omitempty"`
	Owner           TypeRef          `json:"owner"`
}

// DeclarationResolver performs the lazy lookups of a descriptor. Each backend
// (reflection, go/types) provides its own resolver.
type DeclarationResolver interface {
	DeclarationNames(td *TypeDescriptor) []string
	LookupDeclaration(td *TypeDescriptor, name string) (*Declaration, error)
	LookupFunction(td *TypeDescriptor, name string) (*FunctionDescriptor, error)
	Resolve(ref TypeRef) (*TypeDescriptor, error)
}

// Ref returns a shallow reference to the descriptor.
func (td *TypeDescriptor) Ref() TypeRef {
	return TypeRef{
		Type:        td.Type,
		CodegenInfo: td.CodegenInfo,
		Hash:        td.Hash,
		Name:        td.Name,
		FullName:    td.FullName,
		Size:        td.Size,
		Category:    td.Category,
		Flags:       td.Flags &^ TypeFlagStub,
		ElemHash:    td.ElemHash,
	}
}

// SetResolver attaches the backend resolver used by the lazy lookups.
func (td *TypeDescriptor) SetResolver(r DeclarationResolver) {
	td.resolver = r
}

// IsStub reports whether the descriptor is still being populated.
func (td *TypeDescriptor) IsStub() bool {
	return td.Flags&TypeFlagStub != 0
}

// IsPointerTo reports whether td is a pointer to the type identified by hash.
func (td *TypeDescriptor) IsPointerTo(hash uint64) bool {
	return td.Category == CategoryPointer && td.ElemHash == hash
}

// FieldNames returns the ordered field (or variant) names.
func (td *TypeDescriptor) FieldNames() []string {
	names := make([]string, len(td.Fields))
	for i := range td.Fields {
		names[i] = td.Fields[i].Name
	}
	return names
}

// Field returns the field with the given name, if present.
func (td *TypeDescriptor) Field(name string) (*FieldDescriptor, bool) {
	for i := range td.Fields {
		if td.Fields[i].Name == name {
			return &td.Fields[i], true
		}
	}
	return nil, false
}

// DeclarationNames lists the names of all fields, variants and methods
// without building any descriptors for them.
func (td *TypeDescriptor) DeclarationNames() []string {
	if td.resolver == nil {
		return td.FieldNames()
	}
	return td.resolver.DeclarationNames(td)
}

// GetDeclaration looks up a single declaration by name. Only the matching
// entry is processed.
func (td *TypeDescriptor) GetDeclaration(name string) (*Declaration, error) {
	if td.resolver == nil {
		return nil, fmt.Errorf("%s.%s: %w", td.Name, name, vtutils.ErrDeclarationNotFound)
	}
	return td.resolver.LookupDeclaration(td, name)
}

// GetFunction returns the descriptor of the named method. Methods whose
// signature cannot be reflected yield vtutils.ErrUnsupportedType.
func (td *TypeDescriptor) GetFunction(name string) (*FunctionDescriptor, error) {
	if td.resolver == nil {
		return nil, fmt.Errorf("%s.%s: %w", td.Name, name, vtutils.ErrDeclarationNotFound)
	}
	return td.resolver.LookupFunction(td, name)
}

// Resolve re-enters the descriptor builder for a shallow reference.
func (td *TypeDescriptor) Resolve(ref TypeRef) (*TypeDescriptor, error) {
	if td.resolver == nil {
		return nil, fmt.Errorf("%s: %w", ref.Name, vtutils.ErrUnsupportedType)
	}
	return td.resolver.Resolve(ref)
}

// LookupMemo returns a memoized lazy lookup result. Resolvers call it while
// holding their own lock.
func (td *TypeDescriptor) LookupMemo(name string) (*FunctionDescriptor, bool, error) {
	entry, ok := td.functions[name]
	if !ok {
		return nil, false, nil
	}
	return entry.fn, true, entry.err
}

// StoreMemo memoizes a lazy function lookup result.
func (td *TypeDescriptor) StoreMemo(name string, fn *FunctionDescriptor, err error) {
	if td.functions == nil {
		td.functions = make(map[string]*functionEntry)
	}
	td.functions[name] = &functionEntry{fn: fn, err: err}
}

// DeclarationMemo returns a memoized declaration lookup result.
func (td *TypeDescriptor) DeclarationMemo(name string) (*Declaration, bool) {
	decl, ok := td.decls[name]
	return decl, ok
}

// StoreDeclaration memoizes a declaration lookup result.
func (td *TypeDescriptor) StoreDeclaration(name string, decl *Declaration) {
	if td.decls == nil {
		td.decls = make(map[string]*Declaration)
	}
	td.decls[name] = decl
}

// FunctionCategory classifies function descriptors.
type FunctionCategory uint8

const (
	FunctionFree FunctionCategory = iota
	FunctionMethod
	FunctionGenericConstructor
)

func (c FunctionCategory) String() string {
	switch c {
	case FunctionFree:
		return "function"
	case FunctionMethod:
		return "method"
	case FunctionGenericConstructor:
		return "generic"
	default:
		return fmt.Sprintf("function(%d)", uint8(c))
	}
}

// ParameterDescriptor describes one parameter or result of a function.
type ParameterDescriptor struct {
	Name            string          `json:"name,omitempty"`
	Type            *TypeDescriptor `json:"type"`
	NoAlias         bool            `json:"no_alias,omitempty"`          // value cannot alias caller memory
	CompileTimeOnly bool            `json:"compile_time_only,omitempty"` // type parameter typed
	Receiver        bool            `json:"receiver,omitempty"`          // method receiver ("self")
}

// FunctionDescriptor is the cached structural summary of a function type or method.
// For methods Params[0] is the receiver with its declared type (T for value
// receivers, *T for pointer receivers).
type FunctionDescriptor struct {
	Type        reflect.Type          `json:"-"`
	CodegenInfo *any                  `json:"-"`
	Hash        uint64                `json:"hash"`
	Name        string                `json:"name"`
	Category    FunctionCategory      `json:"category"`
	Owner       *TypeRef              `json:"owner,omitempty"`
	Params      []ParameterDescriptor `json:"params"`
	Results     []ParameterDescriptor `json:"results"`
	Return      *TypeDescriptor       `json:"-"`
	Variadic    bool                  `json:"variadic,omitempty"`
}

// Receiver returns the receiver parameter of a method, or nil.
func (fd *FunctionDescriptor) Receiver() *ParameterDescriptor {
	if len(fd.Params) > 0 && fd.Params[0].Receiver {
		return &fd.Params[0]
	}
	return nil
}

// Arguments returns the parameters without the receiver.
func (fd *FunctionDescriptor) Arguments() []ParameterDescriptor {
	if fd.Receiver() != nil {
		return fd.Params[1:]
	}
	return fd.Params
}

func (fd *FunctionDescriptor) String() string {
	return FormatFunction(fd, FormatOptions{})
}
