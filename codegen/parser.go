// Copyright (c) 2025 pk910
// SPDX-License-Identifier: Apache-2.0
// This file is part of the dynamic-vtable library.

package codegen

import (
	"fmt"
	"go/constant"
	"go/token"
	"go/types"
	"reflect"
	"runtime"
	"sort"

	"golang.org/x/tools/go/types/typeutil"

	"github.com/pk910/dynamic-vtable/vttypes"
	"github.com/pk910/dynamic-vtable/vtutils"
)

const dynvtPkgPath = "github.com/pk910/dynamic-vtable"

// CodegenInfo is the backend specific payload of descriptors built by the
// Parser. It is stored in TypeDescriptor.CodegenInfo.
type CodegenInfo struct {
	Type types.Type
}

// GoType returns the go/types type of a descriptor built by the Parser.
func GoType(td *vttypes.TypeDescriptor) (types.Type, bool) {
	if td == nil || td.CodegenInfo == nil {
		return nil, false
	}
	info, ok := (*td.CodegenInfo).(*CodegenInfo)
	if !ok {
		return nil, false
	}
	return info.Type, true
}

// ParserOption configures a Parser.
type ParserOption func(*Parser)

// WithSizes sets the layout used for sizes and field offsets. The default is
// the gc layout of the host architecture.
func WithSizes(sizes types.Sizes) ParserOption {
	return func(p *Parser) {
		p.sizes = sizes
	}
}

// WithParserLogCb sets a callback receiving descriptor build logs.
func WithParserLogCb(logCb func(format string, args ...any)) ParserOption {
	return func(p *Parser) {
		p.logCb = logCb
	}
}

// Parser builds type descriptors from go/types. It mirrors the reflection
// cache: stub-then-fill for cycles, shallow field references and lazy
// method lookups. Descriptors are keyed by type identity, so every
// occurrence of an identical type shares one descriptor.
//
// A Parser is not safe for concurrent use.
type Parser struct {
	sizes       types.Sizes
	descriptors typeutil.Map // types.Type -> *vttypes.TypeDescriptor
	signatures  typeutil.Map // *types.Signature -> *vttypes.FunctionDescriptor
	unsupported typeutil.Map // *types.Signature -> error
	functions   map[*types.Func]*vttypes.FunctionDescriptor
	tuples      map[string]*vttypes.TypeDescriptor
	identities  *vttypes.IdentityTable[string]
	void        *vttypes.TypeDescriptor
	logCb       func(format string, args ...any)
}

// NewParser creates a new go/types descriptor parser.
func NewParser(opts ...ParserOption) *Parser {
	p := &Parser{
		functions:  map[*types.Func]*vttypes.FunctionDescriptor{},
		tuples:     map[string]*vttypes.TypeDescriptor{},
		identities: vttypes.NewIdentityTable[string](),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.sizes == nil {
		p.sizes = types.SizesFor("gc", runtime.GOARCH)
	}

	p.void = &vttypes.TypeDescriptor{
		Hash:     p.identities.Get("void", func() string { return "void" }),
		Name:     "void",
		FullName: "void",
		Kind:     reflect.Invalid,
		Category: vttypes.CategoryVoid,
	}
	p.void.SetResolver(p)

	return p
}

func (p *Parser) logf(format string, args ...any) {
	if p.logCb != nil {
		p.logCb(format, args...)
	}
}

// Void returns the descriptor used as return type of functions without results.
func (p *Parser) Void() *vttypes.TypeDescriptor {
	return p.void
}

// Len returns the number of cached type descriptors.
func (p *Parser) Len() int {
	return p.descriptors.Len()
}

// GetTypeDescriptor returns the descriptor of t, building it if needed.
func (p *Parser) GetTypeDescriptor(t types.Type) (*vttypes.TypeDescriptor, error) {
	if t == nil {
		return nil, fmt.Errorf("nil type: %w", vtutils.ErrUnsupportedType)
	}
	return p.getTypeDescriptor(t), nil
}

// GetFunctionDescriptor returns the descriptor of a declared function or
// method. Generic free functions are categorized as generic constructors.
func (p *Parser) GetFunctionDescriptor(fn *types.Func) (*vttypes.FunctionDescriptor, error) {
	if fn == nil {
		return nil, fmt.Errorf("nil function: %w", vtutils.ErrUnsupportedType)
	}

	sig := fn.Type().(*types.Signature)
	if recv := sig.Recv(); recv != nil {
		recvType := recv.Type()
		if ptr, ok := recvType.(*types.Pointer); ok {
			recvType = ptr.Elem()
		}
		owner := p.getTypeDescriptor(recvType)
		return owner.GetFunction(fn.Name())
	}

	if fd, ok := p.functions[fn]; ok {
		return fd, nil
	}

	base, err := p.signatureDescriptor(sig)
	if err != nil {
		return nil, fmt.Errorf("function %s: %w", fn.Name(), err)
	}

	fd := *base
	fd.Name = fn.Name()
	fd.Hash = p.identities.Get("func:"+fn.FullName(), func() string {
		return fn.FullName() + " " + types.TypeString(sig, nil)
	})
	if sig.TypeParams().Len() > 0 {
		fd.Category = vttypes.FunctionGenericConstructor
	}
	p.functions[fn] = &fd

	return &fd, nil
}

// GetSignatureDescriptor returns the descriptor of a function type.
func (p *Parser) GetSignatureDescriptor(sig *types.Signature) (*vttypes.FunctionDescriptor, error) {
	return p.signatureDescriptor(sig)
}

func (p *Parser) getTypeDescriptor(t types.Type) *vttypes.TypeDescriptor {
	t = types.Unalias(t)

	if cached := p.descriptors.At(t); cached != nil {
		desc := cached.(*vttypes.TypeDescriptor)
		if desc.IsStub() {
			p.logf("codegen: cycle on %s resolved to stub", desc.Name)
		}
		return desc
	}

	category, elemType := categorize(t)
	desc := p.newDescriptor(t, category, elemType)
	desc.Flags |= vttypes.TypeFlagStub
	p.descriptors.Set(t, desc)

	p.logf("codegen: building %s descriptor for %s", category, desc.Name)

	switch category {
	case vttypes.CategoryStruct:
		p.buildFields(desc, t.Underlying().(*types.Struct))
	case vttypes.CategoryUnion:
		if variants, ok := unionVariants(t); ok {
			p.buildVariants(desc, variants)
		}
	case vttypes.CategoryEnum:
		p.buildEnumerators(desc, t.(*types.Named))
	case vttypes.CategoryPointer, vttypes.CategoryOptional, vttypes.CategoryVector:
		desc.Elem = p.getTypeDescriptor(elemType)
	case vttypes.CategoryCollection:
		if m, ok := t.Underlying().(*types.Map); ok {
			desc.Key = p.getTypeDescriptor(m.Key())
		}
		desc.Elem = p.getTypeDescriptor(elemType)
	case vttypes.CategoryFunction:
		sig, err := p.signatureDescriptor(t.Underlying().(*types.Signature))
		if err != nil {
			p.logf("codegen: signature of %s not reflected: %v", desc.Name, err)
		} else {
			desc.Signature = sig
		}
	case vttypes.CategoryOther:
		if elemType != nil {
			desc.Elem = p.getTypeDescriptor(elemType)
		}
	}

	desc.Flags &^= vttypes.TypeFlagStub
	return desc
}

// categorize maps a go/types type to its structural category and, for
// categories wrapping another type, the element type.
func categorize(t types.Type) (vttypes.Category, types.Type) {
	if _, ok := t.(*types.TypeParam); ok {
		return vttypes.CategoryOther, nil
	}
	if named, ok := t.(*types.Named); ok {
		if _, ok := unionVariants(named); ok {
			return vttypes.CategoryUnion, nil
		}
		if elem, ok := optionalValue(named); ok {
			return vttypes.CategoryOptional, elem
		}
		if isEnum(named) {
			return vttypes.CategoryEnum, nil
		}
	}

	switch u := t.Underlying().(type) {
	case *types.Struct:
		return vttypes.CategoryStruct, nil
	case *types.Pointer:
		return vttypes.CategoryPointer, u.Elem()
	case *types.Slice:
		return vttypes.CategoryCollection, u.Elem()
	case *types.Map:
		return vttypes.CategoryCollection, u.Elem()
	case *types.Array:
		return vttypes.CategoryVector, u.Elem()
	case *types.Interface:
		return vttypes.CategoryOpaque, nil
	case *types.Signature:
		return vttypes.CategoryFunction, nil
	case *types.Chan:
		return vttypes.CategoryOther, u.Elem()
	case *types.Basic:
		if u.Kind() == types.UnsafePointer {
			return vttypes.CategoryOpaque, nil
		}
		return vttypes.CategoryPrimitive, nil
	default:
		return vttypes.CategoryOther, nil
	}
}

func unionVariants(t types.Type) (*types.Struct, bool) {
	named, ok := t.(*types.Named)
	if !ok || named.Obj().Pkg() == nil || named.Obj().Pkg().Path() != dynvtPkgPath || named.Obj().Name() != "Union" {
		return nil, false
	}
	if named.TypeArgs().Len() != 1 {
		return nil, false
	}
	variants, ok := named.TypeArgs().At(0).Underlying().(*types.Struct)
	return variants, ok
}

func optionalValue(named *types.Named) (types.Type, bool) {
	obj := named.Obj()
	if obj.Pkg() == nil || named.TypeArgs().Len() != 1 {
		return nil, false
	}
	switch {
	case obj.Pkg().Path() == dynvtPkgPath && obj.Name() == "Optional":
		return named.TypeArgs().At(0), true
	case obj.Pkg().Path() == "database/sql" && obj.Name() == "Null":
		return named.TypeArgs().At(0), true
	}
	return nil, false
}

// isEnum reports whether named is an integer type with at least one
// constant of exactly that type declared in its package.
func isEnum(named *types.Named) bool {
	basic, ok := named.Underlying().(*types.Basic)
	if !ok || basic.Info()&types.IsInteger == 0 || named.Obj().Pkg() == nil {
		return false
	}
	return len(enumerators(named)) > 0
}

func enumerators(named *types.Named) []*types.Const {
	scope := named.Obj().Pkg().Scope()
	consts := []*types.Const{}
	for _, name := range scope.Names() {
		if c, ok := scope.Lookup(name).(*types.Const); ok && types.Identical(c.Type(), named) {
			consts = append(consts, c)
		}
	}
	sort.SliceStable(consts, func(i, j int) bool {
		return constant.Compare(consts[i].Val(), token.LSS, consts[j].Val())
	})
	return consts
}

func basicKind(b *types.Basic) reflect.Kind {
	switch b.Kind() {
	case types.Bool, types.UntypedBool:
		return reflect.Bool
	case types.Int, types.UntypedInt:
		return reflect.Int
	case types.Int8:
		return reflect.Int8
	case types.Int16:
		return reflect.Int16
	case types.Int32, types.UntypedRune:
		return reflect.Int32
	case types.Int64:
		return reflect.Int64
	case types.Uint:
		return reflect.Uint
	case types.Uint8:
		return reflect.Uint8
	case types.Uint16:
		return reflect.Uint16
	case types.Uint32:
		return reflect.Uint32
	case types.Uint64:
		return reflect.Uint64
	case types.Uintptr:
		return reflect.Uintptr
	case types.Float32:
		return reflect.Float32
	case types.Float64, types.UntypedFloat:
		return reflect.Float64
	case types.Complex64:
		return reflect.Complex64
	case types.Complex128, types.UntypedComplex:
		return reflect.Complex128
	case types.String, types.UntypedString:
		return reflect.String
	case types.UnsafePointer:
		return reflect.UnsafePointer
	default:
		return reflect.Invalid
	}
}

func kindOf(t types.Type) reflect.Kind {
	if _, ok := t.(*types.TypeParam); ok {
		return reflect.Invalid
	}
	switch u := t.Underlying().(type) {
	case *types.Basic:
		return basicKind(u)
	case *types.Struct:
		return reflect.Struct
	case *types.Pointer:
		return reflect.Pointer
	case *types.Slice:
		return reflect.Slice
	case *types.Map:
		return reflect.Map
	case *types.Array:
		return reflect.Array
	case *types.Interface:
		return reflect.Interface
	case *types.Signature:
		return reflect.Func
	case *types.Chan:
		return reflect.Chan
	default:
		return reflect.Invalid
	}
}

// isGeneric reports whether t is a type parameter or an uninstantiated
// generic type.
func isGeneric(t types.Type) bool {
	switch tt := t.(type) {
	case *types.TypeParam:
		return true
	case *types.Named:
		return tt.TypeParams().Len() > 0 && tt.TypeArgs().Len() == 0
	}
	return false
}

// sizeDependsOnTypeParam reports whether the layout of t depends on a type
// parameter. types.Sizes must not be asked for such types.
func sizeDependsOnTypeParam(t types.Type) bool {
	if _, ok := t.(*types.TypeParam); ok {
		return true
	}
	switch u := t.Underlying().(type) {
	case *types.Array:
		return sizeDependsOnTypeParam(u.Elem())
	case *types.Struct:
		for i := 0; i < u.NumFields(); i++ {
			if sizeDependsOnTypeParam(u.Field(i).Type()) {
				return true
			}
		}
	}
	return false
}

// hasPointers reports whether values of t contain pointers.
func hasPointers(t types.Type) bool {
	switch u := t.Underlying().(type) {
	case *types.Basic:
		return u.Kind() == types.String || u.Kind() == types.UnsafePointer
	case *types.Pointer, *types.Slice, *types.Map, *types.Chan, *types.Signature, *types.Interface:
		return true
	case *types.Array:
		return u.Len() > 0 && hasPointers(u.Elem())
	case *types.Struct:
		for i := 0; i < u.NumFields(); i++ {
			if hasPointers(u.Field(i).Type()) {
				return true
			}
		}
	}
	return false
}

func shortQualifier(pkg *types.Package) string {
	return pkg.Name()
}

// newDescriptor computes the intrinsic shape of t without visiting nested
// types except for identity hashing.
func (p *Parser) newDescriptor(t types.Type, category vttypes.Category, elemType types.Type) *vttypes.TypeDescriptor {
	var info any = &CodegenInfo{Type: t}
	desc := &vttypes.TypeDescriptor{
		CodegenInfo: &info,
		Hash:        p.identity(t),
		Name:        types.TypeString(t, shortQualifier),
		FullName:    types.TypeString(t, nil),
		Kind:        kindOf(t),
		Category:    category,
	}
	desc.SetResolver(p)

	switch tt := t.(type) {
	case *types.Named:
		desc.Flags |= vttypes.TypeFlagNamed
		desc.TypeName = tt.Obj().Name()
		if pkg := tt.Obj().Pkg(); pkg != nil {
			desc.PkgPath = pkg.Path()
		}
	case *types.Basic:
		desc.Flags |= vttypes.TypeFlagNamed
		desc.TypeName = tt.Name()
	}

	if iface, ok := t.Underlying().(*types.Interface); ok && iface.Empty() && !isGeneric(t) {
		desc.Flags |= vttypes.TypeFlagErased
	}
	if hasPointers(t) {
		desc.Flags |= vttypes.TypeFlagHasPointers
	}

	if isGeneric(t) {
		desc.Flags |= vttypes.TypeFlagGeneric
	} else if !sizeDependsOnTypeParam(t) {
		desc.Size = uintptr(p.sizes.Sizeof(t))
	}

	if elemType != nil {
		desc.ElemHash = p.identity(elemType)
	}
	if arr, ok := t.Underlying().(*types.Array); ok {
		desc.Len = int(arr.Len())
	}
	if ch, ok := t.Underlying().(*types.Chan); ok {
		switch ch.Dir() {
		case types.SendOnly:
			desc.ChanDir = reflect.SendDir
		case types.RecvOnly:
			desc.ChanDir = reflect.RecvDir
		default:
			desc.ChanDir = reflect.BothDir
		}
	}

	return desc
}

func (p *Parser) identity(t types.Type) uint64 {
	name := types.TypeString(types.Unalias(t), nil)
	return p.identities.Get(name, func() string { return name })
}

// typeRef returns a shallow reference to t. It never builds a descriptor.
func (p *Parser) typeRef(t types.Type) vttypes.TypeRef {
	t = types.Unalias(t)
	if cached := p.descriptors.At(t); cached != nil {
		return cached.(*vttypes.TypeDescriptor).Ref()
	}
	category, elemType := categorize(t)
	return p.newDescriptor(t, category, elemType).Ref()
}

func (p *Parser) buildFields(desc *vttypes.TypeDescriptor, st *types.Struct) {
	owner := desc.Ref()

	vars := make([]*types.Var, st.NumFields())
	for i := range vars {
		vars[i] = st.Field(i)
	}
	var offsets []int64
	if desc.Flags&vttypes.TypeFlagGeneric == 0 && !sizeDependsOnTypeParam(st) {
		offsets = p.sizes.Offsetsof(vars)
	}

	desc.Fields = make([]vttypes.FieldDescriptor, st.NumFields())
	for i, field := range vars {
		fd := vttypes.FieldDescriptor{
			Name:     field.Name(),
			Index:    i,
			Embedded: field.Embedded(),
			Exported: field.Exported(),
			Tag:      reflect.StructTag(st.Tag(i)),
			Type:     p.typeRef(field.Type()),
			Owner:    owner,
		}
		if offsets != nil {
			fd.Offset = uintptr(offsets[i])
		}
		desc.Fields[i] = fd
	}
}

func (p *Parser) buildVariants(desc *vttypes.TypeDescriptor, variants *types.Struct) {
	owner := desc.Ref()
	desc.Fields = make([]vttypes.FieldDescriptor, variants.NumFields())
	for i := 0; i < variants.NumFields(); i++ {
		field := variants.Field(i)
		desc.Fields[i] = vttypes.FieldDescriptor{
			Name:     field.Name(),
			Index:    i,
			Exported: field.Exported(),
			Tag:      reflect.StructTag(variants.Tag(i)),
			Type:     p.typeRef(field.Type()),
			Owner:    owner,
		}
	}
}

// buildEnumerators records the constants of an enum type as its variants,
// ordered by value.
func (p *Parser) buildEnumerators(desc *vttypes.TypeDescriptor, named *types.Named) {
	owner := desc.Ref()
	consts := enumerators(named)
	desc.Fields = make([]vttypes.FieldDescriptor, len(consts))
	for i, c := range consts {
		desc.Fields[i] = vttypes.FieldDescriptor{
			Name:     c.Name(),
			Index:    i,
			Exported: c.Exported(),
			Type:     owner,
			Owner:    owner,
		}
	}
}

// checkParameters rejects signatures with erased parameters before any
// descriptor is built.
func checkParameters(sig *types.Signature, name string) error {
	params := sig.Params()
	for i := 0; i < params.Len(); i++ {
		if iface, ok := params.At(i).Type().Underlying().(*types.Interface); ok && iface.Empty() && !isGeneric(params.At(i).Type()) {
			return fmt.Errorf("parameter %d of %s has erased type %s: %w", i, name, params.At(i).Type(), vtutils.ErrUnsupportedType)
		}
	}
	return nil
}

func (p *Parser) signatureDescriptor(sig *types.Signature) (*vttypes.FunctionDescriptor, error) {
	if cached := p.signatures.At(sig); cached != nil {
		return cached.(*vttypes.FunctionDescriptor), nil
	}
	if cached := p.unsupported.At(sig); cached != nil {
		return nil, cached.(error)
	}

	name := types.TypeString(sig, shortQualifier)
	if err := checkParameters(sig, name); err != nil {
		p.unsupported.Set(sig, err)
		return nil, err
	}

	fd := &vttypes.FunctionDescriptor{
		Hash:     p.identity(sig),
		Category: vttypes.FunctionFree,
		Variadic: sig.Variadic(),
	}
	var info any = &CodegenInfo{Type: sig}
	fd.CodegenInfo = &info
	p.signatures.Set(sig, fd)

	fd.Params = p.parameters(sig.Params())
	p.buildResults(fd, sig)

	return fd, nil
}

// parameters converts a parameter tuple. Type parameter typed parameters
// only exist at compile time.
func (p *Parser) parameters(tuple *types.Tuple) []vttypes.ParameterDescriptor {
	params := make([]vttypes.ParameterDescriptor, tuple.Len())
	for i := 0; i < tuple.Len(); i++ {
		v := tuple.At(i)
		params[i] = vttypes.ParameterDescriptor{
			Name:            v.Name(),
			Type:            p.getTypeDescriptor(v.Type()),
			NoAlias:         !hasPointers(v.Type()),
			CompileTimeOnly: isGeneric(v.Type()),
		}
	}
	return params
}

func (p *Parser) buildResults(fd *vttypes.FunctionDescriptor, sig *types.Signature) {
	fd.Results = p.parameters(sig.Results())

	switch len(fd.Results) {
	case 0:
		fd.Return = p.void
	case 1:
		fd.Return = fd.Results[0].Type
	default:
		fd.Return = p.tupleDescriptor(sig.Results(), fd.Results)
	}
}

func (p *Parser) tupleDescriptor(tuple *types.Tuple, results []vttypes.ParameterDescriptor) *vttypes.TypeDescriptor {
	name := "("
	fullName := "("
	for i, r := range results {
		if i > 0 {
			name += ", "
			fullName += ", "
		}
		name += r.Type.Name
		fullName += r.Type.FullName
	}
	name += ")"
	fullName += ")"

	if desc, ok := p.tuples[fullName]; ok {
		return desc
	}

	var info any = &CodegenInfo{Type: tuple}
	desc := &vttypes.TypeDescriptor{
		CodegenInfo: &info,
		Hash:        p.identities.Get("tuple:"+fullName, func() string { return fullName }),
		Name:        name,
		FullName:    fullName,
		Kind:        reflect.Invalid,
		Category:    vttypes.CategoryOther,
	}
	desc.SetResolver(p)
	p.tuples[fullName] = desc
	return desc
}

// methodOwner returns the descriptor whose method set is searched for td.
func methodOwner(td *vttypes.TypeDescriptor) *vttypes.TypeDescriptor {
	if td.Category == vttypes.CategoryPointer && td.Flags&vttypes.TypeFlagNamed == 0 && td.Elem != nil {
		return td.Elem
	}
	return td
}

// lookupMethod finds an exported method of owner. It reports whether the
// method belongs to the value method set.
func lookupMethod(owner types.Type, name string) (*types.Func, bool) {
	if !token.IsExported(name) {
		return nil, false
	}
	if _, isPtr := owner.Underlying().(*types.Pointer); isPtr {
		return nil, false
	}

	obj, _, _ := types.LookupFieldOrMethod(owner, true, nil, name)
	fn, ok := obj.(*types.Func)
	if !ok {
		return nil, false
	}
	return fn, types.NewMethodSet(owner).Lookup(nil, name) != nil
}

// buildMethod builds the descriptor of a method. Params[0] is the receiver,
// typed as the method set it belongs to: T when T's method set has the
// method, *T otherwise. Interface methods get an implicit T receiver.
func (p *Parser) buildMethod(owner *vttypes.TypeDescriptor, name string) (*vttypes.FunctionDescriptor, error) {
	t, ok := GoType(owner)
	if !ok {
		return nil, fmt.Errorf("%s has no method %s: %w", owner.Name, name, vtutils.ErrDeclarationNotFound)
	}

	fn, valueRecv := lookupMethod(t, name)
	if fn == nil {
		return nil, fmt.Errorf("%s has no method %s: %w", owner.Name, name, vtutils.ErrDeclarationNotFound)
	}

	sig := fn.Type().(*types.Signature)
	qualified := owner.Name + "." + name
	if err := checkParameters(sig, qualified); err != nil {
		return nil, err
	}

	var recvType types.Type = t
	if _, isIface := t.Underlying().(*types.Interface); !isIface && !valueRecv {
		recvType = types.NewPointer(t)
	}

	ownerRef := owner.Ref()
	fd := &vttypes.FunctionDescriptor{
		Name:     name,
		Category: vttypes.FunctionMethod,
		Owner:    &ownerRef,
		Variadic: sig.Variadic(),
		Hash: p.identities.Get("method:"+owner.FullName+"."+name, func() string {
			return owner.FullName + "." + name + " " + types.TypeString(sig, nil)
		}),
	}
	var info any = &CodegenInfo{Type: sig}
	fd.CodegenInfo = &info

	fd.Params = append([]vttypes.ParameterDescriptor{{
		Type:     p.getTypeDescriptor(recvType),
		NoAlias:  !hasPointers(recvType),
		Receiver: true,
	}}, p.parameters(sig.Params())...)
	p.buildResults(fd, sig)

	p.logf("codegen: built method descriptor %s", vttypes.FormatFunction(fd, vttypes.FormatOptions{}))
	return fd, nil
}

// DeclarationNames lists fields (or variants) followed by exported method
// names in method set order.
func (p *Parser) DeclarationNames(td *vttypes.TypeDescriptor) []string {
	owner := methodOwner(td)
	names := owner.FieldNames()

	t, ok := GoType(owner)
	if !ok {
		return names
	}
	if _, isPtr := t.Underlying().(*types.Pointer); isPtr {
		return names
	}

	var mset *types.MethodSet
	if types.IsInterface(t) {
		mset = types.NewMethodSet(t)
	} else {
		mset = types.NewMethodSet(types.NewPointer(t))
	}
	for i := 0; i < mset.Len(); i++ {
		if obj := mset.At(i).Obj(); obj.Exported() {
			names = append(names, obj.Name())
		}
	}
	return names
}

// LookupDeclaration finds a single field, variant or method by name.
func (p *Parser) LookupDeclaration(td *vttypes.TypeDescriptor, name string) (*vttypes.Declaration, error) {
	owner := methodOwner(td)
	if decl, ok := owner.DeclarationMemo(name); ok {
		return decl, nil
	}

	var decl *vttypes.Declaration
	if field, ok := owner.Field(name); ok {
		kind := vttypes.DeclarationField
		if owner.Category == vttypes.CategoryUnion || owner.Category == vttypes.CategoryEnum {
			kind = vttypes.DeclarationVariant
		}
		decl = &vttypes.Declaration{Name: name, Kind: kind, Field: field, Owner: owner.Ref()}
	} else if t, ok := GoType(owner); ok {
		if fn, valueRecv := lookupMethod(t, name); fn != nil {
			decl = &vttypes.Declaration{
				Name:            name,
				Kind:            vttypes.DeclarationMethod,
				Owner:           owner.Ref(),
				PointerReceiver: !valueRecv && !types.IsInterface(t),
			}
		}
	}

	if decl == nil {
		return nil, fmt.Errorf("%s has no declaration %s: %w", td.Name, name, vtutils.ErrDeclarationNotFound)
	}

	owner.StoreDeclaration(name, decl)
	return decl, nil
}

// LookupFunction lazily builds the descriptor of a single method. Results,
// including failures, are memoized on the owning descriptor.
func (p *Parser) LookupFunction(td *vttypes.TypeDescriptor, name string) (*vttypes.FunctionDescriptor, error) {
	owner := methodOwner(td)
	if fd, ok, err := owner.LookupMemo(name); ok {
		return fd, err
	}

	fd, err := p.buildMethod(owner, name)
	owner.StoreMemo(name, fd, err)
	return fd, err
}

// Resolve re-enters the builder for a shallow reference.
func (p *Parser) Resolve(ref vttypes.TypeRef) (*vttypes.TypeDescriptor, error) {
	if ref.CodegenInfo == nil {
		return nil, fmt.Errorf("%s: %w", ref.Name, vtutils.ErrUnsupportedType)
	}
	info, ok := (*ref.CodegenInfo).(*CodegenInfo)
	if !ok {
		return nil, fmt.Errorf("%s: %w", ref.Name, vtutils.ErrUnsupportedType)
	}
	return p.GetTypeDescriptor(info.Type)
}
