// Copyright (c) 2025 pk910
// SPDX-License-Identifier: Apache-2.0
// This file is part of the dynamic-vtable library.

package vttypes

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/pk910/dynamic-vtable/vtutils"
)

type methodKey struct {
	owner reflect.Type
	name  string
}

type tupleKey string

type voidKey struct{}

// TypeCache manages cached type and function descriptors built with reflection.
//
// The cache is append-only for the lifetime of a session. A descriptor is
// inserted as a stub before its fields, elements or signature are built, so a
// recursive reference to a type that is under construction resolves to the
// stub instead of re-entering the builder. This is what makes self-referential
// and mutually referential type graphs terminate.
type TypeCache struct {
	mutex       sync.RWMutex
	descriptors map[reflect.Type]*TypeDescriptor
	functions   map[reflect.Type]*FunctionDescriptor
	unsupported map[reflect.Type]error
	tuples      map[tupleKey]*TypeDescriptor
	identities  *IdentityTable[any]
	void        *TypeDescriptor
	session     uint64
	logCb       func(format string, args ...any)
}

// NewTypeCache creates a new type cache. logCb receives verbose build traces
// and may be nil.
func NewTypeCache(logCb func(format string, args ...any)) *TypeCache {
	tc := &TypeCache{
		logCb: logCb,
	}
	tc.reset()
	return tc
}

func (tc *TypeCache) reset() {
	tc.session++
	tc.descriptors = make(map[reflect.Type]*TypeDescriptor)
	tc.functions = make(map[reflect.Type]*FunctionDescriptor)
	tc.unsupported = make(map[reflect.Type]error)
	tc.tuples = make(map[tupleKey]*TypeDescriptor)
	tc.identities = NewIdentityTable[any]()
	tc.void = &TypeDescriptor{
		Hash:     tc.identities.Get(voidKey{}, func() string { return "void" }),
		Name:     "void",
		FullName: "void",
		Kind:     reflect.Invalid,
		Category: CategoryVoid,
	}
}

func (tc *TypeCache) logf(format string, args ...any) {
	if tc.logCb != nil {
		tc.logCb(format, args...)
	}
}

// GetTypeDescriptor returns the cached descriptor for t, building it if necessary.
//
// Calling it twice for the same type returns the same descriptor. Types that
// cannot be fully reflected (opaque pointers, interfaces) still produce leaf
// descriptors; only a nil type is rejected.
//
// Example:
//
//	desc, err := cache.GetTypeDescriptor(reflect.TypeOf(MyStruct{}))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Printf("%s: %d fields, %d bytes\n", desc.Name, len(desc.Fields), desc.Size)
func (tc *TypeCache) GetTypeDescriptor(t reflect.Type) (*TypeDescriptor, error) {
	if t == nil {
		return nil, fmt.Errorf("cannot describe nil type: %w", vtutils.ErrUnsupportedType)
	}

	// Stubs only exist while the write lock is held, so readers never observe them.
	tc.mutex.RLock()
	if desc, exists := tc.descriptors[t]; exists {
		tc.mutex.RUnlock()
		return desc, nil
	}
	tc.mutex.RUnlock()

	tc.mutex.Lock()
	defer tc.mutex.Unlock()

	return tc.getTypeDescriptor(t), nil
}

// GetFunctionDescriptor returns the cached descriptor for a function type.
// Signatures with erased (empty interface) parameters yield
// vtutils.ErrUnsupportedType; callers should treat that as "cannot reflect
// this signature", not as a hard failure.
func (tc *TypeCache) GetFunctionDescriptor(fnType reflect.Type) (*FunctionDescriptor, error) {
	if fnType == nil || fnType.Kind() != reflect.Func {
		return nil, fmt.Errorf("%v is not a function type: %w", fnType, vtutils.ErrUnsupportedType)
	}

	tc.mutex.RLock()
	if fd, exists := tc.functions[fnType]; exists {
		tc.mutex.RUnlock()
		return fd, nil
	}
	tc.mutex.RUnlock()

	tc.mutex.Lock()
	defer tc.mutex.Unlock()

	return tc.getFunctionDescriptor(fnType)
}

// Void returns the descriptor used for functions without results.
func (tc *TypeCache) Void() *TypeDescriptor {
	return tc.void
}

// getTypeDescriptor builds or returns the descriptor for t. The caller must
// hold the write lock.
func (tc *TypeCache) getTypeDescriptor(t reflect.Type) *TypeDescriptor {
	if desc, exists := tc.descriptors[t]; exists {
		if desc.IsStub() {
			tc.logf("vttypes: cycle on %s resolved to stub", desc.Name)
		}
		return desc
	}

	category, elemType := categorize(t)
	desc := tc.newDescriptor(t, category, elemType)
	desc.Flags |= TypeFlagStub
	tc.descriptors[t] = desc

	tc.logf("vttypes: building %s descriptor for %s", category, desc.Name)

	switch category {
	case CategoryStruct:
		tc.buildFields(desc, t)
	case CategoryUnion:
		if variants, ok := unionVariantsType(t); ok {
			tc.buildVariants(desc, variants)
		}
	case CategoryPointer, CategoryOptional, CategoryVector:
		desc.Elem = tc.getTypeDescriptor(elemType)
	case CategoryCollection:
		if t.Kind() == reflect.Map {
			desc.Key = tc.getTypeDescriptor(t.Key())
		}
		desc.Elem = tc.getTypeDescriptor(elemType)
	case CategoryFunction:
		sig, err := tc.getFunctionDescriptor(t)
		if err != nil {
			tc.logf("vttypes: signature of %s not reflected: %v", desc.Name, err)
		} else {
			desc.Signature = sig
		}
	case CategoryOther:
		if elemType != nil {
			desc.Elem = tc.getTypeDescriptor(elemType)
		}
	}

	desc.Flags &^= TypeFlagStub
	return desc
}

// categorize maps a reflect type to its structural category and, for
// categories wrapping another type, the element type.
func categorize(t reflect.Type) (Category, reflect.Type) {
	if _, ok := unionVariantsType(t); ok {
		return CategoryUnion, nil
	}
	if elem, ok := optionalValueType(t); ok {
		return CategoryOptional, elem
	}

	switch t.Kind() {
	case reflect.Struct:
		return CategoryStruct, nil
	case reflect.Pointer:
		return CategoryPointer, t.Elem()
	case reflect.Slice, reflect.Map:
		return CategoryCollection, t.Elem()
	case reflect.Array:
		return CategoryVector, t.Elem()
	case reflect.UnsafePointer, reflect.Interface:
		return CategoryOpaque, nil
	case reflect.Func:
		return CategoryFunction, nil
	case reflect.Bool, reflect.String, reflect.Uintptr,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64, reflect.Complex64, reflect.Complex128:
		return CategoryPrimitive, nil
	case reflect.Chan:
		return CategoryOther, t.Elem()
	default:
		return CategoryInvalid, nil
	}
}

// newDescriptor computes the intrinsic shape of t without visiting any
// nested type except for identity hashing.
func (tc *TypeCache) newDescriptor(t reflect.Type, category Category, elemType reflect.Type) *TypeDescriptor {
	desc := &TypeDescriptor{
		Type:     t,
		Hash:     tc.identity(t),
		Size:     t.Size(),
		Name:     t.String(),
		FullName: canonicalName(t),
		Kind:     t.Kind(),
		Category: category,
		resolver: tc,
	}

	if t.Name() != "" {
		desc.Flags |= TypeFlagNamed
		desc.PkgPath = t.PkgPath()
		desc.TypeName = t.Name()
	}
	if t.Kind() == reflect.Interface && t.NumMethod() == 0 {
		desc.Flags |= TypeFlagErased
	}
	if hasPointers(t) {
		desc.Flags |= TypeFlagHasPointers
	}
	if elemType != nil {
		desc.ElemHash = tc.identity(elemType)
	}

	switch t.Kind() {
	case reflect.Array:
		desc.Len = t.Len()
	case reflect.Chan:
		desc.ChanDir = t.ChanDir()
	}

	return desc
}

func (tc *TypeCache) identity(t reflect.Type) uint64 {
	return tc.identities.Get(t, func() string { return canonicalName(t) })
}

// typeRef returns a shallow reference to t. It never builds a descriptor.
func (tc *TypeCache) typeRef(t reflect.Type) TypeRef {
	if desc, exists := tc.descriptors[t]; exists {
		return desc.Ref()
	}
	category, elemType := categorize(t)
	return tc.newDescriptor(t, category, elemType).Ref()
}

func (tc *TypeCache) buildFields(desc *TypeDescriptor, t reflect.Type) {
	owner := desc.Ref()
	desc.Fields = make([]FieldDescriptor, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		desc.Fields[i] = FieldDescriptor{
			Name:     field.Name,
			Index:    i,
			Offset:   field.Offset,
			Embedded: field.Anonymous,
			Exported: field.IsExported(),
			Tag:      field.Tag,
			Type:     tc.typeRef(field.Type),
			Owner:    owner,
		}
	}
}

// buildVariants records the variants of a union carrier. Variant order is
// the field order of the variant descriptor struct.
func (tc *TypeCache) buildVariants(desc *TypeDescriptor, variants reflect.Type) {
	owner := desc.Ref()
	desc.Fields = make([]FieldDescriptor, variants.NumField())
	for i := 0; i < variants.NumField(); i++ {
		field := variants.Field(i)
		desc.Fields[i] = FieldDescriptor{
			Name:     field.Name,
			Index:    i,
			Exported: field.IsExported(),
			Tag:      field.Tag,
			Type:     tc.typeRef(field.Type),
			Owner:    owner,
		}
	}
}

func isErased(t reflect.Type) bool {
	return t.Kind() == reflect.Interface && t.NumMethod() == 0
}

// checkParameters rejects signatures with erased parameters before any
// descriptor is built, so a failed signature never leaves partial state.
func checkParameters(fnType reflect.Type, first int, name string) error {
	for i := first; i < fnType.NumIn(); i++ {
		if isErased(fnType.In(i)) {
			return fmt.Errorf("parameter %d of %s has erased type %s: %w", i-first, name, fnType.In(i), vtutils.ErrUnsupportedType)
		}
	}
	return nil
}

// getFunctionDescriptor builds or returns the descriptor for a function
// type. The caller must hold the write lock.
func (tc *TypeCache) getFunctionDescriptor(fnType reflect.Type) (*FunctionDescriptor, error) {
	if fd, exists := tc.functions[fnType]; exists {
		return fd, nil
	}
	if err, exists := tc.unsupported[fnType]; exists {
		return nil, err
	}

	if err := checkParameters(fnType, 0, fnType.String()); err != nil {
		tc.unsupported[fnType] = err
		return nil, err
	}

	fd := &FunctionDescriptor{
		Type:     fnType,
		Hash:     tc.identity(fnType),
		Name:     fnType.Name(),
		Category: FunctionFree,
		Variadic: fnType.IsVariadic(),
	}
	tc.functions[fnType] = fd

	fd.Params = make([]ParameterDescriptor, fnType.NumIn())
	for i := 0; i < fnType.NumIn(); i++ {
		fd.Params[i] = tc.parameter(fnType.In(i))
	}
	tc.buildResults(fd, fnType)

	return fd, nil
}

func (tc *TypeCache) parameter(t reflect.Type) ParameterDescriptor {
	return ParameterDescriptor{
		Type:    tc.getTypeDescriptor(t),
		NoAlias: !hasPointers(t),
	}
}

func (tc *TypeCache) buildResults(fd *FunctionDescriptor, fnType reflect.Type) {
	fd.Results = make([]ParameterDescriptor, fnType.NumOut())
	for i := 0; i < fnType.NumOut(); i++ {
		fd.Results[i] = tc.parameter(fnType.Out(i))
	}

	switch len(fd.Results) {
	case 0:
		fd.Return = tc.void
	case 1:
		fd.Return = fd.Results[0].Type
	default:
		fd.Return = tc.tupleDescriptor(fd.Results)
	}
}

// tupleDescriptor returns the synthetic descriptor for a multi-value result.
func (tc *TypeCache) tupleDescriptor(results []ParameterDescriptor) *TypeDescriptor {
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

	key := tupleKey(fullName)
	if desc, exists := tc.tuples[key]; exists {
		return desc
	}

	desc := &TypeDescriptor{
		Hash:     tc.identities.Get(key, func() string { return fullName }),
		Name:     name,
		FullName: fullName,
		Kind:     reflect.Invalid,
		Category: CategoryOther,
	}
	tc.tuples[key] = desc
	return desc
}

// methodOwner returns the descriptor whose method set is searched for td.
// Unnamed pointers forward to their element type.
func methodOwner(td *TypeDescriptor) *TypeDescriptor {
	if td.Category == CategoryPointer && td.Flags&TypeFlagNamed == 0 && td.Elem != nil {
		return td.Elem
	}
	return td
}

// buildMethod builds the descriptor of a method. Params[0] is the receiver,
// typed as declared: T for value receivers, *T for pointer receivers.
// Interface methods get an implicit T receiver.
func (tc *TypeCache) buildMethod(owner *TypeDescriptor, name string) (*FunctionDescriptor, error) {
	t := owner.Type
	var (
		method   reflect.Method
		found    bool
		recvType reflect.Type
		first    int
	)

	if t.Kind() == reflect.Interface {
		method, found = t.MethodByName(name)
		recvType = t
		first = 0
	} else if t.Kind() != reflect.Pointer {
		ptrType := reflect.PointerTo(t)
		method, found = ptrType.MethodByName(name)
		recvType = ptrType
		if _, valueRecv := t.MethodByName(name); valueRecv {
			recvType = t
		}
		first = 1
	} else {
		method, found = t.MethodByName(name)
		recvType = t
		first = 1
	}

	if !found {
		return nil, fmt.Errorf("%s has no method %s: %w", owner.Name, name, vtutils.ErrDeclarationNotFound)
	}

	qualified := owner.Name + "." + name
	if err := checkParameters(method.Type, first, qualified); err != nil {
		return nil, err
	}

	ownerRef := owner.Ref()
	fd := &FunctionDescriptor{
		Type:     method.Type,
		Name:     name,
		Category: FunctionMethod,
		Owner:    &ownerRef,
		Variadic: method.Type.IsVariadic(),
		Hash: tc.identities.Get(methodKey{owner: t, name: name}, func() string {
			return owner.FullName + "." + name + " " + canonicalName(method.Type)
		}),
	}

	fd.Params = make([]ParameterDescriptor, 0, method.Type.NumIn()+1-first)
	fd.Params = append(fd.Params, ParameterDescriptor{
		Type:     tc.getTypeDescriptor(recvType),
		NoAlias:  !hasPointers(recvType),
		Receiver: true,
	})
	for i := first; i < method.Type.NumIn(); i++ {
		fd.Params = append(fd.Params, tc.parameter(method.Type.In(i)))
	}
	tc.buildResults(fd, method.Type)

	tc.logf("vttypes: built method descriptor %s", FormatFunction(fd, FormatOptions{}))
	return fd, nil
}

// DeclarationNames lists fields (or variants) followed by method names.
func (tc *TypeCache) DeclarationNames(td *TypeDescriptor) []string {
	owner := methodOwner(td)
	names := owner.FieldNames()

	t := owner.Type
	if t == nil {
		return names
	}
	if t.Kind() != reflect.Interface && t.Kind() != reflect.Pointer {
		t = reflect.PointerTo(t)
	}
	for i := 0; i < t.NumMethod(); i++ {
		names = append(names, t.Method(i).Name)
	}
	return names
}

// LookupDeclaration finds a single field, variant or method by name.
func (tc *TypeCache) LookupDeclaration(td *TypeDescriptor, name string) (*Declaration, error) {
	tc.mutex.Lock()
	defer tc.mutex.Unlock()

	owner := methodOwner(td)
	if decl, ok := owner.DeclarationMemo(name); ok {
		return decl, nil
	}

	decl := tc.lookupDeclaration(owner, name)
	if decl == nil {
		return nil, fmt.Errorf("%s has no declaration %s: %w", td.Name, name, vtutils.ErrDeclarationNotFound)
	}

	owner.StoreDeclaration(name, decl)
	return decl, nil
}

func (tc *TypeCache) lookupDeclaration(owner *TypeDescriptor, name string) *Declaration {
	if field, ok := owner.Field(name); ok {
		kind := DeclarationField
		if owner.Category == CategoryUnion {
			kind = DeclarationVariant
		}
		return &Declaration{
			Name:  name,
			Kind:  kind,
			Field: field,
			Owner: owner.Ref(),
		}
	}

	t := owner.Type
	if t == nil {
		return nil
	}

	switch t.Kind() {
	case reflect.Interface, reflect.Pointer:
		if _, ok := t.MethodByName(name); ok {
			return &Declaration{Name: name, Kind: DeclarationMethod, Owner: owner.Ref(), PointerReceiver: t.Kind() == reflect.Pointer}
		}
	default:
		if _, ok := reflect.PointerTo(t).MethodByName(name); ok {
			_, valueRecv := t.MethodByName(name)
			return &Declaration{Name: name, Kind: DeclarationMethod, Owner: owner.Ref(), PointerReceiver: !valueRecv}
		}
	}

	return nil
}

// LookupFunction lazily builds the descriptor of a single method. Results,
// including failures, are memoized on the owning descriptor.
func (tc *TypeCache) LookupFunction(td *TypeDescriptor, name string) (*FunctionDescriptor, error) {
	tc.mutex.Lock()
	defer tc.mutex.Unlock()

	owner := methodOwner(td)
	if owner.Type == nil {
		return nil, fmt.Errorf("%s has no method %s: %w", td.Name, name, vtutils.ErrDeclarationNotFound)
	}
	if fd, ok, err := owner.LookupMemo(name); ok {
		return fd, err
	}

	fd, err := tc.buildMethod(owner, name)
	owner.StoreMemo(name, fd, err)
	return fd, err
}

// Resolve re-enters the builder for a shallow reference.
func (tc *TypeCache) Resolve(ref TypeRef) (*TypeDescriptor, error) {
	return tc.GetTypeDescriptor(ref.Type)
}

// GetAllTypes returns all types currently cached, in no particular order.
func (tc *TypeCache) GetAllTypes() []reflect.Type {
	tc.mutex.RLock()
	defer tc.mutex.RUnlock()

	types := make([]reflect.Type, 0, len(tc.descriptors))
	for t := range tc.descriptors {
		types = append(types, t)
	}
	return types
}

// Len returns the number of cached type descriptors.
func (tc *TypeCache) Len() int {
	tc.mutex.RLock()
	defer tc.mutex.RUnlock()

	return len(tc.descriptors)
}

// Session identifies the current cache session. It changes on every
// RemoveAllTypes, as identity hashes of the old session may be reassigned.
func (tc *TypeCache) Session() uint64 {
	tc.mutex.RLock()
	defer tc.mutex.RUnlock()

	return tc.session
}

// RemoveAllTypes clears the cache and starts a new session. Descriptors
// handed out before stay valid but are no longer shared with new lookups.
func (tc *TypeCache) RemoveAllTypes() {
	tc.mutex.Lock()
	defer tc.mutex.Unlock()

	tc.reset()
}
