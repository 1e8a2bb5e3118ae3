// Package dynvt verifies that Go types structurally satisfy method contracts
// and synthesizes dispatch tables (structs of function values) bound to them.
//
// Copyright (c) 2025 pk910
// SPDX-License-Identifier: Apache-2.0
// This file is part of the dynamic-vtable library.
package dynvt

import (
	"errors"
	"fmt"
	"reflect"
	"sync"

	"github.com/pk910/dynamic-vtable/vttypes"
	"github.com/pk910/dynamic-vtable/vtutils"
)

// Re-exported sentinel errors.
var (
	ErrUnsupportedType     = vtutils.ErrUnsupportedType
	ErrDeclarationNotFound = vtutils.ErrDeclarationNotFound
	ErrNotAContract        = vtutils.ErrNotAContract
	ErrContractViolation   = vtutils.ErrContractViolation
	ErrSlotCollision       = vtutils.ErrSlotCollision
	ErrShapeMismatch       = vtutils.ErrShapeMismatch
	ErrContractStub        = vtutils.ErrContractStub
)

// DynVt is the reflection engine: it owns the descriptor cache and memoizes
// contract resolution, validation results and synthesized tables.
//
// The instance is safe for concurrent use. It's recommended to reuse the same
// DynVt instance across operations to benefit from caching.
//
// Example usage:
//
//	type Drawable struct{}
//
//	func (*Drawable) Draw() { panic(dynvt.ErrContractStub) }
//
//	dv := dynvt.NewDynVt()
//	vt, err := dv.Synthesize(reflect.TypeFor[Drawable](), reflect.TypeFor[Sprite]())
//	if err != nil {
//	    log.Fatal(err) // lists every missing or mismatched method
//	}
//	_, err = vt.Call("Draw", &sprite)
type DynVt struct {
	typeCache *vttypes.TypeCache

	mutex       sync.Mutex
	contracts   map[reflect.Type]*contractEntry
	validations map[validationKey][]vtutils.MethodMismatch
	tables      map[string]*VTable
	session     uint64

	// Verbose enables logging of descriptor builds, contract resolution and synthesis.
	Verbose bool

	logCb func(format string, args ...any)
}

type contractEntry struct {
	contract *Contract
	err      error
}

type validationKey struct {
	contract uint64
	impl     uint64
}

// NewDynVt creates a new engine instance.
//
// Example:
//
//	dv := dynvt.NewDynVt(dynvt.WithVerbose(), dynvt.WithLogCb(log.Printf))
func NewDynVt(opts ...DynVtOption) *DynVt {
	options := &DynVtOptions{}
	for _, opt := range opts {
		opt(options)
	}

	dv := &DynVt{
		contracts:   map[reflect.Type]*contractEntry{},
		validations: map[validationKey][]vtutils.MethodMismatch{},
		tables:      map[string]*VTable{},
		Verbose:     options.Verbose,
		logCb:       options.LogCb,
	}

	var cacheLog func(format string, args ...any)
	if dv.Verbose {
		cacheLog = dv.logf
	}
	dv.typeCache = vttypes.NewTypeCache(cacheLog)
	dv.session = dv.typeCache.Session()

	return dv
}

func (d *DynVt) logf(format string, args ...any) {
	if !d.Verbose {
		return
	}
	if d.logCb != nil {
		d.logCb(format, args...)
		return
	}
	fmt.Printf(format+"\n", args...)
}

// syncSession drops memoized contracts, validations and tables once the type
// cache started a new session. They are keyed by identity hashes, which a new
// session hands out again.
func (d *DynVt) syncSession() {
	session := d.typeCache.Session()

	d.mutex.Lock()
	defer d.mutex.Unlock()

	if d.session == session {
		return
	}
	d.session = session
	d.contracts = map[reflect.Type]*contractEntry{}
	d.validations = map[validationKey][]vtutils.MethodMismatch{}
	d.tables = map[string]*VTable{}
}

// Reset clears the descriptor cache together with all memoized contracts,
// validation results and tables.
func (d *DynVt) Reset() {
	d.typeCache.RemoveAllTypes()
	d.syncSession()
}

// GetTypeCache returns the descriptor cache of the instance.
//
// This method is primarily useful for debugging or advanced use cases where
// you need to inspect or manage the cached descriptors.
func (d *DynVt) GetTypeCache() *vttypes.TypeCache {
	return d.typeCache
}

// Describe returns the descriptor of t.
func (d *DynVt) Describe(t reflect.Type) (*vttypes.TypeDescriptor, error) {
	return d.typeCache.GetTypeDescriptor(t)
}

// DescribeFunction returns the descriptor of a function type. It fails with
// ErrUnsupportedType if a parameter cannot be reflected.
func (d *DynVt) DescribeFunction(fnType reflect.Type) (*vttypes.FunctionDescriptor, error) {
	return d.typeCache.GetFunctionDescriptor(fnType)
}

// fieldOwner returns the descriptor whose fields are visible through t.
func (d *DynVt) fieldOwner(t reflect.Type) (*vttypes.TypeDescriptor, error) {
	desc, err := d.Describe(t)
	if err != nil {
		return nil, err
	}
	if desc.Category == vttypes.CategoryPointer && desc.Flags&vttypes.TypeFlagNamed == 0 && desc.Elem != nil {
		desc = desc.Elem
	}
	return desc, nil
}

// HasField reports whether t (or the struct t points to) has a field or
// union variant with the given name.
func (d *DynVt) HasField(t reflect.Type, name string) bool {
	desc, err := d.fieldOwner(t)
	if err != nil {
		return false
	}
	_, ok := desc.Field(name)
	return ok
}

// FieldNames returns the ordered field (or variant) names of t.
func (d *DynVt) FieldNames(t reflect.Type) ([]string, error) {
	desc, err := d.fieldOwner(t)
	if err != nil {
		return nil, err
	}
	return desc.FieldNames(), nil
}

// HasFunction reports whether t has a method with the given name. When
// argTypes are given, the method's arguments (excluding the receiver) must
// match them exactly; otherwise a *vtutils.SignatureError describes the first
// difference. A nil argTypes skips the argument check, pass an empty slice
// (HasFunction(t, name, []reflect.Type{}...)) to require zero arguments. Methods whose signature cannot be reflected return false with
// an error wrapping ErrUnsupportedType.
func (d *DynVt) HasFunction(t reflect.Type, name string, argTypes ...reflect.Type) (bool, error) {
	desc, err := d.Describe(t)
	if err != nil {
		return false, err
	}

	fd, err := desc.GetFunction(name)
	if errors.Is(err, vtutils.ErrDeclarationNotFound) {
		return false, nil
	} else if err != nil {
		return false, err
	}

	if argTypes == nil {
		return true, nil
	}

	args := fd.Arguments()
	sigErr := &vtutils.SignatureError{
		Type:     desc.Name,
		Function: name,
		Expected: make([]string, len(argTypes)),
		Actual:   make([]string, len(args)),
		Position: -1,
	}
	for i, arg := range args {
		sigErr.Actual[i] = arg.Type.Name
	}
	for i, argType := range argTypes {
		sigErr.Expected[i] = argType.String()
	}

	if len(args) != len(argTypes) {
		return false, sigErr
	}
	for i, argType := range argTypes {
		if args[i].Type.Type != argType {
			sigErr.Position = i
			return false, sigErr
		}
	}

	return true, nil
}
