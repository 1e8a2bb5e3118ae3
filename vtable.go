// Copyright (c) 2025 pk910
// SPDX-License-Identifier: Apache-2.0
// This file is part of the dynamic-vtable library.

package dynvt

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/pk910/dynamic-vtable/vttypes"
	"github.com/pk910/dynamic-vtable/vtutils"
)

// VTable is a synthesized dispatch table: a struct value whose fields are the
// contract slots, each holding the method expression of the implementation,
// i.e. a func(*Impl, args...) value. The table is per type; the instance
// pointer is passed as the first argument of every call.
type VTable struct {
	name      string
	table     reflect.Value
	implType  reflect.Type
	implDesc  *vttypes.TypeDescriptor
	contracts []*Contract
	slots     []*Slot
	index     map[string]int
}

// Name returns the display name of the table.
func (vt *VTable) Name() string {
	return vt.name
}

// Table returns the table struct value. The value is not addressable, so
// the slots cannot be reassigned through it.
func (vt *VTable) Table() reflect.Value {
	return vt.table
}

// Interface returns the table struct as any. It can be type-asserted to a
// struct type with identical fields, or cast with CastTo.
func (vt *VTable) Interface() any {
	return vt.table.Interface()
}

// Names returns the slot names in table order.
func (vt *VTable) Names() []string {
	names := make([]string, len(vt.slots))
	for i, slot := range vt.slots {
		names[i] = slot.Name
	}
	return names
}

// Len returns the number of slots.
func (vt *VTable) Len() int {
	return len(vt.slots)
}

// Contracts returns the contracts the table was synthesized for.
func (vt *VTable) Contracts() []*Contract {
	return vt.contracts
}

// ImplType returns the implementation type the table is bound to.
func (vt *VTable) ImplType() reflect.Type {
	return vt.implType
}

// Func returns the function stored in the named slot.
func (vt *VTable) Func(name string) (reflect.Value, bool) {
	idx, ok := vt.index[name]
	if !ok {
		return reflect.Value{}, false
	}
	return vt.table.Field(idx), true
}

// Call invokes the named slot with self as the instance. self must be a
// *Impl (or an Impl value, which is copied).
func (vt *VTable) Call(name string, self any, args ...any) ([]reflect.Value, error) {
	fn, ok := vt.Func(name)
	if !ok {
		return nil, fmt.Errorf("%s has no slot %s: %w", vt.name, name, vtutils.ErrDeclarationNotFound)
	}

	selfValue, err := vt.selfValue(self)
	if err != nil {
		return nil, err
	}

	fnType := fn.Type()
	in := make([]reflect.Value, 0, len(args)+1)
	in = append(in, selfValue)

	fixed := fnType.NumIn()
	if fnType.IsVariadic() {
		fixed--
	}
	if len(args)+1 < fixed || (!fnType.IsVariadic() && len(args)+1 != fixed) {
		return nil, fmt.Errorf("%s.%s takes %d argument(s), got %d", vt.name, name, fnType.NumIn()-1, len(args))
	}

	for i, arg := range args {
		var paramType reflect.Type
		if i+1 < fixed {
			paramType = fnType.In(i + 1)
		} else {
			paramType = fnType.In(fnType.NumIn() - 1).Elem()
		}

		argValue, err := argumentValue(arg, paramType)
		if err != nil {
			return nil, fmt.Errorf("%s.%s argument %d: %w", vt.name, name, i, err)
		}
		in = append(in, argValue)
	}

	return fn.Call(in), nil
}

func (vt *VTable) selfValue(self any) (reflect.Value, error) {
	ptrType := reflect.PointerTo(vt.implType)
	value := reflect.ValueOf(self)

	switch {
	case !value.IsValid():
		return reflect.Value{}, fmt.Errorf("nil self for %s", vt.name)
	case value.Type() == ptrType:
		if value.IsNil() {
			return reflect.Value{}, fmt.Errorf("nil self for %s", vt.name)
		}
		return value, nil
	case value.Type() == vt.implType:
		ptr := reflect.New(vt.implType)
		ptr.Elem().Set(value)
		return ptr, nil
	default:
		return reflect.Value{}, fmt.Errorf("self of type %s cannot be used with %s (bound to %s)", value.Type(), vt.name, ptrType)
	}
}

func argumentValue(arg any, paramType reflect.Type) (reflect.Value, error) {
	if arg == nil {
		switch paramType.Kind() {
		case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan, reflect.UnsafePointer:
			return reflect.Zero(paramType), nil
		default:
			return reflect.Value{}, fmt.Errorf("nil is not a valid %s", paramType)
		}
	}

	value := reflect.ValueOf(arg)
	if !value.Type().AssignableTo(paramType) {
		return reflect.Value{}, fmt.Errorf("%s is not assignable to %s", value.Type(), paramType)
	}
	return value, nil
}

// implTarget resolves the implementation type a table is bound to.
func (d *DynVt) implTarget(impl reflect.Type) (reflect.Type, *vttypes.TypeDescriptor, error) {
	if impl == nil {
		return nil, nil, fmt.Errorf("nil implementation: %w", vtutils.ErrUnsupportedType)
	}
	if impl.Kind() == reflect.Pointer && impl.Name() == "" {
		impl = impl.Elem()
	}
	if impl.Kind() == reflect.Interface || impl.Kind() == reflect.Pointer {
		return nil, nil, fmt.Errorf("cannot bind table to %s: %w", impl, vtutils.ErrUnsupportedType)
	}

	desc, err := d.Describe(impl)
	if err != nil {
		return nil, nil, err
	}
	return impl, desc, nil
}

// Synthesize validates impl against contract and builds its dispatch table.
//
// Example:
//
//	vt, err := dv.Synthesize(reflect.TypeFor[Drawable](), reflect.TypeFor[Sprite]())
//	if err != nil {
//	    return err
//	}
//	draw, _ := vt.Func("Draw")
//	draw.Call([]reflect.Value{reflect.ValueOf(&sprite)})
func (d *DynVt) Synthesize(contract, impl reflect.Type, opts ...CallOption) (*VTable, error) {
	c, err := d.resolveContract(contract)
	if err != nil {
		return nil, err
	}

	return d.synthesize([]*Contract{c}, c.Slots, impl, applyCallOptions(opts))
}

func tableKey(contracts []*Contract, impl *vttypes.TypeDescriptor) string {
	var b strings.Builder
	for _, contract := range contracts {
		b.WriteString(strconv.FormatUint(contract.Descriptor.Hash, 16))
		b.WriteByte('+')
	}
	b.WriteString(strconv.FormatUint(impl.Hash, 16))
	return b.String()
}

func (d *DynVt) synthesize(contracts []*Contract, slots []*Slot, impl reflect.Type, cfg *callConfig) (*VTable, error) {
	implType, implDesc, err := d.implTarget(impl)
	if err != nil {
		return nil, err
	}

	key := tableKey(contracts, implDesc)
	d.syncSession()
	if !cfg.noCache && cfg.tableName == "" {
		d.mutex.Lock()
		vt, ok := d.tables[key]
		d.mutex.Unlock()
		if ok {
			return vt, nil
		}
	}

	mismatches := []vtutils.MethodMismatch{}
	for _, contract := range contracts {
		mismatches = append(mismatches, d.checkContract(contract, implDesc)...)
	}
	if err := contractError(implDesc, contracts, mismatches); err != nil {
		return nil, err
	}

	ptrType := reflect.PointerTo(implType)
	fields := make([]reflect.StructField, len(slots))
	funcs := make([]reflect.Value, len(slots))
	index := make(map[string]int, len(slots))
	for i, slot := range slots {
		method, ok := ptrType.MethodByName(slot.Method)
		if !ok {
			// unexported or otherwise invisible to reflection
			return nil, fmt.Errorf("method %s of %s is not callable through reflection: %w", slot.Method, implType, vtutils.ErrUnsupportedType)
		}
		fields[i] = reflect.StructField{
			Name: slot.Name,
			Type: method.Func.Type(),
		}
		funcs[i] = method.Func
		index[slot.Name] = i
	}

	builder := reflect.New(reflect.StructOf(fields)).Elem()
	for i, fn := range funcs {
		builder.Field(i).Set(fn)
	}
	table := reflect.ValueOf(builder.Interface())

	name := cfg.tableName
	if name == "" {
		names := make([]string, len(contracts))
		for i, contract := range contracts {
			names[i] = contract.Name()
		}
		name = fmt.Sprintf("%s[%s]", strings.Join(names, "+"), implDesc.Name)
	}

	vt := &VTable{
		name:      name,
		table:     table,
		implType:  implType,
		implDesc:  implDesc,
		contracts: contracts,
		slots:     slots,
		index:     index,
	}
	d.logf("dynvt: synthesized table %s with %d slot(s)", vt.name, len(slots))

	if !cfg.noCache && cfg.tableName == "" {
		d.mutex.Lock()
		if cached, ok := d.tables[key]; ok {
			vt = cached
		} else {
			d.tables[key] = vt
		}
		d.mutex.Unlock()
	}

	return vt, nil
}
