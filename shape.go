// Copyright (c) 2025 pk910
// SPDX-License-Identifier: Apache-2.0
// This file is part of the dynamic-vtable library.

package dynvt

import (
	"fmt"
	"reflect"

	"github.com/pk910/dynamic-vtable/vtutils"
)

// CastToShape copies the slots of vt into target, a pointer to a struct of
// func fields (a foreign table shape). Fields are matched by position, so the
// target must have exactly as many fields as vt has slots, in the same order.
//
// Each target field must have the slot's arity. The first parameter may
// differ from *Impl: unsafe.Pointer, another pointer type or an interface
// are reinterpreted as the instance pointer. All remaining parameters and
// results must match exactly.
func CastToShape(vt *VTable, target any) error {
	targetValue := reflect.ValueOf(target)
	if targetValue.Kind() != reflect.Pointer || targetValue.IsNil() || targetValue.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("target must be a non-nil pointer to a struct, got %T: %w", target, vtutils.ErrShapeMismatch)
	}

	shape := targetValue.Elem()
	shapeType := shape.Type()
	if shapeType.NumField() != vt.Len() {
		return fmt.Errorf("%s has %d field(s), %s has %d slot(s): %w", shapeType, shapeType.NumField(), vt.name, vt.Len(), vtutils.ErrShapeMismatch)
	}

	values := make([]reflect.Value, shapeType.NumField())
	for i := 0; i < shapeType.NumField(); i++ {
		field := shapeType.Field(i)
		src := vt.table.Field(i)

		if !field.IsExported() {
			return fmt.Errorf("field %s of %s is not exported: %w", field.Name, shapeType, vtutils.ErrShapeMismatch)
		}
		if field.Type.Kind() != reflect.Func {
			return fmt.Errorf("field %s of %s is not a function: %w", field.Name, shapeType, vtutils.ErrShapeMismatch)
		}

		value, err := adaptSlot(vt.implType, src, field.Type)
		if err != nil {
			return fmt.Errorf("field %s of %s (slot %s): %w", field.Name, shapeType, vt.slots[i].Name, err)
		}
		values[i] = value
	}

	for i, value := range values {
		shape.Field(i).Set(value)
	}

	return nil
}

// adaptSlot returns src as a value of dstType, wrapping it in an adapter
// when the self parameter representation differs.
func adaptSlot(implType reflect.Type, src reflect.Value, dstType reflect.Type) (reflect.Value, error) {
	srcType := src.Type()
	if srcType == dstType {
		return src, nil
	}

	if srcType.NumIn() != dstType.NumIn() || srcType.NumOut() != dstType.NumOut() || srcType.IsVariadic() != dstType.IsVariadic() {
		return reflect.Value{}, fmt.Errorf("slot is %s, field is %s: %w", srcType, dstType, vtutils.ErrShapeMismatch)
	}
	for i := 1; i < srcType.NumIn(); i++ {
		if srcType.In(i) != dstType.In(i) {
			return reflect.Value{}, fmt.Errorf("parameter %d: expected %s, found %s: %w", i, srcType.In(i), dstType.In(i), vtutils.ErrShapeMismatch)
		}
	}
	for i := 0; i < srcType.NumOut(); i++ {
		if srcType.Out(i) != dstType.Out(i) {
			return reflect.Value{}, fmt.Errorf("result %d: expected %s, found %s: %w", i, srcType.Out(i), dstType.Out(i), vtutils.ErrShapeMismatch)
		}
	}

	selfType := dstType.In(0)
	var toSelf func(reflect.Value) reflect.Value
	switch selfType.Kind() {
	case reflect.UnsafePointer, reflect.Pointer:
		toSelf = func(arg reflect.Value) reflect.Value {
			return reflect.NewAt(implType, arg.UnsafePointer())
		}
	case reflect.Interface:
		ptrType := reflect.PointerTo(implType)
		if !ptrType.Implements(selfType) {
			return reflect.Value{}, fmt.Errorf("*%s does not implement self type %s: %w", implType, selfType, vtutils.ErrShapeMismatch)
		}
		toSelf = func(arg reflect.Value) reflect.Value {
			if arg.IsNil() {
				return reflect.Zero(ptrType)
			}
			elem := arg.Elem()
			if elem.Type() != ptrType {
				panic(fmt.Sprintf("dynvt: self of type %s passed to table slot bound to %s", elem.Type(), ptrType))
			}
			return elem
		}
	default:
		return reflect.Value{}, fmt.Errorf("self parameter %s is not pointer shaped: %w", selfType, vtutils.ErrShapeMismatch)
	}

	variadic := srcType.IsVariadic()
	adapter := reflect.MakeFunc(dstType, func(args []reflect.Value) []reflect.Value {
		in := make([]reflect.Value, len(args))
		in[0] = toSelf(args[0])
		copy(in[1:], args[1:])
		if variadic {
			return src.CallSlice(in)
		}
		return src.Call(in)
	})

	return adapter, nil
}

// CastTo casts vt into the table shape S. See CastToShape.
//
// Example:
//
//	type DrawTable struct {
//	    Draw func(unsafe.Pointer)
//	}
//
//	table, err := dynvt.CastTo[DrawTable](vt)
//	table.Draw(unsafe.Pointer(&sprite))
func CastTo[S any](vt *VTable) (S, error) {
	var shape S
	err := CastToShape(vt, &shape)
	return shape, err
}
