// Copyright (c) 2025 pk910
// SPDX-License-Identifier: Apache-2.0
// This file is part of the dynamic-vtable library.

package dynvt

import (
	"fmt"
	"reflect"
)

// Union holds one of several variants. D is a descriptor struct whose fields
// are the variants; it is never instantiated. Descriptors of a Union have
// category Union and list the variants of D as their fields.
//
// Usage:
//
//	type ShapeVariants struct {
//	    Circle Circle
//	    Rect   Rect
//	}
//
//	type Shape = dynvt.Union[ShapeVariants]
//
//	shape, err := dynvt.NewUnion[ShapeVariants](1, Rect{W: 2, H: 3})
type Union[D any] struct {
	Variant uint8
	Data    any
}

// NewUnion creates a union holding data as the given variant. data must be
// assignable to the variant's field type in D (nil stores the zero value).
func NewUnion[D any](variant uint8, data any) (*Union[D], error) {
	variants := reflect.TypeFor[D]()
	if variants.Kind() != reflect.Struct {
		return nil, fmt.Errorf("union descriptor %s is not a struct", variants)
	}
	if int(variant) >= variants.NumField() {
		return nil, fmt.Errorf("union variant %d out of range, %s has %d variant(s)", variant, variants, variants.NumField())
	}

	field := variants.Field(int(variant))
	if data == nil {
		data = reflect.Zero(field.Type).Interface()
	} else if dataType := reflect.TypeOf(data); !dataType.AssignableTo(field.Type) {
		return nil, fmt.Errorf("union variant %s expects %s, got %s", field.Name, field.Type, dataType)
	}

	return &Union[D]{
		Variant: variant,
		Data:    data,
	}, nil
}

// UnionDescriptorType returns the reflect.Type of the descriptor struct D.
func (u *Union[D]) UnionDescriptorType() reflect.Type {
	return reflect.TypeFor[D]()
}

// VariantName returns the field name of the active variant.
func (u *Union[D]) VariantName() string {
	variants := reflect.TypeFor[D]()
	if variants.Kind() != reflect.Struct || int(u.Variant) >= variants.NumField() {
		return ""
	}
	return variants.Field(int(u.Variant)).Name
}
