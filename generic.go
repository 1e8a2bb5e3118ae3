// Copyright (c) 2025 pk910
// SPDX-License-Identifier: Apache-2.0
// This file is part of the dynamic-vtable library.

package dynvt

import (
	"reflect"
)

// Bind synthesizes the table of implementation I for contract C. A nil d
// uses the global instance.
//
// Example:
//
//	vt, err := dynvt.Bind[Drawable, Sprite](nil)
func Bind[C, I any](d *DynVt, opts ...CallOption) (*VTable, error) {
	if d == nil {
		d = GetGlobalDynVt()
	}
	return d.Synthesize(reflect.TypeFor[C](), reflect.TypeFor[I](), opts...)
}

// Implements validates implementation I against contract C. A nil d uses the
// global instance.
func Implements[C, I any](d *DynVt) error {
	if d == nil {
		d = GetGlobalDynVt()
	}
	return d.Validate(reflect.TypeFor[C](), reflect.TypeFor[I]())
}

// BindTable synthesizes the table of implementation I for contract C and
// casts it into the table shape S in one step.
func BindTable[S, C, I any](d *DynVt) (S, error) {
	vt, err := Bind[C, I](d)
	if err != nil {
		var zero S
		return zero, err
	}
	return CastTo[S](vt)
}
