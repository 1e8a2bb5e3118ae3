// Copyright (c) 2025 pk910
// SPDX-License-Identifier: Apache-2.0
// This file is part of the dynamic-vtable library.

package dynvt

import (
	"reflect"
)

// Optional holds a value of T or nothing. Descriptors of an Optional have
// category Optional with T as their element.
type Optional[T any] struct {
	Value T
	Valid bool
}

// Some returns an Optional holding v.
func Some[T any](v T) Optional[T] {
	return Optional[T]{Value: v, Valid: true}
}

// None returns an empty Optional.
func None[T any]() Optional[T] {
	return Optional[T]{}
}

// Get returns the value and whether it is present.
func (o Optional[T]) Get() (T, bool) {
	return o.Value, o.Valid
}

// OptionalValueType returns the reflect.Type of T.
func (o *Optional[T]) OptionalValueType() reflect.Type {
	return reflect.TypeFor[T]()
}
