// Copyright (c) 2025 pk910
// SPDX-License-Identifier: Apache-2.0
// This file is part of the dynamic-vtable library.

package vttypes

import (
	"reflect"
	"strings"
)

// UnionCarrier is implemented by union carrier types (see dynvt.Union). The
// descriptor type is a struct whose fields are the union variants.
type UnionCarrier interface {
	UnionDescriptorType() reflect.Type
}

// OptionalCarrier is implemented by optional carrier types (see dynvt.Optional).
type OptionalCarrier interface {
	OptionalValueType() reflect.Type
}

var (
	unionCarrierType    = reflect.TypeOf((*UnionCarrier)(nil)).Elem()
	optionalCarrierType = reflect.TypeOf((*OptionalCarrier)(nil)).Elem()
)

// unionVariantsType returns the variant descriptor struct of a union carrier.
func unionVariantsType(t reflect.Type) (reflect.Type, bool) {
	if t.Kind() != reflect.Struct || !reflect.PointerTo(t).Implements(unionCarrierType) {
		return nil, false
	}
	carrier, ok := reflect.New(t).Interface().(UnionCarrier)
	if !ok {
		return nil, false
	}
	variants := carrier.UnionDescriptorType()
	if variants == nil || variants.Kind() != reflect.Struct {
		return nil, false
	}
	return variants, true
}

// optionalValueType returns the wrapped value type of an optional carrier.
// database/sql.Null[T] is recognised as well.
func optionalValueType(t reflect.Type) (reflect.Type, bool) {
	if t.Kind() != reflect.Struct {
		return nil, false
	}
	if t.PkgPath() == "database/sql" && strings.HasPrefix(t.Name(), "Null[") && t.NumField() == 2 {
		return t.Field(0).Type, true
	}
	if !reflect.PointerTo(t).Implements(optionalCarrierType) {
		return nil, false
	}
	carrier, ok := reflect.New(t).Interface().(OptionalCarrier)
	if !ok {
		return nil, false
	}
	if elem := carrier.OptionalValueType(); elem != nil {
		return elem, true
	}
	return nil, false
}
