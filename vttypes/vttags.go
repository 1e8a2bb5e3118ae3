// Copyright (c) 2025 pk910
// SPDX-License-Identifier: Apache-2.0
// This file is part of the dynamic-vtable library.

package vttypes

import (
	"fmt"
	"strings"
)

// SlotTag holds the parsed `vt` struct tag of a table-shape contract field.
//
//	Encode func(*Codec, []byte) error `vt:"Marshal"` // slot bound to method Marshal
//	cache  func(Codec) int            `vt:"-"`       // not a slot
type SlotTag struct {
	Name string
	Skip bool
}

// ParseSlotTag parses the `vt` tag of a contract field. fieldName is used
// when the tag does not rename the slot.
func ParseSlotTag(fieldName string, tag string) (SlotTag, error) {
	result := SlotTag{Name: fieldName}
	tag = strings.TrimSpace(tag)
	switch {
	case tag == "":
		return result, nil
	case tag == "-":
		result.Skip = true
		return result, nil
	case strings.ContainsAny(tag, ", \t"):
		return result, fmt.Errorf("invalid vt tag '%v' on field '%v'", tag, fieldName)
	}

	result.Name = tag
	return result, nil
}

// SlotTagOf parses the `vt` tag of a descriptor field.
func SlotTagOf(field *FieldDescriptor) (SlotTag, error) {
	return ParseSlotTag(field.Name, field.Tag.Get("vt"))
}
