// Copyright (c) 2025 pk910
// SPDX-License-Identifier: Apache-2.0
// This file is part of the dynamic-vtable library.

package dynvt

import (
	"errors"
	"reflect"
	"testing"
	"unsafe"

	"github.com/pk910/dynamic-vtable/vtutils"
)

type idSource interface {
	Draw()
}

func TestCastToShape(t *testing.T) {
	dv := NewDynVt()

	vt, err := dv.Synthesize(reflect.TypeFor[DrawTable](), reflect.TypeFor[Sprite]())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	t.Run("UnsafePointer", func(t *testing.T) {
		table, err := CastTo[ForeignDrawTable](vt)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		sprite := &Sprite{id: 5}
		table.Draw(unsafe.Pointer(sprite))
		if !sprite.drawn {
			t.Errorf("expected Draw through foreign table to set drawn")
		}
		if id := table.ID(unsafe.Pointer(sprite)); id != 5 {
			t.Errorf("expected id 5, got %d", id)
		}
	})

	t.Run("Identical", func(t *testing.T) {
		var table struct {
			Draw  func(*Sprite)
			Ident func(*Sprite) uint32
		}
		if err := CastToShape(vt, &table); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if table.Ident(&Sprite{id: 3}) != 3 {
			t.Errorf("unexpected Ident result")
		}
	})

	t.Run("InterfaceSelf", func(t *testing.T) {
		var table struct {
			Draw func(idSource)
			ID   func(idSource) uint32
		}
		if err := CastToShape(vt, &table); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		sprite := &Sprite{id: 8}
		table.Draw(sprite)
		if !sprite.drawn || table.ID(sprite) != 8 {
			t.Errorf("unexpected calls through interface self")
		}
	})

	t.Run("Errors", func(t *testing.T) {
		tests := []struct {
			name   string
			target any
		}{
			{"not a pointer", ForeignDrawTable{}},
			{"nil pointer", (*ForeignDrawTable)(nil)},
			{"field count", &DrawTable{}},
			{"arity", &struct {
				Draw func(unsafe.Pointer, int)
				ID   func(unsafe.Pointer) uint32
			}{}},
			{"result type", &struct {
				Draw func(unsafe.Pointer)
				ID   func(unsafe.Pointer) uint64
			}{}},
			{"self kind", &struct {
				Draw func(uintptr)
				ID   func(uintptr) uint32
			}{}},
			{"not a function", &struct {
				Draw int
				ID   func(unsafe.Pointer) uint32
			}{}},
			{"unexported", &struct {
				draw func(unsafe.Pointer)
				ID   func(unsafe.Pointer) uint32
			}{}},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				err := CastToShape(vt, tt.target)
				if !errors.Is(err, vtutils.ErrShapeMismatch) {
					t.Errorf("expected ErrShapeMismatch, got %v", err)
				}
			})
		}
	})
}

func TestBindTable(t *testing.T) {
	table, err := BindTable[ForeignDrawTable, DrawTable, Sprite](NewDynVt())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	sprite := &Sprite{}
	table.Draw(unsafe.Pointer(sprite))
	if !sprite.drawn {
		t.Errorf("expected drawn")
	}

	if _, err := BindTable[ForeignDrawTable, Codec, partialCodec](NewDynVt()); !errors.Is(err, ErrContractViolation) {
		t.Errorf("expected contract violation, got %v", err)
	}
}
