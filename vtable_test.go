// Copyright (c) 2025 pk910
// SPDX-License-Identifier: Apache-2.0
// This file is part of the dynamic-vtable library.

package dynvt

import (
	"errors"
	"reflect"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/pk910/dynamic-vtable/vtutils"
)

func TestSynthesize_Drawable(t *testing.T) {
	dv := NewDynVt()

	vt, err := dv.Synthesize(reflect.TypeFor[Drawable](), reflect.TypeFor[Sprite]())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if diff := cmp.Diff([]string{"Draw"}, vt.Names()); diff != "" {
		t.Errorf("slot names mismatch (-want +got):\n%s", diff)
	}
	if vt.ImplType() != reflect.TypeFor[Sprite]() {
		t.Errorf("unexpected impl type %s", vt.ImplType())
	}
	if vt.Name() != "dynvt.Drawable[dynvt.Sprite]" {
		t.Errorf("unexpected table name %s", vt.Name())
	}

	sprite := &Sprite{}
	draw, ok := vt.Func("Draw")
	if !ok {
		t.Fatalf("missing Draw slot")
	}
	draw.Call([]reflect.Value{reflect.ValueOf(sprite)})
	if !sprite.drawn {
		t.Errorf("expected Draw slot to set drawn")
	}

	// the table is a plain struct of method expressions
	table, ok := vt.Interface().(struct{ Draw func(*Sprite) })
	if !ok {
		t.Fatalf("unexpected table type %T", vt.Interface())
	}
	other := &Sprite{}
	table.Draw(other)
	if !other.drawn {
		t.Errorf("expected typed table call to set drawn")
	}
}

func TestSynthesize_Call(t *testing.T) {
	dv := NewDynVt()

	vt, err := Bind[Settable, button](dv)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	b := &button{}
	var seen *button
	if _, err := vt.Call("SetCallback", b, func(cb *button) { seen = cb }); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b.Click()
	if seen != b || b.clicks != 1 {
		t.Errorf("expected callback to observe the clicked button")
	}

	results, err := vt.Call("Clone", b)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	clone := results[0].Interface().(*button)
	if clone == b || clone.clicks != 1 {
		t.Errorf("unexpected clone %+v", clone)
	}

	t.Run("Errors", func(t *testing.T) {
		if _, err := vt.Call("Missing", b); !errors.Is(err, vtutils.ErrDeclarationNotFound) {
			t.Errorf("expected ErrDeclarationNotFound, got %v", err)
		}
		if _, err := vt.Call("Clone", &Sprite{}); err == nil {
			t.Errorf("expected error for foreign self")
		}
		if _, err := vt.Call("Clone", (*button)(nil)); err == nil {
			t.Errorf("expected error for nil self")
		}
		if _, err := vt.Call("SetCallback", b); err == nil {
			t.Errorf("expected arity error")
		}
		if _, err := vt.Call("SetCallback", b, 42); err == nil {
			t.Errorf("expected argument type error")
		}
	})

	t.Run("NilArgument", func(t *testing.T) {
		if _, err := vt.Call("SetCallback", b, nil); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if b.cb != nil {
			t.Errorf("expected callback to be cleared")
		}
	})

	t.Run("ValueSelf", func(t *testing.T) {
		results, err := vt.Call("Clone", button{clicks: 7})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if results[0].Interface().(*button).clicks != 7 {
			t.Errorf("expected clone of value self")
		}
	})
}

func TestSynthesize_ContractViolation(t *testing.T) {
	dv := NewDynVt()

	vt, err := dv.Synthesize(reflect.TypeFor[Codec](), reflect.TypeFor[partialCodec]())
	if vt != nil {
		t.Errorf("expected no table on violation")
	}
	var contractErr *vtutils.ContractError
	if !errors.As(err, &contractErr) || len(contractErr.Mismatches) != 2 {
		t.Fatalf("expected aggregated contract error, got %v", err)
	}
}

func TestSynthesize_Cache(t *testing.T) {
	dv := NewDynVt()

	first, err := dv.Synthesize(reflect.TypeFor[Drawable](), reflect.TypeFor[Sprite]())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, _ := dv.Synthesize(reflect.TypeFor[Drawable](), reflect.TypeFor[*Sprite]())
	if first != second {
		t.Errorf("expected cached table for pointer implementation")
	}

	fresh, _ := dv.Synthesize(reflect.TypeFor[Drawable](), reflect.TypeFor[Sprite](), WithoutCache())
	if fresh == first {
		t.Errorf("expected fresh table with WithoutCache")
	}

	named, _ := dv.Synthesize(reflect.TypeFor[Drawable](), reflect.TypeFor[Sprite](), WithTableName("SpriteDrawTable"))
	if named.Name() != "SpriteDrawTable" {
		t.Errorf("unexpected table name %s", named.Name())
	}
}

func TestSynthesize_TableContract(t *testing.T) {
	dv := NewDynVt()

	vt, err := dv.Synthesize(reflect.TypeFor[DrawTable](), reflect.TypeFor[Sprite]())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if diff := cmp.Diff([]string{"Draw", "Ident"}, vt.Names()); diff != "" {
		t.Errorf("slot names mismatch (-want +got):\n%s", diff)
	}

	results, err := vt.Call("Ident", &Sprite{id: 42})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if results[0].Uint() != 42 {
		t.Errorf("expected 42, got %d", results[0].Uint())
	}
}

func TestSynthesize_InvalidImpl(t *testing.T) {
	dv := NewDynVt()

	tests := []struct {
		name string
		impl reflect.Type
	}{
		{"nil", nil},
		{"interface", reflect.TypeFor[Sizer]()},
		{"double pointer", reflect.TypeFor[**Sprite]()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := dv.Synthesize(reflect.TypeFor[Drawable](), tt.impl)
			if !errors.Is(err, vtutils.ErrUnsupportedType) {
				t.Errorf("expected ErrUnsupportedType, got %v", err)
			}
		})
	}
}

func TestGlobal(t *testing.T) {
	ResetGlobalDynVt()

	if GetGlobalDynVt() != GetGlobalDynVt() {
		t.Errorf("expected a single global instance")
	}
	if err := Validate(reflect.TypeFor[Drawable](), reflect.TypeFor[Sprite]()); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	vt, err := Synthesize(reflect.TypeFor[Drawable](), reflect.TypeFor[Sprite]())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	bound, err := Bind[Drawable, Sprite](nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if vt != bound {
		t.Errorf("expected global table cache to be shared")
	}
}
