// Copyright (c) 2025 pk910
// SPDX-License-Identifier: Apache-2.0
// This file is part of the dynamic-vtable library.

package dynvt

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/pk910/dynamic-vtable/vttypes"
	"github.com/pk910/dynamic-vtable/vtutils"
)

type linkedA struct {
	Name string
	B    *linkedB
}

type linkedB struct {
	A *linkedA
}

func TestDescribe(t *testing.T) {
	dv := NewDynVt()

	t.Run("Idempotence", func(t *testing.T) {
		first, err := dv.Describe(reflect.TypeFor[Sprite]())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		second, _ := dv.Describe(reflect.TypeFor[Sprite]())
		if first.Hash != second.Hash || first.Size != second.Size {
			t.Errorf("descriptors differ")
		}
		if diff := cmp.Diff(first.FieldNames(), second.FieldNames()); diff != "" {
			t.Errorf("field names differ (-first +second):\n%s", diff)
		}
	})

	t.Run("MutualRecursion", func(t *testing.T) {
		a, err := dv.Describe(reflect.TypeFor[linkedA]())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		b, err := dv.Describe(reflect.TypeFor[linkedB]())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if a.Fields[1].Type.ElemHash != b.Hash || b.Fields[0].Type.ElemHash != a.Hash {
			t.Errorf("linked fields do not reference each other")
		}
	})

	t.Run("Function", func(t *testing.T) {
		fd, err := dv.DescribeFunction(reflect.TypeOf(func(*linkedA) error { return nil }))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if fd.Category != vttypes.FunctionFree || len(fd.Params) != 1 {
			t.Errorf("unexpected function descriptor %s", fd)
		}

		_, err = dv.DescribeFunction(reflect.TypeOf(func(any) {}))
		if !errors.Is(err, vtutils.ErrUnsupportedType) {
			t.Errorf("expected ErrUnsupportedType, got %v", err)
		}
	})

	if dv.GetTypeCache().Len() == 0 {
		t.Errorf("expected cached descriptors")
	}
}

func TestFieldQueries(t *testing.T) {
	dv := NewDynVt()

	tests := []struct {
		name   string
		typ    reflect.Type
		fields []string
	}{
		{"struct", reflect.TypeFor[linkedA](), []string{"Name", "B"}},
		{"pointer", reflect.TypeFor[*linkedA](), []string{"Name", "B"}},
		{"primitive", reflect.TypeFor[uint8](), []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			names, err := dv.FieldNames(tt.typ)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if diff := cmp.Diff(tt.fields, names); diff != "" {
				t.Errorf("field names mismatch (-want +got):\n%s", diff)
			}
			for _, name := range tt.fields {
				if !dv.HasField(tt.typ, name) {
					t.Errorf("expected field %s", name)
				}
			}
			if dv.HasField(tt.typ, "Missing") {
				t.Errorf("unexpected field Missing")
			}
		})
	}

	if _, err := dv.FieldNames(nil); !errors.Is(err, vtutils.ErrUnsupportedType) {
		t.Errorf("expected ErrUnsupportedType, got %v", err)
	}
}

func TestHasFunction(t *testing.T) {
	dv := NewDynVt()
	buttonType := reflect.TypeFor[button]()
	callbackType := reflect.TypeFor[func(*button)]()

	t.Run("Exists", func(t *testing.T) {
		ok, err := dv.HasFunction(buttonType, "Click")
		if err != nil || !ok {
			t.Errorf("expected Click, got %v %v", ok, err)
		}
		ok, err = dv.HasFunction(buttonType, "Missing")
		if err != nil || ok {
			t.Errorf("expected no Missing, got %v %v", ok, err)
		}
	})

	t.Run("Arguments", func(t *testing.T) {
		ok, err := dv.HasFunction(buttonType, "SetCallback", callbackType)
		if err != nil || !ok {
			t.Errorf("expected matching SetCallback, got %v %v", ok, err)
		}
	})

	t.Run("ArgumentMismatch", func(t *testing.T) {
		ok, err := dv.HasFunction(buttonType, "SetCallback", reflect.TypeFor[int]())
		var sigErr *vtutils.SignatureError
		if ok || !errors.As(err, &sigErr) {
			t.Fatalf("expected signature error, got %v %v", ok, err)
		}
		if sigErr.Position != 0 {
			t.Errorf("expected position 0, got %d", sigErr.Position)
		}
		if sigErr.Error() != "dynvt.button.SetCallback argument 0 is func(*dynvt.button), requested int" {
			t.Errorf("unexpected message: %s", sigErr.Error())
		}
	})

	t.Run("ZeroArguments", func(t *testing.T) {
		// nil skips the argument check, an empty slice requires zero arguments
		ok, err := dv.HasFunction(buttonType, "SetCallback")
		if err != nil || !ok {
			t.Errorf("expected SetCallback without argument check, got %v %v", ok, err)
		}
		ok, err = dv.HasFunction(buttonType, "Click", []reflect.Type{}...)
		if err != nil || !ok {
			t.Errorf("expected zero-argument Click, got %v %v", ok, err)
		}
		ok, err = dv.HasFunction(buttonType, "SetCallback", []reflect.Type{}...)
		var sigErr *vtutils.SignatureError
		if ok || !errors.As(err, &sigErr) || sigErr.Position != -1 {
			t.Errorf("expected arity error for SetCallback, got %v %v", ok, err)
		}
	})

	t.Run("ArityMismatch", func(t *testing.T) {
		_, err := dv.HasFunction(buttonType, "SetCallback", callbackType, callbackType)
		var sigErr *vtutils.SignatureError
		if !errors.As(err, &sigErr) || sigErr.Position != -1 {
			t.Fatalf("expected arity error, got %v", err)
		}
	})

	t.Run("Unsupported", func(t *testing.T) {
		ok, err := dv.HasFunction(reflect.TypeFor[anyTaker](), "Take")
		if ok || !errors.Is(err, vtutils.ErrUnsupportedType) {
			t.Errorf("expected unsupported, got %v %v", ok, err)
		}
	})
}

func TestUnionAndOptional(t *testing.T) {
	type shapeVariants struct {
		Sprite Sprite
		Button *button
	}

	dv := NewDynVt()

	t.Run("UnionDescriptor", func(t *testing.T) {
		desc, err := dv.Describe(reflect.TypeFor[Union[shapeVariants]]())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if desc.Category != vttypes.CategoryUnion {
			t.Fatalf("expected union category, got %v", desc.Category)
		}
		if diff := cmp.Diff([]string{"Sprite", "Button"}, desc.FieldNames()); diff != "" {
			t.Errorf("variants mismatch (-want +got):\n%s", diff)
		}
		decl, err := desc.GetDeclaration("Button")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if decl.Kind != vttypes.DeclarationVariant || decl.Field.Type.Category != vttypes.CategoryPointer {
			t.Errorf("unexpected variant declaration %+v", decl)
		}
	})

	t.Run("NewUnion", func(t *testing.T) {
		u, err := NewUnion[shapeVariants](1, &button{})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if u.VariantName() != "Button" {
			t.Errorf("unexpected variant %s", u.VariantName())
		}

		u, err = NewUnion[shapeVariants](0, nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if _, ok := u.Data.(Sprite); !ok {
			t.Errorf("expected zero Sprite, got %T", u.Data)
		}

		if _, err := NewUnion[shapeVariants](2, nil); err == nil {
			t.Errorf("expected out of range error")
		}
		if _, err := NewUnion[shapeVariants](0, &button{}); err == nil {
			t.Errorf("expected variant type error")
		}
	})

	t.Run("Optional", func(t *testing.T) {
		desc, err := dv.Describe(reflect.TypeFor[Optional[uint16]]())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if desc.Category != vttypes.CategoryOptional || desc.Elem.Kind != reflect.Uint16 {
			t.Errorf("unexpected optional descriptor %v/%v", desc.Category, desc.Elem)
		}

		if v, ok := Some[uint16](4).Get(); !ok || v != 4 {
			t.Errorf("unexpected Some value")
		}
		if _, ok := None[uint16]().Get(); ok {
			t.Errorf("expected empty optional")
		}
	})
}

func TestLogging(t *testing.T) {
	var lines []string
	logCb := func(format string, args ...any) {
		lines = append(lines, fmt.Sprintf(format, args...))
	}

	dv := NewDynVt(WithVerbose(), WithLogCb(logCb))
	if _, err := dv.Describe(reflect.TypeFor[linkedA]()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := dv.Synthesize(reflect.TypeFor[Drawable](), reflect.TypeFor[Sprite]()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	found := false
	for _, line := range lines {
		if strings.Contains(line, "linkedA") {
			found = true
		}
	}
	if !found {
		t.Errorf("expected descriptor build of linkedA to be logged, got %v", lines)
	}

	lines = nil
	quiet := NewDynVt(WithLogCb(logCb))
	if _, err := quiet.Describe(reflect.TypeFor[linkedA]()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(lines) != 0 {
		t.Errorf("expected no log output without verbose, got %v", lines)
	}
}
