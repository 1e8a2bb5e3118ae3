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

func TestCompose_FieldUnion(t *testing.T) {
	dv := NewDynVt()

	composed, err := dv.Compose(reflect.TypeFor[AContract](), reflect.TypeFor[BContract]())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if composed.Name() != "dynvt.AContract+dynvt.BContract" {
		t.Errorf("unexpected composition name %s", composed.Name())
	}

	vt, err := dv.SynthesizeComposed(composed, reflect.TypeFor[abImpl]())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	tableType := vt.Table().Type()
	if tableType.NumField() != 2 {
		t.Fatalf("expected 2 table fields, got %d", tableType.NumField())
	}
	if diff := cmp.Diff([]string{"A", "B"}, []string{tableType.Field(0).Name, tableType.Field(1).Name}); diff != "" {
		t.Errorf("table fields mismatch (-want +got):\n%s", diff)
	}

	impl := &abImpl{}
	if _, err := vt.Call("A", impl); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := vt.Call("B", impl, uint32(9)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if impl.a != 1 || impl.b != 9 {
		t.Errorf("unexpected state %+v", impl)
	}
	if len(vt.Contracts()) != 2 {
		t.Errorf("expected 2 contracts, got %d", len(vt.Contracts()))
	}
}

func TestCompose_Collisions(t *testing.T) {
	dv := NewDynVt()

	t.Run("IdenticalMerged", func(t *testing.T) {
		composed, err := dv.Compose(reflect.TypeFor[BContract](), reflect.TypeFor[BSame](), reflect.TypeFor[AContract]())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if diff := cmp.Diff([]string{"B", "A"}, composed.SlotNames()); diff != "" {
			t.Errorf("slot names mismatch (-want +got):\n%s", diff)
		}
		if _, err := dv.SynthesizeComposed(composed, reflect.TypeFor[abImpl]()); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("Conflict", func(t *testing.T) {
		_, err := dv.Compose(reflect.TypeFor[BContract](), reflect.TypeFor[BConflict]())
		if !errors.Is(err, vtutils.ErrSlotCollision) {
			t.Errorf("expected ErrSlotCollision, got %v", err)
		}
	})

	t.Run("DuplicateContract", func(t *testing.T) {
		composed, err := dv.Compose(reflect.TypeFor[AContract](), reflect.TypeFor[AContract]())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(composed.Contracts) != 1 || len(composed.Slots) != 1 {
			t.Errorf("expected duplicate contract to collapse")
		}
	})

	t.Run("Empty", func(t *testing.T) {
		if _, err := dv.Compose(); !errors.Is(err, vtutils.ErrNotAContract) {
			t.Errorf("expected ErrNotAContract, got %v", err)
		}
	})
}

func TestCompose_AggregatedMismatches(t *testing.T) {
	dv := NewDynVt()

	composed, err := dv.Compose(reflect.TypeFor[Codec](), reflect.TypeFor[Writer](), reflect.TypeFor[Drawable]())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err = dv.SynthesizeComposed(composed, reflect.TypeFor[partialCodec]())
	var contractErr *vtutils.ContractError
	if !errors.As(err, &contractErr) {
		t.Fatalf("expected *ContractError, got %v", err)
	}
	// Decode, Encode, Write and Draw are missing
	if len(contractErr.Mismatches) != 4 {
		t.Errorf("expected 4 mismatches, got %d:\n%v", len(contractErr.Mismatches), err)
	}
	if len(contractErr.Contracts) != 3 {
		t.Errorf("expected all contracts in the report, got %v", contractErr.Contracts)
	}
}

func TestCompose_TenContracts(t *testing.T) {
	var logs []string
	dv := NewDynVt(WithVerbose(), WithLogCb(func(format string, args ...any) {
		logs = append(logs, format)
	}))

	contracts := []reflect.Type{
		reflect.TypeFor[C0](), reflect.TypeFor[C1](), reflect.TypeFor[C2](), reflect.TypeFor[C3](), reflect.TypeFor[C4](),
		reflect.TypeFor[C5](), reflect.TypeFor[C6](), reflect.TypeFor[C7](), reflect.TypeFor[C8](), reflect.TypeFor[C9](),
	}

	composed, err := dv.Compose(contracts...)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	vt, err := dv.SynthesizeComposed(composed, reflect.TypeFor[tenImpl]())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if vt.Len() != 10 {
		t.Fatalf("expected 10 slots, got %d", vt.Len())
	}

	impl := &tenImpl{base: 100}
	for i, name := range vt.Names() {
		results, err := vt.Call(name, impl, 1)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", name, err)
		}
		if got := results[0].Int(); got != int64(101+i) {
			t.Errorf("%s: expected %d, got %d", name, 101+i, got)
		}
	}

	// composing again must not re-validate any contract
	composed, _ = dv.Compose(contracts...)
	if _, err := dv.SynthesizeComposed(composed, reflect.TypeFor[tenImpl](), WithoutCache()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	validations := 0
	for _, line := range logs {
		if line == "dynvt: validated %s against %s: %d mismatch(es)" {
			validations++
		}
	}
	if validations != len(contracts) {
		t.Errorf("expected %d validations, got %d", len(contracts), validations)
	}
}
