// Copyright (c) 2025 pk910
// SPDX-License-Identifier: Apache-2.0
// This file is part of the dynamic-vtable library.

package dynvt

import (
	"errors"
	"reflect"
	"strings"
	"testing"
	"unsafe"

	"github.com/google/go-cmp/cmp"

	"github.com/pk910/dynamic-vtable/vtutils"
)

func TestValidate_SelfMutability(t *testing.T) {
	dv := NewDynVt()

	tests := []struct {
		name     string
		contract reflect.Type
		impl     reflect.Type
		ok       bool
	}{
		{"immutable contract, mutable impl", reflect.TypeFor[Reader](), reflect.TypeFor[mutReader](), true},
		{"immutable contract, immutable impl", reflect.TypeFor[Reader](), reflect.TypeFor[constReader](), true},
		{"mutable contract, immutable impl", reflect.TypeFor[Writer](), reflect.TypeFor[constReader](), false},
		{"mutable contract, mutable impl", reflect.TypeFor[Drawable](), reflect.TypeFor[Sprite](), true},
		{"interface contract", reflect.TypeFor[Sizer](), reflect.TypeFor[fixedSizer](), true},
		{"interface contract, pointer impl", reflect.TypeFor[Sizer](), reflect.TypeFor[*fixedSizer](), true},
		{"erased table self", reflect.TypeFor[DrawTable](), reflect.TypeFor[Sprite](), true},
		{"typed table self", reflect.TypeFor[SpriteOps](), reflect.TypeFor[Sprite](), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := dv.Validate(tt.contract, tt.impl)
			if tt.ok && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !tt.ok {
				if !errors.Is(err, vtutils.ErrContractViolation) {
					t.Fatalf("expected contract violation, got %v", err)
				}
				var contractErr *vtutils.ContractError
				if !errors.As(err, &contractErr) || len(contractErr.Mismatches) != 1 {
					t.Fatalf("expected exactly one mismatch, got %v", err)
				}
				if contractErr.Mismatches[0].Reason != vtutils.ReasonMismatch {
					t.Errorf("expected mismatch reason, got %v", contractErr.Mismatches[0].Reason)
				}
			}
		})
	}
}

func TestValidate_AggregatedMismatches(t *testing.T) {
	dv := NewDynVt()

	err := dv.Validate(reflect.TypeFor[Codec](), reflect.TypeFor[partialCodec]())
	var contractErr *vtutils.ContractError
	if !errors.As(err, &contractErr) {
		t.Fatalf("expected *ContractError, got %v", err)
	}

	if len(contractErr.Mismatches) != 2 {
		t.Fatalf("expected 2 mismatches, got %d: %v", len(contractErr.Mismatches), err)
	}
	if diff := cmp.Diff([]string{"Decode", "Encode"}, contractErr.Missing()); diff != "" {
		t.Errorf("missing methods mismatch (-want +got):\n%s", diff)
	}

	msg := err.Error()
	for _, part := range []string{
		"dynvt.partialCodec does not satisfy dynvt.Codec: 2 method(s)",
		"func (*dynvt.Codec) Decode([]uint8) error",
		"func (*github.com/pk910/dynamic-vtable.Codec) Encode([]uint8) error",
	} {
		if !strings.Contains(msg, part) {
			t.Errorf("expected error message to contain %q, got:\n%s", part, msg)
		}
	}
}

func TestValidate_FunctionPointerSubstitution(t *testing.T) {
	dv := NewDynVt()

	if err := dv.Validate(reflect.TypeFor[Settable](), reflect.TypeFor[button]()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	err := dv.Validate(reflect.TypeFor[Settable](), reflect.TypeFor[wrongButton]())
	var contractErr *vtutils.ContractError
	if !errors.As(err, &contractErr) {
		t.Fatalf("expected *ContractError, got %v", err)
	}
	// Clone and SetCallback both use the contract type instead of the implementation type
	if len(contractErr.Mismatches) != 2 {
		t.Fatalf("expected 2 mismatches, got %v", err)
	}
	for _, m := range contractErr.Mismatches {
		if m.Actual == "" || m.Detail == "" {
			t.Errorf("expected actual signature and detail for %s", m.Method)
		}
	}
}

func TestValidate_SubstitutionCases(t *testing.T) {
	dv := NewDynVt()

	if err := dv.Validate(reflect.TypeFor[Node](), reflect.TypeFor[leaf]()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	tests := []struct {
		name   string
		impl   reflect.Type
		method string
		detail string
	}{
		{"BareContractType", reflect.TypeFor[bareLeaf](), "Accept", "parameter 1"},
		{"NestedFunction", reflect.TypeFor[nestedLeaf](), "Walk", "parameter 1"},
		{"RecursiveNamedFunction", reflect.TypeFor[recLeaf](), "Visit", "parameter 1"},
		{"NonLeadingSelf", reflect.TypeFor[constMergeLeaf](), "Merge", "contract requires a mutable self"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := dv.Validate(reflect.TypeFor[Node](), tt.impl)
			var contractErr *vtutils.ContractError
			if !errors.As(err, &contractErr) {
				t.Fatalf("expected *ContractError, got %v", err)
			}

			found := false
			for _, m := range contractErr.Mismatches {
				if m.Method != tt.method {
					if m.Reason != vtutils.ReasonMissing {
						t.Errorf("unexpected %s mismatch for %s: %s", m.Reason, m.Method, m.Detail)
					}
					continue
				}
				found = true
				if m.Reason != vtutils.ReasonMismatch {
					t.Errorf("expected mismatched %s, got %s", tt.method, m.Reason)
				}
				if !strings.Contains(m.Detail, tt.detail) {
					t.Errorf("expected detail containing %q, got %q", tt.detail, m.Detail)
				}
			}
			if !found {
				t.Errorf("expected a mismatch for %s, got %v", tt.method, err)
			}
		})
	}
}

func TestMatcher_FailedComparisonNotAssumed(t *testing.T) {
	dv := NewDynVt()

	contract, err := dv.Describe(reflect.TypeFor[Node]())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	impl, err := dv.Describe(reflect.TypeFor[recLeaf]())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cv, err := dv.Describe(reflect.TypeFor[NodeVisitor]())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	iv, err := dv.Describe(reflect.TypeFor[recLeafVisitor]())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	m := newMatcher(contract, impl)
	for i := 0; i < 2; i++ {
		if m.equivalent(cv, iv) {
			t.Fatalf("comparison %d: expected NodeVisitor and recLeafVisitor to differ", i)
		}
	}
	if len(m.assumed) != 0 {
		t.Errorf("expected no assumptions left after a failed comparison, got %d", len(m.assumed))
	}
}

func TestValidate_CacheReset(t *testing.T) {
	drawOps := func() reflect.Type {
		type Ops struct {
			Draw func(unsafe.Pointer)
		}
		return reflect.TypeFor[Ops]()
	}()
	missingOps := func() reflect.Type {
		type Ops struct {
			Missing func(unsafe.Pointer)
		}
		return reflect.TypeFor[Ops]()
	}()

	resets := []struct {
		name  string
		reset func(dv *DynVt)
	}{
		{"RemoveAllTypes", func(dv *DynVt) { dv.GetTypeCache().RemoveAllTypes() }},
		{"Reset", func(dv *DynVt) { dv.Reset() }},
	}

	for _, tt := range resets {
		t.Run(tt.name, func(t *testing.T) {
			dv := NewDynVt()
			if err := dv.Validate(drawOps, reflect.TypeFor[Sprite]()); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if _, err := dv.Synthesize(drawOps, reflect.TypeFor[Sprite]()); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			tt.reset(dv)

			err := dv.Validate(missingOps, reflect.TypeFor[Sprite]())
			var contractErr *vtutils.ContractError
			if !errors.As(err, &contractErr) {
				t.Fatalf("expected *ContractError after reset, got %v", err)
			}
			if len(contractErr.Mismatches) != 1 || contractErr.Mismatches[0].Method != "Missing" {
				t.Errorf("expected Missing to be reported, got %v", err)
			}
			if _, err := dv.Synthesize(missingOps, reflect.TypeFor[Sprite]()); !errors.Is(err, ErrContractViolation) {
				t.Errorf("expected ErrContractViolation, got %v", err)
			}
			if _, err := dv.Synthesize(drawOps, reflect.TypeFor[Sprite]()); err != nil {
				t.Errorf("unexpected error after reset: %v", err)
			}
		})
	}
}

func TestValidate_Unsupported(t *testing.T) {
	dv := NewDynVt()

	err := dv.Validate(reflect.TypeFor[Taker](), reflect.TypeFor[anyTaker]())
	var contractErr *vtutils.ContractError
	if !errors.As(err, &contractErr) {
		t.Fatalf("expected *ContractError, got %v", err)
	}
	if contractErr.Mismatches[0].Reason != vtutils.ReasonUnsupported {
		t.Errorf("expected unsupported reason, got %v", contractErr.Mismatches[0].Reason)
	}
}

func TestValidate_NotAContract(t *testing.T) {
	dv := NewDynVt()

	tests := []struct {
		name     string
		contract reflect.Type
	}{
		{"plain struct", reflect.TypeFor[struct{ X int }]()},
		{"primitive", reflect.TypeFor[uint32]()},
		{"empty interface", reflect.TypeFor[any]()},
		{"nil", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := dv.Validate(tt.contract, reflect.TypeFor[Sprite]())
			if !errors.Is(err, vtutils.ErrNotAContract) {
				t.Errorf("expected ErrNotAContract, got %v", err)
			}
		})
	}
}

func TestValidate_Memoized(t *testing.T) {
	var logs []string
	dv := NewDynVt(WithVerbose(), WithLogCb(func(format string, args ...any) {
		logs = append(logs, format)
	}))

	for i := 0; i < 3; i++ {
		if err := dv.Validate(reflect.TypeFor[Drawable](), reflect.TypeFor[Sprite]()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	validations := 0
	for _, line := range logs {
		if strings.HasPrefix(line, "dynvt: validated") {
			validations++
		}
	}
	if validations != 1 {
		t.Errorf("expected a single validation run, got %d", validations)
	}
}

func TestImplements(t *testing.T) {
	dv := NewDynVt()

	if err := Implements[Reader, mutReader](dv); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := Implements[Writer, constReader](dv); !errors.Is(err, ErrContractViolation) {
		t.Errorf("expected contract violation, got %v", err)
	}
}
