// Copyright (c) 2025 pk910
// SPDX-License-Identifier: Apache-2.0
// This file is part of the dynamic-vtable library.

package dynvt

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/pk910/dynamic-vtable/vtutils"
)

// ComposedContract is the ordered union of several contracts.
//
// Slots keep the order of their first appearance. A slot declared by more
// than one contract is merged when all declarations agree (same method, same
// self kind, same signature once each contract type is read as the
// implementation placeholder). Disagreeing declarations are an error.
type ComposedContract struct {
	Contracts []*Contract
	Slots     []*Slot
}

// Name returns the display name of the composition, e.g. "Reader+Writer".
func (cc *ComposedContract) Name() string {
	names := make([]string, len(cc.Contracts))
	for i, contract := range cc.Contracts {
		names[i] = contract.Name()
	}
	return strings.Join(names, "+")
}

// SlotNames returns the merged slot names.
func (cc *ComposedContract) SlotNames() []string {
	names := make([]string, len(cc.Slots))
	for i, slot := range cc.Slots {
		names[i] = slot.Name
	}
	return names
}

// ComposeContracts merges resolved contracts. It works on descriptors only.
// The work is linear in the total number of slots.
func ComposeContracts(contracts ...*Contract) (*ComposedContract, error) {
	if len(contracts) == 0 {
		return nil, fmt.Errorf("empty composition: %w", vtutils.ErrNotAContract)
	}

	composed := &ComposedContract{}
	seenContracts := map[uint64]bool{}
	slotIndex := map[string]int{}

	for _, contract := range contracts {
		if seenContracts[contract.Descriptor.Hash] {
			continue
		}
		seenContracts[contract.Descriptor.Hash] = true
		composed.Contracts = append(composed.Contracts, contract)

		for _, slot := range contract.Slots {
			idx, exists := slotIndex[slot.Name]
			if !exists {
				slotIndex[slot.Name] = len(composed.Slots)
				composed.Slots = append(composed.Slots, slot)
				continue
			}

			existing := composed.Slots[idx]
			if detail := compareSlots(existing, slot); detail != "" {
				return nil, fmt.Errorf("slot %s declared by %s as %s and by %s as %s (%s): %w",
					slot.Name,
					existing.Contract.Name(), formatSlot(existing, false),
					slot.Contract.Name(), formatSlot(slot, false),
					detail, vtutils.ErrSlotCollision)
			}
		}
	}

	return composed, nil
}

// compareSlots reports the first difference between two declarations of the
// same slot in different contracts, or an empty string.
func compareSlots(a, b *Slot) string {
	if a.Method != b.Method {
		return fmt.Sprintf("bound to methods %s and %s", a.Method, b.Method)
	}
	if a.Self != b.Self {
		return fmt.Sprintf("%s vs %s", a.Self, b.Self)
	}

	sa, sb := a.Signature, b.Signature
	if len(sa.Params) != len(sb.Params) {
		return fmt.Sprintf("%d vs %d parameter(s)", len(sa.Params), len(sb.Params))
	}
	if sa.Variadic != sb.Variadic {
		return "variadic mismatch"
	}

	m := newMatcher(a.Contract.Descriptor, b.Contract.Descriptor)
	for p := range sa.Params {
		ka, kb := a.Self, b.Self
		if p > 0 {
			ka = classifySelf(sa.Params[p].Type, a.Contract.Descriptor)
			kb = classifySelf(sb.Params[p].Type, b.Contract.Descriptor)
		}
		if ka != kb {
			return fmt.Sprintf("parameter %d: %s vs %s", p, ka, kb)
		}
		if ka == SelfNone && !m.equivalent(sa.Params[p].Type, sb.Params[p].Type) {
			return fmt.Sprintf("parameter %d: %s vs %s", p, sa.Params[p].Type.Name, sb.Params[p].Type.Name)
		}
	}

	return m.compareResults(sa, sb)
}

// Compose resolves and merges the given contract types.
func (d *DynVt) Compose(contracts ...reflect.Type) (*ComposedContract, error) {
	resolved := make([]*Contract, len(contracts))
	for i, t := range contracts {
		contract, err := d.resolveContract(t)
		if err != nil {
			return nil, err
		}
		resolved[i] = contract
	}

	composed, err := ComposeContracts(resolved...)
	if err != nil {
		return nil, err
	}

	d.logf("dynvt: composed %s with %d slot(s)", composed.Name(), len(composed.Slots))
	return composed, nil
}

// SynthesizeComposed validates impl against every contract of the
// composition and builds a single table holding the merged slots. All
// mismatches of all contracts are reported in one *vtutils.ContractError.
func (d *DynVt) SynthesizeComposed(composed *ComposedContract, impl reflect.Type, opts ...CallOption) (*VTable, error) {
	return d.synthesize(composed.Contracts, composed.Slots, impl, applyCallOptions(opts))
}
