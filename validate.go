// Copyright (c) 2025 pk910
// SPDX-License-Identifier: Apache-2.0
// This file is part of the dynamic-vtable library.

package dynvt

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/pk910/dynamic-vtable/vttypes"
	"github.com/pk910/dynamic-vtable/vtutils"
)

// matcher compares contract signatures against implementation signatures.
// Occurrences of the contract type (bare or behind a pointer) inside nested
// function types are substituted with the implementation type.
type matcher struct {
	contract *vttypes.TypeDescriptor
	impl     *vttypes.TypeDescriptor

	// pairs of function types assumed equivalent while their signatures
	// are compared, so recursive function types terminate
	assumed map[[2]uint64]bool
}

func newMatcher(contract, impl *vttypes.TypeDescriptor) *matcher {
	return &matcher{
		contract: contract,
		impl:     impl,
		assumed:  map[[2]uint64]bool{},
	}
}

func (m *matcher) equivalent(c, i *vttypes.TypeDescriptor) bool {
	switch {
	case c == nil || i == nil:
		return c == i
	case c.Hash == m.contract.Hash:
		return i.Hash == m.impl.Hash
	case c.IsPointerTo(m.contract.Hash):
		return i.IsPointerTo(m.impl.Hash)
	case c.Signature != nil && i.Signature != nil:
		// identical function types still need the walk, they may mention the contract
		key := [2]uint64{c.Hash, i.Hash}
		if m.assumed[key] {
			return true
		}
		m.assumed[key] = true
		if m.equivalentSignature(c.Signature, i.Signature) != "" {
			delete(m.assumed, key)
			return false
		}
		return true
	default:
		return c.Hash == i.Hash
	}
}

// equivalentSignature compares two nested signatures and returns the first
// difference, or an empty string.
func (m *matcher) equivalentSignature(c, i *vttypes.FunctionDescriptor) string {
	if len(c.Params) != len(i.Params) {
		return fmt.Sprintf("expected %d parameter(s), found %d", len(c.Params), len(i.Params))
	}
	if c.Variadic != i.Variadic {
		return "variadic mismatch"
	}
	for p := range c.Params {
		if !m.equivalent(c.Params[p].Type, i.Params[p].Type) {
			return fmt.Sprintf("parameter %d: expected %s, found %s", p, m.format(c.Params[p].Type), i.Params[p].Type.Name)
		}
	}
	return m.compareResults(c, i)
}

func (m *matcher) compareResults(c, i *vttypes.FunctionDescriptor) string {
	if len(c.Results) != len(i.Results) {
		return fmt.Sprintf("expected %d result(s), found %d", len(c.Results), len(i.Results))
	}
	for r := range c.Results {
		if !m.equivalent(c.Results[r].Type, i.Results[r].Type) {
			return fmt.Sprintf("result %d: expected %s, found %s", r, m.format(c.Results[r].Type), i.Results[r].Type.Name)
		}
	}
	return ""
}

// compareSlot compares a contract slot against an implementation method and
// returns the first incompatibility, or an empty string.
func (m *matcher) compareSlot(slot *Slot, fd *vttypes.FunctionDescriptor) string {
	sig := slot.Signature
	if len(sig.Params) != len(fd.Params) {
		return fmt.Sprintf("expected %d parameter(s) including self, found %d", len(sig.Params), len(fd.Params))
	}
	if sig.Variadic != fd.Variadic {
		return "variadic mismatch"
	}

	for p := range sig.Params {
		cp := sig.Params[p].Type
		ip := fd.Params[p].Type

		contractSelf := classifySelf(cp, m.contract)
		if p == 0 {
			contractSelf = slot.Self
		}
		implSelf := classifySelf(ip, m.impl)

		switch {
		case contractSelf != SelfNone && implSelf != SelfNone:
			if contractSelf == SelfMutable && implSelf == SelfImmutable {
				return fmt.Sprintf("parameter %d: contract requires a mutable self, %s only accepts an immutable self", p, ip.Name)
			}
		case contractSelf != SelfNone:
			return fmt.Sprintf("parameter %d: contract expects %s, found plain %s", p, contractSelf, ip.Name)
		case implSelf != SelfNone:
			return fmt.Sprintf("parameter %d: contract expects plain %s, found %s", p, m.format(cp), implSelf)
		default:
			if !m.equivalent(cp, ip) {
				return fmt.Sprintf("parameter %d: expected %s, found %s", p, m.format(cp), ip.Name)
			}
		}
	}

	return m.compareResults(sig, fd)
}

// format renders a contract type in terms of the implementation type.
func (m *matcher) format(td *vttypes.TypeDescriptor) string {
	return vttypes.FormatType(td, vttypes.FormatOptions{Replace: m.replace})
}

func (m *matcher) replace(td *vttypes.TypeDescriptor) (*vttypes.TypeDescriptor, bool) {
	if td.Hash == m.contract.Hash {
		return m.impl, true
	}
	return nil, false
}

// formatSlot renders the expected signature of a slot. Table slots are
// rendered as named fields, method slots with their receiver.
func formatSlot(slot *Slot, qualified bool) string {
	opts := vttypes.FormatOptions{Qualified: qualified, Name: slot.Method}
	if slot.Contract != nil && slot.Contract.Form == ContractTable {
		return slot.Method + " " + vttypes.FormatFunction(slot.Signature, opts)
	}
	return vttypes.FormatFunction(slot.Signature, opts)
}

// implDescriptor returns the descriptor whose methods implement contracts.
func implDescriptor(td *vttypes.TypeDescriptor) *vttypes.TypeDescriptor {
	if td.Category == vttypes.CategoryPointer && td.Flags&vttypes.TypeFlagNamed == 0 && td.Elem != nil {
		return td.Elem
	}
	return td
}

// CheckContract validates impl against a single contract and returns every
// failing slot in contract order. It works on descriptors only.
func CheckContract(contract *Contract, impl *vttypes.TypeDescriptor) []vtutils.MethodMismatch {
	impl = implDescriptor(impl)
	mismatches := []vtutils.MethodMismatch{}

	for _, slot := range contract.Slots {
		mismatch := vtutils.MethodMismatch{
			Contract:      contract.Name(),
			Method:        slot.Name,
			Expected:      formatSlot(slot, true),
			ExpectedShort: formatSlot(slot, false),
		}

		fd, err := impl.GetFunction(slot.Method)
		switch {
		case errors.Is(err, vtutils.ErrUnsupportedType):
			mismatch.Reason = vtutils.ReasonUnsupported
			mismatch.Detail = err.Error()
			mismatches = append(mismatches, mismatch)
			continue
		case err != nil:
			mismatch.Reason = vtutils.ReasonMissing
			mismatches = append(mismatches, mismatch)
			continue
		}

		if detail := newMatcher(contract.Descriptor, impl).compareSlot(slot, fd); detail != "" {
			mismatch.Reason = vtutils.ReasonMismatch
			mismatch.Actual = fd.String()
			mismatch.Detail = detail
			mismatches = append(mismatches, mismatch)
		}
	}

	return mismatches
}

// ValidateContracts validates impl against all given contracts and returns
// nil or a *vtutils.ContractError listing every failing slot of every
// contract.
func ValidateContracts(impl *vttypes.TypeDescriptor, contracts ...*Contract) error {
	mismatches := []vtutils.MethodMismatch{}
	for _, contract := range contracts {
		mismatches = append(mismatches, CheckContract(contract, impl)...)
	}
	return contractError(impl, contracts, mismatches)
}

func contractError(impl *vttypes.TypeDescriptor, contracts []*Contract, mismatches []vtutils.MethodMismatch) error {
	if len(mismatches) == 0 {
		return nil
	}

	names := make([]string, len(contracts))
	for i, contract := range contracts {
		names[i] = contract.Name()
	}

	return &vtutils.ContractError{
		Contracts:  names,
		Impl:       implDescriptor(impl).Name,
		Mismatches: mismatches,
	}
}

// checkContract returns the memoized mismatches of impl against contract.
func (d *DynVt) checkContract(contract *Contract, impl *vttypes.TypeDescriptor) []vtutils.MethodMismatch {
	impl = implDescriptor(impl)
	key := validationKey{contract: contract.Descriptor.Hash, impl: impl.Hash}
	d.syncSession()

	d.mutex.Lock()
	mismatches, ok := d.validations[key]
	d.mutex.Unlock()
	if ok {
		return mismatches
	}

	mismatches = CheckContract(contract, impl)
	d.logf("dynvt: validated %s against %s: %d mismatch(es)", impl.Name, contract.Name(), len(mismatches))

	d.mutex.Lock()
	d.validations[key] = mismatches
	d.mutex.Unlock()

	return mismatches
}

// Validate checks that impl structurally satisfies contract. It returns nil
// or a *vtutils.ContractError (which unwraps to ErrContractViolation)
// describing every missing or mismatched method.
func (d *DynVt) Validate(contract, impl reflect.Type) error {
	c, err := d.resolveContract(contract)
	if err != nil {
		return err
	}
	implDesc, err := d.Describe(impl)
	if err != nil {
		return err
	}

	return contractError(implDesc, []*Contract{c}, d.checkContract(c, implDesc))
}
