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

// ContractForm is the way a contract declares its slots.
type ContractForm uint8

const (
	// ContractMethods declares slots as stub methods on a named type.
	ContractMethods ContractForm = iota
	// ContractTable declares slots as func fields of a struct.
	ContractTable
	// ContractInterface declares slots as interface methods.
	ContractInterface
)

func (f ContractForm) String() string {
	switch f {
	case ContractMethods:
		return "methods"
	case ContractTable:
		return "table"
	case ContractInterface:
		return "interface"
	default:
		return fmt.Sprintf("form(%d)", uint8(f))
	}
}

// SelfKind classifies a parameter relative to the type that declares it.
type SelfKind uint8

const (
	SelfNone      SelfKind = iota // plain value
	SelfImmutable                 // T
	SelfMutable                   // *T
	SelfErased                    // unsafe.Pointer self of a table-shape contract
)

func (k SelfKind) String() string {
	switch k {
	case SelfNone:
		return "value"
	case SelfImmutable:
		return "immutable self"
	case SelfMutable:
		return "mutable self"
	case SelfErased:
		return "erased self"
	default:
		return fmt.Sprintf("self(%d)", uint8(k))
	}
}

// Slot is a single entry of a contract: one function the implementation has
// to provide.
type Slot struct {
	Name      string                      // table field name
	Method    string                      // implementation method name
	Signature *vttypes.FunctionDescriptor // contract signature, Params[0] is self
	Self      SelfKind                    // kind of the leading self parameter
	Contract  *Contract                   // declaring contract
}

// Contract is a resolved contract type.
type Contract struct {
	Descriptor *vttypes.TypeDescriptor
	Form       ContractForm
	Slots      []*Slot
}

// Name returns the display name of the contract type.
func (c *Contract) Name() string {
	return c.Descriptor.Name
}

// SlotNames returns the slot names in declaration order.
func (c *Contract) SlotNames() []string {
	names := make([]string, len(c.Slots))
	for i, slot := range c.Slots {
		names[i] = slot.Name
	}
	return names
}

// Slot returns the slot with the given name.
func (c *Contract) Slot(name string) (*Slot, bool) {
	for _, slot := range c.Slots {
		if slot.Name == name {
			return slot, true
		}
	}
	return nil, false
}

// classifySelf reports whether td is owner (immutable self) or a pointer to
// owner (mutable self).
func classifySelf(td *vttypes.TypeDescriptor, owner *vttypes.TypeDescriptor) SelfKind {
	switch {
	case td.Hash == owner.Hash:
		return SelfImmutable
	case td.IsPointerTo(owner.Hash):
		return SelfMutable
	default:
		return SelfNone
	}
}

func isUnsafePointer(td *vttypes.TypeDescriptor) bool {
	return td.Kind == reflect.UnsafePointer
}

// ResolveContract resolves the slots of a contract descriptor. It works on
// descriptors only, so descriptors from any backend can be resolved.
//
// Interfaces (other than the empty interface) resolve to their method set
// with an implicit immutable self. Structs whose fields are all functions
// and that declare no methods are table-shape contracts. Any other type with
// methods is a method contract.
func ResolveContract(td *vttypes.TypeDescriptor) (*Contract, error) {
	if td.Category == vttypes.CategoryPointer && td.Flags&vttypes.TypeFlagNamed == 0 && td.Elem != nil {
		td = td.Elem
	}

	contract := &Contract{
		Descriptor: td,
	}

	methods := []string{}
	for _, name := range td.DeclarationNames() {
		decl, err := td.GetDeclaration(name)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve declaration %s of %s: %w", name, td.Name, err)
		}
		if decl.Kind == vttypes.DeclarationMethod {
			methods = append(methods, name)
		}
	}

	var err error
	switch {
	case td.Kind == reflect.Interface:
		if td.Flags&vttypes.TypeFlagErased != 0 {
			return nil, fmt.Errorf("%s has no methods: %w", td.Name, vtutils.ErrNotAContract)
		}
		contract.Form = ContractInterface
		err = contract.resolveMethods(methods)
	case len(methods) == 0 && isTableShape(td):
		contract.Form = ContractTable
		err = contract.resolveTable()
	case len(methods) > 0:
		contract.Form = ContractMethods
		err = contract.resolveMethods(methods)
	default:
		return nil, fmt.Errorf("%s declares neither methods nor func fields: %w", td.Name, vtutils.ErrNotAContract)
	}
	if err != nil {
		return nil, err
	}

	if len(contract.Slots) == 0 {
		return nil, fmt.Errorf("%s declares no slots: %w", td.Name, vtutils.ErrNotAContract)
	}

	return contract, nil
}

func isTableShape(td *vttypes.TypeDescriptor) bool {
	if td.Category != vttypes.CategoryStruct || len(td.Fields) == 0 {
		return false
	}
	for i := range td.Fields {
		if td.Fields[i].Type.Category != vttypes.CategoryFunction {
			return false
		}
	}
	return true
}

func (c *Contract) resolveMethods(methods []string) error {
	td := c.Descriptor
	for _, name := range methods {
		fd, err := td.GetFunction(name)
		if err != nil {
			return fmt.Errorf("contract %s slot %s: %w", td.Name, name, err)
		}

		self := SelfNone
		if recv := fd.Receiver(); recv != nil {
			self = classifySelf(recv.Type, td)
		}

		c.Slots = append(c.Slots, &Slot{
			Name:      name,
			Method:    name,
			Signature: fd,
			Self:      self,
			Contract:  c,
		})
	}
	return nil
}

func (c *Contract) resolveTable() error {
	td := c.Descriptor
	for i := range td.Fields {
		field := &td.Fields[i]

		tag, err := vttypes.SlotTagOf(field)
		if err != nil {
			return fmt.Errorf("contract %s: %w", td.Name, err)
		}
		if tag.Skip {
			continue
		}
		if !field.Exported {
			return fmt.Errorf("contract %s slot %s is not exported: %w", td.Name, field.Name, vtutils.ErrNotAContract)
		}

		fieldType, err := td.Resolve(field.Type)
		if err != nil {
			return fmt.Errorf("contract %s slot %s: %w", td.Name, field.Name, err)
		}
		if fieldType.Signature == nil {
			return fmt.Errorf("contract %s slot %s: signature of %s cannot be reflected: %w", td.Name, field.Name, fieldType.Name, vtutils.ErrUnsupportedType)
		}

		sig := fieldType.Signature
		self := SelfNone
		if len(sig.Params) > 0 {
			first := sig.Params[0].Type
			self = classifySelf(first, td)
			if self == SelfNone && isUnsafePointer(first) {
				self = SelfErased
			}
		}

		c.Slots = append(c.Slots, &Slot{
			Name:      field.Name,
			Method:    tag.Name,
			Signature: sig,
			Self:      self,
			Contract:  c,
		})
	}
	return nil
}

// resolveContract returns the memoized contract of a reflect type.
func (d *DynVt) resolveContract(t reflect.Type) (*Contract, error) {
	if t == nil {
		return nil, fmt.Errorf("nil contract: %w", vtutils.ErrNotAContract)
	}
	if t.Kind() == reflect.Pointer && t.Name() == "" {
		t = t.Elem()
	}
	d.syncSession()

	d.mutex.Lock()
	entry, ok := d.contracts[t]
	d.mutex.Unlock()
	if ok {
		return entry.contract, entry.err
	}

	desc, err := d.Describe(t)
	if err != nil {
		return nil, err
	}
	contract, err := ResolveContract(desc)
	if err != nil && !errors.Is(err, vtutils.ErrNotAContract) && !errors.Is(err, vtutils.ErrUnsupportedType) {
		err = fmt.Errorf("%w: %w", vtutils.ErrNotAContract, err)
	}
	if err == nil {
		d.logf("dynvt: resolved %s contract %s with %d slot(s)", contract.Form, contract.Name(), len(contract.Slots))
	}

	d.mutex.Lock()
	d.contracts[t] = &contractEntry{contract: contract, err: err}
	d.mutex.Unlock()

	return contract, err
}

// Contract returns the resolved contract of t.
func (d *DynVt) Contract(t reflect.Type) (*Contract, error) {
	return d.resolveContract(t)
}
