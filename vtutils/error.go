// Copyright (c) 2025 pk910
// SPDX-License-Identifier: Apache-2.0
// This file is part of the dynamic-vtable library.

package vtutils

import "fmt"

var (
	ErrUnsupportedType     = fmt.Errorf("type cannot be reflected")
	ErrDeclarationNotFound = fmt.Errorf("declaration not found")
	ErrNotAContract        = fmt.Errorf("type is not a contract")
	ErrContractViolation   = fmt.Errorf("contract violation")
	ErrSlotCollision       = fmt.Errorf("conflicting slot in composed contracts")
	ErrShapeMismatch       = fmt.Errorf("table shape mismatch")
	ErrUnfinishedChange    = fmt.Errorf("previous change has not been committed")
	ErrNothingChanged      = fmt.Errorf("nothing changed since last commit")
	ErrContractStub        = fmt.Errorf("contract stub called")
)
