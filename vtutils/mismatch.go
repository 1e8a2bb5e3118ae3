// Copyright (c) 2025 pk910
// SPDX-License-Identifier: Apache-2.0
// This file is part of the dynamic-vtable library.

package vtutils

import (
	"fmt"
	"strings"
)

// MismatchReason classifies a single failing contract slot.
type MismatchReason uint8

const (
	ReasonMissing     MismatchReason = iota // no method with the slot name
	ReasonMismatch                          // method exists with an incompatible signature
	ReasonUnsupported                       // method signature cannot be reflected
)

func (r MismatchReason) String() string {
	switch r {
	case ReasonMissing:
		return "missing"
	case ReasonMismatch:
		return "mismatched"
	case ReasonUnsupported:
		return "unsupported"
	default:
		return fmt.Sprintf("reason(%d)", uint8(r))
	}
}

// MethodMismatch describes one missing or mismatched contract slot.
type MethodMismatch struct {
	Contract      string         // short name of the contract declaring the slot
	Method        string         // slot name
	Expected      string         // expected signature, fully qualified
	ExpectedShort string         // expected signature, short names
	Actual        string         // actual signature (short names), empty if missing
	Reason        MismatchReason // classification
	Detail        string         // first incompatibility found, empty if missing
}

// ContractError is the aggregated result of a failed contract validation.
// It lists every failing slot, in contract order, so all problems can be
// fixed in one pass.
type ContractError struct {
	Contracts  []string
	Impl       string
	Mismatches []MethodMismatch
}

func (e *ContractError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s does not satisfy %s: %d method(s) missing or mismatched",
		e.Impl, strings.Join(e.Contracts, " + "), len(e.Mismatches))

	for _, m := range e.Mismatches {
		b.WriteString("\n  - ")
		b.WriteString(m.Method)
		if len(e.Contracts) > 1 && m.Contract != "" {
			fmt.Fprintf(&b, " (%s)", m.Contract)
		}
		fmt.Fprintf(&b, ": %s", m.Reason)
		fmt.Fprintf(&b, "\n      expected: %s", m.ExpectedShort)
		if m.Expected != m.ExpectedShort {
			fmt.Fprintf(&b, "\n                (%s)", m.Expected)
		}
		if m.Actual != "" {
			fmt.Fprintf(&b, "\n      found:    %s", m.Actual)
		}
		if m.Detail != "" {
			fmt.Fprintf(&b, "\n      reason:   %s", m.Detail)
		}
	}

	return b.String()
}

func (e *ContractError) Unwrap() error {
	return ErrContractViolation
}

// Missing returns the names of all slots without a matching method.
func (e *ContractError) Missing() []string {
	names := make([]string, 0, len(e.Mismatches))
	for _, m := range e.Mismatches {
		if m.Reason == ReasonMissing {
			names = append(names, m.Method)
		}
	}
	return names
}

// SignatureError reports a function lookup whose argument types differ from
// the requested ones.
type SignatureError struct {
	Type     string
	Function string
	Expected []string
	Actual   []string
	Position int // first differing argument position, -1 on arity mismatch
}

func (e *SignatureError) Error() string {
	if e.Position < 0 {
		return fmt.Sprintf("%s.%s takes %d argument(s) (%s), requested %d (%s)",
			e.Type, e.Function, len(e.Actual), strings.Join(e.Actual, ", "),
			len(e.Expected), strings.Join(e.Expected, ", "))
	}
	return fmt.Sprintf("%s.%s argument %d is %s, requested %s",
		e.Type, e.Function, e.Position, e.Actual[e.Position], e.Expected[e.Position])
}
