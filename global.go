// Copyright (c) 2025 pk910
// SPDX-License-Identifier: Apache-2.0
// This file is part of the dynamic-vtable library.

package dynvt

import (
	"reflect"
	"sync"
)

var (
	globalDynVt     *DynVt
	globalDynVtLock sync.Mutex
)

func GetGlobalDynVt() *DynVt {
	globalDynVtLock.Lock()
	defer globalDynVtLock.Unlock()

	if globalDynVt == nil {
		globalDynVt = NewDynVt()
	}
	return globalDynVt
}

// ResetGlobalDynVt replaces the global instance, dropping all cached state.
func ResetGlobalDynVt(opts ...DynVtOption) {
	globalDynVtLock.Lock()
	defer globalDynVtLock.Unlock()

	globalDynVt = NewDynVt(opts...)
}

// Validate checks impl against contract using the global instance.
func Validate(contract, impl reflect.Type) error {
	return GetGlobalDynVt().Validate(contract, impl)
}

// Synthesize builds a dispatch table using the global instance.
func Synthesize(contract, impl reflect.Type, opts ...CallOption) (*VTable, error) {
	return GetGlobalDynVt().Synthesize(contract, impl, opts...)
}
