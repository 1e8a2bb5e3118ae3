// Copyright (c) 2025 pk910
// SPDX-License-Identifier: Apache-2.0
// This file is part of the dynamic-vtable library.

package codegen

import (
	"runtime/debug"
)

// Version is the dynamic-vtable version recorded in generated file headers.
// It is read from the build info and stays "unknown" in development builds.
var Version = "unknown"

func init() {
	if info, ok := debug.ReadBuildInfo(); ok {
		if info.Main.Path == "github.com/pk910/dynamic-vtable" && info.Main.Version != "" && info.Main.Version != "(devel)" {
			Version = info.Main.Version
			return
		}
		for _, dep := range info.Deps {
			if dep.Path == "github.com/pk910/dynamic-vtable" {
				Version = dep.Version
				break
			}
		}
	}
}
