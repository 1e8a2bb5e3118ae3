// Copyright (c) 2025 pk910
// SPDX-License-Identifier: Apache-2.0
// This file is part of the dynamic-vtable library.

package dynvt

type DynVtOption func(*DynVtOptions)

type DynVtOptions struct {
	Verbose bool
	LogCb   func(format string, args ...any)
}

func WithVerbose() DynVtOption {
	return func(opts *DynVtOptions) {
		opts.Verbose = true
	}
}

func WithLogCb(logCb func(format string, args ...any)) DynVtOption {
	return func(opts *DynVtOptions) {
		opts.LogCb = logCb
	}
}

// CallOption is a functional option for per-call configuration of
// Synthesize and SynthesizeComposed.
type CallOption func(*callConfig)

// callConfig holds per-call configuration for synthesis.
type callConfig struct {
	// tableName is the display name of the synthesized table.
	tableName string

	// noCache bypasses the table cache of the instance.
	noCache bool
}

// applyCallOptions applies all provided CallOptions to a callConfig and returns it.
func applyCallOptions(opts []CallOption) *callConfig {
	cfg := &callConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// WithTableName sets the display name of the synthesized table, used by
// VTable.Name and in log output. Defaults to "<Contract>[<Impl>]".
func WithTableName(name string) CallOption {
	return func(cfg *callConfig) {
		cfg.tableName = name
	}
}

// WithoutCache forces a fresh table instead of returning the table cached
// for the same contract and implementation.
func WithoutCache() CallOption {
	return func(cfg *callConfig) {
		cfg.noCache = true
	}
}
