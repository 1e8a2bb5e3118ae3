// Copyright (c) 2025 pk910
// SPDX-License-Identifier: Apache-2.0
// This file is part of the dynamic-vtable library.

package vttypes

import (
	"fmt"
	"strings"
)

// FormatOptions controls how descriptors are rendered as Go source text.
type FormatOptions struct {
	// Qualified renders named types with their full package path.
	Qualified bool

	// Replace substitutes the rendering of single types, e.g. to print a
	// contract signature in terms of an implementation type.
	Replace func(td *TypeDescriptor) (*TypeDescriptor, bool)

	// Name overrides the function name (methods) in the rendered signature.
	Name string
}

// FormatType renders a type descriptor as Go type syntax.
func FormatType(td *TypeDescriptor, opts FormatOptions) string {
	var b strings.Builder
	writeType(&b, td, opts, 0)
	return b.String()
}

// FormatFunction renders a function descriptor as a Go signature. Methods are
// rendered with their receiver, e.g. "func (*pkg.T) Name(uint32) error".
func FormatFunction(fd *FunctionDescriptor, opts FormatOptions) string {
	var b strings.Builder
	b.WriteString("func")

	params := fd.Params
	name := fd.Name
	if opts.Name != "" {
		name = opts.Name
	}
	if recv := fd.Receiver(); recv != nil {
		b.WriteString(" (")
		writeType(&b, recv.Type, opts, 0)
		b.WriteString(")")
		params = params[1:]
	}
	if name != "" && fd.Category != FunctionFree {
		b.WriteByte(' ')
		b.WriteString(name)
	}

	writeSignature(&b, fd, params, opts, 0)
	return b.String()
}

func writeSignature(b *strings.Builder, fd *FunctionDescriptor, params []ParameterDescriptor, opts FormatOptions, depth int) {
	b.WriteByte('(')
	for i, p := range params {
		if i > 0 {
			b.WriteString(", ")
		}
		if fd.Variadic && i == len(params)-1 && p.Type.Elem != nil {
			b.WriteString("...")
			writeType(b, p.Type.Elem, opts, depth+1)
			continue
		}
		writeType(b, p.Type, opts, depth+1)
	}
	b.WriteByte(')')

	switch len(fd.Results) {
	case 0:
	case 1:
		b.WriteByte(' ')
		writeType(b, fd.Results[0].Type, opts, depth+1)
	default:
		b.WriteString(" (")
		for i, r := range fd.Results {
			if i > 0 {
				b.WriteString(", ")
			}
			writeType(b, r.Type, opts, depth+1)
		}
		b.WriteByte(')')
	}
}

// maxFormatDepth bounds rendering of unnamed types; recursive types are always
// named, so this only guards malformed descriptors.
const maxFormatDepth = 32

func writeType(b *strings.Builder, td *TypeDescriptor, opts FormatOptions, depth int) {
	if td == nil {
		b.WriteString("<nil>")
		return
	}
	if opts.Replace != nil {
		if repl, ok := opts.Replace(td); ok {
			td = repl
		}
	}
	if td.Flags&TypeFlagNamed != 0 || depth > maxFormatDepth {
		if opts.Qualified {
			b.WriteString(td.FullName)
		} else {
			b.WriteString(td.Name)
		}
		return
	}

	switch {
	case td.Category == CategoryPointer && td.Elem != nil:
		b.WriteByte('*')
		writeType(b, td.Elem, opts, depth+1)
	case td.Category == CategoryVector && td.Elem != nil:
		fmt.Fprintf(b, "[%d]", td.Len)
		writeType(b, td.Elem, opts, depth+1)
	case td.Category == CategoryCollection && td.Key != nil && td.Elem != nil:
		b.WriteString("map[")
		writeType(b, td.Key, opts, depth+1)
		b.WriteByte(']')
		writeType(b, td.Elem, opts, depth+1)
	case td.Category == CategoryCollection && td.Elem != nil:
		b.WriteString("[]")
		writeType(b, td.Elem, opts, depth+1)
	case td.Category == CategoryFunction && td.Signature != nil:
		b.WriteString("func")
		writeSignature(b, td.Signature, td.Signature.Params, opts, depth)
	default:
		if opts.Qualified {
			b.WriteString(td.FullName)
		} else {
			b.WriteString(td.Name)
		}
	}
}
