// Copyright (c) 2025 pk910
// SPDX-License-Identifier: Apache-2.0
// This file is part of the dynamic-vtable library.

package vttypes

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

// HashIdentity derives the 64 bit identity hash of a canonical type string.
func HashIdentity(canonical string) uint64 {
	sum := sha256.Sum256([]byte(canonical))
	return binary.BigEndian.Uint64(sum[:8])
}

// IdentityTable assigns identity hashes to canonical names and keeps them
// unique: if two distinct types ever hash to the same value, the later one is
// salted until it is unique.
type IdentityTable[K comparable] struct {
	hashes map[K]uint64
	owners map[uint64]K
}

// NewIdentityTable creates an empty identity table.
func NewIdentityTable[K comparable]() *IdentityTable[K] {
	return &IdentityTable[K]{
		hashes: make(map[K]uint64),
		owners: make(map[uint64]K),
	}
}

// Get returns the identity hash of key, computing canonical lazily.
func (it *IdentityTable[K]) Get(key K, canonical func() string) uint64 {
	if hash, ok := it.hashes[key]; ok {
		return hash
	}

	name := canonical()
	hash := HashIdentity(name)
	for salt := 1; ; salt++ {
		owner, taken := it.owners[hash]
		if !taken || owner == key {
			break
		}
		hash = HashIdentity(name + "#" + strconv.Itoa(salt))
	}

	it.hashes[key] = hash
	it.owners[hash] = key
	return hash
}

// canonicalName returns the package path qualified name of a reflect type.
// Named types terminate the recursion, so the walk is finite even for
// self-referential types.
func canonicalName(t reflect.Type) string {
	var b strings.Builder
	writeCanonical(&b, t)
	return b.String()
}

func writeCanonical(b *strings.Builder, t reflect.Type) {
	if t.Name() != "" {
		if pkg := t.PkgPath(); pkg != "" {
			b.WriteString(pkg)
			b.WriteByte('.')
		}
		b.WriteString(t.Name())
		return
	}

	switch t.Kind() {
	case reflect.Pointer:
		b.WriteByte('*')
		writeCanonical(b, t.Elem())
	case reflect.Slice:
		b.WriteString("[]")
		writeCanonical(b, t.Elem())
	case reflect.Array:
		fmt.Fprintf(b, "[%d]", t.Len())
		writeCanonical(b, t.Elem())
	case reflect.Map:
		b.WriteString("map[")
		writeCanonical(b, t.Key())
		b.WriteByte(']')
		writeCanonical(b, t.Elem())
	case reflect.Chan:
		switch t.ChanDir() {
		case reflect.RecvDir:
			b.WriteString("<-chan ")
		case reflect.SendDir:
			b.WriteString("chan<- ")
		default:
			b.WriteString("chan ")
		}
		writeCanonical(b, t.Elem())
	case reflect.Func:
		b.WriteString("func(")
		for i := 0; i < t.NumIn(); i++ {
			if i > 0 {
				b.WriteString(", ")
			}
			if t.IsVariadic() && i == t.NumIn()-1 {
				b.WriteString("...")
				writeCanonical(b, t.In(i).Elem())
				continue
			}
			writeCanonical(b, t.In(i))
		}
		b.WriteByte(')')
		if t.NumOut() > 0 {
			b.WriteString(" (")
			for i := 0; i < t.NumOut(); i++ {
				if i > 0 {
					b.WriteString(", ")
				}
				writeCanonical(b, t.Out(i))
			}
			b.WriteByte(')')
		}
	case reflect.Struct:
		b.WriteString("struct{")
		for i := 0; i < t.NumField(); i++ {
			f := t.Field(i)
			if i > 0 {
				b.WriteString("; ")
			}
			if !f.IsExported() {
				b.WriteString(f.PkgPath)
				b.WriteByte('.')
			}
			b.WriteString(f.Name)
			b.WriteByte(' ')
			writeCanonical(b, f.Type)
			if f.Anonymous {
				b.WriteString(" embedded")
			}
			if f.Tag != "" {
				b.WriteByte(' ')
				b.WriteString(strconv.Quote(string(f.Tag)))
			}
		}
		b.WriteByte('}')
	case reflect.Interface:
		b.WriteString("interface{")
		for i := 0; i < t.NumMethod(); i++ {
			m := t.Method(i)
			if i > 0 {
				b.WriteString("; ")
			}
			if m.PkgPath != "" {
				b.WriteString(m.PkgPath)
				b.WriteByte('.')
			}
			b.WriteString(m.Name)
			b.WriteByte(' ')
			writeCanonical(b, m.Type)
		}
		b.WriteByte('}')
	default:
		b.WriteString(t.String())
	}
}

// hasPointers reports whether values of t contain pointers. Structs can only
// embed themselves through pointers, so the recursion terminates.
func hasPointers(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Pointer, reflect.UnsafePointer, reflect.Map, reflect.Chan,
		reflect.Func, reflect.Interface, reflect.Slice, reflect.String:
		return true
	case reflect.Array:
		return t.Len() > 0 && hasPointers(t.Elem())
	case reflect.Struct:
		for i := 0; i < t.NumField(); i++ {
			if hasPointers(t.Field(i).Type) {
				return true
			}
		}
		return false
	default:
		return false
	}
}
