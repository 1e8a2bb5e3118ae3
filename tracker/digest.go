// Copyright (c) 2025 pk910
// SPDX-License-Identifier: Apache-2.0
// This file is part of the dynamic-vtable library.

package tracker

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"hash"
	"math"
	"reflect"
	"sort"
	"unsafe"

	"github.com/pk910/dynamic-vtable/vttypes"
)

// fieldDigest hashes one field of the struct at base. Pointer free fields
// are hashed from their raw memory, everything else with a deep walk.
func fieldDigest(base unsafe.Pointer, value reflect.Value, field *vttypes.FieldDescriptor) [32]byte {
	if field.Type.Flags&vttypes.TypeFlagHasPointers == 0 {
		if field.Type.Size == 0 {
			return sha256.Sum256(nil)
		}
		raw := unsafe.Slice((*byte)(unsafe.Add(base, field.Offset)), field.Type.Size)
		return sha256.Sum256(raw)
	}

	w := newWalker()
	w.walk(value.Field(field.Index))
	return w.sum()
}

// walker feeds a deterministic encoding of a value graph into a hash.
// Revisited pointers are encoded by their first visit index.
type walker struct {
	h       hash.Hash
	visited map[uintptr]uint64
	buf     [8]byte
}

func newWalker() *walker {
	return &walker{
		h:       sha256.New(),
		visited: map[uintptr]uint64{},
	}
}

func (w *walker) sum() [32]byte {
	var out [32]byte
	w.h.Sum(out[:0])
	return out
}

func (w *walker) tag(b byte) {
	w.h.Write([]byte{b})
}

func (w *walker) uint64(v uint64) {
	binary.LittleEndian.PutUint64(w.buf[:], v)
	w.h.Write(w.buf[:])
}

func (w *walker) walk(v reflect.Value) {
	switch v.Kind() {
	case reflect.Bool:
		if v.Bool() {
			w.tag(1)
		} else {
			w.tag(0)
		}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		w.uint64(uint64(v.Int()))
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		w.uint64(v.Uint())
	case reflect.Float32, reflect.Float64:
		w.uint64(math.Float64bits(v.Float()))
	case reflect.Complex64, reflect.Complex128:
		c := v.Complex()
		w.uint64(math.Float64bits(real(c)))
		w.uint64(math.Float64bits(imag(c)))
	case reflect.String:
		s := v.String()
		w.uint64(uint64(len(s)))
		w.h.Write([]byte(s))
	case reflect.Pointer:
		if v.IsNil() {
			w.tag(0)
			return
		}
		addr := v.Pointer()
		if idx, ok := w.visited[addr]; ok {
			w.tag(2)
			w.uint64(idx)
			return
		}
		w.visited[addr] = uint64(len(w.visited))
		w.tag(1)
		w.walk(v.Elem())
	case reflect.Interface:
		if v.IsNil() {
			w.tag(0)
			return
		}
		elem := v.Elem()
		w.tag(1)
		name := elem.Type().String()
		w.uint64(uint64(len(name)))
		w.h.Write([]byte(name))
		w.walk(elem)
	case reflect.Slice:
		if v.IsNil() {
			w.tag(0)
			return
		}
		w.tag(1)
		fallthrough
	case reflect.Array:
		w.uint64(uint64(v.Len()))
		if v.Type().Elem().Kind() == reflect.Uint8 && v.Kind() == reflect.Slice {
			w.h.Write(v.Bytes())
			return
		}
		for i := 0; i < v.Len(); i++ {
			w.walk(v.Index(i))
		}
	case reflect.Map:
		if v.IsNil() {
			w.tag(0)
			return
		}
		w.tag(1)
		w.walkMap(v)
	case reflect.Struct:
		for i := 0; i < v.NumField(); i++ {
			w.walk(v.Field(i))
		}
	case reflect.Func, reflect.Chan, reflect.UnsafePointer:
		// identity only
		w.uint64(uint64(v.Pointer()))
	}
}

// walkMap hashes the entries sorted by key digest, so iteration order does
// not affect the result.
func (w *walker) walkMap(v reflect.Value) {
	type entry struct {
		key   [32]byte
		value [32]byte
	}

	entries := make([]entry, 0, v.Len())
	iter := v.MapRange()
	for iter.Next() {
		kw := newWalker()
		kw.walk(iter.Key())
		vw := newWalker()
		vw.walk(iter.Value())
		entries = append(entries, entry{key: kw.sum(), value: vw.sum()})
	}

	sort.Slice(entries, func(i, j int) bool {
		return bytes.Compare(entries[i].key[:], entries[j].key[:]) < 0
	})

	w.uint64(uint64(len(entries)))
	for _, e := range entries {
		w.h.Write(e.key[:])
		w.h.Write(e.value[:])
	}
}
