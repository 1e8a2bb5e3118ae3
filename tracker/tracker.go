// Copyright (c) 2025 pk910
// SPDX-License-Identifier: Apache-2.0
// This file is part of the dynamic-vtable library.

// Package tracker detects field changes of a struct value by comparing
// per-field digests against a committed snapshot.
//
// Usage:
//
//	tr, err := tracker.Snapshot(nil, &state)
//	view, err := tr.MutableView()
//	view.Counter++
//	changed := tr.ChangedFields() // [Counter]
//	err = tr.Commit()
package tracker

import (
	"crypto/sha256"
	"fmt"
	"reflect"
	"sync"
	"unsafe"

	"github.com/pk910/dynamic-vtable/vttypes"
	"github.com/pk910/dynamic-vtable/vtutils"
)

// Option configures a Tracker.
type Option func(*options)

type options struct {
	hashFn HashFn
}

// WithHashFn sets the function used to merkleize field digests.
func WithHashFn(fn HashFn) Option {
	return func(o *options) {
		o.hashFn = fn
	}
}

// WithNativeHasher merkleizes with crypto/sha256 instead of gohashtree.
func WithNativeHasher() Option {
	return WithHashFn(NativeHashWrapper(sha256.New()))
}

// Tracker holds the committed snapshot of a struct value.
type Tracker[T any] struct {
	mutex    sync.Mutex
	desc     *vttypes.TypeDescriptor
	hashFn   HashFn
	value    *T
	saved    T
	digests  [][32]byte
	root     [32]byte
	viewOpen bool
}

// Snapshot starts tracking value. The descriptor of T is taken from cache,
// a private cache is used when cache is nil.
func Snapshot[T any](cache *vttypes.TypeCache, value *T, opts ...Option) (*Tracker[T], error) {
	if value == nil {
		return nil, fmt.Errorf("cannot track nil %s", reflect.TypeFor[T]())
	}

	cfg := options{hashFn: DefaultHashFn}
	for _, opt := range opts {
		opt(&cfg)
	}

	if cache == nil {
		cache = vttypes.NewTypeCache(nil)
	}
	desc, err := cache.GetTypeDescriptor(reflect.TypeFor[T]())
	if err != nil {
		return nil, err
	}
	if desc.Category != vttypes.CategoryStruct {
		return nil, fmt.Errorf("%w: %s is a %s, only structs can be tracked", vtutils.ErrUnsupportedType, desc.Name, desc.Category)
	}

	t := &Tracker[T]{
		desc:   desc,
		hashFn: cfg.hashFn,
		value:  value,
		saved:  *value,
	}

	t.digests = t.hashFields()
	t.root, err = merkleRoot(t.hashFn, t.digests)
	if err != nil {
		return nil, fmt.Errorf("failed to hash %s: %w", desc.Name, err)
	}

	return t, nil
}

func (t *Tracker[T]) hashFields() [][32]byte {
	base := unsafe.Pointer(t.value)
	rv := reflect.ValueOf(t.value).Elem()

	digests := make([][32]byte, len(t.desc.Fields))
	for i := range t.desc.Fields {
		digests[i] = fieldDigest(base, rv, &t.desc.Fields[i])
	}
	return digests
}

// MutableView returns the tracked value for modification. Only one view may
// be outstanding until Commit or Abandon.
func (t *Tracker[T]) MutableView() (*T, error) {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	if t.viewOpen {
		return nil, fmt.Errorf("%s: %w", t.desc.Name, vtutils.ErrUnfinishedChange)
	}
	t.viewOpen = true
	return t.value, nil
}

// Value returns a copy of the tracked value.
func (t *Tracker[T]) Value() T {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	return *t.value
}

// Root returns the committed merkle root over the field digests.
func (t *Tracker[T]) Root() [32]byte {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	return t.root
}

// IsChanged reports whether any field differs from the committed snapshot.
func (t *Tracker[T]) IsChanged() bool {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	current := t.hashFields()
	for i := range current {
		if current[i] != t.digests[i] {
			return true
		}
	}
	return false
}

// ChangedFields returns the names of all fields that differ from the
// committed snapshot, in declaration order.
func (t *Tracker[T]) ChangedFields() []string {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	current := t.hashFields()
	changed := []string{}
	for i := range current {
		if current[i] != t.digests[i] {
			changed = append(changed, t.desc.Fields[i].Name)
		}
	}
	return changed
}

// Commit makes the current value the new snapshot and closes the outstanding
// view. It fails with ErrNothingChanged if the value equals the snapshot, in
// which case the view stays open.
func (t *Tracker[T]) Commit() error {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	current := t.hashFields()
	root, err := merkleRoot(t.hashFn, current)
	if err != nil {
		return fmt.Errorf("failed to hash %s: %w", t.desc.Name, err)
	}
	if root == t.root {
		return fmt.Errorf("%s: %w", t.desc.Name, vtutils.ErrNothingChanged)
	}

	t.digests = current
	t.root = root
	t.saved = *t.value
	t.viewOpen = false
	return nil
}

// Abandon closes the outstanding view and restores the field values of the
// last commit. Values behind pointers are not restored.
func (t *Tracker[T]) Abandon() {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	*t.value = t.saved
	t.viewOpen = false
}
