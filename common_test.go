// Copyright (c) 2025 pk910
// SPDX-License-Identifier: Apache-2.0
// This file is part of the dynamic-vtable library.

package dynvt

import (
	"unsafe"
)

// Drawable declares a mutable Draw slot.
type Drawable struct{}

func (*Drawable) Draw() { panic(ErrContractStub) }

type Sprite struct {
	drawn bool
	id    uint32
}

func (s *Sprite) Draw() { s.drawn = true }

func (s Sprite) ID() uint32 { return s.id }

// Reader declares an immutable self.
type Reader struct{}

func (Reader) Read() uint32 { panic(ErrContractStub) }

// Writer declares a mutable self.
type Writer struct{}

func (*Writer) Write(v uint32) { panic(ErrContractStub) }

type mutReader struct {
	v uint32
}

func (r *mutReader) Read() uint32 { return r.v }

type constReader struct {
	v uint32
}

func (r constReader) Read() uint32 { return r.v }

func (r constReader) Write(v uint32) {}

// Codec declares three slots.
type Codec struct{}

func (*Codec) Encode(data []byte) error { panic(ErrContractStub) }

func (*Codec) Decode(data []byte) error { panic(ErrContractStub) }

func (Codec) Size() int { panic(ErrContractStub) }

type partialCodec struct{}

func (partialCodec) Size() int { return 0 }

// Settable references its own type inside callback parameters and results.
type Settable struct{}

func (*Settable) SetCallback(cb func(*Settable)) { panic(ErrContractStub) }

func (*Settable) Clone() *Settable { panic(ErrContractStub) }

type button struct {
	cb     func(*button)
	clicks int
}

func (b *button) SetCallback(cb func(*button)) { b.cb = cb }

func (b *button) Clone() *button {
	c := *b
	return &c
}

func (b *button) Click() {
	b.clicks++
	if b.cb != nil {
		b.cb(b)
	}
}

type wrongButton struct{}

func (w *wrongButton) SetCallback(cb func(*Settable)) {}

func (w *wrongButton) Clone() *Settable { return nil }

// Taker has a slot the erased implementation below cannot be reflected for.
type Taker struct{}

func (Taker) Take(v Sizer) { panic(ErrContractStub) }

type anyTaker struct{}

func (anyTaker) Take(v any) {}

// Sizer is an interface contract.
type Sizer interface {
	Size() int
}

type fixedSizer struct {
	n int
}

func (f fixedSizer) Size() int { return f.n }

// AContract and BContract compose into a two slot table.
type AContract struct{}

func (*AContract) A() { panic(ErrContractStub) }

type BContract struct{}

func (*BContract) B(v uint32) { panic(ErrContractStub) }

type BSame struct{}

func (*BSame) B(v uint32) { panic(ErrContractStub) }

type BConflict struct{}

func (*BConflict) B(v uint64) { panic(ErrContractStub) }

type abImpl struct {
	a int
	b uint32
}

func (x *abImpl) A() { x.a++ }

func (x *abImpl) B(v uint32) { x.b = v }

// DrawTable is a table-shape contract with an erased self.
type DrawTable struct {
	Draw     func(unsafe.Pointer)
	Ident    func(unsafe.Pointer) uint32 `vt:"ID"`
	internal func()                      `vt:"-"`
}

// SpriteOps is a table-shape contract with typed self parameters.
type SpriteOps struct {
	Draw func(*SpriteOps)
	ID   func(SpriteOps) uint32
}

// ForeignDrawTable is an external table layout.
type ForeignDrawTable struct {
	Draw func(unsafe.Pointer)
	ID   func(unsafe.Pointer) uint32
}

// ten single slot contracts, composed together in tests
type C0 struct{}
type C1 struct{}
type C2 struct{}
type C3 struct{}
type C4 struct{}
type C5 struct{}
type C6 struct{}
type C7 struct{}
type C8 struct{}
type C9 struct{}

func (*C0) M0(v int) int { panic(ErrContractStub) }
func (*C1) M1(v int) int { panic(ErrContractStub) }
func (*C2) M2(v int) int { panic(ErrContractStub) }
func (*C3) M3(v int) int { panic(ErrContractStub) }
func (*C4) M4(v int) int { panic(ErrContractStub) }
func (*C5) M5(v int) int { panic(ErrContractStub) }
func (*C6) M6(v int) int { panic(ErrContractStub) }
func (*C7) M7(v int) int { panic(ErrContractStub) }
func (*C8) M8(v int) int { panic(ErrContractStub) }
func (*C9) M9(v int) int { panic(ErrContractStub) }

type tenImpl struct {
	base int
}

func (t *tenImpl) M0(v int) int { return t.base + v + 0 }
func (t *tenImpl) M1(v int) int { return t.base + v + 1 }
func (t *tenImpl) M2(v int) int { return t.base + v + 2 }
func (t *tenImpl) M3(v int) int { return t.base + v + 3 }
func (t *tenImpl) M4(v int) int { return t.base + v + 4 }
func (t *tenImpl) M5(v int) int { return t.base + v + 5 }
func (t *tenImpl) M6(v int) int { return t.base + v + 6 }
func (t *tenImpl) M7(v int) int { return t.base + v + 7 }
func (t *tenImpl) M8(v int) int { return t.base + v + 8 }
func (t *tenImpl) M9(v int) int { return t.base + v + 9 }

// Node references itself bare, inside nested function types, through a
// recursive named function type and as a non-leading mutable self.
type Node struct{}

type NodeVisitor func(*Node, NodeVisitor)

func (*Node) Accept(fn func(Node)) { panic(ErrContractStub) }

func (*Node) Walk(fn func(func(*Node))) { panic(ErrContractStub) }

func (*Node) Visit(v NodeVisitor) { panic(ErrContractStub) }

func (*Node) Merge(other *Node) { panic(ErrContractStub) }

type leafVisitor func(*leaf, leafVisitor)

type leaf struct{}

func (l *leaf) Accept(fn func(leaf))      {}
func (l *leaf) Walk(fn func(func(*leaf))) {}
func (l *leaf) Visit(v leafVisitor)       {}
func (l *leaf) Merge(other *leaf)         {}

// each of the following gets exactly one slot of Node wrong

type bareLeaf struct{}

func (l *bareLeaf) Accept(fn func(*bareLeaf)) {}

type nestedLeaf struct{}

func (l *nestedLeaf) Walk(fn func(func(nestedLeaf))) {}

type recLeafVisitor func(recLeaf, recLeafVisitor)

type recLeaf struct{}

func (l *recLeaf) Visit(v recLeafVisitor) {}

type constMergeLeaf struct{}

func (l *constMergeLeaf) Merge(other constMergeLeaf) {}
