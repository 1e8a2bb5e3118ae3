// Copyright (c) 2025 pk910
// SPDX-License-Identifier: Apache-2.0
// This file is part of the dynamic-vtable library.

package codegen

import (
	"fmt"
	"go/ast"
	goparser "go/parser"
	"go/token"
	"go/types"
	"testing"
)

// carrierSource stands in for the carrier types of the root package, so
// sources can be type checked without loading the module.
const carrierSource = `package dynvt

type Union[D any] struct {
	Variant uint8
	Data    any
}

type Optional[T any] struct {
	Value T
	Valid bool
}
`

const shapesSource = `package shapes

import (
	"unsafe"

	dynvt "github.com/pk910/dynamic-vtable"
)

type Color uint8

const (
	Red Color = iota
	Green
	Blue
)

type Count int

type Drawable interface {
	Draw(scale int) error
	Bounds() (int, int)
}

type Clickable interface {
	Click() bool
	Draw(scale int) error
}

type Painter interface {
	Draw(scale uint) error
}

type Sprite struct {
	Name  string
	Color Color
	Next  *Sprite
	raw   unsafe.Pointer
	Shape dynvt.Union[struct {
		Box    *Sprite
		Circle uint32
	}]
	Alpha dynvt.Optional[uint16]
}

func (s *Sprite) Draw(scale int) error { return nil }
func (s Sprite) Bounds() (int, int)    { return 0, 0 }
func (s *Sprite) Click() bool          { return true }
func (s *Sprite) Rename(name any)      {}
func (s *Sprite) Layers(names ...string) []string { return names }

type Broken struct{}

func (b Broken) Draw(scale uint) error { return nil }

type A struct{ B *B }
type B struct{ A *A }
type F func(F) F
type L []L

func Make[T any](v T) []T { return nil }

type Box[T any] struct{ Value T }

func (b *Box[T]) Get() T { return b.Value }

type Table struct {
	Draw   func(self *Table, scale int) error
	Bounds func(self Table) (int, int)
}

type Layered interface {
	Layers(names ...string) []string
}
`

type testImporter map[string]*types.Package

func (ti testImporter) Import(path string) (*types.Package, error) {
	if path == "unsafe" {
		return types.Unsafe, nil
	}
	if pkg, ok := ti[path]; ok {
		return pkg, nil
	}
	return nil, fmt.Errorf("package %s not available in tests", path)
}

func checkSource(t *testing.T, path, src string, imp testImporter) *types.Package {
	t.Helper()

	fset := token.NewFileSet()
	file, err := goparser.ParseFile(fset, "src.go", src, 0)
	if err != nil {
		t.Fatalf("failed to parse %s: %v", path, err)
	}

	conf := types.Config{Importer: imp}
	pkg, err := conf.Check(path, fset, []*ast.File{file}, nil)
	if err != nil {
		t.Fatalf("failed to type check %s: %v", path, err)
	}
	return pkg
}

// loadShapes type checks the shapes fixture package.
func loadShapes(t *testing.T) *types.Package {
	t.Helper()
	carriers := checkSource(t, dynvtPkgPath, carrierSource, nil)
	return checkSource(t, "example.com/shapes", shapesSource, testImporter{dynvtPkgPath: carriers})
}

func lookupType(t *testing.T, pkg *types.Package, name string) types.Type {
	t.Helper()
	obj := pkg.Scope().Lookup(name)
	if obj == nil {
		t.Fatalf("%s not found in %s", name, pkg.Path())
	}
	return obj.Type()
}
