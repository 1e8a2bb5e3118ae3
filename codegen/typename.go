// Copyright (c) 2025 pk910
// SPDX-License-Identifier: Apache-2.0
// This file is part of the dynamic-vtable library.

package codegen

import (
	"fmt"
	"go/types"
	"reflect"
	"regexp"
	"strings"

	"github.com/pk910/dynamic-vtable/vttypes"
)

// TypePrinter renders types as Go source relative to CurrentPkg and records
// the imports the rendered code needs.
type TypePrinter struct {
	CurrentPkg string
	imports    map[string]string
	aliases    map[string]string

	UseRune bool
}

func NewTypePrinter(currentPkg string) *TypePrinter {
	return &TypePrinter{
		CurrentPkg: currentPkg,
		imports:    make(map[string]string),
		aliases:    make(map[string]string),
	}
}

func (p *TypePrinter) Imports() map[string]string { return p.imports }

func (p *TypePrinter) AddImport(path, alias string) string {
	if p.imports[path] == "" {
		p.imports[path] = p.uniqueAlias(alias)
	}
	return p.imports[path]
}

func (p *TypePrinter) Aliases() map[string]string { return p.aliases }

func (p *TypePrinter) AddAlias(path, alias string) {
	p.aliases[path] = alias
}

func (p *TypePrinter) uniqueAlias(alias string) string {
	base := alias
	i := 1
	for containsValue(p.imports, alias) {
		alias = fmt.Sprintf("%s%d", base, i)
		i++
	}
	return alias
}

// importAlias returns the alias of pkg, recording the import. The same
// package is never qualified.
func (p *TypePrinter) importAlias(pkg string) string {
	if pkg == "" || pkg == p.CurrentPkg {
		return ""
	}
	alias := p.imports[pkg]
	if alias == "" {
		alias = p.uniqueAlias(normalizeAlias(p.defaultAlias(pkg)))
		p.imports[pkg] = alias
	}
	return alias
}

// Qualify a named type with an alias, recording the import.
func (p *TypePrinter) qualify(t reflect.Type) string {
	if alias := p.importAlias(t.PkgPath()); alias != "" {
		return alias + "." + t.Name()
	}
	return t.Name()
}

func containsValue(m map[string]string, v string) bool {
	for _, vv := range m {
		if vv == v {
			return true
		}
	}
	return false
}

func (p *TypePrinter) defaultAlias(importPath string) string {
	if alias, ok := p.aliases[importPath]; ok {
		return alias
	}
	// last path element, good enough for stdlib and most modules
	parts := strings.Split(importPath, "/")
	return parts[len(parts)-1]
}

func normalizeAlias(alias string) string {
	alias = strings.ReplaceAll(alias, "-", "_")
	alias = strings.ReplaceAll(alias, ".", "_")
	return alias
}

// TypeString renders a reflect type.
func (p *TypePrinter) TypeString(t reflect.Type) string {
	return p.typeString(t)
}

// GoTypeString renders a go/types type.
func (p *TypePrinter) GoTypeString(t types.Type) string {
	return types.TypeString(t, p.goTypesQualifier)
}

func (p *TypePrinter) goTypesQualifier(pkg *types.Package) string {
	if _, ok := p.aliases[pkg.Path()]; !ok && pkg.Name() != p.defaultAlias(pkg.Path()) {
		p.aliases[pkg.Path()] = pkg.Name()
	}
	return p.importAlias(pkg.Path())
}

// DescriptorString renders the type behind a descriptor with the backend
// that built it.
func (p *TypePrinter) DescriptorString(td *vttypes.TypeDescriptor) string {
	if td.Type != nil {
		return p.typeString(td.Type)
	}
	if t, ok := GoType(td); ok {
		return p.GoTypeString(t)
	}
	return td.Name
}

// FuncString renders a function descriptor as an unnamed func type. recv
// replaces the receiver of methods and is prepended as first parameter.
func (p *TypePrinter) FuncString(fd *vttypes.FunctionDescriptor, recv string) string {
	var b strings.Builder
	b.WriteString("func(")

	params := fd.Params
	if fd.Receiver() != nil {
		params = params[1:]
	}

	first := true
	if recv != "" {
		b.WriteString(recv)
		first = false
	}
	for i, param := range params {
		if !first {
			b.WriteString(", ")
		}
		first = false
		if fd.Variadic && i == len(params)-1 && param.Type.Elem != nil {
			b.WriteString("...")
			b.WriteString(p.DescriptorString(param.Type.Elem))
			continue
		}
		b.WriteString(p.DescriptorString(param.Type))
	}
	b.WriteByte(')')

	switch len(fd.Results) {
	case 0:
	case 1:
		b.WriteByte(' ')
		b.WriteString(p.DescriptorString(fd.Results[0].Type))
	default:
		b.WriteString(" (")
		for i, r := range fd.Results {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(p.DescriptorString(r.Type))
		}
		b.WriteByte(')')
	}

	return b.String()
}

func (p *TypePrinter) typeString(t reflect.Type) string {
	if t.Name() != "" {
		// predeclared byte and rune spellings
		if t.Kind() == reflect.Uint8 && t.PkgPath() == "" {
			return "byte"
		}
		if p.UseRune && t.Kind() == reflect.Int32 && t.PkgPath() == "" {
			return "rune"
		}
		if strings.Contains(t.Name(), "[") && strings.Contains(t.Name(), "]") {
			return p.processGenericTypeName(t)
		}
		return p.qualify(t)
	}

	switch t.Kind() {
	case reflect.Pointer:
		return "*" + p.typeString(t.Elem())
	case reflect.Slice:
		return "[]" + p.typeString(t.Elem())
	case reflect.Array:
		return fmt.Sprintf("[%d]%s", t.Len(), p.typeString(t.Elem()))
	case reflect.Map:
		return fmt.Sprintf("map[%s]%s", p.typeString(t.Key()), p.typeString(t.Elem()))
	case reflect.Chan:
		switch t.ChanDir() {
		case reflect.RecvDir:
			return "<-chan " + p.typeString(t.Elem())
		case reflect.SendDir:
			return "chan<- " + p.typeString(t.Elem())
		default:
			return "chan " + p.typeString(t.Elem())
		}
	case reflect.Func:
		return p.funcString(t)
	case reflect.Struct:
		return p.structString(t)
	case reflect.Interface:
		if t.NumMethod() == 0 {
			return "any"
		}
		return t.String()
	default:
		return t.String()
	}
}

func (p *TypePrinter) funcString(t reflect.Type) string {
	var b strings.Builder
	b.WriteString("func(")
	for i := 0; i < t.NumIn(); i++ {
		if i > 0 {
			b.WriteString(", ")
		}
		if t.IsVariadic() && i == t.NumIn()-1 {
			b.WriteString("...")
			b.WriteString(p.typeString(t.In(i).Elem()))
			continue
		}
		b.WriteString(p.typeString(t.In(i)))
	}
	b.WriteByte(')')

	switch t.NumOut() {
	case 0:
	case 1:
		b.WriteByte(' ')
		b.WriteString(p.typeString(t.Out(0)))
	default:
		b.WriteString(" (")
		for i := 0; i < t.NumOut(); i++ {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(p.typeString(t.Out(i)))
		}
		b.WriteByte(')')
	}
	return b.String()
}

func (p *TypePrinter) structString(t reflect.Type) string {
	if t.NumField() == 0 {
		return "struct{}"
	}
	var b strings.Builder
	b.WriteString("struct{ ")
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if i > 0 {
			b.WriteByte(' ')
		}
		if f.Anonymous {
			b.WriteString(p.typeString(f.Type))
		} else {
			b.WriteString(f.Name)
			b.WriteByte(' ')
			b.WriteString(p.typeString(f.Type))
		}
		if tag := string(f.Tag); tag != "" {
			b.WriteByte(' ')
			b.WriteByte('`')
			b.WriteString(escapeBackticks(tag))
			b.WriteByte('`')
		}
		b.WriteByte(';')
	}
	b.WriteString(" }")
	return b.String()
}

var genericPkgPattern = regexp.MustCompile(`([a-zA-Z][a-zA-Z0-9_]*(?:\.[a-zA-Z][a-zA-Z0-9_-]*)*(?:/[a-zA-Z][a-zA-Z0-9_.-]*)+)\.([a-zA-Z_][a-zA-Z0-9_]*)`)

// processGenericTypeName handles instantiated generic types, whose reflect
// names carry full package paths of their type arguments.
func (p *TypePrinter) processGenericTypeName(t reflect.Type) string {
	name := t.Name()

	// register and replace type argument packages
	cleanedName := genericPkgPattern.ReplaceAllStringFunc(name, func(match string) string {
		sub := genericPkgPattern.FindStringSubmatch(match)
		if alias := p.importAlias(sub[1]); alias != "" {
			return alias + "." + sub[2]
		}
		return sub[2]
	})

	if alias := p.importAlias(t.PkgPath()); alias != "" {
		return alias + "." + cleanedName
	}
	return cleanedName
}
