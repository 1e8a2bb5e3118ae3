// Copyright (c) 2025 pk910
// SPDX-License-Identifier: Apache-2.0
// This file is part of the dynamic-vtable library.

// Package codegen generates statically typed dispatch tables for contract
// bindings. Bindings are validated with the same descriptor based contract
// checks the runtime synthesizer uses, from reflect types or from go/types
// types loaded with golang.org/x/tools/go/packages.
//
// Usage:
//
//	cg := codegen.NewCodeGenerator(nil)
//	cg.BuildFile("shapes_vtables.go",
//		codegen.WithBinding(reflect.TypeOf(&Sprite{}), []reflect.Type{reflect.TypeOf((*Drawable)(nil)).Elem()}),
//	)
//	err := cg.Generate()
package codegen

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"go/types"
	"os"
	"path/filepath"
	"reflect"
	"regexp"
	"sort"
	"strings"

	"golang.org/x/tools/imports"

	dynvt "github.com/pk910/dynamic-vtable"
	"github.com/pk910/dynamic-vtable/codegen/tmpl"
	"github.com/pk910/dynamic-vtable/vttypes"
)

// CodeGeneratorOption configures a generated file.
type CodeGeneratorOption func(*CodeGeneratorOptions)

// CodeGeneratorOptions holds the settings of a generated file.
type CodeGeneratorOptions struct {
	PackageName string
	Bindings    []*BindingOptions
}

// BindingOption configures a single binding.
type BindingOption func(*BindingOptions)

// BindingOptions describes one implementation bound to one or more
// contracts. Exactly one of the reflect or go/types pairs is set.
type BindingOptions struct {
	ReflectImpl      reflect.Type
	ReflectContracts []reflect.Type
	GoTypesImpl      types.Type
	GoTypesContracts []types.Type

	TableName     string
	NoConstructor bool

	impl     *vttypes.TypeDescriptor
	composed *dynvt.ComposedContract
}

// WithPackageName overrides the package clause of the generated file.
func WithPackageName(name string) CodeGeneratorOption {
	return func(opts *CodeGeneratorOptions) {
		opts.PackageName = name
	}
}

// WithBinding adds a binding of reflect types.
func WithBinding(impl reflect.Type, contracts []reflect.Type, opts ...BindingOption) CodeGeneratorOption {
	return func(cgOpts *CodeGeneratorOptions) {
		binding := &BindingOptions{
			ReflectImpl:      impl,
			ReflectContracts: contracts,
		}
		for _, opt := range opts {
			opt(binding)
		}
		cgOpts.Bindings = append(cgOpts.Bindings, binding)
	}
}

// WithGoTypesBinding adds a binding of go/types types.
func WithGoTypesBinding(impl types.Type, contracts []types.Type, opts ...BindingOption) CodeGeneratorOption {
	return func(cgOpts *CodeGeneratorOptions) {
		binding := &BindingOptions{
			GoTypesImpl:      impl,
			GoTypesContracts: contracts,
		}
		for _, opt := range opts {
			opt(binding)
		}
		cgOpts.Bindings = append(cgOpts.Bindings, binding)
	}
}

// WithTableName sets the name of the generated table type.
func WithTableName(name string) BindingOption {
	return func(opts *BindingOptions) {
		opts.TableName = name
	}
}

// WithoutConstructor omits the constructor function of the table.
func WithoutConstructor() BindingOption {
	return func(opts *BindingOptions) {
		opts.NoConstructor = true
	}
}

// CodeGeneratorFileOptions is a requested output file.
type CodeGeneratorFileOptions struct {
	FileName string
	Options  CodeGeneratorOptions
	pkgPath  string
}

// CodeGenerator batches dispatch table generation for multiple files.
type CodeGenerator struct {
	files  []*CodeGeneratorFileOptions
	dynVt  *dynvt.DynVt
	parser *Parser
}

// NewCodeGenerator creates a code generator. Reflect bindings are resolved
// with dv, the global instance is used when dv is nil.
func NewCodeGenerator(dv *dynvt.DynVt) *CodeGenerator {
	if dv == nil {
		dv = dynvt.GetGlobalDynVt()
	}
	return &CodeGenerator{
		dynVt: dv,
	}
}

// Parser returns the go/types parser shared by all go/types bindings.
func (cg *CodeGenerator) Parser() *Parser {
	if cg.parser == nil {
		cg.parser = NewParser()
	}
	return cg.parser
}

// SetParser replaces the go/types parser, e.g. to share it with a loader.
func (cg *CodeGenerator) SetParser(p *Parser) {
	cg.parser = p
}

// BuildFile requests a file. All implementations bound in one file must
// belong to the same package.
func (cg *CodeGenerator) BuildFile(fileName string, opts ...CodeGeneratorOption) {
	file := &CodeGeneratorFileOptions{
		FileName: fileName,
	}
	for _, opt := range opts {
		opt(&file.Options)
	}
	cg.files = append(cg.files, file)
}

// GenerateToMap generates all requested files and returns their contents by
// file name. A binding that violates its contracts aborts generation with an
// error wrapping the *vtutils.ContractError.
func (cg *CodeGenerator) GenerateToMap() (map[string]string, error) {
	if len(cg.files) == 0 {
		return nil, fmt.Errorf("no files requested for generation")
	}

	if err := cg.analyzeBindings(); err != nil {
		return nil, err
	}

	results := make(map[string]string, len(cg.files))
	for _, file := range cg.files {
		code, err := cg.generateFile(file)
		if err != nil {
			return nil, fmt.Errorf("failed to generate %s: %w", file.FileName, err)
		}
		results[file.FileName] = code
	}

	return results, nil
}

// Generate writes all requested files.
func (cg *CodeGenerator) Generate() error {
	files, err := cg.GenerateToMap()
	if err != nil {
		return err
	}

	fileNames := make([]string, 0, len(files))
	for fileName := range files {
		fileNames = append(fileNames, fileName)
	}
	sort.Strings(fileNames)

	for _, fileName := range fileNames {
		if dir := filepath.Dir(fileName); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("failed to create directory for %s: %w", fileName, err)
			}
		}
		if err := os.WriteFile(fileName, []byte(files[fileName]), 0o644); err != nil {
			return fmt.Errorf("failed to write %s: %w", fileName, err)
		}
	}

	return nil
}

// implPackageName returns the declared package name of a go/types
// implementation, or an empty string for reflect descriptors.
func implPackageName(desc *vttypes.TypeDescriptor) string {
	if t, ok := GoType(desc); ok {
		if named, ok := t.(*types.Named); ok && named.Obj().Pkg() != nil {
			return named.Obj().Pkg().Name()
		}
	}
	return ""
}

// analyzeBindings resolves descriptors and contracts of every binding and
// validates them.
func (cg *CodeGenerator) analyzeBindings() error {
	for _, file := range cg.files {
		if len(file.Options.Bindings) == 0 {
			return fmt.Errorf("no bindings requested for %s", file.FileName)
		}

		otherTypeName := ""
		pkgName := ""
		for _, binding := range file.Options.Bindings {
			if err := cg.analyzeBinding(binding); err != nil {
				return err
			}

			pkgPath, typeName := binding.impl.PkgPath, binding.impl.Name
			if pkgName == "" {
				pkgName = implPackageName(binding.impl)
			}
			if pkgPath == "" {
				return fmt.Errorf("type %s has no package path", typeName)
			}
			if file.pkgPath == "" {
				file.pkgPath = pkgPath
			} else if file.pkgPath != pkgPath {
				return fmt.Errorf("type %s has different package path than %s. cannot combine types from different packages in a single file", typeName, otherTypeName)
			}
			otherTypeName = typeName
		}

		if file.Options.PackageName == "" && pkgName != "" {
			file.Options.PackageName = pkgName
		} else if file.Options.PackageName == "" {
			pkgName = file.pkgPath
			if slashIdx := strings.LastIndex(pkgName, "/"); slashIdx != -1 {
				pkgName = pkgName[slashIdx+1:]
			}
			file.Options.PackageName = normalizeAlias(pkgName)
		}
	}

	return nil
}

func (cg *CodeGenerator) analyzeBinding(binding *BindingOptions) error {
	var (
		implDesc  *vttypes.TypeDescriptor
		contracts []*dynvt.Contract
		err       error
	)

	switch {
	case binding.ReflectImpl != nil:
		implDesc, err = cg.dynVt.Describe(binding.ReflectImpl)
		if err != nil {
			return fmt.Errorf("failed to analyze type %s: %w", binding.ReflectImpl, err)
		}
		for _, t := range binding.ReflectContracts {
			contract, err := cg.dynVt.Contract(t)
			if err != nil {
				return fmt.Errorf("failed to resolve contract %s: %w", t, err)
			}
			contracts = append(contracts, contract)
		}
	case binding.GoTypesImpl != nil:
		parser := cg.Parser()
		implDesc, err = parser.GetTypeDescriptor(binding.GoTypesImpl)
		if err != nil {
			return fmt.Errorf("failed to analyze type %s: %w", binding.GoTypesImpl, err)
		}
		for _, t := range binding.GoTypesContracts {
			desc, err := parser.GetTypeDescriptor(t)
			if err != nil {
				return fmt.Errorf("failed to analyze contract %s: %w", t, err)
			}
			contract, err := dynvt.ResolveContract(desc)
			if err != nil {
				return fmt.Errorf("failed to resolve contract %s: %w", t, err)
			}
			contracts = append(contracts, contract)
		}
	default:
		return fmt.Errorf("binding has no implementation type")
	}

	if implDesc.Category == vttypes.CategoryPointer && implDesc.Flags&vttypes.TypeFlagNamed == 0 && implDesc.Elem != nil {
		implDesc = implDesc.Elem
	}
	if implDesc.Flags&vttypes.TypeFlagGeneric != 0 {
		return fmt.Errorf("cannot bind uninstantiated generic type %s", implDesc.Name)
	}

	composed, err := dynvt.ComposeContracts(contracts...)
	if err != nil {
		return fmt.Errorf("failed to compose contracts for %s: %w", implDesc.Name, err)
	}
	if err := dynvt.ValidateContracts(implDesc, composed.Contracts...); err != nil {
		return fmt.Errorf("binding %s to %s: %w", composed.Name(), implDesc.Name, err)
	}

	binding.impl = implDesc
	binding.composed = composed
	return nil
}

// tableNames returns the table type and constructor names of a binding.
func tableNames(binding *BindingOptions) (string, string) {
	tableName := binding.TableName
	if tableName == "" {
		var b strings.Builder
		b.WriteString(escapeIdent(binding.impl.Name))
		for _, contract := range binding.composed.Contracts {
			b.WriteString(upperFirst(escapeIdent(contract.Name())))
		}
		b.WriteString("Table")
		tableName = b.String()
	}

	if binding.NoConstructor {
		return tableName, ""
	}
	if isExportedIdent(tableName) {
		return tableName, "New" + tableName
	}
	return tableName, "new" + upperFirst(tableName)
}

func (cg *CodeGenerator) generateTable(binding *BindingOptions, typePrinter *TypePrinter, codeBuilder *strings.Builder) error {
	impl := binding.impl
	implType := typePrinter.DescriptorString(impl)

	recvType := "*" + implType
	implExpr := "(*" + implType + ")"
	if impl.Kind == reflect.Interface {
		recvType = implType
		implExpr = implType
	}

	tableName, constructor := tableNames(binding)
	table := tmpl.Table{
		TableName:     tableName,
		Constructor:   constructor,
		ContractNames: binding.composed.Name(),
		ImplName:      impl.Name,
		ImplExpr:      implExpr,
	}

	for _, slot := range binding.composed.Slots {
		fd, err := impl.GetFunction(slot.Method)
		if err != nil {
			return fmt.Errorf("slot %s of %s: %w", slot.Name, tableName, err)
		}
		table.Slots = append(table.Slots, tmpl.TableSlot{
			Name:     slot.Name,
			Method:   slot.Method,
			FuncType: typePrinter.FuncString(fd, recvType),
			Contract: slot.Contract.Name(),
		})
	}

	return GetTemplate("tmpl/table.tmpl").ExecuteTemplate(codeBuilder, "table", table)
}

// bindingHash is the digest input of a binding: the implementation and every
// slot signature in canonical form.
func bindingHash(binding *BindingOptions) []byte {
	var b strings.Builder
	b.WriteString(binding.impl.FullName)
	for _, slot := range binding.composed.Slots {
		b.WriteByte('\n')
		b.WriteString(slot.Name)
		b.WriteByte(' ')
		b.WriteString(vttypes.FormatFunction(slot.Signature, vttypes.FormatOptions{Qualified: true}))
	}
	return []byte(b.String())
}

var pkgImportPattern = regexp.MustCompile(`^[^/]+\.[a-zA-Z]+/.*$`)

// generateFile creates the complete Go source of a single file.
func (cg *CodeGenerator) generateFile(file *CodeGeneratorFileOptions) (string, error) {
	typePrinter := NewTypePrinter(file.pkgPath)
	typePrinter.AddAlias("github.com/pk910/dynamic-vtable", "dynvt")
	codeBuilder := strings.Builder{}
	hasher := sha256.New()

	for i, binding := range file.Options.Bindings {
		if i > 0 {
			codeBuilder.WriteString("\n")
		}
		hasher.Write(bindingHash(binding))
		if err := cg.generateTable(binding, typePrinter, &codeBuilder); err != nil {
			return "", fmt.Errorf("failed to generate table for %s: %w", binding.impl.Name, err)
		}
	}

	// collect & sort imports
	importsMap := typePrinter.Imports()
	sysImports := make([]tmpl.TypeImport, 0, len(importsMap))
	pkgImports := make([]tmpl.TypeImport, 0, len(importsMap))
	for path, alias := range importsMap {
		if presetAlias := typePrinter.Aliases()[path]; presetAlias != "" {
			alias = presetAlias
		} else if defaultAlias := typePrinter.defaultAlias(path); alias == defaultAlias {
			alias = ""
		}

		imp := tmpl.TypeImport{Alias: alias, Path: path}
		if pkgImportPattern.MatchString(path) {
			pkgImports = append(pkgImports, imp)
		} else {
			sysImports = append(sysImports, imp)
		}
	}
	sort.Slice(sysImports, func(i, j int) bool {
		return sysImports[i].Path < sysImports[j].Path
	})
	sort.Slice(pkgImports, func(i, j int) bool {
		return pkgImports[i].Path < pkgImports[j].Path
	})

	mainCode := tmpl.Main{
		PackageName: file.Options.PackageName,
		TypesHash:   hex.EncodeToString(hasher.Sum(nil)),
		Version:     Version,
		SysImports:  sysImports,
		PkgImports:  pkgImports,
		Code:        codeBuilder.String(),
	}

	mainCodeBuilder := strings.Builder{}
	if err := GetTemplate("tmpl/main.tmpl").ExecuteTemplate(&mainCodeBuilder, "main", mainCode); err != nil {
		return "", err
	}

	formatted, err := imports.Process(file.FileName, []byte(mainCodeBuilder.String()), &imports.Options{
		Comments:   true,
		TabIndent:  true,
		TabWidth:   8,
		FormatOnly: true,
	})
	if err != nil {
		return "", fmt.Errorf("generated code does not parse: %w", err)
	}

	return string(formatted), nil
}
