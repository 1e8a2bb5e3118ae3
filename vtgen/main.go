// Copyright (c) 2025 pk910
// SPDX-License-Identifier: Apache-2.0
// This file is part of the dynamic-vtable library.

package main

import (
	"errors"
	"flag"
	"fmt"
	"go/types"
	"io"
	"log"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"golang.org/x/tools/go/packages"

	"github.com/pk910/dynamic-vtable/codegen"
	"github.com/pk910/dynamic-vtable/vtutils"
)

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
)

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		color := isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd())
		log.Fatal(formatError(err, color))
	}
}

func run(args []string, stdout io.Writer) error {
	var (
		bindings = bindingList{}
		defines  = defineList{}
	)

	flags := flag.NewFlagSet("vtgen", flag.ContinueOnError)
	packagePath := flags.String("package", "", "Go package path to analyze")
	outputFile := flags.String("output", "", "Output file path for generated code")
	packageName := flags.String("package-name", "", "Package name of the generated file (defaults to the analyzed package)")
	configFile := flags.String("config", "", "YAML file listing bindings")
	verbose := flags.Bool("v", false, "Verbose output")
	flags.Var(&bindings, "bindings", "Comma-separated bindings in the form Contract[+Contract]:Impl[:TableName]")
	flags.Var(defines, "D", "Condition define key[=value], repeatable")
	if err := flags.Parse(args); err != nil {
		return err
	}

	cfg := &Config{}
	if *configFile != "" {
		loaded, err := loadConfig(*configFile)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	if *packagePath != "" {
		cfg.Package = *packagePath
	}
	if *outputFile != "" {
		cfg.Output = *outputFile
	}
	if *packageName != "" {
		cfg.PackageName = *packageName
	}
	cfg.Bindings = append(cfg.Bindings, bindings...)

	if cfg.Package == "" {
		return errors.New("package path is required (-package)")
	}
	if cfg.Output == "" {
		return errors.New("output file is required (-output)")
	}

	active, err := activeBindings(cfg.Bindings, conditionParams(defines), *verbose)
	if err != nil {
		return err
	}
	if len(active) == 0 {
		return errors.New("no bindings to generate (-bindings or -config)")
	}

	if *verbose {
		log.Printf("Analyzing package: %s", cfg.Package)
		log.Printf("Output file: %s", cfg.Output)
	}

	loadCfg := &packages.Config{
		Mode: packages.NeedTypes | packages.NeedTypesInfo | packages.NeedSyntax | packages.NeedName | packages.NeedImports,
	}

	pkgs, err := packages.Load(loadCfg, cfg.Package)
	if err != nil {
		return fmt.Errorf("failed to load package %s: %w", cfg.Package, err)
	}
	if len(pkgs) == 0 {
		return fmt.Errorf("no packages found for %s", cfg.Package)
	}

	pkg := pkgs[0]
	if len(pkg.Errors) > 0 {
		for _, err := range pkg.Errors {
			log.Printf("Package error: %v", err)
		}
		return fmt.Errorf("package %s has errors", cfg.Package)
	}

	if *verbose {
		log.Printf("Successfully loaded package: %s", pkg.Name)
	}

	var fileOptions []codegen.CodeGeneratorOption
	if cfg.PackageName != "" {
		fileOptions = append(fileOptions, codegen.WithPackageName(cfg.PackageName))
	}

	for _, binding := range active {
		option, err := bindingOption(pkg.Types, binding)
		if err != nil {
			return err
		}
		fileOptions = append(fileOptions, option)

		if *verbose {
			log.Printf("Binding %s to %s", binding.Impl, strings.Join(binding.Contracts, " + "))
		}
	}

	codeGen := codegen.NewCodeGenerator(nil)
	if *verbose {
		codeGen.SetParser(codegen.NewParser(codegen.WithParserLogCb(func(format string, args ...any) {
			log.Printf(format, args...)
		})))
	}
	codeGen.BuildFile(cfg.Output, fileOptions...)

	if *verbose {
		log.Printf("Generating code...")
	}

	codeMap, err := codeGen.GenerateToMap()
	if err != nil {
		return fmt.Errorf("failed to generate code: %w", err)
	}

	generatedCode, exists := codeMap[cfg.Output]
	if !exists {
		return fmt.Errorf("generated code not found for file %s", cfg.Output)
	}

	if *verbose {
		log.Printf("Writing output to %s", cfg.Output)
	}

	if err := os.WriteFile(cfg.Output, []byte(generatedCode), 0644); err != nil {
		return fmt.Errorf("failed to write output file %s: %w", cfg.Output, err)
	}

	if *verbose {
		log.Printf("Successfully generated %d bytes of code for %d bindings", len(generatedCode), len(active))
	} else {
		fmt.Fprintf(stdout, "Generated %d vtables in %s\n", len(active), cfg.Output)
	}

	return nil
}

// activeBindings drops the bindings whose when condition does not hold.
func activeBindings(bindings []BindingConfig, params map[string]interface{}, verbose bool) ([]BindingConfig, error) {
	active := make([]BindingConfig, 0, len(bindings))
	for _, binding := range bindings {
		ok, err := evalCondition(binding.When, params)
		if err != nil {
			return nil, fmt.Errorf("binding %s: %w", binding.Impl, err)
		}
		if !ok {
			if verbose {
				log.Printf("Skipping %s: condition %q not met", binding.Impl, binding.When)
			}
			continue
		}
		active = append(active, binding)
	}
	return active, nil
}

func bindingOption(pkg *types.Package, binding BindingConfig) (codegen.CodeGeneratorOption, error) {
	implName := strings.TrimPrefix(binding.Impl, "*")
	impl, err := lookupTypeName(pkg, implName)
	if err != nil {
		return nil, err
	}
	if implName != binding.Impl {
		impl = types.NewPointer(impl)
	}

	contracts := make([]types.Type, 0, len(binding.Contracts))
	for _, name := range binding.Contracts {
		contract, err := lookupTypeName(pkg, name)
		if err != nil {
			return nil, err
		}
		contracts = append(contracts, contract)
	}

	var opts []codegen.BindingOption
	if binding.Table != "" {
		opts = append(opts, codegen.WithTableName(binding.Table))
	}
	if binding.NoConstructor {
		opts = append(opts, codegen.WithoutConstructor())
	}

	return codegen.WithGoTypesBinding(impl, contracts, opts...), nil
}

// lookupTypeName resolves a type name in pkg. Qualified names ("io.Writer")
// are looked up in the package's direct imports by name or path.
func lookupTypeName(pkg *types.Package, name string) (types.Type, error) {
	scope := pkg.Scope()
	typeName := name

	if idx := strings.LastIndex(name, "."); idx > 0 {
		qualifier := name[:idx]
		typeName = name[idx+1:]
		scope = nil
		for _, imp := range pkg.Imports() {
			if imp.Name() == qualifier || imp.Path() == qualifier {
				scope = imp.Scope()
				break
			}
		}
		if scope == nil {
			return nil, fmt.Errorf("package %s is not imported by %s", qualifier, pkg.Path())
		}
	}

	obj := scope.Lookup(typeName)
	if obj == nil {
		return nil, fmt.Errorf("type %s not found in package %s", name, pkg.Path())
	}

	typeObj, ok := obj.(*types.TypeName)
	if !ok {
		return nil, fmt.Errorf("object %s is not a type in package %s", name, pkg.Path())
	}

	return typeObj.Type(), nil
}

// formatError renders contract violations as a per-slot listing, coloured
// when writing to a terminal.
func formatError(err error, color bool) string {
	var contractErr *vtutils.ContractError
	if !errors.As(err, &contractErr) {
		return err.Error()
	}

	paint := func(code, s string) string {
		if !color {
			return s
		}
		return code + s + colorReset
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s does not satisfy %s\n", contractErr.Impl, strings.Join(contractErr.Contracts, " + "))
	for _, m := range contractErr.Mismatches {
		fmt.Fprintf(&b, "  %s %s", paint(colorRed, m.Reason.String()), m.Method)
		if m.Contract != "" {
			fmt.Fprintf(&b, " (%s)", m.Contract)
		}
		fmt.Fprintf(&b, "\n    expected: %s\n", paint(colorGreen, m.ExpectedShort))
		if m.Actual != "" {
			fmt.Fprintf(&b, "    found:    %s\n", paint(colorYellow, m.Actual))
		}
		if m.Detail != "" {
			fmt.Fprintf(&b, "    reason:   %s\n", m.Detail)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}
