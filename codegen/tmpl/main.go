// Copyright (c) 2025 pk910
// SPDX-License-Identifier: Apache-2.0
// This file is part of the dynamic-vtable library.

package tmpl

type Main struct {
	PackageName string
	TypesHash   string
	Version     string
	SysImports  []TypeImport
	PkgImports  []TypeImport
	Code        string
}

type TypeImport struct {
	Alias string
	Path  string
}

type Table struct {
	TableName     string
	Constructor   string
	ContractNames string
	ImplName      string
	ImplExpr      string
	Slots         []TableSlot
}

type TableSlot struct {
	Name     string
	Method   string
	FuncType string
	Contract string
}
