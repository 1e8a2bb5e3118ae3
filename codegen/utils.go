// Copyright (c) 2025 pk910
// SPDX-License-Identifier: Apache-2.0
// This file is part of the dynamic-vtable library.

package codegen

import (
	"strconv"
	"strings"
	"unicode"
)

// indentStr indents each non-empty line after the first by the given number
// of tabs.
func indentStr(s string, tabs int) string {
	lines := strings.Split(s, "\n")
	for i := range lines {
		if i > 0 && lines[i] != "" {
			lines[i] = strings.Repeat("\t", tabs) + lines[i]
		}
	}

	return strings.Join(lines, "\n")
}

// escapeBackticks makes s safe for use inside a raw string literal.
func escapeBackticks(s string) string {
	if strings.Contains(s, "`") {
		return strconv.Quote(s)[1 : len(strconv.Quote(s))-1]
	}
	return s
}

// escapeIdent turns a type name like "pkg.Box[int]" into an identifier
// fragment ("Box_int"). The package qualifier is dropped.
func escapeIdent(name string) string {
	if idx := strings.IndexByte(name, '['); idx != -1 {
		if dot := strings.LastIndexByte(name[:idx], '.'); dot != -1 {
			name = name[dot+1:]
		}
	} else if dot := strings.LastIndexByte(name, '.'); dot != -1 {
		name = name[dot+1:]
	}

	var b strings.Builder
	lastUnderscore := false
	for _, r := range name {
		switch {
		case r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			lastUnderscore = r == '_'
		case !lastUnderscore && b.Len() > 0:
			b.WriteByte('_')
			lastUnderscore = true
		}
	}
	return strings.TrimRight(b.String(), "_")
}

// upperFirst upper-cases the first rune of s.
func upperFirst(s string) string {
	for i, r := range s {
		return string(unicode.ToUpper(r)) + s[i+len(string(r)):]
	}
	return s
}

// isExportedIdent reports whether s starts with an upper case letter.
func isExportedIdent(s string) bool {
	for _, r := range s {
		return unicode.IsUpper(r)
	}
	return false
}
