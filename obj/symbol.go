// Copyright 2018 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package obj

import (
	"fmt"
)

// SymbolIndex identifies a symbol within one symbol table. The regular
// and dynamic tables of a File have independent index spaces.
type SymbolIndex int

// SymbolKind classifies a symbol the same way across formats.
type SymbolKind uint8

const (
	SymbolUnknown SymbolKind = iota
	SymbolData
	SymbolFile
	SymbolLabel
	SymbolNull
	SymbolSection
	SymbolText
	SymbolTls
)

var symbolKindNames = [...]string{
	SymbolUnknown: "Unknown",
	SymbolData:    "Data",
	SymbolFile:    "File",
	SymbolLabel:   "Label",
	SymbolNull:    "Null",
	SymbolSection: "Section",
	SymbolText:    "Text",
	SymbolTls:     "Tls",
}

func (k SymbolKind) String() string {
	if int(k) < len(symbolKindNames) {
		return symbolKindNames[k]
	}
	return "Unknown"
}

func (k SymbolKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *SymbolKind) UnmarshalText(b []byte) error {
	for i, name := range symbolKindNames {
		if name == string(b) {
			*k = SymbolKind(i)
			return nil
		}
	}
	return fmt.Errorf("unknown symbol kind %q", b)
}

// SymbolInfo is a snapshot of one symbol table entry.
type SymbolInfo struct {
	Index SymbolIndex `json:"index"`
	// Name is the symbol name, or "" if it is absent or could not be
	// resolved.
	Name    string     `json:"name"`
	Address uint64     `json:"address"`
	Kind    SymbolKind `json:"kind"`
}
