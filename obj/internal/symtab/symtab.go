// Copyright 2018 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package symtab maps addresses to the symbols of an object file.
package symtab

import (
	"sort"

	"github.com/aclements/go-objinfo/obj"
)

// Table facilitates fast symbol lookup.
type Table struct {
	addr []entry
	name map[string]int
}

// An entry is a symbol with the extent inferred for it. Object files
// rarely record symbol sizes in a portable way, so a symbol extends to
// the next symbol or to the end of its section, whichever is first.
type entry struct {
	sym obj.SymbolInfo
	end uint64
}

// NewTable creates a new table for the addressable symbols in syms.
// sects bounds the extent of each symbol; it may be nil.
func NewTable(syms []obj.SymbolInfo, sects []obj.SectionInfo) *Table {
	var addr []entry
	for _, s := range syms {
		switch s.Kind {
		case obj.SymbolText, obj.SymbolData, obj.SymbolLabel:
			if s.Address != 0 {
				addr = append(addr, entry{sym: s})
			}
		}
	}
	// Put syms in address order for fast address lookup. Among
	// symbols at the same address, table order is kept.
	sort.SliceStable(addr, func(i, j int) bool {
		return addr[i].sym.Address < addr[j].sym.Address
	})

	// Walk backwards so next is always the lowest address above the
	// current symbol's, or 0 if there is none.
	var next uint64
	for i := len(addr) - 1; i >= 0; i-- {
		e := &addr[i]
		if i+1 < len(addr) && addr[i+1].sym.Address > e.sym.Address {
			next = addr[i+1].sym.Address
		}
		e.end = next
		if s, ok := containing(sects, e.sym.Address); ok {
			if send := s.Address + s.Size; e.end == 0 || send < e.end {
				e.end = send
			}
		}
	}

	// Create name map for fast name lookup.
	name := make(map[string]int)
	for i, e := range addr {
		if _, ok := name[e.sym.Name]; !ok && e.sym.Name != "" {
			name[e.sym.Name] = i
		}
	}

	return &Table{addr, name}
}

func containing(sects []obj.SectionInfo, addr uint64) (obj.SectionInfo, bool) {
	for _, s := range sects {
		if s.Address != 0 && s.Address <= addr && addr-s.Address < s.Size {
			return s, true
		}
	}
	return obj.SectionInfo{}, false
}

// Syms returns all symbols in Table in address order.
func (t *Table) Syms() []obj.SymbolInfo {
	out := make([]obj.SymbolInfo, len(t.addr))
	for i, e := range t.addr {
		out[i] = e.sym
	}
	return out
}

// Name returns the first symbol with the given name.
func (t *Table) Name(name string) (obj.SymbolInfo, bool) {
	if i, ok := t.name[name]; ok {
		return t.addr[i].sym, true
	}
	return obj.SymbolInfo{}, false
}

// Addr returns the symbol containing addr.
func (t *Table) Addr(addr uint64) (obj.SymbolInfo, bool) {
	i := sort.Search(len(t.addr), func(i int) bool {
		return addr < t.addr[i].sym.Address
	})
	if i == 0 {
		return obj.SymbolInfo{}, false
	}
	// Back up to the first symbol at this address.
	i--
	for i > 0 && t.addr[i-1].sym.Address == t.addr[i].sym.Address {
		i--
	}
	e := t.addr[i]
	if e.sym.Address <= addr && addr < e.end {
		return e.sym, true
	}
	return obj.SymbolInfo{}, false
}

// SymName returns the name and base of the symbol containing addr. It
// returns "", 0 if no symbol contains addr.
func (t *Table) SymName(addr uint64) (name string, base uint64) {
	if sym, ok := t.Addr(addr); ok {
		return sym.Name, sym.Address
	}
	return "", 0
}
