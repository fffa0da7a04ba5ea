// Copyright 2018 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package symtab

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/aclements/go-objinfo/obj"
)

func testTable() *Table {
	syms := []obj.SymbolInfo{
		{Index: 0, Kind: obj.SymbolNull},
		{Index: 1, Name: "helper", Address: 0x1040, Kind: obj.SymbolText},
		{Index: 2, Name: "main", Address: 0x1000, Kind: obj.SymbolText},
		{Index: 3, Name: "main.alias", Address: 0x1000, Kind: obj.SymbolLabel},
		{Index: 4, Name: "counter", Address: 0x2000, Kind: obj.SymbolData},
		{Index: 5, Name: "hello.c", Kind: obj.SymbolFile},
		{Index: 6, Name: "puts", Kind: obj.SymbolUnknown},
		{Index: 7, Name: "tls", Address: 0x8, Kind: obj.SymbolTls},
	}
	sects := []obj.SectionInfo{
		{Index: 1, Name: ".text", Address: 0x1000, Size: 0x80},
		{Index: 2, Name: ".data", Address: 0x2000, Size: 0x10},
	}
	return NewTable(syms, sects)
}

func TestSyms(t *testing.T) {
	var names []string
	for _, s := range testTable().Syms() {
		names = append(names, s.Name)
	}
	assert.Equal(t, []string{"main", "main.alias", "helper", "counter"}, names)
}

func TestAddr(t *testing.T) {
	tab := testTable()
	for _, test := range []struct {
		addr uint64
		want string
	}{
		{0xfff, ""},
		{0x1000, "main"},
		{0x103f, "main"},
		{0x1040, "helper"},
		{0x107f, "helper"},
		{0x1080, ""}, // past the end of .text
		{0x2000, "counter"},
		{0x200f, "counter"},
		{0x2010, ""},
		{0x8, ""},
	} {
		name, base := tab.SymName(test.addr)
		assert.Equal(t, test.want, name, "SymName(%#x)", test.addr)
		if test.want == "" {
			assert.Equal(t, uint64(0), base)
		}
	}
}

func TestName(t *testing.T) {
	tab := testTable()
	s, ok := tab.Name("counter")
	assert.True(t, ok)
	assert.Equal(t, obj.SymbolIndex(4), s.Index)

	_, ok = tab.Name("puts")
	assert.False(t, ok, "undefined symbols have no address")
	_, ok = tab.Name("")
	assert.False(t, ok)
}

func TestNoSections(t *testing.T) {
	tab := NewTable([]obj.SymbolInfo{
		{Name: "a", Address: 0x10, Kind: obj.SymbolText},
		{Name: "b", Address: 0x20, Kind: obj.SymbolText},
	}, nil)
	name, base := tab.SymName(0x1f)
	assert.Equal(t, "a", name)
	assert.Equal(t, uint64(0x10), base)
	// The last symbol has no known end.
	_, ok := tab.Addr(0x20)
	assert.False(t, ok)
}

func TestManyAliases(t *testing.T) {
	// Many symbols at one address all end at the next address.
	const n = 100000
	syms := make([]obj.SymbolInfo, 0, n+1)
	for i := range n {
		syms = append(syms, obj.SymbolInfo{Index: obj.SymbolIndex(i), Name: fmt.Sprint("alias", i), Address: 0x1000, Kind: obj.SymbolLabel})
	}
	syms = append(syms, obj.SymbolInfo{Index: n, Name: "next", Address: 0x2000, Kind: obj.SymbolText})
	tab := NewTable(syms, nil)

	name, base := tab.SymName(0x1fff)
	assert.Equal(t, "alias0", name)
	assert.Equal(t, uint64(0x1000), base)
	name, _ = tab.SymName(0x2000)
	assert.Equal(t, "", name, "the last symbol has no known end")
	s, ok := tab.Name(fmt.Sprint("alias", n-1))
	assert.True(t, ok)
	assert.Equal(t, obj.SymbolIndex(n-1), s.Index)
}
