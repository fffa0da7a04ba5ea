// Copyright 2018 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package obj

import (
	"encoding/binary"
	"iter"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/aclements/go-objinfo/obj/internal/bin"
)

const (
	wasmHeaderSize = 8
	wasmVersion    = 1

	wasmSectionCustom   = 0
	wasmSectionImport   = 2
	wasmSectionFunction = 3
	wasmSectionGlobal   = 6
	wasmSectionExport   = 7
	wasmSectionCode     = 10
	wasmSectionMax      = 13

	wasmExternFunc   = 0
	wasmExternTable  = 1
	wasmExternMemory = 2
	wasmExternGlobal = 3
	wasmExternTag    = 4

	wasmNameSubsectionFunction = 1
)

var wasmSectionNames = [...]string{
	1:  "<type>",
	2:  "<import>",
	3:  "<function>",
	4:  "<table>",
	5:  "<memory>",
	6:  "<global>",
	7:  "<export>",
	8:  "<start>",
	9:  "<element>",
	10: "<code>",
	11: "<data>",
	12: "<data_count>",
	13: "<tag>",
}

type wasmFile struct {
	sects []wasmSection
	// Wasm has no symbol table. syms is derived from the import,
	// function, export, code and "name" sections at parse time.
	syms []SymbolInfo
}

type wasmSection struct {
	id   uint8
	name string
	off  uint64
	size uint64
}

func parseWasm(buf []byte, o *options) (*wasmFile, error) {
	d := bin.New(buf, binary.LittleEndian)
	version, ok := d.Uint32(4)
	if !ok {
		return nil, newError(FormatWasm, ErrMalformedHeader, 0, "header truncated: need %d bytes, have %d", wasmHeaderSize, len(buf))
	}
	if version != wasmVersion {
		return nil, newError(FormatWasm, ErrUnsupportedVariant, 4, "version %d, want %d", version, wasmVersion)
	}

	f := new(wasmFile)
	for off := uint64(wasmHeaderSize); off < d.Len(); {
		id, _ := d.Uint8(off)
		size, n, ok := d.Uleb128(off + 1)
		if !ok {
			return nil, newError(FormatWasm, ErrMalformedHeader, off+1, "bad section size encoding")
		}
		payload := off + 1 + n
		if !d.InBounds(payload, size) {
			return nil, newError(FormatWasm, ErrTruncatedTable, payload, "section %d (%d bytes) extends past end of file (%d bytes)", len(f.sects), size, d.Len())
		}
		if id > wasmSectionMax {
			return nil, newError(FormatWasm, ErrMalformedHeader, off, "unknown section id %d", id)
		}

		s := wasmSection{id: id, off: payload, size: size}
		if id == wasmSectionCustom {
			r := newWasmReader(d, payload, size)
			if s.name = r.name(); r.failed {
				level.Debug(o.logger).Log("msg", "unresolved custom section name", "offset", payload)
				s.name = ""
			}
		} else {
			s.name = wasmSectionNames[id]
		}
		f.sects = append(f.sects, s)
		off = payload + size
	}

	var err error
	if f.syms, err = f.deriveSymbols(d, o.logger); err != nil {
		return nil, err
	}
	return f, nil
}

func (f *wasmFile) section(id uint8) (wasmSection, bool) {
	for _, s := range f.sects {
		if s.id == id && id != wasmSectionCustom {
			return s, true
		}
	}
	return wasmSection{}, false
}

func (f *wasmFile) customSection(name string) (wasmSection, bool) {
	for _, s := range f.sects {
		if s.id == wasmSectionCustom && s.name == name {
			return s, true
		}
	}
	return wasmSection{}, false
}

type wasmImport struct {
	field string
	kind  uint8
}

type wasmExport struct {
	name  string
	kind  uint8
	index uint64
}

// deriveSymbols produces one symbol per imported function or global,
// one per defined function, and one per exported defined global.
func (f *wasmFile) deriveSymbols(d bin.Data, logger log.Logger) ([]SymbolInfo, error) {
	var imports []wasmImport
	var nImportFuncs, nImportGlobals uint64
	if s, ok := f.section(wasmSectionImport); ok {
		r := newWasmReader(d, s.off, s.size)
		n := r.uleb()
		for i := uint64(0); i < n && !r.failed; i++ {
			r.name() // module
			imp := wasmImport{field: r.name(), kind: r.u8()}
			switch imp.kind {
			case wasmExternFunc:
				r.uleb()
				nImportFuncs++
			case wasmExternTable:
				r.u8()
				r.limits()
			case wasmExternMemory:
				r.limits()
			case wasmExternGlobal:
				r.u8()
				r.u8()
				nImportGlobals++
			case wasmExternTag:
				r.u8()
				r.uleb()
			default:
				r.failed = true
			}
			imports = append(imports, imp)
		}
		if r.failed {
			return nil, newError(FormatWasm, ErrMalformedHeader, r.off, "bad import section")
		}
	}

	var nFuncs uint64
	if s, ok := f.section(wasmSectionFunction); ok {
		r := newWasmReader(d, s.off, s.size)
		n := r.uleb()
		// Each type index takes at least one byte, so the section
		// bounds the count.
		for i := uint64(0); i < n && !r.failed; i++ {
			r.uleb()
		}
		if r.failed {
			return nil, newError(FormatWasm, ErrMalformedHeader, r.off, "bad function section")
		}
		nFuncs = n
	}

	var exports []wasmExport
	if s, ok := f.section(wasmSectionExport); ok {
		r := newWasmReader(d, s.off, s.size)
		n := r.uleb()
		for i := uint64(0); i < n && !r.failed; i++ {
			exports = append(exports, wasmExport{r.name(), r.u8(), r.uleb()})
		}
		if r.failed {
			return nil, newError(FormatWasm, ErrMalformedHeader, r.off, "bad export section")
		}
	}

	var bodies []uint64
	if s, ok := f.section(wasmSectionCode); ok {
		r := newWasmReader(d, s.off, s.size)
		n := r.uleb()
		for i := uint64(0); i < n && !r.failed; i++ {
			size := r.uleb()
			bodies = append(bodies, r.off)
			r.skip(size)
		}
		if r.failed {
			return nil, newError(FormatWasm, ErrMalformedHeader, r.off, "bad code section")
		}
	}

	funcNames := f.functionNames(d, logger)

	var syms []SymbolInfo
	add := func(name string, addr uint64, kind SymbolKind) {
		syms = append(syms, SymbolInfo{Index: SymbolIndex(len(syms)), Name: name, Address: addr, Kind: kind})
	}
	for _, imp := range imports {
		switch imp.kind {
		case wasmExternFunc:
			add(imp.field, 0, SymbolText)
		case wasmExternGlobal:
			add(imp.field, 0, SymbolData)
		}
	}
	exportName := func(kind uint8, index uint64) string {
		for _, e := range exports {
			if e.kind == kind && e.index == index {
				return e.name
			}
		}
		return ""
	}
	for i := uint64(0); i < nFuncs; i++ {
		idx := nImportFuncs + i
		name, ok := funcNames[idx]
		if !ok {
			name = exportName(wasmExternFunc, idx)
		}
		var addr uint64
		if i < uint64(len(bodies)) {
			addr = bodies[i]
		}
		add(name, addr, SymbolText)
	}
	for _, e := range exports {
		if e.kind == wasmExternGlobal && e.index >= nImportGlobals {
			add(e.name, 0, SymbolData)
		}
	}
	return syms, nil
}

// functionNames decodes the function name map of the "name" custom
// section. A malformed name section yields no names.
func (f *wasmFile) functionNames(d bin.Data, logger log.Logger) map[uint64]string {
	s, ok := f.customSection("name")
	if !ok {
		return nil
	}
	r := newWasmReader(d, s.off, s.size)
	r.name() // "name"
	for !r.failed && r.off < r.end {
		id := r.u8()
		size := r.uleb()
		if id != wasmNameSubsectionFunction {
			r.skip(size)
			continue
		}
		names := make(map[uint64]string)
		n := r.uleb()
		for i := uint64(0); i < n && !r.failed; i++ {
			idx := r.uleb()
			names[idx] = r.name()
		}
		if !r.failed {
			return names
		}
	}
	level.Debug(logger).Log("msg", "malformed name section", "offset", r.off)
	return nil
}

func (f *wasmFile) info() Info {
	return Info{Arch: "wasm", ByteOrder: binary.LittleEndian}
}

func (f *wasmFile) sectionTable() []SectionInfo {
	out := make([]SectionInfo, len(f.sects))
	for i, s := range f.sects {
		out[i] = SectionInfo{
			Index:     SectionIndex(i),
			Size:      s.size,
			Align:     1,
			FileRange: fileRange(s.off, s.size),
			Name:      s.name,
		}
	}
	return out
}

func (f *wasmFile) symbols(dynamic bool) iter.Seq[SymbolInfo] {
	if dynamic {
		return noSymbols
	}
	return func(yield func(SymbolInfo) bool) {
		for _, s := range f.syms {
			if !yield(s) {
				return
			}
		}
	}
}

// wasmReader decodes consecutive values from [off, end). After the
// first failure every read returns a zero value and failed is set.
type wasmReader struct {
	d        bin.Data
	off, end uint64
	failed   bool
}

func newWasmReader(d bin.Data, off, size uint64) *wasmReader {
	return &wasmReader{d: d, off: off, end: off + size}
}

func (r *wasmReader) u8() uint8 {
	if r.failed || r.off >= r.end {
		r.failed = true
		return 0
	}
	v, _ := r.d.Uint8(r.off)
	r.off++
	return v
}

func (r *wasmReader) uleb() uint64 {
	if r.failed {
		return 0
	}
	v, n, ok := r.d.Uleb128(r.off)
	if !ok || n > r.end-r.off {
		r.failed = true
		return 0
	}
	r.off += n
	return v
}

func (r *wasmReader) skip(n uint64) {
	if r.failed || n > r.end-r.off {
		r.failed = true
		return
	}
	r.off += n
}

func (r *wasmReader) name() string {
	n := r.uleb()
	if r.failed || n > r.end-r.off {
		r.failed = true
		return ""
	}
	b, _ := r.d.Bytes(r.off, n)
	r.off += n
	return string(b)
}

func (r *wasmReader) limits() {
	flags := r.u8()
	r.uleb()
	if flags&1 != 0 {
		r.uleb()
	}
}
