// Copyright 2018 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package obj

import (
	"debug/elf"
	"encoding/binary"
	"iter"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/aclements/go-objinfo/obj/internal/bin"
)

const (
	elf32HeaderSize  = 52
	elf64HeaderSize  = 64
	elf32SectionSize = 40
	elf64SectionSize = 64

	// Not defined by debug/elf.
	sttGNUIFunc elf.SymType = 10
)

type elfFile struct {
	data    bin.Data
	is64    bool
	machine elf.Machine
	sects   []elfSection

	symtab, dynsym elfSymtab
}

type elfSection struct {
	name    string
	typ     elf.SectionType
	addr    uint64
	offset  uint64
	size    uint64
	link    uint32
	align   uint64
	entsize uint64
}

// elfSymtab locates one symbol table within the file. Entries are
// decoded on demand from data.
type elfSymtab struct {
	present bool
	off     uint64
	count   uint64
	entsize uint64
	strtab  bin.Data
}

func parseELF(buf []byte, o *options) (*elfFile, error) {
	d := bin.New(buf, binary.LittleEndian)
	ident, ok := d.Bytes(0, elf.EI_NIDENT)
	if !ok {
		return nil, newError(FormatELF, ErrMalformedHeader, 0, "identification truncated: need %d bytes, have %d", elf.EI_NIDENT, len(buf))
	}

	f := new(elfFile)
	switch class := elf.Class(ident[elf.EI_CLASS]); class {
	case elf.ELFCLASS32:
	case elf.ELFCLASS64:
		f.is64 = true
	default:
		return nil, newError(FormatELF, ErrMalformedHeader, elf.EI_CLASS, "unknown class %d", uint8(class))
	}
	switch data := elf.Data(ident[elf.EI_DATA]); data {
	case elf.ELFDATA2LSB:
		d = d.WithOrder(binary.LittleEndian)
	case elf.ELFDATA2MSB:
		d = d.WithOrder(binary.BigEndian)
	default:
		return nil, newError(FormatELF, ErrMalformedHeader, elf.EI_DATA, "unknown data encoding %d", uint8(data))
	}
	if v := elf.Version(ident[elf.EI_VERSION]); v != elf.EV_CURRENT {
		return nil, newError(FormatELF, ErrUnsupportedVariant, elf.EI_VERSION, "unknown version %d", uint8(v))
	}
	f.data = d

	hdrSize := uint64(elf32HeaderSize)
	if f.is64 {
		hdrSize = elf64HeaderSize
	}
	if !d.InBounds(0, hdrSize) {
		return nil, newError(FormatELF, ErrMalformedHeader, 0, "header truncated: need %d bytes, have %d", hdrSize, len(buf))
	}

	// The header is in bounds, so these reads cannot fail.
	machine, _ := d.Uint16(18)
	f.machine = elf.Machine(machine)
	var shoff uint64
	var shentsize, shnum16, shstrndx16 uint16
	if f.is64 {
		shoff, _ = d.Uint64(40)
		shentsize, _ = d.Uint16(58)
		shnum16, _ = d.Uint16(60)
		shstrndx16, _ = d.Uint16(62)
	} else {
		off32, _ := d.Uint32(32)
		shoff = uint64(off32)
		shentsize, _ = d.Uint16(46)
		shnum16, _ = d.Uint16(48)
		shstrndx16, _ = d.Uint16(50)
	}

	if shoff != 0 {
		if err := f.readSections(shoff, uint64(shentsize), uint64(shnum16), uint32(shstrndx16), o.logger); err != nil {
			return nil, err
		}
	}

	var err error
	if f.symtab, err = f.findSymtab(elf.SHT_SYMTAB, o.logger); err != nil {
		return nil, err
	}
	if f.dynsym, err = f.findSymtab(elf.SHT_DYNSYM, o.logger); err != nil {
		return nil, err
	}
	return f, nil
}

func (f *elfFile) sectionHeader(off uint64) elfSection {
	d := f.data
	var s elfSection
	var typ uint32
	if f.is64 {
		typ, _ = d.Uint32(off + 4)
		s.addr, _ = d.Uint64(off + 16)
		s.offset, _ = d.Uint64(off + 24)
		s.size, _ = d.Uint64(off + 32)
		s.link, _ = d.Uint32(off + 40)
		s.align, _ = d.Uint64(off + 48)
		s.entsize, _ = d.Uint64(off + 56)
	} else {
		typ, _ = d.Uint32(off + 4)
		var v uint32
		v, _ = d.Uint32(off + 12)
		s.addr = uint64(v)
		v, _ = d.Uint32(off + 16)
		s.offset = uint64(v)
		v, _ = d.Uint32(off + 20)
		s.size = uint64(v)
		s.link, _ = d.Uint32(off + 24)
		v, _ = d.Uint32(off + 32)
		s.align = uint64(v)
		v, _ = d.Uint32(off + 36)
		s.entsize = uint64(v)
	}
	s.typ = elf.SectionType(typ)
	return s
}

func (f *elfFile) readSections(shoff, shentsize, shnum uint64, shstrndx uint32, logger log.Logger) error {
	want := uint64(elf32SectionSize)
	if f.is64 {
		want = elf64SectionSize
	}
	if shentsize < want {
		return newError(FormatELF, ErrMalformedHeader, 0, "section header size %d, want at least %d", shentsize, want)
	}

	// Counts too large for the header live in section 0.
	if shnum == 0 || shstrndx == uint32(elf.SHN_XINDEX) {
		if !f.data.InBounds(shoff, want) {
			return newError(FormatELF, ErrTruncatedTable, shoff, "section header 0 (%d bytes) extends past end of file (%d bytes)", want, f.data.Len())
		}
		s0 := f.sectionHeader(shoff)
		if shnum == 0 {
			shnum = s0.size
		}
		if shstrndx == uint32(elf.SHN_XINDEX) {
			shstrndx = s0.link
		}
	}

	end, ok := bin.MulAdd(shoff, shnum, shentsize)
	if !ok || end > f.data.Len() {
		return newError(FormatELF, ErrTruncatedTable, shoff, "section header table (%d entries of %d bytes) extends past end of file (%d bytes)", shnum, shentsize, f.data.Len())
	}

	f.sects = make([]elfSection, shnum)
	nameOffs := make([]uint32, shnum)
	for i := range f.sects {
		off := shoff + uint64(i)*shentsize
		f.sects[i] = f.sectionHeader(off)
		nameOffs[i], _ = f.data.Uint32(off)
	}

	// Resolve names.
	var strtab bin.Data
	haveNames := false
	switch {
	case shstrndx == uint32(elf.SHN_UNDEF):
	case uint64(shstrndx) >= shnum:
		level.Debug(logger).Log("msg", "section name table index out of range", "shstrndx", shstrndx, "sections", shnum)
	case f.sects[shstrndx].typ == elf.SHT_NOBITS:
		level.Debug(logger).Log("msg", "section name table has no file data", "shstrndx", shstrndx)
	default:
		s := &f.sects[shstrndx]
		strtab, ok = f.data.Slice(s.offset, s.size)
		if !ok {
			return newError(FormatELF, ErrTruncatedTable, s.offset, "section name table (%d bytes) extends past end of file (%d bytes)", s.size, f.data.Len())
		}
		haveNames = true
	}
	if !haveNames {
		return nil
	}
	for i := range f.sects {
		name, ok := strtab.CString(uint64(nameOffs[i]))
		if !ok {
			level.Debug(logger).Log("msg", "unresolved section name", "index", i, "offset", nameOffs[i])
			continue
		}
		f.sects[i].name = name
	}
	return nil
}

func (f *elfFile) findSymtab(typ elf.SectionType, logger log.Logger) (elfSymtab, error) {
	minSize := uint64(elf.Sym32Size)
	if f.is64 {
		minSize = elf.Sym64Size
	}
	for i := range f.sects {
		s := &f.sects[i]
		if s.typ != typ {
			continue
		}
		t := elfSymtab{present: true, off: s.offset, entsize: minSize}
		if s.entsize != 0 {
			if s.entsize < minSize {
				return t, newError(FormatELF, ErrMalformedHeader, s.offset, "%s %d entry size %d, want at least %d", typ, i, s.entsize, minSize)
			}
			t.entsize = s.entsize
		}
		if !f.data.InBounds(s.offset, s.size) {
			return t, newError(FormatELF, ErrTruncatedTable, s.offset, "%s %d (%d bytes) extends past end of file (%d bytes)", typ, i, s.size, f.data.Len())
		}
		t.count = s.size / t.entsize

		if uint64(s.link) >= uint64(len(f.sects)) || s.link == uint32(elf.SHN_UNDEF) {
			level.Debug(logger).Log("msg", "symbol table has no string table", "section", i, "link", s.link)
			return t, nil
		}
		str := &f.sects[s.link]
		var ok bool
		if t.strtab, ok = f.data.Slice(str.offset, str.size); !ok {
			return t, newError(FormatELF, ErrTruncatedTable, str.offset, "string table %d (%d bytes) extends past end of file (%d bytes)", s.link, str.size, f.data.Len())
		}
		return t, nil
	}
	return elfSymtab{}, nil
}

func (f *elfFile) info() Info {
	return Info{
		Arch:      elfArch(f.machine, f.is64, f.data.Order),
		Is64:      f.is64,
		ByteOrder: f.data.Order,
	}
}

func (f *elfFile) sectionTable() []SectionInfo {
	out := make([]SectionInfo, len(f.sects))
	for i, s := range f.sects {
		out[i] = SectionInfo{
			Index:   SectionIndex(i),
			Address: s.addr,
			Size:    s.size,
			Align:   s.align,
			Name:    s.name,
		}
		if s.typ != elf.SHT_NOBITS {
			out[i].FileRange = fileRange(s.offset, s.size)
		}
	}
	return out
}

func (f *elfFile) symbols(dynamic bool) iter.Seq[SymbolInfo] {
	t := &f.symtab
	if dynamic {
		t = &f.dynsym
	}
	if !t.present {
		return noSymbols
	}
	return func(yield func(SymbolInfo) bool) {
		for i := uint64(0); i < t.count; i++ {
			if !yield(f.symbol(t, i)) {
				return
			}
		}
	}
}

// symbol decodes entry i of t. The table was bounds-checked by
// findSymtab.
func (f *elfFile) symbol(t *elfSymtab, i uint64) SymbolInfo {
	d := f.data
	off := t.off + i*t.entsize
	var name uint32
	var info uint8
	var shndx uint16
	var value uint64
	name, _ = d.Uint32(off)
	if f.is64 {
		info, _ = d.Uint8(off + 4)
		shndx, _ = d.Uint16(off + 6)
		value, _ = d.Uint64(off + 8)
	} else {
		v, _ := d.Uint32(off + 4)
		value = uint64(v)
		info, _ = d.Uint8(off + 12)
		shndx, _ = d.Uint16(off + 14)
	}
	sym := SymbolInfo{
		Index:   SymbolIndex(i),
		Address: value,
		Kind:    elfSymbolKind(i, info, elf.SectionIndex(shndx)),
	}
	if name != 0 {
		// An unresolvable name is left empty.
		sym.Name, _ = t.strtab.CString(uint64(name))
	}
	return sym
}

func elfSymbolKind(i uint64, info uint8, shndx elf.SectionIndex) SymbolKind {
	switch elf.ST_TYPE(info) {
	case elf.STT_NOTYPE:
		if i == 0 {
			return SymbolNull
		}
		if shndx != elf.SHN_UNDEF {
			return SymbolLabel
		}
	case elf.STT_OBJECT, elf.STT_COMMON:
		return SymbolData
	case elf.STT_FUNC, sttGNUIFunc:
		return SymbolText
	case elf.STT_SECTION:
		return SymbolSection
	case elf.STT_FILE:
		return SymbolFile
	case elf.STT_TLS:
		return SymbolTls
	}
	return SymbolUnknown
}

func elfArch(m elf.Machine, is64 bool, order binary.ByteOrder) string {
	le := order == binary.LittleEndian
	switch m {
	case elf.EM_386:
		return "386"
	case elf.EM_X86_64:
		return "amd64"
	case elf.EM_ARM:
		return "arm"
	case elf.EM_AARCH64:
		return "arm64"
	case elf.EM_PPC:
		return "ppc"
	case elf.EM_PPC64:
		if le {
			return "ppc64le"
		}
		return "ppc64"
	case elf.EM_MIPS:
		arch := "mips"
		if is64 {
			arch = "mips64"
		}
		if le {
			arch += "le"
		}
		return arch
	case elf.EM_RISCV:
		if is64 {
			return "riscv64"
		}
		return "riscv"
	case elf.EM_S390:
		return "s390x"
	case elf.EM_LOONGARCH:
		return "loong64"
	case elf.EM_SPARCV9:
		return "sparc64"
	}
	return m.String()
}
