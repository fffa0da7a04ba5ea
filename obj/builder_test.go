// Copyright 2018 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package obj

import (
	"debug/elf"
	"debug/macho"
	"debug/pe"
	"encoding/binary"
	"fmt"
)

// This file builds small object files in memory for tests.

type byteOrder interface {
	binary.ByteOrder
	binary.AppendByteOrder
}

type testBuf struct {
	b     []byte
	order byteOrder
}

func (t *testBuf) u8(v uint8)   { t.b = append(t.b, v) }
func (t *testBuf) u16(v uint16) { t.b = t.order.AppendUint16(t.b, v) }
func (t *testBuf) u32(v uint32) { t.b = t.order.AppendUint32(t.b, v) }
func (t *testBuf) u64(v uint64) { t.b = t.order.AppendUint64(t.b, v) }
func (t *testBuf) raw(b []byte) { t.b = append(t.b, b...) }
func (t *testBuf) off() uint64  { return uint64(len(t.b)) }

func (t *testBuf) word(v uint64, is64 bool) {
	if is64 {
		t.u64(v)
	} else {
		t.u32(uint32(v))
	}
}

// str writes s padded with NULs to n bytes.
func (t *testBuf) str(s string, n int) {
	b := make([]byte, n)
	copy(b, s)
	t.raw(b)
}

func (t *testBuf) pad(align uint64) {
	for t.off()%align != 0 {
		t.u8(0)
	}
}

func (t *testBuf) padTo(off uint64) {
	for t.off() < off {
		t.u8(0)
	}
}

func (t *testBuf) put32(off uint64, v uint32) { t.order.PutUint32(t.b[off:], v) }
func (t *testBuf) put64(off uint64, v uint64) { t.order.PutUint64(t.b[off:], v) }

func align8(v uint64) uint64 { return (v + 7) &^ 7 }

// testStrtab is a NUL-terminated string table. Offsets include any
// prefix the format reserves.
type testStrtab struct {
	b []byte
}

func newTestStrtab(prefix int) *testStrtab {
	return &testStrtab{b: make([]byte, prefix)}
}

func (s *testStrtab) add(name string) uint32 {
	if name == "" {
		return 0
	}
	off := uint32(len(s.b))
	s.b = append(s.b, name...)
	s.b = append(s.b, 0)
	return off
}

// ELF

type elfTestSection struct {
	name  string
	typ   elf.SectionType
	flags elf.SectionFlag
	addr  uint64
	align uint64
	data  []byte
	// size is the size of an SHT_NOBITS section.
	size uint64
}

type elfTestSym struct {
	name  string
	value uint64
	size  uint64
	info  uint8
	shndx elf.SectionIndex
}

type elfTest struct {
	class   elf.Class
	order   byteOrder
	machine elf.Machine
	sects   []elfTestSection
	// syms and dynsyms get a null symbol prepended. A nil slice omits
	// the table.
	syms, dynsyms []elfTestSym
}

func (e *elfTest) is64() bool { return e.class == elf.ELFCLASS64 }

func (e *elfTest) encodeSyms(syms []elfTestSym) (data, str []byte) {
	b := &testBuf{order: e.order}
	st := newTestStrtab(1)
	for _, s := range append([]elfTestSym{{}}, syms...) {
		name := st.add(s.name)
		if e.is64() {
			b.u32(name)
			b.u8(s.info)
			b.u8(0)
			b.u16(uint16(s.shndx))
			b.u64(s.value)
			b.u64(s.size)
		} else {
			b.u32(name)
			b.u32(uint32(s.value))
			b.u32(uint32(s.size))
			b.u8(s.info)
			b.u8(0)
			b.u16(uint16(s.shndx))
		}
	}
	return b.b, st.b
}

// build lays out the header, the section contents and then the section
// header table. The sections are, in order: the null section, e.sects,
// .symtab and .strtab, .dynsym and .dynstr, and .shstrtab.
func (e *elfTest) build() []byte {
	is64 := e.is64()
	symSize := uint64(elf.Sym32Size)
	if is64 {
		symSize = elf.Sym64Size
	}

	all := append([]elfTestSection{{}}, e.sects...)
	links := make(map[int]uint32)
	addTable := func(syms []elfTestSym, name, strName string, typ elf.SectionType) {
		if syms == nil {
			return
		}
		data, str := e.encodeSyms(syms)
		links[len(all)] = uint32(len(all) + 1)
		all = append(all,
			elfTestSection{name: name, typ: typ, align: 8, data: data},
			elfTestSection{name: strName, typ: elf.SHT_STRTAB, align: 1, data: str})
	}
	addTable(e.syms, ".symtab", ".strtab", elf.SHT_SYMTAB)
	addTable(e.dynsyms, ".dynsym", ".dynstr", elf.SHT_DYNSYM)
	shstrndx := len(all)
	all = append(all, elfTestSection{name: ".shstrtab", typ: elf.SHT_STRTAB, align: 1})

	shstr := newTestStrtab(1)
	nameOffs := make([]uint32, len(all))
	for i, s := range all {
		nameOffs[i] = shstr.add(s.name)
	}
	all[shstrndx].data = shstr.b

	b := &testBuf{order: e.order}
	data := elf.ELFDATA2LSB
	if e.order == binary.BigEndian {
		data = elf.ELFDATA2MSB
	}
	hdrSize, shentsize := uint16(elf32HeaderSize), uint16(elf32SectionSize)
	if is64 {
		hdrSize, shentsize = elf64HeaderSize, elf64SectionSize
	}
	b.raw([]byte{0x7f, 'E', 'L', 'F', byte(e.class), byte(data), byte(elf.EV_CURRENT)})
	b.padTo(elf.EI_NIDENT)
	b.u16(uint16(elf.ET_REL))
	b.u16(uint16(e.machine))
	b.u32(uint32(elf.EV_CURRENT))
	b.word(0, is64) // entry
	b.word(0, is64) // phoff
	shoffPos := b.off()
	b.word(0, is64)
	b.u32(0) // flags
	b.u16(hdrSize)
	b.u16(0) // phentsize
	b.u16(0) // phnum
	b.u16(shentsize)
	b.u16(uint16(len(all)))
	b.u16(uint16(shstrndx))

	offs := make([]uint64, len(all))
	for i, s := range all {
		if i == 0 || s.typ == elf.SHT_NOBITS {
			continue
		}
		b.pad(8)
		offs[i] = b.off()
		b.raw(s.data)
	}
	b.pad(8)
	if is64 {
		b.put64(shoffPos, b.off())
	} else {
		b.put32(shoffPos, uint32(b.off()))
	}

	for i, s := range all {
		size := uint64(len(s.data))
		if s.typ == elf.SHT_NOBITS {
			size = s.size
		}
		var info uint32
		var entsize uint64
		if s.typ == elf.SHT_SYMTAB || s.typ == elf.SHT_DYNSYM {
			info, entsize = 1, symSize
		}
		b.u32(nameOffs[i])
		b.u32(uint32(s.typ))
		b.word(uint64(s.flags), is64)
		b.word(s.addr, is64)
		b.word(offs[i], is64)
		b.word(size, is64)
		b.u32(links[i])
		b.u32(info)
		b.word(s.align, is64)
		b.word(entsize, is64)
	}
	return b.b
}

// testELF returns an executable-like ELF file with code, data and bss
// sections, a symbol table covering every symbol kind, and a dynamic
// symbol table. Its sections are:
//
//	0 (null), 1 .text, 2 .data, 3 .bss, 4 .symtab, 5 .strtab,
//	6 .dynsym, 7 .dynstr, 8 .shstrtab
func testELF(class elf.Class, order byteOrder) *elfTest {
	machine := elf.EM_X86_64
	if class == elf.ELFCLASS32 {
		machine = elf.EM_386
	}
	if order == binary.BigEndian {
		machine = elf.EM_PPC64
		if class == elf.ELFCLASS32 {
			machine = elf.EM_PPC
		}
	}
	global := func(t elf.SymType) uint8 { return elf.ST_INFO(elf.STB_GLOBAL, t) }
	local := func(t elf.SymType) uint8 { return elf.ST_INFO(elf.STB_LOCAL, t) }
	return &elfTest{
		class:   class,
		order:   order,
		machine: machine,
		sects: []elfTestSection{
			{name: ".text", typ: elf.SHT_PROGBITS, flags: elf.SHF_ALLOC | elf.SHF_EXECINSTR, addr: 0x401000, align: 16, data: make([]byte, 32)},
			{name: ".data", typ: elf.SHT_PROGBITS, flags: elf.SHF_ALLOC | elf.SHF_WRITE, addr: 0x402000, align: 8, data: make([]byte, 16)},
			{name: ".bss", typ: elf.SHT_NOBITS, flags: elf.SHF_ALLOC | elf.SHF_WRITE, addr: 0x403000, align: 32, size: 0x100},
		},
		syms: []elfTestSym{
			{name: "main", value: 0x401000, size: 16, info: global(elf.STT_FUNC), shndx: 1},
			{name: "counter", value: 0x402000, size: 8, info: global(elf.STT_OBJECT), shndx: 2},
			{name: "loop", value: 0x401010, info: local(elf.STT_NOTYPE), shndx: 1},
			{name: "hello.c", info: local(elf.STT_FILE), shndx: elf.SHN_ABS},
			{name: "tlsvar", value: 0x8, size: 8, info: global(elf.STT_TLS), shndx: 2},
			{value: 0x401000, info: local(elf.STT_SECTION), shndx: 1},
			{name: "puts", info: global(elf.STT_NOTYPE), shndx: elf.SHN_UNDEF},
			{name: "memcpy", value: 0x401018, info: global(elf.SymType(sttGNUIFunc)), shndx: 1},
		},
		dynsyms: []elfTestSym{
			{name: "puts", info: global(elf.STT_FUNC), shndx: elf.SHN_UNDEF},
			{name: "main", value: 0x401000, size: 16, info: global(elf.STT_FUNC), shndx: 1},
		},
	}
}

// testELFSymbolKinds are the kinds of testELF's symbols, including the
// null symbol.
var testELFSymbolKinds = []SymbolKind{
	SymbolNull, SymbolText, SymbolData, SymbolLabel, SymbolFile,
	SymbolTls, SymbolSection, SymbolUnknown, SymbolText,
}

// COFF and PE

type coffTestSection struct {
	name         string
	vaddr, vsize uint32
	data         []byte
	chars        uint32
	// bss is the raw size of a section without file data.
	bss uint32
}

type coffTestSym struct {
	name   string
	value  uint32
	secnum int16
	class  uint8
	aux    []byte // a multiple of 18 bytes
}

type coffTest struct {
	pe        bool
	pe64      bool
	machine   uint16
	imageBase uint64
	sectAlign uint32
	sects     []coffTestSection
	syms      []coffTestSym
}

func (c *coffTest) build() []byte {
	b := &testBuf{order: binary.LittleEndian}
	if c.pe {
		b.raw([]byte("MZ"))
		b.padTo(dosLfanewOffset)
		b.u32(dosHeaderSize)
		b.raw([]byte("PE\x00\x00"))
	}

	var nsyms uint32
	for _, s := range c.syms {
		nsyms += 1 + uint32(len(s.aux)/coffSymbolSize)
	}
	var optSize uint16
	if c.pe {
		optSize = 96
		if c.pe64 {
			optSize = 112
		}
	}

	b.u16(c.machine)
	b.u16(uint16(len(c.sects)))
	b.u32(0) // timestamp
	symPtrPos := b.off()
	b.u32(0)
	b.u32(nsyms)
	b.u16(optSize)
	b.u16(0)

	if c.pe {
		opt := b.off()
		b.raw(make([]byte, optSize))
		if c.pe64 {
			binary.LittleEndian.PutUint16(b.b[opt:], peOptionalMagic64)
			b.put64(opt+24, c.imageBase)
		} else {
			binary.LittleEndian.PutUint16(b.b[opt:], peOptionalMagic32)
			b.put32(opt+28, uint32(c.imageBase))
		}
		b.put32(opt+32, c.sectAlign)
		b.put32(opt+36, 0x200)
	}

	strtab := newTestStrtab(4)
	rawPtrPos := make([]uint64, len(c.sects))
	for i, s := range c.sects {
		if len(s.name) > 8 {
			b.str(fmt.Sprintf("/%d", strtab.add(s.name)), 8)
		} else {
			b.str(s.name, 8)
		}
		b.u32(s.vsize)
		b.u32(s.vaddr)
		if s.data != nil {
			b.u32(uint32(len(s.data)))
		} else {
			b.u32(s.bss)
		}
		rawPtrPos[i] = b.off()
		b.u32(0)
		b.u32(0) // relocations
		b.u32(0) // line numbers
		b.u16(0)
		b.u16(0)
		b.u32(s.chars)
	}
	for i, s := range c.sects {
		if s.data == nil {
			continue
		}
		b.pad(4)
		b.put32(rawPtrPos[i], uint32(b.off()))
		b.raw(s.data)
	}

	if nsyms == 0 {
		return b.b
	}
	b.pad(4)
	b.put32(symPtrPos, uint32(b.off()))
	for _, s := range c.syms {
		if len(s.name) > 8 {
			b.u32(0)
			b.u32(strtab.add(s.name))
		} else {
			b.str(s.name, 8)
		}
		b.u32(s.value)
		b.u16(uint16(s.secnum))
		b.u16(0) // type
		b.u8(s.class)
		b.u8(uint8(len(s.aux) / coffSymbolSize))
		b.raw(s.aux)
	}
	binary.LittleEndian.PutUint32(strtab.b, uint32(len(strtab.b)))
	b.raw(strtab.b)
	return b.b
}

// coffAlignBits encodes an IMAGE_SCN_ALIGN_* field for a power-of-two
// alignment.
func coffAlignBits(align uint32) uint32 {
	n := uint32(1)
	for align > 1 {
		align >>= 1
		n++
	}
	return n << 20
}

func coffAux(s string) []byte {
	b := make([]byte, coffSymbolSize)
	copy(b, s)
	return b
}

// testCOFF returns an amd64 object file. Its symbol table has records
// at indices 0 (.file), 2 (.text), 4, 5, 6, 7, 8, 9 and 10; 1 and 3 are
// auxiliary records.
func testCOFF() *coffTest {
	return &coffTest{
		machine: pe.IMAGE_FILE_MACHINE_AMD64,
		sects: []coffTestSection{
			{name: ".text", data: make([]byte, 16), chars: pe.IMAGE_SCN_CNT_CODE | coffAlignBits(16) | pe.IMAGE_SCN_MEM_EXECUTE},
			{name: ".data", data: make([]byte, 8), chars: pe.IMAGE_SCN_CNT_INITIALIZED_DATA | coffAlignBits(8)},
			{name: ".bss", bss: 32, chars: pe.IMAGE_SCN_CNT_UNINITIALIZED_DATA | coffAlignBits(4)},
			{name: ".debug_info_long", data: make([]byte, 4), chars: pe.IMAGE_SCN_CNT_INITIALIZED_DATA | coffAlignBits(1)},
		},
		syms: []coffTestSym{
			{name: ".file", secnum: -2, class: imageSymClassFile, aux: coffAux("hello.c")},
			{name: ".text", secnum: 1, class: imageSymClassStatic, aux: coffAux("")},
			{name: "main", value: 4, secnum: 1, class: imageSymClassExternal},
			{name: "counter_long_name", secnum: 2, class: imageSymClassExternal},
			{name: "bssvar", value: 8, secnum: 3, class: imageSymClassStatic},
			{name: "puts", secnum: 0, class: imageSymClassExternal},
			{name: "common", value: 16, secnum: 0, class: imageSymClassExternal},
			{name: "$LN1", value: 2, secnum: 1, class: imageSymClassLabel},
			{name: "abs", value: 7, secnum: -1, class: imageSymClassStatic},
		},
	}
}

// testPE returns an executable image with no symbol table.
func testPE(pe64 bool) *coffTest {
	c := &coffTest{
		pe:        true,
		pe64:      pe64,
		machine:   pe.IMAGE_FILE_MACHINE_I386,
		imageBase: 0x400000,
		sectAlign: 0x1000,
		sects: []coffTestSection{
			// Raw data is padded past the virtual size.
			{name: ".text", vaddr: 0x1000, vsize: 0x10, data: make([]byte, 0x200), chars: pe.IMAGE_SCN_CNT_CODE},
			// Virtual size exceeds raw data.
			{name: ".data", vaddr: 0x2000, vsize: 0x300, data: make([]byte, 0x200), chars: pe.IMAGE_SCN_CNT_INITIALIZED_DATA},
			{name: ".bss", vaddr: 0x3000, vsize: 0x80, chars: pe.IMAGE_SCN_CNT_UNINITIALIZED_DATA},
		},
	}
	if pe64 {
		c.machine = pe.IMAGE_FILE_MACHINE_AMD64
		c.imageBase = 0x140000000
	}
	return c
}

// Mach-O

type machoTestSection struct {
	name, seg string
	addr      uint64
	align     uint32
	flags     uint32
	data      []byte
	// size is the size of a zerofill section.
	size uint64
}

func (s *machoTestSection) zerofill() bool {
	switch s.flags & sectionTypeMask {
	case sZerofill, sGBZerofill, sThreadLocalZerofill:
		return true
	}
	return false
}

type machoTestSym struct {
	name  string
	typ   uint8
	sect  uint8
	value uint64
}

type machoTest struct {
	is64   bool
	order  byteOrder
	cpu    macho.Cpu
	sects  []machoTestSection
	syms   []machoTestSym
	dysym  bool
	extdef [2]uint32 // index, count
	undef  [2]uint32
}

func (m *machoTest) build() []byte {
	hdrSize, segSize, sectSize, nlistSize := uint64(machoHeader32Size), uint64(machoSegment32Size), uint64(machoSection32Size), uint64(machoNlist32Size)
	magic, segCmd := uint32(macho.Magic32), macho.LoadCmdSegment
	if m.is64 {
		hdrSize, segSize, sectSize, nlistSize = machoHeader64Size, machoSegment64Size, machoSection64Size, machoNlist64Size
		magic, segCmd = macho.Magic64, macho.LoadCmdSegment64
	}
	ncmds := uint32(2)
	sizeofcmds := segSize + uint64(len(m.sects))*sectSize + machoSymtabSize
	if m.dysym {
		ncmds++
		sizeofcmds += machoDysymtabSize
	}

	// Lay out the contents.
	off := align8(hdrSize + sizeofcmds)
	sectOffs := make([]uint64, len(m.sects))
	for i := range m.sects {
		s := &m.sects[i]
		if s.zerofill() {
			continue
		}
		sectOffs[i] = off
		off = align8(off + uint64(len(s.data)))
	}
	symoff := off
	str := newTestStrtab(1)
	strx := make([]uint32, len(m.syms))
	for i, s := range m.syms {
		strx[i] = str.add(s.name)
	}
	stroff := symoff + uint64(len(m.syms))*nlistSize

	b := &testBuf{order: m.order}
	b.u32(magic)
	b.u32(uint32(m.cpu))
	b.u32(3) // subtype
	b.u32(uint32(macho.TypeObj))
	b.u32(ncmds)
	b.u32(uint32(sizeofcmds))
	b.u32(0) // flags
	if m.is64 {
		b.u32(0)
	}

	b.u32(uint32(segCmd))
	b.u32(uint32(segSize + uint64(len(m.sects))*sectSize))
	b.str("", 16)
	for range 4 {
		b.word(0, m.is64) // vmaddr, vmsize, fileoff, filesize
	}
	b.u32(7) // maxprot
	b.u32(7) // initprot
	b.u32(uint32(len(m.sects)))
	b.u32(0)
	for i, s := range m.sects {
		size := uint64(len(s.data))
		if s.zerofill() {
			size = s.size
		}
		b.str(s.name, 16)
		b.str(s.seg, 16)
		b.word(s.addr, m.is64)
		b.word(size, m.is64)
		b.u32(uint32(sectOffs[i]))
		b.u32(s.align)
		b.u32(0) // reloff
		b.u32(0) // nreloc
		b.u32(s.flags)
		b.u32(0)
		b.u32(0)
		if m.is64 {
			b.u32(0)
		}
	}

	b.u32(uint32(macho.LoadCmdSymtab))
	b.u32(machoSymtabSize)
	b.u32(uint32(symoff))
	b.u32(uint32(len(m.syms)))
	b.u32(uint32(stroff))
	b.u32(uint32(len(str.b)))

	if m.dysym {
		b.u32(uint32(macho.LoadCmdDysymtab))
		b.u32(machoDysymtabSize)
		b.u32(0)           // ilocalsym
		b.u32(m.extdef[0]) // nlocalsym
		b.u32(m.extdef[0])
		b.u32(m.extdef[1])
		b.u32(m.undef[0])
		b.u32(m.undef[1])
		for range 12 {
			b.u32(0)
		}
	}

	for i, s := range m.sects {
		if s.zerofill() {
			continue
		}
		b.padTo(sectOffs[i])
		b.raw(s.data)
	}
	b.padTo(symoff)
	for i, s := range m.syms {
		b.u32(strx[i])
		b.u8(s.typ)
		b.u8(s.sect)
		b.u16(0) // desc
		b.word(s.value, m.is64)
	}
	b.raw(str.b)
	return b.b
}

// testMachO returns an object with four sections (text, data, zerofill
// and thread-local variables) and seven symbols, the first of which is
// a debugging symbol.
func testMachO(is64 bool, order byteOrder, cpu macho.Cpu) *machoTest {
	base := uint64(0x1000)
	if is64 {
		base = 0x100000000
	}
	return &machoTest{
		is64:  is64,
		order: order,
		cpu:   cpu,
		sects: []machoTestSection{
			{name: "__text", seg: "__TEXT", addr: base + 0xf00, align: 4, flags: sAttrPureInstructions | sAttrSomeInstructions, data: make([]byte, 32)},
			{name: "__data", seg: "__DATA", addr: base + 0x1000, align: 3, data: make([]byte, 16)},
			{name: "__bss", seg: "__DATA", addr: base + 0x2000, align: 5, flags: sZerofill, size: 0x40},
			{name: "__thread_vars", seg: "__DATA", addr: base + 0x3000, align: 3, flags: sThreadLocalVariables, data: make([]byte, 24)},
		},
		syms: []machoTestSym{
			{name: "hello.c", typ: 0x64}, // N_SO
			{name: "_local", typ: nSect, sect: 1, value: base + 0xf00},
			{name: "_main", typ: nSect | nExt, sect: 1, value: base + 0xf10},
			{name: "_counter", typ: nSect | nExt, sect: 2, value: base + 0x1000},
			{name: "_tlv", typ: nSect | nExt, sect: 4, value: base + 0x3000},
			{name: "_printf", typ: nUndf | nExt},
			{name: "_common", typ: nUndf | nExt, value: 8},
		},
		dysym:  true,
		extdef: [2]uint32{2, 3},
		undef:  [2]uint32{5, 2},
	}
}

// testFat returns a fat file holding the given thin images, each
// aligned to 64 bytes.
func testFat(cpus []macho.Cpu, slices ...[]byte) (buf []byte, offsets []uint64) {
	b := &testBuf{order: binary.BigEndian}
	b.u32(fatMagic)
	b.u32(uint32(len(slices)))
	off := uint64(fatHeaderSize + fatArch32Size*len(slices))
	for i, s := range slices {
		off = (off + 63) &^ 63
		offsets = append(offsets, off)
		b.u32(uint32(cpus[i]))
		b.u32(3)
		b.u32(uint32(off))
		b.u32(uint32(len(s)))
		b.u32(6)
		off += uint64(len(s))
	}
	for i, s := range slices {
		b.padTo(offsets[i])
		b.raw(s)
	}
	return b.b, offsets
}

// Wasm

func appendUleb(b []byte, v uint64) []byte {
	for {
		c := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			c |= 0x80
		}
		b = append(b, c)
		if v == 0 {
			return b
		}
	}
}

func wasmName(s string) []byte {
	return append(appendUleb(nil, uint64(len(s))), s...)
}

func wasmConcat(parts ...[]byte) []byte {
	var out []byte
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

type wasmTest struct {
	b []byte
	// payloads records the payload offset of each section.
	payloads []uint64
}

func newWasmTest() *wasmTest {
	return &wasmTest{b: []byte{0, 'a', 's', 'm', 1, 0, 0, 0}}
}

func (w *wasmTest) section(id byte, payload []byte) {
	w.b = append(w.b, id)
	w.b = appendUleb(w.b, uint64(len(payload)))
	w.payloads = append(w.payloads, uint64(len(w.b)))
	w.b = append(w.b, payload...)
}

// testWasm returns a module that imports one function, defines two
// (one named by export, one by the name section) and exports a global.
// codeBodies are the file offsets of the two function bodies.
func testWasm() (buf []byte, codeBodies [2]uint64) {
	w := newWasmTest()
	w.section(1, []byte{1, 0x60, 0, 0}) // one () -> () type
	w.section(2, wasmConcat([]byte{1}, wasmName("env"), wasmName("log"), []byte{wasmExternFunc, 0}))
	w.section(3, []byte{2, 0, 0})
	w.section(6, []byte{1, 0x7f, 1, 0x41, 0, 0x0b})
	w.section(7, wasmConcat([]byte{2},
		wasmName("main"), []byte{wasmExternFunc, 1},
		wasmName("counter"), []byte{wasmExternGlobal, 0}))
	w.section(10, []byte{2, 2, 0, 0x0b, 2, 0, 0x0b})
	code := w.payloads[len(w.payloads)-1]
	names := wasmConcat([]byte{1}, []byte{2}, wasmName("helper"))
	w.section(0, wasmConcat(wasmName("name"), []byte{wasmNameSubsectionFunction}, appendUleb(nil, uint64(len(names))), names))
	return w.b, [2]uint64{code + 2, code + 5}
}
