// Copyright 2018 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package obj

import (
	"debug/macho"
	"encoding/binary"
	"iter"
	"math/bits"
	"strings"

	"github.com/go-kit/log/level"
	"github.com/pkg/errors"

	"github.com/aclements/go-objinfo/obj/internal/bin"
)

const (
	machoHeader32Size  = 28
	machoHeader64Size  = 32
	machoSegment32Size = 56
	machoSegment64Size = 72
	machoSection32Size = 68
	machoSection64Size = 80
	machoSymtabSize    = 24
	machoDysymtabSize  = 80
	machoNlist32Size   = 12
	machoNlist64Size   = 16

	fatHeaderSize = 8
	fatArch32Size = 20
	fatArch64Size = 32

	cpuArm64_32 = 0x0200000c

	nStab = 0xe0
	nType = 0x0e
	nExt  = 0x01
	nUndf = 0x0
	nSect = 0xe

	sectionTypeMask          = 0xff
	sZerofill                = 0x1
	sGBZerofill              = 0xc
	sThreadLocalRegular      = 0x11
	sThreadLocalZerofill     = 0x12
	sThreadLocalVariables    = 0x13
	sAttrPureInstructions    = 0x80000000
	sAttrSomeInstructions    = 0x400
	machoMaxAlignmentLog2    = 63
	machoSectionNameFieldLen = 16
)

// FatArch describes one slice of a Mach-O fat (universal) binary.
type FatArch struct {
	// Arch is the slice's CPU in GOARCH spelling where one exists.
	Arch   string `json:"arch"`
	CPU    uint32 `json:"cpu"`
	SubCPU uint32 `json:"subcpu"`
	// Offset and Size locate the slice within the fat file.
	Offset uint64 `json:"offset"`
	Size   uint64 `json:"size"`
}

type machoFile struct {
	// data covers only the selected slice. base is the slice's offset
	// in the file, added to reported file ranges.
	data  bin.Data
	base  uint64
	is64  bool
	cpu   macho.Cpu
	sects []machoSection

	symtab struct {
		present bool
		off     uint64
		count   uint64
		strtab  bin.Data
	}
	dysymtab struct {
		present          bool
		iextdef, nextdef uint64
		iundef, nundef   uint64
	}
}

type machoSection struct {
	name   string
	seg    string
	addr   uint64
	size   uint64
	offset uint32
	align  uint32
	flags  uint32
}

// parseMachOAny parses a thin Mach-O file or selects and parses one
// slice of a fat file. For fat files it also returns every slice.
func parseMachOAny(buf []byte, o *options) (*machoFile, []FatArch, error) {
	d := bin.New(buf, binary.BigEndian)
	magic, _ := d.Uint32(0)
	if magic != fatMagic && magic != fatMagic64 {
		m, err := parseMachO(d, 0, o)
		return m, nil, err
	}

	arches, err := parseFatHeader(d, magic == fatMagic64)
	if err != nil {
		return nil, nil, err
	}
	i, err := selectArch(arches, o.arch)
	if err != nil {
		return nil, nil, err
	}
	a := arches[i]
	level.Debug(o.logger).Log("msg", "selected fat slice", "index", i, "arch", a.Arch, "offset", a.Offset, "size", a.Size)
	slice, _ := d.Slice(a.Offset, a.Size)
	m, err := parseMachO(slice, a.Offset, o)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "fat slice %d (%s)", i, a.Arch)
	}
	return m, arches, nil
}

func parseFatHeader(d bin.Data, is64 bool) ([]FatArch, error) {
	n, ok := d.Uint32(4)
	if !ok {
		return nil, newError(FormatMachO, ErrMalformedHeader, 0, "fat header truncated")
	}
	if n == 0 {
		return nil, newError(FormatMachO, ErrMalformedHeader, 4, "fat header has no slices")
	}
	entSize := uint64(fatArch32Size)
	if is64 {
		entSize = fatArch64Size
	}
	end, ok := bin.MulAdd(fatHeaderSize, uint64(n), entSize)
	if !ok || end > d.Len() {
		return nil, newError(FormatMachO, ErrTruncatedTable, fatHeaderSize, "fat arch table (%d entries of %d bytes) extends past end of file (%d bytes)", n, entSize, d.Len())
	}

	arches := make([]FatArch, n)
	for i := range arches {
		off := fatHeaderSize + uint64(i)*entSize
		a := &arches[i]
		a.CPU, _ = d.Uint32(off)
		a.SubCPU, _ = d.Uint32(off + 4)
		if is64 {
			a.Offset, _ = d.Uint64(off + 8)
			a.Size, _ = d.Uint64(off + 16)
		} else {
			o32, _ := d.Uint32(off + 8)
			s32, _ := d.Uint32(off + 12)
			a.Offset, a.Size = uint64(o32), uint64(s32)
		}
		a.Arch = machoArch(macho.Cpu(a.CPU))
		if !d.InBounds(a.Offset, a.Size) {
			return nil, newError(FormatMachO, ErrTruncatedTable, a.Offset, "fat slice %d (%d bytes) extends past end of file (%d bytes)", i, a.Size, d.Len())
		}
	}
	return arches, nil
}

// selectArch picks the first slice whose architecture is want, or the
// first slice if want is empty.
func selectArch(arches []FatArch, want string) (int, error) {
	if want == "" {
		return 0, nil
	}
	have := make([]string, len(arches))
	for i, a := range arches {
		if a.Arch == want {
			return i, nil
		}
		have[i] = a.Arch
	}
	return -1, errNoOffset(FormatMachO, ErrUnsupportedVariant, "no fat slice for architecture %q (have %s)", want, strings.Join(have, ", "))
}

// parseMachO parses a thin Mach-O image occupying all of d.
func parseMachO(d bin.Data, base uint64, o *options) (*machoFile, error) {
	f := &machoFile{base: base}
	magic, ok := d.WithOrder(binary.LittleEndian).Uint32(0)
	if !ok {
		return nil, newError(FormatMachO, ErrMalformedHeader, base, "header truncated")
	}
	switch magic {
	case machoMagic32:
		d = d.WithOrder(binary.LittleEndian)
	case machoMagic64:
		d, f.is64 = d.WithOrder(binary.LittleEndian), true
	case bits.ReverseBytes32(machoMagic32):
		d = d.WithOrder(binary.BigEndian)
	case bits.ReverseBytes32(machoMagic64):
		d, f.is64 = d.WithOrder(binary.BigEndian), true
	default:
		return nil, newError(FormatMachO, ErrMalformedHeader, base, "bad magic %#x", magic)
	}
	f.data = d

	hdrSize := uint64(machoHeader32Size)
	if f.is64 {
		hdrSize = machoHeader64Size
	}
	if !d.InBounds(0, hdrSize) {
		return nil, newError(FormatMachO, ErrMalformedHeader, base, "header truncated: need %d bytes, have %d", hdrSize, d.Len())
	}
	cpu, _ := d.Uint32(4)
	f.cpu = macho.Cpu(cpu)
	ncmds, _ := d.Uint32(16)
	sizeofcmds, _ := d.Uint32(20)
	if !d.InBounds(hdrSize, uint64(sizeofcmds)) {
		return nil, newError(FormatMachO, ErrTruncatedTable, base+hdrSize, "load commands (%d bytes) extend past end of file (%d bytes)", sizeofcmds, d.Len())
	}

	cmdsEnd := hdrSize + uint64(sizeofcmds)
	off := hdrSize
	for i := uint32(0); i < ncmds; i++ {
		if cmdsEnd-off < 8 {
			return nil, newError(FormatMachO, ErrMalformedHeader, base+off, "load command %d of %d truncated", i, ncmds)
		}
		cmd, _ := d.Uint32(off)
		size32, _ := d.Uint32(off + 4)
		size := uint64(size32)
		if size < 8 || size > cmdsEnd-off {
			return nil, newError(FormatMachO, ErrMalformedHeader, base+off, "load command %d size %d not in [8, %d]", i, size, cmdsEnd-off)
		}
		cd, _ := d.Slice(off, size)

		var err error
		switch macho.LoadCmd(cmd) {
		case macho.LoadCmdSegment:
			err = f.readSegment(cd, base+off, false, o)
		case macho.LoadCmdSegment64:
			err = f.readSegment(cd, base+off, true, o)
		case macho.LoadCmdSymtab:
			err = f.readSymtab(cd, base+off)
		case macho.LoadCmdDysymtab:
			err = f.readDysymtab(cd, base+off)
		}
		if err != nil {
			return nil, err
		}
		off += size
	}

	if f.dysymtab.present {
		t := &f.dysymtab
		for _, r := range [][2]uint64{{t.iextdef, t.nextdef}, {t.iundef, t.nundef}} {
			if r[0]+r[1] > f.symtab.count {
				return nil, errNoOffset(FormatMachO, ErrMalformedHeader, "dynamic symbol range [%d, %d) exceeds %d symbols", r[0], r[0]+r[1], f.symtab.count)
			}
		}
	}
	return f, nil
}

func (f *machoFile) readSegment(cd bin.Data, off uint64, is64 bool, o *options) error {
	hdrSize, sectSize, nsectsOff := uint64(machoSegment32Size), uint64(machoSection32Size), uint64(48)
	if is64 {
		hdrSize, sectSize, nsectsOff = machoSegment64Size, machoSection64Size, 64
	}
	if cd.Len() < hdrSize {
		return newError(FormatMachO, ErrMalformedHeader, off, "segment command size %d, want at least %d", cd.Len(), hdrSize)
	}
	nsects, _ := cd.Uint32(nsectsOff)
	end, ok := bin.MulAdd(hdrSize, uint64(nsects), sectSize)
	if !ok || end > cd.Len() {
		return newError(FormatMachO, ErrMalformedHeader, off, "segment command with %d sections of %d bytes overflows command size %d", nsects, sectSize, cd.Len())
	}
	for i := uint64(0); i < uint64(nsects); i++ {
		so := hdrSize + i*sectSize
		var s machoSection
		s.name, _ = cd.FixedString(so, machoSectionNameFieldLen)
		s.seg, _ = cd.FixedString(so+16, machoSectionNameFieldLen)
		if is64 {
			s.addr, _ = cd.Uint64(so + 32)
			s.size, _ = cd.Uint64(so + 40)
			s.offset, _ = cd.Uint32(so + 48)
			s.align, _ = cd.Uint32(so + 52)
			s.flags, _ = cd.Uint32(so + 64)
		} else {
			addr, _ := cd.Uint32(so + 32)
			size, _ := cd.Uint32(so + 36)
			s.addr, s.size = uint64(addr), uint64(size)
			s.offset, _ = cd.Uint32(so + 40)
			s.align, _ = cd.Uint32(so + 44)
			s.flags, _ = cd.Uint32(so + 56)
		}
		if s.align > machoMaxAlignmentLog2 {
			return newError(FormatMachO, ErrMalformedHeader, off+so, "section %s,%s alignment 2^%d", s.seg, s.name, s.align)
		}
		if s.name == "" {
			level.Debug(o.logger).Log("msg", "unnamed section", "segment", s.seg, "index", len(f.sects))
		}
		f.sects = append(f.sects, s)
	}
	return nil
}

func (f *machoFile) readSymtab(cd bin.Data, off uint64) error {
	if cd.Len() < machoSymtabSize {
		return newError(FormatMachO, ErrMalformedHeader, off, "symtab command size %d, want %d", cd.Len(), machoSymtabSize)
	}
	symoff, _ := cd.Uint32(8)
	nsyms, _ := cd.Uint32(12)
	stroff, _ := cd.Uint32(16)
	strsize, _ := cd.Uint32(20)

	entSize := uint64(machoNlist32Size)
	if f.is64 {
		entSize = machoNlist64Size
	}
	end, ok := bin.MulAdd(uint64(symoff), uint64(nsyms), entSize)
	if !ok || end > f.data.Len() {
		return newError(FormatMachO, ErrTruncatedTable, f.base+uint64(symoff), "symbol table (%d entries of %d bytes) extends past end of file (%d bytes)", nsyms, entSize, f.data.Len())
	}
	strtab, ok := f.data.Slice(uint64(stroff), uint64(strsize))
	if !ok {
		return newError(FormatMachO, ErrTruncatedTable, f.base+uint64(stroff), "string table (%d bytes) extends past end of file (%d bytes)", strsize, f.data.Len())
	}
	t := &f.symtab
	t.present, t.off, t.count, t.strtab = true, uint64(symoff), uint64(nsyms), strtab
	return nil
}

func (f *machoFile) readDysymtab(cd bin.Data, off uint64) error {
	if cd.Len() < machoDysymtabSize {
		return newError(FormatMachO, ErrMalformedHeader, off, "dysymtab command size %d, want %d", cd.Len(), machoDysymtabSize)
	}
	field := func(o uint64) uint64 {
		v, _ := cd.Uint32(o)
		return uint64(v)
	}
	t := &f.dysymtab
	t.present = true
	t.iextdef, t.nextdef = field(16), field(20)
	t.iundef, t.nundef = field(24), field(28)
	return nil
}

func (f *machoFile) info() Info {
	return Info{
		Arch:      machoArch(f.cpu),
		Is64:      f.is64,
		ByteOrder: f.data.Order,
	}
}

func (f *machoFile) sectionTable() []SectionInfo {
	out := make([]SectionInfo, len(f.sects))
	for i, s := range f.sects {
		out[i] = SectionInfo{
			Index:   SectionIndex(i),
			Address: s.addr,
			Size:    s.size,
			Align:   1 << s.align,
			Name:    s.name,
		}
		switch s.flags & sectionTypeMask {
		case sZerofill, sGBZerofill, sThreadLocalZerofill:
		default:
			out[i].FileRange = fileRange(f.base+uint64(s.offset), s.size)
		}
	}
	return out
}

func (f *machoFile) symbols(dynamic bool) iter.Seq[SymbolInfo] {
	if !f.symtab.present {
		return noSymbols
	}
	if !dynamic {
		return func(yield func(SymbolInfo) bool) {
			f.symbolRange(0, f.symtab.count, yield)
		}
	}
	if !f.dysymtab.present {
		return noSymbols
	}
	t := f.dysymtab
	return func(yield func(SymbolInfo) bool) {
		if f.symbolRange(t.iextdef, t.nextdef, yield) {
			f.symbolRange(t.iundef, t.nundef, yield)
		}
	}
}

// symbolRange yields the non-debugging symbols in [start, start+n). It
// returns false if yield asked to stop.
func (f *machoFile) symbolRange(start, n uint64, yield func(SymbolInfo) bool) bool {
	d := f.data
	entSize := uint64(machoNlist32Size)
	if f.is64 {
		entSize = machoNlist64Size
	}
	for i := start; i < start+n; i++ {
		off := f.symtab.off + i*entSize
		typ, _ := d.Uint8(off + 4)
		if typ&nStab != 0 {
			continue
		}
		strx, _ := d.Uint32(off)
		sect, _ := d.Uint8(off + 5)
		value, _ := d.Word(off+8, f.is64)

		sym := SymbolInfo{
			Index:   SymbolIndex(i),
			Address: value,
			Kind:    f.symbolKind(typ, sect, value),
		}
		if strx != 0 {
			sym.Name, _ = f.symtab.strtab.CString(uint64(strx))
		}
		if !yield(sym) {
			return false
		}
	}
	return true
}

func (f *machoFile) symbolKind(typ, sect uint8, value uint64) SymbolKind {
	switch typ & nType {
	case nUndf:
		// An undefined external with a size is a common symbol.
		if typ&nExt != 0 && value != 0 {
			return SymbolData
		}
	case nSect:
		if sect == 0 || int(sect) > len(f.sects) {
			break
		}
		s := &f.sects[sect-1]
		switch s.flags & sectionTypeMask {
		case sThreadLocalRegular, sThreadLocalZerofill, sThreadLocalVariables:
			return SymbolTls
		}
		if s.flags&(sAttrPureInstructions|sAttrSomeInstructions) != 0 {
			return SymbolText
		}
		return SymbolData
	}
	return SymbolUnknown
}

func machoArch(cpu macho.Cpu) string {
	switch cpu {
	case macho.Cpu386:
		return "386"
	case macho.CpuAmd64:
		return "amd64"
	case macho.CpuArm:
		return "arm"
	case macho.CpuArm64:
		return "arm64"
	case macho.CpuPpc:
		return "ppc"
	case macho.CpuPpc64:
		return "ppc64"
	case cpuArm64_32:
		return "arm64_32"
	}
	return cpu.String()
}
