// Copyright 2018 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package obj

import (
	"debug/pe"
	"encoding/binary"
	"fmt"
	"iter"
	"strconv"
	"strings"

	"github.com/go-kit/log/level"

	"github.com/aclements/go-objinfo/obj/internal/bin"
)

const (
	coffFileHeaderSize = 20
	coffSectionSize    = 40
	coffSymbolSize     = 18

	peOptionalMagic32 = 0x10b
	peOptionalMagic64 = 0x20b
	// Through SectionAlignment, the last optional header field read.
	peOptionalMinSize = 36

	imageSymUndefined = 0

	imageSymClassExternal = 2
	imageSymClassStatic   = 3
	imageSymClassLabel    = 6
	imageSymClassFile     = 103

	imageScnAlignMask = 0x00f00000
)

type coffFile struct {
	format    Format
	data      bin.Data
	machine   uint16
	is64      bool
	imageBase uint64
	sectAlign uint32
	sects     []coffSection

	symoff uint64
	nsyms  uint64
	strtab bin.Data
}

type coffSection struct {
	name    string
	vsize   uint32
	vaddr   uint32
	rawSize uint32
	rawPtr  uint32
	chars   uint32
}

func parseCOFF(buf []byte, format Format, o *options) (*coffFile, error) {
	d := bin.New(buf, binary.LittleEndian)
	f := &coffFile{format: format, data: d}

	var hdr uint64
	if format == FormatPE {
		lfanew, ok := d.Uint32(dosLfanewOffset)
		if !ok {
			return nil, newError(format, ErrMalformedHeader, 0, "DOS header truncated")
		}
		hdr = uint64(lfanew) + uint64(len(magicPE))
	} else {
		sig1, _ := d.Uint16(0)
		sig2, _ := d.Uint16(2)
		if sig1 == 0 && sig2 == 0xffff {
			return nil, newError(format, ErrUnsupportedVariant, 0, "anonymous object header (import library or big object)")
		}
	}
	if !d.InBounds(hdr, coffFileHeaderSize) {
		return nil, newError(format, ErrMalformedHeader, hdr, "file header truncated: need %d bytes, have %d", coffFileHeaderSize, d.Len()-min(hdr, d.Len()))
	}
	f.machine, _ = d.Uint16(hdr)
	nsects16, _ := d.Uint16(hdr + 2)
	symptr, _ := d.Uint32(hdr + 8)
	nsyms, _ := d.Uint32(hdr + 12)
	optSize16, _ := d.Uint16(hdr + 16)
	opt, optSize := hdr+coffFileHeaderSize, uint64(optSize16)

	if format == FormatPE {
		if optSize < peOptionalMinSize || !d.InBounds(opt, optSize) {
			return nil, newError(format, ErrMalformedHeader, opt, "optional header (%d bytes) truncated or too small", optSize)
		}
		magic, _ := d.Uint16(opt)
		switch magic {
		case peOptionalMagic32:
			base, _ := d.Uint32(opt + 28)
			f.imageBase = uint64(base)
		case peOptionalMagic64:
			f.is64 = true
			f.imageBase, _ = d.Uint64(opt + 24)
		default:
			return nil, newError(format, ErrMalformedHeader, opt, "unknown optional header magic %#x, want %#x or %#x", magic, peOptionalMagic32, peOptionalMagic64)
		}
		f.sectAlign, _ = d.Uint32(opt + 32)
	} else {
		switch f.machine {
		case pe.IMAGE_FILE_MACHINE_AMD64, pe.IMAGE_FILE_MACHINE_ARM64, pe.IMAGE_FILE_MACHINE_IA64, pe.IMAGE_FILE_MACHINE_RISCV64, 0xa641:
			f.is64 = true
		}
	}

	// The symbol table comes first: long section names live in its
	// string table.
	if symptr != 0 && nsyms != 0 {
		f.symoff, f.nsyms = uint64(symptr), uint64(nsyms)
		end, ok := bin.MulAdd(f.symoff, f.nsyms, coffSymbolSize)
		if !ok || end > d.Len() {
			return nil, newError(format, ErrTruncatedTable, f.symoff, "symbol table (%d entries of %d bytes) extends past end of file (%d bytes)", nsyms, coffSymbolSize, d.Len())
		}
		if size, ok := d.Uint32(end); !ok {
			level.Debug(o.logger).Log("msg", "missing string table", "offset", end)
		} else if size >= 4 {
			if f.strtab, ok = d.Slice(end, uint64(size)); !ok {
				return nil, newError(format, ErrTruncatedTable, end, "string table (%d bytes) extends past end of file (%d bytes)", size, d.Len())
			}
		}
	}

	secOff := opt + optSize
	nsects := uint64(nsects16)
	end, ok := bin.MulAdd(secOff, nsects, coffSectionSize)
	if !ok || end > d.Len() {
		return nil, newError(format, ErrTruncatedTable, secOff, "section table (%d entries of %d bytes) extends past end of file (%d bytes)", nsects, coffSectionSize, d.Len())
	}
	f.sects = make([]coffSection, nsects)
	for i := range f.sects {
		off := secOff + uint64(i)*coffSectionSize
		s := &f.sects[i]
		raw, _ := d.FixedString(off, 8)
		if name, ok := f.longName(raw); ok {
			s.name = name
		} else {
			level.Debug(o.logger).Log("msg", "unresolved section name", "index", i, "name", raw)
		}
		s.vsize, _ = d.Uint32(off + 8)
		s.vaddr, _ = d.Uint32(off + 12)
		s.rawSize, _ = d.Uint32(off + 16)
		s.rawPtr, _ = d.Uint32(off + 20)
		s.chars, _ = d.Uint32(off + 36)
	}
	return f, nil
}

// longName resolves a section name of the form "/123" (decimal) or
// "//AAAAAA" (base64) through the string table. Other names are
// returned as is.
func (f *coffFile) longName(name string) (string, bool) {
	if !strings.HasPrefix(name, "/") {
		return name, true
	}
	var off uint64
	if strings.HasPrefix(name, "//") {
		const digits = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789+/"
		if len(name) == 2 {
			return "", false
		}
		for _, c := range name[2:] {
			v := strings.IndexRune(digits, c)
			if v < 0 {
				return "", false
			}
			off = off<<6 | uint64(v)
		}
	} else {
		var err error
		if off, err = strconv.ParseUint(name[1:], 10, 32); err != nil {
			return "", false
		}
	}
	return f.strtab.CString(off)
}

func (f *coffFile) info() Info {
	return Info{
		Arch:      coffArch(f.machine),
		Is64:      f.is64,
		ByteOrder: binary.LittleEndian,
	}
}

func (f *coffFile) sectionTable() []SectionInfo {
	out := make([]SectionInfo, len(f.sects))
	for i, s := range f.sects {
		info := SectionInfo{
			Index:   SectionIndex(i),
			Address: uint64(s.vaddr) + f.imageBase,
			Name:    s.name,
		}
		length := uint64(s.rawSize)
		if f.format == FormatPE {
			info.Size = uint64(s.vsize)
			if s.vsize == 0 {
				info.Size = uint64(s.rawSize)
			} else if s.vsize < s.rawSize {
				// The tail of the raw data is file alignment padding.
				length = uint64(s.vsize)
			}
			info.Align = uint64(f.sectAlign)
		} else {
			info.Size = uint64(s.rawSize)
			info.Align = coffAlign(s.chars)
		}
		if s.rawPtr != 0 && s.rawSize != 0 {
			info.FileRange = fileRange(uint64(s.rawPtr), length)
		}
		out[i] = info
	}
	return out
}

// coffAlign decodes the IMAGE_SCN_ALIGN_* field of an object file
// section. Sections without one default to 16 bytes.
func coffAlign(chars uint32) uint64 {
	n := (chars & imageScnAlignMask) >> 20
	if n == 0 || n > 14 {
		return 16
	}
	return 1 << (n - 1)
}

func (f *coffFile) symbols(dynamic bool) iter.Seq[SymbolInfo] {
	if dynamic || f.nsyms == 0 {
		return noSymbols
	}
	return func(yield func(SymbolInfo) bool) {
		for i := uint64(0); i < f.nsyms; {
			sym, naux := f.symbol(i)
			if !yield(sym) {
				return
			}
			i += 1 + naux
		}
	}
}

// symbol decodes symbol i and returns it with its number of auxiliary
// records, clamped to the table.
func (f *coffFile) symbol(i uint64) (SymbolInfo, uint64) {
	d := f.data
	off := f.symoff + i*coffSymbolSize
	value, _ := d.Uint32(off + 8)
	secnum16, _ := d.Uint16(off + 12)
	secnum := int16(secnum16)
	class, _ := d.Uint8(off + 16)
	naux8, _ := d.Uint8(off + 17)
	naux := min(uint64(naux8), f.nsyms-i-1)

	sym := SymbolInfo{Index: SymbolIndex(i), Address: uint64(value)}
	if class == imageSymClassFile {
		// The file name fills the auxiliary records.
		sym.Kind = SymbolFile
		sym.Name, _ = d.FixedString(off+coffSymbolSize, naux*coffSymbolSize)
		return sym, naux
	}

	if zeros, _ := d.Uint32(off); zeros == 0 {
		strOff, _ := d.Uint32(off + 4)
		sym.Name, _ = f.strtab.CString(uint64(strOff))
	} else {
		sym.Name, _ = d.FixedString(off, 8)
	}

	switch {
	case secnum < 0:
		// Absolute and debug symbols.
		sym.Kind = SymbolUnknown
	case secnum == imageSymUndefined:
		// An undefined external with a value is a common symbol.
		if value != 0 && class == imageSymClassExternal {
			sym.Kind = SymbolData
		}
	case int(secnum) > len(f.sects):
		sym.Kind = SymbolUnknown
	default:
		sect := &f.sects[secnum-1]
		sym.Address += uint64(sect.vaddr) + f.imageBase
		switch c := sect.chars; {
		case class == imageSymClassStatic && value == 0 && naux > 0:
			sym.Kind = SymbolSection
		case class == imageSymClassLabel:
			sym.Kind = SymbolLabel
		case c&pe.IMAGE_SCN_CNT_CODE != 0:
			sym.Kind = SymbolText
		case c&(pe.IMAGE_SCN_CNT_INITIALIZED_DATA|pe.IMAGE_SCN_CNT_UNINITIALIZED_DATA) != 0:
			sym.Kind = SymbolData
		}
	}
	return sym, naux
}

func coffArch(machine uint16) string {
	switch machine {
	case pe.IMAGE_FILE_MACHINE_I386:
		return "386"
	case pe.IMAGE_FILE_MACHINE_AMD64:
		return "amd64"
	case pe.IMAGE_FILE_MACHINE_ARM, pe.IMAGE_FILE_MACHINE_ARMNT:
		return "arm"
	case pe.IMAGE_FILE_MACHINE_ARM64:
		return "arm64"
	case pe.IMAGE_FILE_MACHINE_RISCV64:
		return "riscv64"
	case pe.IMAGE_FILE_MACHINE_IA64:
		return "ia64"
	case pe.IMAGE_FILE_MACHINE_UNKNOWN:
		return ""
	}
	return fmt.Sprintf("%#x", machine)
}
