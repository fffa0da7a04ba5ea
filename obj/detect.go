// Copyright 2018 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package obj

import (
	"bytes"
	"debug/pe"
	"encoding/binary"
)

// Magic numbers, as they appear at the start of the file.
var (
	magicELF  = []byte{0x7f, 'E', 'L', 'F'}
	magicWasm = []byte{0x00, 'a', 's', 'm'}
	magicMZ   = []byte{'M', 'Z'}
	magicPE   = []byte{'P', 'E', 0, 0}
)

const (
	machoMagic32 = 0xfeedface
	machoMagic64 = 0xfeedfacf
	fatMagic     = 0xcafebabe
	fatMagic64   = 0xcafebabf

	// Java class files share the fat magic. Their next word is the
	// class file version, whose major number is at least 45, so a
	// smaller count can only be a fat header.
	fatMaxArches = 45

	// e_lfanew, the offset of the PE signature, lives at 0x3c in the
	// DOS header.
	dosLfanewOffset = 0x3c
	dosHeaderSize   = 0x40
)

// coffMachines are the machine types accepted as the first two bytes
// of a plain COFF object. This is a weak signature, so it is checked
// last.
var coffMachines = map[uint16]bool{
	pe.IMAGE_FILE_MACHINE_I386:    true,
	pe.IMAGE_FILE_MACHINE_AMD64:   true,
	pe.IMAGE_FILE_MACHINE_ARM:     true,
	pe.IMAGE_FILE_MACHINE_ARMNT:   true,
	pe.IMAGE_FILE_MACHINE_ARM64:   true,
	pe.IMAGE_FILE_MACHINE_IA64:    true,
	pe.IMAGE_FILE_MACHINE_RISCV64: true,
	0xa641:                        true, // ARM64EC
}

// Detect identifies the container format of buf from its magic number.
// It does not validate anything beyond what is needed to choose a
// reader. It fails with ErrUnknownFormat if buf is too short or no
// magic number matches.
func Detect(buf []byte) (Format, error) {
	switch {
	case bytes.HasPrefix(buf, magicELF):
		return FormatELF, nil
	case bytes.HasPrefix(buf, magicWasm):
		return FormatWasm, nil
	}

	if len(buf) >= 4 {
		le := binary.LittleEndian.Uint32(buf)
		be := binary.BigEndian.Uint32(buf)
		switch {
		case le == machoMagic32, le == machoMagic64, be == machoMagic32, be == machoMagic64:
			return FormatMachO, nil
		case be == fatMagic || be == fatMagic64:
			if len(buf) >= 8 {
				if n := binary.BigEndian.Uint32(buf[4:]); n > 0 && n < fatMaxArches {
					return FormatMachO, nil
				}
			}
		}
	}

	if bytes.HasPrefix(buf, magicMZ) {
		if len(buf) >= dosHeaderSize {
			off := uint64(binary.LittleEndian.Uint32(buf[dosLfanewOffset:]))
			if off <= uint64(len(buf)) && uint64(len(buf))-off >= 4 && bytes.Equal(buf[off:off+4], magicPE) {
				return FormatPE, nil
			}
		}
		// A DOS executable without a PE image.
		return FormatUnknown, errNoOffset(FormatUnknown, ErrUnknownFormat, "MZ header without PE signature")
	}

	if len(buf) >= 4 && binary.LittleEndian.Uint16(buf) == 0 && binary.LittleEndian.Uint16(buf[2:]) == 0xffff {
		// Import library or big-object COFF header.
		return FormatCOFF, nil
	}
	if len(buf) >= 2 && coffMachines[binary.LittleEndian.Uint16(buf)] {
		return FormatCOFF, nil
	}

	if len(buf) < 4 {
		return FormatUnknown, errNoOffset(FormatUnknown, ErrUnknownFormat, "buffer too short (%d bytes)", len(buf))
	}
	return FormatUnknown, errNoOffset(FormatUnknown, ErrUnknownFormat, "unknown magic %#x", buf[:4])
}
