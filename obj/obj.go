// Copyright 2018 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package obj provides a common, read-only view of object files in
// several container formats: ELF, COFF, PE, Mach-O (including fat
// binaries) and WebAssembly.
//
// A File is parsed once from an in-memory buffer. It borrows the
// buffer, so the caller must not modify it while the File is in use.
// Section and symbol records returned by a File are snapshots and are
// safe to retain after the buffer is gone.
//
// A File is immutable after Parse returns and may be used from multiple
// goroutines.
package obj

import (
	"encoding/binary"
	"io"
	"iter"
	"os"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/pkg/errors"
)

// Format identifies an object file container format.
type Format uint8

const (
	FormatUnknown Format = iota
	FormatCOFF
	FormatELF
	FormatMachO
	FormatPE
	FormatWasm
)

var formatNames = [...]string{
	FormatUnknown: "Unknown",
	FormatCOFF:    "Coff",
	FormatELF:     "Elf",
	FormatMachO:   "MachO",
	FormatPE:      "Pe",
	FormatWasm:    "Wasm",
}

func (f Format) String() string {
	if int(f) < len(formatNames) {
		return formatNames[f]
	}
	return "Unknown"
}

func (f Format) MarshalText() ([]byte, error) {
	return []byte(f.String()), nil
}

// Info describes the target of an object file, as recorded in its
// headers.
type Info struct {
	// Arch is the machine architecture in GOARCH spelling where one
	// exists (e.g., "amd64", "arm64"), the format's own name for the
	// machine otherwise, or "" if the file does not say.
	Arch string
	// Is64 reports whether the file uses 64-bit addresses.
	Is64 bool
	// ByteOrder is the byte order of the file's headers.
	ByteOrder binary.ByteOrder
}

// A reader is the parsed state of one container format. The set of
// implementations is closed: *elfFile, *coffFile, *machoFile and
// *wasmFile. Each is built in a single pass by its parse function and
// never modified afterwards.
type reader interface {
	info() Info
	sectionTable() []SectionInfo
	// symbols returns a fresh sequence over the regular or dynamic
	// symbol table. Formats without a dynamic table return noSymbols.
	symbols(dynamic bool) iter.Seq[SymbolInfo]
}

// File is a parsed object file.
type File struct {
	format Format
	buf    []byte
	r      reader
	sects  []SectionInfo
	arches []FatArch
	opts   options
}

type options struct {
	arch   string
	logger log.Logger
}

// An Option configures Parse.
type Option func(*options)

// WithArch selects the slice of a Mach-O fat binary whose CPU matches
// the given GOARCH-style architecture name. Without it, Parse selects
// the first slice. It has no effect on other files.
func WithArch(arch string) Option {
	return func(o *options) {
		o.arch = arch
	}
}

// WithLogger sets the logger used to report recoverable oddities, such
// as names that could not be resolved.
func WithLogger(logger log.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// Parse parses buf as an object file of any supported format. The
// returned File refers to buf; buf must not be modified while the File
// is in use.
func Parse(buf []byte, opts ...Option) (*File, error) {
	o := options{logger: log.NewNopLogger()}
	for _, opt := range opts {
		opt(&o)
	}

	format, err := Detect(buf)
	if err != nil {
		return nil, err
	}

	f := &File{format: format, buf: buf, opts: o}
	switch format {
	case FormatELF:
		f.r, err = parseELF(buf, &o)
	case FormatCOFF, FormatPE:
		f.r, err = parseCOFF(buf, format, &o)
	case FormatMachO:
		var m *machoFile
		m, f.arches, err = parseMachOAny(buf, &o)
		f.r = m
	case FormatWasm:
		f.r, err = parseWasm(buf, &o)
	default:
		return nil, errNoOffset(FormatUnknown, ErrUnknownFormat, "no reader for %v", format)
	}
	if err != nil {
		return nil, err
	}
	f.sects = f.r.sectionTable()
	level.Debug(o.logger).Log("msg", "parsed object file", "format", format, "sections", len(f.sects))
	return f, nil
}

// Open reads the named file into memory and parses it.
func Open(name string, opts ...Option) (*File, error) {
	buf, err := os.ReadFile(name)
	if err != nil {
		return nil, err
	}
	f, err := Parse(buf, opts...)
	if err != nil {
		return nil, errors.Wrapf(err, "%s", name)
	}
	return f, nil
}

// Read reads all of r into memory and parses it.
func Read(r io.Reader, opts ...Option) (*File, error) {
	buf, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return Parse(buf, opts...)
}

// Format returns the container format of f. For a fat Mach-O binary this
// is FormatMachO.
func (f *File) Format() Format {
	return f.format
}

// Info returns metadata about f's target.
func (f *File) Info() Info {
	return f.r.info()
}

// Arches returns the slices of a Mach-O fat binary, in file order. It
// returns nil for any other file.
func (f *File) Arches() []FatArch {
	if f.arches == nil {
		return nil
	}
	return append([]FatArch(nil), f.arches...)
}

// Symbols returns a sequence over f's regular symbol table, in table
// order. Each call returns an independent sequence.
func (f *File) Symbols() iter.Seq[SymbolInfo] {
	return f.r.symbols(false)
}

// DynamicSymbols returns a sequence over f's dynamic symbol table. For
// formats without one (COFF, PE and Wasm) the sequence is empty.
func (f *File) DynamicSymbols() iter.Seq[SymbolInfo] {
	return f.r.symbols(true)
}

// noSymbols is the empty symbol sequence.
func noSymbols(yield func(SymbolInfo) bool) {}
