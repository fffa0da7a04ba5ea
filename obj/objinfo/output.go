// Copyright 2018 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/dustin/go-humanize"
	jsoniter "github.com/json-iterator/go"
	"github.com/olekukonko/tablewriter"

	"github.com/aclements/go-objinfo/obj"
)

type printer interface {
	print(r *report) error
}

// jsonPrinter writes one JSON object per line.
type jsonPrinter struct {
	enc *jsoniter.Encoder
}

func newJSONPrinter(w io.Writer) *jsonPrinter {
	return &jsonPrinter{jsoniter.ConfigCompatibleWithStandardLibrary.NewEncoder(w)}
}

func (p *jsonPrinter) print(r *report) error {
	return p.enc.Encode(r)
}

type tablePrinter struct {
	w io.Writer
}

func (p *tablePrinter) print(r *report) error {
	if r.Error != "" {
		_, err := fmt.Fprintf(p.w, "%s: %s\n", r.File, r.Error)
		return err
	}
	bits := "32-bit"
	if r.Is64 {
		bits = "64-bit"
	}
	if _, err := fmt.Fprintf(p.w, "%s: %s %s %s %s-endian, %d sections, %d symbols, %d dynamic symbols\n",
		r.File, r.Format, r.Arch, bits, r.ByteOrder, r.NumSections, r.NumSymbols, r.NumDynamicSymbols); err != nil {
		return err
	}

	if len(r.Arches) > 0 {
		t := p.table("Slice", "Arch", "CPU", "Offset", "Size")
		for i, a := range r.Arches {
			t.Append([]string{strconv.Itoa(i), a.Arch, hex(uint64(a.CPU)), hex(a.Offset), hex(a.Size)})
		}
		t.Render()
	}
	if r.Sections != nil {
		p.sections(r.Sections)
	}
	if r.Section != nil {
		p.sections([]obj.SectionInfo{*r.Section})
	}
	if r.Symbols != nil {
		p.symbols(r.Symbols)
	}
	if r.DynamicSymbols != nil {
		p.symbols(r.DynamicSymbols)
	}
	if len(r.Addrs) > 0 {
		t := p.table("Address", "Symbol", "Section")
		for _, a := range r.Addrs {
			sym := a.Symbol
			if sym != "" && a.Offset != 0 {
				sym += "+" + hex(a.Offset)
			}
			t.Append([]string{hex(a.Addr), sym, a.Section})
		}
		t.Render()
	}
	if s := r.Stats; s != nil {
		t := p.table("Sections", "Total", "Mean", "StdDev", "Min", "Median", "Max")
		size := func(v float64) string { return humanize.Bytes(uint64(v)) }
		t.Append([]string{strconv.Itoa(s.Count), humanize.Bytes(s.Total), size(s.Mean), size(s.StdDev), size(s.Min), size(s.Median), size(s.Max)})
		t.Render()
	}
	return nil
}

func (p *tablePrinter) table(header ...string) *tablewriter.Table {
	t := tablewriter.NewWriter(p.w)
	t.SetAutoFormatHeaders(false)
	t.SetHeader(header)
	return t
}

func (p *tablePrinter) sections(sects []obj.SectionInfo) {
	t := p.table("Index", "Name", "Address", "Size", "Align", "Offset", "Length")
	for _, s := range sects {
		off, length := "-", "-"
		if s.FileRange != nil {
			off, length = hex(s.FileRange.Offset), hex(s.FileRange.Length)
		}
		t.Append([]string{strconv.Itoa(int(s.Index)), s.Name, hex(s.Address), hex(s.Size), strconv.FormatUint(s.Align, 10), off, length})
	}
	t.Render()
}

func (p *tablePrinter) symbols(syms []obj.SymbolInfo) {
	t := p.table("Index", "Kind", "Address", "Name")
	for _, s := range syms {
		t.Append([]string{strconv.Itoa(int(s.Index)), s.Kind.String(), hex(s.Address), s.Name})
	}
	t.Render()
}

func hex(v uint64) string {
	return fmt.Sprintf("%#x", v)
}
