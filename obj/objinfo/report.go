// Copyright 2018 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"encoding/binary"
	"fmt"
	"slices"
	"sort"

	"github.com/aclements/go-moremath/stats"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"golang.org/x/sync/errgroup"

	"github.com/aclements/go-objinfo/obj"
	"github.com/aclements/go-objinfo/obj/internal/symtab"
)

// A report is everything objinfo prints about one file.
type report struct {
	File  string `json:"file"`
	Error string `json:"error,omitempty"`

	Format    obj.Format    `json:"format,omitempty"`
	Arch      string        `json:"arch,omitempty"`
	Is64      bool          `json:"is64"`
	ByteOrder string        `json:"byte_order,omitempty"`
	Arches    []obj.FatArch `json:"arches,omitempty"`

	NumSections       int `json:"num_sections"`
	NumSymbols        int `json:"num_symbols"`
	NumDynamicSymbols int `json:"num_dynamic_symbols"`

	Sections       []obj.SectionInfo `json:"sections,omitempty"`
	Symbols        []obj.SymbolInfo  `json:"symbols,omitempty"`
	DynamicSymbols []obj.SymbolInfo  `json:"dynamic_symbols,omitempty"`
	Section        *obj.SectionInfo  `json:"section,omitempty"`
	Addrs          []addrInfo        `json:"addrs,omitempty"`
	Stats          *sizeStats        `json:"stats,omitempty"`
}

type addrInfo struct {
	Addr    uint64 `json:"addr"`
	Symbol  string `json:"symbol,omitempty"`
	Offset  uint64 `json:"offset,omitempty"`
	Section string `json:"section,omitempty"`
}

// sizeStats summarizes the sizes of a file's sections.
type sizeStats struct {
	Count  int     `json:"count"`
	Total  uint64  `json:"total"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"stddev"`
	Min    float64 `json:"min"`
	Median float64 `json:"median"`
	Max    float64 `json:"max"`
}

// collect reads every file, at most cfg.jobs at a time, and returns
// their reports in argument order. A file that cannot be read yields a
// report with Error set.
func collect(ctx context.Context, paths []string, cfg *config, logger log.Logger) ([]*report, error) {
	reports := make([]*report, len(paths))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.jobs)
	for i, path := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			reports[i] = describe(path, cfg, log.With(logger, "file", path))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return reports, nil
}

func describe(path string, cfg *config, logger log.Logger) *report {
	r := &report{File: path}
	f, err := obj.Open(path, obj.WithArch(cfg.arch), obj.WithLogger(logger))
	if err != nil {
		r.Error = err.Error()
		return r
	}

	info := f.Info()
	r.Format = f.Format()
	r.Arch = info.Arch
	r.Is64 = info.Is64
	switch info.ByteOrder {
	case binary.LittleEndian:
		r.ByteOrder = "little"
	case binary.BigEndian:
		r.ByteOrder = "big"
	}
	r.Arches = f.Arches()

	sects := f.Sections()
	syms := slices.Collect(f.Symbols())
	dynsyms := slices.Collect(f.DynamicSymbols())
	if cfg.minidebug {
		if mini, err := f.MiniDebugInfo(); err == nil {
			syms = append(syms, slices.Collect(mini.Symbols())...)
		} else if obj.ErrorKind(err) != obj.ErrNoMiniDebugInfo {
			level.Warn(logger).Log("msg", "ignoring MiniDebugInfo", "err", err)
		}
	}
	r.NumSections = len(sects)
	r.NumSymbols = len(syms)
	r.NumDynamicSymbols = len(dynsyms)

	if cfg.sections {
		r.Sections = sects
	}
	if cfg.syms {
		r.Symbols = syms
	}
	if cfg.dynsyms {
		r.DynamicSymbols = dynsyms
	}

	switch {
	case cfg.section != "":
		s, ok := f.SectionByName(cfg.section)
		if !ok {
			r.Error = fmt.Sprintf("no section named %q", cfg.section)
			return r
		}
		r.Section = &s
	case cfg.index >= 0:
		s, err := f.SectionByIndex(obj.SectionIndex(cfg.index))
		if err != nil {
			r.Error = err.Error()
			return r
		}
		r.Section = &s
	}

	if len(cfg.addrs) > 0 {
		tab := symtab.NewTable(slices.Concat(syms, dynsyms), sects)
		for _, a := range cfg.addrs {
			ai := addrInfo{Addr: a}
			if name, base := tab.SymName(a); name != "" {
				ai.Symbol, ai.Offset = name, a-base
			}
			for _, s := range sects {
				if s.Address != 0 && s.Address <= a && a-s.Address < s.Size {
					ai.Section = s.Name
					break
				}
			}
			r.Addrs = append(r.Addrs, ai)
		}
	}

	if cfg.stats {
		r.Stats = sectionStats(sects)
	}
	return r
}

// sectionStats summarizes the sizes of the non-empty sections.
func sectionStats(sects []obj.SectionInfo) *sizeStats {
	var xs []float64
	var total uint64
	for _, s := range sects {
		if s.Size == 0 {
			continue
		}
		xs = append(xs, float64(s.Size))
		total += s.Size
	}
	st := &sizeStats{Count: len(xs), Total: total}
	if len(xs) == 0 {
		return st
	}
	sort.Float64s(xs)
	st.Mean = stats.Mean(xs)
	if len(xs) > 1 {
		st.StdDev = stats.StdDev(xs)
	}
	st.Min, st.Max = stats.Bounds(xs)
	st.Median = stats.Sample{Xs: xs, Sorted: true}.Quantile(0.5)
	return st
}
