// Copyright 2018 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command objinfo prints the format, sections and symbols of object
// files.
//
// Usage:
//
//	objinfo [flags] objfile...
//
// By default objinfo prints a summary of each file. -sections, -syms
// and -dynsyms add the corresponding tables, -section and -index select
// one section, and -addr resolves addresses to symbols. Output is JSON
// when stdout is not a terminal or -json is given, and tables
// otherwise.
//
// Flags are also read from the OBJINFO_FLAGS environment variable,
// which is split like a shell command line and placed before the
// command-line flags. Tables are paged through $OBJINFO_PAGER or
// $PAGER (default less).
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"runtime"
	"strconv"
	"strings"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/kballard/go-shellquote"
	"golang.org/x/term"
)

const envFlags = "OBJINFO_FLAGS"

type config struct {
	json      bool
	sections  bool
	syms      bool
	dynsyms   bool
	section   string
	index     int
	addrs     addrList
	arch      string
	stats     bool
	minidebug bool
	jobs      int
	verbose   bool
}

// addrList is a comma-separated list of addresses. Each may be given
// in any base strconv.ParseUint accepts with base 0.
type addrList []uint64

func (l *addrList) String() string {
	var s []string
	for _, a := range *l {
		s = append(s, fmt.Sprintf("%#x", a))
	}
	return strings.Join(s, ",")
}

func (l *addrList) Set(v string) error {
	for _, f := range strings.Split(v, ",") {
		a, err := strconv.ParseUint(strings.TrimSpace(f), 0, 64)
		if err != nil {
			return err
		}
		*l = append(*l, a)
	}
	return nil
}

func main() {
	tty := term.IsTerminal(int(os.Stdout.Fd()))
	var pagerCmd string
	if tty {
		pagerCmd = pagerCommand()
	}
	os.Exit(run(context.Background(), os.Args[1:], os.Getenv(envFlags), pagerCmd, os.Stdout, os.Stderr, tty))
}

// run executes objinfo and returns its exit status. Table output is
// piped through pagerCmd unless it is "".
func run(ctx context.Context, args []string, env, pagerCmd string, stdout, stderr io.Writer, tty bool) int {
	extra, err := shellquote.Split(env)
	if err != nil {
		fmt.Fprintf(stderr, "objinfo: parsing %s: %v\n", envFlags, err)
		return 2
	}

	var cfg config
	fs := flag.NewFlagSet("objinfo", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.BoolVar(&cfg.json, "json", false, "print JSON even on a terminal")
	fs.BoolVar(&cfg.sections, "sections", false, "print the section table")
	fs.BoolVar(&cfg.syms, "syms", false, "print the symbol table")
	fs.BoolVar(&cfg.dynsyms, "dynsyms", false, "print the dynamic symbol table")
	fs.StringVar(&cfg.section, "section", "", "print the section named `name`")
	fs.IntVar(&cfg.index, "index", -1, "print the section at index `i`")
	fs.Var(&cfg.addrs, "addr", "resolve comma-separated `addresses` to symbols")
	fs.StringVar(&cfg.arch, "arch", "", "select the `goarch` slice of a fat Mach-O file")
	fs.BoolVar(&cfg.stats, "stats", false, "print section size statistics")
	fs.BoolVar(&cfg.minidebug, "minidebug", false, "include symbols from an ELF .gnu_debugdata section")
	fs.IntVar(&cfg.jobs, "j", runtime.GOMAXPROCS(0), "parse up to `n` files at once")
	fs.BoolVar(&cfg.verbose, "v", false, "log debugging information")
	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: objinfo [flags] objfile...\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(append(extra, args...)); err != nil {
		return 2
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return 2
	}
	if cfg.jobs < 1 {
		cfg.jobs = 1
	}

	logger := log.NewLogfmtLogger(log.NewSyncWriter(stderr))
	if cfg.verbose {
		logger = level.NewFilter(logger, level.AllowDebug())
	} else {
		logger = level.NewFilter(logger, level.AllowInfo())
	}

	reports, err := collect(ctx, fs.Args(), &cfg, logger)
	if err != nil {
		level.Error(logger).Log("msg", "objinfo failed", "err", err)
		return 1
	}

	var out printer
	if cfg.json || !tty {
		out = newJSONPrinter(stdout)
	} else {
		w := stdout
		if pagerCmd != "" {
			if p, err := startPager(pagerCmd, stdout, stderr); err != nil {
				level.Warn(logger).Log("msg", "not paging output", "err", err)
			} else {
				defer p.Close()
				w = p
			}
		}
		out = &tablePrinter{w: w}
	}
	status := 0
	for _, r := range reports {
		if r.Error != "" {
			level.Error(logger).Log("msg", "failed to read object file", "file", r.File, "err", r.Error)
			status = 1
		}
		if err := out.print(r); err != nil {
			level.Error(logger).Log("msg", "write failed", "err", err)
			return 1
		}
	}
	return status
}
