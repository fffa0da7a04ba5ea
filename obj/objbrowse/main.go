// Copyright 2018 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command objbrowse serves the sections and symbols of object files
// over HTTP.
//
// Usage:
//
//	objbrowse [flags] objfile...
//
// Each file is served under /files/NAME, where NAME is the file's base
// name. The root page lists every file's symbols; everything else is
// JSON. Parse metrics are exported at /metrics.
package main

import (
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	httpFlag    = flag.String("http", "localhost:0", "HTTP service address (e.g., ':6060')")
	cacheFlag   = flag.Int("cache", 16, "number of parsed files to keep in memory")
	archFlag    = flag.String("arch", "", "select the `goarch` slice of fat Mach-O files")
	verboseFlag = flag.Bool("v", false, "log every request")
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [flags] objfile...\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	logger := log.NewLogfmtLogger(log.NewSyncWriter(os.Stderr))
	if *verboseFlag {
		logger = level.NewFilter(logger, level.AllowDebug())
	} else {
		logger = level.NewFilter(logger, level.AllowInfo())
	}
	logger = log.With(logger, "ts", log.DefaultTimestampUTC)

	reg := prometheus.NewRegistry()
	s, err := newServer(flag.Args(), config{
		cacheSize: *cacheFlag,
		arch:      *archFlag,
		logger:    logger,
		reg:       reg,
	})
	if err != nil {
		level.Error(logger).Log("msg", "failed to start", "err", err)
		os.Exit(1)
	}

	ln, err := net.Listen("tcp", *httpFlag)
	if err != nil {
		level.Error(logger).Log("msg", "failed to create server socket", "err", err)
		os.Exit(1)
	}
	addr := "http://" + ln.Addr().String()
	fmt.Printf("Listening on %s\n", addr)
	err = http.Serve(ln, s)
	level.Error(logger).Log("msg", "failed to start HTTP server", "err", err)
	os.Exit(1)
}
