// Copyright 2018 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/aclements/go-objinfo/obj"
)

type metrics struct {
	parses        *prometheus.CounterVec
	parseFailures *prometheus.CounterVec
	parseDuration prometheus.Histogram
	cacheLookups  *prometheus.CounterVec
}

func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		parses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "objbrowse_parses_total",
			Help: "Total number of object files parsed, by container format",
		}, []string{"format"}),
		parseFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "objbrowse_parse_failures_total",
			Help: "Total number of object files that could not be read, by error kind",
		}, []string{"kind"}),
		parseDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "objbrowse_parse_duration_seconds",
			Help:    "Time spent reading and parsing an object file",
			Buckets: prometheus.ExponentialBuckets(0.0001, 4, 10),
		}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "objbrowse_cache_lookups_total",
			Help: "Total number of parsed-file cache lookups, by result",
		}, []string{"result"}),
	}

	if reg != nil {
		reg.MustRegister(
			m.parses,
			m.parseFailures,
			m.parseDuration,
			m.cacheLookups,
		)
	}

	return m
}

// errorKindLabel returns the failure label for err.
func errorKindLabel(err error) string {
	switch obj.ErrorKind(err) {
	case obj.ErrUnknownFormat:
		return "unknown_format"
	case obj.ErrMalformedHeader:
		return "malformed_header"
	case obj.ErrTruncatedTable:
		return "truncated_table"
	case obj.ErrUnsupportedVariant:
		return "unsupported_variant"
	case obj.ErrIndexOutOfRange:
		return "index_out_of_range"
	case obj.ErrNoMiniDebugInfo:
		return "no_minidebuginfo"
	}
	return "io"
}
