// Copyright 2018 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"encoding/binary"
	"fmt"
	"html/template"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/gorilla/mux"
	lru "github.com/hashicorp/golang-lru/v2"
	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aclements/go-objinfo/obj"
	"github.com/aclements/go-objinfo/obj/internal/symtab"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type config struct {
	cacheSize int
	arch      string
	logger    log.Logger
	reg       *prometheus.Registry
}

type server struct {
	names   []string
	paths   map[string]string
	arch    string
	cache   *lru.Cache[string, *objFile]
	metrics *metrics
	logger  log.Logger
	router  *mux.Router
}

// An objFile is a parsed file and the tables derived from it.
type objFile struct {
	f       *obj.File
	syms    []obj.SymbolInfo
	dynsyms []obj.SymbolInfo
	tab     *symtab.Table
	etag    string
}

func newServer(paths []string, cfg config) (*server, error) {
	if cfg.cacheSize < 1 {
		cfg.cacheSize = 1
	}
	if cfg.logger == nil {
		cfg.logger = log.NewNopLogger()
	}
	if cfg.reg == nil {
		cfg.reg = prometheus.NewRegistry()
	}
	cache, err := lru.New[string, *objFile](cfg.cacheSize)
	if err != nil {
		return nil, err
	}

	s := &server{
		paths:   make(map[string]string),
		arch:    cfg.arch,
		cache:   cache,
		metrics: newMetrics(cfg.reg),
		logger:  cfg.logger,
	}
	for _, path := range paths {
		name := filepath.Base(path)
		if prev, ok := s.paths[name]; ok {
			return nil, errors.Errorf("%s and %s have the same base name", prev, path)
		}
		s.paths[name] = path
		s.names = append(s.names, name)
	}

	r := mux.NewRouter()
	r.Use(s.logRequests)
	r.HandleFunc("/", s.httpMain).Methods(http.MethodGet)
	r.HandleFunc("/files", s.httpFiles).Methods(http.MethodGet)
	r.HandleFunc("/files/{file}", s.withFile(s.httpSummary)).Methods(http.MethodGet)
	r.HandleFunc("/files/{file}/sections", s.withFile(s.httpSections)).Methods(http.MethodGet)
	r.HandleFunc("/files/{file}/sections/{index:[0-9]+}", s.withFile(s.httpSectionByIndex)).Methods(http.MethodGet)
	r.HandleFunc("/files/{file}/section", s.withFile(s.httpSectionByName)).Methods(http.MethodGet)
	r.HandleFunc("/files/{file}/symbols", s.withFile(s.httpSymbols)).Methods(http.MethodGet)
	r.HandleFunc("/files/{file}/dynsyms", s.withFile(s.httpDynsyms)).Methods(http.MethodGet)
	r.HandleFunc("/files/{file}/addr/{addr}", s.withFile(s.httpAddr)).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.HandlerFor(cfg.reg, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	s.router = r
	return s, nil
}

func (s *server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		level.Debug(s.logger).Log("msg", "request", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
	})
}

// load returns the parsed form of the named file, parsing it if it is
// not cached. Failures are not cached.
func (s *server) load(name string) (*objFile, error) {
	path := s.paths[name]
	if of, ok := s.cache.Get(path); ok {
		s.metrics.cacheLookups.WithLabelValues("hit").Inc()
		return of, nil
	}
	s.metrics.cacheLookups.WithLabelValues("miss").Inc()

	logger := log.With(s.logger, "file", path)
	start := time.Now()
	buf, err := os.ReadFile(path)
	var f *obj.File
	if err == nil {
		f, err = obj.Parse(buf, obj.WithArch(s.arch), obj.WithLogger(logger))
	}
	s.metrics.parseDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		s.metrics.parseFailures.WithLabelValues(errorKindLabel(err)).Inc()
		level.Warn(logger).Log("msg", "failed to read object file", "err", err)
		return nil, err
	}
	s.metrics.parses.WithLabelValues(f.Format().String()).Inc()

	of := &objFile{
		f:       f,
		syms:    slices.Collect(f.Symbols()),
		dynsyms: slices.Collect(f.DynamicSymbols()),
		etag:    fmt.Sprintf(`"%016x"`, xxhash.Sum64(buf)),
	}
	of.tab = symtab.NewTable(slices.Concat(of.syms, of.dynsyms), f.Sections())
	s.cache.Add(path, of)
	return of, nil
}

type fileHandler func(w http.ResponseWriter, r *http.Request, of *objFile)

// withFile resolves the {file} route variable for h. It answers
// conditional requests whose ETag still matches with 304.
func (s *server) withFile(h fileHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := mux.Vars(r)["file"]
		if _, ok := s.paths[name]; !ok {
			writeError(w, http.StatusNotFound, errors.Errorf("unknown file %q", name))
			return
		}
		of, err := s.load(name)
		if err != nil {
			writeJSON(w, http.StatusUnprocessableEntity, errorBody{Error: err.Error(), Kind: errorKindLabel(err)})
			return
		}
		w.Header().Set("ETag", of.etag)
		if r.Header.Get("If-None-Match") == of.etag {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		h(w, r, of)
	}
}

type errorBody struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorBody{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

type fileEntry struct {
	Name string `json:"name"`
	Path string `json:"path"`
}

func (s *server) httpFiles(w http.ResponseWriter, r *http.Request) {
	out := make([]fileEntry, 0, len(s.names))
	for _, name := range s.names {
		out = append(out, fileEntry{name, s.paths[name]})
	}
	writeJSON(w, http.StatusOK, out)
}

type fileSummary struct {
	Format            obj.Format    `json:"format"`
	Arch              string        `json:"arch"`
	Is64              bool          `json:"is64"`
	ByteOrder         string        `json:"byte_order"`
	Arches            []obj.FatArch `json:"arches,omitempty"`
	NumSections       int           `json:"num_sections"`
	NumSymbols        int           `json:"num_symbols"`
	NumDynamicSymbols int           `json:"num_dynamic_symbols"`
}

func (s *server) httpSummary(w http.ResponseWriter, r *http.Request, of *objFile) {
	info := of.f.Info()
	sum := fileSummary{
		Format:            of.f.Format(),
		Arch:              info.Arch,
		Is64:              info.Is64,
		Arches:            of.f.Arches(),
		NumSections:       of.f.NumSections(),
		NumSymbols:        len(of.syms),
		NumDynamicSymbols: len(of.dynsyms),
	}
	switch info.ByteOrder {
	case binary.LittleEndian:
		sum.ByteOrder = "little"
	case binary.BigEndian:
		sum.ByteOrder = "big"
	}
	writeJSON(w, http.StatusOK, sum)
}

func (s *server) httpSections(w http.ResponseWriter, r *http.Request, of *objFile) {
	writeJSON(w, http.StatusOK, of.f.Sections())
}

func (s *server) httpSectionByIndex(w http.ResponseWriter, r *http.Request, of *objFile) {
	i, err := strconv.Atoi(mux.Vars(r)["index"])
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	sect, err := of.f.SectionByIndex(obj.SectionIndex(i))
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	writeJSON(w, http.StatusOK, sect)
}

func (s *server) httpSectionByName(w http.ResponseWriter, r *http.Request, of *objFile) {
	name := r.URL.Query().Get("name")
	if name == "" {
		writeError(w, http.StatusBadRequest, errors.New("missing name parameter"))
		return
	}
	sect, ok := of.f.SectionByName(name)
	if !ok {
		writeError(w, http.StatusNotFound, errors.Errorf("no section named %q", name))
		return
	}
	writeJSON(w, http.StatusOK, sect)
}

func (s *server) httpSymbols(w http.ResponseWriter, r *http.Request, of *objFile) {
	writeSymbols(w, of.syms)
}

func (s *server) httpDynsyms(w http.ResponseWriter, r *http.Request, of *objFile) {
	writeSymbols(w, of.dynsyms)
}

func writeSymbols(w http.ResponseWriter, syms []obj.SymbolInfo) {
	if syms == nil {
		syms = []obj.SymbolInfo{}
	}
	writeJSON(w, http.StatusOK, syms)
}

type addrResult struct {
	Addr    uint64         `json:"addr"`
	Symbol  obj.SymbolInfo `json:"symbol"`
	Offset  uint64         `json:"offset"`
	Section string         `json:"section,omitempty"`
}

func (s *server) httpAddr(w http.ResponseWriter, r *http.Request, of *objFile) {
	addr, err := strconv.ParseUint(mux.Vars(r)["addr"], 0, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	sym, ok := of.tab.Addr(addr)
	if !ok {
		writeError(w, http.StatusNotFound, errors.Errorf("no symbol contains %#x", addr))
		return
	}
	res := addrResult{Addr: addr, Symbol: sym, Offset: addr - sym.Address}
	for _, sect := range of.f.Sections() {
		if sect.Address != 0 && sect.Address <= addr && addr-sect.Address < sect.Size {
			res.Section = sect.Name
			break
		}
	}
	writeJSON(w, http.StatusOK, res)
}

type mainFile struct {
	Name string
	Err  error
	Syms []obj.SymbolInfo
}

func (s *server) httpMain(w http.ResponseWriter, r *http.Request) {
	var files []mainFile
	for _, name := range s.names {
		mf := mainFile{Name: name}
		if of, err := s.load(name); err != nil {
			mf.Err = err
		} else {
			mf.Syms = of.tab.Syms()
		}
		files = append(files, mf)
	}

	if err := tmplMain.Execute(w, files); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
}

var tmplMain = template.Must(template.New("").Parse(`
<html><body>
{{range $f := $}}<h2><a href="/files/{{$f.Name}}">{{$f.Name}}</a></h2>
{{if $f.Err}}<p>{{$f.Err}}</p>{{end}}
{{range $s := $f.Syms}}<a href="/files/{{$f.Name}}/addr/{{printf "%#x" $s.Address}}">{{printf "%#x" $s.Address}} {{$s.Kind}} {{$s.Name}}</a><br />
{{end}}{{end}}
</body></html>
`))
