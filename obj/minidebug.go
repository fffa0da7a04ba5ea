// Copyright 2018 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package obj

import (
	"bytes"
	"io"

	"github.com/pkg/errors"
	"github.com/ulikunitz/xz"
)

const miniDebugInfoSection = ".gnu_debugdata"

// MiniDebugInfo decompresses and parses the xz-compressed ELF image
// stored in f's .gnu_debugdata section. Stripped binaries on several
// Linux distributions carry their function symbols there.
//
// The embedded file is parsed with the options f was parsed with. It
// fails with ErrNoMiniDebugInfo if f is not ELF or has no such section.
func (f *File) MiniDebugInfo() (*File, error) {
	if f.format != FormatELF {
		return nil, errNoOffset(f.format, ErrNoMiniDebugInfo, "only ELF files carry %s", miniDebugInfoSection)
	}
	s, ok := f.SectionByName(miniDebugInfoSection)
	if !ok || s.FileRange == nil {
		return nil, errNoOffset(f.format, ErrNoMiniDebugInfo, "no %s section", miniDebugInfoSection)
	}
	r := s.FileRange
	if r.Offset > uint64(len(f.buf)) || r.Length > uint64(len(f.buf))-r.Offset {
		return nil, newError(f.format, ErrTruncatedTable, r.Offset, "%s (%d bytes) extends past end of file (%d bytes)", miniDebugInfoSection, r.Length, len(f.buf))
	}

	zr, err := xz.NewReader(bytes.NewReader(f.buf[r.Offset : r.Offset+r.Length]))
	if err != nil {
		return nil, newError(f.format, ErrMalformedHeader, r.Offset, "%s: %v", miniDebugInfoSection, err)
	}
	buf, err := io.ReadAll(zr)
	if err != nil {
		return nil, newError(f.format, ErrMalformedHeader, r.Offset, "%s: %v", miniDebugInfoSection, err)
	}

	opts := []Option{WithLogger(f.opts.logger), WithArch(f.opts.arch)}
	inner, err := Parse(buf, opts...)
	if err != nil {
		return nil, errors.WithMessage(err, miniDebugInfoSection)
	}
	return inner, nil
}
