// Copyright 2018 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package obj

import (
	"fmt"

	"github.com/pkg/errors"
)

// Error kinds. Every error returned by this package matches exactly one
// of these with errors.Is.
var (
	// ErrUnknownFormat means the buffer is too short to hold any known
	// magic number, or none matched.
	ErrUnknownFormat = errors.New("unrecognized object file format")

	// ErrMalformedHeader means a header or load command is internally
	// inconsistent.
	ErrMalformedHeader = errors.New("malformed header")

	// ErrTruncatedTable means a table's offset or count places it
	// beyond the end of the buffer.
	ErrTruncatedTable = errors.New("table extends beyond end of file")

	// ErrUnsupportedVariant means the file is recognized but uses a
	// sub-format this package does not read, or no fat slice matches
	// the requested architecture.
	ErrUnsupportedVariant = errors.New("unsupported format variant")

	// ErrIndexOutOfRange means a caller-supplied index is outside the
	// table it addresses.
	ErrIndexOutOfRange = errors.New("index out of range")

	// ErrNoMiniDebugInfo means the file has no .gnu_debugdata section.
	ErrNoMiniDebugInfo = errors.New("no MiniDebugInfo")
)

// A ParseError describes a structural problem found in an object file.
type ParseError struct {
	Format Format
	// Kind is one of the Err* values above.
	Kind error
	// Offset is the file offset of the offending structure. It is
	// meaningful only if HasOffset is set.
	Offset    uint64
	HasOffset bool
	Msg       string
}

func (e *ParseError) Error() string {
	var prefix string
	switch e.Format {
	case FormatUnknown:
		prefix = "obj"
	default:
		prefix = e.Format.String()
	}
	if e.HasOffset {
		return fmt.Sprintf("%s: %s at offset %#x: %v", prefix, e.Msg, e.Offset, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", prefix, e.Msg, e.Kind)
}

func (e *ParseError) Unwrap() error {
	return e.Kind
}

func newError(format Format, kind error, off uint64, msg string, args ...interface{}) *ParseError {
	return &ParseError{format, kind, off, true, fmt.Sprintf(msg, args...)}
}

func errNoOffset(format Format, kind error, msg string, args ...interface{}) *ParseError {
	return &ParseError{format, kind, 0, false, fmt.Sprintf(msg, args...)}
}

// ErrorKind returns the Err* value err matches, or nil if err did not
// originate in this package.
func ErrorKind(err error) error {
	for _, kind := range []error{
		ErrUnknownFormat,
		ErrMalformedHeader,
		ErrTruncatedTable,
		ErrUnsupportedVariant,
		ErrIndexOutOfRange,
		ErrNoMiniDebugInfo,
	} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}
