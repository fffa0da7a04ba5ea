// Copyright 2018 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package bin provides bounds-checked decoding of fixed-width and
// variable-width integers from an in-memory byte slice.
//
// Every accessor reports whether the requested range lies entirely
// within the underlying slice instead of panicking, so callers can turn
// out-of-range reads into format errors with their own context.
package bin

import (
	"bytes"
	"encoding/binary"
)

// Data is a read-only view of a byte slice with a byte order.
type Data struct {
	buf   []byte
	Order binary.ByteOrder
}

// New returns a Data over buf. buf is borrowed, not copied.
func New(buf []byte, order binary.ByteOrder) Data {
	return Data{buf, order}
}

// Len returns the length of the underlying slice.
func (d Data) Len() uint64 {
	return uint64(len(d.buf))
}

// InBounds reports whether [off, off+n) lies within d. It is careful
// not to overflow.
func (d Data) InBounds(off, n uint64) bool {
	l := uint64(len(d.buf))
	return off <= l && n <= l-off
}

// Bytes returns the n bytes at off. The result aliases d.
func (d Data) Bytes(off, n uint64) ([]byte, bool) {
	if !d.InBounds(off, n) {
		return nil, false
	}
	return d.buf[off : off+n : off+n], true
}

// Slice returns a Data covering [off, off+n) with the same byte order.
func (d Data) Slice(off, n uint64) (Data, bool) {
	b, ok := d.Bytes(off, n)
	if !ok {
		return Data{}, false
	}
	return Data{b, d.Order}, true
}

// WithOrder returns d decoded with a different byte order.
func (d Data) WithOrder(order binary.ByteOrder) Data {
	return Data{d.buf, order}
}

func (d Data) Uint8(off uint64) (uint8, bool) {
	if !d.InBounds(off, 1) {
		return 0, false
	}
	return d.buf[off], true
}

func (d Data) Uint16(off uint64) (uint16, bool) {
	b, ok := d.Bytes(off, 2)
	if !ok {
		return 0, false
	}
	return d.Order.Uint16(b), true
}

func (d Data) Uint32(off uint64) (uint32, bool) {
	b, ok := d.Bytes(off, 4)
	if !ok {
		return 0, false
	}
	return d.Order.Uint32(b), true
}

func (d Data) Uint64(off uint64) (uint64, bool) {
	b, ok := d.Bytes(off, 8)
	if !ok {
		return 0, false
	}
	return d.Order.Uint64(b), true
}

// Word reads a 4- or 8-byte unsigned integer depending on is64.
func (d Data) Word(off uint64, is64 bool) (uint64, bool) {
	if is64 {
		return d.Uint64(off)
	}
	v, ok := d.Uint32(off)
	return uint64(v), ok
}

// CString returns the NUL-terminated string starting at off. If no NUL
// appears before the end of d, it fails.
func (d Data) CString(off uint64) (string, bool) {
	if off >= uint64(len(d.buf)) {
		return "", false
	}
	b := d.buf[off:]
	i := bytes.IndexByte(b, 0)
	if i < 0 {
		return "", false
	}
	return string(b[:i]), true
}

// FixedString returns the string stored in the n-byte field at off,
// truncated at the first NUL.
func (d Data) FixedString(off, n uint64) (string, bool) {
	b, ok := d.Bytes(off, n)
	if !ok {
		return "", false
	}
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(b), true
}

// Uleb128 decodes an unsigned LEB128 value at off. It returns the value
// and the number of bytes consumed. It fails if the encoding runs off
// the end of d or does not fit in 64 bits.
func (d Data) Uleb128(off uint64) (v uint64, n uint64, ok bool) {
	var shift uint
	for {
		b, ok := d.Uint8(off + n)
		if !ok {
			return 0, 0, false
		}
		n++
		if shift == 63 && b > 1 {
			return 0, 0, false
		}
		v |= uint64(b&0x7f) << shift
		if b&0x80 == 0 {
			return v, n, true
		}
		shift += 7
		if shift > 63 {
			return 0, 0, false
		}
	}
}

// MulAdd computes base + count*size, reporting false on overflow.
func MulAdd(base, count, size uint64) (uint64, bool) {
	if size != 0 && count > (^uint64(0)-base)/size {
		return 0, false
	}
	return base + count*size, true
}
