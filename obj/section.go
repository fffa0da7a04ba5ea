// Copyright 2018 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package obj

import (
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// SectionIndex identifies a section by its position in File.Sections.
// Indices are compact, start at 0, and are only meaningful for the File
// that produced them.
//
// For ELF these equal the raw section header indices, including the
// reserved null section at index 0. Mach-O and COFF number sections
// from 1 in their own tables; here the first section is 0.
type SectionIndex int

// SectionInfo is a snapshot of one section's geometry and name.
type SectionInfo struct {
	Index SectionIndex `json:"index"`
	// Address is the virtual address of the section, or 0 if the
	// format does not assign one.
	Address uint64 `json:"address"`
	// Size is the size of the section in memory.
	Size  uint64 `json:"size"`
	Align uint64 `json:"align"`
	// FileRange is the section's extent in the file, or nil if the
	// section has no file-backed contents (e.g., .bss).
	FileRange *FileRange `json:"file_range,omitempty"`
	// Name is the section name, or "" if it could not be resolved.
	Name string `json:"name"`
}

// FileRange is a contiguous extent of an object file.
type FileRange struct {
	Offset, Length uint64
}

// MarshalJSON encodes r as the pair [offset, length].
func (r FileRange) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]uint64{r.Offset, r.Length})
}

// UnmarshalJSON decodes the pair produced by MarshalJSON.
func (r *FileRange) UnmarshalJSON(b []byte) error {
	var pair [2]uint64
	if err := json.Unmarshal(b, &pair); err != nil {
		return err
	}
	r.Offset, r.Length = pair[0], pair[1]
	return nil
}

func fileRange(off, n uint64) *FileRange {
	return &FileRange{off, n}
}

// Sections returns a copy of f's section table, indexed by SectionIndex.
func (f *File) Sections() []SectionInfo {
	out := make([]SectionInfo, len(f.sects))
	for i, s := range f.sects {
		out[i] = s.clone()
	}
	return out
}

// NumSections returns the number of sections in f.
func (f *File) NumSections() int {
	return len(f.sects)
}

// SectionByIndex returns the i'th section. An index outside
// [0, NumSections()) is an ErrIndexOutOfRange error.
func (f *File) SectionByIndex(i SectionIndex) (SectionInfo, error) {
	if i < 0 || int(i) >= len(f.sects) {
		return SectionInfo{}, errNoOffset(f.format, ErrIndexOutOfRange, "section index %d not in [0, %d)", i, len(f.sects))
	}
	return f.sects[i].clone(), nil
}

// SectionByName returns the first section named name. The search is a
// linear scan; section tables are small. Sections whose names could not
// be resolved never match a non-empty name.
func (f *File) SectionByName(name string) (SectionInfo, bool) {
	for _, s := range f.sects {
		if s.Name == name {
			return s.clone(), true
		}
	}
	return SectionInfo{}, false
}

// clone returns a copy of s that shares no memory with s.
func (s SectionInfo) clone() SectionInfo {
	if s.FileRange != nil {
		r := *s.FileRange
		s.FileRange = &r
	}
	return s
}
