// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.
//
// The ProbeChain is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The ProbeChain is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the ProbeChain. If not, see <http://www.gnu.org/licenses/>.

package object

import (
	"github.com/cespare/xxhash/v2"
	"github.com/probechain/probe-lang/value"
)

// ShortStringLimit is the length in bytes at or below which a string is
// a candidate for global interning; longer strings are never interned
// but may lazily cache their hash. 40 matches the original runtime's
// own constant.
const ShortStringLimit = 40

// String is the heap representation of a string value.
type String struct {
	Header
	data     string
	hash     uint64
	hashSet  bool // long strings compute their hash lazily
	interned bool
}

var _ value.Collectable = (*String)(nil)

// NewShort constructs an already-hashed, interned short string. Callers
// normally go through state.GlobalState.InternString rather than calling
// this directly, since interning requires the global intern table.
func NewShort(s string, seed uint64) *String {
	h := &String{Header: NewHeader(value.TagString), data: s}
	h.hash = hashWithSeed(s, seed)
	h.hashSet = true
	h.interned = true
	return h
}

// NewLong constructs a long string. Its hash is computed on first access
// via Hash, not at construction time.
func NewLong(s string) *String {
	return &String{Header: NewHeader(value.TagString), data: s}
}

// IsShort reports whether s is short enough to be a candidate for
// interning.
func IsShort(s string) bool { return len(s) <= ShortStringLimit }

func hashWithSeed(s string, seed uint64) uint64 {
	d := xxhash.New()
	var seedBytes [8]byte
	for i := range seedBytes {
		seedBytes[i] = byte(seed >> (8 * i))
	}
	d.Write(seedBytes[:])
	d.Write([]byte(s))
	return d.Sum64()
}

// Value returns the Go string payload.
func (s *String) Value() string { return s.data }

// Len returns the string's length in bytes.
func (s *String) Len() int { return len(s.data) }

// Hash returns the string's hash, computing and caching it lazily for
// long strings the first time it is needed (e.g. as a table key).
func (s *String) Hash(seed uint64) uint64 {
	if !s.hashSet {
		s.hash = hashWithSeed(s.data, seed)
		s.hashSet = true
	}
	return s.hash
}

// Interned reports whether this String is the canonical instance for its
// content in the owning global state's intern table.
func (s *String) Interned() bool { return s.interned }

func (s *String) String() string { return s.data }
