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

// Package object implements the heap-object kinds: the common header
// every collectable object shares, strings, tables, userdata, function
// prototypes, the two closure shapes, and upvalues.
//
// Mark/sweep GC policy itself is not reimplemented here; Header only
// carries the bookkeeping fields a host-visible GC surface needs
// (allgc linkage, mark byte, finalizer flag) while Go's own collector
// does the real reclamation.
package object

import "github.com/probechain/probe-lang/value"

// MarkColor is the tri-color mark used for GC bookkeeping exposed to the
// host (e.g. via the gc() embedding API), even though the actual
// tracing pass is delegated to the Go runtime's collector.
type MarkColor uint8

const (
	MarkWhite MarkColor = iota
	MarkGray
	MarkBlack
)

// Header is embedded in every heap object kind. AllGCNext chains every
// live object through the global state's allgc list.
type Header struct {
	AllGCNext  Collectable
	Tag        value.Tag
	Mark       MarkColor
	HasGC      bool // true once a metatable with a non-nil __gc was attached
	Finalized  bool
}

// Collectable is re-exported from value for convenience within this
// package's doc comments and constructors.
type Collectable = value.Collectable

// TypeTag implements value.Collectable for embedders that only set Tag
// via NewHeader and never override TypeTag themselves.
func (h *Header) TypeTag() value.Tag { return h.Tag }

// NewHeader returns a Header for a freshly allocated object of kind tag.
func NewHeader(tag value.Tag) Header {
	return Header{Tag: tag, Mark: MarkWhite}
}
