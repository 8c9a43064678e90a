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
	"fmt"
	"os"

	"github.com/edsrzf/mmap-go"
)

// arenaPageSize is the unit an Arena grows by. The host page size is not
// queried; a fixed 64KiB slab keeps the bookkeeping here simple and
// independent of host page size.
const arenaPageSize = 64 * 1024

// arenaHandle identifies the slab and byte range a Userdata's Data slice
// was carved from, so Arena can account for live bytes without scanning.
type arenaHandle struct {
	slab int
	off  int
	size int
}

// Arena is an mmap-backed byte allocator for Userdata payloads. It hands
// out []byte slices viewing into anonymous mmap'd slabs instead of
// letting every host userdata allocation hit the Go heap individually,
// which matters for scripts that mint many short-lived binary buffers.
//
// Arena never reclaims individual allocations; it is a bump allocator per
// slab. Whole slabs are released when the Arena itself is closed. This
// matches the runtime's GC model: Go's collector is responsible for
// reclaiming the Userdata wrapper, not for compacting arena bytes.
type Arena struct {
	slabs []mmap.MMap
	cur   int // write offset within the last slab
}

// NewArena returns an empty Arena. Slabs are mapped lazily on first Alloc.
func NewArena() *Arena { return &Arena{} }

// Alloc returns size fresh bytes, zero-filled, backed by the arena's
// mmap'd storage. For size larger than arenaPageSize a dedicated slab is
// mapped for just that allocation.
func (a *Arena) Alloc(size int) ([]byte, arenaHandle) {
	if size <= 0 {
		return nil, arenaHandle{}
	}
	if size > arenaPageSize || len(a.slabs) == 0 || a.cur+size > len(a.slabs[len(a.slabs)-1]) {
		a.mapSlab(size)
	}
	slabIdx := len(a.slabs) - 1
	slab := a.slabs[slabIdx]
	off := a.cur
	a.cur += size
	return slab[off : off+size : off+size], arenaHandle{slab: slabIdx, off: off, size: size}
}

func (a *Arena) mapSlab(minSize int) {
	sz := arenaPageSize
	if minSize > sz {
		sz = minSize
	}
	f, err := anonMap(sz)
	if err != nil {
		// Falling back to a plain Go slice wrapped as a pseudo-slab keeps
		// Alloc's contract (never nil on size>0) even if the platform
		// refuses anonymous mmap; this only trades away the "off-heap"
		// property, not correctness.
		a.slabs = append(a.slabs, make(mmap.MMap, sz))
		a.cur = 0
		return
	}
	a.slabs = append(a.slabs, f)
	a.cur = 0
}

// anonMap maps an anonymous, zero-filled region of the given size using
// a throwaway tmpfile-backed mapping, since mmap-go's public API maps
// *os.File rather than exposing MAP_ANONYMOUS directly.
func anonMap(size int) (mmap.MMap, error) {
	f, err := os.CreateTemp("", "probelang-arena-*")
	if err != nil {
		return nil, fmt.Errorf("object: arena temp file: %w", err)
	}
	defer os.Remove(f.Name())
	defer f.Close()
	if err := f.Truncate(int64(size)); err != nil {
		return nil, fmt.Errorf("object: arena truncate: %w", err)
	}
	return mmap.Map(f, mmap.RDWR, 0)
}

// Close unmaps every slab. Callers must ensure no Userdata still
// references bytes from this Arena before calling Close.
func (a *Arena) Close() error {
	var firstErr error
	for _, s := range a.slabs {
		if err := s.Unmap(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	a.slabs = nil
	return firstErr
}
