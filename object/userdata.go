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

import "github.com/probechain/probe-lang/value"

// Userdata is an opaque host byte blob with a per-instance metatable and
// an associated "user value" table.
type Userdata struct {
	Header

	Data        []byte
	Metatable   *Table
	UserValue   value.Value
	arenaHandle arenaHandle // zero value when not backed by an Arena
}

var _ value.Collectable = (*Userdata)(nil)

// NewUserdata allocates size bytes for a new Userdata. When a is non-nil
// the byte blob is carved out of its mmap-backed arena instead of a
// plain Go make([]byte, size), avoiding per-allocation Go-heap growth
// for scripts that churn through many binary buffers. Object references
// still have to stay GC-visible to Go, but raw byte payloads don't, so
// only those are arena-backed.
func NewUserdata(a *Arena, size int) *Userdata {
	u := &Userdata{Header: NewHeader(value.TagUserdata), UserValue: value.Nil}
	if a != nil {
		u.Data, u.arenaHandle = a.Alloc(size)
	} else {
		u.Data = make([]byte, size)
	}
	return u
}

// Len returns the length of the userdata's byte blob.
func (u *Userdata) Len() int { return len(u.Data) }

func (u *Userdata) String() string { return "userdata" }
