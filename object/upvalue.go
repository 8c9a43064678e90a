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

// Upvalue is a shared variable cell. While open it aliases a slot on the
// owning thread's value stack (by integer offset, not pointer, so the
// alias stays valid when the stack is reallocated); once its owning frame
// returns it is closed, copying the value into the Upvalue itself and
// detaching it from the thread's open-upvalue list.
//
// Open upvalues for one thread are kept in a single doubly-linked list
// ordered by stack position, so closing every upvalue at or above a
// given level (on return, or on an error unwind) is a single walk.
type Upvalue struct {
	Header

	open      bool
	stackIdx  int // valid only while open
	closed    value.Value

	prev, next *Upvalue // open-upvalue list linkage; nil when closed
}

var _ value.Collectable = (*Upvalue)(nil)

// NewOpenUpvalue returns an upvalue aliasing stack slot idx. Upvalues are
// never directly wrapped in a value.Value (scripts can't hold one), so
// the header tag is nominal bookkeeping for the allgc walk only.
func NewOpenUpvalue(idx int) *Upvalue {
	return &Upvalue{Header: NewHeader(value.TagLightUserdata), open: true, stackIdx: idx}
}

// IsOpen reports whether the upvalue still aliases a live stack slot.
func (u *Upvalue) IsOpen() bool { return u.open }

// StackIndex returns the aliased stack offset; only meaningful while open.
func (u *Upvalue) StackIndex() int { return u.stackIdx }

// Get reads the upvalue's current value. stack is the owning thread's
// value stack, needed while the upvalue is still open.
func (u *Upvalue) Get(stack []value.Value) value.Value {
	if u.open {
		return stack[u.stackIdx]
	}
	return u.closed
}

// Set writes the upvalue's value, following the same open/closed split
// as Get. Writing through an open upvalue mutates the shared stack slot
// directly, which is how sibling closures observe each other's
// assignments to a captured variable before the frame returns.
func (u *Upvalue) Set(stack []value.Value, v value.Value) {
	if u.open {
		stack[u.stackIdx] = v
		return
	}
	u.closed = v
}

// Close copies the live stack value into the Upvalue and clears its own
// list links; it does not update the list's head or its neighbours
// (OpenUpvalueList.CloseFrom does that). It is called when the frame owning
// stackIdx is about to pop (normal return, protected-call unwind, or
// coroutine yield across a to-be-closed boundary).
func (u *Upvalue) Close(stack []value.Value) {
	if !u.open {
		return
	}
	u.closed = stack[u.stackIdx]
	u.open = false
	u.prev, u.next = nil, nil
}

func (u *Upvalue) String() string { return "upvalue" }

// OpenUpvalueList is the per-thread doubly-linked list of open upvalues,
// kept sorted by descending stack index so CloseFrom can stop at the
// first entry below the target level.
type OpenUpvalueList struct {
	head *Upvalue
}

// Find returns the existing open upvalue for stack slot idx, or nil if
// none exists yet: every captured slot must resolve to one canonical
// Upvalue so sibling closures share writes to it.
func (l *OpenUpvalueList) Find(idx int) *Upvalue {
	for u := l.head; u != nil; u = u.next {
		if !u.open {
			continue
		}
		if u.stackIdx == idx {
			return u
		}
		if u.stackIdx < idx {
			break
		}
	}
	return nil
}

// Insert adds a freshly opened upvalue, keeping the list sorted by
// descending stackIdx.
func (l *OpenUpvalueList) Insert(u *Upvalue) {
	var prev *Upvalue
	cur := l.head
	for cur != nil && cur.stackIdx > u.stackIdx {
		prev = cur
		cur = cur.next
	}
	u.next = cur
	u.prev = prev
	if cur != nil {
		cur.prev = u
	}
	if prev != nil {
		prev.next = u
	} else {
		l.head = u
	}
}

// CloseFrom closes every open upvalue at or above stack index level and
// removes them from the list, used on function return and on unwinding
// past a frame during an error or a yield.
func (l *OpenUpvalueList) CloseFrom(stack []value.Value, level int) {
	cur := l.head
	for cur != nil && cur.stackIdx >= level {
		next := cur.next
		cur.Close(stack)
		cur = next
	}
	l.head = cur
	if cur != nil {
		cur.prev = nil
	}
}
