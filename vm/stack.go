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

// Package vm implements the stack-indexing, stack-growth, and
// call/protected-call engine that drives a Thread: everything the
// embedding API dispatches through to move, grow, and call across a
// thread's value stack.
package vm

import (
	"fmt"

	"github.com/probechain/probe-lang/internal/rtlog"
	"github.com/probechain/probe-lang/object"
	"github.com/probechain/probe-lang/state"
	"github.com/probechain/probe-lang/value"
)

// RegistryIndex is the most-negative non-upvalue pseudo-index; any index
// strictly less addresses the currently executing host closure's
// upvalues, 1-based, via RegistryIndex-i.
const RegistryIndex = -1_000_000

// AbsIndex normalizes a non-pseudo index (positive or frame-relative
// negative) to a positive index counted from the current frame's
// function slot (1 is the first slot above it). Pseudo-indices (registry and
// upvalue) are returned unchanged, matching the embedding API's
// convention that abs_index is idempotent on them.
func AbsIndex(t *state.Thread, i int) int {
	if i > 0 || i <= RegistryIndex {
		return i
	}
	return GetTop(t) + i + 1
}

// GetTop returns the number of live values above the current frame's
// function slot.
func GetTop(t *state.Thread) int {
	ci := t.CurrentCI()
	return t.Top - (ci.Func + 1)
}

// SetTop grows (filling nil) or truncates the stack to exactly idx
// live slots above the current frame's function, per idx's addressing
// (AbsIndex semantics applied first).
func SetTop(t *state.Thread, idx int) {
	ci := t.CurrentCI()
	base := ci.Func + 1
	var newTop int
	if idx >= 0 {
		newTop = base + idx
	} else {
		newTop = t.Top + idx + 1
	}
	if newTop > t.Top {
		CheckStack(t, newTop-t.Top)
		for i := t.Top; i < newTop; i++ {
			t.Stack[i] = value.Nil
		}
	} else if newTop < t.Top {
		t.CloseUpvalues(newTop)
		for i := newTop; i < t.Top; i++ {
			t.Stack[i] = value.Nil
		}
	}
	t.Top = newTop
}

// at returns the stack slot value addressed by index i, or value.Nil
// for the "no-value" sentinel range between Top and the frame's
// reserved top. An index below RegistryIndex reads the running host
// closure's upvalue RegistryIndex-i, or value.Nil when there is no such
// upvalue (including for a light host function, which has none).
func at(t *state.Thread, i int) value.Value {
	if i < RegistryIndex {
		if obj, ok := t.Stack[t.CurrentCI().Func].Object(); ok {
			if c, ok := obj.(*object.HostClosure); ok && RegistryIndex-i <= len(c.Upvalues) {
				return c.Upvalues[RegistryIndex-i-1]
			}
		}
		return value.Nil
	}
	idx := resolveIndex(t, i)
	if idx < 0 {
		return value.Nil
	}
	if idx >= len(t.Stack) || idx >= t.Top {
		return value.Nil
	}
	return t.Stack[idx]
}

// resolveIndex turns any index (including pseudo-indices) into a raw
// slice offset, or -1 for an unaddressable pseudo-index (e.g. an
// upvalue index on a light host function, which has none).
func resolveIndex(t *state.Thread, i int) int {
	switch {
	case i == RegistryIndex:
		return -1 // registry is not a stack slot; callers must special-case it
	case i < RegistryIndex:
		return -1 // upvalue pseudo-index; not a stack slot, at reads it from the closure
	case i > 0:
		ci := t.CurrentCI()
		return ci.Func + i
	default:
		return t.Top + i
	}
}

// PushValue pushes a copy of the value at index i onto the top of the
// stack.
func PushValue(t *state.Thread, i int) {
	Push(t, at(t, i))
}

// ValueAt is the capi-facing counterpart of at: it additionally
// resolves the registry pseudo-index, the one case at's unexported
// caller never needs to.
func ValueAt(t *state.Thread, i int) value.Value {
	if i == RegistryIndex {
		return value.FromObject(t.Global.Registry)
	}
	return at(t, i)
}

// PopValue removes and returns the top value of the stack.
func PopValue(t *state.Thread) value.Value {
	v := at(t, -1)
	t.Top--
	return v
}

// Push appends v to the top of the stack, growing it first if needed.
func Push(t *state.Thread, v value.Value) {
	CheckStack(t, 1)
	t.Stack[t.Top] = v
	t.Top++
}

// Remove deletes the value at index i, shifting everything above it
// down by one slot.
func Remove(t *state.Thread, i int) {
	idx := resolveIndex(t, i)
	copy(t.Stack[idx:t.Top-1], t.Stack[idx+1:t.Top])
	t.Stack[t.Top-1] = value.Nil
	t.Top--
}

// Insert moves the top-of-stack value down into slot i, shifting
// everything from i upward by one slot.
func Insert(t *state.Thread, i int) {
	idx := resolveIndex(t, i)
	top := t.Stack[t.Top-1]
	copy(t.Stack[idx+1:t.Top], t.Stack[idx:t.Top-1])
	t.Stack[idx] = top
}

// Replace pops the top-of-stack value and stores it at index i.
func Replace(t *state.Thread, i int) {
	idx := resolveIndex(t, i)
	v := t.Stack[t.Top-1]
	t.Top--
	t.Stack[t.Top] = value.Nil
	t.Stack[idx] = v
}

// Copy overwrites the value at index to with the value at index from,
// without touching Top.
func Copy(t *state.Thread, from, to int) {
	Set(t, to, at(t, from))
}

// Set stores v directly into the raw-resolved slot for index i. Used by
// callers (the capi package) that already hold the value and don't need
// a stack-relative source.
func Set(t *state.Thread, i int, v value.Value) {
	idx := resolveIndex(t, i)
	if idx >= 0 {
		t.Stack[idx] = v
	}
}

// CheckStack ensures at least n free slots above Top, reallocating per
// the growth formula below when the soft limit StackLast would be
// exceeded. Returns false (rather than throwing) when n would exceed
// MaxStack, leaving the stack temporarily expanded to MaxStack+200 so an
// error handler has headroom, mirroring the original runtime's
// stack-overflow contract.
func CheckStack(t *state.Thread, n int) bool {
	if t.Top+n <= t.StackLast {
		return true
	}
	needed := t.Top + n + state.ExtraStack
	return growStack(t, needed)
}

func growStack(t *state.Thread, needed int) bool {
	if needed > state.MaxStack {
		growTo(t, state.MaxStack+200)
		return false
	}
	newSize := len(t.Stack) * 2
	if newSize < needed {
		newSize = needed
	}
	if newSize > state.MaxStack {
		newSize = state.MaxStack
	}
	growTo(t, newSize)
	return true
}

// growTo reallocates the thread's stack slice to exactly size slots,
// relocating every open upvalue's aliased index (which stays valid
// since indices, not pointers, are what CallInfo and Upvalue store) and
// zero-filling the new tail.
func growTo(t *state.Thread, size int) {
	if size <= len(t.Stack) {
		return
	}
	newStack := make([]value.Value, size)
	copy(newStack, t.Stack)
	for i := len(t.Stack); i < size; i++ {
		newStack[i] = value.Nil
	}
	t.Stack = newStack
	t.StackLast = size - state.ExtraStack
	rtlog.Default.Debug("vm: grew thread stack", "thread", t.ID, "size", size)
}

// ShrinkStack reallocates the stack down to a "good size" when it is
// significantly oversized relative to current usage, freeing the
// backing array for Go's collector to reclaim.
func ShrinkStack(t *state.Thread, maxCITop int) {
	inUse := t.Top
	if maxCITop > inUse {
		inUse = maxCITop
	}
	goodSize := inUse + inUse/8 + 2*state.ExtraStack
	if goodSize > state.MaxStack {
		goodSize = state.MaxStack
	}
	if goodSize >= len(t.Stack) {
		return
	}
	newStack := make([]value.Value, goodSize)
	copy(newStack, t.Stack[:inUse])
	t.Stack = newStack
	t.StackLast = goodSize - state.ExtraStack
}

// CheckStackOrError is CheckStack's error-returning form, used by call
// sites that must surface "stack overflow" as a script-visible error
// rather than a silent false.
func CheckStackOrError(t *state.Thread, n int) error {
	if !CheckStack(t, n) {
		return fmt.Errorf("stack overflow")
	}
	return nil
}
