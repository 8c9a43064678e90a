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

// Package state implements the per-thread execution state and the
// global runtime state: the value stack, the call-info chain, and the
// registry/metatable/intern bookkeeping shared by every thread of one
// runtime instance.
package state

import "github.com/probechain/probe-lang/object"

// CallStatus is a bitset of the call-info status flags: is-script,
// is-hook, yielded, protected-yieldable, has-error-status, tail-called.
type CallStatus uint16

const (
	CIStatusScript CallStatus = 1 << iota
	CIStatusHook
	CIStatusYielded
	CIStatusYieldableProtected
	CIStatusErrorStatus
	CIStatusTailCall
	CIStatusFreshResume // base-sentinel frame of a not-yet-resumed coroutine
)

// ContinuationFunc is a host frame's continuation, a (k, ctx) pair
// invoked in place of a normal return when the coroutine that suspended
// inside this frame is resumed.
type ContinuationFunc func(ctx int, status int) (nresults int, err error)

// CallInfo is one node of a thread's call-info chain. Stack positions
// are stored as integer offsets into the owning Thread's stack slice
// rather than raw pointers or slice headers, so growing or shrinking the
// stack only needs to re-slice, never walk every CallInfo to patch
// pointers.
type CallInfo struct {
	Prev, Next *CallInfo

	Func      int // stack offset of the function being called
	Top       int // stack offset one past this frame's reserved window
	NResults  int // wanted result count, or ResultsAll
	Status    CallStatus

	// Extra is the saved function-stack offset used across yield/resume
	// and across pcallk's error-recovery re-entry.
	Extra int

	// Script-frame fields (valid when Status&CIStatusScript != 0).
	Base    int // first local slot, skips the vararg prefix
	PC      int // saved program counter, an index into Proto.Code
	Closure *object.ScriptClosure

	// Host-frame fields (valid when Status&CIStatusScript == 0).
	Continuation ContinuationFunc
	Ctx          int
	OldErrFunc   int
	OldAllowHook bool
}

// ResultsAll is the "as many as the callee returns" sentinel for a
// call's wanted result count.
const ResultsAll = -1

// IsScript reports whether this call-info describes a script frame.
func (ci *CallInfo) IsScript() bool { return ci.Status&CIStatusScript != 0 }

// reset clears a CallInfo for reuse, called when popping a frame whose
// node is kept as cached scratch for the next call.
func (ci *CallInfo) reset() {
	ci.Func, ci.Top, ci.NResults, ci.Status = 0, 0, 0, 0
	ci.Extra, ci.Base, ci.PC = 0, 0, 0
	ci.Closure = nil
	ci.Continuation, ci.Ctx = nil, 0
	ci.OldErrFunc, ci.OldAllowHook = 0, false
}
