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

package state

import (
	"github.com/google/uuid"

	"github.com/probechain/probe-lang/object"
	"github.com/probechain/probe-lang/value"
)

// Status is a thread's run status.
type Status int

const (
	StatusOK Status = iota
	StatusYield
	StatusRuntimeErr
	StatusSyntaxErr
	StatusMemErr
	StatusErrorInError
	StatusResumeErr // surfaces only to the resumer, never enters target recovery
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "OK"
	case StatusYield:
		return "YIELD"
	case StatusRuntimeErr:
		return "RUNTIME_ERR"
	case StatusSyntaxErr:
		return "SYNTAX_ERR"
	case StatusMemErr:
		return "MEM_ERR"
	case StatusErrorInError:
		return "ERROR_IN_ERROR"
	case StatusResumeErr:
		return "RESUME_ERR"
	default:
		return "UNKNOWN"
	}
}

// ExtraStack is slack reserved above StackLast for error-handling
// headroom.
const ExtraStack = 5

// MinStack is the minimum number of free slots guaranteed before
// invoking a host function.
const MinStack = 20

// MaxStack is the absolute ceiling on stack size.
const MaxStack = 1_000_000

// errorStackSize is the dedicated size the stack is expanded to when
// reporting a stack-overflow error, giving the error handler headroom.
const errorStackSize = MaxStack + 200

// JumpBuffer is one link of the thread's protected-call chain: a
// singly-linked chain of jump buffers. Go has no setjmp, so
// the non-local transfer is implemented with panic/recover: Throw
// panics with a jumpSignal value carrying this buffer's address, and
// RawRunProtected's deferred recover matches it against its own buffer
// to decide whether to absorb the panic or let it propagate to an
// outer protected boundary.
type JumpBuffer struct {
	prev   *JumpBuffer
	Status Status
}

// jumpSignal is the panic payload Throw raises; it is recovered by the
// RawRunProtected frame whose buffer is its target, and re-panicked
// unchanged by any frame it passes through first (for example a
// deferred upvalue-close that does not itself own the boundary).
type jumpSignal struct {
	target *JumpBuffer
	status Status
	err    error
}

// Thread is the per-thread execution state: a value stack, the active
// call-info chain, open-upvalue bookkeeping, the protected-call jump
// chain, and the scheduler counters that gate yielding.
type Thread struct {
	Header object.Header

	Global *Global

	Stack     []value.Value
	Top       int // index one past the last live value
	StackLast int // soft limit: Top may grow up to here before check_stack reallocates

	ci        *CallInfo
	baseCI    CallInfo // sentinel frame; base of the chain, never popped
	openUV    object.OpenUpvalueList
	jumpChain *JumpBuffer

	ErrFunc int // stack offset of the active pcall error handler, or 0
	Status  Status

	HookMask  int
	HookCount int
	Hook      HookFunc
	AllowHook bool

	NCcalls int // nested host-call depth, shared budget across a resume chain
	Nny     int // non-yieldable depth; yield permitted iff Nny == 0

	ID uuid.UUID
}

// Global is an alias easing the forward reference from Thread to
// GlobalState without an import cycle (both live in this package).
type Global = GlobalState

// HookFunc is the debug-hook callback signature; only the fields needed
// to preserve AllowHook re-entrance semantics are modeled here, not a
// full debug-hook implementation.
type HookFunc func(t *Thread, event int, line int)

// NewThread allocates a fresh thread sharing g's global state, with an
// initial stack sized to twice MinStack.
func NewThread(g *GlobalState) *Thread {
	t := &Thread{
		Header:    object.NewHeader(value.TagThread),
		Global:    g,
		Stack:     make([]value.Value, 2*MinStack),
		StackLast: 2*MinStack - ExtraStack,
		AllowHook: true,
		Nny:       1, // a freshly created thread starts non-yieldable until first resumed
		ID:        uuid.New(),
	}
	t.ci = &t.baseCI
	t.baseCI.Func = 0
	for i := range t.Stack {
		t.Stack[i] = value.Nil
	}
	// Slot 0 is the base frame's own reserved "function" entry (always
	// nil, never called); Top starts just past it so index 1 addresses
	// the first real value, matching every other frame's convention.
	t.Top = 1
	t.baseCI.Top = t.Top + MinStack
	return t
}

func (t *Thread) TypeTag() value.Tag { return value.TagThread }

// CurrentCI returns the active call-info frame.
func (t *Thread) CurrentCI() *CallInfo { return t.ci }

// BaseCI returns the thread's base sentinel call-info frame, used to
// detect whether a coroutine's chain is at rest (eligible for a first
// resume).
func (t *Thread) BaseCI() *CallInfo { return &t.baseCI }

// PushCI allocates (or reuses a cached) call-info node linked after the
// current one and makes it current.
func (t *Thread) PushCI() *CallInfo {
	if t.ci.Next != nil {
		next := t.ci.Next
		next.reset()
		t.ci = next
		return next
	}
	next := &CallInfo{Prev: t.ci}
	t.ci.Next = next
	t.ci = next
	return next
}

// PopCI makes the current frame's predecessor current again. The popped
// node is left linked as cached scratch, reused by the next PushCI.
func (t *Thread) PopCI() {
	t.ci = t.ci.Prev
}

// OpenUpvalues exposes the thread's open-upvalue list to the call/
// coroutine engine, which must close upvalues on return, on error
// unwind, and on yield across a to-be-closed boundary.
func (t *Thread) OpenUpvalues() *object.OpenUpvalueList { return &t.openUV }

// FindOrOpenUpvalue returns the canonical open upvalue for stack slot
// idx, creating one if this is the first closure to capture that slot;
// a stack slot never has more than one open upvalue sharing it.
func (t *Thread) FindOrOpenUpvalue(idx int) *object.Upvalue {
	if uv := t.openUV.Find(idx); uv != nil {
		return uv
	}
	uv := object.NewOpenUpvalue(idx)
	t.openUV.Insert(uv)
	return uv
}

// CloseUpvalues closes every open upvalue at or above stack slot level,
// called on function return, on error-unwind past a frame, and on
// coroutine teardown.
func (t *Thread) CloseUpvalues(level int) {
	t.openUV.CloseFrom(t.Stack[:t.Top], level)
}

// RawRunProtected pushes a fresh jump buffer, runs fn under it, and
// reports fn's outcome as a Status instead of letting a panic escape,
// absorbing only jumpSignal panics targeted at this exact buffer. A
// panic from an unrelated bug (a real Go programming error) is
// deliberately allowed to keep propagating rather than being swallowed
// here.
func (t *Thread) RawRunProtected(fn func() error) (status Status, err error) {
	buf := &JumpBuffer{prev: t.jumpChain, Status: StatusOK}
	t.jumpChain = buf
	defer func() {
		t.jumpChain = buf.prev
		if r := recover(); r != nil {
			sig, ok := r.(jumpSignal)
			if !ok || sig.target != buf {
				panic(r)
			}
			status, err = sig.status, sig.err
		}
	}()
	if ferr := fn(); ferr != nil {
		return StatusRuntimeErr, ferr
	}
	return StatusOK, nil
}

// Throw transfers to the nearest jump buffer with the given status and
// error object. With no protected boundary on this thread, propagate to
// the main thread's chain if this is not already the main thread, else
// invoke the panic callback (or abort).
func (t *Thread) Throw(status Status, err error) {
	if t.jumpChain != nil {
		panic(jumpSignal{target: t.jumpChain, status: status, err: err})
	}
	t.Status = StatusErrorInError
	main := t.Global.MainThread
	if main != nil && main != t && main.jumpChain != nil {
		if t.Top > 0 {
			main.Stack[main.Top] = t.Stack[t.Top-1]
			main.Top++
		}
		main.Throw(status, err)
		return
	}
	if t.Global.Panic != nil {
		msg := "runtime error"
		if err != nil {
			msg = err.Error()
		}
		t.Global.Panic(msg)
		return
	}
	panic(err)
}
