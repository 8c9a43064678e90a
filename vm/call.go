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

package vm

import (
	"fmt"

	"github.com/probechain/probe-lang/meta"
	"github.com/probechain/probe-lang/object"
	"github.com/probechain/probe-lang/state"
	"github.com/probechain/probe-lang/value"
)

// MaxNestedCalls bounds nested host/script call depth. The extra /8
// headroom above the nominal ceiling exists so the error-reporting path
// for a "stack overflow" (itself a call) can still run after the limit
// is first reached.
const MaxNestedCalls = 200

// ScriptRunner executes the interpreter loop for the thread's current
// script frame until that frame returns, yields, or errors. No bytecode
// interpreter is part of this module; a host supplies one through
// SetScriptRunner, and vm only invokes it at the right points in the
// call protocol.
type ScriptRunner func(t *state.Thread) error

// runner is the process-wide interpreter entry point installed by
// SetScriptRunner. Nothing in this module installs one, so until a host
// does, RunScript returns an error for every script frame.
var runner ScriptRunner

// SetScriptRunner installs the interpreter loop the call engine hands
// script frames to. Called once during runtime construction.
func SetScriptRunner(r ScriptRunner) { runner = r }

// RunScript invokes the installed ScriptRunner on t's current script
// frame. Used by package coroutine to resume interpretation after a
// continuation runs or after error recovery lands back on a script
// frame.
func RunScript(t *state.Thread) error {
	if runner == nil {
		return fmt.Errorf("vm: no script runner installed, cannot execute script frame")
	}
	return runner(t)
}

// Frame adapts a thread's current call-info into the value.Activation
// surface a host (Go) function sees: its arguments and a place to push
// results.
type Frame struct {
	t  *state.Thread
	ci *state.CallInfo
}

var _ value.Activation = (*Frame)(nil)

// NArgs reports how many argument slots were pushed for this call.
func (f *Frame) NArgs() int { return f.t.Top - (f.ci.Func + 1) }

// Arg returns the i'th argument (0-based), or nil past the end.
func (f *Frame) Arg(i int) value.Value {
	idx := f.ci.Func + 1 + i
	if i < 0 || idx >= f.t.Top {
		return value.Nil
	}
	return f.t.Stack[idx]
}

// Push appends one result value.
func (f *Frame) Push(v value.Value) { Push(f.t, v) }

// PushN appends several result values in order.
func (f *Frame) PushN(vs ...value.Value) {
	for _, v := range vs {
		Push(f.t, v)
	}
}

// CallError wraps a script-visible runtime error with the type tag the
// embedding API's error taxonomy distinguishes on.
type CallError struct {
	Status  state.Status
	Message string
}

func (e *CallError) Error() string { return e.Message }

func newRuntimeError(format string, args ...interface{}) *CallError {
	return &CallError{Status: state.StatusRuntimeErr, Message: fmt.Sprintf(format, args...)}
}

// Precall dispatches the value at stack slot funcSlot (relative to the
// current frame's func+1..top window, given here as a raw stack index)
// for a call expecting nresults results (state.ResultsAll for "all").
// It returns invoked=true when the call already ran to completion (a
// host function); invoked=false means a new script frame was pushed and
// the caller (Call, or the interpreter on a nested call) must run it.
func Precall(t *state.Thread, funcSlot int, nresults int) (invoked bool, err error) {
	fn := t.Stack[funcSlot]
	if fn.Tag() == value.TagLightFunction {
		return precallHost(t, funcSlot, nresults, object.GoFunction(fn.AsLightFunc()))
	}
	obj, ok := fn.Object()
	if !ok {
		return precallNonFunction(t, funcSlot, nresults, fn)
	}
	switch c := obj.(type) {
	case *object.HostClosure:
		return precallHost(t, funcSlot, nresults, c.Fn)
	case *object.ScriptClosure:
		return precallScript(t, funcSlot, nresults, c)
	default:
		return precallNonFunction(t, funcSlot, nresults, fn)
	}
}

func precallNonFunction(t *state.Thread, funcSlot int, nresults int, fn value.Value) (bool, error) {
	mt := metatableOf(t, fn)
	if mt != nil {
		if call := mt.GetStr("__call"); !call.IsNil() {
			// Splice the callable below the original value, shifting
			// everything from funcSlot up by one, then recurse.
			CheckStack(t, 1)
			copy(t.Stack[funcSlot+1:t.Top+1], t.Stack[funcSlot:t.Top])
			t.Stack[funcSlot] = call
			t.Top++
			return Precall(t, funcSlot, nresults)
		}
	}
	return false, newRuntimeError("attempt to call a %s value", fn.Tag())
}

func metatableOf(t *state.Thread, v value.Value) *object.Table {
	return meta.GetMetatable(t, v)
}

func precallHost(t *state.Thread, funcSlot int, nresults int, fn object.GoFunction) (bool, error) {
	CheckStack(t, state.MinStack)
	ci := t.PushCI()
	ci.Func = funcSlot
	ci.Top = t.Top + state.MinStack
	ci.NResults = nresults
	ci.Status = 0

	frame := &Frame{t: t, ci: ci}
	n, err := fn(frame)
	if err != nil {
		t.PopCI()
		return true, err
	}
	Postcall(t, t.Top-n)
	return true, nil
}

func precallScript(t *state.Thread, funcSlot int, nresults int, closure *object.ScriptClosure) (bool, error) {
	p := closure.Proto
	if err := CheckStackOrError(t, int(p.MaxStack)); err != nil {
		return false, err
	}
	actual := t.Top - funcSlot - 1
	for actual < int(p.NumParams) {
		Push(t, value.Nil)
		actual++
	}

	var base int
	if !p.IsVararg {
		base = funcSlot + 1
	} else {
		base = t.Top
		np := int(p.NumParams)
		for i := 0; i < np; i++ {
			Push(t, t.Stack[funcSlot+1+i])
			t.Stack[funcSlot+1+i] = value.Nil
		}
	}

	ci := t.PushCI()
	ci.Func = funcSlot
	ci.Base = base
	ci.Top = base + int(p.MaxStack)
	ci.NResults = nresults
	ci.PC = 0
	ci.Status = state.CIStatusScript
	ci.Closure = closure
	t.Top = ci.Top

	return false, nil
}

// Postcall implements the result-sliding protocol: move the nresults
// (or fewer, nil-padded) values starting at firstResult down into the
// call's original function slot, then pop the call-info.
func Postcall(t *state.Thread, firstResult int) int {
	ci := t.CurrentCI()
	wanted := ci.NResults
	dst := ci.Func

	have := t.Top - firstResult
	if wanted == state.ResultsAll {
		wanted = have
	}
	n := have
	if n > wanted {
		n = wanted
	}
	copy(t.Stack[dst:dst+n], t.Stack[firstResult:firstResult+n])
	for i := dst + n; i < dst+wanted; i++ {
		t.Stack[i] = value.Nil
	}
	for i := dst + wanted; i < t.Top; i++ {
		t.Stack[i] = value.Nil
	}
	t.Top = dst + wanted
	t.PopCI()
	if ci.NResults == state.ResultsAll {
		return 0
	}
	return wanted
}

// Call invokes the value at funcSlot with nresults wanted results,
// running the interpreter to completion if the callee is a script
// function. allowYield controls whether this call nests into the
// non-yieldable-depth counter.
func Call(t *state.Thread, funcSlot int, nresults int, allowYield bool) error {
	t.NCcalls++
	defer func() { t.NCcalls-- }()
	if t.NCcalls >= MaxNestedCalls+MaxNestedCalls/8 {
		return newRuntimeError("stack overflow")
	}
	if t.NCcalls == MaxNestedCalls {
		return newRuntimeError("stack overflow (nested calls)")
	}
	if !allowYield {
		t.Nny++
		defer func() { t.Nny-- }()
	}

	invoked, err := Precall(t, funcSlot, nresults)
	if err != nil {
		return err
	}
	if !invoked {
		if runner == nil {
			return fmt.Errorf("vm: no script runner installed, cannot execute script frame")
		}
		if err := runner(t); err != nil {
			return err
		}
	}
	return nil
}
