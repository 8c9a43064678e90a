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

// Package coroutine implements the resume/yield scheduler: switching
// control between a resumer thread and a target thread, and recovering
// from an error raised mid-coroutine by unrolling through any surviving
// protected host frames.
package coroutine

import (
	"errors"
	"fmt"

	"github.com/probechain/probe-lang/state"
	"github.com/probechain/probe-lang/value"
	"github.com/probechain/probe-lang/vm"
)

// ErrResumeNonSuspended and ErrResumeDead are the two misuse errors
// Resume reports to the resumer without ever entering the target's own
// error-recovery path.
var (
	ErrResumeNonSuspended = errors.New("cannot resume non-suspended coroutine")
	ErrResumeDead         = errors.New("cannot resume dead coroutine")
)

// ErrYieldMainThread and ErrYieldAcrossBoundary are Yield's two failure
// messages, chosen by whether the yielding thread is the instance's
// main thread.
var (
	ErrYieldMainThread     = errors.New("attempt to yield from outside a coroutine")
	ErrYieldAcrossBoundary = errors.New("attempt to yield across host-call boundary")
)

// Resume switches control to target, running it until it returns,
// yields, or errors. nArgs values must already be on target's stack
// above its function slot (first resume) or above its saved frame
// (subsequent resume). The return status mirrors target.Status after
// the switch; results or the error object are left on target's stack
// for the caller to read.
func Resume(from, target *state.Thread, nArgs int) state.Status {
	if from.NCcalls >= vm.MaxNestedCalls {
		target.Status = state.StatusRuntimeErr
		pushErr(target, fmt.Errorf("stack overflow (nested calls)"))
		return state.StatusRuntimeErr
	}

	target.NCcalls = from.NCcalls + 1
	target.Nny = 0

	status, err := target.RawRunProtected(func() error {
		return resumeBody(target, nArgs)
	})

	if status != state.StatusOK && status != state.StatusYield {
		status = recoverChain(target, status, err)
	} else if err != nil {
		status = state.StatusRuntimeErr
		pushErr(target, err)
	}

	target.Nny = 1
	target.Status = status
	return status
}

func resumeBody(target *state.Thread, nArgs int) error {
	switch target.Status {
	case state.StatusOK:
		if target.CurrentCI() != target.BaseCI() {
			return &resumeMisuse{ErrResumeNonSuspended}
		}
		firstArg := target.Top - nArgs
		invoked, err := vm.Precall(target, firstArg-1, state.ResultsAll)
		if err != nil {
			return err
		}
		if !invoked {
			return runScript(target)
		}
		return nil

	case state.StatusYield:
		ci := target.CurrentCI()
		ci.Func = ci.Extra
		if ci.IsScript() {
			return runScript(target)
		}
		if ci.Continuation != nil {
			n, err := ci.Continuation(ci.Ctx, int(state.StatusYield))
			if err != nil {
				return err
			}
			vm.Postcall(target, target.Top-n)
			return Unroll(target)
		}
		vm.Postcall(target, target.Top)
		return Unroll(target)

	default:
		return &resumeMisuse{ErrResumeDead}
	}
}

// resumeMisuse marks an error as a ResumeError: it surfaces to the
// resumer's return status and never enters the target's own protected-
// frame recovery search.
type resumeMisuse struct{ err error }

func (r *resumeMisuse) Error() string { return r.err.Error() }
func (r *resumeMisuse) Unwrap() error { return r.err }

// recoverChain implements the post-resume error path: search the
// target's call-info chain for a surviving pcallk boundary
// (CIStatusYieldableProtected); if found, restore its saved fields,
// materialize the error at that frame, and drive Unroll until the
// chain completes, yields again, or errors again with no boundary
// left. If none is found, the target is left dead and the error status
// returned to the resumer directly.
func recoverChain(target *state.Thread, status state.Status, err error) state.Status {
	var misuse *resumeMisuse
	if errors.As(err, &misuse) {
		return state.StatusResumeErr
	}
	for {
		ci := findProtected(target)
		if ci == nil {
			pushErr(target, err)
			return status
		}
		ci.Func = ci.Extra
		target.ErrFunc = ci.OldErrFunc
		target.AllowHook = ci.OldAllowHook
		target.Nny = 0
		ci.Status |= state.CIStatusErrorStatus
		target.Stack[ci.Func] = errVal(target, err)

		var rerr error
		status, rerr = target.RawRunProtected(func() error {
			return Unroll(target)
		})
		if status == state.StatusOK || status == state.StatusYield {
			return status
		}
		err = rerr
	}
}

func findProtected(t *state.Thread) *state.CallInfo {
	for ci := t.CurrentCI(); ci != t.BaseCI(); {
		if ci.Status&state.CIStatusYieldableProtected != 0 {
			return ci
		}
		ci = ci.Prev
		if ci == nil {
			break
		}
	}
	return nil
}

// Unroll drives completion after a continuation has run or after an
// error has been recovered at a pcallk boundary: it walks the call-info
// chain toward the base sentinel, running finishCcall for host frames
// and resuming the interpreter for script frames.
func Unroll(t *state.Thread) error {
	for t.CurrentCI() != t.BaseCI() {
		ci := t.CurrentCI()
		if ci.IsScript() {
			if err := runScript(t); err != nil {
				return err
			}
			continue
		}
		if err := finishCcall(t, ci); err != nil {
			return err
		}
	}
	return nil
}

// finishCcall completes a host frame whose coroutine was suspended
// inside it: the continuation (if any) runs with the current error/
// yield status, and its result count drives Postcall exactly like a
// normal host-function return.
func finishCcall(t *state.Thread, ci *state.CallInfo) error {
	status := int(state.StatusYield)
	if ci.Status&state.CIStatusErrorStatus != 0 {
		status = int(state.StatusRuntimeErr)
	}
	n := 0
	if ci.Continuation != nil {
		var err error
		n, err = ci.Continuation(ci.Ctx, status)
		if err != nil {
			return err
		}
	}
	vm.Postcall(t, t.Top-n)
	return nil
}

func runScript(t *state.Thread) error {
	return vm.RunScript(t)
}

// Yield suspends the current coroutine. It is only valid when
// target.Nny == 0 (no host frame on the chain disallows yielding).
// n results are already on top of the stack; ctx/k register an
// optional continuation invoked on the next resume.
func Yield(t *state.Thread, n int, ctx int, k state.ContinuationFunc) error {
	if t.Nny != 0 {
		if t.Global.MainThread == t {
			return ErrYieldMainThread
		}
		return ErrYieldAcrossBoundary
	}
	ci := t.CurrentCI()
	ci.Extra = ci.Func
	if ci.Status&state.CIStatusHook != 0 {
		t.Status = state.StatusYield
		return nil
	}
	ci.Continuation = k
	ci.Ctx = ctx
	ci.Func = t.Top - n - 1
	t.Status = state.StatusYield
	t.Throw(state.StatusYield, nil)
	return nil // unreachable: Throw transfers control via panic/recover
}

func pushErr(t *state.Thread, err error) {
	if t.Top >= len(t.Stack) {
		return
	}
	t.Stack[t.Top] = errVal(t, err)
	t.Top++
}

func errVal(t *state.Thread, err error) value.Value {
	if err == nil {
		return value.Nil
	}
	return value.FromObject(t.Global.InternString(err.Error()))
}
