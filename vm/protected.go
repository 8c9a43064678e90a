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
	"github.com/probechain/probe-lang/state"
	"github.com/probechain/probe-lang/value"
)

// errorInErrorMessage is the fixed literal written when a pcall error
// handler itself throws while processing a runtime error.
const errorInErrorMessage = "error in error handling"

// PCall protects a call to fn (which pushes its own function/args and
// invokes Call internally) behind a jump buffer: on a thrown error, the
// stack unwinds to oldTop, any open upvalues above it are closed, and
// the error object replaces whatever was on the stack. If errFunc is a
// valid stack index (non-zero), it names a handler invoked with the
// error object before the boundary returns; a throw from the handler
// itself is reported as StatusErrorInError.
func PCall(t *state.Thread, fn func() error, oldTop int, errFunc int) state.Status {
	savedCI := t.CurrentCI()
	savedAllowHook := t.AllowHook
	savedNny := t.Nny
	savedErrFunc := t.ErrFunc
	t.ErrFunc = errFunc

	status, err := t.RawRunProtected(fn)
	if status == state.StatusOK {
		t.ErrFunc = savedErrFunc
		return status
	}

	t.CloseUpvalues(oldTop)
	restoreCI(t, savedCI)
	t.AllowHook = savedAllowHook
	t.Nny = savedNny

	errVal := errorValue(t, err)
	if errFunc != 0 {
		handled, herr := runErrorHandler(t, errFunc, errVal)
		if herr != nil {
			errVal = value.FromObject(t.Global.InternString(errorInErrorMessage))
			status = state.StatusErrorInError
		} else {
			errVal = handled
		}
	}
	t.ErrFunc = savedErrFunc

	t.Top = oldTop
	Push(t, errVal)
	ShrinkStack(t, 0)
	t.Status = status
	return status
}

// restoreCI rewinds the thread's call-info chain back to saved,
// releasing any frames pushed after it as cached scratch.
func restoreCI(t *state.Thread, saved *state.CallInfo) {
	for t.CurrentCI() != saved && t.CurrentCI() != t.BaseCI() {
		t.PopCI()
	}
}

func errorValue(t *state.Thread, err error) value.Value {
	if err == nil {
		return value.Nil
	}
	if v, ok := err.(interface{ Value() value.Value }); ok {
		return v.Value()
	}
	return value.FromObject(t.Global.InternString(err.Error()))
}

// runErrorHandler invokes the function at stack index errFunc with the
// error object, returning its single result (which replaces the error
// object per the pcall contract).
func runErrorHandler(t *state.Thread, errFunc int, errVal value.Value) (value.Value, error) {
	idx := AbsIndex(t, errFunc)
	handler := at(t, idx)
	return CallValue1(t, handler, errVal)
}
