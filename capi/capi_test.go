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

package capi_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/probechain/probe-lang/capi"
	"github.com/probechain/probe-lang/object"
	"github.com/probechain/probe-lang/state"
	"github.com/probechain/probe-lang/value"
)

func pushAdder(s *capi.State) {
	adder := object.GoFunction(func(act value.Activation) (int, error) {
		act.Push(value.Number(act.Arg(0).AsNumber() + act.Arg(1).AsNumber()))
		return 1, nil
	})
	s.PushClosure("add", adder, 0)
}

func TestCallPushesResultOnStack(t *testing.T) {
	s := capi.NewState(nil)
	pushAdder(s)
	s.PushNumber(19)
	s.PushNumber(23)

	require.NoError(t, s.Call(2, 1))
	n, ok := s.ToNumber(-1)
	require.True(t, ok)
	require.Equal(t, float64(42), n)
}

// Globals round-trip through SetGlobal/GetGlobal, proving the registry's
// lazily-created globals table and string interning cooperate correctly.
func TestGlobalsRoundTrip(t *testing.T) {
	s := capi.NewState(nil)
	s.PushNumber(7)
	require.NoError(t, s.SetGlobal("answer"))

	require.NoError(t, s.GetGlobal("answer"))
	n, ok := s.ToNumber(-1)
	require.True(t, ok)
	require.Equal(t, float64(7), n)
}

// A runtime error thrown during a protected call must leave its message
// on the stack and report StatusRuntimeErr, never panic out to the host.
func TestPCallCapturesRuntimeError(t *testing.T) {
	s := capi.NewState(nil)
	boom := object.GoFunction(func(act value.Activation) (int, error) {
		return 0, errors.New("division by zero")
	})
	s.PushClosure("boom", boom, 0)

	status := s.PCall(0, 0, 0)
	require.Equal(t, state.StatusRuntimeErr, status)
	str, ok := s.ToStringVal(-1)
	require.True(t, ok)
	require.Equal(t, "division by zero", str)
}

// If the error handler registered via PCall's errFunc itself throws
// while processing the original error, the call must report
// StatusErrorInError with the fixed "error in error handling" message,
// never recurse or propagate the handler's own error.
func TestPCallErrorInErrorHandler(t *testing.T) {
	s := capi.NewState(nil)

	handler := object.GoFunction(func(act value.Activation) (int, error) {
		return 0, errors.New("handler itself exploded")
	})
	s.PushClosure("handler", handler, 0)
	errFunc := s.GetTop()

	boom := object.GoFunction(func(act value.Activation) (int, error) {
		return 0, errors.New("original failure")
	})
	s.PushClosure("boom", boom, 0)

	status := s.PCall(0, 0, errFunc)
	require.Equal(t, state.StatusErrorInError, status)
	str, ok := s.ToStringVal(-1)
	require.True(t, ok)
	require.Equal(t, "error in error handling", str)
}

// Resume/Yield round-trip through the embedding surface: a coroutine
// thread yields one value, and a second Resume with fresh arguments
// drives it to completion.
func TestResumeYieldThroughState(t *testing.T) {
	main := capi.NewState(nil)
	co := main.NewThread()

	yielder := object.GoFunction(func(act value.Activation) (int, error) {
		act.Push(value.Number(1))
		return 0, co.Yield(1, 0, func(ctx int, status int) (int, error) {
			return 0, nil
		})
	})
	co.PushClosure("yielder", yielder, 0)

	status := co.Resume(main, 0)
	require.Equal(t, state.StatusYield, status)
	n, ok := co.ToNumber(-1)
	require.True(t, ok)
	require.Equal(t, float64(1), n)

	status = co.Resume(main, 0)
	require.Equal(t, state.StatusOK, status)
}
