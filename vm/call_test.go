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

package vm_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/probechain/probe-lang/object"
	"github.com/probechain/probe-lang/state"
	"github.com/probechain/probe-lang/value"
	"github.com/probechain/probe-lang/vm"
)

func newThread(t *testing.T) *state.Thread {
	t.Helper()
	g := state.NewGlobalState(nil)
	th := state.NewThread(g)
	g.MainThread = th
	return th
}

func pushAdder(t *testing.T, th *state.Thread) {
	t.Helper()
	adder := object.GoFunction(func(act value.Activation) (int, error) {
		a := act.Arg(0).AsNumber()
		b := act.Arg(1).AsNumber()
		act.Push(value.Number(a + b))
		return 1, nil
	})
	vm.Push(th, value.FromObject(object.NewHostClosure("add", adder)))
}

func TestCallHostClosureReturnsResult(t *testing.T) {
	th := newThread(t)
	funcSlot := th.Top
	pushAdder(t, th)
	vm.Push(th, value.Number(2))
	vm.Push(th, value.Number(3))

	err := vm.Call(th, funcSlot, 1, false)
	require.NoError(t, err)
	require.Equal(t, funcSlot+1, th.Top)
	require.Equal(t, float64(5), vm.ValueAt(th, -1).AsNumber())
}

// A runtime error thrown by a host closure must be caught at the
// protected boundary rather than propagating out of PCall: the stack
// unwinds to the function's own slot and the error object replaces it.
func TestPCallCatchesRuntimeError(t *testing.T) {
	th := newThread(t)
	boom := object.GoFunction(func(act value.Activation) (int, error) {
		return 0, errors.New("boom")
	})

	funcSlot := th.Top
	vm.Push(th, value.FromObject(object.NewHostClosure("boom", boom)))

	status := vm.PCall(th, func() error {
		return vm.Call(th, funcSlot, 0, false)
	}, funcSlot, 0)

	require.Equal(t, state.StatusRuntimeErr, status)
	require.Equal(t, funcSlot+1, th.Top)
	errVal := vm.ValueAt(th, -1)
	require.Equal(t, value.TagString, errVal.Tag())
	require.Equal(t, "boom", errVal.String())
}

// A call that completes successfully must leave PCall's status OK and
// must not disturb the error value slot machinery at all.
func TestPCallOKLeavesResultsInPlace(t *testing.T) {
	th := newThread(t)
	funcSlot := th.Top
	pushAdder(t, th)
	vm.Push(th, value.Number(10))
	vm.Push(th, value.Number(32))

	status := vm.PCall(th, func() error {
		return vm.Call(th, funcSlot, 1, false)
	}, funcSlot, 0)

	require.Equal(t, state.StatusOK, status)
	require.Equal(t, float64(42), vm.ValueAt(th, -1).AsNumber())
}

// Calling a non-callable value with no __call metamethod must surface
// a descriptive runtime error rather than panicking.
func TestCallNonFunctionErrors(t *testing.T) {
	th := newThread(t)
	funcSlot := th.Top
	vm.Push(th, value.Number(5))

	err := vm.Call(th, funcSlot, 0, false)
	require.Error(t, err)
	require.Contains(t, err.Error(), "attempt to call a number value")
}
