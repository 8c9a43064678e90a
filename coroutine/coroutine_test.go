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

package coroutine_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/probechain/probe-lang/coroutine"
	"github.com/probechain/probe-lang/object"
	"github.com/probechain/probe-lang/state"
	"github.com/probechain/probe-lang/value"
	"github.com/probechain/probe-lang/vm"
)

func newMainThread(t *testing.T) *state.Thread {
	t.Helper()
	g := state.NewGlobalState(nil)
	th := state.NewThread(g)
	g.MainThread = th
	return th
}

// A coroutine that yields a value and later completes must drive two
// Resume calls: the first stops at the yield point with the yielded
// value left on the target's own stack, the second runs the registered
// continuation to completion and reports StatusOK.
func TestResumeYieldRoundTrip(t *testing.T) {
	main := newMainThread(t)
	co := state.NewThread(main.Global)

	continued := false
	yielder := object.GoFunction(func(act value.Activation) (int, error) {
		act.Push(value.Number(99))
		return 0, coroutine.Yield(co, 1, 0, func(ctx int, status int) (int, error) {
			continued = true
			return 0, nil
		})
	})
	vm.Push(co, value.FromObject(object.NewHostClosure("yielder", yielder)))

	status := coroutine.Resume(main, co, 0)
	require.Equal(t, state.StatusYield, status)
	require.False(t, continued)
	require.Equal(t, float64(99), vm.ValueAt(co, -1).AsNumber())

	status = coroutine.Resume(main, co, 0)
	require.Equal(t, state.StatusOK, status)
	require.True(t, continued)
}

// Yielding from the main thread itself (never resumed into) must be
// rejected rather than silently misbehaving.
func TestYieldFromMainThreadErrors(t *testing.T) {
	main := newMainThread(t)

	err := coroutine.Yield(main, 0, 0, nil)
	require.ErrorIs(t, err, coroutine.ErrYieldMainThread)
}

// An error raised inside a coroutine with no surviving protected frame
// leaves the target dead and reports the error status straight back to
// the resumer, with the error value materialized on the target's stack.
func TestResumeErrorWithNoProtectedFrameKillsCoroutine(t *testing.T) {
	main := newMainThread(t)
	co := state.NewThread(main.Global)

	boom := object.GoFunction(func(act value.Activation) (int, error) {
		return 0, errors.New("coroutine boom")
	})
	vm.Push(co, value.FromObject(object.NewHostClosure("boom", boom)))

	status := coroutine.Resume(main, co, 0)
	require.Equal(t, state.StatusRuntimeErr, status)
	errVal := vm.ValueAt(co, -1)
	require.Equal(t, "coroutine boom", errVal.String())

	// The coroutine is now dead: a further resume must be rejected as a
	// resumer-side misuse, never re-entering the dead chain.
	status = coroutine.Resume(main, co, 0)
	require.Equal(t, state.StatusResumeErr, status)
}
