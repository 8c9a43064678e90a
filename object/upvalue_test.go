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

package object_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/probechain/probe-lang/object"
	"github.com/probechain/probe-lang/value"
)

// Two closures that capture the same open upvalue must observe each
// other's writes, the defining property of upvalue sharing: an open
// upvalue points into the owning thread's stack, not into a private
// copy, until it is closed.
func TestUpvalueSharedBetweenClosures(t *testing.T) {
	stack := []value.Value{value.Number(1)}
	uv := object.NewOpenUpvalue(0)

	var list object.OpenUpvalueList
	list.Insert(uv)

	readThrough := func() value.Value { return uv.Get(stack) }

	closureA := object.NewScriptClosure(object.NewProto(""))
	closureA.Upvalues = []*object.Upvalue{uv}
	closureB := object.NewScriptClosure(object.NewProto(""))
	closureB.Upvalues = []*object.Upvalue{uv}

	require.True(t, uv.IsOpen())
	require.Equal(t, float64(1), readThrough().AsNumber())

	// closureA "writes" its upvalue by mutating the shared stack slot.
	uv.Set(stack, value.Number(2))
	require.Equal(t, float64(2), closureB.Upvalues[0].Get(stack).AsNumber())

	// Closing the upvalue freezes its value independent of the stack.
	uv.Close(stack)
	require.False(t, uv.IsOpen())
	stack[0] = value.Number(99)
	require.Equal(t, float64(2), closureA.Upvalues[0].Get(nil).AsNumber())
	require.Equal(t, float64(2), closureB.Upvalues[0].Get(nil).AsNumber())
}

// FindOrOpenUpvalue-style reuse: inserting the same stack index twice
// through the list's Find must return the identical Upvalue, not a
// second independent one, or two closures over the same local would
// silently stop sharing writes.
func TestOpenUpvalueListFindReusesExisting(t *testing.T) {
	var list object.OpenUpvalueList
	first := object.NewOpenUpvalue(3)
	list.Insert(first)

	found := list.Find(3)
	require.NotNil(t, found)
	require.Same(t, first, found)

	require.Nil(t, list.Find(4))
}
