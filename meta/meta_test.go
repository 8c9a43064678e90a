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

package meta_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/probechain/probe-lang/meta"
	"github.com/probechain/probe-lang/object"
	"github.com/probechain/probe-lang/state"
	"github.com/probechain/probe-lang/value"
)

func newThread(t *testing.T) *state.Thread {
	t.Helper()
	g := state.NewGlobalState(nil)
	th := state.NewThread(g)
	g.MainThread = th
	return th
}

// A table with no metatable must have its __index absence cached: the
// flag bit for TMIndex is set after the first miss.
func TestFastTMCachesAbsence(t *testing.T) {
	tbl := object.NewTable(0, 0)
	require.Nil(t, tbl.Metatable)

	v := meta.FastTM(tbl, state.TMIndex)
	require.True(t, v.IsNil())
	require.NotZero(t, tbl.Flags&(1<<uint(state.TMIndex)))
}

// Installing a metatable with __index, then writing to the table,
// must flush the absence cache wholesale so the metamethod is found.
func TestFastTMCacheFlushedBySet(t *testing.T) {
	tbl := object.NewTable(0, 0)

	// Prime the absence cache.
	miss := meta.FastTM(tbl, state.TMIndex)
	require.True(t, miss.IsNil())
	require.NotZero(t, tbl.Flags)

	mt := object.NewTable(0, 1)
	handler := value.Number(7)
	mt.Set(value.FromObject(object.NewLong("__index")), handler)
	tbl.Metatable = mt

	// The table itself was never Set, so the stale absence bit is still
	// set; FastTM must honor it (a known, accepted staleness window that
	// only ever errs toward "assume present").
	require.NotZero(t, tbl.Flags&(1<<uint(state.TMIndex)))

	// A raw write to the table flushes the cache.
	tbl.Set(value.Number(1), value.Number(99))
	require.Zero(t, tbl.Flags)

	found := meta.FastTM(tbl, state.TMIndex)
	require.Equal(t, float64(7), found.AsNumber())
}

// Index must walk a chain of table __index metamethods and stop at the
// first table whose raw Get finds the key.
func TestIndexWalksMetatableChain(t *testing.T) {
	th := newThread(t)
	greetingKey := value.FromObject(object.NewLong("greeting"))

	base := object.NewTable(0, 1)
	base.Set(greetingKey, value.FromObject(object.NewLong("hi")))

	mid := object.NewTable(0, 1)
	mid.Metatable = object.NewTable(0, 1)
	mid.Metatable.Set(value.FromObject(object.NewLong("__index")), value.FromObject(base))

	leaf := object.NewTable(0, 1)
	leaf.Metatable = object.NewTable(0, 1)
	leaf.Metatable.Set(value.FromObject(object.NewLong("__index")), value.FromObject(mid))

	call := func(fn, recv, key value.Value) (value.Value, error) {
		t.Fatalf("unexpected function-valued __index call")
		return value.Nil, nil
	}
	result, err := meta.Index(th, call, value.FromObject(leaf), greetingKey)
	require.NoError(t, err)
	require.Equal(t, "hi", result.String())
}

// Indexing a value with no metatable and no raw slot (a bare number)
// must surface an index error rather than panicking.
func TestIndexNonIndexableErrors(t *testing.T) {
	th := newThread(t)
	call := func(fn, recv, key value.Value) (value.Value, error) { return value.Nil, nil }
	_, err := meta.Index(th, call, value.Number(5), value.FromObject(object.NewLong("x")))
	require.Error(t, err)
	require.Contains(t, err.Error(), "attempt to index a number value")
}
