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

// Package meta implements tag-method (metamethod) lookup and dispatch:
// resolving __index/__add/__eq/... for a value's metatable, the
// fast-access absence cache on tables, and the small per-type metatable
// cache for every other tag.
package meta

import (
	"github.com/probechain/probe-lang/object"
	"github.com/probechain/probe-lang/state"
	"github.com/probechain/probe-lang/value"
)

// GetMetatable returns v's metatable: the object's own for Table and
// Userdata, or the shared per-type metatable on the global state for
// every other tag.
func GetMetatable(t *state.Thread, v value.Value) *object.Table {
	obj, ok := v.Object()
	if ok {
		switch o := obj.(type) {
		case *object.Table:
			return o.Metatable
		case *object.Userdata:
			return o.Metatable
		}
	}
	return t.Global.MetatableFor(v.Tag())
}

// fastTMName maps the first object.FastTMCount tag methods to their
// names, the subset a table's Flags byte may cache absence for.
var fastTMName = [object.FastTMCount]string{
	state.TMName(state.TMIndex),
	state.TMName(state.TMNewIndex),
	state.TMName(state.TMGC),
	state.TMName(state.TMMode),
	state.TMName(state.TMLen),
	state.TMName(state.TMEq),
}

// FastTM looks up one of the first six tag methods on table tbl,
// consulting (and maintaining) its absence-cache flag byte: a set bit
// means a previous lookup found nothing, so the metatable is skipped
// entirely. The bit is only ever set on a genuine miss and is flushed
// wholesale by object.Table.Set, so it can go stale only toward "assume
// present" (safe), never "assume absent" when something is actually
// there.
func FastTM(tbl *object.Table, m state.TM) value.Value {
	if tbl.Flags&(1<<uint(m)) != 0 {
		return value.Nil
	}
	if tbl.Metatable == nil {
		return value.Nil
	}
	v := tbl.Metatable.GetStr(fastTMName[m])
	if v.IsNil() {
		tbl.Flags |= 1 << uint(m)
	}
	return v
}

// GetTM resolves tag method m on value v's metatable by name, with no
// fast-path caching (used for the 11 non-fast-access methods and for
// every non-table/userdata value).
func GetTM(t *state.Thread, v value.Value, m state.TM) value.Value {
	mt := GetMetatable(t, v)
	if mt == nil {
		return value.Nil
	}
	return mt.GetStr(state.TMName(m))
}

// Index implements __index dispatch: if t's raw get finds a non-nil
// value it is returned directly; otherwise the metatable chain is
// walked (a table __index is itself indexed again, a function __index
// is called with (t, k)).
func Index(th *state.Thread, call func(fn, recv, key value.Value) (value.Value, error), container, key value.Value) (value.Value, error) {
	const maxChain = 100
	cur := container
	for i := 0; i < maxChain; i++ {
		if tbl, ok := asTable(cur); ok {
			v := tbl.Get(key)
			if !v.IsNil() {
				return v, nil
			}
			tm := FastTM(tbl, state.TMIndex)
			if tm.IsNil() {
				return value.Nil, nil
			}
			if tm.Tag() == value.TagFunction {
				return call(tm, cur, key)
			}
			cur = tm
			continue
		}
		tm := GetTM(th, cur, state.TMIndex)
		if tm.IsNil() {
			return value.Nil, indexError(cur)
		}
		if tm.Tag() == value.TagFunction {
			return call(tm, cur, key)
		}
		cur = tm
	}
	return value.Nil, indexError(container)
}

// NewIndex implements __newindex dispatch symmetrically to Index: a
// table with the key already present, or with no __newindex metamethod,
// gets a raw Set; otherwise the metamethod chain is walked.
func NewIndex(th *state.Thread, call func(fn, recv, key, val value.Value) error, container, key, val value.Value) error {
	const maxChain = 100
	cur := container
	for i := 0; i < maxChain; i++ {
		if tbl, ok := asTable(cur); ok {
			if !tbl.Get(key).IsNil() {
				tbl.Set(key, val)
				return nil
			}
			tm := FastTM(tbl, state.TMNewIndex)
			if tm.IsNil() {
				tbl.Set(key, val)
				return nil
			}
			if tm.Tag() == value.TagFunction {
				return call(tm, cur, key, val)
			}
			cur = tm
			continue
		}
		tm := GetTM(th, cur, state.TMNewIndex)
		if tm.IsNil() {
			return indexError(cur)
		}
		if tm.Tag() == value.TagFunction {
			return call(tm, cur, key, val)
		}
		cur = tm
	}
	return indexError(container)
}

func asTable(v value.Value) (*object.Table, bool) {
	obj, ok := v.Object()
	if !ok {
		return nil, false
	}
	tbl, ok := obj.(*object.Table)
	return tbl, ok
}

func indexError(v value.Value) error {
	return &indexErr{tag: v.Tag()}
}

type indexErr struct{ tag value.Tag }

func (e *indexErr) Error() string { return "attempt to index a " + e.tag.String() + " value" }
