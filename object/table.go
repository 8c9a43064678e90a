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

package object

import "github.com/probechain/probe-lang/value"

// FastTMCount is the number of tag methods whose absence a table may
// cache in Flags: __index, __newindex, __gc, __mode, __len, __eq, in
// that fixed order.
const FastTMCount = 6

// Table is the heap representation of a table value: an array part for
// dense positive-integer keys, a hash part for everything else, an
// optional metatable, and the fast-access tag-method absence cache.
type Table struct {
	Header

	array []value.Value
	hash  map[Value]value.Value

	Metatable *Table
	// Flags bit m is set when a lookup for fast-access tag-method m
	// returned nil; any write to the table (Set) clears Flags to 0
	// (a flush, not a precise invalidation).
	Flags uint8

	hashOrder  []Value // cached iteration order for Next, stable between writes
	orderDirty bool
}

// Value is a table-key wrapper so Go-map equality lines up with the
// runtime's raw-equality rule (numbers by bitwise value, heap objects by
// identity, nil is never a valid key).
type Value struct {
	tag value.Tag
	num float64
	obj value.Collectable
	b   bool
}

func keyOf(v value.Value) Value {
	k := Value{tag: v.Tag()}
	switch v.Tag() {
	case value.TagNumber:
		k.num = v.AsNumber()
	case value.TagBoolean:
		k.b = v.AsBool()
	default:
		if obj, ok := v.Object(); ok {
			k.obj = obj
		}
	}
	return k
}

// NewTable constructs an empty table with narr/nrec initial capacity
// hints, matching capi.CreateTable(narr, nrec).
func NewTable(narr, nrec int) *Table {
	t := &Table{Header: NewHeader(value.TagTable)}
	if narr > 0 {
		t.array = make([]value.Value, 0, narr)
	}
	if nrec > 0 {
		t.hash = make(map[Value]value.Value, nrec)
	}
	return t
}

// Get performs a raw (non-metamethod) read.
func (t *Table) Get(key value.Value) value.Value {
	if key.Tag() == value.TagNumber {
		if idx, ok := arrayIndex(key.AsNumber()); ok && idx >= 1 && idx <= len(t.array) {
			return t.array[idx-1]
		}
	}
	if t.hash == nil {
		return value.Nil
	}
	if v, ok := t.hash[keyOf(key)]; ok {
		return v
	}
	return value.Nil
}

// GetStr is a convenience for the very common string-key lookup, used
// by field access (a.b) and the fast tag-method path.
func (t *Table) GetStr(s string) value.Value {
	if t.hash == nil {
		return value.Nil
	}
	for k, v := range t.hash {
		if k.tag == value.TagString {
			if str, ok := k.obj.(*String); ok && str.Value() == s {
				return v
			}
		}
	}
	return value.Nil
}

func arrayIndex(n float64) (int, bool) {
	i := int(n)
	if float64(i) != n {
		return 0, false
	}
	return i, true
}

// Set performs a raw (non-metamethod) write. Any write flushes the
// fast-access tag-method cache: the cache is flushed wholesale rather
// than precisely invalidated.
func (t *Table) Set(key, v value.Value) {
	t.Flags = 0
	t.orderDirty = true
	if key.Tag() == value.TagNumber {
		if idx, ok := arrayIndex(key.AsNumber()); ok && idx >= 1 {
			t.setArray(idx, v)
			return
		}
	}
	if v.IsNil() {
		if t.hash != nil {
			delete(t.hash, keyOf(key))
		}
		return
	}
	if t.hash == nil {
		t.hash = make(map[Value]value.Value)
	}
	t.hash[keyOf(key)] = v
}

func (t *Table) setArray(idx int, v value.Value) {
	if idx <= len(t.array) {
		t.array[idx-1] = v
		return
	}
	if idx == len(t.array)+1 && !v.IsNil() {
		t.array = append(t.array, v)
		return
	}
	// Non-contiguous extension spills to the hash part, matching real
	// table implementations that only keep a dense prefix in array.
	if t.hash == nil {
		t.hash = make(map[Value]value.Value)
	}
	t.hash[keyOf(value.Number(float64(idx)))] = v
}

// Len implements the raw "border" length: for a table with a dense
// array part and no holes, this is len(array).
func (t *Table) Len() int {
	n := len(t.array)
	for n > 0 && t.array[n-1].IsNil() {
		n--
	}
	return n
}

// Next implements the embedding API's next(i): stateless iteration over
// array part then hash part. It returns ok=false when there is nothing
// more to iterate.
func (t *Table) Next(key value.Value) (nextKey, nextVal value.Value, ok bool) {
	// Array part first.
	start := 0
	if !key.IsNil() {
		if key.Tag() == value.TagNumber {
			if idx, aok := arrayIndex(key.AsNumber()); aok && idx >= 1 && idx <= len(t.array) {
				start = idx
			} else {
				return t.nextHash(key)
			}
		} else {
			return t.nextHash(key)
		}
	}
	for i := start; i < len(t.array); i++ {
		if !t.array[i].IsNil() {
			return value.Number(float64(i + 1)), t.array[i], true
		}
	}
	return t.nextHash(value.Nil)
}

func (t *Table) nextHash(after value.Value) (value.Value, value.Value, bool) {
	// Go maps have no stable order; Next over the hash part iterates in
	// whatever order range gives, finding `after` first if non-nil and
	// returning the entry following it. This satisfies next()'s "some
	// order, consistent while the table is not mutated" contract but
	// not a specific order across calls after mutation, matching the
	// embedding API's documented non-guarantee.
	if t.hash == nil {
		return value.Nil, value.Nil, false
	}
	keys := t.hashKeysInOrder()
	afterIdx := -1
	if !after.IsNil() {
		ak := keyOf(after)
		for i, k := range keys {
			if k == ak {
				afterIdx = i
				break
			}
		}
	}
	if afterIdx+1 < len(keys) {
		k := keys[afterIdx+1]
		return valueFromKey(k), t.hash[k], true
	}
	return value.Nil, value.Nil, false
}

// hashKeysInOrder returns a snapshot of the hash part's keys, cached and
// reused across calls until the next write, so repeated Next calls
// within one unmutated iteration agree on order (the "some order,
// consistent while the table is not mutated" contract next() relies on).
func (t *Table) hashKeysInOrder() []Value {
	if t.hashOrder == nil || t.orderDirty || len(t.hashOrder) != len(t.hash) {
		t.hashOrder = make([]Value, 0, len(t.hash))
		for k := range t.hash {
			t.hashOrder = append(t.hashOrder, k)
		}
		t.orderDirty = false
	}
	return t.hashOrder
}

func valueFromKey(k Value) value.Value {
	switch k.tag {
	case value.TagNumber:
		return value.Number(k.num)
	case value.TagBoolean:
		return value.Bool(k.b)
	default:
		if k.obj != nil {
			return value.FromObject(k.obj)
		}
		return value.Nil
	}
}

func (t *Table) String() string { return "table" }
