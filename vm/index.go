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
	"github.com/probechain/probe-lang/meta"
	"github.com/probechain/probe-lang/state"
	"github.com/probechain/probe-lang/value"
)

// GetIndex resolves container[key], following the __index metamethod
// chain through meta.Index and re-entering the call engine via
// CallValue1 whenever the chain bottoms out in a function.
func GetIndex(t *state.Thread, container, key value.Value) (value.Value, error) {
	return meta.Index(t, func(fn, recv, k value.Value) (value.Value, error) {
		return CallValue1(t, fn, recv, k)
	}, container, key)
}

// SetIndex assigns container[key] = val, following __newindex.
func SetIndex(t *state.Thread, container, key, val value.Value) error {
	return meta.NewIndex(t, func(fn, recv, k, v value.Value) error {
		_, err := CallValue1(t, fn, recv, k, v)
		return err
	}, container, key, val)
}

// ArithWithMeta runs Arith with a metamethod callback wired to
// CallValue1, the composition every capi arith entry point uses.
func ArithWithMeta(t *state.Thread, op ArithOp) error {
	return Arith(t, func(fn, a, b value.Value) (value.Value, error) {
		return CallValue1(t, fn, a, b)
	}, op)
}

// CompareWithMeta runs Compare with a metamethod callback wired to
// CallValueBool.
func CompareWithMeta(t *state.Thread, op CompareOp, a, b value.Value) (bool, error) {
	return Compare(t, func(fn, a, b value.Value) (bool, error) {
		return CallValueBool(t, fn, a, b)
	}, op, a, b)
}

// EqualWithMeta runs Equal with a metamethod callback wired to
// CallValueBool.
func EqualWithMeta(t *state.Thread, a, b value.Value) (bool, error) {
	return Equal(t, func(fn, a, b value.Value) (bool, error) {
		return CallValueBool(t, fn, a, b)
	}, a, b)
}

// ConcatWithMeta runs Concat with a metamethod callback wired to
// CallValue1.
func ConcatWithMeta(t *state.Thread, n int) error {
	return Concat(t, func(fn, a, b value.Value) (value.Value, error) {
		return CallValue1(t, fn, a, b)
	}, n)
}
