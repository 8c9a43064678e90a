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

// CallValue1 pushes fn followed by args, invokes it for exactly one
// result, and returns that result. It is the helper every metamethod
// dispatch path (arith, compare, concat, index) uses to re-enter the
// call engine, since a metamethod is an ordinary callable value.
func CallValue1(t *state.Thread, fn value.Value, args ...value.Value) (value.Value, error) {
	funcSlot := t.Top
	Push(t, fn)
	for _, a := range args {
		Push(t, a)
	}
	if err := Call(t, funcSlot, 1, false); err != nil {
		return value.Nil, err
	}
	res := t.Stack[funcSlot]
	t.Top = funcSlot
	return res, nil
}

// CallValueBool is CallValue1 specialized for comparison metamethods,
// which the caller treats as a boolean via falsy/truthy conversion.
func CallValueBool(t *state.Thread, fn value.Value, args ...value.Value) (bool, error) {
	res, err := CallValue1(t, fn, args...)
	if err != nil {
		return false, err
	}
	return !res.IsFalsy(), nil
}
