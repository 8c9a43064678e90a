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
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/probechain/probe-lang/meta"
	"github.com/probechain/probe-lang/state"
	"github.com/probechain/probe-lang/value"
)

// ArithOp is an arithmetic operator code for Arith.
type ArithOp int

const (
	OpAdd ArithOp = iota
	OpSub
	OpMul
	OpDiv
	OpMod
	OpPow
	OpUnm
)

var arithTM = [...]state.TM{
	OpAdd: state.TMAdd, OpSub: state.TMSub, OpMul: state.TMMul,
	OpDiv: state.TMDiv, OpMod: state.TMMod, OpPow: state.TMPow, OpUnm: state.TMUnm,
}

// toNumber coerces v to a float64, accepting strings that parse cleanly
// as numbers, the auto-coercion arithmetic operands get.
func toNumber(v value.Value) (float64, bool) {
	if v.Tag() == value.TagNumber {
		return v.AsNumber(), true
	}
	if obj, ok := v.Object(); ok {
		if s, ok := obj.(interface{ Value() string }); ok {
			n, err := strconv.ParseFloat(strings.TrimSpace(s.Value()), 64)
			if err == nil {
				return n, true
			}
		}
	}
	return 0, false
}

// Arith pops the operands for op (two for binary ops, one doubled for
// OpUnm) from the top of the stack and pushes the result, invoking the
// corresponding tag method when either operand is not a coercible
// number.
func Arith(t *state.Thread, call func(fn, a, b value.Value) (value.Value, error), op ArithOp) error {
	var a, b value.Value
	if op == OpUnm {
		a = t.Stack[t.Top-1]
		b = a
		t.Top--
	} else {
		a = t.Stack[t.Top-2]
		b = t.Stack[t.Top-1]
		t.Top -= 2
	}
	na, aok := toNumber(a)
	nb, bok := toNumber(b)
	if aok && bok {
		res, err := applyArith(op, na, nb)
		if err != nil {
			return err
		}
		Push(t, value.Number(res))
		return nil
	}
	tm := meta.GetTM(t, a, arithTM[op])
	if tm.IsNil() {
		tm = meta.GetTM(t, b, arithTM[op])
	}
	if tm.IsNil() {
		bad := a
		if aok {
			bad = b
		}
		return fmt.Errorf("attempt to perform arithmetic on a %s value", bad.Tag())
	}
	res, err := call(tm, a, b)
	if err != nil {
		return err
	}
	Push(t, res)
	return nil
}

func applyArith(op ArithOp, a, b float64) (float64, error) {
	switch op {
	case OpAdd:
		return a + b, nil
	case OpSub:
		return a - b, nil
	case OpMul:
		return a * b, nil
	case OpDiv:
		return a / b, nil
	case OpMod:
		m := a - float64(int64(a/b))*b
		return m, nil
	case OpPow:
		return pow(a, b), nil
	case OpUnm:
		return -a, nil
	default:
		return 0, fmt.Errorf("vm: unknown arith op %d", op)
	}
}

func pow(a, b float64) float64 {
	if b == 0 {
		return 1
	}
	if b != math.Trunc(b) {
		return math.Pow(a, b)
	}
	result := 1.0
	neg := b < 0
	n := b
	if neg {
		n = -n
	}
	for ; n >= 1; n-- {
		result *= a
	}
	if neg {
		return 1 / result
	}
	return result
}

// CompareOp is a comparison operator code for Compare.
type CompareOp int

const (
	OpLt CompareOp = iota
	OpLe
)

// Compare implements `<`/`<=` with metamethod fallback: numbers compare
// directly; otherwise __lt (or, for <=, __le falling back to
// `not (b < a)` when __le is absent but __lt exists) is invoked.
func Compare(t *state.Thread, call func(fn, a, b value.Value) (bool, error), op CompareOp, a, b value.Value) (bool, error) {
	if a.Tag() == value.TagNumber && b.Tag() == value.TagNumber {
		if op == OpLt {
			return a.AsNumber() < b.AsNumber(), nil
		}
		return a.AsNumber() <= b.AsNumber(), nil
	}
	tmName := state.TMLt
	if op == OpLe {
		tmName = state.TMLe
	}
	tm := meta.GetTM(t, a, tmName)
	if tm.IsNil() {
		tm = meta.GetTM(t, b, tmName)
	}
	if !tm.IsNil() {
		return call(tm, a, b)
	}
	if op == OpLe {
		// Fall back to not (b < a) when __le is absent but __lt exists.
		ltTM := meta.GetTM(t, a, state.TMLt)
		if ltTM.IsNil() {
			ltTM = meta.GetTM(t, b, state.TMLt)
		}
		if !ltTM.IsNil() {
			res, err := call(ltTM, b, a)
			if err != nil {
				return false, err
			}
			return !res, nil
		}
	}
	return false, fmt.Errorf("attempt to compare %s with %s", a.Tag(), b.Tag())
}

// Equal implements full equality: raw-equal values are equal outright;
// otherwise, for two tables or two userdata, __eq is consulted.
func Equal(t *state.Thread, call func(fn, a, b value.Value) (bool, error), a, b value.Value) (bool, error) {
	if value.RawEqual(a, b) {
		return true, nil
	}
	if a.Tag() != b.Tag() || (a.Tag() != value.TagTable && a.Tag() != value.TagUserdata) {
		return false, nil
	}
	tm := meta.GetTM(t, a, state.TMEq)
	if tm.IsNil() {
		tm = meta.GetTM(t, b, state.TMEq)
	}
	if tm.IsNil() {
		return false, nil
	}
	return call(tm, a, b)
}

// Concat concatenates the top n stack values in place, auto-coercing
// numbers and strings and falling back to __concat for anything else.
// n==0 pushes the empty string; n==1 leaves the single value unchanged.
func Concat(t *state.Thread, call func(fn, a, b value.Value) (value.Value, error), n int) error {
	if n == 0 {
		Push(t, value.FromObject(t.Global.InternString("")))
		return nil
	}
	for n > 1 {
		a := t.Stack[t.Top-2]
		b := t.Stack[t.Top-1]
		if sa, aok := coerceStr(a); aok {
			if sb, bok := coerceStr(b); bok {
				t.Top--
				t.Stack[t.Top-1] = value.FromObject(t.Global.InternString(sa + sb))
				n--
				continue
			}
		}
		tm := meta.GetTM(t, a, state.TMConcat)
		if tm.IsNil() {
			tm = meta.GetTM(t, b, state.TMConcat)
		}
		if tm.IsNil() {
			bad := a
			if _, ok := coerceStr(a); ok {
				bad = b
			}
			return fmt.Errorf("attempt to concatenate a %s value", bad.Tag())
		}
		res, err := call(tm, a, b)
		if err != nil {
			return err
		}
		t.Top--
		t.Stack[t.Top-1] = res
		n--
	}
	return nil
}

func coerceStr(v value.Value) (string, bool) {
	if obj, ok := v.Object(); ok {
		if s, ok := obj.(interface{ Value() string }); ok {
			return s.Value(), true
		}
	}
	if v.Tag() == value.TagNumber {
		return v.String(), true
	}
	return "", false
}
