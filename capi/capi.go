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

// Package capi is the embedding surface a host program uses to drive a
// runtime instance: create it, push and read values on a thread's
// stack, call into scripts, and protect those calls against runtime
// errors. Each group below corresponds to one of a C-style embedding
// API's traditional sections (stack, push, query, access, mutate,
// execute, GC), renamed to Go convention and built entirely on package
// vm, meta, coroutine, state, object, and value.
package capi

import (
	"github.com/probechain/probe-lang/coroutine"
	"github.com/probechain/probe-lang/meta"
	"github.com/probechain/probe-lang/object"
	"github.com/probechain/probe-lang/state"
	"github.com/probechain/probe-lang/value"
	"github.com/probechain/probe-lang/vm"
)

// State is one runtime instance as the host sees it: a global state
// plus the thread currently being driven. Creating additional threads
// (NewThread) yields more State values sharing the same GlobalState.
type State struct {
	Global *state.GlobalState
	Thread *state.Thread
}

// NewState creates a fresh instance with its main thread, wired with
// alloc as the allocator (nil selects the built-in one). Mirrors
// lua_newstate/lua_close pairing the original API exposes as two calls;
// here State simply goes out of scope, since an instance's memory is
// ordinary Go heap the collector already reclaims.
func NewState(alloc state.AllocFunc) *State {
	g := state.NewGlobalState(alloc)
	th := state.NewThread(g)
	g.MainThread = th
	return &State{Global: g, Thread: th}
}

// NewThread creates a new cooperative thread sharing s's global state,
// pushes it onto s's stack, and returns a State handle for it. The
// caller keeps the returned value's Thread reachable from script state
// (e.g. a table) for as long as it must stay alive.
func (s *State) NewThread() *State {
	th := state.NewThread(s.Global)
	vm.Push(s.Thread, value.FromObject(th))
	return &State{Global: s.Global, Thread: th}
}

// AtPanic installs fn as the instance's panic handler, invoked when an
// error is thrown with no protected boundary anywhere on the call
// chain, and returns the previously installed handler (nil if none).
func (s *State) AtPanic(fn state.PanicFunc) state.PanicFunc {
	old := s.Global.Panic
	s.Global.Panic = fn
	return old
}

// ---- Stack manipulation ----------------------------------------------------

// AbsIndex converts a possibly-relative index into an absolute one.
func (s *State) AbsIndex(idx int) int { return vm.AbsIndex(s.Thread, idx) }

// GetTop returns the index of the top stack slot, equivalently the
// number of values currently on the stack.
func (s *State) GetTop() int { return vm.GetTop(s.Thread) }

// SetTop sets the stack top to idx, padding with nil or discarding
// values as needed.
func (s *State) SetTop(idx int) { vm.SetTop(s.Thread, idx) }

// Pop discards the top n values.
func (s *State) Pop(n int) { vm.SetTop(s.Thread, -n-1) }

// PushValue pushes a copy of the value at idx.
func (s *State) PushValue(idx int) { vm.PushValue(s.Thread, idx) }

// Remove removes the value at idx, shifting everything above it down.
func (s *State) Remove(idx int) { vm.Remove(s.Thread, idx) }

// Insert moves the top value into position idx, shifting values at and
// above idx up by one.
func (s *State) Insert(idx int) { vm.Insert(s.Thread, idx) }

// Replace moves the top value into idx, replacing what was there and
// popping the top.
func (s *State) Replace(idx int) { vm.Replace(s.Thread, idx) }

// Copy copies the value at fromIdx into toIdx without touching the top.
func (s *State) Copy(fromIdx, toIdx int) { vm.Copy(s.Thread, fromIdx, toIdx) }

// CheckStack ensures n more slots are available, returning false if
// growth would exceed the instance's hard stack ceiling.
func (s *State) CheckStack(n int) bool { return vm.CheckStack(s.Thread, n) }

// XMove moves n values from the top of from's stack to the top of to's
// stack; from and to must share the same GlobalState.
func XMove(from, to *State, n int) {
	for i := 0; i < n; i++ {
		v := vm.PopValue(from.Thread)
		vm.Push(to.Thread, v)
	}
}

// ---- Push group -------------------------------------------------------------

func (s *State) PushNil()            { vm.Push(s.Thread, value.Nil) }
func (s *State) PushBoolean(b bool)  { vm.Push(s.Thread, value.Bool(b)) }
func (s *State) PushNumber(n float64) { vm.Push(s.Thread, value.Number(n)) }

// PushString pushes str as a string value; short strings are interned,
// long strings get a fresh object on each push.
func (s *State) PushString(str string) {
	vm.Push(s.Thread, value.FromObject(s.Global.InternString(str)).WithVariant(stringVariant(str)))
}

func stringVariant(s string) value.Variant {
	if object.IsShort(s) {
		return value.VariantShortString
	}
	return value.VariantLongString
}

// PushLightUserdata pushes an opaque host pointer.
func (s *State) PushLightUserdata(p interface{}) { vm.Push(s.Thread, value.LightUserdata(p)) }

// PushLightFunction pushes a bare host function with no upvalues.
func (s *State) PushLightFunction(fn value.LightFunc) { vm.Push(s.Thread, value.LightFunction(fn)) }

// PushClosure pops n values off the stack as upvalues and pushes a new
// host closure over fn capturing them.
func (s *State) PushClosure(name string, fn object.GoFunction, n int) {
	ups := make([]value.Value, n)
	for i := 0; i < n; i++ {
		ups[i] = vm.PopValue(s.Thread)
	}
	// Upvalues were popped in reverse (top first); restore declaration order.
	for i, j := 0, len(ups)-1; i < j; i, j = i+1, j-1 {
		ups[i], ups[j] = ups[j], ups[i]
	}
	vm.Push(s.Thread, value.FromObject(object.NewHostClosure(name, fn, ups...)))
}

// PushThread pushes s.Thread itself, reporting whether it is the
// instance's main thread.
func (s *State) PushThread() bool {
	vm.Push(s.Thread, value.FromObject(s.Thread))
	return s.Thread == s.Global.MainThread
}

// ---- Query group ------------------------------------------------------------

func (s *State) Type(idx int) value.Tag { return vm.ValueAt(s.Thread, idx).Tag() }

func (s *State) TypeName(tag value.Tag) string { return tag.String() }

func (s *State) IsNil(idx int) bool    { return vm.ValueAt(s.Thread, idx).IsNil() }
func (s *State) IsBoolean(idx int) bool { return vm.ValueAt(s.Thread, idx).Tag() == value.TagBoolean }
func (s *State) IsNumber(idx int) bool  { return vm.ValueAt(s.Thread, idx).Tag() == value.TagNumber }
func (s *State) IsString(idx int) bool  { return vm.ValueAt(s.Thread, idx).Tag() == value.TagString }
func (s *State) IsTable(idx int) bool   { return vm.ValueAt(s.Thread, idx).Tag() == value.TagTable }
func (s *State) IsFunction(idx int) bool {
	tag := vm.ValueAt(s.Thread, idx).Tag()
	return tag == value.TagFunction || tag == value.TagLightFunction
}
func (s *State) IsUserdata(idx int) bool {
	tag := vm.ValueAt(s.Thread, idx).Tag()
	return tag == value.TagUserdata || tag == value.TagLightUserdata
}

// RawEqual compares two stack values without invoking __eq.
func (s *State) RawEqual(idx1, idx2 int) bool {
	return value.RawEqual(vm.ValueAt(s.Thread, idx1), vm.ValueAt(s.Thread, idx2))
}

// ToNumber converts the value at idx to a float64, reporting success.
func (s *State) ToNumber(idx int) (float64, bool) {
	v := vm.ValueAt(s.Thread, idx)
	if v.Tag() == value.TagNumber {
		return v.AsNumber(), true
	}
	return 0, false
}

func (s *State) ToBoolean(idx int) bool { return !vm.ValueAt(s.Thread, idx).IsFalsy() }

// ToStringVal returns the value's string payload for string values, or
// ("", false) otherwise; it does not coerce numbers (that is Concat's
// job — reading a value's string payload and coercing a value for
// concatenation are kept as two distinct operations).
func (s *State) ToStringVal(idx int) (string, bool) {
	v := vm.ValueAt(s.Thread, idx)
	if v.Tag() != value.TagString {
		return "", false
	}
	obj, _ := v.Object()
	if str, ok := obj.(*object.String); ok {
		return str.Value(), true
	}
	return "", false
}

// DebugString renders the value at idx via value.Value.String, with no
// __tostring lookup: numbers and strings render literally, heap objects
// by their own String method (for example "table" or "function: name").
func (s *State) DebugString(idx int) string {
	return vm.ValueAt(s.Thread, idx).String()
}

func (s *State) RawLen(idx int) int {
	v := vm.ValueAt(s.Thread, idx)
	switch v.Tag() {
	case value.TagString:
		obj, _ := v.Object()
		return obj.(*object.String).Len()
	case value.TagTable:
		obj, _ := v.Object()
		return obj.(*object.Table).Len()
	case value.TagUserdata:
		obj, _ := v.Object()
		return obj.(*object.Userdata).Len()
	default:
		return 0
	}
}

// ---- Access group (get) -----------------------------------------------------

// GetGlobal pushes the value of the named global.
func (s *State) GetGlobal(name string) error {
	key := value.FromObject(s.Global.InternString(name))
	v, err := vm.GetIndex(s.Thread, value.FromObject(s.Global.Globals()), key)
	if err != nil {
		return err
	}
	vm.Push(s.Thread, v)
	return nil
}

// GetTable replaces the top of stack (the key) with table[key], where
// table is at idx. Follows __index.
func (s *State) GetTable(idx int) error {
	tbl := vm.ValueAt(s.Thread, idx)
	key := vm.PopValue(s.Thread)
	v, err := vm.GetIndex(s.Thread, tbl, key)
	if err != nil {
		return err
	}
	vm.Push(s.Thread, v)
	return nil
}

// GetField pushes table[k], where table is at idx.
func (s *State) GetField(idx int, k string) error {
	tbl := vm.ValueAt(s.Thread, idx)
	key := value.FromObject(s.Global.InternString(k))
	v, err := vm.GetIndex(s.Thread, tbl, key)
	if err != nil {
		return err
	}
	vm.Push(s.Thread, v)
	return nil
}

// RawGet is GetTable without consulting __index.
func (s *State) RawGet(idx int) {
	tbl, _ := vm.ValueAt(s.Thread, idx).Object()
	key := vm.PopValue(s.Thread)
	vm.Push(s.Thread, tbl.(*object.Table).Get(key))
}

// RawGetI is RawGet with an integer key.
func (s *State) RawGetI(idx int, n int) {
	tbl, _ := vm.ValueAt(s.Thread, idx).Object()
	vm.Push(s.Thread, tbl.(*object.Table).Get(value.Number(float64(n))))
}

// CreateTable pushes a new table sized for narr array slots and nrec
// hash slots.
func (s *State) CreateTable(narr, nrec int) {
	vm.Push(s.Thread, value.FromObject(object.NewTable(narr, nrec)))
}

// NewUserdata pushes a fresh userdata of size bytes allocated from a,
// returning its backing buffer for the host to initialize.
func (s *State) NewUserdata(a *object.Arena, size int) []byte {
	u := object.NewUserdata(a, size)
	vm.Push(s.Thread, value.FromObject(u))
	return u.Data
}

// GetMetatable pushes the metatable of the value at idx, reporting
// whether one exists.
func (s *State) GetMetatable(idx int) bool {
	mt := meta.GetMetatable(s.Thread, vm.ValueAt(s.Thread, idx))
	if mt == nil {
		return false
	}
	vm.Push(s.Thread, value.FromObject(mt))
	return true
}

// ---- Mutate group (set) -----------------------------------------------------

// SetGlobal pops the top of stack and assigns it to the named global.
func (s *State) SetGlobal(name string) error {
	val := vm.PopValue(s.Thread)
	key := value.FromObject(s.Global.InternString(name))
	return vm.SetIndex(s.Thread, value.FromObject(s.Global.Globals()), key, val)
}

// SetTable pops a value and a key (value first) and assigns
// table[key] = value, where table is at idx. Follows __newindex.
func (s *State) SetTable(idx int) error {
	tbl := vm.ValueAt(s.Thread, idx)
	val := vm.PopValue(s.Thread)
	key := vm.PopValue(s.Thread)
	return vm.SetIndex(s.Thread, tbl, key, val)
}

// SetField pops a value and assigns table[k] = value.
func (s *State) SetField(idx int, k string) error {
	tbl := vm.ValueAt(s.Thread, idx)
	val := vm.PopValue(s.Thread)
	key := value.FromObject(s.Global.InternString(k))
	return vm.SetIndex(s.Thread, tbl, key, val)
}

// RawSet is SetTable without consulting __newindex.
func (s *State) RawSet(idx int) {
	tbl, _ := vm.ValueAt(s.Thread, idx).Object()
	val := vm.PopValue(s.Thread)
	key := vm.PopValue(s.Thread)
	tbl.(*object.Table).Set(key, val)
}

// SetMetatable pops a table (or nil) and installs it as the metatable
// of the value at objIdx.
func (s *State) SetMetatable(objIdx int) {
	mtVal := vm.PopValue(s.Thread)
	target := vm.ValueAt(s.Thread, objIdx)
	var mt *object.Table
	if obj, ok := mtVal.Object(); ok {
		mt, _ = obj.(*object.Table)
	}
	gc := mt != nil && !mt.GetStr(state.TMName(state.TMGC)).IsNil()
	switch target.Tag() {
	case value.TagTable:
		obj, _ := target.Object()
		tbl := obj.(*object.Table)
		tbl.Metatable = mt
		tbl.HasGC = tbl.HasGC || gc
	case value.TagUserdata:
		obj, _ := target.Object()
		u := obj.(*object.Userdata)
		u.Metatable = mt
		u.HasGC = u.HasGC || gc
	default:
		s.Global.SetMetatableFor(target.Tag(), mt)
	}
}

// ---- Execute group -----------------------------------------------------------

// Call invokes the function at the stack slot nargs+1 below the top
// with nargs arguments already pushed above it, wanting nresults
// results (state.ResultsAll for "all"). Errors propagate to the
// caller; use PCall to trap them.
func (s *State) Call(nargs, nresults int) error {
	funcSlot := s.Thread.Top - nargs - 1
	return vm.Call(s.Thread, funcSlot, nresults, false)
}

// CallK is Call with a continuation usable across a yield nested
// inside the callee.
func (s *State) CallK(nargs, nresults, ctx int, k state.ContinuationFunc) error {
	funcSlot := s.Thread.Top - nargs - 1
	return vm.CallK(s.Thread, funcSlot, nresults, ctx, k)
}

// PCall is Call behind a protected boundary: a thrown error unwinds the
// stack to the function's slot and leaves the error object there
// instead of propagating to the host as a panic. errFunc, if nonzero,
// names a message handler invoked with the error before unwinding
// completes.
func (s *State) PCall(nargs, nresults, errFunc int) state.Status {
	funcSlot := s.Thread.Top - nargs - 1
	return vm.PCall(s.Thread, func() error {
		return vm.Call(s.Thread, funcSlot, nresults, false)
	}, funcSlot, errFunc)
}

// PCallK is PCall with a continuation, marking the new frame as a
// yieldable protected boundary so a later error recovered mid-coroutine
// can still find it.
func (s *State) PCallK(nargs, nresults, errFunc, ctx int, k state.ContinuationFunc) state.Status {
	funcSlot := s.Thread.Top - nargs - 1
	return vm.PCallK(s.Thread, funcSlot, nresults, errFunc, ctx, k)
}

// Resume switches control to s.Thread, running it until it returns,
// yields, or errors; from is the resuming thread (nil selects the main
// thread). nArgs values must already be on s.Thread's stack.
func (s *State) Resume(from *State, nArgs int) state.Status {
	fromThread := s.Global.MainThread
	if from != nil {
		fromThread = from.Thread
	}
	return coroutine.Resume(fromThread, s.Thread, nArgs)
}

// Yield suspends s.Thread with n results already on its stack top.
func (s *State) Yield(n int, ctx int, k state.ContinuationFunc) error {
	return coroutine.Yield(s.Thread, n, ctx, k)
}

// Status reports s.Thread's last resume/yield/error status.
func (s *State) Status() state.Status { return s.Thread.Status }

// Error throws the value on top of the stack as a runtime error,
// transferring control to the nearest protected boundary.
func (s *State) Error() error {
	v := vm.PopValue(s.Thread)
	s.Thread.Throw(state.StatusRuntimeErr, &valueError{v})
	return nil // unreachable: Throw transfers control via panic/recover
}

type valueError struct{ v value.Value }

func (e *valueError) Error() string  { return e.v.String() }
func (e *valueError) Value() value.Value { return e.v }

// Next pushes the key/value pair following the key on top of the
// stack (table at idx), popping that key first; reports false (leaving
// the stack as it found it, key popped) once iteration is exhausted.
func (s *State) Next(idx int) bool {
	tbl, _ := vm.ValueAt(s.Thread, idx).Object()
	key := vm.PopValue(s.Thread)
	nk, nv, ok := tbl.(*object.Table).Next(key)
	if !ok {
		return false
	}
	vm.Push(s.Thread, nk)
	vm.Push(s.Thread, nv)
	return true
}

// Concat pops the top n values and pushes their concatenation,
// following __concat.
func (s *State) Concat(n int) error { return vm.ConcatWithMeta(s.Thread, n) }

// Len pushes the length of the value at idx, following __len.
func (s *State) Len(idx int) error {
	v := vm.ValueAt(s.Thread, idx)
	tm := meta.GetTM(s.Thread, v, state.TMLen)
	if !tm.IsNil() {
		result, err := vm.CallValue1(s.Thread, tm, v)
		if err != nil {
			return err
		}
		vm.Push(s.Thread, result)
		return nil
	}
	vm.Push(s.Thread, value.Number(float64(s.RawLen(idx))))
	return nil
}

// Arith pops the operands Arith's op needs (one for Unm, two
// otherwise) and pushes the result, following the arithmetic
// metamethods.
func (s *State) Arith(op vm.ArithOp) error { return vm.ArithWithMeta(s.Thread, op) }

// Compare reports whether the values at idx1 and idx2 satisfy op,
// following __lt/__le.
func (s *State) Compare(idx1, idx2 int, op vm.CompareOp) (bool, error) {
	return vm.CompareWithMeta(s.Thread, op, vm.ValueAt(s.Thread, idx1), vm.ValueAt(s.Thread, idx2))
}

// ---- GC group ----------------------------------------------------------------

// GCOp selects a gc() embedding command.
type GCOp int

const (
	GCStop GCOp = iota
	GCRestart
	GCCollect
	GCCount
	GCCountB
	GCStep
	GCSetPause
	GCSetStepMul
	GCIsRunning
	GCGenerational
	GCIncremental
)

// GC runs GC command what with argument data, returning a
// command-specific result (byte count, previous pause value, etc.). No
// tracing collector backs this: Go's own collector reclaims runtime
// memory, so Collect/Step are no-ops beyond bookkeeping, matching the
// scope boundary that excludes mark/sweep policy from this runtime.
func (s *State) GC(what GCOp, data int) int {
	gc := &s.Global.GC
	switch what {
	case GCStop:
		gc.Running = false
		return 0
	case GCRestart:
		gc.Running = true
		return 0
	case GCCollect, GCStep:
		return 0
	case GCCount:
		return int(gc.TotalBytes / 1024)
	case GCCountB:
		return int(gc.TotalBytes % 1024)
	case GCSetPause:
		old := gc.Pause
		gc.Pause = data
		return old
	case GCSetStepMul:
		old := gc.StepMul
		gc.StepMul = data
		return old
	case GCIsRunning:
		if gc.Running {
			return 1
		}
		return 0
	case GCGenerational:
		gc.Generational = true
		return 0
	case GCIncremental:
		gc.Generational = false
		return 0
	default:
		return 0
	}
}

// ---- Allocator group -----------------------------------------------------

func (s *State) GetAllocF() state.AllocFunc { return s.Global.Alloc }

func (s *State) SetAllocF(fn state.AllocFunc) { s.Global.Alloc = fn }
