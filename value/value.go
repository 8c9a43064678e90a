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

// Package value implements the tagged value model of the PROBE runtime:
// the unit that lives on every thread's value stack, in every table slot,
// and in every upvalue.
package value

import "fmt"

// Tag is the main type of a Value, a plain enumeration. It carries no
// variant or collectability bits: Variant below carries the sub-kind, and
// IsCollectable reports collectability.
type Tag uint8

const (
	TagNil Tag = iota
	TagBoolean
	TagNumber
	TagLightUserdata // light host pointer
	TagLightFunction // light host function (bare function pointer)
	TagString
	TagTable
	TagUserdata
	TagFunction // closures: script or host
	TagThread
)

// Variant distinguishes sub-kinds within a main Tag.
type Variant uint8

const (
	VariantNone Variant = iota

	// String variants.
	VariantShortString
	VariantLongString

	// Function variants.
	VariantLuaClosure
	VariantGoClosure
	VariantLightFunction
)

func (t Tag) String() string {
	switch t {
	case TagNil:
		return "nil"
	case TagBoolean:
		return "boolean"
	case TagNumber:
		return "number"
	case TagLightUserdata:
		return "userdata"
	case TagLightFunction:
		return "function"
	case TagString:
		return "string"
	case TagTable:
		return "table"
	case TagUserdata:
		return "userdata"
	case TagFunction:
		return "function"
	case TagThread:
		return "thread"
	default:
		return "unknown"
	}
}

// Collectable is implemented by every heap object kind a Value may
// reference: String, Table, Userdata, closures, Thread. It exposes only
// what the value layer needs; object.Header carries the GC bookkeeping.
type Collectable interface {
	TypeTag() Tag
}

// Value is the tagged union every stack slot, table value, and upvalue
// holds. The zero Value is nil.
type Value struct {
	tag    Tag
	vr     Variant
	num    float64     // TagNumber
	b      bool        // TagBoolean
	ptr    interface{} // TagLightUserdata, TagLightFunction payload, or Collectable
	lightF LightFunc   // TagLightFunction payload when ptr is nil-safe holder
}

// LightFunc is a bare host function pointer with no upvalues.
type LightFunc func(Activation) (int, error)

// Activation is the minimal surface a host function needs from its call
// frame; concrete implementation lives in package vm to avoid an import
// cycle (vm depends on value, not vice versa). Host functions receive a
// concrete *vm.Frame that satisfies this interface.
type Activation interface {
	Arg(i int) Value
	NArgs() int
	Push(Value)
	PushN(...Value)
}

// Nil is the canonical nil value.
var Nil = Value{tag: TagNil}

// True and False are the two boolean values.
var (
	True  = Value{tag: TagBoolean, b: true}
	False = Value{tag: TagBoolean, b: false}
)

// Bool returns the canonical True or False value for b.
func Bool(b bool) Value {
	if b {
		return True
	}
	return False
}

// Number returns a Value wrapping the double-precision float n.
func Number(n float64) Value { return Value{tag: TagNumber, num: n} }

// LightUserdata returns a Value wrapping a bare host pointer. The pointer
// is opaque to the runtime: it participates in raw-equality by identity
// but is never dereferenced or collected.
func LightUserdata(p interface{}) Value {
	return Value{tag: TagLightUserdata, ptr: p}
}

// LightFunction wraps a bare host function with no upvalues.
func LightFunction(fn LightFunc) Value {
	return Value{tag: TagLightFunction, vr: VariantLightFunction, lightF: fn}
}

// FromObject wraps any heap object kind implementing Collectable.
func FromObject(obj Collectable) Value {
	v := Value{tag: obj.TypeTag(), ptr: obj}
	return v
}

// Tag reports the value's main type.
func (v Value) Tag() Tag { return v.tag }

// Variant reports the value's sub-kind, meaningful for strings and
// functions.
func (v Value) Variant() Variant { return v.vr }

// WithVariant returns a copy of v tagged with the given variant; used by
// object constructors (short vs long string, Lua vs Go closure) that
// build the Value alongside the heap object.
func (v Value) WithVariant(vr Variant) Value {
	v.vr = vr
	return v
}

// IsNil reports whether v is the nil value.
func (v Value) IsNil() bool { return v.tag == TagNil }

// IsFalsy reports whether v is one of the two falsy values: nil or
// boolean false. Every other value, including 0 and the empty string, is
// truthy.
func (v Value) IsFalsy() bool {
	return v.tag == TagNil || (v.tag == TagBoolean && !v.b)
}

// AsBool returns the boolean payload; only meaningful when Tag()==TagBoolean.
func (v Value) AsBool() bool { return v.b }

// AsNumber returns the float64 payload; only meaningful when Tag()==TagNumber.
func (v Value) AsNumber() float64 { return v.num }

// AsLightFunc returns the bare host function payload.
func (v Value) AsLightFunc() LightFunc { return v.lightF }

// AsLightUserdata returns the opaque host pointer payload.
func (v Value) AsLightUserdata() interface{} { return v.ptr }

// Object returns the heap object reference for collectable tags, or nil
// (false) for primitive tags.
func (v Value) Object() (Collectable, bool) {
	if v.ptr == nil {
		return nil, false
	}
	c, ok := v.ptr.(Collectable)
	return c, ok
}

// IsCollectable reports whether v's tag references a heap object.
func (v Value) IsCollectable() bool {
	switch v.tag {
	case TagString, TagTable, TagUserdata, TagFunction, TagThread:
		return true
	default:
		return false
	}
}

// RawEqual implements raw (non-metamethod) equality: tags must match
// (including collectability and, for heap objects, object identity),
// numbers compare bitwise, booleans compare by value.
func RawEqual(a, b Value) bool {
	if a.tag != b.tag {
		return false
	}
	switch a.tag {
	case TagNil:
		return true
	case TagBoolean:
		return a.b == b.b
	case TagNumber:
		return a.num == b.num // IEEE-754 equality: NaN is never raw-equal, even to itself
	case TagLightUserdata:
		return a.ptr == b.ptr
	case TagLightFunction:
		return sameLightFunc(a.lightF, b.lightF)
	default:
		// Heap objects: identity comparison on the object reference.
		ao, aok := a.Object()
		bo, bok := b.Object()
		if !aok || !bok {
			return false
		}
		return ao == bo
	}
}

func sameLightFunc(a, b LightFunc) bool {
	// Go does not allow comparing func values directly except to nil;
	// light functions are compared by pointer identity of the underlying
	// code via reflect-free trick: wrap comparison through a registry is
	// overkill for this runtime, so two distinct light functions are
	// never considered raw-equal unless both are nil.
	return a == nil && b == nil
}

// String renders a human-readable representation akin to lua_tolstring's
// default formatting for non-string values (used by error messages and
// tostring-less debug output).
func (v Value) String() string {
	switch v.tag {
	case TagNil:
		return "nil"
	case TagBoolean:
		if v.b {
			return "true"
		}
		return "false"
	case TagNumber:
		return formatNumber(v.num)
	case TagLightUserdata:
		return fmt.Sprintf("userdata: %p", v.ptr)
	case TagLightFunction:
		return "function: builtin"
	default:
		if obj, ok := v.Object(); ok {
			if s, ok := obj.(fmt.Stringer); ok {
				return s.String()
			}
			return fmt.Sprintf("%s: %p", v.tag, obj)
		}
		return "<invalid>"
	}
}

func formatNumber(n float64) string {
	if n == float64(int64(n)) && n < 1e15 && n > -1e15 {
		return fmt.Sprintf("%d", int64(n))
	}
	return fmt.Sprintf("%g", n)
}
