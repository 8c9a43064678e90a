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

// GoFunction is the signature every host ("C function" in the original)
// callable implements. act is the calling frame's Activation view; the
// return value is the number of results the function pushed, or an
// error to be raised as a script-visible error object.
type GoFunction func(act value.Activation) (int, error)

// ScriptClosure pairs a compiled Proto with the Upvalues captured at the
// point the function literal was evaluated.
type ScriptClosure struct {
	Header

	Proto    *Proto
	Upvalues []*Upvalue
}

var _ value.Collectable = (*ScriptClosure)(nil)

// NewScriptClosure allocates a closure over proto with one empty upvalue
// slot per entry of proto.Upvalues, filled in by the caller as each is either opened against
// the defining frame's stack or copied from the enclosing closure.
func NewScriptClosure(proto *Proto) *ScriptClosure {
	return &ScriptClosure{
		Header:   NewHeader(value.TagFunction),
		Proto:    proto,
		Upvalues: make([]*Upvalue, len(proto.Upvalues)),
	}
}

func (c *ScriptClosure) String() string { return "function: script" }

// HostClosure wraps a GoFunction together with its own captured upvalues
// (plain values, not shared cells, since host closures have no script
// frame for other closures to alias into).
type HostClosure struct {
	Header

	Fn       GoFunction
	Upvalues []value.Value
	Name     string // for error messages and debug info only
}

var _ value.Collectable = (*HostClosure)(nil)

// NewHostClosure wraps fn with the given captured upvalues.
func NewHostClosure(name string, fn GoFunction, upvalues ...value.Value) *HostClosure {
	return &HostClosure{
		Header:   NewHeader(value.TagFunction),
		Fn:       fn,
		Upvalues: upvalues,
		Name:     name,
	}
}

func (c *HostClosure) String() string {
	if c.Name == "" {
		return "function: host"
	}
	return "function: " + c.Name
}
