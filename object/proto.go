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

// UpvalDesc describes, at prototype level, where a closure's upvalue
// comes from when the closure is instantiated: either a register in the
// immediately enclosing function's stack frame (InStack) or one of the
// enclosing function's own upvalues.
type UpvalDesc struct {
	Name    string
	InStack bool
	Index   uint8
}

// LocalVarInfo is debug-only bookkeeping for a local variable's lifetime,
// used by line-level debug info and not consulted by the interpreter's
// hot path.
type LocalVarInfo struct {
	Name    string
	StartPC int
	EndPC   int
}

// Proto is a compiled function prototype: the immutable template a
// closure is instantiated from. It holds the constant pool, the
// instruction stream, nested prototypes for function literals defined
// inside this one, upvalue descriptors, and debug info.
type Proto struct {
	Header

	Constants []value.Value
	Code      []uint32
	Protos    []*Proto
	Upvalues  []UpvalDesc

	NumParams   uint8
	IsVararg    bool
	MaxStack    uint8

	LineInfo []int32 // LineInfo[pc] is the source line of instruction pc
	Locals   []LocalVarInfo
	Source   string
}

var _ value.Collectable = (*Proto)(nil)

// NewProto returns an empty Proto ready to be filled in by the compiler.
func NewProto(source string) *Proto {
	return &Proto{Header: NewHeader(value.TagFunction), Source: source}
}

func (p *Proto) String() string { return "proto: " + p.Source }
