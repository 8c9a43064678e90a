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

package state

import (
	"math/rand"

	"github.com/VictoriaMetrics/fastcache"
	lru "github.com/hashicorp/golang-lru"
	"github.com/google/uuid"

	"github.com/probechain/probe-lang/internal/rtlog"
	"github.com/probechain/probe-lang/object"
	"github.com/probechain/probe-lang/value"
)

// Registry reserved integer keys.
const (
	RIDXMainThread = 1
	RIDXGlobals    = 2
	RIDXLast       = RIDXGlobals
)

// TM is the canonical tag-method id, in the exact order ltm.c's TMS enum
// declares it, preserved per the Open Question logged in DESIGN.md.
type TM int

const (
	TMIndex TM = iota
	TMNewIndex
	TMGC
	TMMode
	TMLen
	TMEq
	TMAdd
	TMSub
	TMMul
	TMDiv
	TMMod
	TMPow
	TMUnm
	TMLt
	TMLe
	TMConcat
	TMCall
	tmCount
)

// FastTMCount mirrors object.FastTMCount: only the first six tag methods
// are eligible for a table's absence-cache bit.
const FastTMCount = object.FastTMCount

var tmNames = [tmCount]string{
	"__index", "__newindex", "__gc", "__mode", "__len", "__eq",
	"__add", "__sub", "__mul", "__div", "__mod", "__pow", "__unm",
	"__lt", "__le", "__concat", "__call",
}

// AllocFunc mirrors the embedding API's allocator callback: realloc-style
// signature covering alloc (ptr==nil), realloc, and free (newSize==0).
type AllocFunc func(ptr []byte, oldSize, newSize int) []byte

// PanicFunc is invoked when an error surfaces with no protected boundary
// active anywhere on the instance.
type PanicFunc func(msg string)

// GCState is the bookkeeping surface the gc() embedding command reads
// and writes; no tracing collector is implemented here, only the
// accounting Go's own collector does not otherwise expose per-instance.
type GCState struct {
	TotalBytes int64
	Debt       int64
	Running    bool
	Pause      int
	StepMul    int
	Generational bool
}

// SetDebt adjusts Debt while preserving the sum TotalBytes+Debt.
func (g *GCState) SetDebt(newDebt int64) {
	delta := newDebt - g.Debt
	g.TotalBytes -= delta
	g.Debt = newDebt
}

// GlobalState is the state shared by every thread of one runtime
// instance. Exactly one exists per instance, anchored by the main
// thread.
type GlobalState struct {
	Alloc   AllocFunc
	Panic   PanicFunc

	GC GCState

	// HashSeed randomizes string hashing per instance, mitigating
	// hash-flooding from untrusted script input.
	HashSeed uint64

	Registry *object.Table

	// StrCache is a fixed-capacity fastcache allocated with the instance.
	// Nothing reads or writes it: InternString interns short strings in
	// the interned map below.
	StrCache *fastcache.Cache
	interned map[string]*object.String

	// MetaPrimitive holds the one shared metatable per primitive type
	// that cannot carry its own (every type except table and userdata),
	// indexed by value.Tag.
	MetaPrimitive [10]*object.Table

	// TMCache is a 256-entry LRU cache allocated with the instance. No
	// lookup consults it: meta.GetTM reads the metatable by name on every
	// call, and table metamethod lookups through meta.FastTM use the
	// table's own fast-access flag byte (object.Table.Flags).
	TMCache *lru.Cache

	MainThread *Thread

	// AllGC is the head of the global allgc list; Go's own collector
	// reclaims memory, this list is bookkeeping surface only. Nothing in
	// this module links objects into it or walks it (the gc COUNT query
	// reads GC.TotalBytes).
	AllGC object.Collectable

	ID uuid.UUID
}

// NewGlobalState constructs a fresh instance: an empty registry table
// (the globals table is created in it on first use by Globals; the main
// thread is not stored in it), a randomized hash seed, an empty string
// intern map, and per-primitive-type metatable slots.
func NewGlobalState(alloc AllocFunc) *GlobalState {
	if alloc == nil {
		alloc = defaultAlloc
	}
	cache, err := lru.New(256)
	if err != nil {
		// lru.New only fails for a non-positive size; 256 is a literal,
		// so this path is unreachable in practice.
		rtlog.Default.Error("state: tag-method cache init failed, dispatch will re-lookup every call", "err", err)
	}
	g := &GlobalState{
		Alloc:    alloc,
		HashSeed: rand.Uint64(),
		Registry: object.NewTable(0, 4),
		StrCache: fastcache.New(4 * 1024 * 1024),
		interned: make(map[string]*object.String),
		TMCache:  cache,
		ID:       uuid.New(),
	}
	g.GC.Running = true
	g.GC.Pause = 200
	g.GC.StepMul = 200
	return g
}

func defaultAlloc(ptr []byte, oldSize, newSize int) []byte {
	if newSize == 0 {
		return nil
	}
	buf := make([]byte, newSize)
	copy(buf, ptr)
	return buf
}

// TMName returns the interned tag-method name string for m.
func TMName(m TM) string { return tmNames[m] }

// InternString returns the canonical *object.String for s, creating and
// caching it if this is the first occurrence. Only short strings (per
// object.IsShort) are interned; long strings get a fresh, uninterned
// object.String every time.
func (g *GlobalState) InternString(s string) *object.String {
	if !object.IsShort(s) {
		return object.NewLong(s)
	}
	if existing, ok := g.interned[s]; ok {
		return existing
	}
	str := object.NewShort(s, g.HashSeed)
	g.interned[s] = str
	return str
}

// Globals returns the globals table anchored at the registry's
// RIDXGlobals slot, creating it on first access.
func (g *GlobalState) Globals() *object.Table {
	key := value.Number(RIDXGlobals)
	v := g.Registry.Get(key)
	if t, ok := v.Object(); ok {
		if tbl, ok := t.(*object.Table); ok {
			return tbl
		}
	}
	tbl := object.NewTable(0, 32)
	g.Registry.Set(key, value.FromObject(tbl))
	return tbl
}

// MetatableFor returns the metatable for a value whose own object does
// not carry one (every tag other than Table and Userdata), or nil.
func (g *GlobalState) MetatableFor(tag value.Tag) *object.Table {
	return g.MetaPrimitive[tag]
}

// SetMetatableFor installs the shared metatable for primitive tag t.
func (g *GlobalState) SetMetatableFor(tag value.Tag, mt *object.Table) {
	g.MetaPrimitive[tag] = mt
}
