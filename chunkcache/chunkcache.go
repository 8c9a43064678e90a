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

// Package chunkcache persists compiled proto chunks keyed by a hash of
// their source text, so a host that has already compiled and dumped a
// script once can load it back without recompiling. probe.NewState opens
// one alongside each runtime instance; the embedding API in package capi
// has no dump/load calls that use it.
package chunkcache

import (
	"github.com/cespare/xxhash/v2"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/storage"
)

// ErrNotFound is returned by Load when no chunk is cached under key.
var ErrNotFound = leveldb.ErrNotFound

// Cache stores serialized chunks in an embedded LevelDB instance, the
// same storage engine a node's chain database wraps for chain data.
type Cache struct {
	db *leveldb.DB
}

// Open opens (creating if absent) a disk-backed cache rooted at dir.
func Open(dir string) (*Cache, error) {
	db, err := leveldb.OpenFile(dir, nil)
	if err != nil {
		return nil, err
	}
	return &Cache{db: db}, nil
}

// OpenMem opens an in-memory cache, useful for a short-lived embedding
// that does not want chunk persistence across process restarts.
func OpenMem() (*Cache, error) {
	db, err := leveldb.Open(storage.NewMemStorage(), nil)
	if err != nil {
		return nil, err
	}
	return &Cache{db: db}, nil
}

// Key returns the content-addressed cache key for source text src: an
// 8-byte big-endian xxhash digest, reusing the same hash object.String
// already uses for short-string interning.
func Key(src []byte) [8]byte {
	h := xxhash.Sum64(src)
	var k [8]byte
	for i := 0; i < 8; i++ {
		k[i] = byte(h >> (56 - 8*i))
	}
	return k
}

// Store saves the serialized chunk bytes under src's content key,
// overwriting any previous entry.
func (c *Cache) Store(src []byte, chunk []byte) error {
	k := Key(src)
	return c.db.Put(k[:], chunk, nil)
}

// Load retrieves the serialized chunk previously stored for src,
// returning ErrNotFound if none exists.
func (c *Cache) Load(src []byte) ([]byte, error) {
	k := Key(src)
	return c.db.Get(k[:], nil)
}

// Has reports whether a chunk is cached for src without reading it.
func (c *Cache) Has(src []byte) bool {
	k := Key(src)
	ok, err := c.db.Has(k[:], nil)
	return err == nil && ok
}

// Close releases the underlying LevelDB handle.
func (c *Cache) Close() error { return c.db.Close() }
