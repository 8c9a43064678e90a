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

// Package probe wires a runtime instance up from declarative
// configuration: GC defaults and where the chunk cache lives on disk.
// Stack limits are not configurable; they are fixed constants in
// package state.
package probe

import (
	"os"

	"github.com/naoina/toml"

	"github.com/probechain/probe-lang/capi"
	"github.com/probechain/probe-lang/chunkcache"
)

// Config is the declarative shape a host loads from a TOML file (or
// builds directly) to construct a runtime instance.
type Config struct {
	GC struct {
		Pause        int  `toml:"pause"`
		StepMul      int  `toml:"step_mul"`
		Generational bool `toml:"generational"`
	} `toml:"gc"`

	// ChunkCacheDir, if non-empty, persists compiled chunks to disk at
	// this path across process restarts; empty selects an in-memory
	// cache that does not survive the process.
	ChunkCacheDir string `toml:"chunk_cache_dir"`
}

// DefaultConfig returns the configuration NewState uses when none is
// supplied: the original implementation's historical GC pause (200%)
// and step multiplier (200%), and an in-memory chunk cache.
func DefaultConfig() *Config {
	c := &Config{}
	c.GC.Pause = 200
	c.GC.StepMul = 200
	return c
}

// LoadConfig reads and decodes a TOML configuration file, grounded on
// the node-configuration convention this codebase already uses TOML for.
func LoadConfig(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	c := DefaultConfig()
	if err := toml.NewDecoder(f).Decode(c); err != nil {
		return nil, err
	}
	return c, nil
}

// Instance bundles a runtime's embedding-API handle with the chunk
// cache NewState opened for it, so the host can Close both together.
type Instance struct {
	*capi.State
	Chunks *chunkcache.Cache
}

// NewState constructs a runtime instance from cfg (DefaultConfig() if
// nil): a fresh capi.State with the configured GC defaults applied, and
// a chunk cache opened at ChunkCacheDir (or in-memory if empty).
func NewState(cfg *Config) (*Instance, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	st := capi.NewState(nil)
	st.Global.GC.Pause = cfg.GC.Pause
	st.Global.GC.StepMul = cfg.GC.StepMul
	st.Global.GC.Generational = cfg.GC.Generational

	var cache *chunkcache.Cache
	var err error
	if cfg.ChunkCacheDir != "" {
		cache, err = chunkcache.Open(cfg.ChunkCacheDir)
	} else {
		cache, err = chunkcache.OpenMem()
	}
	if err != nil {
		return nil, err
	}

	return &Instance{State: st, Chunks: cache}, nil
}

// Close releases the instance's chunk cache. The Go heap reclaims the
// rest of the instance's memory once it is no longer reachable.
func (in *Instance) Close() error {
	return in.Chunks.Close()
}
