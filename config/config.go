// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

// Package config defines the on-disk configuration of a container and its
// load/save semantics. A Config is written once at init and is read-only
// thereafter; nothing in this package mutates a Config after construction.
package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/unkcpz/rsdos/modules/codec"
	"github.com/unkcpz/rsdos/modules/digest"
	"github.com/unkcpz/rsdos/modules/rsdoserr"
)

const (
	// Version is the current container_version this package writes and
	// expects. Future versions may add migration logic here.
	Version = 1

	DefaultLoosePrefixLen = 2
	DefaultPackSizeTarget = 4 * 1024 * 1024 * 1024 // 4 GiB
	DefaultCompression    = "zlib+1"

	FileName = "config.json"
)

// Config is the bit-exact shape of config.json. Field names and JSON tags
// must not change: they are the on-disk contract.
type Config struct {
	ContainerVersion     int    `json:"container_version"`
	LoosePrefixLen       int    `json:"loose_prefix_len"`
	PackSizeTarget       int64  `json:"pack_size_target"`
	HashType             string `json:"hash_type"`
	CompressionAlgorithm string `json:"compression_algorithm"`
	ContainerID          string `json:"container_id"`
}

// Default returns a Config with every field at its documented default,
// except container_id which is always freshly randomized.
func Default() Config {
	return Config{
		ContainerVersion:     Version,
		LoosePrefixLen:       DefaultLoosePrefixLen,
		PackSizeTarget:       DefaultPackSizeTarget,
		HashType:             digest.HashType,
		CompressionAlgorithm: DefaultCompression,
		ContainerID:          newContainerID(),
	}
}

func newContainerID() string {
	id := uuid.New()
	// config.json wants 32 hex chars with no dashes.
	b := id[:]
	return fmt.Sprintf("%x", b)
}

// Validate checks the invariants this package's callers rely on:
// loose_prefix_len in range, hash_type supported, compression_algorithm
// parseable.
func (c Config) Validate() error {
	if c.LoosePrefixLen < 0 || c.LoosePrefixLen > digest.HexSize-1 {
		return rsdoserr.Config(nil, "loose_prefix_len %d out of range [0,%d]", c.LoosePrefixLen, digest.HexSize-1)
	}
	if c.HashType != digest.HashType {
		return rsdoserr.Config(nil, "unsupported hash_type %q", c.HashType)
	}
	if _, err := codec.Parse(c.CompressionAlgorithm); err != nil {
		return rsdoserr.Config(err, "invalid compression_algorithm %q", c.CompressionAlgorithm)
	}
	return nil
}

// Algo parses the stored compression_algorithm string.
func (c Config) Algo() (codec.Algo, error) {
	return codec.Parse(c.CompressionAlgorithm)
}

// Load reads and parses the config.json file at path. Unknown fields are ignored
// by encoding/json by default; missing fields keep their Go zero value,
// which callers should treat per the documented defaults.
func Load(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Config{}, rsdoserr.NotInitializedf("config file %s does not exist", path)
		}
		return Config{}, rsdoserr.IO(err, "reading %s", path)
	}
	var c Config
	if err := json.Unmarshal(b, &c); err != nil {
		return Config{}, rsdoserr.Config(err, "parsing %s", path)
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Save writes c to path as indented JSON. It does not create parent
// directories; the caller (container init) is responsible for the
// directory layout.
func Save(path string, c Config) error {
	b, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return rsdoserr.Config(err, "encoding config")
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return rsdoserr.IO(err, "writing %s", path)
	}
	return nil
}
