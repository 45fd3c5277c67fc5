// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

// Package digest implements the object identifier used throughout the
// store: a streaming SHA-256 digest of an object's content, represented as
// 32 raw bytes or as 64 lowercase hex characters.
package digest

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"hash"
	"sort"

	"github.com/unkcpz/rsdos/modules/rsdoserr"
)

const (
	Size    = sha256.Size // 32
	HexSize = Size * 2    // 64

	// HashType is the algorithm this package implements; it is the value
	// written into config.json's hash_type field.
	HashType = "sha256"

	reverseHexTable = "" +
		"\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff" +
		"\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff" +
		"\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff" +
		"\x00\x01\x02\x03\x04\x05\x06\x07\x08\x09\xff\xff\xff\xff\xff\xff" +
		"\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff" +
		"\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff" +
		"\xff\x0a\x0b\x0c\x0d\x0e\x0f\xff\xff\xff\xff\xff\xff\xff\xff\xff" +
		"\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff" +
		"\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff" +
		"\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff" +
		"\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff" +
		"\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff" +
		"\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff" +
		"\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff" +
		"\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff" +
		"\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff"
)

// Hash is a SHA-256 digest over an object's content.
type Hash [Size]byte

// ZeroHash is never a valid digest of any content; it is a sentinel for "no
// value".
var ZeroHash Hash

func (h Hash) MarshalJSON() ([]byte, error) {
	return json.Marshal(h.String())
}

func (h *Hash) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	hashBytes, _ := hex.DecodeString(s)
	copy(h[:], hashBytes)
	return nil
}

func (h Hash) MarshalText() ([]byte, error) {
	return []byte(h.String()), nil
}

func (h *Hash) UnmarshalText(text []byte) error {
	hashBytes, _ := hex.DecodeString(string(text))
	copy(h[:], hashBytes)
	return nil
}

// NewHash decodes a hex digest without validation; malformed input silently
// yields a partial or zero Hash. Use NewHashEx for untrusted input.
func NewHash(s string) Hash {
	b, _ := hex.DecodeString(s)
	var h Hash
	copy(h[:], b)
	return h
}

func (h Hash) IsZero() bool {
	return h == ZeroHash
}

func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

// HashesSort sorts a slice of Hashes in increasing lexicographic order, the
// determinism pack-all-loose relies on when enumerating loose objects.
func HashesSort(a []Hash) {
	sort.Sort(HashSlice(a))
}

type HashSlice []Hash

func (p HashSlice) Len() int           { return len(p) }
func (p HashSlice) Less(i, j int) bool { return bytes.Compare(p[i][:], p[j][:]) < 0 }
func (p HashSlice) Swap(i, j int)      { p[i], p[j] = p[j], p[i] }

// ValidateHex reports whether s is exactly HexSize lowercase hex characters:
// the only form the store ever writes to disk or accepts on lookup.
func ValidateHex(s string) bool {
	if len(s) != HexSize {
		return false
	}
	for i := 0; i < len(s); i++ {
		if reverseHexTable[s[i]] > 0x0f {
			return false
		}
	}
	return true
}

// NewHashEx decodes and validates a hex digest.
func NewHashEx(s string) (Hash, error) {
	if !ValidateHex(s) {
		return ZeroHash, rsdoserr.InvalidDigestf("%q is not a valid digest", s)
	}
	return NewHash(s), nil
}

// IsShardDir reports whether s looks like a loose-store shard directory
// name: lowercase hex, at least one and at most HexSize-1 characters long.
func IsShardDir(s string) bool {
	if len(s) == 0 || len(s) >= HexSize {
		return false
	}
	for i := 0; i < len(s); i++ {
		if reverseHexTable[s[i]] > 0x0f {
			return false
		}
	}
	return true
}

// Hasher is a streaming SHA-256 accumulator. It is an io.Writer, so it can
// sit in an io.MultiWriter or io.TeeReader chain and accumulate a digest of
// everything written through it without buffering. Its Sum returns a Hash
// and so differs from hash.Hash.Sum: Hasher itself does not satisfy
// hash.Hash, but its embedded Hash field does.
type Hasher struct {
	hash.Hash
}

func NewHasher() Hasher {
	return Hasher{Hash: sha256.New()}
}

// Sum returns the Hash of everything written so far.
func (h Hasher) Sum() (out Hash) {
	copy(out[:], h.Hash.Sum(nil))
	return
}
