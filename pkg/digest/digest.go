// Copyright (c) 2025-2026 The BitQuill developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package digest implements the single hash primitive the provenance
// engine builds on: SHA-256 over canonical byte strings, with a Hash type
// that marshals to and from lowercase hex.
package digest

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/decred/dcrd/chaincfg/chainhash"
)

// Size is the number of bytes in a Hash.
const Size = sha256.Size

// Hash is a 256-bit digest. Unlike chainhash.Hash it renders in natural
// byte order: leaf hashes, roots, and prev_root bindings all travel as
// straight lowercase hex, both in logs and on the wire.
type Hash chainhash.Hash

// Zero is the all-zero digest used as the genesis leaf's prev_root.
var Zero Hash

// String returns the lowercase hex encoding of h.
func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

// MarshalJSON encodes h as a hex string.
func (h Hash) MarshalJSON() ([]byte, error) {
	return json.Marshal(h.String())
}

// UnmarshalJSON decodes a 64-character hex string into h.
func (h *Hash) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseHex(s)
	if err != nil {
		return err
	}
	*h = parsed
	return nil
}

// Sum returns the SHA-256 digest of b.
func Sum(b []byte) Hash {
	return Hash(sha256.Sum256(b))
}

// Concat joins byte strings without any length prefix or separator. The
// provenance engine only ever concatenates canonical, self-delimiting
// JSON forms and fixed-width digests, so a plain join is unambiguous.
func Concat(parts ...[]byte) []byte {
	n := 0
	for _, p := range parts {
		n += len(p)
	}
	b := make([]byte, 0, n)
	for _, p := range parts {
		b = append(b, p...)
	}
	return b
}

// SumConcat hashes the concatenation of parts.
func SumConcat(parts ...[]byte) Hash {
	return Sum(Concat(parts...))
}

// LeadingZeroBits returns the number of leading zero bits in h, treating h
// as a 256-bit big-endian integer. A difficulty of d leading zero bits
// means LeadingZeroBits(h) >= d.
func LeadingZeroBits(h Hash) int {
	count := 0
	for _, b := range h {
		if b == 0 {
			count += 8
			continue
		}
		for mask := byte(0x80); mask != 0; mask >>= 1 {
			if b&mask != 0 {
				return count
			}
			count++
		}
	}
	return count
}

// ParseHex decodes a hex-encoded 32-byte digest.
func ParseHex(s string) (Hash, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return Hash{}, fmt.Errorf("digest: invalid hex: %w", err)
	}
	return NewHash(b)
}

// NewHash copies b into a Hash, erroring if the length is wrong.
func NewHash(b []byte) (Hash, error) {
	h, err := chainhash.NewHash(b)
	if err != nil {
		return Hash{}, err
	}
	return Hash(*h), nil
}

// File returns the SHA-256 digest of the named file's contents.
func File(filename string) (Hash, error) {
	f, err := os.Open(filename)
	if err != nil {
		return Hash{}, err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return Hash{}, err
	}
	var out Hash
	copy(out[:], h.Sum(nil))
	return out, nil
}
