// Copyright (c) 2025-2026 The BitQuill developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package pow implements the proof-of-work puzzle attached to each edit:
// given a payload and a difficulty, find a nonce whose hash has at least
// that many leading zero bits.
package pow

import (
	"crypto/rand"
	"encoding/binary"
	"time"

	"github.com/bitquill/provenance/pkg/digest"
)

// yieldInterval is how many hash attempts pass between cooperative yield
// checkpoints, so a single-threaded host stays responsive during a seal.
const yieldInterval = 4096

// Result is the outcome of a successful Seal.
type Result struct {
	Nonce     uint64
	ElapsedMs int64
}

// Seal finds a nonce for payload at the given difficulty (required
// leading zero bits, 0-255) and reports how long it took. yield, if
// non-nil, is called every yieldInterval attempts with the number of
// attempts made so far; it exists so a cooperative host can repaint or
// report progress, not to cancel the search. There is no cancellation
// mid-seal: a caller who wants to abandon a seal simply does not use the
// result, since nothing has been committed yet.
func Seal(payload []byte, difficulty uint8, yield func(iterations uint64)) (Result, error) {
	start := time.Now()

	nonce, err := randomNonce()
	if err != nil {
		return Result{}, err
	}

	var iterations uint64
	buf := make([]byte, 8)
	for {
		binary.LittleEndian.PutUint64(buf, nonce)
		h := digest.SumConcat(payload, buf)
		if digest.LeadingZeroBits(h) >= int(difficulty) {
			return Result{
				Nonce:     nonce,
				ElapsedMs: time.Since(start).Milliseconds(),
			}, nil
		}
		nonce++
		iterations++
		if iterations%yieldInterval == 0 && yield != nil {
			yield(iterations)
		}
	}
}

// Verify reports whether nonce seals payload at difficulty. It performs
// the same fixed amount of work regardless of nonce value: one digest and
// one leading-zero-bit count.
func Verify(payload []byte, nonce uint64, difficulty uint8) bool {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, nonce)
	h := digest.SumConcat(payload, buf)
	return digest.LeadingZeroBits(h) >= int(difficulty)
}

func randomNonce() (uint64, error) {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b[:]), nil
}
