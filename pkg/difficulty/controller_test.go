// Copyright (c) 2025-2026 The BitQuill developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package difficulty

import (
	"math"
	"testing"
)

func TestAdjustClampsToMaxFactor(t *testing.T) {
	c := New(DefaultConfig())
	c.difficulty = 4
	// mean interval far below target => factor would exceed max_factor
	// without clamping.
	got := c.Adjust(1)
	want := uint8(math.Round(4 * 4)) // clamp(200/1, 0.25, 4) == 4
	if got != want {
		t.Fatalf("Adjust() = %d, want %d", got, want)
	}
}

func TestAdjustStaysWithinBounds(t *testing.T) {
	cfg := DefaultConfig()
	c := New(cfg)
	for _, mean := range []float64{0.001, 1, 50, 200, 1000, 100000} {
		got := c.Adjust(mean)
		if got < cfg.MinDifficulty || got > cfg.MaxDifficulty {
			t.Fatalf("difficulty %d out of bounds [%d,%d]", got, cfg.MinDifficulty, cfg.MaxDifficulty)
		}
	}
}

func TestAdjustRatioBoundedByMaxFactor(t *testing.T) {
	cfg := DefaultConfig()
	c := New(cfg)
	c.difficulty = 10
	before := c.difficulty
	after := c.Adjust(1) // extreme mean interval
	ratio := float64(after) / float64(before)
	if ratio > cfg.MaxFactor+1e-9 {
		t.Fatalf("adjustment ratio %f exceeds max_factor %f", ratio, cfg.MaxFactor)
	}
}

func TestAdjustIdempotentGivenSameStats(t *testing.T) {
	c := New(DefaultConfig())
	first := c.Adjust(200)
	second := c.Adjust(200)
	if first != second {
		t.Fatalf("expected idempotent adjustment at steady state, got %d then %d", first, second)
	}
}

func TestShouldAdjustCadence(t *testing.T) {
	c := New(DefaultConfig())
	if c.ShouldAdjust(0) {
		t.Fatalf("edit 0 should not trigger adjustment")
	}
	if !c.ShouldAdjust(201) {
		t.Fatalf("edit 201 should trigger adjustment")
	}
	if c.ShouldAdjust(200) {
		t.Fatalf("edit 200 should not trigger adjustment")
	}
}
