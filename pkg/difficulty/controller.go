// Copyright (c) 2025-2026 The BitQuill developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package difficulty implements the dynamic difficulty controller: it
// reads the edit analyzer's aggregate statistics periodically and
// re-targets the proof-of-work difficulty within bounds using a bounded
// multiplicative adjustment.
package difficulty

import "math"

// Config holds the controller's tunables.
type Config struct {
	TargetIntervalMs   float64
	MaxFactor          float64
	MinDifficulty      uint8
	MaxDifficulty      uint8
	AdjustmentInterval int // edits between adjustments
}

// DefaultConfig returns tunables calibrated to human typing cadence:
// target 200ms between edits, max adjustment factor 4x, difficulty
// bounded to [1, 32], re-evaluation every 201 edits.
func DefaultConfig() Config {
	return Config{
		TargetIntervalMs:   200,
		MaxFactor:          4,
		MinDifficulty:      1,
		MaxDifficulty:      32,
		AdjustmentInterval: 201,
	}
}

// Controller tracks the current difficulty and adjusts it against the
// analyzer's geometric-mean interval statistic.
type Controller struct {
	cfg        Config
	difficulty uint8
}

// New constructs a Controller starting at the minimum difficulty.
func New(cfg Config) *Controller {
	if cfg.MinDifficulty == 0 {
		cfg.MinDifficulty = 1
	}
	return &Controller{cfg: cfg, difficulty: cfg.MinDifficulty}
}

// Difficulty returns the current difficulty.
func (c *Controller) Difficulty() uint8 {
	return c.difficulty
}

// ShouldAdjust reports whether totalEdits lands on an adjustment
// boundary, per the AdjustmentInterval cadence.
func (c *Controller) ShouldAdjust(totalEdits int) bool {
	if c.cfg.AdjustmentInterval <= 0 {
		return false
	}
	return totalEdits > 0 && totalEdits%c.cfg.AdjustmentInterval == 0
}

// Adjust recomputes the difficulty from meanIntervalMs and returns the
// new value. Adjust is the only mutator of difficulty outside
// construction.
func (c *Controller) Adjust(meanIntervalMs float64) uint8 {
	if meanIntervalMs <= 0 {
		meanIntervalMs = 1
	}
	factor := c.cfg.TargetIntervalMs / meanIntervalMs
	factor = clamp(factor, 1/c.cfg.MaxFactor, c.cfg.MaxFactor)

	next := math.Round(float64(c.difficulty) * factor)
	next = clamp(next, float64(c.cfg.MinDifficulty), float64(c.cfg.MaxDifficulty))

	c.difficulty = uint8(next)
	return c.difficulty
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
