// Copyright (c) 2025-2026 The BitQuill developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package analyzer implements the edit-pattern analyzer: stateful
// windowed statistics over recent edits that feed the difficulty
// controller and reject obviously non-human edit cadences.
package analyzer

import (
	"fmt"
	"math"

	"github.com/bitquill/provenance/pkg/delta"
)

// Config exposes the analyzer's advisory thresholds.
type Config struct {
	// MinIntervalMs is the hard floor below which sustained fast edits are
	// flagged as suspicious.
	MinIntervalMs float64
	// MinIntervalStreak is the number of consecutive sub-floor intervals
	// at which an edit is rejected: the edit that completes the streak is
	// the first one rejected.
	MinIntervalStreak int
	// MaxBurstSize is how many consecutive identical-size edits are
	// tolerated before a repetition burst is flagged. Single-character
	// edits (ordinary keystrokes) do not count toward a burst.
	MaxBurstSize int
	// MaxChunkChars is the size above which a single edit with no
	// preceding think-time is rejected outright.
	MaxChunkChars uint32
	// WindowSize is the number of trailing edits kept for statistics.
	WindowSize int
	// CorrectionRatioThreshold is the delete/total ratio above which the
	// aggregate correction_rate statistic is considered elevated. It is
	// advisory only and never gates validity by itself.
	CorrectionRatioThreshold float64
}

// DefaultConfig returns thresholds calibrated to human typing speed.
func DefaultConfig() Config {
	return Config{
		MinIntervalMs:            5,
		MinIntervalStreak:        3,
		MaxBurstSize:             8,
		MaxChunkChars:            500,
		WindowSize:               50,
		CorrectionRatioThreshold: 0.5,
	}
}

type record struct {
	timestampMs int64
	size        uint32
	kind        delta.Kind
	isDelete    bool
}

// EditStats is the per-edit result returned by RecordEdit.
type EditStats struct {
	IntervalMs int64      `json:"interval_ms"`
	Size       uint32     `json:"size"`
	Kind       delta.Kind `json:"kind"`
}

// Verdict is the outcome of RecordEdit.
type Verdict struct {
	IsValid    bool       `json:"is_valid"`
	Patterns   []string   `json:"patterns"`
	EditStats  EditStats  `json:"edit_stats"`
	TotalEdits int        `json:"total_edits"`
}

// Stats is the aggregate statistics surfaced to the difficulty controller
// and the host.
type Stats struct {
	GeometricMeanIntervalMs float64 `json:"geometric_mean_interval_ms"`
	BurstRate               float64 `json:"burst_rate"`
	CorrectionRate          float64 `json:"correction_rate"`
	TotalEdits              int     `json:"total_edits"`
}

// Analyzer holds a bounded ring buffer of recent edits. It is not safe for
// concurrent use; per the engine's single-threaded cooperative model, a
// document owns exactly one Analyzer.
type Analyzer struct {
	cfg Config

	window       []record // ring buffer, oldest first
	totalEdits   int
	burstCount   int // consecutive edits of the streak-triggering size
	subFloorRun  int // consecutive sub-floor intervals
	lastSameSize uint32
	haveLastSize bool

	burstEvents   int
	deletiveEdits int
}

// New constructs an Analyzer with the given configuration. WindowSize is
// clamped to a minimum of 1 to avoid degenerate ring-buffer math.
func New(cfg Config) *Analyzer {
	if cfg.WindowSize < 1 {
		cfg.WindowSize = 1
	}
	return &Analyzer{cfg: cfg}
}

// RecordEdit records one edit and returns its validity verdict. previous
// is the composed delta before this edit; it is accepted for
// edit-vs-document-state comparisons (a cursor-jump heuristic would need
// it) but does not affect the verdict computed here.
//
// Failure semantics: RecordEdit never returns an error. Any internal
// inconsistency degrades to a valid verdict tagged "analysis-error" so a
// transient analyzer bug never blocks composition.
func (a *Analyzer) RecordEdit(d delta.Delta, previous delta.Delta, timestampMs int64) (verdict Verdict) {
	defer func() {
		if r := recover(); r != nil {
			verdict = Verdict{
				IsValid:    true,
				Patterns:   []string{"analysis-error"},
				EditStats:  EditStats{Size: delta.Size(d), Kind: delta.Classify(d)},
				TotalEdits: a.totalEdits,
			}
		}
	}()

	size := delta.Size(d)
	kind := delta.Classify(d)

	var intervalMs int64
	haveInterval := len(a.window) > 0
	if haveInterval {
		intervalMs = timestampMs - a.window[len(a.window)-1].timestampMs
		if intervalMs < 0 {
			intervalMs = 0
		}
	}

	var patterns []string
	isValid := true

	if haveInterval {
		if float64(intervalMs) < a.cfg.MinIntervalMs {
			a.subFloorRun++
		} else {
			a.subFloorRun = 0
		}
		if a.subFloorRun >= a.cfg.MinIntervalStreak {
			patterns = append(patterns, "sustained-sub-floor-interval")
			isValid = false
		}

		if size == 0 {
			// Zero-length edits (pure cursor moves) never trip the
			// zero-think-time large-chunk check.
		} else if intervalMs == 0 && size > a.cfg.MaxChunkChars {
			patterns = append(patterns, "large-chunk-zero-think-time")
			isValid = false
		}
	}

	if a.haveLastSize && size == a.lastSameSize && size > 1 {
		a.burstCount++
	} else {
		a.burstCount = 1
	}
	a.lastSameSize = size
	a.haveLastSize = true
	if a.burstCount > a.cfg.MaxBurstSize {
		patterns = append(patterns, "identical-size-burst")
		isValid = false
		a.burstEvents++
	}

	rec := record{timestampMs: timestampMs, size: size, kind: kind, isDelete: kind == delta.KindDelete || kind == delta.KindReplace}
	a.push(rec)
	a.totalEdits++
	if rec.isDelete {
		a.deletiveEdits++
	}

	return Verdict{
		IsValid:    isValid,
		Patterns:   patterns,
		EditStats:  EditStats{IntervalMs: intervalMs, Size: size, Kind: kind},
		TotalEdits: a.totalEdits,
	}
}

func (a *Analyzer) push(r record) {
	a.window = append(a.window, r)
	if len(a.window) > a.cfg.WindowSize {
		a.window = a.window[1:]
	}
}

// Stats returns the aggregate statistics over the current window.
func (a *Analyzer) Stats() Stats {
	if len(a.window) < 2 {
		return Stats{TotalEdits: a.totalEdits}
	}

	logSum := 0.0
	n := 0
	for i := 1; i < len(a.window); i++ {
		interval := float64(a.window[i].timestampMs - a.window[i-1].timestampMs)
		if interval < 1 {
			interval = 1
		}
		logSum += math.Log(interval)
		n++
	}
	geoMean := 1.0
	if n > 0 {
		geoMean = math.Exp(logSum / float64(n))
	}

	burstRate := float64(a.burstEvents) / float64(a.totalEdits)
	correctionRate := float64(a.deletiveEdits) / float64(a.totalEdits)

	return Stats{
		GeometricMeanIntervalMs: geoMean,
		BurstRate:               burstRate,
		CorrectionRate:          correctionRate,
		TotalEdits:              a.totalEdits,
	}
}

// String renders a short debug summary, useful in CLI tooling.
func (s Stats) String() string {
	return fmt.Sprintf("edits=%d geo_mean_interval=%.1fms burst_rate=%.3f correction_rate=%.3f",
		s.TotalEdits, s.GeometricMeanIntervalMs, s.BurstRate, s.CorrectionRate)
}
