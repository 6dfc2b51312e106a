// Copyright (c) 2025-2026 The BitQuill developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package editlog implements the append-only, Merkle-committed edit log:
// the core commitment structure of the provenance engine. Leaves carry a
// delta, metadata, proof-of-work seal, and a binding to the previous
// root; the log supports inclusion proofs, root recomputation, full
// serialization, and current-content reconstruction via an injected
// Composer.
package editlog

import (
	"github.com/bitquill/provenance/pkg/analyzer"
	"github.com/bitquill/provenance/pkg/anchor"
	"github.com/bitquill/provenance/pkg/delta"
	"github.com/bitquill/provenance/pkg/digest"
)

// PowInfo records a sealed leaf's proof-of-work.
type PowInfo struct {
	Nonce      uint64 `json:"nonce"`
	Difficulty uint8  `json:"difficulty"`
	ElapsedMs  uint32 `json:"elapsed_ms"`
}

// EditStatsMeta is the per-leaf edit_stats record carried in Metadata.
type EditStatsMeta struct {
	IntervalMs int64      `json:"interval_ms"`
	Size       uint32     `json:"size"`
	Kind       delta.Kind `json:"kind"`
}

// Metadata is the edit leaf's non-delta payload. Pow is nil only for the
// genesis leaf.
type Metadata struct {
	TimestampMs   int64         `json:"timestamp_ms"`
	IsGenesis     bool          `json:"is_genesis"`
	Pow           *PowInfo      `json:"pow"`
	EditStats     EditStatsMeta `json:"edit_stats"`
	HasFormatting bool          `json:"has_formatting"`
}

// Leaf is one committed edit record.
type Leaf struct {
	Index    int         `json:"index"`
	Delta    delta.Delta `json:"delta"`
	Metadata Metadata    `json:"metadata"`
	PrevRoot digest.Hash `json:"prev_root"`
	LeafHash digest.Hash `json:"leaf_hash"`
}

// AnalyzerVerdictToEditStats adapts an analyzer.Verdict's EditStats into
// the wire-shaped EditStatsMeta carried in a leaf's metadata.
func AnalyzerVerdictToEditStats(v analyzer.Verdict) EditStatsMeta {
	return EditStatsMeta{
		IntervalMs: v.EditStats.IntervalMs,
		Size:       v.EditStats.Size,
		Kind:       v.EditStats.Kind,
	}
}

// VerifyResult is the outcome of VerifyProof. Receipt, when non-nil, is
// the external timestamp receipt stored for the proof's root; a pending
// or failed receipt is reported but only a confirmed one sets
// AnchorConfirmed.
type VerifyResult struct {
	Valid           bool            `json:"valid"`
	Kind            Kind            `json:"kind,omitempty"`
	Note            string          `json:"note,omitempty"`
	AnchorConfirmed bool            `json:"anchor_confirmed"`
	Receipt         *anchor.Receipt `json:"timestamp_receipt,omitempty"`
}
