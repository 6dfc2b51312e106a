// Copyright (c) 2025-2026 The BitQuill developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package editlog

import (
	"context"
	"fmt"

	"github.com/bitquill/provenance/internal/canon"
	"github.com/bitquill/provenance/pkg/analyzer"
	"github.com/bitquill/provenance/pkg/anchor"
	"github.com/bitquill/provenance/pkg/delta"
	"github.com/bitquill/provenance/pkg/difficulty"
	"github.com/bitquill/provenance/pkg/digest"
	"github.com/bitquill/provenance/pkg/pow"
)

// Log is the append-only, Merkle-committed edit log for one document. It
// is not safe for concurrent use: the host serializes AddLeaf calls, and
// re-entrant appends would produce undefined prev-root linkage.
type Log struct {
	composer   delta.Composer
	analyzer   *analyzer.Analyzer
	difficulty *difficulty.Controller
	anchorCli  *anchor.Client

	leaves []Leaf
	tree   *merkleTree
}

// NewLog constructs a fresh log with a genesis leaf wrapping an empty
// delta. The genesis leaf skips PoW entirely; only host-facing AddLeaf
// calls produce leaves at index >= 1, and those always require a valid,
// pre-sealed PowInfo.
func NewLog(composer delta.Composer, analyzerCfg analyzer.Config, difficultyCfg difficulty.Config, anchorCli *anchor.Client, nowMs int64) (*Log, error) {
	l := &Log{
		composer:   composer,
		analyzer:   analyzer.New(analyzerCfg),
		difficulty: difficulty.New(difficultyCfg),
		anchorCli:  anchorCli,
		tree:       newMerkleTree(),
	}

	meta := Metadata{TimestampMs: nowMs, IsGenesis: true}
	leafHash, err := computeLeafHash(delta.Empty(), meta, digest.Zero)
	if err != nil {
		return nil, newError(KindCanonicalizationError, err, "hashing genesis leaf")
	}
	genesis := Leaf{Index: 0, Delta: delta.Empty(), Metadata: meta, PrevRoot: digest.Zero, LeafHash: leafHash}
	l.leaves = append(l.leaves, genesis)
	l.tree.append(leafHash)
	return l, nil
}

// computeLeafHash implements
// leaf_hash = H(canonical(delta) || canonical(metadata) || prev_root).
func computeLeafHash(d delta.Delta, meta Metadata, prevRoot digest.Hash) (digest.Hash, error) {
	canonicalDelta, err := delta.Canonical(d)
	if err != nil {
		return digest.Hash{}, err
	}
	canonicalMeta, err := canon.Marshal(meta)
	if err != nil {
		return digest.Hash{}, err
	}
	return digest.SumConcat(canonicalDelta, canonicalMeta, prevRoot[:]), nil
}

// SealPayload returns the exact byte string a caller must seal with
// pow.Seal before calling AddLeaf: canonical(delta) || current root. It is
// exported so the host can run the PoW search (potentially on another
// goroutine or worker) without reaching into the log's internals.
func (l *Log) SealPayload(d delta.Delta) ([]byte, error) {
	canonicalDelta, err := delta.Canonical(d)
	if err != nil {
		return nil, newError(KindCanonicalizationError, err, "canonicalizing delta")
	}
	root := l.tree.root()
	return digest.Concat(canonicalDelta, root[:]), nil
}

// RequiredDifficulty returns the difficulty a sealed payload must meet to
// be accepted by AddLeaf right now.
func (l *Log) RequiredDifficulty() uint8 {
	return l.difficulty.Difficulty()
}

// AddLeaf appends a new edit leaf. d is the edit's delta; sealed is the
// PoW the host computed over SealPayload(d) at the log's current
// RequiredDifficulty. AddLeaf validates cadence with the Analyzer and the
// seal with pow.Verify before mutating any state; on any error nothing is
// appended.
func (l *Log) AddLeaf(ctx context.Context, d delta.Delta, sealed PowInfo, timestampMs int64) (Leaf, error) {
	if len(l.leaves) == 0 {
		return Leaf{}, newError(KindChainBroken, nil, "log has no genesis leaf")
	}

	payload, err := l.SealPayload(d)
	if err != nil {
		return Leaf{}, err
	}

	required := l.difficulty.Difficulty()
	if sealed.Difficulty < required {
		log.Debugf("leaf %d rejected: sealed at difficulty %d, need >= %d", len(l.leaves), sealed.Difficulty, required)
		return Leaf{}, newError(KindPowRequired, nil, "leaf sealed at difficulty %d, need >= %d", sealed.Difficulty, required)
	}
	if !pow.Verify(payload, sealed.Nonce, sealed.Difficulty) {
		log.Debugf("leaf %d rejected: nonce %d invalid at difficulty %d", len(l.leaves), sealed.Nonce, sealed.Difficulty)
		return Leaf{}, newError(KindPowInvalid, nil, "nonce %d does not satisfy difficulty %d", sealed.Nonce, sealed.Difficulty)
	}

	previous := l.leaves[len(l.leaves)-1].Delta
	analyzerBefore := *l.analyzer
	verdict := l.analyzer.RecordEdit(d, previous, timestampMs)
	if !verdict.IsValid {
		*l.analyzer = analyzerBefore
		log.Warnf("leaf %d rejected: suspicious edit cadence %v", len(l.leaves), verdict.Patterns)
		return Leaf{}, newError(KindSuspiciousEdit, nil, "rejected edit cadence: %v", verdict.Patterns)
	}

	prevRoot := l.tree.root()
	meta := Metadata{
		TimestampMs:   timestampMs,
		IsGenesis:     false,
		Pow:           &sealed,
		EditStats:     AnalyzerVerdictToEditStats(verdict),
		HasFormatting: delta.HasFormatting(d),
	}
	leafHash, err := computeLeafHash(d, meta, prevRoot)
	if err != nil {
		return Leaf{}, newError(KindCanonicalizationError, err, "hashing leaf %d", len(l.leaves))
	}

	leaf := Leaf{Index: len(l.leaves), Delta: d, Metadata: meta, PrevRoot: prevRoot, LeafHash: leafHash}
	l.leaves = append(l.leaves, leaf)
	l.tree.append(leafHash)

	if l.difficulty.ShouldAdjust(verdict.TotalEdits) {
		stats := l.analyzer.Stats()
		newDifficulty := l.difficulty.Adjust(stats.GeometricMeanIntervalMs)
		log.Infof("difficulty adjusted to %d after %d edits (geo mean interval %.1fms)",
			newDifficulty, verdict.TotalEdits, stats.GeometricMeanIntervalMs)
	}

	return leaf, nil
}

// CurrentContent lazily composes the current document state by invoking
// the Composer over every committed leaf's delta, in order.
func (l *Log) CurrentContent(ctx context.Context) (delta.Delta, error) {
	deltas := make([]delta.Delta, len(l.leaves))
	for i, leaf := range l.leaves {
		deltas[i] = leaf.Delta
	}
	composed, err := l.composer.Compose(ctx, deltas)
	if err != nil {
		return delta.Delta{}, newError(KindCanonicalizationError, err, "composing current content")
	}
	return composed, nil
}

// Root returns the current Merkle root.
func (l *Log) Root() digest.Hash {
	return l.tree.root()
}

// Len returns the number of committed leaves, including genesis.
func (l *Log) Len() int {
	return len(l.leaves)
}

// Leaf returns the committed leaf at index.
func (l *Log) Leaf(index int) (Leaf, error) {
	if index < 0 || index >= len(l.leaves) {
		return Leaf{}, newError(KindProofInvalid, nil, "leaf index %d out of range [0, %d)", index, len(l.leaves))
	}
	return l.leaves[index], nil
}

// History returns a copy of every committed leaf, genesis first. The
// slice is the caller's to keep; leaves themselves are never mutated
// after commit.
func (l *Log) History() []Leaf {
	out := make([]Leaf, len(l.leaves))
	copy(out, l.leaves)
	return out
}

// EditStats returns the analyzer's aggregate statistics for this
// document's edit history.
func (l *Log) EditStats() analyzer.Stats {
	return l.analyzer.Stats()
}

// Proof builds the inclusion proof for the leaf at index against the
// current root.
func (l *Log) Proof(index int) (InclusionProof, error) {
	leaf, err := l.Leaf(index)
	if err != nil {
		return InclusionProof{}, err
	}
	return InclusionProof{
		LeafIndex: index,
		LeafHash:  leaf.LeafHash,
		Siblings:  l.tree.proof(index),
		Root:      l.tree.root(),
	}, nil
}

// VerifyProof reconstructs the root from proof and reports whether it
// matches. Genesis (index 0 with no siblings) short-circuits to valid with
// an informational note even though it carries no PoW. AnchorConfirmed
// reports whether the proof's claimed root has a confirmed external
// timestamp receipt; a missing or pending receipt does not invalidate
// Merkle inclusion.
func (l *Log) VerifyProof(proof InclusionProof) VerifyResult {
	if proof.LeafIndex == 0 && len(proof.Siblings) == 0 && proof.LeafHash == proof.Root {
		return VerifyResult{Valid: true, Note: "genesis leaf: trivially included, no PoW required"}
	}

	if !verifyProof(proof.LeafHash, proof.Siblings, proof.Root) {
		return VerifyResult{Valid: false, Kind: KindProofInvalid, Note: "reconstructed root does not match claimed root"}
	}

	result := VerifyResult{Valid: true}
	if l.anchorCli != nil {
		if r, ok := l.anchorCli.Receipt(proof.Root); ok {
			result.Receipt = &r
			result.AnchorConfirmed = r.Confirmed()
		}
	}
	return result
}

// ManualTimestamp submits the log's current root to the anchoring client.
func (l *Log) ManualTimestamp(ctx context.Context, nowMs int64) (anchor.Receipt, error) {
	if l.anchorCli == nil {
		return anchor.Receipt{}, newError(KindAnchorUnavailable, nil, "no anchoring client configured")
	}
	r, err := l.anchorCli.Submit(ctx, l.tree.root(), nowMs)
	if err != nil {
		return anchor.Receipt{}, newError(KindAnchorUnavailable, err, "submitting root %s", l.tree.root())
	}
	return r, nil
}

// UpgradeTimestamp re-queries the anchoring client for root's receipt.
// Network failures leave the receipt pending rather than blocking edits.
func (l *Log) UpgradeTimestamp(ctx context.Context, root digest.Hash, nowMs int64) (anchor.State, error) {
	if l.anchorCli == nil {
		return anchor.StatePending, newError(KindAnchorUnavailable, nil, "no anchoring client configured")
	}
	state, err := l.anchorCli.Upgrade(ctx, root, nowMs)
	if err != nil {
		return state, fmt.Errorf("anchor upgrade: %w", err)
	}
	return state, nil
}
