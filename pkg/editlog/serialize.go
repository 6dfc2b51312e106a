// Copyright (c) 2025-2026 The BitQuill developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package editlog

import (
	"context"
	"encoding/json"

	"github.com/bitquill/provenance/internal/canon"
	"github.com/bitquill/provenance/pkg/analyzer"
	"github.com/bitquill/provenance/pkg/anchor"
	"github.com/bitquill/provenance/pkg/delta"
	"github.com/bitquill/provenance/pkg/difficulty"
)

// wireVersion is the only serialization format version this package emits
// or accepts.
const wireVersion = 1

// document is the stable top-level wire structure: {version, leaves,
// anchor_receipts}, emitted and parsed in canonical JSON form.
type document struct {
	Version        int              `json:"version"`
	Leaves         []Leaf           `json:"leaves"`
	AnchorReceipts []anchor.Receipt `json:"anchor_receipts"`
}

// Serialize emits the log's stable wire form: {version, leaves,
// anchor_receipts} in canonical JSON. The transport wrapper (not this
// package) may gzip the result.
func (l *Log) Serialize() ([]byte, error) {
	receipts := []anchor.Receipt{}
	if l.anchorCli != nil {
		receipts = l.anchorCli.All()
	}
	doc := document{Version: wireVersion, Leaves: l.leaves, AnchorReceipts: receipts}
	b, err := canon.Marshal(doc)
	if err != nil {
		return nil, newError(KindCanonicalizationError, err, "serializing log")
	}
	return b, nil
}

// Deserialize parses data and replays every leaf through the same
// validation AddLeaf performs, re-establishing prev-root chaining, PoW
// validity, and the difficulty-adjustment cadence from scratch. Any
// violation (corrupted bytes, a tampered delta whose seal no longer
// verifies, a broken prev-root chain) returns a DeserializationError and
// no log; no partial state is ever returned to the caller.
func Deserialize(ctx context.Context, data []byte, composer delta.Composer, analyzerCfg analyzer.Config, difficultyCfg difficulty.Config, anchorCli *anchor.Client) (*Log, error) {
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, newError(KindDeserializationError, err, "parsing serialized log")
	}
	if doc.Version != wireVersion {
		return nil, newError(KindDeserializationError, nil, "unsupported version %d", doc.Version)
	}
	if len(doc.Leaves) == 0 || doc.Leaves[0].Index != 0 || !doc.Leaves[0].Metadata.IsGenesis {
		return nil, newError(KindDeserializationError, nil, "missing or malformed genesis leaf")
	}

	l, err := NewLog(composer, analyzerCfg, difficultyCfg, anchorCli, doc.Leaves[0].Metadata.TimestampMs)
	if err != nil {
		return nil, newError(KindDeserializationError, err, "rebuilding genesis leaf")
	}
	if l.leaves[0].LeafHash != doc.Leaves[0].LeafHash {
		return nil, newError(KindDeserializationError, nil, "genesis leaf hash mismatch")
	}

	for i := 1; i < len(doc.Leaves); i++ {
		stored := doc.Leaves[i]
		if stored.Index != i {
			return nil, newError(KindDeserializationError, nil, "leaf %d has out-of-order index %d", i, stored.Index)
		}
		if stored.Metadata.Pow == nil {
			return nil, newError(KindDeserializationError, nil, "leaf %d missing proof of work", i)
		}

		leaf, err := l.AddLeaf(ctx, stored.Delta, *stored.Metadata.Pow, stored.Metadata.TimestampMs)
		if err != nil {
			return nil, newError(KindDeserializationError, err, "replaying leaf %d", i)
		}
		if leaf.LeafHash != stored.LeafHash || leaf.PrevRoot != stored.PrevRoot {
			return nil, newError(KindDeserializationError, nil, "leaf %d hash mismatch: tampered serialization", i)
		}
	}

	if anchorCli != nil && len(doc.AnchorReceipts) > 0 {
		anchorCli.Restore(doc.AnchorReceipts)
	}

	return l, nil
}
