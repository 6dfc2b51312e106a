// Copyright (c) 2025-2026 The BitQuill developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package anchor implements the anchoring client: it converts a Merkle
// root hash into an external timestamp receipt, stores receipts alongside
// roots, and upgrades them when the external service confirms them.
package anchor

import "github.com/bitquill/provenance/pkg/digest"

// State is an anchor receipt's lifecycle state.
type State string

const (
	StatePending   State = "pending"
	StateConfirmed State = "confirmed"
	StateFailed    State = "failed"
)

// Receipt is an external-timestamping artifact binding a root hash to an
// outside time source. It is immutable after reaching StateConfirmed.
type Receipt struct {
	RootHash      digest.Hash `json:"root_hash"`
	SubmittedAt   int64       `json:"submitted_at"`
	ReceiptBlob   []byte      `json:"receipt"`
	State         State       `json:"state"`
	LastCheckedAt int64       `json:"last_checked_at"`
}

// Confirmed reports whether r counts toward "verified with N timestamps";
// pending receipts are present but unconfirmed and do not count.
func (r Receipt) Confirmed() bool {
	return r.State == StateConfirmed
}
