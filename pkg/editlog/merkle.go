// Copyright (c) 2025-2026 The BitQuill developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package editlog

import "github.com/bitquill/provenance/pkg/digest"

// Side identifies which side of a pair a sibling hash occupies when
// recomputing a parent along an inclusion proof.
type Side string

const (
	SideLeft  Side = "L"
	SideRight Side = "R"
)

// Sibling is one step of an inclusion proof: the hash to combine with the
// running hash, and which side it sits on.
type Sibling struct {
	Hash digest.Hash `json:"sibling_hash"`
	Side Side        `json:"side"`
}

// InclusionProof is the ordered sibling path from a leaf to the root that
// attests to it.
type InclusionProof struct {
	LeafIndex int         `json:"leaf_index"`
	LeafHash  digest.Hash `json:"leaf_hash"`
	Siblings  []Sibling   `json:"siblings"`
	Root      digest.Hash `json:"root"`
}

// merkleTree caches every level's digests so that appending a leaf only
// touches the rightmost path, O(log n) hashes per append. Odd layers
// duplicate their last node (rather than promote it unhashed), applied
// implicitly by how the rightmost parent slot is recomputed.
type merkleTree struct {
	levels [][]digest.Hash // levels[0] is leaf hashes
}

func newMerkleTree() *merkleTree {
	return &merkleTree{levels: [][]digest.Hash{{}}}
}

// combine hashes two child digests into their parent:
// H(left_child_hash || right_child_hash), a direct byte concatenation of
// the two 32-byte digests with no intervening canonical-JSON framing.
func combine(left, right digest.Hash) digest.Hash {
	return digest.SumConcat(left[:], right[:])
}

func (t *merkleTree) leafCount() int {
	return len(t.levels[0])
}

// root returns the current Merkle root, or the all-zero digest if empty.
func (t *merkleTree) root() digest.Hash {
	if t.leafCount() == 0 {
		return digest.Zero
	}
	top := t.levels[len(t.levels)-1]
	return top[0]
}

// append adds a leaf hash and updates every affected parent along the
// rightmost spine.
func (t *merkleTree) append(leaf digest.Hash) {
	t.levels[0] = append(t.levels[0], leaf)

	level := 0
	for len(t.levels[level]) > 1 {
		if level+1 >= len(t.levels) {
			t.levels = append(t.levels, []digest.Hash{})
		}
		cur := t.levels[level]
		n := len(cur)
		parentIdx := (n - 1) / 2
		left := cur[2*parentIdx]
		right := left
		if 2*parentIdx+1 < n {
			right = cur[2*parentIdx+1]
		}
		parentHash := combine(left, right)

		parentLevel := t.levels[level+1]
		if parentIdx < len(parentLevel) {
			parentLevel[parentIdx] = parentHash
		} else {
			parentLevel = append(parentLevel, parentHash)
		}
		t.levels[level+1] = parentLevel
		level++
	}
}

// proof builds the inclusion proof for leaf index, walking from the leaf
// to the root and recording the sibling hash/side at each layer.
func (t *merkleTree) proof(index int) []Sibling {
	var siblings []Sibling
	idx := index
	for _, level := range t.levels {
		if len(level) <= 1 {
			break
		}
		pairStart := (idx / 2) * 2
		var siblingIdx int
		var side Side
		if idx%2 == 0 {
			siblingIdx = pairStart + 1
			side = SideRight
		} else {
			siblingIdx = pairStart
			side = SideLeft
		}
		var siblingHash digest.Hash
		if siblingIdx < len(level) {
			siblingHash = level[siblingIdx]
		} else {
			siblingHash = level[pairStart]
		}
		siblings = append(siblings, Sibling{Hash: siblingHash, Side: side})
		idx /= 2
	}
	return siblings
}

// verifyProof recomputes the root from leafHash and siblings and reports
// whether it matches root.
func verifyProof(leafHash digest.Hash, siblings []Sibling, root digest.Hash) bool {
	current := leafHash
	for _, s := range siblings {
		if s.Side == SideRight {
			current = combine(current, s.Hash)
		} else {
			current = combine(s.Hash, current)
		}
	}
	return current == root
}

// rebuildMerkleTree reconstructs a tree from an ordered list of leaf
// hashes. Deserialize does not call it: it replays every leaf through
// AddLeaf, which appends to the tree one leaf at a time. It replays
// append, which is simpler to keep correct than a second bespoke
// bulk-build algorithm and is still linear in the number of hash
// operations performed.
func rebuildMerkleTree(leafHashes []digest.Hash) *merkleTree {
	t := newMerkleTree()
	for _, h := range leafHashes {
		t.append(h)
	}
	return t
}
