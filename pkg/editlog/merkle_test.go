// Copyright (c) 2025-2026 The BitQuill developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package editlog

import (
	"testing"

	"github.com/bitquill/provenance/pkg/digest"
)

func hashLeaf(s string) digest.Hash {
	return digest.Sum([]byte(s))
}

// rebuildFromScratch recomputes a root for leaves using the odd-layer
// duplicate-last-node rule directly, independent of merkleTree's
// incremental bookkeeping, as an oracle to check append against.
func rebuildFromScratch(leaves []digest.Hash) digest.Hash {
	if len(leaves) == 0 {
		return digest.Zero
	}
	level := append([]digest.Hash(nil), leaves...)
	for len(level) > 1 {
		var next []digest.Hash
		for i := 0; i < len(level); i += 2 {
			left := level[i]
			right := left
			if i+1 < len(level) {
				right = level[i+1]
			}
			next = append(next, combine(left, right))
		}
		level = next
	}
	return level[0]
}

func TestMerkleTreeAppendMatchesFullRebuild(t *testing.T) {
	leaves := []digest.Hash{
		hashLeaf("a"), hashLeaf("b"), hashLeaf("c"), hashLeaf("d"), hashLeaf("e"),
	}
	tree := newMerkleTree()
	for n := 1; n <= len(leaves); n++ {
		tree.append(leaves[n-1])
		want := rebuildFromScratch(leaves[:n])
		if got := tree.root(); got != want {
			t.Fatalf("n=%d: incremental root %s != full rebuild %s", n, got, want)
		}
	}
}

func TestMerkleTreeEmptyRootIsZero(t *testing.T) {
	tree := newMerkleTree()
	if tree.root() != digest.Zero {
		t.Fatal("empty tree should report the zero digest as its root")
	}
}

func TestMerkleTreeProofVerifiesForEveryLeaf(t *testing.T) {
	leaves := []digest.Hash{
		hashLeaf("a"), hashLeaf("b"), hashLeaf("c"), hashLeaf("d"), hashLeaf("e"),
	}
	tree := newMerkleTree()
	for _, l := range leaves {
		tree.append(l)
	}
	root := tree.root()
	for i, l := range leaves {
		siblings := tree.proof(i)
		if !verifyProof(l, siblings, root) {
			t.Fatalf("leaf %d: proof failed to verify against root", i)
		}
	}
}

func TestMerkleTreeProofRejectsWrongLeaf(t *testing.T) {
	leaves := []digest.Hash{hashLeaf("a"), hashLeaf("b"), hashLeaf("c")}
	tree := newMerkleTree()
	for _, l := range leaves {
		tree.append(l)
	}
	root := tree.root()
	siblings := tree.proof(1)
	if verifyProof(hashLeaf("not-b"), siblings, root) {
		t.Fatal("proof should not verify against a substituted leaf hash")
	}
}

func TestRebuildMerkleTreeMatchesIncrementalAppend(t *testing.T) {
	leaves := []digest.Hash{
		hashLeaf("a"), hashLeaf("b"), hashLeaf("c"), hashLeaf("d"), hashLeaf("e"),
	}
	incremental := newMerkleTree()
	for _, l := range leaves {
		incremental.append(l)
	}
	rebuilt := rebuildMerkleTree(leaves)
	if rebuilt.root() != incremental.root() {
		t.Fatal("rebuildMerkleTree should match the incrementally appended root")
	}
}

func TestSingleLeafTreeRootEqualsLeafHash(t *testing.T) {
	tree := newMerkleTree()
	leaf := hashLeaf("only")
	tree.append(leaf)
	if tree.root() != leaf {
		t.Fatal("a one-leaf tree's root should equal the leaf hash itself")
	}
	if siblings := tree.proof(0); len(siblings) != 0 {
		t.Fatalf("a one-leaf tree's proof should have no siblings, got %d", len(siblings))
	}
}
