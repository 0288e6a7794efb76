// Package merkle implements the incremental transaction Merkle tree: an
// append-only commitment over the chain's committed transactions, consumed
// only through its root.
package merkle

import (
	"github.com/onevoteledger/svnode/src/crypto"
	"github.com/onevoteledger/svnode/src/tx"
)

// emptyRoot is the root of a tree with no leaves.
var emptyRoot = crypto.SHA256Hex([]byte("0"))

// Tree is an incremental binary hash tree over hex-encoded leaves. Unlike a
// Merkle proof structure, it keeps no sibling paths: only the current set of
// unpromoted "peak" nodes, one per level, is retained.
type Tree struct {
	levels [][]string
	count  int
}

// New returns an empty Tree.
func New() *Tree {
	return &Tree{}
}

// Add pushes the hex of tx.Hash(false) as a new leaf and promotes pairs
// upward: whenever a level reaches two pending nodes, they are replaced by
// their concatenated SHA-256 at the next level up.
func (t *Tree) Add(transaction *tx.Transaction) {
	t.AddLeaf(transaction.HashHex(false))
}

// AddLeaf is the primitive behind Add, taking the leaf hash directly.
func (t *Tree) AddLeaf(leafHex string) {
	level := 0
	node := leafHex

	for {
		for len(t.levels) <= level {
			t.levels = append(t.levels, nil)
		}

		t.levels[level] = append(t.levels[level], node)

		if len(t.levels[level]) < 2 {
			break
		}

		left, right := t.levels[level][0], t.levels[level][1]
		t.levels[level] = t.levels[level][:0]
		node = crypto.HashTwo(left, right)
		level++
	}

	t.count++
}

// Len reports how many leaves have been added.
func (t *Tree) Len() int {
	return t.count
}

// Root folds the pending peak nodes — one per level that currently holds an
// unpromoted node, taken top-most first — pairwise into a single root,
// duplicating the last node of a round whenever that round's count is odd.
// An empty tree's root is sha256("0").
func (t *Tree) Root() string {
	if t.count == 0 {
		return emptyRoot
	}

	var peaks []string
	for i := len(t.levels) - 1; i >= 0; i-- {
		if len(t.levels[i]) == 1 {
			peaks = append(peaks, t.levels[i][0])
		}
	}

	if len(peaks) == 0 {
		return emptyRoot
	}

	for len(peaks) > 1 {
		if len(peaks)%2 != 0 {
			peaks = append(peaks, peaks[len(peaks)-1])
		}

		next := make([]string, 0, len(peaks)/2)
		for i := 0; i < len(peaks); i += 2 {
			next = append(next, crypto.HashTwo(peaks[i], peaks[i+1]))
		}
		peaks = next
	}

	return peaks[0]
}

// RootOf builds a fresh Tree over leaves in order and returns its root,
// recomputing a root from a plain transaction slice without a live *Tree.
func RootOf(transactions []tx.Transaction) string {
	tree := New()
	for i := range transactions {
		tree.Add(&transactions[i])
	}
	return tree.Root()
}
