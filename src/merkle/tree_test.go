package merkle

import (
	"testing"

	"github.com/onevoteledger/svnode/src/tx"
)

func TestEmptyTreeRoot(t *testing.T) {
	tree := New()
	if tree.Root() != emptyRoot {
		t.Fatalf("empty tree should root to sha256(\"0\")")
	}
}

func TestRootStableAcrossEquivalentBuilds(t *testing.T) {
	txs := []tx.Transaction{
		{From: "a", To: "b", Amount: 1},
		{From: "a", To: "b", Amount: 2},
		{From: "a", To: "b", Amount: 3},
	}

	incremental := New()
	for i := range txs {
		incremental.Add(&txs[i])
	}

	if incremental.Root() != RootOf(txs) {
		t.Fatalf("incremental root must match a from-scratch build over the same leaves")
	}
}

func TestRootChangesWithOrder(t *testing.T) {
	a := tx.Transaction{From: "a", To: "b", Amount: 1}
	b := tx.Transaction{From: "a", To: "b", Amount: 2}

	r1 := RootOf([]tx.Transaction{a, b})
	r2 := RootOf([]tx.Transaction{b, a})

	if r1 == r2 {
		t.Fatalf("root should depend on leaf order")
	}
}

func TestRootHandlesOddCounts(t *testing.T) {
	for n := 1; n <= 7; n++ {
		txs := make([]tx.Transaction, n)
		for i := range txs {
			txs[i] = tx.Transaction{From: "a", To: "b", Amount: uint64(i)}
		}
		if RootOf(txs) == "" {
			t.Fatalf("root for %d leaves should not be empty", n)
		}
	}
}
