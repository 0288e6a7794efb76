package state

import (
	"github.com/onevoteledger/svnode/src/merkle"
	"github.com/onevoteledger/svnode/src/protocol"
	"github.com/onevoteledger/svnode/src/tx"
)

// Chain is the replicated append-only history together with the derived
// account state. The live path only ever appends.
type Chain struct {
	Transactions []tx.Record
	Accounts     map[string]*Account
	Merkle       *merkle.Tree
}

// NewChain returns an empty Chain.
func NewChain() *Chain {
	return &Chain{
		Accounts: make(map[string]*Account),
		Merkle:   merkle.New(),
	}
}

// account returns the account for key, creating a zero-valued one if this is
// its first mention. Accounts are never deleted.
func (c *Chain) account(key string) *Account {
	a, ok := c.Accounts[key]
	if !ok {
		a = &Account{}
		c.Accounts[key] = a
	}
	return a
}

// creditAfterFee is floor(amount - fee), never negative.
func creditAfterFee(amount uint64) uint64 {
	if amount <= protocol.Fee {
		return 0
	}
	return amount - protocol.Fee
}

// Apply implements the deterministic transition for one record at the
// chain's current length, then appends it. It is the single code path used
// both for startup/post-sync replay and for committing a just-agreed vote,
// so the two contexts can never disagree on debit-before-create ordering:
// every account lookup here goes through the same get-or-create accessor
// regardless of caller.
func (c *Chain) Apply(r tx.Record) {
	i := len(c.Transactions)
	t := r.Transaction
	genesis := genesisEligible(i, t.Body)

	if !(genesis && t.From == tx.Genesis) {
		from := c.account(t.From)
		from.Balance = subFloor(from.Balance, t.Amount)
	}

	credit := creditAfterFee(t.Amount)
	if genesis {
		credit = t.Amount
	}

	if t.To == tx.Stake {
		from := c.account(t.From)
		from.Stake += credit
	} else {
		to := c.account(t.To)
		to.Balance += credit
	}

	if !genesis && len(r.Validators) > 0 && r.RootMatches() {
		share := protocol.Fee/uint64(len(r.Validators)) + 1
		for validator, votedValid := range r.Validators {
			acct := c.account(validator)
			if votedValid {
				acct.Balance += share
			} else {
				acct.Stake = subFloor(acct.Stake, protocol.Fine)
			}
		}
		c.account(t.From).Nonce++
	}

	c.Merkle.Add(&t)
	c.Transactions = append(c.Transactions, r)
}

// Replay rebuilds a Chain's Accounts and Merkle tree from a sequence of
// records, applying Apply in order from empty state. This is the
// startup/post-sync path, and is what keeps replay and live commit
// byte-for-byte reproducible.
func Replay(records []tx.Record) *Chain {
	c := NewChain()
	for _, r := range records {
		c.Apply(r)
	}
	return c
}

// MerkleOnly builds a Merkle tree over records without touching any account
// state, the no-peer startup path used when a node is handed a transaction
// list together with accounts that are already materialized.
func MerkleOnly(records []tx.Record) *merkle.Tree {
	tree := merkle.New()
	for i := range records {
		tree.Add(&records[i].Transaction)
	}
	return tree
}

// ValidationContext builds the ValidationContext transactionValid needs from
// this chain's current state, for the given pending-queue depth and wall
// clock. Whether the live-submission checks apply is chosen by the now
// argument of TransactionValid, not here.
func (c *Chain) ValidationContext(pendingLen int, nowSeconds int64) ValidationContext {
	return ValidationContext{
		Accounts:   c.Accounts,
		ChainLen:   len(c.Transactions),
		PendingLen: pendingLen,
		NowSeconds: nowSeconds,
	}
}
