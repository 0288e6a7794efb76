package state

import (
	"fmt"

	"github.com/onevoteledger/svnode/src/protocol"
	"github.com/onevoteledger/svnode/src/tx"
)

// ValidationContext carries the pieces of node state transactionValid needs
// that are not already on the Transaction itself.
type ValidationContext struct {
	// Accounts is the current account table.
	Accounts map[string]*Account
	// ChainLen is len(chain.Transactions) at the time of the check, used to
	// decide whether the genesis bypass window is still open.
	ChainLen int
	// PendingLen is len(pendingTxs); only consulted when Now is true.
	PendingLen int
	// NowSeconds is the current wall-clock time, seconds since epoch.
	NowSeconds int64
}

// genesisEligible reports whether a record at position chainLen with the
// given body qualifies for the genesis bypass.
func genesisEligible(chainLen int, body string) bool {
	return chainLen < protocol.GenesisWindow && body == tx.Genesis
}

// TransactionValid gates a transaction against the current account state.
// now selects the live-submission checks (nonce match, timestamp-expiry
// window); it is false during replay and true when gating a freshly
// submitted or received candidate.
func TransactionValid(t *tx.Transaction, now bool, ctx ValidationContext) (bool, []string) {
	var reasons []string

	valid := t.Verify()

	if t.Timestamp > ctx.NowSeconds+protocol.TimestampRange {
		valid = false
		reasons = append(reasons, "Transaction from future")
	}

	if now && t.Timestamp < protocol.TimestampRange+int64(ctx.PendingLen)*10 {
		valid = false
		reasons = append(reasons, "Timestamp has expired")
	}

	if t.Amount < protocol.Fee {
		valid = false
		reasons = append(reasons, "Amount is lower than fee")
	}

	fromAccount, haveFrom := ctx.Accounts[t.From]
	if !haveFrom {
		valid = false
		reasons = append(reasons, "Invalid from")
	} else if fromAccount.Balance < t.Amount {
		valid = false
		reasons = append(reasons, fmt.Sprintf("Balance lower than amount requested: have %d, need %d", fromAccount.Balance, t.Amount))
	}

	if now && haveFrom && t.Nonce != fromAccount.Nonce {
		valid = false
		reasons = append(reasons, "Invalid nonce")
	}

	if genesisEligible(ctx.ChainLen, t.Body) {
		reasons = nil
		valid = true
	}

	return valid, reasons
}
