// Package state implements the deterministic account-state transition:
// applying committed records to account balances, stakes, and nonces, both
// during replay and on fresh commit.
package state

// Account is a validator or user's balance sheet. Accounts are created on
// first credit/debit and are never deleted.
type Account struct {
	Balance uint64 `json:"balance"`
	Stake   uint64 `json:"stake"`
	Nonce   uint64 `json:"nonce"`
}

// IsValidator reports whether the account's stake meets the validator
// threshold.
func (a *Account) IsValidator(minStake uint64) bool {
	return a != nil && a.Stake >= minStake
}

func subFloor(a, b uint64) uint64 {
	if b > a {
		return 0
	}
	return a - b
}
