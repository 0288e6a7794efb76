package tx

import (
	"sort"
	"strconv"
	"strings"

	"github.com/onevoteledger/svnode/src/crypto"
)

// Record is one committed slot: the agreed transaction together with the
// per-validator vote that committed it.
type Record struct {
	Transaction    Transaction     `json:"transaction"`
	Validators     map[string]bool `json:"validators"`
	ValidatorsRoot string          `json:"validatorsRoot"`
}

// ValidatorsRoot computes H = sha256(sortedKeys joined by ':' + ':' +
// sortedValues joined by ':'), a fixed sort order so every node recomputes
// the same hash for the same vote map.
func ValidatorsRoot(validators map[string]bool) string {
	keys := make([]string, 0, len(validators))
	for k := range validators {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	values := make([]string, len(keys))
	for i, k := range keys {
		values[i] = strconv.FormatBool(validators[k])
	}

	input := strings.Join(keys, ":") + ":" + strings.Join(values, ":")
	return crypto.SHA256Hex([]byte(input))
}

// NewRecord builds a Record whose ValidatorsRoot is freshly computed from
// validators, so callers can never construct one with a stale root.
func NewRecord(t Transaction, validators map[string]bool) Record {
	return Record{
		Transaction:    t,
		Validators:     validators,
		ValidatorsRoot: ValidatorsRoot(validators),
	}
}

// RootMatches reports whether r.ValidatorsRoot is consistent with r.Validators,
// the gate the reward step uses to decide whether a record's vote map can be
// trusted for reward/slash accounting.
func (r *Record) RootMatches() bool {
	return r.ValidatorsRoot == ValidatorsRoot(r.Validators)
}
