// Package sync implements C6, the startup chain-synchronization protocol:
// collecting chain snapshots from peers, picking the plurality Merkle root,
// and deciding whether to adopt the reporting peer's transaction list.
package sync

import (
	"encoding/json"
	"sort"

	"github.com/onevoteledger/svnode/src/common"
	"github.com/onevoteledger/svnode/src/tx"
)

// Request is the (empty, besides the intent flag) GET_CHAIN payload a node
// broadcasts on startup once at least one peer is connected.
type Request struct {
	WantChain bool `json:"wantChain"`
}

// Payload is the CHAIN response body. Transactions is, per spec.md §6, a
// JSON string of the record sequence rather than the sequence embedded
// directly — a second layer of encoding the requester must decode before it
// can compare lengths or replay.
type Payload struct {
	Transactions string `json:"transactions"`
	Root         string `json:"root"`
}

// BuildRequest renders the GET_CHAIN payload.
func BuildRequest() (Request, error) {
	return Request{WantChain: true}, nil
}

// BuildPayload renders the CHAIN response for a local record sequence and
// its Merkle root.
func BuildPayload(records []tx.Record, root string) (Payload, error) {
	b, err := json.Marshal(records)
	if err != nil {
		return Payload{}, common.NewProtocolErr(common.EncodingFailed, "", err)
	}
	return Payload{Transactions: string(b), Root: root}, nil
}

// ParseRecords decodes a Payload's doubly-encoded Transactions field back
// into a record sequence.
func ParseRecords(p Payload) ([]tx.Record, error) {
	var records []tx.Record
	if err := json.Unmarshal([]byte(p.Transactions), &records); err != nil {
		return nil, common.NewProtocolErr(common.MalformedSnapshot, "", err)
	}
	return records, nil
}

// snapshot is one peer's reported chain, keyed by the pubkey that sent it.
type snapshot struct {
	peerKey string
	records []tx.Record
	root    string
}

// Collector accumulates one CHAIN response per peer during a startup sync
// round, keyed so a peer's second reply never double-counts (spec.md §4.5
// "collects responses keyed by peer pubkey into consensus[]").
type Collector struct {
	byPeer map[string]snapshot
}

// NewCollector returns an empty Collector.
func NewCollector() *Collector {
	return &Collector{byPeer: make(map[string]snapshot)}
}

// Add records peerKey's reported chain. A later call from the same peerKey
// replaces its earlier entry.
func (c *Collector) Add(peerKey string, records []tx.Record, root string) {
	c.byPeer[peerKey] = snapshot{peerKey: peerKey, records: records, root: root}
}

// Len reports how many distinct peers have reported in so far.
func (c *Collector) Len() int {
	return len(c.byPeer)
}

// Ready reports whether enough peers have reported in to tally: spec.md
// §4.5's |consensus| >= |V| - 1. The node passes its peer-only validator
// set, so one known validator's reply may still be outstanding when Ready
// reports true.
func (c *Collector) Ready(validatorSetSize int) bool {
	return c.Len() >= validatorSetSize-1
}

// Plurality tallies the collected snapshots by root and returns the
// snapshot belonging to the root reported by the most peers. Ties are
// broken deterministically by lexicographically smallest root, so every
// node tallying the same responses picks the same winner.
func (c *Collector) Plurality() (records []tx.Record, root string, ok bool) {
	if len(c.byPeer) == 0 {
		return nil, "", false
	}

	counts := make(map[string]int)
	first := make(map[string]snapshot)
	for _, s := range c.byPeer {
		counts[s.root]++
		if _, seen := first[s.root]; !seen {
			first[s.root] = s
		}
	}

	roots := make([]string, 0, len(counts))
	for r := range counts {
		roots = append(roots, r)
	}
	sort.Strings(roots)

	best := roots[0]
	for _, r := range roots[1:] {
		if counts[r] > counts[best] {
			best = r
		}
	}

	winner := first[best]
	return winner.records, winner.root, true
}

// ShouldAdopt implements the resolved CHAIN-acceptance rule from
// spec.md §9: a peer's chain is adopted only if its decoded record sequence
// is at least as long as the local one. Both sides are compared as
// sequences, never as a serialized-string length against an object length.
func ShouldAdopt(peerRecords []tx.Record, localLen int) bool {
	return len(peerRecords) >= localLen
}
