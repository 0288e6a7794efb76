// Package consensus implements C7, the single-slot vote state machine:
// exactly one candidate transaction is live at a time, additional
// submissions queue, and a quorum tally decides commit or silent rejection.
package consensus

import (
	"github.com/onevoteledger/svnode/src/tx"
)

// State names the two states a Slot can be in. There is no third state:
// either nothing is being voted on, or exactly one candidate is.
type State int

const (
	// Idle means no candidate is live; the next Submit opens a slot.
	Idle State = iota
	// Voting means a candidate is live and collecting votes.
	Voting
)

// Vote is one peer's (or the local node's) stance on the slot's current
// candidate: spec.md §3's consensus[pubkey] entry.
type Vote struct {
	Valid       bool
	Root        string
	Transaction string // serialized candidate, used to cross-check the vote matches
}

// Payload is the wire shape of a TRANSACTION message: the candidate plus
// the sender's stance and locally-observed Merkle root.
type Payload struct {
	Transaction string `json:"transaction"`
	Valid       bool   `json:"valid"`
	Root        string `json:"root"`
}

// Slot holds the consensus state for one node: at most one live candidate,
// its accumulated votes, and the queue of submissions that arrived while it
// was busy. It is owned and mutated exclusively by the node's event loop —
// no field is safe for concurrent access.
type Slot struct {
	state     State
	vote      *tx.Transaction
	consensus map[string]Vote
	pending   []tx.Transaction
}

// New returns an idle Slot.
func New() *Slot {
	return &Slot{state: Idle, consensus: make(map[string]Vote)}
}

// State reports the current state.
func (s *Slot) State() State { return s.state }

// Vote returns the live candidate, or nil if idle.
func (s *Slot) Vote() *tx.Transaction { return s.vote }

// PendingLen reports how many submissions are queued behind the live slot.
func (s *Slot) PendingLen() int { return len(s.pending) }

// ConsensusLen reports how many votes have been recorded for the live
// candidate.
func (s *Slot) ConsensusLen() int { return len(s.consensus) }

// Submit handles a local Submit or an inbound NEW_TRANSACTION. If the slot
// is idle, it opens immediately and Submit reports true so the caller
// broadcasts the opening TRANSACTION and arms the vote timer. If a
// candidate is already live, t is appended to the pending queue in arrival
// order and Submit reports false.
func (s *Slot) Submit(t tx.Transaction) (opened bool) {
	if s.state == Voting {
		s.pending = append(s.pending, t)
		return false
	}
	s.open(t)
	return true
}

func (s *Slot) open(t tx.Transaction) {
	s.vote = &t
	s.consensus = make(map[string]Vote)
	s.state = Voting
}

// RecordVote adds senderKey's vote for the live candidate if, and only if,
// every gate in spec.md §4.6 holds: the slot is voting, the sender's
// reported root matches localRoot, the sender is a current validator, and
// the sender's serialized transaction hashes (unsigned) to the same value
// as the live candidate. Any failed gate drops the vote silently and
// returns false — most importantly a root mismatch, which signals the
// sender has diverged state and cannot be trusted to count.
func (s *Slot) RecordVote(senderKey string, senderIsValidator bool, localRoot string, v Vote) bool {
	if s.state != Voting || s.vote == nil {
		return false
	}
	if v.Root != localRoot {
		return false
	}
	if !senderIsValidator {
		return false
	}

	candidate, err := tx.Deserialize(v.Transaction)
	if err != nil {
		return false
	}
	if candidate.HashHex(false) != s.vote.HashHex(false) {
		return false
	}

	s.consensus[senderKey] = v
	return true
}

// ReadyToTally reports whether enough votes are in to decide the slot:
// spec.md §4.6's |consensus| >= |V| check, literally, with no subtraction.
// V here is the peer validator set (src/gossip.ValidatorSet), which never
// contains this node's own key — handleValidatorAnnounce only ever adds the
// sender of a VALIDATOR/HELLO_VALIDATOR announcement, never self — so
// consensus (peer votes only) can and must reach the full |V| before Tally
// folds in the local node's own vote. This differs from §4.5's
// sync-collector check, which is |consensus| >= |V|-1 over the same
// peer-only set.
func (s *Slot) ReadyToTally(validatorSetSize int) bool {
	return s.state == Voting && len(s.consensus) >= validatorSetSize
}

// Tally folds in the local node's own vote under selfKey, then counts valid
// versus invalid across every recorded vote. commit is true iff strictly
// more voters said valid than said invalid (spec.md P5); votes is the
// pubkey->valid map a commit path turns into a tx.Record's Validators.
func (s *Slot) Tally(selfKey string, selfValid bool) (commit bool, votes map[string]bool) {
	s.consensus[selfKey] = Vote{Valid: selfValid}

	votes = make(map[string]bool, len(s.consensus))
	var trueCount, falseCount int
	for k, v := range s.consensus {
		votes[k] = v.Valid
		if v.Valid {
			trueCount++
		} else {
			falseCount++
		}
	}

	return trueCount > falseCount, votes
}

// NonVoters returns which of the given validator keys have not yet cast a
// vote for the live candidate, the set the vote timeout closes sockets for.
func (s *Slot) NonVoters(validators []string) []string {
	var out []string
	for _, v := range validators {
		if _, ok := s.consensus[v]; !ok {
			out = append(out, v)
		}
	}
	return out
}

// TimeoutReset clears accumulated votes for a rebroadcast round without
// abandoning the live candidate: spec.md §4.6 says the candidate is never
// abandoned by timeout alone, only by a commit decision.
func (s *Slot) TimeoutReset() {
	s.consensus = make(map[string]Vote)
}

// Advance closes the current slot (after a commit or a silent rejection)
// and, if the pending queue is non-empty, opens the next candidate in
// arrival order. It returns the newly opened candidate, or nil if the slot
// is now idle.
func (s *Slot) Advance() *tx.Transaction {
	s.state = Idle
	s.vote = nil
	s.consensus = make(map[string]Vote)

	if len(s.pending) == 0 {
		return nil
	}

	next := s.pending[0]
	s.pending = s.pending[1:]
	s.open(next)
	return s.vote
}
