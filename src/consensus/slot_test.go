package consensus

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/onevoteledger/svnode/src/tx"
)

func sampleTx(nonce uint64) tx.Transaction {
	return tx.Transaction{From: "A", To: "B", Amount: 1000, Nonce: nonce}
}

func serialize(t *testing.T, txn tx.Transaction) string {
	s, err := tx.Serialize(&txn)
	require.NoError(t, err)
	return s
}

func TestSubmitOpensWhenIdle(t *testing.T) {
	require := require.New(t)
	s := New()
	require.Equal(Idle, s.State())

	opened := s.Submit(sampleTx(0))
	require.True(opened, "first submit should open the slot")
	require.Equal(Voting, s.State())
}

// single-slot property: a submission while a vote is live is queued, not
// opened, and queue order is preserved.
func TestSubmitQueuesWhileVoting(t *testing.T) {
	require := require.New(t)
	s := New()
	s.Submit(sampleTx(0))

	t2 := sampleTx(1)
	t3 := sampleTx(2)

	require.False(s.Submit(t2), "second submit during an open slot must queue, not open")
	require.False(s.Submit(t3), "third submit during an open slot must queue, not open")
	require.Equal(2, s.PendingLen())

	s.Advance()
	require.Equal(t2.Nonce, s.Vote().Nonce, "advance should promote the head of the pending queue (T2) first")

	s.Advance()
	require.Equal(t3.Nonce, s.Vote().Nonce, "advance should promote T3 after T2 commits")
}

func TestRecordVoteRejectsRootMismatch(t *testing.T) {
	require := require.New(t)
	s := New()
	candidate := sampleTx(0)
	s.Submit(candidate)

	added := s.RecordVote("peerA", true, "local-root", Vote{
		Valid:       true,
		Root:        "different-root",
		Transaction: serialize(t, candidate),
	})
	require.False(added, "a vote reporting a divergent root must be dropped")
	require.Equal(0, s.ConsensusLen())
}

func TestRecordVoteRejectsNonValidator(t *testing.T) {
	require := require.New(t)
	s := New()
	candidate := sampleTx(0)
	s.Submit(candidate)

	added := s.RecordVote("peerA", false, "root", Vote{
		Valid:       true,
		Root:        "root",
		Transaction: serialize(t, candidate),
	})
	require.False(added, "a vote from a non-validator must be dropped")
}

func TestRecordVoteRejectsHashMismatch(t *testing.T) {
	require := require.New(t)
	s := New()
	s.Submit(sampleTx(0))

	other := sampleTx(99)
	added := s.RecordVote("peerA", true, "root", Vote{
		Valid:       true,
		Root:        "root",
		Transaction: serialize(t, other),
	})
	require.False(added, "a vote for a different transaction must be dropped")
}

func TestRecordVoteAccepts(t *testing.T) {
	require := require.New(t)
	s := New()
	candidate := sampleTx(0)
	s.Submit(candidate)

	added := s.RecordVote("peerA", true, "root", Vote{
		Valid:       true,
		Root:        "root",
		Transaction: serialize(t, candidate),
	})
	require.True(added, "a well-formed matching vote should be accepted")
	require.Equal(1, s.ConsensusLen())
}

// quorum threshold: commit iff |consensus| >= |V| and trueCount > falseCount.
func TestTallyCommitsOnMajority(t *testing.T) {
	require := require.New(t)
	s := New()
	s.Submit(sampleTx(0))
	s.consensus["A"] = Vote{Valid: true}
	s.consensus["B"] = Vote{Valid: true}

	require.True(s.ReadyToTally(2), "validatorSetSize is the peer-only set {A,B}; once both have voted, |consensus|=|V| and tally is ready")

	commit, votes := s.Tally("C", false)
	require.True(commit, "2 true vs 1 false should commit")
	require.Len(votes, 3)
	require.False(votes["C"], "C's own recorded vote should be false as supplied")
}

func TestTallyRejectsOnMinority(t *testing.T) {
	require := require.New(t)
	s := New()
	s.Submit(sampleTx(0))
	s.consensus["A"] = Vote{Valid: false}
	s.consensus["B"] = Vote{Valid: false}

	commit, _ := s.Tally("C", true)
	require.False(commit, "1 true vs 2 false should not commit")
}

func TestNonVoters(t *testing.T) {
	require := require.New(t)
	s := New()
	s.Submit(sampleTx(0))
	s.consensus["A"] = Vote{Valid: true}

	missing := s.NonVoters([]string{"A", "B", "C"})
	require.Len(missing, 2)
}

func TestAdvanceReturnsNilWhenQueueEmpty(t *testing.T) {
	require := require.New(t)
	s := New()
	s.Submit(sampleTx(0))

	next := s.Advance()
	require.Nil(next, "advance with an empty queue should return nil")
	require.Equal(Idle, s.State())
}
