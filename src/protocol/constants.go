// Package protocol holds the cross-cutting economic and timing constants
// shared by the state transition (C4), gossip layer (C5), and vote state
// machine (C7). Keeping them in one leaf package avoids every pair of those
// packages needing to import each other just to agree on a number.
package protocol

import "time"

const (
	// MinStake is the minimum stake balance required to be counted as a
	// validator.
	MinStake uint64 = 1_000_000_000

	// Fee is subtracted from every non-genesis transfer before crediting the
	// recipient or the sender's stake; it is what gets distributed to
	// validators on commit.
	Fee uint64 = 100

	// Fine is debited from a validator's stake when it dissents from a
	// committed transaction's outcome.
	Fine uint64 = 10_000

	// TimestampRange is the number of seconds a transaction's timestamp may
	// lead the local clock, and the base grace period before a candidate's
	// timestamp is considered expired.
	TimestampRange int64 = 60

	// MaxVoteTime is how long a consensus slot waits for a quorum before
	// re-arming and rebroadcasting.
	MaxVoteTime = 10_000 * time.Millisecond

	// GossipDedupWindow is the number of most-recent message ids a node
	// remembers for deduplication.
	GossipDedupWindow = 10

	// GenesisWindow is the size of the bootstrap prefix of the chain that is
	// exempt from signature verification, provided its body is "GENESIS".
	GenesisWindow = 6
)
