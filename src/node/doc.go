// Package node implements C8, the orchestrator that wires together the
// gossip mesh (src/gossip), chain sync (src/sync), and the vote state
// machine (src/consensus) around one owned chain (src/state).
//
// Concurrency
//
// A Node runs a single cooperative event loop. Socket I/O happens on
// goroutines owned by the gossip mesh, but those goroutines only ever push
// events onto a channel; every decode, verify, dedup, validator-set update,
// vote-slot mutation, and chain append happens inside the loop goroutine.
// There is no lock protecting the chain, the validator set, or the vote
// slot, because nothing outside the loop ever touches them.
//
// Startup
//
// With no peers configured (or none reachable), a Node bootstraps its
// local chain: either a Merkle-only rebuild, if its accounts are already
// materialized, or a full replay of the account-state transition if they
// are not. With at least one peer reachable, a Node announces itself,
// requests peers to re-announce, and broadcasts a chain-sync request; once
// enough peers have answered, it adopts the plurality snapshot if it is at
// least as long as its own chain.
//
// Shutdown
//
// A Node's reconnect watchdog exits the process if no socket is open after
// its grace window, on the assumption an external supervisor will restart
// it. There is no other automatic restart or retry at this layer; gossip
// flooding and the vote-timeout rebroadcast are the only retries the
// protocol performs.
package node
