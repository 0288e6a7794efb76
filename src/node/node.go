package node

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/onevoteledger/svnode/src/consensus"
	"github.com/onevoteledger/svnode/src/gossip"
	"github.com/onevoteledger/svnode/src/protocol"
	"github.com/onevoteledger/svnode/src/state"
	"github.com/onevoteledger/svnode/src/sync"
	"github.com/onevoteledger/svnode/src/tx"
)

// Node is C8, the orchestrator: it owns the chain, wires the gossip mesh
// (C5) to the chain-sync collector (C6) and the vote state machine (C7),
// and runs the single cooperative event loop spec.md §5 requires. Every
// mutable piece of protocol state — Chain, the validator set, the vote
// slot — is touched only from run's loop goroutine; socket goroutines
// owned by gossip.Mesh communicate inward strictly over Mesh.Events.
type Node struct {
	lifecycle

	conf      *Config
	logger    *logrus.Entry
	validator *Validator

	chain      *state.Chain
	validators *gossip.ValidatorSet
	dedup      *gossip.DedupWindow
	slot       *consensus.Slot

	mesh      *gossip.Mesh
	voteTimer *consensus.VoteTimer

	syncCollector *sync.Collector
	syncPending   bool

	submitCh   chan tx.Transaction
	shutdownCh chan struct{}
	sigintCh   chan os.Signal
}

// New wires a Node from conf. Call Start to bring it up.
func New(conf *Config) *Node {
	if conf.Logger == nil {
		conf.Logger = logrus.New()
	}
	if conf.Chain == nil {
		conf.Chain = state.NewChain()
	}
	if conf.exit == nil {
		conf.exit = os.Exit
	}

	validator := NewValidator(conf.Key)

	sigintCh := make(chan os.Signal, 1)
	signal.Notify(sigintCh, os.Interrupt, syscall.SIGTERM)

	return &Node{
		conf:       conf,
		logger:     conf.Logger.WithField("this_id", validator.PublicKeyHex()),
		validator:  validator,
		chain:      conf.Chain,
		validators: gossip.NewValidatorSet(),
		dedup:      gossip.NewDedupWindow(protocol.GossipDedupWindow),
		slot:       consensus.New(),
		voteTimer:  consensus.NewVoteTimer(),
		submitCh:   make(chan tx.Transaction, 64),
		shutdownCh: make(chan struct{}),
		sigintCh:   sigintCh,
	}
}

// Submit hands a locally created transaction to the event loop, which
// announces it to every peer as a NEW_TRANSACTION (see submitLocal) before
// feeding it into the local consensus slot exactly like an inbound
// NEW_TRANSACTION would: opens a slot if idle, otherwise queues behind the
// live candidate.
func (n *Node) Submit(t tx.Transaction) {
	n.submitCh <- t
}

// Stats returns a lightweight operational snapshot, in the same spirit as
// babble's Node.GetStats: purely observational, never consulted by the
// consensus logic itself.
func (n *Node) Stats() map[string]string {
	voteState := "IDLE"
	if n.slot.State() == consensus.Voting {
		voteState = "VOTING"
	}
	return map[string]string{
		"chain_length":    fmt.Sprintf("%d", len(n.chain.Transactions)),
		"validator_count": fmt.Sprintf("%d", n.validators.Len()),
		"vote_state":      voteState,
		"pending_depth":   fmt.Sprintf("%d", n.slot.PendingLen()),
		"merkle_root":     n.chain.Merkle.Root(),
	}
}

// Start brings the node's transport up, runs the appropriate startup
// bootstrap path (local replay or peer sync), and blocks running the event
// loop until shutdown.
func (n *Node) Start() error {
	n.mesh = gossip.NewMesh(n.conf.Logger.WithField("this_id", n.validator.PublicKeyHex()))

	if n.conf.ListenAddr != "" {
		if err := n.mesh.Listen(n.conf.ListenAddr); err != nil {
			return fmt.Errorf("starting gossip listener: %w", err)
		}
	}

	for _, url := range n.conf.Peers {
		n.mesh.Dial(url)
	}

	if n.mesh.AnyOpen() {
		n.logger.Debug("peers connected, announcing and requesting chain sync")
		n.broadcastValidatorsRequest()
		n.announceSelf()
		n.beginChainSync()
	} else {
		n.bootstrapLocal()
	}

	go n.voteTimer.Run()
	n.setRunning(true)

	n.run()
	return nil
}

// Shutdown stops the event loop; Start's call to run() returns once the
// loop observes it.
func (n *Node) Shutdown() {
	if !n.isRunning() {
		return
	}
	n.setRunning(false)
	close(n.shutdownCh)
	n.voteTimer.Shutdown()
}

// bootstrapLocal implements spec.md §4.5's no-peer startup: either replay
// (accounts not yet materialized) or a merkle-only rebuild (accounts
// already known).
func (n *Node) bootstrapLocal() {
	if len(n.chain.Accounts) > 0 {
		n.logger.Debug("no peers, accounts already materialized: building merkle only")
		n.chain.Merkle = state.MerkleOnly(n.chain.Transactions)
		return
	}
	if len(n.chain.Transactions) > 0 {
		n.logger.Debug("no peers, replaying local transaction history")
		n.chain = state.Replay(n.chain.Transactions)
	}
}

func (n *Node) run() {
	for {
		select {
		case ev := <-n.mesh.Events():
			n.handleMeshEvent(ev)
		case t := <-n.submitCh:
			n.submitLocal(t)
		case <-n.voteTimer.Tick():
			n.handleVoteTimeout()
		case <-n.shutdownCh:
			return
		case <-n.sigintCh:
			n.logger.Debug("received interrupt, shutting down")
			n.Shutdown()
		}
	}
}

func (n *Node) handleMeshEvent(ev gossip.Event) {
	switch ev.Kind {
	case gossip.EventMessage:
		n.handleFrame(ev)
	case gossip.EventClosed:
		n.validators.Reset()
		n.broadcastValidatorsRequest()
	case gossip.EventWatchdog:
		if !n.mesh.AnyOpen() {
			n.logger.Warn("no peer connected, exiting")
			n.conf.exit(0)
		}
	}
}

// handleFrame implements spec.md §4.4 steps 1-5: reject malformed/replayed/
// forged envelopes, forward verbatim to every other socket, bind the
// socket's identity, then dispatch by type.
func (n *Node) handleFrame(ev gossip.Event) {
	env, err := gossip.Decode(ev.Raw)
	if err != nil {
		n.logger.WithField("error", err).Debug("dropping malformed frame")
		return
	}
	if env.Key == "" || env.Signature == "" || env.ID == "" {
		n.logger.Debug("dropping envelope missing key/sign/id")
		return
	}
	if n.dedup.Seen(env.ID) {
		return
	}
	if !env.Verify() {
		n.logger.WithField("key", env.Key).Debug("dropping envelope with bad signature")
		return
	}
	n.dedup.Record(env.ID)

	ev.Socket.BindIdentity(env.Key)

	if err := n.mesh.Broadcast(env, ev.Socket); err != nil {
		n.logger.WithField("error", err).Debug("rebroadcast failed")
	}

	n.dispatch(env)
}

func (n *Node) dispatch(env *gossip.Envelope) {
	switch env.Type {
	case gossip.TypeValidator:
		n.handleValidatorAnnounce(env, true)
	case gossip.TypeHelloValidator:
		n.handleValidatorAnnounce(env, false)
	case gossip.TypeValidators:
		n.announceSelf()
	case gossip.TypeGetChain:
		n.respondChainSync(env)
	case gossip.TypeChain:
		n.handleChainResponse(env)
	case gossip.TypeNewTransaction:
		n.handleNewTransaction(env)
	case gossip.TypeTransaction:
		n.handleTransactionVote(env)
	default:
		n.logger.WithField("type", env.Type).Debug("unknown envelope type")
	}
}

func (n *Node) handleValidatorAnnounce(env *gossip.Envelope, reply bool) {
	var pub string
	if err := json.Unmarshal(env.Data, &pub); err != nil {
		return
	}
	if pub != env.Key {
		return
	}

	if acct, ok := n.chain.Accounts[pub]; ok && acct.IsValidator(protocol.MinStake) {
		n.validators.Add(pub)
	}

	if reply {
		helloEnv, err := gossip.New(gossip.TypeHelloValidator, n.validator.PublicKeyHex(), "")
		if err != nil {
			return
		}
		if err := helloEnv.Sign(n.validator.PublicKeyHex(), n.validator.Sign); err != nil {
			return
		}
		if err := n.mesh.SendTo(env.Key, helloEnv); err != nil {
			n.logger.WithField("error", err).Debug("replying HELLO_VALIDATOR")
		}
	}
}

func (n *Node) announceSelf() {
	env, err := gossip.New(gossip.TypeValidator, n.validator.PublicKeyHex(), "")
	if err != nil {
		return
	}
	if err := env.Sign(n.validator.PublicKeyHex(), n.validator.Sign); err != nil {
		return
	}
	if err := n.mesh.Broadcast(env, nil); err != nil {
		n.logger.WithField("error", err).Debug("announcing self")
	}
}

func (n *Node) broadcastValidatorsRequest() {
	env, err := gossip.New(gossip.TypeValidators, nil, "")
	if err != nil {
		return
	}
	if err := env.Sign(n.validator.PublicKeyHex(), n.validator.Sign); err != nil {
		return
	}
	if err := n.mesh.Broadcast(env, nil); err != nil {
		n.logger.WithField("error", err).Debug("requesting validator re-announce")
	}
}

func (n *Node) beginChainSync() {
	n.syncCollector = sync.NewCollector()
	n.syncPending = true

	req, err := sync.BuildRequest()
	if err != nil {
		return
	}
	env, err := gossip.New(gossip.TypeGetChain, req, "")
	if err != nil {
		return
	}
	if err := env.Sign(n.validator.PublicKeyHex(), n.validator.Sign); err != nil {
		return
	}
	if err := n.mesh.Broadcast(env, nil); err != nil {
		n.logger.WithField("error", err).Debug("requesting chain sync")
	}
}

func (n *Node) respondChainSync(env *gossip.Envelope) {
	payload, err := sync.BuildPayload(n.chain.Transactions, n.chain.Merkle.Root())
	if err != nil {
		n.logger.WithField("error", err).Warn("building chain snapshot")
		return
	}
	resp, err := gossip.New(gossip.TypeChain, payload, env.Key)
	if err != nil {
		return
	}
	if err := resp.Sign(n.validator.PublicKeyHex(), n.validator.Sign); err != nil {
		return
	}
	if err := n.mesh.SendTo(env.Key, resp); err != nil {
		n.logger.WithField("error", err).Debug("sending chain snapshot")
	}
}

func (n *Node) handleChainResponse(env *gossip.Envelope) {
	if !n.syncPending || env.For != n.validator.PublicKeyHex() {
		return
	}

	var payload sync.Payload
	if err := json.Unmarshal(env.Data, &payload); err != nil {
		return
	}
	records, err := sync.ParseRecords(payload)
	if err != nil {
		n.logger.WithField("error", err).Debug("decoding peer chain snapshot")
		return
	}

	n.syncCollector.Add(env.Key, records, payload.Root)

	// validators.Len() is still settling from the startup VALIDATORS
	// re-announce round; waiting for at least one known validator avoids
	// Ready's |V|-1 threshold going negative and tallying on a single
	// early reply.
	if n.validators.Len() > 0 && n.syncCollector.Ready(n.validators.Len()) {
		n.finishChainSync()
	}
}

func (n *Node) finishChainSync() {
	n.syncPending = false

	records, _, ok := n.syncCollector.Plurality()
	if !ok {
		return
	}
	if !sync.ShouldAdopt(records, len(n.chain.Transactions)) {
		n.logger.Debug("plurality peer chain is shorter than local chain, keeping local")
		return
	}

	n.chain = state.Replay(records)
	n.logger.WithField("length", len(records)).Debug("adopted plurality peer chain")
}

func (n *Node) handleNewTransaction(env *gossip.Envelope) {
	var serialized string
	if err := json.Unmarshal(env.Data, &serialized); err != nil {
		return
	}
	t, err := tx.Deserialize(serialized)
	if err != nil {
		n.logger.WithField("error", err).Debug("decoding NEW_TRANSACTION")
		return
	}
	n.openOrQueue(*t)
}

// submitLocal handles a transaction submitted through this node's own
// Submit, as opposed to one received from a peer. Since it never passes
// through handleFrame's flood-fill forward, it must originate the
// NEW_TRANSACTION envelope itself so every other validator independently
// opens IDLE->VOTING on the same candidate (spec.md §4.6/§6) before
// opening the local slot and broadcasting this node's own vote.
func (n *Node) submitLocal(t tx.Transaction) {
	n.broadcastNewTransaction(t)
	n.openOrQueue(t)
}

func (n *Node) broadcastNewTransaction(t tx.Transaction) {
	serialized, err := tx.Serialize(&t)
	if err != nil {
		n.logger.WithField("error", err).Debug("serializing local submission")
		return
	}
	env, err := gossip.New(gossip.TypeNewTransaction, serialized, "")
	if err != nil {
		return
	}
	if err := env.Sign(n.validator.PublicKeyHex(), n.validator.Sign); err != nil {
		return
	}
	if err := n.mesh.Broadcast(env, nil); err != nil {
		n.logger.WithField("error", err).Debug("announcing new transaction")
	}
}

// openOrQueue implements the IDLE->VOTING transition (or the pending-queue
// push) shared by local Submit and inbound NEW_TRANSACTION.
func (n *Node) openOrQueue(t tx.Transaction) {
	if opened := n.slot.Submit(t); opened {
		n.broadcastCandidate()
	}
}

// broadcastCandidate announces the slot's current vote: used both when a
// slot first opens and, unchanged, as the rebroadcast on every vote
// timeout.
func (n *Node) broadcastCandidate() {
	candidate := n.slot.Vote()
	if candidate == nil {
		return
	}

	valid, _ := state.TransactionValid(candidate, true, n.chain.ValidationContext(n.slot.PendingLen(), time.Now().Unix()))

	serialized, err := tx.Serialize(candidate)
	if err != nil {
		return
	}

	payload := consensus.Payload{
		Transaction: serialized,
		Valid:       valid,
		Root:        n.chain.Merkle.Root(),
	}

	env, err := gossip.New(gossip.TypeTransaction, payload, "")
	if err != nil {
		return
	}
	if err := env.Sign(n.validator.PublicKeyHex(), n.validator.Sign); err != nil {
		return
	}
	if err := n.mesh.Broadcast(env, nil); err != nil {
		n.logger.WithField("error", err).Debug("broadcasting candidate")
	}

	n.voteTimer.Arm(protocol.MaxVoteTime)
}

func (n *Node) handleTransactionVote(env *gossip.Envelope) {
	if n.slot.State() != consensus.Voting {
		return
	}

	var payload consensus.Payload
	if err := json.Unmarshal(env.Data, &payload); err != nil {
		return
	}

	senderIsValidator := n.validators.Has(env.Key)
	n.slot.RecordVote(env.Key, senderIsValidator, n.chain.Merkle.Root(), consensus.Vote{
		Valid:       payload.Valid,
		Root:        payload.Root,
		Transaction: payload.Transaction,
	})

	if n.slot.ReadyToTally(n.validators.Len()) {
		n.tallyAndAdvance()
	}
}

// tallyAndAdvance implements the commit check of spec.md §4.6: fold in the
// local vote, tally, apply C4 on commit, then open the next pending
// candidate if any.
func (n *Node) tallyAndAdvance() {
	candidate := n.slot.Vote()

	selfValid, _ := state.TransactionValid(candidate, true, n.chain.ValidationContext(n.slot.PendingLen(), time.Now().Unix()))
	commit, votes := n.slot.Tally(n.validator.PublicKeyHex(), selfValid)

	if commit {
		record := tx.NewRecord(*candidate, votes)
		n.chain.Apply(record)
		n.logger.WithField("hash", candidate.HashHex(false)).Debug("committed transaction")
	} else {
		n.logger.WithField("hash", candidate.HashHex(false)).Debug("rejected transaction")
	}

	n.voteTimer.Cancel()

	if n.slot.Advance() != nil {
		n.broadcastCandidate()
	}
}

// handleVoteTimeout implements spec.md §4.6's timeout path: punish
// non-voters at the transport level, clear accumulated votes without
// abandoning the candidate, and rebroadcast.
func (n *Node) handleVoteTimeout() {
	for _, key := range n.slot.NonVoters(n.validators.Keys()) {
		n.mesh.CloseIdentity(key)
	}
	n.slot.TimeoutReset()
	n.broadcastCandidate()
}
