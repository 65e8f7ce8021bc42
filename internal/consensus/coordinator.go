// Package consensus implements the round state machine (CO): propose,
// broadcast, collect signatures, finalize or abandon — plus the parallel
// inbound-proposal path that hands off to the validator. The state
// machine itself never touches a socket or the database directly; it
// drives a gossip.Transport, a store.Store and a txpool.Pool, keeping
// "what drives a round" separate from "how bytes move".
package consensus

import (
	"context"
	"sync"
	"time"

	"github.com/libreledger/consensus-node/internal/chain"
	"github.com/libreledger/consensus-node/internal/committee"
	"github.com/libreledger/consensus-node/internal/common"
	"github.com/libreledger/consensus-node/internal/executor"
	"github.com/libreledger/consensus-node/internal/gossip"
	"github.com/libreledger/consensus-node/internal/log"
	"github.com/libreledger/consensus-node/internal/metrics"
	"github.com/libreledger/consensus-node/internal/model"
	"github.com/libreledger/consensus-node/internal/store"
	"github.com/libreledger/consensus-node/internal/txpool"
	"github.com/libreledger/consensus-node/internal/walletsig"
)

var logger = log.NewModuleLogger(log.Consensus)

// State is one node of the round state machine.
type State int

const (
	StateIdle State = iota
	StateProposing
	StateAwaitingSignatures
	StateFinalizing
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateProposing:
		return "PROPOSING"
	case StateAwaitingSignatures:
		return "AWAITING_SIGNATURES"
	case StateFinalizing:
		return "FINALIZING"
	default:
		return "UNKNOWN"
	}
}

// Config holds the round state machine's tunable timing.
type Config struct {
	// SignatureWaitSeconds is how long a proposal waits for its
	// committee to sign before it is abandoned. Range 1..600.
	SignatureWaitSeconds int
	// RebuildDelay is the pause before re-proposing after abandonment,
	// to avoid thrashing.
	RebuildDelay time.Duration
	// NotInGroupBackoff is the pause before retrying when the local
	// node isn't (yet) a member of the active group.
	NotInGroupBackoff time.Duration
}

// DefaultConfig matches the data model's stated defaults.
func DefaultConfig() Config {
	return Config{
		SignatureWaitSeconds: 60,
		RebuildDelay:         1500 * time.Millisecond,
		NotInGroupBackoff:    5 * time.Second,
	}
}

func (c Config) signatureWait() time.Duration {
	n := c.SignatureWaitSeconds
	if n < 1 {
		n = 1
	}
	if n > 600 {
		n = 600
	}
	return time.Duration(n) * time.Second
}

// round is the in-flight proposal a miner is currently collecting
// signatures for. Owned exclusively by Coordinator under its own mutex.
type round struct {
	stateHash string
	snapshot  model.Snapshot
	prevBlock *model.Block
	roster    []common.Address
	collected map[common.Address]model.SignatureBundle
}

// Coordinator drives one node's mining round state machine.
type Coordinator struct {
	mu    sync.Mutex
	state State
	cfg   Config

	store     *store.Store
	chain     *chain.Chain
	pool      *txpool.Pool
	transport *gossip.Transport
	signer    walletsig.Signer
	self      common.Address
	metrics   *metrics.Metrics

	mining  bool
	current *round
	timer   *time.Timer
	signed  map[string]bool // state hashes this node has already signed this session
}

// New builds a Coordinator. The transport's handler must route the
// message types consumed here (TRANSACTION, UPDATE_REQUEST, SIGNATURE,
// FINAL_UPDATE, HELLO, PING, PONG) to HandleEnvelope; BLOCK_ANNOUNCE and
// the STATE_* types go to the syncer instead. m may be nil, in which case
// round outcomes simply aren't counted.
func New(cfg Config, s *store.Store, ch *chain.Chain, pool *txpool.Pool, transport *gossip.Transport, signer walletsig.Signer, m *metrics.Metrics) *Coordinator {
	return &Coordinator{
		cfg:       cfg,
		store:     s,
		chain:     ch,
		pool:      pool,
		transport: transport,
		signer:    signer,
		self:      signer.Address(),
		metrics:   m,
		state:     StateIdle,
		signed:    make(map[string]bool),
	}
}

// Start turns mining on and kicks off the first proposal attempt.
func (c *Coordinator) Start() {
	c.mu.Lock()
	c.mining = true
	c.mu.Unlock()
	go c.propose()
}

// Stop turns mining off, cancels any pending timer, and abandons the
// in-flight proposal if any.
func (c *Coordinator) Stop() {
	c.mu.Lock()
	c.mining = false
	c.cancelTimerLocked()
	c.current = nil
	c.state = StateIdle
	c.mu.Unlock()
}

func (c *Coordinator) cancelTimerLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

func (c *Coordinator) scheduleRebuild(delay time.Duration) {
	time.AfterFunc(delay, func() { c.propose() })
}

func (c *Coordinator) setIdleLocked() {
	c.current = nil
	c.state = StateIdle
}

// propose runs IDLE -> PROPOSING -> AWAITING_SIGNATURES.
func (c *Coordinator) propose() {
	c.mu.Lock()
	if !c.mining || c.state != StateIdle {
		c.mu.Unlock()
		return
	}
	c.state = StateProposing
	c.mu.Unlock()

	group, err := c.store.LatestGroup()
	if err != nil || group == nil {
		logger.Warnw("no active group yet, backing off", "err", err)
		c.backToIdleAndRebuild(c.cfg.NotInGroupBackoff)
		return
	}
	if _, inGroup := group.Miners[c.self]; !inGroup {
		logger.Infow("not in active group, backing off")
		c.backToIdleAndRebuild(c.cfg.NotInGroupBackoff)
		return
	}

	users, err := c.store.AllUsers()
	if err != nil {
		logger.Errorw("storage fault reading users", "err", err)
		c.backToIdleAndRebuild(c.cfg.RebuildDelay)
		return
	}
	pendingPool, err := c.store.MinerPoolSnapshot()
	if err != nil {
		logger.Errorw("storage fault reading miner pool", "err", err)
		c.backToIdleAndRebuild(c.cfg.RebuildDelay)
		return
	}
	prevBlock, err := c.store.LatestBlock()
	if err != nil || prevBlock == nil {
		logger.Errorw("storage fault reading chain tip", "err", err)
		c.backToIdleAndRebuild(c.cfg.RebuildDelay)
		return
	}

	txs := c.pool.DrainOrdered()
	now := time.Now().Unix()

	snap, err := executor.Execute(executor.Input{
		Users:          users,
		MinerPool:      pendingPool,
		Group:          group,
		Miner:          c.self,
		Transactions:   txs,
		RoundTimestamp: now,
	})
	if err != nil {
		logger.Infow("round aborted", "reason", err)
		c.backToIdleAndRebuild(c.cfg.RebuildDelay)
		return
	}

	h := snap.StateHash()
	roster := rosterOf(group)

	c.mu.Lock()
	c.current = &round{
		stateHash: h,
		snapshot:  snap,
		prevBlock: prevBlock,
		roster:    roster,
		collected: make(map[common.Address]model.SignatureBundle),
	}
	c.state = StateAwaitingSignatures
	c.cancelTimerLocked()
	c.timer = time.AfterFunc(c.cfg.signatureWait(), c.onSignatureTimeout)
	c.mu.Unlock()

	if c.metrics != nil {
		c.metrics.RoundsProposed.Inc()
	}
	c.broadcastUpdateRequest(h, snap, group.GroupID, prevBlock.StateHash, now)
}

func (c *Coordinator) backToIdleAndRebuild(delay time.Duration) {
	c.mu.Lock()
	c.setIdleLocked()
	c.mu.Unlock()
	c.scheduleRebuild(delay)
}

func (c *Coordinator) broadcastUpdateRequest(stateHash string, snap model.Snapshot, groupID uint64, prevBlockHash string, now int64) {
	payload := UpdateRequestPayload{
		StateHash:      stateHash,
		ProposedState:  snap,
		Miner:          string(c.self),
		MinerPort:      c.transport.Port(),
		PrevBlockHash:  prevBlockHash,
		GroupID:        groupID,
		RoundTimestamp: now,
	}
	env, err := gossip.NewEnvelope(gossip.TypeUpdateRequest, string(c.self), c.transport.Port(), payload, now, true)
	if err != nil {
		logger.Errorw("failed to build update_request envelope", "err", err)
		return
	}
	c.transport.Broadcast(env, string(c.self))
}

// onSignatureTimeout handles InsufficientSignatures: abandon and rebuild.
func (c *Coordinator) onSignatureTimeout() {
	c.mu.Lock()
	if c.state != StateAwaitingSignatures {
		c.mu.Unlock()
		return
	}
	logger.Infow("signature wait expired, abandoning round", "state_hash", c.current.stateHash)
	c.setIdleLocked()
	mining := c.mining
	c.mu.Unlock()
	if c.metrics != nil {
		c.metrics.RoundsAbandoned.Inc()
	}
	if mining {
		c.scheduleRebuild(c.cfg.RebuildDelay)
	}
}

// HandleSignature processes an inbound SIGNATURE reply.
func (c *Coordinator) HandleSignature(p SignaturePayload) {
	signer := common.Address(p.Signer)

	c.mu.Lock()
	if c.current == nil || c.state != StateAwaitingSignatures || c.current.stateHash != p.StateHash {
		c.mu.Unlock()
		return
	}
	if !inRoster(signer, c.current.roster) {
		c.mu.Unlock()
		return
	}
	committeeSet := committee.Select(c.current.stateHash, c.current.roster)
	if !inRoster(signer, committeeSet) {
		c.mu.Unlock()
		return
	}
	if _, dup := c.current.collected[signer]; dup {
		c.mu.Unlock()
		return
	}
	if !c.signer.Verify(signer, p.StateHash, p.Signature) {
		c.mu.Unlock()
		return
	}
	c.current.collected[signer] = model.SignatureBundle{Signer: signer, StateHash: p.StateHash, Signature: p.Signature}
	n := len(c.current.collected)
	c.mu.Unlock()
	if c.metrics != nil {
		c.metrics.SignaturesTotal.Inc()
	}

	if n >= committee.MaxSize {
		c.finalize()
	}
}

// finalize handles AWAITING_SIGNATURES/FINALIZING -> IDLE.
func (c *Coordinator) finalize() {
	c.mu.Lock()
	if c.state != StateAwaitingSignatures || c.current == nil {
		c.mu.Unlock()
		return
	}
	c.state = StateFinalizing
	c.cancelTimerLocked()
	r := c.current
	mining := c.mining
	c.mu.Unlock()

	sigs := make([]model.SignatureBundle, 0, len(r.collected))
	for _, sb := range r.collected {
		sigs = append(sigs, sb)
	}

	block := chain.CreateBlock(r.prevBlock, r.snapshot, c.self, groupIDOf(r), sigs, time.Now().Unix())

	now := time.Now().Unix()
	env, err := gossip.NewEnvelope(gossip.TypeFinalUpdate, string(c.self), c.transport.Port(), FinalUpdatePayload{
		StateHash:  r.stateHash,
		State:      r.snapshot,
		Signatures: sigs,
		Block:      *block,
	}, now, true)
	if err == nil {
		c.transport.Broadcast(env, string(c.self))
	} else {
		logger.Errorw("failed to build final_update envelope", "err", err)
	}

	if err := c.store.ApplySnapshot(r.snapshot, block); err != nil {
		logger.Errorw("storage fault applying snapshot", "err", err)
	} else {
		c.pool.Clear()
		if c.metrics != nil {
			c.metrics.RoundsFinalized.Inc()
			c.metrics.BlockHeight.Set(float64(block.BlockNumber))
		}
	}

	c.mu.Lock()
	c.setIdleLocked()
	c.mu.Unlock()

	if mining {
		c.scheduleRebuild(0)
	}
}

func groupIDOf(r *round) uint64 {
	if r.snapshot.CurrentGroup != nil {
		return r.snapshot.CurrentGroup.GroupID
	}
	return 0
}

// HandleUpdateRequest is the non-miner path: validate and, if a
// committee member, sign and reply.
func (c *Coordinator) HandleUpdateRequest(remoteIP string, p UpdateRequestPayload) {
	recomputed := p.ProposedState.StateHash()
	if recomputed != p.StateHash {
		logger.Debugw("rejecting proposal: hash mismatch", "claimed", p.StateHash, "recomputed", recomputed)
		return
	}

	users, err := c.store.AllUsers()
	if err != nil {
		logger.Errorw("storage fault during validation", "err", err)
		return
	}
	pendingPool, err := c.store.MinerPoolSnapshot()
	if err != nil {
		logger.Errorw("storage fault during validation", "err", err)
		return
	}
	group, err := c.store.LatestGroup()
	if err != nil {
		logger.Errorw("storage fault during validation", "err", err)
		return
	}

	miner := common.Address(p.Miner)
	if err := ValidateProposal(miner, p.StateHash, p.ProposedState, users, pendingPool, group, p.RoundTimestamp); err != nil {
		logger.Debugw("rejecting proposal", "err", err)
		return
	}

	roster := rosterOf(p.ProposedState.CurrentGroup)
	committeeSet := committee.Select(p.StateHash, roster)
	if !inRoster(c.self, committeeSet) {
		return
	}

	c.mu.Lock()
	if c.signed[p.StateHash] {
		c.mu.Unlock()
		return
	}
	c.signed[p.StateHash] = true
	c.mu.Unlock()

	sig, err := c.signer.Sign(p.StateHash)
	if err != nil {
		logger.Errorw("failed to sign proposal", "err", err)
		return
	}

	payload := SignaturePayload{StateHash: p.StateHash, Signer: string(c.self), Signature: sig}
	env, err := gossip.NewEnvelope(gossip.TypeSignature, string(c.self), c.transport.Port(), payload, time.Now().Unix(), false)
	if err != nil {
		logger.Errorw("failed to build signature envelope", "err", err)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := c.transport.Send(ctx, remoteIP, p.MinerPort, env); err != nil {
		logger.Debugw("failed to send signature", "err", err)
	}
}

// HandleFinalUpdate installs a committed state, preempting any in-flight
// local proposal for a different hash.
func (c *Coordinator) HandleFinalUpdate(p FinalUpdatePayload) {
	if len(p.Signatures) < committee.MaxSize {
		logger.Debugw("rejecting final_update: insufficient signatures", "count", len(p.Signatures))
		return
	}
	roster := rosterOf(p.State.CurrentGroup)
	committeeSet := committee.Select(p.StateHash, roster)
	seen := make(map[common.Address]bool, len(p.Signatures))
	for _, sb := range p.Signatures {
		if !inRoster(sb.Signer, committeeSet) {
			logger.Debugw("rejecting final_update: signer outside committee", "signer", sb.Signer)
			return
		}
		if seen[sb.Signer] {
			continue // DuplicateSigner: ignore, don't reject the whole update
		}
		seen[sb.Signer] = true
		if !c.signer.Verify(sb.Signer, p.StateHash, sb.Signature) {
			logger.Debugw("rejecting final_update: invalid signature", "signer", sb.Signer)
			return
		}
	}
	if len(seen) < committee.MaxSize {
		logger.Debugw("rejecting final_update: insufficient distinct signers", "count", len(seen))
		return
	}

	if p.State.StateHash() != p.StateHash {
		logger.Debugw("rejecting final_update: hash mismatch")
		return
	}

	latest, err := c.store.LatestBlock()
	if err != nil {
		logger.Errorw("storage fault checking chain tip", "err", err)
		return
	}
	if latest == nil || p.Block.BlockNumber != latest.BlockNumber+1 {
		logger.Debugw("rejecting final_update: does not extend local chain")
		return
	}

	block := p.Block
	if err := c.store.ApplySnapshot(p.State, &block); err != nil {
		logger.Errorw("storage fault applying remote snapshot", "err", err)
		return
	}
	c.pool.Clear()
	if c.metrics != nil {
		c.metrics.BlockHeight.Set(float64(block.BlockNumber))
	}

	c.mu.Lock()
	preempted := c.current != nil && c.current.stateHash != p.StateHash
	if preempted || (c.current != nil && c.current.stateHash == p.StateHash) {
		c.cancelTimerLocked()
		c.setIdleLocked()
	}
	mining := c.mining
	c.mu.Unlock()

	if preempted {
		if c.metrics != nil {
			c.metrics.RoundsAbandoned.Inc()
		}
		logger.Infow("local proposal preempted by final_update", "installed", p.StateHash)
		if mining {
			c.scheduleRebuild(0)
		}
	}
}

// HandleEnvelope dispatches an inbound envelope to the matching handler.
// It has the gossip.Handler shape; the node's transport handler forwards
// to it every envelope type the syncer does not own.
func (c *Coordinator) HandleEnvelope(remoteIP string, env gossip.Envelope) {
	switch env.Type {
	case gossip.TypeTransaction:
		var p TransactionPayload
		if err := env.UnmarshalPayload(&p); err != nil {
			logger.Debugw("malformed transaction", "err", err)
			return
		}
		tx := p.Tx
		c.pool.Insert(&tx)
	case gossip.TypeUpdateRequest:
		var p UpdateRequestPayload
		if err := env.UnmarshalPayload(&p); err != nil {
			logger.Debugw("malformed update_request", "err", err)
			return
		}
		c.HandleUpdateRequest(remoteIP, p)
	case gossip.TypeSignature:
		var p SignaturePayload
		if err := env.UnmarshalPayload(&p); err != nil {
			logger.Debugw("malformed signature", "err", err)
			return
		}
		c.HandleSignature(p)
	case gossip.TypeFinalUpdate:
		var p FinalUpdatePayload
		if err := env.UnmarshalPayload(&p); err != nil {
			logger.Debugw("malformed final_update", "err", err)
			return
		}
		c.HandleFinalUpdate(p)
	case gossip.TypeHello:
		if err := c.transport.HandleHello(remoteIP, env); err != nil {
			logger.Debugw("malformed hello", "err", err)
		}
	case gossip.TypePing:
		if err := c.transport.HandlePing(remoteIP, env); err != nil {
			logger.Debugw("malformed ping", "err", err)
		}
	case gossip.TypePong:
		logger.Debugw("pong received", "sender", env.Sender)
	}
}

// State reports the coordinator's current round state, for the status API
// and the operator console.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func rosterOf(g *model.Group) []common.Address {
	if g == nil {
		return nil
	}
	out := make([]common.Address, 0, len(g.Miners))
	for addr := range g.Miners {
		out = append(out, addr)
	}
	return out
}

func inRoster(addr common.Address, roster []common.Address) bool {
	for _, a := range roster {
		if a == addr {
			return true
		}
	}
	return false
}

