// Package syncer implements SY: catching a node up to the network after
// startup or after a BLOCK_ANNOUNCE advertises a height beyond the local
// chain. In steady state FINAL_UPDATE is the primary catch-up path; this
// handles the longer gaps that leaves behind.
package syncer

import (
	"context"
	"time"

	"github.com/libreledger/consensus-node/internal/chain"
	"github.com/libreledger/consensus-node/internal/gossip"
	"github.com/libreledger/consensus-node/internal/log"
	"github.com/libreledger/consensus-node/internal/model"
	"github.com/libreledger/consensus-node/internal/store"
)

var logger = log.NewModuleLogger(log.Sync)

// StateRequestPayload asks peers for their current state.
type StateRequestPayload struct {
	FromBlockNumber uint64 `json:"from_block_number"`
}

// StateUpdatePayload answers a StateRequest with a single block and the
// state snapshot that produced it.
type StateUpdatePayload struct {
	Block model.Block    `json:"block"`
	State model.Snapshot `json:"state"`
}

// Syncer drives the node's catch-up behavior.
type Syncer struct {
	store     *store.Store
	chain     *chain.Chain
	transport *gossip.Transport
	self      string
}

// New builds a Syncer.
func New(s *store.Store, ch *chain.Chain, transport *gossip.Transport, nodeID string) *Syncer {
	return &Syncer{store: s, chain: ch, transport: transport, self: nodeID}
}

// Start runs EnsureGenesis and then broadcasts a STATE_REQUEST so the
// node can catch up on anything committed while it was offline.
func (s *Syncer) Start() error {
	if err := s.chain.EnsureGenesis(time.Now().Unix()); err != nil {
		return err
	}
	return s.RequestState()
}

// RequestState broadcasts STATE_REQUEST for the local chain's next
// expected block number.
func (s *Syncer) RequestState() error {
	count, err := s.store.BlockCount()
	if err != nil {
		return err
	}
	payload := StateRequestPayload{FromBlockNumber: uint64(count)}
	env, err := gossip.NewEnvelope(gossip.TypeStateRequest, s.self, s.transport.Port(), payload, time.Now().Unix(), true)
	if err != nil {
		return err
	}
	s.transport.Broadcast(env, s.self)
	return nil
}

// HandleBlockAnnounce requests state if the advertised height is beyond
// what the local chain holds.
func (s *Syncer) HandleBlockAnnounce(blockNumber uint64) {
	count, err := s.store.BlockCount()
	if err != nil {
		logger.Errorw("storage fault checking block count", "err", err)
		return
	}
	if blockNumber+1 > uint64(count) {
		if err := s.RequestState(); err != nil {
			logger.Errorw("failed to request state", "err", err)
		}
	}
}

// HandleStateRequest answers a peer's request with the local chain tip,
// sent directly back rather than broadcast.
func (s *Syncer) HandleStateRequest(remoteIP string, senderPort int) {
	latest, err := s.store.LatestBlock()
	if err != nil || latest == nil {
		return
	}
	users, err := s.store.AllUsers()
	if err != nil {
		logger.Errorw("storage fault building state_update", "err", err)
		return
	}
	pool, err := s.store.MinerPoolSnapshot()
	if err != nil {
		logger.Errorw("storage fault building state_update", "err", err)
		return
	}
	group, err := s.store.LatestGroup()
	if err != nil {
		logger.Errorw("storage fault building state_update", "err", err)
		return
	}
	payload := StateUpdatePayload{
		Block: *latest,
		State: model.Snapshot{Users: users, MinerPool: pool, CurrentGroup: group},
	}
	env, err := gossip.NewEnvelope(gossip.TypeStateUpdate, s.self, s.transport.Port(), payload, time.Now().Unix(), false)
	if err != nil {
		logger.Errorw("failed to build state_update", "err", err)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := s.transport.Send(ctx, remoteIP, senderPort, env); err != nil {
		logger.Debugw("failed to send state_update", "err", err)
	}
}

// HandleStateUpdate installs an advertised block if it strictly extends
// the local chain, after validating the header chain locally.
func (s *Syncer) HandleStateUpdate(p StateUpdatePayload) {
	latest, err := s.store.LatestBlock()
	if err != nil {
		logger.Errorw("storage fault checking chain tip", "err", err)
		return
	}
	if latest != nil && p.Block.BlockNumber <= latest.BlockNumber {
		return
	}
	if latest != nil && p.Block.PrevHash != latest.StateHash {
		logger.Debugw("rejecting state_update: does not extend local chain")
		return
	}
	recomputed := p.State.StateHash()
	if recomputed != p.Block.StateHash {
		logger.Debugw("rejecting state_update: state hash mismatch")
		return
	}
	block := p.Block
	if err := s.store.ApplySnapshot(p.State, &block); err != nil {
		logger.Errorw("storage fault installing state_update", "err", err)
	}
}
