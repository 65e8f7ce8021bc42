// Package chain maintains the hash-linked block sequence on top of the
// store: lazy genesis creation, block construction, and chain
// verification. It never touches users or the miner pool directly — that
// is ApplySnapshot's job — it only shapes and checks block headers.
package chain

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/libreledger/consensus-node/internal/codec"
	"github.com/libreledger/consensus-node/internal/common"
	"github.com/libreledger/consensus-node/internal/log"
	"github.com/libreledger/consensus-node/internal/model"
	"github.com/libreledger/consensus-node/internal/store"
)

var logger = log.NewModuleLogger(log.Chain)

// blockStore is the minimal persistence surface Chain needs; satisfied by
// *store.Store, kept as an interface here so tests can fake it without a
// live database connection.
type blockStore interface {
	LatestBlock() (*model.Block, error)
	GetBlock(number uint64) (*model.Block, error)
	AppendBlock(b *model.Block) error
}

// Chain wraps a Store with genesis/append/verify semantics.
type Chain struct {
	store blockStore
}

// New wraps s in a Chain.
func New(s *store.Store) *Chain {
	return &Chain{store: s}
}

// EnsureGenesis creates block 0 if the chain is empty. Safe to call
// repeatedly; a non-empty chain is left untouched.
func (c *Chain) EnsureGenesis(now int64) error {
	latest, err := c.store.LatestBlock()
	if err != nil {
		return errors.Wrap(err, "chain: ensure genesis")
	}
	if latest != nil {
		return nil
	}
	genesis := &model.Block{
		BlockNumber:  0,
		PrevHash:     codec.ZeroHash,
		StateHash:    codec.ZeroHash,
		CombinedHash: codec.ZeroHash,
		GroupID:      0,
		Miner:        common.Genesis,
		Timestamp:    now,
	}
	if err := c.store.AppendBlock(genesis); err != nil {
		return errors.Wrap(err, "chain: append genesis")
	}
	logger.Infow("genesis block created")
	return nil
}

// CreateBlock fills a new block's header from a finalized snapshot and
// returns it without storing it; the caller appends it (normally through
// Store.ApplySnapshot). state_hash is computed from snap itself so the
// header is always self-consistent.
func CreateBlock(prev *model.Block, snap model.Snapshot, miner common.Address, groupID uint64, signatures []model.SignatureBundle, now int64) *model.Block {
	b := &model.Block{
		BlockNumber:     prev.BlockNumber + 1,
		PrevHash:        prev.StateHash,
		StateHash:       snap.StateHash(),
		GroupID:         groupID,
		Miner:           miner,
		Timestamp:       now,
		ExecutedTxCount: len(snap.Executed),
		Signatures:      signatures,
	}
	b.CombinedHash = b.ComputeCombinedHash()
	return b
}

// Verify walks block numbers [from, to] and returns the first violation
// found, or nil if the range is well-formed. Block 0 (genesis) stores its
// header hashes as codec.ZeroHash rather than a hash actually computed
// over its fields, so its own prev_hash and combined_hash are not checked,
// only its presence; block 1's prev_hash is still checked against
// genesis's state_hash when the range starts at 0.
func (c *Chain) Verify(from, to uint64) error {
	var prev *model.Block
	for n := from; n <= to; n++ {
		b, err := c.store.GetBlock(n)
		if err != nil {
			return errors.Wrapf(err, "chain: verify read block %d", n)
		}
		if b == nil {
			return fmt.Errorf("chain: verify: block %d missing", n)
		}
		if n == 0 {
			prev = b
			continue
		}
		if n > from {
			if b.PrevHash != prev.StateHash {
				return fmt.Errorf("chain: verify: block %d prev_hash mismatch", n)
			}
		}
		if b.CombinedHash != b.ComputeCombinedHash() {
			return fmt.Errorf("chain: verify: block %d combined_hash mismatch", n)
		}
		prev = b
	}
	return nil
}
