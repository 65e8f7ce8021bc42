// Validator implements VA: verifying an inbound proposal against local
// state before a node will sign it. A cheap path checks the reward and
// group membership; any node that intends to sign is required to run the
// full replay.
package consensus

import (
	"fmt"

	"github.com/libreledger/consensus-node/internal/common"
	"github.com/libreledger/consensus-node/internal/executor"
	"github.com/libreledger/consensus-node/internal/model"
)

// ErrHashMismatch is returned when the proposal's claimed hash does not
// match the recomputed one.
type ErrHashMismatch struct{ Claimed, Recomputed string }

func (e *ErrHashMismatch) Error() string {
	return fmt.Sprintf("consensus: hash mismatch: claimed %s recomputed %s", e.Claimed, e.Recomputed)
}

// ErrInvalidReward is returned when the proposal's executed set does not
// carry exactly one reward transaction addressed to the claimed miner.
var ErrInvalidReward = fmt.Errorf("consensus: proposal does not carry exactly one valid reward")

// ErrNotInGroup is returned when the claimed miner is not a member of the
// proposal's active group.
var ErrNotInGroup = fmt.Errorf("consensus: miner not a member of the active group")

// ErrReplayMismatch names the case where full re-execution disagrees with
// the proposed state. ValidateProposal does not return it: it reports that
// case as *ErrHashMismatch, which carries both hashes.
var ErrReplayMismatch = fmt.Errorf("consensus: replay of proposal against local state disagrees with claimed hash")

// checkRewardAndGroup is the cheap fast-path: exactly one reward tx to
// the claimed miner, and the miner is a member of the claimed group.
func checkRewardAndGroup(miner common.Address, snap model.Snapshot) error {
	rewards := 0
	for _, tx := range snap.Executed {
		if tx.Type == model.TxReward {
			rewards++
			if tx.To != miner || tx.Amount.Cmp(model.RewardAmount) != 0 {
				return ErrInvalidReward
			}
		}
	}
	if rewards != 1 {
		return ErrInvalidReward
	}
	if snap.CurrentGroup == nil {
		return ErrNotInGroup
	}
	if _, ok := snap.CurrentGroup.Miners[miner]; !ok {
		return ErrNotInGroup
	}
	return nil
}

// ValidateProposal runs VA's full contract: reward/group fast-path plus a
// full EX replay against the local pre-state, required of any node that
// will go on to sign. localUsers/localPool/localGroup are the validator's
// own pre-round state (localPool is the pending miner pool); the ordered
// transaction list replayed is snap.Executed with the reward removed.
func ValidateProposal(
	miner common.Address,
	claimedHash string,
	snap model.Snapshot,
	localUsers map[common.Address]*model.User,
	localPool map[common.Address]*model.MinerPoolEntry,
	localGroup *model.Group,
	roundTimestamp int64,
) error {
	if err := checkRewardAndGroup(miner, snap); err != nil {
		return err
	}

	replayed, err := executor.Execute(executor.Input{
		Users:          localUsers,
		MinerPool:      localPool,
		Group:          localGroup,
		Miner:          miner,
		Transactions:   withoutReward(snap.Executed),
		RoundTimestamp: roundTimestamp,
	})
	if err != nil {
		return fmt.Errorf("consensus: replay failed: %w", err)
	}

	got := replayed.StateHash()
	if got != claimedHash {
		return &ErrHashMismatch{Claimed: claimedHash, Recomputed: got}
	}
	return nil
}

// withoutReward strips the synthesized reward transaction back out of an
// executed list so it can be fed to Execute as the original pool
// ordering — Execute synthesizes its own reward, it never accepts one.
func withoutReward(executed []*model.Transaction) []*model.Transaction {
	out := make([]*model.Transaction, 0, len(executed))
	for _, tx := range executed {
		if tx.Type != model.TxReward {
			out = append(out, tx)
		}
	}
	return out
}
