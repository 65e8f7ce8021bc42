// Package executor implements the pure state-transition function applied
// once per mining round: a copy of the current state plus an ordered
// transaction list plus a miner address goes in, a new state plus the
// list of transactions actually executed comes out. Nothing here touches
// storage, the network, or time — the caller supplies the round's
// timestamp so the function stays referentially transparent and testable
// without mocking a clock.
package executor

import (
	"fmt"
	"sort"

	"github.com/pkg/errors"

	"github.com/libreledger/consensus-node/internal/committee"
	"github.com/libreledger/consensus-node/internal/common"
	"github.com/libreledger/consensus-node/internal/log"
	"github.com/libreledger/consensus-node/internal/model"
)

var logger = log.NewModuleLogger(log.Executor)

// ErrMinerExpired is returned when the life decrement removes the miner
// before the round's transactions are even considered.
var ErrMinerExpired = errors.New("executor: miner expired during life decrement")

// GroupRotationThreshold is the miner pool size that triggers a new group.
const GroupRotationThreshold = 1000

// GroupSampleCap is the largest number of addresses carried into a newly
// rotated group; larger pools are sampled down to this size.
const GroupSampleCap = 100_000

var (
	feeNewAccount  = common.MustParseAmount("1.0")
	feeJoinPool    = common.MustParseAmount("0.000001")
	feeTransferMin = common.MustParseAmount("0.000001")
)

// transferFee returns max(0.000001, amount * 0.0001).
func transferFee(amount common.Amount) common.Amount {
	return common.Max(feeTransferMin, amount.MulFraction(1, 10000))
}

// Input bundles everything the executor needs for one round. Users,
// MinerPool and Group are never mutated; Execute operates on copies.
type Input struct {
	Users          map[common.Address]*model.User
	MinerPool      map[common.Address]*model.MinerPoolEntry
	Group          *model.Group
	Miner          common.Address
	Transactions   []*model.Transaction
	RoundTimestamp int64
}

// Execute runs one round of the state transition and returns the
// resulting snapshot. It never mutates in.Users, in.MinerPool or in.Group.
func Execute(in Input) (model.Snapshot, error) {
	users := cloneUsers(in.Users)
	pool := clonePool(in.MinerPool)

	decrementLife(users)

	miner, ok := users[in.Miner]
	if !ok || !miner.Alive() {
		return model.Snapshot{}, errors.Wrapf(ErrMinerExpired, "miner %s", in.Miner)
	}

	executed := make([]*model.Transaction, 0, len(in.Transactions)+1)
	for _, tx := range in.Transactions {
		if applied, record := applyTransaction(users, pool, tx, in.RoundTimestamp); applied {
			executed = append(executed, record)
		}
	}

	reward := &model.Transaction{
		TxID:      fmt.Sprintf("reward_%d", in.RoundTimestamp),
		Type:      model.TxReward,
		To:        in.Miner,
		Amount:    model.RewardAmount,
		Timestamp: in.RoundTimestamp,
	}
	miner.Balance = miner.Balance.Add(model.RewardAmount)
	executed = append(executed, reward)

	group := in.Group
	if len(pool) >= GroupRotationThreshold {
		group = rotateGroup(in.Group, pool, in.RoundTimestamp)
		pool = map[common.Address]*model.MinerPoolEntry{}
	}

	return model.Snapshot{
		Users:        users,
		MinerPool:    pool,
		CurrentGroup: group,
		Executed:     executed,
	}, nil
}

// decrementLife ages every user by one round, removing anyone whose life
// reaches zero or below.
func decrementLife(users map[common.Address]*model.User) {
	for addr, u := range users {
		u.Life--
		if u.Life <= 0 {
			delete(users, addr)
		}
	}
}

// applyTransaction attempts to apply a single pool transaction against
// users/pool in place. It reports whether the transaction executed and,
// if so, the record to include in the snapshot's executed list.
func applyTransaction(users map[common.Address]*model.User, pool map[common.Address]*model.MinerPoolEntry, tx *model.Transaction, now int64) (bool, *model.Transaction) {
	switch tx.Type {
	case model.TxTransfer:
		return applyTransfer(users, tx)
	case model.TxNewAccount:
		return applyNewAccount(users, tx)
	case model.TxJoinPool:
		return applyJoinPool(users, pool, tx, now)
	default:
		logger.Debugw("skipping transaction of unrecognized type", "tx_id", tx.TxID, "type", tx.Type)
		return false, nil
	}
}

func applyTransfer(users map[common.Address]*model.User, tx *model.Transaction) (bool, *model.Transaction) {
	sender, ok := users[tx.From]
	if !ok {
		return false, nil
	}
	receiver, ok := users[tx.To]
	if !ok {
		return false, nil
	}
	fee := transferFee(tx.Amount)
	cost := tx.Amount.Add(fee)
	if !sender.Balance.GTE(cost) {
		return false, nil
	}
	sender.Balance = sender.Balance.Sub(cost)
	receiver.Balance = receiver.Balance.Add(tx.Amount)
	sender.Nonce++
	record := *tx
	record.Fee = fee
	return true, &record
}

func applyNewAccount(users map[common.Address]*model.User, tx *model.Transaction) (bool, *model.Transaction) {
	if !tx.To.Valid() || len(tx.To) != common.AddressLength {
		return false, nil
	}
	if _, exists := users[tx.To]; exists {
		return false, nil
	}
	sender, ok := users[tx.From]
	if !ok || !sender.Balance.GTE(feeNewAccount) {
		return false, nil
	}
	sender.Balance = sender.Balance.Sub(feeNewAccount)
	sender.Nonce++
	users[tx.To] = &model.User{
		Address: tx.To,
		Balance: common.Zero,
		Nonce:   0,
		Life:    model.InitialLife,
	}
	record := *tx
	record.Fee = feeNewAccount
	return true, &record
}

func applyJoinPool(users map[common.Address]*model.User, pool map[common.Address]*model.MinerPoolEntry, tx *model.Transaction, now int64) (bool, *model.Transaction) {
	sender, ok := users[tx.From]
	if !ok || !sender.Balance.GTE(feeJoinPool) {
		return false, nil
	}
	sender.Balance = sender.Balance.Sub(feeJoinPool)
	sender.Nonce++
	if _, already := pool[tx.From]; !already {
		pool[tx.From] = &model.MinerPoolEntry{Address: tx.From, JoinedAt: now}
	}
	record := *tx
	record.Fee = feeJoinPool
	return true, &record
}

// rotateGroup creates the next group from the pending pool, sampling down
// to GroupSampleCap when the pool exceeds it, seeded by the new group id.
func rotateGroup(prev *model.Group, pool map[common.Address]*model.MinerPoolEntry, now int64) *model.Group {
	nextID := uint64(1)
	if prev != nil {
		nextID = prev.GroupID + 1
	}

	addrs := make([]common.Address, 0, len(pool))
	for addr := range pool {
		addrs = append(addrs, addr)
	}
	sort.Slice(addrs, func(i, j int) bool { return addrs[i] < addrs[j] })

	if len(addrs) > GroupSampleCap {
		addrs = committee.DeterministicSample(nextID, addrs, GroupSampleCap)
	}

	miners := make(map[common.Address]int64, len(addrs))
	for _, addr := range addrs {
		miners[addr] = now
	}

	logger.Infow("rotating miner group", "group_id", nextID, "members", len(miners))
	return &model.Group{GroupID: nextID, Miners: miners, CreatedAt: now}
}

func cloneUsers(in map[common.Address]*model.User) map[common.Address]*model.User {
	out := make(map[common.Address]*model.User, len(in))
	for addr, u := range in {
		cp := *u
		out[addr] = &cp
	}
	return out
}

func clonePool(in map[common.Address]*model.MinerPoolEntry) map[common.Address]*model.MinerPoolEntry {
	out := make(map[common.Address]*model.MinerPoolEntry, len(in))
	for addr, e := range in {
		cp := *e
		out[addr] = &cp
	}
	return out
}
