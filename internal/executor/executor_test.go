package executor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/libreledger/consensus-node/internal/common"
	"github.com/libreledger/consensus-node/internal/model"
)

func baseUsers() map[common.Address]*model.User {
	return map[common.Address]*model.User{
		"miner0000000000": {Address: "miner0000000000", Balance: common.MustParseAmount("200"), Nonce: 0, Life: 10},
		"user0000000001": {Address: "user0000000001", Balance: common.Zero, Nonce: 0, Life: 10},
	}
}

func TestExecuteHappyPathTransferAndReward(t *testing.T) {
	in := Input{
		Users:     baseUsers(),
		MinerPool: map[common.Address]*model.MinerPoolEntry{},
		Group:     &model.Group{GroupID: 1, Miners: map[common.Address]int64{"miner0000000000": 0}},
		Miner:     "miner0000000000",
		Transactions: []*model.Transaction{
			{TxID: "tx1", Type: model.TxTransfer, From: "miner0000000000", To: "user0000000001", Amount: common.MustParseAmount("10")},
		},
		RoundTimestamp: 1000,
	}

	out, err := Execute(in)
	require.NoError(t, err)

	assert.Equal(t, "289.999000", out.Users["miner0000000000"].Balance.String())
	assert.Equal(t, "10.000000", out.Users["user0000000001"].Balance.String())
	assert.Len(t, out.Executed, 2)

	rewardCount := 0
	for _, tx := range out.Executed {
		if tx.Type == model.TxReward {
			rewardCount++
			assert.Equal(t, common.Address("miner0000000000"), tx.To)
			assert.Equal(t, "100.000000", tx.Amount.String())
		}
	}
	assert.Equal(t, 1, rewardCount)
}

func TestExecuteSkipsUnaffordableTransfer(t *testing.T) {
	users := baseUsers()
	users["miner0000000000"].Balance = common.MustParseAmount("5")
	in := Input{
		Users:     users,
		MinerPool: map[common.Address]*model.MinerPoolEntry{},
		Group:     &model.Group{GroupID: 1, Miners: map[common.Address]int64{"miner0000000000": 0}},
		Miner:     "miner0000000000",
		Transactions: []*model.Transaction{
			{TxID: "tx1", Type: model.TxTransfer, From: "miner0000000000", To: "user0000000001", Amount: common.MustParseAmount("10")},
		},
		RoundTimestamp: 1000,
	}

	out, err := Execute(in)
	require.NoError(t, err)
	assert.Equal(t, "0.000000", out.Users["user0000000001"].Balance.String())
	assert.Len(t, out.Executed, 1) // reward only
}

func TestExecuteMinerExpiredFails(t *testing.T) {
	users := baseUsers()
	users["miner0000000000"].Life = 1
	in := Input{
		Users:          users,
		MinerPool:      map[common.Address]*model.MinerPoolEntry{},
		Group:          &model.Group{GroupID: 1},
		Miner:          "miner0000000000",
		RoundTimestamp: 1000,
	}

	_, err := Execute(in)
	assert.ErrorIs(t, err, ErrMinerExpired)
}

func TestExecuteDoesNotMutateInput(t *testing.T) {
	users := baseUsers()
	snapshotBalance := users["miner0000000000"].Balance
	in := Input{
		Users:          users,
		MinerPool:      map[common.Address]*model.MinerPoolEntry{},
		Group:          &model.Group{GroupID: 1, Miners: map[common.Address]int64{"miner0000000000": 0}},
		Miner:          "miner0000000000",
		RoundTimestamp: 1000,
	}

	_, err := Execute(in)
	require.NoError(t, err)
	assert.Equal(t, snapshotBalance, users["miner0000000000"].Balance)
}

func TestExecuteGroupRotationAtThreshold(t *testing.T) {
	users := baseUsers()
	pool := map[common.Address]*model.MinerPoolEntry{}
	for i := 0; i < GroupRotationThreshold; i++ {
		addr := common.NewRandomAddress()
		pool[addr] = &model.MinerPoolEntry{Address: addr, JoinedAt: 0}
	}
	in := Input{
		Users:          users,
		MinerPool:      pool,
		Group:          &model.Group{GroupID: 1, Miners: map[common.Address]int64{"miner0000000000": 0}},
		Miner:          "miner0000000000",
		RoundTimestamp: 1000,
	}

	out, err := Execute(in)
	require.NoError(t, err)
	require.NotNil(t, out.CurrentGroup)
	assert.Equal(t, uint64(2), out.CurrentGroup.GroupID)
	assert.Len(t, out.MinerPool, 0)
	assert.Len(t, out.CurrentGroup.Miners, GroupRotationThreshold)
}
