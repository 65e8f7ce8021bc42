package store

import (
	"encoding/hex"
	"encoding/json"

	"github.com/pkg/errors"

	"github.com/libreledger/consensus-node/internal/common"
	"github.com/libreledger/consensus-node/internal/model"
)

func userToRecord(u *model.User) userRecord {
	return userRecord{
		Address: string(u.Address),
		Balance: u.Balance.String(),
		Nonce:   u.Nonce,
		Life:    u.Life,
	}
}

func recordToUser(rec userRecord) *model.User {
	bal, err := common.ParseAmount(rec.Balance)
	if err != nil {
		// A corrupt balance column indicates a storage-layer bug, not a
		// reachable runtime condition; zero is a safe, loud default since
		// callers will immediately notice balances are wrong.
		logger.Errorw("corrupt balance column", "address", rec.Address, "raw", rec.Balance, "err", err)
	}
	return &model.User{
		Address: common.Address(rec.Address),
		Balance: bal,
		Nonce:   rec.Nonce,
		Life:    rec.Life,
	}
}

// encodeUser/decodeUser are the cache's wire form: a tiny JSON envelope,
// distinct from the gorm record because the cache never sees a *gorm.DB.
type cachedUser struct {
	Balance string
	Nonce   uint64
	Life    int64
}

func encodeUser(u *model.User) []byte {
	b, _ := json.Marshal(cachedUser{Balance: u.Balance.String(), Nonce: u.Nonce, Life: u.Life})
	return b
}

func decodeUser(raw []byte) (*model.User, error) {
	var cu cachedUser
	if err := json.Unmarshal(raw, &cu); err != nil {
		return nil, errors.Wrap(err, "decode cached user")
	}
	bal, err := common.ParseAmount(cu.Balance)
	if err != nil {
		return nil, errors.Wrap(err, "decode cached user balance")
	}
	return &model.User{Balance: bal, Nonce: cu.Nonce, Life: cu.Life}, nil
}

func recordToGroup(rec groupRecord) (*model.Group, error) {
	var miners map[common.Address]int64
	if err := json.Unmarshal([]byte(rec.MinersRaw), &miners); err != nil {
		return nil, errors.Wrap(err, "decode group miners")
	}
	return &model.Group{GroupID: rec.GroupID, Miners: miners, CreatedAt: rec.CreatedAt}, nil
}

func blockToRecord(b *model.Block) (blockRecord, error) {
	raw, err := json.Marshal(b.Signatures)
	if err != nil {
		return blockRecord{}, err
	}
	return blockRecord{
		BlockNumber:     b.BlockNumber,
		PrevHash:        b.PrevHash,
		StateHash:       b.StateHash,
		CombinedHash:    b.CombinedHash,
		GroupID:         b.GroupID,
		Miner:           string(b.Miner),
		Timestamp:       b.Timestamp,
		ExecutedTxCount: b.ExecutedTxCount,
		SignaturesRaw:   string(raw),
	}, nil
}

func recordToBlock(rec blockRecord) (*model.Block, error) {
	var sigs []model.SignatureBundle
	if rec.SignaturesRaw != "" {
		if err := json.Unmarshal([]byte(rec.SignaturesRaw), &sigs); err != nil {
			return nil, errors.Wrap(err, "decode block signatures")
		}
	}
	return &model.Block{
		BlockNumber:     rec.BlockNumber,
		PrevHash:        rec.PrevHash,
		StateHash:       rec.StateHash,
		CombinedHash:    rec.CombinedHash,
		GroupID:         rec.GroupID,
		Miner:           common.Address(rec.Miner),
		Timestamp:       rec.Timestamp,
		ExecutedTxCount: rec.ExecutedTxCount,
		Signatures:      sigs,
	}, nil
}

func txToExecutedRecord(blockNumber uint64, t *model.Transaction) txExecutedRecord {
	return txExecutedRecord{
		BlockNumber: blockNumber,
		TxID:        t.TxID,
		Type:        string(t.Type),
		FromAddr:    string(t.From),
		ToAddr:      string(t.To),
		Amount:      t.Amount.String(),
		Fee:         t.Fee.String(),
		Nonce:       t.Nonce,
		Timestamp:   t.Timestamp,
		SignatureHx: hex.EncodeToString(t.Signature),
	}
}
