package model

import (
	"encoding/hex"

	"github.com/libreledger/consensus-node/internal/codec"
)

// CanonicalValue renders a transaction as a codec.Value for hashing and
// for inclusion in a snapshot's canonical form.
func (t Transaction) CanonicalValue() codec.Value {
	return codec.Obj(map[string]codec.Value{
		"tx_id":     codec.Str(t.TxID),
		"type":      codec.Str(string(t.Type)),
		"from":      codec.Str(string(t.From)),
		"to":        codec.Str(string(t.To)),
		"amount":    codec.Dec(t.Amount),
		"fee":       codec.Dec(t.Fee),
		"nonce":     codec.Int(int64(t.Nonce)),
		"timestamp": codec.Int(t.Timestamp),
		"signature": codec.Str(hex.EncodeToString(t.Signature)),
	})
}

// CanonicalValue renders a user as a codec.Value.
func (u User) CanonicalValue() codec.Value {
	return codec.Obj(map[string]codec.Value{
		"address": codec.Str(string(u.Address)),
		"balance": codec.Dec(u.Balance),
		"nonce":   codec.Int(int64(u.Nonce)),
		"life":    codec.Int(u.Life),
	})
}

// CanonicalValue renders a group as a codec.Value.
func (g Group) CanonicalValue() codec.Value {
	miners := make(map[string]codec.Value, len(g.Miners))
	for addr, joinedAt := range g.Miners {
		miners[string(addr)] = codec.Int(joinedAt)
	}
	return codec.Obj(map[string]codec.Value{
		"group_id":   codec.Int(int64(g.GroupID)),
		"miners":     codec.Obj(miners),
		"created_at": codec.Int(g.CreatedAt),
	})
}

// CanonicalValue renders the whole state snapshot as a codec.Value. This
// is the value that StateHash hashes: state_hash = SHA-256(CC(snapshot)).
func (s Snapshot) CanonicalValue() codec.Value {
	users := make(map[string]codec.Value, len(s.Users))
	for addr, u := range s.Users {
		users[string(addr)] = u.CanonicalValue()
	}
	pool := make(map[string]codec.Value, len(s.MinerPool))
	for addr, e := range s.MinerPool {
		pool[string(addr)] = codec.Int(e.JoinedAt)
	}
	executed := make([]codec.Value, len(s.Executed))
	for i, tx := range s.Executed {
		executed[i] = tx.CanonicalValue()
	}
	var group codec.Value = codec.Null
	if s.CurrentGroup != nil {
		group = s.CurrentGroup.CanonicalValue()
	}
	return codec.Obj(map[string]codec.Value{
		"users":         codec.Obj(users),
		"miner_pool":    codec.Obj(pool),
		"current_group": group,
		"tx_executed":   codec.Array(executed...),
	})
}

// StateHash computes SHA-256(CC(snapshot)) as a lowercase hex string.
func (s Snapshot) StateHash() string {
	return codec.HashHex(s.CanonicalValue())
}

// headerValue renders the header fields combined_hash is computed over:
// {block_number, prev_hash, state_hash, group_id, miner, timestamp}.
func (b Block) headerValue() codec.Value {
	return codec.Obj(map[string]codec.Value{
		"block_number": codec.Int(int64(b.BlockNumber)),
		"prev_hash":    codec.Str(b.PrevHash),
		"state_hash":   codec.Str(b.StateHash),
		"group_id":     codec.Int(int64(b.GroupID)),
		"miner":        codec.Str(string(b.Miner)),
		"timestamp":    codec.Int(b.Timestamp),
	})
}

// ComputeCombinedHash computes combined_hash = SHA-256(CC(header_fields(b))).
func (b Block) ComputeCombinedHash() string {
	return codec.HashHex(b.headerValue())
}
