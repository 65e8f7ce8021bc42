// Package model defines the ledger's persisted entities — the exact
// vocabulary every other package (codec, store, chain, executor,
// committee, consensus) shares. None of these types know how to hash or
// store themselves beyond the CanonicalValue methods in canonical.go;
// that keeps the wire/storage concerns in codec and store respectively.
package model

import "github.com/libreledger/consensus-node/internal/common"

// TxType enumerates the kinds of transaction the executor understands.
type TxType string

const (
	TxTransfer   TxType = "transfer"
	TxNewAccount TxType = "new_account"
	TxJoinPool   TxType = "join_pool"
	TxReward     TxType = "reward"
)

// InitialLife is the life every freshly created account starts with.
const InitialLife = 20_000_000

// RewardAmount is the fixed payout synthesized by the executor each round.
var RewardAmount = common.AmountFromInt(100)

// User is an account in the ledger.
type User struct {
	Address common.Address
	Balance common.Amount
	Nonce   uint64
	Life    int64
}

// Alive reports whether the user survives the round's life decrement.
func (u User) Alive() bool { return u.Life > 0 }

// Transaction is a single ledger operation, either submitted through the
// pool or synthesized by the executor (reward).
type Transaction struct {
	TxID      string
	Type      TxType
	From      common.Address
	To        common.Address
	Amount    common.Amount
	Fee       common.Amount
	Nonce     uint64
	Timestamp int64
	Signature []byte
}

// MinerPoolEntry records when an address joined the pending miner pool.
type MinerPoolEntry struct {
	Address  common.Address
	JoinedAt int64
}

// Group is a frozen committee roster. The active group is always the one
// with the highest GroupID known to the store.
type Group struct {
	GroupID   uint64
	Miners    map[common.Address]int64 // address -> joined_at
	CreatedAt int64
}

// Snapshot is the canonical tuple hashed once per round:
// {users, miner_pool, current_group, tx_executed}.
type Snapshot struct {
	Users        map[common.Address]*User
	MinerPool    map[common.Address]*MinerPoolEntry
	CurrentGroup *Group
	Executed     []*Transaction
}

// SignatureBundle is one committee member's signature over a proposal's
// state hash.
type SignatureBundle struct {
	Signer    common.Address
	StateHash string
	Signature []byte
}

// Block is one link in the hash chain.
type Block struct {
	BlockNumber     uint64
	PrevHash        string
	StateHash       string
	CombinedHash    string
	GroupID         uint64
	Miner           common.Address
	Timestamp       int64
	ExecutedTxCount int
	Signatures      []SignatureBundle
}

// Peer is a known gossip endpoint.
type Peer struct {
	NodeID   string
	IP       string
	Port     int
	LastSeen int64
}
