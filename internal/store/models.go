package store

import "time"

// The records below are the gorm-mapped rows backing model.* values. They
// exist only at the storage boundary — every other package works with
// model types and never sees these directly.

type userRecord struct {
	Address string `gorm:"primary_key;size:32"`
	Balance string `gorm:"size:32"` // fixed 6-decimal string, see common.Amount.String
	Nonce   uint64
	Life    int64
}

func (userRecord) TableName() string { return "users" }

type minerPoolRecord struct {
	Address  string `gorm:"primary_key;size:32"`
	JoinedAt int64
}

func (minerPoolRecord) TableName() string { return "miner_pool" }

type groupRecord struct {
	GroupID   uint64 `gorm:"primary_key"`
	MinersRaw string `gorm:"type:text"` // JSON object address -> joined_at
	CreatedAt int64
}

func (groupRecord) TableName() string { return "groups" }

type blockRecord struct {
	BlockNumber     uint64 `gorm:"primary_key"`
	PrevHash        string `gorm:"size:64"`
	StateHash       string `gorm:"size:64"`
	CombinedHash    string `gorm:"size:64"`
	GroupID         uint64
	Miner           string `gorm:"size:32"`
	Timestamp       int64
	ExecutedTxCount int
	SignaturesRaw   string `gorm:"type:text"` // JSON array of signature bundles
}

func (blockRecord) TableName() string { return "blocks" }

type peerRecord struct {
	NodeID   string `gorm:"primary_key;size:64"`
	IP       string `gorm:"size:64"`
	Port     int
	LastSeen int64
}

func (peerRecord) TableName() string { return "peers" }

// txExecutedRecord records which transactions were part of which block's
// executed set, mostly useful for the explorer API.
type txExecutedRecord struct {
	ID          uint64 `gorm:"primary_key;AUTO_INCREMENT"`
	BlockNumber uint64 `gorm:"index"`
	TxID        string `gorm:"size:128;index"`
	Type        string `gorm:"size:16"`
	FromAddr    string `gorm:"size:32"`
	ToAddr      string `gorm:"size:32"`
	Amount      string `gorm:"size:32"`
	Fee         string `gorm:"size:32"`
	Nonce       uint64
	Timestamp   int64
	SignatureHx string `gorm:"type:text"`
	RecordedAt  time.Time
}

func (txExecutedRecord) TableName() string { return "tx_executed" }
