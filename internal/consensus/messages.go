package consensus

import (
	"github.com/libreledger/consensus-node/internal/model"
)

// TransactionPayload gossips a single pool-bound transaction.
type TransactionPayload struct {
	Tx model.Transaction `json:"tx"`
}

// UpdateRequestPayload is the body of an UPDATE_REQUEST envelope: a
// miner's proposed next state.
type UpdateRequestPayload struct {
	StateHash      string          `json:"state_hash"`
	ProposedState  model.Snapshot  `json:"proposed_state"`
	Miner          string          `json:"miner"`
	MinerPort      int             `json:"miner_port"`
	PrevBlockHash  string          `json:"prev_block_hash"`
	GroupID        uint64          `json:"group_id"`
	RoundTimestamp int64           `json:"round_timestamp"`
}

// SignaturePayload is sent directly back to the proposing miner.
type SignaturePayload struct {
	StateHash string `json:"state_hash"`
	Signer    string `json:"signer"`
	Signature []byte `json:"signature"`
}

// FinalUpdatePayload is gossiped once a proposal collects its threshold
// of signatures.
type FinalUpdatePayload struct {
	StateHash  string                  `json:"state_hash"`
	State      model.Snapshot          `json:"state"`
	Signatures []model.SignatureBundle `json:"signatures"`
	Block      model.Block             `json:"block"`
}

// BlockAnnouncePayload is a lightweight height advertisement.
type BlockAnnouncePayload struct {
	BlockNumber uint64 `json:"block_number"`
	StateHash   string `json:"state_hash"`
}
