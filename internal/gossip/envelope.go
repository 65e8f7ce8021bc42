package gossip

import (
	"encoding/json"

	"github.com/libreledger/consensus-node/internal/codec"
)

// Message types carried over the transport.
const (
	TypeHello         = "HELLO"
	TypePresence      = "PRESENCE"
	TypePing          = "PING"
	TypePong          = "PONG"
	TypeTransaction   = "TRANSACTION"
	TypeUpdateRequest = "UPDATE_REQUEST"
	TypeSignature     = "SIGNATURE"
	TypeFinalUpdate   = "FINAL_UPDATE"
	TypeStateRequest  = "STATE_REQUEST"
	TypeStateUpdate   = "STATE_UPDATE"
	TypeBlockAnnounce = "BLOCK_ANNOUNCE"
)

// Envelope is the single unit carried by one one-shot connection. Payload
// is left as raw JSON so each message type can define its own shape
// without Envelope needing to know about it.
type Envelope struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	Sender     string          `json:"sender"`
	SenderPort int             `json:"sender_port"`
	Payload    json.RawMessage `json:"payload"`
	Timestamp  int64           `json:"timestamp"`
	Broadcast  bool            `json:"broadcast"`
}

// bodyValue is the canonical form of everything but id — the exact bytes
// id is a hash over, so that two nodes constructing the same logical
// envelope always compute the same id.
func (e Envelope) bodyValue() codec.Value {
	return codec.Obj(map[string]codec.Value{
		"type":        codec.Str(e.Type),
		"sender":      codec.Str(e.Sender),
		"sender_port": codec.Int(int64(e.SenderPort)),
		"payload":     codec.Str(string(e.Payload)),
		"timestamp":   codec.Int(e.Timestamp),
		"broadcast":   codec.Bool(e.Broadcast),
	})
}

// NewEnvelope builds an envelope with its id populated from the canonical
// hash of every other field.
func NewEnvelope(msgType, sender string, senderPort int, payload interface{}, timestamp int64, broadcast bool) (Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	e := Envelope{
		Type:       msgType,
		Sender:     sender,
		SenderPort: senderPort,
		Payload:    raw,
		Timestamp:  timestamp,
		Broadcast:  broadcast,
	}
	e.ID = codec.HashHex(e.bodyValue())
	return e, nil
}

// Encode serializes the envelope for the wire.
func (e Envelope) Encode() ([]byte, error) {
	return json.Marshal(e)
}

// DecodeEnvelope parses bytes received over a one-shot connection.
func DecodeEnvelope(b []byte) (Envelope, error) {
	var e Envelope
	err := json.Unmarshal(b, &e)
	return e, err
}

// UnmarshalPayload decodes the envelope's payload into v.
func (e Envelope) UnmarshalPayload(v interface{}) error {
	return json.Unmarshal(e.Payload, v)
}
