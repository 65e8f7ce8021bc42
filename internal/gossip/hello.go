package gossip

import (
	"context"
	"time"
)

// HelloPayload is the bootstrap introduction carried by a HELLO envelope.
type HelloPayload struct {
	NodeID string `json:"node_id"`
	Port   int    `json:"port"`
}

// SayHello sends a one-shot HELLO to a configured peer address. It does
// not wait for a reply and does not add the peer to this node's own
// directory; the recipient registers this node in HandleHello.
func (t *Transport) SayHello(ctx context.Context, ip string, port int) error {
	env, err := NewEnvelope(TypeHello, t.nodeID, t.port, HelloPayload{NodeID: t.nodeID, Port: t.port}, time.Now().Unix(), false)
	if err != nil {
		return err
	}
	return t.Send(ctx, ip, port, env)
}

// HandleHello registers the peer directory entry for a HELLO sender,
// keyed by its node id and recorded at the connection's observed IP
// rather than a self-reported one.
func (t *Transport) HandleHello(remoteIP string, env Envelope) error {
	var p HelloPayload
	if err := env.UnmarshalPayload(&p); err != nil {
		return err
	}
	return t.peers.Upsert(p.NodeID, remoteIP, p.Port, time.Now().Unix())
}
