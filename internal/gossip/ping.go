package gossip

import (
	"context"
	"time"
)

// PingPayload carries no data; the probe is a liveness check, not a query.
type PingPayload struct{}

// Ping sends an explicit PING probe to ip:port. The recipient answers
// with a one-shot PONG connection back to this node's listen port; Ping
// itself doesn't wait for it, matching every other one-shot send in this
// transport.
func (t *Transport) Ping(ctx context.Context, ip string, port int) error {
	env, err := NewEnvelope(TypePing, t.nodeID, t.port, PingPayload{}, time.Now().Unix(), false)
	if err != nil {
		return err
	}
	return t.Send(ctx, ip, port, env)
}

// HandlePing answers an explicit PING probe with a PONG sent back to the
// sender's advertised listen port.
func (t *Transport) HandlePing(remoteIP string, env Envelope) error {
	pong, err := NewEnvelope(TypePong, t.nodeID, t.port, PingPayload{}, time.Now().Unix(), false)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), ioTimeout)
	defer cancel()
	return t.Send(ctx, remoteIP, env.SenderPort, pong)
}
