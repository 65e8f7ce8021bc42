// Package gossip implements the framed, one-shot-connection message
// exchange between nodes: envelope construction and ids, the dedup
// cache, peer liveness, and broadcast-with-exclusion relay. Every
// connection carries exactly one envelope — open, send, close — matching
// the close-on-EOF framing the original node network spoke, preserved
// here so a node built from this spec can still interoperate with one
// that isn't.
package gossip

import (
	"context"
	"io"
	"net"
	"strconv"
	"time"

	"github.com/pkg/errors"

	"github.com/libreledger/consensus-node/internal/log"
)

var logger = log.NewModuleLogger(log.Gossip)

// ioTimeout bounds both connect and read/write on a one-shot connection.
const ioTimeout = 3 * time.Second

// maxEnvelopeBytes caps a single receive; envelopes have no length
// prefix so a sender is trusted to stay well under this.
const maxEnvelopeBytes = 65 * 1024

// Handler processes one freshly delivered envelope, identified by the
// connection it arrived on (for SIGNATURE's direct-reply addressing).
type Handler func(fromIP string, env Envelope)

// Transport owns the listening socket, the dedup cache and the peer
// directory, and exposes Send/Broadcast for any component that needs to
// talk to the network (consensus, sync).
type Transport struct {
	nodeID string
	port   int

	listener net.Listener
	dedup    DedupCache
	peers    *Directory
	handler  Handler

	stopPresence  chan struct{}
	stopEviction  chan struct{}
}

// NewTransport builds a transport bound to nodeID/port, backed by dir for
// peer persistence and an in-process LRU dedup cache. Call Listen to
// start accepting connections.
func NewTransport(nodeID string, port int, dir *Directory, handler Handler) *Transport {
	return NewTransportWithDedup(nodeID, port, dir, handler, NewDedup())
}

// NewTransportWithDedup builds a transport with an explicit dedup
// backend, for deployments that share a RedisDedup across a cluster
// instead of each node keeping its own in-process cache.
func NewTransportWithDedup(nodeID string, port int, dir *Directory, handler Handler, dedup DedupCache) *Transport {
	return &Transport{
		nodeID:       nodeID,
		port:         port,
		dedup:        dedup,
		peers:        dir,
		handler:      handler,
		stopPresence: make(chan struct{}),
		stopEviction: make(chan struct{}),
	}
}

// Listen opens the accept socket and begins serving connections in the
// background. It returns once the socket is bound.
func (t *Transport) Listen() error {
	ln, err := net.Listen("tcp", listenAddr(t.port))
	if err != nil {
		return errors.Wrapf(err, "gossip: listen on port %d", t.port)
	}
	t.listener = ln
	go t.acceptLoop()
	return nil
}

func listenAddr(port int) string {
	return ":" + strconv.Itoa(port)
}

func (t *Transport) acceptLoop() {
	for {
		conn, err := t.listener.Accept()
		if err != nil {
			return // listener closed
		}
		go t.handleConn(conn)
	}
}

func (t *Transport) handleConn(conn net.Conn) {
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(ioTimeout))

	data, err := io.ReadAll(io.LimitReader(conn, maxEnvelopeBytes))
	if err != nil {
		logger.Debugw("read failed on inbound connection", "remote", conn.RemoteAddr(), "err", err)
		return
	}
	env, err := DecodeEnvelope(data)
	if err != nil {
		logger.Debugw("malformed envelope", "remote", conn.RemoteAddr(), "err", err)
		return
	}

	if t.dedup.SeenOrRecord(env.ID) {
		return
	}

	remoteIP := hostOf(conn.RemoteAddr())
	if env.Sender != t.nodeID {
		t.peers.Touch(env.Sender, time.Now().Unix())
	}

	if t.handler != nil {
		t.handler(remoteIP, env)
	}

	if env.Broadcast {
		t.Relay(env, env.Sender)
	}
}

// Send opens a one-shot connection to ip:port, writes the encoded
// envelope, and closes. A failure is reported but never escalated — the
// peer is simply skipped, matching PeerUnreachable's "skip silently"
// policy; eviction is purely time-based.
func (t *Transport) Send(ctx context.Context, ip string, port int, env Envelope) error {
	data, err := env.Encode()
	if err != nil {
		return errors.Wrap(err, "gossip: encode envelope")
	}

	d := net.Dialer{Timeout: ioTimeout}
	conn, err := d.DialContext(ctx, "tcp", net.JoinHostPort(ip, strconv.Itoa(port)))
	if err != nil {
		return errors.Wrapf(err, "gossip: dial %s:%d", ip, port)
	}
	defer conn.Close()

	conn.SetWriteDeadline(time.Now().Add(ioTimeout))
	if _, err := conn.Write(data); err != nil {
		return errors.Wrapf(err, "gossip: write to %s:%d", ip, port)
	}
	return nil
}

// Broadcast sends env to every known peer except excludeNodeID (normally
// the sender, to avoid trivial echo). Failures are logged and otherwise
// ignored; a down peer does not block the rest of the fan-out.
func (t *Transport) Broadcast(env Envelope, excludeNodeID string) {
	t.Relay(env, excludeNodeID)
}

// Relay resends env to every peer except exclude. Used both for the
// initial broadcast and for re-gossiping a freshly delivered envelope.
func (t *Transport) Relay(env Envelope, exclude string) {
	for _, p := range t.peers.All() {
		if p.NodeID == exclude || p.NodeID == t.nodeID {
			continue
		}
		peer := p
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), ioTimeout)
			defer cancel()
			if err := t.Send(ctx, peer.IP, peer.Port, env); err != nil {
				logger.Debugw("peer unreachable", "node_id", peer.NodeID, "err", err)
			}
		}()
	}
}

// Port returns the port this transport listens on, used to populate the
// sender_port field of outbound envelopes.
func (t *Transport) Port() int { return t.port }

// Close stops the accept loop and background timers.
func (t *Transport) Close() error {
	close(t.stopPresence)
	close(t.stopEviction)
	if t.listener != nil {
		return t.listener.Close()
	}
	return nil
}

func hostOf(addr net.Addr) string {
	host, _, err := net.SplitHostPort(addr.String())
	if err != nil {
		return addr.String()
	}
	return host
}

