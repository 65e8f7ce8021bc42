package gossip

import (
	"sync"
	"time"

	"github.com/libreledger/consensus-node/internal/model"
)

// LivenessTimeout is how long a peer may go without presence or other
// traffic before it is evicted from the directory.
const LivenessTimeout = 120 * time.Second

// peerStore is the minimal persistence surface the directory needs;
// satisfied by *store.Store, kept as an interface here so gossip doesn't
// import store directly and tests can fake it.
type peerStore interface {
	SavePeer(p *model.Peer) error
	RemovePeer(nodeID string) error
	AllPeers() ([]*model.Peer, error)
}

// Directory is GT's peer directory: an in-memory view backed by SS, with
// its own read-write gate independent of the transport's other locks.
type Directory struct {
	mu    sync.RWMutex
	peers map[string]*model.Peer
	store peerStore
}

// NewDirectory loads the directory from backing storage so a restarted
// node resumes with its previously known peer set.
func NewDirectory(s peerStore) (*Directory, error) {
	d := &Directory{peers: make(map[string]*model.Peer), store: s}
	existing, err := s.AllPeers()
	if err != nil {
		return nil, err
	}
	for _, p := range existing {
		d.peers[p.NodeID] = p
	}
	return d, nil
}

// Upsert records or refreshes a peer, persisting it to SS.
func (d *Directory) Upsert(nodeID, ip string, port int, lastSeen int64) error {
	p := &model.Peer{NodeID: nodeID, IP: ip, Port: port, LastSeen: lastSeen}
	d.mu.Lock()
	d.peers[nodeID] = p
	d.mu.Unlock()
	return d.store.SavePeer(p)
}

// Touch refreshes a known peer's last-seen time without changing its
// address, used for PRESENCE and any other observed traffic.
func (d *Directory) Touch(nodeID string, now int64) {
	d.mu.Lock()
	p, ok := d.peers[nodeID]
	if ok {
		p.LastSeen = now
	}
	d.mu.Unlock()
	if ok {
		_ = d.store.SavePeer(p)
	}
}

// All returns a snapshot of every known peer.
func (d *Directory) All() []*model.Peer {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]*model.Peer, 0, len(d.peers))
	for _, p := range d.peers {
		out = append(out, p)
	}
	return out
}

// EvictStale removes every peer whose last-seen time is older than
// LivenessTimeout, both from memory and from storage.
func (d *Directory) EvictStale(now time.Time) []string {
	cutoff := now.Add(-LivenessTimeout).Unix()
	var evicted []string

	d.mu.Lock()
	for id, p := range d.peers {
		if p.LastSeen < cutoff {
			evicted = append(evicted, id)
			delete(d.peers, id)
		}
	}
	d.mu.Unlock()

	for _, id := range evicted {
		_ = d.store.RemovePeer(id)
	}
	return evicted
}
