package gossip

import "time"

// PresenceInterval is how often a node announces liveness to its peers.
const PresenceInterval = 5 * time.Second

// StartPresenceLoop periodically broadcasts a PRESENCE envelope until
// Close is called.
func (t *Transport) StartPresenceLoop() {
	go func() {
		ticker := time.NewTicker(PresenceInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				env, err := NewEnvelope(TypePresence, t.nodeID, t.port, struct{}{}, time.Now().Unix(), true)
				if err != nil {
					logger.Errorw("failed to build presence envelope", "err", err)
					continue
				}
				t.Broadcast(env, t.nodeID)
			case <-t.stopPresence:
				return
			}
		}
	}()
}

// StartEvictionLoop periodically evicts peers that have gone silent for
// longer than LivenessTimeout.
func (t *Transport) StartEvictionLoop() {
	go func() {
		ticker := time.NewTicker(PresenceInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				evicted := t.peers.EvictStale(time.Now())
				for _, id := range evicted {
					logger.Infow("evicted stale peer", "node_id", id)
				}
			case <-t.stopEviction:
				return
			}
		}
	}()
}
