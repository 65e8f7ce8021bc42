package gossip

import (
	"github.com/go-redis/redis/v7"

	"github.com/libreledger/consensus-node/internal/log"
)

// RedisDedup is a DedupCache backed by a shared Redis instance, for
// multi-node deployments where a node's local cache would otherwise go
// cold on every restart and let through envelopes the rest of the
// cluster has already seen and relayed past. Keys are set with NX so the
// first writer wins, and expire on their own after envelopeTTL.
type RedisDedup struct {
	client *redis.Client
}

// NewRedisDedup builds a RedisDedup against addr (host:port).
func NewRedisDedup(addr string) (*RedisDedup, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping().Err(); err != nil {
		return nil, err
	}
	return &RedisDedup{client: client}, nil
}

// SeenOrRecord reports whether id was already recorded by any node
// sharing this Redis instance.
func (r *RedisDedup) SeenOrRecord(id string) bool {
	ok, err := r.client.SetNX(dedupKey(id), 1, envelopeTTL).Result()
	if err != nil {
		log.NewModuleLogger(log.Gossip).Debugw("redis dedup unavailable, treating as unseen", "err", err)
		return false
	}
	return !ok
}

func dedupKey(id string) string { return "gossip:envelope:" + id }

// Close releases the underlying Redis connection.
func (r *RedisDedup) Close() error {
	return r.client.Close()
}
