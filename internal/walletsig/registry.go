package walletsig

import (
	"crypto/ed25519"
	"sync"

	"github.com/libreledger/consensus-node/internal/common"
)

// Registry maps addresses to the public key material needed to verify
// their signatures. A node learns registry entries out of band (wallet
// onboarding, peer introduction) before it can verify that address's
// signatures; until then Verify simply reports false, the same as an
// invalid signature.
type Registry struct {
	mu   sync.RWMutex
	keys map[common.Address]ed25519.PublicKey
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{keys: make(map[common.Address]ed25519.PublicKey)}
}

// Register associates addr with pub, overwriting any prior entry.
func (r *Registry) Register(addr common.Address, pub ed25519.PublicKey) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.keys[addr] = pub
}

// Verify reports whether sig is a valid ed25519 signature by addr over
// stateHashHex, returning false (never panicking) if addr is unknown.
func (r *Registry) Verify(addr common.Address, stateHashHex string, sig []byte) bool {
	r.mu.RLock()
	pub, ok := r.keys[addr]
	r.mu.RUnlock()
	if !ok {
		return false
	}
	return ed25519.Verify(pub, []byte(stateHashHex), sig)
}
