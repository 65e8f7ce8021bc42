package walletsig

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"

	"github.com/pkg/errors"

	"github.com/libreledger/consensus-node/internal/common"
)

// Ed25519Signer is the production wallet oracle implementation. The
// address is derived from the public key, matching address_of(private_key)
// being a pure function of the key material.
type Ed25519Signer struct {
	priv     ed25519.PrivateKey
	pub      ed25519.PublicKey
	addr     common.Address
	registry *Registry
}

// NewEd25519Signer generates a fresh key pair, derives its address, and
// registers the public key so registry.Verify can later confirm its
// signatures.
func NewEd25519Signer(registry *Registry) (*Ed25519Signer, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, errors.Wrap(err, "walletsig: generate ed25519 key")
	}
	s := &Ed25519Signer{
		priv:     priv,
		pub:      pub,
		addr:     addressFromPublicKey(pub),
		registry: registry,
	}
	registry.Register(s.addr, pub)
	return s, nil
}

func addressFromPublicKey(pub ed25519.PublicKey) common.Address {
	sum := sha256.Sum256(pub)
	return common.Address(hex.EncodeToString(sum[:common.AddressLength/2]))
}

// Sign signs stateHashHex with the wrapped private key.
func (s *Ed25519Signer) Sign(stateHashHex string) ([]byte, error) {
	return ed25519.Sign(s.priv, []byte(stateHashHex)), nil
}

// Verify delegates to the shared registry.
func (s *Ed25519Signer) Verify(addr common.Address, stateHashHex string, sig []byte) bool {
	return s.registry.Verify(addr, stateHashHex, sig)
}

// Address returns this signer's derived address.
func (s *Ed25519Signer) Address() common.Address { return s.addr }
