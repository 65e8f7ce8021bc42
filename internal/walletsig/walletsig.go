// Package walletsig abstracts the signing oracle the consensus layer
// consumes but never implements itself: sign(private_key, state_hash),
// verify(address, state_hash, signature), address_of(private_key). The
// core treats these as opaque; swapping the algorithm never touches
// consensus, committee, or executor code.
package walletsig

import "github.com/libreledger/consensus-node/internal/common"

// Signer is the wallet oracle contract. Implementations must be pure:
// Verify is a pure function of its three arguments.
type Signer interface {
	// Sign produces a signature over stateHashHex using the private key
	// material the implementation was constructed with.
	Sign(stateHashHex string) ([]byte, error)

	// Verify reports whether sig is a valid signature by addr over
	// stateHashHex.
	Verify(addr common.Address, stateHashHex string, sig []byte) bool

	// Address returns the address this signer signs on behalf of.
	Address() common.Address
}
