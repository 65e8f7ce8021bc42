package walletsig

import (
	"crypto/sha256"

	"github.com/libreledger/consensus-node/internal/common"
)

// MockSigner is the deterministic test oracle: a signature is valid iff
// sig == SHA-256(state_hash_hex || private_key). It exists so consensus
// and validator tests can assert on signature collection without pulling
// in real cryptography.
type MockSigner struct {
	addr       common.Address
	privateKey []byte
}

// NewMockSigner builds a mock signer for addr using privateKey as the
// shared secret both Sign and Verify hash against.
func NewMockSigner(addr common.Address, privateKey []byte) *MockSigner {
	return &MockSigner{addr: addr, privateKey: privateKey}
}

func (m *MockSigner) digest(stateHashHex string) []byte {
	h := sha256.New()
	h.Write([]byte(stateHashHex))
	h.Write(m.privateKey)
	return h.Sum(nil)
}

// Sign returns SHA-256(state_hash_hex || private_key).
func (m *MockSigner) Sign(stateHashHex string) ([]byte, error) {
	return m.digest(stateHashHex), nil
}

// Verify recomputes the same digest and compares. It only knows how to
// verify its own address; any other address is reported as invalid.
func (m *MockSigner) Verify(addr common.Address, stateHashHex string, sig []byte) bool {
	if addr != m.addr {
		return false
	}
	want := m.digest(stateHashHex)
	if len(want) != len(sig) {
		return false
	}
	for i := range want {
		if want[i] != sig[i] {
			return false
		}
	}
	return true
}

// Address returns the address this mock signs on behalf of.
func (m *MockSigner) Address() common.Address { return m.addr }
