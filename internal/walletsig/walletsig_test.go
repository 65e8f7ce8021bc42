package walletsig

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockSignerRoundTrips(t *testing.T) {
	m := NewMockSigner("addr0000000000", []byte("secret"))
	sig, err := m.Sign("deadbeef")
	require.NoError(t, err)
	assert.True(t, m.Verify("addr0000000000", "deadbeef", sig))
	assert.False(t, m.Verify("addr0000000000", "otherhash", sig))
	assert.False(t, m.Verify("someoneelse000", "deadbeef", sig))
}

func TestEd25519SignerRoundTrips(t *testing.T) {
	reg := NewRegistry()
	s, err := NewEd25519Signer(reg)
	require.NoError(t, err)

	sig, err := s.Sign("deadbeef")
	require.NoError(t, err)
	assert.True(t, s.Verify(s.Address(), "deadbeef", sig))
	assert.False(t, s.Verify(s.Address(), "cafef00d", sig))
}
