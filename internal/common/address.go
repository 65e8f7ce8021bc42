// Package common holds the small value types shared by every component:
// addresses and fixed-point balances. Both are deliberately simple — the
// canonical encoding lives in the codec package, not here.
package common

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// AddressLength is the number of hex characters in an Address.
const AddressLength = 16

// Address is an opaque 16-hex-char identifier. Equality is by value.
type Address string

// Genesis is the synthetic miner address recorded on the genesis block.
const Genesis Address = "GENESIS"

// Valid reports whether a is a well-formed 16-hex-char address, or the
// special GENESIS marker.
func (a Address) Valid() bool {
	if a == Genesis {
		return true
	}
	if len(a) != AddressLength {
		return false
	}
	for _, r := range string(a) {
		if !isHexDigit(r) {
			return false
		}
	}
	return true
}

func isHexDigit(r rune) bool {
	return (r >= '0' && r <= '9') || (r >= 'a' && r <= 'f')
}

// NewRandomAddress generates a fresh 16-hex-char address. It is used by
// tests and by local tooling; real wallets mint addresses via the external
// wallet oracle, never the core.
func NewRandomAddress() Address {
	buf := make([]byte, AddressLength/2)
	if _, err := rand.Read(buf); err != nil {
		panic(fmt.Sprintf("common: failed to read random bytes: %v", err))
	}
	return Address(hex.EncodeToString(buf))
}

func (a Address) String() string { return string(a) }
