package committee

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/libreledger/consensus-node/internal/common"
)

func roster(n int) []common.Address {
	out := make([]common.Address, n)
	for i := 0; i < n; i++ {
		out[i] = common.Address(fmt.Sprintf("%016x", i))
	}
	return out
}

func TestSelectSmallRosterReturnsWholeRoster(t *testing.T) {
	r := roster(50)
	got := Select("ab"+fmt.Sprintf("%062x", 0), r)
	assert.Len(t, got, 50)
}

func TestSelectLargeRosterBoundedAndDeterministic(t *testing.T) {
	r := roster(1000)
	hash := "ab" + fmt.Sprintf("%062x", 0)

	a := Select(hash, r)
	b := Select(hash, r)

	assert.Len(t, a, MaxSize)
	assert.Equal(t, a, b)

	seen := make(map[common.Address]bool, len(a))
	for _, addr := range a {
		assert.False(t, seen[addr], "duplicate address in committee")
		seen[addr] = true
	}
}

func TestSelectIgnoresRosterOrdering(t *testing.T) {
	r := roster(1000)
	hash := "ab" + fmt.Sprintf("%062x", 0)
	a := Select(hash, r)

	shuffled := make([]common.Address, len(r))
	copy(shuffled, r)
	for i, j := 0, len(shuffled)-1; i < j; i, j = i+1, j-1 {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	}
	b := Select(hash, shuffled)

	assert.Equal(t, a, b)
}
