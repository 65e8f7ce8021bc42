// Package committee implements deterministic, seeded sampling over an
// address roster. It backs two distinct rules that share one mechanism:
// committee selection for a proposal (seeded by the proposal's state hash)
// and miner-pool sampling during group rotation (seeded by the new
// group id). Both need the same property — every node, given the same
// seed and the same roster, must produce the byte-identical result — so
// the sampling primitive lives here once instead of being duplicated.
package committee

import (
	"math/rand"
	"sort"
	"strconv"

	"github.com/libreledger/consensus-node/internal/common"
)

// MaxSize is the largest committee CS will ever return.
const MaxSize = 100

// Select returns the committee for a proposal: the whole roster if it has
// at most MaxSize members, otherwise a deterministic sample of MaxSize
// addresses seeded from stateHash's first 16 hex characters.
func Select(stateHash string, roster []common.Address) []common.Address {
	sorted := sortedCopy(roster)
	if len(sorted) <= MaxSize {
		return sorted
	}
	seed := seedFromHash(stateHash)
	return DeterministicSample(seed, sorted, MaxSize)
}

// seedFromHash interprets the first 16 hex characters of a hash string as
// an unsigned 64-bit integer PRNG seed.
func seedFromHash(hash string) uint64 {
	prefix := hash
	if len(prefix) > 16 {
		prefix = prefix[:16]
	}
	seed, err := strconv.ParseUint(prefix, 16, 64)
	if err != nil {
		// A malformed hash can't occur for hashes this package itself
		// produces; callers passing external input should validate the
		// hash shape before reaching here.
		return 0
	}
	return seed
}

// DeterministicSample draws n addresses without replacement from sorted
// (which must already be in ascending order) using a PRNG seeded
// exclusively from seed. Two calls with equal (seed, sorted, n) produce
// byte-identical output on any platform.
func DeterministicSample(seed uint64, sorted []common.Address, n int) []common.Address {
	if n >= len(sorted) {
		out := make([]common.Address, len(sorted))
		copy(out, sorted)
		return out
	}
	rng := rand.New(rand.NewSource(int64(seed)))
	// Partial Fisher-Yates: shuffle only as many positions as needed to
	// pick n elements, operating on a copy so the input is untouched.
	pool := make([]common.Address, len(sorted))
	copy(pool, sorted)
	for i := 0; i < n; i++ {
		j := i + rng.Intn(len(pool)-i)
		pool[i], pool[j] = pool[j], pool[i]
	}
	out := make([]common.Address, n)
	copy(out, pool[:n])
	return out
}

func sortedCopy(roster []common.Address) []common.Address {
	out := make([]common.Address, len(roster))
	copy(out, roster)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
