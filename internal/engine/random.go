package engine

import (
	"math/rand/v2"

	"github.com/cespare/xxhash/v2"
)

// SeedFallback seeds random selection for entities without any identity.
const SeedFallback = "tokenprofile"

// NewSeededRand returns a generator whose stream depends only on seed.
func NewSeededRand(seed string) *rand.Rand {
	h := xxhash.Sum64String(seed)
	return rand.New(rand.NewPCG(h, h^0x9e3779b97f4a7c15))
}

// PickIndex draws the first value of seed's stream as an index below n,
// floor(rand() * n). It returns -1 when n is not positive.
func PickIndex(seed string, n int) int {
	if n <= 0 {
		return -1
	}
	i := int(NewSeededRand(seed).Float64() * float64(n))
	if i >= n {
		i = n - 1
	}
	return i
}
