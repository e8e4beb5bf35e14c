// Package random builds the seeded PCG streams used by splitters and
// randomized estimators.
package random

import "math/rand/v2"

// New returns a PCG stream for seed. A negative seed draws a fresh seed,
// matching random_state=None.
func New(seed int64) *rand.Rand {
	s := uint64(seed)
	if seed < 0 {
		s = rand.Uint64()
	}
	return rand.New(rand.NewPCG(s, s))
}

// Derive returns the seed of the i-th child stream of seed, e.g. one per tree.
// A negative seed stays negative so children are nondeterministic too.
func Derive(seed int64, i int) int64 {
	if seed < 0 {
		return -1
	}
	// splitmix64 の fmix で子シードを散らす
	z := uint64(seed) + uint64(i+1)*0x9e3779b97f4a7c15
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	z ^= z >> 31
	return int64(z >> 1)
}

// Permutation returns a random permutation of [0, n).
func Permutation(rng *rand.Rand, n int) []int {
	return rng.Perm(n)
}
