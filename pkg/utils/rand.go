package utils

import (
	"math/rand"
	"sort"
)

// RandSource is a seeded random number generator. It is not safe for
// concurrent use; every stateful component owns its own source.
type RandSource struct {
	rng *rand.Rand
}

// NewRandSource creates a new random source with the given seed.
// The same seed always yields the same stream.
func NewRandSource(seed int64) *RandSource {
	return &RandSource{
		rng: rand.New(rand.NewSource(seed)),
	}
}

// Derive returns an independent child source seeded from this one.
func (r *RandSource) Derive() *RandSource {
	return NewRandSource(r.rng.Int63())
}

// Float64 returns a random float64 in [0.0, 1.0)
func (r *RandSource) Float64() float64 {
	return r.rng.Float64()
}

// Uint64 returns a random 64-bit value. It lets a RandSource feed samplers
// that take a math/rand/v2 Source.
func (r *RandSource) Uint64() uint64 {
	return r.rng.Uint64()
}

// Intn returns a random int in [0, n)
func (r *RandSource) Intn(n int) int {
	return r.rng.Intn(n)
}

// IntRange returns a random int in [min, max] inclusive
func (r *RandSource) IntRange(min, max int) int {
	if max <= min {
		return min
	}
	return min + r.rng.Intn(max-min+1)
}

// NormFloat64 returns a normally distributed random number with mean and stddev
func (r *RandSource) NormFloat64(mean, stddev float64) float64 {
	return r.rng.NormFloat64()*stddev + mean
}

// SampleWithoutReplacement returns k distinct ints from [0, n) in ascending order.
func (r *RandSource) SampleWithoutReplacement(n, k int) []int {
	if k <= 0 || n <= 0 {
		return []int{}
	}
	if k > n {
		k = n
	}
	picked := r.rng.Perm(n)[:k]
	out := make([]int, k)
	copy(out, picked)
	sort.Ints(out)
	return out
}

// BernoulliBool returns true with probability p, false otherwise
func (r *RandSource) BernoulliBool(p float64) bool {
	return r.rng.Float64() < p
}
