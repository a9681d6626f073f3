package flow

import (
	"crypto/sha256"
	"encoding/binary"
	"math/rand"

	"github.com/google/uuid"
)

// seedSource derives the generator seed from a seed string. The same string
// always yields the same sequence.
func seedSource(seed string) rand.Source {
	sum := sha256.Sum256([]byte(seed))
	return rand.NewSource(int64(binary.BigEndian.Uint64(sum[:8])))
}

// Seed returns the current seed string.
func (i *Interpreter) Seed() string {
	return i.seed
}

// SetSeed replaces the seed and rebuilds the generator.
func (i *Interpreter) SetSeed(seed string) {
	i.seed = seed
	i.rng = rand.New(seedSource(seed))
}

// RegenerateSeed replaces the seed with a fresh random one and returns it.
func (i *Interpreter) RegenerateSeed() string {
	seed := uuid.NewString()
	i.SetSeed(seed)
	return seed
}

// Random returns a pseudo-random number in [0.0, 1.0).
func (i *Interpreter) Random() float64 {
	return i.rng.Float64()
}

// Intn returns a pseudo-random number in [0, n). It panics if n <= 0.
func (i *Interpreter) Intn(n int) int {
	return i.rng.Intn(n)
}

// Shuffle pseudo-randomizes the order of n elements using swap.
func (i *Interpreter) Shuffle(n int, swap func(a, b int)) {
	i.rng.Shuffle(n, swap)
}
