package radio

import "math/rand"

// MathRNG adapts math/rand.Rand to the RNG interface for production use.
// Channel selection has no cryptographic requirement; DevNonce values
// come from a persisted monotonic counter in package engine; this type
// is never asked to do anything that requires cryptographic strength.
type MathRNG struct {
	r *rand.Rand
}

// NewMathRNG creates an RNG seeded from src.
func NewMathRNG(src rand.Source) *MathRNG {
	return &MathRNG{r: rand.New(src)}
}

// Uint32 implements RNG.
func (m *MathRNG) Uint32() uint32 {
	return m.r.Uint32()
}

// Intn implements RNG.
func (m *MathRNG) Intn(n int) int {
	return m.r.Intn(n)
}
