// Package proptest provides property-based testing utilities with seeded
// random generation for reproducible tests.
//
// A property runs against many generated inputs. When one fails, the seed
// of that iteration is reported so it can be replayed with PROPTEST_SEED.
//
//	func TestRequiredSorted(t *testing.T) {
//	    proptest.QuickCheck(t, "required is sorted", func(g *proptest.Generator) bool {
//	        names := g.UniqueIdentifiers(g.IntRange(0, 8), 6)
//	        ...
//	    })
//	}
package proptest

import (
	"fmt"
	"math/rand"
	"os"
	"strconv"
	"testing"
	"time"
)

// DefaultIterations is the number of inputs QuickCheck tries.
const DefaultIterations = 100

// DefaultSeed is the first seed used when PROPTEST_SEED is not set.
const DefaultSeed int64 = 1

// Generator wraps a seeded random number generator for reproducible
// random value generation.
type Generator struct {
	rng  *rand.Rand
	seed int64
}

// New creates a new Generator with the given seed.
// If seed is 0, uses the current time as the seed.
func New(seed int64) *Generator {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Generator{
		rng:  rand.New(rand.NewSource(seed)),
		seed: seed,
	}
}

// Seed returns the seed used by this generator.
func (g *Generator) Seed() int64 {
	return g.seed
}

// Intn returns a random int in [0, n).
// Panics if n <= 0.
func (g *Generator) Intn(n int) int {
	return g.rng.Intn(n)
}

// IntRange returns a random int in [min, max].
func (g *Generator) IntRange(min, max int) int {
	if min > max {
		panic("proptest: IntRange min > max")
	}
	return min + g.rng.Intn(max-min+1)
}

// Float64 returns a random float64 in [0.0, 1.0).
func (g *Generator) Float64() float64 {
	return g.rng.Float64()
}

// Bool returns a random boolean with 50% probability for each value.
func (g *Generator) Bool() bool {
	return g.rng.Intn(2) == 1
}

// BoolWithProb returns true with the given probability (0.0 to 1.0).
func (g *Generator) BoolWithProb(prob float64) bool {
	return g.rng.Float64() < prob
}

const (
	lower      = "abcdefghijklmnopqrstuvwxyz"
	identChars = lower + "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789_"
)

// IdentifierLower returns an identifier of length [1, maxLen] starting with
// a lowercase letter.
func (g *Generator) IdentifierLower(maxLen int) string {
	if maxLen < 1 {
		maxLen = 1
	}
	b := make([]byte, g.IntRange(1, maxLen))
	b[0] = lower[g.Intn(len(lower))]
	for i := 1; i < len(b); i++ {
		b[i] = identChars[g.Intn(len(identChars))]
	}
	return string(b)
}

// startSeed reads PROPTEST_SEED, falling back to DefaultSeed.
func startSeed() int64 {
	if s := os.Getenv("PROPTEST_SEED"); s != "" {
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n
		}
	}
	return DefaultSeed
}

// Check runs prop for iterations consecutive seeds. A non-nil error fails
// the test and reports the seed that produced it.
func Check(t testing.TB, name string, iterations int, prop func(g *Generator) error) {
	t.Helper()
	seed := startSeed()
	for i := 0; i < iterations; i++ {
		g := New(seed + int64(i))
		if err := prop(g); err != nil {
			t.Fatalf("property %q failed (PROPTEST_SEED=%d): %v", name, g.Seed(), err)
		}
	}
}

// QuickCheck runs a boolean property DefaultIterations times.
func QuickCheck(t testing.TB, name string, prop func(g *Generator) bool) {
	t.Helper()
	Check(t, name, DefaultIterations, func(g *Generator) error {
		if !prop(g) {
			return fmt.Errorf("property returned false")
		}
		return nil
	})
}
