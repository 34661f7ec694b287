package proptest

import (
	"errors"
	"testing"
)

func TestGeneratorIsReproducible(t *testing.T) {
	a, b := New(42), New(42)
	for i := 0; i < 50; i++ {
		if a.IntRange(-5, 5) != b.IntRange(-5, 5) {
			t.Fatal("same seed produced different values")
		}
	}
	if a.Seed() != 42 {
		t.Errorf("seed = %d", a.Seed())
	}
}

func TestIdentifiers(t *testing.T) {
	QuickCheck(t, "identifiers start lowercase and are unique", func(g *Generator) bool {
		ids := g.UniqueIdentifiers(g.IntRange(0, 10), 8)
		seen := map[string]bool{}
		for _, id := range ids {
			if seen[id] || len(id) == 0 || len(id) > 8 || id[0] < 'a' || id[0] > 'z' {
				return false
			}
			seen[id] = true
		}
		return true
	})
}

func TestShuffleKeepsElements(t *testing.T) {
	QuickCheck(t, "shuffle is a permutation", func(g *Generator) bool {
		in := SliceExact(g, g.IntRange(0, 12), func(g *Generator) int { return g.Intn(5) })
		out := Shuffle(g, in)
		counts := map[int]int{}
		for _, v := range in {
			counts[v]++
		}
		for _, v := range out {
			counts[v]--
		}
		for _, c := range counts {
			if c != 0 {
				return false
			}
		}
		return len(in) == len(out)
	})
}

type recorder struct {
	testing.TB
	failed bool
	msg    string
}

func (r *recorder) Helper() {}

func (r *recorder) Fatalf(format string, args ...any) {
	r.failed = true
	r.msg = format
}

func TestCheckReportsFailure(t *testing.T) {
	r := &recorder{TB: t}
	Check(r, "always fails", 3, func(g *Generator) error { return errors.New("nope") })
	if !r.failed {
		t.Error("expected failure")
	}
}
