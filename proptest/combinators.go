package proptest

// OneOf returns a random element from the provided values.
// Panics if values is empty.
func OneOf[T any](g *Generator, values ...T) T {
	if len(values) == 0 {
		panic("proptest: OneOf called with no values")
	}
	return values[g.Intn(len(values))]
}

// Pick returns a random element from a non-empty slice.
// Panics if slice is empty.
func Pick[T any](g *Generator, slice []T) T {
	if len(slice) == 0 {
		panic("proptest: Pick called with empty slice")
	}
	return slice[g.Intn(len(slice))]
}

// Shuffle returns a shuffled copy of the slice.
func Shuffle[T any](g *Generator, slice []T) []T {
	result := make([]T, len(slice))
	copy(result, slice)
	g.rng.Shuffle(len(result), func(i, j int) {
		result[i], result[j] = result[j], result[i]
	})
	return result
}

// Slice generates a slice of length [0, maxLen] using the generator function.
func Slice[T any](g *Generator, maxLen int, gen func(*Generator) T) []T {
	if maxLen <= 0 {
		return nil
	}
	return SliceExact(g, g.Intn(maxLen+1), gen)
}

// SliceExact generates a slice of exactly the given length.
func SliceExact[T any](g *Generator, length int, gen func(*Generator) T) []T {
	result := make([]T, length)
	for i := 0; i < length; i++ {
		result[i] = gen(g)
	}
	return result
}

// UniqueIdentifiers generates up to n unique identifiers.
func (g *Generator) UniqueIdentifiers(n, maxLen int) []string {
	seen := make(map[string]bool)
	result := make([]string, 0, n)

	maxAttempts := n * 10
	for i := 0; i < maxAttempts && len(result) < n; i++ {
		s := g.IdentifierLower(maxLen)
		if !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}

	return result
}
