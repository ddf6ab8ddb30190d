// Package rng provides the kernel's deterministic random source.
//
// Every session owns one RNG. Its position counts draws from the underlying
// source, so a session can be exported and later restored to the exact same
// random stream.
package rng

import "math/rand"

// Source is the subset of RNG the numeric engines consume. Engines accept
// the interface so tests can script outcomes.
type Source interface {
	Float64() float64
	Intn(n int) int
	WeightedSelect(weights []int) int
}

// countingSource wraps a rand.Source64 and counts every Int63/Uint64 draw.
type countingSource struct {
	src rand.Source64
	n   int64
}

func (c *countingSource) Int63() int64 {
	c.n++
	return c.src.Int63()
}

func (c *countingSource) Uint64() uint64 {
	c.n++
	return c.src.Uint64()
}

func (c *countingSource) Seed(seed int64) {
	c.src.Seed(seed)
	c.n = 0
}

// RNG wraps math/rand.Rand with deterministic position tracking.
// Not safe for concurrent use; the session worker is its only caller.
type RNG struct {
	seed int64
	cs   *countingSource
	r    *rand.Rand
}

// New creates a new deterministic RNG from a seed.
func New(seed int64) *RNG {
	cs := &countingSource{src: rand.NewSource(seed).(rand.Source64)}
	return &RNG{seed: seed, cs: cs, r: rand.New(cs)}
}

// Restore creates an RNG and advances it to the given position.
// This reproduces the exact RNG state for save/load.
func Restore(seed int64, position int64) *RNG {
	g := New(seed)
	for i := int64(0); i < position; i++ {
		g.cs.Int63()
	}
	return g
}

// Rewind moves the RNG back (or forward) to position by replaying the
// stream from its seed.
func (g *RNG) Rewind(position int64) {
	if position == g.cs.n {
		return
	}
	g.cs.Seed(g.seed)
	for i := int64(0); i < position; i++ {
		g.cs.Int63()
	}
}

// Seed returns the seed the RNG was created with.
func (g *RNG) Seed() int64 { return g.seed }

// Position returns the number of draws made from the underlying source.
func (g *RNG) Position() int64 { return g.cs.n }

// Roll returns a random integer in [1, sides].
func (g *RNG) Roll(sides int) int {
	return g.r.Intn(sides) + 1
}

// Intn returns a random integer in [0, n).
func (g *RNG) Intn(n int) int {
	return g.r.Intn(n)
}

// Float64 returns a random float in [0, 1).
func (g *RNG) Float64() float64 {
	return g.r.Float64()
}

// Between returns a random float in [lo, hi).
func (g *RNG) Between(lo, hi float64) float64 {
	return lo + g.r.Float64()*(hi-lo)
}

// WeightedSelect returns an index chosen by weighted random selection.
// weights must be non-empty with all positive values.
func (g *RNG) WeightedSelect(weights []int) int {
	total := 0
	for _, w := range weights {
		total += w
	}
	roll := g.r.Intn(total)
	cumulative := 0
	for i, w := range weights {
		cumulative += w
		if roll < cumulative {
			return i
		}
	}
	return len(weights) - 1
}

// Fixed is a scripted Source for tests and replays: Float64 returns the
// queued values in order (repeating the last one), Intn and WeightedSelect
// return the queued indices clamped to range.
type Fixed struct {
	Floats  []float64
	Indices []int
	fi, ii  int
}

// Float64 returns the next scripted float.
func (f *Fixed) Float64() float64 {
	if len(f.Floats) == 0 {
		return 0
	}
	v := f.Floats[min(f.fi, len(f.Floats)-1)]
	f.fi++
	return v
}

// Intn returns the next scripted index, clamped to [0, n).
func (f *Fixed) Intn(n int) int {
	return f.nextIndex(n)
}

// WeightedSelect returns the next scripted index, clamped to the weights.
func (f *Fixed) WeightedSelect(weights []int) int {
	return f.nextIndex(len(weights))
}

func (f *Fixed) nextIndex(n int) int {
	if len(f.Indices) == 0 || n <= 0 {
		return 0
	}
	v := f.Indices[min(f.ii, len(f.Indices)-1)]
	f.ii++
	if v >= n {
		v = n - 1
	}
	if v < 0 {
		v = 0
	}
	return v
}
