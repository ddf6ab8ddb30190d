package rng

import "testing"

func TestRNG_Deterministic(t *testing.T) {
	rng1 := New(42)
	rng2 := New(42)

	for i := 0; i < 20; i++ {
		a := rng1.Roll(6)
		b := rng2.Roll(6)
		if a != b {
			t.Fatalf("roll %d: got %d and %d from same seed", i, a, b)
		}
	}
}

func TestRNG_Roll_Range(t *testing.T) {
	g := New(99)

	for i := 0; i < 1000; i++ {
		r := g.Roll(6)
		if r < 1 || r > 6 {
			t.Fatalf("roll out of range [1,6]: got %d", r)
		}
	}
}

func TestRNG_Between_Range(t *testing.T) {
	g := New(7)

	for i := 0; i < 1000; i++ {
		v := g.Between(0.9, 1.1)
		if v < 0.9 || v >= 1.1 {
			t.Fatalf("Between out of range [0.9,1.1): got %f", v)
		}
	}
}

func TestRNG_WeightedSelect_Distribution(t *testing.T) {
	g := New(12345)
	weights := []int{70, 20, 10}
	counts := [3]int{}

	const trials = 10000
	for i := 0; i < trials; i++ {
		idx := g.WeightedSelect(weights)
		if idx < 0 || idx > 2 {
			t.Fatalf("index out of range: %d", idx)
		}
		counts[idx]++
	}

	// With 10k trials, expect roughly 70%/20%/10% with some margin.
	if counts[0] < 6000 || counts[0] > 8000 {
		t.Errorf("expected ~7000 for weight 70, got %d", counts[0])
	}
	if counts[1] < 1000 || counts[1] > 3000 {
		t.Errorf("expected ~2000 for weight 20, got %d", counts[1])
	}
	if counts[2] < 200 || counts[2] > 1800 {
		t.Errorf("expected ~1000 for weight 10, got %d", counts[2])
	}
}

func TestRNG_Position_Tracks(t *testing.T) {
	g := New(42)

	if g.Position() != 0 {
		t.Fatalf("expected position 0, got %d", g.Position())
	}

	g.Float64()
	if g.Position() < 1 {
		t.Fatalf("expected position >= 1, got %d", g.Position())
	}

	before := g.Position()
	g.WeightedSelect([]int{50, 50})
	if g.Position() <= before {
		t.Fatalf("expected position to advance past %d, got %d", before, g.Position())
	}
}

func TestRNG_Restore_MatchesPosition(t *testing.T) {
	// Advance an RNG and record the next rolls.
	g := New(42)
	for i := 0; i < 10; i++ {
		g.Roll(7)
		g.Float64()
	}
	pos := g.Position()

	var expected [5]float64
	for i := range expected {
		expected[i] = g.Float64()
	}

	restored := Restore(42, pos)
	if restored.Position() != pos {
		t.Fatalf("expected position %d, got %d", pos, restored.Position())
	}

	for i, want := range expected {
		if got := restored.Float64(); got != want {
			t.Fatalf("draw %d: expected %f, got %f", i, want, got)
		}
	}
}

func TestFixed_ScriptedValues(t *testing.T) {
	f := &Fixed{Floats: []float64{0.1, 0.9}, Indices: []int{5}}

	if got := f.Float64(); got != 0.1 {
		t.Errorf("first float = %f, want 0.1", got)
	}
	if got := f.Float64(); got != 0.9 {
		t.Errorf("second float = %f, want 0.9", got)
	}
	if got := f.Float64(); got != 0.9 {
		t.Errorf("exhausted float should repeat last, got %f", got)
	}
	if got := f.WeightedSelect([]int{1, 1}); got != 1 {
		t.Errorf("index should clamp to 1, got %d", got)
	}
}

func TestRNG_Rewind(t *testing.T) {
	g := New(11)
	g.Float64()
	pos := g.Position()
	want := []float64{g.Float64(), g.Float64(), g.Float64()}

	g.Rewind(pos)
	if g.Position() != pos {
		t.Fatalf("position after rewind = %d, want %d", g.Position(), pos)
	}
	for i, w := range want {
		if got := g.Float64(); got != w {
			t.Fatalf("draw %d after rewind = %f, want %f", i, got, w)
		}
	}
}
