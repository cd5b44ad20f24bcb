package tensor

import "testing"

func TestDilateFillsFromNeighbors(t *testing.T) {
	tn := New(Dims)
	filled := make([]bool, len(tn.data))

	tn.Set(0, 0, 0, 0, 10)
	filled[tn.offset(0, 0, 0, 0)] = true
	tn.Set(0, 0, 0, 2, 20)
	filled[tn.offset(0, 0, 0, 2)] = true

	changed := tn.Dilate(filled)
	if !changed {
		t.Fatalf("expected Dilate to fill at least one cell")
	}

	if !filled[tn.offset(0, 0, 0, 1)] {
		t.Fatalf("expected cell between two filled neighbors to be dilated")
	}
	got := tn.At(0, 0, 0, 1)
	if got != 15 {
		t.Fatalf("dilated mean = %d, want 15", got)
	}
}

func TestDilateStabilizes(t *testing.T) {
	tn := New(Dims)
	filled := make([]bool, len(tn.data))
	tn.Set(0, 0, 0, 0, 5)
	filled[tn.offset(0, 0, 0, 0)] = true

	for i := 0; i < 200; i++ {
		if !tn.Dilate(filled) {
			return
		}
	}
	t.Fatalf("Dilate did not stabilize within 200 passes")
}

// TestRoundedMeanFloorsNegativeSumsRoundHalfUp pins roundedMean to
// tensor-gen.c's floor((double)sum/count + 0.5) behavior rather than
// round-half-away-from-zero, which disagrees with it for negative
// sums that land exactly on a .5 boundary.
func TestRoundedMeanFloorsNegativeSumsRoundHalfUp(t *testing.T) {
	cases := []struct{ sum, count, want int }{
		{15, 1, 15},
		{5, 1, 5},
		{-5, 2, -2}, // floor(-2.5+0.5) = floor(-2.0) = -2
		{-3, 2, -1}, // floor(-1.5+0.5) = floor(-1.0) = -1
		{-7, 2, -3}, // floor(-3.5+0.5) = floor(-3.0) = -3
		{-4, 3, -1}, // floor(-1.333+0.5) = floor(-0.833) = -1
	}
	for _, c := range cases {
		if got := roundedMean(c.sum, c.count); got != c.want {
			t.Fatalf("roundedMean(%d, %d) = %d, want %d", c.sum, c.count, got, c.want)
		}
	}
}

// TestDilateFillsNegativeMeanFromNeighbors exercises Dilate itself
// (not just roundedMean) with neighbor scores summing negative, the
// path the original round-half-away-from-zero bug corrupted.
func TestDilateFillsNegativeMeanFromNeighbors(t *testing.T) {
	tn := New(Dims)
	filled := make([]bool, len(tn.data))

	tn.Set(0, 0, 0, 0, -4)
	filled[tn.offset(0, 0, 0, 0)] = true
	tn.Set(0, 0, 0, 2, -1)
	filled[tn.offset(0, 0, 0, 2)] = true

	changed := tn.Dilate(filled)
	if !changed {
		t.Fatalf("expected Dilate to fill at least one cell")
	}

	got := tn.At(0, 0, 0, 1)
	if got != -2 {
		t.Fatalf("dilated mean = %d, want -2 (floor(-2.5+0.5)=-2, not round-away-from-zero's -3)", got)
	}
}

func TestReplicateCollapsedFillsAllIndices(t *testing.T) {
	tn := New(Dims)
	active := [4]int{Dims[0], Dims[1], 1, 1}

	for h := 0; h < Dims[0]; h++ {
		for i := 0; i < Dims[1]; i++ {
			tn.Set(h, i, 0, 0, int8((h+i)%20-10))
		}
	}

	tn.ReplicateCollapsed(active)

	for h := 0; h < Dims[0]; h++ {
		for i := 0; i < Dims[1]; i++ {
			want := tn.At(h, i, 0, 0)
			for j := 0; j < Dims[2]; j++ {
				for k := 0; k < Dims[3]; k++ {
					if got := tn.At(h, i, j, k); got != want {
						t.Fatalf("At(%d,%d,%d,%d) = %d, want %d", h, i, j, k, got, want)
					}
				}
			}
		}
	}
}
