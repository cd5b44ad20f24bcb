package tensor

// Dilate fills one layer of still-empty cells from the rounded mean of
// their already-filled neighbors in a 3x3x3x3 neighborhood (spec §4.6's
// dilation pass, grounded on tensor-gen.c's dilate_tensor shadow-array
// loop). filled marks which cells already hold a real observed score;
// cells dilated in this pass are marked filled in place so a caller can
// run Dilate repeatedly until it reports no change. It returns whether
// any cell was filled.
//
// A separate shadow tensor holds the pass's writes so that newly
// dilated cells never feed other cells within the same pass, matching
// tensor-gen.c's use of a distinct new_tensor array during dilation.
func (t *Tensor) Dilate(filled []bool) bool {
	if len(filled) != len(t.data) {
		panic("tensor: filled mask size mismatch")
	}

	d := t.dims
	shadow := make([]int8, len(t.data))
	copy(shadow, t.data)
	newlyFilled := make([]bool, len(filled))
	changed := false

	for h := 0; h < d[0]; h++ {
		for i := 0; i < d[1]; i++ {
			for j := 0; j < d[2]; j++ {
				for k := 0; k < d[3]; k++ {
					idx := t.offset(h, i, j, k)
					if filled[idx] {
						continue
					}

					sum, count := 0, 0
					for dh := -1; dh <= 1; dh++ {
						nh := h + dh
						if nh < 0 || nh >= d[0] {
							continue
						}
						for di := -1; di <= 1; di++ {
							ni := i + di
							if ni < 0 || ni >= d[1] {
								continue
							}
							for dj := -1; dj <= 1; dj++ {
								nj := j + dj
								if nj < 0 || nj >= d[2] {
									continue
								}
								for dk := -1; dk <= 1; dk++ {
									nk := k + dk
									if nk < 0 || nk >= d[3] {
										continue
									}
									if dh == 0 && di == 0 && dj == 0 && dk == 0 {
										continue
									}
									nidx := t.offset(nh, ni, nj, nk)
									if filled[nidx] {
										sum += int(t.data[nidx])
										count++
									}
								}
							}
						}
					}

					if count == 0 {
						continue
					}

					mean := int8(roundedMean(sum, count))
					shadow[idx] = mean
					newlyFilled[idx] = true
					changed = true
				}
			}
		}
	}

	copy(t.data, shadow)
	for idx, f := range newlyFilled {
		if f {
			filled[idx] = true
		}
	}

	return changed
}

// roundedMean matches tensor-gen.c:228's
// floor((double)values_sum/border_hits + 0.5) — round-half-up, not
// round-half-away-from-zero. The two differ for negative sums (e.g.
// sum=-5, count=2: round-half-up floors -2.5+0.5=-2.0 to -2, while
// round-half-away-from-zero would give -3), which matters since a
// dilated neighborhood's signed-score sum is often negative.
func roundedMean(sum, count int) int {
	return floorDiv(2*sum+count, 2*count)
}

// floorDiv is integer division rounded toward negative infinity,
// unlike Go's / which truncates toward zero.
func floorDiv(a, b int) int {
	q := a / b
	if r := a % b; r != 0 && (r < 0) != (b < 0) {
		q--
	}
	return q
}

// ReplicateCollapsed copies a tensor that was only trained along a
// subset of its axes back out to full resolution, replicating each
// collapsed axis's single trained plane across every index on that
// axis (spec §4.6's dimension-reduction/replication pass). activeDims
// gives the trained extent of each axis (1 means that axis was
// collapsed to a single plane during training); any axis whose
// activeDims entry isn't 1 is left untouched.
//
// Grounded on tensor-gen.c's replication loop; implemented as an
// explicit axis-by-axis replicate pass rather than the C code's
// tensor[h*(h<bound)] indexing trick (see DESIGN.md open question).
// Axes are replicated in ascending order so that each axis's index-0
// plane (recursively complete for all inner axes) is fully written
// before any higher index on that same axis reads it back.
func (t *Tensor) ReplicateCollapsed(activeDims [4]int) {
	d := t.dims

	for axis := 0; axis < 4; axis++ {
		if activeDims[axis] != 1 {
			continue
		}
		replicateAxis(t, axis, d)
	}
}

func replicateAxis(t *Tensor, axis int, d [4]int) {
	idx := [4]int{}
	bound := [4]int{d[0], d[1], d[2], d[3]}
	bound[axis] = 1

	var walk func(dim int)
	walk = func(dim int) {
		if dim == 4 {
			source := [4]int{idx[0], idx[1], idx[2], idx[3]}
			v := t.At(source[0], source[1], source[2], source[3])
			for n := 1; n < d[axis]; n++ {
				target := source
				target[axis] = n
				t.Set(target[0], target[1], target[2], target[3], v)
			}
			return
		}
		for i := 0; i < bound[dim]; i++ {
			idx[dim] = i
			walk(dim + 1)
		}
	}

	walk(0)
}
