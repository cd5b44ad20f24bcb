package descriptor

// Histograms accumulates per-field population counts across every
// descriptor emitted during a run, for the supplemented analysis report
// (SPEC_FULL.md §9.2). Grounded on the seven static histogram arrays in
// _examples/original_source/skipper.c (peak_to_trough_histogram,
// cycles_histogram, low/mid/high_third_histogram, attack_ratio_histogram,
// peak_jitter_histogram).
type Histograms struct {
	RangeDB     [96]int
	Cycles      [256]int
	LowThird    [256]int
	MidThird    [256]int
	HighThird   [256]int
	AttackRatio [256]int
	PeakJitter  [256]int
}

// Add folds one descriptor into the running histograms. attack_ratio and
// peak_jitter are only tallied when the descriptor actually computed
// them (cycles >= 4 / >= 6 respectively), matching skipper.c.
func (h *Histograms) Add(r Record) {
	h.RangeDB[r.RangeDB]++
	h.Cycles[r.Cycles]++
	h.LowThird[r.LowThird]++
	h.MidThird[r.MidThird]++
	h.HighThird[r.HighThird]++

	if r.Cycles >= 4 {
		h.AttackRatio[r.AttackRatio]++
	}
	if r.Cycles >= 6 {
		h.PeakJitter[r.PeakJitter]++
	}
}

// Summary is the min/max/mean/median/mode report display_histogram()
// prints in skipper.c.
type Summary struct {
	Min, Max         int
	Mean, Median     float64
	Mode             float64
	Hits             int
}

// Summarize computes Summary for one histogram array. ok is false if the
// histogram has no hits (nothing to summarize).
func Summarize(histogram []int) (s Summary, ok bool) {
	minValue, maxValue := 1 << 30, -1
	maxHits, mode1, mode2 := 0, 0, 0
	sum, hits := 0, 0

	for value, count := range histogram {
		if count == 0 {
			continue
		}
		if count > maxHits {
			maxHits, mode1, mode2 = count, value, value
		} else if count == maxHits {
			mode2 = value
		}
		if value < minValue {
			minValue = value
		}
		if value > maxValue {
			maxValue = value
		}
		sum += count * value
		hits += count
	}

	if hits == 0 {
		return Summary{}, false
	}

	median := 0.0
	hits2 := 0
	for value, count := range histogram {
		if count == 0 {
			continue
		}
		if float64(hits2+count) > float64(hits)/2.0 {
			median = float64(value) - 0.5 + (float64(hits)/2.0-float64(hits2))/float64(count)
			break
		}
		hits2 += count
	}

	return Summary{
		Min:    minValue,
		Max:    maxValue,
		Mean:   float64(sum) / float64(hits),
		Median: median,
		Mode:   float64(mode1+mode2) / 2.0,
		Hits:   hits,
	}, true
}

// Population is one percentile band display_population() prints:
// the narrowest [Low, High] value range covering Percent of all hits.
// Percent is the requested target; Count/Total is the achieved
// fraction actually covered by [Low, High] (display_population()
// prints sum2*100.0/sum, not the target back).
type Population struct {
	Percent   float64
	Low, High int
	Count     int
	Total     int
}

// Percentiles computes a Population band for each requested percent,
// mirroring display_population()'s symmetric trim-from-the-edges search.
func Percentiles(histogram []int, percents []float64) []Population {
	lowValue, highValue, sum := -1, -1, 0

	for value, count := range histogram {
		if count == 0 {
			continue
		}
		if sum == 0 {
			lowValue = value
		}
		sum += count
		highValue = value
	}

	if sum == 0 {
		return nil
	}

	out := make([]Population, 0, len(percents))

	for _, percent := range percents {
		low, high := lowValue, highValue
		target := int(float64(sum)*percent/100.0 + 0.5)
		remaining := sum
		toggle := false

		for remaining > target {
			lowCount, highCount := histogram[low], histogram[high]

			switch {
			case lowCount < highCount || (lowCount == highCount && flip(&toggle)):
				if remaining-lowCount/2 > target {
					remaining -= lowCount
					low = nextNonZero(histogram, low+1, high)
				} else {
					goto done
				}
			default:
				if remaining-highCount/2 > target {
					remaining -= highCount
					high = prevNonZero(histogram, high-1, low)
				} else {
					goto done
				}
			}
		}

	done:
		out = append(out, Population{Percent: percent, Low: low, High: high, Count: remaining, Total: sum})
	}

	return out
}

func flip(b *bool) bool {
	*b = !*b
	return *b
}

func nextNonZero(histogram []int, from, limit int) int {
	for v := from; v <= limit; v++ {
		if histogram[v] != 0 {
			return v
		}
	}
	return limit
}

func prevNonZero(histogram []int, from, limit int) int {
	for v := from; v >= limit; v-- {
		if histogram[v] != 0 {
			return v
		}
	}
	return limit
}
