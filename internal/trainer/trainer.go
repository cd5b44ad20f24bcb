// Package trainer implements the offline tensor builder: it reads
// labeled descriptor streams, accumulates a MUSIC/TALK distribution
// per tensor cell, scores each cell, dilates gaps, optionally
// replicates collapsed axes, and verifies the result against a
// held-out split of the same descriptors. Grounded on
// original_source/tensor-gen.c's distribution-accumulation,
// cell-scoring, dilation, replication, and verification loops.
package trainer

import (
	"fmt"
	"io"
	"math"

	"github.com/caudio/skipcast/internal/descriptor"
	"github.com/caudio/skipcast/internal/mode"
	"github.com/caudio/skipcast/internal/tensor"
)

// ReadDescriptors decodes a flat stream of 8-byte descriptor records
// (as emitted by skipcast's analysis-file debug output) until EOF.
func ReadDescriptors(r io.Reader) ([]descriptor.Record, error) {
	var out []descriptor.Record
	var buf [descriptor.Size]byte

	for {
		_, err := io.ReadFull(r, buf[:])
		if err == io.EOF {
			return out, nil
		}
		if err == io.ErrUnexpectedEOF {
			return out, fmt.Errorf("trainer: truncated descriptor record")
		}
		if err != nil {
			return out, err
		}
		out = append(out, descriptor.FromBytes(buf))
	}
}

// Distribution accumulates, per tensor cell, how many MUSIC- and
// TALK-labeled descriptors landed there during training.
//
// The split between training and verification windows is done by
// split, not here: with alternate set, even-indexed records of each
// file train and odd-indexed ones are held out; without it, every
// record trains and is also used for verification.
type Distribution struct {
	dims  [4]int
	music []int32
	talk  []int32

	// musicWindows and talkWindows are the total number of training
	// windows folded in per class, used to normalize contested cells
	// by each source file's size (spec §4.5), grounded on
	// tensor-gen.c's window_count1/window_count2.
	musicWindows int32
	talkWindows  int32
}

// NewDistribution allocates an empty distribution over dims.
func NewDistribution(dims [4]int) *Distribution {
	n := dims[0] * dims[1] * dims[2] * dims[3]
	return &Distribution{dims: dims, music: make([]int32, n), talk: make([]int32, n)}
}

// Add folds one labeled descriptor into the distribution.
func (d *Distribution) Add(r descriptor.Record, m mode.Mode) {
	h, i, j, k := tensor.IndexFor(r, d.dims)
	idx := tensor.Offset(d.dims, h, i, j, k)
	switch m {
	case mode.Music:
		d.music[idx]++
		d.musicWindows++
	case mode.Talk:
		d.talk[idx]++
		d.talkWindows++
	}
}

// split partitions labeled descriptors into a training set and a
// verification set. When alternate is true (tensor-gen.c's -a flag),
// it holds back odd-indexed windows per file for verification so the
// build and test sets are disjoint (spec §4.5). When alternate is
// false, every window trains and verification runs against the same
// data it was scored from — an operator-visible tradeoff, not a bug:
// without -a there is no held-out split to report against.
type labeled struct {
	record descriptor.Record
	m      mode.Mode
}

func split(music, talk []descriptor.Record, alternate bool) (train, verify []labeled) {
	add := func(records []descriptor.Record, m mode.Mode) {
		for i, r := range records {
			l := labeled{record: r, m: m}
			if !alternate {
				train = append(train, l)
				continue
			}
			if i%2 == 0 {
				train = append(train, l)
			} else {
				verify = append(verify, l)
			}
		}
	}
	add(music, mode.Music)
	add(talk, mode.Talk)
	if !alternate {
		verify = train
	}
	return
}

// ScoreReport summarizes a Distribution before scoring: how many
// cells saw any data at all, and how many saw both classes (the
// genuinely discriminating cells) versus only one.
type ScoreReport struct {
	TotalCells   int
	EmptyCells   int
	MusicOnly    int
	TalkOnly     int
	Contested    int
}

// Summarize computes a ScoreReport over the distribution.
func (d *Distribution) Summarize() ScoreReport {
	r := ScoreReport{TotalCells: len(d.music)}
	for i := range d.music {
		m, t := d.music[i], d.talk[i]
		switch {
		case m == 0 && t == 0:
			r.EmptyCells++
		case m > 0 && t == 0:
			r.MusicOnly++
		case t > 0 && m == 0:
			r.TalkOnly++
		default:
			r.Contested++
		}
	}
	return r
}

// Score renders the distribution into a tensor, matching
// tensor-gen.c's per-cell scoring formula field for field: a cell
// seen by only one class saturates to +-99; a cell seen by both is
// normalized by each class's total window count, the larger weight
// pinned to 1.0 and the smaller divided down against it, then blended
// as `round(musicWeight*99 - talkWeight*99)`. filled marks which
// cells received an actual score, for a subsequent Dilate pass.
func (d *Distribution) Score() (*tensor.Tensor, []bool) {
	t := tensor.New(d.dims)
	filled := make([]bool, len(d.music))

	for idx := range d.music {
		m, tk := d.music[idx], d.talk[idx]

		switch {
		case m > 0 && tk == 0:
			h, i, j, k := unflatten(d.dims, idx)
			t.Set(h, i, j, k, 99)
			filled[idx] = true
		case tk > 0 && m == 0:
			h, i, j, k := unflatten(d.dims, idx)
			t.Set(h, i, j, k, -99)
			filled[idx] = true
		case m > 0 && tk > 0:
			musicWeight := float64(m) / float64(d.musicWindows)
			talkWeight := float64(tk) / float64(d.talkWindows)

			if musicWeight > talkWeight {
				talkWeight /= musicWeight
				musicWeight = 1.0
			} else {
				musicWeight /= talkWeight
				talkWeight = 1.0
			}

			score := math.Floor(musicWeight*99+talkWeight*-99+0.5)
			h, i, j, k := unflatten(d.dims, idx)
			t.Set(h, i, j, k, int8(clampScore(score)))
			filled[idx] = true
		}
	}

	return t, filled
}

func clampScore(v float64) float64 {
	if v > 99 {
		return 99
	}
	if v < -99 {
		return -99
	}
	return v
}

func unflatten(dims [4]int, idx int) (h, i, j, k int) {
	k = idx % dims[3]
	idx /= dims[3]
	j = idx % dims[2]
	idx /= dims[2]
	i = idx % dims[1]
	idx /= dims[1]
	h = idx
	return
}

// VerifyReport tallies how well a built tensor predicts the held-out
// verification split: hit (correct class), miss (confident but
// wrong), and guess (the cell held a zero/unscored value, so the
// classifier had no real opinion), mirroring tensor-gen.c's
// post-build verification loop.
type VerifyReport struct {
	Hits, Misses, Guesses int
}

// verifyHoldout scores every held-out descriptor against t and
// tallies the outcome.
func verifyHoldout(t *tensor.Tensor, holdout []labeled) VerifyReport {
	var r VerifyReport
	for _, l := range holdout {
		score := t.Score(l.record)
		switch {
		case score == 0:
			r.Guesses++
		case score > 0 && l.m == mode.Music, score < 0 && l.m == mode.Talk:
			r.Hits++
		default:
			r.Misses++
		}
	}
	return r
}

// BuildResult bundles everything a trainer front end reports after a
// build: the tensor itself, plus the scoring and verification
// summaries along the way.
type BuildResult struct {
	Tensor      *tensor.Tensor
	ScoreReport ScoreReport
	Verify      VerifyReport
	DilatePasses int
}

// Build runs the full offline training pipeline: split the labeled
// descriptors (held out per alternate's parity rule, see split),
// accumulate a Distribution at dims, score it into a tensor, dilate
// empty cells until stable (bounded by maxDilatePasses to avoid
// pathological input spinning forever), replicate any collapsed axes
// back out to full resolution, and verify against the held-out split.
func Build(music, talk []descriptor.Record, dims [4]int, maxDilatePasses int, alternate bool) BuildResult {
	train, verify := split(music, talk, alternate)

	d := NewDistribution(dims)
	for _, l := range train {
		d.Add(l.record, l.m)
	}

	t, filled := d.Score()

	passes := 0
	for passes < maxDilatePasses && t.Dilate(filled) {
		passes++
	}

	if dims != tensor.Dims {
		full := tensor.New(tensor.Dims)
		// Replication expects a full-size tensor with the trained
		// axes already populated at index 0; copy the trained
		// sub-tensor's single observed plane into place before
		// expanding.
		copyInto(full, t, dims)
		full.ReplicateCollapsed(activeMask(dims))
		t = full
	}

	return BuildResult{
		Tensor:       t,
		ScoreReport:  d.Summarize(),
		Verify:       verifyHoldout(t, verify),
		DilatePasses: passes,
	}
}

// activeMask returns, for each axis, 1 if dims collapsed that axis to
// a single bucket (so it should be replicated out), else the axis's
// full extent (left untouched by ReplicateCollapsed).
func activeMask(dims [4]int) [4]int {
	mask := dims
	for axis, d := range dims {
		if d == 1 {
			mask[axis] = 1
		} else {
			mask[axis] = tensor.Dims[axis]
		}
	}
	return mask
}

func copyInto(full, trained *tensor.Tensor, dims [4]int) {
	td := trained.Dims()
	for h := 0; h < td[0]; h++ {
		for i := 0; i < td[1]; i++ {
			for j := 0; j < td[2]; j++ {
				for k := 0; k < td[3]; k++ {
					full.Set(h, i, j, k, trained.At(h, i, j, k))
				}
			}
		}
	}
}

// RenderSlice renders a fixed (h, i) plane of t as a text grid of
// scores over (j, k), for the supplemented 2-D tensor slice display
// feature (SPEC_FULL.md §9.3). Each cell is printed as a signed
// 4-character field.
func RenderSlice(t *tensor.Tensor, h, i int) string {
	d := t.Dims()
	var out []byte
	for j := 0; j < d[2]; j++ {
		for k := 0; k < d[3]; k++ {
			out = append(out, []byte(fmt.Sprintf("%4d", t.At(h, i, j, k)))...)
		}
		out = append(out, '\n')
	}
	return string(out)
}
