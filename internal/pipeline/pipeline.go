// Package pipeline wires the dither, biquad, envelope, descriptor,
// tensor, classifier, and splicer stages into the single synchronous
// loop described in spec.md §5, mirroring the shape (not the DSP) of
// the teacher's internal/processor.ProcessAudio driver function and
// its progressCallback pattern
// (_examples/linuxmatters-jivetalking/internal/processor/processor.go).
package pipeline

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/caudio/skipcast/internal/biquad"
	"github.com/caudio/skipcast/internal/classify"
	"github.com/caudio/skipcast/internal/descriptor"
	"github.com/caudio/skipcast/internal/dither"
	"github.com/caudio/skipcast/internal/envelope"
	"github.com/caudio/skipcast/internal/rlog"
	"github.com/caudio/skipcast/internal/splice"
	"github.com/caudio/skipcast/internal/tensor"
)

// DebugChannel selects what a splicer output channel actually carries,
// per spec §6's -l/-r flag and §9's "debug output modes ... first
// class but orthogonal" design note.
type DebugChannel int

const (
	// ChannelNormal carries the ordinary pass-through sample (left =
	// input[0], right = input[channels-1]).
	ChannelNormal DebugChannel = 0
	ChannelMono   DebugChannel = 1
	ChannelFiltered DebugChannel = 2
	ChannelLevel    DebugChannel = 3
	ChannelTensor   DebugChannel = 4
)

// windowSeconds, stepSeconds, averageSeconds, and crossfadeSeconds are
// the fixed constants from spec.md §3/§4.2/§4.3.
const (
	windowSeconds    = 5.0
	stepSeconds      = 0.2
	crossfadeSeconds = 2.0
)

var averageSeconds = float64(classify.AverageCount) * stepSeconds

// RunConfig is the resolved set of CLI options driving one pipeline
// run — the Go-native analogue of skipper.c's argv-derived locals
// (SPEC_FULL.md §3).
type RunConfig struct {
	Channels  int
	Rate      int
	Tensor    *tensor.Tensor
	Skip      splice.SkipMode
	Threshold float64
	LeftDebug, RightDebug DebugChannel
	KeepAlive bool
	Quiet     bool
	Verbose   bool
	Analysis  io.Writer // nil if -a not given
}

// ErrBufferUnderflow and ErrNoConfirmed mirror skipper.c's two fatal
// exit(1) sites: a crossfade anchor that lands before the start of
// the output ring, and input that ends before a started crossfade's
// window has been passed (splice.ErrNoConfirmed from Drain).
var (
	ErrBufferUnderflow = errors.New("pipeline: crossfade anchor precedes buffered output")
	ErrNoConfirmed      = errors.New("pipeline: input ended before a pending crossfade was passed")
)

// Result bundles everything a front end reports after a run.
type Result struct {
	Stats      rlog.Stats
	Histograms *descriptor.Histograms
}

// Run executes the full streaming pipeline: it reads raw PCM frames
// from in, classifies and splices them per cfg, and writes the
// resulting stereo PCM to out. Input is read one frame at a time, and
// ctx is checked before each frame is read so an operator-level SIGINT
// can interrupt cleanly (spec §5); it is not passed to any stage.
func Run(ctx context.Context, cfg RunConfig, in io.Reader, out io.Writer, log *rlog.Logger) (Result, error) {
	ringLen := int(math.Round(float64(cfg.Rate) * 0.05))
	env := envelope.New(ringLen)

	windowLen := int(windowSeconds * float64(cfg.Rate))
	stepLen := int(stepSeconds * float64(cfg.Rate))
	window := make([]float64, 0, windowLen)

	hp := biquad.New(biquad.Highpass(250.0/float64(cfg.Rate)), 1.0)
	lp := biquad.New(biquad.Lowpass(2000.0/float64(cfg.Rate)), 1.0)
	rng := dither.New()

	prewarm(rng, hp, lp, env, cfg.Rate)

	classifier := classify.New(cfg.Threshold)
	splicer := splice.New(cfg.Skip, cfg.Rate, int64(stepLen), cfg.KeepAlive)

	hist := &descriptor.Histograms{}

	var stats rlog.Stats
	var sampleIndex int64

	frame := make([]int16, cfg.Channels)
	raw := make([]byte, 2*cfg.Channels)

	for {
		if err := ctx.Err(); err != nil {
			return Result{Stats: stats, Histograms: hist}, err
		}

		n, err := io.ReadFull(in, raw)
		if n == 0 && (err == io.EOF || err == io.ErrUnexpectedEOF) {
			break
		}
		if err != nil && err != io.EOF {
			return Result{Stats: stats, Histograms: hist}, fmt.Errorf("pipeline: read input: %w", err)
		}

		for c := 0; c < cfg.Channels; c++ {
			frame[c] = int16(binary.LittleEndian.Uint16(raw[2*c:]))
		}

		monoRaw := monoOf(frame, cfg.Channels)
		ditherOffset := float64(rng.Next())
		monoDithered := monoRaw + ditherOffset

		filtered := monoDithered
		hpBuf := []float64{filtered}
		hp.Apply(hpBuf)
		lp.Apply(hpBuf)
		filtered = hpBuf[0]

		level := env.Push(filtered)
		window = append(window, level)

		left := selectChannel(cfg.LeftDebug, frame[0], monoDithered, filtered, level, 0)
		right := selectChannel(cfg.RightDebug, frame[cfg.Channels-1], monoDithered, filtered, level, 0)
		splicer.Enqueue(splice.Stereo{L: left, R: right})

		if cfg.LeftDebug == ChannelLevel || cfg.RightDebug == ChannelLevel {
			// Early in the stream the lag window isn't full yet;
			// ErrBufferUnderflow there is expected and ignored.
			_ = splicer.OverwriteLevel(levelToDB(level))
		}

		sampleIndex++

		if len(window) >= windowLen && (sampleIndex%int64(stepLen)) == 0 {
			rec := descriptor.Analyze(window[len(window)-windowLen:])
			hist.Add(rec)

			if cfg.Analysis != nil {
				b := rec.Bytes()
				if _, werr := cfg.Analysis.Write(b[:]); werr != nil {
					return Result{Stats: stats, Histograms: hist}, fmt.Errorf("pipeline: write analysis: %w", werr)
				}
			}

			score := int8(0)
			if cfg.Tensor != nil {
				score = cfg.Tensor.Score(rec)
			}

			if cfg.LeftDebug == ChannelTensor || cfg.RightDebug == ChannelTensor {
				_ = splicer.WriteTensorWindow(int16(score))
			}

			anchor := sampleIndex - int64((windowSeconds+averageSeconds)*float64(cfg.Rate)/2)
			prevMode := classifier.Current()
			detected, cancel, _ := classifier.Push(score, anchor)

			if cancel != nil && log != nil {
				log.PendingCancelled(cancel, sampleIndex, cfg.Rate)
				stats.Cancellations++
			}

			if detected != prevMode {
				if log != nil {
					log.Detected(detected, anchor, cfg.Rate)
				}
				if err := splicer.HandleTransition(detected, anchor); err != nil {
					return Result{Stats: stats, Histograms: hist}, fmt.Errorf("%w: %v", ErrBufferUnderflow, err)
				}
				stats.Transitions++
			}

			if !classifier.Pending() {
				confirmed := sampleIndex - int64((windowSeconds+averageSeconds)*float64(cfg.Rate)/2) -
					int64(stepLen)/2 - int64(crossfadeSeconds*float64(cfg.Rate)/2)
				splicer.AdvanceConfirmed(confirmed)
			}

			if len(window) > windowLen*2 {
				window = window[len(window)-windowLen:]
			}
		}

		for _, f := range splicer.MaybeFlush() {
			if werr := writeFrame(out, f); werr != nil {
				return Result{Stats: stats, Histograms: hist}, fmt.Errorf("pipeline: write output: %w", werr)
			}
			stats.WrittenFrames++
		}
		stats.TotalFrames++
	}

	rest, derr := splicer.Drain()
	if errors.Is(derr, splice.ErrNoConfirmed) {
		return Result{Stats: stats, Histograms: hist}, fmt.Errorf("%w: %v", ErrNoConfirmed, derr)
	}
	if derr != nil {
		return Result{Stats: stats, Histograms: hist}, fmt.Errorf("pipeline: drain: %w", derr)
	}
	for _, f := range rest {
		if werr := writeFrame(out, f); werr != nil {
			return Result{Stats: stats, Histograms: hist}, fmt.Errorf("pipeline: write output: %w", werr)
		}
		stats.WrittenFrames++
	}

	stats.MusicFrames, stats.TalkFrames, stats.KeepAliveFrames = splicer.Stats()

	return Result{Stats: stats, Histograms: hist}, nil
}

// prewarm fills the envelope ring with six seconds of filtered dither
// noise before any real input is processed, so the first real
// window's envelope is not contaminated by startup zeros (spec §4.1).
func prewarm(rng *dither.LCG, hp, lp *biquad.Biquad, env *envelope.Ring, rate int) {
	n := rate * 6
	buf := make([]float64, n)
	rng.Fill(buf)
	hp.Apply(buf)
	lp.Apply(buf)
	for _, v := range buf {
		env.Push(v)
	}
}

func monoOf(frame []int16, channels int) float64 {
	if channels == 1 {
		return float64(frame[0])
	}
	sum := 0
	for _, s := range frame {
		sum += int(s)
	}
	return float64(sum) / float64(channels)
}

// selectChannel renders whichever debug channel was requested for one
// output side. ChannelLevel and ChannelTensor are written back
// retroactively through the splicer's OverwriteLevel/WriteTensorWindow
// once a real value is known (spec §9); at enqueue time they carry
// the buffer's existing (zero) value, matching skipper.c's
// calloc-zero OUTPUT_LEVEL/OUTPUT_TENSOR behavior before write-back.
func selectChannel(ch DebugChannel, passthrough int16, mono, filtered, level float64, _ int8) int16 {
	switch ch {
	case ChannelMono:
		return saturateFloat(mono)
	case ChannelFiltered:
		return saturateFloat(filtered)
	case ChannelLevel, ChannelTensor:
		return 0
	default:
		return passthrough
	}
}

// levelToDB converts a mean-square energy value into a dBFS-ish
// int16 for the OUTPUT_LEVEL debug channel. level<=0 (silence, or the
// ring hasn't filled yet) maps to the most negative representable
// value rather than computing log10(0): casting a possibly -Inf float
// straight into int16, as the C original does, is not portable Go.
func levelToDB(level float64) int16 {
	if level <= 0 {
		return math.MinInt16
	}
	db := 10 * math.Log10(level)
	return saturateFloat(db * 100)
}

// saturateFloat clamps v to the int16 range before converting, since
// Go float64-to-int16 conversion is undefined for out-of-range
// values (unlike C's implementation-defined truncation).
func saturateFloat(v float64) int16 {
	if v >= math.MaxInt16 {
		return math.MaxInt16
	}
	if v <= math.MinInt16 {
		return math.MinInt16
	}
	return int16(v)
}

func writeFrame(w io.Writer, f splice.Stereo) error {
	var buf [4]byte
	binary.LittleEndian.PutUint16(buf[0:2], uint16(f.L))
	binary.LittleEndian.PutUint16(buf[2:4], uint16(f.R))
	_, err := w.Write(buf[:])
	return err
}
