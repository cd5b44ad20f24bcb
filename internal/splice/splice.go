// Package splice buffers outgoing stereo audio long enough to apply a
// crossfade across a confirmed MUSIC/TALK transition and to decide,
// per spec §4.4, which spans of audio are actually written to the
// output stream. Grounded on original_source/skipper.c's fade_out,
// fade_in, and keep-alive blocks in its main loop.
package splice

import (
	"errors"

	"github.com/caudio/skipcast/internal/mode"
)

// Stereo is one interleaved L/R output frame.
type Stereo struct {
	L, R int16
}

// SkipMode selects which detected class is dropped from the output
// stream; the other is passed through (spec §3, §6's -m/-t/-n/-p flags).
type SkipMode int

const (
	// SkipMusic drops MUSIC spans and keeps everything else (the
	// common "skip the music, keep the talk" case).
	SkipMusic SkipMode = iota
	// SkipTalk drops TALK spans and keeps everything else.
	SkipTalk
	// SkipNone passes every span through regardless of detected mode
	// (spec §6's -p, the default).
	SkipNone
	// SkipBoth drops every span regardless of detected mode (spec
	// §6's -n).
	SkipBoth
)

// outputSeconds and backlogSeconds are spec §4.4's Data Model
// constants governing the two independent bulk-flush triggers: the
// output ring's hard cap (OUTPUT_SECONDS) and the confirmed-audio
// backlog threshold that forces a flush even short of that cap.
const (
	outputSeconds  = 120
	backlogSeconds = 60
)

// ErrBufferUnderflow is returned when a caller asks for more lookback
// or lookahead than the ring currently holds.
var ErrBufferUnderflow = errors.New("splice: buffer underflow")

// ErrNoConfirmed is returned by Drain if it is called while a
// transition is still pending (the ring ran out of frames before the
// crossfade window of the last HandleTransition call was passed).
var ErrNoConfirmed = errors.New("splice: transition never confirmed")

// transition records an in-flight crossfade: old mode fading out,
// new mode fading in, anchored at the frame index where the ramp
// window begins.
type transition struct {
	from, to       mode.Mode
	crossfadeStart int64
	fadeOut        bool // true when the new mode (to) is the one being skipped
}

// Splicer is the output-side half of the pipeline: it receives every
// decoded stereo frame (regardless of detected mode), buffers it in a
// ring deep enough to crossfade, bulk-flush, and service debug
// overwrites, and emits frames to be written to the output stream
// once it has decided whether they survive the configured skip mode.
type Splicer struct {
	skip SkipMode

	buf     ring
	pending *transition
	current mode.Mode
	emitted int64 // total frames ever released via MaybeFlush/Drain

	rate         int
	crossfadeLen int64 // CROSSFADE_SECS*rate, spec §4.4's Data Model
	stepLen      int64
	outputCap    int64 // outputSeconds*rate
	backlogCap   int64 // backlogSeconds*rate
	lookbackLag  int64

	confirmedSample int64 // spec §4.4's confirmed_sample frontier

	keepAliveEnabled  bool
	crossfadeBuf      []Stereo // saved faded tail, length crossfadeLen
	crossfadeBufValid bool

	musicSeen     int64 // cumulative frames whose effective mode was MUSIC
	talkSeen      int64 // cumulative frames whose effective mode was TALK
	keepAliveSent int64 // cumulative synthetic keep-alive frames emitted
}

// Stats reports the Splicer's cumulative per-mode and keep-alive
// counters, for the end-of-run summary report (SPEC_FULL.md's
// supplemented run-summary feature).
func (s *Splicer) Stats() (musicFrames, talkFrames, keepAliveFrames int64) {
	return s.musicSeen, s.talkSeen, s.keepAliveSent
}

// New creates a Splicer in mode.None, configured to skip the given
// mode at the given sample rate. stepLen is the pipeline's window
// step length in frames, used by the bulk-flush release formula.
// keepAlive enables spec §4.4's supplemented keep-alive feature: when
// a long skip span backs up the confirmed-audio frontier, a brief
// synthetic crossfade back to attenuated audio is spliced in rather
// than letting the output go fully silent for minutes at a time.
func New(skip SkipMode, rate int, stepLen int64, keepAlive bool) *Splicer {
	crossfadeLen := int64(2 * rate)
	outputCap := int64(outputSeconds) * int64(rate)

	// The ring must preallocate enough room to hold a full
	// bulk-flush's worth of resident backlog (outputCap), plus margin
	// for the crossfade window a pending transition may still need
	// reaching back past the tail, plus one step's slack for the
	// bulk-flush release formula's step/2 term.
	capacity := int(outputCap + crossfadeLen*2 + stepLen)

	return &Splicer{
		skip:             skip,
		buf:              newRing(capacity),
		rate:             rate,
		crossfadeLen:     crossfadeLen,
		stepLen:          stepLen,
		outputCap:        outputCap,
		backlogCap:       int64(backlogSeconds) * int64(rate),
		lookbackLag:      crossfadeLen / 2,
		keepAliveEnabled: keepAlive,
		crossfadeBuf:     make([]Stereo, crossfadeLen),
	}
}

// Enqueue buffers one decoded frame. It must be called once per input
// frame, in order, before HandleTransition or MaybeFlush act on that
// position.
func (s *Splicer) Enqueue(f Stereo) {
	s.buf.push(f)
}

// OutputIndex returns the frame index of the most recently enqueued
// frame (0-based, monotonic for the life of the Splicer).
func (s *Splicer) OutputIndex() int64 {
	return s.buf.total - 1
}

// AdvanceConfirmed raises the splicer's confirmed-audio frontier
// (spec §4.4's confirmed_sample) to sample, if that is further ahead
// than what it already holds. The caller must only advance this while
// the classifier has no tendency currently building (spec: "only
// advances when no up-counter is pending") — samples at or beyond the
// frontier may still be folded into a future transition's crossfade.
func (s *Splicer) AdvanceConfirmed(sample int64) {
	if sample > s.confirmedSample {
		s.confirmedSample = sample
	}
}

// HandleTransition begins crossfading from the splicer's current mode
// to detected, anchored at anchorSample. If a transition is already
// in progress, the new one simply replaces it (a second confirmed
// flip arriving before the first finished fading is audible as a
// shorter fade, which matches skipper.c's single fade_out/fade_in
// call pair — it never tracks more than one in-flight fade).
//
// It returns ErrBufferUnderflow if the crossfade window would start
// before a frame already released from the ring (spec §4.4's
// "crossfade_start must be >= 0, else the buffer is too shallow"
// invariant) — the caller configured window/average/crossfade
// constants too large for the buffered lookback actually kept.
func (s *Splicer) HandleTransition(detected mode.Mode, anchorSample int64) error {
	if detected == s.current {
		s.pending = nil
		return nil
	}
	crossfadeStart := anchorSample - s.crossfadeLen/2
	if crossfadeStart < s.buf.released {
		return ErrBufferUnderflow
	}
	s.pending = &transition{
		from:           s.current,
		to:             detected,
		crossfadeStart: crossfadeStart,
		fadeOut:        !s.shouldWrite(detected),
	}
	return nil
}

// shouldWrite reports whether a frame classified under m should reach
// the output stream under the splicer's configured skip mode.
// mode.None behaves like whichever mode is not being skipped, the same
// branch skipper.c's ternary falls into before the first confirmed
// detection arrives.
func (s *Splicer) shouldWrite(m mode.Mode) bool {
	switch s.skip {
	case SkipTalk:
		return m != mode.Talk
	case SkipNone:
		return true
	case SkipBoth:
		return false
	default: // SkipMusic
		return m != mode.Music
	}
}

// MaybeFlush advances the splicer by whatever a pending crossfade
// allows, or — once no transition is in flight — by whatever the
// bulk-flush triggers (spec §4.4's 120s output-ring cap or 60s
// confirmed-backlog threshold) release. It is safe to call after
// every Enqueue.
func (s *Splicer) MaybeFlush() []Stereo {
	if s.pending != nil {
		return s.advanceTransition()
	}
	return s.maybeBulkFlush()
}

// tallyMode folds one released frame's effective mode into the
// cumulative per-mode counters Stats reports.
func (s *Splicer) tallyMode(m mode.Mode) {
	s.tallyModeBatch(m, 1)
}

func (s *Splicer) tallyModeBatch(m mode.Mode, n int64) {
	switch m {
	case mode.Music:
		s.musicSeen += n
	case mode.Talk:
		s.talkSeen += n
	}
}

// advanceTransition drains resident frames across an in-progress
// crossfade: passthrough under the old mode's decision before the
// fade window starts, then the spec §4.4 linear amplitude ramp across
// the window itself (fade-out samples are attenuated and saved to the
// crossfade buffer rather than written; fade-in samples are ramped up,
// additively mixed with the saved buffer, and written), and finally
// the mode flip once the window fully resolves. It stops as soon as
// the ring runs dry, leaving s.pending set for the next call to
// resume from.
func (s *Splicer) advanceTransition() []Stereo {
	var out []Stereo
	n := s.crossfadeLen

	for s.pending != nil {
		idx := s.buf.tailIndex()

		if idx >= s.pending.crossfadeStart+n {
			s.current = s.pending.to
			s.pending = nil
			break
		}

		frame, ok := s.buf.popTail()
		if !ok {
			break
		}

		if idx < s.pending.crossfadeStart {
			s.tallyMode(s.current)
			if s.shouldWrite(s.current) {
				out = append(out, frame)
			}
			s.emitted++
			continue
		}

		p := idx - s.pending.crossfadeStart
		if s.pending.fadeOut {
			mult := float64(n-p) / float64(n)
			s.crossfadeBuf[p] = scaleFrame(frame, mult)
			if p == n-1 {
				s.crossfadeBufValid = true
			}
			s.tallyMode(s.current)
		} else {
			mult := float64(p+1) / float64(n)
			v := scaleFrame(frame, mult)
			if s.crossfadeBufValid {
				v = addSaturate(v, s.crossfadeBuf[p])
			}
			if p == n-1 {
				s.crossfadeBufValid = false
			}
			out = append(out, v)
			s.tallyMode(s.pending.to)
		}
		s.emitted++
	}

	return out
}

// maybeBulkFlush implements spec §4.4's bulk-release path, which only
// runs while no crossfade is in flight: outside a transition, audio
// just accumulates in the ring until either the ring's 120s cap or
// the 60s confirmed-backlog threshold is reached, at which point
// everything up to the confirmed frontier (plus half a step, per
// spec's release formula) is resolved in one shot under the current
// mode's skip decision — with a keep-alive splice substituted for a
// long enough skipped span.
func (s *Splicer) maybeBulkFlush() []Stereo {
	resident := s.buf.total - s.buf.tailIndex()
	confirmedBacklog := s.confirmedSample - s.buf.tailIndex()

	if resident < s.outputCap && confirmedBacklog < s.backlogCap {
		return nil
	}

	available := s.confirmedSample + s.stepLen/2 - s.buf.tailIndex()
	if available <= 0 {
		return nil
	}
	if available > resident {
		available = resident
	}

	if s.shouldWrite(s.current) {
		out := make([]Stereo, 0, available)
		for i := int64(0); i < available; i++ {
			frame, ok := s.buf.popTail()
			if !ok {
				break
			}
			out = append(out, frame)
		}
		s.tallyModeBatch(s.current, int64(len(out)))
		s.emitted += int64(len(out))
		return out
	}

	if s.keepAliveEnabled && available > 2*s.crossfadeLen {
		return s.keepAliveSplice(available)
	}

	var discarded int64
	for i := int64(0); i < available; i++ {
		if _, ok := s.buf.popTail(); !ok {
			break
		}
		discarded++
	}
	s.tallyModeBatch(s.current, discarded)
	s.emitted += discarded
	return nil
}

// keepAliveSplice consumes available skipped frames without writing
// most of them, but carves a crossfade-length window out of the middle
// of the span (starting at available/2 - crossfadeLen) and splices it in as spec §4.4's keep-alive: attenuated
// by a factor of 4, faded in across the window while adding in
// whatever crossfade buffer survived from the last real transition,
// and — before returning — fades the following window out into a
// freshly saved crossfade buffer so a later real fade-in still has
// something to blend against.
func (s *Splicer) keepAliveSplice(available int64) []Stereo {
	n := s.crossfadeLen

	mid := available/2 - n
	if mid < 0 {
		mid = 0
	}

	var popped int64
	for i := int64(0); i < mid; i++ {
		if _, ok := s.buf.popTail(); !ok {
			break
		}
		popped++
	}

	firstHalf := make([]Stereo, 0, n)
	for i := int64(0); i < n; i++ {
		f, ok := s.buf.popTail()
		if !ok {
			break
		}
		firstHalf = append(firstHalf, f)
		popped++
	}

	secondHalf := make([]Stereo, 0, n)
	for i := int64(0); i < n; i++ {
		f, ok := s.buf.popTail()
		if !ok {
			break
		}
		secondHalf = append(secondHalf, f)
		popped++
	}

	remaining := available - popped
	for i := int64(0); i < remaining; i++ {
		if _, ok := s.buf.popTail(); !ok {
			break
		}
		popped++
	}

	out := make([]Stereo, len(firstHalf))
	for p, f := range firstHalf {
		v := scaleFrame(attenuate(f, 4), float64(p+1)/float64(n))
		if s.crossfadeBufValid && p < len(s.crossfadeBuf) {
			v = addSaturate(v, s.crossfadeBuf[p])
		}
		out[p] = v
	}

	newBuf := make([]Stereo, n)
	for p, f := range secondHalf {
		newBuf[p] = scaleFrame(attenuate(f, 4), float64(n-int64(p))/float64(n))
	}
	s.crossfadeBuf = newBuf
	s.crossfadeBufValid = len(secondHalf) > 0

	written := int64(len(out))
	discarded := popped - written
	s.tallyModeBatch(s.current, discarded)
	s.keepAliveSent += written
	s.emitted += popped

	return out
}

// OverwriteLevel retroactively rewrites the L channel of the frame
// lookbackLag behind the current write position with a debug level
// value (spec §9's OUTPUT_LEVEL channel, which skipper.c leaves at
// zero until this retroactive write happens).
func (s *Splicer) OverwriteLevel(levelL int16) error {
	return s.buf.overwriteL(s.lookbackLag, levelL)
}

// WriteTensorWindow is OverwriteLevel's counterpart for the
// OUTPUT_TENSOR debug channel.
func (s *Splicer) WriteTensorWindow(score int16) error {
	return s.buf.overwriteL(s.lookbackLag, score)
}

// Drain releases every remaining buffered frame: first whatever a
// pending crossfade can resolve with the frames still resident, then
// everything else under the current mode's plain skip decision. It
// returns ErrNoConfirmed if a transition was started but the ring ran
// dry before its crossfade window fully resolved — the caller
// truncated the stream mid-fade.
func (s *Splicer) Drain() ([]Stereo, error) {
	out := s.advanceTransition()
	if s.pending != nil {
		return out, ErrNoConfirmed
	}

	for {
		frame, ok := s.buf.popTail()
		if !ok {
			break
		}
		s.tallyMode(s.current)
		if s.shouldWrite(s.current) {
			out = append(out, frame)
		}
		s.emitted++
	}

	return out, nil
}

func scaleFrame(f Stereo, mult float64) Stereo {
	return Stereo{L: saturateFloat(float64(f.L) * mult), R: saturateFloat(float64(f.R) * mult)}
}

func attenuate(f Stereo, factor int16) Stereo {
	return Stereo{L: f.L / factor, R: f.R / factor}
}

func addSaturate(a, b Stereo) Stereo {
	return Stereo{L: saturateFloat(float64(a.L) + float64(b.L)), R: saturateFloat(float64(a.R) + float64(b.R))}
}

func saturateFloat(v float64) int16 {
	if v > 32767 {
		return 32767
	}
	if v < -32768 {
		return -32768
	}
	return int16(v)
}
