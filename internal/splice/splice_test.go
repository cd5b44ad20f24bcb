package splice

import (
	"testing"

	"github.com/caudio/skipcast/internal/mode"
)

func drainAll(t *testing.T, s *Splicer, n int, frame func(i int) Stereo) []Stereo {
	t.Helper()
	var out []Stereo
	for i := 0; i < n; i++ {
		s.Enqueue(frame(i))
		out = append(out, s.MaybeFlush()...)
	}
	rest, err := s.Drain()
	if err != nil {
		t.Fatalf("Drain: %v", err)
	}
	return append(out, rest...)
}

func TestShouldWriteSkipMusic(t *testing.T) {
	s := New(SkipMusic, 50, 10, false)
	if !s.shouldWrite(mode.None) {
		t.Fatalf("None should be written under SkipMusic")
	}
	if !s.shouldWrite(mode.Talk) {
		t.Fatalf("Talk should be written under SkipMusic")
	}
	if s.shouldWrite(mode.Music) {
		t.Fatalf("Music should be dropped under SkipMusic")
	}
}

func TestShouldWriteSkipTalk(t *testing.T) {
	s := New(SkipTalk, 50, 10, false)
	if !s.shouldWrite(mode.None) {
		t.Fatalf("None should be written under SkipTalk")
	}
	if !s.shouldWrite(mode.Music) {
		t.Fatalf("Music should be written under SkipTalk")
	}
	if s.shouldWrite(mode.Talk) {
		t.Fatalf("Talk should be dropped under SkipTalk")
	}
}

func TestShouldWriteSkipNoneAndSkipBoth(t *testing.T) {
	none := New(SkipNone, 50, 10, false)
	for _, m := range []mode.Mode{mode.None, mode.Music, mode.Talk} {
		if !none.shouldWrite(m) {
			t.Fatalf("SkipNone should write %v", m)
		}
	}

	both := New(SkipBoth, 50, 10, false)
	for _, m := range []mode.Mode{mode.None, mode.Music, mode.Talk} {
		if both.shouldWrite(m) {
			t.Fatalf("SkipBoth should drop %v", m)
		}
	}
}

// TestNoTransitionPassesEverythingThrough never advances the
// confirmed-sample frontier, so the bulk-flush gate never fires and
// everything rides along until Drain releases it at the end — still
// every enqueued frame, since mode.None is never skipped under
// SkipMusic.
func TestNoTransitionPassesEverythingThrough(t *testing.T) {
	s := New(SkipMusic, 50, 10, false)
	out := drainAll(t, s, 2000, func(i int) Stereo {
		return Stereo{L: int16(i), R: int16(-i)}
	})
	if len(out) != 2000 {
		t.Fatalf("got %d frames, want 2000 (mode.None never skipped under SkipMusic)", len(out))
	}
}

func TestTransitionToSkippedModeEventuallyDropsFrames(t *testing.T) {
	s := New(SkipMusic, 50, 10, false)

	for i := 0; i < 100; i++ {
		s.Enqueue(Stereo{L: 1})
		s.MaybeFlush()
	}

	if err := s.HandleTransition(mode.Music, s.OutputIndex()-10); err != nil {
		t.Fatalf("HandleTransition: %v", err)
	}

	out := drainAll(t, s, 5000, func(i int) Stereo {
		return Stereo{L: 1}
	})

	// Only the handful of frames before the crossfade window (and
	// none of the fade-out window itself, since MUSIC is skipped) are
	// ever written; the bulk of the 5000 post-transition frames are
	// discarded under the now-confirmed Music mode.
	if len(out) >= 200 {
		t.Fatalf("expected most frames dropped after transition to Music, got %d", len(out))
	}
}

func TestDrainReportsUnresolvedTransition(t *testing.T) {
	s := New(SkipMusic, 2, 1, false)
	for i := 0; i < 10; i++ {
		s.Enqueue(Stereo{})
	}
	if err := s.HandleTransition(mode.Music, s.OutputIndex()); err != nil {
		t.Fatalf("HandleTransition: %v", err)
	}

	if _, err := s.Drain(); err != ErrNoConfirmed {
		t.Fatalf("Drain err = %v, want ErrNoConfirmed", err)
	}
}

func TestHandleTransitionUnderflowsWhenCrossfadeStartAlreadyReleased(t *testing.T) {
	s := New(SkipMusic, 50, 10, false)
	for i := 0; i < 200; i++ {
		s.Enqueue(Stereo{L: 1})
	}
	// Drain everything so the ring's tail has advanced well past 0.
	if _, err := s.Drain(); err != nil {
		t.Fatalf("Drain: %v", err)
	}

	if err := s.HandleTransition(mode.Music, 5); err != ErrBufferUnderflow {
		t.Fatalf("HandleTransition err = %v, want ErrBufferUnderflow", err)
	}
}

func TestOverwriteLevelWithinWindow(t *testing.T) {
	s := New(SkipMusic, 50, 10, false)
	for i := 0; i < int(s.crossfadeLen); i++ {
		s.Enqueue(Stereo{L: 0})
	}

	if err := s.OverwriteLevel(-30); err != nil {
		t.Fatalf("OverwriteLevel: %v", err)
	}
}

func TestOverwriteLevelOutOfWindow(t *testing.T) {
	s := New(SkipMusic, 50, 10, false)
	s.Enqueue(Stereo{})

	if err := s.OverwriteLevel(9999); err != ErrBufferUnderflow {
		t.Fatalf("OverwriteLevel err = %v, want ErrBufferUnderflow", err)
	}
}

// TestCrossfadeSavesAndConsumesBuffer drives a fade-out (into a
// skipped mode) immediately followed by a fade-in (back into a kept
// mode) and checks that the tail of the fade-out ramp is actually
// folded additively into the head of the fade-in ramp, per spec
// §4.4's fade_out/fade_in algorithm.
func TestCrossfadeSavesAndConsumesBuffer(t *testing.T) {
	s := New(SkipMusic, 5, 1, false) // crossfadeLen = 10

	for i := 0; i < 100; i++ {
		s.Enqueue(Stereo{L: 1000, R: 1000})
	}
	if err := s.HandleTransition(mode.Music, 50); err != nil {
		t.Fatalf("HandleTransition(Music): %v", err)
	}
	out := s.advanceTransition()
	if s.pending != nil {
		t.Fatalf("fade-out transition did not resolve")
	}
	if !s.crossfadeBufValid {
		t.Fatalf("expected crossfadeBuf to hold the faded tail after a fade-out")
	}
	_ = out // pre-window passthrough frames; not under test here

	for i := 0; i < 100; i++ {
		s.Enqueue(Stereo{L: 1000, R: 1000})
	}
	if err := s.HandleTransition(mode.Talk, s.OutputIndex()-50); err != nil {
		t.Fatalf("HandleTransition(Talk): %v", err)
	}
	faded := s.advanceTransition()
	if s.pending != nil {
		t.Fatalf("fade-in transition did not resolve")
	}
	if s.crossfadeBufValid {
		t.Fatalf("expected crossfadeBuf to be consumed after a fade-in")
	}

	// The first fade-in sample should reflect both the small ramp-up
	// weight (1/10 of 1000) and the additive carry from the saved
	// fade-out buffer, so it should not be zero.
	found := false
	for _, f := range faded {
		if f.L != 0 {
			found = true
			break
		}
	}
	if !found {
		t.Fatalf("expected at least one non-silent fade-in sample carrying the saved buffer")
	}
}

func TestKeepAliveSpliceProducesAttenuatedFadeAndSavesBuffer(t *testing.T) {
	s := New(SkipMusic, 10, 2, true) // crossfadeLen = 20
	s.current = mode.Music

	n := s.crossfadeLen
	total := 2*n + 10
	for i := int64(0); i < total; i++ {
		s.Enqueue(Stereo{L: 1000, R: 1000})
	}

	out := s.keepAliveSplice(total)
	if int64(len(out)) != n {
		t.Fatalf("keep-alive output length = %d, want %d", len(out), n)
	}
	for _, f := range out {
		if f.L == 0 || f.L == 1000 {
			t.Fatalf("expected an attenuated, faded sample, got %d", f.L)
		}
	}
	if !s.crossfadeBufValid {
		t.Fatalf("expected crossfadeBuf to be saved after a keep-alive splice")
	}
}

func TestMaybeBulkFlushTriggersKeepAliveWhenSkippingWithBacklog(t *testing.T) {
	s := New(SkipMusic, 5, 1, true) // crossfadeLen = 10, backlogCap = 300
	s.current = mode.Music

	n := s.crossfadeLen
	total := 31 * n
	for i := int64(0); i < total; i++ {
		s.Enqueue(Stereo{L: 1000, R: 1000})
	}
	s.AdvanceConfirmed(total - 1)

	out := s.maybeBulkFlush()

	found := false
	for _, f := range out {
		if f.L != 0 {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected at least one non-silent keep-alive frame in bulk-flush output while skipping")
	}
}

func TestMaybeBulkFlushReleasesConfirmedAudioWhenKept(t *testing.T) {
	s := New(SkipMusic, 5, 1, false) // backlogCap = 300
	// current stays mode.None, which SkipMusic always writes.

	total := int64(310)
	for i := int64(0); i < total; i++ {
		s.Enqueue(Stereo{L: 1234, R: 1234})
	}
	s.AdvanceConfirmed(total - 1)

	out := s.maybeBulkFlush()
	if len(out) == 0 {
		t.Fatalf("expected maybeBulkFlush to release confirmed backlog once the 60s threshold is crossed")
	}
	for _, f := range out {
		if f.L != 1234 {
			t.Fatalf("expected pass-through samples under a kept mode, got %d", f.L)
		}
	}
}

func TestMaybeBulkFlushDoesNothingBelowEitherThreshold(t *testing.T) {
	s := New(SkipMusic, 5, 1, false)
	for i := 0; i < 50; i++ {
		s.Enqueue(Stereo{L: 1})
	}
	s.AdvanceConfirmed(49)

	if out := s.maybeBulkFlush(); out != nil {
		t.Fatalf("expected no release below both the output cap and the backlog cap, got %d frames", len(out))
	}
}
