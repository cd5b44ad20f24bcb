package classify

import (
	"testing"

	"github.com/caudio/skipcast/internal/mode"
)

func fill(c *Classifier, score int8, n int) (detected mode.Mode) {
	for i := 0; i < n; i++ {
		detected, _, _ = c.Push(score, int64(i))
	}
	return
}

func TestSettledRequiresFullWindow(t *testing.T) {
	c := New(0)
	for i := 0; i < AverageCount-1; i++ {
		if c.Settled() {
			t.Fatalf("Settled() true before window filled (i=%d)", i)
		}
		c.Push(10, int64(i))
	}
	c.Push(10, int64(AverageCount))
	if !c.Settled() {
		t.Fatalf("Settled() false after window filled")
	}
}

func TestStartsInNoneUntilMusicDwellSatisfied(t *testing.T) {
	c := New(0)
	// Stop one push short of a full window: the push that fills it is
	// the first one compared against the threshold, so it is the first
	// dwell step and belongs to the loop below.
	fill(c, 50, AverageCount-1)

	if c.Current() != mode.None {
		t.Fatalf("current = %v before dwell minimum, want None", c.Current())
	}

	for i := 0; i < MinMusicSteps-1; i++ {
		if got, _, _ := c.Push(50, int64(i)); got != mode.None {
			t.Fatalf("transitioned early to %v at step %d", got, i)
		}
	}

	got, _, _ := c.Push(50, int64(MinMusicSteps))
	if got != mode.Music {
		t.Fatalf("current = %v after dwell minimum satisfied, want Music", got)
	}
}

func TestTalkDwellShorterThanMusic(t *testing.T) {
	c := New(1000) // high threshold so every push tends Talk
	fill(c, 0, AverageCount)

	for i := 0; i < MinTalkSteps-1; i++ {
		c.Push(0, int64(i))
	}
	got, _, _ := c.Push(0, int64(MinTalkSteps))
	if got != mode.Talk {
		t.Fatalf("current = %v after talk dwell minimum, want Talk", got)
	}
}

func TestOpposingTendencyDecaysByOneStepWithoutCancellation(t *testing.T) {
	c := New(0)
	fill(c, 50, AverageCount)
	fill(c, 50, MinMusicSteps)

	if c.Current() != mode.Music {
		t.Fatalf("setup failed to confirm Music: current = %v", c.Current())
	}

	// Simulate a partially-built opposing TALK tendency left over from
	// an earlier wobble, well short of confirming it.
	c.talkUp = 5
	c.pendUp = 5

	// A single agreeing (MUSIC-tending) push should decay talkUp by
	// exactly one step, not snap it to zero, and pendUp should keep
	// accumulating rather than reset, since the opposing build is
	// still alive.
	_, cancel, _ := c.Push(50, 100)
	if cancel != nil {
		t.Fatalf("unexpected cancellation from a single agreeing push: %+v", cancel)
	}
	if c.talkUp != 4 {
		t.Fatalf("talkUp = %d after one agreeing push, want 4 (decay by one step)", c.talkUp)
	}
	if c.pendUp != 6 {
		t.Fatalf("pendUp = %d after one agreeing push, want 6 (still accumulating)", c.pendUp)
	}
}

// TestOpposingCounterDecayToZeroSkipsPendIncrement isolates the step
// where the opposing counter's decrement lands on exactly zero.
// skipper.c's `talk_up_counter && --talk_up_counter` short-circuits
// on that step — the decremented (now zero, falsy) value never
// reaches the pend-increment — so pendUp must be left unchanged, not
// incremented, when this happens.
func TestOpposingCounterDecayToZeroSkipsPendIncrement(t *testing.T) {
	c := New(0)
	fill(c, 50, AverageCount)
	fill(c, 50, MinMusicSteps)

	if c.Current() != mode.Music {
		t.Fatalf("setup failed to confirm Music: current = %v", c.Current())
	}

	c.talkUp = 1
	c.pendUp = 7

	_, cancel, _ := c.Push(50, 100)
	if cancel != nil {
		t.Fatalf("unexpected cancellation: %+v", cancel)
	}
	if c.talkUp != 0 {
		t.Fatalf("talkUp = %d after decaying from 1, want 0", c.talkUp)
	}
	if c.pendUp != 7 {
		t.Fatalf("pendUp = %d after talkUp decayed to zero, want unchanged 7 (skipper.c's && short-circuits the pend increment on this step)", c.pendUp)
	}
}

func TestSustainedAgreementCancelsDecayingOpposition(t *testing.T) {
	c := New(0)
	fill(c, 50, AverageCount)
	fill(c, 50, MinMusicSteps)

	c.talkUp = MaxPendSteps
	c.pendUp = MaxPendSteps - 1

	_, cancel, _ := c.Push(50, 100)
	if cancel == nil {
		t.Fatalf("expected a cancellation once pendUp reaches MaxPendSteps")
	}
	if cancel.Canceling != mode.Talk {
		t.Fatalf("cancelled mode = %v, want Talk", cancel.Canceling)
	}
	if c.talkUp != 0 || c.pendUp != 0 {
		t.Fatalf("counters not reset after cancellation: talkUp=%d pendUp=%d", c.talkUp, c.pendUp)
	}
}

// TestPendingTransitionCancelsAfterMaxPendSteps confirms TALK, then
// holds the rolling sum on the threshold so the tendency flips every
// push: each MUSIC-tending push restarts a one-step MUSIC build and
// bumps the shared pend counter, and each TALK-tending push decays that
// build back to zero without resetting the pend counter. The build never
// reaches MinMusicSteps, so the pend counter runs out and cancels it.
func TestPendingTransitionCancelsAfterMaxPendSteps(t *testing.T) {
	c := New(0)
	fill(c, -50, AverageCount+MinTalkSteps)
	if c.Current() != mode.Talk {
		t.Fatalf("setup failed to confirm Talk: current = %v", c.Current())
	}
	fill(c, 0, AverageCount)

	var lastCancel *Cancellation
	for i := 0; i < 2*MaxPendSteps; i++ {
		score := int8(-1)
		if i%2 == 1 {
			score = 1
		}
		_, cancel, _ := c.Push(score, int64(i))
		if cancel != nil {
			lastCancel = cancel
		}
	}

	if lastCancel == nil {
		t.Fatalf("expected a cancellation within MaxPendSteps steps")
	}
	if lastCancel.Canceling != mode.Music {
		t.Fatalf("cancelled mode = %v, want Music", lastCancel.Canceling)
	}
}

func TestConfirmedTransitionResetsCounters(t *testing.T) {
	c := New(0)
	fill(c, 50, AverageCount)
	fill(c, 50, MinMusicSteps)

	if c.Current() != mode.Music {
		t.Fatalf("setup failed: current = %v", c.Current())
	}
	if c.musicUp != 0 || c.talkUp != 0 || c.pendUp != 0 {
		t.Fatalf("counters not reset after confirmation: musicUp=%d talkUp=%d pendUp=%d",
			c.musicUp, c.talkUp, c.pendUp)
	}
}
