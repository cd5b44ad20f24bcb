// Package rlog is the run-time line logger for skipcast: verbose
// detection/transition tracing to stderr, plus the end-of-run summary
// and histogram reports (SPEC_FULL.md's supplemented run-summary and
// per-field-histogram features). Grounded on the inline
// `log := func(format string, args ...any) {...}` closure in
// _examples/linuxmatters-jivetalking/cmd/jivetalking/main.go, and on
// original_source/skipper.c's and tensor-gen.c's own fprintf(stderr,
// ...) reporting calls for the report content and layout.
package rlog

import (
	"fmt"
	"io"

	"github.com/caudio/skipcast/internal/classify"
	"github.com/caudio/skipcast/internal/descriptor"
	"github.com/caudio/skipcast/internal/mode"
)

// Logger writes verbose trace lines and always-on warning/summary
// output to a single stream (stderr in both binaries).
type Logger struct {
	w       io.Writer
	verbose bool
}

// New creates a Logger writing to w. Trace-level lines (Detected,
// CrossfadeTo, PendingCancelled, KeepAlive) are suppressed unless
// verbose is true; warnings and reports are always written.
func New(w io.Writer, verbose bool) *Logger {
	return &Logger{w: w, verbose: verbose}
}

func (l *Logger) trace(format string, args ...any) {
	if !l.verbose {
		return
	}
	fmt.Fprintf(l.w, format+"\n", args...)
}

// Warnf always writes a one-line warning, matching skipper.c's
// unconditional fprintf(stderr, "warning: ...") calls.
func (l *Logger) Warnf(format string, args ...any) {
	fmt.Fprintf(l.w, "warning: "+format+"\n", args...)
}

// Detected traces a confirmed mode transition at the given sample
// position and rate.
func (l *Logger) Detected(m mode.Mode, atSample int64, rate int) {
	l.trace("[%s] detected %s", timestamp(atSample, rate), m)
}

// CrossfadeTo traces the splicer beginning a crossfade toward m.
func (l *Logger) CrossfadeTo(m mode.Mode, atSample int64, rate int) {
	l.trace("[%s] crossfading to %s", timestamp(atSample, rate), m)
}

// PendingCancelled traces a building transition that was abandoned
// before it confirmed.
func (l *Logger) PendingCancelled(c *classify.Cancellation, atSample int64, rate int) {
	l.trace("[%s] cancelled pending %s (%d steps)", timestamp(atSample, rate), c.Canceling, c.Steps)
}

// KeepAlive traces a synthetic keep-alive frame inserted during a
// long skip span.
func (l *Logger) KeepAlive(atSample int64, rate int) {
	l.trace("[%s] keep-alive", timestamp(atSample, rate))
}

// Stats accumulates the counters printed in the end-of-run summary
// (SPEC_FULL.md's supplemented run-summary feature), grounded on the
// final report skipper.c prints before exit.
type Stats struct {
	TotalFrames     int64
	WrittenFrames   int64
	MusicFrames     int64
	TalkFrames      int64
	Transitions     int64
	Cancellations   int64
	KeepAliveFrames int64
}

// Summary prints the end-of-run report: total duration, how much was
// kept vs skipped, and transition/cancellation counts.
func (l *Logger) Summary(s Stats, rate int) {
	fmt.Fprintf(l.w, "\n-- run summary --\n")
	fmt.Fprintf(l.w, "total:       %s (%d frames)\n", timestamp(s.TotalFrames, rate), s.TotalFrames)
	fmt.Fprintf(l.w, "written:     %s (%s)\n", timestamp(s.WrittenFrames, rate), pctStr(s.WrittenFrames, s.TotalFrames))
	fmt.Fprintf(l.w, "music:       %s (%s)\n", timestamp(s.MusicFrames, rate), pctStr(s.MusicFrames, s.TotalFrames))
	fmt.Fprintf(l.w, "talk:        %s (%s)\n", timestamp(s.TalkFrames, rate), pctStr(s.TalkFrames, s.TotalFrames))
	fmt.Fprintf(l.w, "transitions: %d (%d cancelled)\n", s.Transitions, s.Cancellations)
	if s.KeepAliveFrames > 0 {
		fmt.Fprintf(l.w, "keep-alive:  %d frames\n", s.KeepAliveFrames)
	}
}

// Histogram prints one field's population report: the min/max/mean/
// median/mode summary, then a percentile band table, mirroring
// skipper.c's display_histogram/display_population pair.
func (l *Logger) Histogram(name string, hist []int, percents []float64) {
	summary, ok := descriptor.Summarize(hist)
	if !ok {
		fmt.Fprintf(l.w, "%s: no data\n", name)
		return
	}

	fmt.Fprintf(l.w, "%s: min=%d max=%d mean=%.2f median=%.2f mode=%.2f hits=%d\n",
		name, summary.Min, summary.Max, summary.Mean, summary.Median, summary.Mode, summary.Hits)

	for _, pop := range descriptor.Percentiles(hist, percents) {
		achieved := 0.0
		if pop.Total > 0 {
			achieved = float64(pop.Count) * 100.0 / float64(pop.Total)
		}
		fmt.Fprintf(l.w, "  %5.1f%% (target %5.1f%%): [%d, %d]\n", achieved, pop.Percent, pop.Low, pop.High)
	}
}

func timestamp(sample int64, rate int) string {
	if rate <= 0 {
		return "0:00"
	}
	total := sample / int64(rate)
	m := total / 60
	s := total % 60
	return fmt.Sprintf("%d:%02d", m, s)
}

func pctStr(n, total int64) string {
	if total == 0 {
		return "0.0%"
	}
	return fmt.Sprintf("%.1f%%", float64(n)*100.0/float64(total))
}
