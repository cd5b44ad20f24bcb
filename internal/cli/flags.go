package cli

import (
	"fmt"

	"github.com/caudio/skipcast/internal/pipeline"
	"github.com/caudio/skipcast/internal/splice"
)

// ErrConfig is the sentinel wrapped by every flag-validation error
// (spec §7's "configuration errors" kind).
var ErrConfig = fmt.Errorf("invalid configuration")

// SkipcastFlags is the kong-tagged flag struct for cmd/skipcast,
// realizing spec.md §6's CLI flag table literally. Grounded on the
// teacher's flag struct shape in
// _examples/linuxmatters-jivetalking/cmd/jivetalking/main.go.
type SkipcastFlags struct {
	Analysis    string  `short:"a" help:"Write descriptor stream to PATH." placeholder:"PATH"`
	Channels    int     `short:"c" default:"2" help:"Channel count override (1 or 2)."`
	TensorPath  string  `short:"d" help:"Use an external tensor file instead of the built-in all-zero tensor." placeholder:"PATH"`
	KeepAlive   bool    `short:"k" help:"Keep-alive crossfades during long skips."`
	LeftDebug   int     `short:"l" default:"0" help:"Left debug channel override (1=mono,2=filtered,3=level,4=tensor)."`
	RightDebug  int     `short:"r" default:"0" help:"Right debug channel override (1=mono,2=filtered,3=level,4=tensor)."`
	SkipMusic   *string `short:"m" help:"Skip MUSIC, optional signed threshold override." optional:"" placeholder:"±N"`
	SkipTalk    *string `short:"t" help:"Skip TALK, optional signed threshold override." optional:"" placeholder:"±N"`
	SkipAll     bool    `short:"n" help:"Skip everything (write nothing)."`
	PassAll     bool    `short:"p" help:"Pass everything through unchanged (default)."`
	Quiet       bool    `short:"q" help:"Suppress summary and histogram reports."`
	Rate        int     `short:"s" default:"44100" help:"Sample rate override."`
	Verbose     *int    `short:"v" help:"Verbose tracing to stderr; an optional number is accepted but no periodic progress is printed." optional:""`
	Version     bool    `help:"Print version and exit."`
}

// TensorgenFlags is the kong-tagged flag struct for cmd/tensorgen,
// realizing original_source/tensor-gen.c's -a/-d<n> flags and
// positional music/talk/out arguments.
type TensorgenFlags struct {
	Alternate bool   `short:"a" help:"Reserve every other labeled window for held-out verification."`
	Dims      int    `short:"d" default:"4" help:"Number of active tensor dimensions (1-4); trailing axes collapse to 1."`
	Verbose   bool   `short:"v" help:"Print per-build-stage reports to stderr."`
	Version   bool   `help:"Print version and exit."`

	Music string `arg:"" help:"Path to the MUSIC-labeled descriptor file."`
	Talk  string `arg:"" help:"Path to the TALK-labeled descriptor file."`
	Out   string `arg:"" optional:"" default:"out.tensor" help:"Path to write the built tensor file."`
}

// ResolveSkip derives the splice.SkipMode and threshold from the
// mutually exclusive -m/-t/-n/-p flags (spec §6). -n and -p map to
// SkipBoth and SkipNone, which skip/pass everything regardless of
// score; the threshold returned with them is 0.
func (f *SkipcastFlags) ResolveSkip() (splice.SkipMode, float64, error) {
	set := 0
	if f.SkipMusic != nil {
		set++
	}
	if f.SkipTalk != nil {
		set++
	}
	if f.SkipAll {
		set++
	}
	if f.PassAll {
		set++
	}
	if set > 1 {
		return 0, 0, fmt.Errorf("%w: -m, -t, -n, and -p are mutually exclusive", ErrConfig)
	}

	switch {
	case f.SkipMusic != nil:
		th, err := parseSignedThreshold(*f.SkipMusic, 0)
		return splice.SkipMusic, th, err
	case f.SkipTalk != nil:
		th, err := parseSignedThreshold(*f.SkipTalk, 0)
		return splice.SkipTalk, -th, err
	case f.SkipAll:
		return splice.SkipBoth, 0, nil
	default: // PassAll or nothing specified: spec's documented default
		return splice.SkipNone, 0, nil
	}
}

func parseSignedThreshold(s string, fallback float64) (float64, error) {
	if s == "" {
		return fallback, nil
	}
	var v float64
	if _, err := fmt.Sscanf(s, "%g", &v); err != nil {
		return 0, fmt.Errorf("%w: invalid threshold %q", ErrConfig, s)
	}
	if v < -99 || v > 99 {
		return 0, fmt.Errorf("%w: threshold %g out of range [-99,99]", ErrConfig, v)
	}
	return v, nil
}

// Validate checks the flag ranges spec.md §6/§7 specifies (channels
// 1-2, rate 11025-96000, debug selector 0-4).
func (f *SkipcastFlags) Validate() error {
	if f.Channels != 1 && f.Channels != 2 {
		return fmt.Errorf("%w: channels must be 1 or 2, got %d", ErrConfig, f.Channels)
	}
	if f.Rate < 11025 || f.Rate > 96000 {
		return fmt.Errorf("%w: rate must be in [11025,96000], got %d", ErrConfig, f.Rate)
	}
	if err := validateDebugChannel(f.LeftDebug); err != nil {
		return err
	}
	if err := validateDebugChannel(f.RightDebug); err != nil {
		return err
	}
	return nil
}

func validateDebugChannel(v int) error {
	if v < 0 || v > 4 {
		return fmt.Errorf("%w: debug channel selector must be 0-4, got %d", ErrConfig, v)
	}
	return nil
}

// DebugChannel converts a raw -l/-r integer flag value into a
// pipeline.DebugChannel.
func DebugChannel(v int) pipeline.DebugChannel {
	return pipeline.DebugChannel(v)
}

// Validate checks the trainer flag ranges.
func (f *TensorgenFlags) Validate() error {
	if f.Dims < 1 || f.Dims > 4 {
		return fmt.Errorf("%w: dims must be in [1,4], got %d", ErrConfig, f.Dims)
	}
	if f.Music == "" || f.Talk == "" {
		return fmt.Errorf("%w: both music and talk descriptor paths are required", ErrConfig)
	}
	return nil
}
