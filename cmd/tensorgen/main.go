// Command tensorgen is the offline tensor builder: it reads two
// labeled descriptor files and writes a trained discrimination
// tensor (spec.md §4.5). Grounded on
// original_source/tensor-gen.c's main: parse args, read both
// descriptor files, build+score+dilate+replicate, verify, write.
package main

import (
	"fmt"
	"os"

	"github.com/alecthomas/kong"

	"github.com/caudio/skipcast/internal/cli"
	"github.com/caudio/skipcast/internal/descriptor"
	"github.com/caudio/skipcast/internal/tensor"
	"github.com/caudio/skipcast/internal/trainer"
)

var version = "0.1.0"

func main() {
	flags := &cli.TensorgenFlags{}
	kong.Parse(flags,
		kong.Name("tensorgen"),
		kong.Description("Offline MUSIC/TALK discrimination tensor builder"),
		kong.UsageOnError(),
	)

	if flags.Version {
		cli.PrintVersion("tensorgen", version)
		os.Exit(0)
	}

	if err := flags.Validate(); err != nil {
		cli.PrintError(err.Error())
		os.Exit(1)
	}

	music, err := readDescriptorFile(flags.Music)
	if err != nil {
		cli.PrintError(err.Error())
		os.Exit(1)
	}
	talk, err := readDescriptorFile(flags.Talk)
	if err != nil {
		cli.PrintError(err.Error())
		os.Exit(1)
	}

	dims := activeDims(flags.Dims)
	result := trainer.Build(music, talk, dims, 64, flags.Alternate)

	if flags.Verbose {
		fmt.Fprintf(os.Stderr, "-- cell scoring --\n")
		fmt.Fprintf(os.Stderr, "total cells: %d  empty: %d  music-only: %d  talk-only: %d  contested: %d\n",
			result.ScoreReport.TotalCells, result.ScoreReport.EmptyCells,
			result.ScoreReport.MusicOnly, result.ScoreReport.TalkOnly, result.ScoreReport.Contested)
		fmt.Fprintf(os.Stderr, "dilation passes: %d\n", result.DilatePasses)
		fmt.Fprintf(os.Stderr, "-- tensor slice (h=0, i=0) --\n%s", trainer.RenderSlice(result.Tensor, 0, 0))
		fmt.Fprintf(os.Stderr, "-- verification --\nhits: %d  misses: %d  guesses: %d\n",
			result.Verify.Hits, result.Verify.Misses, result.Verify.Guesses)
	}

	encoded := tensor.Encode(result.Tensor)
	if err := os.WriteFile(flags.Out, encoded, 0o644); err != nil {
		cli.PrintError(fmt.Sprintf("failed to write tensor file: %v", err))
		os.Exit(1)
	}
}

func readDescriptorFile(path string) ([]descriptor.Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	records, err := trainer.ReadDescriptors(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return records, nil
}

// activeDims expands a requested dimension count into the full 4-D
// extent vector: trailing axes beyond n collapse to a single bucket
// (spec §4.5's dimension-reduction feature).
func activeDims(n int) [4]int {
	dims := tensor.Dims
	for axis := n; axis < 4; axis++ {
		dims[axis] = 1
	}
	return dims
}
