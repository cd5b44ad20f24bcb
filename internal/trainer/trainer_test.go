package trainer

import (
	"bytes"
	"testing"

	"github.com/caudio/skipcast/internal/descriptor"
	"github.com/caudio/skipcast/internal/mode"
	"github.com/caudio/skipcast/internal/tensor"
)

func TestReadDescriptorsRoundTrip(t *testing.T) {
	records := []descriptor.Record{
		{RangeDB: 1, Cycles: 2, LowThird: 3},
		{RangeDB: 4, Cycles: 5, LowThird: 6},
	}

	var buf bytes.Buffer
	for _, r := range records {
		b := r.Bytes()
		buf.Write(b[:])
	}

	got, err := ReadDescriptors(&buf)
	if err != nil {
		t.Fatalf("ReadDescriptors: %v", err)
	}
	if len(got) != len(records) {
		t.Fatalf("got %d records, want %d", len(got), len(records))
	}
	for i := range records {
		if got[i] != records[i] {
			t.Fatalf("record %d = %+v, want %+v", i, got[i], records[i])
		}
	}
}

func TestReadDescriptorsRejectsTruncated(t *testing.T) {
	buf := bytes.NewReader([]byte{1, 2, 3})
	if _, err := ReadDescriptors(buf); err == nil {
		t.Fatalf("expected error for truncated record")
	}
}

func musicLike(n int) descriptor.Record {
	return descriptor.Record{RangeDB: byte(n % 96), Cycles: 40, LowThird: 8}
}

func talkLike(n int) descriptor.Record {
	return descriptor.Record{RangeDB: byte(n % 96), Cycles: 6, LowThird: 200}
}

func TestBuildProducesDiscriminatingScores(t *testing.T) {
	var music, talk []descriptor.Record
	for i := 0; i < 40; i++ {
		music = append(music, musicLike(i))
		talk = append(talk, talkLike(i))
	}

	result := Build(music, talk, tensor.Dims, 10, true)

	musicScore := result.Tensor.Score(musicLike(0))
	talkScore := result.Tensor.Score(talkLike(0))

	if musicScore <= 0 {
		t.Fatalf("music-like descriptor scored %d, want > 0", musicScore)
	}
	if talkScore >= 0 {
		t.Fatalf("talk-like descriptor scored %d, want < 0", talkScore)
	}
}

func TestVerifyHoldoutTalliesHitsAndMisses(t *testing.T) {
	var music, talk []descriptor.Record
	for i := 0; i < 40; i++ {
		music = append(music, musicLike(i))
		talk = append(talk, talkLike(i))
	}

	result := Build(music, talk, tensor.Dims, 10, true)
	if result.Verify.Hits == 0 {
		t.Fatalf("expected at least one verification hit, got %+v", result.Verify)
	}
}

func TestSummarizeCountsCellCategories(t *testing.T) {
	d := NewDistribution(tensor.Dims)
	d.Add(musicLike(0), mode.Music)
	d.Add(talkLike(0), mode.Talk)

	report := d.Summarize()
	if report.TotalCells != tensor.Size {
		t.Fatalf("TotalCells = %d, want %d", report.TotalCells, tensor.Size)
	}
	if report.Contested == 0 && report.MusicOnly == 0 && report.TalkOnly == 0 {
		t.Fatalf("expected at least one non-empty cell, got %+v", report)
	}
}

func TestRenderSliceProducesGrid(t *testing.T) {
	tn := tensor.New(tensor.Dims)
	tn.Set(0, 0, 0, 0, 42)

	out := RenderSlice(tn, 0, 0)
	if len(out) == 0 {
		t.Fatalf("RenderSlice returned empty output")
	}
}
