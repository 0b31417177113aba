package text_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/emovoice/synthesis-service/internal/core"
	"github.com/emovoice/synthesis-service/internal/text"
)

const testMaxSegmentLength = 400

func TestSegmenter_Segment_SingleSentence(t *testing.T) {
	t.Parallel()

	segmenter := text.NewSegmenter(testMaxSegmentLength)

	segments, err := segmenter.Segment("We did it!", core.StyleEnthusiastic)
	if err != nil {
		t.Fatalf("Segment returned error: %v", err)
	}

	if len(segments) != 1 {
		t.Fatalf("Expected 1 segment, got %d", len(segments))
	}

	if segments[0].Text != "We did it!" {
		t.Errorf("Expected verbatim text, got %q", segments[0].Text)
	}

	if segments[0].Style != core.StyleEnthusiastic {
		t.Errorf("Expected style to be carried, got %q", segments[0].Style)
	}
}

func TestSegmenter_Segment_MultipleSentences(t *testing.T) {
	t.Parallel()

	segmenter := text.NewSegmenter(testMaxSegmentLength)
	input := "First sentence. Second one? Third one!"

	segments, err := segmenter.Segment(input, core.StyleNeutral)
	if err != nil {
		t.Fatalf("Segment returned error: %v", err)
	}

	expected := []string{"First sentence.", "Second one?", "Third one!"}
	if len(segments) != len(expected) {
		t.Fatalf("Expected %d segments, got %d", len(expected), len(segments))
	}

	for i, segment := range segments {
		if segment.Text != expected[i] {
			t.Errorf("Segment %d: expected %q, got %q", i, expected[i], segment.Text)
		}

		if segment.Index != i {
			t.Errorf("Segment %d: expected index %d, got %d", i, i, segment.Index)
		}
	}
}

func TestSegmenter_Segment_OffsetsMatchInput(t *testing.T) {
	t.Parallel()

	segmenter := text.NewSegmenter(testMaxSegmentLength)
	input := "Alpha bravo. Charlie delta!" + text.ParagraphBreak + "Echo foxtrot?"

	segments, err := segmenter.Segment(input, core.StyleNeutral)
	if err != nil {
		t.Fatalf("Segment returned error: %v", err)
	}

	for _, segment := range segments {
		slice := input[segment.Start:segment.End]
		if slice != segment.Text {
			t.Errorf("Segment %d: offsets [%d,%d) give %q, want %q",
				segment.Index, segment.Start, segment.End, slice, segment.Text)
		}
	}
}

func TestSegmenter_Segment_ParagraphEndMarkers(t *testing.T) {
	t.Parallel()

	segmenter := text.NewSegmenter(testMaxSegmentLength)
	input := "One. Two." + text.ParagraphBreak + "Three."

	segments, err := segmenter.Segment(input, core.StyleNeutral)
	if err != nil {
		t.Fatalf("Segment returned error: %v", err)
	}

	if len(segments) != 3 {
		t.Fatalf("Expected 3 segments, got %d", len(segments))
	}

	wantMarkers := []bool{false, true, false}
	for i, segment := range segments {
		if segment.ParagraphEnd != wantMarkers[i] {
			t.Errorf("Segment %d: expected ParagraphEnd=%v, got %v",
				i, wantMarkers[i], segment.ParagraphEnd)
		}
	}
}

func TestSegmenter_Segment_RoundTrip(t *testing.T) {
	t.Parallel()

	inputs := []string{
		"We did it!",
		"First sentence. Second one? Third one!",
		"One. Two." + text.ParagraphBreak + "Three. Four.",
		`He said "stop." Then he left.`,
		"Short one. " + strings.Repeat("word ", 50) + "tail.",
	}

	segmenter := text.NewSegmenter(80)

	for _, input := range inputs {
		segments, err := segmenter.Segment(input, core.StyleNeutral)
		if err != nil {
			t.Fatalf("Segment(%q) returned error: %v", input, err)
		}

		want := strings.ReplaceAll(input, text.ParagraphBreak, " ")

		got := text.Reconstruct(segments)
		if got != want {
			t.Errorf("Round trip failed.\nInput: %q\nGot:   %q\nWant:  %q", input, got, want)
		}
	}
}

func TestSegmenter_Segment_LongSentenceSubSplit(t *testing.T) {
	t.Parallel()

	const limit = 40

	segmenter := text.NewSegmenter(limit)
	input := "Alpha bravo charlie, delta echo foxtrot golf, hotel india juliet kilo lima mike november oscar."

	segments, err := segmenter.Segment(input, core.StyleNeutral)
	if err != nil {
		t.Fatalf("Segment returned error: %v", err)
	}

	if len(segments) < 2 {
		t.Fatalf("Expected the long sentence to be split, got %d segment(s)", len(segments))
	}

	for _, segment := range segments {
		if len(segment.Text) > limit {
			t.Errorf("Segment %d exceeds limit: %d bytes: %q",
				segment.Index, len(segment.Text), segment.Text)
		}
	}

	if got := text.Reconstruct(segments); got != input {
		t.Errorf("Round trip failed after sub-split.\nGot:  %q\nWant: %q", got, input)
	}
}

func TestSegmenter_Segment_QuotedSentence(t *testing.T) {
	t.Parallel()

	segmenter := text.NewSegmenter(testMaxSegmentLength)

	segments, err := segmenter.Segment(`He said "stop." Then he left.`, core.StyleNeutral)
	if err != nil {
		t.Fatalf("Segment returned error: %v", err)
	}

	if len(segments) != 2 {
		t.Fatalf("Expected 2 segments, got %d", len(segments))
	}

	if segments[0].Text != `He said "stop."` {
		t.Errorf("Expected closing quote kept with sentence, got %q", segments[0].Text)
	}
}

func TestSegmenter_Segment_EmptyInput(t *testing.T) {
	t.Parallel()

	segmenter := text.NewSegmenter(testMaxSegmentLength)

	_, err := segmenter.Segment("   ", core.StyleNeutral)
	if !errors.Is(err, core.ErrEmptyText) {
		t.Errorf("Expected ErrEmptyText, got %v", err)
	}
}
