package text

import (
	"strings"
	"unicode"

	"github.com/emovoice/synthesis-service/internal/core"
)

// Segmenter splits normalized text into bounded-length segments at sentence
// boundaries, sub-splitting sentences that exceed the active backend's
// maximum input length.
//
// Every segment text is an exact slice of the normalized input, so joining
// the segment texts with single spaces (boundaries normalized back to
// spaces) reconstructs the normalized input verbatim.
type Segmenter struct {
	maxSegmentLength int
}

// NewSegmenter creates a segmenter with the given per-segment length cap.
func NewSegmenter(maxSegmentLength int) *Segmenter {
	return &Segmenter{maxSegmentLength: maxSegmentLength}
}

// Segment produces the finite ordered sequence of segments for one
// normalized input. Paragraph boundaries set ParagraphEnd on the segment
// preceding the break so assembly can insert a pause there.
func (s *Segmenter) Segment(normalized, style string) ([]core.Segment, error) {
	if strings.TrimSpace(normalized) == "" {
		return nil, core.ErrEmptyText
	}

	var segments []core.Segment

	offset := 0

	paragraphs := strings.Split(normalized, ParagraphBreak)
	for paragraphIndex, paragraph := range paragraphs {
		sentences := splitSentences(paragraph)

		for sentenceIndex, sentence := range sentences {
			lastInParagraph := sentenceIndex == len(sentences)-1
			hardBreak := lastInParagraph && paragraphIndex < len(paragraphs)-1

			for _, piece := range s.splitLong(paragraph, sentence) {
				segments = append(segments, core.Segment{
					Index:        len(segments),
					Text:         paragraph[piece.Start:piece.End],
					Start:        offset + piece.Start,
					End:          offset + piece.End,
					ParagraphEnd: false,
					Style:        style,
				})
			}

			if hardBreak && len(segments) > 0 {
				segments[len(segments)-1].ParagraphEnd = true
			}
		}

		offset += len(paragraph) + len(ParagraphBreak)
	}

	if len(segments) == 0 {
		return nil, core.ErrEmptyText
	}

	return segments, nil
}

// Reconstruct joins segment texts with the segmentation-inserted boundaries
// normalized back to single spaces.
func Reconstruct(segments []core.Segment) string {
	texts := make([]string, 0, len(segments))
	for _, segment := range segments {
		texts = append(texts, segment.Text)
	}

	return strings.Join(texts, " ")
}

// sentenceSpan is a byte range of one sentence within a paragraph.
type sentenceSpan struct {
	Start int
	End   int
}

func isSentenceEnd(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}

func isClosingQuote(r rune) bool {
	return r == '"' || r == '\''
}

// splitSentences finds sentence boundaries: terminal punctuation followed
// by whitespace or end of paragraph. Closing quotes stay attached to their
// sentence.
func splitSentences(paragraph string) []sentenceSpan {
	var spans []sentenceSpan

	start := 0
	runes := []rune(paragraph)
	byteIndex := 0

	for i, r := range runes {
		width := len(string(r))

		boundary := isSentenceEnd(r) &&
			(i == len(runes)-1 || unicode.IsSpace(runes[i+1]) || isClosingQuote(runes[i+1]))

		if boundary {
			end := byteIndex + width
			// Pull a trailing quote into the sentence.
			if i+1 < len(runes) && isClosingQuote(runes[i+1]) {
				end += len(string(runes[i+1]))
			}

			spans = appendSpan(spans, paragraph, start, end)
			start = end
		}

		byteIndex += width
	}

	return appendSpan(spans, paragraph, start, len(paragraph))
}

// appendSpan trims surrounding spaces off a candidate span and drops it
// when nothing remains.
func appendSpan(spans []sentenceSpan, paragraph string, start, end int) []sentenceSpan {
	for start < end && paragraph[start] == ' ' {
		start++
	}

	for end > start && paragraph[end-1] == ' ' {
		end--
	}

	if end > start {
		spans = append(spans, sentenceSpan{Start: start, End: end})
	}

	return spans
}

// splitLong sub-splits one sentence span into pieces no longer than the
// configured maximum, preferring comma boundaries, then word boundaries.
func (s *Segmenter) splitLong(paragraph string, span sentenceSpan) []sentenceSpan {
	if span.End-span.Start <= s.maxSegmentLength {
		return []sentenceSpan{span}
	}

	var pieces []sentenceSpan

	start := span.Start

	for span.End-start > s.maxSegmentLength {
		cut := s.findCut(paragraph, start, span.End)
		pieces = append(pieces, sentenceSpan{Start: start, End: cut})

		// Skip the single separator space, if present.
		start = cut
		if start < span.End && paragraph[start] == ' ' {
			start++
		}
	}

	if span.End > start {
		pieces = append(pieces, sentenceSpan{Start: start, End: span.End})
	}

	return pieces
}

// findCut locates the best split point within the length budget: after the
// last comma, else before the last space, else a hard cut at the budget.
func (s *Segmenter) findCut(paragraph string, start, end int) int {
	limit := start + s.maxSegmentLength
	if limit > end {
		limit = end
	}

	window := paragraph[start:limit]

	if comma := strings.LastIndex(window, ", "); comma > 0 {
		return start + comma + 1
	}

	if space := strings.LastIndex(window, " "); space > 0 {
		return start + space
	}

	return limit
}
