package verify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/book-expert/logger"

	"github.com/emovoice/synthesis-service/internal/audio"
	"github.com/emovoice/synthesis-service/internal/core"
)

// Verifier runs the advisory intelligibility check. It owns its timeout so
// a slow transcription backend cannot stall audio delivery.
type Verifier struct {
	transcriber   core.Transcriber
	flagThreshold float64
	timeout       time.Duration
	log           *logger.Logger
}

// NewVerifier creates a verifier that flags segments whose words go
// missing from the transcript when the overall error rate passes the
// threshold.
func NewVerifier(
	transcriber core.Transcriber,
	flagThreshold float64,
	timeout time.Duration,
	log *logger.Logger,
) *Verifier {
	return &Verifier{
		transcriber:   transcriber,
		flagThreshold: flagThreshold,
		timeout:       timeout,
		log:           log,
	}
}

// Verify transcribes the assembled audio and scores it against the
// normalized input text. The error return covers transport failures only;
// a poor score is reported, not failed.
func (v *Verifier) Verify(
	ctx context.Context,
	normalizedText string,
	segments []core.Segment,
	assembled *core.AssembledAudio,
	language string,
) (*core.QualityReport, error) {
	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	wavData := audio.EncodeWAV(assembled.Samples, assembled.SampleRate)

	transcript, err := v.transcriber.Transcribe(ctx, wavData, language)
	if err != nil {
		return nil, fmt.Errorf("transcription failed: %w", err)
	}

	rate := WordErrorRate(normalizedText, transcript)

	report := &core.QualityReport{
		WordErrorRate: rate,
		Transcript:    transcript,
	}

	if rate > v.flagThreshold {
		report.FlaggedSegments = flagSegments(segments, transcript)
		v.log.Warn("Quality check flagged %d of %d segments (WER %.2f)",
			len(report.FlaggedSegments), len(segments), rate)
	}

	return report, nil
}

// WordErrorRate computes the Levenshtein distance between the reference
// and hypothesis word sequences, normalized by the reference length. Case
// and punctuation are ignored.
func WordErrorRate(reference, hypothesis string) float64 {
	ref := normalizeWords(reference)
	hyp := normalizeWords(hypothesis)

	if len(ref) == 0 {
		if len(hyp) == 0 {
			return 0
		}

		return 1
	}

	distance := levenshtein(ref, hyp)

	rate := float64(distance) / float64(len(ref))
	if rate > 1 {
		rate = 1
	}

	return rate
}

// normalizeWords lowercases, strips punctuation, and splits into words so
// the comparison measures content rather than formatting.
func normalizeWords(s string) []string {
	var builder strings.Builder

	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '\'':
			builder.WriteRune(r)
		default:
			builder.WriteByte(' ')
		}
	}

	return strings.Fields(builder.String())
}

// levenshtein computes the edit distance between two word sequences using
// a two-row dynamic program.
func levenshtein(ref, hyp []string) int {
	previous := make([]int, len(hyp)+1)
	current := make([]int, len(hyp)+1)

	for j := range previous {
		previous[j] = j
	}

	for i := 1; i <= len(ref); i++ {
		current[0] = i

		for j := 1; j <= len(hyp); j++ {
			substitution := previous[j-1]
			if ref[i-1] != hyp[j-1] {
				substitution++
			}

			current[j] = minOf(
				previous[j]+1,   // deletion
				current[j-1]+1,  // insertion
				substitution,
			)
		}

		previous, current = current, previous
	}

	return previous[len(hyp)]
}

func minOf(a, b, c int) int {
	if b < a {
		a = b
	}

	if c < a {
		a = c
	}

	return a
}

// flagSegments marks segments more than half of whose words are absent
// from the transcript.
func flagSegments(segments []core.Segment, transcript string) []int {
	present := make(map[string]struct{})
	for _, word := range normalizeWords(transcript) {
		present[word] = struct{}{}
	}

	var flagged []int

	for _, segment := range segments {
		words := normalizeWords(segment.Text)
		if len(words) == 0 {
			continue
		}

		missing := 0

		for _, word := range words {
			if _, found := present[word]; !found {
				missing++
			}
		}

		if float64(missing)/float64(len(words)) > 0.5 {
			flagged = append(flagged, segment.Index)
		}
	}

	return flagged
}
