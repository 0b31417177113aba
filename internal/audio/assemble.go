package audio

import (
	"errors"
	"fmt"
	"math"

	"github.com/book-expert/logger"

	"github.com/emovoice/synthesis-service/internal/core"
)

const (
	millisecondsPerSecond = 1000

	// deEssThreshold is the high-band amplitude above which sibilant
	// energy gets attenuated.
	deEssThreshold = 0.25
	deEssReduction = 0.5

	// lowpassCoefficient sets the one-pole filter split between the
	// voiced band and the sibilant band.
	lowpassCoefficient = 0.35
)

// ErrNoSegments indicates assembly was invoked with nothing to join.
var ErrNoSegments = errors.New("no segments to assemble")

// ErrSegmentMismatch indicates the render, segment, and target slices
// disagree in length.
var ErrSegmentMismatch = errors.New("segment count mismatch")

// Assembler joins per-segment renders into one continuous waveform with
// pauses, crossfades, loudness normalization, and optional de-essing.
type Assembler struct {
	crossfadeMs int
	targetRMS   float64
	deEss       bool
	log         *logger.Logger
}

// NewAssembler creates an assembler with the given join and loudness
// settings.
func NewAssembler(crossfadeMs int, targetRMS float64, deEss bool, log *logger.Logger) *Assembler {
	return &Assembler{
		crossfadeMs: crossfadeMs,
		targetRMS:   targetRMS,
		deEss:       deEss,
		log:         log,
	}
}

// Assemble concatenates the rendered segments in order. Every render must
// be present and share one sample rate; assembly is all-or-nothing.
func (a *Assembler) Assemble(
	segments []core.Segment,
	targets []core.ProsodyTarget,
	results []*core.SynthesisResult,
) (*core.AssembledAudio, error) {
	if len(segments) == 0 {
		return nil, ErrNoSegments
	}

	if len(segments) != len(results) || len(segments) != len(targets) {
		return nil, fmt.Errorf("%w: %d segments, %d targets, %d results",
			ErrSegmentMismatch, len(segments), len(targets), len(results))
	}

	sampleRate := results[0].SampleRate
	for i, result := range results {
		if result == nil || len(result.Samples) == 0 {
			return nil, fmt.Errorf("%w: segment %d has no audio", ErrSegmentMismatch, i)
		}

		if result.SampleRate != sampleRate {
			return nil, fmt.Errorf("%w: segment %d rate %d differs from %d",
				ErrSegmentMismatch, i, result.SampleRate, sampleRate)
		}
	}

	crossfade := a.crossfadeMs * sampleRate / millisecondsPerSecond

	var out []float32

	timings := make([]core.SegmentTiming, 0, len(segments))

	for i, result := range results {
		rendered := rampEdges(result.Samples, crossfade)

		start := len(out)
		if i > 0 && targets[i-1].PauseAfterMs == 0 && start >= crossfade {
			// No pause between sub-sentence pieces: overlap-add.
			start -= crossfade
			out = overlapAdd(out, rendered, start)
		} else {
			out = append(out, rendered...)
		}

		end := start + len(rendered)

		timings = append(timings, core.SegmentTiming{
			SegmentIndex: segments[i].Index,
			StartMs:      start * millisecondsPerSecond / sampleRate,
			EndMs:        end * millisecondsPerSecond / sampleRate,
			Style:        segments[i].Style,
		})

		if i < len(results)-1 && targets[i].PauseAfterMs > 0 {
			pause := targets[i].PauseAfterMs * sampleRate / millisecondsPerSecond
			out = append(out, make([]float32, pause)...)
		}
	}

	if a.deEss {
		out = attenuateSibilants(out)
	}

	normalizeRMS(out, a.targetRMS)

	return &core.AssembledAudio{
		Samples:    out,
		SampleRate: sampleRate,
		Timings:    timings,
	}, nil
}

// rampEdges applies linear fade-in and fade-out over the crossfade window
// to remove clicks at segment joins.
func rampEdges(samples []float32, window int) []float32 {
	out := make([]float32, len(samples))
	copy(out, samples)

	if window <= 0 || len(out) < 2*window {
		return out
	}

	for i := 0; i < window; i++ {
		gain := float32(i) / float32(window)
		out[i] *= gain
		out[len(out)-1-i] *= gain
	}

	return out
}

// overlapAdd mixes rendered into out starting at start, extending out as
// needed.
func overlapAdd(out, rendered []float32, start int) []float32 {
	needed := start + len(rendered)
	for len(out) < needed {
		out = append(out, 0)
	}

	for i, sample := range rendered {
		out[start+i] += sample
	}

	return out
}

// normalizeRMS scales the buffer in place to the target loudness and clips
// the result to [-1, 1]. Silent buffers are left untouched.
func normalizeRMS(samples []float32, targetRMS float64) {
	if len(samples) == 0 || targetRMS <= 0 {
		return
	}

	var sum float64
	for _, sample := range samples {
		sum += float64(sample) * float64(sample)
	}

	rms := math.Sqrt(sum / float64(len(samples)))
	if rms == 0 {
		return
	}

	gain := targetRMS / rms

	for i, sample := range samples {
		scaled := float64(sample) * gain
		if scaled > 1 {
			scaled = 1
		}

		if scaled < -1 {
			scaled = -1
		}

		samples[i] = float32(scaled)
	}
}

// attenuateSibilants runs a one-pole lowpass to split the signal and
// reduces the high band where it spikes.
func attenuateSibilants(samples []float32) []float32 {
	out := make([]float32, len(samples))

	var lowpass float64

	for i, sample := range samples {
		lowpass += lowpassCoefficient * (float64(sample) - lowpass)

		high := float64(sample) - lowpass
		if math.Abs(high) > deEssThreshold {
			high *= deEssReduction
		}

		out[i] = float32(lowpass + high)
	}

	return out
}
