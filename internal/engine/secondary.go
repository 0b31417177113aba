package engine

import (
	"context"
	"math"
	"unicode"

	"github.com/book-expert/logger"

	"github.com/emovoice/synthesis-service/internal/core"
)

// Formant synthesis tuning.
const (
	baseCharDurationMs = 60
	silenceDurationMs  = 40
	baseFrequencyLow   = 110.0
	baseFrequencyHigh  = 210.0
	baseAmplitude      = 0.22
	emphasisBoost      = 1.3
	semitonesPerOctave = 12.0
)

// vowelFormants maps vowels to a characteristic formant frequency pair.
var vowelFormants = map[rune][2]float64{
	'a': {730, 1090},
	'e': {530, 1840},
	'i': {270, 2290},
	'o': {570, 840},
	'u': {300, 870},
}

// FormantEngine is the secondary backend: a deterministic rule-based
// synthesizer with no external dependencies. It always succeeds, trading
// voice quality for availability, and exists so the pipeline can degrade
// instead of failing when the neural service is down.
type FormantEngine struct {
	sampleRate int
	voices     []core.Voice
	log        *logger.Logger
}

// NewFormantEngine creates the fallback engine rendering at the given
// sample rate.
func NewFormantEngine(sampleRate int, log *logger.Logger) *FormantEngine {
	return &FormantEngine{
		sampleRate: sampleRate,
		voices:     formantVoices(),
		log:        log,
	}
}

// Name identifies this engine in dispatch decisions and output metadata.
func (e *FormantEngine) Name() string {
	return core.EngineSecondary
}

// Voices lists the formant voice catalog.
func (e *FormantEngine) Voices() []core.Voice {
	return e.voices
}

// Available always succeeds; the formant engine has no external state.
func (e *FormantEngine) Available(_ context.Context) error {
	return nil
}

// Synthesize renders the segment rune by rune. The output is a fully
// deterministic function of the request.
func (e *FormantEngine) Synthesize(
	ctx context.Context,
	req core.SynthesisRequest,
) (*core.SynthesisResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	pitchRatio := math.Pow(2, req.Target.PitchShiftSemitones/semitonesPerOctave)

	fundamental := baseFrequencyHigh
	if InferGender(req.VoiceID) == genderMale {
		fundamental = baseFrequencyLow
	}

	fundamental *= pitchRatio

	amplitude := baseAmplitude * req.Target.EnergyGain

	rateMultiplier := req.Target.RateMultiplier
	if rateMultiplier <= 0 {
		rateMultiplier = 1.0
	}

	voicedLen := e.samplesFor(baseCharDurationMs, rateMultiplier)
	silentLen := e.samplesFor(silenceDurationMs, rateMultiplier)

	samples := make([]float32, 0, len(req.Segment.Text)*voicedLen)

	for position, char := range req.Segment.Text {
		gain := amplitude
		if insideSpan(req.Target.EmphasisSpans, position) {
			gain *= emphasisBoost
		}

		switch {
		case unicode.IsSpace(char) || unicode.IsPunct(char):
			samples = append(samples, make([]float32, silentLen)...)
		case isVowel(char):
			samples = append(samples, e.voicedTone(char, fundamental, gain, voicedLen)...)
		default:
			samples = append(samples, e.consonantBurst(char, position, gain, voicedLen)...)
		}
	}

	if len(samples) == 0 {
		samples = make([]float32, silentLen)
	}

	return &core.SynthesisResult{
		Samples:    samples,
		SampleRate: e.sampleRate,
		EngineUsed: e.Name(),
		Duration:   float64(len(samples)) / float64(e.sampleRate),
	}, nil
}

func (e *FormantEngine) samplesFor(durationMs int, rateMultiplier float64) int {
	scaled := float64(durationMs) / rateMultiplier

	return int(scaled * float64(e.sampleRate) / 1000.0)
}

// voicedTone mixes the fundamental with the vowel's formant pair under a
// linear attack and release envelope.
func (e *FormantEngine) voicedTone(vowel rune, fundamental, gain float64, length int) []float32 {
	formants := vowelFormants[unicode.ToLower(vowel)]
	out := make([]float32, length)

	for i := range out {
		t := float64(i) / float64(e.sampleRate)
		value := 0.6*math.Sin(2*math.Pi*fundamental*t) +
			0.3*math.Sin(2*math.Pi*formants[0]*t) +
			0.1*math.Sin(2*math.Pi*formants[1]*t)

		out[i] = float32(gain * envelope(i, length) * value)
	}

	return out
}

// consonantBurst renders an unvoiced rune as shaped pseudo-noise seeded by
// the rune and its position, keeping output deterministic.
func (e *FormantEngine) consonantBurst(char rune, position int, gain float64, length int) []float32 {
	out := make([]float32, length/2)
	state := uint64(char)*2654435761 + uint64(position)*40503 + 1

	for i := range out {
		// xorshift64
		state ^= state << 13
		state ^= state >> 7
		state ^= state << 17

		noise := float64(int64(state)) / float64(math.MaxInt64)

		out[i] = float32(gain * 0.5 * envelope(i, len(out)) * noise)
	}

	return out
}

// envelope is a linear attack/release window over one unit of sound.
func envelope(index, length int) float64 {
	attack := length / 8
	if attack == 0 {
		return 1
	}

	if index < attack {
		return float64(index) / float64(attack)
	}

	if index > length-attack {
		return float64(length-index) / float64(attack)
	}

	return 1
}

func isVowel(char rune) bool {
	_, found := vowelFormants[unicode.ToLower(char)]

	return found
}

func insideSpan(spans []core.Span, position int) bool {
	for _, span := range spans {
		if position >= span.Start && position < span.End {
			return true
		}
	}

	return false
}
