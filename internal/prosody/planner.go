// Package prosody derives per-segment delivery targets from a named style
// and an intensity value.
//
// Planning is pure: the same (style, intensity, segment index, seed) always
// yields the same target. Naturalness jitter is folded into the seed so
// repeated requests render identical audio.
package prosody

import (
	"hash/fnv"
	"math/rand"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/emovoice/synthesis-service/internal/core"
)

// Pause lengths in milliseconds before style scaling.
const (
	sentencePauseMs  = 200
	paragraphPauseMs = 600
)

// jitterSpread is the maximum relative deviation applied to rate and
// energy for naturalness.
const jitterSpread = 0.05

const intensityScale = 100.0

// Planner maps styles to prosody targets. It is safe for concurrent use
// once constructed; presets are read-only.
type Planner struct {
	presets map[string]core.StylePreset
	seed    int64
}

// NewPlanner creates a planner with the built-in style presets and a seed
// for deterministic jitter.
func NewPlanner(seed int64) *Planner {
	return &Planner{
		presets: defaultPresets(),
		seed:    seed,
	}
}

// defaultPresets returns the five built-in styles. Rate and energy slopes
// are non-negative so increasing intensity never slows or quiets delivery
// within a style.
func defaultPresets() map[string]core.StylePreset {
	return map[string]core.StylePreset{
		core.StyleNeutral: {
			Name:          core.StyleNeutral,
			BaseIntensity: 50,
			Curve: core.ProsodyCurve{
				RateBase: 0.95, RateSlope: 0.10,
				PitchBase: 0.0, PitchSlope: 0.5,
				EnergyBase: 0.90, EnergySlope: 0.20,
				PauseScale: 1.0,
			},
		},
		core.StyleEnthusiastic: {
			Name:          core.StyleEnthusiastic,
			BaseIntensity: 70,
			Curve: core.ProsodyCurve{
				RateBase: 1.10, RateSlope: 0.30,
				PitchBase: 1.0, PitchSlope: 3.0,
				EnergyBase: 1.00, EnergySlope: 0.40,
				PauseScale: 0.8,
			},
		},
		core.StyleSomber: {
			Name:          core.StyleSomber,
			BaseIntensity: 60,
			Curve: core.ProsodyCurve{
				RateBase: 0.65, RateSlope: 0.10,
				PitchBase: -1.0, PitchSlope: -2.0,
				EnergyBase: 0.70, EnergySlope: 0.10,
				PauseScale: 1.4,
			},
		},
		core.StyleConfident: {
			Name:          core.StyleConfident,
			BaseIntensity: 50,
			Curve: core.ProsodyCurve{
				RateBase: 1.00, RateSlope: 0.15,
				PitchBase: 0.5, PitchSlope: 1.0,
				EnergyBase: 1.00, EnergySlope: 0.20,
				PauseScale: 1.0,
			},
		},
		core.StyleAuthoritative: {
			Name:          core.StyleAuthoritative,
			BaseIntensity: 50,
			Curve: core.ProsodyCurve{
				RateBase: 0.85, RateSlope: 0.10,
				PitchBase: -0.5, PitchSlope: -1.0,
				EnergyBase: 1.00, EnergySlope: 0.25,
				PauseScale: 1.2,
			},
		},
	}
}

// WithSeed returns a planner sharing the presets but jittering from the
// given seed, so a request can override the configured seed.
func (p *Planner) WithSeed(seed int64) *Planner {
	return &Planner{
		presets: p.presets,
		seed:    seed,
	}
}

// Preset looks up a style by name.
func (p *Planner) Preset(style string) (core.StylePreset, error) {
	preset, found := p.presets[style]
	if !found {
		return core.StylePreset{}, core.NewUnknownStyleError(style)
	}

	return preset, nil
}

// Styles lists the known style names.
func (p *Planner) Styles() []string {
	names := make([]string, 0, len(p.presets))
	for name := range p.presets {
		names = append(names, name)
	}

	return names
}

// Plan derives the delivery target for one segment. Out-of-range intensity
// is clamped. Jitter depends only on the seed and segment index, so a
// fixed segment keeps its jitter factor across intensities and the
// rate and energy envelopes stay monotonic in intensity.
func (p *Planner) Plan(segment core.Segment, style string, intensity int) (core.ProsodyTarget, error) {
	preset, err := p.Preset(style)
	if err != nil {
		return core.ProsodyTarget{}, err
	}

	intensity = core.ClampIntensity(intensity)
	fraction := float64(intensity) / intensityScale
	curve := preset.Curve

	jitter := p.jitterFactor(segment.Index)

	target := core.ProsodyTarget{
		RateMultiplier:      (curve.RateBase + curve.RateSlope*fraction) * jitter,
		PitchShiftSemitones: curve.PitchBase + curve.PitchSlope*fraction,
		EnergyGain:          (curve.EnergyBase + curve.EnergySlope*fraction) * jitter,
		PauseAfterMs:        pauseAfter(segment, curve.PauseScale),
		EmphasisSpans:       emphasisSpans(segment.Text),
	}

	return target, nil
}

// jitterFactor returns a multiplier in [1-jitterSpread, 1+jitterSpread]
// derived deterministically from the seed and segment index.
func (p *Planner) jitterFactor(segmentIndex int) float64 {
	hasher := fnv.New64a()

	var buf [16]byte

	seed := uint64(p.seed)
	index := uint64(segmentIndex)

	for i := 0; i < 8; i++ {
		buf[i] = byte(seed >> (8 * i))
		buf[8+i] = byte(index >> (8 * i))
	}

	_, _ = hasher.Write(buf[:])

	rng := rand.New(rand.NewSource(int64(hasher.Sum64())))

	return 1.0 + jitterSpread*(2.0*rng.Float64()-1.0)
}

// pauseAfter picks the trailing pause for a segment: a longer one at
// paragraph ends, the sentence pause after terminal punctuation, and none
// after a mid-sentence piece so the assembler crossfades straight into the
// next one.
func pauseAfter(segment core.Segment, scale float64) int {
	if segment.ParagraphEnd {
		return int(paragraphPauseMs * scale)
	}

	if !endsSentence(segment.Text) {
		return 0
	}

	return int(sentencePauseMs * scale)
}

// endsSentence reports whether the text closes a sentence, ignoring a
// trailing quote or bracket around the terminal punctuation.
func endsSentence(text string) bool {
	trimmed := strings.TrimRight(text, ` "')]`)
	if trimmed == "" {
		return false
	}

	last, _ := utf8.DecodeLastRuneInString(trimmed)

	return last == '.' || last == '!' || last == '?'
}

// emphasisSpans marks words worth stressing: capitalized words that do not
// open the segment, and fully spoken numbers are left to the engines.
func emphasisSpans(segmentText string) []core.Span {
	var spans []core.Span

	offset := 0

	for i, word := range strings.Split(segmentText, " ") {
		trimmed := strings.TrimRight(word, `.,!?;:"'`)

		if i > 0 && isCapitalizedWord(trimmed) {
			spans = append(spans, core.Span{
				Start: offset,
				End:   offset + len(trimmed),
			})
		}

		offset += len(word) + 1
	}

	return spans
}

func isCapitalizedWord(word string) bool {
	if len(word) < 2 {
		return false
	}

	runes := []rune(word)
	if !unicode.IsUpper(runes[0]) {
		return false
	}

	for _, r := range runes[1:] {
		if !unicode.IsLower(r) {
			return false
		}
	}

	return true
}
