package engine

import (
	"strings"

	"github.com/emovoice/synthesis-service/internal/core"
)

// Gender labels used in voice metadata.
const (
	genderFemale  = "female"
	genderMale    = "male"
	genderNeutral = "neutral"
)

// Indicator substrings for inferring gender from voice identifiers when a
// backend does not publish metadata.
var (
	femaleIndicators = []string{"female", "woman", "aria", "ember", "jenny", "sara", "lumi"}
	maleIndicators   = []string{"male", "man", "guy", "orion", "davis", "tony", "basso"}
)

// neuralVoices is the primary backend's catalog.
func neuralVoices() []core.Voice {
	return []core.Voice{
		{ID: "ember", Name: "Ember", Gender: genderFemale, Language: "en", Engine: core.EnginePrimary},
		{ID: "orion", Name: "Orion", Gender: genderMale, Language: "en", Engine: core.EnginePrimary},
		{ID: "aria", Name: "Aria", Gender: genderFemale, Language: "en", Engine: core.EnginePrimary},
		{ID: "davis", Name: "Davis", Gender: genderMale, Language: "en", Engine: core.EnginePrimary},
		{ID: "lumi", Name: "Lumi", Gender: genderFemale, Language: "es", Engine: core.EnginePrimary},
	}
}

// formantVoices is the fallback backend's catalog.
func formantVoices() []core.Voice {
	return []core.Voice{
		{ID: "formant-alto", Name: "Formant Alto", Gender: genderFemale, Language: "en", Engine: core.EngineSecondary},
		{ID: "formant-basso", Name: "Formant Basso", Gender: genderMale, Language: "en", Engine: core.EngineSecondary},
	}
}

// InferGender guesses a voice's gender from its identifier. Unknown
// identifiers map to neutral.
func InferGender(voiceID string) string {
	lowered := strings.ToLower(voiceID)

	for _, indicator := range femaleIndicators {
		if strings.Contains(lowered, indicator) {
			return genderFemale
		}
	}

	for _, indicator := range maleIndicators {
		if strings.Contains(lowered, indicator) {
			return genderMale
		}
	}

	return genderNeutral
}

// MatchVoice finds the candidate closest to the requested voice: exact ID,
// then same gender and language, then same language, then same gender,
// then the first candidate.
func MatchVoice(requested core.Voice, candidates []core.Voice) (core.Voice, bool) {
	if len(candidates) == 0 {
		return core.Voice{}, false
	}

	for _, candidate := range candidates {
		if candidate.ID == requested.ID {
			return candidate, true
		}
	}

	gender := requested.Gender
	if gender == "" {
		gender = InferGender(requested.ID)
	}

	for _, candidate := range candidates {
		if candidate.Gender == gender && candidate.Language == requested.Language {
			return candidate, true
		}
	}

	for _, candidate := range candidates {
		if candidate.Language == requested.Language {
			return candidate, true
		}
	}

	for _, candidate := range candidates {
		if candidate.Gender == gender {
			return candidate, true
		}
	}

	return candidates[0], true
}
