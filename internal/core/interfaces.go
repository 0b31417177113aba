// Package core defines the data model, capability interfaces, and shared
// errors for the emotional speech synthesis service.
package core

import "context"

// Engine names and selection hints.
const (
	EngineAuto      = "auto"
	EnginePrimary   = "primary"
	EngineSecondary = "secondary"
)

// Style names accepted by the pipeline.
const (
	StyleNeutral       = "neutral"
	StyleEnthusiastic  = "enthusiastic"
	StyleSomber        = "somber"
	StyleConfident     = "confident"
	StyleAuthoritative = "authoritative"
)

// Intensity bounds. Out-of-range values are clamped, not rejected.
const (
	IntensityMin = 0
	IntensityMax = 100
)

// Engine is the synthesis capability shared by both backends. The dispatcher
// depends only on this interface, never on a concrete backend type.
type Engine interface {
	// Name identifies the engine ("primary" or "secondary").
	Name() string

	// Available reports whether the engine can currently accept work.
	Available(ctx context.Context) error

	// Voices lists the voices this engine can render.
	Voices() []Voice

	// Synthesize renders one segment according to its prosody target.
	Synthesize(ctx context.Context, req SynthesisRequest) (*SynthesisResult, error)
}

// ObjectStore is a key-value blob store for synthesized artifacts.
type ObjectStore interface {
	Download(ctx context.Context, key string) ([]byte, error)
	Upload(ctx context.Context, key string, data []byte) error
}

// Transcriber converts audio back to text for the advisory quality check.
type Transcriber interface {
	Transcribe(ctx context.Context, wavData []byte, language string) (string, error)
}

// KnownStyle reports whether name is one of the five supported styles.
func KnownStyle(name string) bool {
	switch name {
	case StyleNeutral, StyleEnthusiastic, StyleSomber,
		StyleConfident, StyleAuthoritative:
		return true
	default:
		return false
	}
}

// ClampIntensity forces an intensity value into [IntensityMin, IntensityMax].
func ClampIntensity(intensity int) int {
	if intensity < IntensityMin {
		return IntensityMin
	}

	if intensity > IntensityMax {
		return IntensityMax
	}

	return intensity
}
