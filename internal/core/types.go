package core

// Segment is one ordered unit of normalized text. Segments are immutable
// once created; their order defines assembly order.
type Segment struct {
	// Index is the zero-based position within the request.
	Index int

	// Text is an exact slice of the normalized input.
	Text string

	// Start and End are byte offsets of Text within the normalized input.
	Start int
	End   int

	// ParagraphEnd marks a hard paragraph break after this segment; the
	// assembler inserts a longer pause there.
	ParagraphEnd bool

	// Style carried through to the output timing metadata.
	Style string
}

// Span is a half-open byte range [Start, End) within a segment's text.
type Span struct {
	Start int
	End   int
}

// ProsodyCurve describes how a style's delivery scales with intensity.
// Each parameter is Base + Slope*(intensity/100); slopes are non-negative
// for rate and energy so the envelope stays monotonic in intensity.
type ProsodyCurve struct {
	RateBase    float64
	RateSlope   float64
	PitchBase   float64
	PitchSlope  float64
	EnergyBase  float64
	EnergySlope float64
	PauseScale  float64
}

// StylePreset is static, read-only configuration for one named style.
type StylePreset struct {
	Name          string
	BaseIntensity int
	Curve         ProsodyCurve
}

// ProsodyTarget is the per-segment delivery plan derived from a preset,
// an intensity, and a deterministic jitter seed.
type ProsodyTarget struct {
	RateMultiplier      float64
	PitchShiftSemitones float64
	EnergyGain          float64
	PauseAfterMs        int
	EmphasisSpans       []Span
}

// SynthesisRequest carries everything an engine needs to render a segment.
// Its stable fields form the cache fingerprint.
type SynthesisRequest struct {
	Segment    Segment
	Target     ProsodyTarget
	Style      string
	Intensity  int
	EngineHint string
	VoiceID    string
	Language   string
	SampleRate int
}

// SynthesisResult is one rendered segment. It is owned by the cache entry
// until the assembler takes a read-only reference.
type SynthesisResult struct {
	Samples    []float32
	SampleRate int
	EngineUsed string
	Duration   float64
}

// SegmentTiming locates one segment inside the assembled audio.
type SegmentTiming struct {
	SegmentIndex int    `json:"index"`
	StartMs      int    `json:"start_ms"`
	EndMs        int    `json:"end_ms"`
	Style        string `json:"style"`
}

// AssembledAudio is the final artifact. The caller owns it once returned.
type AssembledAudio struct {
	Samples    []float32
	SampleRate int
	Timings    []SegmentTiming
}

// DurationSeconds returns the total play time of the assembled audio.
func (a *AssembledAudio) DurationSeconds() float64 {
	if a.SampleRate <= 0 {
		return 0
	}

	return float64(len(a.Samples)) / float64(a.SampleRate)
}

// Voice describes one renderable voice and the metadata used for
// nearest-match fallback mapping.
type Voice struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Gender   string `json:"gender"`
	Language string `json:"language"`
	Engine   string `json:"engine"`
}

// QualityReport is the advisory intelligibility result. It never blocks
// delivery of the synthesized audio.
type QualityReport struct {
	WordErrorRate   float64 `json:"word_error_rate"`
	FlaggedSegments []int   `json:"flagged_segments,omitempty"`
	Transcript      string  `json:"transcript,omitempty"`
}
