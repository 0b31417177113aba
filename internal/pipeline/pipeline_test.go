package pipeline_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/book-expert/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emovoice/synthesis-service/internal/audio"
	"github.com/emovoice/synthesis-service/internal/cache"
	"github.com/emovoice/synthesis-service/internal/core"
	"github.com/emovoice/synthesis-service/internal/engine"
	"github.com/emovoice/synthesis-service/internal/pipeline"
	"github.com/emovoice/synthesis-service/internal/prosody"
	"github.com/emovoice/synthesis-service/internal/text"
)

const testSampleRate = 22050

var errNeuralDown = errors.New("neural backend down")

// countingEngine wraps deterministic synthesis with a call counter so
// tests can observe cache behavior.
type countingEngine struct {
	name  string
	fail  bool
	calls atomic.Int32
}

func (e *countingEngine) Name() string { return e.name }

func (e *countingEngine) Available(_ context.Context) error {
	if e.fail {
		return errNeuralDown
	}

	return nil
}

func (e *countingEngine) Voices() []core.Voice {
	return []core.Voice{
		{ID: "ember", Name: "Ember", Gender: "female", Language: "en", Engine: e.name},
	}
}

func (e *countingEngine) Synthesize(
	_ context.Context,
	_ core.SynthesisRequest,
) (*core.SynthesisResult, error) {
	e.calls.Add(1)

	if e.fail {
		return nil, errNeuralDown
	}

	samples := make([]float32, testSampleRate/10)
	for i := range samples {
		samples[i] = 0.1
	}

	return &core.SynthesisResult{
		Samples:    samples,
		SampleRate: testSampleRate,
		EngineUsed: e.name,
		Duration:   0.1,
	}, nil
}

func createTestLogger(t *testing.T) *logger.Logger {
	t.Helper()

	lg, err := logger.New(t.TempDir(), "pipeline-test.log")
	require.NoError(t, err)

	return lg
}

func newTestPipeline(t *testing.T, primary core.Engine) *pipeline.Pipeline {
	t.Helper()

	log := createTestLogger(t)

	return pipeline.New(pipeline.Options{
		Normalizer: text.NewNormalizer(5000),
		Segmenter:  text.NewSegmenter(400),
		Planner:    prosody.NewPlanner(42),
		Cache:      cache.New(time.Hour, log),
		Dispatcher: engine.NewDispatcher(
			primary, engine.NewFormantEngine(testSampleRate, log), log),
		Assembler:       audio.NewAssembler(30, 0.15, false, log),
		Workers:         4,
		SampleRate:      testSampleRate,
		DefaultVoice:    "ember",
		DefaultLanguage: "en",
	}, log)
}

func enthusiasticRequest() pipeline.Request {
	return pipeline.Request{
		Text:      "We did it!",
		Style:     core.StyleEnthusiastic,
		Intensity: 80,
	}
}

func TestPipeline_Synthesize_EndToEnd(t *testing.T) {
	t.Parallel()

	primary := &countingEngine{name: core.EnginePrimary}
	pipe := newTestPipeline(t, primary)

	result, err := pipe.Synthesize(context.Background(), enthusiasticRequest(), nil)
	require.NoError(t, err)

	assert.Equal(t, "We did it!", result.NormalizedText)
	require.Len(t, result.Segments, 1)
	assert.Equal(t, core.EnginePrimary, result.EngineUsed)
	require.NotNil(t, result.Audio)
	assert.NotEmpty(t, result.Audio.Samples)
	assert.Len(t, result.Audio.Timings, 1)
	assert.Equal(t, core.StyleEnthusiastic, result.Audio.Timings[0].Style)
}

func TestPipeline_Synthesize_MultiSegmentProgress(t *testing.T) {
	t.Parallel()

	primary := &countingEngine{name: core.EnginePrimary}
	pipe := newTestPipeline(t, primary)

	var lastDone, lastTotal atomic.Int32

	request := pipeline.Request{
		Text:      "First sentence. Second sentence. Third sentence.",
		Style:     core.StyleNeutral,
		Intensity: 50,
	}

	result, err := pipe.Synthesize(context.Background(), request,
		func(done, total int) {
			lastDone.Store(int32(done))
			lastTotal.Store(int32(total))
		})
	require.NoError(t, err)

	assert.Len(t, result.Segments, 3)
	assert.Equal(t, int32(3), lastDone.Load())
	assert.Equal(t, int32(3), lastTotal.Load())
	assert.Equal(t, int32(3), primary.calls.Load())
}

func TestPipeline_Synthesize_CachedRepeatSkipsEngines(t *testing.T) {
	t.Parallel()

	primary := &countingEngine{name: core.EnginePrimary}
	pipe := newTestPipeline(t, primary)

	first, err := pipe.Synthesize(context.Background(), enthusiasticRequest(), nil)
	require.NoError(t, err)

	second, err := pipe.Synthesize(context.Background(), enthusiasticRequest(), nil)
	require.NoError(t, err)

	assert.Equal(t, int32(1), primary.calls.Load(),
		"repeated identical request must be served from cache")
	assert.Equal(t, len(first.Audio.Samples), len(second.Audio.Samples))

	metrics := pipe.Metrics()
	assert.Equal(t, int64(2), metrics.TotalRequests)
	assert.Equal(t, int64(1), metrics.CacheHits)
}

func TestPipeline_Synthesize_FallsBackToSecondary(t *testing.T) {
	t.Parallel()

	primary := &countingEngine{name: core.EnginePrimary, fail: true}
	pipe := newTestPipeline(t, primary)

	result, err := pipe.Synthesize(context.Background(), enthusiasticRequest(), nil)
	require.NoError(t, err)

	assert.Equal(t, core.EngineSecondary, result.EngineUsed)
	assert.Positive(t, pipe.Metrics().FallbackSegments)
}

func TestPipeline_Synthesize_PinnedEngineIgnoresAutoCache(t *testing.T) {
	t.Parallel()

	primary := &countingEngine{name: core.EnginePrimary}
	pipe := newTestPipeline(t, primary)

	first, err := pipe.Synthesize(context.Background(), enthusiasticRequest(), nil)
	require.NoError(t, err)
	require.Equal(t, core.EnginePrimary, first.EngineUsed)

	pinned := enthusiasticRequest()
	pinned.Engine = core.EngineSecondary

	second, err := pipe.Synthesize(context.Background(), pinned, nil)
	require.NoError(t, err)

	assert.Equal(t, core.EngineSecondary, second.EngineUsed,
		"a pinned request must not be served another backend's cached render")
	assert.Equal(t, int32(1), primary.calls.Load())
}

func TestPipeline_Synthesize_PinnedPrimaryFails(t *testing.T) {
	t.Parallel()

	primary := &countingEngine{name: core.EnginePrimary, fail: true}
	pipe := newTestPipeline(t, primary)

	request := enthusiasticRequest()
	request.Engine = core.EnginePrimary

	_, err := pipe.Synthesize(context.Background(), request, nil)
	require.ErrorIs(t, err, core.ErrEngineUnavailable)
	assert.Equal(t, int64(1), pipe.Metrics().TotalFailures)
}

func TestPipeline_Synthesize_ValidationErrors(t *testing.T) {
	t.Parallel()

	pipe := newTestPipeline(t, &countingEngine{name: core.EnginePrimary})

	_, err := pipe.Synthesize(context.Background(), pipeline.Request{
		Text:  "Hello.",
		Style: "melodramatic",
	}, nil)
	assert.ErrorIs(t, err, core.ErrUnknownStyle)

	_, err = pipe.Synthesize(context.Background(), pipeline.Request{
		Text:  "   ",
		Style: core.StyleNeutral,
	}, nil)
	assert.ErrorIs(t, err, core.ErrEmptyText)
}

func TestPipeline_Synthesize_NegativeIntensityUsesPresetBase(t *testing.T) {
	t.Parallel()

	pipe := newTestPipeline(t, &countingEngine{name: core.EnginePrimary})

	request := enthusiasticRequest()
	request.Intensity = -1

	result, err := pipe.Synthesize(context.Background(), request, nil)
	require.NoError(t, err)
	assert.NotEmpty(t, result.Audio.Samples)
}

func TestPipeline_Synthesize_SeedOverrideVariesJitter(t *testing.T) {
	t.Parallel()

	primary := &countingEngine{name: core.EnginePrimary}
	pipe := newTestPipeline(t, primary)

	request := enthusiasticRequest()
	request.Seed = 7

	_, err := pipe.Synthesize(context.Background(), request, nil)
	require.NoError(t, err)

	request.Seed = 8

	_, err = pipe.Synthesize(context.Background(), request, nil)
	require.NoError(t, err)

	assert.Equal(t, int32(2), primary.calls.Load(),
		"a different seed plans a different target and must not share the cache entry")

	// The same seed replays the identical plan and hits the cache.
	_, err = pipe.Synthesize(context.Background(), request, nil)
	require.NoError(t, err)
	assert.Equal(t, int32(2), primary.calls.Load())
}

func TestPipeline_VoicesAndStyles(t *testing.T) {
	t.Parallel()

	pipe := newTestPipeline(t, &countingEngine{name: core.EnginePrimary})

	voices := pipe.Voices()
	assert.NotEmpty(t, voices)

	styles := pipe.Styles()
	assert.Len(t, styles, 5)
	assert.Contains(t, styles, core.StyleSomber)
}
