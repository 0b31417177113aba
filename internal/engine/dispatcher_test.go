package engine_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/book-expert/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emovoice/synthesis-service/internal/core"
	"github.com/emovoice/synthesis-service/internal/engine"
)

var errBackendDown = errors.New("backend down")

// stubEngine counts calls and either fails or returns a canned result.
type stubEngine struct {
	name   string
	voices []core.Voice
	fail   bool
	calls  atomic.Int32
}

func (s *stubEngine) Name() string { return s.name }

func (s *stubEngine) Available(_ context.Context) error {
	if s.fail {
		return errBackendDown
	}

	return nil
}

func (s *stubEngine) Voices() []core.Voice { return s.voices }

func (s *stubEngine) Synthesize(
	_ context.Context,
	_ core.SynthesisRequest,
) (*core.SynthesisResult, error) {
	s.calls.Add(1)

	if s.fail {
		return nil, errBackendDown
	}

	return &core.SynthesisResult{
		Samples:    make([]float32, 1024),
		SampleRate: 22050,
		EngineUsed: s.name,
		Duration:   1024.0 / 22050.0,
	}, nil
}

func createTestLogger(t *testing.T) *logger.Logger {
	t.Helper()

	lg, err := logger.New(t.TempDir(), "engine-test.log")
	require.NoError(t, err)

	return lg
}

func testVoice(id, gender, language string) core.Voice {
	return core.Voice{ID: id, Name: id, Gender: gender, Language: language}
}

func newStubs(primaryFails bool) (*stubEngine, *stubEngine) {
	primary := &stubEngine{
		name:   core.EnginePrimary,
		voices: []core.Voice{testVoice("ember", "female", "en")},
		fail:   primaryFails,
	}
	secondary := &stubEngine{
		name:   core.EngineSecondary,
		voices: []core.Voice{testVoice("formant-alto", "female", "en")},
	}

	return primary, secondary
}

func testDispatchRequest(hint string) core.SynthesisRequest {
	return core.SynthesisRequest{
		Segment:    core.Segment{Index: 0, Text: "Hello there."},
		EngineHint: hint,
		VoiceID:    "ember",
		Language:   "en",
		SampleRate: 22050,
	}
}

func TestDispatcher_Dispatch_PrimarySucceeds(t *testing.T) {
	t.Parallel()

	primary, secondary := newStubs(false)
	dispatcher := engine.NewDispatcher(primary, secondary, createTestLogger(t))

	result, err := dispatcher.Dispatch(context.Background(), testDispatchRequest(core.EngineAuto))
	require.NoError(t, err)

	assert.Equal(t, core.EnginePrimary, result.EngineUsed)
	assert.Equal(t, int32(1), primary.calls.Load())
	assert.Zero(t, secondary.calls.Load(), "secondary must not run when primary succeeds")
}

func TestDispatcher_Dispatch_FallsBackOnce(t *testing.T) {
	t.Parallel()

	primary, secondary := newStubs(true)
	dispatcher := engine.NewDispatcher(primary, secondary, createTestLogger(t))

	result, err := dispatcher.Dispatch(context.Background(), testDispatchRequest(core.EngineAuto))
	require.NoError(t, err)

	assert.Equal(t, core.EngineSecondary, result.EngineUsed)
	assert.Equal(t, int32(1), primary.calls.Load(), "failed primary must not be retried")
	assert.Equal(t, int32(1), secondary.calls.Load())
}

func TestDispatcher_Dispatch_BothFail(t *testing.T) {
	t.Parallel()

	primary, secondary := newStubs(true)
	secondary.fail = true

	dispatcher := engine.NewDispatcher(primary, secondary, createTestLogger(t))

	_, err := dispatcher.Dispatch(context.Background(), testDispatchRequest(core.EngineAuto))
	require.ErrorIs(t, err, core.ErrEngineUnavailable)
	assert.ErrorIs(t, err, errBackendDown)
	assert.Contains(t, err.Error(), core.EnginePrimary)
	assert.Contains(t, err.Error(), core.EngineSecondary)
}

func TestDispatcher_Dispatch_PinnedEngineNoFallback(t *testing.T) {
	t.Parallel()

	primary, secondary := newStubs(true)
	dispatcher := engine.NewDispatcher(primary, secondary, createTestLogger(t))

	_, err := dispatcher.Dispatch(context.Background(), testDispatchRequest(core.EnginePrimary))
	require.ErrorIs(t, err, core.ErrEngineUnavailable)

	assert.Equal(t, int32(1), primary.calls.Load())
	assert.Zero(t, secondary.calls.Load(), "pinned engine must not fall back")
}

func TestDispatcher_Dispatch_SecondaryHintSkipsPrimary(t *testing.T) {
	t.Parallel()

	primary, secondary := newStubs(false)
	dispatcher := engine.NewDispatcher(primary, secondary, createTestLogger(t))

	result, err := dispatcher.Dispatch(context.Background(), testDispatchRequest(core.EngineSecondary))
	require.NoError(t, err)

	assert.Equal(t, core.EngineSecondary, result.EngineUsed)
	assert.Zero(t, primary.calls.Load())
}

func TestDispatcher_Dispatch_UnknownHint(t *testing.T) {
	t.Parallel()

	primary, secondary := newStubs(false)
	dispatcher := engine.NewDispatcher(primary, secondary, createTestLogger(t))

	_, err := dispatcher.Dispatch(context.Background(), testDispatchRequest("quantum"))
	require.ErrorIs(t, err, core.ErrValidation)

	assert.Zero(t, primary.calls.Load())
	assert.Zero(t, secondary.calls.Load())
}

func TestDispatcher_Status_ReportsBothBackends(t *testing.T) {
	t.Parallel()

	primary, secondary := newStubs(true)
	dispatcher := engine.NewDispatcher(primary, secondary, createTestLogger(t))

	statuses := dispatcher.Status(context.Background())
	require.Len(t, statuses, 2)

	assert.Equal(t, core.EnginePrimary, statuses[0].Name)
	assert.False(t, statuses[0].Available)
	assert.Contains(t, statuses[0].Error, errBackendDown.Error())

	assert.Equal(t, core.EngineSecondary, statuses[1].Name)
	assert.True(t, statuses[1].Available)
	assert.Empty(t, statuses[1].Error)
}

func TestDispatcher_Voices_MergesCatalogs(t *testing.T) {
	t.Parallel()

	primary, secondary := newStubs(false)
	dispatcher := engine.NewDispatcher(primary, secondary, createTestLogger(t))

	voices := dispatcher.Voices()
	assert.Len(t, voices, 2)
}
