// Package worker_test tests the NATS worker for the synthesis service.
package worker_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/book-expert/events"
	"github.com/book-expert/logger"
	"github.com/google/uuid"
	"github.com/nats-io/nats-server/v2/test"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emovoice/synthesis-service/internal/audio"
	"github.com/emovoice/synthesis-service/internal/cache"
	"github.com/emovoice/synthesis-service/internal/core"
	"github.com/emovoice/synthesis-service/internal/engine"
	"github.com/emovoice/synthesis-service/internal/pipeline"
	"github.com/emovoice/synthesis-service/internal/prosody"
	"github.com/emovoice/synthesis-service/internal/text"
	"github.com/emovoice/synthesis-service/internal/worker"
)

const testSampleRate = 22050

var errMockDownload = errors.New("mock download error")

// mockObjectStore records uploads and serves one canned text blob.
type mockObjectStore struct {
	mu                 sync.Mutex
	downloadShouldFail bool
	downloadedKey      string
	uploads            map[string][]byte
}

func newMockObjectStore() *mockObjectStore {
	return &mockObjectStore{uploads: make(map[string][]byte)}
}

func (m *mockObjectStore) Download(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.downloadShouldFail {
		return nil, errMockDownload
	}

	m.downloadedKey = key

	return []byte("We did it. The launch was a complete success."), nil
}

func (m *mockObjectStore) Upload(_ context.Context, key string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.uploads[key] = data

	return nil
}

func (m *mockObjectStore) upload(key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, found := m.uploads[key]

	return data, found
}

func createTestNatsClient(t *testing.T) *nats.Conn {
	t.Helper()

	opts := test.DefaultTestOptions
	opts.Port = -1 // Use a random port
	server := test.RunServer(&opts)

	natsConnection, err := nats.Connect(server.ClientURL())
	if err != nil {
		t.Fatalf("Failed to connect to test NATS server: %v", err)
	}

	t.Cleanup(func() {
		natsConnection.Close()
		server.Shutdown()
	})

	return natsConnection
}

func createTestPipeline(t *testing.T) *pipeline.Pipeline {
	t.Helper()

	log, err := logger.New(t.TempDir(), "worker-test.log")
	require.NoError(t, err)

	formant := engine.NewFormantEngine(testSampleRate, log)

	return pipeline.New(pipeline.Options{
		Normalizer:      text.NewNormalizer(5000),
		Segmenter:       text.NewSegmenter(400),
		Planner:         prosody.NewPlanner(42),
		Cache:           cache.New(time.Hour, log),
		Dispatcher:      engine.NewDispatcher(formant, formant, log),
		Assembler:       audio.NewAssembler(30, 0.15, false, log),
		Workers:         2,
		SampleRate:      testSampleRate,
		DefaultVoice:    "formant-alto",
		DefaultLanguage: "en",
	}, log)
}

func TestNatsWorker_HandlesSpeechRequest(t *testing.T) {
	t.Parallel()

	natsConnection := createTestNatsClient(t)
	mockStore := newMockObjectStore()

	log, err := logger.New(t.TempDir(), "worker-test.log")
	require.NoError(t, err)

	workerInstance, err := worker.NewNatsWorker(
		natsConnection, "speech.requested", mockStore, createTestPipeline(t), log)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errChan := make(chan error, 1)

	go func() {
		errChan <- workerInstance.Run(ctx)
	}()

	testEvent := &core.SpeechRequestedEvent{
		Header: events.EventHeader{
			Timestamp:  time.Now(),
			WorkflowID: uuid.NewString(),
			EventID:    uuid.NewString(),
			UserID:     "",
			TenantID:   "",
		},
		TextKey:   "test-text-key",
		Style:     core.StyleEnthusiastic,
		Intensity: 80,
		Engine:    core.EngineSecondary,
		Voice:     "formant-alto",
		Language:  "en",
	}

	eventData, err := json.Marshal(testEvent)
	require.NoError(t, err)

	replyMsg, err := natsConnection.Request("speech.requested", eventData, 30*time.Second)
	require.NoError(t, err, "Request should succeed and receive a reply")

	var reply core.SpeechSynthesizedEvent

	require.NoError(t, json.Unmarshal(replyMsg.Data, &reply))

	assert.Equal(t, "test-text-key", mockStore.downloadedKey)
	assert.Equal(t, testEvent.Header.WorkflowID, reply.Header.WorkflowID)
	assert.Equal(t, core.EngineSecondary, reply.EngineUsed)
	assert.Positive(t, reply.DurationSeconds)
	assert.Equal(t, 2, reply.SegmentCount)

	wavData, found := mockStore.upload(reply.AudioKey)
	require.True(t, found, "audio artifact must be uploaded")

	samples, sampleRate, err := audio.DecodeWAV(wavData)
	require.NoError(t, err)
	assert.Equal(t, testSampleRate, sampleRate)
	assert.NotEmpty(t, samples)

	metadata, found := mockStore.upload(reply.MetadataKey)
	require.True(t, found, "metadata artifact must be uploaded")

	var timings []core.SegmentTiming

	require.NoError(t, json.Unmarshal(metadata, &timings))
	assert.Len(t, timings, 2)

	cancel()

	shutdownErr := <-errChan
	assert.NoError(t, shutdownErr, "worker.Run should not error on graceful shutdown")
}

func TestNatsWorker_DownloadFailureNoReply(t *testing.T) {
	t.Parallel()

	natsConnection := createTestNatsClient(t)
	mockStore := newMockObjectStore()
	mockStore.downloadShouldFail = true

	log, err := logger.New(t.TempDir(), "worker-test.log")
	require.NoError(t, err)

	workerInstance, err := worker.NewNatsWorker(
		natsConnection, "speech.requested", mockStore, createTestPipeline(t), log)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() { _ = workerInstance.Run(ctx) }()

	eventData, err := json.Marshal(&core.SpeechRequestedEvent{
		Header:  events.EventHeader{WorkflowID: uuid.NewString()},
		TextKey: "missing-key",
		Style:   core.StyleNeutral,
	})
	require.NoError(t, err)

	_, err = natsConnection.Request("speech.requested", eventData, 2*time.Second)
	assert.Error(t, err, "a failed job must not produce a reply")
}
