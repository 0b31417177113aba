// Package worker provides a NATS worker that processes speech synthesis
// jobs published by other services.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/book-expert/logger"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/emovoice/synthesis-service/internal/audio"
	"github.com/emovoice/synthesis-service/internal/core"
	"github.com/emovoice/synthesis-service/internal/pipeline"
)

const handleMessageTimeout = 5 * time.Minute

// Artifact key suffixes.
const (
	audioKeySuffix    = ".wav"
	metadataKeySuffix = ".json"
)

// NatsWorker listens for synthesis jobs on a NATS subject and replies with
// artifact locations once the audio is uploaded.
type NatsWorker struct {
	natsConnection *nats.Conn
	subject        string
	store          core.ObjectStore
	pipe           *pipeline.Pipeline
	log            *logger.Logger
}

// NewNatsWorker creates a worker bound to one subject.
func NewNatsWorker(
	natsConnection *nats.Conn,
	subject string,
	store core.ObjectStore,
	pipe *pipeline.Pipeline,
	log *logger.Logger,
) (*NatsWorker, error) {
	return &NatsWorker{
		natsConnection: natsConnection,
		subject:        subject,
		store:          store,
		pipe:           pipe,
		log:            log,
	}, nil
}

// Run starts the worker and blocks until the context is cancelled.
func (w *NatsWorker) Run(ctx context.Context) error {
	sub, err := w.natsConnection.Subscribe(w.subject, w.handleMessage)
	if err != nil {
		return fmt.Errorf("failed to subscribe to subject %s: %w", w.subject, err)
	}

	<-ctx.Done()

	drainErr := sub.Drain()
	if drainErr != nil {
		return fmt.Errorf("failed to drain subscription: %w", drainErr)
	}

	return nil
}

func (w *NatsWorker) handleMessage(msg *nats.Msg) {
	ctx, cancel := context.WithTimeout(context.Background(), handleMessageTimeout)
	defer cancel()

	var event core.SpeechRequestedEvent

	err := json.Unmarshal(msg.Data, &event)
	if err != nil {
		w.log.Error("Failed to unmarshal speech request: %v", err)

		return
	}

	reply, err := w.processJob(ctx, &event)
	if err != nil {
		w.log.Error("Failed to process speech job for workflow %s: %v",
			event.Header.WorkflowID, err)

		return
	}

	err = w.publishReply(msg, reply)
	if err != nil {
		w.log.Error("Failed to publish reply for workflow %s: %v",
			event.Header.WorkflowID, err)
	}
}

// processJob downloads the input text, synthesizes it, and uploads the
// audio and metadata artifacts.
func (w *NatsWorker) processJob(
	ctx context.Context,
	event *core.SpeechRequestedEvent,
) (*core.SpeechSynthesizedEvent, error) {
	textData, err := w.store.Download(ctx, event.TextKey)
	if err != nil {
		return nil, fmt.Errorf("failed to download text for key '%s': %w", event.TextKey, err)
	}

	result, err := w.pipe.Synthesize(ctx, pipeline.Request{
		Text:      string(textData),
		Style:     event.Style,
		Intensity: event.Intensity,
		Engine:    event.Engine,
		Voice:     event.Voice,
		Language:  event.Language,
		Speed:     event.Speed,
		Seed:      event.Seed,
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("synthesis failed: %w", err)
	}

	baseKey := uuid.NewString()
	audioKey := baseKey + audioKeySuffix
	metadataKey := baseKey + metadataKeySuffix

	wavData := audio.EncodeWAV(result.Audio.Samples, result.Audio.SampleRate)

	err = w.store.Upload(ctx, audioKey, wavData)
	if err != nil {
		return nil, fmt.Errorf("failed to upload audio for key '%s': %w", audioKey, err)
	}

	metadata, err := json.Marshal(result.Audio.Timings)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal timing metadata: %w", err)
	}

	err = w.store.Upload(ctx, metadataKey, metadata)
	if err != nil {
		return nil, fmt.Errorf("failed to upload metadata for key '%s': %w", metadataKey, err)
	}

	reply := &core.SpeechSynthesizedEvent{
		Header:          event.Header,
		AudioKey:        audioKey,
		MetadataKey:     metadataKey,
		EngineUsed:      result.EngineUsed,
		DurationSeconds: result.Audio.DurationSeconds(),
		SegmentCount:    len(result.Segments),
	}

	if result.Quality != nil {
		reply.WordErrorRate = result.Quality.WordErrorRate
	}

	return reply, nil
}

func (w *NatsWorker) publishReply(msg *nats.Msg, reply *core.SpeechSynthesizedEvent) error {
	replyData, err := json.Marshal(reply)
	if err != nil {
		return fmt.Errorf("failed to marshal reply event: %w", err)
	}

	err = msg.Respond(replyData)
	if err != nil {
		return fmt.Errorf("failed to publish reply event: %w", err)
	}

	return nil
}
