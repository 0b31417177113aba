// main package for the synthesis-service
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/book-expert/logger"
	"github.com/nats-io/nats.go"

	"github.com/emovoice/synthesis-service/internal/audio"
	"github.com/emovoice/synthesis-service/internal/cache"
	"github.com/emovoice/synthesis-service/internal/config"
	"github.com/emovoice/synthesis-service/internal/engine"
	"github.com/emovoice/synthesis-service/internal/objectstore"
	"github.com/emovoice/synthesis-service/internal/pipeline"
	"github.com/emovoice/synthesis-service/internal/prosody"
	"github.com/emovoice/synthesis-service/internal/text"
	"github.com/emovoice/synthesis-service/internal/verify"
	"github.com/emovoice/synthesis-service/internal/worker"
)

const bootstrapLogName = "synthesis-service-bootstrap.log"

func setupLogger(logPath, fileName string) (*logger.Logger, error) {
	log, err := logger.New(logPath, fileName)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	return log, nil
}

func run() error {
	bootstrapLog, err := setupLogger(os.TempDir(), bootstrapLogName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Failed to create bootstrap logger: %v\n", err)

		return err
	}

	cfg, err := config.Load(bootstrapLog)
	if err != nil {
		bootstrapLog.Error("Failed to load configuration: %v", err)

		return fmt.Errorf("failed to load configuration: %w", err)
	}

	finalLog, err := setupLogger(cfg.Paths.BaseLogsDir, "synthesis-service.log")
	if err != nil {
		bootstrapLog.Error("Failed to create final logger: %v", err)

		return fmt.Errorf("failed to create final logger: %w", err)
	}

	defer func() {
		closeErr := finalLog.Close()
		if closeErr != nil {
			fmt.Fprintf(os.Stderr, "error closing final logger: %v\n", closeErr)
		}
	}()

	ctx, stop := signal.NotifyContext(
		context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return runService(ctx, cfg, finalLog)
}

func runService(ctx context.Context, cfg *config.Config, log *logger.Logger) error {
	pipe := buildPipeline(ctx, cfg, log)

	natsConnection, err := nats.Connect(cfg.NATS.URL)
	if err != nil {
		return fmt.Errorf("failed to connect to NATS at %s: %w", cfg.NATS.URL, err)
	}
	defer natsConnection.Close()

	jetstreamContext, err := natsConnection.JetStream()
	if err != nil {
		return fmt.Errorf("failed to create JetStream context: %w", err)
	}

	store, err := objectstore.New(jetstreamContext, cfg.NATS.AudioObjectStoreBucket)
	if err != nil {
		return fmt.Errorf("failed to open object store: %w", err)
	}

	natsWorker, err := worker.NewNatsWorker(
		natsConnection, cfg.NATS.SpeechRequestedSubject, store, pipe, log)
	if err != nil {
		return fmt.Errorf("failed to create worker: %w", err)
	}

	log.System("Synthesis service initialized. Listening for jobs on subject: %s",
		cfg.NATS.SpeechRequestedSubject)

	err = natsWorker.Run(ctx)
	if err != nil {
		return fmt.Errorf("worker stopped with error: %w", err)
	}

	return nil
}

// buildPipeline wires the synthesis stages from configuration and starts
// the cache sweeper.
func buildPipeline(ctx context.Context, cfg *config.Config, log *logger.Logger) *pipeline.Pipeline {
	primary := engine.NewNeuralEngine(
		cfg.Engines.Primary.URL,
		time.Duration(cfg.Engines.Primary.TimeoutSeconds)*time.Second,
		cfg.Engines.Primary.Concurrency,
		cfg.Engines.Primary.RequestsPerMinute,
		log,
	)
	secondary := engine.NewFormantEngine(cfg.Engines.Secondary.SampleRate, log)

	resultCache := cache.New(
		time.Duration(cfg.Cache.RetentionSeconds)*time.Second, log)
	resultCache.StartSweeper(
		ctx, time.Duration(cfg.Cache.SweepIntervalSeconds)*time.Second)

	var verifier *verify.Verifier

	if cfg.Verify.Enabled {
		transcriber := verify.NewTranscriptionClient(
			cfg.Verify.URL,
			cfg.Verify.Model,
			time.Duration(cfg.Verify.TimeoutSeconds)*time.Second,
		)
		verifier = verify.NewVerifier(
			transcriber,
			cfg.Verify.FlagThreshold,
			time.Duration(cfg.Verify.TimeoutSeconds)*time.Second,
			log,
		)
	}

	return pipeline.New(pipeline.Options{
		Normalizer: text.NewNormalizer(cfg.Service.MaxTextLength),
		Segmenter:  text.NewSegmenter(cfg.Service.MaxSegmentLength),
		Planner:    prosody.NewPlanner(cfg.Service.JitterSeed),
		Cache:      resultCache,
		Dispatcher: engine.NewDispatcher(primary, secondary, log),
		Assembler: audio.NewAssembler(
			cfg.Assembly.CrossfadeMs,
			cfg.Assembly.TargetRMS,
			cfg.Assembly.DeEss,
			log,
		),
		Verifier:        verifier,
		Workers:         cfg.Service.Workers,
		SampleRate:      cfg.Service.SampleRate,
		DefaultVoice:    cfg.Service.DefaultVoice,
		DefaultLanguage: cfg.Service.DefaultLanguage,
	}, log)
}

func main() {
	err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Service exited with error: %v\n", err)
		os.Exit(1)
	}
}
