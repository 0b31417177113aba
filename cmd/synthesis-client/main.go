// main package for the synthesis-client command line tool.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/book-expert/logger"

	"github.com/emovoice/synthesis-service/internal/artifact"
	"github.com/emovoice/synthesis-service/internal/audio"
	"github.com/emovoice/synthesis-service/internal/cache"
	"github.com/emovoice/synthesis-service/internal/config"
	"github.com/emovoice/synthesis-service/internal/engine"
	"github.com/emovoice/synthesis-service/internal/pipeline"
	"github.com/emovoice/synthesis-service/internal/prosody"
	"github.com/emovoice/synthesis-service/internal/task"
	"github.com/emovoice/synthesis-service/internal/text"
	"github.com/emovoice/synthesis-service/internal/verify"
)

// Flag descriptions.
const (
	flagTextDesc       = "Text to synthesize"
	flagFileDesc       = "Read the input text from a file instead of --text"
	flagNameDesc       = "Name prefix for the output artifacts"
	flagStyleDesc      = "Emotional style (neutral, enthusiastic, somber, confident, authoritative)"
	flagIntensityDesc  = "Style intensity from 0 to 100 (-1 uses the style's base)"
	flagEngineDesc     = "Pin a backend (primary or secondary); empty enables fallback"
	flagVoiceDesc      = "Voice identifier"
	flagLanguageDesc   = "Language code (e.g. en, es)"
	flagSpeedDesc      = "Playback speed from 0.5 to 2.0"
	flagSeedDesc       = "Jitter seed override (0 uses the configured seed)"
	flagListVoicesDesc = "List available voices and exit"
	flagListStylesDesc = "List available styles and exit"
	flagStatusDesc     = "Print pipeline metrics and engine availability after synthesis"
	flagVerboseDesc    = "Enable verbose logging"
)

// Flag names.
const (
	flagText       = "text"
	flagFile       = "file"
	flagName       = "name"
	flagStyle      = "style"
	flagIntensity  = "intensity"
	flagEngine     = "engine"
	flagVoice      = "voice"
	flagLanguage   = "language"
	flagSpeed      = "speed"
	flagSeed       = "seed"
	flagListVoices = "list-voices"
	flagListStyles = "list-styles"
	flagStatus     = "status"
	flagVerbose    = "verbose"
)

// Error and log messages.
const (
	errEitherTextOrFile  = "Either --text or --file must be provided"
	errCannotSpecifyBoth = "Cannot specify both --text and --file"
	errFailedToReadFile  = "Failed to read input file: %v"
	errSynthesisFailed   = "Synthesis failed: %v"
	errFailedToSave      = "Failed to save artifacts: %v"

	logClientInitialized = "Synthesis client initialized (output dir: %s)"
	logTaskStarted       = "Task %s started (%d segments)"
	logTaskCompleted     = "Task %s completed in %s"
	logGenerated         = "Generated: %s\n"
	logMetadata          = "Metadata:  %s\n"
)

// File names and defaults.
const (
	logFileNameDefault = "synthesis-client.log"
	logFileNameVerbose = "synthesis-client-verbose.log"
	defaultNamePrefix  = "speech"
	defaultIntensity   = -1
)

const statusProbeTimeout = 10 * time.Second

// appFlags holds the parsed command-line flag values.
type appFlags struct {
	text       string
	file       string
	name       string
	style      string
	intensity  int
	engine     string
	voice      string
	language   string
	speed      float64
	seed       int64
	listVoices bool
	listStyles bool
	status     bool
	verbose    bool
}

func main() {
	err := run()
	if err != nil {
		// The logger might not be initialized yet, so use the standard
		// log package.
		log.Fatalf("Error: %v", err)
	}
}

func run() error {
	flags := parseFlags()

	cfg, lg, err := setup(flags.verbose)
	if err != nil {
		return err
	}

	defer func() {
		closeErr := lg.Close()
		if closeErr != nil {
			fmt.Fprintf(os.Stderr, "error closing logger: %v\n", closeErr)
		}
	}()

	pipe := buildPipeline(cfg, lg)

	lg.Info(logClientInitialized, cfg.Paths.OutputDir)

	if flags.listVoices {
		return printVoices(pipe)
	}

	if flags.listStyles {
		return printStyles(pipe)
	}

	return handleExecution(pipe, cfg, lg, flags)
}

// parseFlags defines and parses command-line flags, returning them in a struct.
func parseFlags() appFlags {
	var flags appFlags

	flag.StringVar(&flags.text, flagText, "", flagTextDesc)
	flag.StringVar(&flags.file, flagFile, "", flagFileDesc)
	flag.StringVar(&flags.name, flagName, defaultNamePrefix, flagNameDesc)
	flag.StringVar(&flags.style, flagStyle, "neutral", flagStyleDesc)
	flag.IntVar(&flags.intensity, flagIntensity, defaultIntensity, flagIntensityDesc)
	flag.StringVar(&flags.engine, flagEngine, "", flagEngineDesc)
	flag.StringVar(&flags.voice, flagVoice, "", flagVoiceDesc)
	flag.StringVar(&flags.language, flagLanguage, "", flagLanguageDesc)
	flag.Float64Var(&flags.speed, flagSpeed, 0, flagSpeedDesc)
	flag.Int64Var(&flags.seed, flagSeed, 0, flagSeedDesc)
	flag.BoolVar(&flags.listVoices, flagListVoices, false, flagListVoicesDesc)
	flag.BoolVar(&flags.listStyles, flagListStyles, false, flagListStylesDesc)
	flag.BoolVar(&flags.status, flagStatus, false, flagStatusDesc)
	flag.BoolVar(&flags.verbose, flagVerbose, false, flagVerboseDesc)
	flag.Parse()

	return flags
}

// setup loads the configuration and initializes the logger.
func setup(verbose bool) (*config.Config, *logger.Logger, error) {
	bootstrapLog, err := logger.New(os.TempDir(), logFileNameDefault)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create bootstrap logger: %w", err)
	}

	cfg, err := config.Load(bootstrapLog)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logFileName := logFileNameDefault
	if verbose {
		logFileName = logFileNameVerbose
	}

	lg, err := logger.New(cfg.Paths.BaseLogsDir, logFileName)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	return cfg, lg, nil
}

// buildPipeline wires a local pipeline with both backends.
func buildPipeline(cfg *config.Config, lg *logger.Logger) *pipeline.Pipeline {
	primary := engine.NewNeuralEngine(
		cfg.Engines.Primary.URL,
		time.Duration(cfg.Engines.Primary.TimeoutSeconds)*time.Second,
		cfg.Engines.Primary.Concurrency,
		cfg.Engines.Primary.RequestsPerMinute,
		lg,
	)
	secondary := engine.NewFormantEngine(cfg.Engines.Secondary.SampleRate, lg)

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
			lg,
		)
	}

	return pipeline.New(pipeline.Options{
		Normalizer: text.NewNormalizer(cfg.Service.MaxTextLength),
		Segmenter:  text.NewSegmenter(cfg.Service.MaxSegmentLength),
		Planner:    prosody.NewPlanner(cfg.Service.JitterSeed),
		Cache: cache.New(
			time.Duration(cfg.Cache.RetentionSeconds)*time.Second, lg),
		Dispatcher: engine.NewDispatcher(primary, secondary, lg),
		Assembler: audio.NewAssembler(
			cfg.Assembly.CrossfadeMs,
			cfg.Assembly.TargetRMS,
			cfg.Assembly.DeEss,
			lg,
		),
		Verifier:        verifier,
		Workers:         cfg.Service.Workers,
		SampleRate:      cfg.Service.SampleRate,
		DefaultVoice:    cfg.Service.DefaultVoice,
		DefaultLanguage: cfg.Service.DefaultLanguage,
	}, lg)
}

func printVoices(pipe *pipeline.Pipeline) error {
	for _, voice := range pipe.Voices() {
		fmt.Printf("%-16s %-10s %-8s %-4s (%s)\n",
			voice.ID, voice.Name, voice.Gender, voice.Language, voice.Engine)
	}

	return nil
}

func printStyles(pipe *pipeline.Pipeline) error {
	for _, style := range pipe.Styles() {
		fmt.Println(style)
	}

	return nil
}

// handleExecution validates the input flags and runs one synthesis job.
func handleExecution(
	pipe *pipeline.Pipeline,
	cfg *config.Config,
	lg *logger.Logger,
	flags appFlags,
) error {
	inputText, err := resolveInputText(lg, flags)
	if err != nil {
		return err
	}

	store, err := artifact.NewStore(cfg.Paths.OutputDir, lg)
	if err != nil {
		return fmt.Errorf("failed to open artifact store: %w", err)
	}

	retention := time.Duration(cfg.Paths.RetentionSeconds) * time.Second
	if _, cleanupErr := store.Cleanup(time.Now(), retention); cleanupErr != nil {
		lg.Warn("Artifact cleanup failed: %v", cleanupErr)
	}

	manager := task.NewManager(lg)

	err = synthesize(pipe, store, manager, lg, flags, inputText)
	if err != nil {
		return err
	}

	if flags.status {
		printStatus(pipe)
	}

	return nil
}

func resolveInputText(lg *logger.Logger, flags appFlags) (string, error) {
	if flags.text == "" && flags.file == "" {
		flag.Usage()
		lg.Error(errEitherTextOrFile)

		return "", errors.New(errEitherTextOrFile)
	}

	if flags.text != "" && flags.file != "" {
		lg.Error(errCannotSpecifyBoth)

		return "", errors.New(errCannotSpecifyBoth)
	}

	if flags.file != "" {
		data, err := os.ReadFile(flags.file)
		if err != nil {
			lg.Error(errFailedToReadFile, err)

			return "", fmt.Errorf(errFailedToReadFile, err)
		}

		return string(data), nil
	}

	return flags.text, nil
}

// synthesize runs the job under a tracked task so progress and the final
// state are observable, then saves the artifacts locally.
func synthesize(
	pipe *pipeline.Pipeline,
	store *artifact.Store,
	manager *task.Manager,
	lg *logger.Logger,
	flags appFlags,
	inputText string,
) error {
	taskID, taskCtx := manager.Create(context.Background())
	started := time.Now()

	request := pipeline.Request{
		Text:      inputText,
		Style:     flags.style,
		Intensity: flags.intensity,
		Engine:    flags.engine,
		Voice:     flags.voice,
		Language:  flags.language,
		Speed:     flags.speed,
		Seed:      flags.seed,
	}

	result, err := pipe.Synthesize(taskCtx, request, func(done, total int) {
		if done == 1 {
			_ = manager.SetRunning(taskID, total)
			lg.Info(logTaskStarted, taskID, total)
		}

		_ = manager.SetProgress(taskID, done)
	})
	if err != nil {
		_ = manager.Fail(taskID, err)
		lg.Error(errSynthesisFailed, err)

		return fmt.Errorf(errSynthesisFailed, err)
	}

	audioPath, metadataPath, err := store.Save(flags.name, result.Audio, artifact.Metadata{
		Style:           flags.style,
		Intensity:       flags.intensity,
		Voice:           flags.voice,
		EngineUsed:      result.EngineUsed,
		DurationSeconds: result.Audio.DurationSeconds(),
		SampleRate:      result.Audio.SampleRate,
		SegmentCount:    len(result.Segments),
		Timings:         result.Audio.Timings,
		Quality:         result.Quality,
		CreatedAt:       time.Now().UTC(),
	})
	if err != nil {
		_ = manager.Fail(taskID, err)
		lg.Error(errFailedToSave, err)

		return fmt.Errorf(errFailedToSave, err)
	}

	taskResult := &task.Result{
		AudioPath:       audioPath,
		MetadataPath:    metadataPath,
		EngineUsed:      result.EngineUsed,
		DurationSeconds: result.Audio.DurationSeconds(),
		SegmentCount:    len(result.Segments),
	}
	if result.Quality != nil {
		taskResult.WordErrorRate = result.Quality.WordErrorRate
	}

	_ = manager.Complete(taskID, taskResult)

	lg.Info(logTaskCompleted, taskID, time.Since(started).Round(time.Millisecond))
	fmt.Printf(logGenerated, audioPath)
	fmt.Printf(logMetadata, metadataPath)

	return nil
}

func printStatus(pipe *pipeline.Pipeline) {
	metrics := pipe.Metrics()
	fmt.Printf("requests=%d failures=%d segments=%d fallbacks=%d cache_hits=%d cache_misses=%d\n",
		metrics.TotalRequests,
		metrics.TotalFailures,
		metrics.SegmentsRendered,
		metrics.FallbackSegments,
		metrics.CacheHits,
		metrics.CacheMisses,
	)

	ctx, cancel := context.WithTimeout(context.Background(), statusProbeTimeout)
	defer cancel()

	for _, status := range pipe.EngineStatus(ctx) {
		if status.Available {
			fmt.Printf("engine %s: available\n", status.Name)

			continue
		}

		fmt.Printf("engine %s: unavailable (%s)\n", status.Name, status.Error)
	}
}
