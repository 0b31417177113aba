// Package pipeline orchestrates one synthesis request end to end:
// normalize, segment, plan prosody, render each segment through the cache
// and dispatcher on a bounded worker pool, assemble, and optionally verify.
package pipeline

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/book-expert/logger"
	"golang.org/x/sync/errgroup"

	"github.com/emovoice/synthesis-service/internal/audio"
	"github.com/emovoice/synthesis-service/internal/cache"
	"github.com/emovoice/synthesis-service/internal/core"
	"github.com/emovoice/synthesis-service/internal/engine"
	"github.com/emovoice/synthesis-service/internal/prosody"
	"github.com/emovoice/synthesis-service/internal/text"
	"github.com/emovoice/synthesis-service/internal/verify"
)

// Speed bounds for the caller-facing playback rate control.
const (
	MinSpeed = 0.5
	MaxSpeed = 2.0
)

// EngineMixed marks output that used more than one backend.
const EngineMixed = "mixed"

// Request is one synthesis job.
type Request struct {
	// Text is the raw input before normalization.
	Text string

	// Style names one of the built-in presets.
	Style string

	// Intensity in [0, 100]. A negative value selects the style's base
	// intensity.
	Intensity int

	// Engine pins a backend; empty or "auto" enables fallback.
	Engine string

	// Voice and Language select the rendered voice. Empty fields take
	// the configured defaults.
	Voice    string
	Language string

	// Speed is an overall playback rate in [0.5, 2.0]; zero means 1.0.
	Speed float64

	// Seed overrides the configured jitter seed when nonzero, so a
	// caller can reproduce or vary the naturalness jitter per request.
	Seed int64
}

// Result is the completed job.
type Result struct {
	Audio          *core.AssembledAudio
	NormalizedText string
	Segments       []core.Segment
	EngineUsed     string
	Quality        *core.QualityReport
}

// ProgressFunc reports rendered-segment counts while a job runs.
type ProgressFunc func(done, total int)

// Pipeline wires the synthesis stages together. Construct it once and
// share it; all stages are safe for concurrent use.
type Pipeline struct {
	normalizer *text.Normalizer
	segmenter  *text.Segmenter
	planner    *prosody.Planner
	cache      *cache.Cache
	dispatcher *engine.Dispatcher
	assembler  *audio.Assembler
	verifier   *verify.Verifier

	workers         int
	sampleRate      int
	defaultVoice    string
	defaultLanguage string

	metrics *Metrics
	log     *logger.Logger
}

// Options carries the pipeline's construction parameters.
type Options struct {
	Normalizer      *text.Normalizer
	Segmenter       *text.Segmenter
	Planner         *prosody.Planner
	Cache           *cache.Cache
	Dispatcher      *engine.Dispatcher
	Assembler       *audio.Assembler
	Verifier        *verify.Verifier // nil disables the quality check
	Workers         int
	SampleRate      int
	DefaultVoice    string
	DefaultLanguage string
}

// New assembles a pipeline from its stages.
func New(opts Options, log *logger.Logger) *Pipeline {
	return &Pipeline{
		normalizer:      opts.Normalizer,
		segmenter:       opts.Segmenter,
		planner:         opts.Planner,
		cache:           opts.Cache,
		dispatcher:      opts.Dispatcher,
		assembler:       opts.Assembler,
		verifier:        opts.Verifier,
		workers:         opts.Workers,
		sampleRate:      opts.SampleRate,
		defaultVoice:    opts.DefaultVoice,
		defaultLanguage: opts.DefaultLanguage,
		metrics:         NewMetrics(),
		log:             log,
	}
}

// Metrics exposes the pipeline counters.
func (p *Pipeline) Metrics() MetricsSnapshot {
	snapshot := p.metrics.Snapshot()
	snapshot.CacheHits, snapshot.CacheMisses = p.cache.Stats()

	return snapshot
}

// Voices lists every renderable voice across both backends.
func (p *Pipeline) Voices() []core.Voice {
	return p.dispatcher.Voices()
}

// EngineStatus probes both backends' availability for status surfaces.
func (p *Pipeline) EngineStatus(ctx context.Context) []engine.EngineStatus {
	return p.dispatcher.Status(ctx)
}

// Styles lists the known style names.
func (p *Pipeline) Styles() []string {
	return p.planner.Styles()
}

// Synthesize runs one request to completion. Segment renders share the
// result cache; a failed segment fails the whole request. Verification
// problems are logged, never fatal.
func (p *Pipeline) Synthesize(
	ctx context.Context,
	req Request,
	onProgress ProgressFunc,
) (*Result, error) {
	p.metrics.recordRequest()

	result, err := p.synthesize(ctx, req, onProgress)
	if err != nil {
		p.metrics.recordFailure()

		return nil, err
	}

	return result, nil
}

func (p *Pipeline) synthesize(
	ctx context.Context,
	req Request,
	onProgress ProgressFunc,
) (*Result, error) {
	preset, err := p.planner.Preset(req.Style)
	if err != nil {
		return nil, err
	}

	intensity := req.Intensity
	if intensity < 0 {
		intensity = preset.BaseIntensity
	}

	intensity = core.ClampIntensity(intensity)

	normalized, err := p.normalizer.Normalize(req.Text)
	if err != nil {
		return nil, err
	}

	segments, err := p.segmenter.Segment(normalized, req.Style)
	if err != nil {
		return nil, err
	}

	planner := p.planner
	if req.Seed != 0 {
		planner = planner.WithSeed(req.Seed)
	}

	targets, err := planTargets(planner, segments, req, intensity)
	if err != nil {
		return nil, err
	}

	requests := p.buildRequests(segments, targets, req, intensity)

	results, err := p.renderAll(ctx, requests, onProgress)
	if err != nil {
		return nil, err
	}

	assembled, err := p.assembler.Assemble(segments, targets, results)
	if err != nil {
		return nil, fmt.Errorf("assembly failed: %w", err)
	}

	out := &Result{
		Audio:          assembled,
		NormalizedText: normalized,
		Segments:       segments,
		EngineUsed:     overallEngine(results),
	}

	p.metrics.recordSegments(int64(len(segments)))

	if p.verifier != nil {
		report, verifyErr := p.verifier.Verify(
			ctx, normalized, segments, assembled, language(req, p.defaultLanguage))
		if verifyErr != nil {
			p.log.Warn("Quality verification skipped: %v", verifyErr)
		} else {
			out.Quality = report
		}
	}

	return out, nil
}

func planTargets(
	planner *prosody.Planner,
	segments []core.Segment,
	req Request,
	intensity int,
) ([]core.ProsodyTarget, error) {
	speed := clampSpeed(req.Speed)

	targets := make([]core.ProsodyTarget, len(segments))

	for i, segment := range segments {
		target, err := planner.Plan(segment, req.Style, intensity)
		if err != nil {
			return nil, err
		}

		target.RateMultiplier *= speed
		targets[i] = target
	}

	return targets, nil
}

func (p *Pipeline) buildRequests(
	segments []core.Segment,
	targets []core.ProsodyTarget,
	req Request,
	intensity int,
) []core.SynthesisRequest {
	voice := req.Voice
	if voice == "" {
		voice = p.defaultVoice
	}

	requests := make([]core.SynthesisRequest, len(segments))
	for i, segment := range segments {
		requests[i] = core.SynthesisRequest{
			Segment:    segment,
			Target:     targets[i],
			Style:      req.Style,
			Intensity:  intensity,
			EngineHint: req.Engine,
			VoiceID:    voice,
			Language:   language(req, p.defaultLanguage),
			SampleRate: p.sampleRate,
		}
	}

	return requests
}

// renderAll fans the segment renders out over a bounded worker pool and
// joins on completion. The first failure cancels the remaining work.
func (p *Pipeline) renderAll(
	ctx context.Context,
	requests []core.SynthesisRequest,
	onProgress ProgressFunc,
) ([]*core.SynthesisResult, error) {
	results := make([]*core.SynthesisResult, len(requests))

	var done atomic.Int32

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(p.workers)

	for i, segmentReq := range requests {
		group.Go(func() error {
			rendered, err := p.cache.GetOrCompute(groupCtx, segmentReq,
				func(computeCtx context.Context) (*core.SynthesisResult, error) {
					return p.dispatcher.Dispatch(computeCtx, segmentReq)
				})
			if err != nil {
				return fmt.Errorf("segment %d: %w", segmentReq.Segment.Index, err)
			}

			if rendered.EngineUsed == core.EngineSecondary {
				p.metrics.recordFallback()
			}

			results[i] = rendered

			if onProgress != nil {
				onProgress(int(done.Add(1)), len(requests))
			}

			return nil
		})
	}

	err := group.Wait()
	if err != nil {
		return nil, err
	}

	return results, nil
}

// overallEngine summarizes which backend produced the output.
func overallEngine(results []*core.SynthesisResult) string {
	if len(results) == 0 {
		return ""
	}

	first := results[0].EngineUsed
	for _, result := range results[1:] {
		if result.EngineUsed != first {
			return EngineMixed
		}
	}

	return first
}

func clampSpeed(speed float64) float64 {
	if speed == 0 {
		return 1.0
	}

	if speed < MinSpeed {
		return MinSpeed
	}

	if speed > MaxSpeed {
		return MaxSpeed
	}

	return speed
}

func language(req Request, fallback string) string {
	if req.Language != "" {
		return req.Language
	}

	return fallback
}
