// Package engine implements the synthesis backends and the dispatcher that
// routes segments between them.
package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/book-expert/logger"
	"golang.org/x/time/rate"

	"github.com/emovoice/synthesis-service/internal/audio"
	"github.com/emovoice/synthesis-service/internal/core"
)

// API endpoints and paths.
const (
	apiSynthesize = "/v1/synthesize"
	apiHealth     = "/health"
)

// HTTP headers.
const (
	headerContentType = "Content-Type"
	headerAccept      = "Accept"
	contentTypeJSON   = "application/json"
	contentTypeWAV    = "audio/wav"
)

const minutePerBurst = time.Minute

// Error messages.
const (
	errUnexpectedContentType = "unexpected content type: expected audio/wav, got %s"
	errReceivedEmptyAudio    = "received empty audio data"
	errFmtServiceError       = "synthesis service error (%s): %s (code: %s)"
	errFmtServiceNonOK       = "synthesis service returned non-OK status: %s, body: %s"
)

// neuralRequest is the JSON payload the neural backend accepts.
type neuralRequest struct {
	Text       string  `json:"text"`
	Voice      string  `json:"voice"`
	Language   string  `json:"language"`
	Rate       float64 `json:"rate"`
	Pitch      float64 `json:"pitch"`
	Energy     float64 `json:"energy"`
	SampleRate int     `json:"sample_rate"`
}

// neuralErrorResponse is the structured error body the backend returns on
// failure.
type neuralErrorResponse struct {
	Detail    string `json:"detail"`
	ErrorCode string `json:"error_code,omitempty"`
}

// NeuralEngine is the primary backend: an external neural synthesis
// service reached over HTTP. Concurrent calls are bounded by a capacity
// semaphore and a request-per-minute limiter.
type NeuralEngine struct {
	baseURL    string
	httpClient *http.Client
	semaphore  chan struct{}
	limiter    *rate.Limiter
	voices     []core.Voice
	log        *logger.Logger
}

// NewNeuralEngine creates the primary engine client. concurrency bounds
// in-flight requests; requestsPerMinute caps the request rate.
func NewNeuralEngine(
	baseURL string,
	timeout time.Duration,
	concurrency int,
	requestsPerMinute int,
	log *logger.Logger,
) *NeuralEngine {
	return &NeuralEngine{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		semaphore: make(chan struct{}, concurrency),
		limiter: rate.NewLimiter(
			rate.Every(minutePerBurst/time.Duration(requestsPerMinute)),
			requestsPerMinute,
		),
		voices: neuralVoices(),
		log:    log,
	}
}

// Name identifies this engine in dispatch decisions and output metadata.
func (e *NeuralEngine) Name() string {
	return core.EnginePrimary
}

// Voices lists the neural voice catalog.
func (e *NeuralEngine) Voices() []core.Voice {
	return e.voices
}

// Available checks the backend health endpoint.
func (e *NeuralEngine) Available(ctx context.Context) error {
	url := e.baseURL + apiHealth

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return fmt.Errorf("failed to create health check request: %w", err)
	}

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: health check failed for %s: %w",
			core.ErrEngineUnavailable, e.baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: health check returned %s",
			core.ErrEngineUnavailable, resp.Status)
	}

	return nil
}

// Synthesize renders one segment through the neural service and decodes
// the returned WAV into samples.
func (e *NeuralEngine) Synthesize(
	ctx context.Context,
	req core.SynthesisRequest,
) (*core.SynthesisResult, error) {
	select {
	case e.semaphore <- struct{}{}:
		defer func() { <-e.semaphore }()
	case <-ctx.Done():
		return nil, fmt.Errorf("waiting for engine capacity: %w", ctx.Err())
	}

	err := e.limiter.Wait(ctx)
	if err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	wavData, err := e.post(ctx, req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %w", core.ErrEngineTimeout, err)
		}

		return nil, err
	}

	samples, sampleRate, err := audio.DecodeWAV(wavData)
	if err != nil {
		return nil, fmt.Errorf("failed to decode engine audio: %w", err)
	}

	return &core.SynthesisResult{
		Samples:    samples,
		SampleRate: sampleRate,
		EngineUsed: e.Name(),
		Duration:   float64(len(samples)) / float64(sampleRate),
	}, nil
}

func (e *NeuralEngine) post(ctx context.Context, req core.SynthesisRequest) ([]byte, error) {
	payload := neuralRequest{
		Text:       req.Segment.Text,
		Voice:      req.VoiceID,
		Language:   req.Language,
		Rate:       req.Target.RateMultiplier,
		Pitch:      req.Target.PitchShiftSemitones,
		Energy:     req.Target.EnergyGain,
		SampleRate: req.SampleRate,
	}

	requestBody, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := e.baseURL + apiSynthesize

	httpReq, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		url,
		bytes.NewBuffer(requestBody),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set(headerContentType, contentTypeJSON)
	httpReq.Header.Set(headerAccept, contentTypeWAV)

	resp, err := e.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf(
			"failed to send request to synthesis service at %s: %w",
			e.baseURL,
			err,
		)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, parseErrorResponse(resp)
	}

	contentType := resp.Header.Get(headerContentType)
	if contentType != contentTypeWAV {
		return nil, fmt.Errorf(errUnexpectedContentType, contentType)
	}

	audioData, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read audio data: %w", err)
	}

	if len(audioData) == 0 {
		return nil, errors.New(errReceivedEmptyAudio)
	}

	return audioData, nil
}

// parseErrorResponse decodes a structured JSON error from the backend,
// falling back to the raw body so diagnostics are never lost.
func parseErrorResponse(resp *http.Response) error {
	var errorResp neuralErrorResponse

	err := json.NewDecoder(resp.Body).Decode(&errorResp)
	if err == nil {
		return fmt.Errorf(errFmtServiceError,
			resp.Status, errorResp.Detail, errorResp.ErrorCode)
	}

	body, _ := io.ReadAll(resp.Body)

	return fmt.Errorf(errFmtServiceNonOK, resp.Status, string(body))
}
