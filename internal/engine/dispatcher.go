package engine

import (
	"context"
	"fmt"

	"github.com/book-expert/logger"

	"github.com/emovoice/synthesis-service/internal/core"
)

// Dispatcher routes each segment to a backend. The primary engine is tried
// first unless the request pins an engine; on primary failure the segment
// takes exactly one fallback hop to the secondary. A failed engine is never
// retried for the same segment.
type Dispatcher struct {
	primary   core.Engine
	secondary core.Engine
	log       *logger.Logger
}

// NewDispatcher wires the two backends. Both must be non-nil.
func NewDispatcher(primary, secondary core.Engine, log *logger.Logger) *Dispatcher {
	return &Dispatcher{
		primary:   primary,
		secondary: secondary,
		log:       log,
	}
}

// EngineStatus reports one backend's current availability.
type EngineStatus struct {
	Name      string `json:"name"`
	Available bool   `json:"available"`
	Error     string `json:"error,omitempty"`
}

// Status probes both backends' health checks.
func (d *Dispatcher) Status(ctx context.Context) []EngineStatus {
	statuses := make([]EngineStatus, 0, 2)

	for _, backend := range []core.Engine{d.primary, d.secondary} {
		status := EngineStatus{Name: backend.Name(), Available: true}

		if err := backend.Available(ctx); err != nil {
			status.Available = false
			status.Error = err.Error()
		}

		statuses = append(statuses, status)
	}

	return statuses
}

// Voices lists the catalogs of both backends.
func (d *Dispatcher) Voices() []core.Voice {
	voices := make([]core.Voice, 0,
		len(d.primary.Voices())+len(d.secondary.Voices()))
	voices = append(voices, d.primary.Voices()...)
	voices = append(voices, d.secondary.Voices()...)

	return voices
}

// Dispatch renders one segment, recording the engine that actually
// produced the audio in the result. When every eligible engine fails the
// error lists each attempt.
func (d *Dispatcher) Dispatch(
	ctx context.Context,
	req core.SynthesisRequest,
) (*core.SynthesisResult, error) {
	order, err := d.selectionOrder(req.EngineHint)
	if err != nil {
		return nil, err
	}

	var (
		attempted []string
		lastErr   error
	)

	for _, backend := range order {
		result, synthErr := backend.Synthesize(ctx, d.remapVoice(req, backend))
		if synthErr == nil {
			result.EngineUsed = backend.Name()

			return result, nil
		}

		attempted = append(attempted, backend.Name())
		lastErr = synthErr

		// A cancelled request must not burn the fallback hop.
		if ctx.Err() != nil {
			return nil, fmt.Errorf("dispatch cancelled: %w", ctx.Err())
		}

		d.log.Warn("Engine %s failed for segment %d: %v",
			backend.Name(), req.Segment.Index, synthErr)
	}

	return nil, core.NewEngineUnavailableError(attempted, lastErr)
}

// selectionOrder resolves the engine hint into the attempt sequence. A
// pinned engine gets no fallback hop.
func (d *Dispatcher) selectionOrder(hint string) ([]core.Engine, error) {
	switch hint {
	case "", core.EngineAuto:
		return []core.Engine{d.primary, d.secondary}, nil
	case core.EnginePrimary:
		return []core.Engine{d.primary}, nil
	case core.EngineSecondary:
		return []core.Engine{d.secondary}, nil
	default:
		return nil, fmt.Errorf("%w: unknown engine %q", core.ErrValidation, hint)
	}
}

// remapVoice swaps the requested voice for the backend's nearest match so
// a fallback hop keeps roughly the same character of voice.
func (d *Dispatcher) remapVoice(req core.SynthesisRequest, backend core.Engine) core.SynthesisRequest {
	requested := core.Voice{
		ID:       req.VoiceID,
		Gender:   InferGender(req.VoiceID),
		Language: req.Language,
	}

	matched, found := MatchVoice(requested, backend.Voices())
	if !found {
		return req
	}

	if matched.ID != req.VoiceID {
		d.log.Info("Voice %q mapped to %q on engine %s",
			req.VoiceID, matched.ID, backend.Name())
	}

	req.VoiceID = matched.ID

	return req
}
