package core

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors shared across the pipeline.
var (
	// ErrValidation is the base class for synchronous input rejection.
	ErrValidation = errors.New("validation failed")

	// ErrEmptyText indicates the input was empty after trimming.
	ErrEmptyText = fmt.Errorf("%w: text cannot be empty", ErrValidation)

	// ErrTextTooLong indicates the input exceeds the configured maximum.
	ErrTextTooLong = fmt.Errorf("%w: text exceeds maximum length", ErrValidation)

	// ErrUnknownStyle indicates an unrecognized style name.
	ErrUnknownStyle = fmt.Errorf("%w: unknown style", ErrValidation)

	// ErrEngineTimeout marks a primary engine call that exceeded its
	// deadline. It is logged and triggers fallback, never surfaced.
	ErrEngineTimeout = errors.New("engine call timed out")

	// ErrEngineUnavailable is fatal: every engine failed for a segment.
	ErrEngineUnavailable = errors.New("no synthesis engine available")

	// ErrUnsupportedVoice indicates a voice the engine cannot render.
	ErrUnsupportedVoice = errors.New("unsupported voice")
)

// NewTextTooLongError reports the offending and maximum lengths.
func NewTextTooLongError(length, maxLength int) error {
	return fmt.Errorf("%w: %d characters (maximum %d)", ErrTextTooLong, length, maxLength)
}

// NewUnknownStyleError names the rejected style.
func NewUnknownStyleError(style string) error {
	return fmt.Errorf("%w: %q", ErrUnknownStyle, style)
}

// NewEngineUnavailableError lists every engine attempted for the segment.
func NewEngineUnavailableError(attempted []string, lastErr error) error {
	return fmt.Errorf("%w: attempted engines [%s]: %w",
		ErrEngineUnavailable, strings.Join(attempted, ", "), lastErr)
}
