// Package artifact persists synthesized audio and its sidecar metadata to
// the output directory and ages old artifacts out.
package artifact

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/book-expert/logger"
	"github.com/google/uuid"

	"github.com/emovoice/synthesis-service/internal/audio"
	"github.com/emovoice/synthesis-service/internal/core"
)

// File layout constants.
const (
	defaultDirPermissions  = 0o750
	defaultFilePermissions = 0o600
	invalidCharReplacement = "_"

	extWAV  = ".wav"
	extJSON = ".json"

	timestampLayout = "20060102-150405"
)

// Metadata is the sidecar document written next to each WAV artifact.
type Metadata struct {
	Style           string               `json:"style"`
	Intensity       int                  `json:"intensity"`
	Voice           string               `json:"voice"`
	EngineUsed      string               `json:"engine_used"`
	DurationSeconds float64              `json:"duration_seconds"`
	SampleRate      int                  `json:"sample_rate"`
	SegmentCount    int                  `json:"segment_count"`
	Timings         []core.SegmentTiming `json:"timings"`
	Quality         *core.QualityReport  `json:"quality,omitempty"`
	CreatedAt       time.Time            `json:"created_at"`
}

// Store writes artifacts under one output directory.
type Store struct {
	outputDir string
	log       *logger.Logger
}

// NewStore creates the output directory if needed.
func NewStore(outputDir string, log *logger.Logger) (*Store, error) {
	err := os.MkdirAll(outputDir, defaultDirPermissions)
	if err != nil {
		return nil, fmt.Errorf("failed to create output directory %s: %w", outputDir, err)
	}

	return &Store{outputDir: outputDir, log: log}, nil
}

// Save writes the WAV and its metadata sidecar, returning both paths. The
// name prefix is sanitized; a short unique suffix prevents collisions.
func (s *Store) Save(
	namePrefix string,
	assembled *core.AssembledAudio,
	meta Metadata,
) (audioPath, metadataPath string, err error) {
	base := fmt.Sprintf("%s-%s-%s",
		SanitizeFilename(namePrefix),
		time.Now().UTC().Format(timestampLayout),
		uuid.NewString()[:8],
	)

	audioPath = filepath.Join(s.outputDir, base+extWAV)
	metadataPath = filepath.Join(s.outputDir, base+extJSON)

	wavData := audio.EncodeWAV(assembled.Samples, assembled.SampleRate)

	err = os.WriteFile(audioPath, wavData, defaultFilePermissions)
	if err != nil {
		return "", "", fmt.Errorf("failed to write audio file: %w", err)
	}

	metaData, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return "", "", fmt.Errorf("failed to marshal metadata: %w", err)
	}

	err = os.WriteFile(metadataPath, metaData, defaultFilePermissions)
	if err != nil {
		return "", "", fmt.Errorf("failed to write metadata file: %w", err)
	}

	s.log.Info("Saved artifact %s (%d samples, engine %s)",
		audioPath, len(assembled.Samples), meta.EngineUsed)

	return audioPath, metadataPath, nil
}

// Cleanup removes artifacts whose modification time is older than the
// retention window. It returns the number of files removed.
func (s *Store) Cleanup(now time.Time, retention time.Duration) (int, error) {
	entries, err := os.ReadDir(s.outputDir)
	if err != nil {
		return 0, fmt.Errorf("failed to read output directory: %w", err)
	}

	removed := 0

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		ext := filepath.Ext(entry.Name())
		if ext != extWAV && ext != extJSON {
			continue
		}

		info, infoErr := entry.Info()
		if infoErr != nil {
			continue
		}

		if now.Sub(info.ModTime()) <= retention {
			continue
		}

		path := filepath.Join(s.outputDir, entry.Name())

		removeErr := os.Remove(path)
		if removeErr != nil {
			s.log.Warn("Failed to remove expired artifact %s: %v", path, removeErr)

			continue
		}

		removed++
	}

	return removed, nil
}

// SanitizeFilename replaces characters that are invalid in most
// filesystems.
func SanitizeFilename(filename string) string {
	replacer := strings.NewReplacer(
		"<", invalidCharReplacement,
		">", invalidCharReplacement,
		":", invalidCharReplacement,
		"\"", invalidCharReplacement,
		"/", invalidCharReplacement,
		"\\", invalidCharReplacement,
		"|", invalidCharReplacement,
		"?", invalidCharReplacement,
		"*", invalidCharReplacement,
		" ", invalidCharReplacement,
	)

	return replacer.Replace(filename)
}
