// Package config provides the configuration structure for the synthesis service.
package config

import (
	"fmt"

	"github.com/book-expert/configurator"
	"github.com/book-expert/logger"
)

// Defaults applied when the TOML file leaves a field unset.
const (
	DefaultMaxTextLength     = 5000
	DefaultMaxSegmentLength  = 400
	DefaultWorkers           = 4
	DefaultSampleRate        = 22050
	DefaultLanguage          = "en"
	DefaultVoice             = "ember"
	DefaultPrimaryTimeoutSec = 120
	DefaultPrimaryCapacity   = 1
	DefaultRequestsPerMinute = 60
	DefaultCrossfadeMs       = 30
	DefaultTargetRMS         = 0.15
	DefaultRetentionSeconds  = 3600
	DefaultSweepSeconds      = 300
	DefaultVerifyTimeoutSec  = 60
	DefaultFlagThreshold     = 0.4
)

// ServiceConfig holds the pipeline-wide limits and defaults.
type ServiceConfig struct {
	// MaxTextLength is the input cap after trimming. Surfaces with
	// tighter limits configure it down from the default.
	MaxTextLength    int    `toml:"max_text_length"`
	MaxSegmentLength int    `toml:"max_segment_length"`
	Workers          int    `toml:"workers"`
	SampleRate       int    `toml:"sample_rate"`
	DefaultVoice     string `toml:"default_voice"`
	DefaultLanguage  string `toml:"default_language"`
	JitterSeed       int64  `toml:"jitter_seed"`
}

// PrimaryEngineConfig configures the neural HTTP backend.
type PrimaryEngineConfig struct {
	URL               string `toml:"url"`
	TimeoutSeconds    int    `toml:"timeout_seconds"`
	Concurrency       int    `toml:"concurrency"`
	RequestsPerMinute int    `toml:"requests_per_minute"`
}

// SecondaryEngineConfig configures the deterministic fallback backend.
type SecondaryEngineConfig struct {
	SampleRate int `toml:"sample_rate"`
}

// EnginesConfig groups both backends.
type EnginesConfig struct {
	Primary   PrimaryEngineConfig   `toml:"primary"`
	Secondary SecondaryEngineConfig `toml:"secondary"`
}

// CacheConfig controls the synthesis cache retention window.
type CacheConfig struct {
	RetentionSeconds     int `toml:"retention_seconds"`
	SweepIntervalSeconds int `toml:"sweep_interval_seconds"`
}

// AssemblyConfig controls joining, loudness, and de-essing.
type AssemblyConfig struct {
	CrossfadeMs int     `toml:"crossfade_ms"`
	TargetRMS   float64 `toml:"target_rms"`
	DeEss       bool    `toml:"de_ess"`
}

// VerifyConfig controls the advisory speech-to-text check.
type VerifyConfig struct {
	Enabled        bool    `toml:"enabled"`
	URL            string  `toml:"url"`
	Model          string  `toml:"model"`
	TimeoutSeconds int     `toml:"timeout_seconds"`
	FlagThreshold  float64 `toml:"flag_threshold"`
}

// NATSConfig holds the messaging configuration for the worker.
type NATSConfig struct {
	URL                      string `toml:"url"`
	SpeechRequestedSubject   string `toml:"speech_requested_subject"`
	SpeechSynthesizedSubject string `toml:"speech_synthesized_subject"`
	AudioObjectStoreBucket   string `toml:"audio_object_store_bucket"`
}

// PathsConfig holds the filesystem locations the service writes to.
type PathsConfig struct {
	OutputDir        string `toml:"output_dir"`
	BaseLogsDir      string `toml:"base_logs_dir"`
	RetentionSeconds int    `toml:"retention_seconds"`
}

// Config is the root configuration structure.
type Config struct {
	Service  ServiceConfig  `toml:"service"`
	Engines  EnginesConfig  `toml:"engines"`
	Cache    CacheConfig    `toml:"cache"`
	Assembly AssemblyConfig `toml:"assembly"`
	Verify   VerifyConfig   `toml:"verify"`
	NATS     NATSConfig     `toml:"nats"`
	Paths    PathsConfig    `toml:"paths"`
}

// Load loads the configuration via the central configurator and fills in
// defaults for anything the file left unset.
func Load(log *logger.Logger) (*Config, error) {
	var cfg Config

	err := configurator.Load(&cfg, log)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration from configurator: %w", err)
	}

	cfg.ApplyDefaults()

	return &cfg, nil
}

// ApplyDefaults fills zero-valued fields with the package defaults.
func (c *Config) ApplyDefaults() {
	applyServiceDefaults(&c.Service)
	applyEngineDefaults(&c.Engines, c.Service.SampleRate)

	if c.Cache.RetentionSeconds <= 0 {
		c.Cache.RetentionSeconds = DefaultRetentionSeconds
	}

	if c.Cache.SweepIntervalSeconds <= 0 {
		c.Cache.SweepIntervalSeconds = DefaultSweepSeconds
	}

	if c.Assembly.CrossfadeMs <= 0 {
		c.Assembly.CrossfadeMs = DefaultCrossfadeMs
	}

	if c.Assembly.TargetRMS <= 0 {
		c.Assembly.TargetRMS = DefaultTargetRMS
	}

	if c.Verify.TimeoutSeconds <= 0 {
		c.Verify.TimeoutSeconds = DefaultVerifyTimeoutSec
	}

	if c.Verify.FlagThreshold <= 0 {
		c.Verify.FlagThreshold = DefaultFlagThreshold
	}

	if c.Paths.RetentionSeconds <= 0 {
		c.Paths.RetentionSeconds = DefaultRetentionSeconds
	}
}

func applyServiceDefaults(s *ServiceConfig) {
	if s.MaxTextLength <= 0 {
		s.MaxTextLength = DefaultMaxTextLength
	}

	if s.MaxSegmentLength <= 0 {
		s.MaxSegmentLength = DefaultMaxSegmentLength
	}

	if s.Workers <= 0 {
		s.Workers = DefaultWorkers
	}

	if s.SampleRate <= 0 {
		s.SampleRate = DefaultSampleRate
	}

	if s.DefaultVoice == "" {
		s.DefaultVoice = DefaultVoice
	}

	if s.DefaultLanguage == "" {
		s.DefaultLanguage = DefaultLanguage
	}
}

func applyEngineDefaults(e *EnginesConfig, sampleRate int) {
	if e.Primary.TimeoutSeconds <= 0 {
		e.Primary.TimeoutSeconds = DefaultPrimaryTimeoutSec
	}

	if e.Primary.Concurrency <= 0 {
		e.Primary.Concurrency = DefaultPrimaryCapacity
	}

	if e.Primary.RequestsPerMinute <= 0 {
		e.Primary.RequestsPerMinute = DefaultRequestsPerMinute
	}

	if e.Secondary.SampleRate <= 0 {
		e.Secondary.SampleRate = sampleRate
	}
}
