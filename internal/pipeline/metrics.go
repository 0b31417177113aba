package pipeline

import (
	"sync/atomic"
	"time"
)

// Metrics tracks pipeline counters since process start. All methods are
// safe for concurrent use.
type Metrics struct {
	totalRequests    atomic.Int64
	totalFailures    atomic.Int64
	segmentsRendered atomic.Int64
	fallbackSegments atomic.Int64
	startTime        time.Time
}

// MetricsSnapshot is a point-in-time view of the counters.
type MetricsSnapshot struct {
	TotalRequests    int64   `json:"total_requests"`
	TotalFailures    int64   `json:"total_failures"`
	SegmentsRendered int64   `json:"segments_rendered"`
	FallbackSegments int64   `json:"fallback_segments"`
	CacheHits        int64   `json:"cache_hits"`
	CacheMisses      int64   `json:"cache_misses"`
	UptimeSeconds    float64 `json:"uptime_seconds"`
}

// NewMetrics starts the uptime clock.
func NewMetrics() *Metrics {
	return &Metrics{startTime: time.Now()}
}

func (m *Metrics) recordRequest()         { m.totalRequests.Add(1) }
func (m *Metrics) recordFailure()         { m.totalFailures.Add(1) }
func (m *Metrics) recordSegments(n int64) { m.segmentsRendered.Add(n) }
func (m *Metrics) recordFallback()        { m.fallbackSegments.Add(1) }

// Snapshot returns the current counter values. Cache counters are filled
// in by the pipeline, which owns the cache.
func (m *Metrics) Snapshot() MetricsSnapshot {
	return MetricsSnapshot{
		TotalRequests:    m.totalRequests.Load(),
		TotalFailures:    m.totalFailures.Load(),
		SegmentsRendered: m.segmentsRendered.Load(),
		FallbackSegments: m.fallbackSegments.Load(),
		UptimeSeconds:    time.Since(m.startTime).Seconds(),
	}
}
