// Package cache provides the in-memory synthesis result cache.
//
// Identical segment requests share one computation via single-flight, and
// completed entries age out after a retention window. Entries still being
// computed are never evicted.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/book-expert/logger"
	"golang.org/x/sync/singleflight"

	"github.com/emovoice/synthesis-service/internal/core"
)

// State describes one cache entry's lifecycle position.
type State int

// Entry states.
const (
	StatePending State = iota
	StateReady
	StateFailed
)

// ComputeFunc produces the synthesis result on a cache miss.
type ComputeFunc func(ctx context.Context) (*core.SynthesisResult, error)

type entry struct {
	state   State
	result  *core.SynthesisResult
	created time.Time
}

// Cache stores synthesis results keyed by request fingerprint.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]*entry
	group   singleflight.Group

	retention time.Duration
	clock     func() time.Time
	log       *logger.Logger

	hits   atomic.Int64
	misses atomic.Int64
}

// New creates a cache whose completed entries live for the given retention.
func New(retention time.Duration, log *logger.Logger) *Cache {
	return &Cache{
		entries:   make(map[string]*entry),
		retention: retention,
		clock:     time.Now,
		log:       log,
	}
}

// Fingerprint derives the cache key from every request field that affects
// the rendered audio. Two requests with equal fingerprints are
// interchangeable. The engine hint is part of the key so a pinned request
// never reuses audio another backend rendered; an empty hint and "auto"
// name the same selection policy and share entries.
func Fingerprint(req core.SynthesisRequest) string {
	hint := req.EngineHint
	if hint == "" {
		hint = core.EngineAuto
	}

	sum := sha256.Sum256(fmt.Appendf(nil,
		"%s|%s|%d|%s|%s|%s|%d|%.6f|%.6f|%.6f|%d",
		req.Segment.Text,
		req.Style,
		req.Intensity,
		hint,
		req.VoiceID,
		req.Language,
		req.SampleRate,
		req.Target.RateMultiplier,
		req.Target.PitchShiftSemitones,
		req.Target.EnergyGain,
		req.Target.PauseAfterMs,
	))

	return hex.EncodeToString(sum[:])
}

// GetOrCompute returns the cached result for the request, or runs compute
// exactly once for all concurrent callers with the same fingerprint. A
// previously failed entry is recomputed rather than replayed.
func (c *Cache) GetOrCompute(
	ctx context.Context,
	req core.SynthesisRequest,
	compute ComputeFunc,
) (*core.SynthesisResult, error) {
	key := Fingerprint(req)

	if result, found := c.lookup(key); found {
		c.hits.Add(1)

		return result, nil
	}

	c.misses.Add(1)

	value, err, _ := c.group.Do(key, func() (any, error) {
		// A concurrent caller may have completed while we queued.
		if result, found := c.lookup(key); found {
			return result, nil
		}

		c.setPending(key)

		result, computeErr := compute(ctx)
		if computeErr != nil {
			c.setFailed(key)

			return nil, fmt.Errorf("synthesis compute failed: %w", computeErr)
		}

		c.setReady(key, result)

		return result, nil
	})
	if err != nil {
		return nil, err
	}

	result, ok := value.(*core.SynthesisResult)
	if !ok {
		return nil, fmt.Errorf("unexpected cache value type %T", value)
	}

	return result, nil
}

// lookup returns a ready result. Pending and failed entries are misses.
func (c *Cache) lookup(key string) (*core.SynthesisResult, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	cached, found := c.entries[key]
	if !found || cached.state != StateReady {
		return nil, false
	}

	return cached.result, true
}

func (c *Cache) setPending(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = &entry{state: StatePending, created: c.clock()}
}

func (c *Cache) setReady(key string, result *core.SynthesisResult) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = &entry{state: StateReady, result: result, created: c.clock()}
}

func (c *Cache) setFailed(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = &entry{state: StateFailed, created: c.clock()}
}

// Sweep evicts completed entries older than the retention window as of
// now. Pending entries always survive. It returns the eviction count.
func (c *Cache) Sweep(now time.Time) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	evicted := 0

	for key, cached := range c.entries {
		if cached.state == StatePending {
			continue
		}

		if now.Sub(cached.created) > c.retention {
			delete(c.entries, key)

			evicted++
		}
	}

	return evicted
}

// StartSweeper runs periodic sweeps until the context is cancelled.
func (c *Cache) StartSweeper(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				if evicted := c.Sweep(now); evicted > 0 {
					c.log.Info("Cache sweep evicted %d entries", evicted)
				}
			}
		}
	}()
}

// Len reports the number of live entries.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.entries)
}

// Stats reports cumulative hit and miss counts.
func (c *Cache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

// SetClock overrides the time source, used by tests to age entries.
func (c *Cache) SetClock(clock func() time.Time) {
	c.clock = clock
}
