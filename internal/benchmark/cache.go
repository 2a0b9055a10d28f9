// Package benchmark measures real model throughput and caches the results so
// the scoring engine can prefer measured numbers over catalog values.
package benchmark

import (
	"context"
	"strings"
	"sync/atomic"
	"time"

	"github.com/anclora/orchestrator/internal/scoring"
	"github.com/anclora/orchestrator/internal/store"
	"github.com/goccy/go-json"
	log "github.com/sirupsen/logrus"
)

// DefaultTTL is how long a result stays fresh.
const DefaultTTL = 24 * time.Hour

const keyPrefix = "benchmark:"

// Result is one benchmark measurement.
type Result struct {
	ModelID         string        `json:"model_id"`
	Latency         time.Duration `json:"latency"`
	TokensPerSecond float64       `json:"tokens_per_second"`
	Timestamp       time.Time     `json:"timestamp"`
	Success         bool          `json:"success"`
	Error           string        `json:"error,omitempty"`
}

// IsFresh reports whether r was taken less than ttl before now.
func IsFresh(r Result, ttl time.Duration, now time.Time) bool {
	return now.Sub(r.Timestamp) < ttl
}

// Cache persists the latest result per model.
type Cache struct {
	kv  store.KV
	ttl atomic.Int64
	now func() time.Time
}

// NewCache creates a cache over kv. A non-positive ttl uses DefaultTTL.
func NewCache(kv store.KV, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	c := &Cache{kv: kv, now: time.Now}
	c.ttl.Store(int64(ttl))
	return c
}

// TTL returns the freshness window.
func (c *Cache) TTL() time.Duration { return time.Duration(c.ttl.Load()) }

// SetTTL changes the freshness window. Non-positive values are ignored.
// Safe to call while lookups are in flight.
func (c *Cache) SetTTL(ttl time.Duration) {
	if ttl > 0 {
		c.ttl.Store(int64(ttl))
	}
}

// Put stores r, replacing any previous result for the model.
func (c *Cache) Put(ctx context.Context, r Result) error {
	return store.SetJSON(ctx, c.kv, keyPrefix+r.ModelID, r)
}

// Get returns the stored result for a model, fresh or not.
func (c *Cache) Get(ctx context.Context, modelID string) (Result, bool, error) {
	return store.GetJSON[Result](ctx, c.kv, keyPrefix+modelID)
}

// All returns every stored result keyed by model id.
func (c *Cache) All(ctx context.Context) (map[string]Result, error) {
	entries, err := c.kv.List(ctx, keyPrefix)
	if err != nil {
		return nil, err
	}
	out := make(map[string]Result, len(entries))
	for key, raw := range entries {
		var r Result
		if err := json.Unmarshal(raw, &r); err != nil {
			log.Warnf("skipping unreadable benchmark %s: %v", key, err)
			continue
		}
		out[strings.TrimPrefix(key, keyPrefix)] = r
	}
	return out, nil
}

// Fresh returns the stored result when it is within the TTL.
func (c *Cache) Fresh(ctx context.Context, modelID string) (Result, bool) {
	r, ok, err := c.Get(ctx, modelID)
	if err != nil {
		log.Debugf("benchmark lookup for %s failed: %v", modelID, err)
		return Result{}, false
	}
	if !ok || !IsFresh(r, c.TTL(), c.now()) {
		return Result{}, false
	}
	return r, true
}

// Overlay replaces throughput and latency with a fresh successful
// measurement when one exists.
func (c *Cache) Overlay(modelID string, m scoring.Metrics) scoring.Metrics {
	r, ok := c.Fresh(context.Background(), modelID)
	if !ok || !r.Success || r.TokensPerSecond <= 0 {
		return m
	}
	m.TokensPerSecond = r.TokensPerSecond
	m.FirstTokenLatencyMs = float64(r.Latency.Milliseconds())
	m.AvgTokenLatencyMs = 1000 / r.TokensPerSecond
	return m
}

var _ scoring.MetricsOverlay = (*Cache)(nil)
