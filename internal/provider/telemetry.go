package provider

import (
	"sync"
	"time"
)

// DefaultTelemetryCapacity is the ring size used when none is configured.
const DefaultTelemetryCapacity = 30

// TelemetryEntry records one provider attempt.
type TelemetryEntry struct {
	ProviderID ID            `json:"provider_id"`
	Kind       Kind          `json:"kind"`
	Duration   time.Duration `json:"duration"`
	Success    bool          `json:"success"`
	Error      string        `json:"error,omitempty"`
	Timestamp  time.Time     `json:"timestamp"`
}

// TelemetryRing is a fixed-size circular buffer of attempts. When full the
// oldest entry is overwritten.
type TelemetryRing struct {
	mu     sync.RWMutex
	buffer []TelemetryEntry
	head   int // next write position
	count  int
}

// NewTelemetryRing creates a ring holding at most size entries.
// If size is <= 0, DefaultTelemetryCapacity is used.
func NewTelemetryRing(size int) *TelemetryRing {
	if size <= 0 {
		size = DefaultTelemetryCapacity
	}
	return &TelemetryRing{buffer: make([]TelemetryEntry, size)}
}

// Add appends an entry, evicting the oldest when the ring is full.
func (r *TelemetryRing) Add(e TelemetryEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.buffer[r.head] = e
	r.head = (r.head + 1) % len(r.buffer)
	if r.count < len(r.buffer) {
		r.count++
	}
}

// Snapshot returns the stored entries oldest first.
func (r *TelemetryRing) Snapshot() []TelemetryEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]TelemetryEntry, r.count)
	start := (r.head - r.count + len(r.buffer)) % len(r.buffer)
	for i := 0; i < r.count; i++ {
		out[i] = r.buffer[(start+i)%len(r.buffer)]
	}
	return out
}

// Len returns the number of stored entries.
func (r *TelemetryRing) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.count
}

// Cap returns the ring capacity.
func (r *TelemetryRing) Cap() int {
	return len(r.buffer)
}
