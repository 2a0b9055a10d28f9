// Package hardware holds the host hardware profile used to shape requests
// and rank models.
package hardware

import (
	"context"
	"fmt"
	"sync"

	log "github.com/sirupsen/logrus"
)

// Profile describes the machine that runs local models.
type Profile struct {
	GPUVRAMGB float64 `json:"gpu_vram_gb"`
	RAMGB     float64 `json:"ram_gb"`
	CPUCores  int     `json:"cpu_cores"`
	GPUModel  string  `json:"gpu_model,omitempty"`
	IsLaptop  bool    `json:"is_laptop"`
	HasGPU    bool    `json:"has_gpu"`
}

// Detector produces a profile for the current host.
type Detector interface {
	Detect(ctx context.Context) (Profile, error)
}

// Store keeps the active profile. The zero value holds no profile.
type Store struct {
	mu      sync.RWMutex
	profile *Profile
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{}
}

// Set replaces the active profile.
func (s *Store) Set(p Profile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := p
	s.profile = &cp
}

// Clear forgets the active profile.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profile = nil
}

// Get returns a copy of the active profile and whether one is set.
func (s *Store) Get() (Profile, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.profile == nil {
		return Profile{}, false
	}
	return *s.profile, true
}

// Current returns the active profile or nil when none is set.
func (s *Store) Current() *Profile {
	p, ok := s.Get()
	if !ok {
		return nil
	}
	return &p
}

// Detect runs the detector and stores its result. On error the previous
// profile is kept.
func (s *Store) Detect(ctx context.Context, d Detector) (Profile, error) {
	p, err := d.Detect(ctx)
	if err != nil {
		return Profile{}, fmt.Errorf("hardware detection failed: %w", err)
	}
	s.Set(p)
	log.Infof("hardware profile: %.1fGB RAM, %.1fGB VRAM (%s), %d cores", p.RAMGB, p.GPUVRAMGB, p.GPUModel, p.CPUCores)
	return p, nil
}
