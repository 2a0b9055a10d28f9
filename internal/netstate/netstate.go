// Package netstate tracks whether the inference backend is reachable and
// notifies subscribers when that changes.
package netstate

import (
	"sync"

	"github.com/anclora/orchestrator/internal/metrics"
	log "github.com/sirupsen/logrus"
)

// State reports current connectivity.
type State interface {
	Online() bool
}

// Notifier is a State that announces transitions.
type Notifier interface {
	State
	// Subscribe registers fn for transitions and returns an unsubscribe func.
	Subscribe(fn func(online bool)) (unsubscribe func())
}

type subscribers struct {
	mu     sync.Mutex
	nextID int
	fns    map[int]func(bool)
}

func (s *subscribers) add(fn func(bool)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fns == nil {
		s.fns = make(map[int]func(bool))
	}
	id := s.nextID
	s.nextID++
	s.fns[id] = fn
	return func() {
		s.mu.Lock()
		delete(s.fns, id)
		s.mu.Unlock()
	}
}

func (s *subscribers) notify(online bool) {
	s.mu.Lock()
	fns := make([]func(bool), 0, len(s.fns))
	for _, fn := range s.fns {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	metrics.SetOnline(online)
	for _, fn := range fns {
		func() {
			defer func() {
				if r := recover(); r != nil {
					log.Errorf("panic in network state subscriber: %v", r)
				}
			}()
			fn(online)
		}()
	}
}

// Manual is a State driven by explicit calls.
type Manual struct {
	mu     sync.RWMutex
	online bool
	subs   subscribers
}

// NewManual creates a Manual starting in the given state.
func NewManual(online bool) *Manual {
	return &Manual{online: online}
}

// Online returns the state last passed to Set.
func (m *Manual) Online() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.online
}

// Set changes the state and notifies subscribers on a transition.
func (m *Manual) Set(online bool) {
	m.mu.Lock()
	changed := m.online != online
	m.online = online
	m.mu.Unlock()
	if changed {
		m.subs.notify(online)
	}
}

// Subscribe calls fn on every transition made through Set.
func (m *Manual) Subscribe(fn func(bool)) func() {
	return m.subs.add(fn)
}
