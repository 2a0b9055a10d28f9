package provider

import "time"

// CircuitConfig holds circuit breaker thresholds.
type CircuitConfig struct {
	FailureThreshold int
	Cooldown         time.Duration
}

// DefaultCircuitConfig returns the stock breaker settings: three consecutive
// failures open the circuit for one minute.
func DefaultCircuitConfig() CircuitConfig {
	return CircuitConfig{FailureThreshold: 3, Cooldown: time.Minute}
}

func (c CircuitConfig) sanitized() CircuitConfig {
	if c.FailureThreshold < 1 {
		c.FailureThreshold = 1
	}
	if c.Cooldown < 0 {
		c.Cooldown = 0
	}
	return c
}

// CircuitState is the per-provider breaker state.
type CircuitState struct {
	Failures int       `json:"failures"`
	OpenedAt time.Time `json:"opened_at,omitzero"`
}

// IsOpen reports whether the circuit rejects calls at now.
func (s CircuitState) IsOpen(cfg CircuitConfig, now time.Time) bool {
	return s.Failures >= cfg.FailureThreshold &&
		!s.OpenedAt.IsZero() &&
		now.Sub(s.OpenedAt) < cfg.Cooldown
}

// expired reports whether an opened circuit has served its cooldown.
func (s CircuitState) expired(cfg CircuitConfig, now time.Time) bool {
	return !s.OpenedAt.IsZero() && now.Sub(s.OpenedAt) >= cfg.Cooldown
}

// recordFailure increments the failure count and reports whether this
// failure opened the circuit.
func (s *CircuitState) recordFailure(cfg CircuitConfig, now time.Time) bool {
	s.Failures++
	if s.Failures >= cfg.FailureThreshold && s.OpenedAt.IsZero() {
		s.OpenedAt = now
		return true
	}
	return false
}
