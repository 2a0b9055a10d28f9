// Copyright 2026 The switchAILocal Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package provider

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/anclora/orchestrator/internal/metrics"
	log "github.com/sirupsen/logrus"
)

// DefaultCallTimeout bounds a single provider invocation.
const DefaultCallTimeout = 300 * time.Second

// Options configures a Registry.
type Options struct {
	Circuit           CircuitConfig
	TelemetryCapacity int
	CallTimeout       time.Duration
	// Clock is used for circuit and telemetry timestamps. Defaults to time.Now.
	Clock func() time.Time
}

// Registry owns the registered providers of every kind along with their
// circuit state and the shared telemetry ring.
type Registry struct {
	mu       sync.Mutex
	text     []Provider[TextRequest, string]
	image    []Provider[ImageRequest, ImageResult]
	tts      []Provider[TTSRequest, AudioResult]
	stt      []Provider[STTRequest, Transcription]
	circuits map[ID]*CircuitState
	circuit  CircuitConfig

	telemetry   *TelemetryRing
	callTimeout time.Duration
	now         func() time.Time
}

// NewRegistry creates an empty registry.
func NewRegistry(opts Options) *Registry {
	if opts.Circuit == (CircuitConfig{}) {
		opts.Circuit = DefaultCircuitConfig()
	}
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = DefaultCallTimeout
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return &Registry{
		circuits:    make(map[ID]*CircuitState),
		circuit:     opts.Circuit.sanitized(),
		telemetry:   NewTelemetryRing(opts.TelemetryCapacity),
		callTimeout: opts.CallTimeout,
		now:         opts.Clock,
	}
}

// RegisterText adds a text provider.
func (r *Registry) RegisterText(p Provider[TextRequest, string]) error {
	return register(r, &r.text, KindText, p)
}

// RegisterImage adds an image provider.
func (r *Registry) RegisterImage(p Provider[ImageRequest, ImageResult]) error {
	return register(r, &r.image, KindImage, p)
}

// RegisterTTS adds a speech synthesis provider.
func (r *Registry) RegisterTTS(p Provider[TTSRequest, AudioResult]) error {
	return register(r, &r.tts, KindTTS, p)
}

// RegisterSTT adds a transcription provider.
func (r *Registry) RegisterSTT(p Provider[STTRequest, Transcription]) error {
	return register(r, &r.stt, KindSTT, p)
}

func register[In, Out any](r *Registry, list *[]Provider[In, Out], kind Kind, p Provider[In, Out]) error {
	if err := p.ID.Validate(); err != nil {
		return err
	}
	if p.Invoke == nil {
		return fmt.Errorf("provider %s: invoke function is required", p.ID)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range *list {
		if existing.ID == p.ID {
			return fmt.Errorf("%w: %s/%s", ErrDuplicateProvider, kind, p.ID)
		}
	}
	*list = append(*list, p)
	log.Debugf("registered %s provider %s (tier %s)", kind, p.ID, p.Tier)
	return nil
}

// ExecuteText runs a text request through the fallback chain.
func (r *Registry) ExecuteText(ctx context.Context, req TextRequest, opts ExecuteOptions) (string, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return "", &ValidationError{Field: "prompt", Reason: "is required"}
	}
	r.mu.Lock()
	chain := append([]Provider[TextRequest, string](nil), r.text...)
	r.mu.Unlock()

	timeout := r.callTimeout
	if req.Timeout > 0 {
		timeout = req.Timeout
	}
	return execute(ctx, r, KindText, chain, req, opts, timeout)
}

// ExecuteImage runs an image request through the fallback chain.
func (r *Registry) ExecuteImage(ctx context.Context, req ImageRequest, opts ExecuteOptions) (ImageResult, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return ImageResult{}, &ValidationError{Field: "prompt", Reason: "is required"}
	}
	r.mu.Lock()
	chain := append([]Provider[ImageRequest, ImageResult](nil), r.image...)
	r.mu.Unlock()
	return execute(ctx, r, KindImage, chain, req, opts, r.callTimeout)
}

// ExecuteTTS runs a speech synthesis request through the fallback chain.
func (r *Registry) ExecuteTTS(ctx context.Context, req TTSRequest, opts ExecuteOptions) (AudioResult, error) {
	if strings.TrimSpace(req.Text) == "" {
		return AudioResult{}, &ValidationError{Field: "text", Reason: "is required"}
	}
	r.mu.Lock()
	chain := append([]Provider[TTSRequest, AudioResult](nil), r.tts...)
	r.mu.Unlock()
	return execute(ctx, r, KindTTS, chain, req, opts, r.callTimeout)
}

// ExecuteSTT runs a transcription request through the fallback chain.
func (r *Registry) ExecuteSTT(ctx context.Context, req STTRequest, opts ExecuteOptions) (Transcription, error) {
	if len(req.Audio) == 0 {
		return Transcription{}, &ValidationError{Field: "audio", Reason: "is empty"}
	}
	r.mu.Lock()
	chain := append([]Provider[STTRequest, Transcription](nil), r.stt...)
	r.mu.Unlock()
	return execute(ctx, r, KindSTT, chain, req, opts, r.callTimeout)
}

// order sorts by ascending tier, keeping registration order within a tier,
// then moves the preferred provider to the front.
func order[In, Out any](chain []Provider[In, Out], preferred ID) []Provider[In, Out] {
	sort.SliceStable(chain, func(i, j int) bool { return chain[i].Tier < chain[j].Tier })
	if preferred == "" {
		return chain
	}
	for i, p := range chain {
		if p.ID == preferred {
			if i > 0 {
				copy(chain[1:i+1], chain[:i])
				chain[0] = p
			}
			break
		}
	}
	return chain
}

func execute[In, Out any](ctx context.Context, r *Registry, kind Kind, chain []Provider[In, Out], in In, opts ExecuteOptions, timeout time.Duration) (Out, error) {
	var zero Out
	chain = order(chain, opts.PreferredID)
	if opts.PreferredID != "" && !opts.AllowFallback && len(chain) > 0 && chain[0].ID == opts.PreferredID {
		// Pinned: a skipped preferred provider must not hand the request on.
		chain = chain[:1]
	}

	attempts := 0
	var lastErr error
	for _, p := range chain {
		if err := ctx.Err(); err != nil {
			return zero, err
		}
		if r.circuitOpen(p.ID) {
			log.Debugf("%s provider %s skipped: circuit open", kind, p.ID)
			continue
		}
		if p.Available != nil {
			ok, err := p.Available(ctx)
			if err != nil {
				log.Debugf("%s provider %s skipped: availability check failed: %v", kind, p.ID, err)
				continue
			}
			if !ok {
				log.Debugf("%s provider %s skipped: unavailable", kind, p.ID)
				continue
			}
		}

		attempts++
		start := time.Now()
		out, err := invoke(ctx, p, in, timeout)
		elapsed := time.Since(start)

		if err != nil && ctx.Err() != nil {
			// Caller gave up; the provider is not at fault.
			log.Debugf("%s provider %s cancelled after %s", kind, p.ID, elapsed)
			return zero, ctx.Err()
		}
		if err == nil {
			r.recordSuccess(kind, p.ID, elapsed)
			return out, nil
		}
		var verr *ValidationError
		if errors.As(err, &verr) {
			// Provider-specific limits reject the request itself.
			log.Debugf("%s provider %s rejected request: %v", kind, p.ID, err)
			return zero, err
		}

		lastErr = err
		r.recordFailure(kind, p.ID, elapsed, err)
		if !opts.AllowFallback {
			break
		}
	}

	if attempts == 0 {
		return zero, fmt.Errorf("%w for %s", ErrNoProviders, kind)
	}
	metrics.RecordChainExhausted(string(kind))
	return zero, &ChainError{Kind: kind, Attempts: attempts, Last: lastErr}
}

type result[Out any] struct {
	out Out
	err error
}

// invoke calls the provider under a deadline. Providers that ignore their
// context still lose the race against the timer.
func invoke[In, Out any](ctx context.Context, p Provider[In, Out], in In, timeout time.Duration) (Out, error) {
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan result[Out], 1)
	go func() {
		out, err := p.Invoke(callCtx, in)
		done <- result[Out]{out: out, err: err}
	}()

	var zero Out
	select {
	case res := <-done:
		if res.err != nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return zero, fmt.Errorf("%w: %s after %s", ErrTimeout, p.ID, timeout)
		}
		return res.out, res.err
	case <-callCtx.Done():
		if ctx.Err() != nil {
			return zero, ctx.Err()
		}
		return zero, fmt.Errorf("%w: %s after %s", ErrTimeout, p.ID, timeout)
	}
}

func (r *Registry) circuitOpen(id ID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	state, ok := r.circuits[id]
	if !ok {
		return false
	}
	now := r.now()
	if state.IsOpen(r.circuit, now) {
		return true
	}
	if state.expired(r.circuit, now) {
		delete(r.circuits, id)
	}
	return false
}

func (r *Registry) recordSuccess(kind Kind, id ID, elapsed time.Duration) {
	r.mu.Lock()
	delete(r.circuits, id)
	now := r.now()
	r.mu.Unlock()

	r.telemetry.Add(TelemetryEntry{ProviderID: id, Kind: kind, Duration: elapsed, Success: true, Timestamp: now})
	metrics.RecordProviderAttempt(string(kind), string(id), "success", elapsed.Seconds())
	log.Debugf("%s provider %s succeeded in %s", kind, id, elapsed)
}

func (r *Registry) recordFailure(kind Kind, id ID, elapsed time.Duration, err error) {
	r.mu.Lock()
	state, ok := r.circuits[id]
	if !ok {
		state = &CircuitState{}
		r.circuits[id] = state
	}
	now := r.now()
	opened := state.recordFailure(r.circuit, now)
	failures := state.Failures
	r.mu.Unlock()

	r.telemetry.Add(TelemetryEntry{ProviderID: id, Kind: kind, Duration: elapsed, Error: err.Error(), Timestamp: now})

	status := "failure"
	if errors.Is(err, ErrTimeout) {
		status = "timeout"
	}
	metrics.RecordProviderAttempt(string(kind), string(id), status, elapsed.Seconds())
	log.Warnf("%s provider %s failed (%d consecutive): %v", kind, id, failures, err)
	if opened {
		metrics.RecordCircuitOpen(string(kind), string(id))
		log.Warnf("circuit opened for provider %s", id)
	}
}

// Telemetry returns the recent attempts, oldest first.
func (r *Registry) Telemetry() []TelemetryEntry {
	return r.telemetry.Snapshot()
}

// Circuits returns a copy of the per-provider circuit state. Providers with
// no recorded failures are absent.
func (r *Registry) Circuits() map[ID]CircuitState {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(map[ID]CircuitState, len(r.circuits))
	for id, s := range r.circuits {
		out[id] = *s
	}
	return out
}

// CircuitConfig returns the active breaker settings.
func (r *Registry) CircuitConfig() CircuitConfig {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.circuit
}

// SetCircuitConfig replaces the breaker settings. Existing state is kept and
// evaluated against the new settings.
func (r *Registry) SetCircuitConfig(cfg CircuitConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.circuit = cfg.sanitized()
}

// ResetCircuit clears the breaker state of a registered provider.
func (r *Registry) ResetCircuit(id ID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.knownLocked(id) {
		return fmt.Errorf("%w: %s", ErrUnknownProvider, id)
	}
	delete(r.circuits, id)
	return nil
}

func (r *Registry) knownLocked(id ID) bool {
	for _, kind := range Kinds {
		for _, info := range r.infosLocked(kind) {
			if info.ID == id {
				return true
			}
		}
	}
	return false
}

// Providers lists the providers of a kind in execution order.
func (r *Registry) Providers(kind Kind) []Info {
	r.mu.Lock()
	infos := r.infosLocked(kind)
	r.mu.Unlock()

	sort.SliceStable(infos, func(i, j int) bool { return infos[i].Tier < infos[j].Tier })
	return infos
}

func (r *Registry) infosLocked(kind Kind) []Info {
	switch kind {
	case KindText:
		return infos(kind, r.text)
	case KindImage:
		return infos(kind, r.image)
	case KindTTS:
		return infos(kind, r.tts)
	case KindSTT:
		return infos(kind, r.stt)
	}
	return nil
}

func infos[In, Out any](kind Kind, list []Provider[In, Out]) []Info {
	out := make([]Info, 0, len(list))
	for _, p := range list {
		out = append(out, Info{ID: p.ID, Kind: kind, Tier: p.Tier, Label: p.Label})
	}
	return out
}
