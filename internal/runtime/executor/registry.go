// Copyright 2026 The switchAILocal Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package executor

import (
	"fmt"
	"net/http"

	"github.com/anclora/orchestrator/internal/config"
	"github.com/anclora/orchestrator/internal/netstate"
	"github.com/anclora/orchestrator/internal/provider"
	log "github.com/sirupsen/logrus"
)

type buildOptions struct {
	client  *http.Client
	network netstate.State
	policy  *Policy
}

// Option customizes BuildDefaultRegistry.
type Option func(*buildOptions)

// WithHTTPClient sets the client shared by every adapter.
func WithHTTPClient(c *http.Client) Option {
	return func(o *buildOptions) { o.client = c }
}

// WithNetwork exposes connectivity to available-when expressions.
func WithNetwork(s netstate.State) Option {
	return func(o *buildOptions) { o.network = s }
}

// WithPolicy shares a runtime-updatable cloud policy.
func WithPolicy(p *Policy) Option {
	return func(o *buildOptions) { o.policy = p }
}

// RegistryOptions maps configuration onto registry options.
func RegistryOptions(cfg *config.Config) provider.Options {
	return provider.Options{
		Circuit: provider.CircuitConfig{
			FailureThreshold: cfg.CircuitBreaker.FailureThreshold,
			Cooldown:         cfg.CircuitBreaker.Cooldown(),
		},
		TelemetryCapacity: cfg.TelemetryCapacity,
		CallTimeout:       cfg.DefaultTimeout(),
	}
}

// BuildDefaultRegistry creates a registry with the Ollama text adapters, the
// configured cloud text providers and the media backend adapters.
func BuildDefaultRegistry(cfg *config.Config, opts ...Option) (*provider.Registry, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	o := buildOptions{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.client == nil {
		// Deadlines come from the registry's per-call context.
		o.client = &http.Client{}
	}
	if o.policy == nil {
		o.policy = NewPolicy(cfg.Policies)
	}

	reg := provider.NewRegistry(RegistryOptions(cfg))

	ollama := NewOllamaClient(cfg.Endpoints.OllamaBaseURL, o.client)
	if err := reg.RegisterText(ollama.RequestedProvider()); err != nil {
		return nil, err
	}
	if err := reg.RegisterText(ollama.DefaultProvider(cfg.TextModelID)); err != nil {
		return nil, err
	}

	evaluator := NewConditionEvaluator()
	for _, pc := range cfg.CloudText {
		cloud, err := NewCloudText(pc, o.client, o.policy, o.network, evaluator)
		if err != nil {
			return nil, err
		}
		p, err := cloud.Provider()
		if err != nil {
			return nil, err
		}
		if err := reg.RegisterText(p); err != nil {
			return nil, fmt.Errorf("cloud provider %s: %w", pc.ID, err)
		}
	}

	backend := NewBackend(cfg.Endpoints.APIBaseURL, o.client, cfg.Limits)
	if err := reg.RegisterImage(backend.ImageProvider()); err != nil {
		return nil, err
	}
	if err := reg.RegisterTTS(backend.TTSProvider()); err != nil {
		return nil, err
	}
	if err := reg.RegisterSTT(backend.STTProvider()); err != nil {
		return nil, err
	}

	log.Infof("provider registry ready: %d text, %d image, %d tts, %d stt",
		len(reg.Providers(provider.KindText)), len(reg.Providers(provider.KindImage)),
		len(reg.Providers(provider.KindTTS)), len(reg.Providers(provider.KindSTT)))
	return reg, nil
}
