// Copyright 2026 The switchAILocal Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package config provides configuration management for the orchestrator.
// It loads YAML configuration files, applies environment overrides and
// clamps values into safe ranges before the rest of the system reads them.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"syscall"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigPath is the configuration file used when no -config flag is given.
const DefaultConfigPath = "config.yaml"

// Config is the root configuration, loaded from a YAML file.
type Config struct {
	// Host is the interface the management API binds to. Empty binds all interfaces.
	Host string `yaml:"host" json:"host"`

	// Port is the management API port.
	Port int `yaml:"port" json:"port"`

	// Debug enables debug-level logging.
	Debug bool `yaml:"debug" json:"debug"`

	// LoggingToFile switches log output from stdout to a rotating file.
	LoggingToFile bool `yaml:"logging-to-file" json:"logging-to-file"`

	// LogDir is the directory holding rotated log files.
	LogDir string `yaml:"log-dir" json:"log-dir"`

	// ManagementKey protects /v0/management routes when set.
	ManagementKey string `yaml:"management-key,omitempty" json:"-"`

	// Endpoints lists the base URLs of the local inference backends.
	Endpoints EndpointsConfig `yaml:"endpoints" json:"endpoints"`

	// TextModelID is the model used by the default text provider when none is requested.
	TextModelID string `yaml:"text-model-id" json:"text-model-id"`

	// DefaultTimeoutMs bounds every provider invocation. Default: 300000 (5 minutes).
	DefaultTimeoutMs int64 `yaml:"default-timeout-ms" json:"default-timeout-ms"`

	// CircuitBreaker configures per-provider failure accounting.
	CircuitBreaker CircuitBreakerConfig `yaml:"circuit-breaker" json:"circuit-breaker"`

	// TelemetryCapacity is the size of the provider telemetry ring. Default: 30.
	TelemetryCapacity int `yaml:"telemetry-capacity" json:"telemetry-capacity"`

	// Queue configures the offline operation queue.
	Queue QueueConfig `yaml:"queue" json:"queue"`

	// Benchmark configures the model benchmark cache.
	Benchmark BenchmarkConfig `yaml:"benchmark" json:"benchmark"`

	// Limits caps request parameters before they reach a backend.
	Limits LimitsConfig `yaml:"limits" json:"limits"`

	// Policies gates cloud providers per capability.
	Policies PoliciesConfig `yaml:"policies" json:"policies"`

	// CloudText lists OpenAI-compatible cloud text providers.
	CloudText []CloudProviderConfig `yaml:"cloud-text,omitempty" json:"cloud-text,omitempty"`

	// Network configures online detection.
	Network NetworkConfig `yaml:"network" json:"network"`

	// Store configures the persistence file.
	Store StoreConfig `yaml:"store" json:"store"`
}

// EndpointsConfig holds backend base URLs.
type EndpointsConfig struct {
	// APIBaseURL is the unified backend serving image, TTS, STT and capabilities.
	// Default: http://localhost:8000
	APIBaseURL string `yaml:"api-base-url" json:"api-base-url"`

	// OllamaBaseURL is the local Ollama server. Default: http://localhost:11434
	OllamaBaseURL string `yaml:"ollama-base-url" json:"ollama-base-url"`
}

// CircuitBreakerConfig defines when a provider is temporarily excluded.
type CircuitBreakerConfig struct {
	// FailureThreshold is the number of consecutive failures that opens the circuit. Default: 3.
	FailureThreshold int `yaml:"failure-threshold" json:"failure-threshold"`

	// CooldownMs is how long an open circuit stays open. Default: 60000.
	CooldownMs int64 `yaml:"cooldown-ms" json:"cooldown-ms"`
}

// QueueConfig defines retry behavior of the offline queue.
type QueueConfig struct {
	// BackoffMs is the fixed wait between attempts of the same operation. Default: 1500.
	BackoffMs int64 `yaml:"backoff-ms" json:"backoff-ms"`

	// MaxAttempts is the default attempt budget per operation. Default: 3.
	MaxAttempts int `yaml:"max-attempts" json:"max-attempts"`
}

// BenchmarkConfig defines benchmark freshness and probe timeout.
type BenchmarkConfig struct {
	// TTLMs is how long a benchmark result stays fresh. Default: 24h.
	TTLMs int64 `yaml:"ttl-ms" json:"ttl-ms"`

	// TimeoutMs bounds a single benchmark probe. Default: 20000.
	TimeoutMs int64 `yaml:"timeout-ms" json:"timeout-ms"`
}

// LimitsConfig caps request parameters per capability.
type LimitsConfig struct {
	TextMaxTokens  int `yaml:"text-max-tokens" json:"text-max-tokens"`
	ImageMaxWidth  int `yaml:"image-max-width" json:"image-max-width"`
	ImageMaxHeight int `yaml:"image-max-height" json:"image-max-height"`
	ImageMaxSteps  int `yaml:"image-max-steps" json:"image-max-steps"`
	TTSMaxChars    int `yaml:"tts-max-chars" json:"tts-max-chars"`
}

// PoliciesConfig gates cloud usage.
type PoliciesConfig struct {
	AllowCloudText bool `yaml:"allow-cloud-text" json:"allow-cloud-text"`
}

// CloudProviderConfig describes one OpenAI-compatible text provider.
type CloudProviderConfig struct {
	// ID is the provider identifier used for circuit state and preferred routing.
	ID string `yaml:"id" json:"id"`

	// Label is a human readable name.
	Label string `yaml:"label,omitempty" json:"label,omitempty"`

	// Tier is "cloud-basic" or "cloud-premium". Default: cloud-basic.
	Tier string `yaml:"tier" json:"tier"`

	// BaseURL is the API root, e.g. https://api.groq.com/openai/v1
	BaseURL string `yaml:"base-url" json:"base-url"`

	// APIKey authenticates against the provider.
	APIKey string `yaml:"api-key" json:"-"`

	// Model is the remote model name.
	Model string `yaml:"model" json:"model"`

	// AvailableWhen is an optional expression evaluated before each call,
	// e.g. `online && hour >= 8`. The provider is skipped when it yields false.
	AvailableWhen string `yaml:"available-when,omitempty" json:"available-when,omitempty"`
}

// NetworkConfig configures the connectivity probe.
type NetworkConfig struct {
	// ProbeURL is polled to decide whether the backend is reachable.
	// Empty means <api-base-url>/api/health.
	ProbeURL string `yaml:"probe-url,omitempty" json:"probe-url,omitempty"`

	// ProbeIntervalMs is the polling interval. Default: 5000.
	ProbeIntervalMs int64 `yaml:"probe-interval-ms" json:"probe-interval-ms"`

	// ProbeTimeoutMs bounds each probe. Default: 2000.
	ProbeTimeoutMs int64 `yaml:"probe-timeout-ms" json:"probe-timeout-ms"`
}

// StoreConfig configures the key-value persistence file.
type StoreConfig struct {
	// Path is the SQLite file. Empty keeps everything in memory.
	Path string `yaml:"path" json:"path"`
}

// Default returns a configuration populated with defaults.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (cfg *Config) applyDefaults() {
	cfg.Port = 8317
	cfg.LogDir = "logs"
	cfg.Endpoints.APIBaseURL = "http://localhost:8000"
	cfg.Endpoints.OllamaBaseURL = "http://localhost:11434"
	cfg.TextModelID = "llama2"
	cfg.DefaultTimeoutMs = 300000
	cfg.CircuitBreaker.FailureThreshold = 3
	cfg.CircuitBreaker.CooldownMs = 60000
	cfg.TelemetryCapacity = 30
	cfg.Queue.BackoffMs = 1500
	cfg.Queue.MaxAttempts = 3
	cfg.Benchmark.TTLMs = int64(24 * time.Hour / time.Millisecond)
	cfg.Benchmark.TimeoutMs = 20000
	cfg.Limits.TextMaxTokens = 2048
	cfg.Limits.ImageMaxWidth = 1536
	cfg.Limits.ImageMaxHeight = 1536
	cfg.Limits.ImageMaxSteps = 50
	cfg.Limits.TTSMaxChars = 2000
	cfg.Network.ProbeIntervalMs = 5000
	cfg.Network.ProbeTimeoutMs = 2000
	cfg.Store.Path = "./data/orchestrator.db"
}

// LoadConfig reads YAML from configFile and fails if it is missing.
func LoadConfig(configFile string) (*Config, error) {
	return LoadConfigOptional(configFile, false)
}

// LoadConfigOptional reads YAML from configFile.
// If optional is true and the file is missing or empty, it returns the defaults.
func LoadConfigOptional(configFile string, optional bool) (*Config, error) {
	data, err := os.ReadFile(configFile)
	if err != nil {
		if optional && (os.IsNotExist(err) || errors.Is(err, syscall.EISDIR)) {
			return Default(), nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Set defaults before unmarshal so that absent keys keep defaults.
	var cfg Config
	cfg.applyDefaults()

	if err = yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.Sanitize()
	return &cfg, nil
}

// Sanitize trims strings and clamps numeric settings into supported ranges.
func (cfg *Config) Sanitize() {
	if cfg == nil {
		return
	}

	cfg.Endpoints.APIBaseURL = strings.TrimSuffix(strings.TrimSpace(cfg.Endpoints.APIBaseURL), "/")
	if cfg.Endpoints.APIBaseURL == "" {
		cfg.Endpoints.APIBaseURL = "http://localhost:8000"
	}
	cfg.Endpoints.OllamaBaseURL = strings.TrimSuffix(strings.TrimSpace(cfg.Endpoints.OllamaBaseURL), "/")
	if cfg.Endpoints.OllamaBaseURL == "" {
		cfg.Endpoints.OllamaBaseURL = "http://localhost:11434"
	}

	cfg.TextModelID = strings.TrimSpace(cfg.TextModelID)
	if cfg.TextModelID == "" {
		cfg.TextModelID = "llama2"
	}

	if cfg.Port <= 0 || cfg.Port > 65535 {
		cfg.Port = 8317
	}
	if cfg.DefaultTimeoutMs < 1000 {
		cfg.DefaultTimeoutMs = 1000 // Minimum 1 second
	}
	if cfg.CircuitBreaker.FailureThreshold < 1 {
		cfg.CircuitBreaker.FailureThreshold = 1
	}
	if cfg.CircuitBreaker.CooldownMs < 0 {
		cfg.CircuitBreaker.CooldownMs = 0
	}
	if cfg.TelemetryCapacity <= 0 {
		cfg.TelemetryCapacity = 30
	}
	if cfg.Queue.BackoffMs < 0 {
		cfg.Queue.BackoffMs = 0
	}
	if cfg.Queue.MaxAttempts < 1 {
		cfg.Queue.MaxAttempts = 3
	}
	if cfg.Benchmark.TTLMs <= 0 {
		cfg.Benchmark.TTLMs = int64(24 * time.Hour / time.Millisecond)
	}
	if cfg.Benchmark.TimeoutMs < 1000 {
		cfg.Benchmark.TimeoutMs = 1000
	}
	if cfg.Network.ProbeIntervalMs < 100 {
		cfg.Network.ProbeIntervalMs = 100
	}
	if cfg.Network.ProbeTimeoutMs < 100 {
		cfg.Network.ProbeTimeoutMs = 100
	}
	sanitizeLimits(&cfg.Limits)

	// Drop cloud entries that cannot be called.
	kept := cfg.CloudText[:0]
	for _, p := range cfg.CloudText {
		p.ID = strings.ToLower(strings.TrimSpace(p.ID))
		p.BaseURL = strings.TrimSuffix(strings.TrimSpace(p.BaseURL), "/")
		p.Tier = strings.ToLower(strings.TrimSpace(p.Tier))
		if p.ID == "" || p.BaseURL == "" {
			continue
		}
		if p.Tier != "cloud-basic" && p.Tier != "cloud-premium" {
			p.Tier = "cloud-basic"
		}
		kept = append(kept, p)
	}
	cfg.CloudText = kept
}

func sanitizeLimits(l *LimitsConfig) {
	if l.TextMaxTokens <= 0 {
		l.TextMaxTokens = 2048
	}
	if l.ImageMaxWidth <= 0 {
		l.ImageMaxWidth = 1536
	}
	if l.ImageMaxHeight <= 0 {
		l.ImageMaxHeight = 1536
	}
	if l.ImageMaxSteps <= 0 {
		l.ImageMaxSteps = 50
	}
	if l.TTSMaxChars <= 0 {
		l.TTSMaxChars = 2000
	}
}

// DefaultTimeout returns DefaultTimeoutMs as a duration.
func (cfg *Config) DefaultTimeout() time.Duration {
	return time.Duration(cfg.DefaultTimeoutMs) * time.Millisecond
}

// Cooldown returns the circuit cooldown as a duration.
func (c CircuitBreakerConfig) Cooldown() time.Duration {
	return time.Duration(c.CooldownMs) * time.Millisecond
}

// Backoff returns the queue backoff as a duration.
func (q QueueConfig) Backoff() time.Duration {
	return time.Duration(q.BackoffMs) * time.Millisecond
}

// TTL returns the benchmark freshness window.
func (b BenchmarkConfig) TTL() time.Duration {
	return time.Duration(b.TTLMs) * time.Millisecond
}

// Timeout returns the benchmark probe timeout.
func (b BenchmarkConfig) Timeout() time.Duration {
	return time.Duration(b.TimeoutMs) * time.Millisecond
}

// ProbeInterval returns the connectivity polling interval.
func (n NetworkConfig) ProbeInterval() time.Duration {
	return time.Duration(n.ProbeIntervalMs) * time.Millisecond
}

// ProbeTimeout returns the per-probe timeout.
func (n NetworkConfig) ProbeTimeout() time.Duration {
	return time.Duration(n.ProbeTimeoutMs) * time.Millisecond
}

// HealthURL returns the URL polled by the connectivity probe.
func (cfg *Config) HealthURL() string {
	if cfg.Network.ProbeURL != "" {
		return cfg.Network.ProbeURL
	}
	return cfg.Endpoints.APIBaseURL + "/api/health"
}
