package watcher

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"github.com/anclora/orchestrator/internal/config"
)

// ConfigChanges lists the settings that differ between two configurations.
// The second result names the changes that only take effect after a restart.
func ConfigChanges(oldCfg, newCfg *config.Config) (applied, restart []string) {
	if oldCfg == nil || newCfg == nil {
		return nil, nil
	}
	add := func(dst *[]string, name string, from, to any) {
		if fmt.Sprint(from) != fmt.Sprint(to) {
			*dst = append(*dst, fmt.Sprintf("%s: %v -> %v", name, from, to))
		}
	}

	add(&applied, "debug", oldCfg.Debug, newCfg.Debug)
	add(&applied, "circuit-breaker.failure-threshold", oldCfg.CircuitBreaker.FailureThreshold, newCfg.CircuitBreaker.FailureThreshold)
	add(&applied, "circuit-breaker.cooldown", oldCfg.CircuitBreaker.Cooldown(), newCfg.CircuitBreaker.Cooldown())
	add(&applied, "benchmark.ttl", oldCfg.Benchmark.TTL(), newCfg.Benchmark.TTL())
	add(&applied, "policies.allow-cloud-text", oldCfg.Policies.AllowCloudText, newCfg.Policies.AllowCloudText)

	add(&restart, "host", oldCfg.Host, newCfg.Host)
	add(&restart, "port", oldCfg.Port, newCfg.Port)
	add(&restart, "endpoints.api-base-url", oldCfg.Endpoints.APIBaseURL, newCfg.Endpoints.APIBaseURL)
	add(&restart, "endpoints.ollama-base-url", oldCfg.Endpoints.OllamaBaseURL, newCfg.Endpoints.OllamaBaseURL)
	add(&restart, "text-model-id", oldCfg.TextModelID, newCfg.TextModelID)
	add(&restart, "default-timeout", oldCfg.DefaultTimeout(), newCfg.DefaultTimeout())
	add(&restart, "telemetry-capacity", oldCfg.TelemetryCapacity, newCfg.TelemetryCapacity)
	add(&restart, "queue.backoff", oldCfg.Queue.Backoff(), newCfg.Queue.Backoff())
	add(&restart, "queue.max-attempts", oldCfg.Queue.MaxAttempts, newCfg.Queue.MaxAttempts)
	add(&restart, "limits", oldCfg.Limits, newCfg.Limits)
	add(&restart, "store.path", oldCfg.Store.Path, newCfg.Store.Path)
	if h1, h2 := cloudProvidersHash(oldCfg.CloudText), cloudProvidersHash(newCfg.CloudText); h1 != h2 {
		restart = append(restart, fmt.Sprintf("cloud-text: %d -> %d providers", len(oldCfg.CloudText), len(newCfg.CloudText)))
	}
	return applied, restart
}

// cloudProvidersHash fingerprints the provider list, API keys included,
// without exposing them in logs.
func cloudProvidersHash(list []config.CloudProviderConfig) string {
	if len(list) == 0 {
		return ""
	}
	entries := make([]string, 0, len(list))
	for _, p := range list {
		entries = append(entries, strings.Join([]string{p.ID, p.Label, p.Tier, p.BaseURL, p.APIKey, p.Model, p.AvailableWhen}, "\x00"))
	}
	sort.Strings(entries)
	sum := sha256.Sum256([]byte(strings.Join(entries, "\n")))
	return hex.EncodeToString(sum[:])
}
