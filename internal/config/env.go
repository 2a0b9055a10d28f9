package config

import (
	"os"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"
)

// Environment variables recognized by ApplyEnv.
const (
	EnvAPIBaseURL       = "ORCH_API_BASE_URL"
	EnvOllamaBaseURL    = "ORCH_OLLAMA_BASE_URL"
	EnvTextModelID      = "ORCH_TEXT_MODEL_ID"
	EnvProviderFailures = "ORCH_PROVIDER_FAILURES"
	EnvProviderCooldown = "ORCH_PROVIDER_COOLDOWN_MS"
	EnvBenchmarkTTL     = "ORCH_MODEL_BENCHMARK_TTL"
	EnvDebug            = "ORCH_DEBUG"
	EnvStorePath        = "ORCH_STORE_PATH"
	EnvAllowCloudText   = "ORCH_ALLOW_CLOUD_TEXT"
	EnvManagementKey    = "ORCH_MANAGEMENT_KEY"
)

// ApplyEnv overlays environment variables on top of file values and
// re-sanitizes the result. Malformed numbers are logged and ignored.
func (cfg *Config) ApplyEnv(getenv func(string) string) {
	if cfg == nil {
		return
	}
	if getenv == nil {
		getenv = os.Getenv
	}

	setString := func(key string, dst *string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}
	setString(EnvAPIBaseURL, &cfg.Endpoints.APIBaseURL)
	setString(EnvOllamaBaseURL, &cfg.Endpoints.OllamaBaseURL)
	setString(EnvTextModelID, &cfg.TextModelID)
	setString(EnvStorePath, &cfg.Store.Path)
	setString(EnvManagementKey, &cfg.ManagementKey)

	if v := strings.TrimSpace(getenv(EnvProviderFailures)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.CircuitBreaker.FailureThreshold = n
		} else {
			log.Warnf("ignoring %s=%q: %v", EnvProviderFailures, v, err)
		}
	}
	if v := strings.TrimSpace(getenv(EnvProviderCooldown)); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.CircuitBreaker.CooldownMs = n
		} else {
			log.Warnf("ignoring %s=%q: %v", EnvProviderCooldown, v, err)
		}
	}
	if v := strings.TrimSpace(getenv(EnvBenchmarkTTL)); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Benchmark.TTLMs = n
		} else {
			log.Warnf("ignoring %s=%q: %v", EnvBenchmarkTTL, v, err)
		}
	}
	if v := getenv(EnvDebug); v != "" {
		cfg.Debug = v == "true" || v == "1"
	}
	if v := getenv(EnvAllowCloudText); v != "" {
		cfg.Policies.AllowCloudText = v == "true" || v == "1"
	}

	cfg.Sanitize()
}
