// Package metrics exposes Prometheus collectors for the orchestrator.
// Every recorder is a thin wrapper so callers never touch label ordering.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "orchestrator"

var (
	// providerAttempts counts provider invocations.
	// Labels: kind, provider, status (success, failure, timeout)
	providerAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "provider",
		Name:      "attempts_total",
		Help:      "Provider invocations by outcome",
	}, []string{"kind", "provider", "status"})

	// providerLatency measures provider invocation latency.
	// Labels: kind, provider
	providerLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "provider",
		Name:      "latency_seconds",
		Help:      "Provider invocation latency in seconds",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60, 120, 300},
	}, []string{"kind", "provider"})

	// circuitOpens counts circuit breaker trips.
	// Labels: kind, provider
	circuitOpens = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "provider",
		Name:      "circuit_opens_total",
		Help:      "Times a provider circuit was opened",
	}, []string{"kind", "provider"})

	// chainExhausted counts executions where every candidate failed.
	// Labels: kind
	chainExhausted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "provider",
		Name:      "chain_exhausted_total",
		Help:      "Executions that ran out of providers",
	}, []string{"kind"})

	queueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "queue",
		Name:      "pending",
		Help:      "Operations waiting in the offline queue",
	})

	// queueOutcomes counts settled queue operations.
	// Labels: status (resolved, rejected)
	queueOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "queue",
		Name:      "settled_total",
		Help:      "Queued operations settled by outcome",
	}, []string{"status"})

	// benchmarkTPS records measured tokens per second.
	// Labels: model
	benchmarkTPS = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "benchmark",
		Name:      "tokens_per_second",
		Help:      "Last measured tokens per second per model",
	}, []string{"model"})

	networkOnline = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "network",
		Name:      "online",
		Help:      "1 when the backend is reachable",
	})
)

// RecordProviderAttempt records a single provider invocation.
//
// Inputs:
//
//	kind - text, image, tts or stt.
//	provider - The provider id.
//	status - "success", "failure" or "timeout".
//	durationSec - Duration in seconds.
func RecordProviderAttempt(kind, provider, status string, durationSec float64) {
	providerAttempts.WithLabelValues(kind, provider, status).Inc()
	providerLatency.WithLabelValues(kind, provider).Observe(durationSec)
}

// RecordCircuitOpen records a provider crossing its failure threshold.
func RecordCircuitOpen(kind, provider string) {
	circuitOpens.WithLabelValues(kind, provider).Inc()
}

// RecordChainExhausted records an execution that failed on every provider.
func RecordChainExhausted(kind string) {
	chainExhausted.WithLabelValues(kind).Inc()
}

// SetQueueDepth sets the number of pending queue operations.
func SetQueueDepth(n int) {
	queueDepth.Set(float64(n))
}

// RecordQueueSettled records a queue operation reaching its final state.
func RecordQueueSettled(resolved bool) {
	status := "rejected"
	if resolved {
		status = "resolved"
	}
	queueOutcomes.WithLabelValues(status).Inc()
}

// RecordBenchmark stores the latest tokens per second for a model.
func RecordBenchmark(model string, tps float64) {
	benchmarkTPS.WithLabelValues(model).Set(tps)
}

// SetOnline mirrors the network state.
func SetOnline(online bool) {
	if online {
		networkOnline.Set(1)
		return
	}
	networkOnline.Set(0)
}
