package benchmark

import (
	"context"
	"math"
	"strings"
	"time"

	"github.com/anclora/orchestrator/internal/metrics"
	"github.com/anclora/orchestrator/internal/provider"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

// Prompt is sent to every benchmarked model. It asks for a one-word answer so
// the measurement is dominated by load and first-token time.
const Prompt = "You are an internal benchmark. Reply only with the word OK to confirm availability."

// RequestedProviderID is the text provider that honours an explicit model id.
const RequestedProviderID provider.ID = "ollama-requested"

// DefaultTimeout bounds a single benchmark call.
const DefaultTimeout = 20 * time.Second

// measureGrace lets the provider timeout fire before the shared measurement
// context does, so a slow model is stored as a failed run.
const measureGrace = 5 * time.Second

// TextExecutor runs text requests. *provider.Registry satisfies it.
type TextExecutor interface {
	ExecuteText(ctx context.Context, req provider.TextRequest, opts provider.ExecuteOptions) (string, error)
}

// Runner benchmarks models and records the results.
type Runner struct {
	exec    TextExecutor
	cache   *Cache
	timeout time.Duration
	now     func() time.Time
	flight  singleflight.Group
}

// NewRunner creates a runner. A non-positive timeout uses DefaultTimeout.
func NewRunner(exec TextExecutor, cache *Cache, timeout time.Duration) *Runner {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Runner{exec: exec, cache: cache, timeout: timeout, now: time.Now}
}

// Run benchmarks one model and persists the result, successful or not. The
// returned error is non-nil only when the caller's context ended or the
// result could not be stored. Concurrent runs for the same model share a
// single measurement, which keeps going when one of the waiters gives up.
func (r *Runner) Run(ctx context.Context, modelID string) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	ch := r.flight.DoChan(modelID, func() (any, error) {
		runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout+measureGrace)
		defer cancel()
		return r.run(runCtx, modelID)
	})
	select {
	case <-ctx.Done():
		return Result{}, ctx.Err()
	case res := <-ch:
		return res.Val.(Result), res.Err
	}
}

func (r *Runner) run(ctx context.Context, modelID string) (Result, error) {
	temperature := 0.0
	start := time.Now()
	text, err := r.exec.ExecuteText(ctx, provider.TextRequest{
		Prompt:      Prompt,
		ModelID:     modelID,
		Temperature: &temperature,
		Timeout:     r.timeout,
	}, provider.ExecuteOptions{PreferredID: RequestedProviderID, AllowFallback: false})
	latency := time.Since(start)

	if ctxErr := ctx.Err(); ctxErr != nil {
		return Result{}, ctxErr
	}

	res := Result{
		ModelID:   modelID,
		Latency:   latency,
		Timestamp: r.now(),
		Success:   err == nil,
	}
	if err != nil {
		res.Error = err.Error()
		log.Warnf("benchmark for %s failed after %s: %v", modelID, latency, err)
	} else {
		tokens := math.Max(float64(len(strings.TrimSpace(text)))/4, 1)
		res.TokensPerSecond = tokens / math.Max(latency.Seconds(), 0.1)
		log.Infof("benchmark for %s: %.2f tok/s in %s", modelID, res.TokensPerSecond, latency)
	}
	metrics.RecordBenchmark(modelID, res.TokensPerSecond)

	if err := r.cache.Put(ctx, res); err != nil {
		return res, err
	}
	return res, nil
}

// RefreshStale benchmarks every model without a fresh result, one at a time.
func (r *Runner) RefreshStale(ctx context.Context, modelIDs []string) ([]Result, error) {
	var out []Result
	for _, id := range modelIDs {
		if _, fresh := r.cache.Fresh(ctx, id); fresh {
			continue
		}
		res, err := r.Run(ctx, id)
		if err != nil {
			return out, err
		}
		out = append(out, res)
	}
	return out, nil
}
