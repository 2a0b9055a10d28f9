package benchmark

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/anclora/orchestrator/internal/provider"
	"github.com/anclora/orchestrator/internal/scoring"
	"github.com/anclora/orchestrator/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeExecutor struct {
	reply string
	err   error
	delay time.Duration
	reqs  []provider.TextRequest
	opts  []provider.ExecuteOptions
}

func (f *fakeExecutor) ExecuteText(_ context.Context, req provider.TextRequest, opts provider.ExecuteOptions) (string, error) {
	f.reqs = append(f.reqs, req)
	f.opts = append(f.opts, opts)
	time.Sleep(f.delay)
	return f.reply, f.err
}

func TestIsFresh(t *testing.T) {
	now := time.Now()
	assert.True(t, IsFresh(Result{Timestamp: now.Add(-time.Hour)}, DefaultTTL, now))
	assert.False(t, IsFresh(Result{Timestamp: now.Add(-DefaultTTL)}, DefaultTTL, now))
}

func TestRunner_Success(t *testing.T) {
	exec := &fakeExecutor{reply: "  OK, ready to go  "}
	cache := NewCache(store.NewMemoryStore(), 0)
	r := NewRunner(exec, cache, 0)

	res, err := r.Run(context.Background(), "llama2")
	require.NoError(t, err)
	assert.True(t, res.Success)
	// 15 chars / 4 = 3.75 tokens over the 0.1s floor.
	assert.InDelta(t, 37.5, res.TokensPerSecond, 0.01)

	require.Len(t, exec.reqs, 1)
	assert.Equal(t, "llama2", exec.reqs[0].ModelID)
	assert.Equal(t, 0.0, *exec.reqs[0].Temperature)
	assert.Equal(t, DefaultTimeout, exec.reqs[0].Timeout)
	assert.Equal(t, provider.ExecuteOptions{PreferredID: "ollama-requested"}, exec.opts[0])

	stored, ok := cache.Fresh(context.Background(), "llama2")
	require.True(t, ok)
	assert.Equal(t, res.TokensPerSecond, stored.TokensPerSecond)
}

type gatedExecutor struct {
	calls   atomic.Int32
	entered chan struct{}
	release chan struct{}
}

func (g *gatedExecutor) ExecuteText(context.Context, provider.TextRequest, provider.ExecuteOptions) (string, error) {
	if g.calls.Add(1) == 1 {
		close(g.entered)
	}
	<-g.release
	return "OK", nil
}

func TestRunner_ConcurrentRunsShareMeasurement(t *testing.T) {
	exec := &gatedExecutor{entered: make(chan struct{}), release: make(chan struct{})}
	r := NewRunner(exec, NewCache(store.NewMemoryStore(), 0), 0)

	var wg sync.WaitGroup
	results := make([]Result, 2)
	run := func(i int) {
		defer wg.Done()
		res, err := r.Run(context.Background(), "phi3")
		assert.NoError(t, err)
		results[i] = res
	}

	wg.Add(2)
	go run(0)
	<-exec.entered
	go run(1)
	time.Sleep(50 * time.Millisecond)
	close(exec.release)
	wg.Wait()

	assert.Equal(t, int32(1), exec.calls.Load())
	assert.Equal(t, results[0], results[1])
}

func TestRunner_WaiterCancelDoesNotAbortSharedRun(t *testing.T) {
	exec := &gatedExecutor{entered: make(chan struct{}), release: make(chan struct{})}
	cache := NewCache(store.NewMemoryStore(), 0)
	r := NewRunner(exec, cache, 0)

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := r.Run(firstCtx, "phi3")
		firstErr <- err
	}()
	<-exec.entered

	second := make(chan Result, 1)
	go func() {
		res, err := r.Run(context.Background(), "phi3")
		assert.NoError(t, err)
		second <- res
	}()
	time.Sleep(50 * time.Millisecond)

	cancelFirst()
	assert.ErrorIs(t, <-firstErr, context.Canceled)

	close(exec.release)
	res := <-second
	assert.True(t, res.Success)
	assert.Equal(t, int32(1), exec.calls.Load())

	_, fresh := cache.Fresh(context.Background(), "phi3")
	assert.True(t, fresh)
}

func TestRunner_PinnedProviderWithOpenCircuit(t *testing.T) {
	ctx := context.Background()
	reg := provider.NewRegistry(provider.Options{Circuit: provider.DefaultCircuitConfig()})
	var served []provider.ID
	require.NoError(t, reg.RegisterText(provider.Provider[provider.TextRequest, string]{
		ID:   RequestedProviderID,
		Tier: provider.TierLocal,
		Invoke: func(context.Context, provider.TextRequest) (string, error) {
			served = append(served, RequestedProviderID)
			return "", errors.New("connection refused")
		},
	}))
	require.NoError(t, reg.RegisterText(provider.Provider[provider.TextRequest, string]{
		ID:   "cloud",
		Tier: provider.TierCloudBasic,
		Invoke: func(context.Context, provider.TextRequest) (string, error) {
			served = append(served, "cloud")
			return "OK from the cloud model", nil
		},
	}))

	opts := provider.ExecuteOptions{PreferredID: RequestedProviderID}
	for i := 0; i < 3; i++ {
		_, _ = reg.ExecuteText(ctx, provider.TextRequest{Prompt: "hi", ModelID: "llama2"}, opts)
	}

	cache := NewCache(store.NewMemoryStore(), 0)
	res, err := NewRunner(reg, cache, 0).Run(ctx, "llama2")
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Zero(t, res.TokensPerSecond)
	assert.NotContains(t, served, provider.ID("cloud"))

	stored, ok, err := cache.Get(ctx, "llama2")
	require.NoError(t, err)
	require.True(t, ok)
	assert.False(t, stored.Success)
}

func TestRunner_MinimumOneToken(t *testing.T) {
	exec := &fakeExecutor{reply: "", delay: 200 * time.Millisecond}
	r := NewRunner(exec, NewCache(store.NewMemoryStore(), 0), time.Second)

	res, err := r.Run(context.Background(), "phi3")
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.LessOrEqual(t, res.TokensPerSecond, 5.0)
	assert.Greater(t, res.TokensPerSecond, 0.0)
}

func TestRunner_FailureIsPersisted(t *testing.T) {
	exec := &fakeExecutor{err: errors.New("model not found")}
	cache := NewCache(store.NewMemoryStore(), 0)
	r := NewRunner(exec, cache, 0)

	res, err := r.Run(context.Background(), "ghost")
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Zero(t, res.TokensPerSecond)
	assert.Equal(t, "model not found", res.Error)

	stored, ok, err := cache.Get(context.Background(), "ghost")
	require.NoError(t, err)
	require.True(t, ok)
	assert.False(t, stored.Success)
}

func TestRunner_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	cache := NewCache(store.NewMemoryStore(), 0)
	r := NewRunner(&fakeExecutor{err: context.Canceled}, cache, 0)

	_, err := r.Run(ctx, "llama2")
	assert.ErrorIs(t, err, context.Canceled)
	_, ok, _ := cache.Get(context.Background(), "llama2")
	assert.False(t, ok)
}

func TestRunner_RefreshStale(t *testing.T) {
	ctx := context.Background()
	cache := NewCache(store.NewMemoryStore(), time.Hour)
	require.NoError(t, cache.Put(ctx, Result{ModelID: "fresh", Success: true, TokensPerSecond: 20, Timestamp: time.Now()}))
	require.NoError(t, cache.Put(ctx, Result{ModelID: "old", Success: true, TokensPerSecond: 20, Timestamp: time.Now().Add(-2 * time.Hour)}))

	exec := &fakeExecutor{reply: "OK"}
	results, err := NewRunner(exec, cache, 0).RefreshStale(ctx, []string{"fresh", "old", "new"})
	require.NoError(t, err)
	assert.Len(t, results, 2)
	assert.Len(t, exec.reqs, 2)

	all, err := cache.All(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestCache_Overlay(t *testing.T) {
	ctx := context.Background()
	cache := NewCache(store.NewMemoryStore(), time.Hour)
	base := scoring.DefaultMetrics

	assert.Equal(t, base, cache.Overlay("llama2", base), "no result keeps catalog values")

	require.NoError(t, cache.Put(ctx, Result{ModelID: "llama2", Success: true, TokensPerSecond: 50, Latency: 400 * time.Millisecond, Timestamp: time.Now()}))
	m := cache.Overlay("llama2", base)
	assert.Equal(t, 50.0, m.TokensPerSecond)
	assert.Equal(t, 400.0, m.FirstTokenLatencyMs)
	assert.Equal(t, 20.0, m.AvgTokenLatencyMs)
	assert.Equal(t, base.VRAMRequiredGB, m.VRAMRequiredGB)

	require.NoError(t, cache.Put(ctx, Result{ModelID: "mistral", Success: false, Timestamp: time.Now()}))
	assert.Equal(t, base, cache.Overlay("mistral", base), "failed runs are ignored")

	require.NoError(t, cache.Put(ctx, Result{ModelID: "phi3", Success: true, TokensPerSecond: 50, Timestamp: time.Now().Add(-2 * time.Hour)}))
	assert.Equal(t, base, cache.Overlay("phi3", base), "stale runs are ignored")
}

func TestCache_SetTTLDuringLookups(t *testing.T) {
	ctx := context.Background()
	c := NewCache(store.NewMemoryStore(), time.Hour)
	require.NoError(t, c.Put(ctx, Result{ModelID: "m", Success: true, TokensPerSecond: 10, Timestamp: time.Now()}))

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 1; i <= 1000; i++ {
			c.SetTTL(time.Duration(i) * time.Hour)
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			_, ok := c.Fresh(ctx, "m")
			assert.True(t, ok)
		}
	}()
	wg.Wait()
	assert.Equal(t, 1000*time.Hour, c.TTL())
}

func TestCache_SetTTL(t *testing.T) {
	c := NewCache(store.NewMemoryStore(), 0)
	assert.Equal(t, DefaultTTL, c.TTL())
	c.SetTTL(time.Minute)
	assert.Equal(t, time.Minute, c.TTL())
	c.SetTTL(-1)
	assert.Equal(t, time.Minute, c.TTL())
}
