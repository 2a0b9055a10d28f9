package main

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/anclora/orchestrator/internal/api/handlers/management"
	"github.com/anclora/orchestrator/internal/benchmark"
	"github.com/anclora/orchestrator/internal/config"
	"github.com/anclora/orchestrator/internal/hardware"
	"github.com/anclora/orchestrator/internal/logging"
	"github.com/anclora/orchestrator/internal/netstate"
	"github.com/anclora/orchestrator/internal/provider"
	"github.com/anclora/orchestrator/internal/queue"
	"github.com/anclora/orchestrator/internal/runtime/executor"
	"github.com/anclora/orchestrator/internal/scoring"
	"github.com/anclora/orchestrator/internal/store"
	log "github.com/sirupsen/logrus"
)

// app holds the long-lived components shared by the server and the CLI
// subcommands.
type app struct {
	cfg        *config.Config
	kv         store.KV
	closeKV    func() error
	policy     *executor.Policy
	ollama     *executor.OllamaClient
	registry   *provider.Registry
	network    *netstate.Watcher
	queue      *queue.Queue
	unwatch    func()
	hardware   *hardware.Store
	detector   hardware.Detector
	benchmarks *benchmark.Cache
	runner     *benchmark.Runner
	engine     *scoring.Engine
	decisions  *store.Decisions
}

func openStore(ctx context.Context, path string) (store.KV, func() error, error) {
	if strings.TrimSpace(path) == "" {
		log.Info("store path empty, keeping state in memory")
		return store.NewMemoryStore(), func() error { return nil }, nil
	}
	s, err := store.OpenSQLite(ctx, path)
	if err != nil {
		return nil, nil, err
	}
	log.Infof("state stored in %s", path)
	return s, s.Close, nil
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	kv, closeKV, err := openStore(ctx, cfg.Store.Path)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	a := &app{
		cfg:      cfg,
		kv:       kv,
		closeKV:  closeKV,
		policy:   executor.NewPolicy(cfg.Policies),
		network:  netstate.NewWatcher(cfg.HealthURL(), cfg.Network.ProbeInterval(), cfg.Network.ProbeTimeout()),
		hardware: hardware.NewStore(),
		detector: hardware.FallbackDetector{
			hardware.NewHTTPDetector(cfg.Endpoints.APIBaseURL),
			hardware.LocalDetector{},
		},
	}

	client := &http.Client{}
	a.ollama = executor.NewOllamaClient(cfg.Endpoints.OllamaBaseURL, client)
	a.registry, err = executor.BuildDefaultRegistry(cfg,
		executor.WithHTTPClient(client),
		executor.WithNetwork(a.network),
		executor.WithPolicy(a.policy),
	)
	if err != nil {
		_ = closeKV()
		return nil, fmt.Errorf("build provider registry: %w", err)
	}

	a.queue = queue.New(a.network, queue.Options{Backoff: cfg.Queue.Backoff(), MaxAttempts: cfg.Queue.MaxAttempts})
	a.unwatch = a.queue.Watch(a.network)

	a.benchmarks = benchmark.NewCache(kv, cfg.Benchmark.TTL())
	a.runner = benchmark.NewRunner(a.registry, a.benchmarks, cfg.Benchmark.Timeout())
	a.engine = scoring.NewEngine(cfg.TextModelID, a.benchmarks)
	a.decisions = store.NewDecisions(kv)
	return a, nil
}

// detectHardware stores a profile; failures leave the store empty.
func (a *app) detectHardware(ctx context.Context) {
	if _, err := a.hardware.Detect(ctx, a.detector); err != nil {
		log.Warnf("%v; hardware limits fall back to conservative defaults", err)
	}
}

func (a *app) handler() *management.Handler {
	return management.NewHandler(management.Dependencies{
		Registry:    a.registry,
		Queue:       a.queue,
		Hardware:    a.hardware,
		Detector:    a.detector,
		Engine:      a.engine,
		Benchmarks:  a.benchmarks,
		Runner:      a.runner,
		Decisions:   a.decisions,
		Network:     a.network,
		Models:      a.ollama,
		MaxAttempts: a.cfg.Queue.MaxAttempts,
	})
}

// applyConfig pushes hot-reloadable settings into running components.
func (a *app) applyConfig(cfg *config.Config) {
	logging.SetDebug(cfg.Debug)
	a.registry.SetCircuitConfig(provider.CircuitConfig{
		FailureThreshold: cfg.CircuitBreaker.FailureThreshold,
		Cooldown:         cfg.CircuitBreaker.Cooldown(),
	})
	a.benchmarks.SetTTL(cfg.Benchmark.TTL())
	a.policy.Update(cfg.Policies)
}

func (a *app) close() {
	if a.unwatch != nil {
		a.unwatch()
	}
	a.queue.Close()
	a.network.Stop()
	if err := a.closeKV(); err != nil {
		log.Errorf("close store: %v", err)
	}
}
