// Copyright 2026 The switchAILocal Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package main provides the entry point for the inference orchestrator.
// The server exposes text, image and speech inference over HTTP, routing
// each request through tiered providers with circuit breaking and an
// offline retry queue.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/anclora/orchestrator/internal/api"
	"github.com/anclora/orchestrator/internal/buildinfo"
	"github.com/anclora/orchestrator/internal/config"
	"github.com/anclora/orchestrator/internal/logging"
	"github.com/anclora/orchestrator/internal/watcher"
	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

var (
	Version           = "dev"
	Commit            = "none"
	BuildDate         = "unknown"
	DefaultConfigPath = "config.yaml"
)

const shutdownTimeout = 10 * time.Second

func init() {
	logging.SetupBaseLogger()
	buildinfo.Version = Version
	buildinfo.Commit = Commit
	buildinfo.BuildDate = BuildDate
}

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "rank":
			handleRankCommand(os.Args[2:])
			return
		case "benchmark":
			handleBenchmarkCommand(os.Args[2:])
			return
		}
	}

	fmt.Printf("orchestrator %s\n", buildinfo.Current())

	var configPath string
	flag.StringVar(&configPath, "config", DefaultConfigPath, "Configure File Path")
	flag.Parse()

	loadDotEnv()
	cfg, err := loadConfig(configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if err = logging.ConfigureLogOutput(cfg.LoggingToFile, cfg.LogDir); err != nil {
		log.Fatalf("failed to configure log output: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err = run(ctx, cfg, configPath); err != nil {
		log.Fatalf("orchestrator stopped: %v", err)
	}
	log.Info("orchestrator stopped")
}

// loadDotEnv reads .env from the working directory when present.
func loadDotEnv() {
	wd, err := os.Getwd()
	if err != nil {
		log.Warnf("failed to get working directory: %v", err)
		return
	}
	if errLoad := godotenv.Load(filepath.Join(wd, ".env")); errLoad != nil {
		if !errors.Is(errLoad, fs.ErrNotExist) {
			log.WithError(errLoad).Warn("failed to load .env file")
		}
	}
}

// loadConfig reads the YAML file (optional) and overlays the environment.
func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.LoadConfigOptional(path, true)
	if err != nil {
		return nil, err
	}
	cfg.ApplyEnv(nil)
	logging.SetDebug(cfg.Debug)
	return cfg, nil
}

func run(ctx context.Context, cfg *config.Config, configPath string) error {
	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.close()

	a.detectHardware(ctx)
	server := api.NewServer(cfg, a.handler())

	cw, err := watcher.NewWatcher(configPath, a.applyConfig)
	if err != nil {
		return err
	}
	cw.SetConfig(cfg)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(server.Start)
	g.Go(func() error { return a.network.Start(gctx) })
	g.Go(func() error {
		if errStart := cw.Start(gctx); errStart != nil {
			// The server keeps running without hot reload.
			log.Warnf("config watcher disabled: %v", errStart)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		errStop := server.Stop(shutdownCtx)
		if errWatch := cw.Stop(); errWatch != nil {
			log.Warnf("config watcher stop: %v", errWatch)
		}
		return errStop
	})
	return g.Wait()
}
