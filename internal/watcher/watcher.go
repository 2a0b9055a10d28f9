// Copyright 2026 The switchAILocal Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package watcher reloads the configuration file when it changes on disk.
package watcher

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/anclora/orchestrator/internal/config"
	"github.com/fsnotify/fsnotify"
	log "github.com/sirupsen/logrus"
)

// DefaultDebounce coalesces bursts of write events from editors.
const DefaultDebounce = 150 * time.Millisecond

// Watcher observes a config file and invokes a callback with each new
// configuration that differs from the current one.
type Watcher struct {
	configPath string
	onReload   func(*config.Config)
	debounce   time.Duration

	mu       sync.Mutex
	current  *config.Config
	lastHash [sha256.Size]byte
	fsw      *fsnotify.Watcher
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewWatcher creates a watcher for configPath. onReload may be nil.
func NewWatcher(configPath string, onReload func(*config.Config)) (*Watcher, error) {
	if configPath == "" {
		return nil, errors.New("watcher: config path is required")
	}
	abs, err := filepath.Abs(configPath)
	if err != nil {
		return nil, fmt.Errorf("watcher: resolve %s: %w", configPath, err)
	}
	return &Watcher{configPath: abs, onReload: onReload, debounce: DefaultDebounce}, nil
}

// SetConfig records the configuration currently in effect.
func (w *Watcher) SetConfig(cfg *config.Config) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.current = cfg
	if data, err := os.ReadFile(w.configPath); err == nil {
		w.lastHash = sha256.Sum256(data)
	}
}

// Config returns the configuration currently in effect.
func (w *Watcher) Config() *config.Config {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.current
}

// Start begins watching the directory holding the config file. Watching the
// directory keeps working across editors that replace the file on save.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.fsw != nil {
		return errors.New("watcher: already started")
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watcher: %w", err)
	}
	if err := fsw.Add(filepath.Dir(w.configPath)); err != nil {
		_ = fsw.Close()
		return fmt.Errorf("watcher: watch %s: %w", filepath.Dir(w.configPath), err)
	}

	ctx, cancel := context.WithCancel(ctx)
	w.fsw = fsw
	w.cancel = cancel
	w.done = make(chan struct{})
	go w.loop(ctx, fsw, w.done)
	log.Infof("watching %s for configuration changes", w.configPath)
	return nil
}

// Stop ends watching and waits for the event loop to exit.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	fsw, cancel, done := w.fsw, w.cancel, w.done
	w.fsw, w.cancel, w.done = nil, nil, nil
	w.mu.Unlock()

	if fsw == nil {
		return nil
	}
	cancel()
	err := fsw.Close()
	<-done
	return err
}

func (w *Watcher) loop(ctx context.Context, fsw *fsnotify.Watcher, done chan struct{}) {
	defer close(done)

	var timer *time.Timer
	var fire <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return
		case event, ok := <-fsw.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.configPath {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C
		case <-fire:
			fire = nil
			w.Reload()
		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			log.Errorf("config watcher error: %v", err)
		}
	}
}

// Reload reads the config file and applies it when its content changed.
// It reports whether the callback ran.
func (w *Watcher) Reload() bool {
	data, err := os.ReadFile(w.configPath)
	if err != nil {
		log.Warnf("config reload skipped: %v", err)
		return false
	}
	hash := sha256.Sum256(data)

	w.mu.Lock()
	if hash == w.lastHash {
		w.mu.Unlock()
		log.Debugf("config file touched without changes")
		return false
	}
	w.mu.Unlock()

	cfg, err := config.LoadConfig(w.configPath)
	if err != nil {
		log.Errorf("config reload failed, keeping previous configuration: %v", err)
		return false
	}
	cfg.ApplyEnv(nil)

	w.mu.Lock()
	previous := w.current
	w.current = cfg
	w.lastHash = hash
	w.mu.Unlock()

	applied, restart := ConfigChanges(previous, cfg)
	for _, change := range applied {
		log.Infof("config change applied: %s", change)
	}
	for _, change := range restart {
		log.Warnf("config change requires restart: %s", change)
	}
	if w.onReload != nil {
		w.onReload(cfg)
	}
	return true
}
