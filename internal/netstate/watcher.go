package netstate

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// Watcher probes a health URL on an interval.
type Watcher struct {
	url      string
	interval time.Duration
	client   *http.Client

	mu      sync.RWMutex
	online  bool
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
	subs    subscribers
}

// NewWatcher creates a watcher for url. It starts out online so that work is
// attempted before the first probe completes.
func NewWatcher(url string, interval, timeout time.Duration) *Watcher {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &Watcher{
		url:      url,
		interval: interval,
		client:   &http.Client{Timeout: timeout},
		online:   true,
	}
}

// Online reports the result of the last probe. It is true until the first
// probe fails.
func (w *Watcher) Online() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.online
}

// Subscribe calls fn on every online/offline transition and returns a
// function that removes it.
func (w *Watcher) Subscribe(fn func(bool)) func() {
	return w.subs.add(fn)
}

// Check probes once and updates the state. Any 2xx/3xx answer counts as online.
func (w *Watcher) Check(ctx context.Context) bool {
	online := w.probe(ctx)

	w.mu.Lock()
	changed := w.online != online
	w.online = online
	w.mu.Unlock()

	if changed {
		if online {
			log.Infof("backend reachable again at %s", w.url)
		} else {
			log.Warnf("backend unreachable at %s", w.url)
		}
		w.subs.notify(online)
	}
	return online
}

func (w *Watcher) probe(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, w.url, nil)
	if err != nil {
		log.Debugf("health probe request failed: %v", err)
		return false
	}
	resp, err := w.client.Do(req)
	if err != nil {
		log.Debugf("health probe failed: %v", err)
		return false
	}
	resp.Body.Close()
	return resp.StatusCode < http.StatusBadRequest
}

// Start begins probing in the background.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return fmt.Errorf("network watcher is already running")
	}
	loopCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.done = make(chan struct{})
	w.running = true
	done := w.done
	w.mu.Unlock()

	go w.loop(loopCtx, done)
	return nil
}

func (w *Watcher) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.Check(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.Check(ctx)
		}
	}
}

// Stop ends probing and waits for the loop to exit.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.cancel()
	done := w.done
	w.running = false
	w.mu.Unlock()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		log.Warn("network watcher stop timed out waiting for loop")
	}
}
