// Copyright 2026 The switchAILocal Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package queue defers operations while the backend is unreachable and
// retries them in order once it comes back.
package queue

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/anclora/orchestrator/internal/metrics"
	"github.com/anclora/orchestrator/internal/netstate"
	"github.com/anclora/orchestrator/internal/provider"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// ErrClosed is returned for operations still pending when the queue closes.
var ErrClosed = errors.New("operation queue closed")

const (
	// DefaultMaxAttempts applies when an operation asks for none.
	DefaultMaxAttempts = 3
	// DefaultBackoff is the pause between attempts of a failing operation.
	DefaultBackoff = 1500 * time.Millisecond
)

// Snapshot is the observable state of the queue.
type Snapshot struct {
	Pending    int    `json:"pending"`
	LastLabel  string `json:"last_label,omitempty"`
	LastError  string `json:"last_error,omitempty"`
	Processing bool   `json:"processing"`
}

// Options configures a Queue.
type Options struct {
	Backoff     time.Duration
	MaxAttempts int
}

// DefaultOptions returns a 1.5s backoff with three attempts.
func DefaultOptions() Options {
	return Options{Backoff: DefaultBackoff, MaxAttempts: DefaultMaxAttempts}
}

type operation struct {
	id          string
	label       string
	attempts    int
	maxAttempts int
	action      func(ctx context.Context) (any, error)
	settleOnce  sync.Once
	settle      func(v any, err error)
}

func (op *operation) finish(v any, err error) {
	op.settleOnce.Do(func() {
		op.settle(v, err)
		metrics.RecordQueueSettled(err == nil)
	})
}

// Queue runs operations one at a time in FIFO order. A failing operation is
// retried in place after a fixed backoff until it succeeds or exhausts its
// attempts.
type Queue struct {
	state       netstate.State
	backoff     time.Duration
	maxAttempts int

	mu         sync.Mutex
	ops        []*operation
	lastLabel  string
	lastError  string
	processing bool
	closed     bool

	listenersMu  sync.Mutex
	listeners    map[int]func(Snapshot)
	nextListener int

	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a queue that drains while state reports online. A nil state is
// always online.
func New(state netstate.State, opts Options) *Queue {
	if opts.Backoff < 0 {
		opts.Backoff = 0
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Queue{
		state:       state,
		backoff:     opts.Backoff,
		maxAttempts: opts.MaxAttempts,
		listeners:   make(map[int]func(Snapshot)),
		ctx:         ctx,
		cancel:      cancel,
	}
}

func (q *Queue) online() bool {
	return q.state == nil || q.state.Online()
}

// Future is the pending result of an enqueued operation.
type Future[T any] struct {
	ID   string
	done chan struct{}
	val  T
	err  error
}

// Done is closed once the operation settles.
func (f *Future[T]) Done() <-chan struct{} { return f.done }

// Wait blocks until the operation settles or ctx ends. Giving up on the wait
// does not remove the operation from the queue.
func (f *Future[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.val, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Enqueue adds an operation to the tail of q and starts a drain when online.
// maxAttempts <= 0 uses the queue default.
func Enqueue[T any](q *Queue, label string, action func(ctx context.Context) (T, error), maxAttempts int) *Future[T] {
	f := &Future[T]{ID: uuid.NewString(), done: make(chan struct{})}
	if maxAttempts <= 0 {
		maxAttempts = q.maxAttempts
	}
	op := &operation{
		id:          f.ID,
		label:       label,
		maxAttempts: maxAttempts,
		action: func(ctx context.Context) (any, error) {
			return action(ctx)
		},
		settle: func(v any, err error) {
			if err == nil {
				f.val, _ = v.(T)
			}
			f.err = err
			close(f.done)
		},
	}

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		op.finish(nil, ErrClosed)
		return f
	}
	q.ops = append(q.ops, op)
	q.mu.Unlock()

	log.Debugf("queued operation %s (%s)", label, op.id)
	q.emit()
	q.process(false)
	return f
}

// RunOrEnqueue runs action directly while online and queues it otherwise,
// waiting for the queued result.
func RunOrEnqueue[T any](ctx context.Context, q *Queue, label string, action func(ctx context.Context) (T, error), maxAttempts int) (T, error) {
	if q.online() {
		return action(ctx)
	}
	return Enqueue(q, label, action, maxAttempts).Wait(ctx)
}

// ForceProcess starts a drain even if the network state reports offline.
func (q *Queue) ForceProcess() {
	q.process(true)
}

// Watch drains the queue whenever n reports a transition to online.
func (q *Queue) Watch(n netstate.Notifier) (unsubscribe func()) {
	return n.Subscribe(func(online bool) {
		if online {
			q.ForceProcess()
		}
	})
}

func (q *Queue) process(force bool) {
	q.mu.Lock()
	if q.processing || q.closed || len(q.ops) == 0 || (!force && !q.online()) {
		q.mu.Unlock()
		return
	}
	q.processing = true
	q.mu.Unlock()

	q.emit()
	go q.drain(force)
}

func (q *Queue) drain(force bool) {
	for {
		q.mu.Lock()
		if q.closed || len(q.ops) == 0 || (!force && !q.online()) {
			q.processing = false
			q.mu.Unlock()
			q.emit()
			return
		}
		op := q.ops[0]
		q.lastLabel = op.label
		op.attempts++
		attempt := op.attempts
		q.mu.Unlock()

		v, err := op.action(q.ctx)

		q.mu.Lock()
		if q.closed {
			q.processing = false
			q.mu.Unlock()
			return
		}
		retry := false
		if err == nil {
			q.ops = q.ops[1:]
			q.lastError = ""
		} else {
			q.lastError = err.Error()
			var verr *provider.ValidationError
			// A rejected request fails the same way on every attempt.
			if attempt >= op.maxAttempts || errors.As(err, &verr) {
				q.ops = q.ops[1:]
			} else {
				retry = true
			}
		}
		q.mu.Unlock()

		switch {
		case err == nil:
			op.finish(v, nil)
		case !retry:
			log.Warnf("operation %s failed after %d attempts: %v", op.label, attempt, err)
			op.finish(nil, err)
		default:
			log.Debugf("operation %s attempt %d/%d failed: %v", op.label, attempt, op.maxAttempts, err)
		}
		q.emit()

		if retry {
			select {
			case <-time.After(q.backoff):
			case <-q.ctx.Done():
			}
		}
	}
}

// Snapshot returns the current queue state.
func (q *Queue) Snapshot() Snapshot {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.snapshotLocked()
}

func (q *Queue) snapshotLocked() Snapshot {
	return Snapshot{
		Pending:    len(q.ops),
		LastLabel:  q.lastLabel,
		LastError:  q.lastError,
		Processing: q.processing,
	}
}

// Subscribe registers fn, calls it with the current snapshot and again on
// every change.
func (q *Queue) Subscribe(fn func(Snapshot)) (unsubscribe func()) {
	q.listenersMu.Lock()
	id := q.nextListener
	q.nextListener++
	q.listeners[id] = fn
	q.listenersMu.Unlock()

	notify(fn, q.Snapshot())
	return func() {
		q.listenersMu.Lock()
		delete(q.listeners, id)
		q.listenersMu.Unlock()
	}
}

func (q *Queue) emit() {
	snap := q.Snapshot()
	metrics.SetQueueDepth(snap.Pending)

	q.listenersMu.Lock()
	fns := make([]func(Snapshot), 0, len(q.listeners))
	for _, fn := range q.listeners {
		fns = append(fns, fn)
	}
	q.listenersMu.Unlock()

	for _, fn := range fns {
		notify(fn, snap)
	}
}

func notify(fn func(Snapshot), snap Snapshot) {
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("panic in queue subscriber: %v", r)
		}
	}()
	fn(snap)
}

// Close rejects every pending operation with ErrClosed and stops draining.
// In-flight actions see their context cancelled.
func (q *Queue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	pending := q.ops
	q.ops = nil
	q.mu.Unlock()

	q.cancel()
	for _, op := range pending {
		op.finish(nil, ErrClosed)
	}
	if len(pending) > 0 {
		log.Infof("operation queue closed with %d pending operation(s)", len(pending))
	}
	q.emit()
}
