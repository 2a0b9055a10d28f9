package queue

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/anclora/orchestrator/internal/netstate"
	"github.com/anclora/orchestrator/internal/provider"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastOptions() Options {
	return Options{Backoff: time.Millisecond, MaxAttempts: DefaultMaxAttempts}
}

func waitCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestEnqueue_OnlineRunsImmediately(t *testing.T) {
	q := New(netstate.NewManual(true), fastOptions())
	defer q.Close()

	f := Enqueue(q, "translate", func(context.Context) (string, error) { return "done", nil }, 0)
	v, err := f.Wait(waitCtx(t))
	require.NoError(t, err)
	assert.Equal(t, "done", v)
	assert.NotEmpty(t, f.ID)

	assert.Eventually(t, func() bool { return !q.Snapshot().Processing }, time.Second, time.Millisecond)
	snap := q.Snapshot()
	assert.Equal(t, 0, snap.Pending)
	assert.Equal(t, "translate", snap.LastLabel)
	assert.Empty(t, snap.LastError)
}

func TestEnqueue_OfflineWaitsForOnlineTransition(t *testing.T) {
	net := netstate.NewManual(false)
	q := New(net, fastOptions())
	defer q.Close()
	q.Watch(net)

	var calls atomic.Int32
	f := Enqueue(q, "image", func(context.Context) (int, error) {
		calls.Add(1)
		return 42, nil
	}, 0)

	time.Sleep(30 * time.Millisecond)
	assert.Zero(t, calls.Load(), "nothing runs while offline")
	assert.Equal(t, 1, q.Snapshot().Pending)

	net.Set(true)
	v, err := f.Wait(waitCtx(t))
	require.NoError(t, err)
	assert.Equal(t, 42, v)
	assert.Equal(t, int32(1), calls.Load())
}

func TestEnqueue_RejectsAfterMaxAttempts(t *testing.T) {
	q := New(nil, fastOptions())
	defer q.Close()

	boom := errors.New("backend 503")
	var calls atomic.Int32
	f := Enqueue(q, "tts", func(context.Context) (string, error) {
		calls.Add(1)
		return "", boom
	}, 3)

	_, err := f.Wait(waitCtx(t))
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, int32(3), calls.Load())

	assert.Eventually(t, func() bool { return !q.Snapshot().Processing }, time.Second, time.Millisecond)
	snap := q.Snapshot()
	assert.Equal(t, 0, snap.Pending)
	assert.Equal(t, "backend 503", snap.LastError)
}

func TestEnqueue_ValidationErrorSettlesWithoutRetry(t *testing.T) {
	net := netstate.NewManual(false)
	q := New(net, Options{Backoff: time.Hour, MaxAttempts: DefaultMaxAttempts})
	defer q.Close()
	q.Watch(net)

	var calls atomic.Int32
	f := Enqueue(q, "text", func(context.Context) (string, error) {
		calls.Add(1)
		return "", &provider.ValidationError{Field: "prompt", Reason: "is required"}
	}, 0)
	net.Set(true)

	_, err := f.Wait(waitCtx(t))
	var verr *provider.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "prompt", verr.Field)
	assert.Equal(t, int32(1), calls.Load())
	assert.Eventually(t, func() bool { return q.Snapshot().Pending == 0 }, time.Second, time.Millisecond)
}

func TestDrain_FIFOWithInPlaceRetry(t *testing.T) {
	net := netstate.NewManual(false)
	q := New(net, fastOptions())
	defer q.Close()

	var mu sync.Mutex
	var order []string
	record := func(s string) {
		mu.Lock()
		order = append(order, s)
		mu.Unlock()
	}

	failures := 1
	a := Enqueue(q, "a", func(context.Context) (string, error) {
		record("a")
		if failures > 0 {
			failures--
			return "", errors.New("flaky")
		}
		return "a", nil
	}, 0)
	b := Enqueue(q, "b", func(context.Context) (string, error) {
		record("b")
		return "b", nil
	}, 0)

	q.ForceProcess()
	_, err := a.Wait(waitCtx(t))
	require.NoError(t, err)
	_, err = b.Wait(waitCtx(t))
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"a", "a", "b"}, order)
}

func TestForceProcess_DrainsWhileOffline(t *testing.T) {
	q := New(netstate.NewManual(false), fastOptions())
	defer q.Close()

	f := Enqueue(q, "x", func(context.Context) (bool, error) { return true, nil }, 0)
	q.ForceProcess()
	q.ForceProcess()

	v, err := f.Wait(waitCtx(t))
	require.NoError(t, err)
	assert.True(t, v)
}

func TestSubscribe(t *testing.T) {
	q := New(netstate.NewManual(false), fastOptions())
	defer q.Close()

	var mu sync.Mutex
	var snaps []Snapshot
	unsubscribe := q.Subscribe(func(s Snapshot) {
		mu.Lock()
		snaps = append(snaps, s)
		mu.Unlock()
	})
	q.Subscribe(func(Snapshot) { panic("listener bug") })

	mu.Lock()
	require.Len(t, snaps, 1, "current snapshot is delivered immediately")
	assert.Equal(t, 0, snaps[0].Pending)
	mu.Unlock()

	Enqueue(q, "x", func(context.Context) (int, error) { return 1, nil }, 0)

	mu.Lock()
	require.Len(t, snaps, 2)
	assert.Equal(t, 1, snaps[1].Pending)
	mu.Unlock()

	unsubscribe()
	Enqueue(q, "y", func(context.Context) (int, error) { return 1, nil }, 0)
	mu.Lock()
	assert.Len(t, snaps, 2)
	mu.Unlock()
}

func TestClose_RejectsPending(t *testing.T) {
	q := New(netstate.NewManual(false), fastOptions())

	f1 := Enqueue(q, "a", func(context.Context) (int, error) { return 1, nil }, 0)
	f2 := Enqueue(q, "b", func(context.Context) (int, error) { return 2, nil }, 0)
	q.Close()
	q.Close()

	_, err := f1.Wait(waitCtx(t))
	assert.ErrorIs(t, err, ErrClosed)
	_, err = f2.Wait(waitCtx(t))
	assert.ErrorIs(t, err, ErrClosed)

	late := Enqueue(q, "c", func(context.Context) (int, error) { return 3, nil }, 0)
	_, err = late.Wait(waitCtx(t))
	assert.ErrorIs(t, err, ErrClosed)
	assert.Equal(t, 0, q.Snapshot().Pending)
}

func TestRunOrEnqueue(t *testing.T) {
	net := netstate.NewManual(true)
	q := New(net, fastOptions())
	defer q.Close()

	v, err := RunOrEnqueue(context.Background(), q, "direct", func(context.Context) (string, error) { return "now", nil }, 0)
	require.NoError(t, err)
	assert.Equal(t, "now", v)
	assert.Empty(t, q.Snapshot().LastLabel, "online calls bypass the queue")

	net.Set(false)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = RunOrEnqueue(ctx, q, "deferred", func(context.Context) (string, error) { return "later", nil }, 0)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, q.Snapshot().Pending, "abandoned waits keep the operation queued")
}

func TestFuture_WaitContext(t *testing.T) {
	q := New(netstate.NewManual(false), fastOptions())
	defer q.Close()

	f := Enqueue(q, "x", func(context.Context) (int, error) { return 1, nil }, 0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := f.Wait(ctx)
	assert.ErrorIs(t, err, context.Canceled)

	select {
	case <-f.Done():
		t.Fatal("future settled while offline")
	default:
	}
}
