package ratelimit

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLimiter(max int) *HostLimiter {
	return NewHostLimiter(max, zerolog.Nop())
}

func TestNewHostLimiter_Default(t *testing.T) {
	assert.Equal(t, DefaultMaxPerHost, newTestLimiter(0).Max())
	assert.Equal(t, DefaultMaxPerHost, newTestLimiter(-3).Max())
	assert.Equal(t, 2, newTestLimiter(2).Max())
}

func TestHostLimiter_NeverExceedsMax(t *testing.T) {
	const (
		max      = 3
		requests = 25
	)
	l := newTestLimiter(max)

	var (
		running  atomic.Int64
		peak     atomic.Int64
		finished atomic.Int64
		wg       sync.WaitGroup
	)

	for i := 0; i < requests; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := l.Do(context.Background(), "pds.example.com", func(ctx context.Context) error {
				n := running.Add(1)
				for {
					p := peak.Load()
					if n <= p || peak.CompareAndSwap(p, n) {
						break
					}
				}
				time.Sleep(5 * time.Millisecond)
				running.Add(-1)
				finished.Add(1)
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, peak.Load(), int64(max))
	assert.Equal(t, int64(requests), finished.Load())
	assert.True(t, l.State("pds.example.com").Idle())
}

func TestHostLimiter_FailuresDoNotLeakSlots(t *testing.T) {
	l := newTestLimiter(2)
	errBoom := errors.New("boom")

	for i := 0; i < 10; i++ {
		err := l.Do(context.Background(), "host", func(ctx context.Context) error {
			return errBoom
		})
		require.ErrorIs(t, err, errBoom)
	}
	assert.Equal(t, 0, l.State("host").InFlight)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	r1, err := l.Acquire(ctx, "host")
	require.NoError(t, err)
	r2, err := l.Acquire(ctx, "host")
	require.NoError(t, err)
	assert.True(t, l.State("host").Saturated())

	r1()
	r2()
}

func TestHostLimiter_PanicReleasesSlot(t *testing.T) {
	l := newTestLimiter(1)

	func() {
		defer func() {
			assert.NotNil(t, recover())
		}()
		_ = l.Do(context.Background(), "host", func(ctx context.Context) error {
			panic("boom")
		})
	}()

	assert.Equal(t, 0, l.State("host").InFlight)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	release, err := l.Acquire(ctx, "host")
	require.NoError(t, err)
	release()
}

func TestHostLimiter_FIFOAdmission(t *testing.T) {
	l := newTestLimiter(1)
	ctx := context.Background()

	hold, err := l.Acquire(ctx, "host")
	require.NoError(t, err)

	const waiters = 5
	var (
		mu    sync.Mutex
		order []int
		wg    sync.WaitGroup
	)
	for i := 0; i < waiters; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = l.Do(ctx, "host", func(ctx context.Context) error {
				mu.Lock()
				order = append(order, i)
				mu.Unlock()
				return nil
			})
		}(i)

		// Make sure waiter i is queued before waiter i+1 arrives.
		require.Eventually(t, func() bool {
			return l.State("host").Waiting == i+1
		}, time.Second, time.Millisecond)
		time.Sleep(10 * time.Millisecond)
	}

	hold()
	wg.Wait()

	assert.Equal(t, []int{0, 1, 2, 3, 4}, order)
}

func TestHostLimiter_KeysAreIndependent(t *testing.T) {
	l := newTestLimiter(1)

	hold, err := l.Acquire(context.Background(), "a.example.com")
	require.NoError(t, err)
	defer hold()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	release, err := l.Acquire(ctx, "b.example.com")
	require.NoError(t, err, "saturated key must not block other keys")
	release()

	assert.Equal(t, []string{"a.example.com", "b.example.com"}, l.Keys())
}

func TestHostLimiter_CancelWhileWaiting(t *testing.T) {
	l := newTestLimiter(1)

	hold, err := l.Acquire(context.Background(), "host")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	called := false
	err = l.Do(ctx, "host", func(ctx context.Context) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, called)
	assert.Equal(t, 0, l.State("host").Waiting)

	hold()
	assert.True(t, l.State("host").Idle())
}

func TestHostLimiter_AcquireWithDoneContext(t *testing.T) {
	l := newTestLimiter(5)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := l.Acquire(ctx, "host")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, l.State("host").InFlight)
}

func TestHostLimiter_ReleaseIdempotent(t *testing.T) {
	l := newTestLimiter(1)

	release, err := l.Acquire(context.Background(), "host")
	require.NoError(t, err)

	release()
	assert.NotPanics(t, release)
	assert.Equal(t, 0, l.State("host").InFlight)
}

func TestHostLimiter_StateUnknownKey(t *testing.T) {
	l := newTestLimiter(4)

	state := l.State("unknown")
	assert.Equal(t, HostState{Key: "unknown", Max: 4}, state)
	assert.Empty(t, l.Keys(), "State must not create keys")
}

func TestKeyFor(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{name: "https url", raw: "https://Constellation.Microcosm.Blue/links/distinct-dids?x=1", want: "constellation.microcosm.blue"},
		{name: "explicit port", raw: "http://127.0.0.1:8080/xrpc/com.atproto.repo.listRecords", want: "127.0.0.1:8080"},
		{name: "bare host", raw: "pds.example.com", want: "pds.example.com"},
		{name: "invalid url", raw: "://bad", want: "://bad"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KeyFor(tt.raw))
		})
	}
}
