package orchestrator

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/godsownf/sessiondiff/pkg/session"
)

// fakeRunner returns a canned result after an optional delay, tracking how
// many runners are inside Run at once.
type fakeRunner struct {
	result  session.Result
	delay   time.Duration
	active  *int64
	highest *int64
}

func (f *fakeRunner) Run(ctx context.Context) session.Result {
	if f.active != nil {
		now := atomic.AddInt64(f.active, 1)
		for {
			high := atomic.LoadInt64(f.highest)
			if now <= high || atomic.CompareAndSwapInt64(f.highest, high, now) {
				break
			}
		}
		defer atomic.AddInt64(f.active, -1)
	}
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
		}
	}
	return f.result
}

func configs(n int) []session.Config {
	out := make([]session.Config, n)
	for i := range out {
		out[i] = session.Config{AccountID: string(rune('a' + i))}
	}
	return out
}

func TestRun(t *testing.T) {
	t.Run("rejects non positive concurrency", func(t *testing.T) {
		o := New(func(cfg session.Config) Runner { return &fakeRunner{} }, nil)
		_, err := o.Run(context.Background(), configs(2), 0)
		assert.Error(t, err)
	})

	t.Run("one result per config in input order", func(t *testing.T) {
		o := New(func(cfg session.Config) Runner {
			return &fakeRunner{result: session.Result{AccountID: cfg.AccountID, Succeeded: true}}
		}, nil)

		results, err := o.Run(context.Background(), configs(5), 2)
		require.NoError(t, err)
		require.Len(t, results, 5)
		for i, res := range results {
			assert.Equal(t, string(rune('a'+i)), res.AccountID)
			assert.True(t, res.Succeeded)
		}
	})

	t.Run("never exceeds the admission limit", func(t *testing.T) {
		var active, highest int64
		o := New(func(cfg session.Config) Runner {
			return &fakeRunner{
				result:  session.Result{AccountID: cfg.AccountID, Succeeded: true},
				delay:   20 * time.Millisecond,
				active:  &active,
				highest: &highest,
			}
		}, nil)

		_, err := o.Run(context.Background(), configs(8), 3)
		require.NoError(t, err)
		assert.LessOrEqual(t, atomic.LoadInt64(&highest), int64(3))
		assert.Positive(t, atomic.LoadInt64(&highest))
	})

	t.Run("a failing session does not affect the others", func(t *testing.T) {
		boom := errors.New("browser crashed")
		o := New(func(cfg session.Config) Runner {
			if cfg.AccountID == "b" {
				return &fakeRunner{result: session.Result{AccountID: cfg.AccountID, Err: boom}}
			}
			return &fakeRunner{result: session.Result{AccountID: cfg.AccountID, Succeeded: true}}
		}, nil)

		results, err := o.Run(context.Background(), configs(3), 3)
		require.NoError(t, err)
		assert.True(t, results[0].Succeeded)
		assert.ErrorIs(t, results[1].Err, boom)
		assert.True(t, results[2].Succeeded)
	})

	t.Run("cancellation fails pending sessions with the context error", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		started := make(chan struct{})
		var once sync.Once
		o := New(func(cfg session.Config) Runner {
			once.Do(func() { close(started) })
			return &fakeRunner{
				result: session.Result{AccountID: cfg.AccountID, Succeeded: true},
				delay:  50 * time.Millisecond,
			}
		}, nil)

		go func() {
			<-started
			cancel()
		}()

		// One slot: the first session holds the gate while the rest wait on
		// Acquire and get cancelled.
		results, err := o.Run(ctx, configs(4), 1)
		require.NoError(t, err)
		require.Len(t, results, 4)
		cancelled := 0
		for _, res := range results {
			if errors.Is(res.Err, context.Canceled) {
				cancelled++
			}
		}
		assert.Positive(t, cancelled)
	})

	t.Run("empty batch yields an empty aggregate", func(t *testing.T) {
		o := New(func(cfg session.Config) Runner { return &fakeRunner{} }, nil)
		results, err := o.Run(context.Background(), nil, 2)
		require.NoError(t, err)
		assert.Empty(t, results)
	})
}

func TestWaitForShutdown(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		WaitForShutdown(ctx, nil)
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("returned before cancellation")
	case <-time.After(10 * time.Millisecond):
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("did not return after cancellation")
	}
}
