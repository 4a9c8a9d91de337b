package parallel

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func square(_ context.Context, i int) (int, error) {
	return i * i, nil
}

func noFallback(int, error) int { return -1 }

func TestMap_DeterministicUnderRandomDelays(t *testing.T) {
	const n = 200
	rng := rand.New(rand.NewSource(1))
	delays := make([]time.Duration, n)
	for i := range delays {
		delays[i] = time.Duration(rng.Intn(2000)) * time.Microsecond
	}

	task := func(ctx context.Context, i int) (int, error) {
		time.Sleep(delays[i])
		return square(ctx, i)
	}

	want, err := Map(context.Background(), Sequential{}, n, square, noFallback)
	require.NoError(t, err)

	for _, workers := range []int{1, 3, 8, 0} {
		got, err := Map(context.Background(), &Pool{Workers: workers}, n, task, noFallback)
		require.NoError(t, err)
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("workers=%d: result differs from sequential run (-want +got):\n%s", workers, diff)
		}
	}
}

func TestPool_BoundsConcurrency(t *testing.T) {
	var running, peak atomic.Int32
	pool := &Pool{Workers: 3}

	err := pool.Run(context.Background(), 30, func(ctx context.Context, i int) error {
		cur := running.Add(1)
		for {
			p := peak.Load()
			if cur <= p || peak.CompareAndSwap(p, cur) {
				break
			}
		}
		time.Sleep(time.Millisecond)
		running.Add(-1)
		return nil
	})
	require.NoError(t, err)
	assert.LessOrEqual(t, peak.Load(), int32(3))
}

func TestPool_Progress(t *testing.T) {
	var calls []int
	var mu sync.Mutex
	pool := &Pool{
		Workers: 4,
		Progress: func(done, total int) {
			mu.Lock()
			calls = append(calls, done)
			mu.Unlock()
			assert.Equal(t, 25, total)
		},
	}

	require.NoError(t, pool.Run(context.Background(), 25, func(context.Context, int) error { return nil }))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, calls, 25)
	for i, d := range calls {
		assert.Equal(t, i+1, d)
	}
}

func TestPool_Cancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var started atomic.Int32
	release := make(chan struct{})
	defer close(release)

	pool := &Pool{Workers: 2}
	errCh := make(chan error, 1)
	go func() {
		errCh <- pool.Run(ctx, 100, func(ctx context.Context, i int) error {
			if started.Add(1) == 2 {
				cancel()
			}
			// in-flight tasks keep running after cancellation
			<-release
			return nil
		})
	}()

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, ErrAborted)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}
	assert.Less(t, started.Load(), int32(100))
}

func TestPool_NoProgressAfterAbort(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls atomic.Int32
	var started atomic.Int32
	release := make(chan struct{})
	finished := make(chan struct{}, 2)

	pool := &Pool{
		Workers:  2,
		Progress: func(done, total int) { calls.Add(1) },
	}
	err := pool.Run(ctx, 10, func(ctx context.Context, i int) error {
		defer func() { finished <- struct{}{} }()
		if started.Add(1) == 2 {
			cancel()
		}
		<-release
		return nil
	})
	require.ErrorIs(t, err, ErrAborted)

	// let the abandoned tasks complete
	close(release)
	for i := 0; i < 2; i++ {
		select {
		case <-finished:
		case <-time.After(5 * time.Second):
			t.Fatal("abandoned task did not finish")
		}
	}
	// report runs after the task body returns
	time.Sleep(50 * time.Millisecond)
	assert.Zero(t, calls.Load())
}

func TestPool_AlreadyCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var ran atomic.Int32
	err := (&Pool{Workers: 2}).Run(ctx, 10, func(context.Context, int) error {
		ran.Add(1)
		return nil
	})
	assert.ErrorIs(t, err, ErrAborted)
	assert.Zero(t, ran.Load())
}

func TestPool_InvalidInput(t *testing.T) {
	err := (&Pool{}).Run(context.Background(), -1, func(context.Context, int) error { return nil })
	assert.ErrorIs(t, err, ErrPool)

	err = (&Pool{}).Run(context.Background(), 1, nil)
	assert.ErrorIs(t, err, ErrPool)

	err = Sequential{}.Run(context.Background(), -1, func(context.Context, int) error { return nil })
	assert.ErrorIs(t, err, ErrPool)
}

func TestPool_TaskError(t *testing.T) {
	boom := errors.New("boom")
	err := (&Pool{Workers: 2}).Run(context.Background(), 5, func(_ context.Context, i int) error {
		if i == 3 {
			return boom
		}
		return nil
	})
	assert.ErrorIs(t, err, boom)
}

func TestSequential_Cancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var ran int
	err := Sequential{}.Run(ctx, 10, func(_ context.Context, i int) error {
		ran++
		if i == 4 {
			cancel()
		}
		return nil
	})
	assert.ErrorIs(t, err, ErrAborted)
	assert.Equal(t, 5, ran)
}

func TestMap_IsolatesFailures(t *testing.T) {
	task := func(_ context.Context, i int) (int, error) {
		switch i {
		case 2:
			return 0, errors.New("unreadable frame")
		case 5:
			panic("corrupt frame")
		}
		return i, nil
	}

	var failed []int
	var mu sync.Mutex
	fallback := func(i int, err error) int {
		mu.Lock()
		failed = append(failed, i)
		mu.Unlock()
		assert.Error(t, err)
		return -1
	}

	got, err := Map(context.Background(), &Pool{Workers: 3}, 8, task, fallback)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, -1, 3, 4, -1, 6, 7}, got)
	assert.ElementsMatch(t, []int{2, 5}, failed)
}

func TestMap_Aborted(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	got, err := Map(ctx, &Pool{Workers: 2}, 10, square, noFallback)
	assert.ErrorIs(t, err, ErrAborted)
	assert.Nil(t, got)
}

func TestMap_Empty(t *testing.T) {
	got, err := Map(context.Background(), &Pool{}, 0, square, noFallback)
	require.NoError(t, err)
	assert.Empty(t, got)
}
