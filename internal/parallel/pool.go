// Package parallel runs independent indexed tasks on a bounded worker pool.
//
// Results are always assembled by task index, never by completion order, so a
// pooled run produces exactly the same output as a sequential one.
//
// # Cancellation
//
// Cancellation is cooperative. The context is polled before each task is
// dispatched; once the pool is saturated a dispatch only happens after a task
// completes, so cancellation is observed between task completions. When
// cancelled, a runner stops dispatching, stops waiting for in-flight tasks and
// returns ErrAborted. Abandoned tasks finish in the background and their
// results are discarded.
package parallel

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"
)

var (
	// ErrAborted reports that a run was cancelled before all tasks completed.
	ErrAborted = errors.New("aborted")

	// ErrPool reports that the pool itself failed, as opposed to a task.
	ErrPool = errors.New("worker pool failure")
)

// Runner executes n indexed tasks.
//
// Run returns nil after every task returned nil, the first task error
// otherwise, or ErrAborted when ctx was cancelled first.
type Runner interface {
	Run(ctx context.Context, n int, exec func(ctx context.Context, i int) error) error
}

// Pool is a Runner backed by a bounded set of goroutines.
type Pool struct {
	// Workers is the maximum number of concurrently running tasks.
	// Zero or negative uses runtime.GOMAXPROCS(0).
	Workers int

	// Progress, when set, is called after each task with the number of
	// completed tasks. Calls are serialised and done increases by one each
	// time. No call is made once Run has returned ErrAborted.
	Progress func(done, total int)
}

// NewPool returns a pool of the given size.
func NewPool(workers int) *Pool {
	return &Pool{Workers: workers}
}

func (p *Pool) workers() int {
	if p.Workers > 0 {
		return p.Workers
	}
	return runtime.GOMAXPROCS(0)
}

// Run implements Runner.
func (p *Pool) Run(ctx context.Context, n int, exec func(ctx context.Context, i int) error) error {
	if n < 0 {
		return fmt.Errorf("%w: negative task count %d", ErrPool, n)
	}
	if exec == nil {
		return fmt.Errorf("%w: nil task function", ErrPool)
	}

	var (
		mu      sync.Mutex
		done    int
		stopped bool
	)
	report := func() {
		if p.Progress == nil {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		if stopped {
			return
		}
		done++
		p.Progress(done, n)
	}
	abort := func() error {
		mu.Lock()
		stopped = true
		mu.Unlock()
		return ErrAborted
	}

	var g errgroup.Group
	slots := make(chan struct{}, p.workers())

	for i := 0; i < n; i++ {
		if ctx.Err() != nil {
			return abort()
		}
		select {
		case <-ctx.Done():
			return abort()
		case slots <- struct{}{}:
		}

		i := i
		g.Go(func() error {
			defer func() { <-slots }()
			defer report()
			return exec(ctx, i)
		})
	}

	wait := make(chan error, 1)
	go func() {
		wait <- g.Wait()
	}()

	select {
	case err := <-wait:
		return err
	case <-ctx.Done():
		return abort()
	}
}

// Sequential is a Runner that executes tasks one after another on the
// calling goroutine.
type Sequential struct{}

// Run implements Runner.
func (Sequential) Run(ctx context.Context, n int, exec func(ctx context.Context, i int) error) error {
	if n < 0 {
		return fmt.Errorf("%w: negative task count %d", ErrPool, n)
	}
	for i := 0; i < n; i++ {
		if ctx.Err() != nil {
			return ErrAborted
		}
		if err := exec(ctx, i); err != nil {
			return err
		}
	}
	return nil
}
