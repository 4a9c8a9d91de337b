package parallel

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
)

// Map runs task for every index in [0, n) on r and collects the results in
// index order.
//
// A failing task never fails the run: its error (or a recovered panic) is
// logged and the slot is filled with fallback(i, err). Map returns an error
// only when the runner does, which is ErrAborted on cancellation or an
// ErrPool failure. Partial results are not returned.
func Map[T any](
	ctx context.Context,
	r Runner,
	n int,
	task func(ctx context.Context, i int) (T, error),
	fallback func(i int, err error) T,
) ([]T, error) {
	out := make([]T, max(n, 0))

	err := r.Run(ctx, n, func(ctx context.Context, i int) error {
		v, err := call(ctx, i, task)
		if err != nil {
			log.Warn().
				Str("evt.name", "parallel.task_failed").
				Int("task", i).
				Err(err).
				Msg("task failed, using fallback result")
			v = fallback(i, err)
		}
		out[i] = v
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func call[T any](ctx context.Context, i int, task func(ctx context.Context, i int) (T, error)) (v T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task %d panicked: %v", i, r)
		}
	}()
	return task(ctx, i)
}
