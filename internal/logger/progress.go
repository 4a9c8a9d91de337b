package logger

import (
	"github.com/rs/zerolog/log"
)

// Progress returns a callback for parallel.Pool.Progress that logs an info
// event each time another 1/steps of the tasks has completed, and once more
// when all are done.
func Progress(name string, steps int) func(done, total int) {
	if steps < 1 {
		steps = 1
	}
	return func(done, total int) {
		if total <= 0 {
			return
		}
		if done != total && done*steps/total == (done-1)*steps/total {
			return
		}
		log.Info().
			Str("evt.name", name).
			Int("done", done).
			Int("total", total).
			Int("percent", done*100/total).
			Msg("progress")
	}
}
