// Package signal turns raw per-frame measurements into turn events.
//
// Series are smoothed with a centred moving average, scanned for extrema with
// a hysteresis detector and masked where the blob is off centre or too small.
// NaN marks missing samples throughout and is never replaced by zero.
package signal

import (
	"fmt"

	"gonum.org/v1/gonum/stat"

	"github.com/ironsheep/droplet-assay-mcp/internal/config"
)

// ErrConfiguration is config.ErrConfiguration.
var ErrConfiguration = config.ErrConfiguration

// Smooth returns the centred moving average of series.
//
// The window for sample i spans [i-h, i+h+1) with h = (window-1)/2, extended by
// one sample on the right for even windows, and is clamped to the series at
// both ends. A window containing NaN averages to NaN.
func Smooth(series []float64, window int) ([]float64, error) {
	if window < 1 {
		return nil, fmt.Errorf("%w: smoothing window must be at least 1 (got %d)", ErrConfiguration, window)
	}

	n := len(series)
	out := make([]float64, n)
	half := (window - 1) / 2
	extra := 0
	if window%2 == 0 {
		extra = 1
	}
	for i := range out {
		lo := max(0, i-half)
		hi := min(n, i+half+1+extra)
		out[i] = stat.Mean(series[lo:hi], nil)
	}
	return out, nil
}
