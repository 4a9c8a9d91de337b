package signal

import (
	"fmt"
	"math"
)

// PeakKind distinguishes maxima from minima.
type PeakKind int

const (
	PeakMax PeakKind = iota
	PeakMin
)

func (k PeakKind) String() string {
	if k == PeakMin {
		return "min"
	}
	return "max"
}

// Peak is one extremum found by DetectPeaks.
type Peak struct {
	Index int      `json:"index"`
	Value float64  `json:"value"`
	Kind  PeakKind `json:"kind"`
}

// DetectPeaks finds the extrema of series in one pass.
//
// The detector starts out looking for a maximum. It tracks the running
// maximum and reports it once the series drops more than delta below it, then
// looks for a minimum the same way, and so on. NaN samples never update the
// running extrema and never trigger a switch.
//
// Returns an error wrapping ErrConfiguration when delta is not positive.
func DetectPeaks(series []float64, delta float64) (maxima, minima []Peak, err error) {
	if !(delta > 0) {
		return nil, nil, fmt.Errorf("%w: peak detection delta must be positive (got %v)", ErrConfiguration, delta)
	}

	mn, mx := math.Inf(1), math.Inf(-1)
	mnPos, mxPos := -1, -1
	seekMax := true

	for i, v := range series {
		if v > mx {
			mx, mxPos = v, i
		}
		if v < mn {
			mn, mnPos = v, i
		}

		if seekMax {
			if v < mx-delta {
				maxima = append(maxima, Peak{Index: mxPos, Value: mx, Kind: PeakMax})
				mn, mnPos = v, i
				seekMax = false
			}
		} else if v > mn+delta {
			minima = append(minima, Peak{Index: mnPos, Value: mn, Kind: PeakMin})
			mx, mxPos = v, i
			seekMax = true
		}
	}
	return maxima, minima, nil
}
