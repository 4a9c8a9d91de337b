package extract

import (
	"math"

	"github.com/rs/zerolog/log"
)

// Default inactivity thresholds.
const (
	DefaultDiffThreshold = 0.015
	DefaultMinRun        = 100
)

// IsInactive reports whether an eccentricity series belongs to a subject that
// does not move.
//
// A series is inactive when every sample is NaN, or when at least minRun
// consecutive frame-to-frame differences are below diffThreshold in absolute
// value. A difference involving NaN breaks the run.
func IsInactive(ecc []float64, diffThreshold float64, minRun int) bool {
	allNaN := true
	for _, v := range ecc {
		if !math.IsNaN(v) {
			allNaN = false
			break
		}
	}
	if allNaN {
		return true
	}

	run := 0
	for j := 1; j < len(ecc); j++ {
		if math.Abs(ecc[j]-ecc[j-1]) < diffThreshold {
			run++
			if run >= minRun {
				return true
			}
		} else {
			run = 0
		}
	}
	return false
}

// ClassifyInactive applies IsInactive to every ROI's eccentricity series.
func ClassifyInactive(ecc [][]float64, diffThreshold float64, minRun int) []bool {
	out := make([]bool, len(ecc))
	for k, s := range ecc {
		out[k] = IsInactive(s, diffThreshold, minRun)
	}
	return out
}

// Suppress returns a copy of m with every series of the inactive ROIs set to
// NaN. m is not modified.
func Suppress(m *Matrix, inactive []bool) *Matrix {
	out := m.Clone()
	for k, off := range inactive {
		if !off || k >= out.NumROI {
			continue
		}
		out.clearROI(k)
		log.Info().
			Str("evt.name", "extract.roi_inactive").
			Int("roi", k+1).
			Msg("roi marked as ignored due to inactivity")
	}
	return out
}
