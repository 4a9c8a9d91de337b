package signal

import (
	"fmt"
	"math"
	"slices"

	"github.com/samber/lo"

	"github.com/ironsheep/droplet-assay-mcp/internal/config"
	"github.com/ironsheep/droplet-assay-mcp/internal/extract"
	"github.com/ironsheep/droplet-assay-mcp/internal/roi"
)

// ROISignals are the smoothed series of one ROI.
type ROISignals struct {
	Eccentricity   []float64
	Area           []float64
	CentroidRadius []float64

	// DropletRadius is (width + height) / 4 of the ROI.
	DropletRadius float64

	// Skipped is set when the ROI had no measurement at all. Its series are
	// then all zero and it has no turns.
	Skipped bool
}

// Result holds the per-ROI output of Process. All slices are indexed
// [roi][frame] except TurnFrames, which lists frame indices.
type Result struct {
	Signals []ROISignals

	// Candidates are eccentricity minima below the absolute threshold.
	Candidates [][]bool

	// Invalid marks frames where the blob is off centre or too small.
	Invalid [][]bool

	// Turns are candidates on valid frames.
	Turns [][]bool

	TurnFrames [][]int
}

// Process smooths the measurements of every ROI and derives turn events.
//
// For each ROI:
//
//  1. Skip it when area, centroid and eccentricity are all NaN.
//  2. Smooth eccentricity and area. Compute the distance of the raw centroid
//     from the ROI centre divided by the droplet radius, and smooth it.
//  3. Candidate turns are minima of the smoothed eccentricity, found with
//     PeakDetThreshold as delta, whose value is below PeakDetAbsThreshold.
//  4. A frame is invalid when the smoothed radius exceeds CentroidRThreshold
//     or the smoothed area is below AreaThreshold times the median raw area
//     (NaN ignored). Comparisons against NaN are false.
//  5. Turns are candidates on frames that are not invalid.
//
// # Errors
//
// Returns an error wrapping ErrConfiguration when p is invalid, an ROI is
// degenerate or the ROI count does not match the matrix.
func Process(m *extract.Matrix, rois []roi.ROI, p config.Params) (*Result, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if len(rois) != m.NumROI {
		return nil, fmt.Errorf("%w: %d rois for a matrix of %d", ErrConfiguration, len(rois), m.NumROI)
	}
	if err := roi.Validate(rois); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfiguration, err)
	}

	n := m.NumFrames
	res := &Result{
		Signals:    make([]ROISignals, m.NumROI),
		Candidates: make([][]bool, m.NumROI),
		Invalid:    make([][]bool, m.NumROI),
		Turns:      make([][]bool, m.NumROI),
		TurnFrames: make([][]int, m.NumROI),
	}

	for k, r := range rois {
		res.Candidates[k] = make([]bool, n)
		res.Invalid[k] = make([]bool, n)
		res.Turns[k] = make([]bool, n)
		res.TurnFrames[k] = []int{}

		radius := r.DropletRadius()
		if allNaN(m.Area[k]) && allNaN(m.Eccentricity[k]) && centroidAllNaN(m.Centroid[k]) {
			res.Signals[k] = ROISignals{
				Eccentricity:   make([]float64, n),
				Area:           make([]float64, n),
				CentroidRadius: make([]float64, n),
				DropletRadius:  radius,
				Skipped:        true,
			}
			continue
		}

		ecc, err := Smooth(m.Eccentricity[k], p.EccentricityFilsize)
		if err != nil {
			return nil, err
		}
		area, err := Smooth(m.Area[k], p.AreaFilsize)
		if err != nil {
			return nil, err
		}
		cr, err := Smooth(centroidRadius(m.Centroid[k], r), p.CentroidFilsize)
		if err != nil {
			return nil, err
		}
		res.Signals[k] = ROISignals{Eccentricity: ecc, Area: area, CentroidRadius: cr, DropletRadius: radius}

		_, minima, err := DetectPeaks(ecc, p.PeakDetThreshold)
		if err != nil {
			return nil, err
		}
		for _, pk := range minima {
			if pk.Value < p.PeakDetAbsThreshold {
				res.Candidates[k][pk.Index] = true
			}
		}

		minArea := p.AreaThreshold * nanMedian(m.Area[k])
		for j := 0; j < n; j++ {
			res.Invalid[k][j] = cr[j] > p.CentroidRThreshold || area[j] < minArea
			if res.Candidates[k][j] && !res.Invalid[k][j] {
				res.Turns[k][j] = true
				res.TurnFrames[k] = append(res.TurnFrames[k], j)
			}
		}
	}
	return res, nil
}

// centroidRadius returns the distance of each centroid from the ROI centre,
// normalised by the droplet radius.
func centroidRadius(centroid [][2]float64, r roi.ROI) []float64 {
	cRow, cCol := r.Center()
	radius := r.DropletRadius()
	return lo.Map(centroid, func(c [2]float64, _ int) float64 {
		return math.Hypot(c[0]-cRow, c[1]-cCol) / radius
	})
}

func allNaN(s []float64) bool {
	return lo.EveryBy(s, math.IsNaN)
}

func centroidAllNaN(s [][2]float64) bool {
	return lo.EveryBy(s, func(c [2]float64) bool {
		return math.IsNaN(c[0]) && math.IsNaN(c[1])
	})
}

// nanMedian returns the median of the non-NaN values of s, averaging the two
// middle values for an even count. It is NaN when no value remains.
func nanMedian(s []float64) float64 {
	v := lo.Filter(s, func(x float64, _ int) bool { return !math.IsNaN(x) })
	if len(v) == 0 {
		return math.NaN()
	}
	slices.Sort(v)
	mid := len(v) / 2
	if len(v)%2 == 1 {
		return v[mid]
	}
	return (v[mid-1] + v[mid]) / 2
}
