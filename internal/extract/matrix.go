// Package extract measures the subject inside every ROI of every frame.
//
// For each frame the dilated background is subtracted, each ROI is filtered
// with a disk kernel, the brightest blob around the filter peak is segmented
// and its region properties are recorded. Frames are independent and run on a
// parallel.Runner; the results are assembled into a Matrix indexed
// [roi][frame].
package extract

import "math"

// Measurement is the morphology of the subject in one ROI of one frame.
//
// NaN in any field means "no measurement": the ROI was ignored, the crop was
// empty, no blob was found or the frame failed. Axis lengths and orientation
// are also NaN when either axis length is zero.
type Measurement struct {
	Area         float64
	Row          float64
	Col          float64
	Eccentricity float64
	MajorAxis    float64
	MinorAxis    float64

	// Orientation of the major axis in degrees.
	Orientation float64
}

// NaNMeasurement returns a measurement with every field NaN.
func NaNMeasurement() Measurement {
	nan := math.NaN()
	return Measurement{nan, nan, nan, nan, nan, nan, nan}
}

// Matrix holds the measurements of a run. Every series has NumFrames entries.
type Matrix struct {
	NumROI    int
	NumFrames int

	Area         [][]float64
	Eccentricity [][]float64
	MajorAxis    [][]float64
	MinorAxis    [][]float64
	Orientation  [][]float64

	// Centroid holds (row, col) pairs relative to the ROI top-left corner.
	Centroid [][][2]float64
}

// NewMatrix allocates a matrix filled with NaN.
func NewMatrix(numROI, numFrames int) *Matrix {
	m := &Matrix{
		NumROI:       numROI,
		NumFrames:    numFrames,
		Area:         nanSeries(numROI, numFrames),
		Eccentricity: nanSeries(numROI, numFrames),
		MajorAxis:    nanSeries(numROI, numFrames),
		MinorAxis:    nanSeries(numROI, numFrames),
		Orientation:  nanSeries(numROI, numFrames),
		Centroid:     make([][][2]float64, numROI),
	}
	nan := math.NaN()
	for k := range m.Centroid {
		m.Centroid[k] = make([][2]float64, numFrames)
		for j := range m.Centroid[k] {
			m.Centroid[k][j] = [2]float64{nan, nan}
		}
	}
	return m
}

func nanSeries(numROI, numFrames int) [][]float64 {
	out := make([][]float64, numROI)
	for k := range out {
		out[k] = make([]float64, numFrames)
		for j := range out[k] {
			out[k][j] = math.NaN()
		}
	}
	return out
}

// Set stores the measurement of ROI k in frame j.
func (m *Matrix) Set(k, j int, ms Measurement) {
	m.Area[k][j] = ms.Area
	m.Eccentricity[k][j] = ms.Eccentricity
	m.MajorAxis[k][j] = ms.MajorAxis
	m.MinorAxis[k][j] = ms.MinorAxis
	m.Orientation[k][j] = ms.Orientation
	m.Centroid[k][j] = [2]float64{ms.Row, ms.Col}
}

// At returns the measurement of ROI k in frame j.
func (m *Matrix) At(k, j int) Measurement {
	return Measurement{
		Area:         m.Area[k][j],
		Row:          m.Centroid[k][j][0],
		Col:          m.Centroid[k][j][1],
		Eccentricity: m.Eccentricity[k][j],
		MajorAxis:    m.MajorAxis[k][j],
		MinorAxis:    m.MinorAxis[k][j],
		Orientation:  m.Orientation[k][j],
	}
}

// Clone returns a deep copy.
func (m *Matrix) Clone() *Matrix {
	c := &Matrix{
		NumROI:       m.NumROI,
		NumFrames:    m.NumFrames,
		Area:         cloneSeries(m.Area),
		Eccentricity: cloneSeries(m.Eccentricity),
		MajorAxis:    cloneSeries(m.MajorAxis),
		MinorAxis:    cloneSeries(m.MinorAxis),
		Orientation:  cloneSeries(m.Orientation),
		Centroid:     make([][][2]float64, len(m.Centroid)),
	}
	for k, s := range m.Centroid {
		c.Centroid[k] = append([][2]float64(nil), s...)
	}
	return c
}

func cloneSeries(s [][]float64) [][]float64 {
	out := make([][]float64, len(s))
	for k := range s {
		out[k] = append([]float64(nil), s[k]...)
	}
	return out
}

// clearROI sets every series of ROI k to NaN.
func (m *Matrix) clearROI(k int) {
	for j := 0; j < m.NumFrames; j++ {
		m.Set(k, j, NaNMeasurement())
	}
}
