package detection

import (
	"image"
	"math"

	"gonum.org/v1/gonum/mat"
)

// RegionProps are the shape descriptors of a pixel region.
//
// Row and Col are the centroid in the coordinate frame of the pixels passed
// to Props. Axis lengths are those of the ellipse with the same normalised
// second central moments. Orientation is the angle in degrees between the
// row axis and the major axis, negated so it reads clockwise-positive when
// drawn with rows growing downwards.
type RegionProps struct {
	Area         float64
	Row          float64
	Col          float64
	Eccentricity float64
	MajorAxis    float64
	MinorAxis    float64
	Orientation  float64
}

// Props computes region properties of a set of pixels.
//
// # Algorithm
//
// The inertia tensor of the region is
//
//	| mu_cc  -mu_rc |
//	| -mu_rc  mu_rr |
//
// where mu are the second central moments divided by the pixel count
// (r = row, c = col). With eigenvalues l1 >= l2 (clipped at zero):
//
//   - MajorAxis = 4*sqrt(l1), MinorAxis = 4*sqrt(l2)
//   - Eccentricity = sqrt(1 - l2/l1), or 0 when l1 is 0
//   - Orientation = -degrees(0.5*atan2(-2*t01, t11 - t00)), with +-45 degrees
//     when t00 == t11
//
// Axis lengths and orientation are NaN when either axis length is zero, for
// example for single pixels and straight one pixel wide lines.
//
// An empty region returns all NaN.
func Props(pixels []image.Point) RegionProps {
	n := float64(len(pixels))
	if n == 0 {
		nan := math.NaN()
		return RegionProps{nan, nan, nan, nan, nan, nan, nan}
	}

	var sumR, sumC float64
	for _, p := range pixels {
		sumR += float64(p.Y)
		sumC += float64(p.X)
	}
	row := sumR / n
	col := sumC / n

	var murr, mucc, murc float64
	for _, p := range pixels {
		dr := float64(p.Y) - row
		dc := float64(p.X) - col
		murr += dr * dr
		mucc += dc * dc
		murc += dr * dc
	}
	t00 := mucc / n
	t11 := murr / n
	t01 := -murc / n

	var es mat.EigenSym
	ok := es.Factorize(mat.NewSymDense(2, []float64{t00, t01, t01, t11}), false)
	var l1, l2 float64
	if ok {
		vals := es.Values(nil) // ascending
		l1 = math.Max(vals[1], 0)
		l2 = math.Max(vals[0], 0)
	}

	props := RegionProps{
		Area: n,
		Row:  row,
		Col:  col,
	}
	if l1 != 0 {
		props.Eccentricity = math.Sqrt(1 - l2/l1)
	}

	major := 4 * math.Sqrt(l1)
	minor := 4 * math.Sqrt(l2)
	if major <= 0 || minor <= 0 {
		props.MajorAxis = math.NaN()
		props.MinorAxis = math.NaN()
		props.Orientation = math.NaN()
		return props
	}

	var theta float64
	if t00-t11 == 0 {
		if t01 < 0 {
			theta = -math.Pi / 4
		} else {
			theta = math.Pi / 4
		}
	} else {
		theta = 0.5 * math.Atan2(-2*t01, t11-t00)
	}

	props.MajorAxis = major
	props.MinorAxis = minor
	props.Orientation = -theta * 180 / math.Pi
	return props
}
