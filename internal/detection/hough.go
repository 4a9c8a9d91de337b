package detection

import (
	"image"
	"math"
	"sort"

	"github.com/ironsheep/droplet-assay-mcp/internal/imaging"
)

// Circle is a detected droplet.
type Circle struct {
	// X and Y are the centre in image pixels.
	X int `json:"x"`
	Y int `json:"y"`

	// Radius is the estimated radius in pixels.
	Radius int `json:"radius"`

	// Votes is the accumulator count of the centre.
	Votes int `json:"votes"`

	// Col and Row are the 0-based grid cell assigned by AssignGrid.
	Col int `json:"col"`
	Row int `json:"row"`

	// Label is the 1-based column-major ordinal assigned by AssignGrid.
	Label int `json:"label"`
}

// HoughParams configure HoughCircles.
type HoughParams struct {
	// DP is the inverse accumulator resolution: 2 means the accumulator has
	// half the width and height of the image.
	DP float64

	// MinDist is the minimum distance between detected centres.
	MinDist float64

	// EdgeThreshold is the upper Canny threshold; the lower one is half of it.
	EdgeThreshold float64

	// CenterThreshold is the minimum accumulator count of a centre.
	CenterThreshold int

	MinRadius int
	MaxRadius int

	// MinSupport is the fraction of the circumference 2*pi*r that must be
	// covered by edge pixels at the chosen radius.
	MinSupport float64
}

// DefaultHoughParams returns the parameters tuned for 12- and 15-droplet
// chambers imaged at the rig's standard magnification.
func DefaultHoughParams() HoughParams {
	return HoughParams{
		DP:              2,
		MinDist:         60,
		EdgeThreshold:   150,
		CenterThreshold: 100,
		MinRadius:       10,
		MaxRadius:       80,
		MinSupport:      0.3,
	}
}

// HoughCircles finds circles in a grayscale image using the gradient Hough
// transform.
//
// The image should already be denoised; HoughCircles does not blur.
//
// # Algorithm
//
//  1. Edge Detection: Canny with thresholds EdgeThreshold/2 and EdgeThreshold.
//     The Sobel gradient of every edge pixel is kept.
//  2. Accumulator Voting: each edge pixel votes along its gradient line, in
//     both directions, at distances MinRadius..MaxRadius. The accumulator has
//     1/DP of the image resolution and the walk steps one accumulator cell at
//     a time.
//  3. Centre Candidates: accumulator cells above CenterThreshold that are
//     local maxima of their 4-neighbourhood, sorted by votes (descending).
//  4. Suppression: a candidate closer than MinDist to an accepted centre is
//     dropped.
//  5. Radius Estimation: distances from the centre to all edge pixels are
//     binned (bin width DP) and the bin with the highest count per unit radius
//     wins. The circle is accepted when that bin holds at least
//     MinSupport*2*pi*r edge pixels.
//
// Returned circles are ordered by votes, highest first. Col, Row and Label
// are left zero.
//
// # Performance
//
// Voting is O(edges * (MaxRadius-MinRadius)/DP). Radius estimation is
// O(candidates * edges) but only edges within MaxRadius of the candidate are
// binned.
func HoughCircles(gray *image.Gray, p HoughParams) []Circle {
	bounds := gray.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width == 0 || height == 0 || p.MaxRadius < p.MinRadius {
		return nil
	}
	dp := p.DP
	if dp < 1 {
		dp = 1
	}
	minR := max(p.MinRadius, 0)
	maxR := p.MaxRadius
	if maxR <= 0 {
		maxR = max(width, height)
	}

	edges := imaging.Canny(gray, p.EdgeThreshold/2, p.EdgeThreshold)

	accW := int(math.Ceil(float64(width)/dp)) + 2
	accH := int(math.Ceil(float64(height)/dp)) + 2
	acc := make([]int, accW*accH)

	type edgePoint struct{ x, y int }
	points := make([]edgePoint, 0, edges.Count())

	rmin := float64(minR) / dp
	rmax := float64(maxR) / dp
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			i := y*width + x
			if !edges.Edges[i] {
				continue
			}
			points = append(points, edgePoint{x, y})

			vx, vy := edges.DX[i], edges.DY[i]
			mag := math.Hypot(vx, vy)
			if mag == 0 {
				continue
			}
			ux, uy := vx/mag, vy/mag

			// accumulator coordinates, offset by one cell so rounding down at
			// the border stays in range
			ax0 := float64(x)/dp + 1
			ay0 := float64(y)/dp + 1
			for _, sign := range [2]float64{1, -1} {
				for r := rmin; r <= rmax; r++ {
					ax := int(ax0 + sign*r*ux)
					ay := int(ay0 + sign*r*uy)
					if ax < 1 || ay < 1 || ax >= accW-1 || ay >= accH-1 {
						break
					}
					acc[ay*accW+ax]++
				}
			}
		}
	}

	type candidate struct{ idx, votes int }
	candidates := make([]candidate, 0, 64)
	for ay := 1; ay < accH-1; ay++ {
		for ax := 1; ax < accW-1; ax++ {
			b := ay*accW + ax
			v := acc[b]
			if v > p.CenterThreshold &&
				v > acc[b-1] && v >= acc[b+1] &&
				v > acc[b-accW] && v >= acc[b+accW] {
				candidates = append(candidates, candidate{b, v})
			}
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].votes > candidates[j].votes
	})

	minDist2 := p.MinDist * p.MinDist
	binCount := int(math.Ceil(float64(maxR-minR)/dp)) + 1
	bins := make([]int, binCount)

	circles := make([]Circle, 0)
	accepted := make([][2]float64, 0)
	for _, c := range candidates {
		cx := (float64(c.idx%accW-1) + 0.5) * dp
		cy := (float64(c.idx/accW-1) + 0.5) * dp

		tooClose := false
		for _, f := range accepted {
			dx := cx - f[0]
			dy := cy - f[1]
			if dx*dx+dy*dy < minDist2 {
				tooClose = true
				break
			}
		}
		if tooClose {
			continue
		}

		for i := range bins {
			bins[i] = 0
		}
		for _, e := range points {
			dx := float64(e.x) - cx
			dy := float64(e.y) - cy
			if math.Abs(dx) > float64(maxR) || math.Abs(dy) > float64(maxR) {
				continue
			}
			d := math.Hypot(dx, dy)
			if d < float64(minR) || d > float64(maxR) {
				continue
			}
			bins[int((d-float64(minR))/dp)]++
		}

		bestBin, bestScore := -1, 0.0
		for i, n := range bins {
			if n == 0 {
				continue
			}
			r := float64(minR) + (float64(i)+0.5)*dp
			if score := float64(n) / r; score > bestScore {
				bestBin, bestScore = i, score
			}
		}
		if bestBin < 0 {
			continue
		}
		r := float64(minR) + (float64(bestBin)+0.5)*dp
		if float64(bins[bestBin]) < p.MinSupport*2*math.Pi*r {
			continue
		}

		accepted = append(accepted, [2]float64{cx, cy})
		circles = append(circles, Circle{
			X:      int(math.Round(cx)) + bounds.Min.X,
			Y:      int(math.Round(cy)) + bounds.Min.Y,
			Radius: int(math.Round(r)),
			Votes:  c.votes,
		})
	}

	return circles
}
