package imaging

import (
	"image"
	"math"
)

// EdgeMap is the result of Canny edge detection together with the Sobel
// gradients it was computed from.
//
// All slices are row-major with Width*Height entries. Gradient-based Hough
// voting needs the gradient direction at each edge pixel, so the gradients are
// kept rather than discarded after thresholding.
type EdgeMap struct {
	Width  int
	Height int

	// DX and DY are the horizontal and vertical Sobel responses.
	DX []float64
	DY []float64

	// Edges marks pixels that survived non-maximum suppression and hysteresis.
	Edges []bool
}

// IsEdge reports whether (x, y) is an edge pixel.
func (e *EdgeMap) IsEdge(x, y int) bool {
	return e.Edges[y*e.Width+x]
}

// Count returns the number of edge pixels.
func (e *EdgeMap) Count() int {
	n := 0
	for _, v := range e.Edges {
		if v {
			n++
		}
	}
	return n
}

// Canny performs Canny edge detection on an 8-bit grayscale image.
//
// # Algorithm
//
//  1. Gradient computation: 3x3 Sobel operators on the raw intensities
//     (no implicit blur; callers denoise first). Magnitude is the L1 norm
//     |Gx| + |Gy|, so thresholds are on the same scale as OpenCV's.
//
//  2. Non-maximum suppression: keep only local maxima along the gradient
//     direction, quantised to 0, 45, 90 and 135 degrees.
//
//  3. Hysteresis thresholding:
//     - Pixels with magnitude above high are strong edges (always kept)
//     - Pixels between low and high are kept only if 8-connected, directly or
//     through other weak pixels, to a strong edge
//     - Pixels below low are discarded
//
// Border pixels use clamped (replicated) edge values for the gradient and are
// never marked as edges.
func Canny(gray *image.Gray, low, high float64) *EdgeMap {
	bounds := gray.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	em := &EdgeMap{
		Width:  width,
		Height: height,
		DX:     make([]float64, width*height),
		DY:     make([]float64, width*height),
		Edges:  make([]bool, width*height),
	}
	if width < 3 || height < 3 {
		return em
	}

	px := func(x, y int) float64 {
		x = clamp(x, 0, width-1)
		y = clamp(y, 0, height-1)
		return float64(gray.Pix[(y+bounds.Min.Y-gray.Rect.Min.Y)*gray.Stride+(x+bounds.Min.X-gray.Rect.Min.X)])
	}

	sobelX := [3][3]float64{
		{-1, 0, 1},
		{-2, 0, 2},
		{-1, 0, 1},
	}
	sobelY := [3][3]float64{
		{-1, -2, -1},
		{0, 0, 0},
		{1, 2, 1},
	}

	magnitude := make([]float64, width*height)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			var gx, gy float64
			for ky := -1; ky <= 1; ky++ {
				for kx := -1; kx <= 1; kx++ {
					v := px(x+kx, y+ky)
					gx += v * sobelX[ky+1][kx+1]
					gy += v * sobelY[ky+1][kx+1]
				}
			}
			i := y*width + x
			em.DX[i] = gx
			em.DY[i] = gy
			magnitude[i] = math.Abs(gx) + math.Abs(gy)
		}
	}

	// Non-maximum suppression
	suppressed := make([]float64, width*height)
	for y := 1; y < height-1; y++ {
		for x := 1; x < width-1; x++ {
			i := y*width + x
			mag := magnitude[i]
			if mag < low {
				continue
			}

			angle := math.Atan2(em.DY[i], em.DX[i])
			var n1, n2 float64
			if (angle >= -math.Pi/8 && angle < math.Pi/8) || (angle >= 7*math.Pi/8 || angle < -7*math.Pi/8) {
				n1 = magnitude[i-1]
				n2 = magnitude[i+1]
			} else if (angle >= math.Pi/8 && angle < 3*math.Pi/8) || (angle >= -7*math.Pi/8 && angle < -5*math.Pi/8) {
				n1 = magnitude[i-width-1]
				n2 = magnitude[i+width+1]
			} else if (angle >= 3*math.Pi/8 && angle < 5*math.Pi/8) || (angle >= -5*math.Pi/8 && angle < -3*math.Pi/8) {
				n1 = magnitude[i-width]
				n2 = magnitude[i+width]
			} else {
				n1 = magnitude[i-width+1]
				n2 = magnitude[i+width-1]
			}

			if mag > n1 && mag >= n2 {
				suppressed[i] = mag
			}
		}
	}

	// Hysteresis: grow strong edges through weak neighbours
	stack := make([]int, 0, 64)
	for i, v := range suppressed {
		if v > high && !em.Edges[i] {
			em.Edges[i] = true
			stack = append(stack, i)
		}
		for len(stack) > 0 {
			p := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			x, y := p%width, p/width
			for dy := -1; dy <= 1; dy++ {
				for dx := -1; dx <= 1; dx++ {
					nx, ny := x+dx, y+dy
					if nx <= 0 || ny <= 0 || nx >= width-1 || ny >= height-1 {
						continue
					}
					j := ny*width + nx
					if !em.Edges[j] && suppressed[j] >= low {
						em.Edges[j] = true
						stack = append(stack, j)
					}
				}
			}
		}
	}

	return em
}
