package imaging

import (
	"math"

	"github.com/anthonynsimon/bild/convolution"
)

// DiskKernel returns a normalised disk kernel of the given radius.
//
// The kernel is (2*radius+1) square with ones where dx*dx+dy*dy <= radius*radius
// and zeros elsewhere, divided by its sum so a flat input passes unchanged.
func DiskKernel(radius int) convolution.Matrix {
	if radius < 0 {
		radius = 0
	}
	size := 2*radius + 1
	k := convolution.NewKernel(size, size)
	for _, o := range DiskOffsets(radius) {
		k.Matrix[(o[1]+radius)*size+(o[0]+radius)] = 1
	}
	return k.Normalized()
}

// Correlate computes the correlation of src with kernel k.
//
// The kernel is centred at (MaxX()/2, MaxY()/2). Samples outside the raster
// take the value of the nearest edge pixel.
func Correlate(src *Raster, k convolution.Matrix) *Raster {
	dst := NewRaster(src.Width, src.Height)
	if src.Empty() {
		return dst
	}

	kw, kh := k.MaxX(), k.MaxY()
	cx, cy := kw/2, kh/2

	for y := 0; y < src.Height; y++ {
		for x := 0; x < src.Width; x++ {
			var sum float64
			for ky := 0; ky < kh; ky++ {
				py := clamp(y+ky-cy, 0, src.Height-1)
				row := src.Pix[py*src.Width : (py+1)*src.Width]
				for kx := 0; kx < kw; kx++ {
					w := k.At(kx, ky)
					if w == 0 {
						continue
					}
					sum += w * row[clamp(x+kx-cx, 0, src.Width-1)]
				}
			}
			dst.Pix[y*dst.Width+x] = sum
		}
	}
	return dst
}

// Hanning returns the n-point Hanning (raised cosine) window
// 0.5 - 0.5*cos(2*pi*i/(n-1)). A single point window is [1].
func Hanning(n int) []float64 {
	if n <= 0 {
		return nil
	}
	if n == 1 {
		return []float64{1}
	}
	w := make([]float64, n)
	for i := range w {
		w[i] = 0.5 - 0.5*math.Cos(2*math.Pi*float64(i)/float64(n-1))
	}
	return w
}

// PeakWindow builds a width x height raster holding a size x size 2-D Hanning
// window whose centre has been circularly shifted onto (peakX, peakY).
//
// The window is first placed in the top-left corner of a zero canvas, rolled
// back by half its size (rounded half to even) so its centre sits on the
// origin, then rolled forward to the peak. Wrapping is circular on both axes.
func PeakWindow(width, height, size, peakX, peakY int) *Raster {
	dst := NewRaster(width, height)
	if dst.Empty() || size <= 0 {
		return dst
	}
	if size > width {
		size = width
	}
	if size > height {
		size = height
	}

	han := Hanning(size)
	back := int(math.RoundToEven(-float64(size) / 2))
	sx := back + peakX
	sy := back + peakY

	for y := 0; y < height; y++ {
		ty := mod(y-sy, height)
		if ty >= size {
			continue
		}
		for x := 0; x < width; x++ {
			tx := mod(x-sx, width)
			if tx >= size {
				continue
			}
			dst.Pix[y*width+x] = han[ty] * han[tx]
		}
	}
	return dst
}

func mod(a, n int) int {
	m := a % n
	if m < 0 {
		m += n
	}
	return m
}

// clamp constrains an integer value to the range [min, max].
// Used for boundary handling in convolution operations.
func clamp(val, min, max int) int {
	if val < min {
		return min
	}
	if val > max {
		return max
	}
	return val
}
