package imaging

import (
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"
)

// Raster is a single-channel floating point image stored row-major.
//
// Intensities of decoded frames are in the 0-255 range. Derived rasters (for
// example a background-subtracted crop or a correlation response) may hold any
// non-negative value. Pixel (x, y) lives at Pix[y*Width+x].
type Raster struct {
	Width  int
	Height int
	Pix    []float64
}

// NewRaster allocates a zero-filled raster.
func NewRaster(width, height int) *Raster {
	if width < 0 {
		width = 0
	}
	if height < 0 {
		height = 0
	}
	return &Raster{
		Width:  width,
		Height: height,
		Pix:    make([]float64, width*height),
	}
}

// NewFilledRaster allocates a raster with every pixel set to v.
func NewFilledRaster(width, height int, v float64) *Raster {
	r := NewRaster(width, height)
	for i := range r.Pix {
		r.Pix[i] = v
	}
	return r
}

// At returns the value at (x, y). No bounds checking is performed.
func (r *Raster) At(x, y int) float64 {
	return r.Pix[y*r.Width+x]
}

// Set stores v at (x, y). No bounds checking is performed.
func (r *Raster) Set(x, y int, v float64) {
	r.Pix[y*r.Width+x] = v
}

// Clone returns a deep copy of the raster.
func (r *Raster) Clone() *Raster {
	c := &Raster{Width: r.Width, Height: r.Height, Pix: make([]float64, len(r.Pix))}
	copy(c.Pix, r.Pix)
	return c
}

// Empty reports whether the raster has no pixels.
func (r *Raster) Empty() bool {
	return r.Width <= 0 || r.Height <= 0
}

// SameSize reports whether both rasters have identical dimensions.
func (r *Raster) SameSize(o *Raster) bool {
	return r.Width == o.Width && r.Height == o.Height
}

// Max returns the first maximum in row-major order and its position.
// An empty raster returns (-Inf, -1, -1).
func (r *Raster) Max() (v float64, x, y int) {
	v, x, y = math.Inf(-1), -1, -1
	for yy := 0; yy < r.Height; yy++ {
		row := r.Pix[yy*r.Width : (yy+1)*r.Width]
		for xx, p := range row {
			if p > v {
				v, x, y = p, xx, yy
			}
		}
	}
	return v, x, y
}

// FromImage converts any image to a luminance raster in the 0-255 range.
//
// Gray images are copied directly. Everything else is reduced with
// imaging.Grayscale, which applies the ITU-R BT.601 weights.
func FromImage(img image.Image) *Raster {
	bounds := img.Bounds()
	r := NewRaster(bounds.Dx(), bounds.Dy())

	if g, ok := img.(*image.Gray); ok {
		for y := 0; y < r.Height; y++ {
			off := (y+bounds.Min.Y-g.Rect.Min.Y)*g.Stride + (bounds.Min.X - g.Rect.Min.X)
			for x := 0; x < r.Width; x++ {
				r.Pix[y*r.Width+x] = float64(g.Pix[off+x])
			}
		}
		return r
	}

	gray := imaging.Grayscale(img)
	for y := 0; y < r.Height; y++ {
		for x := 0; x < r.Width; x++ {
			r.Pix[y*r.Width+x] = float64(gray.Pix[y*gray.Stride+x*4])
		}
	}
	return r
}

// ToGray converts the raster to an 8-bit image, rounding and saturating.
func (r *Raster) ToGray() *image.Gray {
	g := image.NewGray(image.Rect(0, 0, r.Width, r.Height))
	for y := 0; y < r.Height; y++ {
		for x := 0; x < r.Width; x++ {
			g.SetGray(x, y, color.Gray{Y: saturate(r.Pix[y*r.Width+x])})
		}
	}
	return g
}

func saturate(v float64) uint8 {
	if math.IsNaN(v) || v <= 0 {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return uint8(math.Round(v))
}
