package imaging

import (
	"image"
)

// ClampRect intersects the rectangle (x1,y1)-(x2,y2) with a width x height
// image. The result may be empty when the rectangle lies outside the image.
func ClampRect(x1, y1, x2, y2, width, height int) image.Rectangle {
	return image.Rect(0, 0, width, height).Intersect(image.Rectangle{
		Min: image.Point{X: x1, Y: y1},
		Max: image.Point{X: x2, Y: y2},
	})
}

// SubtractCrop extracts the region (x1,y1)-(x2,y2) of frame - multiplier*bg,
// with negative differences clamped to zero.
//
// Coordinates are clamped to the frame bounds; the clamped rectangle is
// returned alongside the crop. An empty rectangle yields an empty raster.
// frame and bg must have the same dimensions.
func SubtractCrop(frame, bg *Raster, multiplier float64, x1, y1, x2, y2 int) (*Raster, image.Rectangle) {
	r := ClampRect(x1, y1, x2, y2, frame.Width, frame.Height)
	if r.Empty() {
		return NewRaster(0, 0), r
	}

	crop := NewRaster(r.Dx(), r.Dy())
	for y := 0; y < crop.Height; y++ {
		src := (y+r.Min.Y)*frame.Width + r.Min.X
		for x := 0; x < crop.Width; x++ {
			v := frame.Pix[src+x]
			if bg != nil {
				v -= multiplier * bg.Pix[src+x]
			}
			if v < 0 {
				v = 0
			}
			crop.Pix[y*crop.Width+x] = v
		}
	}
	return crop, r
}
