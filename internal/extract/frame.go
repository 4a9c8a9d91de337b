package extract

import (
	"fmt"

	"github.com/anthonynsimon/bild/convolution"

	"github.com/ironsheep/droplet-assay-mcp/internal/detection"
	"github.com/ironsheep/droplet-assay-mcp/internal/imaging"
	"github.com/ironsheep/droplet-assay-mcp/internal/roi"
)

// maxWindowSize caps the Hanning window around the filter peak.
const maxWindowSize = 80

// Options are the per-frame extraction parameters.
type Options struct {
	// MaskMultiplier scales the background before subtraction.
	MaskMultiplier float64

	// ImgThreshold is the fraction of the filter maximum a pixel must exceed
	// to belong to the blob.
	ImgThreshold float64

	// Radius is the disk kernel radius.
	Radius int
}

// Extractor measures ROIs against a fixed background. It is immutable and
// safe for concurrent use.
type Extractor struct {
	opts       Options
	background *imaging.Raster
	kernel     convolution.Matrix
}

// NewExtractor prepares an extractor for the given dilated background.
func NewExtractor(background *imaging.Raster, opts Options) *Extractor {
	return &Extractor{
		opts:       opts,
		background: background,
		kernel:     imaging.DiskKernel(opts.Radius),
	}
}

// MeasureROI measures the subject in one ROI of frame.
//
// # Algorithm
//
//  1. Crop frame - MaskMultiplier*background to the ROI (clamped to the
//     frame), negative values set to zero.
//  2. Correlate the crop with a normalised disk of the configured radius,
//     replicating edge pixels at the border.
//  3. Find the first maximum of the response in row-major order.
//  4. Weight the response with a 2-D Hanning window of size min(80, h, w)
//     centred on the peak (circular shift) and keep pixels above
//     ImgThreshold times the unweighted maximum.
//  5. Keep the 8-connected component containing the peak and compute its
//     region properties.
//
// Ignored ROIs, empty crops and peaks outside the kept mask yield
// NaNMeasurement. The centroid is relative to the ROI's top-left corner,
// also when the ROI extends past the frame and the crop is clamped.
func (e *Extractor) MeasureROI(frame *imaging.Raster, r roi.ROI) Measurement {
	if r.Ignore {
		return NaNMeasurement()
	}

	crop, rect := imaging.SubtractCrop(frame, e.background, e.opts.MaskMultiplier, r.X1, r.Y1, r.X2, r.Y2)
	if crop.Empty() {
		return NaNMeasurement()
	}

	response := imaging.Correlate(crop, e.kernel)
	peak, px, py := response.Max()
	if px < 0 {
		return NaNMeasurement()
	}

	size := min(maxWindowSize, crop.Width, crop.Height)
	window := imaging.PeakWindow(crop.Width, crop.Height, size, px, py)

	cutoff := peak * e.opts.ImgThreshold
	mask := make([]bool, len(response.Pix))
	for i, v := range response.Pix {
		mask[i] = v*window.Pix[i] > cutoff
	}

	component := detection.ComponentAt(mask, crop.Width, crop.Height, px, py)
	if len(component) == 0 {
		return NaNMeasurement()
	}

	p := detection.Props(component)
	return Measurement{
		Area:         p.Area,
		Row:          p.Row + float64(rect.Min.Y-r.Y1),
		Col:          p.Col + float64(rect.Min.X-r.X1),
		Eccentricity: p.Eccentricity,
		MajorAxis:    p.MajorAxis,
		MinorAxis:    p.MinorAxis,
		Orientation:  p.Orientation,
	}
}

// ExtractFrame measures every ROI of one frame. The frame must have the size
// of the background.
func (e *Extractor) ExtractFrame(frame *imaging.Raster, rois []roi.ROI) ([]Measurement, error) {
	if e.background != nil && !frame.SameSize(e.background) {
		return nil, fmt.Errorf("frame is %dx%d but the background is %dx%d",
			frame.Width, frame.Height, e.background.Width, e.background.Height)
	}
	out := make([]Measurement, len(rois))
	for k, r := range rois {
		out[k] = e.MeasureROI(frame, r)
	}
	return out, nil
}
