package detection

import (
	"errors"
	"fmt"
	"image"

	"github.com/anthonynsimon/bild/blur"
	"github.com/disintegration/imaging"
	"github.com/rs/zerolog/log"

	dimaging "github.com/ironsheep/droplet-assay-mcp/internal/imaging"
)

// ErrNoImages reports that none of the sample images could be used.
var ErrNoImages = errors.New("no decodable images")

const (
	// frameBlurSigma approximates a 3x3 Gaussian applied to every sample.
	frameBlurSigma = 0.8

	// projectionBlurRadius gives bild's 5x5 Gaussian applied to the projection.
	projectionBlurRadius = 2
)

// DetectorParams configure DetectDroplets.
type DetectorParams struct {
	Hough   HoughParams
	NumCols int
	NumRows int
}

// DefaultDetectorParams returns the Hough defaults on a 4 x 3 grid.
func DefaultDetectorParams() DetectorParams {
	return DetectorParams{
		Hough:   DefaultHoughParams(),
		NumCols: 4,
		NumRows: 3,
	}
}

// DetectionResult is the output of DetectDroplets.
type DetectionResult struct {
	// Circles are labeled in column-major grid order.
	Circles []Circle

	// Projection is the minimum projection the circles were found in.
	Projection *image.Gray

	// Annotated is Projection with circles, centres and labels drawn on it.
	Annotated *image.RGBA

	// Sampled is the number of images that contributed to Projection.
	Sampled int
}

// MinGrayProjection computes the pixel-wise minimum of lightly blurred
// grayscale versions of images.
//
// The first non-nil image fixes the output size; other images are resized to
// it with a box filter. Nil entries are skipped. The second return value is
// the number of images used.
func MinGrayProjection(images []image.Image) (*image.Gray, int) {
	var (
		minGray *image.Gray
		w, h    int
		used    int
	)
	for _, img := range images {
		if img == nil {
			continue
		}
		if minGray == nil {
			b := img.Bounds()
			w, h = b.Dx(), b.Dy()
			if w == 0 || h == 0 {
				continue
			}
			minGray = image.NewGray(image.Rect(0, 0, w, h))
			for i := range minGray.Pix {
				minGray.Pix[i] = 255
			}
		}

		if b := img.Bounds(); b.Dx() != w || b.Dy() != h {
			img = imaging.Resize(img, w, h, imaging.Box)
		}
		g := imaging.Blur(imaging.Grayscale(img), frameBlurSigma)

		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				v := g.Pix[y*g.Stride+x*4]
				if p := &minGray.Pix[y*minGray.Stride+x]; v < *p {
					*p = v
				}
			}
		}
		used++
	}
	return minGray, used
}

// DetectDroplets finds circular droplets in a set of sample frames.
//
// # Algorithm
//
//  1. Minimum projection of the samples (MinGrayProjection). A subject that
//     moves between samples vanishes; the dark droplet rims remain.
//  2. 5x5 Gaussian blur of the projection (bild).
//  3. HoughCircles with p.Hough.
//  4. AssignGrid with p.NumCols x p.NumRows.
//  5. Annotation of the projection.
//
// Finding zero circles is a valid, empty result.
//
// # Errors
//
// Returns ErrNoImages when images holds no usable image.
func DetectDroplets(images []image.Image, p DetectorParams) (*DetectionResult, error) {
	proj, used := MinGrayProjection(images)
	if proj == nil {
		return nil, fmt.Errorf("%w: %d images supplied", ErrNoImages, len(images))
	}

	blurred := blur.Gaussian(proj, projectionBlurRadius)
	gray := image.NewGray(proj.Rect)
	for i := range gray.Pix {
		gray.Pix[i] = blurred.Pix[i*4]
	}

	circles := AssignGrid(HoughCircles(gray, p.Hough), p.NumCols, p.NumRows)
	if len(circles) == 0 {
		log.Warn().
			Str("evt.name", "detection.none").
			Int("sampled", used).
			Msg("no droplets detected in the minimum projection")
	}

	marks := make([]dimaging.CircleMark, len(circles))
	for i, c := range circles {
		marks[i] = dimaging.CircleMark{X: c.X, Y: c.Y, Radius: c.Radius, Label: c.Label}
	}

	return &DetectionResult{
		Circles:    circles,
		Projection: proj,
		Annotated:  dimaging.AnnotateCircles(proj, marks),
		Sampled:    used,
	}, nil
}
