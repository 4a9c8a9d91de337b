package extract

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/ironsheep/droplet-assay-mcp/internal/config"
	"github.com/ironsheep/droplet-assay-mcp/internal/imaging"
	"github.com/ironsheep/droplet-assay-mcp/internal/parallel"
	"github.com/ironsheep/droplet-assay-mcp/internal/roi"
)

// ErrInput reports unusable input: no frames, no decodable background or no
// ROIs. It is the same value as imaging.ErrInput.
var ErrInput = imaging.ErrInput

// Input describes one extraction run.
type Input struct {
	Frames imaging.FrameSource
	ROIs   []roi.ROI
	Params config.Params

	// Background, when set, is used instead of building one from Frames.
	Background *imaging.Background
}

// Result is the outcome of Run.
type Result struct {
	// Matrix holds the measurements after inactivity suppression.
	Matrix *Matrix

	// Inactive flags ROIs suppressed by the inactivity classifier. It is all
	// false when the classifier did not run.
	Inactive []bool

	// FailedFrames lists frames whose task failed and were filled with NaN.
	FailedFrames []int

	// Aborted is set when the run was cancelled. No other field is set then.
	Aborted bool

	Background *imaging.Background
}

// Run extracts measurements for every frame and ROI.
//
// Frames are processed as independent tasks on runner and assembled by frame
// index. A frame that cannot be decoded or measured is logged and its column
// is NaN for every ROI; the run continues. When no ROI carries an explicit
// ignore flag and the classifier is enabled, inactive ROIs are detected and
// suppressed.
//
// Cancellation of ctx is reported as Result.Aborted with a nil error.
//
// # Errors
//
//   - ErrInput: no ROIs, no frames or no usable background
//   - config.ErrConfiguration: invalid parameters or degenerate ROIs
//   - parallel.ErrPool: the worker pool failed
func Run(ctx context.Context, in Input, runner parallel.Runner) (*Result, error) {
	if len(in.ROIs) == 0 {
		return nil, fmt.Errorf("%w: no rois supplied", ErrInput)
	}
	if err := roi.Validate(in.ROIs); err != nil {
		return nil, fmt.Errorf("%w: %w", config.ErrConfiguration, err)
	}
	if err := in.Params.Validate(); err != nil {
		return nil, err
	}
	if in.Frames == nil || in.Frames.Len() == 0 {
		return nil, fmt.Errorf("%w: no frames supplied", ErrInput)
	}
	if runner == nil {
		runner = parallel.Sequential{}
	}

	bg := in.Background
	if bg == nil {
		var err error
		bg, err = imaging.BuildBackground(in.Frames, in.Params.DilateRadius)
		if err != nil {
			return nil, err
		}
	}

	ex := NewExtractor(bg.Dilated, Options{
		MaskMultiplier: in.Params.MaskMultiplier,
		ImgThreshold:   in.Params.ImgThreshold,
		Radius:         in.Params.Radius,
	})

	numFrames := in.Frames.Len()
	numROI := len(in.ROIs)
	start := time.Now()
	log.Info().
		Str("evt.name", "extract.started").
		Int("frames", numFrames).
		Int("rois", numROI).
		Msg("feature extraction started")

	var (
		mu     sync.Mutex
		failed []int
	)
	rows, err := parallel.Map(ctx, runner, numFrames,
		func(_ context.Context, j int) ([]Measurement, error) {
			frame, err := in.Frames.Frame(j)
			if err != nil {
				return nil, err
			}
			return ex.ExtractFrame(frame, in.ROIs)
		},
		func(j int, err error) []Measurement {
			mu.Lock()
			failed = append(failed, j)
			mu.Unlock()
			return nil
		},
	)
	if errors.Is(err, parallel.ErrAborted) {
		log.Warn().
			Str("evt.name", "extract.aborted").
			Dur("elapsed", time.Since(start)).
			Msg("feature extraction cancelled")
		return &Result{Aborted: true}, nil
	}
	if err != nil {
		return nil, err
	}

	m := NewMatrix(numROI, numFrames)
	for j, row := range rows {
		// a nil row is a failed frame and stays NaN
		for k, ms := range row {
			m.Set(k, j, ms)
		}
	}

	inactive := make([]bool, numROI)
	if !in.Params.Inactivity.Disabled && !roi.AnyIgnored(in.ROIs) {
		inactive = ClassifyInactive(m.Eccentricity, in.Params.Inactivity.DiffThreshold, in.Params.Inactivity.MinRun)
		m = Suppress(m, inactive)
	}

	slices.Sort(failed)
	log.Info().
		Str("evt.name", "extract.finished").
		Int("frames", numFrames).
		Int("failed_frames", len(failed)).
		Dur("elapsed", time.Since(start)).
		Msg("feature extraction finished")

	return &Result{
		Matrix:       m,
		Inactive:     inactive,
		FailedFrames: failed,
		Background:   bg,
	}, nil
}
