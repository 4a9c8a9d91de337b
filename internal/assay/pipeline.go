// Package assay runs the complete droplet analysis for a frame directory:
// ROI detection, feature extraction, signal processing and aggregation.
//
// A Pipeline is safe for concurrent use. Backgrounds are cached per sequence
// so repeated analyses of one directory decode the background frames once.
package assay

import (
	"context"
	"errors"
	"fmt"
	"image"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/ironsheep/droplet-assay-mcp/internal/analysis"
	"github.com/ironsheep/droplet-assay-mcp/internal/config"
	"github.com/ironsheep/droplet-assay-mcp/internal/detection"
	"github.com/ironsheep/droplet-assay-mcp/internal/extract"
	"github.com/ironsheep/droplet-assay-mcp/internal/imaging"
	"github.com/ironsheep/droplet-assay-mcp/internal/parallel"
	"github.com/ironsheep/droplet-assay-mcp/internal/roi"
	"github.com/ironsheep/droplet-assay-mcp/internal/signal"
)

// Pipeline holds the defaults shared by every analysis.
type Pipeline struct {
	// Params are used when a request carries none.
	Params config.Params

	// Prefix is the default frame file prefix.
	Prefix string

	// Runner executes per-frame tasks. Nil runs them sequentially.
	Runner parallel.Runner

	// Cache holds backgrounds by sequence. Nil disables caching.
	Cache *imaging.BackgroundCache
}

// New creates a pipeline with a background cache.
func New(params config.Params, runner parallel.Runner) *Pipeline {
	return &Pipeline{
		Params: params,
		Prefix: imaging.DefaultPrefix,
		Runner: runner,
		Cache:  imaging.NewBackgroundCache(imaging.DefaultCacheSize),
	}
}

// Options tune one analysis.
type Options struct {
	// Params replace the pipeline parameters when set.
	Params *config.Params

	// Grouping names a grouping scheme or lists 0-based ranges
	// ("0-5,6-11"). Empty selects the default for the ROI count.
	Grouping string

	// IncludeSeries adds raw and smoothed series to the report.
	IncludeSeries bool
}

// Request describes the analysis of one frame directory.
type Request struct {
	Directory string
	Prefix    string

	// StartFrame and EndFrame select a 1-based inclusive frame range. Zero
	// means the first and last frame.
	StartFrame int
	EndFrame   int

	// ROIs to measure. When empty, droplets are detected automatically.
	ROIs []roi.ROI

	// Ignore is a comma separated list of 1-based ROI numbers to skip.
	Ignore string

	Options
}

func (p *Pipeline) params(o Options) config.Params {
	if o.Params != nil {
		return *o.Params
	}
	return p.Params
}

func (p *Pipeline) runner() parallel.Runner {
	if p.Runner == nil {
		return parallel.Sequential{}
	}
	return p.Runner
}

// Analyze runs the full analysis of req.Directory.
//
// Parameters and the grouping are validated before any frame is read. A
// cancelled ctx yields a report with Aborted set and a nil error.
//
// # Errors
//
//   - config.ErrConfiguration: invalid parameters, grouping, ignore list or ROIs
//   - imaging.ErrInput: no frames, no background or no droplets found
func (p *Pipeline) Analyze(ctx context.Context, req Request) (*Report, error) {
	params := p.params(req.Options)
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if _, err := analysis.SchemeByName(req.Grouping, 0); err != nil {
		return nil, err
	}

	prefix := req.Prefix
	if prefix == "" {
		prefix = p.Prefix
	}
	seq, err := imaging.DiscoverSequence(req.Directory, prefix)
	if err != nil {
		return nil, err
	}
	if seq, err = seq.Slice(req.StartFrame, req.EndFrame); err != nil {
		return nil, err
	}

	rois := req.ROIs
	if len(rois) == 0 {
		det, err := p.DetectROIs(ctx, seq, params.Detector, "")
		if errors.Is(err, parallel.ErrAborted) {
			return &Report{Directory: req.Directory, Aborted: true}, nil
		}
		if err != nil {
			return nil, err
		}
		if len(det.ROIs) == 0 {
			return nil, fmt.Errorf("%w: no droplets detected in %s", imaging.ErrInput, req.Directory)
		}
		rois = det.ROIs
	}
	rois = roi.Labeled(rois)

	if req.Ignore != "" {
		ignore, err := roi.ParseIgnoreList(req.Ignore, len(rois))
		if err != nil {
			return nil, fmt.Errorf("%w: %w", config.ErrConfiguration, err)
		}
		rois = roi.ApplyIgnore(rois, ignore)
	}
	if err := roi.Validate(rois); err != nil {
		return nil, fmt.Errorf("%w: %w", config.ErrConfiguration, err)
	}

	var bg *imaging.Background
	if p.Cache != nil {
		bg, err = p.Cache.Get(seq.Key(), seq, params.DilateRadius)
	} else {
		bg, err = imaging.BuildBackground(seq, params.DilateRadius)
	}
	if err != nil {
		return nil, err
	}

	opts := req.Options
	opts.Params = &params
	report, err := p.analyze(ctx, seq, bg, rois, opts)
	if err != nil {
		return nil, err
	}
	report.Directory = req.Directory
	report.StartFrame = max(req.StartFrame, 1)
	return report, nil
}

// AnalyzeFrames analyzes an in-memory or custom frame source with the given
// ROIs. The background is built from src.
func (p *Pipeline) AnalyzeFrames(ctx context.Context, src imaging.FrameSource, rois []roi.ROI, opts Options) (*Report, error) {
	params := p.params(opts)
	if err := params.Validate(); err != nil {
		return nil, err
	}
	opts.Params = &params
	report, err := p.analyze(ctx, src, nil, roi.Labeled(rois), opts)
	if err != nil {
		return nil, err
	}
	report.StartFrame = 1
	return report, nil
}

func (p *Pipeline) analyze(ctx context.Context, src imaging.FrameSource, bg *imaging.Background, rois []roi.ROI, opts Options) (*Report, error) {
	params := *opts.Params
	groups, err := analysis.SchemeByName(opts.Grouping, len(rois))
	if err != nil {
		return nil, err
	}

	start := time.Now()
	res, err := extract.Run(ctx, extract.Input{
		Frames:     src,
		ROIs:       rois,
		Params:     params,
		Background: bg,
	}, p.runner())
	if err != nil {
		return nil, err
	}
	if res.Aborted {
		return &Report{Aborted: true}, nil
	}

	sig, err := signal.Process(res.Matrix, rois, params)
	if err != nil {
		return nil, err
	}
	stats, err := analysis.Aggregate(sig.Turns, sig.Invalid, groups, params.HalfPeriod)
	if err != nil {
		return nil, err
	}

	report := buildReport(rois, res, sig, stats, params.HalfPeriod, opts.IncludeSeries)
	log.Info().
		Str("evt.name", "assay.finished").
		Int("frames", report.Frames).
		Int("rois", len(rois)).
		Int("inactive", len(report.Inactive)).
		Dur("elapsed", time.Since(start)).
		Msg("analysis finished")
	return report, nil
}

// Detection is the result of DetectROIs.
type Detection struct {
	Circles []detection.Circle `json:"circles"`
	ROIs    []roi.ROI          `json:"rois"`

	// Sampled is the number of frames in the projection.
	Sampled int `json:"sampled"`

	Width  int `json:"width"`
	Height int `json:"height"`

	// AnnotatedPath is where the annotated projection was written, if at all.
	AnnotatedPath string `json:"annotated_path,omitempty"`

	Annotated *image.RGBA `json:"-"`
}

// DetectROIs finds the droplets of seq and converts them to padded ROIs.
//
// Every SampleStride-th frame is decoded on the pipeline runner; frames that
// fail to decode are logged and left out. When annotatedPath is set the
// annotated projection is written there as PNG.
//
// # Errors
//
//   - parallel.ErrAborted: ctx was cancelled while loading samples
//   - detection.ErrNoImages: no sample could be decoded
func (p *Pipeline) DetectROIs(ctx context.Context, seq *imaging.Sequence, cfg config.DetectorParams, annotatedPath string) (*Detection, error) {
	paths := seq.Sample(cfg.SampleStride)
	images, err := parallel.Map(ctx, p.runner(), len(paths),
		func(_ context.Context, i int) (image.Image, error) {
			return imaging.LoadImage(paths[i])
		},
		func(int, error) image.Image { return nil },
	)
	if err != nil {
		return nil, err
	}

	det, err := detection.DetectDroplets(images, detectorParams(cfg))
	if err != nil {
		return nil, err
	}

	w, h := det.Projection.Rect.Dx(), det.Projection.Rect.Dy()
	out := &Detection{
		Circles:   det.Circles,
		ROIs:      roi.FromCircles(det.Circles, w, h, cfg.Padding),
		Sampled:   det.Sampled,
		Width:     w,
		Height:    h,
		Annotated: det.Annotated,
	}
	if annotatedPath != "" {
		if err := imaging.SavePNG(annotatedPath, det.Annotated); err != nil {
			return nil, err
		}
		out.AnnotatedPath = annotatedPath
	}

	log.Info().
		Str("evt.name", "assay.rois_detected").
		Str("directory", seq.Directory).
		Int("circles", len(out.Circles)).
		Int("sampled", out.Sampled).
		Msg("droplets detected")
	return out, nil
}

func detectorParams(cfg config.DetectorParams) detection.DetectorParams {
	h := detection.DefaultHoughParams()
	h.DP = cfg.DP
	h.MinDist = cfg.MinDist
	h.EdgeThreshold = cfg.EdgeThreshold
	h.CenterThreshold = cfg.CenterThreshold
	h.MinRadius = cfg.MinRadius
	h.MaxRadius = cfg.MaxRadius
	return detection.DetectorParams{Hough: h, NumCols: cfg.NumCols, NumRows: cfg.NumRows}
}
