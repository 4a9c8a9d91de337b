// Package config holds the tunable parameters of the droplet assay and the
// process environment.
//
// Analysis parameters keep the option names used by the acquisition lab so
// existing parameter files load unchanged:
//
//	Eccentricity_filsize: 3
//	Area_filsize: 10
//	Centroid_filsize: 10
//	peak_det_abs_threshold: 0.85
//	peak_det_threshold: 0.15
//	Centroid_r_threshold: 0.7
//	area_threshold: 0.7
//	mask_multiplier: 1.1
//	img_threshold: 0.1
//	radius: 5
//	half_period: 300
//
// Every set of parameters is validated before any frame is read. Validation
// failures wrap ErrConfiguration.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// ErrConfiguration reports invalid parameters. It is raised before processing
// starts.
var ErrConfiguration = errors.New("configuration error")

// Params are the analysis parameters.
type Params struct {
	// Moving average window lengths, in frames.
	EccentricityFilsize int `yaml:"Eccentricity_filsize" json:"Eccentricity_filsize" validate:"min=1"`
	AreaFilsize         int `yaml:"Area_filsize" json:"Area_filsize" validate:"min=1"`
	CentroidFilsize     int `yaml:"Centroid_filsize" json:"Centroid_filsize" validate:"min=1"`

	// PeakDetAbsThreshold is the ceiling a smoothed eccentricity minimum must
	// stay under to count as a turn.
	PeakDetAbsThreshold float64 `yaml:"peak_det_abs_threshold" json:"peak_det_abs_threshold" validate:"gt=0"`

	// PeakDetThreshold is the hysteresis delta of the peak detector.
	PeakDetThreshold float64 `yaml:"peak_det_threshold" json:"peak_det_threshold" validate:"gt=0"`

	// CentroidRThreshold is the normalised distance from the droplet centre
	// above which a frame is invalid.
	CentroidRThreshold float64 `yaml:"Centroid_r_threshold" json:"Centroid_r_threshold" validate:"gt=0"`

	// AreaThreshold is the fraction of the median area below which a frame is
	// invalid.
	AreaThreshold float64 `yaml:"area_threshold" json:"area_threshold" validate:"gte=0"`

	MaskMultiplier float64 `yaml:"mask_multiplier" json:"mask_multiplier" validate:"gte=0"`
	ImgThreshold   float64 `yaml:"img_threshold" json:"img_threshold" validate:"gt=0,lt=1"`

	// Radius of the disk correlation kernel in pixels.
	Radius int `yaml:"radius" json:"radius" validate:"min=0,max=100"`

	// HalfPeriod is the stimulus half period in frames.
	HalfPeriod int `yaml:"half_period" json:"half_period" validate:"min=1"`

	// DilateRadius is the disk radius used to grow the background.
	DilateRadius int `yaml:"dilate_radius" json:"dilate_radius" validate:"min=0,max=50"`

	Inactivity InactivityParams `yaml:"inactivity" json:"inactivity"`
	Detector   DetectorParams   `yaml:"detector" json:"detector"`
}

// InactivityParams configure the inactive-subject classifier.
type InactivityParams struct {
	DiffThreshold float64 `yaml:"diff_threshold" json:"diff_threshold" validate:"gt=0"`
	MinRun        int     `yaml:"min_run" json:"min_run" validate:"min=1"`
	Disabled      bool    `yaml:"disabled" json:"disabled"`
}

// DetectorParams configure automatic droplet detection.
type DetectorParams struct {
	// SampleStride selects every n-th frame for the minimum projection.
	SampleStride int `yaml:"sample_stride" json:"sample_stride" validate:"min=1"`

	NumCols int `yaml:"num_cols" json:"num_cols" validate:"min=1"`
	NumRows int `yaml:"num_rows" json:"num_rows" validate:"min=1"`

	// Padding is added around each detected circle when converting it to a ROI.
	Padding int `yaml:"padding" json:"padding" validate:"min=0"`

	DP              float64 `yaml:"dp" json:"dp" validate:"gte=1"`
	MinDist         float64 `yaml:"min_dist" json:"min_dist" validate:"gte=0"`
	EdgeThreshold   float64 `yaml:"edge_threshold" json:"edge_threshold" validate:"gt=0"`
	CenterThreshold int     `yaml:"center_threshold" json:"center_threshold" validate:"min=1"`
	MinRadius       int     `yaml:"min_radius" json:"min_radius" validate:"min=1"`
	MaxRadius       int     `yaml:"max_radius" json:"max_radius" validate:"gtefield=MinRadius"`
}

// Defaults returns the standard parameters of the assay.
func Defaults() Params {
	return Params{
		EccentricityFilsize: 3,
		AreaFilsize:         10,
		CentroidFilsize:     10,
		PeakDetAbsThreshold: 0.85,
		PeakDetThreshold:    0.15,
		CentroidRThreshold:  0.7,
		AreaThreshold:       0.7,
		MaskMultiplier:      1.1,
		ImgThreshold:        0.1,
		Radius:              5,
		HalfPeriod:          300,
		DilateRadius:        3,
		Inactivity: InactivityParams{
			DiffThreshold: 0.015,
			MinRun:        100,
		},
		Detector: DetectorParams{
			SampleStride:    100,
			NumCols:         4,
			NumRows:         3,
			Padding:         5,
			DP:              2,
			MinDist:         60,
			EdgeThreshold:   150,
			CenterThreshold: 100,
			MinRadius:       10,
			MaxRadius:       80,
		},
	}
}

var validate = validator.New()

// Validate checks every field against its constraints.
//
// All violations are reported together in one error wrapping
// ErrConfiguration, for example:
//
//	configuration error: Params.HalfPeriod must satisfy min=1 (got 0)
func (p Params) Validate() error {
	err := validate.Struct(p)
	if err == nil {
		return nil
	}

	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return fmt.Errorf("%w: %v", ErrConfiguration, err)
	}

	msgs := make([]string, 0, len(ve))
	for _, fe := range ve {
		rule := fe.Tag()
		if fe.Param() != "" {
			rule += "=" + fe.Param()
		}
		msgs = append(msgs, fmt.Sprintf("%s must satisfy %s (got %v)", fe.Namespace(), rule, fe.Value()))
	}
	return fmt.Errorf("%w: %s", ErrConfiguration, strings.Join(msgs, "; "))
}

// Parse overlays YAML data on the defaults and validates the result.
// Unknown keys are rejected so misspelt options do not silently fall back to
// their defaults.
func Parse(data []byte) (Params, error) {
	p := Defaults()
	if len(bytes.TrimSpace(data)) > 0 {
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&p); err != nil {
			return Params{}, fmt.Errorf("%w: failed to parse parameters: %v", ErrConfiguration, err)
		}
	}
	if err := p.Validate(); err != nil {
		return Params{}, err
	}
	return p, nil
}

// Load reads a YAML parameter file. An empty path returns the defaults.
func Load(path string) (Params, error) {
	if path == "" {
		return Defaults(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Params{}, fmt.Errorf("failed to read parameter file: %w", err)
	}
	return Parse(data)
}
