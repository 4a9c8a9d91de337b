// Package roi models the rectangular regions of interest that enclose one
// droplet each.
package roi

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/samber/lo"
	"gopkg.in/yaml.v3"

	"github.com/ironsheep/droplet-assay-mcp/internal/detection"
)

// DefaultPadding is the margin added around a detected circle.
const DefaultPadding = 5

// ErrDegenerate reports a ROI with non-positive width or height.
var ErrDegenerate = errors.New("degenerate roi")

// ROI is an axis-aligned rectangle in frame coordinates. (X1, Y1) is the
// inclusive top-left corner and (X2, Y2) the exclusive bottom-right corner.
//
// Coordinates may extend past the frame; they are clamped when cropping.
type ROI struct {
	X1 int `yaml:"x1" json:"x1"`
	Y1 int `yaml:"y1" json:"y1"`
	X2 int `yaml:"x2" json:"x2"`
	Y2 int `yaml:"y2" json:"y2"`

	// Ignore excludes the ROI from measurement. Its series stay NaN.
	Ignore bool `yaml:"ignore,omitempty" json:"ignore,omitempty"`

	// Label is the 1-based ordinal shown to operators.
	Label int `yaml:"label,omitempty" json:"label,omitempty"`
}

// Width returns X2 - X1.
func (r ROI) Width() int { return r.X2 - r.X1 }

// Height returns Y2 - Y1.
func (r ROI) Height() int { return r.Y2 - r.Y1 }

// Center returns the ROI centre in (row, col) coordinates relative to the
// top-left corner (X1, Y1).
func (r ROI) Center() (row, col float64) {
	return float64(r.Height()) / 2, float64(r.Width()) / 2
}

// DropletRadius estimates the droplet radius as the mean half side length.
func (r ROI) DropletRadius() float64 {
	return float64(r.Width()+r.Height()) / 4
}

// Validate rejects ROIs with non-positive width or height.
func Validate(rois []ROI) error {
	for i, r := range rois {
		if r.Width() <= 0 || r.Height() <= 0 {
			return fmt.Errorf("%w: roi %d is (%d,%d)-(%d,%d)", ErrDegenerate, i+1, r.X1, r.Y1, r.X2, r.Y2)
		}
	}
	return nil
}

// AnyIgnored reports whether any ROI carries an explicit ignore flag.
func AnyIgnored(rois []ROI) bool {
	return lo.ContainsBy(rois, func(r ROI) bool { return r.Ignore })
}

// Labeled returns a copy of rois where zero labels are replaced by the
// 1-based position.
func Labeled(rois []ROI) []ROI {
	return lo.Map(rois, func(r ROI, i int) ROI {
		if r.Label == 0 {
			r.Label = i + 1
		}
		return r
	})
}

// FromCircles converts labeled circles into padded ROIs, clamped to a
// width x height frame. Output order follows the input order.
func FromCircles(circles []detection.Circle, width, height, pad int) []ROI {
	return lo.Map(circles, func(c detection.Circle, _ int) ROI {
		return ROI{
			X1:    max(0, c.X-c.Radius-pad),
			Y1:    max(0, c.Y-c.Radius-pad),
			X2:    min(width, c.X+c.Radius+pad),
			Y2:    min(height, c.Y+c.Radius+pad),
			Label: c.Label,
		}
	})
}

// ParseIgnoreList parses a comma separated list of 1-based ROI numbers such
// as "1,3,5" into 0-based indices. Blank entries are skipped.
//
// # Errors
//
// Returns an error for entries that are not positive integers or exceed n.
func ParseIgnoreList(s string, n int) ([]int, error) {
	var out []int
	for _, tok := range strings.Split(s, ",") {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		v, err := strconv.Atoi(tok)
		if err != nil || v < 1 {
			return nil, fmt.Errorf("invalid roi number %q", tok)
		}
		if v > n {
			return nil, fmt.Errorf("roi %d is out of range (have %d)", v, n)
		}
		out = append(out, v-1)
	}
	if len(out) == 0 {
		return nil, nil
	}
	return lo.Uniq(out), nil
}

// ApplyIgnore returns a copy of rois with the given 0-based indices ignored.
func ApplyIgnore(rois []ROI, indices []int) []ROI {
	out := make([]ROI, len(rois))
	copy(out, rois)
	for _, i := range indices {
		if i >= 0 && i < len(out) {
			out[i].Ignore = true
		}
	}
	return out
}

type roiFile struct {
	ROIs []ROI `yaml:"rois"`
}

// Load reads ROIs from a YAML file of the form
//
//	rois:
//	  - {x1: 10, y1: 12, x2: 70, y2: 72}
//	  - {x1: 80, y1: 12, x2: 140, y2: 72, ignore: true}
//
// Unlabeled entries are numbered by position and the result is validated.
func Load(path string) ([]ROI, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read roi file: %w", err)
	}
	var f roiFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse roi file %s: %w", path, err)
	}
	rois := Labeled(f.ROIs)
	if err := Validate(rois); err != nil {
		return nil, err
	}
	return rois, nil
}
