package assay

import (
	"bytes"
	"math"
	"strconv"

	"github.com/goccy/go-json"
	"github.com/samber/lo"

	"github.com/ironsheep/droplet-assay-mcp/internal/analysis"
	"github.com/ironsheep/droplet-assay-mcp/internal/extract"
	"github.com/ironsheep/droplet-assay-mcp/internal/roi"
	"github.com/ironsheep/droplet-assay-mcp/internal/signal"
)

// NullFloat is a float64 that encodes NaN and infinities as JSON null.
type NullFloat float64

// MarshalJSON implements json.Marshaler.
func (f NullFloat) MarshalJSON() ([]byte, error) {
	v := float64(f)
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return []byte("null"), nil
	}
	return strconv.AppendFloat(nil, v, 'g', -1, 64), nil
}

// UnmarshalJSON implements json.Unmarshaler. null decodes to NaN.
func (f *NullFloat) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		*f = NullFloat(math.NaN())
		return nil
	}
	var v float64
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*f = NullFloat(v)
	return nil
}

// IsNaN reports whether f holds no value.
func (f NullFloat) IsNaN() bool { return math.IsNaN(float64(f)) }

func nullFloats(s []float64) []NullFloat {
	return lo.Map(s, func(v float64, _ int) NullFloat { return NullFloat(v) })
}

// Report is the outcome of one analysis.
type Report struct {
	Directory string `json:"directory,omitempty"`

	// StartFrame is the 1-based number of the first analyzed frame.
	StartFrame int `json:"start_frame"`
	Frames     int `json:"frames"`
	HalfPeriod int `json:"half_period"`

	// Aborted is set when the analysis was cancelled. No other result is
	// present then.
	Aborted bool `json:"aborted"`

	// FailedFrames are 0-based indices of frames that could not be measured.
	FailedFrames []int `json:"failed_frames"`

	// Inactive lists the labels of ROIs suppressed for inactivity.
	Inactive []int `json:"inactive"`

	ROIs   []ROIReport    `json:"rois"`
	Groups []GroupReport  `json:"groups"`
	Series []SeriesReport `json:"series,omitempty"`
}

// ROIReport summarises one ROI. Index 0 of the per-phase arrays is phase 1.
type ROIReport struct {
	Label  int     `json:"label"`
	Region roi.ROI `json:"region"`

	Ignored  bool `json:"ignored"`
	Inactive bool `json:"inactive"`

	// Skipped is set when the ROI had no measurement in any frame.
	Skipped bool `json:"skipped"`

	Turns       [2]int    `json:"turns"`
	ChoiceIndex NullFloat `json:"choice_index"`

	// TurnFrames are 0-based indices of the valid turns.
	TurnFrames    []int   `json:"turn_frames"`
	InvalidFrames int     `json:"invalid_frames"`
	DropletRadius float64 `json:"droplet_radius"`
}

// GroupReport summarises one ROI group.
type GroupReport struct {
	Name        string       `json:"name"`
	Members     []int        `json:"members"`
	Turns       [2]int       `json:"turns"`
	ValidFrames [2]int       `json:"valid_frames"`
	Rate        [2]NullFloat `json:"rate"`
	ChoiceIndex NullFloat    `json:"choice_index"`
}

// SeriesReport carries the per-frame series of one ROI.
type SeriesReport struct {
	Label int `json:"label"`

	Area         []NullFloat `json:"area"`
	Eccentricity []NullFloat `json:"eccentricity"`
	MajorAxis    []NullFloat `json:"major_axis"`
	MinorAxis    []NullFloat `json:"minor_axis"`
	Orientation  []NullFloat `json:"orientation"`
	CentroidRow  []NullFloat `json:"centroid_row"`
	CentroidCol  []NullFloat `json:"centroid_col"`

	SmoothedEccentricity []NullFloat `json:"smoothed_eccentricity"`
	SmoothedArea         []NullFloat `json:"smoothed_area"`
	CentroidRadius       []NullFloat `json:"centroid_radius"`

	Turns   []bool `json:"turns"`
	Invalid []bool `json:"invalid"`
}

// JSON encodes the report with indentation.
func (r *Report) JSON() ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}

func buildReport(rois []roi.ROI, res *extract.Result, sig *signal.Result, stats *analysis.Stats, halfPeriod int, series bool) *Report {
	m := res.Matrix
	r := &Report{
		Frames:       m.NumFrames,
		HalfPeriod:   halfPeriod,
		FailedFrames: lo.Ternary(res.FailedFrames == nil, []int{}, res.FailedFrames),
		Inactive:     []int{},
		ROIs:         make([]ROIReport, len(rois)),
		Groups: lo.Map(stats.Groups, func(g analysis.GroupStats, _ int) GroupReport {
			return GroupReport{
				Name:        g.Name,
				Members:     g.Members,
				Turns:       g.Turns,
				ValidFrames: g.ValidFrames,
				Rate:        [2]NullFloat{NullFloat(g.Rate[0]), NullFloat(g.Rate[1])},
				ChoiceIndex: NullFloat(g.ChoiceIndex),
			}
		}),
	}

	for k, x := range rois {
		if res.Inactive[k] {
			r.Inactive = append(r.Inactive, x.Label)
		}
		r.ROIs[k] = ROIReport{
			Label:         x.Label,
			Region:        x,
			Ignored:       x.Ignore,
			Inactive:      res.Inactive[k],
			Skipped:       sig.Signals[k].Skipped,
			Turns:         stats.ROIs[k].Turns,
			ChoiceIndex:   NullFloat(stats.ROIs[k].ChoiceIndex),
			TurnFrames:    sig.TurnFrames[k],
			InvalidFrames: lo.Count(sig.Invalid[k], true),
			DropletRadius: sig.Signals[k].DropletRadius,
		}
	}

	if series {
		r.Series = make([]SeriesReport, len(rois))
		for k, x := range rois {
			r.Series[k] = SeriesReport{
				Label:        x.Label,
				Area:         nullFloats(m.Area[k]),
				Eccentricity: nullFloats(m.Eccentricity[k]),
				MajorAxis:    nullFloats(m.MajorAxis[k]),
				MinorAxis:    nullFloats(m.MinorAxis[k]),
				Orientation:  nullFloats(m.Orientation[k]),
				CentroidRow: lo.Map(m.Centroid[k], func(c [2]float64, _ int) NullFloat {
					return NullFloat(c[0])
				}),
				CentroidCol: lo.Map(m.Centroid[k], func(c [2]float64, _ int) NullFloat {
					return NullFloat(c[1])
				}),
				SmoothedEccentricity: nullFloats(sig.Signals[k].Eccentricity),
				SmoothedArea:         nullFloats(sig.Signals[k].Area),
				CentroidRadius:       nullFloats(sig.Signals[k].CentroidRadius),
				Turns:                sig.Turns[k],
				Invalid:              sig.Invalid[k],
			}
		}
	}
	return r
}
