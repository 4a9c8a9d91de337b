// Package analysis aggregates turn events into per-phase counts, turn rates
// and choice indices.
package analysis

import (
	"fmt"
	"math"

	"github.com/samber/lo"

	"github.com/ironsheep/droplet-assay-mcp/internal/config"
)

// Phases returns the stimulus phase of each frame: true for phase 1, false
// for phase 2. Phase 1 covers frames with (i/halfPeriod)%2 == 0.
func Phases(numFrames, halfPeriod int) []bool {
	out := make([]bool, max(numFrames, 0))
	if halfPeriod < 1 {
		return out
	}
	for i := range out {
		out[i] = (i/halfPeriod)%2 == 0
	}
	return out
}

// ChoiceIndex returns (r1 - r2) / (r1 + r2), or NaN unless r1 + r2 > 0.
func ChoiceIndex(r1, r2 float64) float64 {
	sum := r1 + r2
	if !(sum > 0) {
		return math.NaN()
	}
	return (r1 - r2) / sum
}

// ROIStats are the turn counts of one ROI. Index 0 is phase 1.
type ROIStats struct {
	Turns       [2]int  `json:"turns"`
	ChoiceIndex float64 `json:"choice_index"`
}

// GroupStats summarise one group. Index 0 is phase 1.
type GroupStats struct {
	Group

	Turns       [2]int     `json:"turns"`
	ValidFrames [2]int     `json:"valid_frames"`
	Rate        [2]float64 `json:"rate"`
	ChoiceIndex float64    `json:"choice_index"`
}

// Stats are the aggregate results of a run.
type Stats struct {
	ROIs   []ROIStats   `json:"rois"`
	Groups []GroupStats `json:"groups"`
}

// Aggregate counts valid turns per ROI and phase and summarises each group.
//
// A group's rate for a phase is the sum of its members' turns in that phase
// over the number of their frames in that phase that are not invalid; it is
// NaN when there are no such frames. Members outside the ROI range are
// dropped and a group left empty has NaN rates. The per-ROI choice index uses
// the raw counts.
//
// turns and invalid are indexed [roi][frame] and must have the same shape.
func Aggregate(turns, invalid [][]bool, groups []Group, halfPeriod int) (*Stats, error) {
	if halfPeriod < 1 {
		return nil, fmt.Errorf("%w: half period must be at least 1 (got %d)", config.ErrConfiguration, halfPeriod)
	}
	if len(turns) != len(invalid) {
		return nil, fmt.Errorf("%w: %d turn series but %d validity series", config.ErrConfiguration, len(turns), len(invalid))
	}

	numROI := len(turns)
	numFrames := 0
	if numROI > 0 {
		numFrames = len(turns[0])
	}
	for k := range turns {
		if len(turns[k]) != numFrames || len(invalid[k]) != numFrames {
			return nil, fmt.Errorf("%w: roi %d has series of %d and %d frames, want %d",
				config.ErrConfiguration, k+1, len(turns[k]), len(invalid[k]), numFrames)
		}
	}

	phase := Phases(numFrames, halfPeriod)
	phaseOf := func(j int) int {
		if phase[j] {
			return 0
		}
		return 1
	}

	stats := &Stats{ROIs: make([]ROIStats, numROI), Groups: make([]GroupStats, len(groups))}
	valid := make([][2]int, numROI)
	for k := 0; k < numROI; k++ {
		var c [2]int
		for j := 0; j < numFrames; j++ {
			p := phaseOf(j)
			if turns[k][j] {
				c[p]++
			}
			if !invalid[k][j] {
				valid[k][p]++
			}
		}
		stats.ROIs[k] = ROIStats{
			Turns:       c,
			ChoiceIndex: ChoiceIndex(float64(c[0]), float64(c[1])),
		}
	}

	for g, grp := range groups {
		gs := GroupStats{Group: grp}
		members := grp.members(numROI)
		if len(members) == 0 {
			gs.Rate = [2]float64{math.NaN(), math.NaN()}
			gs.ChoiceIndex = math.NaN()
			stats.Groups[g] = gs
			continue
		}
		for p := 0; p < 2; p++ {
			gs.Turns[p] = lo.SumBy(members, func(k int) int { return stats.ROIs[k].Turns[p] })
			gs.ValidFrames[p] = lo.SumBy(members, func(k int) int { return valid[k][p] })
			gs.Rate[p] = math.NaN()
			if gs.ValidFrames[p] > 0 {
				gs.Rate[p] = float64(gs.Turns[p]) / float64(gs.ValidFrames[p])
			}
		}
		gs.ChoiceIndex = ChoiceIndex(gs.Rate[0], gs.Rate[1])
		stats.Groups[g] = gs
	}
	return stats, nil
}
