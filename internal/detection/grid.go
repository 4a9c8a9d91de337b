package detection

import "sort"

// AssignGrid places circles on a numCols x numRows grid and labels them in
// column-major order.
//
// x coordinates are cut into numCols equal-width bins spanning [min x, max x]
// and y coordinates into numRows bins spanning [min y, max y]. The first bin
// includes its left edge; every bin includes its right edge. When all values
// are equal every circle falls in bin 0.
//
// Circles are then sorted by (Col, Row, Y, X) with Radius and Votes as final
// tie breakers and labeled 1..N. The output does not depend on input order.
// The input slice is not modified.
func AssignGrid(circles []Circle, numCols, numRows int) []Circle {
	out := make([]Circle, len(circles))
	copy(out, circles)
	if len(out) == 0 {
		return out
	}

	xs := make([]float64, len(out))
	ys := make([]float64, len(out))
	for i, c := range out {
		xs[i] = float64(c.X)
		ys[i] = float64(c.Y)
	}
	cols := cut(xs, numCols)
	rows := cut(ys, numRows)
	for i := range out {
		out[i].Col = cols[i]
		out[i].Row = rows[i]
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		switch {
		case a.Col != b.Col:
			return a.Col < b.Col
		case a.Row != b.Row:
			return a.Row < b.Row
		case a.Y != b.Y:
			return a.Y < b.Y
		case a.X != b.X:
			return a.X < b.X
		case a.Radius != b.Radius:
			return a.Radius < b.Radius
		default:
			return a.Votes < b.Votes
		}
	})
	for i := range out {
		out[i].Label = i + 1
	}
	return out
}

// cut assigns each value to one of n equal-width bins between the minimum and
// maximum value. Bin edges are start + i*step with the last edge pinned to the
// maximum. Bins are right-closed and the first bin also includes its left edge.
func cut(values []float64, n int) []int {
	bins := make([]int, len(values))
	if n < 1 || len(values) == 0 {
		return bins
	}

	lo, hi := values[0], values[0]
	for _, v := range values[1:] {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	if hi == lo {
		return bins
	}

	edges := make([]float64, n+1)
	step := (hi - lo) / float64(n)
	for i := range edges {
		edges[i] = lo + float64(i)*step
	}
	edges[n] = hi

	for i, v := range values {
		b := 0
		for b < n-1 && v > edges[b+1] {
			b++
		}
		bins[i] = b
	}
	return bins
}
