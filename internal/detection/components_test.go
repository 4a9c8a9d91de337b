package detection

import (
	"image"
	"math"
	"testing"
)

func maskFrom(rows ...string) ([]bool, int, int) {
	h := len(rows)
	w := len(rows[0])
	mask := make([]bool, w*h)
	for y, row := range rows {
		for x, c := range row {
			mask[y*w+x] = c == '#'
		}
	}
	return mask, w, h
}

func TestComponentAt(t *testing.T) {
	mask, w, h := maskFrom(
		"##....",
		".#..##",
		"..#.##",
		"......",
	)

	tests := []struct {
		name string
		x, y int
		want int
	}{
		{"diagonal chain is one component", 0, 0, 4},
		{"separate block", 5, 2, 4},
		{"background pixel", 3, 3, 0},
		{"out of range", 10, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComponentAt(mask, w, h, tt.x, tt.y)
			if len(got) != tt.want {
				t.Errorf("component size: got %d, want %d", len(got), tt.want)
			}
		})
	}
}

func TestComponentAt_ContainsStart(t *testing.T) {
	mask, w, h := maskFrom("###", "###")
	comp := ComponentAt(mask, w, h, 1, 1)
	if len(comp) == 0 || comp[0] != (image.Point{X: 1, Y: 1}) {
		t.Errorf("first visited pixel should be the start, got %v", comp)
	}
}

func TestProps_Ellipse(t *testing.T) {
	// Axis-aligned ellipse with semi axes 20 (columns) and 10 (rows).
	const a, b = 20.0, 10.0
	var pixels []image.Point
	for y := -15; y <= 15; y++ {
		for x := -25; x <= 25; x++ {
			if float64(x*x)/(a*a)+float64(y*y)/(b*b) <= 1 {
				pixels = append(pixels, image.Point{X: x + 30, Y: y + 20})
			}
		}
	}

	p := Props(pixels)

	if p.Area != float64(len(pixels)) {
		t.Errorf("area: got %v, want %d", p.Area, len(pixels))
	}
	if math.Abs(p.Row-20) > 1e-9 || math.Abs(p.Col-30) > 1e-9 {
		t.Errorf("centroid: got (%v, %v), want (20, 30)", p.Row, p.Col)
	}
	if math.Abs(p.MajorAxis-2*a) > 1 {
		t.Errorf("major axis: got %v, want about %v", p.MajorAxis, 2*a)
	}
	if math.Abs(p.MinorAxis-2*b) > 1 {
		t.Errorf("minor axis: got %v, want about %v", p.MinorAxis, 2*b)
	}
	wantEcc := math.Sqrt(1 - (b*b)/(a*a))
	if math.Abs(p.Eccentricity-wantEcc) > 0.02 {
		t.Errorf("eccentricity: got %v, want about %v", p.Eccentricity, wantEcc)
	}
	// major axis along the columns is perpendicular to the row axis
	if math.Abs(math.Abs(p.Orientation)-90) > 1e-6 {
		t.Errorf("orientation: got %v, want +-90", p.Orientation)
	}
}

func TestProps_Disk(t *testing.T) {
	var pixels []image.Point
	for y := -8; y <= 8; y++ {
		for x := -8; x <= 8; x++ {
			if x*x+y*y <= 64 {
				pixels = append(pixels, image.Point{X: x + 10, Y: y + 10})
			}
		}
	}

	p := Props(pixels)
	if p.Eccentricity > 1e-6 {
		t.Errorf("disk eccentricity: got %v, want 0", p.Eccentricity)
	}
	if math.Abs(p.MajorAxis-p.MinorAxis) > 1e-6 {
		t.Errorf("disk axes differ: %v vs %v", p.MajorAxis, p.MinorAxis)
	}
}

func TestProps_Degenerate(t *testing.T) {
	single := Props([]image.Point{{X: 3, Y: 4}})
	if single.Area != 1 || single.Row != 4 || single.Col != 3 {
		t.Errorf("single pixel: got %+v", single)
	}
	if single.Eccentricity != 0 {
		t.Errorf("single pixel eccentricity: got %v, want 0", single.Eccentricity)
	}
	if !math.IsNaN(single.MajorAxis) || !math.IsNaN(single.Orientation) {
		t.Errorf("single pixel axes should be NaN, got %+v", single)
	}

	line := Props([]image.Point{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 2, Y: 0}})
	if line.Eccentricity != 1 {
		t.Errorf("line eccentricity: got %v, want 1", line.Eccentricity)
	}
	if !math.IsNaN(line.MinorAxis) {
		t.Errorf("line minor axis should be NaN, got %v", line.MinorAxis)
	}

	empty := Props(nil)
	if !math.IsNaN(empty.Area) {
		t.Errorf("empty region area: got %v, want NaN", empty.Area)
	}
}
